package core

import (
	"github.com/ethereum/go-ethereum/common"
)

type OriginKind uint8

const (
	OriginNone OriginKind = iota
	OriginRoot
	OriginSigned
)

// Origin is who dispatches an operation.
type Origin struct {
	Kind OriginKind
	Who  common.Address
}

func RootOrigin() Origin {
	return Origin{Kind: OriginRoot}
}

func SignedOrigin(who common.Address) Origin {
	return Origin{Kind: OriginSigned, Who: who}
}

func NoneOrigin() Origin {
	return Origin{Kind: OriginNone}
}

// EnsureOrigin gates privileged operations.
type EnsureOrigin interface {
	EnsureOrigin(origin Origin) error
}

var (
	_ EnsureOrigin = EnsureRoot{}
	_ EnsureOrigin = (*EnsureMembers)(nil)
	_ EnsureOrigin = EnsureEither{}
)

type EnsureRoot struct{}

func (EnsureRoot) EnsureOrigin(origin Origin) error {
	if origin.Kind != OriginRoot {
		return ErrBadOrigin
	}
	return nil
}

// EnsureMembers accepts signed origins from a fixed set of accounts.
type EnsureMembers struct {
	members map[common.Address]struct{}
}

func NewEnsureMembers(members ...common.Address) *EnsureMembers {
	m := &EnsureMembers{members: make(map[common.Address]struct{}, len(members))}
	for _, member := range members {
		m.members[member] = struct{}{}
	}
	return m
}

func (m *EnsureMembers) EnsureOrigin(origin Origin) error {
	if origin.Kind != OriginSigned {
		return ErrBadOrigin
	}
	if _, ok := m.members[origin.Who]; !ok {
		return ErrBadOrigin
	}
	return nil
}

// EnsureEither accepts what either of its checks accepts.
type EnsureEither struct {
	Left  EnsureOrigin
	Right EnsureOrigin
}

func (e EnsureEither) EnsureOrigin(origin Origin) error {
	if err := e.Left.EnsureOrigin(origin); err == nil {
		return nil
	}
	return e.Right.EnsureOrigin(origin)
}

func ensureSigned(origin Origin) (common.Address, error) {
	if origin.Kind != OriginSigned {
		return common.Address{}, ErrBadOrigin
	}
	return origin.Who, nil
}
