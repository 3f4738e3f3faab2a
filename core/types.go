package core

import (
	"errors"

	"github.com/axiomesh/treasury/types"
	"github.com/ethereum/go-ethereum/common"
)

// ProposalIndex is the key of a proposal within the active or waiting set.
type ProposalIndex = uint32

// Weight is the amount of work done by an operation, charged by the caller.
type Weight = uint64

var (
	// ErrInsufficientProposersBalance is returned when the bond can not be reserved.
	ErrInsufficientProposersBalance = errors.New("proposer's balance is too low")

	// ErrInvalidIndex is returned when no active proposal exists at the index.
	ErrInvalidIndex = errors.New("no proposal at that index")

	// ErrTooManyApprovals is returned when the approval queue is full.
	ErrTooManyApprovals = errors.New("too many approvals in the queue")

	ErrBadOrigin = errors.New("bad origin")
)

type Proposal struct {
	// Proposer staked the bond.
	Proposer common.Address

	// Value is paid per occurrence: the requested amount divided by
	// Occurs, or all of it when Occurs is zero.
	Value types.Balance

	Beneficiary common.Address

	// Bond is reserved from the proposer when the proposal is made.
	Bond types.Balance

	// Occurs is how many payments were requested, zero means a single one.
	Occurs uint32

	// RemainingOccurs counts down on every payment.
	RemainingOccurs uint32
}

// Endowment is a genesis balance.
type Endowment struct {
	Who     common.Address
	Balance types.Balance
}
