package core

import (
	"github.com/axiomesh/treasury/storage"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"
)

var approvalsKey = []byte("treasury/approvals")

// Approvals is the bounded queue of active proposal indices waiting for funds.
type Approvals struct {
	kv           storage.KV
	maxApprovals uint32
	logger       logrus.FieldLogger
}

func newApprovals(kv storage.KV, maxApprovals uint32, logger logrus.FieldLogger) *Approvals {
	return &Approvals{
		kv:           kv,
		maxApprovals: maxApprovals,
		logger:       logger,
	}
}

func (a *Approvals) List() []ProposalIndex {
	data := a.kv.Get(approvalsKey)
	if data == nil {
		return nil
	}
	var indices []ProposalIndex
	if err := rlp.DecodeBytes(data, &indices); err != nil {
		a.logger.WithError(err).Error("decode approvals")
		return nil
	}
	return indices
}

func (a *Approvals) Len() int {
	return len(a.List())
}

// Append queues index, failing when the queue is full.
func (a *Approvals) Append(index ProposalIndex) error {
	indices := a.List()
	if uint32(len(indices)) >= a.maxApprovals {
		return ErrTooManyApprovals
	}
	a.Replace(append(indices, index))
	return nil
}

func (a *Approvals) Replace(indices []ProposalIndex) {
	if len(indices) == 0 {
		a.kv.Delete(approvalsKey)
		return
	}
	data, err := rlp.EncodeToBytes(indices)
	if err != nil {
		panic(err)
	}
	a.kv.Put(approvalsKey, data)
}
