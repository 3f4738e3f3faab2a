package core

import (
	"encoding/binary"

	"github.com/axiomesh/treasury/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"
)

var (
	proposalCountKey        = []byte("treasury/proposal_count")
	proposalPrefix          = []byte("treasury/proposals/")
	waitingProposalCountKey = []byte("treasury/waiting_count")
	waitingProposalPrefix   = []byte("treasury/waiting/")
)

// Registry holds the active and the waiting proposal sets, each keyed by its
// own counter.
type Registry struct {
	kv       Store
	currency Currency
	config   *Config
	logger   logrus.FieldLogger
}

func newRegistry(kv Store, currency Currency, config *Config, logger logrus.FieldLogger) *Registry {
	return &Registry{
		kv:       kv,
		currency: currency,
		config:   config,
		logger:   logger,
	}
}

func indexKey(prefix []byte, index ProposalIndex) []byte {
	key := make([]byte, len(prefix)+4)
	copy(key, prefix)
	binary.BigEndian.PutUint32(key[len(prefix):], index)
	return key
}

func (r *Registry) getCounter(key []byte) ProposalIndex {
	data := r.kv.Get(key)
	if len(data) != 4 {
		return 0
	}
	return binary.BigEndian.Uint32(data)
}

func (r *Registry) setCounter(key []byte, v ProposalIndex) {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, v)
	r.kv.Put(key, data)
}

func (r *Registry) get(key []byte) (*Proposal, bool) {
	data := r.kv.Get(key)
	if data == nil {
		return nil, false
	}
	p := &Proposal{}
	if err := rlp.DecodeBytes(data, p); err != nil {
		r.logger.WithFields(logrus.Fields{"key": string(key), "err": err}).Error("decode proposal")
		return nil, false
	}
	return p, true
}

func (r *Registry) put(key []byte, p *Proposal) {
	data, err := rlp.EncodeToBytes(p)
	if err != nil {
		panic(err)
	}
	r.kv.Put(key, data)
}

func (r *Registry) ProposalCount() ProposalIndex {
	return r.getCounter(proposalCountKey)
}

func (r *Registry) WaitingProposalCount() ProposalIndex {
	return r.getCounter(waitingProposalCountKey)
}

func (r *Registry) setProposalCount(v ProposalIndex) {
	r.setCounter(proposalCountKey, v)
}

func (r *Registry) setWaitingProposalCount(v ProposalIndex) {
	r.setCounter(waitingProposalCountKey, v)
}

// Proposal returns the active proposal at index.
func (r *Registry) Proposal(index ProposalIndex) (*Proposal, bool) {
	return r.get(indexKey(proposalPrefix, index))
}

func (r *Registry) WaitingProposal(index ProposalIndex) (*Proposal, bool) {
	return r.get(indexKey(waitingProposalPrefix, index))
}

func (r *Registry) putProposal(index ProposalIndex, p *Proposal) {
	r.put(indexKey(proposalPrefix, index), p)
}

func (r *Registry) removeProposal(index ProposalIndex) {
	r.kv.Delete(indexKey(proposalPrefix, index))
}

func (r *Registry) putWaitingProposal(index ProposalIndex, p *Proposal) {
	r.put(indexKey(waitingProposalPrefix, index), p)
}

func (r *Registry) removeWaitingProposal(index ProposalIndex) {
	r.kv.Delete(indexKey(waitingProposalPrefix, index))
}

// Propose reserves the bond from proposer and files the proposal. It lands
// in the active set when blockNumber is inside the allowed part of the spend
// period and in the waiting set otherwise.
func (r *Registry) Propose(proposer, beneficiary common.Address, value types.Balance, occurs uint32, blockNumber uint64) (ProposalIndex, bool, error) {
	chunk := value
	if occurs > 0 {
		chunk = value / types.Balance(occurs)
	}

	bond := CalculateBond(r.config.ProposalBond, r.config.ProposalBondMinimum, value)
	if err := r.currency.Reserve(proposer, bond); err != nil {
		return 0, false, ErrInsufficientProposersBalance
	}

	p := &Proposal{
		Proposer:        proposer,
		Value:           chunk,
		Beneficiary:     beneficiary,
		Bond:            bond,
		Occurs:          occurs,
		RemainingOccurs: occurs,
	}

	if blockNumber%r.config.SpendPeriod < r.config.AllowedProposalPeriod {
		index := r.ProposalCount()
		r.setProposalCount(index + 1)
		r.putProposal(index, p)
		return index, false, nil
	}

	index := r.WaitingProposalCount()
	r.setWaitingProposalCount(index + 1)
	r.putWaitingProposal(index, p)
	return index, true, nil
}

// Reject removes the active proposal at index and slashes its bond. The
// returned imbalance holds what could actually be slashed.
func (r *Registry) Reject(index ProposalIndex) (*Proposal, types.NegativeImbalance, error) {
	p, ok := r.Proposal(index)
	if !ok {
		return nil, types.NegativeImbalance{}, ErrInvalidIndex
	}
	r.removeProposal(index)
	imbalance, residual := r.currency.SlashReserved(p.Proposer, p.Bond)
	if residual != 0 {
		r.logger.WithFields(logrus.Fields{
			"index":    index,
			"proposer": p.Proposer.Hex(),
			"bond":     p.Bond,
			"residual": residual,
		}).Warn("Bond only partly slashed")
	}
	return p, imbalance, nil
}

// Proposals returns the active proposals by index.
func (r *Registry) Proposals() map[ProposalIndex]*Proposal {
	return r.list(proposalPrefix)
}

func (r *Registry) WaitingProposals() map[ProposalIndex]*Proposal {
	return r.list(waitingProposalPrefix)
}

func (r *Registry) list(prefix []byte) map[ProposalIndex]*Proposal {
	res := make(map[ProposalIndex]*Proposal)
	for _, key := range r.kv.Keys(prefix) {
		if len(key) != len(prefix)+4 {
			continue
		}
		if p, ok := r.get(key); ok {
			res[binary.BigEndian.Uint32(key[len(prefix):])] = p
		}
	}
	return res
}
