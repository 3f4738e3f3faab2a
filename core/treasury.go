package core

import (
	"encoding/binary"
	"fmt"

	"github.com/axiomesh/treasury/event"
	"github.com/axiomesh/treasury/storage"
	"github.com/axiomesh/treasury/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

var (
	blockNumberKey = []byte("system/block_number")
	genesisKey     = []byte("system/genesis")
)

// Currency is the ledger the treasury moves value with.
type Currency interface {
	FreeBalance(who common.Address) types.Balance
	MinimumBalance() types.Balance
	Reserve(who common.Address, amount types.Balance) error
	Unreserve(who common.Address, amount types.Balance) types.Balance
	SlashReserved(who common.Address, amount types.Balance) (types.NegativeImbalance, types.Balance)
	DepositCreating(who common.Address, value types.Balance) types.PositiveImbalance
	Pair(amount types.Balance) (types.PositiveImbalance, types.NegativeImbalance)
	Settle(who common.Address, value types.PositiveImbalance, reasons types.WithdrawReasons, liveness types.ExistenceRequirement) (types.PositiveImbalance, error)
	Withdraw(who common.Address, value types.Balance, reasons types.WithdrawReasons, liveness types.ExistenceRequirement) (types.NegativeImbalance, error)
	ResolveCreating(who common.Address, value types.NegativeImbalance)
	DropPositive(value types.PositiveImbalance)
	DropNegative(value types.NegativeImbalance)
	MakeFreeBalanceBe(who common.Address, balance types.Balance)
}

// OnUnbalanced takes ownership of a negative imbalance.
type OnUnbalanced interface {
	OnUnbalanced(amount types.NegativeImbalance)
}

// BurnSink drops what it receives, lowering the total issuance.
type BurnSink struct {
	Currency Currency
}

func (b BurnSink) OnUnbalanced(amount types.NegativeImbalance) {
	b.Currency.DropNegative(amount)
}

// Store is the transactional state the treasury runs on.
type Store interface {
	storage.KV
	Keys(prefix []byte) [][]byte
	Transact(fn func() error) error
	View(fn func())
}

type Config struct {
	// PalletID derives the pot account.
	PalletID string

	// ProposalBond is the fraction of a proposal's value bonded by the proposer.
	ProposalBond types.Permill

	ProposalBondMinimum types.Balance

	// SpendPeriod is the number of blocks between spend cycles.
	SpendPeriod uint64

	// AllowedProposalPeriod is how many blocks at the start of each spend
	// period accept proposals into the active set. Later proposals wait
	// for the next cycle.
	AllowedProposalPeriod uint64

	// Burn is the fraction of the surplus burnt when nothing was missed.
	Burn types.Permill

	MaxApprovals uint32
}

func (c *Config) Validate() error {
	if c.SpendPeriod == 0 {
		return fmt.Errorf("spend period must be positive")
	}
	if c.AllowedProposalPeriod > c.SpendPeriod {
		return fmt.Errorf("allowed proposal period %d exceeds spend period %d", c.AllowedProposalPeriod, c.SpendPeriod)
	}
	if c.PalletID == "" {
		return fmt.Errorf("pallet id is empty")
	}
	if c.MaxApprovals == 0 {
		return fmt.Errorf("max approvals must be positive")
	}
	return nil
}

type Option func(*Treasury)

func WithApproveOrigin(o EnsureOrigin) Option {
	return func(t *Treasury) { t.approveOrigin = o }
}

func WithRejectOrigin(o EnsureOrigin) Option {
	return func(t *Treasury) { t.rejectOrigin = o }
}

// WithSlashDestination routes slashed bonds. The pot is the default.
func WithSlashDestination(sink OnUnbalanced) Option {
	return func(t *Treasury) { t.onSlash = sink }
}

// WithBurnDestination routes burnt surplus. Burning is the default.
func WithBurnDestination(sink OnUnbalanced) Option {
	return func(t *Treasury) { t.burnDestination = sink }
}

func WithSpendFunds(handlers ...SpendFunds) Option {
	return func(t *Treasury) { t.spendFunds = append(t.spendFunds, handlers...) }
}

func WithPublisher(p Publisher) Option {
	return func(t *Treasury) { t.publisher = p }
}

func WithMetrics(m *Metrics) Option {
	return func(t *Treasury) { t.metrics = m }
}

// Treasury holds the pot, takes spending proposals against it and pays
// approved ones out every spend period.
type Treasury struct {
	store    Store
	currency Currency
	config   Config
	account  common.Address
	logger   logrus.FieldLogger

	approveOrigin   EnsureOrigin
	rejectOrigin    EnsureOrigin
	onSlash         OnUnbalanced
	burnDestination OnUnbalanced
	spendFunds      SpendFundsChain
	publisher       Publisher
	metrics         *Metrics

	registry  *Registry
	approvals *Approvals

	// events of the running operation, published after commit
	pending []event.Event
	// value slashed by the running operation
	slashed types.Balance
}

func NewTreasury(store Store, currency Currency, config Config, logger logrus.FieldLogger, opts ...Option) (*Treasury, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	t := &Treasury{
		store:         store,
		currency:      currency,
		config:        config,
		account:       types.ModuleAccount(config.PalletID),
		logger:        logger,
		approveOrigin: EnsureRoot{},
		rejectOrigin:  EnsureRoot{},
	}
	t.onSlash = t
	t.burnDestination = BurnSink{Currency: currency}
	for _, opt := range opts {
		opt(t)
	}
	t.registry = newRegistry(store, currency, &t.config, logger)
	t.approvals = newApprovals(store, config.MaxApprovals, logger)
	return t, nil
}

// AccountID is the account holding the pot.
func (t *Treasury) AccountID() common.Address {
	return t.account
}

func (t *Treasury) Config() Config {
	return t.config
}

func (t *Treasury) deposit(data any) {
	t.pending = append(t.pending, event.NewEvent(eventTypeOf(data), data))
}

// transact runs fn atomically and publishes its events once committed.
func (t *Treasury) transact(fn func() error) error {
	var (
		events  []event.Event
		slashed types.Balance
	)
	err := t.store.Transact(func() error {
		t.pending = nil
		t.slashed = 0
		if err := fn(); err != nil {
			return err
		}
		events, slashed = t.pending, t.slashed
		t.pending, t.slashed = nil, 0
		return nil
	})
	if err != nil {
		return err
	}
	if t.metrics != nil && slashed > 0 {
		t.metrics.observeSlashed(slashed)
	}
	for _, evt := range events {
		if t.metrics != nil {
			t.metrics.observeEvent(evt)
		}
		if t.publisher != nil {
			t.publisher.Publish(evt.Type, evt)
		}
	}
	if t.metrics != nil {
		t.store.View(func() {
			t.metrics.observeState(t)
		})
	}
	return nil
}

// Genesis endows the given accounts once and makes sure the pot account
// holds at least the minimum balance.
func (t *Treasury) Genesis(endowed []Endowment) error {
	return t.transact(func() error {
		if !t.store.Has(genesisKey) {
			for _, e := range endowed {
				t.currency.MakeFreeBalanceBe(e.Who, e.Balance)
			}
			t.store.Put(genesisKey, []byte{1})
		}
		ed := t.currency.MinimumBalance()
		if t.currency.FreeBalance(t.account) < ed {
			t.currency.MakeFreeBalanceBe(t.account, ed)
		}
		return nil
	})
}

// ProposeSpend files a spending proposal from a signed origin. The bond is
// reserved from the signer. occurs > 0 splits value into that many
// payments.
func (t *Treasury) ProposeSpend(origin Origin, value types.Balance, beneficiary common.Address, occurs uint32) (ProposalIndex, error) {
	var index ProposalIndex
	err := t.transact(func() error {
		proposer, err := ensureSigned(origin)
		if err != nil {
			return err
		}
		idx, waiting, err := t.registry.Propose(proposer, beneficiary, value, occurs, t.blockNumber())
		if err != nil {
			return err
		}
		index = idx
		if waiting {
			t.deposit(WaitingProposed{Index: idx})
		} else {
			t.deposit(Proposed{Index: idx})
		}
		t.logger.WithFields(logrus.Fields{
			"index":       idx,
			"waiting":     waiting,
			"proposer":    proposer.Hex(),
			"beneficiary": beneficiary.Hex(),
			"value":       value,
			"occurs":      occurs,
		}).Info("Proposal filed")
		return nil
	})
	return index, err
}

// RejectProposal removes an active proposal and slashes its bond.
func (t *Treasury) RejectProposal(origin Origin, index ProposalIndex) error {
	return t.transact(func() error {
		if err := t.rejectOrigin.EnsureOrigin(origin); err != nil {
			return err
		}
		p, imbalance, err := t.registry.Reject(index)
		if err != nil {
			return err
		}
		t.slashed += imbalance.Peek()
		t.logger.WithFields(logrus.Fields{"index": index, "bond": p.Bond, "slashed": imbalance.Peek()}).Info("Proposal rejected")
		t.onSlash.OnUnbalanced(imbalance)
		t.deposit(Rejected{Index: index, Slashed: p.Bond})
		return nil
	})
}

// ApproveProposal queues an active proposal for payment. A recurring
// proposal has to be approved again for every payment.
func (t *Treasury) ApproveProposal(origin Origin, index ProposalIndex) error {
	return t.transact(func() error {
		if err := t.approveOrigin.EnsureOrigin(origin); err != nil {
			return err
		}
		if _, ok := t.registry.Proposal(index); !ok {
			return ErrInvalidIndex
		}
		return t.approvals.Append(index)
	})
}

// OnInitialize is called for every new block and runs a spend cycle at each
// spend period boundary.
func (t *Treasury) OnInitialize(n uint64) (Weight, error) {
	var weight Weight
	err := t.transact(func() error {
		t.setBlockNumber(n)
		if n%t.config.SpendPeriod == 0 {
			weight = t.spend()
		}
		return nil
	})
	return weight, err
}

// Fund moves value from an account into the pot.
func (t *Treasury) Fund(from common.Address, value types.Balance) error {
	return t.transact(func() error {
		imbalance, err := t.currency.Withdraw(from, value, types.WithdrawTransfer, types.KeepAlive)
		if err != nil {
			return err
		}
		t.OnUnbalanced(imbalance)
		return nil
	})
}

// OnUnbalanced credits a negative imbalance to the pot.
func (t *Treasury) OnUnbalanced(amount types.NegativeImbalance) {
	if amount.IsZero() {
		return
	}
	value := amount.Peek()
	t.currency.ResolveCreating(t.account, amount)
	t.deposit(Deposit{Value: value})
}

// Pot is the spendable balance of the treasury. The minimum balance is left
// out so the account is never reaped.
func (t *Treasury) Pot() types.Balance {
	var pot types.Balance
	t.store.View(func() {
		pot = t.pot()
	})
	return pot
}

func (t *Treasury) pot() types.Balance {
	return types.SaturatingSub(t.currency.FreeBalance(t.account), t.currency.MinimumBalance())
}

// BlockNumber returns the last block passed to OnInitialize.
func (t *Treasury) BlockNumber() (uint64, bool) {
	var (
		n  uint64
		ok bool
	)
	t.store.View(func() {
		data := t.store.Get(blockNumberKey)
		if len(data) == 8 {
			n, ok = binary.BigEndian.Uint64(data), true
		}
	})
	return n, ok
}

func (t *Treasury) blockNumber() uint64 {
	data := t.store.Get(blockNumberKey)
	if len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

func (t *Treasury) setBlockNumber(n uint64) {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, n)
	t.store.Put(blockNumberKey, data)
}

// Snapshot is a consistent read of the treasury state.
type Snapshot struct {
	Pot                  types.Balance
	Account              common.Address
	BlockNumber          uint64
	ProposalCount        ProposalIndex
	WaitingProposalCount ProposalIndex
	Proposals            map[ProposalIndex]*Proposal
	WaitingProposals     map[ProposalIndex]*Proposal
	Approvals            []ProposalIndex
}

func (t *Treasury) Snapshot() *Snapshot {
	var s *Snapshot
	t.store.View(func() {
		s = &Snapshot{
			Pot:                  t.pot(),
			Account:              t.account,
			BlockNumber:          t.blockNumber(),
			ProposalCount:        t.registry.ProposalCount(),
			WaitingProposalCount: t.registry.WaitingProposalCount(),
			Proposals:            t.registry.Proposals(),
			WaitingProposals:     t.registry.WaitingProposals(),
			Approvals:            t.approvals.List(),
		}
	})
	return s
}
