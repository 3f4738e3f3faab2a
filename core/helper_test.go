package core

import (
	"testing"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/treasury/event"
	"github.com/axiomesh/treasury/ledger"
	"github.com/axiomesh/treasury/storage"
	"github.com/axiomesh/treasury/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	carol = common.HexToAddress("0x0000000000000000000000000000000000000003")
	dave  = common.HexToAddress("0x0000000000000000000000000000000000000004")
)

const existentialDeposit = 1

type recorder struct {
	events []event.Event
}

func (r *recorder) Publish(_ event.EventType, evt event.Event) {
	r.events = append(r.events, evt)
}

func (r *recorder) data() []any {
	res := make([]any, 0, len(r.events))
	for _, evt := range r.events {
		res = append(res, evt.Data)
	}
	return res
}

func (r *recorder) reset() {
	r.events = nil
}

type testEnv struct {
	t        *testing.T
	store    *storage.Store
	ledger   *ledger.Ledger
	treasury *Treasury
	events   *recorder
}

func testConfig() Config {
	return Config{
		PalletID:              "py/trsry",
		ProposalBond:          types.PermillFromPercent(5),
		ProposalBondMinimum:   1,
		SpendPeriod:           2,
		AllowedProposalPeriod: 2,
		Burn:                  types.PermillFromPercent(50),
		MaxApprovals:          100,
	}
}

func newTestEnv(t *testing.T, config Config, opts ...Option) *testEnv {
	return newTestEnvWith(t, config, nil, opts...)
}

// newTestEnvWith builds a treasury over an in-memory store with alice and
// bob endowed with 100 each. wrap may replace the currency handed to the
// treasury.
func newTestEnvWith(t *testing.T, config Config, wrap func(*ledger.Ledger) Currency, opts ...Option) *testEnv {
	store, err := storage.NewMemory()
	require.Nil(t, err)
	t.Cleanup(func() { store.Close() })

	l := ledger.New(store, existentialDeposit, log.New())
	var currency Currency = l
	if wrap != nil {
		currency = wrap(l)
	}

	rec := &recorder{}
	opts = append([]Option{WithPublisher(rec)}, opts...)
	tr, err := NewTreasury(store, currency, config, log.New(), opts...)
	require.Nil(t, err)
	require.Nil(t, tr.Genesis([]Endowment{
		{Who: alice, Balance: 100},
		{Who: bob, Balance: 100},
	}))
	rec.reset()

	return &testEnv{
		t:        t,
		store:    store,
		ledger:   l,
		treasury: tr,
		events:   rec,
	}
}

// setPot makes the spendable balance of the treasury exactly pot.
func (e *testEnv) setPot(pot types.Balance) {
	require.Nil(e.t, e.store.Transact(func() error {
		e.ledger.MakeFreeBalanceBe(e.treasury.AccountID(), pot+existentialDeposit)
		return nil
	}))
}

func (e *testEnv) account(who common.Address) ledger.AccountData {
	var acc ledger.AccountData
	e.store.View(func() {
		acc = e.ledger.Account(who)
	})
	return acc
}

func (e *testEnv) free(who common.Address) types.Balance {
	return e.account(who).Free
}

func (e *testEnv) reserved(who common.Address) types.Balance {
	return e.account(who).Reserved
}

func (e *testEnv) issuance() types.Balance {
	var v types.Balance
	e.store.View(func() {
		v = e.ledger.TotalIssuance()
	})
	return v
}

// requireConserved checks that the balances of all accounts add up to the
// total issuance.
func (e *testEnv) requireConserved() {
	var sum, issuance types.Balance
	e.store.View(func() {
		for _, a := range e.ledger.Accounts() {
			sum += e.ledger.TotalBalance(a)
		}
		issuance = e.ledger.TotalIssuance()
	})
	require.Equal(e.t, issuance, sum)
}

func (e *testEnv) propose(who common.Address, value types.Balance, occurs uint32) ProposalIndex {
	index, err := e.treasury.ProposeSpend(SignedOrigin(who), value, carol, occurs)
	require.Nil(e.t, err)
	return index
}

func (e *testEnv) approve(index ProposalIndex) {
	require.Nil(e.t, e.treasury.ApproveProposal(RootOrigin(), index))
}

func (e *testEnv) initialize(n uint64) Weight {
	w, err := e.treasury.OnInitialize(n)
	require.Nil(e.t, err)
	return w
}
