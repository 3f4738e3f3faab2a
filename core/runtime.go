package core

import (
	"github.com/axiomesh/treasury/event"
	"github.com/axiomesh/treasury/ledger"
	"github.com/axiomesh/treasury/repo"
	"github.com/axiomesh/treasury/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Runtime is a treasury wired to its store, ledger and event bus from a repo
// config.
type Runtime struct {
	Store    *storage.Store
	Ledger   *ledger.Ledger
	Treasury *Treasury
	Bus      *event.EventBus
}

// OpenRuntime opens the store under the repo root and runs genesis on it.
// reg may be nil when no metrics are served.
func OpenRuntime(config *repo.Config, logger logrus.FieldLogger, reg prometheus.Registerer) (*Runtime, error) {
	store, err := storage.New(config.StorePath())
	if err != nil {
		return nil, err
	}
	rt, err := NewRuntime(store, config, logger, reg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return rt, nil
}

func NewRuntime(store *storage.Store, config *repo.Config, logger logrus.FieldLogger, reg prometheus.Registerer) (*Runtime, error) {
	l := ledger.New(store, config.Ledger.ExistentialDeposit, logger.WithField("module", "ledger"))
	bus := event.NewEventBus(reg, logger.WithField("module", "event"))

	tc := config.Treasury
	opts := []Option{
		WithPublisher(bus),
		WithMetrics(NewMetrics(reg)),
		WithApproveOrigin(originFromMembers(tc.Approvers)),
		WithRejectOrigin(originFromMembers(tc.Rejecters)),
	}
	if tc.BurnDestination == repo.SinkTreasury {
		opts = append(opts, withPotAsBurnDestination())
	}
	if tc.SlashDestination == repo.SinkBurn {
		opts = append(opts, WithSlashDestination(BurnSink{Currency: l}))
	}

	t, err := NewTreasury(store, l, Config{
		PalletID:              tc.PalletID,
		ProposalBond:          tc.ProposalBond,
		ProposalBondMinimum:   tc.ProposalBondMinimum,
		SpendPeriod:           tc.SpendPeriod,
		AllowedProposalPeriod: tc.AllowedProposalPeriod,
		Burn:                  tc.Burn,
		MaxApprovals:          tc.MaxApprovals,
	}, logger.WithField("module", "treasury"), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "new treasury")
	}

	endowed := make([]Endowment, 0, len(config.Ledger.Genesis))
	for _, e := range config.Ledger.Genesis {
		endowed = append(endowed, Endowment{Who: common.HexToAddress(e.Address), Balance: e.Balance})
	}
	if err := t.Genesis(endowed); err != nil {
		return nil, errors.Wrap(err, "genesis")
	}

	return &Runtime{
		Store:    store,
		Ledger:   l,
		Treasury: t,
		Bus:      bus,
	}, nil
}

func (r *Runtime) Close() error {
	r.Bus.Stop()
	return r.Store.Close()
}

func originFromMembers(members []string) EnsureOrigin {
	if len(members) == 0 {
		return EnsureRoot{}
	}
	addrs := make([]common.Address, 0, len(members))
	for _, m := range members {
		addrs = append(addrs, common.HexToAddress(m))
	}
	return EnsureEither{Left: EnsureRoot{}, Right: NewEnsureMembers(addrs...)}
}

// withPotAsBurnDestination keeps the burnt surplus in the pot.
func withPotAsBurnDestination() Option {
	return func(t *Treasury) { t.burnDestination = t }
}
