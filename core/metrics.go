package core

import (
	"github.com/axiomesh/treasury/event"
	"github.com/axiomesh/treasury/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	pot              prometheus.Gauge
	approvals        prometheus.Gauge
	proposals        prometheus.Gauge
	waitingProposals prometheus.Gauge
	blockNumber      prometheus.Gauge
	awarded          prometheus.Counter
	burnt            prometheus.Counter
	slashed          prometheus.Counter
	deposited        prometheus.Counter
	spendCycles      prometheus.Counter
}

// NewMetrics registers the treasury metrics with reg. A nil reg keeps them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		pot: f.NewGauge(prometheus.GaugeOpts{
			Name: "treasury_pot",
			Help: "Spendable balance of the treasury",
		}),
		approvals: f.NewGauge(prometheus.GaugeOpts{
			Name: "treasury_approvals",
			Help: "Approved proposals waiting for funds",
		}),
		proposals: f.NewGauge(prometheus.GaugeOpts{
			Name: "treasury_proposals",
			Help: "Active proposals",
		}),
		waitingProposals: f.NewGauge(prometheus.GaugeOpts{
			Name: "treasury_waiting_proposals",
			Help: "Proposals waiting for the next spend period",
		}),
		blockNumber: f.NewGauge(prometheus.GaugeOpts{
			Name: "treasury_block_number",
			Help: "Last processed block",
		}),
		awarded: f.NewCounter(prometheus.CounterOpts{
			Name: "treasury_awarded_total",
			Help: "Value paid to beneficiaries",
		}),
		burnt: f.NewCounter(prometheus.CounterOpts{
			Name: "treasury_burnt_total",
			Help: "Value burnt from the surplus",
		}),
		slashed: f.NewCounter(prometheus.CounterOpts{
			Name: "treasury_slashed_total",
			Help: "Bonds slashed from rejected proposals",
		}),
		deposited: f.NewCounter(prometheus.CounterOpts{
			Name: "treasury_deposited_total",
			Help: "Value paid into the pot",
		}),
		spendCycles: f.NewCounter(prometheus.CounterOpts{
			Name: "treasury_spend_cycles_total",
			Help: "Spend periods processed",
		}),
	}
}

func (m *Metrics) observeEvent(evt event.Event) {
	switch e := evt.Data.(type) {
	case Awarded:
		m.awarded.Add(float64(e.Award))
	case Burnt:
		m.burnt.Add(float64(e.Burn))
	case Deposit:
		m.deposited.Add(float64(e.Value))
	case Spending:
		m.spendCycles.Inc()
	}
}

func (m *Metrics) observeSlashed(v types.Balance) {
	m.slashed.Add(float64(v))
}

// observeState must run inside a store view.
func (m *Metrics) observeState(t *Treasury) {
	m.pot.Set(float64(t.pot()))
	m.approvals.Set(float64(t.approvals.Len()))
	m.blockNumber.Set(float64(t.blockNumber()))
	m.proposals.Set(float64(len(t.registry.Proposals())))
	m.waitingProposals.Set(float64(len(t.registry.WaitingProposals())))
}
