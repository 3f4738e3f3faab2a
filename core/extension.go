package core

import (
	"github.com/axiomesh/treasury/types"
)

// SpendFunds lets other modules spend what is left of the budget during a
// spend period. Implementations must deduct what they spend from budget,
// subsume any imbalance they create into imbalance, add their work to
// weight, and set missedAny when something could not be funded, which
// prevents the surplus from being burnt.
type SpendFunds interface {
	SpendFunds(budget *types.Balance, imbalance *types.PositiveImbalance, weight *Weight, missedAny *bool)
}

// SpendFundsFunc adapts a function to SpendFunds.
type SpendFundsFunc func(budget *types.Balance, imbalance *types.PositiveImbalance, weight *Weight, missedAny *bool)

func (f SpendFundsFunc) SpendFunds(budget *types.Balance, imbalance *types.PositiveImbalance, weight *Weight, missedAny *bool) {
	f(budget, imbalance, weight, missedAny)
}

// SpendFundsChain runs its handlers in registration order.
type SpendFundsChain []SpendFunds

func (c SpendFundsChain) SpendFunds(budget *types.Balance, imbalance *types.PositiveImbalance, weight *Weight, missedAny *bool) {
	for _, h := range c {
		h.SpendFunds(budget, imbalance, weight, missedAny)
	}
}
