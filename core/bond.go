package core

import (
	"github.com/axiomesh/treasury/types"
)

// CalculateBond returns the deposit needed for a proposal whose spend is value.
func CalculateBond(bond types.Permill, minimum types.Balance, value types.Balance) types.Balance {
	return types.MaxBalance(minimum, bond.Mul(value))
}
