package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Balance is an amount of the native currency in its smallest unit.
type Balance = uint64

// PermillAccuracy is the denominator of a Permill.
const PermillAccuracy = 1_000_000

// Permill is a fraction in parts per million, clamped to [0, 1].
type Permill uint32

func PermillFromParts(parts uint32) Permill {
	if parts > PermillAccuracy {
		parts = PermillAccuracy
	}
	return Permill(parts)
}

func PermillFromPercent(percent uint32) Permill {
	if percent > 100 {
		percent = 100
	}
	return Permill(percent * (PermillAccuracy / 100))
}

func (p Permill) Parts() uint32 {
	return uint32(p)
}

// Mul returns p * value rounded to the nearest unit. The product is
// computed in 256 bits so large balances never overflow.
func (p Permill) Mul(value Balance) Balance {
	parts := p.Parts()
	if parts > PermillAccuracy {
		parts = PermillAccuracy
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(value), uint256.NewInt(uint64(parts)))
	prod.Add(prod, uint256.NewInt(PermillAccuracy/2))
	prod.Div(prod, uint256.NewInt(PermillAccuracy))
	return prod.Uint64()
}

func (p Permill) String() string {
	return fmt.Sprintf("%d.%04d%%", p/10_000, p%10_000)
}

// SaturatingSub returns a - b, or zero when b > a.
func SaturatingSub(a, b Balance) Balance {
	if b > a {
		return 0
	}
	return a - b
}

func MinBalance(a, b Balance) Balance {
	if a < b {
		return a
	}
	return b
}

func MaxBalance(a, b Balance) Balance {
	if a > b {
		return a
	}
	return b
}
