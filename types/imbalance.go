package types

// PositiveImbalance is value that has been added to accounts without the
// total issuance being raised yet. It must be settled against a matching
// NegativeImbalance or dropped, which raises issuance.
type PositiveImbalance struct {
	amount Balance
}

// NegativeImbalance is value that has been taken out of accounts without the
// total issuance being lowered yet. It must be resolved into an account or
// dropped, which lowers issuance.
type NegativeImbalance struct {
	amount Balance
}

func NewPositiveImbalance(amount Balance) PositiveImbalance {
	return PositiveImbalance{amount: amount}
}

func NewNegativeImbalance(amount Balance) NegativeImbalance {
	return NegativeImbalance{amount: amount}
}

func (i PositiveImbalance) Peek() Balance {
	return i.amount
}

func (i PositiveImbalance) IsZero() bool {
	return i.amount == 0
}

// Subsume merges other into i.
func (i *PositiveImbalance) Subsume(other PositiveImbalance) {
	i.amount += other.amount
}

func (i NegativeImbalance) Peek() Balance {
	return i.amount
}

func (i NegativeImbalance) IsZero() bool {
	return i.amount == 0
}

func (i *NegativeImbalance) Subsume(other NegativeImbalance) {
	i.amount += other.amount
}

// WithdrawReasons is a bitmask of why funds leave an account.
type WithdrawReasons uint8

const (
	WithdrawTransactionPayment WithdrawReasons = 1 << iota
	WithdrawTransfer
	WithdrawReserve
	WithdrawFee
	WithdrawTip
)

// ExistenceRequirement tells a withdrawal whether it may reap the account.
type ExistenceRequirement uint8

const (
	// KeepAlive rejects a withdrawal that would leave the free balance below
	// the existential deposit.
	KeepAlive ExistenceRequirement = iota
	AllowDeath
)
