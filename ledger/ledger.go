package ledger

import (
	"encoding/binary"
	"errors"

	"github.com/axiomesh/treasury/storage"
	"github.com/axiomesh/treasury/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrKeepAlive           = errors.New("withdrawal would kill account")
)

var (
	accountPrefix    = []byte("balances/account/")
	totalIssuanceKey = []byte("balances/total_issuance")
)

type Store interface {
	storage.KV
	Keys(prefix []byte) [][]byte
}

type AccountData struct {
	Free     types.Balance
	Reserved types.Balance
}

func (a AccountData) Total() types.Balance {
	return a.Free + a.Reserved
}

// Ledger keeps free and reserved balances per account plus the total
// issuance. Accounts whose total falls below the existential deposit are
// reaped and their dust is burnt.
type Ledger struct {
	store              Store
	existentialDeposit types.Balance
	logger             logrus.FieldLogger
}

func New(store Store, existentialDeposit types.Balance, logger logrus.FieldLogger) *Ledger {
	return &Ledger{
		store:              store,
		existentialDeposit: existentialDeposit,
		logger:             logger,
	}
}

func accountKey(who common.Address) []byte {
	return append(append([]byte(nil), accountPrefix...), who.Bytes()...)
}

func (l *Ledger) Account(who common.Address) AccountData {
	var acc AccountData
	data := l.store.Get(accountKey(who))
	if data == nil {
		return acc
	}
	if err := rlp.DecodeBytes(data, &acc); err != nil {
		l.logger.WithFields(logrus.Fields{"account": who.Hex(), "err": err}).Error("decode account")
		return AccountData{}
	}
	return acc
}

// setAccount writes acc, reaping it when its total is below the existential
// deposit. It returns the dust that was dropped.
func (l *Ledger) setAccount(who common.Address, acc AccountData) types.Balance {
	total := acc.Total()
	if total == 0 {
		l.store.Delete(accountKey(who))
		return 0
	}
	if total < l.existentialDeposit {
		l.store.Delete(accountKey(who))
		l.DropNegative(types.NewNegativeImbalance(total))
		l.logger.WithFields(logrus.Fields{"account": who.Hex(), "dust": total}).Debug("account reaped")
		return total
	}
	data, err := rlp.EncodeToBytes(&acc)
	if err != nil {
		panic(err)
	}
	l.store.Put(accountKey(who), data)
	return 0
}

// Accounts returns every account holding a balance.
func (l *Ledger) Accounts() []common.Address {
	keys := l.store.Keys(accountPrefix)
	addrs := make([]common.Address, 0, len(keys))
	for _, k := range keys {
		addrs = append(addrs, common.BytesToAddress(k[len(accountPrefix):]))
	}
	return addrs
}

func (l *Ledger) FreeBalance(who common.Address) types.Balance {
	return l.Account(who).Free
}

func (l *Ledger) ReservedBalance(who common.Address) types.Balance {
	return l.Account(who).Reserved
}

func (l *Ledger) TotalBalance(who common.Address) types.Balance {
	return l.Account(who).Total()
}

func (l *Ledger) MinimumBalance() types.Balance {
	return l.existentialDeposit
}

func (l *Ledger) TotalIssuance() types.Balance {
	data := l.store.Get(totalIssuanceKey)
	if len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

func (l *Ledger) setTotalIssuance(v types.Balance) {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, v)
	l.store.Put(totalIssuanceKey, data)
}

// Reserve moves amount from free to reserved balance.
func (l *Ledger) Reserve(who common.Address, amount types.Balance) error {
	if amount == 0 {
		return nil
	}
	acc := l.Account(who)
	if acc.Free < amount {
		return ErrInsufficientBalance
	}
	acc.Free -= amount
	acc.Reserved += amount
	l.setAccount(who, acc)
	return nil
}

// Unreserve moves up to amount back to the free balance and returns the part
// that could not be unreserved.
func (l *Ledger) Unreserve(who common.Address, amount types.Balance) types.Balance {
	if amount == 0 {
		return 0
	}
	acc := l.Account(who)
	actual := types.MinBalance(acc.Reserved, amount)
	acc.Reserved -= actual
	acc.Free += actual
	l.setAccount(who, acc)
	return amount - actual
}

// SlashReserved removes up to amount from the reserved balance. It returns
// the removed value as a negative imbalance and the part that could not be
// slashed.
func (l *Ledger) SlashReserved(who common.Address, amount types.Balance) (types.NegativeImbalance, types.Balance) {
	if amount == 0 {
		return types.NegativeImbalance{}, 0
	}
	acc := l.Account(who)
	actual := types.MinBalance(acc.Reserved, amount)
	acc.Reserved -= actual
	l.setAccount(who, acc)
	return types.NewNegativeImbalance(actual), amount - actual
}

// DepositCreating adds value to the free balance, creating the account when
// value reaches the existential deposit. Nothing happens otherwise.
func (l *Ledger) DepositCreating(who common.Address, value types.Balance) types.PositiveImbalance {
	if value == 0 {
		return types.PositiveImbalance{}
	}
	acc := l.Account(who)
	if acc.Total() == 0 && value < l.existentialDeposit {
		return types.PositiveImbalance{}
	}
	acc.Free += value
	l.setAccount(who, acc)
	return types.NewPositiveImbalance(value)
}

// Withdraw removes value from the free balance. The ledger keeps no balance
// locks, so reasons never restrict a withdrawal.
func (l *Ledger) Withdraw(who common.Address, value types.Balance, reasons types.WithdrawReasons, liveness types.ExistenceRequirement) (types.NegativeImbalance, error) {
	if value == 0 {
		return types.NegativeImbalance{}, nil
	}
	acc := l.Account(who)
	if acc.Free < value {
		return types.NegativeImbalance{}, ErrInsufficientBalance
	}
	before := acc.Total()
	acc.Free -= value
	wouldBeDead := acc.Total() < l.existentialDeposit
	if liveness == types.KeepAlive && wouldBeDead && before >= l.existentialDeposit {
		return types.NegativeImbalance{}, ErrKeepAlive
	}
	l.setAccount(who, acc)
	return types.NewNegativeImbalance(value), nil
}

// Settle withdraws the value of a positive imbalance from who, cancelling it.
// On failure the imbalance is handed back untouched.
func (l *Ledger) Settle(who common.Address, value types.PositiveImbalance, reasons types.WithdrawReasons, liveness types.ExistenceRequirement) (types.PositiveImbalance, error) {
	if _, err := l.Withdraw(who, value.Peek(), reasons, liveness); err != nil {
		return value, err
	}
	return types.PositiveImbalance{}, nil
}

// Pair creates a matched positive and negative imbalance of amount.
func (l *Ledger) Pair(amount types.Balance) (types.PositiveImbalance, types.NegativeImbalance) {
	return types.NewPositiveImbalance(amount), types.NewNegativeImbalance(amount)
}

// ResolveCreating credits a negative imbalance to who. Value that cannot be
// credited is burnt.
func (l *Ledger) ResolveCreating(who common.Address, value types.NegativeImbalance) {
	credited := l.DepositCreating(who, value.Peek())
	if rest := value.Peek() - credited.Peek(); rest > 0 {
		l.DropNegative(types.NewNegativeImbalance(rest))
	}
}

// DropPositive accounts for a positive imbalance by raising issuance.
func (l *Ledger) DropPositive(value types.PositiveImbalance) {
	if value.IsZero() {
		return
	}
	l.setTotalIssuance(l.TotalIssuance() + value.Peek())
}

// DropNegative accounts for a negative imbalance by lowering issuance.
func (l *Ledger) DropNegative(value types.NegativeImbalance) {
	if value.IsZero() {
		return
	}
	l.setTotalIssuance(types.SaturatingSub(l.TotalIssuance(), value.Peek()))
}

// MakeFreeBalanceBe forces the free balance of who, adjusting issuance by the
// difference.
func (l *Ledger) MakeFreeBalanceBe(who common.Address, balance types.Balance) {
	acc := l.Account(who)
	if acc.Reserved == 0 && balance < l.existentialDeposit {
		balance = 0
	}
	if balance > acc.Free {
		l.DropPositive(types.NewPositiveImbalance(balance - acc.Free))
	} else {
		l.DropNegative(types.NewNegativeImbalance(acc.Free - balance))
	}
	acc.Free = balance
	l.setAccount(who, acc)
}
