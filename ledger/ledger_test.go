package ledger

import (
	"testing"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/treasury/storage"
	"github.com/axiomesh/treasury/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x1100000000000000000000000000000000000001")
	bob   = common.HexToAddress("0x2200000000000000000000000000000000000002")
)

func newTestLedger(t *testing.T, ed types.Balance) (*Ledger, *storage.Store) {
	s, err := storage.NewMemory()
	require.Nil(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, ed, log.New()), s
}

func sumTotals(l *Ledger) types.Balance {
	var sum types.Balance
	for _, a := range l.Accounts() {
		sum += l.TotalBalance(a)
	}
	return sum
}

func TestReserveUnreserve(t *testing.T) {
	l, s := newTestLedger(t, 1)
	s.View(func() {
		l.MakeFreeBalanceBe(alice, 100)
		assert.Equal(t, types.Balance(100), l.TotalIssuance())

		assert.ErrorIs(t, l.Reserve(alice, 101), ErrInsufficientBalance)
		require.Nil(t, l.Reserve(alice, 40))
		assert.Equal(t, types.Balance(60), l.FreeBalance(alice))
		assert.Equal(t, types.Balance(40), l.ReservedBalance(alice))

		assert.Equal(t, types.Balance(10), l.Unreserve(alice, 50))
		assert.Equal(t, types.Balance(100), l.FreeBalance(alice))
		assert.Equal(t, types.Balance(0), l.ReservedBalance(alice))
	})
}

func TestSlashReserved(t *testing.T) {
	l, s := newTestLedger(t, 1)
	s.View(func() {
		l.MakeFreeBalanceBe(alice, 100)
		require.Nil(t, l.Reserve(alice, 30))

		imb, rest := l.SlashReserved(alice, 50)
		assert.Equal(t, types.Balance(30), imb.Peek())
		assert.Equal(t, types.Balance(20), rest)
		assert.Equal(t, types.Balance(70), l.TotalBalance(alice))

		l.ResolveCreating(bob, imb)
		assert.Equal(t, types.Balance(30), l.FreeBalance(bob))
		assert.Equal(t, l.TotalIssuance(), sumTotals(l))
	})
}

func TestDepositCreatingBelowExistential(t *testing.T) {
	l, s := newTestLedger(t, 10)
	s.View(func() {
		imb := l.DepositCreating(bob, 5)
		assert.True(t, imb.IsZero())
		assert.Equal(t, types.Balance(0), l.TotalBalance(bob))

		imb = l.DepositCreating(bob, 10)
		assert.Equal(t, types.Balance(10), imb.Peek())
		// existing accounts accept any amount
		imb = l.DepositCreating(bob, 1)
		assert.Equal(t, types.Balance(1), imb.Peek())
		assert.Equal(t, types.Balance(11), l.FreeBalance(bob))
	})
}

func TestSettleKeepAlive(t *testing.T) {
	l, s := newTestLedger(t, 10)
	s.View(func() {
		l.MakeFreeBalanceBe(alice, 100)

		imb := l.DepositCreating(bob, 95)
		problem, err := l.Settle(alice, imb, types.WithdrawTransfer, types.KeepAlive)
		assert.ErrorIs(t, err, ErrKeepAlive)
		assert.Equal(t, types.Balance(95), problem.Peek())
		assert.Equal(t, types.Balance(100), l.FreeBalance(alice))

		problem, err = l.Settle(alice, types.NewPositiveImbalance(90), types.WithdrawTransfer, types.KeepAlive)
		require.Nil(t, err)
		assert.True(t, problem.IsZero())
		assert.Equal(t, types.Balance(10), l.FreeBalance(alice))

		_, err = l.Settle(alice, types.NewPositiveImbalance(11), types.WithdrawTransfer, types.AllowDeath)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	})
}

func TestPairBurnLowersIssuance(t *testing.T) {
	l, s := newTestLedger(t, 1)
	s.View(func() {
		l.MakeFreeBalanceBe(alice, 100)
		debit, credit := l.Pair(25)
		_, err := l.Settle(alice, debit, types.WithdrawTransfer, types.KeepAlive)
		require.Nil(t, err)
		l.DropNegative(credit)

		assert.Equal(t, types.Balance(75), l.FreeBalance(alice))
		assert.Equal(t, types.Balance(75), l.TotalIssuance())
		assert.Equal(t, l.TotalIssuance(), sumTotals(l))
	})
}

func TestWithdrawReapsDust(t *testing.T) {
	l, s := newTestLedger(t, 10)
	s.View(func() {
		l.MakeFreeBalanceBe(alice, 100)
		neg, err := l.Withdraw(alice, 95, types.WithdrawTransfer, types.AllowDeath)
		require.Nil(t, err)
		l.DropNegative(neg)

		assert.Equal(t, types.Balance(0), l.TotalBalance(alice))
		assert.Empty(t, l.Accounts())
		assert.Equal(t, types.Balance(0), l.TotalIssuance())
	})
}

func TestWithdrawIgnoresReasons(t *testing.T) {
	l, s := newTestLedger(t, 10)
	s.View(func() {
		l.MakeFreeBalanceBe(alice, 100)
		l.MakeFreeBalanceBe(bob, 100)

		for _, who := range []common.Address{alice, bob} {
			reasons := types.WithdrawTransfer
			if who == bob {
				reasons = types.WithdrawTransactionPayment | types.WithdrawReserve | types.WithdrawFee | types.WithdrawTip
			}
			neg, err := l.Withdraw(who, 40, reasons, types.KeepAlive)
			require.Nil(t, err)
			assert.Equal(t, types.Balance(40), neg.Peek())
			l.DropNegative(neg)

			_, err = l.Withdraw(who, 55, reasons, types.KeepAlive)
			assert.ErrorIs(t, err, ErrKeepAlive)
		}
		assert.Equal(t, l.FreeBalance(alice), l.FreeBalance(bob))
		assert.Equal(t, types.Balance(120), l.TotalIssuance())
	})
}
