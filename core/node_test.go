package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/treasury/repo"
	"github.com/axiomesh/treasury/storage"
	"github.com/axiomesh/treasury/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testRepoConfig(t *testing.T) *repo.Config {
	c := repo.DefaultConfig(t.TempDir())
	c.Log.Level = "debug"
	c.Treasury.SpendPeriod = 2
	c.Treasury.AllowedProposalPeriod = 2
	c.Treasury.Burn = types.PermillFromPercent(50)
	c.Ledger.Genesis = []repo.Endowment{
		{Address: alice.Hex(), Balance: 100},
		{Address: bob.Hex(), Balance: 100},
	}
	return c
}

func newTestRuntime(t *testing.T, c *repo.Config) *Runtime {
	store, err := storage.NewMemory()
	require.Nil(t, err)
	rt, err := NewRuntime(store, c, log.New(), prometheus.NewRegistry())
	require.Nil(t, err)
	return rt
}

func freeOf(rt *Runtime, who common.Address) types.Balance {
	var v types.Balance
	rt.Store.View(func() {
		v = rt.Ledger.FreeBalance(who)
	})
	return v
}

func TestNewRuntime(t *testing.T) {
	t.Run("genesis and origins", func(t *testing.T) {
		c := testRepoConfig(t)
		c.Treasury.Approvers = []string{bob.Hex()}
		rt := newTestRuntime(t, c)
		defer rt.Close()

		assert.Equal(t, types.Balance(100), freeOf(rt, alice))

		_, err := rt.Treasury.ProposeSpend(SignedOrigin(alice), 10, carol, 0)
		require.Nil(t, err)
		assert.Nil(t, rt.Treasury.ApproveProposal(SignedOrigin(bob), 0))
		assert.ErrorIs(t, rt.Treasury.ApproveProposal(SignedOrigin(alice), 0), ErrBadOrigin)
		assert.ErrorIs(t, rt.Treasury.RejectProposal(SignedOrigin(bob), 0), ErrBadOrigin)
	})

	t.Run("slashes burn and surplus stays", func(t *testing.T) {
		c := testRepoConfig(t)
		c.Treasury.SlashDestination = repo.SinkBurn
		c.Treasury.BurnDestination = repo.SinkTreasury
		rt := newTestRuntime(t, c)
		defer rt.Close()

		require.Nil(t, rt.Treasury.Fund(alice, 50))
		_, err := rt.Treasury.ProposeSpend(SignedOrigin(bob), 100, carol, 0)
		require.Nil(t, err)
		require.Nil(t, rt.Treasury.RejectProposal(RootOrigin(), 0))
		assert.Equal(t, types.Balance(50), rt.Treasury.Pot())

		_, err = rt.Treasury.OnInitialize(2)
		require.Nil(t, err)
		assert.Equal(t, types.Balance(50), rt.Treasury.Pot())
	})
}

func TestNode(t *testing.T) {
	c := testRepoConfig(t)
	rt := newTestRuntime(t, c)
	require.Nil(t, rt.Treasury.Fund(alice, 50))

	ignore := goleak.IgnoreCurrent()
	defer goleak.VerifyNone(t, ignore)

	client := NewMockClient(3)
	node := NewNode(context.Background(), c, client, rt, log.New(),
		WithDialer(func(context.Context, string) (Client, error) { return client, nil }),
		WithRetryBackoff(10*time.Millisecond),
	)
	require.Nil(t, node.Start())

	// blocks 1 to 3 were processed during start, burning half the pot at 2
	n, ok := rt.Treasury.BlockNumber()
	require.True(t, ok)
	assert.Equal(t, uint64(3), n)
	assert.Equal(t, types.Balance(25), rt.Treasury.Pot())

	_, err := rt.Treasury.ProposeSpend(SignedOrigin(alice), 20, carol, 0)
	require.Nil(t, err)
	require.Nil(t, rt.Treasury.ApproveProposal(RootOrigin(), 0))

	client.PushHead(4)
	assert.Eventually(t, func() bool {
		n, _ := rt.Treasury.BlockNumber()
		return n == 4
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, types.Balance(20), freeOf(rt, carol))

	client.FailSubscriptions(errors.New("connection lost"))
	client.PushHead(7)
	assert.Eventually(t, func() bool {
		n, _ := rt.Treasury.BlockNumber()
		return n == 7
	}, 5*time.Second, 10*time.Millisecond)

	// stale heads are ignored
	client.PushHead(5)
	client.PushHead(8)
	assert.Eventually(t, func() bool {
		n, _ := rt.Treasury.BlockNumber()
		return n == 8
	}, 5*time.Second, 10*time.Millisecond)

	require.Nil(t, node.Stop())
}

func TestNodeResumesFromStore(t *testing.T) {
	c := testRepoConfig(t)
	c.Chain.FromBlock = 10

	rt, err := OpenRuntime(c, log.New(), nil)
	require.Nil(t, err)
	node := NewNode(context.Background(), c, NewMockClient(12), rt, log.New())
	require.Nil(t, node.Start())
	n, _ := rt.Treasury.BlockNumber()
	assert.Equal(t, uint64(12), n)
	require.Nil(t, node.Stop())

	rt, err = OpenRuntime(c, log.New(), nil)
	require.Nil(t, err)
	assert.Equal(t, types.Balance(100), freeOf(rt, alice))
	node = NewNode(context.Background(), c, NewMockClient(15), rt, log.New())
	require.Nil(t, node.Start())
	n, _ = rt.Treasury.BlockNumber()
	assert.Equal(t, uint64(15), n)
	require.Nil(t, node.Stop())
}

func TestNodeStartFails(t *testing.T) {
	c := testRepoConfig(t)
	rt := newTestRuntime(t, c)
	defer rt.Close()

	client := NewMockClient(1)
	client.SubscribeErr = errors.New("not supported")
	node := NewNode(context.Background(), c, client, rt, log.New())
	assert.NotNil(t, node.Start())
}
