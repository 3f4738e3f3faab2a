package core

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is the chain endpoint driving the treasury with new block heads.
type Client interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)

	SubscribeNewHead(ctx context.Context, ch chan<- *ethtypes.Header) (ethereum.Subscription, error)
}

var (
	_ Client = (*ethclient.Client)(nil)
	_ Client = (*MockClient)(nil)
)

// MockClient is an in-process chain whose head only moves with PushHead.
type MockClient struct {
	mu   sync.Mutex
	head uint64
	subs []*MockSubscription

	// SubscribeErr fails every SubscribeNewHead call when set
	SubscribeErr error
}

func NewMockClient(head uint64) *MockClient {
	return &MockClient{head: head}
}

func (mc *MockClient) HeaderByNumber(_ context.Context, number *big.Int) (*ethtypes.Header, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	n := mc.head
	if number != nil {
		if number.Uint64() > mc.head {
			return nil, ethereum.NotFound
		}
		n = number.Uint64()
	}
	return &ethtypes.Header{Number: new(big.Int).SetUint64(n)}, nil
}

func (mc *MockClient) SubscribeNewHead(_ context.Context, ch chan<- *ethtypes.Header) (ethereum.Subscription, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.SubscribeErr != nil {
		return nil, mc.SubscribeErr
	}
	sub := &MockSubscription{
		ch:   ch,
		err:  make(chan error, 1),
		quit: make(chan struct{}),
	}
	mc.subs = append(mc.subs, sub)
	return sub, nil
}

// PushHead moves the head to n and delivers it to every live subscription.
func (mc *MockClient) PushHead(n uint64) {
	mc.mu.Lock()
	mc.head = n
	subs := append([]*MockSubscription(nil), mc.subs...)
	mc.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(&ethtypes.Header{Number: new(big.Int).SetUint64(n)})
	}
}

// FailSubscriptions reports err on every live subscription and drops them.
func (mc *MockClient) FailSubscriptions(err error) {
	mc.mu.Lock()
	subs := mc.subs
	mc.subs = nil
	mc.mu.Unlock()

	for _, sub := range subs {
		sub.fail(err)
	}
}

type MockSubscription struct {
	ch chan<- *ethtypes.Header

	mu     sync.Mutex
	closed bool
	err    chan error
	quit   chan struct{}
}

func (ms *MockSubscription) deliver(h *ethtypes.Header) {
	select {
	case ms.ch <- h:
	case <-ms.quit:
	}
}

func (ms *MockSubscription) fail(err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return
	}
	ms.closed = true
	ms.err <- err
	close(ms.quit)
}

func (ms *MockSubscription) Unsubscribe() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return
	}
	ms.closed = true
	close(ms.quit)
	close(ms.err)
}

func (ms *MockSubscription) Err() <-chan error {
	return ms.err
}
