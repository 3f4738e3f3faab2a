package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/axiomesh/treasury/event"
	"github.com/axiomesh/treasury/repo"
	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	HeadChanMaxSize = 100

	reconnectAttempts = 5
)

type Dialer func(ctx context.Context, url string) (Client, error)

type NodeOption func(*Node)

// WithDialer replaces how the node reconnects to the chain endpoint.
func WithDialer(dial Dialer) NodeOption {
	return func(n *Node) { n.dial = dial }
}

func WithRetryBackoff(d time.Duration) NodeOption {
	return func(n *Node) { n.retryBackoff = d }
}

// Node drives the treasury from the chain: every new block head runs
// OnInitialize for the blocks not processed yet.
type Node struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	Client  Client
	Config  *repo.Config
	Logger  logrus.FieldLogger
	Runtime *Runtime

	dial         Dialer
	retryBackoff time.Duration

	headChan chan *ethtypes.Header
	subMu    sync.Mutex
	headSub  ethereum.Subscription
}

func NewNode(ctx context.Context, config *repo.Config, client Client, rt *Runtime, logger logrus.FieldLogger, opts ...NodeOption) *Node {
	ctx, cancel := context.WithCancel(ctx)
	n := &Node{
		ctx:          ctx,
		cancel:       cancel,
		Client:       client,
		Config:       config,
		Logger:       logger,
		Runtime:      rt,
		dial:         dialEthClient,
		retryBackoff: 5 * time.Second,
		headChan:     make(chan *ethtypes.Header, HeadChanMaxSize),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func dialEthClient(ctx context.Context, url string) (Client, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (n *Node) Start() error {
	n.subscribeEvents()

	if err := n.subscribeHead(); err != nil {
		return errors.Wrap(err, "subscribe new head")
	}

	if err := n.catchUp(); err != nil {
		return err
	}

	n.wg.Add(1)
	go n.listenHeads()

	return nil
}

func (n *Node) subscribeEvents() {
	for _, typ := range EventTypes {
		n.Runtime.Bus.SubscribeFunc(typ, func(evt event.Event) {
			n.Logger.WithFields(logrus.Fields{
				"type": evt.Type,
				"data": fmt.Sprintf("%+v", evt.Data),
			}).Info("Treasury event")
		})
	}
}

func (n *Node) subscribeHead() error {
	sub, err := n.Client.SubscribeNewHead(n.ctx, n.headChan)
	if err != nil {
		return err
	}

	n.subMu.Lock()
	n.headSub = sub
	n.subMu.Unlock()
	return nil
}

func (n *Node) subscription() ethereum.Subscription {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	return n.headSub
}

// catchUp processes every block up to the current head of the chain.
func (n *Node) catchUp() error {
	head, err := n.Client.HeaderByNumber(n.ctx, nil)
	if err != nil {
		return errors.Wrap(err, "get chain head")
	}
	return n.processUpTo(head.Number.Uint64())
}

func (n *Node) nextBlock() uint64 {
	if last, ok := n.Runtime.Treasury.BlockNumber(); ok {
		return last + 1
	}
	return n.Config.Chain.FromBlock
}

func (n *Node) processUpTo(head uint64) error {
	from := n.nextBlock()
	for b := from; b <= head; b++ {
		if err := n.ctx.Err(); err != nil {
			return err
		}
		weight, err := n.Runtime.Treasury.OnInitialize(b)
		if err != nil {
			return errors.Wrapf(err, "initialize block %d", b)
		}
		n.Logger.WithFields(logrus.Fields{"block": b, "weight": weight}).Debug("Block processed")
	}
	return nil
}

func (n *Node) listenHeads() {
	defer n.wg.Done()
	n.Logger.Info("Listen new heads")

	for {
		select {
		case <-n.ctx.Done():
			n.Logger.Info("Context done")
			return
		case err := <-n.subscription().Err():
			if n.ctx.Err() != nil {
				return
			}
			n.Logger.WithError(err).Warn("Head subscription dropped, reconnecting")
			if err := n.reconnect(); err != nil {
				n.Logger.WithError(err).Error("Reconnect failed")
				return
			}
		case head := <-n.headChan:
			if err := n.processUpTo(head.Number.Uint64()); err != nil {
				n.Logger.WithFields(logrus.Fields{"head": head.Number, "err": err}).Error("Process head failed")
			}
		}
	}
}

func (n *Node) reconnect() error {
	n.subscription().Unsubscribe()

	action := func(attempt uint) error {
		if n.ctx.Err() != nil {
			return n.ctx.Err()
		}
		client, err := n.dial(n.ctx, n.Config.Chain.DialUrl)
		if err != nil {
			n.Logger.WithFields(logrus.Fields{"attempt": attempt, "err": err}).Warn("Dial chain failed")
			return err
		}
		n.Client = client
		return n.subscribeHead()
	}
	if err := retry.Retry(action, strategy.Limit(reconnectAttempts), strategy.Backoff(backoff.Fibonacci(n.retryBackoff))); err != nil {
		return err
	}

	n.Logger.WithField("url", n.Config.Chain.DialUrl).Info("Reconnected")
	return n.catchUp()
}

// Stop ends the head loop, then closes the event bus and the store.
func (n *Node) Stop() error {
	n.cancel()
	if sub := n.subscription(); sub != nil {
		sub.Unsubscribe()
	}
	n.wg.Wait()

	return n.Runtime.Close()
}
