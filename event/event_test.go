package event

import (
	"sync"
	"testing"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testEventType = EventType("test.event")

func TestPublishSubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)

	eb := NewEventBus(nil, log.New())
	defer eb.Stop()

	_, ch := eb.Subscribe(testEventType)
	eb.Publish(testEventType, NewEvent(testEventType, 42))

	select {
	case evt, ok := <-ch:
		require.True(t, ok)
		assert.Equal(t, testEventType, evt.Type)
		assert.Equal(t, 42, evt.Data)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestSubscribeFunc(t *testing.T) {
	defer goleak.VerifyNone(t)

	eb := NewEventBus(nil, log.New())

	var mu sync.Mutex
	var got []any
	eb.SubscribeFunc(testEventType, func(evt Event) {
		mu.Lock()
		got = append(got, evt.Data)
		mu.Unlock()
	})

	for i := 0; i < 3; i++ {
		eb.Publish(testEventType, NewEvent(testEventType, i))
	}
	eb.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{0, 1, 2}, got)
}

func TestUnsubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)

	eb := NewEventBus(nil, log.New())
	defer eb.Stop()

	id, ch := eb.Subscribe(testEventType)
	eb.Unsubscribe(testEventType, id)

	_, ok := <-ch
	assert.False(t, ok)

	// publishing without subscribers is a no-op
	eb.Publish(testEventType, NewEvent(testEventType, 1))
}

func TestEventMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	eb := NewEventBus(reg, log.New())
	defer eb.Stop()

	eb.Publish(testEventType, NewEvent(testEventType, 1))
	eb.Publish(testEventType, NewEvent(testEventType, 2))

	assert.Equal(t, float64(2), testutil.ToFloat64(eb.eventsTotal.WithLabelValues(string(testEventType))))
}
