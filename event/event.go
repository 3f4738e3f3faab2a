package event

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const EventQueueSize = 64

type EventType string

type EventSubscriberId int

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

type subscriber struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

func (s *subscriber) deliver(evt Event) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deliver panic: %v", r)
		}
	}()
	s.ch <- evt
	return nil
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// EventBus fans out published events to the subscribers of their type.
// Publish blocks until every subscriber channel accepted the event.
type EventBus struct {
	subscribers map[EventType]map[EventSubscriberId]*subscriber
	lastSubId   EventSubscriberId
	mu          sync.RWMutex
	wg          sync.WaitGroup
	logger      logrus.FieldLogger

	eventsTotal *prometheus.CounterVec
}

func NewEventBus(promRegistry prometheus.Registerer, logger logrus.FieldLogger) *EventBus {
	e := &EventBus{
		subscribers: make(map[EventType]map[EventSubscriberId]*subscriber),
		logger:      logger,
	}
	if promRegistry != nil {
		e.eventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treasury_events_total",
				Help: "Number of published events by type",
			},
			[]string{"type"},
		)
		if err := promRegistry.Register(e.eventsTotal); err != nil {
			e.logger.WithError(err).Warn("register event metrics")
			e.eventsTotal = nil
		}
	}
	return e
}

// Subscribe returns a channel receiving events of the given type
func (e *EventBus) Subscribe(eventType EventType) (EventSubscriberId, <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub := &subscriber{ch: make(chan Event, EventQueueSize)}
	e.lastSubId++
	subId := e.lastSubId
	if _, ok := e.subscribers[eventType]; !ok {
		e.subscribers[eventType] = make(map[EventSubscriberId]*subscriber)
	}
	e.subscribers[eventType][subId] = sub
	return subId, sub.ch
}

// SubscribeFunc calls handlerFunc for every event of the given type until
// the subscription ends
func (e *EventBus) SubscribeFunc(eventType EventType, handlerFunc EventHandlerFunc) EventSubscriberId {
	subId, evtCh := e.Subscribe(eventType)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for evt := range evtCh {
			handlerFunc(evt)
		}
	}()
	return subId
}

func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	var sub *subscriber
	if evtTypeSubs, ok := e.subscribers[eventType]; ok {
		sub = evtTypeSubs[subId]
		delete(evtTypeSubs, subId)
		if len(evtTypeSubs) == 0 {
			delete(e.subscribers, eventType)
		}
	}
	e.mu.Unlock()

	if sub != nil {
		sub.close()
	}
}

func (e *EventBus) Publish(eventType EventType, evt Event) {
	e.mu.RLock()
	subs := make(map[EventSubscriberId]*subscriber, len(e.subscribers[eventType]))
	for id, sub := range e.subscribers[eventType] {
		subs[id] = sub
	}
	e.mu.RUnlock()

	for id, sub := range subs {
		if err := sub.deliver(evt); err != nil {
			e.logger.WithFields(logrus.Fields{"type": eventType, "err": err}).Debug("event delivery error")
			e.Unsubscribe(eventType, id)
		}
	}
	if e.eventsTotal != nil {
		e.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

// Stop closes every subscription and waits for SubscribeFunc handlers to
// return.
func (e *EventBus) Stop() {
	e.mu.Lock()
	subs := e.subscribers
	e.subscribers = make(map[EventType]map[EventSubscriberId]*subscriber)
	e.mu.Unlock()

	for _, evtTypeSubs := range subs {
		for _, sub := range evtTypeSubs {
			sub.close()
		}
	}
	e.wg.Wait()
}
