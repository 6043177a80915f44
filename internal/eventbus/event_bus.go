package eventbus

import (
	"context"
	"errors"
	"sync"

	"github.com/tendermint/ledgersync/libs/log"
	"github.com/tendermint/ledgersync/libs/service"
)

// DefaultCapacity is the buffer size used when a subscriber asks for none.
const DefaultCapacity = 100

// EventBus fans events out from state sync to consensus, the mempool and
// anything else that subscribes. Publish never blocks.
type EventBus struct {
	service.BaseService
	logger log.Logger

	mtx  sync.Mutex
	subs map[string]*Subscription
}

// NewDefault returns a new event bus.
func NewDefault(l log.Logger) *EventBus {
	logger := l.With("module", "eventbus")
	b := &EventBus{
		logger: logger,
		subs:   make(map[string]*Subscription),
	}
	b.BaseService = *service.NewBaseService(logger, "EventBus", b)
	return b
}

func (b *EventBus) OnStart(ctx context.Context) error { return nil }

func (b *EventBus) OnStop() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for id, sub := range b.subs {
		sub.cancel(ErrTerminated)
		delete(b.subs, id)
	}
}

// NumClients returns the number of live subscriptions.
func (b *EventBus) NumClients() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return len(b.subs)
}

// Subscribe registers a subscriber for the given event types (all types if
// none are given). The subscription ends when ctx is done.
func (b *EventBus) Subscribe(ctx context.Context, capacity int, eventTypes ...EventType) (*Subscription, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if !b.IsRunning() {
		return nil, errors.New("event bus is not running")
	}

	sub := newSubscription(capacity, eventTypes)

	b.mtx.Lock()
	b.subs[sub.id] = sub
	b.mtx.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			b.remove(sub.id, ctx.Err())
		case <-sub.canceled:
		}
	}()

	return sub, nil
}

// Unsubscribe cancels sub with ErrUnsubscribed.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.remove(sub.id, ErrUnsubscribed)
}

func (b *EventBus) remove(id string, reason error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if sub, ok := b.subs[id]; ok {
		sub.cancel(reason)
		delete(b.subs, id)
	}
}

// Publish delivers ev to every matching subscriber. A subscriber whose
// buffer is full is canceled with ErrOutOfCapacity.
func (b *EventBus) Publish(ev Event) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	for id, sub := range b.subs {
		if !sub.matches(ev) {
			continue
		}
		select {
		case sub.out <- ev:
		default:
			b.logger.Error("terminating slow subscriber", "subscription", id, "event", ev.Type())
			sub.cancel(ErrOutOfCapacity)
			delete(b.subs, id)
		}
	}
}
