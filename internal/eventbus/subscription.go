package eventbus

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrUnsubscribed is returned by Err when a client unsubscribes.
	ErrUnsubscribed = errors.New("client unsubscribed")

	// ErrOutOfCapacity is returned by Err when a client is not pulling events
	// fast enough. Note the client's subscription will be terminated.
	ErrOutOfCapacity = errors.New("client is not pulling events fast enough")

	// ErrTerminated is returned by Err when the bus is stopped.
	ErrTerminated = errors.New("event bus terminated")
)

// A Subscription delivers events of the types it was created for. Events are
// never dropped silently: a subscriber that lets Out fill up is canceled
// with ErrOutOfCapacity.
type Subscription struct {
	id    string
	out   chan Event
	types map[EventType]struct{}

	canceled chan struct{}
	mtx      sync.RWMutex
	err      error
}

func newSubscription(capacity int, eventTypes []EventType) *Subscription {
	s := &Subscription{
		id:       uuid.NewString(),
		out:      make(chan Event, capacity),
		canceled: make(chan struct{}),
	}
	if len(eventTypes) > 0 {
		s.types = make(map[EventType]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			s.types[t] = struct{}{}
		}
	}
	return s
}

// ID returns the unique identifier of the subscription.
func (s *Subscription) ID() string { return s.id }

// Out returns a channel onto which events are published. It is never closed;
// select on Canceled as well.
func (s *Subscription) Out() <-chan Event { return s.out }

// Canceled returns a channel that's closed when the subscription is
// terminated.
func (s *Subscription) Canceled() <-chan struct{} { return s.canceled }

// Err returns nil until Canceled is closed, then the reason: ErrUnsubscribed,
// ErrOutOfCapacity, ErrTerminated or the subscribing context's error.
func (s *Subscription) Err() error {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.err
}

// Next blocks until an event is available, the subscription is canceled or
// ctx ends. Buffered events are delivered before cancellation is reported.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	select {
	case ev := <-s.out:
		return ev, nil
	default:
	}

	select {
	case ev := <-s.out:
		return ev, nil
	case <-s.canceled:
		return nil, s.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Subscription) matches(ev Event) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[ev.Type()]
	return ok
}

// cancel must be called at most once, with the bus lock held.
func (s *Subscription) cancel(err error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.err = err
	close(s.canceled)
}
