package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/ledgersync/libs/log"
)

func startBus(ctx context.Context, t *testing.T) *EventBus {
	t.Helper()
	bus := NewDefault(log.NewNopLogger())
	require.NoError(t, bus.Start(ctx))
	t.Cleanup(func() { _ = bus.Stop() })
	return bus
}

func TestEventBusPublishFiltersByType(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := startBus(ctx, t)

	commits, err := bus.Subscribe(ctx, 10, EventCommit)
	require.NoError(t, err)
	all, err := bus.Subscribe(ctx, 10)
	require.NoError(t, err)

	bus.Publish(SyncStatusEvent{Status: CaughtUp, Version: 10})
	bus.Publish(CommitEvent{FirstVersion: 1, LastVersion: 10})

	ev, err := commits.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, CommitEvent{FirstVersion: 1, LastVersion: 10}, ev)

	ev, err = all.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventSyncStatus, ev.Type())
	ev, err = all.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventCommit, ev.Type())

	assert.Equal(t, 2, bus.NumClients())
}

func TestEventBusSlowSubscriberIsTerminated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := startBus(ctx, t)

	sub, err := bus.Subscribe(ctx, 1, EventCommit)
	require.NoError(t, err)

	bus.Publish(CommitEvent{LastVersion: 1})
	bus.Publish(CommitEvent{LastVersion: 2})

	select {
	case <-sub.Canceled():
	case <-time.After(time.Second):
		t.Fatal("slow subscriber was not canceled")
	}
	assert.ErrorIs(t, sub.Err(), ErrOutOfCapacity)

	// the buffered event is still delivered before the cancellation
	ev, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, CommitEvent{LastVersion: 1}, ev)

	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, ErrOutOfCapacity)
	assert.Equal(t, 0, bus.NumClients())
}

func TestEventBusUnsubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := startBus(ctx, t)

	sub, err := bus.Subscribe(ctx, 0)
	require.NoError(t, err)
	bus.Unsubscribe(sub)

	<-sub.Canceled()
	assert.ErrorIs(t, sub.Err(), ErrUnsubscribed)
}

func TestEventBusContextCancelEndsSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := startBus(ctx, t)

	subCtx, subCancel := context.WithCancel(ctx)
	sub, err := bus.Subscribe(subCtx, 0)
	require.NoError(t, err)
	subCancel()

	<-sub.Canceled()
	assert.True(t, errors.Is(sub.Err(), context.Canceled))
}

func TestEventBusStopTerminatesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewDefault(log.NewNopLogger())
	_, err := bus.Subscribe(ctx, 0)
	require.Error(t, err)

	require.NoError(t, bus.Start(ctx))
	sub, err := bus.Subscribe(ctx, 0)
	require.NoError(t, err)

	require.NoError(t, bus.Stop())
	<-sub.Canceled()
	assert.ErrorIs(t, sub.Err(), ErrTerminated)
}
