package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testService struct {
	BaseService

	started chan struct{}
	stopped chan struct{}
}

func newTestService() *testService {
	ts := &testService{
		started: make(chan struct{}, 1),
		stopped: make(chan struct{}, 1),
	}
	ts.BaseService = *NewBaseService(nil, "TestService", ts)
	return ts
}

func (ts *testService) OnStart(context.Context) error {
	ts.started <- struct{}{}
	return nil
}

func (ts *testService) OnStop() { ts.stopped <- struct{}{} }

func TestBaseServiceWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := newTestService()
	require.NoError(t, ts.Start(ctx))
	require.True(t, ts.IsRunning())

	waitFinished := make(chan struct{})
	go func() {
		ts.Wait()
		close(waitFinished)
	}()

	go ts.Stop() //nolint:errcheck // ignore for tests

	select {
	case <-waitFinished:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected Wait() to finish within 100 ms.")
	}
	require.False(t, ts.IsRunning())
}

func TestBaseServiceLifecycleErrors(t *testing.T) {
	ctx := context.Background()
	ts := newTestService()

	require.ErrorIs(t, ts.Stop(), ErrNotStarted)
	require.NoError(t, ts.Start(ctx))
	require.ErrorIs(t, ts.Start(ctx), ErrAlreadyStarted)
	require.NoError(t, ts.Stop())
	require.ErrorIs(t, ts.Stop(), ErrAlreadyStopped)
	require.ErrorIs(t, ts.Start(ctx), ErrAlreadyStopped)
}

func TestBaseServiceStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ts := newTestService()
	require.NoError(t, ts.Start(ctx))

	cancel()

	select {
	case <-ts.Quit():
	case <-time.After(time.Second):
		t.Fatal("service did not stop after its context was canceled")
	}
	require.Len(t, ts.stopped, 1)
}
