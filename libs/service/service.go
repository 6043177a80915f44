package service

import (
	"context"
	"errors"
	"sync"

	"github.com/tendermint/ledgersync/libs/log"
)

var (
	// ErrAlreadyStarted is returned when somebody tries to start an already
	// running service.
	ErrAlreadyStarted = errors.New("already started")
	// ErrAlreadyStopped is returned when somebody tries to stop an already
	// stopped service.
	ErrAlreadyStopped = errors.New("already stopped")
	// ErrNotStarted is returned when somebody tries to stop a not running
	// service.
	ErrNotStarted = errors.New("not started")
)

// Service defines a service that can be started and stopped exactly once.
type Service interface {
	// Start is called to start the service, which should run until
	// the context terminates or Stop is called.
	Start(context.Context) error

	// Stop stops the service. It is safe to call once; later calls
	// return ErrAlreadyStopped.
	Stop() error

	// IsRunning returns true while the service is started and not stopped.
	IsRunning() bool

	// String representation of the service
	String() string

	// Wait blocks until the service is stopped.
	Wait()
}

// Implementation describes the implementation that the BaseService wraps.
type Implementation interface {
	Service

	// OnStart is called by Start. The context is canceled when the service
	// stops, so goroutines spawned here should select on it.
	OnStart(context.Context) error

	// OnStop is called once, either by Stop or when the Start context ends.
	OnStop()
}

// BaseService carries the start/stop bookkeeping shared by the long running
// components (reactor, event bus). Embed it and pass the embedding type as
// impl:
//
//	r := &Reactor{...}
//	r.BaseService = *service.NewBaseService(logger, "StateSync", r)
type BaseService struct {
	logger log.Logger
	name   string
	impl   Implementation

	mtx     sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	quit    chan struct{}
}

// NewBaseService creates a new BaseService. A nil logger is replaced by a
// no-op one.
func NewBaseService(logger log.Logger, name string, impl Implementation) *BaseService {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &BaseService{
		logger: logger,
		name:   name,
		impl:   impl,
		quit:   make(chan struct{}),
	}
}

// Start starts the service and calls its OnStart method with a context that
// is derived from ctx and canceled when the service stops.
func (bs *BaseService) Start(ctx context.Context) error {
	bs.mtx.Lock()
	if bs.started {
		bs.mtx.Unlock()
		return ErrAlreadyStarted
	}
	if bs.stopped {
		bs.mtx.Unlock()
		bs.logger.Error("not starting service; already stopped", "service", bs.name)
		return ErrAlreadyStopped
	}

	srvCtx, cancel := context.WithCancel(ctx)
	bs.cancel = cancel
	bs.started = true
	bs.mtx.Unlock()

	bs.logger.Info("starting service", "service", bs.name, "impl", bs.impl.String())

	if err := bs.impl.OnStart(srvCtx); err != nil {
		cancel()
		bs.mtx.Lock()
		bs.started = false
		bs.mtx.Unlock()
		return err
	}

	go func() {
		select {
		case <-bs.quit:
		case <-srvCtx.Done():
			// the parent context ended; nobody called Stop
			if err := bs.Stop(); err != nil && !errors.Is(err, ErrAlreadyStopped) {
				bs.logger.Error("failed to stop service", "service", bs.name, "err", err)
			}
		}
	}()

	return nil
}

// Stop calls OnStop, cancels the service context and releases Wait.
func (bs *BaseService) Stop() error {
	bs.mtx.Lock()
	if bs.stopped {
		bs.mtx.Unlock()
		return ErrAlreadyStopped
	}
	if !bs.started {
		bs.mtx.Unlock()
		bs.logger.Error("not stopping service; not started yet", "service", bs.name)
		return ErrNotStarted
	}
	bs.stopped = true
	cancel := bs.cancel
	bs.mtx.Unlock()

	bs.logger.Info("stopping service", "service", bs.name, "impl", bs.impl.String())
	cancel()
	bs.impl.OnStop()
	close(bs.quit)

	return nil
}

// IsRunning reports whether the service has been started and not yet stopped.
func (bs *BaseService) IsRunning() bool {
	bs.mtx.Lock()
	defer bs.mtx.Unlock()
	return bs.started && !bs.stopped
}

// Wait blocks until the service is stopped.
func (bs *BaseService) Wait() { <-bs.quit }

// Quit returns a channel that is closed once the service stops.
func (bs *BaseService) Quit() <-chan struct{} { return bs.quit }

// String implements Service by returning a string representation of the service.
func (bs *BaseService) String() string { return bs.name }
