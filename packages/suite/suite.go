// Package suite owns the state of one suite run: a fresh variable store, the
// executor built on it, and every chain opened during the run. Closing the
// suite drains all chains, and an aborted run still releases what it created.
package suite

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/chain"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
	"github.com/abdul-hamid-achik/hitchain/packages/logging"
	"github.com/abdul-hamid-achik/hitchain/packages/spec"
	"github.com/abdul-hamid-achik/hitchain/packages/store"
)

// DefaultDrainTimeout bounds the drain that runs after an abort.
const DefaultDrainTimeout = 30 * time.Second

type Suite struct {
	name         string
	store        *store.Store
	exec         *spec.Executor
	logger       *logging.Logger
	drainTimeout time.Duration

	mu     sync.Mutex
	chains []*chain.Chain
	closed bool
}

type options struct {
	execOpts     []spec.ExecutorOption
	drainTimeout time.Duration
	logger       *logging.Logger
}

type Option func(*options)

// WithExecutorOptions configures the suite's executor (catalog, observers,
// null override policy and so on).
func WithExecutorOptions(opts ...spec.ExecutorOption) Option {
	return func(o *options) {
		o.execOpts = append(o.execOpts, opts...)
	}
}

func WithDrainTimeout(d time.Duration) Option {
	return func(o *options) {
		o.drainTimeout = d
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates a suite with its own store. Suites never share stores.
func New(name string, transport http.Transport, opts ...Option) *Suite {
	o := &options{drainTimeout: DefaultDrainTimeout}
	for _, opt := range opts {
		opt(o)
	}
	logger := logging.OrDiscard(o.logger)

	execOpts := append([]spec.ExecutorOption{spec.WithLogger(logger)}, o.execOpts...)
	st := store.New()
	return &Suite{
		name:         name,
		store:        st,
		exec:         spec.NewExecutor(st, transport, execOpts...),
		logger:       logger.WithComponent("suite"),
		drainTimeout: o.drainTimeout,
	}
}

func (s *Suite) Name() string {
	return s.name
}

func (s *Suite) Store() *store.Store {
	return s.store
}

func (s *Suite) Executor() *spec.Executor {
	return s.exec
}

func (s *Suite) DrainTimeout() time.Duration {
	return s.drainTimeout
}

// Spec starts a builder for a standalone spec on the suite's executor.
func (s *Suite) Spec() *spec.Builder {
	return s.exec.Spec()
}

// Chain opens a chain registered with the suite. Chains opened after Close
// are already closed.
func (s *Suite) Chain(name string) *chain.Chain {
	c := chain.New(name, s.exec)
	s.mu.Lock()
	closed := s.closed
	if !closed {
		s.chains = append(s.chains, c)
	}
	s.mu.Unlock()
	if closed {
		_ = c.Cleanup(context.Background())
	}
	return c
}

// Chains returns the registered chains in registration order.
func (s *Suite) Chains() []*chain.Chain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*chain.Chain(nil), s.chains...)
}

// Close drains every chain, most recently opened first, and returns all
// cleanup failures joined. Further calls drain nothing new.
func (s *Suite) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	chains := append([]*chain.Chain(nil), s.chains...)
	s.mu.Unlock()

	var errs []error
	for i := len(chains) - 1; i >= 0; i-- {
		if err := chains[i].Cleanup(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Abort drains every chain with a fresh context bounded by the drain
// timeout, for use after the run context is gone.
func (s *Suite) Abort() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
	defer cancel()
	s.logger.Warn("suite aborted, draining cleanups", "suite", s.name, "chains", len(s.Chains()))
	err := s.Close(ctx)
	if err != nil {
		s.logger.Error("cleanup after abort failed", "suite", s.name, "error", err)
	}
	return err
}

// DrainOnDone aborts the suite when ctx is done. The returned stop function
// detaches the watcher; call it once the run finishes normally.
func (s *Suite) DrainOnDone(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Abort()
		case <-done:
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

// HandleSignals returns a context cancelled on SIGINT or SIGTERM. Once it is
// cancelled, every open chain is drained. The stop function releases the
// signal handler.
func (s *Suite) HandleSignals(parent context.Context) (context.Context, func()) {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	stopDrain := s.DrainOnDone(ctx)
	return ctx, func() {
		stopDrain()
		cancel()
	}
}
