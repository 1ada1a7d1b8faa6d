package chain

import (
	"context"
	"sync"

	"github.com/abdul-hamid-achik/hitchain/packages/logging"
	"github.com/abdul-hamid-achik/hitchain/packages/spec"
)

type State int

const (
	Open State = iota
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Step records one executed step.
type Step struct {
	Name    string
	Primary spec.RequestSpec
	Cleanup *spec.RequestSpec

	Result        *spec.Result
	CleanupResult *spec.Result
}

type obligation struct {
	index int
	spec  spec.RequestSpec
}

// Chain is one test case. It shares its executor's store with the rest of
// the suite.
type Chain struct {
	name   string
	exec   *spec.Executor
	logger *logging.Logger

	mu    sync.Mutex
	state State
	steps []Step
	stack []obligation

	// drainMu serializes Cleanup so a concurrent caller waits for the
	// running drain instead of returning early.
	drainMu sync.Mutex
}

func New(name string, exec *spec.Executor) *Chain {
	return &Chain{
		name:   name,
		exec:   exec,
		logger: exec.Logger().WithChain(name),
	}
}

func (c *Chain) Name() string {
	return c.name
}

func (c *Chain) Executor() *spec.Executor {
	return c.exec
}

func (c *Chain) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the number of cleanups still owed.
func (c *Chain) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stack)
}

// Steps returns a copy of the step records in execution order.
func (c *Chain) Steps() []Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Step(nil), c.steps...)
}

// Step starts a new step scope.
func (c *Chain) Step(name string) *StepScope {
	s := &StepScope{chain: c, name: name, index: -1}
	s.primary = spec.NewWithRunner(stepRunner{s})
	return s
}

// Run executes a prepared step: the cleanup, if any, is pushed first, then
// the primary runs unless it is zero.
func (c *Chain) Run(ctx context.Context, name string, primary spec.RequestSpec, cleanup *spec.RequestSpec) (*spec.Result, error) {
	idx, err := c.record(name, primary)
	if err != nil {
		return nil, err
	}
	if cleanup != nil && !cleanup.IsZero() {
		if err := c.push(idx, *cleanup); err != nil {
			return nil, err
		}
	}
	return c.runPrimary(ctx, idx, primary)
}

func (c *Chain) record(name string, primary spec.RequestSpec) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Open {
		return -1, ErrChainClosed
	}
	if primary.Name == "" {
		primary.Name = name
	}
	c.steps = append(c.steps, Step{Name: name, Primary: primary})
	return len(c.steps) - 1, nil
}

func (c *Chain) push(idx int, cleanup spec.RequestSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Open {
		return ErrChainClosed
	}
	if cleanup.Name == "" {
		cleanup.Name = c.steps[idx].Name + " (cleanup)"
	}
	clone := cleanup.Clone()
	c.steps[idx].Cleanup = &clone
	c.stack = append(c.stack, obligation{index: idx, spec: cleanup})
	c.logger.Debug("cleanup registered", "step", c.steps[idx].Name, "pending", len(c.stack))
	return nil
}

func (c *Chain) runPrimary(ctx context.Context, idx int, primary spec.RequestSpec) (*spec.Result, error) {
	if primary.IsZero() {
		return nil, nil
	}
	c.mu.Lock()
	if c.state != Open {
		c.mu.Unlock()
		return nil, ErrChainClosed
	}
	name := c.steps[idx].Name
	if primary.Name == "" {
		primary.Name = name
	}
	c.steps[idx].Primary = primary
	c.mu.Unlock()

	res, err := c.exec.Execute(ctx, primary)

	c.mu.Lock()
	c.steps[idx].Result = res
	c.mu.Unlock()
	if err != nil {
		c.logger.Warn("step failed", "step", name, "error", err)
	}
	return res, err
}

// Cleanup drains the cleanup stack, most recent first. Every cleanup runs
// even when earlier ones fail; failures are returned together as a
// *CleanupFailedError. Calling Cleanup on a closed chain is a no-op.
func (c *Chain) Cleanup(ctx context.Context) error {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return nil
	}
	c.state = Draining
	c.mu.Unlock()

	var failures []CleanupFailure
	for {
		c.mu.Lock()
		if len(c.stack) == 0 {
			c.state = Closed
			c.mu.Unlock()
			break
		}
		ob := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		stepName := c.steps[ob.index].Name
		c.mu.Unlock()

		res, err := c.exec.Execute(ctx, ob.spec)

		c.mu.Lock()
		c.steps[ob.index].CleanupResult = res
		c.mu.Unlock()

		if err != nil {
			c.logger.Warn("cleanup failed", "step", stepName, "error", err)
			failures = append(failures, CleanupFailure{Step: stepName, Err: err})
		}
	}

	c.logger.Debug("chain closed", "failed_cleanups", len(failures))
	if len(failures) > 0 {
		return &CleanupFailedError{Chain: c.name, Failures: failures}
	}
	return nil
}
