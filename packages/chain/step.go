package chain

import (
	"context"
	"sync"

	"github.com/abdul-hamid-achik/hitchain/packages/spec"
)

// StepScope builds one step of a chain: a primary spec and an optional
// cleanup spec. Execute on either builder runs the step.
type StepScope struct {
	chain   *Chain
	name    string
	primary *spec.Builder
	clean   *spec.Builder

	mu       sync.Mutex
	index    int
	pushed   bool
	executed bool
	result   *spec.Result
	err      error
}

func (s *StepScope) Name() string {
	return s.name
}

// Spec returns the builder of the primary request.
func (s *StepScope) Spec() *spec.Builder {
	return s.primary
}

// Clean returns the builder of the cleanup attached to this step.
func (s *StepScope) Clean() *spec.Builder {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clean == nil {
		s.clean = spec.NewWithRunner(stepRunner{s})
	}
	return s.clean
}

// Register pushes the attached cleanup onto the chain stack without
// running anything. A step's cleanup is pushed at most once.
func (s *StepScope) Register() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureRecorded(); err != nil {
		return err
	}
	return s.pushCleanup()
}

// Execute pushes the cleanup, then runs the primary request. A step runs
// its primary once; later calls only register a cleanup attached since and
// return the first outcome. A step without a primary returns a nil Result.
func (s *StepScope) Execute(ctx context.Context) (*spec.Result, error) {
	s.mu.Lock()
	if err := s.ensureRecorded(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.pushCleanup(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.executed {
		res, err := s.result, s.err
		s.mu.Unlock()
		return res, err
	}
	s.executed = true
	idx := s.index
	primary := s.primary.Build()
	s.mu.Unlock()

	res, err := s.chain.runPrimary(ctx, idx, primary)

	s.mu.Lock()
	s.result, s.err = res, err
	s.mu.Unlock()
	return res, err
}

func (s *StepScope) ensureRecorded() error {
	if s.index >= 0 {
		return nil
	}
	idx, err := s.chain.record(s.name, s.primary.Build())
	if err != nil {
		return err
	}
	s.index = idx
	return nil
}

func (s *StepScope) pushCleanup() error {
	if s.pushed || s.clean == nil {
		return nil
	}
	cleanup := s.clean.Build()
	if cleanup.IsZero() {
		return nil
	}
	if err := s.chain.push(s.index, cleanup); err != nil {
		return err
	}
	s.pushed = true
	return nil
}

// stepRunner lets builders handed out by a scope execute the whole step.
type stepRunner struct {
	scope *StepScope
}

func (r stepRunner) Execute(ctx context.Context, _ spec.RequestSpec) (*spec.Result, error) {
	return r.scope.Execute(ctx)
}
