package spec

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
	"github.com/abdul-hamid-achik/hitchain/packages/builtin"
	"github.com/abdul-hamid-achik/hitchain/packages/capture"
	"github.com/abdul-hamid-achik/hitchain/packages/fixture"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
	"github.com/abdul-hamid-achik/hitchain/packages/interpolate"
	"github.com/abdul-hamid-achik/hitchain/packages/jsonutil"
	"github.com/abdul-hamid-achik/hitchain/packages/logging"
	"github.com/abdul-hamid-achik/hitchain/packages/store"
)

// Result records one execution.
type Result struct {
	Spec     RequestSpec
	Request  *http.Request
	Response *http.Response
	Captured map[string]any
	Failures []assertions.Failure
	Duration time.Duration
	Err      error
}

func (r *Result) Passed() bool {
	return r.Err == nil
}

// Observer is notified after every execution, pass or fail.
type Observer func(*Result)

// Executor runs specs against one store and transport.
type Executor struct {
	store     *store.Store
	transport http.Transport
	interp    *interpolate.Interpolator
	resolver  *fixture.Resolver
	logger    *logging.Logger
	observers []Observer

	catalog     fixture.Catalog
	nullRemoves bool
	funcs       *builtin.Registry
	lookupEnv   func(string) (string, bool)
}

type ExecutorOption func(*Executor)

func WithCatalog(c fixture.Catalog) ExecutorOption {
	return func(e *Executor) {
		e.catalog = c
	}
}

// WithNullRemoves sets the null override policy of the fixture resolver.
func WithNullRemoves(remove bool) ExecutorOption {
	return func(e *Executor) {
		e.nullRemoves = remove
	}
}

func WithFunctions(r *builtin.Registry) ExecutorOption {
	return func(e *Executor) {
		e.funcs = r
	}
}

func WithEnvLookup(fn func(string) (string, bool)) ExecutorOption {
	return func(e *Executor) {
		e.lookupEnv = fn
	}
}

func WithLogger(l *logging.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = l
	}
}

func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) {
		e.observers = append(e.observers, o)
	}
}

func NewExecutor(s *store.Store, t http.Transport, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:       s,
		transport:   t,
		nullRemoves: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	var iopts []interpolate.Option
	if e.funcs != nil {
		iopts = append(iopts, interpolate.WithFunctions(e.funcs))
	}
	if e.lookupEnv != nil {
		iopts = append(iopts, interpolate.WithEnvLookup(e.lookupEnv))
	}
	e.interp = interpolate.New(s, iopts...)
	e.resolver = fixture.NewResolver(e.catalog, fixture.WithNullRemoves(e.nullRemoves))
	e.logger = logging.OrDiscard(e.logger).WithComponent("executor")
	return e
}

func (e *Executor) Store() *store.Store {
	return e.store
}

func (e *Executor) Logger() *logging.Logger {
	return e.logger
}

// Spec starts a builder bound to e.
func (e *Executor) Spec() *Builder {
	return New(e)
}

// Execute runs rs once. The returned Result is never nil; its Err equals
// the returned error.
func (e *Executor) Execute(ctx context.Context, rs RequestSpec) (*Result, error) {
	res := &Result{Spec: rs}
	start := time.Now()
	err := e.execute(ctx, rs, res)
	res.Duration = time.Since(start)
	res.Err = err

	log := e.logger.WithSpec(rs.Label())
	if err != nil {
		log.Warn("spec failed", "error", err)
	}
	for _, o := range e.observers {
		o(res)
	}
	return res, err
}

func (e *Executor) execute(ctx context.Context, rs RequestSpec, res *Result) error {
	req, exps, err := e.prepare(rs)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", rs.Label(), err)
	}
	res.Request = req

	if err := ctx.Err(); err != nil {
		return &TransportError{Spec: rs.Label(), Method: req.Method, URL: req.Path, Err: err}
	}

	log := e.logger.WithSpec(rs.Label())
	log.Debug("sending request", "method", req.Method, "path", req.Path, "headers", logging.MaskHeaders(req.Headers))

	resp, err := e.transport.Send(ctx, req)
	if err != nil {
		return &TransportError{Spec: rs.Label(), Method: req.Method, URL: req.Path, Err: err}
	}
	res.Response = resp
	log.Debug("response received", "status", resp.StatusCode, "duration", resp.Duration)

	if failures := assertions.Evaluate(resp, exps); len(failures) > 0 {
		res.Failures = failures
		return &assertions.AssertionFailedError{Failures: failures}
	}

	if len(rs.Captures) > 0 {
		values, missing := capture.ExtractAll(resp, rs.Captures)
		if len(missing) > 0 {
			return &CaptureError{Spec: rs.Label(), Missing: missing}
		}
		e.store.SetAll(values)
		res.Captured = values
		log.Debug("stored captures", "keys", sortedKeys(values))
	}
	return nil
}

// prepare performs interpolation and fixture expansion. Every unresolved
// key of the whole spec is reported in one error.
func (e *Executor) prepare(rs RequestSpec) (*http.Request, []assertions.Expectation, error) {
	var unknown []string
	collect := func(err error) error {
		var uv *store.UnknownVariableError
		if errors.As(err, &uv) {
			unknown = append(unknown, uv.Keys...)
			return nil
		}
		return err
	}

	path, err := e.interp.String(rs.Path)
	if err = collect(err); err != nil {
		return nil, nil, fmt.Errorf("path: %w", err)
	}
	query, err := e.interp.Headers(rs.Query)
	if err = collect(err); err != nil {
		return nil, nil, fmt.Errorf("query: %w", err)
	}
	headers, err := e.interp.Headers(rs.Headers)
	if err = collect(err); err != nil {
		return nil, nil, fmt.Errorf("headers: %w", err)
	}

	var body any
	if rs.Body != nil {
		body, err = e.resolveValue(rs.Body)
		if err = collect(err); err != nil {
			return nil, nil, fmt.Errorf("body: %w", err)
		}
	}

	exps := make([]assertions.Expectation, 0, len(rs.Expectations))
	for _, exp := range rs.Expectations {
		t, ok := exp.(assertions.Transformer)
		if !ok {
			exps = append(exps, exp)
			continue
		}
		resolved, err := t.Transform(e.resolveValue)
		if err = collect(err); err != nil {
			return nil, nil, fmt.Errorf("expectation %s: %w", exp, err)
		}
		exps = append(exps, resolved)
	}

	if len(unknown) > 0 {
		return nil, nil, &store.UnknownVariableError{Keys: dedupe(unknown)}
	}

	return &http.Request{
		Method:  rs.Method,
		Path:    path,
		Headers: headers,
		Query:   query,
		Body:    body,
	}, exps, nil
}

// resolveValue interpolates a value and then expands its fixtures. Catalog
// documents are inserted after interpolation and are used verbatim.
func (e *Executor) resolveValue(v any) (any, error) {
	norm, err := jsonutil.Normalize(v)
	if err != nil {
		return nil, err
	}
	interpolated, err := e.interp.Value(norm)
	if err != nil {
		return nil, err
	}
	return e.resolver.Expand(interpolated)
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
