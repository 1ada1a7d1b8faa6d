package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
	"github.com/abdul-hamid-achik/hitchain/packages/capture"
	"github.com/abdul-hamid-achik/hitchain/packages/chain"
	"github.com/abdul-hamid-achik/hitchain/packages/core/env"
	"github.com/abdul-hamid-achik/hitchain/packages/core/parser"
	"github.com/abdul-hamid-achik/hitchain/packages/fixture"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
	"github.com/abdul-hamid-achik/hitchain/packages/logging"
	"github.com/abdul-hamid-achik/hitchain/packages/spec"
	"github.com/abdul-hamid-achik/hitchain/packages/suite"
)

type Runner struct {
	config *Config
	logger *logging.Logger
}

type Config struct {
	BaseURL        string
	Headers        map[string]string
	Timeout        time.Duration
	FollowRedirect bool
	MaxRedirects   int
	Insecure       bool
	Proxy          string
	RateLimit      float64 // requests per second, 0 = unlimited
	Bail           bool
	NameFilter     string
	TagsFilter     []string
	Fixtures       string
	KeepNulls      bool
	DrainTimeout   time.Duration
	Variables      map[string]any
	EnvLookup      func(string) (string, bool)
	Logger         *logging.Logger
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Runner{
		config: cfg,
		logger: logging.OrDiscard(cfg.Logger).WithComponent("runner"),
	}
}

type Phase string

const (
	PhaseSetup   Phase = "setup"
	PhaseStep    Phase = "step"
	PhaseCleanup Phase = "cleanup"
	PhaseSpec    Phase = "spec"
)

type RunResult struct {
	File     string
	Name     string
	Entries  []*Entry
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
}

// Success reports whether nothing failed. Skipped entries do not count.
func (r *RunResult) Success() bool {
	return r.Failed == 0
}

func (r *RunResult) add(e *Entry) {
	r.Entries = append(r.Entries, e)
	switch {
	case e.Skipped:
		r.Skipped++
	case e.Passed():
		r.Passed++
	default:
		r.Failed++
	}
}

// Entry is one executed or skipped request. Chain is empty outside chains.
type Entry struct {
	Name       string
	Chain      string
	Phase      Phase
	Skipped    bool
	SkipReason string
	Result     *spec.Result
	Err        error
	Duration   time.Duration
}

func (e *Entry) Passed() bool {
	return !e.Skipped && e.Err == nil
}

func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	file, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	return r.Run(ctx, file)
}

// Run executes a parsed file. The returned error covers setup problems
// only; request failures are reported in the result.
func (r *Runner) Run(ctx context.Context, file *parser.File) (*RunResult, error) {
	start := time.Now()
	baseDir := filepath.Dir(file.Path)

	catalog, err := r.loadCatalog(file, baseDir)
	if err != nil {
		return nil, fmt.Errorf("loading fixtures: %w", err)
	}

	execOpts := []spec.ExecutorOption{
		spec.WithCatalog(catalog),
		spec.WithNullRemoves(!r.config.KeepNulls),
	}
	if r.config.EnvLookup != nil {
		execOpts = append(execOpts, spec.WithEnvLookup(r.config.EnvLookup))
	}
	suiteOpts := []suite.Option{
		suite.WithLogger(r.config.Logger),
		suite.WithExecutorOptions(execOpts...),
	}
	if r.config.DrainTimeout > 0 {
		suiteOpts = append(suiteOpts, suite.WithDrainTimeout(r.config.DrainTimeout))
	}

	s := suite.New(file.Name, r.newClient(file), suiteOpts...)
	s.Store().SetAll(env.MergeVariables(file.Variables, r.config.Variables))
	stop := s.DrainOnDone(ctx)
	defer stop()

	run := &fileRun{
		runner:  r,
		file:    file,
		suite:   s,
		baseDir: baseDir,
		result:  &RunResult{File: file.Path, Name: file.Name},
	}
	r.logger.Info("running suite file", "file", file.Path, "requests", file.Count())

	for _, def := range file.Setup {
		run.runSetup(ctx, def)
	}
	for _, def := range file.Chains {
		run.runChain(ctx, def)
	}
	for _, def := range file.Specs {
		run.runSpec(ctx, def)
	}

	drainCtx, cancel := run.drainContext(ctx)
	if err := s.Close(drainCtx); err != nil {
		r.logger.Warn("closing suite", "file", file.Path, "error", err)
	}
	cancel()

	run.result.Duration = time.Since(start)
	return run.result, nil
}

func (r *Runner) newClient(file *parser.File) *http.Client {
	cfg := r.config
	opts := []http.ClientOption{
		http.WithFollowRedirects(cfg.FollowRedirect),
		http.WithValidateSSL(!cfg.Insecure),
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = file.BaseURL
	}
	if baseURL != "" {
		opts = append(opts, http.WithBaseURL(baseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, http.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		opts = append(opts, http.WithProxy(cfg.Proxy))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, http.WithRateLimit(cfg.RateLimit, 1))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(cfg.Headers))
	}
	return http.NewClient(opts...)
}

// loadCatalog merges the configured fixture directory with the file's own;
// the file's templates win.
func (r *Runner) loadCatalog(file *parser.File, baseDir string) (fixture.MapCatalog, error) {
	catalog := fixture.MapCatalog{}
	dirs := []string{r.config.Fixtures}
	if file.Fixtures != "" {
		dir := file.Fixtures
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(baseDir, dir)
		}
		dirs = append(dirs, dir)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		docs, err := fixture.LoadDir(dir)
		if err != nil {
			return nil, err
		}
		for name, doc := range docs {
			catalog[name] = doc
		}
	}
	return catalog, nil
}

type fileRun struct {
	runner  *Runner
	file    *parser.File
	suite   *suite.Suite
	baseDir string
	result  *RunResult
	halt    string
}

func (run *fileRun) stopped(ctx context.Context) (string, bool) {
	if run.halt != "" {
		return run.halt, true
	}
	if ctx.Err() != nil {
		return "run cancelled", true
	}
	return "", false
}

func (run *fileRun) failed(reason string) {
	if run.halt == "" && run.runner.config.Bail {
		run.halt = reason
	}
}

func (run *fileRun) drainContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), run.suite.DrainTimeout())
}

func (run *fileRun) skip(name, chain string, phase Phase, reason string) {
	run.result.add(&Entry{Name: name, Chain: chain, Phase: phase, Skipped: true, SkipReason: reason})
}

func (run *fileRun) record(e *Entry, res *spec.Result, err error) {
	e.Result = res
	e.Err = err
	if res != nil {
		e.Duration = res.Duration
	}
	run.result.add(e)
}

func (run *fileRun) runSetup(ctx context.Context, def *parser.SpecDef) {
	name := def.Label()
	if reason, ok := run.stopped(ctx); ok {
		run.skip(name, "", PhaseSetup, reason)
		return
	}
	res, err := run.execute(ctx, def)
	run.record(&Entry{Name: name, Phase: PhaseSetup}, res, err)
	if err != nil {
		run.halt = "setup " + name + " failed"
	}
}

func (run *fileRun) runSpec(ctx context.Context, def *parser.SpecDef) {
	name := def.Label()
	if reason, ok := run.stopped(ctx); ok {
		run.skip(name, "", PhaseSpec, reason)
		return
	}
	if reason, ok := run.filter(name, def.Tags, def.Skip); !ok {
		run.skip(name, "", PhaseSpec, reason)
		return
	}
	res, err := run.execute(ctx, def)
	run.record(&Entry{Name: name, Phase: PhaseSpec}, res, err)
	if err != nil {
		run.failed(name + " failed")
	}
}

func (run *fileRun) runChain(ctx context.Context, def *parser.ChainDef) {
	skipAll := func(reason string) {
		for _, st := range def.Steps {
			run.skip(st.Spec.Label(), def.Name, PhaseStep, reason)
		}
	}
	if reason, ok := run.stopped(ctx); ok {
		skipAll(reason)
		return
	}
	if reason, ok := run.filter(def.Name, def.Tags, def.Skip); !ok {
		skipAll(reason)
		return
	}

	c := run.suite.Chain(def.Name)
	var broken string
	for _, st := range def.Steps {
		name := st.Spec.Label()
		if broken != "" {
			run.skip(name, def.Name, PhaseStep, broken)
			continue
		}
		if reason, ok := run.stopped(ctx); ok {
			run.skip(name, def.Name, PhaseStep, reason)
			continue
		}
		if st.Spec.Skip != "" {
			run.skip(name, def.Name, PhaseStep, st.Spec.Skip)
			continue
		}

		res, err := run.runStep(ctx, c, name, st)
		run.record(&Entry{Name: name, Chain: def.Name, Phase: PhaseStep}, res, err)
		if err != nil {
			if !def.ContinueOnFailure {
				broken = "previous step " + name + " failed"
			}
			run.failed(def.Name + " failed")
		}
	}

	drainCtx, cancel := run.drainContext(ctx)
	defer cancel()
	if err := c.Cleanup(drainCtx); err != nil {
		run.failed(def.Name + " cleanup failed")
	}

	steps := c.Steps()
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if step.Cleanup == nil {
			continue
		}
		e := &Entry{Name: step.Name, Chain: def.Name, Phase: PhaseCleanup}
		if step.CleanupResult == nil {
			e.Skipped = true
			e.SkipReason = "cleanup did not run"
			run.result.add(e)
			continue
		}
		run.record(e, step.CleanupResult, step.CleanupResult.Err)
	}
}

func (run *fileRun) runStep(ctx context.Context, c *chain.Chain, name string, st *parser.StepDef) (*spec.Result, error) {
	primary, err := run.build(&st.Spec)
	if err != nil {
		return nil, err
	}
	var cleanup *spec.RequestSpec
	if st.Clean != nil {
		cl, err := run.build(st.Clean)
		if err != nil {
			return nil, fmt.Errorf("clean: %w", err)
		}
		cleanup = &cl
	}
	return c.Run(ctx, name, primary, cleanup)
}

func (run *fileRun) execute(ctx context.Context, def *parser.SpecDef) (*spec.Result, error) {
	rs, err := run.build(def)
	if err != nil {
		return nil, err
	}
	return run.suite.Executor().Execute(ctx, rs)
}

// filter applies skip, name and tag filters. It returns the skip reason.
func (run *fileRun) filter(name string, tags []string, skip string) (string, bool) {
	if skip != "" {
		return skip, false
	}
	cfg := run.runner.config
	if cfg.NameFilter != "" && !matchesPattern(name, cfg.NameFilter) {
		return "filtered out", false
	}
	if len(cfg.TagsFilter) > 0 && !hasAnyTag(tags, cfg.TagsFilter) {
		return "filtered out", false
	}
	return "", true
}

// build maps a spec definition onto a RequestSpec. File headers apply
// first so a spec can override them.
func (run *fileRun) build(def *parser.SpecDef) (spec.RequestSpec, error) {
	method, path := def.Method()
	b := spec.New(nil).Request(method, path).Named(def.Name)
	b.WithHeaders(run.file.Headers).WithHeaders(def.Headers)
	for _, k := range sortedKeys(def.Query) {
		b.WithQuery(k, def.Query[k])
	}

	switch {
	case def.Fixture != nil:
		b.WithFixture(def.Fixture.Template, def.Fixture.Overrides)
		if _, set := def.Headers["Content-Type"]; !set {
			b.WithHeader("Content-Type", "application/json")
		}
	case def.JSON != nil:
		if _, set := def.Headers["Content-Type"]; set {
			b.WithBody(def.JSON)
		} else {
			b.WithJSON(def.JSON)
		}
	}

	if e := def.Expect; e != nil {
		if e.Status != 0 {
			b.ExpectStatus(e.Status)
		}
		if e.Body != nil {
			b.ExpectBody(e.Body)
		}
		for _, s := range e.Contains {
			b.ExpectBodyContains(s)
		}
		if e.Like != nil {
			b.ExpectJSONLike(e.Like)
		}
		if e.LikeFixture != nil {
			b.ExpectFixtureLike(e.LikeFixture.Template, e.LikeFixture.Overrides)
		}
		for _, f := range e.Fields {
			b.ExpectField(f)
		}
		for _, k := range sortedKeys(e.Headers) {
			b.ExpectHeader(k, e.Headers[k])
		}
		if e.Schema != "" {
			schema, err := assertions.LoadSchemaFile(e.Schema, run.baseDir)
			if err != nil {
				return spec.RequestSpec{}, fmt.Errorf("%s: %w", def.Label(), err)
			}
			b.Expect(schema)
		}
	}

	for _, key := range sortedKeys(def.Store) {
		b.Capture(parseStore(key, def.Store[key]))
	}
	return b.Build(), nil
}

// parseStore reads the store source syntax described in the parser package.
func parseStore(key, source string) capture.Capture {
	c := capture.Capture{Key: key}
	if strings.HasSuffix(source, parser.StoreOptional) {
		c.Optional = true
		source = strings.TrimSuffix(source, parser.StoreOptional)
	}
	switch {
	case source == parser.StoreStatus:
		c.In = capture.Status
	case strings.HasPrefix(source, parser.StoreHeaderPrefix):
		c.In = capture.Header
		c.Source = strings.TrimPrefix(source, parser.StoreHeaderPrefix)
	default:
		c.Source = source
	}
	return c
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	prefix := strings.HasSuffix(pattern, "*")
	suffix := strings.HasPrefix(pattern, "*")
	core := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")

	switch {
	case prefix && suffix:
		return strings.Contains(name, core)
	case suffix:
		return strings.HasSuffix(name, core)
	case prefix:
		return strings.HasPrefix(name, core)
	}
	return name == pattern
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		for _, tag := range tags {
			if tag == filter {
				return true
			}
		}
	}
	return false
}
