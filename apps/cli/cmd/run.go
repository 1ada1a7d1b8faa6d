package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/config"
	"github.com/abdul-hamid-achik/hitchain/packages/core/env"
	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/abdul-hamid-achik/hitchain/packages/logging"
	"github.com/abdul-hamid-achik/hitchain/packages/output"
	"github.com/abdul-hamid-achik/hitchain/packages/spec"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>",
	Short: "Run suite files against an API",
	Long: `Run the setup specs, chains and specs defined in YAML suite files.

Directories are searched recursively for *.suite.yaml and *.suite.yml files.
Files named explicitly may use any .yaml or .yml name.

Examples:
  hitchain run users.suite.yaml
  hitchain run users.suite.yaml --env staging
  hitchain run ./suites/ --tags smoke
  hitchain run ./suites/ --name "dataset*" --bail
  hitchain run ./suites/ -o junit --output-file report.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	envFlag          string
	envFileFlag      string
	configFlag       string
	nameFlag         string
	tagsFlag         string
	varFlags         []string
	baseURLFlag      string
	fixturesFlag     string
	verboseFlag      int // 0=off, 1=-v, 2=-vv
	noColorFlag      bool
	outputFlag       string
	outputFileFlag   string
	bailFlag         bool
	timeoutFlag      string
	drainTimeoutFlag string
	keepNullsFlag    bool
	dryRunFlag       bool
	watchFlag        bool
	proxyFlag        string
	insecureFlag     bool
	rateFlag         float64
)

func init() {
	// Core flags
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("HITCHAIN_ENV", ""), "Environment from the config file (env: HITCHAIN_ENV)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("HITCHAIN_ENV_FILE", ""), "Path to .env file for ${$NAME} lookups (env: HITCHAIN_ENV_FILE)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("HITCHAIN_CONFIG", ""), "Path to config file (env: HITCHAIN_CONFIG)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only chains and specs matching name pattern")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("HITCHAIN_TAGS", ""), "Run only chains and specs with specified tags (comma-separated) (env: HITCHAIN_TAGS)")
	runCmd.Flags().StringArrayVar(&varFlags, "var", nil, "Seed a store value (key=value, repeatable)")
	runCmd.Flags().StringVar(&baseURLFlag, "base-url", getEnvString("HITCHAIN_BASE_URL", ""), "Base URL for relative request paths (env: HITCHAIN_BASE_URL)")
	runCmd.Flags().StringVar(&fixturesFlag, "fixtures", getEnvString("HITCHAIN_FIXTURES", ""), "Fixture catalog directory (env: HITCHAIN_FIXTURES)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v for request details, -vv for debug logs)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("HITCHAIN_NO_COLOR", false), "Disable colored output (env: HITCHAIN_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("HITCHAIN_OUTPUT", ""), "Output format: console, json, junit (env: HITCHAIN_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("HITCHAIN_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: HITCHAIN_OUTPUT_FILE)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("HITCHAIN_BAIL", false), "Stop on first failure; pending cleanups still run (env: HITCHAIN_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("HITCHAIN_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: HITCHAIN_TIMEOUT)")
	runCmd.Flags().StringVar(&drainTimeoutFlag, "drain-timeout", getEnvString("HITCHAIN_DRAIN_TIMEOUT", ""), "Time allowed for draining cleanups (env: HITCHAIN_DRAIN_TIMEOUT)")
	runCmd.Flags().BoolVar(&keepNullsFlag, "keep-nulls", getEnvBool("HITCHAIN_KEEP_NULLS", false), "Send null fixture overrides as JSON null instead of removing the key (env: HITCHAIN_KEEP_NULLS)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Parse and show what would run without executing")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run suites")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("HITCHAIN_PROXY", ""), "Proxy URL for HTTP requests (env: HITCHAIN_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("HITCHAIN_INSECURE", false), "Disable SSL certificate validation (env: HITCHAIN_INSECURE)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("HITCHAIN_RATE", 0), "Maximum requests per second, 0 = unlimited (env: HITCHAIN_RATE)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

func newFormatter(format string, w io.Writer, verbose, noColor bool) Formatter {
	switch strings.ToLower(format) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w))
	case "junit":
		return output.NewJUnitFormatter(output.JUnitWithWriter(w))
	default: // "console"
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(verbose),
			output.WithNoColor(noColor),
		)
	}
}

// flagConfig turns the flags that were set on the command line, or through
// their HITCHAIN_* variables, into a config overlay.
func flagConfig(cmd *cobra.Command) (*config.Config, error) {
	set := func(name, envKey string) bool {
		return cmd.Flags().Changed(name) || os.Getenv(envKey) != ""
	}

	overlay := &config.Config{
		BaseURL:    baseURLFlag,
		Fixtures:   fixturesFlag,
		EnvFile:    envFileFlag,
		Proxy:      proxyFlag,
		RateLimit:  rateFlag,
		Output:     strings.ToLower(outputFlag),
		OutputFile: outputFileFlag,
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid timeout value %q (use format like 30s, 1m, 500ms)", timeoutFlag)
		}
		overlay.Timeout = int(d / time.Millisecond)
	}
	if drainTimeoutFlag != "" {
		d, err := time.ParseDuration(drainTimeoutFlag)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid drain timeout value %q (use format like 30s, 1m)", drainTimeoutFlag)
		}
		overlay.DrainTimeout = int(d / time.Millisecond)
	}
	if set("bail", "HITCHAIN_BAIL") {
		overlay.Bail = config.BoolPtr(bailFlag)
	}
	if set("no-color", "HITCHAIN_NO_COLOR") {
		overlay.NoColor = config.BoolPtr(noColorFlag)
	}
	if set("insecure", "HITCHAIN_INSECURE") {
		overlay.ValidateSSL = config.BoolPtr(!insecureFlag)
	}
	if set("keep-nulls", "HITCHAIN_KEEP_NULLS") {
		overlay.NullRemoves = config.BoolPtr(!keepNullsFlag)
	}
	if verboseFlag > 0 {
		overlay.Verbose = config.BoolPtr(true)
	}
	return overlay, overlay.Validate()
}

// parseVars parses key=value pairs. Values are stored as strings.
func parseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q (want key=value)", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// buildRunnerConfig resolves the effective runner settings. Precedence, low
// to high: config file, selected environment, HITCHAIN_VAR_* variables,
// command line.
func buildRunnerConfig(cfg *config.Config, environment *config.Environment, lookup env.Env, cliVars map[string]any) *runner.Config {
	baseURL := cfg.BaseURL
	if environment.BaseURL != "" && baseURLFlag == "" {
		baseURL = environment.BaseURL
	}

	headers := make(map[string]string, len(cfg.Headers)+len(environment.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	for k, v := range environment.Headers {
		headers[k] = v
	}

	return &runner.Config{
		BaseURL:        baseURL,
		Headers:        headers,
		Timeout:        cfg.TimeoutDuration(),
		FollowRedirect: cfg.GetFollowRedirects(),
		MaxRedirects:   cfg.MaxRedirects,
		Insecure:       !cfg.GetValidateSSL(),
		Proxy:          cfg.Proxy,
		RateLimit:      cfg.RateLimit,
		Bail:           cfg.GetBail(),
		NameFilter:     nameFlag,
		TagsFilter:     splitTags(tagsFlag),
		Fixtures:       cfg.Fixtures,
		KeepNulls:      !cfg.GetNullRemoves(),
		DrainTimeout:   cfg.DrainTimeoutDuration(),
		Variables: env.MergeVariables(
			environment.Variables,
			env.LoadSystemEnv(env.VarPrefix),
			cliVars,
		),
		EnvLookup: lookup.Lookup,
	}
}

func logLevel(verbose int) logging.Level {
	switch {
	case verbose > 1:
		return logging.LevelDebug
	case verbose == 1:
		return logging.LevelInfo
	default:
		return logging.LevelWarn
	}
}

// runTotals accumulates results across files.
type runTotals struct {
	passed, failed, skipped int
	network                 int
	parseErrors             int
	duration                time.Duration
}

// exitCode maps the totals to the process exit code.
func (t *runTotals) exitCode() int {
	switch {
	case t.parseErrors > 0:
		return ExitParseError
	case t.failed > 0 && t.network == t.failed:
		return ExitNetworkError
	case t.failed > 0:
		return ExitTestFailure
	default:
		return ExitSuccess
	}
}

func (t *runTotals) add(result *runner.RunResult) {
	t.passed += result.Passed
	t.failed += result.Failed
	t.skipped += result.Skipped
	for _, e := range result.Entries {
		if !e.Skipped && errors.Is(e.Err, spec.ErrTransport) {
			t.network++
		}
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	overlay, err := flagConfig(cmd)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	vars, err := parseVars(varFlags)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("loading config: %w", err))
	}
	cfg := fileConfig.Merge(overlay)

	environment, err := cfg.Environment(envFlag)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	lookup, err := env.Load(cfg.EnvFile)
	if err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("loading env file: %w", err))
	}

	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no suite files found"))
	}

	// Setup output writer
	var outWriter io.Writer = cmd.OutOrStdout()
	if cfg.OutputFile != "" {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return withExitCode(ExitConfigError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		outWriter = f
	}

	verbose := verboseFlag
	if verbose == 0 && cfg.GetVerbose() {
		verbose = 1
	}
	logger := logging.NewStderr(logLevel(verbose))

	runnerCfg := buildRunnerConfig(cfg, environment, lookup, vars)
	runnerCfg.Logger = logger
	r := runner.NewRunner(runnerCfg)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runTests := func(formatter Formatter) *runTotals {
		totals := &runTotals{}
		startTime := time.Now()

		for _, file := range files {
			if dryRunFlag {
				fmt.Fprintf(cmd.OutOrStdout(), "Would run: %s\n", file)
				continue
			}
			if ctx.Err() != nil {
				break
			}

			result, err := r.RunFile(ctx, file)
			if err != nil {
				formatter.FormatError(fmt.Errorf("%s: %w", file, err))
				totals.parseErrors++
				if cfg.GetBail() {
					break
				}
				continue
			}

			formatter.FormatResult(result)
			totals.add(result)

			if cfg.GetBail() && result.Failed > 0 {
				break
			}
		}

		totals.duration = time.Since(startTime)
		return totals
	}

	formatter := newFormatter(cfg.Output, outWriter, verbose > 0, cfg.GetNoColor())
	formatter.FormatHeader(version)
	totals := runTests(formatter)

	// Flush output for formatters that accumulate results
	if flushable, ok := formatter.(Flushable); ok {
		if err := flushable.Flush(totals.duration); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}

	if !watchFlag {
		if code := totals.exitCode(); code != ExitSuccess {
			return withExitCode(code, nil)
		}
		return nil
	}

	return watch(ctx, cmd, args, files, logger, func() {
		formatter := newFormatter(cfg.Output, outWriter, verbose > 0, cfg.GetNoColor())
		totals := runTests(formatter)
		if flushable, ok := formatter.(Flushable); ok {
			_ = flushable.Flush(totals.duration)
		}
	})
}

// watch re-runs rerun whenever a watched suite or fixture file is written,
// until ctx is cancelled.
func watch(ctx context.Context, cmd *cobra.Command, args, files []string, logger *logging.Logger, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, dir := range watchDirs(args, files) {
		if watchedDirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			logger.Warn("cannot watch directory", "dir", dir, "error", err)
		}
		watchedDirs[dir] = true
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Debounce timer for rapid file changes
	var debounceTimer *time.Timer
	serial := &serialRunner{fn: rerun}
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) || !isWatchedFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				serial.run(func() {
					fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running suites...\n\n", name)
				}, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")
				})
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}

// serialRunner runs fn one call at a time. Timers from separate debounce
// windows may fire while a re-run is still writing its report.
type serialRunner struct {
	mu sync.Mutex
	fn func()
}

// run calls before, fn and after while holding the lock.
func (s *serialRunner) run(before, after func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if before != nil {
		before()
	}
	s.fn()
	if after != nil {
		after()
	}
}

// watchDirs returns the directories of the given files plus every directory
// below the directory arguments, so fixture edits trigger a re-run too.
func watchDirs(args, files []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	for _, file := range files {
		add(filepath.Dir(file))
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			continue
		}
		_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				add(path)
			}
			return nil
		})
	}
	sort.Strings(dirs)
	return dirs
}

// collectFiles expands the arguments into suite files. Files given directly
// are accepted with any YAML extension; directories contribute only
// *.suite.yaml and *.suite.yml so fixture catalogs next to them are ignored.
func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isSuiteFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if isYAMLFile(arg) {
			files = append(files, arg)
		}
	}

	return files, nil
}

func isYAMLFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

// isWatchedFile reports whether an edit to path should trigger a re-run:
// suite files, YAML fixture catalogs and JSON fixtures or schemas.
func isWatchedFile(path string) bool {
	return isYAMLFile(path) || filepath.Ext(path) == ".json"
}

func isSuiteFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".suite.yaml") || strings.HasSuffix(base, ".suite.yml")
}
