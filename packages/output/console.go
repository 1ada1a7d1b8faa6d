package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/fatih/color"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Running: "+result.Name+" ("+result.File+")"))
	fmt.Fprintf(f.writer, "\n")

	chain := ""
	for _, e := range result.Entries {
		indent := "  "
		if e.Chain != "" {
			if e.Chain != chain {
				fmt.Fprintf(f.writer, "  %s\n", bold(e.Chain))
			}
			indent = "    "
		}
		chain = e.Chain

		label := e.Name
		switch e.Phase {
		case runner.PhaseSetup:
			label = "setup: " + label
		case runner.PhaseCleanup:
			label = "cleanup: " + label
		}

		if e.Skipped {
			fmt.Fprintf(f.writer, "%s%s %s", indent, yellow("-"), label)
			if e.SkipReason != "" && e.SkipReason != "filtered out" {
				fmt.Fprintf(f.writer, " (%s)", e.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		}

		symbol := green("✓")
		if !e.Passed() {
			symbol = red("✗")
		}
		fmt.Fprintf(f.writer, "%s%s %s %s\n", indent, symbol, label, cyan(fmt.Sprintf("(%dms)", e.Duration.Milliseconds())))

		res := e.Result
		if f.verbose && res != nil && res.Request != nil {
			fmt.Fprintf(f.writer, "%s    %s %s\n", indent, res.Request.Method, res.Request.Path)
		}
		if f.verbose && res != nil && res.Response != nil {
			fmt.Fprintf(f.writer, "%s    Status: %d\n", indent, res.Response.StatusCode)
		}

		if !e.Passed() {
			var failed *assertions.AssertionFailedError
			if errors.As(e.Err, &failed) {
				for _, fl := range failed.Failures {
					fmt.Fprintf(f.writer, "%s    %s %s\n", indent, red("→"), fl.String())
					if fl.Expected != nil || fl.Actual != nil {
						fmt.Fprintf(f.writer, "%s      Expected: %s\n", indent, formatValue(fl.Expected, 100))
						fmt.Fprintf(f.writer, "%s      Actual:   %s\n", indent, formatValue(fl.Actual, 100))
					}
				}
			} else if e.Err != nil {
				fmt.Fprintf(f.writer, "%s    %s %v\n", indent, red("→"), e.Err)
			}
		}

		if f.verbose && res != nil && len(res.Captured) > 0 {
			fmt.Fprintf(f.writer, "%s    Captures:\n", indent)
			names := make([]string, 0, len(res.Captured))
			for name := range res.Captured {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(f.writer, "%s      %s = %s\n", indent, name, formatValue(res.Captured[name], 60))
			}
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Tests: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	total := result.Passed + result.Failed + result.Skipped
	fmt.Fprintf(f.writer, "%d total\n", total)

	if lat := LatencyOf(result).Summary(); lat.Count > 0 {
		fmt.Fprintf(f.writer, "Latency: p50 %.1fms, p90 %.1fms, p99 %.1fms, max %.1fms\n", lat.P50, lat.P90, lat.P99, lat.Max)
	}
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitchain"), version)
}
