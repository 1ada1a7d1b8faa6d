package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/abdul-hamid-achik/hitchain/packages/logging"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary    `json:"summary"`
	Latency  LatencySummary `json:"latency"`
	Tests    []JSONTest     `json:"tests"`
	Errors   []string       `json:"errors,omitempty"`
	Duration float64        `json:"duration"`
	Time     string         `json:"time"`
}

// JSONSummary represents the test summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// JSONTest represents a single executed or skipped request
type JSONTest struct {
	Name       string         `json:"name"`
	Chain      string         `json:"chain,omitempty"`
	Phase      string         `json:"phase"`
	File       string         `json:"file"`
	Passed     bool           `json:"passed"`
	Skipped    bool           `json:"skipped,omitempty"`
	SkipReason string         `json:"skipReason,omitempty"`
	Duration   float64        `json:"duration"`
	Error      string         `json:"error,omitempty"`
	Request    *JSONRequest   `json:"request,omitempty"`
	Response   *JSONResponse  `json:"response,omitempty"`
	Failures   []JSONFailure  `json:"failures,omitempty"`
	Captures   map[string]any `json:"captures,omitempty"`
}

// JSONRequest represents request details. Credentials are masked.
type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Duration   float64           `json:"duration"`
}

// JSONFailure represents one unmet expectation
type JSONFailure struct {
	Kind     string `json:"kind"`
	Path     string `json:"path,omitempty"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
	Message  string `json:"message"`
}

// JSONFormatter formats suite results as JSON
type JSONFormatter struct {
	writer  io.Writer
	results []JSONTest
	errors  []string
	latency *Latency
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONTest, 0),
		latency: NewLatency(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	f.latency.Add(result)

	for _, e := range result.Entries {
		test := JSONTest{
			Name:     e.Name,
			Chain:    e.Chain,
			Phase:    string(e.Phase),
			File:     result.File,
			Passed:   e.Passed(),
			Skipped:  e.Skipped,
			Duration: float64(e.Duration.Milliseconds()),
		}

		if e.SkipReason != "" && e.SkipReason != "filtered out" {
			test.SkipReason = e.SkipReason
		}

		if e.Err != nil {
			test.Error = e.Err.Error()
			var failed *assertions.AssertionFailedError
			if errors.As(e.Err, &failed) {
				test.Failures = make([]JSONFailure, len(failed.Failures))
				for i, fl := range failed.Failures {
					test.Failures[i] = JSONFailure{
						Kind:     string(fl.Kind),
						Path:     fl.Path,
						Expected: fl.Expected,
						Actual:   fl.Actual,
						Message:  fl.Message,
					}
				}
			}
		}

		if res := e.Result; res != nil {
			if res.Request != nil {
				test.Request = &JSONRequest{
					Method:  res.Request.Method,
					URL:     res.Request.Path,
					Headers: logging.MaskHeaders(res.Request.Headers),
				}
			}
			if res.Response != nil {
				test.Response = &JSONResponse{
					StatusCode: res.Response.StatusCode,
					Status:     res.Response.Status,
					Headers:    res.Response.Headers,
					Duration:   float64(res.Response.Duration.Milliseconds()),
				}
			}
			if len(res.Captured) > 0 {
				test.Captures = res.Captured
			}
		}

		f.results = append(f.results, test)
	}
}

// FormatError records file-level errors such as parse failures.
func (f *JSONFormatter) FormatError(err error) {
	f.errors = append(f.errors, err.Error())
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var passed, failed, skipped int
	for _, t := range f.results {
		if t.Skipped {
			skipped++
		} else if t.Passed {
			passed++
		} else {
			failed++
		}
	}

	output := JSONOutput{
		Summary: JSONSummary{
			Total:   len(f.results),
			Passed:  passed,
			Failed:  failed,
			Skipped: skipped,
		},
		Latency:  f.latency.Summary(),
		Tests:    f.results,
		Errors:   f.errors,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
