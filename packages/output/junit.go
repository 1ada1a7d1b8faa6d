package output

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents one suite file
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase is one request; chains become the class name.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats suite results as JUnit XML
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:     os.Stdout,
		testSuites: make([]JUnitTestSuite, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) FormatResult(result *runner.RunResult) {
	suite := JUnitTestSuite{
		Name:      result.Name,
		Tests:     len(result.Entries),
		Skipped:   result.Skipped,
		Time:      result.Duration.Seconds(),
		Timestamp: time.Now().Format(time.RFC3339),
		TestCases: make([]JUnitTestCase, 0, len(result.Entries)),
	}

	for _, e := range result.Entries {
		name := e.Name
		if e.Phase == runner.PhaseSetup || e.Phase == runner.PhaseCleanup {
			name = string(e.Phase) + ": " + name
		}
		className := result.Name
		if e.Chain != "" {
			className += "." + e.Chain
		}
		tc := JUnitTestCase{
			Name:      name,
			ClassName: className,
			Time:      e.Duration.Seconds(),
			SystemOut: exchangeLog(e),
		}

		var failed *assertions.AssertionFailedError
		switch {
		case e.Skipped:
			tc.Skipped = &JUnitSkipped{Message: e.SkipReason}
		case errors.As(e.Err, &failed):
			suite.Failures++
			var msg strings.Builder
			for _, fl := range failed.Failures {
				fmt.Fprintf(&msg, "%s\n", fl.String())
			}
			tc.Failure = &JUnitFailure{
				Message: "Assertion failed",
				Type:    "AssertionError",
				Content: msg.String(),
			}
		case e.Err != nil:
			suite.Errors++
			tc.Error = &JUnitError{
				Message: e.Err.Error(),
				Type:    "Error",
			}
		}

		suite.TestCases = append(suite.TestCases, tc)
	}

	f.testSuites = append(f.testSuites, suite)
}

// FormatError records a file that could not be run as a suite with one
// erroring test case.
func (f *JUnitFormatter) FormatError(err error) {
	f.testSuites = append(f.testSuites, JUnitTestSuite{
		Name:      "errors",
		Tests:     1,
		Errors:    1,
		Timestamp: time.Now().Format(time.RFC3339),
		TestCases: []JUnitTestCase{{
			Name:      "load",
			ClassName: "errors",
			Error:     &JUnitError{Message: err.Error(), Type: "LoadError"},
		}},
	})
}

// exchangeLog renders the request line, status and captures of an entry.
func exchangeLog(e *runner.Entry) string {
	if e.Result == nil || e.Result.Request == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Result.Request.Method, e.Result.Request.Path)
	if e.Result.Response != nil {
		fmt.Fprintf(&b, " -> %d", e.Result.Response.StatusCode)
	}
	b.WriteString("\n")
	keys := make([]string, 0, len(e.Result.Captured))
	for k := range e.Result.Captured {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "store %s = %s\n", k, formatValue(e.Result.Captured[k], 80))
	}
	return b.String()
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit XML
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	var totalTests, totalFailures, totalErrors, totalSkipped int
	for _, suite := range f.testSuites {
		totalTests += suite.Tests
		totalFailures += suite.Failures
		totalErrors += suite.Errors
		totalSkipped += suite.Skipped
	}

	suites := JUnitTestSuites{
		Name:       "hitchain",
		Tests:      totalTests,
		Failures:   totalFailures,
		Errors:     totalErrors,
		Skipped:    totalSkipped,
		Time:       totalDuration.Seconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
		TestSuites: f.testSuites,
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	return encoder.Encode(suites)
}
