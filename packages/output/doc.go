// Package output provides formatters for displaying suite results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//
// Every format reports latency percentiles over the executed requests.
// JSON and JUnit accumulate results and write them on Flush.
package output
