// Package capture extracts values from HTTP responses so later requests can
// reference them through the variable store.
//
// Values can be captured from:
//   - the response body, by gjson path ("" captures the whole body)
//   - a response header
//   - the response status code
package capture
