// Package assertions evaluates expectations against a response.
//
// Supported expectations:
//   - StatusEquals (exact status code)
//   - BodyEquals (structural equality of the JSON body, or exact text)
//   - BodyContains (substring of the raw body)
//   - BodyMatches (partial JSON match, extra fields ignored)
//   - FieldExists (gjson path present in the body)
//   - HeaderEquals (case-insensitive header name)
//   - BodyJSONSchema (JSON Schema validation)
//
// Every expectation is evaluated; a failing one never hides another.
package assertions
