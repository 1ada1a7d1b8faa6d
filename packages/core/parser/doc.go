// Package parser reads hitchain suite files.
//
// A suite file is YAML with three sections run in order:
//   - setup: plain specs executed first (login, seed data)
//   - chains: multi-step test cases whose steps may register a clean spec
//   - specs: independent specs
//
// Each spec names exactly one method key (get, post, put, patch, delete)
// holding the path, plus optional headers, query, json or fixture body,
// expect block and store map. Unknown keys are rejected with their line.
package parser
