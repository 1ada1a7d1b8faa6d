// Package runner executes hitchain suite files.
//
// A file runs as one suite with its own variable store:
//   - setup specs run first; a setup failure skips everything after it
//   - each chain runs its steps in order, stops at the first failing step
//     and then drains its cleanups, most recent first
//   - independent specs run last
//
// Chains and specs can be filtered by name pattern and tags. With Bail set,
// the first failure skips all remaining work except pending cleanups.
package runner
