package chain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrChainClosed   = errors.New("chain is closed")
	ErrCleanupFailed = errors.New("cleanup failed")
)

// CleanupFailure is one cleanup that did not pass.
type CleanupFailure struct {
	Step string
	Err  error
}

// CleanupFailedError lists every failed cleanup of one drain, in the order
// they ran.
type CleanupFailedError struct {
	Chain    string
	Failures []CleanupFailure
}

func (e *CleanupFailedError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "chain %q: %d cleanup(s) failed", e.Chain, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, "\n  - %s: %v", f.Step, f.Err)
	}
	return sb.String()
}

func (e *CleanupFailedError) Is(target error) bool {
	return target == ErrCleanupFailed
}

// Unwrap exposes the individual cleanup errors to errors.Is and errors.As.
func (e *CleanupFailedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
