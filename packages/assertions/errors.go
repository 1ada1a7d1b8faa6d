package assertions

import (
	"errors"
	"fmt"
	"strings"
)

var ErrAssertionFailed = errors.New("assertion failed")

// AssertionFailedError bundles every failure of one evaluation.
type AssertionFailedError struct {
	Failures []Failure
}

func (e *AssertionFailedError) Error() string {
	var sb strings.Builder
	if len(e.Failures) == 1 {
		sb.WriteString("1 assertion failed")
	} else {
		fmt.Fprintf(&sb, "%d assertions failed", len(e.Failures))
	}
	for _, f := range e.Failures {
		sb.WriteString("\n  - ")
		sb.WriteString(f.String())
	}
	return sb.String()
}

func (e *AssertionFailedError) Is(target error) bool {
	return target == ErrAssertionFailed
}
