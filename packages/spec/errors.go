package spec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/capture"
)

var (
	ErrTransport  = errors.New("transport error")
	ErrCapture    = errors.New("capture failed")
	ErrNoExecutor = errors.New("builder has no executor")
)

// TransportError wraps a failure to obtain any response.
type TransportError struct {
	Spec   string
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Spec, e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// CaptureError lists the captures that found nothing in a passing response.
type CaptureError struct {
	Spec    string
	Missing []capture.Capture
}

func (e *CaptureError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s: capture not found: %s", e.Spec, strings.Join(parts, ", "))
}

func (e *CaptureError) Is(target error) bool {
	return target == ErrCapture
}
