package fixture

import (
	"errors"
	"fmt"
)

var (
	// ErrResolution is matched by every error produced while expanding fixtures.
	ErrResolution = errors.New("fixture resolution failed")
	// ErrTemplateNotFound is matched when a catalog has no document for a name.
	ErrTemplateNotFound = errors.New("template not found")
)

type TemplateNotFoundError struct {
	Name string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template %q not found", e.Name)
}

func (e *TemplateNotFoundError) Is(target error) bool {
	return target == ErrTemplateNotFound || target == ErrResolution
}

type ResolutionError struct {
	Template string
	Msg      string
	Err      error
}

func (e *ResolutionError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if e.Template != "" {
		return fmt.Sprintf("resolving template %q: %s", e.Template, msg)
	}
	return "resolving fixture: " + msg
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}
