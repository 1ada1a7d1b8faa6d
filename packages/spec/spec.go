package spec

import (
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
	"github.com/abdul-hamid-achik/hitchain/packages/capture"
	"github.com/abdul-hamid-achik/hitchain/packages/fixture"
	"github.com/abdul-hamid-achik/hitchain/packages/jsonutil"
)

// Capture stores a value from the response under Key.
type Capture = capture.Capture

// RequestSpec is one declarative exchange. Treat it as a value: Builder and
// Clone hand out copies that share nothing mutable.
type RequestSpec struct {
	Name    string
	Method  string
	Path    string
	Headers map[string]string
	Query   map[string]string
	// Body is a JSON value, a fixture.Descriptor, or a JSON value embedding
	// descriptor objects.
	Body         any
	Expectations []assertions.Expectation
	Captures     []Capture
}

// IsZero reports whether no request was specified.
func (r RequestSpec) IsZero() bool {
	return r.Method == ""
}

// Label is the name, or method and path when unnamed.
func (r RequestSpec) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.String()
}

func (r RequestSpec) String() string {
	return strings.TrimSpace(r.Method + " " + r.Path)
}

// Clone deep copies the spec.
func (r RequestSpec) Clone() RequestSpec {
	out := r
	out.Headers = cloneStrings(r.Headers)
	out.Query = cloneStrings(r.Query)
	out.Body = cloneValue(r.Body)
	if r.Expectations != nil {
		out.Expectations = make([]assertions.Expectation, len(r.Expectations))
		for i, e := range r.Expectations {
			if t, ok := e.(assertions.Transformer); ok {
				if c, err := t.Transform(func(v any) (any, error) { return cloneValue(v), nil }); err == nil {
					e = c
				}
			}
			out.Expectations[i] = e
		}
	}
	if r.Captures != nil {
		out.Captures = append([]Capture(nil), r.Captures...)
	}
	return out
}

// Describe lists the request, expectations and captures, one per line.
func (r RequestSpec) Describe() []string {
	lines := []string{r.String()}
	for _, e := range r.Expectations {
		lines = append(lines, "expect "+e.String())
	}
	for _, c := range r.Captures {
		lines = append(lines, "store "+c.String())
	}
	return lines
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneValue(v any) any {
	if d, ok := v.(fixture.Descriptor); ok {
		out := fixture.Descriptor{Template: d.Template}
		if d.Overrides != nil {
			out.Overrides, _ = jsonutil.Clone(d.Overrides).(map[string]any)
		}
		return out
	}
	return jsonutil.Clone(v)
}
