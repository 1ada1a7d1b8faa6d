package spec

import (
	"context"
	"net/http"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
	"github.com/abdul-hamid-achik/hitchain/packages/capture"
	"github.com/abdul-hamid-achik/hitchain/packages/fixture"
)

// Runner executes a built spec. *Executor is the usual Runner; chain steps
// supply their own so that Execute goes through the chain.
type Runner interface {
	Execute(ctx context.Context, rs RequestSpec) (*Result, error)
}

// Builder accumulates a RequestSpec. Builders are not safe for concurrent use.
type Builder struct {
	runner Runner
	spec   RequestSpec
}

// New starts a builder bound to exec; exec may be nil when the spec is only
// built, never executed through the builder.
func New(exec *Executor) *Builder {
	if exec == nil {
		return &Builder{}
	}
	return &Builder{runner: exec}
}

// NewWithRunner starts a builder whose Execute calls r.
func NewWithRunner(r Runner) *Builder {
	return &Builder{runner: r}
}

// From starts a builder from a copy of an existing spec.
func From(r Runner, rs RequestSpec) *Builder {
	return &Builder{runner: r, spec: rs.Clone()}
}

func (b *Builder) Request(method, path string) *Builder {
	b.spec.Method = method
	b.spec.Path = path
	return b
}

func (b *Builder) Get(path string) *Builder    { return b.Request(http.MethodGet, path) }
func (b *Builder) Post(path string) *Builder   { return b.Request(http.MethodPost, path) }
func (b *Builder) Put(path string) *Builder    { return b.Request(http.MethodPut, path) }
func (b *Builder) Patch(path string) *Builder  { return b.Request(http.MethodPatch, path) }
func (b *Builder) Delete(path string) *Builder { return b.Request(http.MethodDelete, path) }

func (b *Builder) Named(name string) *Builder {
	b.spec.Name = name
	return b
}

func (b *Builder) WithHeader(key, value string) *Builder {
	if b.spec.Headers == nil {
		b.spec.Headers = make(map[string]string)
	}
	b.spec.Headers[key] = value
	return b
}

func (b *Builder) WithHeaders(headers map[string]string) *Builder {
	for k, v := range headers {
		b.WithHeader(k, v)
	}
	return b
}

// WithBearer sets the Authorization header, typically to a stored token
// placeholder such as "${access_token}".
func (b *Builder) WithBearer(token string) *Builder {
	return b.WithHeader("Authorization", "Bearer "+token)
}

func (b *Builder) WithQuery(key, value string) *Builder {
	if b.spec.Query == nil {
		b.spec.Query = make(map[string]string)
	}
	b.spec.Query[key] = value
	return b
}

func (b *Builder) WithBody(body any) *Builder {
	b.spec.Body = body
	return b
}

// WithJSON sets the body and an explicit JSON content type.
func (b *Builder) WithJSON(body any) *Builder {
	b.spec.Body = body
	return b.WithHeader("Content-Type", "application/json")
}

// WithFixture sets the body to a fixture descriptor.
func (b *Builder) WithFixture(template string, overrides map[string]any) *Builder {
	b.spec.Body = fixture.Descriptor{Template: template, Overrides: overrides}
	return b
}

func (b *Builder) Expect(e assertions.Expectation) *Builder {
	b.spec.Expectations = append(b.spec.Expectations, e)
	return b
}

func (b *Builder) ExpectStatus(code int) *Builder {
	return b.Expect(assertions.StatusEquals{Code: code})
}

func (b *Builder) ExpectBody(v any) *Builder {
	return b.Expect(assertions.BodyEquals{Expected: v})
}

func (b *Builder) ExpectBodyContains(s string) *Builder {
	return b.Expect(assertions.BodyContains{Substring: s})
}

// ExpectJSONLike adds a partial match. The pattern may be, or embed, a
// fixture descriptor.
func (b *Builder) ExpectJSONLike(pattern any) *Builder {
	return b.Expect(assertions.BodyMatches{Pattern: pattern})
}

// ExpectFixtureLike is ExpectJSONLike with a descriptor pattern.
func (b *Builder) ExpectFixtureLike(template string, overrides map[string]any) *Builder {
	return b.ExpectJSONLike(fixture.Descriptor{Template: template, Overrides: overrides})
}

func (b *Builder) ExpectField(path string) *Builder {
	return b.Expect(assertions.FieldExists{Path: path})
}

func (b *Builder) ExpectHeader(name, value string) *Builder {
	return b.Expect(assertions.HeaderEquals{Name: name, Value: value})
}

// ExpectSchema validates the body against a JSON Schema document.
func (b *Builder) ExpectSchema(schema any) *Builder {
	return b.Expect(assertions.BodyJSONSchema{Schema: schema})
}

// Stores captures the body value at a gjson path; "" stores the whole body.
func (b *Builder) Stores(key, source string) *Builder {
	b.spec.Captures = append(b.spec.Captures, Capture{Key: key, Source: source})
	return b
}

// StoresIfPresent is Stores without failing when the path is absent.
func (b *Builder) StoresIfPresent(key, source string) *Builder {
	b.spec.Captures = append(b.spec.Captures, Capture{Key: key, Source: source, Optional: true})
	return b
}

func (b *Builder) StoresHeader(key, name string) *Builder {
	b.spec.Captures = append(b.spec.Captures, Capture{Key: key, Source: name, In: capture.Header})
	return b
}

// Capture adds a fully specified capture.
func (b *Builder) Capture(c Capture) *Builder {
	b.spec.Captures = append(b.spec.Captures, c)
	return b
}

func (b *Builder) StoresStatus(key string) *Builder {
	b.spec.Captures = append(b.spec.Captures, Capture{Key: key, In: capture.Status})
	return b
}

// Build returns an independent copy of the accumulated spec.
func (b *Builder) Build() RequestSpec {
	return b.spec.Clone()
}

// Execute builds the spec and hands it to the bound runner.
func (b *Builder) Execute(ctx context.Context) (*Result, error) {
	if b.runner == nil {
		return nil, ErrNoExecutor
	}
	return b.runner.Execute(ctx, b.Build())
}
