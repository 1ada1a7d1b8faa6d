package assertions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/jsonutil"
	"github.com/xeipuuv/gojsonschema"
)

type StatusEquals struct {
	Code int
}

func (e StatusEquals) Kind() Kind { return KindStatus }

func (e StatusEquals) String() string { return fmt.Sprintf("status == %d", e.Code) }

func (e StatusEquals) Evaluate(t *Target) []Failure {
	if t.Response.StatusCode == e.Code {
		return nil
	}
	return []Failure{{
		Kind:     KindStatus,
		Expected: e.Code,
		Actual:   t.Response.StatusCode,
		Message:  fmt.Sprintf("expected %d, got %d", e.Code, t.Response.StatusCode),
	}}
}

// BodyEquals requires the whole body to equal Expected. A string Expected
// against a non-JSON body compares the raw text.
type BodyEquals struct {
	Expected any
}

func (e BodyEquals) Kind() Kind { return KindBody }

func (e BodyEquals) String() string { return "body == " + render(e.Expected) }

func (e BodyEquals) Transform(fn func(any) (any, error)) (Expectation, error) {
	v, err := fn(e.Expected)
	if err != nil {
		return nil, err
	}
	return BodyEquals{Expected: v}, nil
}

func (e BodyEquals) Evaluate(t *Target) []Failure {
	expected, err := jsonutil.Normalize(e.Expected)
	if err != nil {
		return []Failure{{Kind: KindBody, Expected: e.Expected, Message: err.Error()}}
	}

	body, isJSON := t.Body()
	if !isJSON {
		text := t.Response.BodyString()
		if s, ok := expected.(string); ok && s == text {
			return nil
		}
		return []Failure{{
			Kind:     KindBody,
			Expected: expected,
			Actual:   text,
			Message:  fmt.Sprintf("expected %s, got %s", render(expected), render(text)),
		}}
	}

	if equalJSON(expected, body) {
		return nil
	}
	return []Failure{{
		Kind:     KindBody,
		Expected: expected,
		Actual:   body,
		Message:  fmt.Sprintf("expected %s, got %s", render(expected), render(body)),
	}}
}

type BodyContains struct {
	Substring string
}

func (e BodyContains) Kind() Kind { return KindContains }

func (e BodyContains) String() string { return fmt.Sprintf("body contains %q", e.Substring) }

func (e BodyContains) Transform(fn func(any) (any, error)) (Expectation, error) {
	s, err := transformString(fn, e.Substring)
	if err != nil {
		return nil, err
	}
	return BodyContains{Substring: s}, nil
}

func (e BodyContains) Evaluate(t *Target) []Failure {
	body := t.Response.BodyString()
	if strings.Contains(body, e.Substring) {
		return nil
	}
	return []Failure{{
		Kind:     KindContains,
		Expected: e.Substring,
		Actual:   body,
		Message:  fmt.Sprintf("expected body to contain %q", e.Substring),
	}}
}

// BodyMatches requires the body to contain Pattern; see match for the rules.
type BodyMatches struct {
	Pattern any
}

func (e BodyMatches) Kind() Kind { return KindPattern }

func (e BodyMatches) String() string { return "body like " + render(e.Pattern) }

func (e BodyMatches) Transform(fn func(any) (any, error)) (Expectation, error) {
	v, err := fn(e.Pattern)
	if err != nil {
		return nil, err
	}
	return BodyMatches{Pattern: v}, nil
}

func (e BodyMatches) Evaluate(t *Target) []Failure {
	pattern, err := jsonutil.Normalize(e.Pattern)
	if err != nil {
		return []Failure{{Kind: KindPattern, Expected: e.Pattern, Message: err.Error()}}
	}
	body, isJSON := t.Body()
	if !isJSON {
		return []Failure{{
			Kind:     KindPattern,
			Expected: pattern,
			Actual:   t.Response.BodyString(),
			Message:  "response body is not JSON",
		}}
	}
	return match("", pattern, body)
}

// FieldExists requires a gjson path to be present in the JSON body.
type FieldExists struct {
	Path string
}

func (e FieldExists) Kind() Kind { return KindField }

func (e FieldExists) String() string { return "field " + e.Path + " exists" }

func (e FieldExists) Transform(fn func(any) (any, error)) (Expectation, error) {
	p, err := transformString(fn, e.Path)
	if err != nil {
		return nil, err
	}
	return FieldExists{Path: p}, nil
}

func (e FieldExists) Evaluate(t *Target) []Failure {
	if _, isJSON := t.Body(); !isJSON {
		return []Failure{{Kind: KindField, Path: e.Path, Message: "response body is not JSON"}}
	}
	if _, ok := t.Get(e.Path); ok {
		return nil
	}
	return []Failure{{Kind: KindField, Path: e.Path, Message: "expected to exist"}}
}

// HeaderEquals compares one response header; the name is case-insensitive.
type HeaderEquals struct {
	Name  string
	Value string
}

func (e HeaderEquals) Kind() Kind { return KindHeader }

func (e HeaderEquals) String() string { return fmt.Sprintf("header %s == %q", e.Name, e.Value) }

func (e HeaderEquals) Transform(fn func(any) (any, error)) (Expectation, error) {
	v, err := transformString(fn, e.Value)
	if err != nil {
		return nil, err
	}
	return HeaderEquals{Name: e.Name, Value: v}, nil
}

func (e HeaderEquals) Evaluate(t *Target) []Failure {
	actual := t.Response.Header(e.Name)
	if actual == e.Value {
		return nil
	}
	return []Failure{{
		Kind:     KindHeader,
		Path:     e.Name,
		Expected: e.Value,
		Actual:   actual,
		Message:  fmt.Sprintf("expected %q, got %q", e.Value, actual),
	}}
}

// BodyJSONSchema validates the body against a JSON Schema. Schema is either
// raw JSON bytes or a decoded schema document.
type BodyJSONSchema struct {
	Schema any
	// Source names the schema in messages, typically its file path.
	Source string
}

func (e BodyJSONSchema) Kind() Kind { return KindSchema }

func (e BodyJSONSchema) String() string {
	if e.Source != "" {
		return "body matches schema " + e.Source
	}
	return "body matches schema"
}

func (e BodyJSONSchema) Evaluate(t *Target) []Failure {
	if _, isJSON := t.Body(); !isJSON {
		return []Failure{{Kind: KindSchema, Message: "response body is not JSON"}}
	}

	var schemaLoader gojsonschema.JSONLoader
	switch s := e.Schema.(type) {
	case []byte:
		schemaLoader = gojsonschema.NewBytesLoader(s)
	case json.RawMessage:
		schemaLoader = gojsonschema.NewBytesLoader(s)
	case string:
		schemaLoader = gojsonschema.NewStringLoader(s)
	default:
		schemaLoader = gojsonschema.NewGoLoader(s)
	}
	documentLoader := gojsonschema.NewBytesLoader(t.Response.Body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return []Failure{{Kind: KindSchema, Message: fmt.Sprintf("schema validation error: %v", err)}}
	}
	if result.Valid() {
		return nil
	}

	failures := make([]Failure, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		path := desc.Field()
		if path == "(root)" {
			path = ""
		}
		failures = append(failures, Failure{
			Kind:    KindSchema,
			Path:    path,
			Actual:  desc.Value(),
			Message: desc.Description(),
		})
	}
	return failures
}

// LoadSchemaFile reads a JSON Schema file. Relative paths resolve against
// baseDir and may not escape it.
func LoadSchemaFile(path, baseDir string) (BodyJSONSchema, error) {
	schemaPath := path
	if !filepath.IsAbs(schemaPath) && baseDir != "" {
		schemaPath = filepath.Join(baseDir, schemaPath)
	}
	if err := validatePathWithinBase(schemaPath, baseDir); err != nil {
		return BodyJSONSchema{}, err
	}

	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return BodyJSONSchema{}, fmt.Errorf("failed to read schema file: %w", err)
	}
	if !json.Valid(data) {
		return BodyJSONSchema{}, fmt.Errorf("schema file %s is not valid JSON", path)
	}
	return BodyJSONSchema{Schema: json.RawMessage(data), Source: path}, nil
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}

func transformString(fn func(any) (any, error), s string) (string, error) {
	v, err := fn(s)
	if err != nil {
		return "", err
	}
	if out, ok := v.(string); ok {
		return out, nil
	}
	return fmt.Sprintf("%v", v), nil
}
