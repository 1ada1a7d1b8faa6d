package assertions

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/http"
	"github.com/abdul-hamid-achik/hitchain/packages/jsonutil"
	"github.com/tidwall/gjson"
)

type Kind string

const (
	KindStatus   Kind = "status"
	KindBody     Kind = "body"
	KindContains Kind = "contains"
	KindPattern  Kind = "pattern"
	KindField    Kind = "field"
	KindHeader   Kind = "header"
	KindSchema   Kind = "schema"
)

// Failure describes one unmet expectation. Path is the JSON path of the
// mismatch for body expectations, empty for the document root.
type Failure struct {
	Kind     Kind
	Path     string
	Expected any
	Actual   any
	Message  string
}

func (f Failure) String() string {
	subject := string(f.Kind)
	if f.Path != "" {
		subject += " " + f.Path
	}
	return subject + ": " + f.Message
}

// Expectation is one check against a response.
type Expectation interface {
	Kind() Kind
	Evaluate(t *Target) []Failure
	String() string
}

// Transformer is implemented by expectations carrying expected values that
// are resolved at execution time. fn receives every expected value and
// returns its replacement; the receiver is left untouched.
type Transformer interface {
	Transform(fn func(any) (any, error)) (Expectation, error)
}

// Target is a response prepared for evaluation. The body is decoded once.
type Target struct {
	Response *http.Response
	body     any
	isJSON   bool
	json     gjson.Result
}

func NewTarget(resp *http.Response) *Target {
	t := &Target{Response: resp}
	if resp.IsJSON() {
		if body, err := jsonutil.Decode(resp.Body); err == nil {
			t.body = body
			t.isJSON = true
			t.json = gjson.ParseBytes(resp.Body)
		}
	}
	return t
}

// Body returns the decoded JSON body; ok is false when the body is not JSON.
func (t *Target) Body() (any, bool) {
	return t.body, t.isJSON
}

// Get looks up a path in the JSON body. Bracket indexes are accepted.
func (t *Target) Get(path string) (any, bool) {
	if !t.isJSON {
		return nil, false
	}
	if path == "" {
		return t.body, true
	}
	r := t.json.Get(convertBracketNotation(path))
	if !r.Exists() {
		return nil, false
	}
	return jsonutil.FromResult(r), true
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// convertBracketNotation converts array bracket notation to gjson dot notation
// e.g., "[0].id" -> "0.id", "items[0].tags[1]" -> "items.0.tags.1"
func convertBracketNotation(path string) string {
	result := bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(result, ".")
}

// Evaluate runs every expectation and returns all failures in order.
func Evaluate(resp *http.Response, exps []Expectation) []Failure {
	t := NewTarget(resp)
	var failures []Failure
	for _, e := range exps {
		failures = append(failures, e.Evaluate(t)...)
	}
	return failures
}

// Check is Evaluate returning an *AssertionFailedError when anything failed.
func Check(resp *http.Response, exps []Expectation) error {
	if failures := Evaluate(resp, exps); len(failures) > 0 {
		return &AssertionFailedError{Failures: failures}
	}
	return nil
}

// render formats a value for messages: JSON for containers, %v otherwise.
func render(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err == nil {
			return string(b)
		}
	case string:
		return fmt.Sprintf("%q", v)
	case nil:
		return "null"
	}
	return fmt.Sprintf("%v", v)
}
