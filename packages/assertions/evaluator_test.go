package assertions

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createResponse(statusCode int, body string, headers map[string]string) *http.Response {
	if headers == nil {
		headers = make(map[string]string)
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}
	return &http.Response{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       []byte(body),
		Duration:   100 * time.Millisecond,
	}
}

func TestStatusEquals(t *testing.T) {
	resp := createResponse(200, `{}`, nil)
	assert.Empty(t, Evaluate(resp, []Expectation{StatusEquals{Code: 200}}))

	failures := Evaluate(resp, []Expectation{StatusEquals{Code: 201}})
	require.Len(t, failures, 1)
	assert.Equal(t, KindStatus, failures[0].Kind)
	assert.Equal(t, 201, failures[0].Expected)
	assert.Equal(t, 200, failures[0].Actual)
}

func TestBodyEquals(t *testing.T) {
	resp := createResponse(200, `{"a": 1, "b": [1, 2], "c": {"d": "x"}}`, nil)

	tests := []struct {
		name     string
		expected any
		passed   bool
	}{
		{"exact", map[string]any{"a": 1, "b": []int{1, 2}, "c": map[string]any{"d": "x"}}, true},
		{"missing field", map[string]any{"a": 1, "b": []int{1, 2}}, false},
		{"different value", map[string]any{"a": 2, "b": []int{1, 2}, "c": map[string]any{"d": "x"}}, false},
		{"array order matters", map[string]any{"a": 1, "b": []int{2, 1}, "c": map[string]any{"d": "x"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := Evaluate(resp, []Expectation{BodyEquals{Expected: tt.expected}})
			assert.Equal(t, tt.passed, len(failures) == 0, "%v", failures)
		})
	}
}

func TestBodyEquals_Text(t *testing.T) {
	resp := createResponse(200, "OK", map[string]string{"Content-Type": "text/plain"})
	assert.Empty(t, Evaluate(resp, []Expectation{BodyEquals{Expected: "OK"}}))
	assert.Len(t, Evaluate(resp, []Expectation{BodyEquals{Expected: "NO"}}), 1)
}

func TestBodyContains(t *testing.T) {
	resp := createResponse(200, `{"message": "Hello, World!"}`, nil)
	assert.Empty(t, Evaluate(resp, []Expectation{BodyContains{Substring: "World"}}))

	failures := Evaluate(resp, []Expectation{BodyContains{Substring: "Goodbye"}})
	require.Len(t, failures, 1)
	assert.Equal(t, KindContains, failures[0].Kind)
}

func TestBodyMatches(t *testing.T) {
	resp := createResponse(200, `{"a": 1, "b": 2, "items": [{"id": 1, "name": "x"}, {"id": 2, "name": "y"}]}`, nil)

	tests := []struct {
		name    string
		pattern any
		paths   []string
	}{
		{"subset passes", map[string]any{"a": 1}, nil},
		{"list element anywhere", map[string]any{"items": []any{map[string]any{"name": "y"}}}, nil},
		{"list elements unordered", map[string]any{"items": []any{map[string]any{"id": 2}, map[string]any{"id": 1}}}, nil},
		{"integer matches float", map[string]any{"b": 2.0}, nil},
		{"value mismatch", map[string]any{"a": 2}, []string{"a"}},
		{"missing field", map[string]any{"z": true}, []string{"z"}},
		{"no matching element", map[string]any{"items": []any{map[string]any{"name": "q"}}}, []string{"items[0]"}},
		{"type mismatch", map[string]any{"items": map[string]any{}}, []string{"items"}},
		{"every mismatch reported", map[string]any{"a": 9, "b": 9}, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := Evaluate(resp, []Expectation{BodyMatches{Pattern: tt.pattern}})
			var paths []string
			for _, f := range failures {
				assert.Equal(t, KindPattern, f.Kind)
				paths = append(paths, f.Path)
			}
			assert.Equal(t, tt.paths, paths)
		})
	}
}

func TestBodyMatches_LargeIntegers(t *testing.T) {
	resp := createResponse(200, `{"id": 9007199254740993}`, nil)

	failures := Evaluate(resp, []Expectation{BodyMatches{Pattern: map[string]any{"id": float64(9007199254740992)}}})
	require.Len(t, failures, 1)
	assert.Equal(t, "id", failures[0].Path)

	assert.Empty(t, Evaluate(resp, []Expectation{BodyMatches{Pattern: map[string]any{"id": json.Number("9007199254740993")}}}))
	assert.Empty(t, Evaluate(resp, []Expectation{BodyEquals{Expected: map[string]any{"id": json.Number("9007199254740993")}}}))
}

func TestBodyMatches_NestedPath(t *testing.T) {
	resp := createResponse(200, `{"items": [{"name": "x", "tags": {"k": "v"}}]}`, nil)
	failures := match("", map[string]any{"items": []any{map[string]any{"tags": map[string]any{"k": "w"}}}}, mustBody(t, resp))
	require.Len(t, failures, 1)
	assert.Equal(t, "items[0]", failures[0].Path)

	direct := match("items[0]", map[string]any{"name": "z"}, map[string]any{"name": "x"})
	require.Len(t, direct, 1)
	assert.Equal(t, "items[0].name", direct[0].Path)
}

func TestBodyMatches_NotJSON(t *testing.T) {
	resp := createResponse(200, "plain", map[string]string{"Content-Type": "text/plain"})
	failures := Evaluate(resp, []Expectation{BodyMatches{Pattern: map[string]any{"a": 1}}})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Message, "not JSON")
}

func TestFieldExists(t *testing.T) {
	resp := createResponse(200, `{"data": {"id": 123, "items": [{"id": 1}]}}`, nil)

	tests := []struct {
		path   string
		passed bool
	}{
		{"data.id", true},
		{"data.items[0].id", true},
		{"data.items.0.id", true},
		{"data.missing", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			failures := Evaluate(resp, []Expectation{FieldExists{Path: tt.path}})
			assert.Equal(t, tt.passed, len(failures) == 0)
		})
	}
}

func TestHeaderEquals(t *testing.T) {
	resp := createResponse(200, `{}`, map[string]string{
		"Content-Type": "application/json",
		"X-Request-Id": "abc-123",
	})
	assert.Empty(t, Evaluate(resp, []Expectation{HeaderEquals{Name: "x-request-id", Value: "abc-123"}}))

	failures := Evaluate(resp, []Expectation{HeaderEquals{Name: "X-Request-Id", Value: "other"}})
	require.Len(t, failures, 1)
	assert.Equal(t, "abc-123", failures[0].Actual)
}

func TestBodyJSONSchema(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"id", "name"},
		"properties": map[string]any{
			"id":   map[string]any{"type": "integer"},
			"name": map[string]any{"type": "string"},
		},
	}

	valid := createResponse(200, `{"id": 1, "name": "John"}`, nil)
	assert.Empty(t, Evaluate(valid, []Expectation{BodyJSONSchema{Schema: schema}}))

	invalid := createResponse(200, `{"id": "one"}`, nil)
	failures := Evaluate(invalid, []Expectation{BodyJSONSchema{Schema: schema}})
	assert.NotEmpty(t, failures)
	for _, f := range failures {
		assert.Equal(t, KindSchema, f.Kind)
	}
}

func TestLoadSchemaFile(t *testing.T) {
	tmpDir := t.TempDir()
	schemaPath := filepath.Join(tmpDir, "schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`{"type": "object", "required": ["id"]}`), 0644))

	exp, err := LoadSchemaFile("schema.json", tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "schema.json", exp.Source)

	assert.Empty(t, Evaluate(createResponse(200, `{"id": 1}`, nil), []Expectation{exp}))
	assert.NotEmpty(t, Evaluate(createResponse(200, `{}`, nil), []Expectation{exp}))
}

func TestLoadSchemaFile_PathTraversal(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := LoadSchemaFile("../../../etc/passwd", tmpDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}

func TestCheck_CollectsAllFailures(t *testing.T) {
	resp := createResponse(400, `{"error": "bad"}`, nil)
	err := Check(resp, []Expectation{
		StatusEquals{Code: 201},
		BodyMatches{Pattern: map[string]any{"id": 1}},
		BodyContains{Substring: "created"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAssertionFailed))

	var afe *AssertionFailedError
	require.True(t, errors.As(err, &afe))
	require.Len(t, afe.Failures, 3)
	assert.Equal(t, KindStatus, afe.Failures[0].Kind)
	assert.Equal(t, KindPattern, afe.Failures[1].Kind)
	assert.Equal(t, KindContains, afe.Failures[2].Kind)
	assert.Contains(t, err.Error(), "3 assertions failed")
	assert.Contains(t, err.Error(), "expected 201, got 400")

	assert.NoError(t, Check(resp, []Expectation{StatusEquals{Code: 400}}))
}

func TestTransform(t *testing.T) {
	upper := func(v any) (any, error) {
		if s, ok := v.(string); ok {
			return s + "!", nil
		}
		return v, nil
	}
	orig := HeaderEquals{Name: "X", Value: "a"}
	out, err := orig.Transform(upper)
	require.NoError(t, err)
	assert.Equal(t, HeaderEquals{Name: "X", Value: "a!"}, out)
	assert.Equal(t, "a", orig.Value)

	_, err = BodyMatches{Pattern: "x"}.Transform(func(any) (any, error) { return nil, errors.New("boom") })
	assert.EqualError(t, err, "boom")
}

func TestValidatePathWithinBase(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"inside", filepath.Join(tmpDir, "schema.json"), false},
		{"nested", filepath.Join(tmpDir, "a", "b.json"), false},
		{"escape", filepath.Join(tmpDir, "..", "x.json"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePathWithinBase(tt.path, tmpDir)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.NoError(t, validatePathWithinBase("/anything", ""))
}

func mustBody(t *testing.T, resp *http.Response) any {
	t.Helper()
	v, err := resp.JSON()
	require.NoError(t, err)
	return v
}
