package capture

import (
	"encoding/json"
	"testing"

	"github.com/abdul-hamid-achik/hitchain/packages/http"
	"github.com/stretchr/testify/assert"
)

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: 201,
		Headers:    map[string]string{"Content-Type": "application/json", "Location": "/items/7"},
		Body:       []byte(body),
	}
}

func TestExtract(t *testing.T) {
	resp := jsonResponse(`{"id": 7, "user": {"name": "ann"}, "items": [{"pid": "a"}]}`)
	e := NewExtractor(resp)

	tests := []struct {
		name    string
		capture Capture
		want    any
		found   bool
	}{
		{"top level", Capture{Key: "id", Source: "id"}, 7.0, true},
		{"nested", Capture{Key: "n", Source: "user.name"}, "ann", true},
		{"bracket index", Capture{Key: "p", Source: "items[0].pid"}, "a", true},
		{"whole body", Capture{Key: "b", Source: ""}, map[string]any{"id": 7.0, "user": map[string]any{"name": "ann"}, "items": []any{map[string]any{"pid": "a"}}}, true},
		{"header", Capture{Key: "loc", Source: "location", In: Header}, "/items/7", true},
		{"status", Capture{Key: "s", In: Status}, 201, true},
		{"missing", Capture{Key: "x", Source: "nope"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.Extract(tt.capture)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_LargeIntegerKeepsDigits(t *testing.T) {
	e := NewExtractor(jsonResponse(`{"id": 9007199254740993, "items": [{"id": 9007199254740995}]}`))

	v, ok := e.Extract(Capture{Key: "id", Source: "id"})
	assert.True(t, ok)
	assert.Equal(t, json.Number("9007199254740993"), v)

	v, ok = e.Extract(Capture{Key: "items", Source: "items"})
	assert.True(t, ok)
	assert.Equal(t, []any{map[string]any{"id": json.Number("9007199254740995")}}, v)
}

func TestExtract_NonJSONBody(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Body: []byte("token-123")}
	e := NewExtractor(resp)

	v, ok := e.Extract(Capture{Key: "t"})
	assert.True(t, ok)
	assert.Equal(t, "token-123", v)

	_, ok = e.Extract(Capture{Key: "t", Source: "id"})
	assert.False(t, ok)
}

func TestExtractAll(t *testing.T) {
	resp := jsonResponse(`{"id": 7}`)
	values, missing := ExtractAll(resp, []Capture{
		{Key: "id", Source: "id"},
		{Key: "a", Source: "absent"},
		{Key: "b", Source: "other", Optional: true},
	})

	assert.Equal(t, map[string]any{"id": 7.0}, values)
	assert.Equal(t, []Capture{{Key: "a", Source: "absent"}}, missing)
}
