package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/test", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "hello"}`))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Send(context.Background(), &Request{Method: "GET", Path: server.URL + "/test"})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header("Content-Type"))
	assert.Contains(t, resp.BodyString(), "hello")
}

func TestClient_PostEncodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "test", body["name"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 123}`))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Send(context.Background(), &Request{Method: "POST", Path: server.URL, Body: map[string]any{"name": "test"}})

	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Contains(t, resp.BodyString(), "123")
}

func TestClient_ExplicitContentTypeWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/merge-patch+json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	req := &Request{
		Method:  "PATCH",
		Path:    server.URL,
		Headers: map[string]string{"content-type": "application/merge-patch+json"},
		Body:    map[string]any{"a": 1},
	}
	_, err := client.Send(context.Background(), req)
	require.NoError(t, err)
}

func TestClient_BaseURLAndQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/items", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL + "/api/"))
	req := &Request{Method: http.MethodGet, Path: "/items", Query: map[string]string{"page": "2"}}
	resp, err := client.Send(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClient_WithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))
	_, err := client.Send(context.Background(), &Request{Method: "GET", Path: server.URL})

	assert.Error(t, err)
}

func TestClient_ContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient().Send(ctx, &Request{Method: "GET", Path: server.URL})
	assert.Error(t, err)
}

func TestClient_WithDefaultHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "value", r.Header.Get("X-Custom"))
		assert.Equal(t, "override", r.Header.Get("X-Other"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(
		WithDefaultHeader("Authorization", "test-token"),
		WithDefaultHeaders(map[string]string{"X-Custom": "value", "X-Other": "default"}),
	)
	resp, err := client.Send(context.Background(), &Request{Method: "GET", Path: server.URL, Headers: map[string]string{"X-Other": "override"}})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClient_NoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(false))
	resp, err := client.Send(context.Background(), &Request{Method: "GET", Path: server.URL + "/redirect"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/final", resp.Header("Location"))
}

func TestClient_FollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("final"))
	}))
	defer server.Close()

	resp, err := NewClient().Send(context.Background(), &Request{Method: "GET", Path: server.URL + "/redirect"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "final", resp.BodyString())
}

func TestClient_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithRateLimit(20, 1))
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Send(context.Background(), &Request{Method: "GET", Path: server.URL})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestClient_InvalidURL(t *testing.T) {
	_, err := NewClient().Send(context.Background(), &Request{Method: "GET", Path: "ftp://example.com/file"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")
}

func TestTransportFunc(t *testing.T) {
	var tr Transport = TransportFunc(func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{StatusCode: 204}, nil
	})
	resp, err := tr.Send(context.Background(), &Request{Method: "GET", Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://api", "/users", "http://api/users"},
		{"http://api/", "users", "http://api/users"},
		{"http://api", "https://other/x", "https://other/x"},
		{"", "http://x/y", "http://x/y"},
		{"http://api", "", "http://api"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveURL(tt.base, tt.path))
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid http", "http://example.com", false},
		{"valid https", "https://example.com/path", false},
		{"ftp scheme", "ftp://example.com", true},
		{"file scheme", "file:///etc/passwd", true},
		{"no host", "http://", true},
		{"relative", "/users", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResponse_IsSuccess(t *testing.T) {
	tests := []struct {
		status   int
		expected bool
	}{
		{200, true},
		{201, true},
		{204, true},
		{299, true},
		{300, false},
		{400, false},
		{500, false},
	}

	for _, tt := range tests {
		resp := &Response{StatusCode: tt.status}
		assert.Equal(t, tt.expected, resp.IsSuccess(), "status %d", tt.status)
	}
}

func TestResponse_JSON(t *testing.T) {
	resp := &Response{Body: []byte(`{"a": [1, 2]}`)}
	assert.True(t, resp.IsJSON())
	v, err := resp.JSON()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{1.0, 2.0}}, v)

	resp = &Response{Body: []byte("plain")}
	assert.False(t, resp.IsJSON())
	_, err = resp.JSON()
	assert.Error(t, err)
}
