package mock

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, srv *httptest.Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestServer_CRUD(t *testing.T) {
	api := NewServer(WithResource("datasets"), WithIDField("pid"))
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	resp, created := do(t, srv, http.MethodPost, "/datasets", "", map[string]any{"name": "d1"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	pid, ok := created["pid"].(string)
	require.True(t, ok)
	assert.Equal(t, 1, api.Count("datasets"))

	resp, got := do(t, srv, http.MethodGet, "/datasets/"+pid, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "d1", got["name"])

	resp, patched := do(t, srv, http.MethodPatch, "/datasets/"+pid, "", map[string]any{"extra": true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "d1", patched["name"])
	assert.Equal(t, true, patched["extra"])

	resp, _ = do(t, srv, http.MethodDelete, "/datasets/"+pid, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, api.Count("datasets"))

	resp, _ = do(t, srv, http.MethodDelete, "/datasets/"+pid, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Auth(t *testing.T) {
	api := NewServer(WithResource("users"), WithUser("admin", "secret"))
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	resp, _ := do(t, srv, http.MethodGet, "/users/x", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/auth/login", "", map[string]any{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, login := do(t, srv, http.MethodPost, "/auth/login", "", map[string]any{"username": "admin", "password": "secret"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	token := login["access_token"].(string)

	resp, _ = do(t, srv, http.MethodPost, "/users", token, map[string]any{"name": "ann"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestServer_DuplicateAndMethods(t *testing.T) {
	api := NewServer(WithResource("items"))
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	resp, _ := do(t, srv, http.MethodPost, "/items", "", map[string]any{"id": "a"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodPost, "/items", "", map[string]any{"id": "a"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/items/a", "", map[string]any{})
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_Match(t *testing.T) {
	r := NewRouter()
	r.Handle(http.MethodGet, "/datasets/{id}/attachments/{aid}", nil)
	r.Handle(http.MethodGet, "/a.b", nil)

	route, params := r.Match("get", "/datasets/42/attachments/7/")
	require.NotNil(t, route)
	assert.Equal(t, map[string]string{"id": "42", "aid": "7"}, params)

	route, _ = r.Match("GET", "/aXb")
	assert.Nil(t, route, "dots are literal")

	route, _ = r.Match("GET", "/a.b")
	assert.NotNil(t, route)
}
