package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/hitchain/packages/capture"
	"github.com/abdul-hamid-achik/hitchain/packages/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtures = `
User:admin:
  username: admin
  password: secret
User:intruder:
  username: admin
  password: wrong
Dataset:
  name: imaging
  owner: ingestor
`

const login = `
name: datasets
fixtures: fixtures
setup:
  - name: login
    post: /auth/login
    fixture: "User:admin"
    expect: {status: 201, contains: [access_token]}
    store: {token: access_token}
`

func newAPI(t *testing.T) (*mock.Server, *httptest.Server) {
	t.Helper()
	api := mock.NewServer(
		mock.WithUser("admin", "secret"),
		mock.WithResource("datasets"),
		mock.WithIDField("pid"),
	)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return api, srv
}

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fixtures"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fixtures", "main.yaml"), []byte(fixtures), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "schemas"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schemas", "list.json"), []byte(`{"type": "array"}`), 0644))
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func phases(result *RunResult) []string {
	var out []string
	for _, e := range result.Entries {
		s := string(e.Phase) + " " + e.Name
		switch {
		case e.Skipped:
			s += " (skipped)"
		case !e.Passed():
			s += " (failed)"
		}
		out = append(out, s)
	}
	return out
}

func TestNewRunner(t *testing.T) {
	r := NewRunner(nil)
	assert.NotNil(t, r)
	assert.NotNil(t, r.config)
	assert.NotNil(t, r.logger)
}

func TestRunner_RunFile_RoundTrip(t *testing.T) {
	api, srv := newAPI(t)
	path := writeSuite(t, login+`
chains:
  - name: Add Dataset
    steps:
      - name: Add dataset
        post: /datasets
        headers: {Authorization: "Bearer ${token}"}
        fixture: Dataset
        expect: {status: 201, likeFixture: Dataset, fields: [pid]}
        store: {datasetId: pid, code: "@status"}
        clean:
          delete: /datasets/${datasetId}
          headers: {Authorization: "Bearer ${token}"}
          expect: {status: 200, like: {deleted: "${datasetId}"}}
      - name: Read dataset
        get: /datasets/${datasetId}
        headers: {Authorization: "Bearer ${token}"}
        expect:
          status: 200
          like: {pid: "${datasetId}", name: imaging}
specs:
  - name: list
    get: /datasets
    headers: {Authorization: "Bearer ${token}"}
    expect: {status: 200, schema: schemas/list.json}
`)

	result, err := NewRunner(&Config{BaseURL: srv.URL}).RunFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"setup login",
		"step Add dataset",
		"step Read dataset",
		"cleanup Add dataset",
		"spec list",
	}, phases(result))
	assert.True(t, result.Success())
	assert.Equal(t, 5, result.Passed)
	assert.Equal(t, "datasets", result.Name)
	assert.Equal(t, 0, api.Count("datasets"), "cleanup deleted the dataset")

	step := result.Entries[1]
	assert.Equal(t, "Add Dataset", step.Chain)
	require.NotNil(t, step.Result)
	assert.Equal(t, 201, step.Result.Captured["code"])
}

func TestRunner_FailedStepSkipsRestAndDrains(t *testing.T) {
	api, srv := newAPI(t)
	path := writeSuite(t, login+`
chains:
  - name: broken
    steps:
      - name: create
        post: /datasets
        headers: {Authorization: "Bearer ${token}"}
        fixture: Dataset
        store: {datasetId: pid}
        clean:
          delete: /datasets/${datasetId}
          headers: {Authorization: "Bearer ${token}"}
      - name: teapot
        get: /datasets/${datasetId}
        headers: {Authorization: "Bearer ${token}"}
        expect: {status: 418}
      - name: never
        get: /datasets
        headers: {Authorization: "Bearer ${token}"}
  - name: independent
    steps:
      - get: /datasets
        headers: {Authorization: "Bearer ${token}"}
        expect: {status: 200}
`)

	result, err := NewRunner(&Config{BaseURL: srv.URL}).RunFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"setup login",
		"step create",
		"step teapot (failed)",
		"step never (skipped)",
		"cleanup create",
		"step GET /datasets",
	}, phases(result))
	assert.False(t, result.Success())
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "previous step teapot failed", result.Entries[3].SkipReason)
	assert.Equal(t, 0, api.Count("datasets"))
}

func TestRunner_ContinueOnFailureRunsRemainingSteps(t *testing.T) {
	api, srv := newAPI(t)
	path := writeSuite(t, login+`
chains:
  - name: tolerant
    continueOnFailure: true
    steps:
      - name: create
        post: /datasets
        headers: {Authorization: "Bearer ${token}"}
        fixture: Dataset
        store: {datasetId: pid}
        clean:
          delete: /datasets/${datasetId}
          headers: {Authorization: "Bearer ${token}"}
      - name: teapot
        get: /datasets/${datasetId}
        headers: {Authorization: "Bearer ${token}"}
        expect: {status: 418}
      - name: still runs
        get: /datasets/${datasetId}
        headers: {Authorization: "Bearer ${token}"}
        expect: {status: 200}
`)

	result, err := NewRunner(&Config{BaseURL: srv.URL}).RunFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"setup login",
		"step create",
		"step teapot (failed)",
		"step still runs",
		"cleanup create",
	}, phases(result))
	assert.False(t, result.Success())
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, api.Count("datasets"))
}

func TestRunner_SetupFailureSkipsEverything(t *testing.T) {
	_, srv := newAPI(t)
	path := writeSuite(t, `
fixtures: fixtures
setup:
  - name: login
    post: /auth/login
    fixture: "User:intruder"
    expect: {status: 201}
chains:
  - name: c
    steps:
      - get: /datasets
specs:
  - get: /datasets
`)

	result, err := NewRunner(&Config{BaseURL: srv.URL}).RunFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"setup login (failed)",
		"step GET /datasets (skipped)",
		"spec GET /datasets (skipped)",
	}, phases(result))
	assert.Equal(t, "setup login failed", result.Entries[1].SkipReason)
}

func TestRunner_Bail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	path := writeSuite(t, `
specs:
  - name: first
    get: /a
    expect: {status: 200}
  - name: second
    get: /b
    expect: {status: 200}
`)

	result, err := NewRunner(&Config{BaseURL: server.URL, Bail: true}).RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"spec first (failed)", "spec second (skipped)"}, phases(result))

	result, err = NewRunner(&Config{BaseURL: server.URL}).RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
}

func TestRunner_Filters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := writeSuite(t, `
chains:
  - name: Add Dataset
    tags: [smoke]
    steps: [{get: /a}]
  - name: Remove Dataset
    steps: [{get: /b}]
  - name: Parked
    skip: waiting on API fix
    steps: [{get: /c}]
specs:
  - name: Add user
    get: /d
`)

	result, err := NewRunner(&Config{BaseURL: server.URL, NameFilter: "Add*"}).RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"step GET /a",
		"step GET /b (skipped)",
		"step GET /c (skipped)",
		"spec Add user",
	}, phases(result))
	assert.Equal(t, "waiting on API fix", result.Entries[2].SkipReason)

	result, err = NewRunner(&Config{BaseURL: server.URL, TagsFilter: []string{"smoke"}}).RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 3, result.Skipped)
}

func TestRunner_VariablesHeadersAndEnv(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "cli", r.Header.Get("X-Source"))
		assert.Equal(t, "7", r.URL.Query().Get("page"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("X-Request-Id", "req-1")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := writeSuite(t, `
variables:
  page: 1
  owner: file
headers:
  Accept: application/json
specs:
  - post: /items
    query: {page: "${page}"}
    json: {owner: "${owner}", home: "${$HITCHAIN_TEST_HOME}"}
    store:
      rid: "@header:X-Request-Id"
      missing: "@header:X-Absent?"
`)

	r := NewRunner(&Config{
		BaseURL:   server.URL,
		Headers:   map[string]string{"X-Source": "cli"},
		Variables: map[string]any{"page": 7},
		EnvLookup: func(name string) (string, bool) {
			if name == "HITCHAIN_TEST_HOME" {
				return "/home/ann", true
			}
			return "", false
		},
	})
	result, err := r.RunFile(context.Background(), path)
	require.NoError(t, err)
	require.True(t, result.Success(), "%v", result.Entries[0].Err)

	assert.Equal(t, map[string]any{"owner": "file", "home": "/home/ann"}, got)
	assert.Equal(t, "req-1", result.Entries[0].Result.Captured["rid"])
	_, stored := result.Entries[0].Result.Captured["missing"]
	assert.False(t, stored)
}

func TestRunner_SchemaOutsideSuiteDir(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := writeSuite(t, `
specs:
  - get: /a
    expect: {schema: ../../etc/passwd}
`)
	result, err := NewRunner(&Config{BaseURL: server.URL}).RunFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Error(t, result.Entries[0].Err)
}

func TestRunner_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := writeSuite(t, "specs:\n  - get: /a\n  - get: /b\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewRunner(&Config{BaseURL: server.URL}).RunFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, "run cancelled", result.Entries[0].SkipReason)
}

func TestRunner_Errors(t *testing.T) {
	_, err := NewRunner(nil).RunFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "parsing file")

	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fixtures: nowhere\nspecs:\n  - get: /a\n"), 0644))
	_, err = NewRunner(nil).RunFile(context.Background(), path)
	assert.ErrorContains(t, err, "loading fixtures")
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name, pattern string
		want          bool
	}{
		{"Add Dataset", "", true},
		{"Add Dataset", "Add Dataset", true},
		{"Add Dataset", "Add*", true},
		{"Add Dataset", "*Dataset", true},
		{"Add Dataset", "*d D*", true},
		{"Add Dataset", "Remove*", false},
		{"Add Dataset", "*User", false},
		{"Add Dataset", "Add", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesPattern(tt.name, tt.pattern), "%q ~ %q", tt.name, tt.pattern)
	}
}

func TestParseStore(t *testing.T) {
	assert.Equal(t, capture.Capture{Key: "id", Source: "data.id"}, parseStore("id", "data.id"))
	assert.Equal(t, capture.Capture{Key: "id", Source: "data.id", Optional: true}, parseStore("id", "data.id?"))
	assert.Equal(t, capture.Capture{Key: "code", In: capture.Status}, parseStore("code", "@status"))
	assert.Equal(t, capture.Capture{Key: "loc", Source: "Location", In: capture.Header}, parseStore("loc", "@header:Location"))
	assert.Equal(t, capture.Capture{Key: "all"}, parseStore("all", ""))
}
