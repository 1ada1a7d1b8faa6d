package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected map[string]string
	}{
		{"simple key-value", "API_KEY=secret123", map[string]string{"API_KEY": "secret123"}},
		{"multiple keys", "KEY1=value1\nKEY2=value2", map[string]string{"KEY1": "value1", "KEY2": "value2"}},
		{"double quoted value", `API_KEY="secret with spaces"`, map[string]string{"API_KEY": "secret with spaces"}},
		{"single quoted value", `API_KEY='secret with spaces'`, map[string]string{"API_KEY": "secret with spaces"}},
		{"export prefix", "export TOKEN=abc", map[string]string{"TOKEN": "abc"}},
		{"comments and blanks skipped", "# comment\n\nAPI_KEY=secret", map[string]string{"API_KEY": "secret"}},
		{"whitespace trimmed", "  API_KEY  =  secret  ", map[string]string{"API_KEY": "secret"}},
		{"value with equals sign", "DSN=postgres://u:p@h/db?ssl=true", map[string]string{"DSN": "postgres://u:p@h/db?ssl=true"}},
		{"line without equals", "JUSTAWORD", map[string]string{}},
		{"inline comment kept", "API_KEY=secret # kept", map[string]string{"API_KEY": "secret # kept"}},
		{"empty file", "", map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envFile := filepath.Join(t.TempDir(), ".env")
			require.NoError(t, os.WriteFile(envFile, []byte(tt.content), 0644))

			result, err := LoadDotEnv(envFile)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadDotEnvFileNotFound(t *testing.T) {
	_, err := LoadDotEnv("/nonexistent/path/.env")
	assert.Error(t, err)
}

func TestEnv_Lookup(t *testing.T) {
	t.Setenv("HITCHAIN_TEST_FROM_PROCESS", "process")
	t.Setenv("HITCHAIN_TEST_SHADOWED", "process")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("HITCHAIN_TEST_SHADOWED=file\nONLY_FILE=yes"), 0644))

	e, err := Load(envFile)
	require.NoError(t, err)

	v, ok := e.Lookup("HITCHAIN_TEST_SHADOWED")
	assert.True(t, ok)
	assert.Equal(t, "file", v)

	v, ok = e.Lookup("HITCHAIN_TEST_FROM_PROCESS")
	assert.True(t, ok)
	assert.Equal(t, "process", v)

	_, ok = e.Lookup("HITCHAIN_TEST_DEFINITELY_UNSET")
	assert.False(t, ok)

	empty, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLoadSystemEnv(t *testing.T) {
	t.Setenv(VarPrefix+"userId", "42")
	vars := LoadSystemEnv(VarPrefix)
	assert.Equal(t, "42", vars["userId"])
	_, ok := vars[VarPrefix+"userId"]
	assert.False(t, ok)
}

func TestMergeVariables(t *testing.T) {
	merged := MergeVariables(
		map[string]any{"a": 1, "b": 1},
		nil,
		map[string]any{"b": 2},
	)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, merged)
}
