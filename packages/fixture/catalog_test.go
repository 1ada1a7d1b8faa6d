package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.yaml"), []byte(`
"User:admin":
  username: admin
  password: secret
"User:ingestor":
  username: ingestor
  groups: [ingestor, globalaccess]
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "datasets.json"), []byte(`{
  "Dataset": {"datasetName": "test-dataset", "size": 3}
}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0644))

	catalog, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dataset", "User:admin", "User:ingestor"}, catalog.Names())

	doc, err := catalog.Lookup("User:ingestor")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"username": "ingestor",
		"groups":   []any{"ingestor", "globalaccess"},
	}, doc)

	doc, err = catalog.Lookup("Dataset")
	require.NoError(t, err)
	assert.Equal(t, float64(3), doc.(map[string]any)["size"])
}

func TestLoadDir_Duplicate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("Dataset: {a: 1}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte("Dataset: {a: 2}\n"), 0644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined in both")
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
