package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/jsonutil"
	"gopkg.in/yaml.v3"
)

// Catalog returns the canonical document for a template name.
type Catalog interface {
	Lookup(name string) (any, error)
}

// MapCatalog is an in-memory catalog. Documents are returned as stored;
// the resolver clones them before use.
type MapCatalog map[string]any

func (c MapCatalog) Lookup(name string) (any, error) {
	doc, ok := c[name]
	if !ok {
		return nil, &TemplateNotFoundError{Name: name}
	}
	return doc, nil
}

// Names returns the template names in sorted order.
func (c MapCatalog) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadDir reads every *.yaml, *.yml and *.json file in dir. Each file is a
// mapping of template name to document. A name defined in two files is an
// error.
func LoadDir(dir string) (MapCatalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading fixture directory: %w", err)
	}

	catalog := MapCatalog{}
	origin := map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() || !isFixtureFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		docs, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for name, doc := range docs {
			if prev, dup := origin[name]; dup {
				return nil, fmt.Errorf("template %q defined in both %s and %s", name, prev, path)
			}
			origin[name] = path
			catalog[name] = doc
		}
	}
	return catalog, nil
}

// LoadFile reads one fixture file.
func LoadFile(path string) (MapCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture file: %w", err)
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &raw)
	default:
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing fixture file %s: %w", path, err)
	}

	catalog := make(MapCatalog, len(raw))
	for name, doc := range raw {
		norm, err := jsonutil.Normalize(doc)
		if err != nil {
			return nil, fmt.Errorf("fixture %q in %s: %w", name, path, err)
		}
		catalog[name] = norm
	}
	return catalog, nil
}

func isFixtureFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
