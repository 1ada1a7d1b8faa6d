package env

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadDotEnv parses a .env file and returns key-value pairs.
// Supports: KEY=value, export KEY=value, KEY="quoted value", KEY='single quoted', # comments
// Values are not exported to the process environment; use Lookup to
// consult them before os.LookupEnv.
func LoadDotEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer file.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		result[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	return result, nil
}

// Env is a set of dotenv values layered over the process environment.
type Env map[string]string

// Load reads path into an Env. An empty path yields an empty Env.
func Load(path string) (Env, error) {
	if path == "" {
		return Env{}, nil
	}
	vars, err := LoadDotEnv(path)
	if err != nil {
		return nil, err
	}
	return Env(vars), nil
}

// Lookup resolves name from the file first, then the process environment.
// Its signature matches the executor's environment lookup hook.
func (e Env) Lookup(name string) (string, bool) {
	if v, ok := e[name]; ok {
		return v, true
	}
	return os.LookupEnv(name)
}
