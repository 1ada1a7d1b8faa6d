package interpolate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitchain/packages/builtin"
	"github.com/abdul-hamid-achik/hitchain/packages/jsonutil"
	"github.com/abdul-hamid-achik/hitchain/packages/store"
)

// Interpolator resolves placeholders against one store.
type Interpolator struct {
	store     *store.Store
	funcs     *builtin.Registry
	lookupEnv func(string) (string, bool)

	mu    sync.Mutex
	cache map[string]*Template
}

type Option func(*Interpolator)

// WithFunctions replaces the builtin function registry.
func WithFunctions(r *builtin.Registry) Option {
	return func(i *Interpolator) {
		i.funcs = r
	}
}

// WithEnvLookup replaces os.LookupEnv for ${$NAME} placeholders.
func WithEnvLookup(fn func(string) (string, bool)) Option {
	return func(i *Interpolator) {
		i.lookupEnv = fn
	}
}

func New(s *store.Store, opts ...Option) *Interpolator {
	i := &Interpolator{
		store:     s,
		funcs:     builtin.NewRegistry(),
		lookupEnv: os.LookupEnv,
		cache:     make(map[string]*Template),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Interpolator) parse(s string) (*Template, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if t, ok := i.cache[s]; ok {
		return t, nil
	}
	t, err := Parse(s)
	if err != nil {
		return nil, err
	}
	i.cache[s] = t
	return t, nil
}

// missing accumulates unresolved keys across one interpolation call.
type missing map[string]struct{}

func (m missing) err() error {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &store.UnknownVariableError{Keys: keys}
}

// String resolves every placeholder in s.
func (i *Interpolator) String(s string) (string, error) {
	miss := missing{}
	out, err := i.render(s, miss)
	if err != nil {
		return "", err
	}
	if err := miss.err(); err != nil {
		return "", err
	}
	return out, nil
}

// Headers resolves every header value. Header names are kept as given.
func (i *Interpolator) Headers(h map[string]string) (map[string]string, error) {
	if h == nil {
		return nil, nil
	}
	miss := missing{}
	out := make(map[string]string, len(h))
	for k, v := range h {
		rv, err := i.render(v, miss)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", k, err)
		}
		out[k] = rv
	}
	if err := miss.err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Value walks maps and slices and resolves every string, including map
// keys. A string that is a single placeholder is replaced by the stored
// value with its type; map keys and strings mixing text and placeholders are
// stringified. Non-string scalars are returned unchanged. The input is not
// modified.
func (i *Interpolator) Value(v any) (any, error) {
	miss := missing{}
	out, err := i.walk(v, miss)
	if err != nil {
		return nil, err
	}
	if err := miss.err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (i *Interpolator) walk(v any, miss missing) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			rk, err := i.render(k, miss)
			if err != nil {
				return nil, err
			}
			rv, err := i.walk(vv, miss)
			if err != nil {
				return nil, err
			}
			m[rk] = rv
		}
		return m, nil
	case []any:
		arr := make([]any, len(t))
		for idx := range t {
			rv, err := i.walk(t[idx], miss)
			if err != nil {
				return nil, err
			}
			arr[idx] = rv
		}
		return arr, nil
	case string:
		return i.typed(t, miss)
	default:
		return v, nil
	}
}

// typed resolves s like render, except that a string made of exactly one
// unfiltered placeholder yields the stored value itself, keeping numbers,
// booleans and objects intact inside JSON documents.
func (i *Interpolator) typed(s string, miss missing) (any, error) {
	if !strings.Contains(s, "{") {
		return s, nil
	}
	t, err := i.parse(s)
	if err != nil {
		return nil, err
	}
	if len(t.Tokens) == 1 && t.Tokens[0].Kind != TokenLiteral && len(t.Tokens[0].Filters) == 0 {
		v, ok, err := i.resolve(t.Tokens[0], miss)
		if err != nil || !ok {
			return "", err
		}
		return jsonutil.Clone(v), nil
	}
	return i.render(s, miss)
}

// resolve looks up one placeholder token. ok is false when the value is
// missing; the key is then recorded in miss.
func (i *Interpolator) resolve(tok Token, miss missing) (any, bool, error) {
	switch tok.Kind {
	case TokenVariable:
		v, ok := i.store.Lookup(tok.Name)
		if !ok {
			miss[tok.Name] = struct{}{}
		}
		return v, ok, nil
	case TokenEnv:
		v, ok := i.lookupEnv(tok.Name)
		if !ok {
			miss["$"+tok.Name] = struct{}{}
		}
		return v, ok, nil
	case TokenFunc:
		v, err := i.funcs.Call(tok.Name, tok.Args)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}
	return tok.Name, true, nil
}

func (i *Interpolator) render(s string, miss missing) (string, error) {
	if !strings.Contains(s, "{") {
		return s, nil
	}
	t, err := i.parse(s)
	if err != nil {
		return "", err
	}
	if t.IsLiteral() {
		if len(t.Tokens) == 0 {
			return "", nil
		}
		return t.Tokens[0].Name, nil
	}

	var b strings.Builder
	for _, tok := range t.Tokens {
		if tok.Kind == TokenLiteral {
			b.WriteString(tok.Name)
			continue
		}
		value, ok, err := i.resolve(tok, miss)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		str, err := applyFilters(Stringify(value), tok.Filters)
		if err != nil {
			return "", err
		}
		b.WriteString(str)
	}
	return b.String(), nil
}

func applyFilters(s string, filters []string) (string, error) {
	for _, f := range filters {
		switch f {
		case "urlencode":
			s = url.QueryEscape(s)
		case "pathescape":
			s = url.PathEscape(s)
		case "json":
			b, err := json.Marshal(s)
			if err != nil {
				return "", err
			}
			s = string(b)
		}
	}
	return s, nil
}

// Stringify renders a stored value the way it is substituted into strings.
func Stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	case int, int64, int32, uint, uint64, uint32:
		return fmt.Sprintf("%d", val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		b = bytes.TrimSpace(b)
		if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
			return string(b[1 : len(b)-1])
		}
		return string(b)
	}
}
