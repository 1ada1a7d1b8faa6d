package fixture

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/jsonutil"
)

const (
	TemplateKey  = "@DATA:TEMPLATE@"
	OverridesKey = "@OVERRIDES@"
)

var mapRefPattern = regexp.MustCompile(`^\$M\{([^}]+)\}$`)

// Descriptor names a catalog template plus the overrides merged onto it.
type Descriptor struct {
	Template  string
	Overrides map[string]any
}

// Value returns the JSON object form of the descriptor.
func (d Descriptor) Value() map[string]any {
	m := map[string]any{TemplateKey: d.Template}
	if d.Overrides != nil {
		m[OverridesKey] = d.Overrides
	}
	return m
}

// MarshalJSON encodes the object form, so a Descriptor nested in any JSON
// value expands like its literal object.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Value())
}

// DescriptorFrom recognizes the object form produced by Value.
func DescriptorFrom(v any) (Descriptor, bool, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Descriptor{}, false, nil
	}
	raw, ok := m[TemplateKey]
	if !ok {
		return Descriptor{}, false, nil
	}
	name, ok := raw.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return Descriptor{}, false, &ResolutionError{Msg: fmt.Sprintf("%s must be a non-empty string, got %v", TemplateKey, raw)}
	}
	d := Descriptor{Template: name}
	for k, vv := range m {
		switch k {
		case TemplateKey:
		case OverridesKey:
			if vv == nil {
				continue
			}
			ov, ok := vv.(map[string]any)
			if !ok {
				return Descriptor{}, false, &ResolutionError{Template: name, Msg: fmt.Sprintf("%s must be an object, got %s", OverridesKey, jsonutil.TypeName(vv))}
			}
			d.Overrides = ov
		default:
			return Descriptor{}, false, &ResolutionError{Template: name, Msg: fmt.Sprintf("unexpected key %q next to %s", k, TemplateKey)}
		}
	}
	return d, true, nil
}

// Resolver expands descriptors against a catalog. It never mutates catalog
// documents or its inputs.
type Resolver struct {
	catalog     Catalog
	nullRemoves bool
}

type Option func(*Resolver)

// WithNullRemoves controls whether a null override deletes the field
// (the default) or sets it to null.
func WithNullRemoves(remove bool) Option {
	return func(r *Resolver) {
		r.nullRemoves = remove
	}
}

func NewResolver(catalog Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:     catalog,
		nullRemoves: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the template document with the overrides applied.
func (r *Resolver) Resolve(d Descriptor) (any, error) {
	var overrides map[string]any
	if d.Overrides != nil {
		norm, err := jsonutil.Normalize(d.Overrides)
		if err != nil {
			return nil, &ResolutionError{Template: d.Template, Msg: "overrides", Err: err}
		}
		overrides = norm.(map[string]any)
	}
	return r.resolve(Descriptor{Template: d.Template, Overrides: overrides}, nil)
}

// Expand replaces every descriptor and $M{name} reference found anywhere in v.
func (r *Resolver) Expand(v any) (any, error) {
	norm, err := jsonutil.Normalize(v)
	if err != nil {
		return nil, &ResolutionError{Err: err}
	}
	return r.expand(norm, nil)
}

func (r *Resolver) lookup(name string, stack []string) (any, error) {
	for _, s := range stack {
		if s == name {
			return nil, &ResolutionError{Template: name, Msg: "cycle: " + strings.Join(append(stack, name), " -> ")}
		}
	}
	if r.catalog == nil {
		return nil, &ResolutionError{Template: name, Msg: "no fixture catalog configured"}
	}
	doc, err := r.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	norm, err := jsonutil.Normalize(doc)
	if err != nil {
		return nil, &ResolutionError{Template: name, Err: err}
	}
	next := append(append([]string(nil), stack...), name)
	return r.expand(jsonutil.Clone(norm), next)
}

func (r *Resolver) resolve(d Descriptor, stack []string) (any, error) {
	base, err := r.lookup(d.Template, stack)
	if err != nil {
		return nil, err
	}
	if len(d.Overrides) == 0 {
		return base, nil
	}
	obj, ok := base.(map[string]any)
	if !ok {
		return nil, &ResolutionError{Template: d.Template, Msg: fmt.Sprintf("cannot apply overrides to %s template", jsonutil.TypeName(base))}
	}
	expanded, err := r.expand(d.Overrides, stack)
	if err != nil {
		return nil, err
	}
	overrides, ok := expanded.(map[string]any)
	if !ok {
		return nil, &ResolutionError{Template: d.Template, Msg: "overrides must expand to an object"}
	}
	return Merge(obj, overrides, r.nullRemoves), nil
}

func (r *Resolver) expand(v any, stack []string) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		d, ok, err := DescriptorFrom(t)
		if err != nil {
			return nil, err
		}
		if ok {
			return r.resolve(d, stack)
		}
		m := make(map[string]any, len(t))
		for k, vv := range t {
			ev, err := r.expand(vv, stack)
			if err != nil {
				return nil, err
			}
			m[k] = ev
		}
		return m, nil
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			ev, err := r.expand(t[i], stack)
			if err != nil {
				return nil, err
			}
			arr[i] = ev
		}
		return arr, nil
	case string:
		if m := mapRefPattern.FindStringSubmatch(t); m != nil {
			return r.lookup(m[1], stack)
		}
		return t, nil
	default:
		return v, nil
	}
}

// Merge returns base with overrides deep merged onto it. Objects merge
// recursively and missing intermediate objects are created; every other
// value, arrays included, replaces the base value. A nil override removes
// the key when nullRemoves is set.
func Merge(base, overrides map[string]any, nullRemoves bool) map[string]any {
	out := jsonutil.Clone(base).(map[string]any)
	for k, ov := range overrides {
		switch o := ov.(type) {
		case nil:
			if nullRemoves {
				delete(out, k)
			} else {
				out[k] = nil
			}
		case map[string]any:
			existing, ok := out[k].(map[string]any)
			if !ok {
				existing = map[string]any{}
			}
			out[k] = Merge(existing, o, nullRemoves)
		default:
			out[k] = jsonutil.Clone(o)
		}
	}
	return out
}
