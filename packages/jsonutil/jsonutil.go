// Package jsonutil holds helpers for generic decoded JSON values
// (map[string]any, []any, string, float64, json.Number, bool, nil).
//
// Numbers decode to float64 when float64 holds them exactly. Any other
// number, such as an integer id above 2^53, is kept as json.Number with its
// original digits.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"

	"github.com/tidwall/gjson"
)

// Decode parses a JSON document into its generic form without rounding
// numbers.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return narrow(out), nil
}

// FromResult converts a gjson result to its generic form without rounding
// numbers.
func FromResult(r gjson.Result) any {
	switch r.Type {
	case gjson.Number:
		return Number(json.Number(r.Raw))
	case gjson.JSON:
		if v, err := Decode([]byte(r.Raw)); err == nil {
			return v
		}
	}
	return r.Value()
}

// Number returns n as float64 when that is exact, n itself otherwise.
func Number(n json.Number) any {
	f, err := n.Float64()
	if err != nil {
		return n
	}
	exact, ok := new(big.Rat).SetString(n.String())
	if !ok {
		return n
	}
	if fr, ok := toRat(f); ok && fr.Cmp(exact) == 0 {
		return f
	}
	return n
}

func narrow(v any) any {
	switch t := v.(type) {
	case json.Number:
		return Number(t)
	case map[string]any:
		for k, vv := range t {
			t[k] = narrow(vv)
		}
		return t
	case []any:
		for i := range t {
			t[i] = narrow(t[i])
		}
		return t
	default:
		return v
	}
}

// Normalize converts any JSON-encodable Go value into its generic decoded
// form, so typed maps, slices, structs and integers compare like decoded
// response bodies.
func Normalize(v any) (any, error) {
	if isGeneric(v) {
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON encodable: %w", err)
	}
	return Decode(b)
}

func isGeneric(v any) bool {
	switch t := v.(type) {
	case nil, string, bool, float64, json.Number:
		return true
	case map[string]any:
		for _, vv := range t {
			if !isGeneric(vv) {
				return false
			}
		}
		return true
	case []any:
		for _, vv := range t {
			if !isGeneric(vv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone deep copies maps and slices of a generic value.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = Clone(vv)
		}
		return m
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = Clone(t[i])
		}
		return arr
	default:
		return v
	}
}

// Equal compares two generic values; numbers compare by exact value.
func Equal(a, b any) bool {
	if ar, ok := toRat(a); ok {
		br, ok := toRat(b)
		return ok && ar.Cmp(br) == 0
	}
	switch at := a.(type) {
	case map[string]any:
		bt, ok := b.(map[string]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for k, av := range at {
			bv, ok := bt[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case []any:
		bt, ok := b.([]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !Equal(at[i], bt[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func toRat(v any) (*big.Rat, bool) {
	switch n := v.(type) {
	case json.Number:
		return new(big.Rat).SetString(n.String())
	case float64:
		if r := new(big.Rat); r.SetFloat64(n) != nil {
			return r, true
		}
		return nil, false
	case float32:
		return toRat(float64(n))
	case int:
		return new(big.Rat).SetInt64(int64(n)), true
	case int64:
		return new(big.Rat).SetInt64(n), true
	case int32:
		return new(big.Rat).SetInt64(int64(n)), true
	}
	return nil, false
}

// TypeName names the JSON type of a generic value.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return reflect.TypeOf(v).String()
	}
}
