package assertions

import (
	"fmt"
	"sort"

	"github.com/abdul-hamid-achik/hitchain/packages/jsonutil"
)

// match checks that actual contains pattern. Objects are subsets, every
// element of a list pattern must match some element of the actual list, and
// scalars compare by value with numbers compared numerically.
func match(path string, pattern, actual any) []Failure {
	switch p := pattern.(type) {
	case map[string]any:
		obj, ok := actual.(map[string]any)
		if !ok {
			return []Failure{typeMismatch(path, pattern, actual)}
		}
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var failures []Failure
		for _, k := range keys {
			child := joinKey(path, k)
			av, exists := obj[k]
			if !exists {
				failures = append(failures, Failure{
					Kind:     KindPattern,
					Path:     child,
					Expected: p[k],
					Message:  fmt.Sprintf("missing field, expected %s", render(p[k])),
				})
				continue
			}
			failures = append(failures, match(child, p[k], av)...)
		}
		return failures

	case []any:
		arr, ok := actual.([]any)
		if !ok {
			return []Failure{typeMismatch(path, pattern, actual)}
		}
		var failures []Failure
		for i, want := range p {
			if !anyMatches(want, arr) {
				failures = append(failures, Failure{
					Kind:     KindPattern,
					Path:     joinIndex(path, i),
					Expected: want,
					Actual:   actual,
					Message:  fmt.Sprintf("no element matches %s", render(want)),
				})
			}
		}
		return failures

	default:
		if jsonutil.Equal(pattern, actual) {
			return nil
		}
		return []Failure{{
			Kind:     KindPattern,
			Path:     path,
			Expected: pattern,
			Actual:   actual,
			Message:  fmt.Sprintf("expected %s, got %s", render(pattern), render(actual)),
		}}
	}
}

func anyMatches(pattern any, items []any) bool {
	for _, item := range items {
		if len(match("", pattern, item)) == 0 {
			return true
		}
	}
	return false
}

func typeMismatch(path string, pattern, actual any) Failure {
	return Failure{
		Kind:     KindPattern,
		Path:     path,
		Expected: pattern,
		Actual:   actual,
		Message:  fmt.Sprintf("expected %s, got %s", jsonutil.TypeName(pattern), jsonutil.TypeName(actual)),
	}
}

// equalJSON is structural equality with numeric comparison of numbers.
func equalJSON(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !equalJSON(v, other) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalJSON(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return jsonutil.Equal(a, b)
	}
}

func joinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func joinIndex(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
