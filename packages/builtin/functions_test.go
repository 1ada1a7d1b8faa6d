package builtin

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Defaults(t *testing.T) {
	r := NewRegistry()

	t.Run("uuid", func(t *testing.T) {
		v, err := r.Call("uuid", nil)
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[0-9a-f-]{36}$`), v)
	})

	t.Run("random in range", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			v, err := r.Call("random", []string{"3", "5"})
			require.NoError(t, err)
			n := v.(int)
			assert.GreaterOrEqual(t, n, 3)
			assert.LessOrEqual(t, n, 5)
		}
	})

	t.Run("randomString length", func(t *testing.T) {
		v, err := r.Call("randomString", []string{"12"})
		require.NoError(t, err)
		assert.Len(t, v, 12)
	})

	t.Run("base64", func(t *testing.T) {
		v, err := r.Call("base64", []string{"hello"})
		require.NoError(t, err)
		assert.Equal(t, "aGVsbG8=", v)
	})

	t.Run("urlEncode", func(t *testing.T) {
		v, err := r.Call("urlEncode", []string{"a b/c"})
		require.NoError(t, err)
		assert.Equal(t, "a+b%2Fc", v)
	})
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Call("nope", nil)
	assert.True(t, errors.Is(err, ErrUnknownFunction))

	_, err = r.Call("random", []string{"a", "2"})
	assert.Error(t, err)

	_, err = r.Call("random", []string{"9", "2"})
	assert.Error(t, err)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("answer", func(_ []string) (any, error) { return 42, nil })

	assert.True(t, r.Has("answer"))
	v, err := r.Call("answer", nil)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{input: "", expected: nil},
		{input: "1, 2", expected: []string{"1", "2"}},
		{input: `"a,b", 'c'`, expected: []string{"a,b", "c"}},
		{input: "single", expected: []string{"single"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseArgs(tt.input))
		})
	}
}
