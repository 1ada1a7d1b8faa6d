package interpolate

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/builtin"
)

type TokenKind int

const (
	TokenLiteral TokenKind = iota
	TokenVariable
	TokenEnv
	TokenFunc
)

func (k TokenKind) String() string {
	switch k {
	case TokenLiteral:
		return "literal"
	case TokenVariable:
		return "variable"
	case TokenEnv:
		return "env"
	case TokenFunc:
		return "func"
	default:
		return "unknown"
	}
}

// Token is one segment of a parsed string. For literals Name holds the text.
type Token struct {
	Kind    TokenKind
	Name    string
	Args    []string
	Filters []string
}

// Template is the parsed form of a placeholder string.
type Template struct {
	Source string
	Tokens []Token
}

// IsLiteral reports whether the template contains no placeholders.
func (t *Template) IsLiteral() bool {
	for _, tok := range t.Tokens {
		if tok.Kind != TokenLiteral {
			return false
		}
	}
	return true
}

// Variables returns the store keys referenced by the template.
func (t *Template) Variables() []string {
	var keys []string
	for _, tok := range t.Tokens {
		if tok.Kind == TokenVariable {
			keys = append(keys, tok.Name)
		}
	}
	return keys
}

type SyntaxError struct {
	Input  string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("placeholder syntax error at offset %d in %q: %s", e.Offset, e.Input, e.Msg)
}

var knownFilters = map[string]bool{
	"urlencode":  true,
	"pathescape": true,
	"json":       true,
}

// openerAt returns the length of a placeholder opener starting at i, or 0.
func openerAt(s string, i int) int {
	if s[i] != '$' {
		return 0
	}
	if strings.HasPrefix(s[i:], "${") {
		return 2
	}
	if strings.HasPrefix(s[i:], "$S{") {
		return 3
	}
	return 0
}

// Parse splits s into literal and placeholder tokens.
func Parse(s string) (*Template, error) {
	t := &Template{Source: s}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.Tokens = append(t.Tokens, Token{Kind: TokenLiteral, Name: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); {
		if s[i] == '\\' && i+1 < len(s) {
			if n := openerAt(s, i+1); n > 0 {
				lit.WriteString(s[i+1 : i+1+n])
				i += 1 + n
				continue
			}
		}
		n := openerAt(s, i)
		if n == 0 {
			lit.WriteByte(s[i])
			i++
			continue
		}
		end := strings.IndexByte(s[i+n:], '}')
		if end < 0 {
			return nil, &SyntaxError{Input: s, Offset: i, Msg: "unterminated placeholder"}
		}
		expr := s[i+n : i+n+end]
		tok, err := parseExpr(expr)
		if err != nil {
			return nil, &SyntaxError{Input: s, Offset: i, Msg: err.Error()}
		}
		flush()
		t.Tokens = append(t.Tokens, tok)
		i += n + end + 1
	}
	flush()
	return t, nil
}

func parseExpr(expr string) (Token, error) {
	parts := strings.Split(expr, "|")
	head := strings.TrimSpace(parts[0])
	if head == "" {
		return Token{}, fmt.Errorf("empty placeholder")
	}

	var filters []string
	for _, f := range parts[1:] {
		f = strings.TrimSpace(f)
		if !knownFilters[f] {
			return Token{}, fmt.Errorf("unknown filter %q", f)
		}
		filters = append(filters, f)
	}

	switch {
	case strings.HasPrefix(head, "$"):
		name := head[1:]
		if name == "" {
			return Token{}, fmt.Errorf("empty environment variable name")
		}
		return Token{Kind: TokenEnv, Name: name, Filters: filters}, nil
	case strings.HasSuffix(head, ")"):
		open := strings.IndexByte(head, '(')
		if open <= 0 {
			return Token{}, fmt.Errorf("malformed function call %q", head)
		}
		return Token{
			Kind:    TokenFunc,
			Name:    strings.TrimSpace(head[:open]),
			Args:    builtin.ParseArgs(head[open+1 : len(head)-1]),
			Filters: filters,
		}, nil
	default:
		return Token{Kind: TokenVariable, Name: head, Filters: filters}, nil
	}
}
