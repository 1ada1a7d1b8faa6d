package parser

import (
	"fmt"
	"net/http"
	"strings"
)

type File struct {
	Path      string            `yaml:"-"`
	Name      string            `yaml:"name"`
	BaseURL   string            `yaml:"baseUrl"`
	Fixtures  string            `yaml:"fixtures"`
	Variables map[string]any    `yaml:"variables"`
	Headers   map[string]string `yaml:"headers"`
	Setup     []*SpecDef        `yaml:"setup"`
	Chains    []*ChainDef       `yaml:"chains"`
	Specs     []*SpecDef        `yaml:"specs"`
}

// Count returns the number of primary requests in the file.
func (f *File) Count() int {
	n := len(f.Setup) + len(f.Specs)
	for _, c := range f.Chains {
		n += len(c.Steps)
	}
	return n
}

// ChainDef is a named sequence of steps. By default the steps after a
// failed one are skipped; ContinueOnFailure runs them anyway.
type ChainDef struct {
	Name              string     `yaml:"name"`
	Tags              []string   `yaml:"tags"`
	Skip              string     `yaml:"skip"`
	ContinueOnFailure bool       `yaml:"continueOnFailure"`
	Steps             []*StepDef `yaml:"steps"`
	Line              int        `yaml:"-"`
}

// StepDef is a spec with an optional clean spec undoing it.
type StepDef struct {
	Spec  SpecDef
	Clean *SpecDef
	Line  int
}

type SpecDef struct {
	Name    string            `yaml:"name"`
	Tags    []string          `yaml:"tags"`
	Skip    string            `yaml:"skip"`
	Get     string            `yaml:"get"`
	Post    string            `yaml:"post"`
	Put     string            `yaml:"put"`
	Patch   string            `yaml:"patch"`
	Delete  string            `yaml:"delete"`
	Headers map[string]string `yaml:"headers"`
	Query   map[string]string `yaml:"query"`
	JSON    any               `yaml:"json"`
	Fixture *FixtureDef       `yaml:"fixture"`
	Expect  *ExpectDef        `yaml:"expect"`
	Store   map[string]string `yaml:"store"`
	Line    int               `yaml:"-"`
}

// FixtureDef is the short form of a template descriptor body.
type FixtureDef struct {
	Template  string         `yaml:"template"`
	Overrides map[string]any `yaml:"overrides"`
}

type ExpectDef struct {
	Status      int               `yaml:"status"`
	Body        any               `yaml:"body"`
	Contains    []string          `yaml:"contains"`
	Like        any               `yaml:"like"`
	LikeFixture *FixtureDef       `yaml:"likeFixture"`
	Fields      []string          `yaml:"fields"`
	Headers     map[string]string `yaml:"headers"`
	Schema      string            `yaml:"schema"`
}

// Method returns the HTTP method and path of the one method key set.
func (s *SpecDef) Method() (method, path string) {
	methods := s.methods()
	if len(methods) != 1 {
		return "", ""
	}
	return methods[0][0], methods[0][1]
}

func (s *SpecDef) methods() [][2]string {
	var set [][2]string
	for _, m := range [][2]string{
		{http.MethodGet, s.Get},
		{http.MethodPost, s.Post},
		{http.MethodPut, s.Put},
		{http.MethodPatch, s.Patch},
		{http.MethodDelete, s.Delete},
	} {
		if m[1] != "" {
			set = append(set, m)
		}
	}
	return set
}

// Label is the spec name, or "METHOD path" when unnamed.
func (s *SpecDef) Label() string {
	if s.Name != "" {
		return s.Name
	}
	method, path := s.Method()
	return strings.TrimSpace(method + " " + path)
}

// Store source syntax: "@status", "@header:Name", or a body path. A
// trailing "?" makes the capture optional.
const (
	StoreStatus       = "@status"
	StoreHeaderPrefix = "@header:"
	StoreOptional     = "?"
)

type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	case e.File != "":
		return e.File + ": " + e.Message
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}
