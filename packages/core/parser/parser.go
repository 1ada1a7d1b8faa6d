package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	fileKeys    = keySet("name", "baseUrl", "fixtures", "variables", "headers", "setup", "chains", "specs")
	chainKeys   = keySet("name", "tags", "skip", "continueOnFailure", "steps")
	specKeys    = keySet("name", "tags", "skip", "get", "post", "put", "patch", "delete", "headers", "query", "json", "fixture", "expect", "store")
	expectKeys  = keySet("status", "body", "contains", "like", "likeFixture", "fields", "headers", "schema")
	fixtureKeys = keySet("template", "overrides")
)

func keySet(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

func ParseFile(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(content, path)
}

func Parse(input []byte, filename string) (*File, error) {
	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(input))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{File: filename, Message: "empty suite file"}
		}
		return nil, withFile(err, filename)
	}
	if len(root.Content) == 0 {
		return nil, &ParseError{File: filename, Message: "empty suite file"}
	}
	doc := root.Content[0]
	if err := checkKeys(doc, fileKeys, "suite"); err != nil {
		return nil, withFile(err, filename)
	}

	file := &File{}
	if err := doc.Decode(file); err != nil {
		return nil, withFile(err, filename)
	}
	file.Path = filename
	if file.Name == "" && filename != "" {
		base := filepath.Base(filename)
		file.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if err := Validate(file); err != nil {
		return nil, err
	}
	return file, nil
}

func withFile(err error, filename string) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		if pe.File == "" {
			pe.File = filename
		}
		return pe
	}
	return &ParseError{File: filename, Message: strings.TrimPrefix(err.Error(), "yaml: ")}
}

func checkKeys(node *yaml.Node, allowed map[string]bool, what string) error {
	if node.Kind != yaml.MappingNode {
		return &ParseError{Line: node.Line, Message: what + " must be a mapping"}
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if !allowed[key.Value] {
			return &ParseError{
				Line:    key.Line,
				Message: fmt.Sprintf("unknown %s key %q (allowed: %s)", what, key.Value, strings.Join(sortedKeys(allowed), ", ")),
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *ChainDef) UnmarshalYAML(value *yaml.Node) error {
	if err := checkKeys(value, chainKeys, "chain"); err != nil {
		return err
	}
	type plain ChainDef
	if err := value.Decode((*plain)(c)); err != nil {
		return err
	}
	c.Line = value.Line
	return nil
}

// UnmarshalYAML splits the clean key from the spec keys of a step.
func (s *StepDef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return &ParseError{Line: value.Line, Message: "step must be a mapping"}
	}
	specNode := &yaml.Node{Kind: yaml.MappingNode, Tag: value.Tag, Line: value.Line, Column: value.Column}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		if key.Value == "clean" {
			s.Clean = &SpecDef{}
			if err := val.Decode(s.Clean); err != nil {
				return err
			}
			continue
		}
		specNode.Content = append(specNode.Content, key, val)
	}
	if err := specNode.Decode(&s.Spec); err != nil {
		return err
	}
	s.Line = value.Line
	return nil
}

func (s *SpecDef) UnmarshalYAML(value *yaml.Node) error {
	if err := checkKeys(value, specKeys, "spec"); err != nil {
		return err
	}
	type plain SpecDef
	if err := value.Decode((*plain)(s)); err != nil {
		return err
	}
	s.Line = value.Line
	return nil
}

func (e *ExpectDef) UnmarshalYAML(value *yaml.Node) error {
	if err := checkKeys(value, expectKeys, "expect"); err != nil {
		return err
	}
	type plain ExpectDef
	return value.Decode((*plain)(e))
}

func (f *FixtureDef) UnmarshalYAML(value *yaml.Node) error {
	// "fixture: User" is shorthand for a template without overrides.
	if value.Kind == yaml.ScalarNode {
		f.Template = value.Value
		return nil
	}
	if err := checkKeys(value, fixtureKeys, "fixture"); err != nil {
		return err
	}
	type plain FixtureDef
	return value.Decode((*plain)(f))
}

// Validate reports every structural problem in file, joined.
func Validate(file *File) error {
	var errs []error
	add := func(line int, format string, args ...any) {
		errs = append(errs, &ParseError{File: file.Path, Line: line, Message: fmt.Sprintf(format, args...)})
	}

	if len(file.Setup)+len(file.Chains)+len(file.Specs) == 0 {
		add(0, "suite file defines no setup, chains or specs")
	}

	for i, s := range file.Setup {
		validateSpec(s, fmt.Sprintf("setup[%d]", i), add)
	}

	seen := make(map[string]int)
	for i, c := range file.Chains {
		where := fmt.Sprintf("chains[%d]", i)
		if c.Name == "" {
			add(c.Line, "%s: chain name is required", where)
		} else if prev, dup := seen[c.Name]; dup {
			add(c.Line, "%s: duplicate chain name %q (first defined on line %d)", where, c.Name, prev)
		} else {
			seen[c.Name] = c.Line
		}
		if len(c.Steps) == 0 {
			add(c.Line, "%s: chain %q has no steps", where, c.Name)
		}
		for j, st := range c.Steps {
			stepWhere := fmt.Sprintf("%s.steps[%d]", where, j)
			validateSpec(&st.Spec, stepWhere, add)
			if st.Clean != nil {
				validateSpec(st.Clean, stepWhere+".clean", add)
			}
		}
	}

	for i, s := range file.Specs {
		validateSpec(s, fmt.Sprintf("specs[%d]", i), add)
	}

	return errors.Join(errs...)
}

func validateSpec(s *SpecDef, where string, add func(int, string, ...any)) {
	switch methods := s.methods(); len(methods) {
	case 0:
		add(s.Line, "%s: no method (want one of get, post, put, patch, delete)", where)
	case 1:
	default:
		names := make([]string, len(methods))
		for i, m := range methods {
			names[i] = m[0]
		}
		add(s.Line, "%s: multiple methods %s", where, strings.Join(names, ", "))
	}

	if s.JSON != nil && s.Fixture != nil {
		add(s.Line, "%s: json and fixture are mutually exclusive", where)
	}
	if s.Fixture != nil && s.Fixture.Template == "" {
		add(s.Line, "%s: fixture template is required", where)
	}

	if e := s.Expect; e != nil {
		if e.Status != 0 && (e.Status < 100 || e.Status > 599) {
			add(s.Line, "%s: expect status %d out of range", where, e.Status)
		}
		if e.Like != nil && e.LikeFixture != nil {
			add(s.Line, "%s: like and likeFixture are mutually exclusive", where)
		}
		if e.LikeFixture != nil && e.LikeFixture.Template == "" {
			add(s.Line, "%s: likeFixture template is required", where)
		}
	}

	for key, source := range s.Store {
		if key == "" {
			add(s.Line, "%s: store key must not be empty", where)
		}
		src := strings.TrimSuffix(source, StoreOptional)
		if src == StoreHeaderPrefix {
			add(s.Line, "%s: store %q names no header", where, key)
		}
	}
}
