// Package lintpolicy models the project's lint descriptor: a base rule set,
// environment flags and glob-scoped overrides, and resolves the rules that
// apply to a given source file.
package lintpolicy

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// StringList decodes from either a single string or a list of strings.
type StringList []string

// UnmarshalYAML accepts a scalar or a sequence.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", node.Line)
	}
}

// ParserOptions selects the syntax dialect.
type ParserOptions struct {
	// EcmaVersion is a year or edition number, or "latest".
	EcmaVersion  any             `yaml:"ecmaVersion,omitempty" json:"ecmaVersion,omitempty"`
	SourceType   string          `yaml:"sourceType,omitempty" json:"sourceType,omitempty"`
	EcmaFeatures map[string]bool `yaml:"ecmaFeatures,omitempty" json:"ecmaFeatures,omitempty"`
}

// Override scopes a partial rule set and env flags to files matching a glob.
type Override struct {
	Files         StringList      `yaml:"files" json:"files"`
	ExcludedFiles StringList      `yaml:"excludedFiles,omitempty" json:"excludedFiles,omitempty"`
	Env           map[string]bool `yaml:"env,omitempty" json:"env,omitempty"`
	Rules         RuleSet         `yaml:"rules,omitempty" json:"rules,omitempty"`

	include matcher
	exclude matcher
}

// Matches reports whether the override applies to the slash-separated path
// relative to the policy root.
func (o *Override) Matches(rel string) bool {
	rel = normalize(rel)
	return o.include.match(rel) && !o.exclude.match(rel)
}

// Policy is the lint descriptor.
type Policy struct {
	Root          bool            `yaml:"root,omitempty" json:"root,omitempty"`
	Env           map[string]bool `yaml:"env,omitempty" json:"env,omitempty"`
	Extends       StringList      `yaml:"extends,omitempty" json:"extends,omitempty"`
	ParserOptions ParserOptions   `yaml:"parserOptions,omitempty" json:"parserOptions,omitempty"`
	Plugins       []string        `yaml:"plugins,omitempty" json:"plugins,omitempty"`
	Rules         RuleSet         `yaml:"rules,omitempty" json:"rules,omitempty"`
	Overrides     []Override      `yaml:"overrides,omitempty" json:"overrides,omitempty"`
	Settings      map[string]any  `yaml:"settings,omitempty" json:"settings,omitempty"`

	// Source is the file the policy was loaded from, if any.
	Source string `yaml:"-" json:"-"`
}

// Resolved is the effective configuration for one file.
type Resolved struct {
	Path    string          `json:"path"`
	Env     map[string]bool `json:"env"`
	Rules   RuleSet         `json:"rules"`
	Applied []int           `json:"applied,omitempty"` // indices of matching overrides
}

// Load reads a policy from a YAML or JSON file.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lint policy: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Source = path
	return p, nil
}

// Parse decodes a policy document. JSON documents are accepted because JSON
// is valid YAML.
func Parse(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse lint policy: %w", err)
	}
	if err := p.Compile(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Compile prepares the override matchers. It must be called after building a
// Policy by hand; Load and Parse call it.
func (p *Policy) Compile() error {
	for i := range p.Overrides {
		o := &p.Overrides[i]
		if len(o.Files) == 0 {
			return fmt.Errorf("override %d: files is required", i)
		}
		var err error
		if o.include, err = compileMatcher(o.Files); err != nil {
			return fmt.Errorf("override %d: %w", i, err)
		}
		if o.exclude, err = compileMatcher(o.ExcludedFiles); err != nil {
			return fmt.Errorf("override %d: %w", i, err)
		}
	}
	return nil
}

// Effective returns the rules and env flags for a file: the base settings
// overlaid, in declaration order, by every matching override.
func (p *Policy) Effective(rel string) Resolved {
	rel = normalize(rel)
	res := Resolved{
		Path:  rel,
		Env:   lo.Assign(map[string]bool{}, p.Env),
		Rules: p.Rules.Clone(),
	}

	for i := range p.Overrides {
		o := &p.Overrides[i]
		if !o.Matches(rel) {
			continue
		}
		res.Applied = append(res.Applied, i)
		res.Env = lo.Assign(res.Env, o.Env)
		res.Rules.overlay(o.Rules)
	}
	return res
}

// WriteJSON writes the policy in the linter's JSON configuration format.
func (p *Policy) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func normalize(rel string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = path.Clean(rel)
	return strings.TrimPrefix(rel, "./")
}
