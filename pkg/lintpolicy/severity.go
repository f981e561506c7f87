package lintpolicy

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Severity is the enforcement level of a lint rule.
type Severity int

// Severity levels, numbered the way the linter numbers them.
const (
	Off Severity = iota
	Warn
	Error
)

var severityNames = [...]string{"off", "warn", "error"}

func (s Severity) String() string {
	if s < Off || s > Error {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity accepts "off"/"warn"/"error" (any case) or the numbers
// 0/1/2. Numbers written as strings are rejected, as the linter does.
func ParseSeverity(v any) (Severity, error) {
	switch val := v.(type) {
	case Severity:
		if val < Off || val > Error {
			return Off, fmt.Errorf("invalid severity %d", int(val))
		}
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "off":
			return Off, nil
		case "warn":
			return Warn, nil
		case "error":
			return Error, nil
		}
		return Off, fmt.Errorf("invalid severity %q", val)
	case int:
		return ParseSeverity(Severity(val))
	case int64:
		return ParseSeverity(Severity(val))
	case float64:
		if val != float64(int(val)) {
			return Off, fmt.Errorf("invalid severity %v", val)
		}
		return ParseSeverity(Severity(int(val)))
	default:
		return Off, fmt.Errorf("invalid severity %v (%T)", v, v)
	}
}

// MarshalJSON writes the severity by name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// MarshalYAML writes the severity by name.
func (s Severity) MarshalYAML() (any, error) {
	return s.String(), nil
}

// UnmarshalYAML accepts the same spellings as ParseSeverity.
func (s *Severity) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	sev, err := ParseSeverity(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = sev
	return nil
}

// RuleSetting is a rule's severity plus optional rule-specific options.
type RuleSetting struct {
	Severity Severity
	Options  []any
}

// Rule is shorthand for a RuleSetting.
func Rule(sev Severity, options ...any) RuleSetting {
	return RuleSetting{Severity: sev, Options: options}
}

// UnmarshalYAML decodes either a bare severity or a [severity, options...]
// sequence.
func (r *RuleSetting) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var sev Severity
		if err := sev.UnmarshalYAML(node); err != nil {
			return err
		}
		*r = RuleSetting{Severity: sev}
		return nil
	case yaml.SequenceNode:
		if len(node.Content) == 0 {
			return fmt.Errorf("line %d: empty rule setting", node.Line)
		}
		var sev Severity
		if err := sev.UnmarshalYAML(node.Content[0]); err != nil {
			return err
		}
		setting := RuleSetting{Severity: sev}
		for _, opt := range node.Content[1:] {
			var v any
			if err := opt.Decode(&v); err != nil {
				return fmt.Errorf("line %d: %w", opt.Line, err)
			}
			setting.Options = append(setting.Options, v)
		}
		*r = setting
		return nil
	default:
		return fmt.Errorf("line %d: rule setting must be a severity or a list", node.Line)
	}
}

// MarshalJSON writes the bare severity when there are no options.
func (r RuleSetting) MarshalJSON() ([]byte, error) {
	if len(r.Options) == 0 {
		return json.Marshal(r.Severity)
	}
	out := make([]any, 0, len(r.Options)+1)
	out = append(out, r.Severity.String())
	out = append(out, r.Options...)
	return json.Marshal(out)
}

// MarshalYAML mirrors MarshalJSON.
func (r RuleSetting) MarshalYAML() (any, error) {
	if len(r.Options) == 0 {
		return r.Severity.String(), nil
	}
	return append([]any{r.Severity.String()}, r.Options...), nil
}

// RuleSet maps rule identifiers to their settings.
type RuleSet map[string]RuleSetting

// Clone returns a shallow copy of the rule set.
func (rs RuleSet) Clone() RuleSet {
	out := make(RuleSet, len(rs))
	for k, v := range rs {
		out[k] = v
	}
	return out
}

// overlay applies later settings over rs. A later setting with no options
// keeps the options already configured for that rule.
func (rs RuleSet) overlay(later RuleSet) {
	for id, setting := range later {
		if prev, ok := rs[id]; ok && len(setting.Options) == 0 {
			setting.Options = prev.Options
		}
		rs[id] = setting
	}
}
