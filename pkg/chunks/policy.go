// Package chunks assigns the modules of a dependency graph to named output
// chunks according to a priority-ordered set of chunk groups.
package chunks

import (
	"fmt"
	"regexp"
)

// Scope selects which modules a group may claim.
type Scope string

// Scopes.
const (
	ScopeAll     Scope = "all"
	ScopeAsync   Scope = "async"
	ScopeInitial Scope = "initial"
)

func (s Scope) accepts(m Module) bool {
	switch s {
	case ScopeAsync:
		return m.Async
	case ScopeInitial:
		return !m.Async
	default:
		return true
	}
}

// Group is a named chunk group.
type Group struct {
	Name string `json:"name" yaml:"name"`
	// Test is a regular expression over the module path. Empty matches every
	// module.
	Test          string `json:"test,omitempty" yaml:"test,omitempty"`
	Priority      int    `json:"priority" yaml:"priority"`
	Scope         Scope  `json:"chunks,omitempty" yaml:"chunks,omitempty"`
	MinChunks     int    `json:"minChunks,omitempty" yaml:"minChunks,omitempty"`
	Enforce       bool   `json:"enforce,omitempty" yaml:"enforce,omitempty"`
	ReuseExisting bool   `json:"reuseExistingChunk,omitempty" yaml:"reuseExistingChunk,omitempty"`

	re *regexp.Regexp
}

// Policy is the split-chunks configuration.
type Policy struct {
	Scope              Scope `json:"chunks" yaml:"chunks"`
	MinSize            int64 `json:"minSize" yaml:"minSize"`
	MinChunks          int   `json:"minChunks" yaml:"minChunks"`
	MaxAsyncRequests   int   `json:"maxAsyncRequests" yaml:"maxAsyncRequests"`
	MaxInitialRequests int   `json:"maxInitialRequests" yaml:"maxInitialRequests"`
	// MinSharedChunks is the number of consuming bundles a module matched by
	// no group needs before it is promoted to a shared chunk.
	MinSharedChunks int     `json:"minSharedChunks" yaml:"minSharedChunks"`
	Groups          []Group `json:"cacheGroups" yaml:"cacheGroups"`
}

// DefaultPolicy returns the split-chunks policy of the application build.
func DefaultPolicy() Policy {
	return Policy{
		Scope:              ScopeAll,
		MinSize:            20000,
		MinChunks:          1,
		MaxAsyncRequests:   30,
		MaxInitialRequests: 30,
		MinSharedChunks:    2,
		Groups: []Group{
			{Name: "vendors", Test: `[\\/]node_modules[\\/]`, Priority: -10, Scope: ScopeAll},
			{Name: "framework", Test: `[\\/]node_modules[\\/](react|react-dom|react-router-dom)[\\/]`, Priority: 10, Scope: ScopeAll},
			{Name: "ui", Test: `[\\/]node_modules[\\/](@radix-ui|framer-motion|lucide-react)[\\/]`, Priority: 5, Scope: ScopeAll},
			{Name: "charts", Test: `[\\/]node_modules[\\/](recharts)[\\/]`, Priority: 5, Scope: ScopeAll},
			{Name: "utils", Test: `[\\/]src[\\/]utils[\\/]`, Scope: ScopeAll, Enforce: true},
			{Name: "common", Priority: -20, Scope: ScopeAsync, MinChunks: 2, ReuseExisting: true},
		},
	}
}

// Compile compiles group matchers and fills defaults. It is idempotent.
func (p *Policy) Compile() error {
	if p.Scope == "" {
		p.Scope = ScopeAll
	}
	if p.MinChunks <= 0 {
		p.MinChunks = 1
	}
	if p.MinSharedChunks <= 0 {
		p.MinSharedChunks = 2
	}
	for i := range p.Groups {
		g := &p.Groups[i]
		if g.Name == "" {
			return fmt.Errorf("cache group %d: name is required", i)
		}
		switch g.Scope {
		case "":
			g.Scope = p.Scope
		case ScopeAll, ScopeAsync, ScopeInitial:
		default:
			return fmt.Errorf("cache group %s: invalid chunks scope %q", g.Name, g.Scope)
		}
		if g.Test == "" {
			g.re = nil
			continue
		}
		re, err := regexp.Compile(g.Test)
		if err != nil {
			return fmt.Errorf("cache group %s: %w", g.Name, err)
		}
		g.re = re
	}
	return nil
}

// matches reports whether the group's matcher accepts the module path. It
// ignores scope and sharing thresholds.
func (g *Group) matches(m Module) bool {
	if g.re == nil {
		return g.Test == ""
	}
	return g.re.MatchString(m.Path)
}

func (g *Group) minChunks(p *Policy) int {
	if g.MinChunks > 0 {
		return g.MinChunks
	}
	return p.MinChunks
}

// accepts reports whether the group may claim the module.
func (g *Group) accepts(p *Policy, m Module) bool {
	if !g.matches(m) || !g.Scope.accepts(m) {
		return false
	}
	if g.Enforce {
		return true
	}
	return len(m.Consumers) >= g.minChunks(p)
}
