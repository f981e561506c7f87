package lintpolicy

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// matcher is a compiled set of glob patterns. Patterns without a slash match
// the base name anywhere in the tree; "**" also matches zero directories.
type matcher struct {
	full []glob.Glob
	base []glob.Glob
}

func compileMatcher(patterns []string) (matcher, error) {
	var m matcher
	for _, raw := range patterns {
		p := strings.TrimPrefix(strings.TrimSpace(raw), "./")
		if p == "" {
			return matcher{}, fmt.Errorf("empty glob pattern")
		}

		if !strings.Contains(p, "/") {
			g, err := glob.Compile(p, '/')
			if err != nil {
				return matcher{}, fmt.Errorf("glob %q: %w", raw, err)
			}
			m.base = append(m.base, g)
			continue
		}

		for _, alt := range globstarForms(p) {
			g, err := glob.Compile(alt, '/')
			if err != nil {
				return matcher{}, fmt.Errorf("glob %q: %w", raw, err)
			}
			m.full = append(m.full, g)
		}
	}
	return m, nil
}

func (m matcher) match(rel string) bool {
	for _, g := range m.full {
		if g.Match(rel) {
			return true
		}
	}
	if len(m.base) == 0 {
		return false
	}
	base := path.Base(rel)
	for _, g := range m.base {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// globstarForms expands every "**/" segment into the pattern with and
// without it, so "src/**/*.js" also matches "src/index.js".
func globstarForms(p string) []string {
	i := strings.Index(p, "**/")
	if i < 0 || (i > 0 && p[i-1] != '/') {
		return []string{p}
	}
	head, tail := p[:i], p[i+3:]
	var out []string
	for _, rest := range globstarForms(tail) {
		out = append(out, head+"**/"+rest, head+rest)
	}
	return out
}
