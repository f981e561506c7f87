package chunks

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dkoosis/frontkit/pkg/sarif"
)

const (
	ruleIDPriorityTie   = "chunk-priority-tie"
	ruleIDDuplicateName = "chunk-duplicate-name"
	ruleIDMaxRequests   = "chunk-max-requests"
	ruleIDNameCollision = "chunk-name-collision"
)

// Validate checks a policy for consistency and returns the findings. uri
// names the descriptor the policy came from. Sample modules, when given, are
// used to detect groups with equal priority whose matchers claim the same
// module; without them only catch-all groups can be proven to overlap.
func Validate(p Policy, modules []Module, uri string) (*sarif.Log, error) {
	p.Groups = slices.Clone(p.Groups)
	if err := p.Compile(); err != nil {
		return nil, err
	}

	run := sarif.NewRun("chunks")

	seen := make(map[string]bool)
	for _, g := range p.Groups {
		if seen[g.Name] {
			run.Results = append(run.Results, sarif.FileResult(ruleIDDuplicateName, sarif.LevelError,
				fmt.Sprintf("cache group name %q is declared more than once", g.Name), uri))
		}
		seen[g.Name] = true
	}

	for _, msg := range collisions(&p, modules) {
		run.Results = append(run.Results, sarif.FileResult(ruleIDNameCollision, sarif.LevelError, msg, uri))
	}

	for _, tie := range ties(&p, modules) {
		run.Results = append(run.Results, sarif.FileResult(ruleIDPriorityTie, sarif.LevelWarning, tie, uri))
	}

	if len(modules) > 0 {
		plan, err := Partition(p, modules)
		if err != nil {
			return nil, err
		}
		for _, msg := range requestOverruns(&p, modules, plan) {
			run.Results = append(run.Results, sarif.FileResult(ruleIDMaxRequests, sarif.LevelWarning, msg, uri))
		}
	}

	log := sarif.NewLog()
	log.Runs = append(log.Runs, run)
	return log, nil
}

// collisions describes group names that shadow a bundle name or the shared
// chunk namespace.
func collisions(p *Policy, modules []Module) []string {
	bundles := make(map[string]bool)
	for _, m := range modules {
		for _, c := range m.Consumers {
			bundles[c] = true
		}
	}
	var out []string
	for _, g := range p.Groups {
		switch {
		case strings.HasPrefix(g.Name, sharedPrefix):
			out = append(out, fmt.Sprintf("cache group name %q uses the reserved %q prefix of shared chunks", g.Name, sharedPrefix))
		case bundles[g.Name]:
			out = append(out, fmt.Sprintf("cache group name %q is also the name of a bundle; the bundle's own chunk is renamed %q", g.Name, g.Name+bundleSuffix))
		}
	}
	return out
}

// ties describes every pair of equal-priority groups that can claim the same
// module.
func ties(p *Policy, modules []Module) []string {
	var out []string
	for i := range p.Groups {
		for j := i + 1; j < len(p.Groups); j++ {
			a, b := &p.Groups[i], &p.Groups[j]
			if a.Priority != b.Priority || !scopesOverlap(a.Scope, b.Scope) {
				continue
			}
			if a.Test == "" || b.Test == "" {
				out = append(out, fmt.Sprintf("cache groups %q and %q share priority %d and %q matches every module; %q wins by declaration order",
					a.Name, b.Name, a.Priority, catchAll(a, b), a.Name))
				continue
			}
			for _, m := range modules {
				if a.matches(m) && b.matches(m) {
					out = append(out, fmt.Sprintf("cache groups %q and %q share priority %d and both match %s; %q wins by declaration order",
						a.Name, b.Name, a.Priority, m.Path, a.Name))
					break
				}
			}
		}
	}
	return out
}

func catchAll(a, b *Group) string {
	if a.Test == "" {
		return a.Name
	}
	return b.Name
}

func scopesOverlap(a, b Scope) bool {
	return a == b || a == ScopeAll || b == ScopeAll
}

// requestOverruns reports bundles that would need more parallel chunk
// requests than the policy allows.
func requestOverruns(p *Policy, modules []Module, plan *Plan) []string {
	initial := make(map[string]map[string]bool)
	async := make(map[string]map[string]bool)
	for _, m := range modules {
		chunk, ok := plan.Modules[m.Path]
		if !ok {
			continue
		}
		target := initial
		if m.Async {
			target = async
		}
		for _, c := range m.Consumers {
			if target[c] == nil {
				target[c] = make(map[string]bool)
			}
			target[c][chunk] = true
		}
	}

	var out []string
	check := func(kind string, counts map[string]map[string]bool, limit int) {
		if limit <= 0 {
			return
		}
		bundles := make([]string, 0, len(counts))
		for b := range counts {
			bundles = append(bundles, b)
		}
		slices.Sort(bundles)
		for _, b := range bundles {
			if n := len(counts[b]); n > limit {
				out = append(out, fmt.Sprintf("bundle %s needs %d %s chunk requests, limit is %d", b, n, kind, limit))
			}
		}
	}
	check("initial", initial, p.MaxInitialRequests)
	check("async", async, p.MaxAsyncRequests)
	return out
}
