package chunks

import (
	"slices"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Module is one node of the dependency graph.
type Module struct {
	// Path is the project-rooted, slash-separated module path, for example
	// "/node_modules/react/index.js".
	Path string `json:"path"`
	Size int64  `json:"size"`
	// Consumers names the output bundles whose graph includes the module.
	Consumers []string `json:"consumers"`
	// Async is true when the module is only reachable through dynamic
	// imports.
	Async bool `json:"async,omitempty"`
}

const (
	sharedPrefix = "shared~"
	bundleSuffix = "~bundle"
)

// Chunk is one named output chunk of a plan.
type Chunk struct {
	Name string `json:"name"`
	// Group is the claiming chunk group; empty for shared and inlined chunks.
	Group   string   `json:"group,omitempty"`
	Modules []string `json:"modules"`
	Size    int64    `json:"size"`
}

// Plan is the result of partitioning.
type Plan struct {
	Chunks []Chunk `json:"chunks"`
	// Modules maps each module path to the chunk that owns it.
	Modules map[string]string `json:"modules"`
	// Dissolved lists groups dropped because they fell below the minimum
	// chunk size.
	Dissolved []string `json:"dissolved,omitempty"`
	// Unassigned lists modules no bundle consumes.
	Unassigned []string `json:"unassigned,omitempty"`
}

// Chunk returns the chunk with the given name.
func (p *Plan) Chunk(name string) (Chunk, bool) {
	return lo.Find(p.Chunks, func(c Chunk) bool { return c.Name == name })
}

// Partition assigns every module to at most one chunk.
//
// For each module the accepting group with the highest priority wins; equal
// priorities resolve to the group declared first. Groups whose claimed size
// stays below MinSize are dissolved one at a time, highest priority first,
// and their modules re-evaluated. Modules no group claims are promoted to a
// shared chunk when at least MinSharedChunks bundles consume them, and
// otherwise stay inlined in their consuming bundle. Group names are
// reserved: a shared or inlined chunk whose name equals a group's gets the
// suffix "~bundle" so the two never merge.
func Partition(p Policy, modules []Module) (*Plan, error) {
	p.Groups = slices.Clone(p.Groups)
	if err := p.Compile(); err != nil {
		return nil, err
	}

	dissolved := make(map[int]bool)
	var owner []int
	for {
		owner = claim(&p, modules, dissolved)
		victim := undersized(&p, modules, owner, dissolved)
		if victim < 0 {
			break
		}
		dissolved[victim] = true
	}

	reserved := lo.SliceToMap(p.Groups, func(g Group) (string, bool) { return g.Name, true })
	bundleChunk := func(name string) string {
		if reserved[name] {
			return name + bundleSuffix
		}
		return name
	}

	plan := &Plan{Modules: make(map[string]string, len(modules))}
	byName := make(map[string]*Chunk)
	order := []string{}
	add := func(name, group string, m Module) {
		c, ok := byName[name]
		if !ok {
			c = &Chunk{Name: name, Group: group}
			byName[name] = c
			order = append(order, name)
		}
		c.Modules = append(c.Modules, m.Path)
		c.Size += m.Size
		plan.Modules[m.Path] = name
	}

	for i, m := range modules {
		if gi := owner[i]; gi >= 0 {
			add(p.Groups[gi].Name, p.Groups[gi].Name, m)
			continue
		}
		consumers := lo.Uniq(m.Consumers)
		sort.Strings(consumers)
		switch {
		case len(consumers) == 0:
			plan.Unassigned = append(plan.Unassigned, m.Path)
		case len(consumers) >= p.MinSharedChunks:
			add(bundleChunk(sharedPrefix+strings.Join(consumers, "~")), "", m)
		default:
			add(bundleChunk(consumers[0]), "", m)
		}
	}

	for _, name := range order {
		c := byName[name]
		sort.Strings(c.Modules)
		plan.Chunks = append(plan.Chunks, *c)
	}
	sort.Slice(plan.Chunks, func(i, j int) bool { return plan.Chunks[i].Name < plan.Chunks[j].Name })
	sort.Strings(plan.Unassigned)

	for gi := range p.Groups {
		if dissolved[gi] {
			plan.Dissolved = append(plan.Dissolved, p.Groups[gi].Name)
		}
	}
	return plan, nil
}

// claim returns, per module, the index of the owning group or -1.
func claim(p *Policy, modules []Module, dissolved map[int]bool) []int {
	owner := make([]int, len(modules))
	for i, m := range modules {
		owner[i] = choose(p, m, dissolved)
	}
	return owner
}

// choose picks the highest-priority accepting group, first declared on ties.
func choose(p *Policy, m Module, dissolved map[int]bool) int {
	best := -1
	for gi := range p.Groups {
		if dissolved[gi] {
			continue
		}
		g := &p.Groups[gi]
		if !g.accepts(p, m) {
			continue
		}
		if best < 0 || g.Priority > p.Groups[best].Priority {
			best = gi
		}
	}
	return best
}

// undersized returns the highest-priority non-enforced group whose claimed
// size is positive but below MinSize, or -1.
func undersized(p *Policy, modules []Module, owner []int, dissolved map[int]bool) int {
	if p.MinSize <= 0 {
		return -1
	}
	sizes := make(map[int]int64)
	for i, gi := range owner {
		if gi >= 0 {
			sizes[gi] += modules[i].Size
		}
	}

	victim := -1
	for gi, size := range sizes {
		g := &p.Groups[gi]
		if dissolved[gi] || g.Enforce || size >= p.MinSize {
			continue
		}
		if victim < 0 || g.Priority > p.Groups[victim].Priority ||
			(g.Priority == p.Groups[victim].Priority && gi < victim) {
			victim = gi
		}
	}
	return victim
}
