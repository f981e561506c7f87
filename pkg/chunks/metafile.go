package chunks

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Metafile is the subset of esbuild's metafile used to rebuild the module
// graph.
type Metafile struct {
	Inputs  map[string]MetaInput  `json:"inputs"`
	Outputs map[string]MetaOutput `json:"outputs"`
}

// MetaInput is one source file.
type MetaInput struct {
	Bytes   int64        `json:"bytes"`
	Imports []MetaImport `json:"imports"`
}

// MetaImport is an import edge.
type MetaImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
}

// MetaOutput is one emitted file.
type MetaOutput struct {
	Bytes      int64                      `json:"bytes"`
	Inputs     map[string]MetaOutputInput `json:"inputs"`
	Imports    []MetaImport               `json:"imports"`
	EntryPoint string                     `json:"entryPoint,omitempty"`
	CSSBundle  string                     `json:"cssBundle,omitempty"`
}

// MetaOutputInput is an input's contribution to an output.
type MetaOutputInput struct {
	BytesInOutput int64 `json:"bytesInOutput"`
}

const kindDynamicImport = "dynamic-import"

// ParseMetafile decodes an esbuild metafile.
func ParseMetafile(data []byte) (*Metafile, error) {
	var m Metafile
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse metafile: %w", err)
	}
	return &m, nil
}

// LoadMetafile reads and decodes an esbuild metafile from disk.
func LoadMetafile(path string) (*Metafile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metafile: %w", err)
	}
	return ParseMetafile(data)
}

// Modules rebuilds the module list. Every entry point is an initial bundle
// and every dynamic import target starts an async bundle; a module's
// consumers are the bundles that reach it through static imports. Module
// paths are rooted with a leading slash.
//
// A bundle is named after its root file without extensions. When two roots
// share a file name, each is named by its directory and stem instead, and
// by its full input path if that still collides.
func (m *Metafile) Modules() []Module {
	entries := lo.Uniq(lo.FilterMap(lo.Values(m.Outputs), func(o MetaOutput, _ int) (string, bool) {
		return o.EntryPoint, o.EntryPoint != ""
	}))
	sort.Strings(entries)

	consumers := make(map[string]map[string]bool)
	staticallyInitial := make(map[string]bool)

	var asyncRoots []string
	queued := make(map[string]bool)
	for _, e := range entries {
		queued[e] = true
	}

	walk := func(root string, initial bool) {
		seen := map[string]bool{root: true}
		stack := []string{root}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			in, ok := m.Inputs[cur]
			if !ok {
				continue
			}
			if consumers[cur] == nil {
				consumers[cur] = make(map[string]bool)
			}
			consumers[cur][root] = true
			if initial {
				staticallyInitial[cur] = true
			}
			for _, imp := range in.Imports {
				if imp.External {
					continue
				}
				if imp.Kind == kindDynamicImport {
					if !queued[imp.Path] {
						queued[imp.Path] = true
						asyncRoots = append(asyncRoots, imp.Path)
					}
					continue
				}
				if !seen[imp.Path] {
					seen[imp.Path] = true
					stack = append(stack, imp.Path)
				}
			}
		}
	}

	for _, e := range entries {
		walk(e, true)
	}
	for i := 0; i < len(asyncRoots); i++ {
		walk(asyncRoots[i], false)
	}
	names := bundleNames(append(entries, asyncRoots...))

	paths := lo.Keys(m.Inputs)
	sort.Strings(paths)

	modules := make([]Module, 0, len(paths))
	for _, p := range paths {
		bundles := lo.Uniq(lo.Map(lo.Keys(consumers[p]), func(root string, _ int) string { return names[root] }))
		sort.Strings(bundles)
		modules = append(modules, Module{
			Path:      rooted(p),
			Size:      m.Inputs[p].Bytes,
			Consumers: bundles,
			Async:     len(bundles) > 0 && !staticallyInitial[p],
		})
	}
	return modules
}

// bundleNames assigns each root a distinct bundle name.
func bundleNames(roots []string) map[string]string {
	names := make(map[string]string, len(roots))
	for _, candidate := range []func(string) string{stem, dirStem, func(r string) string { return r }} {
		byName := lo.GroupBy(lo.Filter(roots, func(r string, _ int) bool { return names[r] == "" }), candidate)
		taken := lo.Values(names)
		for name, group := range byName {
			if len(group) == 1 && !slices.Contains(taken, name) {
				names[group[0]] = name
			}
		}
	}
	for _, r := range roots {
		if names[r] == "" {
			names[r] = r
		}
	}
	return names
}

// stem is the file name up to its first dot.
func stem(input string) string {
	base := path.Base(input)
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}

func dirStem(input string) string {
	return path.Join(path.Dir(input), stem(input))
}

func rooted(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
