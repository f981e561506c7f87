// Package stale reports build outputs that are older than the sources they
// were built from.
package stale

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/dkoosis/frontkit/pkg/chunks"
	"github.com/dkoosis/frontkit/pkg/sarif"
)

const ruleID = "build-stale"

// Rule relates one derived artifact to the files it was produced from. Paths
// are relative to the project root.
type Rule struct {
	Derived string
	Sources []string
}

// BuildRule returns the rule for a finished build: the metafile is derived
// from every project input it lists plus any extra files, such as the page
// template, that the bundler never sees. Inputs inside node_modules and
// virtual inputs are skipped.
func BuildRule(root, metafile string, meta *chunks.Metafile, extra ...string) Rule {
	derived, err := filepath.Rel(root, metafile)
	if err != nil {
		derived = metafile
	}

	sources := lo.Filter(lo.Keys(meta.Inputs), func(in string, _ int) bool {
		return !strings.Contains(in, "node_modules/") && !strings.Contains(in, ":")
	})
	sources = append(sources, extra...)
	sources = lo.Uniq(sources)
	sort.Strings(sources)

	return Rule{Derived: filepath.ToSlash(derived), Sources: sources}
}

// Evaluate checks every rule against root and returns a finding for each
// derived artifact that exists and is older than at least one existing
// source.
func Evaluate(root string, rules []Rule) (*sarif.Log, error) {
	run := sarif.NewRun("stale")

	for _, rule := range rules {
		derivedTime, ok, err := modTime(filepath.Join(root, filepath.FromSlash(rule.Derived)))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		var newer []string
		for _, src := range rule.Sources {
			t, ok, err := modTime(filepath.Join(root, filepath.FromSlash(src)))
			if err != nil {
				return nil, err
			}
			if ok && t.After(derivedTime) {
				newer = append(newer, src)
			}
		}
		if len(newer) == 0 {
			continue
		}

		msg := fmt.Sprintf("%s is older than %s", rule.Derived, newer[0])
		if len(newer) > 1 {
			msg += fmt.Sprintf(" and %d other source(s); rebuild before relying on it", len(newer)-1)
		} else {
			msg += "; rebuild before relying on it"
		}
		run.Results = append(run.Results, sarif.FileResult(ruleID, sarif.LevelWarning, msg, rule.Derived))
	}

	log := sarif.NewLog()
	log.Runs = append(log.Runs, run)
	return log, nil
}

func modTime(path string) (time.Time, bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.ModTime(), true, nil
}
