package lintpolicy

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/dkoosis/frontkit/pkg/sarif"
)

const ruleIDDeadOverride = "lint-dead-override"

// skipDirs are never descended into when looking for override targets.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"build":        true,
	"dist":         true,
	"coverage":     true,
}

// CheckOverrides walks root and reports every override whose patterns match
// no file under it.
func CheckOverrides(p *Policy, root string) (*sarif.Log, error) {
	files, err := collectFiles(root)
	if err != nil {
		return nil, err
	}

	run := sarif.NewRun("lint")
	uri := p.Source
	if uri == "" {
		uri = root
	}

	for i := range p.Overrides {
		o := &p.Overrides[i]
		live := false
		for _, f := range files {
			if o.Matches(f) {
				live = true
				break
			}
		}
		if live {
			continue
		}
		run.Results = append(run.Results, sarif.FileResult(
			ruleIDDeadOverride,
			sarif.LevelWarning,
			fmt.Sprintf("override %d (files: %s) matches no file under %s", i, strings.Join(o.Files, ", "), filepath.ToSlash(root)),
			uri,
		))
	}

	log := sarif.NewLog()
	log.Runs = append(log.Runs, run)
	return log, nil
}

func collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}
