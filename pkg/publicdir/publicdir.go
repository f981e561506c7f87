// Package publicdir copies the static public directory into the build
// output, leaving out ignored paths and backup or temporary files.
package publicdir

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/dkoosis/frontkit/pkg/sarif"
)

const ruleIDBackup = "public-backup-file"

// Result lists what Copy did, as slash-separated paths relative to the
// source directory.
type Result struct {
	Copied  []string
	Ignored []string
	Backups []string
}

// Copy copies every regular file under from into to. Files matching one of
// the ignore globs are skipped, as are backup files and .git directories.
// A missing source directory is not an error.
func Copy(from, to string, ignore []string) (*Result, error) {
	if from == "" {
		return nil, errors.New("empty path provided")
	}

	matchers, err := compile(ignore)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if _, err := os.Stat(from); errors.Is(err, fs.ErrNotExist) {
		return res, nil
	}

	err = filepath.WalkDir(from, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case matchAny(matchers, rel):
			res.Ignored = append(res.Ignored, rel)
		case isBackup(d.Name()):
			res.Backups = append(res.Backups, rel)
		default:
			if err := copyFile(path, filepath.Join(to, filepath.FromSlash(rel))); err != nil {
				return err
			}
			res.Copied = append(res.Copied, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("copy %s: %w", from, err)
	}

	sort.Strings(res.Copied)
	sort.Strings(res.Ignored)
	sort.Strings(res.Backups)
	return res, nil
}

// Scan reports backup and temporary files in dir as SARIF warnings.
func Scan(dir string) (*sarif.Log, error) {
	run := sarif.NewRun("publicdir")

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		log := sarif.NewLog()
		log.Runs = append(log.Runs, run)
		return log, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if isBackup(d.Name()) {
			run.Results = append(run.Results, sarif.FileResult(ruleIDBackup, sarif.LevelWarning,
				fmt.Sprintf("Backup/temporary file in public directory is not copied: %s", path),
				filepath.ToSlash(path)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(run.Results, func(i, j int) bool {
		return run.Results[i].Locations[0].PhysicalLocation.ArtifactLocation.URI <
			run.Results[j].Locations[0].PhysicalLocation.ArtifactLocation.URI
	})

	log := sarif.NewLog()
	log.Runs = append(log.Runs, run)
	return log, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func compile(patterns []string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, p := range patterns {
		forms := []string{p}
		if rest, ok := strings.CutPrefix(p, "**/"); ok {
			forms = append(forms, rest)
		}
		for _, f := range forms {
			g, err := glob.Compile(f, '/')
			if err != nil {
				return nil, fmt.Errorf("ignore pattern %q: %w", p, err)
			}
			out = append(out, g)
		}
	}
	return out, nil
}

func matchAny(globs []glob.Glob, rel string) bool {
	for _, g := range globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

var backupSuffixes = []string{".bak", ".backup", ".old", ".orig", ".swp", ".swo", "~"}

func isBackup(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range backupSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
