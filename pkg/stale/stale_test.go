package stale

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dkoosis/frontkit/pkg/chunks"
)

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("set time: %v", err)
	}
}

func TestBuildRule(t *testing.T) {
	root := t.TempDir()
	meta := &chunks.Metafile{Inputs: map[string]chunks.MetaInput{
		"frontend/src/index.js":       {},
		"frontend/src/App.js":         {},
		"node_modules/react/index.js": {},
		"<runtime>":                   {},
		"data:text/plain,hi":          {},
	}}

	rule := BuildRule(root, filepath.Join(root, "frontend", "build", "meta.json"), meta, "frontend/public/index.html")

	if rule.Derived != "frontend/build/meta.json" {
		t.Errorf("derived = %q", rule.Derived)
	}
	want := []string{"<runtime>", "frontend/public/index.html", "frontend/src/App.js", "frontend/src/index.js"}
	if !reflect.DeepEqual(rule.Sources, want) {
		t.Errorf("sources = %v, want %v", rule.Sources, want)
	}
}

func TestEvaluateStale(t *testing.T) {
	dir := t.TempDir()
	older := time.Now().Add(-2 * time.Hour)
	newer := time.Now().Add(-1 * time.Hour)

	touch(t, filepath.Join(dir, "build", "meta.json"), older)
	touch(t, filepath.Join(dir, "src", "a.js"), newer)
	touch(t, filepath.Join(dir, "src", "b.js"), newer)

	log, err := Evaluate(dir, []Rule{{Derived: "build/meta.json", Sources: []string{"src/a.js", "src/b.js", "src/gone.js"}}})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}

	results := log.Runs[0].Results
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].RuleID != ruleID {
		t.Errorf("unexpected rule ID: %s", results[0].RuleID)
	}
	if uri := results[0].Locations[0].PhysicalLocation.ArtifactLocation.URI; uri != "build/meta.json" {
		t.Errorf("expected derived relative path, got %s", uri)
	}
	if !strings.Contains(results[0].Message.Text, "src/a.js and 1 other source(s)") {
		t.Errorf("unexpected message: %s", results[0].Message.Text)
	}
}

func TestEvaluateNotStale(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "src", "a.js"), time.Now().Add(-2*time.Hour))
	touch(t, filepath.Join(dir, "build", "meta.json"), time.Now().Add(-1*time.Hour))

	log, err := Evaluate(dir, []Rule{
		{Derived: "build/meta.json", Sources: []string{"src/a.js"}},
		{Derived: "missing/meta.json", Sources: []string{"src/a.js"}},
	})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if n := len(log.Runs[0].Results); n != 0 {
		t.Fatalf("expected 0 results, got %d", n)
	}
}
