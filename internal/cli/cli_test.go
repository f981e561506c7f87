package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dkoosis/frontkit/pkg/chunks"
	"github.com/dkoosis/frontkit/pkg/sarif"
)

var fixture = map[string]string{
	"frontend/src/index.js":           "import { App } from './App.js';\nimport 'react';\nApp();\n",
	"frontend/src/App.js":             "export const App = () => document.title;\n",
	"frontend/src/service-worker.js":  "self.__WB_MANIFEST;\n",
	"frontend/public/index.html":      "<html><head></head><body></body></html>",
	"node_modules/react/index.js":     "globalThis.React = { version: '18' };\n",
	"node_modules/react/package.json": `{"name":"react","main":"index.js"}`,
}

func project(t *testing.T, extra map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for _, files := range []map[string]string{fixture, extra} {
		for name, body := range files {
			path := filepath.Join(root, filepath.FromSlash(name))
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		}
	}
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"NODE_ENV", "PORT", "ANALYZE"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDescribe(t *testing.T) {
	root := project(t, nil)

	out, err := run(t, "describe", "--root", root, "--mode", "production", "--analyze", "-f", "json")
	require.NoError(t, err)

	var doc struct {
		Mode    string `json:"mode"`
		Plugins []struct {
			Name string `json:"name"`
		} `json:"plugins"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "production", doc.Mode)
	names := make([]string, 0, len(doc.Plugins))
	for _, p := range doc.Plugins {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"html", "copy", "compression", "inject-manifest", "bundle-analyzer"}, names)

	out, err = run(t, "describe", "--root", root)
	require.NoError(t, err)
	var yamlDoc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &yamlDoc))
	assert.Equal(t, "development", yamlDoc["mode"])
}

func TestDescribe_ConfigFile(t *testing.T) {
	root := project(t, map[string]string{
		"frontkit.yaml": "mode: production\nmax_asset_size: 100KB\n",
	})

	out, err := run(t, "describe", "--root", root, "-f", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"mode": "production"`)
	assert.Contains(t, out, `"maxAssetSize": 102400`)
}

func TestBuildThenPlanAndCheck(t *testing.T) {
	root := project(t, nil)

	out, err := run(t, "build", "--root", root, "--mode", "production", "-f", "json")
	require.NoError(t, err, out)
	var summary buildSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.NotEmpty(t, summary.Outputs)
	assert.FileExists(t, filepath.Join(root, "frontend", "build", "meta.json"))

	out, err = run(t, "chunks", "plan", "--root", root, "--mode", "production", "-f", "json")
	require.NoError(t, err)
	var plan chunks.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	// The vendor groups fall below the minimum chunk size and dissolve, so
	// react stays inlined in the entry bundle.
	assert.Equal(t, []string{"vendors", "framework"}, plan.Dissolved)
	assert.Equal(t, "index", plan.Modules["/node_modules/react/index.js"])

	out, err = run(t, "check", "--root", root, "--mode", "production", "-f", "json")
	require.NoError(t, err, out)
	var log sarif.Log
	require.NoError(t, json.Unmarshal([]byte(out), &log))
	tools := make([]string, 0, len(log.Runs))
	for _, r := range log.Runs {
		tools = append(tools, r.Tool.Driver.Name)
	}
	assert.Contains(t, tools, "frontkit-budget", "budgets run once a metafile exists")
}

func TestCheck_InvalidDescriptor(t *testing.T) {
	root := project(t, map[string]string{
		"frontkit.yaml": "entry: ../outside.js\n",
	})

	out, err := run(t, "check", "--root", root)
	require.ErrorIs(t, err, ErrFindings)
	assert.Contains(t, out, "[descriptor-invalid]")
	assert.Contains(t, out, "1 error(s)")
}

func TestCheck_PublicBackups(t *testing.T) {
	root := project(t, map[string]string{
		"frontend/public/logo.png.bak": "old",
	})

	out, err := run(t, "check", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "[public-backup-file]")
}

func TestLint(t *testing.T) {
	root := project(t, map[string]string{
		".eslintrc.yaml": `env:
  browser: true
rules:
  no-console: warn
overrides:
  - files: ["**/*.test.js"]
    env: { jest: true }
    rules:
      no-console: "off"
  - files: ["legacy/**"]
    rules:
      eqeqeq: error
`,
		"frontend/src/App.test.js": "test('x', () => {});\n",
	})

	out, err := run(t, "lint", "effective", "--root", root, "frontend/src/App.test.js", "frontend/src/App.js")
	require.NoError(t, err)
	assert.Contains(t, out, "frontend/src/App.test.js\n  env: browser, jest\n  overrides: [0]\n  no-console: off\n")
	assert.Contains(t, out, "frontend/src/App.js\n  env: browser\n  no-console: warn\n")

	out, err = run(t, "lint", "check", "--root", root)
	require.NoError(t, err, "dead overrides are warnings")
	assert.Contains(t, out, "[lint-dead-override]")
	assert.Contains(t, out, "legacy/**")

	_, err = run(t, "lint", "export", "--root", root)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(root, ".eslintrc.json"))
	require.NoError(t, err)
	var exported map[string]any
	require.NoError(t, json.Unmarshal(data, &exported))
	assert.Equal(t, map[string]any{"no-console": "warn"}, exported["rules"])
}

func TestLint_DefaultPolicy(t *testing.T) {
	root := project(t, nil)

	out, err := run(t, "lint", "export", "--root", root, "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"react-hooks/rules-of-hooks": "error"`)

	_, err = run(t, "lint", "check", "--root", root, "--policy", "missing.yaml")
	assert.Error(t, err, "an explicit policy file must exist")
}

func TestLint_DefaultPolicyScopesSpecFiles(t *testing.T) {
	root := project(t, map[string]string{
		"frontend/src/App.spec.jsx": "it('renders', () => {});\n",
	})

	out, err := run(t, "lint", "effective", "--root", root, "frontend/src/App.spec.jsx", "frontend/src/App.js")
	require.NoError(t, err)
	assert.Contains(t, out, "frontend/src/App.spec.jsx\n  env: browser, es2021, jest, node\n  overrides: [0]\n")
	assert.Contains(t, out, "  max-len: off\n")
	assert.Contains(t, out, "  no-console: off\n")
	assert.Contains(t, out, "  semi: warn [always]\n")

	out, err = run(t, "lint", "effective", "--root", root, "--mode", "production", "frontend/src/App.js")
	require.NoError(t, err)
	assert.Contains(t, out, "  no-console: error\n")

	out, err = run(t, "lint", "check", "--root", root)
	require.NoError(t, err)
	assert.NotContains(t, out, "[lint-dead-override]")

	out, err = run(t, "check", "--root", root)
	require.NoError(t, err)
	assert.NotContains(t, out, "[lint-dead-override]")
}

func TestLint_PolicyGlobsAreRelativeToPolicyFile(t *testing.T) {
	root := project(t, map[string]string{
		"frontend/.eslintrc.yaml": `rules:
  no-console: warn
overrides:
  - files: ["src/service-worker.js"]
    env: { serviceworker: true }
`,
	})

	out, err := run(t, "lint", "effective", "--root", root, "--policy", "frontend/.eslintrc.yaml", "frontend/src/service-worker.js")
	require.NoError(t, err)
	assert.Contains(t, out, "frontend/src/service-worker.js\n  env: serviceworker\n  overrides: [0]\n")

	out, err = run(t, "lint", "check", "--root", root, "--policy", "frontend/.eslintrc.yaml")
	require.NoError(t, err)
	assert.NotContains(t, out, "[lint-dead-override]")
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "describe", "--root", t.TempDir(), "-f", "xml")
	assert.ErrorContains(t, err, `format "xml"`)
}
