package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/frontkit/pkg/descriptor"
)

var fixture = map[string]string{
	"frontend/src/index.js": `import './index.css';
import { format } from '@/utils/format.js';

console.log('booting');
document.getElementById('root').textContent = format('ready');
import('./pages/Report.js').then((m) => m.render());
`,
	"frontend/src/index.css":          "body { margin: 0; }\n",
	"frontend/src/utils/format.js":    "export const format = (s) => `[${s}]`;\n",
	"frontend/src/pages/Report.js":    "import { format } from '../utils/format.js';\nexport const render = () => format('report');\n",
	"frontend/src/service-worker.js":  "const precache = self.__WB_MANIFEST;\nself.addEventListener('install', () => precache.length);\n",
	"frontend/public/index.html":      "<!doctype html><html><head><title>app</title></head><body><div id=\"root\"></div></body></html>\n",
	"frontend/public/favicon.ico":     "ico",
	"frontend/public/robots.txt.orig": "old",
}

func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range fixture {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

var hashedEntry = regexp.MustCompile(`^index\.[0-9A-Z]{8}\.js$`)

func TestRun_Production(t *testing.T) {
	root := project(t)
	d := descriptor.Select(descriptor.Options{Production: true, Analyze: true})

	res, err := Run(context.Background(), Request{Root: root, Descriptor: d, Logger: zerolog.Nop()})
	require.NoError(t, err)

	outDir := filepath.Join(root, "frontend", "build")
	assert.Equal(t, outDir, res.OutDir)

	var entry string
	for _, o := range res.Outputs {
		if hashedEntry.MatchString(o) {
			entry = o
		}
		assert.False(t, strings.HasSuffix(o, ".map"), "production builds have no source maps")
	}
	require.NotEmpty(t, entry, "outputs: %v", res.Outputs)

	code := read(t, filepath.Join(outDir, entry))
	assert.NotContains(t, code, "console.log", "console calls are dropped")
	assert.NotContains(t, code, "@/utils", "alias is resolved")

	page := read(t, filepath.Join(outDir, "index.html"))
	assert.Contains(t, page, `<script type="module" src="/`+entry+`"></script>`)
	assert.Contains(t, page, `<link rel="stylesheet" href="/index.`)
	assert.Contains(t, page, "<title>app</title>")

	assert.FileExists(t, filepath.Join(outDir, "favicon.ico"))
	assert.NoFileExists(t, filepath.Join(outDir, "robots.txt.orig"))

	sw := read(t, filepath.Join(outDir, "service-worker.js"))
	assert.Contains(t, sw, `"url":"/index.html"`)
	assert.Contains(t, sw, `"url":"/`+entry+`","revision":null`)
	require.NotNil(t, res.Manifest)

	assert.FileExists(t, filepath.Join(outDir, MetafileName))
	assert.FileExists(t, filepath.Join(outDir, ChunkPlanName))
	assert.FileExists(t, filepath.Join(outDir, "bundle-report.txt"))
	assert.FileExists(t, filepath.Join(outDir, "bundle-stats.json"))

	require.NotNil(t, res.Plan)
	assert.Equal(t, "utils", res.Plan.Modules["/frontend/src/utils/format.js"])
	require.NotNil(t, res.Findings)
	assert.False(t, res.Findings.HasErrors())
}

func TestRun_CompressesServiceWorker(t *testing.T) {
	root := project(t)
	sw := "const precache = self.__WB_MANIFEST;\nconst banner = '" + strings.Repeat("precache ", 2000) +
		"';\nself.addEventListener('install', () => precache.length + banner.length);\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "frontend", "src", "service-worker.js"), []byte(sw), 0o644))

	d := descriptor.Select(descriptor.Options{Production: true})
	res, err := Run(context.Background(), Request{Root: root, Descriptor: d, Logger: zerolog.Nop()})
	require.NoError(t, err)

	outDir := filepath.Join(root, "frontend", "build")
	assert.FileExists(t, filepath.Join(outDir, "service-worker.js.gz"))
	var sources []string
	for _, f := range res.Compressed {
		sources = append(sources, f.Source)
	}
	assert.Contains(t, sources, "service-worker.js")
}

func TestRunOrder_DefersCompressionPastManifest(t *testing.T) {
	d := descriptor.Select(descriptor.Options{Production: true, Analyze: true})

	var names []string
	for _, p := range runOrder(d.Plugins) {
		names = append(names, p.PluginName())
	}
	assert.Equal(t, []string{"html", "copy", "inject-manifest", "compression", "bundle-analyzer"}, names)
}

func TestRun_Development(t *testing.T) {
	root := project(t)
	d := descriptor.Select(descriptor.Options{})

	res, err := Run(context.Background(), Request{Root: root, Descriptor: d, Logger: zerolog.Nop()})
	require.NoError(t, err)

	var entry string
	var maps int
	for _, o := range res.Outputs {
		if hashedEntry.MatchString(o) {
			entry = o
		}
		if strings.HasSuffix(o, ".map") {
			maps++
		}
	}
	require.NotEmpty(t, entry)
	assert.Positive(t, maps, "development builds link source maps")

	code := read(t, filepath.Join(res.OutDir, entry))
	assert.Contains(t, code, "console.log")

	assert.NoFileExists(t, filepath.Join(res.OutDir, "service-worker.js"))
	assert.Nil(t, res.Manifest)
	assert.Empty(t, res.Compressed)
}

func TestRun_ContentHashTracksContent(t *testing.T) {
	build := func(root string) string {
		res, err := Run(context.Background(), Request{
			Root:       root,
			Descriptor: descriptor.Select(descriptor.Options{Production: true}),
			Logger:     zerolog.Nop(),
		})
		require.NoError(t, err)
		for _, o := range res.Outputs {
			if hashedEntry.MatchString(o) {
				return o
			}
		}
		t.Fatalf("no entry output in %v", res.Outputs)
		return ""
	}

	a, b := project(t), project(t)
	assert.Equal(t, build(a), build(b), "equal content gives equal names")

	path := filepath.Join(b, "frontend", "src", "index.js")
	require.NoError(t, os.WriteFile(path, []byte(fixture["frontend/src/index.js"]+"export const changed = 1;\n"), 0o644))
	assert.NotEqual(t, build(a), build(b), "changed content gives a different name")
}

func TestRun_ReportsSyntaxErrors(t *testing.T) {
	root := project(t)
	path := filepath.Join(root, "frontend", "src", "index.js")
	require.NoError(t, os.WriteFile(path, []byte("const = ;\n"), 0o644))

	_, err := Run(context.Background(), Request{
		Root:       root,
		Descriptor: descriptor.Select(descriptor.Options{}),
		Logger:     zerolog.Nop(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBuildFailed))
	assert.Contains(t, err.Error(), "frontend/src/index.js:1:")
}

func TestRun_RejectsInvalidDescriptor(t *testing.T) {
	d := descriptor.Select(descriptor.Options{})
	d.Output.Path = "../elsewhere"

	_, err := Run(context.Background(), Request{Root: t.TempDir(), Descriptor: d, Logger: zerolog.Nop()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, descriptor.ErrPathEscapesRoot))
}

func TestOptions_MapsDescriptor(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	prod, err := Options(descriptor.Select(descriptor.Options{Production: true}), root)
	require.NoError(t, err)

	assert.Equal(t, "[name].[hash]", prod.EntryNames)
	assert.Equal(t, "[name].[hash].chunk", prod.ChunkNames)
	assert.Equal(t, "static/media/[name].[hash]", prod.AssetNames)
	assert.True(t, prod.MinifyWhitespace)
	assert.NotZero(t, prod.Drop)
	assert.Equal(t, `"production"`, prod.Define["process.env.NODE_ENV"])
	assert.Equal(t, filepath.Join(root, "frontend", "src"), prod.Alias["@"])
	assert.Contains(t, prod.ResolveExtensions, ".jsx")
	assert.Contains(t, prod.LogOverride, "unsupported-source-map-comment")

	dev, err := Options(descriptor.Select(descriptor.Options{}), root)
	require.NoError(t, err)
	assert.False(t, dev.MinifyWhitespace)
	assert.Zero(t, dev.Drop)
	assert.Equal(t, `"development"`, dev.Define["process.env.NODE_ENV"])
}
