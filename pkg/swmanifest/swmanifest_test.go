package swmanifest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const swSource = `import { precacheAndRoute } from './precache.js';
precacheAndRoute(self.__WB_MANIFEST);
`

func setup(t *testing.T) (src, out string) {
	t.Helper()

	root := t.TempDir()
	src = filepath.Join(root, "service-worker.js")
	require.NoError(t, os.WriteFile(src, []byte(swSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "precache.js"),
		[]byte("export function precacheAndRoute(list) { self.list = list; }\n"), 0o644))

	out = filepath.Join(root, "build")
	files := map[string]string{
		"index.html":                     "<html></html>",
		"main.3f9a1c2b7d.js":             "console.log(1)",
		"main.3f9a1c2b7d.js.map":         "{}",
		"main.3f9a1c2b7d.js.gz":          "gz",
		"vendors.a1b2c3d4e5.chunk.js":    "1",
		"asset-manifest.json":            "{}",
		"robots.txt":                     "User-agent: *",
		"static/media/logo.9f8e7d6c.png": "png",
		"service-worker.js":              "stale",
	}
	for name, body := range files {
		path := filepath.Join(out, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return src, out
}

func TestInject_WritesManifest(t *testing.T) {
	t.Parallel()

	src, out := setup(t)
	res, err := Inject(Options{
		Src:       src,
		Dest:      "service-worker.js",
		OutDir:    out,
		Exclude:   []string{`^robots\.txt$`},
		URLPrefix: "/",
	})
	require.NoError(t, err)

	urls := map[string]*string{}
	for _, e := range res.Entries {
		urls[e.URL] = e.Revision
	}
	assert.Len(t, urls, 4)
	assert.Contains(t, urls, "/index.html")
	assert.Nil(t, urls["/main.3f9a1c2b7d.js"], "hashed names need no revision")
	assert.Nil(t, urls["/vendors.a1b2c3d4e5.chunk.js"])
	assert.Nil(t, urls["/static/media/logo.9f8e7d6c.png"])
	require.NotNil(t, urls["/index.html"])
	assert.Len(t, *urls["/index.html"], 16)

	data, err := os.ReadFile(filepath.Join(out, "service-worker.js"))
	require.NoError(t, err)
	body := string(data)
	assert.NotContains(t, body, InjectionPoint)

	start := strings.Index(body, "precacheAndRoute(") + len("precacheAndRoute(")
	end := strings.LastIndex(body, ");")
	var decoded []Entry
	require.NoError(t, json.Unmarshal([]byte(body[start:end]), &decoded))
	assert.Equal(t, res.Entries, decoded)
}

func TestInject_RevisionTracksContent(t *testing.T) {
	t.Parallel()

	src, out := setup(t)
	opts := Options{Src: src, Dest: "service-worker.js", OutDir: out}

	first, err := Inject(opts)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(out, "index.html"), []byte("<html>v2</html>"), 0o644))
	second, err := Inject(opts)
	require.NoError(t, err)

	rev := func(r *Result) string {
		for _, e := range r.Entries {
			if e.URL == "index.html" {
				return *e.Revision
			}
		}
		return ""
	}
	assert.NotEqual(t, rev(first), rev(second))
}

func TestInject_Bundles(t *testing.T) {
	t.Parallel()

	src, out := setup(t)
	_, err := Inject(Options{Src: src, Dest: "sw.js", OutDir: out, Bundle: true})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "sw.js"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "import ")
	assert.Contains(t, string(data), `"url":"index.html"`)
}

func TestInject_RequiresInjectionPoint(t *testing.T) {
	t.Parallel()

	src, out := setup(t)
	require.NoError(t, os.WriteFile(src, []byte("self.addEventListener('fetch', () => {});"), 0o644))

	_, err := Inject(Options{Src: src, Dest: "service-worker.js", OutDir: out})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoInjectionPoint))
}
