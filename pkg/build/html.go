package build

import (
	"fmt"
	"html"
	"path"
	"sort"
	"strings"

	"github.com/dkoosis/frontkit/pkg/chunks"
)

// DefaultTemplate is used when the project has no page template.
const DefaultTemplate = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
<div id="root"></div>
</body>
</html>
`

// Assets are the URLs a page needs for one entry point.
type Assets struct {
	Scripts  []string
	Preloads []string
	Styles   []string
}

// EntryAssets resolves the emitted files of entry from the metafile. entry
// and outDir are slash-separated paths relative to the esbuild working
// directory; URLs are prefixed with publicPath.
func EntryAssets(meta *chunks.Metafile, entry, outDir, publicPath string) (Assets, error) {
	entry = strings.TrimPrefix(entry, "./")
	prefix := strings.TrimSuffix(outDir, "/") + "/"
	url := func(p string) string {
		return publicPath + strings.TrimPrefix(p, prefix)
	}

	for key, o := range meta.Outputs {
		if o.EntryPoint != entry || path.Ext(key) != ".js" {
			continue
		}

		var a Assets
		a.Scripts = append(a.Scripts, url(key))
		if o.CSSBundle != "" {
			a.Styles = append(a.Styles, url(o.CSSBundle))
		}

		visited := map[string]bool{key: true}
		var walk func(out chunks.MetaOutput)
		walk = func(out chunks.MetaOutput) {
			for _, imp := range out.Imports {
				if imp.External || imp.Kind != "import-statement" || visited[imp.Path] {
					continue
				}
				visited[imp.Path] = true
				a.Preloads = append(a.Preloads, url(imp.Path))
				if next, ok := meta.Outputs[imp.Path]; ok {
					walk(next)
				}
			}
		}
		walk(o)
		sort.Strings(a.Preloads)
		return a, nil
	}
	return Assets{}, fmt.Errorf("entry point %s not found in metafile", entry)
}

// RenderHTML injects stylesheet and preload links before </head> and module
// scripts plus any inline scripts before </body>. Missing tags append the
// markup at the end of the document.
func RenderHTML(template string, a Assets, inline ...string) string {
	var head, body strings.Builder
	for _, s := range a.Styles {
		fmt.Fprintf(&head, "<link rel=\"stylesheet\" href=\"%s\">\n", html.EscapeString(s))
	}
	for _, p := range a.Preloads {
		fmt.Fprintf(&head, "<link rel=\"modulepreload\" href=\"%s\">\n", html.EscapeString(p))
	}
	for _, s := range a.Scripts {
		fmt.Fprintf(&body, "<script type=\"module\" src=\"%s\"></script>\n", html.EscapeString(s))
	}
	for _, js := range inline {
		fmt.Fprintf(&body, "<script>%s</script>\n", js)
	}

	out := insertBefore(template, "</head>", head.String())
	return insertBefore(out, "</body>", body.String())
}

func insertBefore(doc, tag, markup string) string {
	if markup == "" {
		return doc
	}
	i := strings.LastIndex(strings.ToLower(doc), tag)
	if i < 0 {
		return doc + markup
	}
	return doc[:i] + markup + doc[i:]
}
