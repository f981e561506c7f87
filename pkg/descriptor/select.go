package descriptor

import (
	"cmp"
	"strconv"
	"strings"

	"github.com/dkoosis/frontkit/pkg/chunks"
)

// DefaultPort is the dev server port when none is given.
const DefaultPort = 3000

// Layout names the project directories. Empty fields take the defaults of
// the application layout.
type Layout struct {
	Entry     string `koanf:"entry"`
	SrcDir    string `koanf:"src_dir"`
	OutputDir string `koanf:"output_dir"`
	PublicDir string `koanf:"public_dir"`
}

func (l Layout) withDefaults() Layout {
	return Layout{
		Entry:     cmp.Or(l.Entry, "frontend/src/index.js"),
		SrcDir:    cmp.Or(l.SrcDir, "frontend/src"),
		OutputDir: cmp.Or(l.OutputDir, "frontend/build"),
		PublicDir: cmp.Or(l.PublicDir, "frontend/public"),
	}
}

// Options are the inputs of Select.
type Options struct {
	Production bool
	Analyze    bool
	Port       int
	Layout     Layout
}

// OptionsFromEnv reads NODE_ENV (or MODE), ANALYZE and PORT through lookup.
// An unparseable port falls back to DefaultPort.
func OptionsFromEnv(lookup func(string) (string, bool)) Options {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	opts := Options{
		Production: cmp.Or(get("NODE_ENV"), get("MODE")) == string(Production),
		Analyze:    get("ANALYZE") == "true",
		Port:       DefaultPort,
	}
	if port, err := strconv.Atoi(get("PORT")); err == nil && port > 0 {
		opts.Port = port
	}
	return opts
}

// Select derives the build descriptor for opts. It performs no I/O.
func Select(opts Options) Descriptor {
	prod := opts.Production
	layout := opts.Layout.withDefaults()

	d := Descriptor{
		Mode:  Development,
		Entry: layout.Entry,
		Output: Output{
			Path:          layout.OutputDir,
			Filename:      "[name].[contenthash].js",
			ChunkFilename: "[name].[contenthash].chunk.js",
			AssetFilename: "static/media/[name].[contenthash:8].[ext]",
			PublicPath:    "/",
			Clean:         true,
		},
		Rules: defaultRules(),
		Resolve: Resolve{
			Extensions: []string{".js", ".jsx", ".ts", ".tsx"},
			Alias:      map[string]string{"@": layout.SrcDir},
		},
		Optimization: Optimization{
			Minimize:     prod,
			DropConsole:  prod,
			SplitChunks:  chunks.DefaultPolicy(),
			RuntimeChunk: "single",
		},
		Plugins: PluginList{
			HTMLPlugin{Template: layout.PublicDir + "/index.html", Filename: "index.html"},
			CopyPlugin{Patterns: []CopyPattern{{
				From:   layout.PublicDir,
				To:     ".",
				Ignore: []string{"**/index.html"},
			}}},
		},
		DevServer: DevServer{
			HistoryAPIFallback: true,
			Port:               cmp.Or(opts.Port, DefaultPort),
			StaticDir:          layout.PublicDir,
			Hot:                true,
		},
		Performance: Performance{
			Hints:             HintsOff,
			MaxEntrypointSize: 512000,
			MaxAssetSize:      512000,
		},
		SourceMaps: !prod,
	}

	if !prod {
		return d
	}

	d.Mode = Production
	d.Performance.Hints = HintsWarning
	d.Plugins = append(d.Plugins,
		CompressionPlugin{
			Algorithm: "gzip",
			Test:      `\.(js|css|html|svg)$`,
			Threshold: 10240,
			MinRatio:  0.8,
		},
		ManifestPlugin{
			SwSrc:   layout.SrcDir + "/service-worker.js",
			SwDest:  "service-worker.js",
			Exclude: []string{`\.map$`, `asset-manifest\.json$`},
		},
	)
	if opts.Analyze {
		d.Plugins = append(d.Plugins, AnalyzerPlugin{
			ReportFile: "bundle-report.txt",
			StatsFile:  "bundle-stats.json",
		})
	}
	return d
}

func defaultRules() []LoaderRule {
	return []LoaderRule{
		{
			Test: `node_modules[\\/]react-datepicker[\\/]dist[\\/]index\.es\.js$`,
			Use:  []Loader{{Loader: "source-map-loader"}},
		},
		{
			Test:    `\.(js|jsx)$`,
			Exclude: `node_modules`,
			Use: []Loader{{
				Loader: "babel-loader",
				Options: map[string]any{
					"presets": []string{"@babel/preset-env", "@babel/preset-react"},
					"plugins": []string{"@babel/plugin-transform-runtime"},
				},
			}},
		},
		{
			Test: `\.css$`,
			Use: []Loader{
				{Loader: "style-loader"},
				{Loader: "css-loader"},
				{Loader: "postcss-loader"},
			},
		},
		{
			Test: `\.(png|svg|jpg|jpeg|gif)$`,
			Type: "asset/resource",
		},
	}
}
