// Package descriptor defines the build descriptor of the frontend and the
// pure selector that derives the production or development variant from
// explicit options.
package descriptor

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dkoosis/frontkit/pkg/chunks"
)

// Mode is the build variant.
type Mode string

// Modes.
const (
	Production  Mode = "production"
	Development Mode = "development"
)

// Descriptor is the complete build configuration.
type Descriptor struct {
	Mode         Mode         `json:"mode" yaml:"mode"`
	Entry        string       `json:"entry" yaml:"entry"`
	Output       Output       `json:"output" yaml:"output"`
	Rules        []LoaderRule `json:"rules" yaml:"rules"`
	Resolve      Resolve      `json:"resolve" yaml:"resolve"`
	Optimization Optimization `json:"optimization" yaml:"optimization"`
	Plugins      PluginList   `json:"plugins" yaml:"plugins"`
	DevServer    DevServer    `json:"devServer" yaml:"devServer"`
	Performance  Performance  `json:"performance" yaml:"performance"`
	// SourceMaps enables linked source maps.
	SourceMaps bool `json:"sourceMaps" yaml:"sourceMaps"`
}

// Output controls where and under which names files are emitted.
type Output struct {
	Path          string `json:"path" yaml:"path"`
	Filename      string `json:"filename" yaml:"filename"`
	ChunkFilename string `json:"chunkFilename" yaml:"chunkFilename"`
	AssetFilename string `json:"assetFilename" yaml:"assetFilename"`
	PublicPath    string `json:"publicPath" yaml:"publicPath"`
	Clean         bool   `json:"clean" yaml:"clean"`
}

// Resolve controls module resolution.
type Resolve struct {
	Extensions []string          `json:"extensions" yaml:"extensions"`
	Alias      map[string]string `json:"alias" yaml:"alias"`
}

// LoaderRule is a per-file-type transformation pipeline.
type LoaderRule struct {
	Test    string   `json:"test" yaml:"test"`
	Exclude string   `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Use     []Loader `json:"use,omitempty" yaml:"use,omitempty"`
	// Type names a built-in module type such as "asset/resource".
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Loader is one step of a loader chain.
type Loader struct {
	Loader  string         `json:"loader" yaml:"loader"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// Optimization holds minification and chunk splitting.
type Optimization struct {
	Minimize     bool          `json:"minimize" yaml:"minimize"`
	DropConsole  bool          `json:"dropConsole" yaml:"dropConsole"`
	SplitChunks  chunks.Policy `json:"splitChunks" yaml:"splitChunks"`
	RuntimeChunk string        `json:"runtimeChunk" yaml:"runtimeChunk"`
}

// DevServer configures the development server.
type DevServer struct {
	HistoryAPIFallback bool   `json:"historyApiFallback" yaml:"historyApiFallback"`
	Port               int    `json:"port" yaml:"port"`
	StaticDir          string `json:"static" yaml:"static"`
	Hot                bool   `json:"hot" yaml:"hot"`
}

// Hint levels for performance budgets.
const (
	HintsOff     = ""
	HintsWarning = "warning"
	HintsError   = "error"
)

// Performance sets size budgets for emitted files.
type Performance struct {
	Hints             string `json:"hints" yaml:"hints"`
	MaxEntrypointSize int64  `json:"maxEntrypointSize" yaml:"maxEntrypointSize"`
	MaxAssetSize      int64  `json:"maxAssetSize" yaml:"maxAssetSize"`
}

// IsProduction reports whether the descriptor is the production variant.
func (d Descriptor) IsProduction() bool { return d.Mode == Production }

// Path resolves a descriptor path against the project root.
func (d Descriptor) Path(root, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(rel, "./")))
}

// RuleFor returns the first loader rule that applies to the given
// slash-separated file path.
func (d Descriptor) RuleFor(file string) (LoaderRule, bool) {
	for _, r := range d.Rules {
		if r.Applies(file) {
			return r, true
		}
	}
	return LoaderRule{}, false
}

// Applies reports whether the rule's test matches and its exclude does not.
// Invalid patterns never apply; Validate reports them.
func (r LoaderRule) Applies(file string) bool {
	test, err := regexp.Compile(r.Test)
	if err != nil || !test.MatchString(file) {
		return false
	}
	if r.Exclude == "" {
		return true
	}
	exclude, err := regexp.Compile(r.Exclude)
	if err != nil {
		return false
	}
	return !exclude.MatchString(file)
}

// Uses reports whether the rule's chain contains the named loader.
func (r LoaderRule) Uses(loader string) bool {
	for _, l := range r.Use {
		if l.Loader == loader {
			return true
		}
	}
	return false
}
