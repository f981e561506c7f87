package descriptor

import "encoding/json"

// Plugin names.
const (
	PluginHTML        = "html"
	PluginCopy        = "copy"
	PluginCompression = "compression"
	PluginManifest    = "inject-manifest"
	PluginAnalyzer    = "bundle-analyzer"
)

// Plugin is a post-build step in the descriptor.
type Plugin interface {
	PluginName() string
}

// HTMLPlugin renders the page template with the emitted scripts and styles.
type HTMLPlugin struct {
	Template string `json:"template" yaml:"template"`
	Filename string `json:"filename" yaml:"filename"`
}

// CopyPattern copies a directory into the output.
type CopyPattern struct {
	From   string   `json:"from" yaml:"from"`
	To     string   `json:"to" yaml:"to"`
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// CopyPlugin copies static files.
type CopyPlugin struct {
	Patterns []CopyPattern `json:"patterns" yaml:"patterns"`
}

// CompressionPlugin writes precompressed siblings of emitted files.
type CompressionPlugin struct {
	Algorithm string  `json:"algorithm" yaml:"algorithm"`
	Test      string  `json:"test" yaml:"test"`
	Threshold int64   `json:"threshold" yaml:"threshold"`
	MinRatio  float64 `json:"minRatio" yaml:"minRatio"`
}

// ManifestPlugin injects the precache manifest into the service worker.
type ManifestPlugin struct {
	SwSrc   string   `json:"swSrc" yaml:"swSrc"`
	SwDest  string   `json:"swDest" yaml:"swDest"`
	Exclude []string `json:"exclude" yaml:"exclude"`
}

// AnalyzerPlugin writes a bundle composition report.
type AnalyzerPlugin struct {
	ReportFile string `json:"reportFile" yaml:"reportFile"`
	StatsFile  string `json:"statsFile" yaml:"statsFile"`
}

func (HTMLPlugin) PluginName() string        { return PluginHTML }
func (CopyPlugin) PluginName() string        { return PluginCopy }
func (CompressionPlugin) PluginName() string { return PluginCompression }
func (ManifestPlugin) PluginName() string    { return PluginManifest }
func (AnalyzerPlugin) PluginName() string    { return PluginAnalyzer }

// PluginList is the ordered plugin list of a descriptor.
type PluginList []Plugin

type namedPlugin struct {
	Name    string `json:"name" yaml:"name"`
	Options Plugin `json:"options" yaml:"options"`
}

func (l PluginList) named() []namedPlugin {
	out := make([]namedPlugin, 0, len(l))
	for _, p := range l {
		out = append(out, namedPlugin{Name: p.PluginName(), Options: p})
	}
	return out
}

// MarshalJSON tags every plugin with its name.
func (l PluginList) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.named())
}

// MarshalYAML tags every plugin with its name.
func (l PluginList) MarshalYAML() (any, error) {
	return l.named(), nil
}

// Names returns the plugin names in order.
func (l PluginList) Names() []string {
	out := make([]string, 0, len(l))
	for _, p := range l {
		out = append(out, p.PluginName())
	}
	return out
}

// Has reports whether a plugin with the given name is present.
func (l PluginList) Has(name string) bool {
	for _, p := range l {
		if p.PluginName() == name {
			return true
		}
	}
	return false
}
