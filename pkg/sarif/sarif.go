// Package sarif provides types and helpers for emitting SARIF output.
package sarif

import (
	"encoding/json"
	"io"
	"path/filepath"
)

// Version is the SARIF schema version.
const Version = "2.1.0"

// Schema is the canonical location of the SARIF 2.1.0 schema.
const Schema = "https://json.schemastore.org/sarif-2.1.0.json"

// Result levels.
const (
	LevelError   = "error"
	LevelWarning = "warning"
	LevelNote    = "note"
)

// Log is the top-level SARIF structure.
type Log struct {
	Version string `json:"version"`
	Schema  string `json:"$schema,omitempty"`
	Runs    []Run  `json:"runs"`
}

// Run represents a single analysis run.
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results,omitempty"`
}

// Tool describes the analysis tool.
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver describes the tool's identity.
type Driver struct {
	Name           string `json:"name"`
	Version        string `json:"version,omitempty"`
	InformationURI string `json:"informationUri,omitempty"`
}

// Result is a single finding.
type Result struct {
	RuleID    string     `json:"ruleId"`
	Level     string     `json:"level,omitempty"` // error, warning, note
	Message   Message    `json:"message"`
	Locations []Location `json:"locations,omitempty"`
}

// Message contains the finding's text.
type Message struct {
	Text string `json:"text"`
}

// Location describes where a result was found.
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation describes a file location.
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           *Region          `json:"region,omitempty"`
}

// ArtifactLocation describes a file path.
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region describes a span within a file.
type Region struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
	EndLine     int `json:"endLine,omitempty"`
	EndColumn   int `json:"endColumn,omitempty"`
}

// NewLog creates a new SARIF log with default values.
func NewLog() *Log {
	return &Log{
		Version: Version,
		Schema:  Schema,
		Runs:    []Run{},
	}
}

// NewRun creates a run for the named frontkit check.
func NewRun(check string) Run {
	return Run{Tool: Tool{Driver: Driver{Name: "frontkit-" + check}}}
}

// FileResult builds a result located at the given file path.
func FileResult(ruleID, level, text, path string) Result {
	return Result{
		RuleID:  ruleID,
		Level:   level,
		Message: Message{Text: text},
		Locations: []Location{{
			PhysicalLocation: PhysicalLocation{ArtifactLocation: ArtifactLocation{URI: filepath.ToSlash(path)}},
		}},
	}
}

// Merge combines the runs of several logs into one log. Nil logs are skipped.
func Merge(logs ...*Log) *Log {
	out := NewLog()
	for _, l := range logs {
		if l == nil {
			continue
		}
		out.Runs = append(out.Runs, l.Runs...)
	}
	return out
}

// Count returns the number of results at the given level across all runs.
func (l *Log) Count(level string) int {
	n := 0
	for _, run := range l.Runs {
		for _, r := range run.Results {
			if r.Level == level {
				n++
			}
		}
	}
	return n
}

// HasErrors reports whether any run contains an error-level result.
func (l *Log) HasErrors() bool {
	return l.Count(LevelError) > 0
}

// Encoder wraps a JSON encoder with SARIF-friendly defaults.
type Encoder struct {
	enc *json.Encoder
}

// NewEncoder creates an indented JSON encoder for SARIF logs.
func NewEncoder(w io.Writer) *Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return &Encoder{enc: enc}
}

// Encode writes the SARIF log.
func (e *Encoder) Encode(log *Log) error {
	return e.enc.Encode(log)
}
