// Package hashname expands output file name templates such as
// "[name].[contenthash].js" and maps them onto esbuild naming patterns.
package hashname

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultHashLength is the number of hex characters used for [contenthash]
// when the template does not specify a length.
const DefaultHashLength = 16

// ErrMissingContentHash is returned when a template that names emitted files
// carries no [contenthash] token.
var ErrMissingContentHash = errors.New("template has no [contenthash] token")

var tokenPattern = regexp.MustCompile(`\[([a-z]+)(?::(\d+))?\]`)

// looksHashed matches names whose stem carries a hash segment, like
// "main.3f2a9c1d.js" or "logo-AB12CD34.png".
var looksHashed = regexp.MustCompile(`[.-]([0-9a-zA-Z]{8,})(?:\.chunk)?\.[a-z0-9]+$`)

type segment struct {
	literal string
	token   string
	length  int
}

// Template is a parsed file name template.
type Template struct {
	raw      string
	segments []segment
}

// Vars are the substitutions available to a template.
type Vars struct {
	Name string
	ID   string
	Ext  string
}

// Parse validates a template. Unknown tokens are rejected.
func Parse(raw string) (Template, error) {
	if strings.TrimSpace(raw) == "" {
		return Template{}, errors.New("empty name template")
	}

	t := Template{raw: raw}
	last := 0
	for _, m := range tokenPattern.FindAllStringSubmatchIndex(raw, -1) {
		if m[0] > last {
			t.segments = append(t.segments, segment{literal: raw[last:m[0]]})
		}
		token := raw[m[2]:m[3]]
		seg := segment{token: token}
		switch token {
		case "name", "id", "ext":
			if m[4] >= 0 {
				return Template{}, fmt.Errorf("token [%s] does not take a length", token)
			}
		case "contenthash":
			seg.length = DefaultHashLength
			if m[4] >= 0 {
				n, err := strconv.Atoi(raw[m[4]:m[5]])
				if err != nil || n <= 0 {
					return Template{}, fmt.Errorf("invalid hash length in %q", raw[m[0]:m[1]])
				}
				seg.length = min(n, DefaultHashLength)
			}
		default:
			return Template{}, fmt.Errorf("unknown token [%s] in %q", token, raw)
		}
		t.segments = append(t.segments, seg)
		last = m[1]
	}
	if last < len(raw) {
		t.segments = append(t.segments, segment{literal: raw[last:]})
	}

	for _, s := range t.segments {
		if strings.ContainsAny(s.literal, "[]") {
			return Template{}, fmt.Errorf("unbalanced brackets in %q", raw)
		}
	}
	return t, nil
}

// MustParse is like Parse but panics on error. Intended for package-level
// defaults.
func MustParse(raw string) Template {
	t, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// RequireContentHash parses raw and fails unless it carries [contenthash].
func RequireContentHash(raw string) error {
	t, err := Parse(raw)
	if err != nil {
		return err
	}
	if !t.HasContentHash() {
		return fmt.Errorf("%q: %w", raw, ErrMissingContentHash)
	}
	return nil
}

// String returns the template source.
func (t Template) String() string { return t.raw }

// HasContentHash reports whether the template embeds a content hash.
func (t Template) HasContentHash() bool {
	for _, s := range t.segments {
		if s.token == "contenthash" {
			return true
		}
	}
	return false
}

// Expand renders the template for a file with the given content.
func (t Template) Expand(v Vars, content []byte) string {
	var b strings.Builder
	for _, s := range t.segments {
		switch s.token {
		case "":
			b.WriteString(s.literal)
		case "name":
			b.WriteString(v.Name)
		case "id":
			b.WriteString(cmp.Or(v.ID, v.Name))
		case "ext":
			b.WriteString(strings.TrimPrefix(v.Ext, "."))
		case "contenthash":
			b.WriteString(ContentHash(content, s.length))
		}
	}
	return b.String()
}

// Esbuild converts the template to an esbuild naming pattern. esbuild appends
// the output extension itself, so a trailing extension or [ext] is dropped;
// esbuild has no [id] and fixes its own hash length.
func (t Template) Esbuild() string {
	var b strings.Builder
	for _, s := range t.segments {
		switch s.token {
		case "":
			b.WriteString(s.literal)
		case "name", "id":
			b.WriteString("[name]")
		case "ext":
			b.WriteString("[ext]")
		case "contenthash":
			b.WriteString("[hash]")
		}
	}
	out := b.String()
	for _, ext := range []string{".[ext]", ".js", ".css", ".mjs"} {
		if strings.HasSuffix(out, ext) {
			return strings.TrimSuffix(out, ext)
		}
	}
	return out
}

// ContentHash returns the first n hex characters of the content digest.
func ContentHash(content []byte, n int) string {
	sum := fmt.Sprintf("%016x", xxhash.Sum64(content))
	if n <= 0 || n > len(sum) {
		return sum
	}
	return sum[:n]
}

// LooksHashed reports whether a file name already carries a hash segment, so
// cache-busting revisions are unnecessary.
func LooksHashed(name string) bool {
	m := looksHashed.FindStringSubmatch(name)
	if m == nil {
		return false
	}
	// Plain words like "component" are not hashes; esbuild hashes are upper
	// case and may lack digits.
	seg := m[1]
	return strings.ContainsAny(seg, "0123456789") || strings.ToUpper(seg) == seg
}
