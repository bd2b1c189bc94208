// Package sourcemap implements the parts of the Source Map v3 format needed to carry maps
// through concatenation and minification.
package sourcemap

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Segment maps a generated column to a position in one of the map's sources
type Segment struct {
	GenColumn    int
	Source       int
	SourceLine   int
	SourceColumn int
	// Name is an index into Names or -1
	Name int
	// Unmapped segments only carry GenColumn
	Unmapped bool
}

// Map is a decoded source map. Lines holds one segment list per generated line.
type Map struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`

	Lines [][]Segment `json:"-"`
}

// Identity returns a map that maps every line of content to itself
func Identity(source, content string) *Map {
	lineCount := strings.Count(content, "\n") + 1
	lines := make([][]Segment, lineCount)
	for idx := range lines {
		lines[idx] = []Segment{{Source: 0, SourceLine: idx, Name: -1}}
	}

	return &Map{
		Version:        3,
		Sources:        []string{source},
		SourcesContent: []string{content},
		Names:          []string{},
		Lines:          lines,
	}
}

// Parse decodes a JSON source map
func Parse(data []byte) (*Map, error) {
	m := new(Map)
	err := json.Unmarshal(data, m)
	if err != nil {
		return nil, eris.Wrap(err, "failed to decode source map")
	}

	if m.Version != 3 {
		return nil, eris.Errorf("unsupported source map version %d", m.Version)
	}

	m.Lines, err = DecodeMappings(m.Mappings)
	if err != nil {
		return nil, err
	}

	if m.Names == nil {
		m.Names = []string{}
	}
	return m, nil
}

// Bytes encodes the map as JSON
func (m *Map) Bytes() ([]byte, error) {
	m.Mappings = EncodeMappings(m.Lines)
	if m.Sources == nil {
		m.Sources = []string{}
	}
	if m.Names == nil {
		m.Names = []string{}
	}

	return json.Marshal(m)
}

// Source returns the segment responsible for the given generated position (both 0-based)
func (m *Map) Source(line, column int) (Segment, bool) {
	if line < 0 || line >= len(m.Lines) {
		return Segment{}, false
	}

	found := false
	var result Segment
	for _, seg := range m.Lines[line] {
		if seg.GenColumn > column {
			break
		}
		result = seg
		found = !seg.Unmapped
	}
	return result, found
}

// SourceName returns the name of source idx including the source root
func (m *Map) SourceName(idx int) string {
	if idx < 0 || idx >= len(m.Sources) {
		return ""
	}
	return m.SourceRoot + m.Sources[idx]
}

// Clone returns a deep copy
func (m *Map) Clone() *Map {
	c := *m
	c.Sources = append([]string(nil), m.Sources...)
	c.SourcesContent = append([]string(nil), m.SourcesContent...)
	c.Names = append([]string(nil), m.Names...)
	c.Lines = make([][]Segment, len(m.Lines))
	for idx, line := range m.Lines {
		c.Lines[idx] = append([]Segment(nil), line...)
	}
	return &c
}
