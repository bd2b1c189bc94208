package sourcemap

import "strings"

// Builder assembles the map for output produced by appending chunks of text
type Builder struct {
	m         *Map
	line      int
	column    int
	sourceIdx map[string]int
	nameIdx   map[string]int
}

// NewBuilder returns an empty builder for the given output file name
func NewBuilder(file string) *Builder {
	return &Builder{
		m: &Map{
			Version: 3,
			File:    file,
			Sources: []string{},
			Names:   []string{},
			Lines:   [][]Segment{{}},
		},
		sourceIdx: make(map[string]int),
		nameIdx:   make(map[string]int),
	}
}

func (b *Builder) addSource(name, content string) int {
	idx, ok := b.sourceIdx[name]
	if ok {
		return idx
	}

	idx = len(b.m.Sources)
	b.sourceIdx[name] = idx
	b.m.Sources = append(b.m.Sources, name)
	b.m.SourcesContent = append(b.m.SourcesContent, content)
	return idx
}

func (b *Builder) addName(name string) int {
	idx, ok := b.nameIdx[name]
	if ok {
		return idx
	}

	idx = len(b.m.Names)
	b.nameIdx[name] = idx
	b.m.Names = append(b.m.Names, name)
	return idx
}

// Append records content at the current position. Segments from m (which may be nil for
// unmapped content) are shifted to the current position.
func (b *Builder) Append(content string, m *Map) {
	if m != nil {
		sources := make([]int, len(m.Sources))
		for idx, name := range m.Sources {
			sourceContent := ""
			if idx < len(m.SourcesContent) {
				sourceContent = m.SourcesContent[idx]
			}
			sources[idx] = b.addSource(name, sourceContent)
		}

		names := make([]int, len(m.Names))
		for idx, name := range m.Names {
			names[idx] = b.addName(name)
		}

		for lineIdx, line := range m.Lines {
			target := b.line + lineIdx
			for len(b.m.Lines) <= target {
				b.m.Lines = append(b.m.Lines, []Segment{})
			}

			offset := 0
			if lineIdx == 0 {
				offset = b.column
			}

			for _, seg := range line {
				seg.GenColumn += offset
				if !seg.Unmapped && seg.Source < len(sources) {
					seg.Source = sources[seg.Source]
				}
				if seg.Name >= 0 && seg.Name < len(names) {
					seg.Name = names[seg.Name]
				}
				b.m.Lines[target] = append(b.m.Lines[target], seg)
			}
		}
	}

	b.advance(content)
}

// AppendSegment records content that maps to a single source position
func (b *Builder) AppendSegment(content, source, sourceContent string, sourceLine int) {
	idx := b.addSource(source, sourceContent)
	b.m.Lines[b.line] = append(b.m.Lines[b.line], Segment{
		GenColumn:  b.column,
		Source:     idx,
		SourceLine: sourceLine,
		Name:       -1,
	})
	b.advance(content)
}

func (b *Builder) advance(content string) {
	newlines := strings.Count(content, "\n")
	if newlines == 0 {
		b.column += len(content)
		return
	}

	b.line += newlines
	b.column = len(content) - strings.LastIndexByte(content, '\n') - 1
	for len(b.m.Lines) <= b.line {
		b.m.Lines = append(b.m.Lines, []Segment{})
	}
}

// Map returns the assembled map
func (b *Builder) Map() *Map {
	return b.m
}
