package sourcemap

import (
	"strings"

	"github.com/rotisserie/eris"
)

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Values [256]int

func init() {
	for idx := range base64Values {
		base64Values[idx] = -1
	}
	for idx := 0; idx < len(base64Chars); idx++ {
		base64Values[base64Chars[idx]] = idx
	}
}

func writeVLQ(buf *strings.Builder, value int) {
	vlq := value << 1
	if value < 0 {
		vlq = (-value << 1) | 1
	}

	for {
		digit := vlq & 31
		vlq >>= 5
		if vlq > 0 {
			digit |= 32
		}
		buf.WriteByte(base64Chars[digit])

		if vlq == 0 {
			return
		}
	}
}

func readVLQ(input string, pos int) (int, int, error) {
	result := 0
	shift := 0

	for {
		if pos >= len(input) {
			return 0, pos, eris.New("unexpected end of mappings")
		}

		digit := base64Values[input[pos]]
		if digit < 0 {
			return 0, pos, eris.Errorf("invalid character %q in mappings", input[pos])
		}
		pos++

		result += (digit & 31) << shift
		shift += 5
		if digit&32 == 0 {
			break
		}
	}

	if result&1 == 1 {
		return -(result >> 1), pos, nil
	}
	return result >> 1, pos, nil
}

// EncodeMappings serializes segments into the "mappings" field format
func EncodeMappings(lines [][]Segment) string {
	buf := strings.Builder{}
	prevSource, prevLine, prevColumn, prevName := 0, 0, 0, 0

	for lineIdx, line := range lines {
		if lineIdx > 0 {
			buf.WriteByte(';')
		}

		prevGenColumn := 0
		for segIdx, seg := range line {
			if segIdx > 0 {
				buf.WriteByte(',')
			}

			writeVLQ(&buf, seg.GenColumn-prevGenColumn)
			prevGenColumn = seg.GenColumn

			if seg.Unmapped {
				continue
			}

			writeVLQ(&buf, seg.Source-prevSource)
			writeVLQ(&buf, seg.SourceLine-prevLine)
			writeVLQ(&buf, seg.SourceColumn-prevColumn)
			prevSource, prevLine, prevColumn = seg.Source, seg.SourceLine, seg.SourceColumn

			if seg.Name >= 0 {
				writeVLQ(&buf, seg.Name-prevName)
				prevName = seg.Name
			}
		}
	}

	return buf.String()
}

// DecodeMappings parses the "mappings" field
func DecodeMappings(mappings string) ([][]Segment, error) {
	lines := [][]Segment{{}}
	prevSource, prevLine, prevColumn, prevName := 0, 0, 0, 0
	prevGenColumn := 0

	pos := 0
	for pos < len(mappings) {
		switch mappings[pos] {
		case ';':
			lines = append(lines, []Segment{})
			prevGenColumn = 0
			pos++
			continue
		case ',':
			pos++
			continue
		}

		fields := make([]int, 0, 5)
		for pos < len(mappings) && mappings[pos] != ',' && mappings[pos] != ';' {
			var value int
			var err error
			value, pos, err = readVLQ(mappings, pos)
			if err != nil {
				return nil, err
			}
			fields = append(fields, value)
		}

		seg := Segment{Name: -1}
		switch len(fields) {
		case 1:
			seg.Unmapped = true
		case 4, 5:
			prevSource += fields[1]
			prevLine += fields[2]
			prevColumn += fields[3]
			seg.Source, seg.SourceLine, seg.SourceColumn = prevSource, prevLine, prevColumn

			if len(fields) == 5 {
				prevName += fields[4]
				seg.Name = prevName
			}
		default:
			return nil, eris.Errorf("invalid segment with %d fields in line %d", len(fields), len(lines))
		}

		prevGenColumn += fields[0]
		seg.GenColumn = prevGenColumn

		current := len(lines) - 1
		lines[current] = append(lines[current], seg)
	}

	return lines, nil
}
