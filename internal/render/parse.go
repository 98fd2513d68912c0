// Package render turns assistant replies into display blocks. It understands
// exactly the markup the system preamble asks the model for: level-3
// headings, dash bullets and **bold** spans. Everything else is plain text.
package render

import (
	"regexp"
	"strings"
	"unicode"
)

const headingMarker = "###"

var boldPattern = regexp.MustCompile(`\*\*(.*?)\*\*`)

// BlockKind classifies a body line.
type BlockKind int

const (
	BlockText BlockKind = iota
	BlockBullet
	BlockSpacer
)

// Span is a run of text, optionally emphasized.
type Span struct {
	Text string
	Bold bool
}

// Block is one rendered body line.
type Block struct {
	Kind  BlockKind
	Spans []Span
}

// Text joins the block's spans without markup.
func (b Block) Text() string {
	var sb strings.Builder
	for _, sp := range b.Spans {
		sb.WriteString(sp.Text)
	}
	return sb.String()
}

// Section is a heading (possibly empty) followed by its body lines.
type Section struct {
	Title  string
	Blocks []Block
}

// Document is a parsed reply, one section per heading.
type Document struct {
	Sections []Section
}

// Parse splits text into heading sections, then classifies each body line.
// Empty text yields nil.
func Parse(text string) *Document {
	if text == "" {
		return nil
	}
	segments := splitSegments(text)
	doc := &Document{Sections: make([]Section, 0, len(segments))}
	for _, seg := range segments {
		doc.Sections = append(doc.Sections, parseSection(seg))
	}
	return doc
}

// splitSegments cuts before every line that starts with the heading marker.
// The newline at a cut belongs to neither side.
func splitSegments(text string) [][]string {
	var (
		segments [][]string
		current  []string
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, headingMarker) && len(current) > 0 {
			segments = append(segments, current)
			current = nil
		}
		current = append(current, line)
	}
	return append(segments, current)
}

func parseSection(lines []string) Section {
	var sec Section
	body := lines
	if strings.HasPrefix(lines[0], headingMarker) {
		title := strings.TrimLeftFunc(strings.TrimPrefix(lines[0], headingMarker), unicode.IsSpace)
		// a bare marker is not a heading; the whole segment stays body
		if title != "" {
			sec.Title = title
			body = lines[1:]
		}
	}
	sec.Blocks = make([]Block, 0, len(body))
	for _, line := range body {
		sec.Blocks = append(sec.Blocks, classify(line))
	}
	return sec
}

func classify(line string) Block {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return Block{Kind: BlockSpacer}
	case strings.HasPrefix(trimmed, "-"):
		item := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
		return Block{Kind: BlockBullet, Spans: splitBold(item)}
	default:
		return Block{Kind: BlockText, Spans: splitBold(line)}
	}
}

// splitBold cuts paired ** delimiters out of s. Unpaired markers stay literal.
func splitBold(s string) []Span {
	matches := boldPattern.FindAllStringSubmatchIndex(s, -1)
	spans := make([]Span, 0, 2*len(matches)+1)
	pos := 0
	for _, m := range matches {
		if m[0] > pos {
			spans = append(spans, Span{Text: s[pos:m[0]]})
		}
		if m[3] > m[2] {
			spans = append(spans, Span{Text: s[m[2]:m[3]], Bold: true})
		}
		pos = m[1]
	}
	if pos < len(s) {
		spans = append(spans, Span{Text: s[pos:]})
	}
	return spans
}
