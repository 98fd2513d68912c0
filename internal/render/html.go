package render

import (
	"html/template"
	"strings"
)

const bulletGlyph = "•"

// HTML emits the document as escaped markup. <strong> is the only tag
// produced from model text.
func HTML(doc *Document) template.HTML {
	if doc == nil || len(doc.Sections) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(`<div class="md">`)
	for _, sec := range doc.Sections {
		sb.WriteString(`<div class="md-section">`)
		if sec.Title != "" {
			sb.WriteString(`<h3 class="md-heading">`)
			sb.WriteString(template.HTMLEscapeString(sec.Title))
			sb.WriteString(`</h3>`)
		}
		sb.WriteString(`<div class="md-body">`)
		for _, b := range sec.Blocks {
			writeBlock(&sb, b)
		}
		sb.WriteString(`</div></div>`)
	}
	sb.WriteString(`</div>`)
	return template.HTML(sb.String())
}

// Render is Parse followed by HTML.
func Render(text string) template.HTML {
	return HTML(Parse(text))
}

func writeBlock(sb *strings.Builder, b Block) {
	switch b.Kind {
	case BlockSpacer:
		sb.WriteString(`<div class="md-spacer"></div>`)
	case BlockBullet:
		sb.WriteString(`<div class="md-bullet">`)
		sb.WriteString(bulletGlyph)
		sb.WriteString(" ")
		writeSpans(sb, b.Spans)
		sb.WriteString(`</div>`)
	default:
		sb.WriteString(`<div class="md-text">`)
		writeSpans(sb, b.Spans)
		sb.WriteString(`</div>`)
	}
}

func writeSpans(sb *strings.Builder, spans []Span) {
	for _, sp := range spans {
		if sp.Bold {
			sb.WriteString("<strong>")
			sb.WriteString(template.HTMLEscapeString(sp.Text))
			sb.WriteString("</strong>")
			continue
		}
		sb.WriteString(template.HTMLEscapeString(sp.Text))
	}
}
