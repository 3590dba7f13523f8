// Package render turns generated report text into HTML for display and export.
//
// Only a constrained subset of markdown is recognised: ATX headings of level
// 1-3, **strong** and *em* spans, blank-line paragraphs and hard line breaks.
// Everything else passes through as (escaped) text.
package render

import (
	"html"
	"strings"
)

var headingMarkers = []struct {
	prefix string
	tag    string
}{
	{"### ", "h3"},
	{"## ", "h2"},
	{"# ", "h1"},
}

// Markup renders text to an HTML fragment. It never fails; unmatched markers
// are left as literal characters.
func Markup(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = html.EscapeString(text)
	text = headings(text)
	text = spans(text, "**", "strong")
	text = spans(text, "*", "em")
	text = strings.ReplaceAll(text, "\n\n", "</p><p>")
	text = strings.ReplaceAll(text, "\n", "<br>")
	return "<p>" + text + "</p>"
}

// headings rewrites each line that starts with a heading marker. The most
// specific marker is tried first and only one marker applies per line.
func headings(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		for _, m := range headingMarkers {
			if strings.HasPrefix(line, m.prefix) {
				lines[i] = "<" + m.tag + ">" + line[len(m.prefix):] + "</" + m.tag + ">"
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// spans wraps delim-enclosed runs in tag. Scanning is left to right: the
// leftmost opener pairs with the nearest closer on the same line, and the
// content may be empty. An opener without a closer is kept as text and the
// scan resumes at the next byte.
func spans(text, delim, tag string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	openTag, closeTag := "<"+tag+">", "</"+tag+">"
	i := 0
	for i < len(text) {
		if !strings.HasPrefix(text[i:], delim) {
			sb.WriteByte(text[i])
			i++
			continue
		}
		start := i + len(delim)
		end := closer(text[start:], delim)
		if end < 0 {
			sb.WriteByte(text[i])
			i++
			continue
		}
		sb.WriteString(openTag)
		sb.WriteString(text[start : start+end])
		sb.WriteString(closeTag)
		i = start + end + len(delim)
	}
	return sb.String()
}

// closer returns the offset of the first delim in s before a newline, or -1.
func closer(s, delim string) int {
	line := s
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		line = s[:nl]
	}
	return strings.Index(line, delim)
}
