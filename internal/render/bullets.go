package render

import (
	"html/template"
	"strings"
)

// Bullets splits text on '+' and newlines and returns the trimmed,
// non-empty segments. Text with fewer than two segments is not a list and
// yields nil.
func Bullets(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == '+' || r == '\n' })
	items := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			items = append(items, f)
		}
	}
	if len(items) < 2 {
		return nil
	}
	return items
}

// BulletHTML renders text as an escaped <ul> when it holds several segments
// and as escaped plain text otherwise.
func BulletHTML(text string) template.HTML {
	items := Bullets(text)
	if items == nil {
		return template.HTML(template.HTMLEscapeString(strings.TrimSpace(text)))
	}
	var b strings.Builder
	b.WriteString("<ul>")
	for _, item := range items {
		b.WriteString("<li>")
		b.WriteString(template.HTMLEscapeString(item))
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	return template.HTML(b.String())
}
