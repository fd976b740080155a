// Package templaterender turns a template's (text, links) pair into a display
// tree of plain text and anchor segments. Text is never interpreted as markup:
// only directives that match a known link literally become anchors.
package templaterender

import (
	"html/template"
	"net/url"
	"strings"

	"github.com/dalemusser/stratanotify/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stratanotify/internal/app/system/linkdirective"
	"github.com/dalemusser/stratanotify/internal/domain/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Segment is one run of the display tree. Anchor segments carry an Href; text
// segments leave it empty.
type Segment struct {
	Text   string `json:"text"`
	Href   string `json:"href,omitempty"`
	Anchor bool   `json:"anchor"`
}

// Node is the rendered form of a template.
type Node struct {
	Segments []Segment `json:"segments"`
}

// Render builds the display tree for text. Links are applied in order; each
// literal occurrence of a link's directive that is still plain text becomes an
// anchor. Fields are matched literally, so a stored link whose placeholder or
// URL contains directive delimiters still renders. Directives for links with
// an empty field or a URL that is not an absolute http, https or mailto URI
// stay as text, as do directives with no matching link.
//
// Render has no side effects and returns the same tree for the same input.
func Render(text string, links []models.LinkDescriptor) Node {
	segs := []Segment{{Text: text}}

	for _, d := range links {
		if d.URL == "" || d.Placeholder == "" || !AllowedURL(d.URL) {
			continue
		}
		m := linkdirective.Matcher(d)

		next := make([]Segment, 0, len(segs))
		for _, s := range segs {
			if s.Anchor {
				next = append(next, s)
				continue
			}
			locs := m.FindAllStringIndex(s.Text, -1)
			if locs == nil {
				next = append(next, s)
				continue
			}
			pos := 0
			for _, loc := range locs {
				if loc[0] > pos {
					next = append(next, Segment{Text: s.Text[pos:loc[0]]})
				}
				next = append(next, Segment{Text: d.Placeholder, Href: d.URL, Anchor: true})
				pos = loc[1]
			}
			if pos < len(s.Text) {
				next = append(next, Segment{Text: s.Text[pos:]})
			}
		}
		segs = next
	}

	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if !s.Anchor && s.Text == "" {
			continue
		}
		out = append(out, s)
	}
	return Node{Segments: out}
}

// RenderTemplate renders a stored template.
func RenderTemplate(t models.NotificationTemplate) Node {
	return Render(t.MessageText, t.Links)
}

// AllowedURL reports whether raw may be used as an anchor href.
func AllowedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	case "mailto":
		return u.Opaque != ""
	default:
		return false
	}
}

// Anchors returns the number of anchor segments in n.
func (n Node) Anchors() int {
	c := 0
	for _, s := range n.Segments {
		if s.Anchor {
			c++
		}
	}
	return c
}

// HTML serializes n. Text is escaped, newlines become <br>, and anchors open
// in a new tab. The result is passed through the links-only sanitizer.
func (n Node) HTML() template.HTML {
	var b strings.Builder
	for _, hn := range n.htmlNodes() {
		// Rendering into a strings.Builder cannot fail.
		_ = html.Render(&b, hn)
	}
	return htmlsanitize.SanitizeLinksToHTML(b.String())
}

// PlainText renders n for channels without markup. Anchors are written as
// "placeholder (url)".
func (n Node) PlainText() string {
	var b strings.Builder
	for _, s := range n.Segments {
		if s.Anchor {
			b.WriteString(s.Text)
			b.WriteString(" (")
			b.WriteString(s.Href)
			b.WriteString(")")
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

func (n Node) htmlNodes() []*html.Node {
	var out []*html.Node
	for _, s := range n.Segments {
		if s.Anchor {
			a := &html.Node{
				Type:     html.ElementNode,
				DataAtom: atom.A,
				Data:     "a",
				Attr: []html.Attribute{
					{Key: "href", Val: s.Href},
					{Key: "target", Val: "_blank"},
					{Key: "rel", Val: "noopener noreferrer"},
				},
			}
			a.AppendChild(&html.Node{Type: html.TextNode, Data: s.Text})
			out = append(out, a)
			continue
		}
		out = append(out, textNodes(s.Text)...)
	}
	return out
}

func textNodes(text string) []*html.Node {
	var out []*html.Node
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			out = append(out, &html.Node{Type: html.ElementNode, DataAtom: atom.Br, Data: "br"})
		}
		if line != "" {
			out = append(out, &html.Node{Type: html.TextNode, Data: line})
		}
	}
	return out
}
