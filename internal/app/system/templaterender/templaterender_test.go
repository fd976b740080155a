package templaterender

import (
	"strings"
	"testing"

	"github.com/dalemusser/stratanotify/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var docs = models.LinkDescriptor{URL: "https://docs.example.com", Placeholder: "docs"}

func TestRender_SingleLink(t *testing.T) {
	n := Render("Read the [docs](https://docs.example.com) today", []models.LinkDescriptor{docs})

	require.Len(t, n.Segments, 3)
	assert.Equal(t, Segment{Text: "Read the "}, n.Segments[0])
	assert.Equal(t, Segment{Text: "docs", Href: "https://docs.example.com", Anchor: true}, n.Segments[1])
	assert.Equal(t, Segment{Text: " today"}, n.Segments[2])
}

func TestRender_Safety(t *testing.T) {
	text := "<script>alert(1)</script> [docs](https://docs.example.com)"
	n := Render(text, []models.LinkDescriptor{docs})

	assert.Equal(t, 1, n.Anchors())
	assert.Equal(t, "<script>alert(1)</script> ", n.Segments[0].Text)
	assert.False(t, n.Segments[0].Anchor)

	out := string(n.HTML())
	assert.Equal(t, 1, strings.Count(out, "<a "))
	assert.NotContains(t, out, "<script")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, `href="https://docs.example.com"`)
}

func TestRender_HTMLInPlaceholderIsEscaped(t *testing.T) {
	d := models.LinkDescriptor{URL: "https://x.io/?a=1&b=2", Placeholder: `<img src=x onerror=alert>`}
	n := Render("see "+"["+d.Placeholder+"]("+d.URL+")", []models.LinkDescriptor{d})

	require.Equal(t, 1, n.Anchors())
	out := string(n.HTML())
	assert.NotContains(t, out, "<img")
	assert.Contains(t, out, "&lt;img")
	assert.Contains(t, out, "a=1&amp;b=2")
}

func TestRender_Idempotent(t *testing.T) {
	text := "Hi {{username}}, [docs](https://docs.example.com) and [docs](https://docs.example.com)"
	links := []models.LinkDescriptor{docs}

	a := Render(text, links)
	b := Render(text, links)
	assert.Equal(t, a, b)
	assert.Equal(t, a.HTML(), b.HTML())
	assert.Equal(t, 2, a.Anchors())
}

func TestRender_DriftRendersAsText(t *testing.T) {
	text := "visit [Go](http://x) now"
	n := Render(text, nil)

	assert.Equal(t, 0, n.Anchors())
	assert.Equal(t, text, n.PlainText())
	assert.NotContains(t, string(n.HTML()), "<a")
}

func TestRender_MissingDirectiveIgnored(t *testing.T) {
	n := Render("nothing here", []models.LinkDescriptor{docs})
	assert.Equal(t, []Segment{{Text: "nothing here"}}, n.Segments)
}

func TestRender_LiteralMatchOnly(t *testing.T) {
	d := models.LinkDescriptor{URL: "http://x.io/?y=1", Placeholder: "a.c"}
	n := Render("[abc](http://x.io/y=1)", []models.LinkDescriptor{d})
	assert.Equal(t, 0, n.Anchors())
}

func TestRender_AnchorsNotReprocessed(t *testing.T) {
	a := models.LinkDescriptor{URL: "https://a.io", Placeholder: "a"}
	b := models.LinkDescriptor{URL: "https://b.io", Placeholder: "b"}
	n := Render("[a](https://a.io) [b](https://b.io)", []models.LinkDescriptor{a, b, a})

	require.Len(t, n.Segments, 3)
	assert.Equal(t, "https://a.io", n.Segments[0].Href)
	assert.Equal(t, " ", n.Segments[1].Text)
	assert.Equal(t, "https://b.io", n.Segments[2].Href)
}

func TestRender_DisallowedSchemes(t *testing.T) {
	urls := []string{
		"javascript:alert",
		"JavaScript:void",
		"data:text/html,hi",
		"/relative/path",
		"ftp://files.example.com",
		"http://",
	}
	for _, u := range urls {
		t.Run(u, func(t *testing.T) {
			d := models.LinkDescriptor{URL: u, Placeholder: "x"}
			n := Render("["+d.Placeholder+"]("+u+")", []models.LinkDescriptor{d})
			assert.Equal(t, 0, n.Anchors())
			assert.NotContains(t, string(n.HTML()), "<a")
		})
	}
}

func TestAllowedURL(t *testing.T) {
	assert.True(t, AllowedURL("https://docs.example.com"))
	assert.True(t, AllowedURL("HTTP://docs.example.com/a?b=c"))
	assert.True(t, AllowedURL("mailto:help@example.com"))
	assert.False(t, AllowedURL("mailto:"))
	assert.False(t, AllowedURL("javascript:void(0)"))
	assert.False(t, AllowedURL("docs.example.com"))
}

func TestRender_VariablesPassThrough(t *testing.T) {
	n := Render("Hello {{username}}", nil)
	assert.Equal(t, "Hello {{username}}", n.PlainText())
	assert.Contains(t, string(n.HTML()), "Hello {{username}}")
}

func TestNode_PlainText(t *testing.T) {
	n := Render("Read [docs](https://docs.example.com).", []models.LinkDescriptor{docs})
	assert.Equal(t, "Read docs (https://docs.example.com).", n.PlainText())
}

func TestNode_HTMLNewlines(t *testing.T) {
	n := Render("line one\nline two", nil)
	out := string(n.HTML())
	assert.Contains(t, out, "line one<br")
	assert.Contains(t, out, "line two")
}

func TestRender_Empty(t *testing.T) {
	n := Render("", nil)
	assert.Empty(t, n.Segments)
	assert.Equal(t, "", n.PlainText())
	assert.Equal(t, "", string(n.HTML()))
}

func TestRender_DelimitersInStoredLink(t *testing.T) {
	d := models.LinkDescriptor{URL: "http://x?y=1", Placeholder: "a(b)c"}
	n := Render("see [a(b)c](http://x?y=1) or abc", []models.LinkDescriptor{d})

	require.Len(t, n.Segments, 3)
	assert.Equal(t, Segment{Text: "a(b)c", Href: "http://x?y=1", Anchor: true}, n.Segments[1])
	assert.Equal(t, Segment{Text: " or abc"}, n.Segments[2])
}

func TestRender_EmptyFieldsStayText(t *testing.T) {
	for _, d := range []models.LinkDescriptor{
		{URL: "", Placeholder: "docs"},
		{URL: "https://docs.example.com", Placeholder: ""},
	} {
		n := Render("[docs]() [](https://docs.example.com)", []models.LinkDescriptor{d})
		assert.Zero(t, n.Anchors(), "%+v", d)
	}
}

func TestNode_HTMLAnchorsOpenInNewTab(t *testing.T) {
	links := []models.LinkDescriptor{
		docs,
		{URL: "http://status.example.com", Placeholder: "status"},
		{URL: "mailto:help@example.com", Placeholder: "mail us"},
	}
	text := "[docs](https://docs.example.com) [status](http://status.example.com) [mail us](mailto:help@example.com)"
	out := string(Render(text, links).HTML())

	anchors := strings.Split(out, "<a ")[1:]
	require.Len(t, anchors, 3, out)
	for _, a := range anchors {
		tag := a[:strings.Index(a, ">")]
		assert.Contains(t, tag, `target="_blank"`, tag)
		assert.Contains(t, tag, "noopener", tag)
		assert.Contains(t, tag, "noreferrer", tag)
	}
}
