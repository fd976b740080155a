// Package htmlsanitize restricts rendered template HTML to the few elements a
// notification may carry: text, line breaks and outbound links.
package htmlsanitize

import (
	"html/template"
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	targetBlank = regexp.MustCompile(`^_blank$`)
	relSafe     = regexp.MustCompile(`^(noopener|noreferrer)( (noopener|noreferrer))?$`)

	linksPolicy     *bluemonday.Policy
	linksPolicyOnce sync.Once
)

// LinkSchemes are the URL schemes an anchor may point at.
var LinkSchemes = []string{"http", "https", "mailto"}

// getLinksPolicy returns the shared links-only policy, creating it on first use.
func getLinksPolicy() *bluemonday.Policy {
	linksPolicyOnce.Do(func() {
		p := bluemonday.NewPolicy()

		p.AllowElements("br")
		p.AllowAttrs("href").OnElements("a")
		p.AllowAttrs("target").Matching(targetBlank).OnElements("a")
		p.AllowAttrs("rel").Matching(relSafe).OnElements("a")

		p.AllowURLSchemes(LinkSchemes...)
		p.RequireParseableURLs(true)

		// Every anchor, mailto included, opens in a new tab without leaking
		// the opener or referrer.
		p.AddTargetBlankToFullyQualifiedLinks(true)
		p.RequireNoReferrerOnLinks(true)

		linksPolicy = p
	})
	return linksPolicy
}

// SanitizeLinks removes everything from html except text, <br> and <a href>
// with an allowed scheme. Disallowed anchors keep their text. A target other
// than _blank is dropped, and every anchor carries rel noreferrer (plus
// noopener when it opens a new tab).
func SanitizeLinks(html string) string {
	if html == "" {
		return ""
	}
	return getLinksPolicy().Sanitize(html)
}

// SanitizeLinksToHTML is SanitizeLinks typed for direct use in html/template.
func SanitizeLinksToHTML(html string) template.HTML {
	return template.HTML(SanitizeLinks(html))
}
