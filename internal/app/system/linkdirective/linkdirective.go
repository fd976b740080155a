// Package linkdirective encodes and decodes the "[placeholder](url)" link
// directives that operators embed in notification template text.
//
// Every search over template text goes through Matcher, which quotes the
// encoded directive so placeholder and url are always matched literally.
package linkdirective

import (
	"errors"
	"regexp"
	"strings"

	"github.com/dalemusser/stratanotify/internal/domain/models"
)

var (
	// ErrEmptyField is returned when a descriptor has an empty url or placeholder.
	ErrEmptyField = errors.New("link url and placeholder are required")

	// ErrDelimiter is returned when a url or placeholder contains a directive
	// delimiter. Such a directive cannot be decoded back unambiguously.
	ErrDelimiter = errors.New("link url and placeholder must not contain [ ] ( or )")

	// ErrMalformed is returned by Decode when the input is not exactly one directive.
	ErrMalformed = errors.New("malformed link directive")
)

// delimiters are the characters that frame a directive.
const delimiters = "[]()"

// directivePattern recognizes directive-shaped text whose fields contain no
// delimiters. It is only used by Decode and Scan; it never receives user input
// as a pattern.
var directivePattern = regexp.MustCompile(`\[([^\[\]()]+)\]\(([^\[\]()]+)\)`)

// Encode returns the textual directive for d. Fields are inserted verbatim.
func Encode(d models.LinkDescriptor) string {
	return "[" + d.Placeholder + "](" + d.URL + ")"
}

// Matcher returns a literal matcher for Encode(d). Regex metacharacters in the
// placeholder or url are quoted, so the result only ever matches the exact
// encoded substring.
func Matcher(d models.LinkDescriptor) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(Encode(d)))
}

// Validate reports whether d may be inserted into a template.
func Validate(d models.LinkDescriptor) error {
	if d.URL == "" || d.Placeholder == "" {
		return ErrEmptyField
	}
	if strings.ContainsAny(d.URL, delimiters) || strings.ContainsAny(d.Placeholder, delimiters) {
		return ErrDelimiter
	}
	return nil
}

// Decode parses s, which must consist of exactly one directive.
func Decode(s string) (models.LinkDescriptor, error) {
	m := directivePattern.FindStringSubmatchIndex(s)
	if m == nil || m[0] != 0 || m[1] != len(s) {
		return models.LinkDescriptor{}, ErrMalformed
	}
	return models.LinkDescriptor{
		Placeholder: s[m[2]:m[3]],
		URL:         s[m[4]:m[5]],
	}, nil
}

// Scan returns every well-formed directive found in text, in order of
// appearance. Duplicates are reported as many times as they occur.
func Scan(text string) []models.LinkDescriptor {
	matches := directivePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]models.LinkDescriptor, 0, len(matches))
	for _, m := range matches {
		out = append(out, models.LinkDescriptor{Placeholder: m[1], URL: m[2]})
	}
	return out
}

// Contains reports whether text holds at least one literal occurrence of d.
func Contains(text string, d models.LinkDescriptor) bool {
	return Matcher(d).MatchString(text)
}
