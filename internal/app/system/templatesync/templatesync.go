// Package templatesync keeps a template's message text and its link list in
// step. Every descriptor in Links has a directive in MessageText, and insert
// and remove always change both sides together.
//
// State has value semantics: every operation returns a new State and leaves
// the receiver untouched.
package templatesync

import (
	"errors"
	"strings"

	"github.com/dalemusser/stratanotify/internal/app/system/linkdirective"
	"github.com/dalemusser/stratanotify/internal/domain/models"
)

// ErrIndexOutOfRange is returned by RemoveLink for an index outside Links.
var ErrIndexOutOfRange = errors.New("link index out of range")

// State is the (text, links) pair an operator edits.
type State struct {
	MessageText string
	Links       []models.LinkDescriptor
}

// FromTemplate extracts the editable pair from a stored template.
func FromTemplate(t models.NotificationTemplate) State {
	return State{MessageText: t.MessageText, Links: cloneLinks(t.Links)}
}

// Apply writes s into a copy of t.
func (s State) Apply(t models.NotificationTemplate) models.NotificationTemplate {
	out := t.Clone()
	out.MessageText = s.MessageText
	out.Links = cloneLinks(s.Links)
	return out
}

// InsertLink appends the directive for d to the text, separated by one space
// when the text is non-empty, and appends d to Links. Invalid descriptors are
// rejected with the linkdirective validation error and s is returned as is.
func (s State) InsertLink(d models.LinkDescriptor) (State, error) {
	if err := linkdirective.Validate(d); err != nil {
		return s, err
	}

	text := s.MessageText
	if text != "" {
		text += " "
	}
	text += linkdirective.Encode(d)

	links := make([]models.LinkDescriptor, 0, len(s.Links)+1)
	links = append(links, s.Links...)
	links = append(links, d)

	return State{MessageText: text, Links: links}, nil
}

// RemoveLink drops Links[index] and the first literal occurrence of its
// directive from the text. The returned bool reports whether a directive was
// found in the text. When it was not, the text has drifted from the link list;
// the descriptor is still removed and the text is left unchanged.
//
// When several descriptors encode to the same directive, the first textual
// occurrence is removed whichever index was requested.
func (s State) RemoveLink(index int) (State, bool, error) {
	if index < 0 || index >= len(s.Links) {
		return s, false, ErrIndexOutOfRange
	}

	var links []models.LinkDescriptor
	if len(s.Links) > 1 {
		links = make([]models.LinkDescriptor, 0, len(s.Links)-1)
		links = append(links, s.Links[:index]...)
		links = append(links, s.Links[index+1:]...)
	}

	loc := linkdirective.Matcher(s.Links[index]).FindStringIndex(s.MessageText)
	if loc == nil {
		return State{MessageText: s.MessageText, Links: links}, false, nil
	}

	text := joinSeam(s.MessageText[:loc[0]], s.MessageText[loc[1]:])
	return State{MessageText: text, Links: links}, true, nil
}

// SetText replaces the message text. Links are kept; any whose directive no
// longer appears are reported by Drifted.
func (s State) SetText(text string) State {
	return State{MessageText: text, Links: cloneLinks(s.Links)}
}

// Drifted returns the indices of links whose directive is missing from the text.
func (s State) Drifted() []int {
	var out []int
	for i, d := range s.Links {
		if !linkdirective.Contains(s.MessageText, d) {
			out = append(out, i)
		}
	}
	return out
}

// Prune drops every drifted link, keeping the order of the rest.
func (s State) Prune() State {
	var links []models.LinkDescriptor
	for _, d := range s.Links {
		if linkdirective.Contains(s.MessageText, d) {
			links = append(links, d)
		}
	}
	return State{MessageText: s.MessageText, Links: links}
}

// Adopt appends a descriptor for every valid directive typed into the text
// whose (placeholder, url) pair is not in Links yet. A directive repeated in
// the text is adopted once.
func (s State) Adopt() State {
	links := cloneLinks(s.Links)

	known := make(map[models.LinkDescriptor]struct{}, len(links))
	for _, d := range links {
		known[d] = struct{}{}
	}
	for _, d := range linkdirective.Scan(s.MessageText) {
		if _, ok := known[d]; ok {
			continue
		}
		if linkdirective.Validate(d) != nil {
			continue
		}
		known[d] = struct{}{}
		links = append(links, d)
	}
	return State{MessageText: s.MessageText, Links: links}
}

// joinSeam glues the text around a removed directive. Blanks at the seam
// collapse to one space, halves that touched the directive directly are
// joined with nothing between them, and the ends are trimmed.
func joinSeam(before, after string) string {
	left := strings.TrimRight(before, " \t")
	right := strings.TrimLeft(after, " \t")
	blank := len(left) < len(before) || len(right) < len(after)

	switch {
	case left == "" || right == "",
		strings.HasSuffix(left, "\n") || strings.HasPrefix(right, "\n"),
		!blank:
		return strings.TrimSpace(left + right)
	default:
		return strings.TrimSpace(left + " " + right)
	}
}

func cloneLinks(links []models.LinkDescriptor) []models.LinkDescriptor {
	if links == nil {
		return nil
	}
	return append([]models.LinkDescriptor(nil), links...)
}
