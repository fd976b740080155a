// Package normalize cleans up identifiers and free text taken from requests
// so lookups and comparisons agree on one form.
package normalize

import "strings"

// Name trims an operator display name and collapses inner whitespace, so
// "Ada  Lovelace" and " Ada Lovelace" name the same operator.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Role lower-cases and trims a role.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TriggerType lower-cases and trims a trigger type key from a path or query.
func TriggerType(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a query parameter value.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
