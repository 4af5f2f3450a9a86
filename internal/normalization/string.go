package normalization

import (
  "strings"
)

// ParseInputString canonicalizes free-form identity input (emails, lookup
// keys): trimmed and lowercased.
func ParseInputString(input string) string {
  return strings.ToLower(strings.TrimSpace(input))
}

// ParseName trims display and real names without touching case; names are
// compared case-insensitively where it matters.
func ParseName(input string) string {
  return strings.TrimSpace(input)
}
