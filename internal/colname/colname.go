// Package colname maps raw column and header names to canonical identifiers.
//
// Every component that compares column names (the join engine, header checks,
// the PostgreSQL sink) goes through Normalize so that "Email", " email " and
// "EMAIL" agree.
package colname

import (
	"regexp"
	"strings"
)

var (
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	headerLine = regexp.MustCompile(`^[\p{L}\p{M}\p{N}_\s\p{Zs},.\-@()\[\]{}:;'"+=<>?/\\*&%$#!~` + "`" + `|]+$`)
)

// Normalize trims surrounding whitespace, lowercases, and replaces every
// maximal run of non-word characters with a single underscore.
// Normalize is idempotent and total; the empty string maps to itself.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	return nonWord.ReplaceAllString(s, "_")
}

// NormalizeAll normalizes each name, preserving order.
func NormalizeAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Normalize(n)
	}
	return out
}

// Identifier returns a name safe for use as a SQL column: normalized, stripped
// of leading and trailing underscores, prefixed with "col_" when it starts
// with a digit, and "unnamed_column" when nothing is left.
func Identifier(name string) string {
	s := strings.Trim(Normalize(name), "_")
	if s == "" {
		return "unnamed_column"
	}
	if s[0] >= '0' && s[0] <= '9' {
		return "col_" + s
	}
	return s
}

// ValidateHeaderLine reports whether line looks like a header row: non-blank
// and made only of word characters, whitespace and printable ASCII
// punctuation. Control characters are rejected.
func ValidateHeaderLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	return headerLine.MatchString(line)
}
