// Package slug derives URL-and-filesystem-safe identifiers from configured
// project paths. The mapping must stay stable across releases: slugs are both
// route prefixes and the registry's keys.
package slug

import "strings"

// Sanitize maps an arbitrary path string to a slug containing only lowercase
// ASCII alphanumerics and single hyphens. Runs of non-alphanumeric characters
// collapse to one hyphen and a trailing hyphen is stripped. Total over any
// input; the empty string maps to itself.
func Sanitize(path string) string {
	var b strings.Builder
	b.Grow(len(path))
	lastWasHyphen := false

	for i := 0; i < len(path); i++ {
		c := path[i]
		switch {
		case c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			b.WriteByte(c)
			lastWasHyphen = false
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
			lastWasHyphen = false
		default:
			if !lastWasHyphen {
				b.WriteByte('-')
				lastWasHyphen = true
			}
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
