// Package slug validates and builds wallet names.
package slug

import (
	"regexp"
	"strings"
)

// MaxLen bounds a wallet name.
const MaxLen = 40

var reSlug = regexp.MustCompile(`^[a-z0-9_]{2,40}$`)

// IsSlug reports whether s is a usable wallet name: 2 to 40 of [a-z0-9_].
func IsSlug(s string) bool {
	return reSlug.MatchString(s)
}

// Slugify turns free text such as "Daily Needs" into "daily_needs".
// Runs of other characters collapse to a single '_' and the result is trimmed
// of leading and trailing underscores.
func Slugify(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		} else {
			pendingSep = true
		}
		if b.Len() >= MaxLen {
			break
		}
	}
	return strings.TrimRight(b.String(), "_")
}
