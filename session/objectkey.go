package session

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// BuildObjectKey derives a globally unique object key from the upload time, a
// random identifier and a normalized form of the caller-supplied file name.
// Uniqueness relies on the timestamp plus the random identifier; collision
// probability is treated as negligible at the expected volume, there is no
// check against existing keys.
func BuildObjectKey(now time.Time, fileName string) string {
	return fmt.Sprintf("%s-%s-%s", now.UTC().Format("20060102-150405"), uuid.NewString(), sanitizeFileName(fileName))
}

// sanitizeFileName collapses whitespace runs and strips characters that would
// alter storage path semantics. The result is never empty.
func sanitizeFileName(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		case r == '/' || r == '\\' || r == '?' || r == '#' || r == '%' || unicode.IsControl(r):
			// path-structural and escape-sensitive characters are dropped
		default:
			b.WriteRune(r)
			lastDash = false
		}
	}
	sanitized := strings.Trim(b.String(), "-.")
	if sanitized == "" {
		return "file"
	}
	return sanitized
}
