package ingest

import (
	"regexp"
	"strings"
)

var (
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	wsRe    = regexp.MustCompile(`\s+`)
)

// CleanDistrict normalizes a territorial authority name for matching against
// the metro allow-list: punctuation stripped, whitespace collapsed,
// upper-cased. Both sides of the comparison must pass through here.
func CleanDistrict(name string) string {
	cleaned := punctRe.ReplaceAllString(name, "")
	cleaned = wsRe.ReplaceAllString(cleaned, " ")
	return strings.ToUpper(strings.TrimSpace(cleaned))
}

// DistrictSet builds a normalized membership set from configured names.
func DistrictSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if c := CleanDistrict(n); c != "" {
			set[c] = true
		}
	}
	return set
}
