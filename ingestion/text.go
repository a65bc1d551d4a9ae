package ingestion

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	repeatedSpaces   = regexp.MustCompile(` +`)
	repeatedNewlines = regexp.MustCompile(`\n{3,}`)
	hyphenatedBreak  = regexp.MustCompile(`([\p{L}\p{N}_]+)-\s*\n\s*([\p{L}\p{N}_]+)`)
)

// CleanText normalizes passage text extracted from PDF sources: NFKC, single
// spaces, at most one blank line, and words split across lines rejoined.
func CleanText(text string) string {
	text = norm.NFKC.String(text)
	text = repeatedSpaces.ReplaceAllString(text, " ")
	text = repeatedNewlines.ReplaceAllString(text, "\n\n")
	text = hyphenatedBreak.ReplaceAllString(text, "$1$2")
	text = strings.ReplaceAll(text, "\f", "\n")
	return strings.TrimSpace(text)
}
