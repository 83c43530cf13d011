package utils

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
	sentenceEndRe = regexp.MustCompile(`([.!?])\s+`)
)

// CleanText unescapes HTML entities, applies NFC and collapses whitespace.
func CleanText(s string) string {
	s = html.UnescapeString(s)
	s = norm.NFC.String(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// CollapseBlankLines reduces runs of three or more newlines to two.
func CollapseBlankLines(s string) string {
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(s, "\n\n"))
}

// Truncate cuts s to at most max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

// Sentences splits text on sentence-ending punctuation followed by whitespace.
func Sentences(text string) []string {
	marked := sentenceEndRe.ReplaceAllString(strings.TrimSpace(text), "$1\x00")
	var out []string
	for _, s := range strings.Split(marked, "\x00") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
