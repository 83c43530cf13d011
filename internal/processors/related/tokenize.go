package related

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const DefaultMinTokenLen = 4

// High-frequency connective and temporal words that carry no topic.
var stopwords = toSet(
	// nl
	"deze", "dit", "niet", "voor", "naar", "over", "maar", "heeft", "hebben", "zijn",
	"wordt", "worden", "werd", "door", "met", "ook", "alle", "meer", "nog", "veel",
	"vandaag", "gisteren", "morgen", "jaar", "week", "weken", "maand", "dag", "dagen",
	"uur", "eerste", "nieuwe", "onder", "tegen", "omdat", "waar", "wanneer", "toch",
	"even", "kunnen", "moet", "moeten", "zegt", "zeggen", "gaat", "komt", "krijgt",
	"tussen", "sinds", "tijdens", "terwijl", "echter", "zoals", "weer", "keer",
	"live", "update", "video",
	// en
	"this", "that", "with", "from", "have", "been", "will", "what", "when", "after",
	"about", "over", "their", "there", "says", "said", "today", "yesterday", "more",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Tokens returns the distinct lowercase words of s that are at least
// minLen runes long and not stopwords.
func Tokens(s string, minLen int) map[string]struct{} {
	if minLen <= 0 {
		minLen = DefaultMinTokenLen
	}

	lower := cases.Lower(language.Dutch).String(s)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make(map[string]struct{}, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < minLen {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		tokens[w] = struct{}{}
	}
	return tokens
}

func overlap(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for t := range a {
		if _, ok := b[t]; ok {
			n++
		}
	}
	return n
}
