package usecase

import (
	"strings"
	"unicode/utf8"
)

// minQueryTokenLength drops short tokens such as "of" or "a"
const minQueryTokenLength = 3

// queryStopWords are marketing terms that narrow catalog search results without helping the match
var queryStopWords = map[string]bool{
	"fresh":   true,
	"organic": true,
	"natural": true,
	"free":    true,
	"range":   true,
	"local":   true,
}

// BuildQuery derives a catalog search string from a clean item name.
// Lower-cases, removes marketing stop words and short tokens, and falls back
// to the original name when nothing is left.
func BuildQuery(cleanName string) string {
	tokens := queryTokens(cleanName)
	if len(tokens) == 0 {
		return strings.TrimSpace(cleanName)
	}
	return strings.Join(tokens, " ")
}

// queryTokens returns the kept lower-case tokens of s
func queryTokens(s string) []string {
	words := strings.Fields(strings.ToLower(s))
	kept := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.Trim(word, ",.!?;:-'\"()")
		if utf8.RuneCountInString(word) < minQueryTokenLength {
			continue
		}
		if queryStopWords[word] {
			continue
		}
		kept = append(kept, word)
	}

	return kept
}
