package anomaly

import (
	"strings"
	"unicode"
)

// Normalize lower-cases text and replaces every rune that is not a letter,
// digit, whitespace, hyphen or period with a space, then collapses runs of
// whitespace. Hyphenated clinical terms and sentence periods survive.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r), r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// tokenize splits normalized text into runs of letters and digits at least
// two runes long.
func tokenize(normalized string) []string {
	tokens := []string{}
	start := -1
	runes := 0
	flush := func(end int) {
		if start >= 0 && runes >= 2 {
			tokens = append(tokens, normalized[start:end])
		}
		start = -1
		runes = 0
	}
	for i, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			runes++
			continue
		}
		flush(i)
	}
	flush(len(normalized))
	return tokens
}

// termCounts returns unigram and adjacent-bigram counts with stop words
// removed before bigrams are formed.
func termCounts(normalized string) map[string]int {
	counts := map[string]int{}
	kept := make([]string, 0, 16)
	for _, tok := range tokenize(normalized) {
		if isStopWord(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	for i, tok := range kept {
		counts[tok]++
		if i > 0 {
			counts[kept[i-1]+" "+tok]++
		}
	}
	return counts
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func wordSet(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		out[w] = struct{}{}
	}
	return out
}
