package ailink

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxWords bounds a reply when no limit is configured.
const DefaultMaxWords = 5

var (
	emojiPattern      = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}\x{1F900}-\x{1FAFF}\x{2600}-\x{26FF}\x{2702}-\x{27B0}\x{24C2}\x{FE0F}\x{200D}]`)
	hashtagPattern    = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
	disallowedPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?]`)
	spacePattern      = regexp.MustCompile(`\s+`)
)

// Sanitize reduces a model reply to a short, plain phrase: no emoji,
// hashtags, commas or symbols, at most maxWords words, first letter
// capitalized. Replies shorter than two characters are replaced by a
// fallback.
func Sanitize(raw string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	text := emojiPattern.ReplaceAllString(raw, "")
	text = hashtagPattern.ReplaceAllString(text, "")
	text = disallowedPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, ",", "")
	text = strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
	text = limitWords(text, maxWords)

	if utf8.RuneCountInString(text) < 2 {
		text = fallbackWithin(raw, maxWords)
	}
	return capitalizeFirst(text)
}

func limitWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, " ")
}

func capitalizeFirst(text string) string {
	r, size := utf8.DecodeRuneInString(text)
	if r == utf8.RuneError {
		return text
	}
	return string(unicode.ToUpper(r)) + text[size:]
}
