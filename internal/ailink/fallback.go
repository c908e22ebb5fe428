package ailink

import (
	"hash/fnv"
	"unicode/utf8"
)

const (
	// PromptForInput is returned for empty input.
	PromptForInput = "Please sign something"
	// ContinueFallback is returned when every attempt failed for non-quota reasons.
	ContinueFallback = "Please continue"
)

// fallbackReplies never contain commas or characters that Sanitize strips.
var fallbackReplies = []string{
	"That is great",
	"Good",
	"That is great!",
	"Hello Friend",
	"Let me help you",
	"Hello there",
	"Thank you",
	"I love you too",
	"Nice to meet you",
}

// FallbackFor picks a canned reply for input. The choice is stable for a
// given input.
func FallbackFor(input string) string {
	return fallbackReplies[fallbackIndex(input)]
}

// fallbackWithin is FallbackFor cut to maxWords. Replies whose cut form is
// shorter than two characters are skipped in favour of the next one.
func fallbackWithin(input string, maxWords int) string {
	start := fallbackIndex(input)
	for i := range fallbackReplies {
		reply := limitWords(fallbackReplies[(start+i)%len(fallbackReplies)], maxWords)
		if utf8.RuneCountInString(reply) >= 2 {
			return reply
		}
	}
	return fallbackReplies[start]
}

func fallbackIndex(input string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(input))
	return int(h.Sum32() % uint32(len(fallbackReplies)))
}

// FallbackReplies returns a copy of the canned replies.
func FallbackReplies() []string {
	return append([]string(nil), fallbackReplies...)
}
