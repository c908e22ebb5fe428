package ailink

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestSanitizeExamples(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"hello there my good friend how are you", "Hello there my good friend"},
		{"Thanks, friend! 😊 #grateful", "Thanks friend!"},
		{"  you're   welcome\n\n", "Youre welcome"},
		{"i love you too ❤️", "I love you too"},
		{"Nice to meet you.", "Nice to meet you."},
		{"¡hola amigo!", "Hola amigo!"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			require.Equal(t, tc.want, Sanitize(tc.raw, 5))
		})
	}
}

func TestSanitizeFallsBackOnEmptyResult(t *testing.T) {
	for _, raw := range []string{"", ",,,", "😀😀", "#hashtag", "a", "  ?  "} {
		out := Sanitize(raw, 5)
		require.NotEmpty(t, out, "input %q", raw)
		require.GreaterOrEqual(t, utf8.RuneCountInString(out), 2, "input %q", raw)
		require.Contains(t, FallbackReplies(), out, "input %q", raw)
	}
}

func TestSanitizeFallbackKeepsTwoCharactersAtOneWord(t *testing.T) {
	for _, raw := range []string{",,,2,", "", "😀", "#x", "?", "a", "b", "z"} {
		out := Sanitize(raw, 1)
		require.GreaterOrEqual(t, utf8.RuneCountInString(out), 2, "input %q", raw)
		require.Len(t, strings.Fields(out), 1, "input %q", raw)
	}
	for i := 0; i < 200; i++ {
		raw := strings.Repeat(",", i)
		require.GreaterOrEqual(t, utf8.RuneCountInString(fallbackWithin(raw, 1)), 2)
	}
}

func TestSanitizeBounds(t *testing.T) {
	inputs := []string{
		"one, two, three, four, five, six, seven",
		"🎉 party time #fun #friday with friends tonight!!!",
		"hello",
		strings.Repeat("word ", 40),
		"emoji only 🙏🙏🙏",
		"commas,,,between,,,words",
		"mixed 123 numbers and_underscores",
	}
	for maxWords := 1; maxWords <= 6; maxWords++ {
		for _, raw := range inputs {
			out := Sanitize(raw, maxWords)
			require.LessOrEqual(t, len(strings.Fields(out)), maxWords, "input %q max %d", raw, maxWords)
			require.NotContains(t, out, ",")
			require.NotContains(t, out, "#")
			require.NotEmpty(t, out)
			for _, r := range out {
				ok := r == ' ' || r == '.' || r == '!' || r == '?' || r == '_' ||
					(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
				require.True(t, ok, "unexpected rune %q in %q", r, out)
			}
		}
	}
}

func TestSanitizeIsDeterministic(t *testing.T) {
	for _, raw := range []string{"", "hi there", ",,,", "😀"} {
		require.Equal(t, Sanitize(raw, 5), Sanitize(raw, 5))
	}
}

func TestSanitizeDefaultsMaxWords(t *testing.T) {
	out := Sanitize("a b c d e f g h", 0)
	require.Equal(t, "A b c d e", out)
}

func TestFallbackRepliesAreClean(t *testing.T) {
	for _, reply := range FallbackReplies() {
		require.Equal(t, reply, Sanitize(reply, 5))
	}
	require.Equal(t, FallbackFor("same"), FallbackFor("same"))
}
