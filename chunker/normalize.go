package chunker

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes text before chunking: line endings become "\n",
// runs of horizontal whitespace become one space, lines are trimmed, at most
// one blank line separates paragraphs and the result is trimmed.
// Normalize is idempotent.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	blank := 0
	for line := range strings.SplitSeq(text, "\n") {
		line = collapseSpaces(line)
		if line == "" {
			blank++
			continue
		}
		if b.Len() > 0 {
			if blank > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		b.WriteString(line)
		blank = 0
	}
	return b.String()
}

func collapseSpaces(line string) string {
	return strings.Join(strings.FieldsFunc(line, unicode.IsSpace), " ")
}

// EstimateTokens approximates the token count of text as one token per four runes.
func EstimateTokens(text string) int {
	n := len([]rune(text))
	return (n + charsPerToken - 1) / charsPerToken
}
