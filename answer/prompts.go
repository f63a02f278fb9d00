package answer

import (
	"fmt"
	"strings"

	"github.com/poiesic/knowbot/similarity"
)

const summaryPrompt = `You compress reference material for a customer support assistant.

Summarize the material below into 4 to 6 short bullet points written in your own words.

Rules:
- Keep only facts that are stated in the material. Do not add anything.
- Keep names, prices, dates, numbers and URLs exactly as written.
- Each bullet is one sentence starting with "- ".
- Output only the bullets, with no preamble or closing remark.`

const answerPromptTemplate = `You are a helpful assistant answering questions on behalf of a business.

Answer in a %s tone. Be concise: at most a few sentences.

Use ONLY the facts in the summary below. If the summary does not contain the answer, reply with exactly this sentence and nothing else:
%s

Summary:
%s`

func buildAnswerPrompt(tone, fallback, summary string) string {
	tone = strings.TrimSpace(tone)
	if tone == "" {
		tone = DefaultTone
	}
	return fmt.Sprintf(answerPromptTemplate, tone, fallback, summary)
}

// joinContext concatenates chunk contents in rank order.
func joinContext(matches []similarity.Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
