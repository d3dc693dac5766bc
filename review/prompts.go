package review

import (
	"fmt"
	"strings"
)

// systemPrompt pins the model to a closed label set. The parser rejects
// anything outside the Answer:/Reason: shape, so the instructions and the
// parser have to stay in sync.
const systemPrompt = `You evaluate whether a document satisfies a review question.
You are given excerpts from the document and one question.
Answer using ONLY the excerpts. Do not use outside knowledge.

Respond in exactly this format:
Answer: <Yes|Maybe|No|-1>
Reason: <one sentence>

Label meanings:
- Yes: the excerpts clearly satisfy the question.
- Maybe: the excerpts partially or ambiguously address the question.
- No: the excerpts address the topic and the answer is negative.
- -1: the excerpts contain no evidence either way.

When evidence is thin, prefer Maybe or -1 over guessing.`

// buildUserPrompt assembles the grounding prompt from retrieved chunk texts
// and the question.
func buildUserPrompt(question string, chunkTexts []string) string {
	var b strings.Builder
	b.WriteString("Document excerpts:\n\n")
	for i, text := range chunkTexts {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(text))
	}
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}
