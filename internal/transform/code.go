// Package transform rewrites the outgoing message list: code-generation and
// web-search prompt injection, and reshaping into each vendor's multimodal
// message format.
package transform

import (
	"fmt"

	"github.com/mihaisavezi/polychat/internal/chat"
)

// CodeInstructionHeader opens the code-generation block.
const CodeInstructionHeader = "CODE GENERATION REQUEST"

const codeTemplate = `%s

User request:
"""
%s
"""

Requirements:
1. Produce complete, self-contained code that runs immediately without any edits or missing pieces.
2. For web pages, put HTML, CSS and JavaScript in a single file inside one fenced code block.
3. For other languages, include every import and a runnable entry point or usage example.
4. Use modern, idiomatic syntax and handle obvious error cases.
5. Keep prose to a minimum: at most two short sentences before the code and none after it.
6. Do not use placeholders such as "..." or "rest of the code here".

Respond with the code now.`

// CodePrompt embeds the user's original text verbatim in the code template.
func CodePrompt(original string) string {
	return fmt.Sprintf(codeTemplate, CodeInstructionHeader, original)
}

// InjectCodeGeneration replaces the last user message content with the code
// template. The input slice is left untouched.
func InjectCodeGeneration(msgs []chat.Message) []chat.Message {
	out := chat.Clone(msgs)

	if i := chat.LastUserIndex(out); i >= 0 {
		out[i].Content = CodePrompt(out[i].Content)
	}

	return out
}
