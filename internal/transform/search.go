package transform

import (
	"fmt"
	"strings"

	"github.com/mihaisavezi/polychat/internal/chat"
)

// SearchContextHeader opens the web-search block.
const SearchContextHeader = "WEB SEARCH RESULTS"

const maxExtractChars = 1500

// SearchSupported reports whether search context is injected for provider.
func SearchSupported(provider string) bool {
	return provider == chat.ProviderGemini || provider == chat.ProviderGrok
}

// SearchPrompt builds the query followed by a numbered source list and
// citation instructions.
func SearchPrompt(query string, results []chat.SearchResult) string {
	var sb strings.Builder

	sb.WriteString(query)
	sb.WriteString("\n\n")
	sb.WriteString(SearchContextHeader)
	sb.WriteString(":\n")

	for i, r := range results {
		fmt.Fprintf(&sb, "\n[%d] %s\n", i+1, strings.TrimSpace(r.Title))
		fmt.Fprintf(&sb, "URL: %s\n", r.URL)

		if r.Source != "" {
			fmt.Fprintf(&sb, "Source: %s\n", r.Source)
		}

		if r.Snippet != "" {
			fmt.Fprintf(&sb, "Summary: %s\n", strings.TrimSpace(r.Snippet))
		}

		if r.ExtractedContent != "" {
			fmt.Fprintf(&sb, "Content: %s\n", truncate(strings.TrimSpace(r.ExtractedContent), maxExtractChars))
		}
	}

	sb.WriteString(`
Instructions:
- Answer the question using the sources above.
- Cite every fact taken from a source with its number in square brackets, for example [1] or [2][3].
- Only cite sources listed above. Never invent sources or URLs.
- If the sources do not answer the question, say so before answering from general knowledge.
- End with a "Sources:" section listing each cited number with its title and URL.`)

	return sb.String()
}

// InjectSearchContext replaces the last user message content with the
// search prompt built from its original text.
func InjectSearchContext(msgs []chat.Message, results []chat.SearchResult) []chat.Message {
	out := chat.Clone(msgs)

	if len(results) == 0 {
		return out
	}

	if i := chat.LastUserIndex(out); i >= 0 {
		out[i].Content = SearchPrompt(out[i].Content, results)
	}

	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n]) + "..."
}
