package transform

import (
	"fmt"
	"strings"

	"github.com/mihaisavezi/polychat/internal/chat"
)

// OpenAI chat-completions message. Content is a string, or []OpenAIPart for
// a message carrying images.
type OpenAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type OpenAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *OpenAIImageURL `json:"image_url,omitempty"`
}

type OpenAIImageURL struct {
	URL string `json:"url"`
}

// Anthropic Messages API message. Content is a string or []ClaudeBlock.
type ClaudeMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ClaudeBlock struct {
	Type   string             `json:"type"`
	Text   string             `json:"text,omitempty"`
	Source *ClaudeImageSource `json:"source,omitempty"`
}

type ClaudeImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Gemini generateContent content entry.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GeminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *GeminiInlineData `json:"inline_data,omitempty"`
}

type GeminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// ToOpenAI converts msgs; when the last user message has images its content
// becomes text + image_url parts. URLs are passed through unchanged.
func ToOpenAI(msgs []chat.Message) []OpenAIMessage {
	last := chat.LastUserIndex(msgs)
	out := make([]OpenAIMessage, 0, len(msgs))

	for i, m := range msgs {
		images := m.Images()
		if i != last || len(images) == 0 {
			out = append(out, OpenAIMessage{Role: m.Role, Content: m.Content})
			continue
		}

		var parts []OpenAIPart
		if strings.TrimSpace(m.Content) != "" {
			parts = append(parts, OpenAIPart{Type: "text", Text: m.Content})
		}

		for _, img := range images {
			parts = append(parts, OpenAIPart{
				Type:     "image_url",
				ImageURL: &OpenAIImageURL{URL: img.URL},
			})
		}

		out = append(out, OpenAIMessage{Role: m.Role, Content: parts})
	}

	return out
}

// ToClaude splits system messages out (Anthropic takes them separately) and
// converts images on the last user message into base64 blocks. External
// image URLs are rejected: only inline base64 data is accepted.
func ToClaude(msgs []chat.Message) (string, []ClaudeMessage, error) {
	last := chat.LastUserIndex(msgs)

	var (
		system []string
		out    = make([]ClaudeMessage, 0, len(msgs))
	)

	for i, m := range msgs {
		if m.Role == chat.RoleSystem {
			system = append(system, m.Content)
			continue
		}

		images := m.Images()
		if i != last || len(images) == 0 {
			out = append(out, ClaudeMessage{Role: m.Role, Content: m.Content})
			continue
		}

		var blocks []ClaudeBlock

		for n, img := range images {
			mime, data, ok := ParseDataURL(img.URL)
			if !ok {
				return "", nil, &chat.Error{
					Kind:     chat.KindValidation,
					Message:  fmt.Sprintf("Claude requires base64 image data; image %d (%s) is an external URL. Please upload the image file instead of linking it.", n+1, nameOrURL(img)),
					Provider: chat.ProviderClaude,
				}
			}

			if mime == "" {
				mime = img.Type
			}

			blocks = append(blocks, ClaudeBlock{
				Type:   "image",
				Source: &ClaudeImageSource{Type: "base64", MediaType: mime, Data: data},
			})
		}

		// an empty text block is rejected by the API
		if strings.TrimSpace(m.Content) != "" {
			blocks = append(blocks, ClaudeBlock{Type: "text", Text: m.Content})
		}

		out = append(out, ClaudeMessage{Role: m.Role, Content: blocks})
	}

	return strings.Join(system, "\n\n"), out, nil
}

// ToGemini rebuilds the whole list as {role, parts}. Assistant turns use the
// "model" role and system messages become the system instruction. Data URL
// images become inline_data parts. inline_data cannot point at a URL, so
// external images are referenced in a text part the model can still read.
func ToGemini(msgs []chat.Message) (*GeminiContent, []GeminiContent) {
	var (
		system []GeminiPart
		out    = make([]GeminiContent, 0, len(msgs))
	)

	for _, m := range msgs {
		if m.Role == chat.RoleSystem {
			system = append(system, GeminiPart{Text: m.Content})
			continue
		}

		role := "user"
		if m.Role == chat.RoleAssistant {
			role = "model"
		}

		var parts []GeminiPart
		if m.Content != "" {
			parts = append(parts, GeminiPart{Text: m.Content})
		}

		for _, img := range m.Images() {
			mime, data, ok := ParseDataURL(img.URL)
			if !ok {
				parts = append(parts, GeminiPart{Text: fmt.Sprintf("[Image: %s]", img.URL)})
				continue
			}

			if mime == "" {
				mime = img.Type
			}

			parts = append(parts, GeminiPart{InlineData: &GeminiInlineData{MimeType: mime, Data: data}})
		}

		if len(parts) == 0 {
			parts = []GeminiPart{{Text: " "}}
		}

		out = append(out, GeminiContent{Role: role, Parts: parts})
	}

	if len(system) == 0 {
		return nil, out
	}

	return &GeminiContent{Parts: system}, out
}

// ToText is the fallback for providers that receive no images: the last user
// message is prefixed with a marker saying how many were attached.
func ToText(msgs []chat.Message) []chat.Message {
	out := chat.Clone(msgs)

	i := chat.LastUserIndex(out)
	if i < 0 {
		return out
	}

	if n := len(out[i].Images()); n > 0 {
		noun := "images"
		if n == 1 {
			noun = "image"
		}

		out[i].Content = fmt.Sprintf("[%d %s attached] %s", n, noun, out[i].Content)
	}

	for j := range out {
		out[j].Attachments = nil
	}

	return out
}

// ParseDataURL splits "data:<mime>;base64,<data>". Only base64 data URLs
// are accepted.
func ParseDataURL(u string) (mime, data string, ok bool) {
	if !strings.HasPrefix(u, "data:") {
		return "", "", false
	}

	meta, payload, found := strings.Cut(u[len("data:"):], ",")
	if !found || payload == "" {
		return "", "", false
	}

	params := strings.Split(meta, ";")
	if params[len(params)-1] != "base64" {
		return "", "", false
	}

	return params[0], payload, true
}

func nameOrURL(a chat.Attachment) string {
	if a.Name != "" {
		return a.Name
	}

	return a.URL
}
