// Package chat holds the request/response model shared by the gateway:
// inbound chat requests, the messages they carry, and the envelope handed
// back to the browser UI.
package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Provider ids accepted on the inbound contract.
const (
	ProviderOpenAI     = "openai"
	ProviderClaude     = "claude"
	ProviderGemini     = "gemini"
	ProviderDeepSeek   = "deepseek"
	ProviderGrok       = "grok"
	ProviderOpenRouter = "openrouter"
	ProviderMistral    = "mistral"
	ProviderVEO2       = "veo2"
	ProviderRunway     = "runway"
)

// KnownProviders lists every provider id the chat endpoint accepts.
var KnownProviders = []string{
	ProviderOpenAI,
	ProviderClaude,
	ProviderGemini,
	ProviderDeepSeek,
	ProviderGrok,
	ProviderOpenRouter,
	ProviderMistral,
	ProviderVEO2,
	ProviderRunway,
}

// IsKnownProvider reports whether name is an accepted provider id.
func IsKnownProvider(name string) bool {
	for _, p := range KnownProviders {
		if p == name {
			return true
		}
	}

	return false
}

// Attachment is a file the UI attached to a message. Type is the MIME type,
// URL is either a data URL or an external URL.
type Attachment struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

func (a Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(a.Type), "image/")
}

// Message is one turn of the conversation. Content arrives either as a plain
// string or as an array of parts; array content is flattened on decode, with
// image_url parts turned into attachments.
type Message struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	IsError     bool         `json:"isError,omitempty"`
}

type messageWire struct {
	Role        string          `json:"role"`
	Content     json.RawMessage `json:"content"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	IsError     bool            `json:"isError,omitempty"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var wire messageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	m.Role = wire.Role
	m.Attachments = wire.Attachments
	m.IsError = wire.IsError
	m.Content = ""

	raw := strings.TrimSpace(string(wire.Content))
	if raw == "" || raw == "null" {
		return nil
	}

	if raw[0] == '"' {
		return json.Unmarshal(wire.Content, &m.Content)
	}

	if raw[0] != '[' {
		return fmt.Errorf("message content must be a string or an array of parts")
	}

	var parts []contentPart
	if err := json.Unmarshal(wire.Content, &parts); err != nil {
		return fmt.Errorf("decode content parts: %w", err)
	}

	var text []string

	for _, part := range parts {
		switch part.Type {
		case "text":
			text = append(text, part.Text)
		case "image_url":
			if part.ImageURL != nil && part.ImageURL.URL != "" {
				m.Attachments = append(m.Attachments, Attachment{
					Type: mimeFromURL(part.ImageURL.URL),
					URL:  part.ImageURL.URL,
				})
			}
		}
	}

	m.Content = strings.Join(text, "\n")

	return nil
}

// Images returns the image attachments of the message.
func (m Message) Images() []Attachment {
	var images []Attachment

	for _, a := range m.Attachments {
		if a.IsImage() {
			images = append(images, a)
		}
	}

	return images
}

func (m Message) HasImages() bool {
	return len(m.Images()) > 0
}

func mimeFromURL(u string) string {
	if strings.HasPrefix(u, "data:") {
		if end := strings.IndexAny(u, ";,"); end > len("data:") {
			return u[len("data:"):end]
		}
	}

	return "image/*"
}

// FlexBool accepts both JSON booleans and their string forms ("true", "false"),
// which the UI sends interchangeably for feature toggles.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(data)), `"`))

	switch s {
	case "true", "1", "yes", "on":
		*b = true
	case "false", "0", "no", "off", "", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean value %s", data)
	}

	return nil
}

// Request is the body of POST /api/chat.
type Request struct {
	Messages              []Message `json:"messages"`
	Provider              string    `json:"provider"`
	APIKey                string    `json:"apiKey"`
	Model                 string    `json:"model"`
	Temperature           *float64  `json:"temperature,omitempty"`
	CustomModelName       string    `json:"customModelName,omitempty"`
	WebSearchEnabled      FlexBool  `json:"webSearchEnabled,omitempty"`
	EnhancedWebSearch     FlexBool  `json:"enhancedWebSearch,omitempty"`
	CodeGenerationEnabled FlexBool  `json:"codeGenerationEnabled,omitempty"`
	UserLocation          string    `json:"userLocation,omitempty"`
	IsRetry               *bool     `json:"isRetry,omitempty"`

	// Keys forwarded only to the image-generation delegate.
	GeminiAPIKey string `json:"geminiApiKey,omitempty"`
	OpenAIAPIKey string `json:"openaiApiKey,omitempty"`
	RunwayAPIKey string `json:"runwayApiKey,omitempty"`
}

// Validate checks the fields every provider needs. It never touches the network.
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return NewValidationError("Messages are required")
	}

	if strings.TrimSpace(r.Provider) == "" {
		return NewValidationError("Provider is required")
	}

	if !IsKnownProvider(r.Provider) {
		return NewValidationError(fmt.Sprintf("Unsupported provider: %s", r.Provider))
	}

	if strings.TrimSpace(r.APIKey) == "" {
		return NewValidationError("API key is required")
	}

	if strings.TrimSpace(r.Model) == "" {
		return NewValidationError("Model is required")
	}

	for i, msg := range r.Messages {
		switch msg.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return NewValidationError(fmt.Sprintf("Message %d has invalid role %q", i, msg.Role))
		}
	}

	if _, ok := LastUserMessage(r.Messages); !ok {
		return NewValidationError("A user message is required")
	}

	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return NewValidationError("Temperature must be between 0 and 2")
	}

	return nil
}

// SearchResult is one hit returned by the web-search collaborator.
type SearchResult struct {
	Title            string `json:"title"`
	URL              string `json:"url"`
	Snippet          string `json:"snippet"`
	ExtractedContent string `json:"extractedContent,omitempty"`
	Source           string `json:"source,omitempty"`
}

// Envelope is the only structure returned to the UI on success. It is built
// once per request and not modified afterwards.
type Envelope struct {
	Response        string         `json:"response"`
	Content         string         `json:"content,omitempty"`
	Model           string         `json:"model"`
	Provider        string         `json:"provider"`
	SearchResults   []SearchResult `json:"searchResults"`
	IsError         bool           `json:"isError,omitempty"`
	CodeGeneration  bool           `json:"codeGeneration,omitempty"`
	ImageGeneration bool           `json:"imageGeneration,omitempty"`
	VideoGeneration bool           `json:"videoGeneration,omitempty"`
	EdgeFunction    bool           `json:"edgeFunction,omitempty"`
	ImageURL        string         `json:"imageUrl,omitempty"`
	Retried         bool           `json:"retried,omitempty"`
}

// ErrorBody is written for every non-200 chat response.
type ErrorBody struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	Model     string `json:"model,omitempty"`
	Provider  string `json:"provider,omitempty"`
}
