package chat

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexBool(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
		wantErr  bool
	}{
		{input: `true`, expected: true},
		{input: `false`, expected: false},
		{input: `"true"`, expected: true},
		{input: `"false"`, expected: false},
		{input: `"1"`, expected: true},
		{input: `null`, expected: false},
		{input: `""`, expected: false},
		{input: `"maybe"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var b FlexBool
			err := json.Unmarshal([]byte(tt.input), &b)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, bool(b))
		})
	}
}

func TestMessageUnmarshalContentParts(t *testing.T) {
	raw := `{
		"role": "user",
		"content": [
			{"type": "text", "text": "What is in this picture?"},
			{"type": "image_url", "image_url": {"url": "data:image/png;base64,AAAA"}},
			{"type": "text", "text": "Be brief."}
		]
	}`

	var m Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	assert.Equal(t, RoleUser, m.Role)
	assert.Equal(t, "What is in this picture?\nBe brief.", m.Content)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "image/png", m.Attachments[0].Type)
	assert.True(t, strings.HasPrefix(m.Attachments[0].URL, "data:image/png;base64,"))
	assert.True(t, m.HasImages())
}

func TestMessageUnmarshalStringContent(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"assistant","content":"hi","isError":true}`), &m))

	assert.Equal(t, "hi", m.Content)
	assert.True(t, m.IsError)
	assert.False(t, m.HasImages())

	err := json.Unmarshal([]byte(`{"role":"user","content":42}`), &m)
	assert.Error(t, err)
}

func TestMessageImagesSkipsDocuments(t *testing.T) {
	m := Message{
		Role: RoleUser,
		Attachments: []Attachment{
			{Type: "application/pdf", URL: "https://example.com/a.pdf"},
			{Type: "image/jpeg", URL: "https://example.com/a.jpg"},
		},
	}

	images := m.Images()
	require.Len(t, images, 1)
	assert.Equal(t, "image/jpeg", images[0].Type)
	assert.Equal(t, "https://example.com/a.jpg", images[0].URL)
}

func TestRequestValidate(t *testing.T) {
	valid := func() Request {
		return Request{
			Messages: []Message{{Role: RoleUser, Content: "hello"}},
			Provider: ProviderOpenAI,
			APIKey:   "sk-test",
			Model:    "gpt-4o",
		}
	}

	hot := 2.5

	tests := []struct {
		name    string
		mutate  func(r *Request)
		message string
	}{
		{name: "valid", mutate: func(r *Request) {}},
		{name: "no messages", mutate: func(r *Request) { r.Messages = nil }, message: "Messages are required"},
		{name: "no provider", mutate: func(r *Request) { r.Provider = " " }, message: "Provider is required"},
		{name: "unknown provider", mutate: func(r *Request) { r.Provider = "cohere" }, message: "Unsupported provider: cohere"},
		{name: "no key", mutate: func(r *Request) { r.APIKey = "" }, message: "API key is required"},
		{name: "no model", mutate: func(r *Request) { r.Model = "" }, message: "Model is required"},
		{name: "bad role", mutate: func(r *Request) { r.Messages[0].Role = "tool" }, message: `Message 0 has invalid role "tool"`},
		{name: "no user message", mutate: func(r *Request) { r.Messages[0].Role = RoleAssistant }, message: "A user message is required"},
		{name: "temperature out of range", mutate: func(r *Request) { r.Temperature = &hot }, message: "Temperature must be between 0 and 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)

			err := r.Validate()
			if tt.message == "" {
				assert.NoError(t, err)
				return
			}

			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, KindValidation, ce.Kind)
			assert.Equal(t, tt.message, ce.Message)
		})
	}
}

func TestRequestDecodeStringToggles(t *testing.T) {
	raw := `{
		"messages": [{"role": "user", "content": "hi"}],
		"provider": "grok",
		"apiKey": "k",
		"model": "grok-3",
		"webSearchEnabled": "true",
		"codeGenerationEnabled": false,
		"isRetry": true
	}`

	var r Request
	require.NoError(t, json.Unmarshal([]byte(raw), &r))

	assert.True(t, bool(r.WebSearchEnabled))
	assert.False(t, bool(r.CodeGenerationEnabled))
	require.NotNil(t, r.IsRetry)
	assert.True(t, *r.IsRetry)
	assert.NoError(t, r.Validate())
}

func TestMessageHelpers(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "one"},
		{Role: RoleAssistant, Content: "oops", IsError: true},
		{Role: RoleUser, Content: "two", Attachments: []Attachment{{Type: "image/png", URL: "u"}}},
		{Role: RoleAssistant, Content: "three"},
	}

	assert.Equal(t, 2, LastUserIndex(msgs))
	assert.Equal(t, -1, LastUserIndex(msgs[3:]))

	last, ok := LastUserMessage(msgs)
	require.True(t, ok)
	assert.Equal(t, "two", last.Content)

	clean := WithoutErrors(msgs)
	assert.Len(t, clean, 3)

	tail := Tail(msgs, 2)
	require.Len(t, tail, 2)
	assert.Equal(t, "two", tail[0].Content)

	tail[0].Attachments[0].URL = "changed"
	assert.Equal(t, "u", msgs[2].Attachments[0].URL)

	assert.Len(t, Tail(msgs, 10), 4)
}
