package transform

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaisavezi/polychat/internal/chat"
)

const pngDataURL = "data:image/png;base64,iVBORw0KGgo="

func withImages(text string, urls ...string) chat.Message {
	m := chat.Message{Role: chat.RoleUser, Content: text}
	for _, u := range urls {
		m.Attachments = append(m.Attachments, chat.Attachment{Type: "image/png", URL: u, Name: "shot.png"})
	}

	return m
}

func TestInjectCodeGeneration(t *testing.T) {
	msgs := []chat.Message{
		{Role: chat.RoleUser, Content: "first"},
		{Role: chat.RoleAssistant, Content: "ok"},
		{Role: chat.RoleUser, Content: "Create a website for my bakery"},
	}

	out := InjectCodeGeneration(msgs)

	require.Len(t, out, 3)
	assert.True(t, strings.HasPrefix(out[2].Content, CodeInstructionHeader))
	assert.Contains(t, out[2].Content, "Create a website for my bakery")
	assert.Equal(t, "first", out[0].Content)
	assert.Equal(t, "Create a website for my bakery", msgs[2].Content)
}

func TestInjectSearchContext(t *testing.T) {
	msgs := []chat.Message{{Role: chat.RoleUser, Content: "latest Go release?"}}
	results := []chat.SearchResult{
		{Title: "Go 1.24 is released", URL: "https://go.dev/blog/go1.24", Snippet: "Today the Go team...", Source: "go.dev"},
		{Title: "Release history", URL: "https://go.dev/doc/devel/release", ExtractedContent: strings.Repeat("x", 2000)},
	}

	out := InjectSearchContext(msgs, results)
	content := out[0].Content

	assert.True(t, strings.HasPrefix(content, "latest Go release?"))
	assert.Contains(t, content, SearchContextHeader)
	assert.Contains(t, content, "[1] Go 1.24 is released")
	assert.Contains(t, content, "URL: https://go.dev/doc/devel/release")
	assert.Contains(t, content, "Source: go.dev")
	assert.Contains(t, content, strings.Repeat("x", maxExtractChars)+"...")
	assert.NotContains(t, content, strings.Repeat("x", maxExtractChars+1))
	assert.Contains(t, content, "Sources:")

	same := InjectSearchContext(msgs, nil)
	assert.Equal(t, "latest Go release?", same[0].Content)
}

func TestSearchSupported(t *testing.T) {
	assert.True(t, SearchSupported(chat.ProviderGemini))
	assert.True(t, SearchSupported(chat.ProviderGrok))
	assert.False(t, SearchSupported(chat.ProviderOpenAI))
	assert.False(t, SearchSupported(chat.ProviderClaude))
}

func TestToOpenAI(t *testing.T) {
	msgs := []chat.Message{
		withImages("old turn", "https://example.com/old.png"),
		{Role: chat.RoleAssistant, Content: "seen"},
		withImages("what is this?", pngDataURL, "https://example.com/b.png"),
	}

	out := ToOpenAI(msgs)
	require.Len(t, out, 3)

	// only the last user message carries images
	assert.Equal(t, "old turn", out[0].Content)

	parts, ok := out[2].Content.([]OpenAIPart)
	require.True(t, ok)
	require.Len(t, parts, 3)
	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, pngDataURL, parts[1].ImageURL.URL)
	assert.Equal(t, "https://example.com/b.png", parts[2].ImageURL.URL)
}

func TestToClaude(t *testing.T) {
	msgs := []chat.Message{
		{Role: chat.RoleSystem, Content: "be terse"},
		withImages("describe", pngDataURL),
	}

	system, out, err := ToClaude(msgs)
	require.NoError(t, err)
	assert.Equal(t, "be terse", system)
	require.Len(t, out, 1)

	blocks, ok := out[0].Content.([]ClaudeBlock)
	require.True(t, ok)
	require.Len(t, blocks, 2)
	assert.Equal(t, "image", blocks[0].Type)
	assert.Equal(t, "image/png", blocks[0].Source.MediaType)
	assert.Equal(t, "iVBORw0KGgo=", blocks[0].Source.Data)
	assert.Equal(t, "describe", blocks[1].Text)
}

func TestImageOnlyMessageHasNoEmptyText(t *testing.T) {
	msgs := []chat.Message{withImages("", pngDataURL)}

	t.Run("openai", func(t *testing.T) {
		out := ToOpenAI(msgs)
		require.Len(t, out, 1)

		parts, ok := out[0].Content.([]OpenAIPart)
		require.True(t, ok)
		require.Len(t, parts, 1)
		assert.Equal(t, "image_url", parts[0].Type)

		data, err := json.Marshal(out)
		require.NoError(t, err)
		assert.NotContains(t, string(data), `"type":"text"`)
	})

	t.Run("claude", func(t *testing.T) {
		_, out, err := ToClaude(msgs)
		require.NoError(t, err)
		require.Len(t, out, 1)

		blocks, ok := out[0].Content.([]ClaudeBlock)
		require.True(t, ok)
		require.Len(t, blocks, 1)
		assert.Equal(t, "image", blocks[0].Type)

		data, err := json.Marshal(out)
		require.NoError(t, err)
		assert.NotContains(t, string(data), `"type":"text"`)
	})

	t.Run("whitespace only", func(t *testing.T) {
		out := ToOpenAI([]chat.Message{withImages("  \n", pngDataURL)})

		parts, ok := out[0].Content.([]OpenAIPart)
		require.True(t, ok)
		assert.Len(t, parts, 1)
	})
}

func TestToClaudeRejectsExternalURL(t *testing.T) {
	_, _, err := ToClaude([]chat.Message{withImages("describe", "https://example.com/cat.png")})

	var ce *chat.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, chat.KindValidation, ce.Kind)
	assert.Contains(t, ce.Message, "base64")
	assert.Contains(t, ce.Message, "shot.png")
}

func TestToGemini(t *testing.T) {
	msgs := []chat.Message{
		{Role: chat.RoleSystem, Content: "sys"},
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello"},
		withImages("", pngDataURL, "https://example.com/x.png"),
	}

	system, out := ToGemini(msgs)
	require.NotNil(t, system)
	assert.Equal(t, "sys", system.Parts[0].Text)

	require.Len(t, out, 3)
	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "model", out[1].Role)

	parts := out[2].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/png", parts[0].InlineData.MimeType)
	assert.Equal(t, "[Image: https://example.com/x.png]", parts[1].Text)

	_, noSys := ToGemini([]chat.Message{{Role: chat.RoleUser}})
	assert.Equal(t, " ", noSys[0].Parts[0].Text)
}

func TestToText(t *testing.T) {
	msgs := []chat.Message{withImages("what are these", pngDataURL, pngDataURL)}

	out := ToText(msgs)
	assert.Equal(t, "[2 images attached] what are these", out[0].Content)
	assert.Nil(t, out[0].Attachments)
	assert.Len(t, msgs[0].Attachments, 2)

	one := ToText([]chat.Message{withImages("this?", pngDataURL)})
	assert.Equal(t, "[1 image attached] this?", one[0].Content)
}

func TestParseDataURL(t *testing.T) {
	tests := []struct {
		in   string
		mime string
		ok   bool
	}{
		{in: pngDataURL, mime: "image/png", ok: true},
		{in: "data:;base64,AAAA", mime: "", ok: true},
		{in: "data:image/png,rawdata", ok: false},
		{in: "data:image/png;base64,", ok: false},
		{in: "https://example.com/a.png", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			mime, _, ok := ParseDataURL(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.mime, mime)
		})
	}
}
