// Package classify decides what kind of request a chat turn is: a code
// generation request, an image generation request, a retry, or plain chat.
package classify

import (
	"regexp"
	"strings"

	"github.com/mihaisavezi/polychat/internal/chat"
)

// RetryMarker is the label of the UI's retry button. Its presence in an
// assistant message means the user is replaying a failed turn.
const RetryMarker = "Try Again"

// Evaluated in order; the first match wins.
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)create.*website`),
	regexp.MustCompile(`(?i)build.*app`),
	regexp.MustCompile(`(?i)html.*css`),
	regexp.MustCompile(`(?i)(create|build|make|design).*(web ?page|landing page|site|dashboard|portfolio)`),
	regexp.MustCompile(`(?i)(create|build|make|write).*(game|calculator|todo|to-do|component|widget)`),
	regexp.MustCompile(`(?i)write.*(function|code|script|program|class|method|query)`),
	regexp.MustCompile(`(?i)(generate|implement).*code`),
	regexp.MustCompile(`(?i)code (for|to|that)`),
	regexp.MustCompile(`(?i)(react|vue|svelte|angular|javascript|typescript|python|golang|java|rust).*(app|component|program|script|function)`),
}

var imagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(generate|create|draw|paint|make|render|design|produce|sketch)\b.*\b(image|picture|photo|drawing|painting|illustration|artwork|portrait|logo|wallpaper)s?\b`),
	regexp.MustCompile(`(?i)\b(image|picture|photo|illustration) of\b`),
}

// Input is everything the classifier looks at.
type Input struct {
	Messages              []chat.Message
	CodeGenerationEnabled bool
	Model                 string

	// ExplicitRetry, when set, overrides the retry heuristic.
	ExplicitRetry *bool
}

type Result struct {
	IsCodeRequest  bool
	IsImageRequest bool
	IsRetry        bool
	HasImages      bool
	CodePattern    string
}

// Classify is a pure function of its input.
func Classify(in Input) Result {
	res := Result{
		IsRetry:        IsRetry(in.Messages, in.ExplicitRetry),
		IsImageRequest: IsImageModel(in.Model),
	}

	last, ok := chat.LastUserMessage(in.Messages)
	if !ok {
		return res
	}

	res.HasImages = last.HasImages()

	if !res.IsImageRequest {
		res.IsImageRequest = MatchImage(last.Content)
	}

	if in.CodeGenerationEnabled && !res.IsRetry && !res.HasImages {
		res.CodePattern, res.IsCodeRequest = MatchCode(last.Content)
	}

	return res
}

// MatchCode returns the first code pattern matching text.
func MatchCode(text string) (string, bool) {
	for _, p := range codePatterns {
		if p.MatchString(text) {
			return p.String(), true
		}
	}

	return "", false
}

func MatchImage(text string) bool {
	for _, p := range imagePatterns {
		if p.MatchString(text) {
			return true
		}
	}

	return false
}

// IsImageModel reports Runway generation models, which only produce images.
func IsImageModel(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "gen2") || strings.Contains(m, "gen3")
}

// IsRetry uses the explicit flag when the client sent one. Without it, any
// assistant message containing RetryMarker marks the list as a retry.
func IsRetry(msgs []chat.Message, explicit *bool) bool {
	if explicit != nil {
		return *explicit
	}

	for _, m := range msgs {
		if m.Role == chat.RoleAssistant && strings.Contains(m.Content, RetryMarker) {
			return true
		}
	}

	return false
}
