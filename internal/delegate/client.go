// Package delegate calls the generation collaborators that sit beside the
// chat gateway: the code-generation edge function, the image generator and
// the VEO2 video endpoint. Each has a much larger timeout than an inline
// chat call.
package delegate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mihaisavezi/polychat/internal/chat"
	"github.com/mihaisavezi/polychat/internal/fetch"
)

type Kind string

const (
	KindCode  Kind = "code"
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

const (
	CodeTimeout  = 120 * time.Second
	ImageTimeout = 90 * time.Second
	VideoTimeout = 60 * time.Second

	DefaultVideoMessage = "Video generation request submitted. Your video will be ready shortly."
	VideoModel          = "veo-2"

	defaultVideoDuration    = 5
	defaultVideoAspectRatio = "16:9"
)

// ErrDisabled is returned for a delegate with no endpoint configured.
var ErrDisabled = errors.New("delegate is not configured")

type Endpoints struct {
	Code  string
	Image string
	Video string
}

// CodeRequest mirrors the chat request shape the edge function accepts.
type CodeRequest struct {
	Messages        []chat.Message `json:"messages"`
	Provider        string         `json:"provider"`
	APIKey          string         `json:"apiKey"`
	Model           string         `json:"model"`
	CustomModelName string         `json:"customModelName,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
}

type CodeResult struct {
	Content string
	Model   string
}

type ImageRequest struct {
	Prompt   string `json:"prompt"`
	Model    string `json:"model"`
	Provider string `json:"provider"`

	// sent as headers, never in the body
	GeminiAPIKey string `json:"-"`
	OpenAIAPIKey string `json:"-"`
	RunwayAPIKey string `json:"-"`
}

type ImageResult struct {
	ImageURL string
	Provider string
	Model    string
}

type VideoRequest struct {
	Prompt      string `json:"prompt"`
	APIKey      string `json:"apiKey"`
	Duration    int    `json:"duration"`
	AspectRatio string `json:"aspectRatio"`
}

type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(endpoints Endpoints, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		endpoints:  endpoints,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Has reports whether the delegate of the given kind is configured.
func (c *Client) Has(kind Kind) bool {
	return c.endpoint(kind) != ""
}

func (c *Client) endpoint(kind Kind) string {
	switch kind {
	case KindCode:
		return c.endpoints.Code
	case KindImage:
		return c.endpoints.Image
	case KindVideo:
		return c.endpoints.Video
	default:
		return ""
	}
}

func (c *Client) GenerateCode(ctx context.Context, req CodeRequest) (*CodeResult, error) {
	body, err := c.post(ctx, KindCode, req, nil, CodeTimeout)
	if err != nil {
		return nil, err
	}

	content := body.Get("content").String()
	if content == "" {
		content = body.Get("response").String()
	}

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("code delegate returned no content")
	}

	model := body.Get("model").String()
	if model == "" {
		model = req.Model
	}

	return &CodeResult{Content: content, Model: model}, nil
}

func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	headers := map[string]string{}
	if req.GeminiAPIKey != "" {
		headers["X-Gemini-Api-Key"] = req.GeminiAPIKey
	}

	if req.OpenAIAPIKey != "" {
		headers["X-OpenAI-Api-Key"] = req.OpenAIAPIKey
	}

	if req.RunwayAPIKey != "" {
		headers["X-Runway-Api-Key"] = req.RunwayAPIKey
	}

	body, err := c.post(ctx, KindImage, req, headers, ImageTimeout)
	if err != nil {
		return nil, err
	}

	res := &ImageResult{
		ImageURL: body.Get("imageUrl").String(),
		Provider: body.Get("provider").String(),
		Model:    body.Get("model").String(),
	}

	if res.ImageURL == "" {
		return nil, fmt.Errorf("image delegate returned no image")
	}

	if res.Provider == "" {
		res.Provider = req.Provider
	}

	if res.Model == "" {
		res.Model = req.Model
	}

	return res, nil
}

// GenerateVideo submits a VEO2 job. The returned text is a status message,
// not conversational content.
func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) (string, error) {
	if req.Duration == 0 {
		req.Duration = defaultVideoDuration
	}

	if req.AspectRatio == "" {
		req.AspectRatio = defaultVideoAspectRatio
	}

	body, err := c.post(ctx, KindVideo, req, nil, VideoTimeout)
	if err != nil {
		return "", err
	}

	if msg := body.Get("data.message").String(); msg != "" {
		return msg, nil
	}

	return DefaultVideoMessage, nil
}

func (c *Client) post(ctx context.Context, kind Kind, payload any, headers map[string]string, timeout time.Duration) (gjson.Result, error) {
	endpoint := c.endpoint(kind)
	if endpoint == "" {
		return gjson.Result{}, ErrDisabled
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("marshal %s delegate request: %w", kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("create %s delegate request: %w", kind, err)
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("Calling delegate", "kind", kind, "endpoint", endpoint, "timeout", timeout)

	msg := fetch.TimeoutMessage(fetch.Caller{Edge: true, Code: kind == KindCode}, timeout)

	resp, err := fetch.Do(ctx, c.httpClient, req, timeout, msg)
	if err != nil {
		return gjson.Result{}, err
	}

	body, err := fetch.ReadBody(resp)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read %s delegate response: %w", kind, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := gjson.GetBytes(body, "error").String()
		return gjson.Result{}, fmt.Errorf("%s delegate failed with status %d: %s", kind, resp.StatusCode, detail)
	}

	return fetch.SafeJSONParse(body, string(kind)+" delegate")
}
