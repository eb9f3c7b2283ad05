package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mihaisavezi/polychat/internal/chat"
	"github.com/mihaisavezi/polychat/internal/process"
)

// vendorKeyEnv names the environment variable ask reads a provider key from
// when --key is not given.
var vendorKeyEnv = map[string]string{
	chat.ProviderOpenAI:     "OPENAI_API_KEY",
	chat.ProviderClaude:     "ANTHROPIC_API_KEY",
	chat.ProviderGemini:     "GEMINI_API_KEY",
	chat.ProviderDeepSeek:   "DEEPSEEK_API_KEY",
	chat.ProviderGrok:       "XAI_API_KEY",
	chat.ProviderOpenRouter: "OPENROUTER_API_KEY",
	chat.ProviderMistral:    "MISTRAL_API_KEY",
	chat.ProviderVEO2:       "GEMINI_API_KEY",
	chat.ProviderRunway:     "RUNWAY_API_KEY",
}

var askCmd = &cobra.Command{
	Use:   "ask [prompt...]",
	Short: "Send one prompt through the gateway",
	Long:  `Start the gateway if needed, send a single-turn chat request and render the reply as markdown.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringP("provider", "p", chat.ProviderOpenAI, "provider id")
	askCmd.Flags().StringP("model", "m", "", "model id (defaults to the provider's default model)")
	askCmd.Flags().StringP("key", "k", "", "provider API key (defaults to the provider's usual env var)")
	askCmd.Flags().BoolP("search", "s", false, "augment the prompt with web search")
	askCmd.Flags().Bool("enhanced", false, "use enhanced web search with page extraction")
	askCmd.Flags().BoolP("code", "c", false, "enable code mode")
	askCmd.Flags().String("location", "", "two-letter country code for search")
	askCmd.Flags().Bool("raw", false, "print the reply without markdown rendering")
}

func runAsk(cmd *cobra.Command, args []string) error {
	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	key, _ := cmd.Flags().GetString("key")
	search, _ := cmd.Flags().GetBool("search")
	enhanced, _ := cmd.Flags().GetBool("enhanced")
	code, _ := cmd.Flags().GetBool("code")
	location, _ := cmd.Flags().GetString("location")
	raw, _ := cmd.Flags().GetBool("raw")

	if key == "" {
		key = os.Getenv(vendorKeyEnv[provider])
	}

	if model == "" {
		if a, ok := newRegistry().Get(provider); ok {
			model = a.DefaultModel()
		}
	}

	req := chat.Request{
		Messages:              []chat.Message{{Role: chat.RoleUser, Content: strings.Join(args, " ")}},
		Provider:              provider,
		APIKey:                key,
		Model:                 model,
		WebSearchEnabled:      chat.FlexBool(search || enhanced),
		EnhancedWebSearch:     chat.FlexBool(enhanced),
		CodeGenerationEnabled: chat.FlexBool(code),
		UserLocation:          location,
	}

	// Fail fast before starting anything.
	if err := req.Validate(); err != nil {
		return err
	}

	procMgr := process.NewManager(baseDir)

	started, err := procMgr.EnsureRunning(cmd.Context())
	if err != nil {
		return err
	}

	if started {
		color.Yellow("Started %s in the background", AppName)
	}

	cfg := cfgMgr.Get()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if st, ok := procMgr.Read(); ok && st.Addr != "" {
		addr = st.Addr
	}

	url := "http://" + addr + "/api/chat"

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout()+3*time.Minute)
	defer cancel()

	env, err := postChat(ctx, url, cfg.APIKey, req)
	if err != nil {
		return err
	}

	out := env.Response
	if env.ImageURL != "" && !strings.Contains(out, env.ImageURL) {
		out += "\n\n" + env.ImageURL
	}

	if !raw {
		if rendered, err := renderMarkdown(out); err == nil {
			out = rendered
		} else {
			logger.Debug("Markdown rendering failed", "error", err)
		}
	}

	fmt.Println(out)

	if len(env.SearchResults) > 0 {
		color.Blue("Sources:")

		for i, r := range env.SearchResults {
			fmt.Printf("  [%d] %s\n      %s\n", i+1, r.Title, r.URL)
		}
	}

	if env.Retried {
		color.Yellow("(answered on a reduced retry)")
	}

	return nil
}

func postChat(ctx context.Context, url, gatewayKey string, req chat.Request) (*chat.Envelope, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	if gatewayKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+gatewayKey)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var eb chat.ErrorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			return nil, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, eb.Error)
		}

		return nil, fmt.Errorf("gateway returned %d", resp.StatusCode)
	}

	var env chat.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &env, nil
}

func renderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}

	return r.Render(md)
}
