package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mihaisavezi/polychat/internal/chat"
)

const (
	DefaultPort           = 6970
	DefaultHost           = "127.0.0.1"
	DefaultConfigFilename = "config.json"
	DefaultYAMLFilename   = "config.yaml"
	DefaultHistoryFile    = "history.db"

	DefaultRequestTimeoutSeconds = 120
)

// Environment overrides, applied after the file is read.
const (
	EnvHost        = "POLYCHAT_HOST"
	EnvPort        = "POLYCHAT_PORT"
	EnvAPIKey      = "POLYCHAT_API_KEY"
	EnvPublicURL   = "POLYCHAT_PUBLIC_URL"
	EnvBraveAPIKey = "BRAVE_API_KEY"
)

// Collaborator paths below PublicURL.
const (
	GenerateCodePath  = "/api/generate-code"
	GenerateImagePath = "/api/generate-image"
	VideoPath         = "/api/veo2"
)

type SearchConfig struct {
	// Endpoint of a remote /api/web-search. Empty means the gateway
	// searches itself with the Brave API.
	Endpoint    string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	BraveAPIKey string `json:"brave_api_key,omitempty" yaml:"brave_api_key,omitempty"`
	MaxResults  int    `json:"max_results,omitempty" yaml:"max_results,omitempty"`
}

type DelegatesConfig struct {
	CodeURL  string `json:"code_url,omitempty" yaml:"code_url,omitempty"`
	ImageURL string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	VideoURL string `json:"video_url,omitempty" yaml:"video_url,omitempty"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

type HistoryConfig struct {
	Enabled bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ProviderOverride customises one chat provider. Extra holds JSON paths
// merged into every outgoing request body, e.g. {"top_p": 0.9}.
type ProviderOverride struct {
	BaseURL string         `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Extra   map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

type Config struct {
	Host           string   `json:"host,omitempty" yaml:"host,omitempty"`
	Port           int      `json:"port,omitempty" yaml:"port,omitempty"`
	APIKey         string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
	PublicURL      string   `json:"public_url,omitempty" yaml:"public_url,omitempty"`

	RequestTimeoutSeconds int `json:"request_timeout_seconds,omitempty" yaml:"request_timeout_seconds,omitempty"`

	Search    SearchConfig                `json:"search,omitempty" yaml:"search,omitempty"`
	Delegates DelegatesConfig             `json:"delegates,omitempty" yaml:"delegates,omitempty"`
	History   HistoryConfig               `json:"history,omitempty" yaml:"history,omitempty"`
	Providers map[string]ProviderOverride `json:"providers,omitempty" yaml:"providers,omitempty"`
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// DelegateURLs returns the collaborator endpoints, deriving any that are not
// set explicitly from PublicURL. All are empty when delegates are disabled.
func (c *Config) DelegateURLs() (code, image, video string) {
	if c.Delegates.Disabled {
		return "", "", ""
	}

	base := strings.TrimRight(c.PublicURL, "/")

	pick := func(explicit, path string) string {
		if explicit != "" || base == "" {
			return explicit
		}

		return base + path
	}

	return pick(c.Delegates.CodeURL, GenerateCodePath),
		pick(c.Delegates.ImageURL, GenerateImagePath),
		pick(c.Delegates.VideoURL, VideoPath)
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}

	if c.RequestTimeoutSeconds < 0 {
		errs = append(errs, errors.New("request_timeout_seconds must not be negative"))
	}

	urls := map[string]string{
		"public_url":          c.PublicURL,
		"search.endpoint":     c.Search.Endpoint,
		"delegates.code_url":  c.Delegates.CodeURL,
		"delegates.image_url": c.Delegates.ImageURL,
		"delegates.video_url": c.Delegates.VideoURL,
	}

	for name, override := range c.Providers {
		if !chat.IsKnownProvider(name) {
			errs = append(errs, fmt.Errorf("providers: unknown provider %q", name))
		}

		urls["providers."+name+".base_url"] = override.BaseURL
	}

	for field, raw := range urls {
		if raw == "" {
			continue
		}

		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s: invalid URL %q", field, raw))
		}
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, errors.New("history.path is required when history is enabled"))
	}

	return errors.Join(errs...)
}

type Manager struct {
	baseDir     string
	configPath  string
	yamlPath    string
	configValue atomic.Value
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		baseDir:    baseDir,
		configPath: filepath.Join(baseDir, DefaultConfigFilename),
		yamlPath:   filepath.Join(baseDir, DefaultYAMLFilename),
	}
}

// Load reads config.yaml, or config.json when there is no YAML file, then
// applies defaults and environment overrides.
func (m *Manager) Load() (*Config, error) {
	var cfg Config

	if m.HasYAML() {
		data, err := os.ReadFile(m.yamlPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml config: %w", err)
		}
	} else {
		data, err := os.ReadFile(m.configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	m.applyDefaults(&cfg)
	applyEnv(&cfg)

	m.configValue.Store(&cfg)

	return &cfg, nil
}

// Get returns the cached config, loading it on first use. Without a config
// file the defaults and environment are used.
func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		return v.(*Config)
	}

	cfg, err := m.Load()
	if err != nil {
		cfg = &Config{}
		m.applyDefaults(cfg)
		applyEnv(cfg)
	}

	return cfg
}

func (m *Manager) applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}

	if cfg.RequestTimeoutSeconds == 0 {
		cfg.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}

	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(m.baseDir, DefaultHistoryFile)
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvHost); v != "" {
		cfg.Host = v
	}

	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}

	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}

	if v := os.Getenv(EnvPublicURL); v != "" {
		cfg.PublicURL = v
	}

	if v := os.Getenv(EnvBraveAPIKey); v != "" {
		cfg.Search.BraveAPIKey = v
	}
}

// Save writes cfg in the format already in use, JSON for a new setup.
func (m *Manager) Save(cfg *Config) error {
	if m.HasYAML() {
		return m.SaveAsYAML(cfg)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return m.write(m.configPath, data, cfg)
}

func (m *Manager) SaveAsYAML(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml config: %w", err)
	}

	return m.write(m.yamlPath, data, cfg)
}

func (m *Manager) write(path string, data []byte, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	// the file holds keys
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	m.configValue.Store(cfg)

	return nil
}

// CreateExampleYAML writes a commented starting configuration.
func (m *Manager) CreateExampleYAML() error {
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if err := os.WriteFile(m.yamlPath, []byte(exampleYAML), 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// GetPath returns the file Load reads, preferring YAML.
func (m *Manager) GetPath() string {
	if m.HasYAML() {
		return m.yamlPath
	}

	return m.configPath
}

func (m *Manager) Exists() bool {
	return m.HasYAML() || m.HasJSON()
}

func (m *Manager) HasYAML() bool {
	_, err := os.Stat(m.yamlPath)
	return err == nil
}

func (m *Manager) HasJSON() bool {
	_, err := os.Stat(m.configPath)
	return err == nil
}

const exampleYAML = `# polychat gateway configuration
host: "127.0.0.1"
port: 6970

# Key the browser UI must send as "Authorization: Bearer <key>".
# Leave empty to disable gateway auth.
api_key: "your-gateway-api-key-here"

# Origins allowed to call the gateway. Empty allows all.
allowed_origins:
  - "http://localhost:3000"

# Base URL of the collaborator endpoints (generate-code, generate-image, veo2).
public_url: ""

# Deadline for search, the provider call and its retry.
request_timeout_seconds: 120

search:
  # Remote /api/web-search endpoint. Empty uses the Brave API directly.
  endpoint: ""
  brave_api_key: ""
  max_results: 5

delegates:
  disabled: false

history:
  enabled: false

providers:
  openrouter:
    extra:
      transforms: ["middle-out"]
`
