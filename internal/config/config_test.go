package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()

	for _, k := range []string{EnvHost, EnvPort, EnvAPIKey, EnvPublicURL, EnvBraveAPIKey} {
		t.Setenv(k, "")
	}
}

func TestConfig_LoadAndSave(t *testing.T) {
	clearEnv(t)

	tmpDir := t.TempDir()
	manager := NewManager(tmpDir)

	cfg := &Config{
		Host:           "127.0.0.1",
		Port:           8080,
		APIKey:         "test-key",
		AllowedOrigins: []string{"http://localhost:3000"},
		PublicURL:      "https://chat.example.com",
		Search: SearchConfig{
			BraveAPIKey: "brave",
			MaxResults:  7,
		},
		Providers: map[string]ProviderOverride{
			"openrouter": {
				BaseURL: "https://openrouter.example/api/v1/chat/completions",
				Extra:   map[string]any{"top_p": 0.9},
			},
		},
	}

	if err := manager.Save(cfg); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if !manager.Exists() {
		t.Errorf("Config file should exist after saving")
	}

	if manager.HasYAML() {
		t.Errorf("A new setup should be saved as JSON")
	}

	loadedCfg, err := manager.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedCfg.Port != cfg.Port {
		t.Errorf("Expected port %d, got %d", cfg.Port, loadedCfg.Port)
	}

	if loadedCfg.APIKey != cfg.APIKey {
		t.Errorf("Expected API key %s, got %s", cfg.APIKey, loadedCfg.APIKey)
	}

	if loadedCfg.Search.MaxResults != 7 {
		t.Errorf("Expected 7 search results, got %d", loadedCfg.Search.MaxResults)
	}

	override, ok := loadedCfg.Providers["openrouter"]
	if !ok {
		t.Fatalf("Expected openrouter override")
	}

	if override.BaseURL != "https://openrouter.example/api/v1/chat/completions" {
		t.Errorf("Unexpected base URL %s", override.BaseURL)
	}

	if override.Extra["top_p"] != 0.9 {
		t.Errorf("Expected extra top_p 0.9, got %v", override.Extra["top_p"])
	}

	info, err := os.Stat(manager.GetPath())
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}

	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected config mode 0600, got %v", info.Mode().Perm())
	}
}

func TestConfig_Defaults(t *testing.T) {
	clearEnv(t)

	tmpDir := t.TempDir()
	manager := NewManager(tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, DefaultConfigFilename), []byte(`{}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loadedCfg, err := manager.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedCfg.Port != DefaultPort {
		t.Errorf("Expected default port %d, got %d", DefaultPort, loadedCfg.Port)
	}

	if loadedCfg.Host != DefaultHost {
		t.Errorf("Expected default host %s, got %s", DefaultHost, loadedCfg.Host)
	}

	if loadedCfg.RequestTimeout() != 2*time.Minute {
		t.Errorf("Expected default request timeout 2m, got %v", loadedCfg.RequestTimeout())
	}

	if loadedCfg.History.Path != filepath.Join(tmpDir, DefaultHistoryFile) {
		t.Errorf("Unexpected history path %s", loadedCfg.History.Path)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvBraveAPIKey, "env-brave")
	t.Setenv(EnvPublicURL, "https://env.example.com")

	tmpDir := t.TempDir()
	manager := NewManager(tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, DefaultConfigFilename), []byte(`{"port": 7000, "api_key": "file-key"}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := manager.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Expected env port 9000, got %d", cfg.Port)
	}

	if cfg.APIKey != "env-key" {
		t.Errorf("Expected env API key, got %s", cfg.APIKey)
	}

	if cfg.Search.BraveAPIKey != "env-brave" {
		t.Errorf("Expected env Brave key, got %s", cfg.Search.BraveAPIKey)
	}

	if cfg.PublicURL != "https://env.example.com" {
		t.Errorf("Expected env public URL, got %s", cfg.PublicURL)
	}
}

func TestConfig_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	manager := NewManager(tmpDir)

	configPath := filepath.Join(tmpDir, DefaultConfigFilename)
	if err := os.WriteFile(configPath, []byte("invalid json"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := manager.Load(); err == nil {
		t.Errorf("Expected error when loading invalid JSON")
	}
}

func TestConfig_MissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	manager := NewManager(tmpDir)

	if _, err := manager.Load(); err == nil {
		t.Errorf("Expected error when loading non-existent file")
	}

	if manager.Exists() {
		t.Errorf("Non-existent config should not exist")
	}
}

func TestConfig_GetWithoutFile(t *testing.T) {
	clearEnv(t)

	manager := NewManager(t.TempDir())

	cfg := manager.Get()
	if cfg == nil {
		t.Fatalf("Get should always return a config")
	}

	if cfg.Port != DefaultPort || cfg.Host != DefaultHost {
		t.Errorf("Expected defaults, got %s:%d", cfg.Host, cfg.Port)
	}
}

func TestConfig_DelegateURLs(t *testing.T) {
	cfg := &Config{PublicURL: "https://chat.example.com/"}

	code, image, video := cfg.DelegateURLs()
	if code != "https://chat.example.com/api/generate-code" {
		t.Errorf("Unexpected code URL %s", code)
	}

	if image != "https://chat.example.com/api/generate-image" {
		t.Errorf("Unexpected image URL %s", image)
	}

	if video != "https://chat.example.com/api/veo2" {
		t.Errorf("Unexpected video URL %s", video)
	}

	cfg.Delegates.ImageURL = "http://images.internal/gen"

	_, image, _ = cfg.DelegateURLs()
	if image != "http://images.internal/gen" {
		t.Errorf("Explicit image URL should win, got %s", image)
	}

	cfg.Delegates.Disabled = true

	code, image, video = cfg.DelegateURLs()
	if code != "" || image != "" || video != "" {
		t.Errorf("Disabled delegates should have no URLs")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := &Config{Port: 6970, RequestTimeoutSeconds: 60}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	invalid := &Config{
		Port:      70000,
		PublicURL: "not a url",
		Providers: map[string]ProviderOverride{"nvidia": {}},
		History:   HistoryConfig{Enabled: true},
	}

	err := invalid.Validate()
	if err == nil {
		t.Fatalf("Expected validation errors")
	}

	for _, want := range []string{"port 70000", "public_url", `unknown provider "nvidia"`, "history.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %q, got %v", want, err)
		}
	}
}
