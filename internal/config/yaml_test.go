package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_YAML_Support(t *testing.T) {
	clearEnv(t)

	tempDir := t.TempDir()
	mgr := NewManager(tempDir)

	yamlConfig := `
host: "0.0.0.0"
port: 8080
api_key: "test-gateway-key"
allowed_origins: ["http://localhost:3000", "https://chat.example.com"]
request_timeout_seconds: 90
search:
  endpoint: "https://search.example.com/api/web-search"
delegates:
  code_url: "https://edge.example.com/generate-code"
history:
  enabled: true
  path: "/tmp/polychat-history.db"
providers:
  openrouter:
    extra:
      transforms: ["middle-out"]
  gemini:
    base_url: "https://gemini.proxy.example/v1beta/models"
`

	err := os.WriteFile(filepath.Join(tempDir, DefaultYAMLFilename), []byte(yamlConfig), 0o600)
	require.NoError(t, err)

	cfg, err := mgr.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "test-gateway-key", cfg.APIKey)
	assert.Equal(t, []string{"http://localhost:3000", "https://chat.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 90, cfg.RequestTimeoutSeconds)
	assert.Equal(t, "https://search.example.com/api/web-search", cfg.Search.Endpoint)
	assert.Equal(t, "https://edge.example.com/generate-code", cfg.Delegates.CodeURL)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/polychat-history.db", cfg.History.Path)

	require.Contains(t, cfg.Providers, "openrouter")
	assert.Equal(t, []any{"middle-out"}, cfg.Providers["openrouter"].Extra["transforms"])
	assert.Equal(t, "https://gemini.proxy.example/v1beta/models", cfg.Providers["gemini"].BaseURL)

	assert.NoError(t, cfg.Validate())
}

func TestManager_YAML_Takes_Precedence(t *testing.T) {
	clearEnv(t)

	tempDir := t.TempDir()
	mgr := NewManager(tempDir)

	err := os.WriteFile(filepath.Join(tempDir, DefaultConfigFilename), []byte(`{"host": "127.0.0.1", "port": 6970, "api_key": "json-key"}`), 0o600)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(tempDir, DefaultYAMLFilename), []byte("host: \"0.0.0.0\"\nport: 8080\napi_key: \"yaml-key\"\n"), 0o600)
	require.NoError(t, err)

	cfg, err := mgr.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "yaml-key", cfg.APIKey)
}

func TestManager_SaveAsYAML(t *testing.T) {
	clearEnv(t)

	tempDir := t.TempDir()
	mgr := NewManager(tempDir)

	cfg := &Config{
		Host:   "127.0.0.1",
		Port:   7000,
		APIKey: "test-key",
		Delegates: DelegatesConfig{
			Disabled: true,
		},
		Providers: map[string]ProviderOverride{
			"mistral": {BaseURL: "https://mistral.example/v1/chat/completions"},
		},
	}

	require.NoError(t, mgr.SaveAsYAML(cfg))
	assert.FileExists(t, filepath.Join(tempDir, DefaultYAMLFilename))

	loadedCfg, err := mgr.Load()
	require.NoError(t, err)

	assert.Equal(t, cfg.Host, loadedCfg.Host)
	assert.Equal(t, cfg.Port, loadedCfg.Port)
	assert.Equal(t, cfg.APIKey, loadedCfg.APIKey)
	assert.True(t, loadedCfg.Delegates.Disabled)
	assert.Equal(t, cfg.Providers["mistral"].BaseURL, loadedCfg.Providers["mistral"].BaseURL)

	// Save keeps using YAML once a YAML file exists
	loadedCfg.Port = 7001
	require.NoError(t, mgr.Save(loadedCfg))
	assert.False(t, mgr.HasJSON())
}

func TestManager_CreateExampleYAML(t *testing.T) {
	clearEnv(t)

	tempDir := t.TempDir()
	mgr := NewManager(tempDir)

	require.NoError(t, mgr.CreateExampleYAML())
	assert.FileExists(t, filepath.Join(tempDir, DefaultYAMLFilename))

	cfg, err := mgr.Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "your-gateway-api-key-here", cfg.APIKey)
	assert.Equal(t, DefaultRequestTimeoutSeconds, cfg.RequestTimeoutSeconds)
	assert.Contains(t, cfg.Providers, "openrouter")
	assert.NoError(t, cfg.Validate())
}

func TestManager_FileDetection(t *testing.T) {
	tempDir := t.TempDir()
	mgr := NewManager(tempDir)

	assert.False(t, mgr.Exists())
	assert.False(t, mgr.HasYAML())
	assert.False(t, mgr.HasJSON())

	jsonPath := filepath.Join(tempDir, DefaultConfigFilename)
	err := os.WriteFile(jsonPath, []byte(`{"host": "127.0.0.1"}`), 0o600)
	require.NoError(t, err)

	assert.True(t, mgr.Exists())
	assert.False(t, mgr.HasYAML())
	assert.True(t, mgr.HasJSON())
	assert.Equal(t, jsonPath, mgr.GetPath())

	yamlPath := filepath.Join(tempDir, DefaultYAMLFilename)
	err = os.WriteFile(yamlPath, []byte(`host: "0.0.0.0"`), 0o600)
	require.NoError(t, err)

	assert.True(t, mgr.Exists())
	assert.True(t, mgr.HasYAML())
	assert.True(t, mgr.HasJSON())
	assert.Equal(t, yamlPath, mgr.GetPath())
}
