package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.github.com", cfg.GitHubAPIURL)
	assert.Equal(t, "GitHub-Portfolio-App", cfg.GitHubUserAgent)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
	assert.Equal(t, 3, cfg.GitHubMaxRetries)
	assert.False(t, cfg.AuditEnabled())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portfolio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
serverAddress: ":9090"
githubApiUrl: "https://ghe.example.com/api/v3/"
githubTimeout: 5s
openaiModel: gpt-4o-mini
corsOrigins:
  - https://a.example.com
`), 0o644))

	t.Setenv(configPathEnv, path)
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("CORS_ORIGINS", "https://b.example.com, https://c.example.com")
	t.Setenv("SURREAL_URL", "ws://localhost:8000/rpc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddress)
	assert.Equal(t, "https://ghe.example.com/api/v3", cfg.GitHubAPIURL)
	assert.Equal(t, 5*time.Second, cfg.GitHubTimeout)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
	assert.Equal(t, []string{"https://b.example.com", "https://c.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "ws://localhost:8000", cfg.SurrealURL)
	assert.True(t, cfg.AuditEnabled())
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
	assert.Contains(t, err.Error(), "SESSION_SECRET")

	cfg.GeminiAPIKey = "g"
	cfg.OpenAIAPIKey = "o"
	cfg.GitHubClientID = "id"
	cfg.GitHubClientSecret = "secret"
	cfg.SessionSecret = "s"
	assert.NoError(t, cfg.Validate())

	cfg.GitHubMaxRetries = 0
	assert.Error(t, cfg.Validate())
}
