package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "PORTFOLIO_CONFIG"

type Config struct {
	ServerAddress string   `yaml:"serverAddress"`
	PublicURL     string   `yaml:"publicUrl"`
	CORSOrigins   []string `yaml:"corsOrigins"`
	LogLevel      string   `yaml:"logLevel"`
	LogFormat     string   `yaml:"logFormat"`

	GitHubAPIURL       string        `yaml:"githubApiUrl"`
	GitHubUserAgent    string        `yaml:"githubUserAgent"`
	GitHubTimeout      time.Duration `yaml:"githubTimeout"`
	GitHubMaxRetries   int           `yaml:"githubMaxRetries"`
	GitHubClientID     string        `yaml:"githubClientId"`
	GitHubClientSecret string        `yaml:"githubClientSecret"`
	ReadmeConcurrency  int           `yaml:"readmeConcurrency"`

	SessionSecret string `yaml:"sessionSecret"`

	GeminiBaseURL string `yaml:"geminiBaseUrl"`
	GeminiAPIKey  string `yaml:"geminiApiKey"`
	GeminiModel   string `yaml:"geminiModel"`

	OpenAIBaseURL string `yaml:"openaiBaseUrl"`
	OpenAIAPIKey  string `yaml:"openaiApiKey"`
	OpenAIModel   string `yaml:"openaiModel"`

	LLMTimeout time.Duration `yaml:"llmTimeout"`

	SurrealURL  string `yaml:"surrealUrl"`
	SurrealNS   string `yaml:"surrealNs"`
	SurrealDB   string `yaml:"surrealDb"`
	SurrealUser string `yaml:"surrealUser"`
	SurrealPass string `yaml:"surrealPass"`
}

// Load reads .env, then the YAML file named by PORTFOLIO_CONFIG (if any),
// then environment variables. Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	cfg.GitHubAPIURL = strings.TrimSuffix(cfg.GitHubAPIURL, "/")
	cfg.PublicURL = strings.TrimSuffix(cfg.PublicURL, "/")
	// The SDK appends /rpc automatically
	cfg.SurrealURL = strings.TrimSuffix(cfg.SurrealURL, "/rpc")
	cfg.SurrealURL = strings.TrimSuffix(cfg.SurrealURL, "/")

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ServerAddress:    ":8080",
		PublicURL:        "http://localhost:8080",
		CORSOrigins:      []string{"http://localhost:3000"},
		LogLevel:         "info",
		LogFormat:        "json",
		GitHubAPIURL:     "https://api.github.com",
		GitHubUserAgent:  "GitHub-Portfolio-App",
		GitHubTimeout:    30 * time.Second,
		GitHubMaxRetries: 3,
		GeminiBaseURL:    "https://generativelanguage.googleapis.com/v1beta/openai",
		GeminiModel:      "gemini-2.0-flash",
		OpenAIBaseURL:    "https://api.openai.com/v1",
		OpenAIModel:      "gpt-4o",
		LLMTimeout:       90 * time.Second,
	}
}

func (c *Config) applyEnv() {
	setString(&c.ServerAddress, "SERVER_ADDRESS")
	setString(&c.PublicURL, "PUBLIC_URL")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")

	setString(&c.GitHubAPIURL, "GITHUB_API_URL")
	setString(&c.GitHubUserAgent, "GITHUB_USER_AGENT")
	setDuration(&c.GitHubTimeout, "GITHUB_TIMEOUT")
	setInt(&c.GitHubMaxRetries, "GITHUB_MAX_RETRIES")
	setString(&c.GitHubClientID, "GITHUB_CLIENT_ID")
	setString(&c.GitHubClientSecret, "GITHUB_CLIENT_SECRET")
	setInt(&c.ReadmeConcurrency, "README_CONCURRENCY")

	setString(&c.SessionSecret, "SESSION_SECRET")

	setString(&c.GeminiBaseURL, "GEMINI_BASE_URL")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.GeminiModel, "GEMINI_MODEL")

	setString(&c.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.OpenAIModel, "OPENAI_MODEL")

	setDuration(&c.LLMTimeout, "LLM_TIMEOUT")

	setString(&c.SurrealURL, "SURREAL_URL")
	setString(&c.SurrealNS, "SURREAL_NS")
	setString(&c.SurrealDB, "SURREAL_DB")
	setString(&c.SurrealUser, "SURREAL_USER")
	setString(&c.SurrealPass, "SURREAL_PASS")
}

// Validate checks the secrets the server needs at start. A missing one is a
// deployment fault, so serve refuses to start.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"GEMINI_API_KEY", c.GeminiAPIKey},
		{"OPENAI_API_KEY", c.OpenAIAPIKey},
		{"GITHUB_CLIENT_ID", c.GitHubClientID},
		{"GITHUB_CLIENT_SECRET", c.GitHubClientSecret},
		{"SESSION_SECRET", c.SessionSecret},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.GitHubMaxRetries < 1 {
		return fmt.Errorf("GITHUB_MAX_RETRIES must be at least 1, got %d", c.GitHubMaxRetries)
	}
	return nil
}

// AuditEnabled reports whether generation metadata goes to SurrealDB.
func (c *Config) AuditEnabled() bool {
	return c.SurrealURL != ""
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
