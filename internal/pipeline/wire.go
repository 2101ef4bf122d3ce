package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kevinmichaelchen/gh-portfolio/internal/config"
	"github.com/kevinmichaelchen/gh-portfolio/internal/generate"
	"github.com/kevinmichaelchen/gh-portfolio/internal/github"
	"github.com/kevinmichaelchen/gh-portfolio/internal/llm"
	"github.com/kevinmichaelchen/gh-portfolio/internal/metrics"
	"github.com/kevinmichaelchen/gh-portfolio/internal/portfolio"
	"github.com/kevinmichaelchen/gh-portfolio/internal/surrealdb"
)

const defaultRetryInterval = 500 * time.Millisecond

// Components are the collaborators shared by the HTTP server and the CLI.
type Components struct {
	GitHub     *github.Client
	Aggregator *portfolio.Aggregator
	Dispatcher *generate.Dispatcher
	Audit      *surrealdb.Client
}

// Close releases the audit connection, if any.
func (c *Components) Close(ctx context.Context) {
	if c.Audit != nil {
		_ = c.Audit.Close(ctx)
	}
}

// Wire builds the gateway, aggregator and dispatcher from cfg. The audit
// store is connected only when SURREAL_URL is set.
func Wire(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Collector) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	gh := github.NewClient(
		github.WithBaseURL(cfg.GitHubAPIURL),
		github.WithUserAgent(cfg.GitHubUserAgent),
		github.WithHTTPClient(newHTTPClient(cfg.GitHubTimeout)),
		github.WithRetry(cfg.GitHubMaxRetries, defaultRetryInterval),
		github.WithMetrics(m),
	)

	c := &Components{
		GitHub: gh,
		Aggregator: portfolio.NewAggregator(gh, gh, portfolio.Options{
			Concurrency: cfg.ReadmeConcurrency,
			Logger:      logger.Named("aggregator"),
			Metrics:     m,
		}),
	}

	opts := generate.DispatcherOptions{
		Timeout: cfg.LLMTimeout,
		Logger:  logger.Named("generate"),
		Metrics: m,
	}
	if cfg.AuditEnabled() {
		audit, err := surrealdb.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connecting audit store: %w", err)
		}
		c.Audit = audit
		opts.Recorder = audit
	}

	c.Dispatcher = generate.NewDispatcher([]generate.Backend{
		generate.NewGemini(llm.NewClient(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel)),
		generate.NewGPT(llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)),
	}, opts)

	return c, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
