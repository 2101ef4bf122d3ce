package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kevinmichaelchen/gh-portfolio/internal/config"
	"github.com/kevinmichaelchen/gh-portfolio/internal/logging"
	"github.com/kevinmichaelchen/gh-portfolio/internal/metrics"
	"github.com/kevinmichaelchen/gh-portfolio/internal/pipeline"
	"github.com/kevinmichaelchen/gh-portfolio/internal/server"
	"github.com/kevinmichaelchen/gh-portfolio/internal/session"
	"github.com/kevinmichaelchen/gh-portfolio/internal/surrealdb"
)

func main() {
	root := &cobra.Command{
		Use:          "gh-portfolio",
		Short:        "GitHub profile → AI-written portfolio",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd(), generateCmd(), schemaCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	return cfg, logger, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if err := cfg.Validate(); err != nil {
				logger.Error("invalid configuration", zap.Error(err))
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := metrics.NewCollector()
			c, err := pipeline.Wire(ctx, cfg, logger, m)
			if err != nil {
				return err
			}
			defer c.Close(context.Background())

			sessions, err := session.NewManager(session.Options{
				Secret:       cfg.SessionSecret,
				ClientID:     cfg.GitHubClientID,
				ClientSecret: cfg.GitHubClientSecret,
				PublicURL:    cfg.PublicURL,
			})
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr: cfg.ServerAddress,
				Handler: server.New(server.Deps{
					GitHub:      c.GitHub,
					Aggregator:  c.Aggregator,
					Generator:   c.Dispatcher,
					Sessions:    sessions,
					Logger:      logger,
					Metrics:     m,
					CORSOrigins: cfg.CORSOrigins,
					PublicURL:   cfg.PublicURL,
				}).Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening",
					zap.String("addr", cfg.ServerAddress),
					zap.Strings("backends", c.Dispatcher.Backends()),
					zap.Bool("audit", cfg.AuditEnabled()))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func generateCmd() *cobra.Command {
	var backend, token, out, savePayload, fromPayload string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Collect your GitHub data and write a portfolio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if token == "" {
				token = os.Getenv("GITHUB_TOKEN")
			}
			return pipeline.Run(cmd.Context(), cfg, pipeline.Options{
				Backend:     backend,
				Token:       token,
				Out:         out,
				SavePayload: savePayload,
				FromPayload: fromPayload,
				Stdout:      cmd.OutOrStdout(),
				Progress:    cmd.ErrOrStderr(),
				Logger:      logger,
			})
		},
	}
	cmd.Flags().StringVarP(&backend, "backend", "b", "gemini", "Generation backend (gemini or gpt)")
	cmd.Flags().StringVar(&token, "token", "", "GitHub token (defaults to GITHUB_TOKEN)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write markdown to this file instead of stdout")
	cmd.Flags().StringVar(&savePayload, "save-payload", "", "Also write the collected payload as JSON")
	cmd.Flags().StringVar(&fromPayload, "from-payload", "", "Generate from a saved payload instead of GitHub")
	return cmd
}

func openAudit(ctx context.Context) (*surrealdb.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !cfg.AuditEnabled() {
		return nil, errors.New("SURREAL_URL is not set")
	}
	return surrealdb.NewClient(ctx, cfg)
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Initialize/update the SurrealDB audit schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			db, err := openAudit(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(ctx) }()

			if err := db.InitSchema(ctx); err != nil {
				return err
			}
			fmt.Println("Schema initialized")
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show generation counts per backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			db, err := openAudit(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(ctx) }()

			stats, err := db.GetStats(ctx)
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("No generations recorded")
				return nil
			}

			fmt.Printf("%-10s %8s %10s %8s\n", "BACKEND", "TOTAL", "SUCCEEDED", "FAILED")
			for _, s := range stats {
				fmt.Printf("%-10s %8d %10d %8d\n", s.Backend, s.Total, s.Succeeded, s.Failed)
			}
			return nil
		},
	}
}
