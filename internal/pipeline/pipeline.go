// Package pipeline runs a portfolio generation end to end from the command
// line: collect the payload with a personal token, dispatch it to a backend
// and write the markdown.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/kevinmichaelchen/gh-portfolio/internal/config"
	"github.com/kevinmichaelchen/gh-portfolio/internal/generate"
	"github.com/kevinmichaelchen/gh-portfolio/internal/models"
)

type Options struct {
	Backend string
	Token   string
	// Out is the markdown destination. Empty means Stdout.
	Out string
	// SavePayload, when set, also writes the collected payload as JSON.
	SavePayload string
	// FromPayload reads a payload written by SavePayload instead of calling
	// GitHub. Token is not needed then.
	FromPayload string

	Stdout   io.Writer
	Progress io.Writer
	Logger   *zap.Logger
}

func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Progress == nil {
		opts.Progress = os.Stderr
	}
	if err := checkBackend(cfg, opts.Backend); err != nil {
		return err
	}

	c, err := Wire(ctx, cfg, opts.Logger, nil)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	var payload models.Payload
	if opts.FromPayload != "" {
		fmt.Fprintf(opts.Progress, "Reading payload from %s...\n", opts.FromPayload)
		payload, err = readPayload(opts.FromPayload)
		if err != nil {
			return err
		}
	} else {
		if opts.Token == "" {
			return errors.New("a GitHub token is required (--token or GITHUB_TOKEN)")
		}
		fmt.Fprintln(opts.Progress, "Fetching profile, repositories and READMEs from GitHub...")
		payload, err = c.Aggregator.Collect(ctx, opts.Token)
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(opts.Progress, "Collected %d repositories for %s (%d with README)\n",
		len(payload.Repositories), payload.User.Login, countReadmes(payload))

	if opts.SavePayload != "" {
		if err := writePayload(opts.SavePayload, payload); err != nil {
			fmt.Fprintf(opts.Progress, "  WARN: could not write %s: %v\n", opts.SavePayload, err)
		} else {
			fmt.Fprintf(opts.Progress, "Saved payload to %s\n", opts.SavePayload)
		}
	}

	fmt.Fprintf(opts.Progress, "Generating portfolio with %s...\n", opts.Backend)
	out, err := c.Dispatcher.Generate(ctx, opts.Backend, payload)
	if err != nil {
		return err
	}

	if opts.Out == "" {
		_, err = io.WriteString(opts.Stdout, out.Portfolio)
		return err
	}
	if err := os.WriteFile(opts.Out, []byte(out.Portfolio), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", opts.Out, err)
	}
	fmt.Fprintf(opts.Progress, "Wrote %s (%d projects)\n", opts.Out, out.ProjectCount)
	return nil
}

// checkBackend fails early when the chosen backend has no API key. The
// server validates every key at start; the CLI needs only the one it uses.
func checkBackend(cfg *config.Config, backend string) error {
	switch backend {
	case generate.GeminiName:
		if cfg.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the %s backend", backend)
		}
	case generate.GPTName:
		if cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the %s backend", backend)
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", backend, generate.GeminiName, generate.GPTName)
	}
	return nil
}

func countReadmes(p models.Payload) int {
	n := 0
	for _, r := range p.Repositories {
		if r.HasReadme {
			n++
		}
	}
	return n
}

func readPayload(path string) (models.Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Payload{}, err
	}
	var p models.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.Payload{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return p, nil
}

func writePayload(path string, p models.Payload) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
