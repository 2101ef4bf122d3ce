// Package generate renders a portfolio payload into a backend-specific
// prompt and turns the completion into a GeneratedPortfolio.
package generate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kevinmichaelchen/gh-portfolio/internal/apperr"
	"github.com/kevinmichaelchen/gh-portfolio/internal/llm"
	"github.com/kevinmichaelchen/gh-portfolio/internal/metrics"
	"github.com/kevinmichaelchen/gh-portfolio/internal/models"
)

// errCallerGone marks a backend error caused by the caller's context ending
// rather than by the backend.
var errCallerGone = errors.New("caller context ended")

// Completer is the slice of llm.Client a backend needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
	Model() string
}

// Backend is one generation strategy: a prompt template plus a model.
type Backend interface {
	Name() string
	Model() string
	// Label is echoed as aiModel in the response. Empty means omitted.
	Label() string
	Render(p models.Payload) string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Recorder persists generation metadata. Failures never fail a request.
type Recorder interface {
	RecordGeneration(ctx context.Context, rec models.GenerationRecord) error
}

type DispatcherOptions struct {
	// Timeout bounds a single backend call. Zero means no extra bound.
	Timeout time.Duration
	// BreakerFailures is the number of consecutive failures that opens a
	// backend's breaker. Defaults to 5.
	BreakerFailures uint32
	// BreakerCooldown is how long an open breaker rejects calls. Defaults
	// to 30s.
	BreakerCooldown time.Duration
	Recorder        Recorder
	Logger          *zap.Logger
	Metrics         *metrics.Collector
}

type guardedBackend struct {
	backend Backend
	breaker *gobreaker.CircuitBreaker
}

// Dispatcher routes a payload to a named backend.
type Dispatcher struct {
	backends map[string]guardedBackend
	opts     DispatcherOptions
	logger   *zap.Logger
}

func NewDispatcher(backends []Backend, opts DispatcherOptions) *Dispatcher {
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown == 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		backends: make(map[string]guardedBackend, len(backends)),
		opts:     opts,
		logger:   logger,
	}
	for _, b := range backends {
		d.backends[b.Name()] = guardedBackend{
			backend: b,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    b.Name(),
				Timeout: opts.BreakerCooldown,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= opts.BreakerFailures
				},
				// Errors caused by an ended caller context are not backend failures.
				IsSuccessful: func(err error) bool {
					return err == nil || errors.Is(err, errCallerGone)
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					logger.Warn("generation breaker state changed",
						zap.String("backend", name),
						zap.String("from", from.String()),
						zap.String("to", to.String()))
				},
			}),
		}
	}
	return d
}

// Backends lists the registered backend names in sorted order.
func (d *Dispatcher) Backends() []string {
	names := make([]string, 0, len(d.backends))
	for name := range d.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate renders payload for the named backend and returns the completion
// verbatim. Any backend failure, including an open breaker, is reported as
// a generation error.
func (d *Dispatcher) Generate(ctx context.Context, backendName string, payload models.Payload) (models.GeneratedPortfolio, error) {
	g, ok := d.backends[backendName]
	if !ok {
		return models.GeneratedPortfolio{}, apperr.Validation("Unknown generation backend: " + backendName)
	}

	if err := ctx.Err(); err != nil {
		return models.GeneratedPortfolio{}, apperr.Generation("Failed to generate portfolio", err)
	}

	prompt := g.backend.Render(payload)
	start := time.Now()

	out, err := g.breaker.Execute(func() (interface{}, error) {
		callCtx := ctx
		if d.opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
			defer cancel()
		}
		text, err := g.backend.Complete(callCtx, prompt)
		if err != nil && ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", errCallerGone, err)
		}
		return text, err
	})
	elapsed := time.Since(start)

	if errors.Is(err, errCallerGone) {
		d.logger.Info("generation abandoned by caller", zap.String("backend", backendName), zap.Error(err))
		return models.GeneratedPortfolio{}, apperr.Generation("Failed to generate portfolio", err)
	}

	d.opts.Metrics.ObserveGeneration(backendName, err == nil, elapsed)
	d.record(ctx, g.backend, payload, err == nil, elapsed)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			d.logger.Warn("generation backend unavailable", zap.String("backend", backendName), zap.Error(err))
		} else {
			d.logger.Error("generation failed", zap.String("backend", backendName), zap.Error(err))
		}
		return models.GeneratedPortfolio{}, apperr.Generation("Failed to generate portfolio", err)
	}

	d.logger.Info("portfolio generated",
		zap.String("backend", backendName),
		zap.String("login", payload.User.Login),
		zap.Int("repositories", len(payload.Repositories)),
		zap.Duration("elapsed", elapsed))

	return models.GeneratedPortfolio{
		Success:      true,
		Portfolio:    out.(string),
		User:         payload.User,
		ProjectCount: len(payload.Repositories),
		AIModel:      g.backend.Label(),
	}, nil
}

func (d *Dispatcher) record(ctx context.Context, b Backend, payload models.Payload, success bool, elapsed time.Duration) {
	if d.opts.Recorder == nil {
		return
	}
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := d.opts.Recorder.RecordGeneration(recCtx, models.GenerationRecord{
		ID:           uuid.NewString(),
		Login:        payload.User.Login,
		Backend:      b.Name(),
		Model:        b.Model(),
		ProjectCount: len(payload.Repositories),
		Success:      success,
		Duration:     elapsed,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		d.logger.Warn("failed to record generation", zap.String("backend", b.Name()), zap.Error(err))
	}
}
