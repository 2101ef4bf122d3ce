// Package portfolio assembles the generation payload: one profile and
// repository listing, plus one README per repository fetched concurrently.
package portfolio

import (
	"context"
	"fmt"

	"github.com/kevinmichaelchen/gh-portfolio/internal/metrics"
	"github.com/kevinmichaelchen/gh-portfolio/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ProfileSource interface {
	FetchProfileAndRepositories(ctx context.Context, token string) (models.Identity, []models.RepositorySummary, error)
}

type ReadmeSource interface {
	FetchReadme(ctx context.Context, token, owner, repo string) (models.ReadmeResult, error)
}

type Aggregator struct {
	profiles    ProfileSource
	readmes     ReadmeSource
	concurrency int
	logger      *zap.Logger
	metrics     *metrics.Collector
}

type Options struct {
	// Concurrency caps in-flight README fetches. Zero means one goroutine
	// per repository.
	Concurrency int
	Logger      *zap.Logger
	Metrics     *metrics.Collector
}

func NewAggregator(profiles ProfileSource, readmes ReadmeSource, opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		profiles:    profiles,
		readmes:     readmes,
		concurrency: opts.Concurrency,
		logger:      logger,
		metrics:     opts.Metrics,
	}
}

// Collect fetches the profile and repository list, then the READMEs. Only
// the profile/listing call can fail the aggregation.
func (a *Aggregator) Collect(ctx context.Context, token string) (models.Payload, error) {
	user, repos, err := a.profiles.FetchProfileAndRepositories(ctx, token)
	if err != nil {
		return models.Payload{}, fmt.Errorf("fetching profile and repositories: %w", err)
	}
	return a.Build(ctx, token, user, repos), nil
}

// Build fetches every README concurrently and merges the results. Entry i
// always describes repos[i], whatever order the fetches finish in. A failed
// fetch yields an absent README for that entry only.
func (a *Aggregator) Build(ctx context.Context, token string, user models.Identity, repos []models.RepositorySummary) models.Payload {
	readmes := make([]models.ReadmeResult, len(repos))

	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	for i, repo := range repos {
		g.Go(func() error {
			readmes[i] = a.fetchReadme(ctx, token, repo)
			return nil
		})
	}
	_ = g.Wait()

	entries := make([]models.PayloadEntry, len(repos))
	for i, repo := range repos {
		entries[i] = models.NewPayloadEntry(repo, readmes[i])
	}
	return models.Payload{User: user, Repositories: entries}
}

func (a *Aggregator) fetchReadme(ctx context.Context, token string, repo models.RepositorySummary) (result models.ReadmeResult) {
	owner := repo.Owner.Login
	defer func() {
		if r := recover(); r != nil {
			a.softFailure(repo, fmt.Errorf("panic: %v", r))
			result = models.NoReadme()
		}
	}()

	res, err := a.readmes.FetchReadme(ctx, token, owner, repo.Name)
	if err != nil {
		// A cancelled request is not a README failure.
		if ctx.Err() == nil {
			a.softFailure(repo, err)
		}
		return models.NoReadme()
	}
	if !res.HasReadme {
		res.Content = nil
	}
	return res
}

func (a *Aggregator) softFailure(repo models.RepositorySummary, err error) {
	a.metrics.ObserveReadmeSoftFailure()
	a.logger.Warn("README fetch failed, treating as absent",
		zap.String("owner", repo.Owner.Login),
		zap.String("repo", repo.Name),
		zap.Error(err),
	)
}
