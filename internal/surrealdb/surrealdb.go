// Package surrealdb stores generation audit records. Only metadata is kept:
// who generated, with which backend and model, how many projects, whether
// it succeeded and how long it took.
package surrealdb

import (
	"context"
	"fmt"
	"sort"

	sdk "github.com/surrealdb/surrealdb.go"

	"github.com/kevinmichaelchen/gh-portfolio/internal/config"
	"github.com/kevinmichaelchen/gh-portfolio/internal/models"
)

type Client struct {
	db *sdk.DB
}

func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	db, err := sdk.FromEndpointURLString(ctx, cfg.SurrealURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, sdk.Auth{
		Namespace: cfg.SurrealNS,
		Database:  cfg.SurrealDB,
		Username:  cfg.SurrealUser,
		Password:  cfg.SurrealPass,
	}); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("signing in: %w", err)
	}

	if err := db.Use(ctx, cfg.SurrealNS, cfg.SurrealDB); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("selecting ns/db: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.db.Close(ctx)
}

func (c *Client) InitSchema(ctx context.Context) error {
	schema := `
DEFINE TABLE IF NOT EXISTS generation SCHEMAFULL;

DEFINE FIELD IF NOT EXISTS login         ON TABLE generation TYPE string;
DEFINE FIELD IF NOT EXISTS backend       ON TABLE generation TYPE string;
DEFINE FIELD IF NOT EXISTS model         ON TABLE generation TYPE string;
DEFINE FIELD IF NOT EXISTS project_count ON TABLE generation TYPE int;
DEFINE FIELD IF NOT EXISTS success       ON TABLE generation TYPE bool;
DEFINE FIELD IF NOT EXISTS duration_ms   ON TABLE generation TYPE int;
DEFINE FIELD IF NOT EXISTS created_at    ON TABLE generation TYPE datetime;

DEFINE INDEX IF NOT EXISTS idx_backend    ON TABLE generation FIELDS backend;
DEFINE INDEX IF NOT EXISTS idx_created_at ON TABLE generation FIELDS created_at;
`
	_, err := sdk.Query[any](ctx, c.db, schema, nil)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// RecordGeneration writes one audit record keyed by rec.ID.
func (c *Client) RecordGeneration(ctx context.Context, rec models.GenerationRecord) error {
	_, err := sdk.Query[any](ctx, c.db,
		`CREATE type::thing("generation", $id) CONTENT $data`,
		map[string]any{
			"id":   rec.ID,
			"data": generationData(rec),
		})
	if err != nil {
		return fmt.Errorf("recording generation %s: %w", rec.ID, err)
	}
	return nil
}

func generationData(rec models.GenerationRecord) map[string]any {
	return map[string]any{
		"login":         rec.Login,
		"backend":       rec.Backend,
		"model":         rec.Model,
		"project_count": rec.ProjectCount,
		"success":       rec.Success,
		"duration_ms":   rec.Duration.Milliseconds(),
		"created_at":    rec.CreatedAt.UTC(),
	}
}

type BackendStats struct {
	Backend   string
	Total     int
	Succeeded int
	Failed    int
}

// GetStats returns per-backend totals sorted by backend name.
func (c *Client) GetStats(ctx context.Context) ([]BackendStats, error) {
	results, err := sdk.Query[[]map[string]any](ctx, c.db,
		`SELECT
			backend,
			count() AS total,
			math::sum(IF success THEN 1 ELSE 0 END) AS succeeded
		FROM generation GROUP BY backend`,
		nil)
	if err != nil {
		return nil, fmt.Errorf("getting stats: %w", err)
	}
	if len(*results) == 0 {
		return nil, nil
	}
	return statsFromRows((*results)[0].Result), nil
}

func statsFromRows(rows []map[string]any) []BackendStats {
	out := make([]BackendStats, 0, len(rows))
	for _, row := range rows {
		backend, _ := row["backend"].(string)
		total := toInt(row["total"])
		succeeded := toInt(row["succeeded"])
		out = append(out, BackendStats{
			Backend:   backend,
			Total:     total,
			Succeeded: succeeded,
			Failed:    total - succeeded,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Backend < out[j].Backend })
	return out
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	default:
		return 0
	}
}
