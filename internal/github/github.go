package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/kevinmichaelchen/gh-portfolio/internal/apperr"
	"github.com/kevinmichaelchen/gh-portfolio/internal/metrics"
	"github.com/kevinmichaelchen/gh-portfolio/internal/models"
)

const (
	defaultBaseURL   = "https://api.github.com"
	defaultUserAgent = "GitHub-Portfolio-App"
	acceptV3         = "application/vnd.github.v3+json"
)

// Client is a thin wrapper around the GitHub REST API. It holds no token:
// every call takes the caller's access token explicitly.
type Client struct {
	baseURL       string
	userAgent     string
	httpClient    *http.Client
	maxTries      uint
	retryInterval time.Duration
	metrics       *metrics.Collector
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry bounds attempts per call (transport errors and 5xx only) and
// sets the first backoff interval.
func WithRetry(maxTries int, initial time.Duration) Option {
	return func(c *Client) {
		if maxTries < 1 {
			maxTries = 1
		}
		c.maxTries = uint(maxTries)
		c.retryInterval = initial
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:       defaultBaseURL,
		userAgent:     defaultUserAgent,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		maxTries:      3,
		retryInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchProfile returns the user that owns token.
func (c *Client) FetchProfile(ctx context.Context, token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, apperr.Unauthenticated("")
	}
	var user models.Identity
	if err := c.get(ctx, token, "user", "/user", &user); err != nil {
		return models.Identity{}, classify("Failed to fetch user data", err)
	}
	return user, nil
}

// FetchProfileAndRepositories resolves the user, then lists their public
// repositories. The calls are sequential because the listing is keyed by
// the resolved login.
func (c *Client) FetchProfileAndRepositories(ctx context.Context, token string) (models.Identity, []models.RepositorySummary, error) {
	user, err := c.FetchProfile(ctx, token)
	if err != nil {
		return models.Identity{}, nil, err
	}

	path := fmt.Sprintf("/users/%s/repos?type=public&sort=updated&per_page=100", url.PathEscape(user.Login))
	var repos []models.RepositorySummary
	if err := c.get(ctx, token, "repos", path, &repos); err != nil {
		return models.Identity{}, nil, classify("Failed to fetch repositories", err)
	}
	if repos == nil {
		repos = []models.RepositorySummary{}
	}
	return user, repos, nil
}

type readmeResponse struct {
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
	DownloadURL string `json:"download_url"`
}

// FetchReadme returns the decoded README of owner/repo. A 404 is a
// successful result with HasReadme=false.
func (c *Client) FetchReadme(ctx context.Context, token, owner, repo string) (models.ReadmeResult, error) {
	if token == "" {
		return models.ReadmeResult{}, apperr.Unauthenticated("")
	}
	if owner == "" || repo == "" {
		return models.ReadmeResult{}, apperr.Validation("Owner and repo are required")
	}

	path := fmt.Sprintf("/repos/%s/%s/readme", url.PathEscape(owner), url.PathEscape(repo))
	var data readmeResponse
	err := c.get(ctx, token, "readme", path, &data)
	if err != nil {
		var sErr *statusError
		if errors.As(err, &sErr) && sErr.Status == http.StatusNotFound {
			return models.NoReadme(), nil
		}
		return models.ReadmeResult{}, classify("Failed to fetch README", err)
	}

	text, err := decodeContent(data.Content, data.Encoding)
	if err != nil {
		return models.ReadmeResult{}, apperr.UpstreamFetch("Failed to decode README", 0, err)
	}
	return models.ReadmeResult{
		Content:     &text,
		HasReadme:   true,
		DownloadURL: data.DownloadURL,
	}, nil
}

// --- internal ---

type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GitHub API returned %d: %s", e.Status, e.Body)
}

func classify(message string, err error) error {
	var sErr *statusError
	if errors.As(err, &sErr) {
		return apperr.UpstreamFetch(message, sErr.Status, err)
	}
	return apperr.UpstreamFetch(message, 0, err)
}

// get performs one GET, retrying transport errors and 5xx with exponential
// backoff. 4xx and decode failures are permanent.
func (c *Client) get(ctx context.Context, token, endpoint, path string, out any) error {
	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", acceptV3)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.metrics.ObserveUpstream(endpoint, "error")
			return struct{}{}, fmt.Errorf("executing request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			c.metrics.ObserveUpstream(endpoint, "error")
			return struct{}{}, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			sErr := &statusError{Status: resp.StatusCode, Body: snippet(body)}
			c.metrics.ObserveUpstream(endpoint, statusOutcome(resp.StatusCode))
			if resp.StatusCode >= http.StatusInternalServerError {
				return struct{}{}, sErr
			}
			return struct{}{}, backoff.Permanent(sErr)
		}

		if err := json.Unmarshal(body, out); err != nil {
			c.metrics.ObserveUpstream(endpoint, "malformed")
			return struct{}{}, backoff.Permanent(fmt.Errorf("parsing response: %w", err))
		}
		c.metrics.ObserveUpstream(endpoint, "ok")
		return struct{}{}, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxTries),
	)
	return err
}

// decodeContent decodes the contents API body. GitHub wraps base64 at 60
// columns, so line breaks are dropped first.
func decodeContent(content, encoding string) (string, error) {
	if encoding != "" && encoding != "base64" {
		return content, nil
	}
	clean := strings.NewReplacer("\n", "", "\r", "").Replace(content)
	raw, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return "", fmt.Errorf("decoding base64 content: %w", err)
	}
	return string(raw), nil
}

func statusOutcome(status int) string {
	switch {
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "denied"
	case status >= http.StatusInternalServerError:
		return "server_error"
	default:
		return "client_error"
	}
}

func snippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
