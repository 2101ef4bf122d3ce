package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinmichaelchen/gh-portfolio/internal/apperr"
	"github.com/kevinmichaelchen/gh-portfolio/internal/llm"
	"github.com/kevinmichaelchen/gh-portfolio/internal/metrics"
	"github.com/kevinmichaelchen/gh-portfolio/internal/models"
)

type fakeCompleter struct {
	model string
	reply string
	err   error

	mu    sync.Mutex
	calls []llm.Request
}

func (f *fakeCompleter) Model() string { return f.model }

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.reply, f.err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []models.GenerationRecord
	err     error
}

func (f *fakeRecorder) RecordGeneration(_ context.Context, rec models.GenerationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return f.err
}

func text(s string) *string { return &s }

func payloadWith(n int, readme *string) models.Payload {
	p := models.Payload{User: models.Identity{Login: "octocat", Name: text("The Octocat"), Followers: 10, PublicRepos: n}}
	for i := 0; i < n; i++ {
		p.Repositories = append(p.Repositories, models.PayloadEntry{
			Name:      fmt.Sprintf("project-%02d", i),
			Stars:     i,
			Topics:    []string{},
			Readme:    readme,
			HasReadme: readme != nil,
			CreatedAt: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC),
		})
	}
	return p
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "abc...", Excerpt("abc", 10))
	assert.Equal(t, "ab...", Excerpt("abc", 2))
	assert.Equal(t, "안녕...", Excerpt("안녕하세요", 2))
}

func TestTopRepositories(t *testing.T) {
	assert.Len(t, TopRepositories(payloadWith(3, nil)), 3)

	top := TopRepositories(payloadWith(25, nil))
	require.Len(t, top, MaxPromptRepositories)
	assert.Equal(t, "project-00", top[0].Name)
	assert.Equal(t, "project-09", top[9].Name)
}

func TestRenderLimitsRepositories(t *testing.T) {
	p := payloadWith(12, nil)
	for _, b := range []Backend{NewGemini(&fakeCompleter{}), NewGPT(&fakeCompleter{})} {
		t.Run(b.Name(), func(t *testing.T) {
			prompt := b.Render(p)
			assert.Contains(t, prompt, "project-09")
			assert.NotContains(t, prompt, "project-10")
			assert.NotContains(t, prompt, "project-11")
		})
	}
}

func TestRenderTruncatesReadme(t *testing.T) {
	readme := strings.Repeat("a", 500)
	p := payloadWith(1, &readme)

	gemini := NewGemini(&fakeCompleter{}).Render(p)
	assert.Contains(t, gemini, strings.Repeat("a", 300)+"...")
	assert.NotContains(t, gemini, strings.Repeat("a", 301))

	gpt := NewGPT(&fakeCompleter{}).Render(p)
	assert.Contains(t, gpt, strings.Repeat("a", 200)+"...")
	assert.NotContains(t, gpt, strings.Repeat("a", 201))
	assert.Contains(t, gpt, "README: 있음")
}

func TestRenderWithoutReadme(t *testing.T) {
	p := payloadWith(1, nil)

	gemini := NewGemini(&fakeCompleter{}).Render(p)
	assert.NotContains(t, gemini, "README 요약")
	assert.Contains(t, gemini, "설명 없음")
	assert.Contains(t, gemini, "언어 정보 없음")
	assert.Contains(t, gemini, "2024. 1. 5. ~ 2024. 11. 20.")
	assert.Contains(t, gemini, "주제: 없음")

	gpt := NewGPT(&fakeCompleter{}).Render(p)
	assert.NotContains(t, gpt, "README 내용")
	assert.Contains(t, gpt, "README: 없음")
	assert.Contains(t, gpt, "연락처 정보 없음")
}

func TestRenderUsesLoginWithoutName(t *testing.T) {
	p := payloadWith(0, nil)
	p.User.Name = nil
	assert.Contains(t, NewGPT(&fakeCompleter{}).Render(p), "# octocat의 포트폴리오")
}

func TestGPTRequestShape(t *testing.T) {
	fc := &fakeCompleter{model: "gpt-4o", reply: "ok"}
	_, err := NewGPT(fc).Complete(context.Background(), "prompt")
	require.NoError(t, err)

	require.Len(t, fc.calls, 1)
	assert.Equal(t, gptSystemPrompt, fc.calls[0].System)
	assert.Equal(t, 2000, fc.calls[0].MaxTokens)
	assert.InDelta(t, 0.7, fc.calls[0].Temperature, 0.0001)
}

func TestGenerate(t *testing.T) {
	gemini := &fakeCompleter{model: "gemini-2.0-flash", reply: "# Gemini portfolio"}
	gpt := &fakeCompleter{model: "gpt-4o", reply: "# GPT portfolio"}
	rec := &fakeRecorder{}
	m := metrics.NewCollector()
	d := NewDispatcher([]Backend{NewGemini(gemini), NewGPT(gpt)}, DispatcherOptions{Recorder: rec, Metrics: m})

	assert.Equal(t, []string{GeminiName, GPTName}, d.Backends())

	p := payloadWith(15, nil)

	out, err := d.Generate(context.Background(), GeminiName, p)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "# Gemini portfolio", out.Portfolio)
	assert.Equal(t, 15, out.ProjectCount)
	assert.Equal(t, "octocat", out.User.Login)
	assert.Empty(t, out.AIModel)

	out, err = d.Generate(context.Background(), GPTName, p)
	require.NoError(t, err)
	assert.Equal(t, "# GPT portfolio", out.Portfolio)
	assert.Equal(t, "GPT-4o", out.AIModel)

	require.Len(t, rec.records, 2)
	assert.Equal(t, "gemini-2.0-flash", rec.records[0].Model)
	assert.Equal(t, GPTName, rec.records[1].Backend)
	assert.True(t, rec.records[1].Success)
	assert.NotEmpty(t, rec.records[1].ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Generations.WithLabelValues(GPTName, "success")))
}

func TestGenerateUnknownBackend(t *testing.T) {
	fc := &fakeCompleter{reply: "x"}
	d := NewDispatcher([]Backend{NewGPT(fc)}, DispatcherOptions{})

	_, err := d.Generate(context.Background(), "claude", payloadWith(1, nil))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 0, fc.callCount())
}

func TestGenerateReturnsEmptyCompletion(t *testing.T) {
	d := NewDispatcher([]Backend{NewGemini(&fakeCompleter{reply: ""})}, DispatcherOptions{})

	out, err := d.Generate(context.Background(), GeminiName, payloadWith(1, nil))
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "", out.Portfolio)
}

func TestGenerateFailure(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	fc := &fakeCompleter{err: errors.New("quota exceeded")}
	d := NewDispatcher([]Backend{NewGPT(fc)}, DispatcherOptions{Recorder: rec})

	_, err := d.Generate(context.Background(), GPTName, payloadWith(1, nil))
	assert.ErrorIs(t, err, apperr.ErrGeneration)
	assert.Equal(t, 500, apperr.StatusOf(err))
	assert.Equal(t, "Failed to generate portfolio", apperr.PublicMessage(err, "Failed to generate portfolio"))

	require.Len(t, rec.records, 1)
	assert.False(t, rec.records[0].Success)
}

func TestGenerateOpenBreakerSkipsBackend(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("boom")}
	d := NewDispatcher([]Backend{NewGemini(fc)}, DispatcherOptions{BreakerFailures: 2, BreakerCooldown: time.Hour})

	for i := 0; i < 2; i++ {
		_, err := d.Generate(context.Background(), GeminiName, payloadWith(1, nil))
		require.Error(t, err)
	}
	require.Equal(t, 2, fc.callCount())

	_, err := d.Generate(context.Background(), GeminiName, payloadWith(1, nil))
	assert.ErrorIs(t, err, apperr.ErrGeneration)
	assert.Equal(t, 2, fc.callCount())
}

// cancellingBackend ends the caller's context mid-call, the way a client
// disconnect does, and fails with the context error when told to.
type cancellingBackend struct {
	*Gemini
	cancel context.CancelFunc
	calls  *int
}

func (c cancellingBackend) Complete(ctx context.Context, prompt string) (string, error) {
	*c.calls++
	if c.cancel != nil {
		c.cancel()
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "# ok", nil
}

func TestGenerateCallerCancellationKeepsBreakerClosed(t *testing.T) {
	calls := 0
	rec := &fakeRecorder{}
	m := metrics.NewCollector()
	healthy := cancellingBackend{Gemini: NewGemini(&fakeCompleter{}), calls: &calls}
	d := NewDispatcher([]Backend{healthy}, DispatcherOptions{BreakerFailures: 2, BreakerCooldown: time.Hour, Recorder: rec, Metrics: m})

	t.Run("already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		for i := 0; i < 5; i++ {
			_, err := d.Generate(ctx, GeminiName, payloadWith(1, nil))
			assert.ErrorIs(t, err, apperr.ErrGeneration)
			assert.ErrorIs(t, err, context.Canceled)
		}
		assert.Equal(t, 0, calls)
	})

	t.Run("cancelled mid-call", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			ctx, cancel := context.WithCancel(context.Background())
			g := d.backends[GeminiName]
			g.backend = cancellingBackend{Gemini: healthy.Gemini, cancel: cancel, calls: &calls}
			d.backends[GeminiName] = g

			_, err := d.Generate(ctx, GeminiName, payloadWith(1, nil))
			assert.ErrorIs(t, err, apperr.ErrGeneration)
			assert.ErrorIs(t, err, context.Canceled)
		}
		assert.Equal(t, 5, calls)
	})

	g := d.backends[GeminiName]
	g.backend = healthy
	d.backends[GeminiName] = g

	out, err := d.Generate(context.Background(), GeminiName, payloadWith(1, nil))
	require.NoError(t, err)
	assert.Equal(t, "# ok", out.Portfolio)
	assert.Equal(t, 6, calls)

	require.Len(t, rec.records, 1)
	assert.True(t, rec.records[0].Success)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Generations.WithLabelValues(GeminiName, "failure")))
}

type slowBackend struct{ *Gemini }

func (s slowBackend) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestGenerateTimeout(t *testing.T) {
	d := NewDispatcher([]Backend{slowBackend{NewGemini(&fakeCompleter{})}}, DispatcherOptions{Timeout: 20 * time.Millisecond})

	_, err := d.Generate(context.Background(), GeminiName, payloadWith(1, nil))
	assert.ErrorIs(t, err, apperr.ErrGeneration)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
