// Package server exposes the gateway, aggregation and generation operations
// over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kevinmichaelchen/gh-portfolio/internal/generate"
	"github.com/kevinmichaelchen/gh-portfolio/internal/metrics"
	"github.com/kevinmichaelchen/gh-portfolio/internal/models"
	"github.com/kevinmichaelchen/gh-portfolio/internal/session"
)

const maxBodyBytes = 5 << 20

// Gateway is the GitHub surface the handlers call.
type Gateway interface {
	FetchProfile(ctx context.Context, token string) (models.Identity, error)
	FetchProfileAndRepositories(ctx context.Context, token string) (models.Identity, []models.RepositorySummary, error)
	FetchReadme(ctx context.Context, token, owner, repo string) (models.ReadmeResult, error)
}

type Aggregator interface {
	Collect(ctx context.Context, token string) (models.Payload, error)
}

type Generator interface {
	Generate(ctx context.Context, backend string, payload models.Payload) (models.GeneratedPortfolio, error)
}

type Deps struct {
	GitHub     Gateway
	Aggregator Aggregator
	Generator  Generator
	Sessions   *session.Manager
	Logger     *zap.Logger
	Metrics    *metrics.Collector
	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string
	// PublicURL is where /auth/callback sends the browser after sign-in.
	PublicURL string
}

type Server struct {
	github     Gateway
	aggregator Aggregator
	generator  Generator
	sessions   *session.Manager
	logger     *zap.Logger
	metrics    *metrics.Collector
	validate   *validator.Validate
	origins    []string
	publicURL  string
}

func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		github:     d.GitHub,
		aggregator: d.Aggregator,
		generator:  d.Generator,
		sessions:   d.Sessions,
		logger:     logger.Named("http"),
		metrics:    d.Metrics,
		validate:   newValidator(),
		origins:    d.CORSOrigins,
		publicURL:  d.PublicURL,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.observe)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", s.login)
		r.Get("/callback", s.callback)
		r.Post("/logout", s.logout)
		r.Get("/session", s.currentSession)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.sessions.Middleware)

		r.Get("/github/user", s.githubUser)
		r.Post("/github/readme", s.githubReadme)
		r.Get("/portfolio/data", s.portfolioData)
		r.Post("/ai/generate-portfolio", s.generateWith(generate.GeminiName, "Failed to generate portfolio"))
		r.Post("/ai/generate-portfolio-gpt", s.generateWith(generate.GPTName, "Failed to generate portfolio with GPT"))
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		}
		switch {
		case ww.Status() >= 500:
			s.logger.Error("request failed", fields...)
		case ww.Status() >= 400:
			s.logger.Warn("request rejected", fields...)
		default:
			s.logger.Info("request completed", fields...)
		}
	})
}

// observe records request metrics labelled by route pattern, not raw path.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
	})
}
