package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kevinmichaelchen/gh-portfolio/internal/apperr"
	"github.com/kevinmichaelchen/gh-portfolio/internal/models"
	"github.com/kevinmichaelchen/gh-portfolio/internal/session"
)

type readmeRequest struct {
	Owner string `json:"owner" validate:"required"`
	Repo  string `json:"repo" validate:"required"`
}

type generateRequest struct {
	PortfolioData *models.Payload `json:"portfolioData" validate:"required"`
}

type githubUserResponse struct {
	User         models.Identity            `json:"user"`
	Repositories []models.RepositorySummary `json:"repositories"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) githubUser(w http.ResponseWriter, r *http.Request) {
	token := session.TokenFromContext(r.Context())
	if token == "" {
		s.fail(w, r, apperr.Unauthenticated(""), "")
		return
	}

	user, repos, err := s.github.FetchProfileAndRepositories(r.Context(), token)
	if err != nil {
		s.fail(w, r, err, "Failed to fetch GitHub data")
		return
	}
	if repos == nil {
		repos = []models.RepositorySummary{}
	}
	writeJSON(w, http.StatusOK, githubUserResponse{User: user, Repositories: repos})
}

func (s *Server) githubReadme(w http.ResponseWriter, r *http.Request) {
	token := session.TokenFromContext(r.Context())
	if token == "" {
		s.fail(w, r, apperr.Unauthenticated(""), "")
		return
	}

	var req readmeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, bodyError(err, "Owner and repo are required"), "")
		return
	}

	result, err := s.github.FetchReadme(r.Context(), token, req.Owner, req.Repo)
	if err != nil {
		s.fail(w, r, err, "Failed to fetch README")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// portfolioData runs the whole aggregation server-side and returns the
// payload a generation request expects.
func (s *Server) portfolioData(w http.ResponseWriter, r *http.Request) {
	token := session.TokenFromContext(r.Context())
	if token == "" {
		s.fail(w, r, apperr.Unauthenticated(""), "")
		return
	}

	payload, err := s.aggregator.Collect(r.Context(), token)
	if err != nil {
		s.fail(w, r, err, "Failed to fetch GitHub data")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) generateWith(backend, failure string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := s.decode(w, r, &req); err != nil {
			s.fail(w, r, bodyError(err, "Portfolio data is required"), "")
			return
		}
		if req.PortfolioData.Repositories == nil {
			req.PortfolioData.Repositories = []models.PayloadEntry{}
		}

		out, err := s.generator.Generate(r.Context(), backend, *req.PortfolioData)
		if err != nil {
			s.fail(w, r, err, failure)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// fail logs err and writes the flat error body. Validation and auth
// messages are returned as is; anything else is replaced by fallback.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := apperr.StatusOf(err)
	if fallback == "" {
		fallback = http.StatusText(status)
	}

	fields := []zap.Field{zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err)}
	var ae *apperr.Error
	switch {
	case status >= 500:
		s.logger.Error("request error", fields...)
	case errors.As(err, &ae) && ae.Kind == apperr.KindUnauthenticated:
		s.logger.Debug("unauthenticated request", fields...)
	default:
		s.logger.Info("invalid request", fields...)
	}

	writeError(w, status, apperr.PublicMessage(err, fallback))
}
