package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kevinmichaelchen/gh-portfolio/internal/apperr"
)

type sessionResponse struct {
	Login string `json:"login"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.sessions.BeginLogin(w), http.StatusFound)
}

// callback finishes the OAuth flow, resolves the login for the new token
// and issues the session cookie.
func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	token, err := s.sessions.CompleteLogin(r.Context(), w, r)
	if err != nil {
		s.logger.Warn("oauth callback rejected", zap.Error(err))
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := s.github.FetchProfile(r.Context(), token)
	if err != nil {
		s.fail(w, r, err, "Failed to fetch GitHub data")
		return
	}

	signed, err := s.sessions.Issue(user.Login, token)
	if err != nil {
		s.fail(w, r, err, "Failed to start session")
		return
	}
	s.sessions.SetSession(w, signed)
	s.logger.Info("signed in", zap.String("login", user.Login))

	target := s.publicURL
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) {
	claims, err := s.sessions.FromRequest(r)
	if err != nil {
		s.fail(w, r, apperr.Unauthenticated(""), "")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Login: claims.Login})
}
