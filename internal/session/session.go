// Package session keeps the GitHub access token of a signed-in user in a
// signed cookie, sealed so the cookie payload never shows it, and runs the OAuth authorization-code flow that obtains it.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	CookieName      = "gh_portfolio_session"
	StateCookieName = "gh_portfolio_state"
	DefaultTTL      = 8 * time.Hour
	stateTTL        = 10 * time.Minute
	issuer          = "gh-portfolio"
	sealInfo        = "gh-portfolio session token"
	nonceSize       = 24
)

var (
	ErrMissingToken  = errors.New("missing session token")
	ErrInvalidToken  = errors.New("invalid session token")
	ErrStateMismatch = errors.New("oauth state mismatch")
)

// Claims is the session cookie payload. The access token travels only as
// SealedToken; AccessToken is filled in by Parse.
type Claims struct {
	Login       string `json:"login"`
	SealedToken string `json:"tok"`
	AccessToken string `json:"-"`
	jwt.RegisteredClaims
}

type Options struct {
	Secret       string
	ClientID     string
	ClientSecret string
	// PublicURL is the externally visible base URL. The OAuth callback is
	// PublicURL + "/auth/callback"; cookies are Secure when it is https.
	PublicURL string
	TTL       time.Duration
	// Endpoint overrides the GitHub OAuth endpoint, mainly for tests.
	Endpoint *oauth2.Endpoint
}

type Manager struct {
	secret  []byte
	sealKey [32]byte
	ttl     time.Duration
	secure  bool
	oauth   *oauth2.Config
	now     func() time.Time
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Secret == "" {
		return nil, errors.New("session secret is required")
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	endpoint := github.Endpoint
	if opts.Endpoint != nil {
		endpoint = *opts.Endpoint
	}
	publicURL := strings.TrimSuffix(opts.PublicURL, "/")

	var key [32]byte
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(opts.Secret), nil, []byte(sealInfo)), key[:]); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}

	return &Manager{
		secret:  []byte(opts.Secret),
		sealKey: key,
		ttl:     opts.TTL,
		secure:  strings.HasPrefix(publicURL, "https://"),
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  publicURL + "/auth/callback",
			Scopes:       []string{"read:user", "user:email"},
		},
		now: time.Now,
	}, nil
}

// Issue signs a session for login carrying the sealed GitHub access token.
func (m *Manager) Issue(login, accessToken string) (string, error) {
	sealed, err := m.seal(accessToken)
	if err != nil {
		return "", err
	}
	now := m.now()
	claims := Claims{
		Login:       login,
		SealedToken: sealed,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Parse verifies a signed session and returns its claims.
func (m *Manager) Parse(signed string) (*Claims, error) {
	if signed == "" {
		return nil, ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(signed, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	accessToken, err := m.open(claims.SealedToken)
	if err != nil || accessToken == "" {
		return nil, ErrInvalidToken
	}
	claims.AccessToken = accessToken
	return claims, nil
}

// seal encrypts an access token as base64url(nonce || box).
func (m *Manager) seal(accessToken string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("seal session token: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(accessToken), &nonce, &m.sealKey)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

func (m *Manager) open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrInvalidToken
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &m.sealKey)
	if !ok {
		return "", ErrInvalidToken
	}
	return string(plain), nil
}

// TokenFrom returns the GitHub access token of the request. A bearer
// Authorization header is passed through as is; otherwise the session
// cookie is verified. Missing or invalid credentials yield "".
func (m *Manager) TokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	claims, err := m.FromRequest(r)
	if err != nil {
		return ""
	}
	return claims.AccessToken
}

// FromRequest verifies the session cookie of r.
func (m *Manager) FromRequest(r *http.Request) (*Claims, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrMissingToken
	}
	return m.Parse(c.Value)
}

func (m *Manager) SetSession(w http.ResponseWriter, signed string) {
	http.SetCookie(w, m.cookie(CookieName, signed, m.ttl))
}

func (m *Manager) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(CookieName, "", -1))
}

// BeginLogin sets a fresh state cookie and returns the GitHub authorize URL.
func (m *Manager) BeginLogin(w http.ResponseWriter) string {
	state := uuid.NewString()
	http.SetCookie(w, m.cookie(StateCookieName, state, stateTTL))
	return m.oauth.AuthCodeURL(state)
}

// CompleteLogin checks the returned state against the state cookie and
// exchanges code for an access token.
func (m *Manager) CompleteLogin(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, error) {
	c, err := r.Cookie(StateCookieName)
	if err != nil || c.Value == "" || c.Value != r.URL.Query().Get("state") {
		return "", ErrStateMismatch
	}
	http.SetCookie(w, m.cookie(StateCookieName, "", -1))

	code := r.URL.Query().Get("code")
	if code == "" {
		return "", errors.New("missing authorization code")
	}
	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok.AccessToken, nil
}

func (m *Manager) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}

type tokenKey struct{}

// WithToken stores a GitHub access token in ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token stored by Middleware, or "".
func TokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// Middleware resolves the request token once and stores it in the context.
// It never rejects; handlers decide whether a token is required.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := m.TokenFrom(r); tok != "" {
			r = r.WithContext(WithToken(r.Context(), tok))
		}
		next.ServeHTTP(w, r)
	})
}
