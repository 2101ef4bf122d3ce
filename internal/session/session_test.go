package session

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newManager(t *testing.T, secret string) *Manager {
	t.Helper()
	m, err := NewManager(Options{Secret: secret, ClientID: "id", ClientSecret: "shh", PublicURL: "http://localhost:8080/"})
	require.NoError(t, err)
	return m
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager(Options{})
	assert.Error(t, err)
}

func TestIssueAndParse(t *testing.T) {
	m := newManager(t, "secret")

	signed, err := m.Issue("octocat", "gho_abc")
	require.NoError(t, err)

	claims, err := m.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "octocat", claims.Login)
	assert.Equal(t, "gho_abc", claims.AccessToken)
	assert.Equal(t, "octocat", claims.Subject)
}

func TestIssueSealsAccessToken(t *testing.T) {
	m := newManager(t, "secret")

	signed, err := m.Issue("octocat", "gho_plaintext_secret")
	require.NoError(t, err)

	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"login":"octocat"`)
	assert.NotContains(t, string(payload), "gho_plaintext_secret")

	again, err := m.Issue("octocat", "gho_plaintext_secret")
	require.NoError(t, err)
	assert.NotEqual(t, signed, again)
}

func TestParseRejectsTamperedSeal(t *testing.T) {
	m := newManager(t, "secret")
	other := newManager(t, "other")

	sealed, err := other.seal("gho_abc")
	require.NoError(t, err)
	claims := Claims{Login: "octocat", SealedToken: sealed, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims.SealedToken = "not-base64!"
	signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejects(t *testing.T) {
	m := newManager(t, "secret")
	signed, err := m.Issue("octocat", "gho_abc")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := newManager(t, "other").Parse(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := newManager(t, "secret")
		later.now = func() time.Time { return time.Now().Add(DefaultTTL + time.Minute) }
		_, err := later.Parse(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := m.Parse("")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Parse("not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenFrom(t *testing.T) {
	m := newManager(t, "secret")
	signed, err := m.Issue("octocat", "gho_cookie")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", m.TokenFrom(r))

	r.AddCookie(&http.Cookie{Name: CookieName, Value: signed})
	assert.Equal(t, "gho_cookie", m.TokenFrom(r))

	r.Header.Set("Authorization", "Bearer gho_header")
	assert.Equal(t, "gho_header", m.TokenFrom(r))

	forged := httptest.NewRequest(http.MethodGet, "/", nil)
	other, err := newManager(t, "other").Issue("mallory", "gho_forged")
	require.NoError(t, err)
	forged.AddCookie(&http.Cookie{Name: CookieName, Value: other})
	assert.Equal(t, "", m.TokenFrom(forged))
}

func TestSessionCookieAttributes(t *testing.T) {
	m := newManager(t, "secret")
	rec := httptest.NewRecorder()
	m.SetSession(rec, "value")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.False(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, int(DefaultTTL.Seconds()), cookies[0].MaxAge)
}

func TestMiddleware(t *testing.T) {
	m := newManager(t, "secret")
	var got string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = TokenFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer gho_x")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "gho_x", got)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "", got)
}

func TestLoginFlow(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_exchanged","token_type":"bearer","scope":"read:user"}`))
	}))
	t.Cleanup(provider.Close)

	m, err := NewManager(Options{
		Secret:    "secret",
		ClientID:  "id",
		PublicURL: "https://portfolio.example.com",
		Endpoint:  &oauth2.Endpoint{AuthURL: provider.URL + "/authorize", TokenURL: provider.URL + "/token"},
	})
	require.NoError(t, err)

	begin := httptest.NewRecorder()
	authURL, err := url.Parse(m.BeginLogin(begin))
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "https://portfolio.example.com/auth/callback", authURL.Query().Get("redirect_uri"))

	stateCookie := begin.Result().Cookies()[0]
	assert.True(t, stateCookie.Secure)

	t.Run("state mismatch", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/auth/callback?code=the-code&state=wrong", nil)
		r.AddCookie(stateCookie)
		_, err := m.CompleteLogin(context.Background(), httptest.NewRecorder(), r)
		assert.ErrorIs(t, err, ErrStateMismatch)
	})

	t.Run("exchange", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/auth/callback?code=the-code&state="+state, nil)
		r.AddCookie(stateCookie)
		tok, err := m.CompleteLogin(context.Background(), httptest.NewRecorder(), r)
		require.NoError(t, err)
		assert.Equal(t, "gho_exchanged", tok)
	})
}
