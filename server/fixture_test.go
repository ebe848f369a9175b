package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-authgate/internal/config"
	"github.com/jrsteele09/go-authgate/server"
	"github.com/jrsteele09/go-authgate/sessions"
)

const (
	testClientID      = "test-client-1"
	testClientSecret  = "test-secret-1"
	testSessionSecret = "test-session-secret"
	freshMgmtToken    = "fresh-mgmt-token"
)

// fixture stands up the application server against a fake App ID / IAM
// backend. Tests register only the provider endpoints they need.
type fixture struct {
	t        *testing.T
	provider *httptest.Server
	mux      *http.ServeMux
	srv      *server.Server
	sessions *sessions.Manager

	tokenHits atomic.Int32
	iamHits   atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, mux: http.NewServeMux()}
	f.provider = httptest.NewServer(f.mux)
	t.Cleanup(f.provider.Close)

	t.Setenv("APPID_CLIENT_ID", testClientID)
	t.Setenv("APPID_CLIENT_SECRET", testClientSecret)
	t.Setenv("APPID_REDIRECT_URI", "http://localhost:8080"+server.RouteAfterAuth)
	t.Setenv("APPID_OAUTH_SERVER_URL", f.provider.URL+"/oauth/v4/tenant")
	t.Setenv("SESSION_SECRET_KEY", testSessionSecret)
	t.Setenv("IBM_CLOUD_APIKEY", "test-apikey")
	t.Setenv("IAM_TOKEN_ENDPOINT", f.provider.URL+"/identity/token")
	t.Setenv("ENV", "TEST")

	cfg, err := config.New()
	require.NoError(t, err)

	f.srv = server.New(cfg)
	f.sessions = sessions.NewManager(testSessionSecret)
	return f
}

func (f *fixture) oauthBase() string {
	return f.provider.URL + "/oauth/v4/tenant"
}

// serveIntrospect makes the provider report every token with the given
// verdict.
func (f *fixture) serveIntrospect(active bool, errorDescription string) {
	f.mux.HandleFunc("POST /oauth/v4/tenant/introspect", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"active":            active,
			"error_description": errorDescription,
		})
	})
}

// serveTokenEndpoint answers every code exchange with the given tokens.
func (f *fixture) serveTokenEndpoint(accessToken, idToken string) {
	f.mux.HandleFunc("POST /oauth/v4/tenant/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": accessToken,
			"id_token":     idToken,
			"token_type":   "Bearer",
		})
	})
}

// serveTokenError answers every code exchange with an OAuth error response.
func (f *fixture) serveTokenError(description string) {
	f.mux.HandleFunc("POST /oauth/v4/tenant/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": description,
		})
	})
}

// serveRoles installs the management roles endpoint.
func (f *fixture) serveRoles(handler http.HandlerFunc) {
	f.mux.HandleFunc("GET /management/v4/tenant/users/{userID}/roles", handler)
}

// serveIAM installs the token issuer, handing out freshMgmtToken and counting
// how often it is asked.
func (f *fixture) serveIAM() {
	f.mux.HandleFunc("POST /identity/token", func(w http.ResponseWriter, r *http.Request) {
		f.iamHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": freshMgmtToken})
	})
}

func (f *fixture) get(target string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	f.t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

// seedSession builds a session cookie with the given state, as if left behind
// by an earlier request.
func (f *fixture) seedSession(mutate func(*sessions.Session)) []*http.Cookie {
	f.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess := f.sessions.Load(req)
	mutate(sess)
	rec := httptest.NewRecorder()
	require.NoError(f.t, sess.Save(req, rec))
	return rec.Result().Cookies()
}

// sessionFrom decodes the session cookie a response left behind.
func (f *fixture) sessionFrom(rec *httptest.ResponseRecorder) *sessions.Session {
	f.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, cookie := range rec.Result().Cookies() {
		req.AddCookie(cookie)
	}
	return f.sessions.Load(req)
}

func mintIDToken(t *testing.T, email, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": email, "sub": sub})
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}
