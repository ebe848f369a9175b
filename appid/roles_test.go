package appid_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-authgate/appid"
)

const freshManagementToken = "fresh-mgmt-token"

// rolesFixture fakes the management API and the IAM token issuer on a single
// test server. The roles endpoint rejects anything but the fresh management
// token with a 401, which is how App ID signals a stale token in production.
type rolesFixture struct {
	client    *appid.Client
	rolesHits atomic.Int32
	iamHits   atomic.Int32
}

func newRolesFixture(t *testing.T, rolesHandler http.HandlerFunc) *rolesFixture {
	t.Helper()
	f := &rolesFixture{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /management/v4/tenant/users/{userID}/roles", func(w http.ResponseWriter, r *http.Request) {
		f.rolesHits.Add(1)
		rolesHandler(w, r)
	})
	mux.HandleFunc("POST /identity/token", func(w http.ResponseWriter, r *http.Request) {
		f.iamHits.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ibm:params:oauth:grant-type:apikey", r.PostForm.Get("grant_type"))
		assert.Equal(t, "test-apikey", r.PostForm.Get("apikey"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": freshManagementToken})
	})
	provider := httptest.NewServer(mux)
	t.Cleanup(provider.Close)

	f.client = newTestClient(t, provider.URL)
	return f
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestUserRolesRefreshesStaleTokenOnce(t *testing.T) {
	f := newRolesFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+freshManagementToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "user-1", r.PathValue("userID"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"roles": []map[string]string{{"name": "editor"}},
		})
	})

	roles, err := f.client.UserRoles(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"editor"}, roles)
	assert.EqualValues(t, 1, f.iamHits.Load(), "expected exactly one management token refresh")
	assert.EqualValues(t, 2, f.rolesHits.Load(), "expected the roles lookup to be retried once")
}

func TestUserRolesForbidden(t *testing.T) {
	f := newRolesFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := f.client.UserRoles(context.Background(), "user-1")
	require.ErrorIs(t, err, appid.ErrForbidden)
	assert.EqualValues(t, 0, f.iamHits.Load(), "403 must not trigger a token refresh")
	assert.EqualValues(t, 1, f.rolesHits.Load())
}

func TestUserRolesForbiddenAfterRefresh(t *testing.T) {
	f := newRolesFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+freshManagementToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := f.client.UserRoles(context.Background(), "user-1")
	require.ErrorIs(t, err, appid.ErrForbidden)
	assert.EqualValues(t, 1, f.iamHits.Load())
	assert.EqualValues(t, 2, f.rolesHits.Load())
}

func TestUserRolesRefreshFailure(t *testing.T) {
	mux := http.NewServeMux()
	var rolesHits, iamHits atomic.Int32
	mux.HandleFunc("GET /management/v4/tenant/users/{userID}/roles", func(w http.ResponseWriter, r *http.Request) {
		rolesHits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("POST /identity/token", func(w http.ResponseWriter, r *http.Request) {
		iamHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"errorCode": "BXNIM0415E"})
	})
	provider := httptest.NewServer(mux)
	t.Cleanup(provider.Close)

	client := newTestClient(t, provider.URL)
	_, err := client.UserRoles(context.Background(), "user-1")
	require.EqualError(t, err, "could not retrieve App ID management access token, BXNIM0415E")
	assert.EqualValues(t, 1, iamHits.Load())
	assert.EqualValues(t, 1, rolesHits.Load(), "lookup must not be retried when the refresh fails")
}

func TestUserRolesResponseShapes(t *testing.T) {
	tests := []struct {
		name      string
		body      any
		wantRoles []string
		wantErr   string
	}{
		{
			name:      "multiple roles keep order",
			body:      map[string]any{"roles": []map[string]string{{"name": "admin"}, {"name": "editor"}}},
			wantRoles: []string{"admin", "editor"},
		},
		{
			name:      "empty roles list",
			body:      map[string]any{"roles": []map[string]string{}},
			wantRoles: []string{},
		},
		{
			name:    "iam error shape",
			body:    map[string]any{"Error": map[string]string{"Status": "invalid IAM token"}},
			wantErr: "invalid IAM token",
		},
		{
			name:    "app id error shape",
			body:    map[string]any{"errorCode": "NOT_FOUND"},
			wantErr: "NOT_FOUND",
		},
		{
			name:    "unrecognized shape",
			body:    map[string]any{"something": "else"},
			wantErr: "unrecognized user roles response",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newRolesFixture(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusOK, tc.body)
			})

			roles, err := f.client.UserRoles(context.Background(), "user-1")
			if tc.wantErr != "" {
				require.EqualError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantRoles, roles)
		})
	}
}
