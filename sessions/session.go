// Package sessions carries the login state between requests inside a signed
// session cookie. Four keys are used: the user's access token, their role
// names, a one-shot error message from a failed login callback, and the
// one-shot path the user was originally headed to.
package sessions

import (
	"encoding/gob"
	"net/http"

	gorillasessions "github.com/gorilla/sessions"
)

const cookieName = "authgate"

// Session value keys.
const (
	keyUserToken  = "user_token"
	keyUserRoles  = "user_roles"
	keyAuthError  = "auth_error"
	keyReturnPath = "return_path"
)

func init() {
	gob.Register([]string{})
}

// Manager creates per-request sessions backed by a signed cookie.
type Manager struct {
	store *gorillasessions.CookieStore
}

// NewManager builds a Manager signing cookies with the given secret. The
// cookie has browser-session lifetime, so closing the browser logs out.
func NewManager(secret string) *Manager {
	store := gorillasessions.NewCookieStore([]byte(secret))
	store.MaxAge(0)
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode
	return &Manager{store: store}
}

// Load returns the session for the request. A missing cookie or one that
// fails signature verification yields a fresh empty session.
func (m *Manager) Load(r *http.Request) *Session {
	inner, _ := m.store.Get(r, cookieName)
	return &Session{inner: inner}
}

// Session is the decoded per-request session. Mutations only take effect once
// Save has written the cookie back to the response.
type Session struct {
	inner *gorillasessions.Session
}

func (s *Session) Save(r *http.Request, w http.ResponseWriter) error {
	return s.inner.Save(r, w)
}

// UserToken returns the stored access token, if any.
func (s *Session) UserToken() (string, bool) {
	token, ok := s.inner.Values[keyUserToken].(string)
	return token, ok && token != ""
}

// UserRoles returns the stored role names, nil when absent.
func (s *Session) UserRoles() []string {
	roles, _ := s.inner.Values[keyUserRoles].([]string)
	return roles
}

// SetLogin records a successful login. Roles are only ever stored together
// with the token that authorized the lookup.
func (s *Session) SetLogin(token string, roles []string) {
	s.inner.Values[keyUserToken] = token
	s.inner.Values[keyUserRoles] = roles
}

// ClearUser removes the token and roles, returning the session to the
// logged-out state.
func (s *Session) ClearUser() {
	delete(s.inner.Values, keyUserToken)
	delete(s.inner.Values, keyUserRoles)
}

// SetAuthError stores a one-shot error message for the next authorization
// check to consume.
func (s *Session) SetAuthError(msg string) {
	s.inner.Values[keyAuthError] = msg
}

// PopAuthError consumes the one-shot error message.
func (s *Session) PopAuthError() (string, bool) {
	msg, ok := s.inner.Values[keyAuthError].(string)
	if ok {
		delete(s.inner.Values, keyAuthError)
	}
	return msg, ok && msg != ""
}

// StashReturnPath records where the user was headed before being sent to the
// identity provider. First touch wins: a retried authorization check must not
// clobber the original destination.
func (s *Session) StashReturnPath(path string) {
	if _, ok := s.inner.Values[keyReturnPath].(string); ok {
		return
	}
	s.inner.Values[keyReturnPath] = path
}

// PopReturnPath consumes the stashed destination path.
func (s *Session) PopReturnPath() (string, bool) {
	path, ok := s.inner.Values[keyReturnPath].(string)
	if ok {
		delete(s.inner.Values, keyReturnPath)
	}
	return path, ok && path != ""
}
