package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-authgate/appid"
	"github.com/jrsteele09/go-authgate/sessions"
)

// AuthGate enforces login and role membership on protected routes. A request
// only reaches the wrapped handler when the session holds an access token the
// provider still considers active and the user has at least one assigned
// role.
type AuthGate struct {
	appID    *appid.Client
	sessions *sessions.Manager
}

func NewAuthGate(appID *appid.Client, sessionManager *sessions.Manager) *AuthGate {
	return &AuthGate{appID: appID, sessions: sessionManager}
}

// Check is the middleware applied to protected routes.
func (g *AuthGate) Check(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := g.sessions.Load(r)

		active, errMsg := g.isAuthActive(r.Context(), sess)
		if !active {
			if errMsg != "" {
				g.saveSession(sess, w, r)
				fmt.Fprint(w, "internal error: "+errMsg)
				return
			}
			g.startAuth(w, r, sess)
			return
		}

		if !userHasRole(sess) {
			g.saveSession(sess, w, r)
			fmt.Fprint(w, "unauthorized")
			return
		}

		g.saveSession(sess, w, r)
		next(w, r)
	}
}

// isAuthActive decides whether the session represents a live login. The
// second return value is a one-shot error message to surface to the user; an
// inactive session with no message simply triggers a fresh login.
func (g *AuthGate) isAuthActive(ctx context.Context, sess *sessions.Session) (bool, string) {
	if msg, ok := sess.PopAuthError(); ok {
		return false, msg
	}

	token, ok := sess.UserToken()
	if !ok {
		return false, ""
	}

	introspection, err := g.appID.Introspect(ctx, token)
	if err != nil {
		sess.ClearUser()
		msg := fmt.Sprintf("could not introspect user token, %v", err)
		log.Error().Msg(msg)
		return false, msg
	}
	if introspection.Active {
		return true, ""
	}

	sess.ClearUser()
	if introspection.ErrorDescription != "" {
		msg := fmt.Sprintf("could not introspect user token, %s", introspection.ErrorDescription)
		log.Error().Msg(msg)
		return false, msg
	}
	// Token simply expired; start a fresh login rather than showing an error.
	return false, ""
}

// startAuth stashes where the user was headed and redirects the browser to
// the provider's authorization endpoint.
func (g *AuthGate) startAuth(w http.ResponseWriter, r *http.Request, sess *sessions.Session) {
	sess.StashReturnPath(r.URL.Path)
	g.saveSession(sess, w, r)
	http.Redirect(w, r, g.appID.AuthCodeURL(), http.StatusFound)
}

// userHasRole reports whether the session carries at least one role. A
// session with zero roles is treated as invalid, not merely unauthorized
// once, so the token and roles are cleared and the next attempt starts a
// fresh login.
func userHasRole(sess *sessions.Session) bool {
	if len(sess.UserRoles()) > 0 {
		return true
	}
	sess.ClearUser()
	return false
}

func (g *AuthGate) saveSession(sess *sessions.Session, w http.ResponseWriter, r *http.Request) {
	if err := sess.Save(r, w); err != nil {
		log.Error().Err(err).Msg("saving session cookie")
	}
}
