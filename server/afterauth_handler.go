package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-authgate/appid"
	"github.com/jrsteele09/go-authgate/sessions"
)

// AfterAuthHandler is the redirect URI pre-registered with the App ID service
// instance. The provider sends the browser here with an authorization code
// after the user authenticates. Whatever happens, the handler finishes by
// redirecting back to the stashed return path; failures travel through the
// session as a one-shot error message, never as an HTTP error status.
func (s *Server) AfterAuthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessions.Load(r)

		if errMsg := s.completeLogin(r, sess); errMsg != "" {
			log.Error().Msg(errMsg)
			sess.SetAuthError(errMsg)
		}

		returnPath, ok := sess.PopReturnPath()
		if !ok {
			returnPath = "/"
		}
		if err := sess.Save(r, w); err != nil {
			log.Error().Err(err).Msg("saving session after auth callback")
		}
		http.Redirect(w, r, returnPath, http.StatusFound)
	}
}

// completeLogin runs the code-for-token exchange and the role lookup,
// populating the session on success. It returns the error message to surface
// on the user's next authorization check; no step aborts the callback.
func (s *Server) completeLogin(r *http.Request, sess *sessions.Session) string {
	code := r.URL.Query().Get("code")
	if code == "" {
		return "did not receive 'code' from the authorization server"
	}

	tokens, err := s.appID.Exchange(r.Context(), code)
	if err != nil {
		return err.Error()
	}

	identity, err := appid.ParseIdentity(tokens.IDToken)
	if err != nil {
		return fmt.Sprintf("could not decode identity token, %v", err)
	}

	roles, err := s.appID.UserRoles(r.Context(), identity.Subject)
	if err != nil {
		return fmt.Sprintf("could not retrieve user roles, %v", err)
	}

	sess.SetLogin(tokens.AccessToken, roles)
	log.Info().Str("email", identity.Email).Msg("user logged in")
	return ""
}
