package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// IndexHandler sends visitors straight into the protected route so the login
// flow kicks in immediately.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, RouteProtected, http.StatusFound)
	}
}

func (s *Server) ProtectedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "This route requires authentication and authorization - Powered by IBM Cloud App ID!")
	}
}

func (s *Server) OpenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "This route is open to all!")
	}
}

// LogoutHandler drops the login state from the session and sends the user
// back to the root.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessions.Load(r)
		sess.ClearUser()
		if err := sess.Save(r, w); err != nil {
			log.Error().Err(err).Msg("saving session on logout")
		}
		http.Redirect(w, r, "/", http.StatusFound)
	}
}
