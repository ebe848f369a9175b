package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-authgate/appid"
	"github.com/jrsteele09/go-authgate/internal/config"
	"github.com/jrsteele09/go-authgate/internal/httpx"
	"github.com/jrsteele09/go-authgate/sessions"
)

type Server struct {
	env      string // Environment (e.g. "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	appID    *appid.Client
	sessions *sessions.Manager
	gate     *AuthGate
}

func New(cfg config.Config) *Server {
	httpClient := httpx.NewClient()
	appIDClient := appid.NewClient(appid.Config{
		ClientID:         cfg.GetClientID(),
		ClientSecret:     cfg.GetClientSecret(),
		RedirectURI:      cfg.GetRedirectURI(),
		OAuthServerURL:   cfg.GetOAuthServerURL(),
		ManagementURL:    cfg.GetManagementURL(),
		IAMTokenEndpoint: cfg.GetIAMTokenEndpoint(),
		IAMAPIKey:        cfg.GetIAMAPIKey(),
	}, httpClient)
	sessionManager := sessions.NewManager(cfg.GetSessionSecret())

	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		appID:    appIDClient,
		sessions: sessionManager,
		gate:     NewAuthGate(appIDClient, sessionManager),
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
