package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET /{$}", s.IndexHandler())

	s.RegisterRouteFunc("GET "+RouteAfterAuth, s.AfterAuthHandler())
	s.RegisterRouteFunc("GET "+RouteLogout, s.LogoutHandler())

	s.RegisterRouteHandler("GET "+RouteProtected, ChainMiddleware(s.ProtectedHandler(), s.StdMiddleware(s.gate.Check)...))
	s.RegisterRouteHandler("GET "+RouteOpen, ChainMiddleware(s.OpenHandler(), s.StdMiddleware()...))
}
