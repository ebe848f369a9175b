package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Pre-registered with the App ID service instance as the redirect URI
	RouteAfterAuth = "/afterauth"

	RouteLogout = "/logout"

	// Demo routes: one behind the gate, one open
	RouteProtected = "/auth_route"
	RouteOpen      = "/noauth_route"
)
