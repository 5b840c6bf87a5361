package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthLogin   = "/auth/login"
	RouteAuthRefresh = "/auth/refresh"
	RouteAuthLogout  = "/auth/logout"

	// OAuth2 Routes
	RouteOAuth2Token = "/oauth2/token"

	// API Routes
	RouteAPIMe             = "/api/me"
	RouteAPIReportsSummary = "/api/reports/summary"
	RouteAPIConfigList     = "/api/config/{list}"
	RouteAPIStaff          = "/api/staff"
	RouteAPIStaffMember    = "/api/staff/{id}"

	routeAPIPrefix = "/api/"
)

// Cookie path of the refresh token. It is only sent to the auth routes.
const refreshCookiePath = "/auth"

// Collections served by the generic record endpoints.
var collections = []string{"customers", "vehicles", "suppliers", "packages", "bookings", "payments", "expenses"}

func collectionRoute(name string) string {
	return routeAPIPrefix + name
}

func recordRoute(name string) string {
	return routeAPIPrefix + name + "/{id}"
}
