package server

import (
	"net/http"

	"github.com/jrsteele09/go-agency-admin/users"
)

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// OAuth2
	s.RegisterRouteHandler("POST "+RouteOAuth2Token, ChainMiddleware(s.Token(), s.APIMiddleware()...))

	// API routes (require a valid access token)
	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteAPIReportsSummary, ChainMiddleware(s.ReportSummaryHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireAccess("reports", false))...))
	s.RegisterRouteHandler("GET "+RouteAPIConfigList, ChainMiddleware(s.ConfigListHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireAccess("config", false))...))

	s.RegisterRouteHandler("GET "+RouteAPIStaff, ChainMiddleware(s.ListStaffHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireAccess("staff", false))...))
	s.RegisterRouteHandler("POST "+RouteAPIStaff, ChainMiddleware(s.CreateStaffHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireAccess("staff", true))...))
	s.RegisterRouteHandler("GET "+RouteAPIStaffMember, ChainMiddleware(s.GetStaffHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireAccess("staff", false))...))
	s.RegisterRouteHandler("PUT "+RouteAPIStaffMember, ChainMiddleware(s.UpdateStaffHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireAccess("staff", true))...))
	s.RegisterRouteHandler("DELETE "+RouteAPIStaffMember, ChainMiddleware(s.DeleteStaffHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireAccess("staff", true))...))

	for _, name := range collections {
		read := s.APIMiddleware(s.RequireAuth(), s.RequireAccess(name, false))
		write := s.APIMiddleware(s.RequireAuth(), s.RequireAccess(name, true))
		s.RegisterRouteHandler("GET "+collectionRoute(name), ChainMiddleware(s.ListRecordsHandler(name), read...))
		s.RegisterRouteHandler("POST "+collectionRoute(name), ChainMiddleware(s.CreateRecordHandler(name), write...))
		s.RegisterRouteHandler("GET "+recordRoute(name), ChainMiddleware(s.GetRecordHandler(name), read...))
		s.RegisterRouteHandler("PUT "+recordRoute(name), ChainMiddleware(s.UpdateRecordHandler(name), write...))
		s.RegisterRouteHandler("DELETE "+recordRoute(name), ChainMiddleware(s.DeleteRecordHandler(name), write...))
	}

	s.RegisterRouteHandler("/", ChainMiddleware(s.NotFoundHandler(), s.APIMiddleware()...))
}

// NotFoundHandler answers every unregistered route with a JSON 404.
func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusNotFound, "not_found", "", "no route for "+r.Method+" "+r.URL.Path)
	}
}

// roleOf returns the role of the authenticated caller.
func roleOf(r *http.Request) users.RoleType {
	if claims := claimsFrom(r.Context()); claims != nil {
		return claims.Role
	}
	return ""
}
