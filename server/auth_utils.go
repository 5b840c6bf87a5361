package server

import (
	"net/http"

	"github.com/jrsteele09/go-agency-admin/apimodel"
)

// setAccessCookie stores the access token in a session cookie. The cookie
// outlives the token on purpose so an expired token is still sent and can
// be told apart from no token at all.
func (s *Server) setAccessCookie(w http.ResponseWriter, r *http.Request, accessToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     apimodel.AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, r *http.Request, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     apimodel.RefreshTokenCookie,
		Value:    refreshToken,
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.config.GetRefreshTokenExpiry().Seconds()),
	})
}

func (s *Server) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: apimodel.AccessTokenCookie, Path: "/", MaxAge: -1, HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: apimodel.RefreshTokenCookie, Path: refreshCookiePath, MaxAge: -1, HttpOnly: true})
}
