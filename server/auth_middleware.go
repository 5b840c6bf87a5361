package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-agency-admin/apimodel"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/token"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyClaims stores the verified access token claims
	ContextKeyClaims ContextKey = "claims"
)

func claimsFrom(ctx context.Context) *token.AccessClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*token.AccessClaims)
	return claims
}

// accessToken returns the credential of r: a Bearer header wins over the
// access_token cookie.
func accessToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie(apimodel.AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuth validates the access token. Rejections carry a reason code
// telling the client whether a refresh can help:
//
//	no_token      - nothing was sent
//	token_expired - the token is genuine but past its expiry
//	invalid_token - anything else, including a deleted or blocked user
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw := accessToken(r)
			if raw == "" {
				writeUnauthorized(w, apimodel.ReasonNoToken, "missing access token")
				return
			}

			claims, err := s.issuer.Verify(raw)
			if err != nil {
				if errors.Is(err, apperrors.ErrTokenExpired) {
					writeUnauthorized(w, apimodel.ReasonTokenExpired, "access token expired")
					return
				}
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected access token")
				writeUnauthorized(w, apimodel.ReasonInvalidToken, "invalid access token")
				return
			}

			user, err := s.repos.Users.GetByID(claims.UserID)
			if err != nil || user.Blocked {
				writeUnauthorized(w, apimodel.ReasonInvalidToken, "unknown or blocked user")
				return
			}
			// The stored role wins so role changes apply before the token expires.
			claims.Role = user.Role

			next(w, r.WithContext(context.WithValue(r.Context(), ContextKeyClaims, claims)))
		}
	}
}

// RequireAccess rejects callers whose role may not read (or, when write is
// set, modify) resource. It must run after RequireAuth.
func (s *Server) RequireAccess(resource string, write bool) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			role := roleOf(r)
			allowed := role.CanView(resource)
			if write {
				allowed = role.CanWrite(resource)
			}
			if !allowed {
				writeAPIError(w, http.StatusForbidden, "forbidden", "", "role "+string(role)+" may not access "+resource)
				return
			}
			next(w, r)
		}
	}
}
