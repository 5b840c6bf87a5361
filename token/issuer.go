// Package token issues and verifies the access tokens of the mock agency
// API.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-agency-admin/clock"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/users"
)

// Claim names carried by access tokens beyond the registered ones.
const (
	ClaimRole     = "role"
	ClaimEmail    = "email"
	ClaimName     = "name"
	ClaimClientID = "client_id"
)

const issuer = "agency-admin-api"

// AccessClaims are the verified contents of an access token.
type AccessClaims struct {
	UserID    string
	Email     string
	Name      string
	Role      users.RoleType
	ClientID  string
	ExpiresAt time.Time
}

// Issuer creates short-lived access tokens and checks the ones presented
// to the API.
type Issuer struct {
	signer Signer
	clock  clock.Clock
	ttl    time.Duration
}

func NewIssuer(signer Signer, clk clock.Clock, ttl time.Duration) *Issuer {
	return &Issuer{signer: signer, clock: clk, ttl: ttl}
}

// TTL is the lifetime of every token the issuer creates.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// CreateAccessToken signs a token for user. It returns the token and its
// lifetime in whole seconds.
func (i *Issuer) CreateAccessToken(user *users.User, clientID string) (string, int, error) {
	now := i.clock.Now()
	claims := jwt.MapClaims{
		"iss":         issuer,
		"sub":         user.ID,
		"jti":         uuid.New().String(),
		"iat":         now.Unix(),
		"nbf":         now.Unix(),
		"exp":         now.Add(i.ttl).Unix(),
		ClaimEmail:    user.Email,
		ClaimName:     user.Name,
		ClaimRole:     string(user.Role),
		ClaimClientID: clientID,
	}
	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", 0, fmt.Errorf("[Issuer CreateAccessToken] %w", err)
	}
	return signed, int(i.ttl / time.Second), nil
}

// Verify checks raw's signature and lifetime against the issuer's clock.
// Expired tokens give ErrTokenExpired; everything else ErrInvalidToken.
func (i *Issuer) Verify(raw string) (*AccessClaims, error) {
	parsed, err := jwt.Parse(raw, i.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.Wrapf(apperrors.ErrTokenExpired, "[Issuer Verify]")
		}
		return nil, fmt.Errorf("[Issuer Verify] %w: %w", apperrors.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("[Issuer Verify] unexpected claims type: %w", apperrors.ErrInvalidToken)
	}
	return claimsFromMap(claims)
}

// ParseUnverified reads the claims of raw without checking its signature
// or expiry. Clients use it to learn the role of the logged-in user.
func ParseUnverified(raw string) (*AccessClaims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("[token ParseUnverified] %w: %w", apperrors.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("[token ParseUnverified] unexpected claims type: %w", apperrors.ErrInvalidToken)
	}
	return claimsFromMap(claims)
}

func claimsFromMap(claims jwt.MapClaims) (*AccessClaims, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("[token claims] missing subject: %w", apperrors.ErrInvalidToken)
	}
	out := &AccessClaims{UserID: sub}
	out.Email, _ = claims[ClaimEmail].(string)
	out.Name, _ = claims[ClaimName].(string)
	out.ClientID, _ = claims[ClaimClientID].(string)
	role, _ := claims[ClaimRole].(string)
	out.Role = users.RoleType(role)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
