// Package apimodel holds the wire types of the agency REST API shared by
// the client and the mock backend.
package apimodel

// Reason codes carried by 401 responses. The client's retry policy
// branches on them.
const (
	ReasonNoToken            = "no_token"            // no credential was sent
	ReasonInvalidToken       = "invalid_token"       // credential is unknown or tampered with; not recoverable
	ReasonTokenExpired       = "token_expired"       // credential expired but can be refreshed
	ReasonInvalidCredentials = "invalid_credentials" // login rejected
	ReasonInvalidRefresh     = "invalid_refresh"     // refresh token missing, unknown or expired
)

// Cookie names used by the API for credentials.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error       string `json:"error"`
	Code        string `json:"code,omitempty"`
	Description string `json:"error_description,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /auth/login. Credentials are also set
// as cookies; the tokens are repeated in the body for non-browser clients.
type LoginResponse struct {
	ExpiresIn    int     `json:"expiresIn"` // access token lifetime in seconds
	AccessToken  string  `json:"accessToken"`
	RefreshToken string  `json:"refreshToken,omitempty"`
	User         Profile `json:"user"`
}

// RefreshResponse is returned by POST /auth/refresh.
type RefreshResponse struct {
	ExpiresIn int `json:"expiresIn"` // new access token lifetime in seconds
}

// Profile identifies the logged-in staff member.
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// ReportSummary is returned by GET /api/reports/summary.
type ReportSummary struct {
	Customers     int     `json:"customers"`
	Bookings      int     `json:"bookings"`
	Revenue       float64 `json:"revenue"`
	Expenses      float64 `json:"expenses"`
	Profit        float64 `json:"profit"`
	ActiveFleet   int     `json:"activeFleet"`
	OpenBookings  int     `json:"openBookings"`
	PendingAmount float64 `json:"pendingAmount"`
}
