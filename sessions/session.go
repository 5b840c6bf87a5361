package sessions

import (
	"strconv"
	"time"
)

// Keys of the session record in the shared storage scope.
const (
	KeyIsLoggedIn    = "isLoggedIn"
	KeySessionExpiry = "sessionExpiry"
	KeyLastActivity  = "lastActivity"
)

// Keys lists every key of the session record.
var Keys = []string{KeyIsLoggedIn, KeySessionExpiry, KeyLastActivity}

// Record is the session state shared by every open tab.
type Record struct {
	IsLoggedIn    bool      // Set at login, removed at logout/expiry
	SessionExpiry time.Time // When the current access token expires; only advanced by a refresh
	LastActivity  time.Time // Most recent recorded user interaction across all tabs
}

// TimeUntilExpiry returns how long the access token remains valid at now.
func (r Record) TimeUntilExpiry(now time.Time) time.Duration {
	return r.SessionExpiry.Sub(now)
}

// IdleFor returns how long the user has been inactive at now.
func (r Record) IdleFor(now time.Time) time.Duration {
	return now.Sub(r.LastActivity)
}

// Expired reports whether the access token has expired at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.SessionExpiry)
}

// EncodeTime renders t as decimal epoch milliseconds.
func EncodeTime(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// DecodeTime parses decimal epoch milliseconds.
func DecodeTime(value string) (time.Time, error) {
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// EncodeBool renders the login flag the way it is stored ("true").
func EncodeBool(b bool) string {
	return strconv.FormatBool(b)
}
