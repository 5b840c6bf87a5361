package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-agency-admin/apimodel"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/rs/zerolog/log"
)

// maxErrorBody bounds how much of a 401 body is read for the reason code.
const maxErrorBody = 64 << 10

// SessionRefresher is the tab's single-flight refresh. Concurrent callers
// share one refresh call and its outcome.
type SessionRefresher interface {
	Refresh(ctx context.Context) (time.Time, error)
}

// SessionTerminator ends the tab's session: clears the session record and
// redirects to the unauthenticated entry point. LoggedIn reports whether
// the session is still live; an ended session is never refreshed again.
type SessionTerminator interface {
	Terminate(reason error)
	LoggedIn() bool
}

type retriedKey struct{}

// WithRetried marks ctx as belonging to a request that has already been
// replayed after a refresh.
func WithRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

// IsRetried reports whether ctx carries the retried mark.
func IsRetried(ctx context.Context) bool {
	retried, _ := ctx.Value(retriedKey{}).(bool)
	return retried
}

// Transport recovers from expired-token responses. On a 401 with reason
// token_expired it refreshes (joining any refresh already in flight) and
// replays the request once. Any other 401, or a 401 on a replayed request,
// terminates the session.
type Transport struct {
	Base       http.RoundTripper
	Refresher  SessionRefresher
	Terminator SessionTerminator

	// Jar, when set, is the http.Client's cookie jar. Replays re-read it
	// so they carry the credentials the refresh just renewed.
	Jar http.CookieJar
}

var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base().RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	reason := readReason(resp)
	retried := IsRetried(req.Context())

	if reason != apimodel.ReasonTokenExpired || retried {
		resp.Body.Close()
		cause := fmt.Errorf("%w: %s %s reason=%q retried=%t", apperrors.ErrUnauthorized, req.Method, req.URL.Path, reason, retried)
		log.Warn().Str("path", req.URL.Path).Str("reason", reason).Bool("retried", retried).Msg("Unrecoverable authorization failure")
		t.Terminator.Terminate(cause)
		return nil, fmt.Errorf("[Transport RoundTrip] %w: %w", apperrors.ErrSessionTerminated, cause)
	}

	if !t.Terminator.LoggedIn() {
		resp.Body.Close()
		log.Debug().Str("path", req.URL.Path).Msg("Session already ended, not refreshing")
		return nil, fmt.Errorf("[Transport RoundTrip] %w: %s %s", apperrors.ErrSessionTerminated, req.Method, req.URL.Path)
	}

	replay, err := replayRequest(req)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("[Transport RoundTrip] %w", err)
	}
	resp.Body.Close()

	log.Debug().Str("path", req.URL.Path).Msg("Access token expired, refreshing before replay")
	if _, err := t.Refresher.Refresh(req.Context()); err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			// Only this caller gave up; the shared refresh carries on.
			return nil, fmt.Errorf("[Transport RoundTrip] waiting for refresh: %w", err)
		}
		// The refresher's failure listener has already terminated the session.
		return nil, fmt.Errorf("[Transport RoundTrip] %w: %w", apperrors.ErrSessionTerminated, err)
	}
	if t.Jar != nil {
		replay.Header.Del("Cookie")
		for _, c := range t.Jar.Cookies(replay.URL) {
			replay.AddCookie(c)
		}
	}

	return t.RoundTrip(replay)
}

// readReason extracts the reason code and leaves the body readable.
func readReason(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	var body apimodel.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Code
}

// replayRequest clones req for its one replay, marked as retried.
func replayRequest(req *http.Request) (*http.Request, error) {
	replay := req.Clone(WithRetried(req.Context()))
	if req.Body == nil || req.Body == http.NoBody {
		return replay, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("request body of %s %s cannot be replayed", req.Method, req.URL.Path)
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rebuild request body: %w", err)
	}
	replay.Body = body
	return replay, nil
}
