package refresher

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"golang.org/x/oauth2"
)

// OAuth2TokenPath is the OAuth2 token endpoint relative to the API base URL.
const OAuth2TokenPath = "/oauth2/token"

// OAuth2Refresher renews the session with the refresh_token grant. The
// refresh token rotates on every use; the latest one is kept here.
type OAuth2Refresher struct {
	client *http.Client
	config *oauth2.Config

	mu    sync.Mutex
	token *oauth2.Token
}

var _ Refresher = (*OAuth2Refresher)(nil)

// NewOAuth2Refresher builds a refresher for a public client. The given
// http.Client carries the cookie jar, so cookies set by the token endpoint
// reach the API client too.
func NewOAuth2Refresher(client *http.Client, baseURL, clientID string) *OAuth2Refresher {
	return &OAuth2Refresher{
		client: client,
		config: &oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + OAuth2TokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// Seed stores the refresh token handed out at login.
func (r *OAuth2Refresher) Seed(refreshToken string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = &oauth2.Token{RefreshToken: refreshToken}
}

// Forget drops the stored refresh token.
func (r *OAuth2Refresher) Forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = nil
}

func (r *OAuth2Refresher) Refresh(ctx context.Context) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token == nil || r.token.RefreshToken == "" {
		return 0, fmt.Errorf("[OAuth2Refresher Refresh] no refresh token: %w", apperrors.ErrRefreshFailed)
	}

	// A token with no access token is never valid, so Token() always
	// performs the refresh_token grant.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	source := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: r.token.RefreshToken})
	tok, err := source.Token()
	if err != nil {
		return 0, fmt.Errorf("[OAuth2Refresher Refresh] %w: %w", apperrors.ErrRefreshFailed, err)
	}
	r.token = tok

	ttl := expiresIn(tok)
	if ttl <= 0 {
		return 0, fmt.Errorf("[OAuth2Refresher Refresh] token has no lifetime: %w", apperrors.ErrRefreshFailed)
	}
	return ttl, nil
}

// expiresIn prefers the raw expires_in field over Expiry, which the oauth2
// package computes from the wall clock.
func expiresIn(tok *oauth2.Token) time.Duration {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	}
	if tok.Expiry.IsZero() {
		return 0
	}
	return time.Until(tok.Expiry)
}
