// Package server is a mock of the agency REST API. It issues real JWT
// access tokens and rotating refresh tokens so the client's session
// handling can be exercised end to end.
package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-agency-admin/clock"
	"github.com/jrsteele09/go-agency-admin/internal/config"
	"github.com/jrsteele09/go-agency-admin/server/resourcerepo"
	"github.com/jrsteele09/go-agency-admin/token"
	"github.com/jrsteele09/go-agency-admin/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-agency-admin/token/refresh/repofake"
	"github.com/jrsteele09/go-agency-admin/users"
	fakeuserrepo "github.com/jrsteele09/go-agency-admin/users/repofake"
	"github.com/rs/zerolog/log"
)

// Repos groups the storage the server runs on.
type Repos struct {
	Users         users.UserRepo
	RefreshTokens refresh.Repo
	Records       *resourcerepo.Store
}

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	clock   clock.Clock
	repos   Repos
	issuer  *token.Issuer
	refresh *refresh.Manager
}

// NewRecordStore creates a record store with every collection the API
// serves.
func NewRecordStore(clk clock.Clock) *resourcerepo.Store {
	return resourcerepo.New(clk, collections...)
}

// NewInMemory creates a server whose state lives in memory and is lost on
// exit.
func NewInMemory(config config.Config, clk clock.Clock) (*Server, error) {
	return New(config, Repos{
		Users:         fakeuserrepo.NewFakeUserRepo(),
		RefreshTokens: refreshrepofake.NewFakeRefreshTokenRepo(),
		Records:       NewRecordStore(clk),
	}, clk)
}

func New(config config.Config, repos Repos, clk clock.Clock) (*Server, error) {
	s := &Server{
		env:     config.GetEnv(),
		mux:     http.NewServeMux(),
		config:  config,
		clock:   clk,
		repos:   repos,
		issuer:  token.NewIssuer(token.NewHMACSigner(config.GetJWTSecret()), clk, config.GetAccessTokenExpiry()),
		refresh: refresh.NewManager(repos.RefreshTokens, config, clk),
	}

	if err := s.InitialiseSystem(); err != nil {
		return nil, fmt.Errorf("[Server New] failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Debug().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
