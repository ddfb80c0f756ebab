// Package server wires the authorization core behind an HTTP API. It is the
// edge layer: it authenticates requests, asks the policy engine for
// decisions and maps core errors onto status codes (engine NotFound to 404,
// deny to 403).
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weeb-foss/cdn/internal/auth"
	"github.com/weeb-foss/cdn/internal/catalog"
	"github.com/weeb-foss/cdn/internal/config"
	"github.com/weeb-foss/cdn/internal/database"
	"github.com/weeb-foss/cdn/internal/middleware"
	"github.com/weeb-foss/cdn/internal/policy"
)

// Server holds the core components behind the HTTP API.
type Server struct {
	router   *mux.Router
	creds    *auth.CredentialStore
	keys     *auth.KeyManager
	engine   *policy.Engine
	registry *catalog.Registry
	objects  *catalog.Catalog
}

// New assembles the full handler stack over the given backend store.
func New(cfg *config.Config, store database.Store) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		creds:    auth.NewCredentialStore(store),
		keys:     auth.NewKeyManager(store),
		engine:   policy.NewEngine(store),
		registry: catalog.NewRegistry(store),
		objects:  catalog.NewCatalog(store),
	}

	s.router.Use(middleware.Recovery())
	if cfg != nil && cfg.Sentry.Enabled {
		s.router.Use(middleware.Sentry())
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if cfg == nil || cfg.Monitoring.Enabled {
		path := "/metrics"
		if cfg != nil && cfg.Monitoring.Path != "" {
			path = cfg.Monitoring.Path
		}
		s.router.Handle(path, promhttp.Handler()).Methods(http.MethodGet)
	}

	// Registration and login carry their own credentials in the body.
	s.router.HandleFunc("/api/users", s.handleRegister).Methods(http.MethodPost)
	s.router.HandleFunc("/api/login", s.handleLogin).Methods(http.MethodPost)

	provider := auth.NewCredentialProvider(s.creds, s.keys)
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(middleware.Authentication(provider))

	api.HandleFunc("/users/{id:[0-9]+}", s.handleUpdateUser).Methods(http.MethodPatch)

	api.HandleFunc("/keys", s.handleIssueKey).Methods(http.MethodPost)
	api.HandleFunc("/keys/{id:[0-9]+}", s.handleRevokeKey).Methods(http.MethodDelete)

	api.HandleFunc("/buckets/{bucket}", s.handleCreateBucket).Methods(http.MethodPut)
	api.HandleFunc("/buckets/{bucket}", s.handleGetBucket).Methods(http.MethodGet)
	api.HandleFunc("/buckets/{bucket}", s.handleDeleteBucket).Methods(http.MethodDelete)

	api.HandleFunc("/buckets/{bucket}/objects/{path:.+}", s.handlePutObject).Methods(http.MethodPut)
	api.HandleFunc("/buckets/{bucket}/objects/{path:.+}", s.handleGetObject).Methods(http.MethodGet)
	api.HandleFunc("/buckets/{bucket}/objects/{path:.+}", s.handleDeleteObject).Methods(http.MethodDelete)

	api.HandleFunc("/buckets/{bucket}/grants", s.handleGrant).Methods(http.MethodPost)
	api.HandleFunc("/buckets/{bucket}/grants/{user:[0-9]+}", s.handleRevokeGrant).Methods(http.MethodDelete)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "ok"})
}
