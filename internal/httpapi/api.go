// Package httpapi implements the JSON evaluation API of the data plane.
package httpapi

import (
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/switchboard/internal/decision"
	"github.com/rafaeljc/switchboard/internal/validation"
)

// API holds the dependencies and the router of the HTTP API.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	logger    *slog.Logger
	decisions *decision.Service

	// apiKeyHash is the decoded SHA-256 of the operator API key.
	apiKeyHash []byte
	// skipAuth disables authentication (development and tests only).
	skipAuth bool

	maxBodyBytes int64
}

// Options configures an API.
type Options struct {
	// APIKeyHash is the hex SHA-256 of the key guarding the operator
	// endpoints. Empty disables authentication.
	APIKeyHash   string
	MaxBodyBytes int64
}

// NewAPI creates the API and registers its routes.
// It panics if decisions is nil or APIKeyHash is not valid hex.
func NewAPI(logger *slog.Logger, decisions *decision.Service, opts Options) *API {
	validation.AssertNotNil(decisions, "decision service")
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 10
	}

	api := &API{
		Router:       chi.NewRouter(),
		logger:       logger,
		decisions:    decisions,
		skipAuth:     opts.APIKeyHash == "",
		maxBodyBytes: opts.MaxBodyBytes,
	}
	if !api.skipAuth {
		hash, err := hex.DecodeString(opts.APIKeyHash)
		if err != nil {
			panic("httpapi: API key hash must be hex encoded")
		}
		api.apiKeyHash = hash
	}

	api.configureRoutes()
	return api
}

// ServeHTTP makes API an http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Router.ServeHTTP(w, r)
}

func (a *API) configureRoutes() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(RequestLogger(a.logger))
	a.Router.Use(Metrics)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealthCheck)

	a.Router.Route("/v1", func(r chi.Router) {
		r.With(a.limitBody).Post("/evaluate", a.handleEvaluate)

		// Operator endpoints expose rule internals.
		r.Group(func(r chi.Router) {
			r.Use(a.authenticateAPIKey)
			r.With(a.limitBody).Post("/explain", a.handleExplain)
			r.Get("/generation", a.handleGeneration)
		})
	})
}

func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
