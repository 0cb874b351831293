package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/deploycenter/internal/api/handler"
	mw "github.com/edvin/deploycenter/internal/api/middleware"
	"github.com/edvin/deploycenter/internal/config"
	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/entitlement"
)

//go:embed docs/swagger.json
var swaggerJSON []byte

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	dispatcher     *entitlement.Dispatcher
	pool           *pgxpool.Pool
	temporalClient temporalclient.Client
	cfg            *config.Config
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, temporalClient temporalclient.Client, cfg *config.Config) *Server {
	services := core.NewServices(pool, logger)
	events := core.NewTemporalDispatcher(temporalClient, cfg.ScrapeTaskQueue, logger)
	dispatcher := entitlement.NewDispatcher(
		services.Organization, services.Subscription, services.Entitlement,
		services.Operator, services.Account, services.Metric, events, logger)

	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       services,
		dispatcher:     dispatcher,
		pool:           pool,
		temporalClient: temporalClient,
		cfg:            cfg,
	}

	s.setupMiddleware()
	s.setupRoutes(events)

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes(events core.EventDispatcher) {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	// API documentation (no auth required)
	s.router.Get("/docs/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(swaggerJSON)
	})
	s.router.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(scalarHTML))
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.services.APIKey))

		// Organizations
		organization := handler.NewOrganization(s.services.Organization, s.services.Metric)
		r.Get("/organizations", organization.List)
		r.Post("/organizations", organization.Create)
		r.Get("/organizations/lookup/{identifier}", organization.Lookup)
		r.Get("/organizations/{id}", organization.Get)
		r.Put("/organizations/{id}", organization.Update)
		r.Delete("/organizations/{id}", organization.Delete)
		r.Get("/organizations/{id}/mail-domain", organization.MailDomain)
		r.Get("/organizations/{id}/metrics", organization.ListMetrics)

		// Operators
		operator := handler.NewOperator(s.services.Operator)
		r.Get("/operators", operator.List)
		r.Post("/operators", operator.Create)
		r.Get("/operators/{id}", operator.Get)
		r.Put("/operators/{id}", operator.Update)
		r.Delete("/operators/{id}", operator.Delete)

		// Services
		service := handler.NewService(s.services.Service, s.temporalClient, s.cfg.ScrapeTaskQueue)
		r.Get("/services", service.List)
		r.Post("/services", service.Create)
		r.Get("/services/{id}", service.Get)
		r.Put("/services/{id}", service.Update)
		r.Delete("/services/{id}", service.Delete)
		r.Put("/services/{id}/required-services", service.SetRequiredServices)
		r.Get("/services/{id}/logo", service.GetLogo)
		r.Put("/services/{id}/logo", service.SetLogo)
		r.Post("/services/{id}/scrape", service.TriggerScrape)
		r.Post("/services/{id}/metrics", handler.NewMetric(s.services.Metric).Push)

		// Entitlement resolution, called by the services themselves
		resolve := handler.NewResolve(s.services.Service, s.dispatcher)
		r.Get("/services/{id}/entitlements", resolve.Get)

		// Subscriptions
		subscription := handler.NewSubscription(s.services.Subscription, events)
		r.Get("/subscriptions", subscription.List)
		r.Post("/subscriptions", subscription.Create)
		r.Get("/subscriptions/{id}", subscription.Get)
		r.Put("/subscriptions/{id}", subscription.Update)
		r.Delete("/subscriptions/{id}", subscription.Delete)
		r.Get("/organizations/{id}/subscriptions", subscription.ListByOrganization)

		// Stored entitlement rules
		entitlements := handler.NewEntitlement(s.services.Entitlement)
		r.Get("/subscriptions/{id}/entitlements", entitlements.ListBySubscription)
		r.Post("/subscriptions/{id}/entitlements", entitlements.Create)
		r.Get("/entitlements/{id}", entitlements.Get)
		r.Put("/entitlements/{id}", entitlements.Update)
		r.Delete("/entitlements/{id}", entitlements.Delete)

		// Accounts
		account := handler.NewAccount(s.services.Account)
		r.Get("/organizations/{id}/accounts", account.ListByOrganization)
		r.Post("/organizations/{id}/accounts", account.Create)
		r.Get("/accounts/{id}", account.Get)
		r.Put("/accounts/{id}", account.Update)
		r.Delete("/accounts/{id}", account.Delete)
		r.Get("/accounts/{id}/services/{serviceID}", account.GetServiceLink)
		r.Put("/accounts/{id}/services/{serviceID}", account.UpsertServiceLink)

		// API keys
		apiKey := handler.NewAPIKey(s.services.APIKey)
		r.Get("/api-keys", apiKey.List)
		r.Post("/api-keys", apiKey.Create)
		r.Get("/api-keys/{id}", apiKey.Get)
		r.Delete("/api-keys/{id}", apiKey.Revoke)

		// Dashboard and search
		r.Get("/dashboard/stats", handler.NewDashboard(s.services.Dashboard).Stats)
		r.Get("/search", handler.NewSearch(s.services.Search).Search)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
		checks["temporal"] = err.Error()
		healthy = false
	} else {
		checks["temporal"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

const scalarHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Deploycenter API</title>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
</head>
<body>
  <script id="api-reference" data-url="/docs/openapi.json"></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>`
