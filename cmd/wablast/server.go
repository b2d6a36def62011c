package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"wablast/internal/broadcast"
	"wablast/internal/constants"
	"wablast/internal/middleware"
	"wablast/internal/models"
	"wablast/internal/service"
	"wablast/pkg/messaging/types"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router     *mux.Router
	logger     *logrus.Logger
	cfg        *models.Config
	registry   *service.SessionRegistry
	dispatcher *service.CampaignDispatcher
	responder  *service.AutoResponder
	contacts   *service.ContactService
	hub        *broadcast.Hub
	webhook    types.WebhookHandler
	limiter    *rateLimiter
	server     *http.Server
}

func NewServer(cfg *models.Config, registry *service.SessionRegistry, dispatcher *service.CampaignDispatcher, responder *service.AutoResponder, contacts *service.ContactService, hub *broadcast.Hub, webhook types.WebhookHandler, logger *logrus.Logger) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		cfg:        cfg,
		registry:   registry,
		dispatcher: dispatcher,
		responder:  responder,
		contacts:   contacts,
		hub:        hub,
		webhook:    webhook,
		limiter:    newRateLimiter(cfg.RateLimit.RequestsPerSec, cfg.RateLimit.Burst),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	// Gateway webhook, HMAC-verified rather than rate limited.
	s.router.HandleFunc("/webhook/messaging", s.handleGatewayWebhook()).Methods(http.MethodPost)

	// Event stream stays outside the rate limiter: one long-lived
	// connection per subscriber.
	s.router.HandleFunc("/api/events/{tenantId}", s.handleEvents()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.limiter.middleware)

	api.HandleFunc("/session/init", s.handleSessionInit()).Methods(http.MethodPost)
	api.HandleFunc("/session/status/{tenantId}", s.handleSessionStatus()).Methods(http.MethodGet)
	api.HandleFunc("/session/qr/{tenantId}", s.handleSessionQR()).Methods(http.MethodGet)
	api.HandleFunc("/session/logout", s.handleSessionLogout()).Methods(http.MethodPost)

	api.HandleFunc("/campaigns", s.handleCampaignSubmit()).Methods(http.MethodPost)
	api.HandleFunc("/campaigns", s.handleCampaignList()).Methods(http.MethodGet)
	api.HandleFunc("/campaigns/{id}", s.handleCampaignGet()).Methods(http.MethodGet)
	api.HandleFunc("/campaigns/{id}/logs", s.handleCampaignLogs()).Methods(http.MethodGet)

	api.HandleFunc("/groups", s.handleGroupCreate()).Methods(http.MethodPost)
	api.HandleFunc("/groups", s.handleGroupList()).Methods(http.MethodGet)
	api.HandleFunc("/groups/{id}/import", s.handleGroupImport()).Methods(http.MethodPost)

	api.HandleFunc("/bot/{tenantId}/pause", s.handleBotPause()).Methods(http.MethodPost)
	api.HandleFunc("/bot/{tenantId}/resume", s.handleBotResume()).Methods(http.MethodPost)
	api.HandleFunc("/bot/{tenantId}", s.handleBotState()).Methods(http.MethodGet)

	api.HandleFunc("/conversations/{tenantId}/{contactId}", s.handleConversation()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	return s.server.Shutdown(ctx)
}
