package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"wafleet/internal/app/config"
	"wafleet/internal/http/handlers"
	appMiddleware "wafleet/internal/http/middleware"
	"wafleet/pkg/logger"
)

// Router representa o roteador principal da aplicação
type Router struct {
	*chi.Mux
	config         *config.Config
	logger         logger.Logger
	healthHandler  *handlers.HealthHandler
	messageHandler *handlers.MessageHandler
	groupHandler   *handlers.GroupHandler
}

// New cria uma nova instância do router
func New(
	cfg *config.Config,
	log logger.Logger,
	healthHandler *handlers.HealthHandler,
	messageHandler *handlers.MessageHandler,
	groupHandler *handlers.GroupHandler,
) *Router {
	r := &Router{
		Mux:            chi.NewRouter(),
		config:         cfg,
		logger:         log.WithComponent("router"),
		healthHandler:  healthHandler,
		messageHandler: messageHandler,
		groupHandler:   groupHandler,
	}

	r.setupMiddlewares()
	r.setupRoutes()

	return r
}

// setupMiddlewares configura os middlewares globais
func (r *Router) setupMiddlewares() {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// Timeout global
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(appMiddleware.NewCORS(r.config.CORS.AllowedOrigins))
	r.Use(appMiddleware.NewLoggingMiddleware(r.logger))
	r.Use(appMiddleware.NewRecoveryMiddleware(r.logger))
}

// setupRoutes configura as rotas da aplicação
func (r *Router) setupRoutes() {
	// Health check sem autenticação
	r.Get("/health", r.healthHandler.Health)

	// Rotas autenticadas por chave de API, com rate limit por chave
	r.Group(func(rt chi.Router) {
		rt.Use(appMiddleware.NewAPIKeyAuth(r.config.Auth.APIKey))
		rt.Use(appMiddleware.NewRateLimit(r.config.RateLimit.Requests, r.config.RateLimit.Window))

		rt.Post("/send-message", r.messageHandler.SendMessage)
		rt.Get("/api/groups/{deviceID}", r.groupHandler.ListGroups)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"message":"Endpoint not found","error":{"code":"NOT_FOUND"}}`))
	})
}
