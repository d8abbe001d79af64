package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/minatolabs/kbchat/internal/api/handlers"
	"github.com/minatolabs/kbchat/internal/api/middlewares"
	"github.com/minatolabs/kbchat/internal/config"
	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/kb"
	"github.com/minatolabs/kbchat/internal/kb/ingest"
	"github.com/minatolabs/kbchat/internal/pkg/logger"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer builds and wires all routes.
func NewServer(
	cfg *config.Config,
	db core.DbClient,
	llm core.LLMProvider,
	ingestor *ingest.Ingestor,
	registry *kb.Registry,
	aggregator *kb.Aggregator,
	assembler *kb.Assembler,
	log *logger.Logger,
) *Server {
	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret)
	knowledgeHandler := handlers.NewKnowledgeHandler(ingestor, registry, aggregator)
	resourceHandler := handlers.NewResourceHandler(registry, aggregator)
	chatHandler := handlers.NewChatHandler(db, assembler, llm, log)
	adminHandler := handlers.NewAdminHandler(db)
	tenantHandler := handlers.NewTenantHandler(db)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/signup", authHandler.Signup)
		api.Post("/auth/login", authHandler.Login)

		api.Group(func(protected chi.Router) {
			protected.Use(middlewares.JWT(cfg.JWTSecret))

			protected.Post("/knowledge/upload", knowledgeHandler.Upload)
			protected.Post("/knowledge/url", knowledgeHandler.IngestURL)
			protected.Get("/knowledge", knowledgeHandler.Summary)

			protected.Get("/resources", resourceHandler.List)
			protected.Post("/resources/{identifier}/toggle", resourceHandler.Toggle)
			protected.Delete("/resources/{identifier}", resourceHandler.Delete)

			protected.Post("/chat", chatHandler.Ask)

			protected.Get("/admin/chat-history", adminHandler.ChatHistory)
			protected.Get("/admin/employee-usage", adminHandler.EmployeeUsage)
			protected.Get("/admin/employees/{id}", adminHandler.EmployeeDetail)
			protected.Get("/admin/stats", adminHandler.Stats)

			protected.Post("/admin/tenants", tenantHandler.Create)
			protected.Get("/admin/tenants/{id}", tenantHandler.Get)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log.With("component", "server")}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
