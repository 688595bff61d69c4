package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/queryforge/queryforge/internal/api/handlers"
	appMiddleware "github.com/queryforge/queryforge/internal/api/middlewares"
	"github.com/queryforge/queryforge/internal/config"
	"github.com/queryforge/queryforge/internal/core"
	"github.com/queryforge/queryforge/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db core.DbClient, querySvc *services.QueryService) *Server {
	authHandler := handlers.NewAuthHandler(db)
	engineHandler := handlers.NewEngineHandler(querySvc)
	queryHandler := handlers.NewQueryHandler(querySvc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware)

			protected.Route("/query", func(q chi.Router) {
				q.Get("/vectorstore", engineHandler.VectorStores)
				q.Get("/engine", engineHandler.List)
				q.Post("/engine", engineHandler.Create)
				q.Get("/engine/{engineID}/urls", engineHandler.URLs)
				q.Post("/engine/{engineID}", queryHandler.Run)
				q.Put("/engine/{engineID}", engineHandler.Update)
				q.Delete("/engine/{engineID}", engineHandler.Delete)

				q.Get("/user", queryHandler.ListForUser)
				q.Get("/{queryID}", queryHandler.Get)
				q.Post("/{queryID}", queryHandler.Continue)
				q.Put("/{queryID}", queryHandler.Update)
				q.Delete("/{queryID}", queryHandler.Delete)
			})
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
