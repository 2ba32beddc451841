package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yalublugerbl4/shop/internal/config"
	"github.com/yalublugerbl4/shop/internal/jobs"
	"github.com/yalublugerbl4/shop/internal/store"
)

type ProductReader interface {
	GetByID(ctx context.Context, id string) (*store.Product, error)
	List(ctx context.Context, filter store.ListFilter) ([]*store.Product, error)
	Deactivate(ctx context.Context, id string) error
}

type LinkDiscoverer interface {
	CategoryLinks(ctx context.Context, categoryURL string, maxPages int) ([]string, error)
}

type Ingestor interface {
	Enqueue(job *jobs.Job, urls []string, category, season string) error
}

type Server struct {
	router     chi.Router
	httpServer *http.Server
	products   ProductReader
	crawler    LinkDiscoverer
	ingestor   Ingestor
	manager    *jobs.Manager
	maxPages   int
	logger     *slog.Logger
}

func NewServer(cfg *config.Config, products ProductReader, crawler LinkDiscoverer, ingestor Ingestor, manager *jobs.Manager, logger *slog.Logger) *Server {
	s := &Server{
		products: products,
		crawler:  crawler,
		ingestor: ingestor,
		manager:  manager,
		maxPages: cfg.Scraper.MaxPages,
		logger:   logger.With("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.handleListProducts)
		r.Post("/import", s.handleImportProducts)
		r.Get("/{id}", s.handleGetProduct)
		r.Delete("/{id}", s.handleDeactivateProduct)
	})
	r.Post("/categories/import", s.handleImportCategory)
	r.Get("/jobs/{id}", s.handleGetJob)

	s.router = r
	s.httpServer = &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
