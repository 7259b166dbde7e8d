// Package http is the gateway's inbound surface. Each route maps one-to-one
// onto a remote client operation and streams the result back.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fluxgate/internal/logging"
	"fluxgate/internal/remote"
	"fluxgate/internal/scheduler"
)

// Server is the gateway HTTP server.
type Server struct {
	client    *remote.Client
	pool      *scheduler.Pool
	defaultID string
	log       *slog.Logger
	router    *chi.Mux
	server    *http.Server
}

// Config of the HTTP server. WriteTimeout stays zero by default so long
// item streams are not cut off.
type Config struct {
	Addr          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	DefaultItemID string
}

func NewServer(client *remote.Client, pool *scheduler.Pool, cfg Config) *Server {
	s := &Server{
		client:    client,
		pool:      pool,
		defaultID: cfg.DefaultItemID,
		log:       logging.Named("gateway"),
	}
	if s.defaultID == "" {
		s.defaultID = "ABC"
	}

	s.router = s.setupRouter()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logging.L().Handler(), slog.LevelDebug),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthCheck)

	r.Route("/client", func(r chi.Router) {
		r.Get("/retrieve", s.retrieveAll)
		r.Get("/exchange", s.exchangeAll)
		r.Get("/retrieve/singleItem", s.retrieveOne)
		r.Get("/retrieve/singleItemThread", s.retrieveOneOnPool)
		r.Get("/exchange/singleItem", s.exchangeOne)
		r.Post("/createItem", s.createItem)
		r.Put("/updateItem", s.updateItem)
		r.Delete("/", s.deleteItem)
		r.Get("/error", s.errorRetrieve)
		r.Get("/error2", s.errorExchange)
		r.Get("/items", s.listItems)
		r.Get("/items/{id}", s.getItem)
	})

	return r
}

func (s *Server) Start() error {
	s.log.Info("gateway listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the chi router (for tests).
func (s *Server) Router() *chi.Mux {
	return s.router
}
