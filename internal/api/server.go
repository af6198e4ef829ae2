package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/chatpopup/internal/hermes"
	"github.com/MikeSquared-Agency/chatpopup/internal/store"
)

// Publisher receives an event for every stored message. It may be nil.
type Publisher interface {
	PublishMessageSent(ev hermes.MessageSentEvent) error
}

type Server struct {
	router *chi.Mux
	port   int
	store  store.MessageStore
	events Publisher
	logger *slog.Logger
	http   *http.Server
}

func NewServer(port int, st store.MessageStore, events Publisher, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		store:  st,
		events: events,
		logger: logger,
	}

	router.Get("/health", s.health)
	router.Route("/chat/api", func(r chi.Router) {
		r.Use(CSRFMiddleware)
		r.Post("/send_message/", s.sendMessage)
		r.Get("/fetch_messages/", s.fetchMessages)
		r.Get("/conversations/", s.listConversations)
	})

	return s
}

// Handler exposes the router, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
