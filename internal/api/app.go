package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/fixfusion/chat-server/internal/config"
	"github.com/fixfusion/chat-server/internal/database"
	"github.com/fixfusion/chat-server/internal/server"
	"github.com/gorilla/handlers"
)

// ChatApp is the HTTP surface of the chat service: the history/read
// endpoints consumed by the mobile app plus the websocket upgrade for the
// live channel.
type ChatApp struct {
	log            *log.Logger
	db             database.ChatRepository
	mux            *http.Server
	cs             *server.ChatServer
	signingKey     []byte
	allowedOrigins []string
}

func NewChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.ChatRepository, cfg *config.Config) *ChatApp {
	s := &ChatApp{
		log:            logger,
		db:             db,
		cs:             cs,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /api/health", s.health)
	mux.Handle("GET /api/messages/{userId}/{technicianId}", s.authMiddleware(s.getMessages))
	mux.Handle("GET /api/messages/unread/{userId}", s.authMiddleware(s.unreadCount))
	mux.Handle("PUT /api/messages/read", s.authMiddleware(s.markRead))
	mux.Handle("GET /api/locations/{userId}/{technicianId}", s.authMiddleware(s.getLocations))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *ChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
