package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/roomchat/roomchat/internal/config"
	"github.com/roomchat/roomchat/internal/database"
	"github.com/roomchat/roomchat/internal/pubsub"
	"github.com/roomchat/roomchat/internal/stats"
	"github.com/roomchat/roomchat/internal/upload"
)

type Server struct {
	log            *log.Logger
	db             database.ChatRepository
	hub            *pubsub.Hub
	uploads        *upload.Store
	stats          stats.StatsProvider
	mux            *http.Server
	signingKey     []byte
	allowedOrigins []string
}

func NewServer(mux *http.ServeMux, logger *log.Logger, hub *pubsub.Hub, db database.ChatRepository,
	uploads *upload.Store, sp stats.StatsProvider, cfg *config.Config) *Server {
	s := &Server{
		log:            logger,
		db:             db,
		hub:            hub,
		uploads:        uploads,
		stats:          sp,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	if sp != nil {
		sp.RegisterMetric(stats.ActiveConnections)
		sp.RegisterMetric(stats.MessagesPublished)
		sp.RegisterMetric(stats.RoomsCreated)
		sp.RegisterMetric(stats.AccountsCreated)
	}

	mux.HandleFunc("POST /register", s.register)
	mux.HandleFunc("POST /login", s.login)
	mux.HandleFunc("GET /users", s.listUsers)
	mux.HandleFunc("GET /rooms", s.listRooms)
	mux.HandleFunc("GET /rooms/{name}", s.getRoom)
	mux.HandleFunc("POST /createRoom", s.createRoom)
	mux.HandleFunc("POST /requestJoinRoom", s.requestJoinRoom)
	mux.HandleFunc("POST /approveJoin", s.approveJoin)
	mux.HandleFunc("DELETE /deleteRoom/{name}", s.deleteRoom)
	mux.HandleFunc("POST /upload", s.uploadFile)
	mux.HandleFunc("GET /messages/{kind}/{id}", s.getMessages)
	mux.HandleFunc("POST /messages", s.createMessage)
	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	if uploads != nil {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploads.Dir()))))
	}

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

func (s *Server) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
