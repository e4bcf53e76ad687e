package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/npezzotti/go-praat/internal/config"
	"github.com/npezzotti/go-praat/internal/database"
	"github.com/npezzotti/go-praat/internal/server"
	"github.com/npezzotti/go-praat/internal/session"
	"github.com/npezzotti/go-praat/internal/stats"
)

type PraatApp struct {
	log             *log.Logger
	db              database.PraatRepository
	srv             *http.Server
	cs              *server.ChatServer
	sessions        *session.Manager
	stats           stats.StatsProvider
	limiter         *ipRateLimiter
	allowedOrigins  []string
	onlineWindow    time.Duration
	maxMessageLimit int
	now             func() time.Time
}

func NewPraatApp(
	router *mux.Router,
	logger *log.Logger,
	cs *server.ChatServer,
	db database.PraatRepository,
	sessions *session.Manager,
	su stats.StatsProvider,
	cfg *config.Config,
) *PraatApp {
	s := &PraatApp{
		log:             logger,
		db:              db,
		cs:              cs,
		sessions:        sessions,
		stats:           su,
		limiter:         newIpRateLimiter(cfg.LoginRate, cfg.LoginBurst),
		allowedOrigins:  cfg.AllowedOrigins,
		onlineWindow:    cfg.OnlineWindow,
		maxMessageLimit: cfg.MaxMessageLimit,
		now:             time.Now,
	}

	if s.onlineWindow <= 0 {
		s.onlineWindow = config.DefaultOnlineWindow
	}
	if s.maxMessageLimit <= 0 {
		s.maxMessageLimit = config.DefaultMaxMessageLimit
	}

	su.RegisterMetric(stats.MetricLogins)
	su.RegisterMetric(stats.MetricRegistrations)
	su.RegisterMetric(stats.MetricMessagesSent)

	router.HandleFunc("/healthz", s.healthCheck).Methods(http.MethodGet)
	router.Handle("/ws", s.sessionMiddleware(http.HandlerFunc(s.serveWs))).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.sessionMiddleware)
	api.Handle("/auth", s.dispatch(actionTable{
		post: map[string]http.HandlerFunc{
			"login":         s.rateLimit(s.login),
			"register":      s.rateLimit(s.register),
			"updateProfile": s.updateProfile,
			"logout":        s.logout,
		},
		get: map[string]http.HandlerFunc{
			"getUser":           s.getUser,
			"getUserByUsername": s.getUserByUsername,
			"verifySession":     s.verifySession,
		},
	}))
	api.Handle("/chat", s.dispatch(actionTable{
		post: map[string]http.HandlerFunc{
			"sendMessage":       s.sendMessage,
			"createPrivateChat": s.createPrivateChat,
		},
		get: map[string]http.HandlerFunc{
			"getPublicChannels":  s.getPublicChannels,
			"getPrivateChats":    s.getPrivateChats,
			"getChannelMessages": s.getChannelMessages,
			"getOnlineUsers":     s.getOnlineUsers,
		},
	}))

	h := handlers.CORS(
		handlers.MaxAge(86400),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(router)

	h = handlers.CombinedLoggingHandler(logger.Writer(), h)
	h = s.requestIdMiddleware(h)
	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *PraatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *PraatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
