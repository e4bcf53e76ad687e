package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/npezzotti/go-praat/internal/api"
	"github.com/npezzotti/go-praat/internal/config"
	"github.com/npezzotti/go-praat/internal/database"
	"github.com/npezzotti/go-praat/internal/server"
	"github.com/npezzotti/go-praat/internal/session"
	"github.com/npezzotti/go-praat/internal/stats"
)

const sweepInterval = 5 * time.Minute

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr            string
	dsn             string
	signingKey      string
	allowedOrigins  stringSliceFlag
	sessionStore    string
	redisURL        string
	sessionTTL      time.Duration
	cookieDomain    string
	cookieSecure    bool
	onlineWindow    time.Duration
	maxMessageLimit int
	loginRate       float64
	loginBurst      int
)

func main() {
	logger := log.New(os.Stderr, "[go-praat] ", log.LstdFlags)

	if err := config.LoadEnv(".env"); err != nil {
		logger.Fatal("env:", err)
	}

	flag.StringVar(&addr, "addr", config.Env("PRAAT_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", config.Env("PRAAT_DSN", "host=localhost user=postgres password=postgres dbname=praat sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", config.Env("PRAAT_SIGNING_KEY", ""), "base64 encoded session signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&sessionStore, "session-store", config.Env("PRAAT_SESSION_STORE", config.SessionStoreMemory), "session backend: memory or redis")
	flag.StringVar(&redisURL, "redis-url", config.Env("PRAAT_REDIS_URL", ""), "redis url for the redis session store")
	flag.DurationVar(&sessionTTL, "session-ttl", config.EnvDuration("PRAAT_SESSION_TTL", config.DefaultSessionTTL), "session lifetime")
	flag.StringVar(&cookieDomain, "cookie-domain", config.Env("PRAAT_COOKIE_DOMAIN", ""), "session cookie domain")
	flag.BoolVar(&cookieSecure, "cookie-secure", config.EnvBool("PRAAT_COOKIE_SECURE", false), "mark the session cookie secure")
	flag.DurationVar(&onlineWindow, "online-window", config.EnvDuration("PRAAT_ONLINE_WINDOW", config.DefaultOnlineWindow), "how recent a login counts as online")
	flag.IntVar(&maxMessageLimit, "max-message-limit", config.EnvInt("PRAAT_MAX_MESSAGE_LIMIT", config.DefaultMaxMessageLimit), "upper bound of getChannelMessages limit")
	flag.Float64Var(&loginRate, "login-rate", config.EnvFloat("PRAAT_LOGIN_RATE", config.DefaultLoginRate), "login/register attempts per second per address")
	flag.IntVar(&loginBurst, "login-burst", config.EnvInt("PRAAT_LOGIN_BURST", config.DefaultLoginBurst), "login/register burst per address")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		allowedOrigins = config.EnvList("PRAAT_ALLOWED_ORIGINS")
	}

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}
	cfg.SessionStore = sessionStore
	cfg.RedisURL = redisURL
	cfg.SessionTTL = sessionTTL
	cfg.CookieDomain = cookieDomain
	cfg.CookieSecure = cookieSecure
	cfg.OnlineWindow = onlineWindow
	cfg.MaxMessageLimit = maxMessageLimit
	cfg.LoginRate = loginRate
	cfg.LoginBurst = loginBurst
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config:", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	dbConn, err := database.NewPgPraatRepository(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	var store session.Store
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			logger.Fatal("session store:", err)
		}
		defer redisStore.Close()
		store = redisStore
	default:
		memStore := session.NewMemoryStore(cfg.SessionTTL)
		go memStore.RunSweeper(ctx, sweepInterval)
		store = memStore
	}

	sessions := session.NewManager(store, cfg.SigningKey, session.Options{
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
		TTL:    cfg.SessionTTL,
	})

	router := mux.NewRouter()

	statsUpdater := stats.NewStatsUpdater(router)

	chatServer, err := server.NewChatServer(logger, dbConn, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv := api.NewPraatApp(router, logger, chatServer, dbConn, sessions, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
