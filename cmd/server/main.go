package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chat-realtime-api/internal/auth"
	"chat-realtime-api/internal/config"
	"chat-realtime-api/internal/database"
	"chat-realtime-api/internal/handlers"
	"chat-realtime-api/internal/logging"
	"chat-realtime-api/internal/realtime"
	"chat-realtime-api/internal/routes"
	"chat-realtime-api/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logging.NewLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if !cfg.LogDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}

	dbLevel := gormlogger.Warn
	if cfg.LogDevelopment {
		dbLevel = gormlogger.Info
	}
	db, err := database.Open(cfg.DatabasePath, dbLevel)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(realtime.NewRegistry(), log, realtime.NewMetrics())
	go hub.Run(ctx)

	st := store.New(db)
	router := routes.SetupRoutes(routes.Dependencies{
		Users:    st,
		Messages: st,
		Tokens:   auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL),
		Hub:      hub,
		WS: handlers.WSConfig{
			SendBuffer:      cfg.SendBuffer,
			PingInterval:    cfg.PingInterval,
			PongWait:        cfg.PongWait,
			WriteWait:       cfg.WriteWait,
			MaxMessageBytes: cfg.MaxMessageBytes,
		},
		Log:            log,
		OriginAllowed:  cfg.OriginAllowed,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	go func() {
		log.Info("server starting",
			zap.String("addr", cfg.Addr),
			zap.Strings("endpoints", []string{
				"POST /api/auth/signup", "POST /api/auth/login", "POST /api/auth/logout",
				"GET /api/auth/check", "GET /api/users", "GET /api/presence",
				"GET /api/messages/:id", "POST /api/messages/send/:id",
				"GET /ws", "GET /health", "GET /metrics",
			}))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	// Stop the hub first: it closes every websocket, which lets the
	// hijacked connections' handlers return.
	<-hub.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
