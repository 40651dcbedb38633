package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expense-coach/internal/chat"
	"expense-coach/internal/completion"
	"expense-coach/internal/config"
	"expense-coach/internal/handlers"
	"expense-coach/internal/logger"
	"expense-coach/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Getenv("COACH_CONFIG"))
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Development, logger.LogLevel(cfg.Log.Level)); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, cfg.Database.Name)
	if err != nil {
		log.Fatal("Failed to open store", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer store.Close()

	if cfg.Completion.APIKey == "" {
		log.Warn("completion API key not configured; chat requests will fail")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warn("JWT secret not configured; all API requests will be rejected")
	}

	client := completion.NewClient(cfg.Completion.Endpoint, cfg.Completion.Model, cfg.Completion.APIKey,
		completion.WithLogger(log))
	svc := chat.NewService(store, client, log)
	h := handlers.NewHandlers(svc, store, cfg.Auth.JWTSecret, cfg.Auth.Issuer, log)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      setupRouter(h, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Server starting", zap.String("addr", srv.Addr), zap.String("model", client.Model()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Server failed", zap.Error(err))
	}
	log.Info("Server stopped")
}

func setupRouter(h *handlers.Handlers, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(handlers.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.AuthMiddleware)
		r.Post("/chat", h.Chat)
		r.Get("/messages", h.ListMessages)
		r.Get("/expenses", h.ListExpenses)
	})

	return r
}
