package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	authengine "github.com/zgoteam/authengine"
	"github.com/zgoteam/authengine/metrics/export/prometheus"
	"github.com/zgoteam/authengine/middleware"
	"github.com/zgoteam/authengine/migrations"
	"github.com/zgoteam/authengine/refresh"
	"github.com/zgoteam/authengine/userstore"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to yaml config; env vars are used when empty")
	flag.Parse()

	cfg := mustLoadConfig(configPath)
	logger := setupLogger(cfg.Env)
	logger.Info("starting authd", slog.String("env", cfg.Env), slog.String("address", cfg.HTTPServer.Address))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	privateKey, err := os.ReadFile(cfg.Keys.PrivateKeyFile)
	if err != nil {
		log.Fatalf("failed to read private key: %v", err)
	}
	publicKey, err := os.ReadFile(cfg.Keys.PublicKeyFile)
	if err != nil {
		log.Fatalf("failed to read public key: %v", err)
	}

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}
	if cfg.Database.RunMigrations {
		if err := migrations.Run(ctx, db); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		logger.Info("migrations applied")
	}

	users, err := userstore.NewPostgresStore(db)
	if err != nil {
		log.Fatalf("failed to create user store: %v", err)
	}

	engineConfig := buildEngineConfig(cfg, privateKey, publicKey)
	builder := authengine.New().
		WithConfig(engineConfig).
		WithUserStore(users).
		WithAuditSink(authengine.NewJSONWriterSink(os.Stdout))

	if cfg.Redis.Addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{cfg.Redis.Addr},
		})
		defer func() { _ = client.Close() }()
		builder = builder.WithRedis(client)
		logger.Info("refresh tokens stored in redis", slog.String("addr", cfg.Redis.Addr))
	} else {
		store, err := refresh.NewPostgresStore(db, engineConfig.Refresh.TTL)
		if err != nil {
			log.Fatalf("failed to create refresh store: %v", err)
		}
		builder = builder.WithRefreshStore(store)
		logger.Info("refresh tokens stored in postgres")
	}

	engine, err := builder.Build()
	if err != nil {
		log.Fatalf("failed to build engine: %v", err)
	}
	defer engine.Close()

	server := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      buildRouter(engine, logger),
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()
	logger.Info("authd listening")

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.String("error", err.Error()))
	}
}

func buildRouter(engine *authengine.Engine, logger *slog.Logger) http.Handler {
	h := &apiHandler{engine: engine, logger: logger}
	metricsHandler := prometheus.NewPrometheusExporter(engine).Handler()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", h.register)
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("POST /auth/refresh", h.refresh)
	mux.HandleFunc("POST /auth/revoke", h.revoke)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", metricsHandler)

	requireAuth := middleware.RequireAuthenticated()
	requireAdmin := middleware.RequireRole(authengine.RoleAdmin)
	mux.Handle("GET /me", requireAuth(http.HandlerFunc(h.me)))
	mux.Handle("GET /admin/stats", requireAdmin(http.HandlerFunc(h.adminStats)))

	guard := middleware.Guard(engine, "/auth/", "/healthz", "/metrics")
	return guard(mux)
}

func buildEngineConfig(cfg *serverConfig, privateKey, publicKey []byte) authengine.Config {
	out := authengine.DefaultConfig()
	out.JWT.Issuer = cfg.Auth.Issuer
	out.JWT.AccessTTL = cfg.Auth.AccessTTL
	out.JWT.PrivateKeyPEM = privateKey
	out.JWT.PublicKeyPEM = publicKey
	out.Refresh.TTL = cfg.Auth.RefreshTTL
	out.Registration.AllowSelfGrantedAdmin = cfg.Auth.AllowSelfGrantedAdmin
	out.Registration.MinPasswordLength = cfg.Auth.MinPasswordLength
	out.Security.ProductionMode = cfg.Auth.ProductionMode
	out.Security.EnableLoginThrottle = cfg.Auth.EnableLoginThrottle
	out.Security.EnableRefreshThrottle = cfg.Auth.EnableRefreshThrottle
	out.Audit.Enabled = true
	out.Metrics.Enabled = true
	out.Metrics.EnableLatencyHistograms = true
	return out
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
