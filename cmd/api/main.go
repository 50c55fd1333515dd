package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/multision/SupaConsole/internal/app/migrate"
	"github.com/multision/SupaConsole/internal/docker"
	"github.com/multision/SupaConsole/internal/git"
	httpx "github.com/multision/SupaConsole/internal/http"
	"github.com/multision/SupaConsole/internal/repository/postgres"
	"github.com/multision/SupaConsole/internal/service/auth"
	"github.com/multision/SupaConsole/internal/service/envconfig"
	"github.com/multision/SupaConsole/internal/service/project"
	"github.com/multision/SupaConsole/internal/service/system"
	"github.com/multision/SupaConsole/internal/workspace"
	"github.com/multision/SupaConsole/internal/ws"
	"github.com/multision/SupaConsole/pkg/config"
	"github.com/multision/SupaConsole/pkg/crypto"
	"github.com/multision/SupaConsole/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	runner, err := migrate.New(pool, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	sealer, err := crypto.NewSealer(cfg.EnvEncryptionKey)
	if err != nil {
		log.Error("invalid env encryption key", "error", err)
		os.Exit(1)
	}

	gitTimeout := cfg.GitTimeout
	clone := func(ctx context.Context, repoURL, dest string) error {
		ctx, cancel := context.WithTimeout(ctx, gitTimeout)
		defer cancel()
		log.Info("cloning reference repository", "repo", repoURL)
		return git.Clone(ctx, repoURL, dest)
	}
	workspaces, err := workspace.New(cfg.WorkspaceRoot, cfg.ReferenceRepoURL, clone)
	if err != nil {
		log.Error("failed to prepare workspace", "error", err)
		os.Exit(1)
	}

	var daemon system.Daemon
	dockerClient, err := docker.New(cfg.DockerHost)
	if err != nil {
		log.Warn("docker client unavailable", "error", err)
	} else {
		defer dockerClient.Close()
		daemon = dockerClient
	}

	repo := postgres.New(pool)
	hub := ws.NewHub(ctx, log)
	defer hub.Stop()

	authSvc := auth.New(repo, log, cfg)
	projectSvc := project.New(repo, workspaces, log)
	configSvc := envconfig.New(projectSvc, envconfig.NewStore(repo, sealer), log, envconfig.Options{
		Exporter: workspaces,
		Notifier: hub,
	})
	checker := system.NewChecker(daemon, log, system.Options{
		ProbeURL: cfg.SystemCheckURL,
		Timeout:  cfg.SystemCheckTimeout,
	})

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(ctx, addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := httpx.NewRouter(httpx.Dependencies{
		Logger:        log,
		Auth:          authSvc,
		Projects:      projectSvc,
		Config:        configSvc,
		System:        checker,
		Hub:           hub,
		Limiter:       limiter,
		Registry:      registry,
		DBHealth:      pool.Ping,
		SessionCookie: cfg.SessionCookie,
		SecureCookies: cfg.Environment == "production",
		MaxBodyBytes:  cfg.MaxEnvPayloadBytes,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "workspace", cfg.WorkspaceRoot)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
