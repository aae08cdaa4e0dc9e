package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	cfhttp "github.com/aruna-bi/aruna/internal/adapter/http"
	cfmcp "github.com/aruna-bi/aruna/internal/adapter/mcp"
	cfnats "github.com/aruna-bi/aruna/internal/adapter/nats"
	"github.com/aruna-bi/aruna/internal/adapter/openrouter"
	cfotel "github.com/aruna-bi/aruna/internal/adapter/otel"
	"github.com/aruna-bi/aruna/internal/adapter/postgres"
	"github.com/aruna-bi/aruna/internal/config"
	"github.com/aruna-bi/aruna/internal/domain/industry"
	"github.com/aruna-bi/aruna/internal/logger"
	"github.com/aruna-bi/aruna/internal/middleware"
	"github.com/aruna-bi/aruna/internal/port/messagequeue"
	"github.com/aruna-bi/aruna/internal/resilience"
	"github.com/aruna-bi/aruna/internal/secrets"
	"github.com/aruna-bi/aruna/internal/service"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var err error
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		err = runAdmin(os.Args[2:])
	} else {
		err = run(os.Args[1:])
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"config_file", cfgPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"model", cfg.OpenRouter.Model,
		"nats_enabled", cfg.NATS.Enabled,
		"mcp_enabled", cfg.MCP.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---

	otelShutdown, err := cfotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Secrets ---

	secretKeys := []string{cfg.OpenRouter.APIKeyEnv, cfg.MCP.APIKeyEnv}
	vault, err := secrets.NewVault(secrets.Chain(
		secrets.DotenvLoader(config.DefaultEnvFile, secretKeys...),
		secrets.EnvLoader(secretKeys...),
	))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	if _, err := vault.Require(cfg.OpenRouter.APIKeyEnv); err != nil {
		slog.Warn("openrouter api key not set, chat requests will fail until it is provided", "env", cfg.OpenRouter.APIKeyEnv)
	}
	go reloadSecretsOnHUP(ctx, vault)

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")
	store := postgres.NewStore(pool)

	var (
		natsQueue *cfnats.Queue
		queue     messagequeue.Queue
	)
	if cfg.NATS.Enabled {
		natsQueue, err = cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = natsQueue.Close() }()
		queue = natsQueue
	}

	businessCache, closeCache, err := newBusinessCache(ctx, cfg.Cache, natsQueue)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer closeCache()

	// --- Services ---

	registry := industry.DefaultRegistry()
	resolver := service.NewBusinessResolver(store, businessCache, cfg.Cache.L1TTL)
	tools := service.NewBusinessTools(store, resolver, registry)

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout,
		resilience.WithFailureFilter(openrouter.BreakerFilter()),
		resilience.WithStateChange(func(from, to string) {
			slog.Warn("openrouter circuit breaker state changed", "from", from, "to", to)
		}),
	)
	model := openrouter.NewClient(cfg.OpenRouter, vault)
	model.SetBreaker(breaker)
	model.SetRedactor(vault)

	agentSvc, err := service.NewAgentService(model, tools, resolver, registry, cfg.Agent, cfg.OpenRouter.Model)
	if err != nil {
		return fmt.Errorf("agent service: %w", err)
	}
	agentSvc.SetMetrics(metrics)

	var audit *service.AuditLogger
	if cfg.Audit.Enabled {
		audit = service.NewAuditLogger(store, queue, cfg.Audit.Subject)
		audit.SetMetrics(metrics)
		agentSvc.SetAudit(audit)

		stopConsume, err := audit.Consume(ctx)
		if err != nil {
			return fmt.Errorf("audit consumer: %w", err)
		}
		defer stopConsume()

		if cfg.Audit.PruneSchedule != "" && cfg.Audit.Retention > 0 {
			pruner, err := audit.StartPruner(cfg.Audit.PruneSchedule, cfg.Audit.Retention)
			if err != nil {
				return fmt.Errorf("audit pruner: %w", err)
			}
			defer pruner.Stop()
		}
	}

	// --- HTTP ---

	handlers := &cfhttp.Handlers{
		Agent:      agentSvc,
		AgentLogs:  audit,
		Dashboards: tools,
		Modules:    registry,
		Version:    version,
		Health:     healthChecks(store, natsQueue, breaker),
	}

	limiter, stopLimiter := middleware.NewRateLimiterFromConfig(cfg.Rate)
	defer stopLimiter()

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cfhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))

	cfhttp.MountRoutes(r, handlers, limiter.Handler)

	var mcpServer *cfmcp.Server
	if cfg.MCP.Enabled {
		mcpServer = cfmcp.NewServer(cfmcp.ServerConfig{
			Name:    "aruna",
			Version: version,
			Path:    cfg.MCP.Path,
			APIKey:  vault.Get(cfg.MCP.APIKeyEnv),
		}, cfmcp.ServerDeps{Tools: tools, Modules: registry})
		r.Handle(cfg.MCP.Path, mcpServer.Handler())
		slog.Info("mcp server mounted", "path", cfg.MCP.Path)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if mcpServer != nil {
		if err := mcpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("mcp shutdown", "error", err)
		}
	}
	if audit != nil {
		if err := audit.Wait(shutdownCtx); err != nil {
			slog.Warn("audit logs still in flight at shutdown", "error", err)
		}
		if n := audit.DeadLetters(); n > 0 {
			slog.Warn("agent logs were dropped during this run", "count", n)
		}
	}
	return nil
}

// reloadSecretsOnHUP reloads the vault whenever the process receives SIGHUP.
func reloadSecretsOnHUP(ctx context.Context, vault *secrets.Vault) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := vault.Reload(); err != nil {
				slog.Error("secret reload failed", "error", err)
				continue
			}
			slog.Info("secrets reloaded", "keys", vault.Keys())
		}
	}
}
