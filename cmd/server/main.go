package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"solflow/backend/internal/api"
	"solflow/backend/internal/cache"
	"solflow/backend/internal/config"
	"solflow/backend/internal/logging"
	"solflow/backend/internal/mcp"
	"solflow/backend/internal/metrics"
	"solflow/backend/internal/repository"
	"solflow/backend/internal/services"
	"solflow/backend/internal/solana"
	"solflow/backend/internal/tls"
)

const (
	serviceName = "solflow-backend"
	version     = "1.0.0"
)

func main() {
	var (
		envFile string
		port    int
	)

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Workflow API and Solana gateway for the workflow builder",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(envFile)
			if err != nil {
				return fmt.Errorf("configuration loading failed: %w", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "", "Path to .env file")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port, overriding configuration")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	format := cfg.Log.Format
	if cfg.IsProduction() {
		format = "json"
	}
	logger, err := logging.NewLogger(cfg.Log.Level, format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"config_file", cfg.ConfigFile,
		"storage", cfg.Storage.Driver,
		"cache", cfg.Cache.Enabled,
		"ai_configured", cfg.AI.APIKey != "",
	)

	// Storage
	workflowStore, closeStore, err := initWorkflowStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	tokenCache, err := cache.New(ctx, cache.Options{
		Enabled:   cfg.Cache.Enabled,
		Driver:    cfg.Cache.Driver,
		TTL:       cfg.Cache.TTL,
		Size:      cfg.Cache.Size,
		RedisAddr: cfg.Cache.RedisAddr,
		Prefix:    serviceName + ":",
	})
	if err != nil {
		return fmt.Errorf("cache initialization failed: %w", err)
	}
	if closer, ok := tokenCache.(io.Closer); ok {
		defer closer.Close()
	}

	// Services
	dial := func(endpoint string) (*solana.Client, error) {
		return solana.NewClient(endpoint, solana.WithTimeout(cfg.Solana.Timeout))
	}
	workflowService := services.NewWorkflowService(workflowStore, logger.With("component", "workflows"),
		services.WithLimits(services.Limits{MaxNodes: cfg.Workflow.MaxNodes, MaxEdges: cfg.Workflow.MaxEdges}))
	paymentService := services.NewPaymentService(repository.NewMemoryPaymentStore(),
		func(endpoint string) (services.TransactionFetcher, error) {
			client, err := dial(endpoint)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		logger.With("component", "payments"))
	bagsService := services.NewBagsService(cfg.Bags.BaseURL, cfg.Bags.APIKey, cfg.Bags.Timeout, tokenCache,
		logger.With("component", "bags"))
	completer := services.NewBreakerCompleter(
		services.NewOpenAICompleter(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Timeout),
		5, 30*time.Second, logger.With("component", "ai"))
	aiService, err := services.NewAIService(completer, cfg.AI.Model, cfg.AI.SuggestModel, logger.With("component", "ai"))
	if err != nil {
		return err
	}

	logger.Info("Service layer initialized")

	// HTTP
	e := newEcho(cfg, logger)
	server := api.NewServer(workflowService, paymentService, bagsService, aiService, dial, logger)
	server.Register(e)

	mcpServer := mcp.NewServer(workflowService, version)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp", echo.WrapHandler(mcpHandlers))
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))

	e.GET("/openapi.yaml", echo.WrapHandler(api.SpecHandler()))
	e.GET("/docs", echo.WrapHandler(api.SwaggerHandler("/openapi.yaml")))

	logger.Info("Handlers mounted", "rpc_default", cfg.Solana.DefaultRPCURL)

	return serve(e, cfg, logger)
}

func newEcho(cfg *config.Config, logger *logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.NewErrorHandler(cfg.IsProduction(), logger)
	e.Validator = api.NewValidator()

	m := metrics.New()

	e.Use(middleware.Recover())
	e.Use(m.Middleware("/metrics"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				logger.Warn("request", "method", v.Method, "uri", v.URI, "status", v.Status,
					"latency", v.Latency, "remote_ip", v.RemoteIP, "error", v.Error)
				return nil
			}
			logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency, "remote_ip", v.RemoteIP)
			return nil
		},
	}))
	e.Use(otelecho.Middleware(serviceName))
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, api.OwnerHeader},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	return e
}

func serve(e *echo.Echo, cfg *config.Config, logger *logging.Logger) error {
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if !cfg.TLS.Enable {
			serverErrors <- server.ListenAndServe()
			return
		}
		generated, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			serverErrors <- fmt.Errorf("tls certificate: %w", err)
			return
		}
		if generated {
			logger.Warn("Generated self-signed certificate", "cert", cfg.TLS.CertFile, "hosts", cfg.TLS.Hostnames)
		}
		serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		logger.Info("Server stopped gracefully")
		return nil
	}
}

// initWorkflowStore opens the configured workflow store. The returned func
// releases its resources.
func initWorkflowStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (repository.WorkflowStore, func(), error) {
	if cfg.Storage.Driver != "postgres" {
		logger.Info("Using in-memory workflow store")
		return repository.NewMemoryWorkflowStore(), func() {}, nil
	}

	pool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("database initialization failed: %w", err)
	}
	store := repository.NewPostgresWorkflowStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("Database connected")
	return store, pool.Close, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
