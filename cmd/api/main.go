// Package main is the entry point for the CrewPlan ops API server.
//
// It loads configuration, connects the database pool, wires the
// generation service with its side channels (SQS announcements,
// CloudWatch metrics, pass history), and serves the chi router as a
// standard HTTP server with graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"crewplan/internal/api"
	"crewplan/internal/config"
	"crewplan/internal/db"
	"crewplan/internal/external"
	"crewplan/internal/metrics"
	"crewplan/internal/queue"
	"crewplan/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("crewplan API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := buildGenerationService(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}

	srv, err := api.NewServer(cfg, svc, db.NewPassHistoryRepository(pool), logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Probes = []api.HealthProbe{dbProbe{pool}}
	srv.MountRoutes()

	httpServer := &http.Server{
		Addr:         net.JoinHostPort("", cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// dbProbe reports database reachability for the health endpoint.
type dbProbe struct {
	pool *pgxpool.Pool
}

func (p dbProbe) Name() string { return "database" }

func (p dbProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// newPool creates the pgx connection pool with the configured tuning and
// verifies connectivity before the server starts accepting requests.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.Database.HealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = cfg.Database.AcquireTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// buildGenerationService wires the scheduler.Service from configuration:
// plan source, committer (local jobs table or platform API), SQS
// announcements, CloudWatch metrics and pass history.
func buildGenerationService(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*scheduler.Service, error) {
	plans := db.NewPlanRepository(pool)

	var source scheduler.PlanSource = plans
	var committer scheduler.PlanCommitter
	if cfg.Platform.Enabled {
		platform := external.NewPlatformClient(
			&http.Client{Timeout: cfg.Platform.Timeout},
			external.PlatformClientConfig{
				BaseURL: cfg.Platform.BaseURL,
				APIKey:  cfg.Platform.APIKey,
				Logger:  logger,
			},
		)
		committer = db.NewRemoteCommitter(pool, platform, logger)
		source = scheduler.RemoteHighWaterSource{PlanSource: plans, Remote: platform}
	} else {
		committer = db.NewCommitter(pool, logger)
	}

	var announcer scheduler.JobAnnouncer
	var passMetrics scheduler.PassMetrics = metrics.NoopPassMetrics{}
	if cfg.Feature.EnableAnnouncements || cfg.Feature.EnableMetrics {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS SDK config: %w", err)
		}

		if cfg.Feature.EnableAnnouncements {
			sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
				if cfg.AWS.EndpointURL != "" {
					o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
				}
			})
			announcer = queue.NewAssignmentDispatcher(sqsClient, cfg.AWS.JobEventsQueue, logger)
		}
		if cfg.Feature.EnableMetrics {
			cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
				if cfg.AWS.EndpointURL != "" {
					o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
				}
			})
			passMetrics = metrics.NewCloudWatchPassMetrics(cwClient, logger)
		}
	}

	return scheduler.NewService(scheduler.ServiceConfig{
		Source:      source,
		Committer:   committer,
		History:     db.NewPassHistoryRepository(pool),
		Announcer:   announcer,
		Metrics:     passMetrics,
		Concurrency: cfg.Generation.Concurrency,
		Logger:      logger,
	}), nil
}

// newLogger creates a structured slog.Logger for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
