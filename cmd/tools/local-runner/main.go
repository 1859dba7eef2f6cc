// Package main implements the local-runner CLI tool for driving
// generation passes without the AWS Lambda shim.
//
// This tool is intended for local development, manual backfilling, and
// operational debugging. It wires the same generation service as the
// worker and either runs one pass immediately or keeps running passes on
// a cron schedule.
//
// Usage:
//
//	go run ./cmd/tools/local-runner --once
//	go run ./cmd/tools/local-runner --once --plan=pln_01HX --at=2026-03-01T03:00:00Z
//	go run ./cmd/tools/local-runner --schedule="0 3 * * *"
//	go run ./cmd/tools/local-runner --dry-run --plan=pln_01HX
//
// The tool reads DATABASE_URL and the rest of the configuration from
// environment variables (or a .env file via godotenv). In --dry-run mode
// it previews the pass for a single plan without committing anything.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
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
	"github.com/robfig/cron/v3"

	"crewplan/internal/config"
	"crewplan/internal/db"
	"crewplan/internal/external"
	"crewplan/internal/metrics"
	"crewplan/internal/queue"
	"crewplan/internal/scheduler"
)

func main() {
	var (
		planID   = flag.String("plan", "", "run a single plan instead of all due plans")
		atFlag   = flag.String("at", "", "reference time override (RFC 3339); defaults to now")
		once     = flag.Bool("once", false, "run one pass and exit")
		schedule = flag.String("schedule", "0 3 * * *", "cron expression for repeated runs")
		limit    = flag.Int("limit", 0, "cap on due plans per run; 0 uses the configured batch limit")
		dryRun   = flag.Bool("dry-run", false, "preview a single plan's pass without committing (requires --plan)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if err := run(logger, *planID, *atFlag, *once, *schedule, *limit, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, planID, atFlag string, once bool, schedule string, limit int, dryRun bool) error {
	if dryRun && planID == "" {
		return fmt.Errorf("--dry-run requires --plan")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	referenceTime := func() time.Time { return time.Now().UTC() }
	if atFlag != "" {
		at, err := time.Parse(time.RFC3339, atFlag)
		if err != nil {
			return fmt.Errorf("parsing --at: %w", err)
		}
		fixed := at.UTC()
		referenceTime = func() time.Time { return fixed }
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	svc, err := buildGenerationService(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}

	if limit == 0 {
		limit = cfg.Generation.BatchLimit
	}

	runPass := func(ctx context.Context) error {
		now := referenceTime()
		switch {
		case dryRun:
			result, err := svc.Preview(ctx, planID, now)
			if err != nil {
				return err
			}
			return printJSON(result)
		case planID != "":
			summary, err := svc.RunPlan(ctx, planID, now)
			if err != nil {
				return err
			}
			return printJSON(summary)
		default:
			out, err := svc.RunDue(ctx, now, limit)
			if err != nil {
				return err
			}
			return printJSON(out)
		}
	}

	if once || dryRun {
		return runPass(ctx)
	}

	// Repeated mode: drive passes on the cron schedule until interrupted.
	c := cron.New(cron.WithLocation(time.UTC))
	_, err = c.AddFunc(schedule, func() {
		if err := runPass(ctx); err != nil {
			logger.Error("scheduled pass failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("parsing --schedule %q: %w", schedule, err)
	}

	logger.Info("local runner scheduled", "schedule", schedule, "limit", limit)
	c.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("stopping local runner")
	<-c.Stop().Done()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// buildGenerationService wires the scheduler.Service from configuration,
// mirroring the worker's wiring so local runs behave like production.
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
