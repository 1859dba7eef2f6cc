// Package main is the entrypoint for the generation worker Lambda.
//
// The worker runs nightly via an EventBridge rule (and on demand for
// single plans). Each invocation loads the due schedule plans, runs a
// generation pass per plan with bounded concurrency, materializes the
// resulting jobs, and announces them on the job events queue.
//
// This file handles dependency wiring (cold start) and delegates the
// pass logic to internal/scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"crewplan/internal/config"
	"crewplan/internal/db"
	"crewplan/internal/external"
	"crewplan/internal/metrics"
	"crewplan/internal/queue"
	"crewplan/internal/scheduler"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("generation worker initializing (cold start)")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	svc, err := buildGenerationService(ctx, cfg, pool, logger)
	if err != nil {
		logger.Error("failed to wire generation service", "error", err)
		os.Exit(1)
	}

	logger.Info("generation worker initialized",
		"environment", cfg.Environment,
		"batch_limit", cfg.Generation.BatchLimit,
		"concurrency", cfg.Generation.Concurrency,
		"platform_materializer", cfg.Platform.Enabled,
	)

	lambda.Start(newHandler(svc, cfg, logger))
}

// newHandler creates the Lambda handler processing GenerationPayload
// events. A payload naming a plan runs that plan alone; otherwise the
// handler processes every due plan up to the batch limit.
func newHandler(svc *scheduler.Service, cfg *config.Config, logger *slog.Logger) func(ctx context.Context, payload scheduler.GenerationPayload) (*scheduler.GenerationOutput, error) {
	return func(ctx context.Context, payload scheduler.GenerationPayload) (*scheduler.GenerationOutput, error) {
		now := time.Now().UTC()
		if payload.ReferenceTime != nil {
			now = payload.ReferenceTime.UTC()
		}

		logger.InfoContext(ctx, "generation worker invoked",
			"plan_id", payload.PlanID,
			"reference_time", now.Format(time.RFC3339),
			"limit", payload.Limit,
		)

		if payload.PlanID != "" {
			summary, err := svc.RunPlan(ctx, payload.PlanID, now)
			if err != nil {
				logger.ErrorContext(ctx, "single-plan pass failed",
					"plan_id", payload.PlanID,
					"error", err,
				)
				return nil, fmt.Errorf("generation pass for plan %s: %w", payload.PlanID, err)
			}
			return &scheduler.GenerationOutput{
				PlansProcessed: 1,
				JobsCreated:    len(summary.CreatedJobs),
				Conflicts:      summary.Existing,
			}, nil
		}

		limit := payload.Limit
		if limit == 0 {
			limit = cfg.Generation.BatchLimit
		}

		out, err := svc.RunDue(ctx, now, limit)
		if err != nil {
			logger.ErrorContext(ctx, "due-plan batch failed", "error", err)
			return nil, fmt.Errorf("generation batch: %w", err)
		}

		logger.InfoContext(ctx, "generation batch complete",
			"plans_processed", out.PlansProcessed,
			"plans_failed", out.PlansFailed,
			"jobs_created", out.JobsCreated,
			"conflicts", out.Conflicts,
		)
		return out, nil
	}
}

// buildGenerationService wires the scheduler.Service from configuration.
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
