// Package metrics emits generation pass metrics to AWS CloudWatch.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Namespace is the CloudWatch namespace for all engine metrics.
const Namespace = "CrewPlan/Generation"

// Metric and dimension names.
const (
	MetricJobsMaterialized = "JobsMaterialized"
	MetricConflicts        = "MaterializationConflicts"
	MetricPassDuration     = "PassDuration"

	DimPlan = "PlanID"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchPassMetrics publishes per-pass counters. Metric emission is
// fire-and-forget: a CloudWatch failure is logged and swallowed, never
// surfaced to the pass.
type CloudWatchPassMetrics struct {
	client CloudWatchClient
	logger *slog.Logger
}

// NewCloudWatchPassMetrics creates a metrics publisher on the given
// client.
func NewCloudWatchPassMetrics(client CloudWatchClient, logger *slog.Logger) *CloudWatchPassMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchPassMetrics{client: client, logger: logger}
}

// RecordPass emits the materialized and conflict counts plus the pass
// duration, all dimensioned by plan.
func (m *CloudWatchPassMetrics) RecordPass(ctx context.Context, planID string, materialized, conflicts int, duration time.Duration) {
	dims := []cwtypes.Dimension{
		{
			Name:  aws.String(DimPlan),
			Value: aws.String(planID),
		},
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(Namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricJobsMaterialized),
				Value:      aws.Float64(float64(materialized)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(MetricConflicts),
				Value:      aws.Float64(float64(conflicts)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(MetricPassDuration),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: dims,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.WarnContext(ctx, "failed to record pass metrics",
			"plan_id", planID,
			"error", err,
		)
	}
}

// NoopPassMetrics discards all metrics. Used when CloudWatch publishing
// is disabled (local development, tests).
type NoopPassMetrics struct{}

// RecordPass does nothing.
func (NoopPassMetrics) RecordPass(context.Context, string, int, int, time.Duration) {}
