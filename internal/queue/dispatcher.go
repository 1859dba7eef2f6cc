// Package queue provides SQS-based message producers for announcing
// materialized jobs to downstream assignment workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"crewplan/internal/types"
)

// EventSource identifies this engine in published envelopes.
const EventSource = "crewplan-engine"

// EventVersion is the envelope schema version consumers pin against.
const EventVersion = "1"

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// AssignmentDispatcher publishes job.created events for jobs whose plan
// opted into automatic crew assignment. Delivery is at-least-once; the
// assignment worker dedupes on job_id.
type AssignmentDispatcher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewAssignmentDispatcher creates a dispatcher sending to the given
// queue URL.
func NewAssignmentDispatcher(client SQSSender, queueURL string, logger *slog.Logger) *AssignmentDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentDispatcher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// AnnounceJobs sends one job.created envelope per job. A send failure
// aborts the batch and surfaces to the caller, who treats announcements
// as best-effort; jobs already sent stay sent.
func (d *AssignmentDispatcher) AnnounceJobs(ctx context.Context, jobs []types.Job) error {
	for _, job := range jobs {
		if err := d.announce(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (d *AssignmentDispatcher) announce(ctx context.Context, job types.Job) error {
	envelope := types.EventEnvelope{
		EventID:   "evt_" + uuid.New().String(),
		EventType: "job.created",
		Timestamp: time.Now().UTC(),
		Source:    EventSource,
		Version:   EventVersion,
		Payload: types.JobCreatedEvent{
			JobID:              job.ID,
			PlanID:             job.PlanID,
			TenantID:           job.TenantID,
			ApartmentRef:       job.Anchor.ApartmentRef,
			Date:               job.Date,
			StartAt:            job.StartAt,
			EndAt:              job.EndAt,
			MinCrewSize:        job.MinCrewSize,
			MaxCrewSize:        job.MaxCrewSize,
			PreferredEmployees: job.PreferredEmployees,
		},
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal job.created envelope: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(envelope.EventType),
			},
			"plan_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(job.PlanID),
			},
		},
	}

	if _, err := d.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to send job.created event", err).WithPlan(job.PlanID)
	}

	d.logger.DebugContext(ctx, "announced job",
		"event_id", envelope.EventID,
		"job_id", job.ID,
		"plan_id", job.PlanID,
	)
	return nil
}
