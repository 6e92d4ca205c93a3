package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
	"github.com/angelmondragon/storefront-payments/pkg/outbox"
)

// errPermanent marks rows that will never publish as stored.
var errPermanent = errors.New("permanent publish failure")

type inflight struct {
	event    models.OutboxEvent
	envelope outbox.PayloadEnvelope
	result   publishResult
	err      error
}

// processBatch claims a batch, publishes every row concurrently, then
// settles each row inside the same transaction. It returns the number of
// rows claimed.
func (s *Service) processBatch(ctx context.Context) (int, error) {
	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		claimed = len(events)
		if claimed == 0 {
			return nil
		}

		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		batch := make([]inflight, 0, len(events))
		for _, event := range events {
			item := inflight{event: event}
			item.envelope, item.err = decodeRow(event)
			if item.err == nil {
				item.result = s.publisher.Publish(pubCtx, s.message(event, item.envelope))
			}
			batch = append(batch, item)
		}
		for _, item := range batch {
			if item.err == nil {
				item.err = awaitResult(pubCtx, item.result)
			}
			if err := s.settle(ctx, tx, item); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (s *Service) message(event models.OutboxEvent, env outbox.PayloadEnvelope) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       env.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, item inflight) error {
	ev := item.event
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":     ev.ID.String(),
		"event_id":      item.envelope.EventID,
		"event_type":    ev.EventType,
		"aggregate_id":  ev.AggregateID.String(),
		"attempt_count": ev.AttemptCount + 1,
	})

	if item.err == nil {
		if err := s.repo.MarkPublishedTx(tx, ev.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", ev.ID, err)
		}
		s.logg.Info(logCtx, "outbox.published")
		return nil
	}

	if errors.Is(item.err, errPermanent) {
		return s.deadLetter(logCtx, tx, ev, enums.OutboxDLQReasonNonRetryable, item.err)
	}
	if ev.AttemptCount+1 >= s.maxAttempts {
		return s.deadLetter(logCtx, tx, ev, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", ev.AttemptCount+1, item.err))
	}
	s.logg.Warn(s.logg.WithField(logCtx, "error", item.err.Error()), "outbox.publish_failed")
	if err := s.repo.MarkFailedTx(tx, ev.ID, item.err); err != nil {
		return fmt.Errorf("mark failed %s: %w", ev.ID, err)
	}
	return nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, ev models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	msg := cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        msg,
	}), "outbox.dead_lettered")

	if err := s.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       ev.ID,
		EventType:     ev.EventType,
		AggregateType: ev.AggregateType,
		AggregateID:   ev.AggregateID,
		Payload:       ev.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  ev.AttemptCount,
		FailedAt:      s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("insert dlq %s: %w", ev.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, ev.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", ev.ID, err)
	}
	return nil
}

// decodeRow rejects rows that are broken at rest.
func decodeRow(ev models.OutboxEvent) (outbox.PayloadEnvelope, error) {
	if !ev.EventType.IsValid() {
		return outbox.PayloadEnvelope{}, fmt.Errorf("%w: unknown event type %q", errPermanent, ev.EventType)
	}
	env, err := outbox.DecodeEnvelope(ev.Payload)
	if err != nil {
		return outbox.PayloadEnvelope{}, fmt.Errorf("%w: decode envelope: %v", errPermanent, err)
	}
	if env.EventID == "" {
		return outbox.PayloadEnvelope{}, fmt.Errorf("%w: envelope missing event id", errPermanent)
	}
	return env, nil
}

func awaitResult(ctx context.Context, res publishResult) error {
	if res == nil {
		return fmt.Errorf("%w: publisher returned no result", errPermanent)
	}
	if _, err := res.Get(ctx); err != nil {
		return classifyPublishError(err)
	}
	return nil
}

// classifyPublishError marks gRPC statuses that retrying cannot fix.
func classifyPublishError(err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.PermissionDenied, codes.NotFound, codes.FailedPrecondition:
		return fmt.Errorf("%w: %v", errPermanent, err)
	}
	return err
}
