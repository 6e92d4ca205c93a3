package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

const envelopeVersion = 1

// DomainEvent is a payment-side fact to be published after commit.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	OccurredAt    time.Time
}

// Emitter appends domain events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit writes the event row in tx. The row id doubles as the envelope
// event id so consumers can dedupe on either.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !event.EventType.IsValid() {
		return fmt.Errorf("unknown outbox event type %q", event.EventType)
	}
	if !event.AggregateType.IsValid() {
		return fmt.Errorf("unknown outbox aggregate type %q", event.AggregateType)
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}

	id := uuid.New()
	payload, err := json.Marshal(PayloadEnvelope{
		Version:    envelopeVersion,
		EventID:    id.String(),
		OccurredAt: occurred.UTC(),
		Actor:      event.Actor,
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", event.EventType, err)
	}
	if err := s.repo.Insert(tx.WithContext(ctx), models.OutboxEvent{
		ID:            id,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"outbox_id":    id.String(),
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
		}), "outbox.queued")
	}
	return nil
}
