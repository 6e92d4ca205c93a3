package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/config"
	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	PaymentPublisher() *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	PubSub        pubSubClient
	Repository    outboxRepository
	DLQRepository dlqRepository
	// Publisher overrides the topic publisher taken from PubSub.
	Publisher publisher
}

// Service drains the payment outbox into the Pub/Sub payment topic.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pubSubClient
	repo         outboxRepository
	dlq          dlqRepository
	publisher    publisher
	topic        string
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	pub := params.Publisher
	if pub == nil {
		if topic := params.PubSub.PaymentPublisher(); topic != nil {
			pub = topicPublisher{topic}
		}
	}
	if pub == nil {
		return nil, errors.New("payment topic publisher is not configured")
	}

	oc := params.Config.Outbox
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		dlq:          params.DLQRepository,
		publisher:    pub,
		topic:        params.Config.PubSub.PaymentTopic,
		batchSize:    positiveOr(oc.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(oc.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(oc.PollIntervalMS, int(defaultPoll/time.Millisecond))) * time.Millisecond,
		now:          time.Now,
	}, nil
}

// Run polls until ctx ends. A full batch is followed immediately by the
// next one; an empty batch or an error waits before polling again.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": s.db.Ping,
		"pubsub":   s.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping: %w", name, err)
		}
	}

	wait := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			wait = nextBackoff(wait, s.pollInterval, maxBackoff)
		case n > 0:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
		}
		if err := sleepCtx(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// topicPublisher adapts the Pub/Sub client publisher to the local interface.
type topicPublisher struct {
	p *gcppubsub.Publisher
}

func (t topicPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return t.p.Publish(ctx, msg)
}
