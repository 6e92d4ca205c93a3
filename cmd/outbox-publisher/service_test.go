package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/config"
	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
	"github.com/angelmondragon/storefront-payments/pkg/outbox"
)

func TestProcessBatchSettlesEachRowIndependently(t *testing.T) {
	first := paymentEvent(t, enums.EventOrderPaid, "evt-1", 0)
	second := paymentEvent(t, enums.EventRefundInitiated, "evt-2", 0)
	repo := &memRepo{events: []models.OutboxEvent{first, second}}
	pub := &scriptedPublisher{errs: []error{errors.New("unavailable"), nil}}
	svc := testService(t, repo, pub, &memDLQ{}, 5)

	n, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, repo.published)
}

func TestProcessBatchCarriesRoutingAttributes(t *testing.T) {
	ev := paymentEvent(t, enums.EventRefundProcessed, "evt-attrs", 0)
	pub := &scriptedPublisher{}
	svc := testService(t, &memRepo{events: []models.OutboxEvent{ev}}, pub, &memDLQ{}, 5)

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.sent, 1)
	msg := pub.sent[0]
	assert.Equal(t, "evt-attrs", msg.Attributes["event_id"])
	assert.Equal(t, string(enums.EventRefundProcessed), msg.Attributes["event_type"])
	assert.Equal(t, ev.AggregateID.String(), msg.Attributes["aggregate_id"])
	assert.Equal(t, []byte(ev.Payload), msg.Data)
}

func TestProcessBatchDeadLettersBrokenRows(t *testing.T) {
	broken := paymentEvent(t, enums.EventOrderPaid, "unused", 0)
	broken.Payload = json.RawMessage(`not-json`)
	unknown := paymentEvent(t, "order_shipped", "evt-unknown", 0)
	repo := &memRepo{events: []models.OutboxEvent{broken, unknown}}
	dlq := &memDLQ{}
	pub := &scriptedPublisher{}
	svc := testService(t, repo, pub, dlq, 5)

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pub.sent, "broken rows are never published")
	require.Len(t, dlq.entries, 2)
	for _, entry := range dlq.entries {
		assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	}
	assert.Equal(t, broken.ID, dlq.entries[0].EventID)
	assert.Equal(t, broken.Payload, dlq.entries[0].Payload)
	assert.ElementsMatch(t, []uuid.UUID{broken.ID, unknown.ID}, repo.terminal)
}

func TestProcessBatchDeadLettersOnLastAttempt(t *testing.T) {
	ev := paymentEvent(t, enums.EventOrderPaymentFailed, "evt-last", 1)
	repo := &memRepo{events: []models.OutboxEvent{ev}}
	dlq := &memDLQ{}
	svc := testService(t, repo, &scriptedPublisher{errs: []error{errors.New("deadline")}}, dlq, 2)

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
	assert.Equal(t, []uuid.UUID{ev.ID}, repo.terminal)
	assert.Empty(t, repo.failed)
}

func TestProcessBatchTreatsPermanentStatusAsTerminal(t *testing.T) {
	ev := paymentEvent(t, enums.EventOrderPaid, "evt-denied", 0)
	repo := &memRepo{events: []models.OutboxEvent{ev}}
	dlq := &memDLQ{}
	pub := &scriptedPublisher{errs: []error{status.Error(codes.PermissionDenied, "no publish")}}
	svc := testService(t, repo, pub, dlq, 5)

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq.entries[0].ErrorReason)
}

func TestProcessBatchEmpty(t *testing.T) {
	svc := testService(t, &memRepo{}, &scriptedPublisher{}, &memDLQ{}, 5)
	n, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClassifyPublishError(t *testing.T) {
	assert.ErrorIs(t, classifyPublishError(status.Error(codes.NotFound, "topic")), errPermanent)
	assert.NotErrorIs(t, classifyPublishError(status.Error(codes.Unavailable, "later")), errPermanent)
	assert.NotErrorIs(t, classifyPublishError(errors.New("plain")), errPermanent)
}

func TestNewServiceRequiresPublisher(t *testing.T) {
	_, err := NewService(ServiceParams{
		Config:        &config.Config{},
		Logger:        logger.Nop(),
		DB:            stubDB{},
		PubSub:        stubPubSub{},
		Repository:    &memRepo{},
		DLQRepository: &memDLQ{},
	})
	assert.Error(t, err)
}

func TestNewServiceDefaults(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Config:        &config.Config{},
		Logger:        logger.Nop(),
		DB:            stubDB{},
		PubSub:        stubPubSub{},
		Repository:    &memRepo{},
		DLQRepository: &memDLQ{},
		Publisher:     &scriptedPublisher{},
	})
	require.NoError(t, err)
	assert.Equal(t, defaultBatchSize, svc.batchSize)
	assert.Equal(t, defaultMaxAttempts, svc.maxAttempts)
	assert.Equal(t, defaultPoll, svc.pollInterval)
}

func TestBackoffHelpers(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(0, time.Second, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(8*time.Second, time.Second, maxBackoff))

	d := withJitter(time.Second)
	assert.GreaterOrEqual(t, d, time.Second)
	assert.Less(t, d, time.Second+jitterWindow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}

func testService(t *testing.T, repo outboxRepository, pub publisher, dlq dlqRepository, maxAttempts int) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config: &config.Config{
			Outbox: config.OutboxConfig{BatchSize: 10, PollIntervalMS: 50, MaxAttempts: maxAttempts},
			PubSub: config.PubSubConfig{PaymentTopic: "payments-test"},
		},
		Logger:        logger.Nop(),
		DB:            stubDB{},
		PubSub:        stubPubSub{},
		Repository:    repo,
		DLQRepository: dlq,
		Publisher:     pub,
	})
	require.NoError(t, err)
	return svc
}

func paymentEvent(t *testing.T, eventType enums.OutboxEventType, eventID string, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"order_id":"o-1"}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Now().UTC(),
	}
}

type memRepo struct {
	events                      []models.OutboxEvent
	published, failed, terminal []uuid.UUID
}

func (m *memRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return m.events, nil
}

func (m *memRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	m.published = append(m.published, id)
	return nil
}

func (m *memRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	m.failed = append(m.failed, id)
	return nil
}

func (m *memRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	m.terminal = append(m.terminal, id)
	return nil
}

type memDLQ struct {
	entries []models.OutboxDLQ
}

func (m *memDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	m.entries = append(m.entries, entry)
	return nil
}

type stubDB struct{}

func (stubDB) Ping(context.Context) error { return nil }

func (stubDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type stubPubSub struct{}

func (stubPubSub) Ping(context.Context) error { return nil }

func (stubPubSub) PaymentPublisher() *gcppubsub.Publisher { return nil }

// scriptedPublisher answers each Publish with the next scripted error.
type scriptedPublisher struct {
	errs []error
	sent []*gcppubsub.Message
}

func (p *scriptedPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.sent = append(p.sent, msg)
	var err error
	if len(p.errs) > 0 {
		err, p.errs = p.errs[0], p.errs[1:]
	}
	return errResult{err}
}

type errResult struct{ err error }

func (r errResult) Get(context.Context) (string, error) { return "srv-id", r.err }
