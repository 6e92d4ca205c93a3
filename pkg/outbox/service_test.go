package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
	"github.com/angelmondragon/storefront-payments/pkg/outbox/payloads"
)

func TestEmitStoresEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), logger.Nop())
	orderID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          payloads.OrderPaidEvent{OrderID: orderID, RazorpayPaymentID: "pay_1"},
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	assert.Equal(t, enums.EventOrderPaid, row.EventType)
	assert.Equal(t, orderID, row.AggregateID)

	env, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	assert.Equal(t, 1, env.Version)
	assert.Equal(t, row.ID.String(), env.EventID)

	var data payloads.OrderPaidEvent
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "pay_1", data.RazorpayPaymentID)
}

func TestEmitRequiresTransactionAndKnownType(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder})
	assert.Error(t, err)

	err = conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{EventType: "mystery", AggregateType: enums.AggregateOrder})
	})
	assert.Error(t, err)
}

func TestPublishBookkeeping(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < 3; i++ {
			if err := svc.Emit(context.Background(), tx, DomainEvent{
				EventType:     enums.EventRefundProcessed,
				AggregateType: enums.AggregateRefundTransaction,
				AggregateID:   uuid.New(),
				Data:          map[string]int{"i": i},
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 2)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, rows[1].ID, assert.AnError))
	require.NoError(t, repo.MarkFailedTx(conn, rows[1].ID, assert.AnError))

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 2)
	require.NoError(t, err)
	require.Len(t, rows, 1, "published and exhausted rows are skipped")
}

func TestTerminalRowsMoveToDLQ(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	dlq := NewDLQRepository(conn)
	svc := NewService(repo, nil)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventRefundFailed,
			AggregateType: enums.AggregateRefundTransaction,
			AggregateID:   uuid.New(),
			Data:          map[string]string{"reason": "declined"},
		})
	}))
	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	event := rows[0]

	long := strings.Repeat("x", maxDLQErrorLen+10)
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		if err := dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       event.ID,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       event.Payload,
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			ErrorMessage:  &long,
			AttemptCount:  5,
			FailedAt:      time.Now().UTC(),
		}); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, event.ID, assert.AnError, 5)
	}))

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, rows)

	entries, err := dlq.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, event.ID, entries[0].EventID)
	require.NotNil(t, entries[0].ErrorMessage)
	assert.Len(t, *entries[0].ErrorMessage, maxDLQErrorLen)

	assert.Error(t, dlq.InsertTx(nil, models.OutboxDLQ{}))
}

func TestDeletePublishedBeforeKeepsPendingRows(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	old := time.Now().UTC().Add(-48 * time.Hour)
	published := old.Add(time.Hour)

	seed := []models.OutboxEvent{
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: old, PublishedAt: &published},
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: old, AttemptCount: 10},
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: old, AttemptCount: 1},
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)},
	}
	require.NoError(t, conn.Create(&seed).Error)

	var deleted int64
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		n, err := repo.DeletePublishedBefore(context.Background(), tx, time.Now().UTC().Add(-time.Hour), 10)
		deleted = n
		return err
	}))
	assert.EqualValues(t, 2, deleted)

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.EqualValues(t, 2, remaining)
}

func TestClipUTF8KeepsRuneBoundary(t *testing.T) {
	// "₹" is three bytes; clipping at four must not split the second one.
	assert.Equal(t, "₹", clipUTF8("₹₹", 4))
	assert.Equal(t, "abc", clipUTF8("abcdef", 3))
}
