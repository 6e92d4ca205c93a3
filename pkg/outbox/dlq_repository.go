package outbox

import (
	"context"
	"errors"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/db/models"
)

// maxDLQErrorLen bounds the stored error text in bytes.
const maxDLQErrorLen = 1024

const defaultDLQListLimit = 50

// DLQRepository stores payment events the publisher stopped retrying.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx writes the dead letter inside the caller's transaction so the
// source outbox row and its DLQ copy change together.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if msg := entry.ErrorMessage; msg != nil && len(*msg) > maxDLQErrorLen {
		clipped := clipUTF8(*msg, maxDLQErrorLen)
		entry.ErrorMessage = &clipped
	}
	return tx.Create(&entry).Error
}

// List returns the newest dead letters first.
func (r *DLQRepository) List(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = defaultDLQListLimit
	}
	rows := make([]models.OutboxDLQ, 0, limit)
	if err := r.db.WithContext(ctx).Order("failed_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func clipUTF8(s string, max int) string {
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
