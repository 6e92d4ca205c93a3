package payments

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/internal/orders"
	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
)

// DuplicateReason explains why a capture was treated as already applied.
type DuplicateReason string

const (
	ReasonNone             DuplicateReason = ""
	ReasonPaymentIDSeen    DuplicateReason = "payment_id_seen"
	ReasonOrderAlreadyPaid DuplicateReason = "order_already_paid"
)

// CaptureGuard decides whether a capture event may be applied. It reads
// storage on every call; a lookup failure is returned as a storage error and
// never treated as "not seen".
type CaptureGuard struct {
	orders orders.Repository
}

func NewCaptureGuard(repo orders.Repository) *CaptureGuard {
	return &CaptureGuard{orders: repo}
}

// Check returns ReasonNone when order may be marked paid with paymentID.
func (g *CaptureGuard) Check(ctx context.Context, tx *gorm.DB, order *models.Order, paymentID string) (DuplicateReason, error) {
	existing, err := g.orders.WithTx(tx).FindByPaymentID(ctx, paymentID)
	switch {
	case err == nil && existing != nil:
		return ReasonPaymentIDSeen, nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return ReasonNone, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "lookup payment id")
	}
	if order.PaymentStatus.IsCaptured() {
		return ReasonOrderAlreadyPaid, nil
	}
	return ReasonNone, nil
}
