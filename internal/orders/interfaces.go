package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
)

// Repository defines the order persistence used by the payment engine.
// Lookups return gorm.ErrRecordNotFound when no row matches. Conditional
// writes report whether a row was changed.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID, lock bool) (*models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string, lock bool) (*models.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, paymentID string, paidAt time.Time) (bool, error)
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID, reason string, details json.RawMessage, at time.Time) (bool, error)
	MarkInventoryApplied(ctx context.Context, orderID uuid.UUID, at time.Time) error
	TransitionPaymentStatus(ctx context.Context, orderID uuid.UUID, from, to enums.PaymentStatus) (bool, error)
	ListPaidAwaitingInventory(ctx context.Context, paidBefore time.Time, limit int) ([]models.Order, error)
}
