package payments

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/internal/inventory"
	"github.com/angelmondragon/storefront-payments/internal/orders"
	"github.com/angelmondragon/storefront-payments/pkg/db"
	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
	"github.com/angelmondragon/storefront-payments/pkg/metrics"
	"github.com/angelmondragon/storefront-payments/pkg/outbox"
	"github.com/angelmondragon/storefront-payments/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-payments/pkg/razorpay"
)

// DefaultFailureReason is stored when the gateway omits an error description.
const DefaultFailureReason = "Payment failed"

// CaptureInput carries a payment.captured or order.paid event.
type CaptureInput struct {
	GatewayOrderID string
	PaymentID      string
	// AmountMinor is the captured amount in minor units, zero when unknown.
	AmountMinor int64
}

// FailureInput carries a payment.failed event.
type FailureInput struct {
	GatewayOrderID string
	PaymentID      string
	Description    string
	Payment        json.RawMessage
}

type ServiceParams struct {
	TransactionRunner db.TxRunner
	OrdersRepo        orders.Repository
	Ledger            *inventory.Ledger
	Outbox            outbox.Emitter
	Metrics           *metrics.PaymentMetrics
	Logger            *logger.Logger
	Clock             func() time.Time
}

// Service applies payment events to orders and triggers the inventory ledger.
type Service struct {
	txRunner db.TxRunner
	orders   orders.Repository
	guard    *CaptureGuard
	ledger   *inventory.Ledger
	outbox   outbox.Emitter
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		txRunner: params.TransactionRunner,
		orders:   params.OrdersRepo,
		guard:    NewCaptureGuard(params.OrdersRepo),
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     logg,
		now:      clock,
	}, nil
}

// errPaymentIDTaken aborts the capture transaction when the storage
// uniqueness constraint rejects the payment id.
var errPaymentIDTaken = errors.New("payment id already recorded")

// HandleCaptured moves an order from pending or failed to paid and applies
// the inventory ledger in the same transaction.
func (s *Service) HandleCaptured(ctx context.Context, input CaptureInput) (enums.WebhookOutcome, error) {
	if input.GatewayOrderID == "" || input.PaymentID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "gateway order id and payment id are required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"razorpay_order_id":   input.GatewayOrderID,
		"razorpay_payment_id": input.PaymentID,
	})

	outcome := enums.WebhookOutcomeProcessed
	var report inventory.Report
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByGatewayOrderID(ctx, input.GatewayOrderID, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = enums.WebhookOutcomeNotFound
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order")
		}
		ctx = s.logg.WithField(ctx, "order_id", order.ID.String())

		reason, err := s.guard.Check(ctx, tx, order, input.PaymentID)
		if err != nil {
			return err
		}
		if reason != ReasonNone {
			s.logg.Info(s.logg.WithField(ctx, "reason", string(reason)), "payment.capture_duplicate")
			outcome = enums.WebhookOutcomeDuplicate
			return nil
		}
		if !CanTransition(order.PaymentStatus, enums.PaymentStatusPaid) {
			outcome = enums.WebhookOutcomeIgnored
			return nil
		}

		paidAt := s.now()
		changed, err := repo.MarkPaid(ctx, order.ID, input.PaymentID, paidAt)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return errPaymentIDTaken
			}
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "mark order paid")
		}
		if !changed {
			outcome = enums.WebhookOutcomeDuplicate
			return nil
		}
		s.checkAmount(ctx, order, input.AmountMinor)

		items, err := repo.ListItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order items")
		}
		report = s.ledger.ApplyOrder(ctx, tx, order, items)
		if err := repo.MarkInventoryApplied(ctx, order.ID, paidAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "mark inventory applied")
		}

		order.PaymentStatus = enums.PaymentStatusPaid
		order.RazorpayPaymentID = &input.PaymentID
		order.PaidAt = &paidAt
		return s.emitPaid(ctx, tx, order, report)
	})
	if errors.Is(err, errPaymentIDTaken) {
		s.logg.Warn(ctx, "payment.capture_payment_id_conflict")
		return enums.WebhookOutcomeDuplicate, nil
	}
	if err != nil {
		return "", err
	}

	if outcome == enums.WebhookOutcomeNotFound {
		s.logg.Warn(ctx, "payment.order_not_found")
	}
	if failures := report.Failures(); len(failures) > 0 {
		s.metrics.AddInventoryFailures(len(failures))
		s.logg.Error(s.logg.WithField(ctx, "failed_items", len(failures)), "inventory.partial_application", report.Err())
	}
	if outcome == enums.WebhookOutcomeProcessed {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"items_decremented": report.Decremented(),
			"items_skipped":     report.Skipped(),
		}), "payment.captured")
	}
	return outcome, nil
}

// HandleFailed records a failed payment attempt. Orders that were already
// captured are left untouched so a late failure cannot downgrade them.
func (s *Service) HandleFailed(ctx context.Context, input FailureInput) (enums.WebhookOutcome, error) {
	if input.GatewayOrderID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "gateway order id is required")
	}
	reason := input.Description
	if reason == "" {
		reason = DefaultFailureReason
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"razorpay_order_id":   input.GatewayOrderID,
		"razorpay_payment_id": input.PaymentID,
	})

	outcome := enums.WebhookOutcomeProcessed
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByGatewayOrderID(ctx, input.GatewayOrderID, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = enums.WebhookOutcomeNotFound
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order")
		}
		if !CanTransition(order.PaymentStatus, enums.PaymentStatusFailed) {
			outcome = enums.WebhookOutcomeIgnored
			return nil
		}
		changed, err := repo.MarkPaymentFailed(ctx, order.ID, reason, input.Payment, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "mark payment failed")
		}
		if !changed {
			outcome = enums.WebhookOutcomeIgnored
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaymentFailedEvent{
				OrderID:           order.ID,
				OrderNumber:       order.OrderNumber,
				RazorpayPaymentID: input.PaymentID,
				Reason:            reason,
			},
		})
	})
	if err != nil {
		return "", err
	}

	switch outcome {
	case enums.WebhookOutcomeNotFound:
		s.logg.Warn(ctx, "payment.order_not_found")
	case enums.WebhookOutcomeIgnored:
		s.logg.Info(ctx, "payment.failure_after_capture_ignored")
	default:
		s.logg.Info(s.logg.WithField(ctx, "reason", reason), "payment.failed")
	}
	return outcome, nil
}

// ApplyPendingInventory runs the ledger for a paid order whose inventory was
// never applied. It is a no-op when the marker is already set.
func (s *Service) ApplyPendingInventory(ctx context.Context, orderID uuid.UUID) (enums.WebhookOutcome, error) {
	outcome := enums.WebhookOutcomeProcessed
	var report inventory.Report
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = enums.WebhookOutcomeNotFound
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order")
		}
		if order.PaymentStatus != enums.PaymentStatusPaid || order.InventoryAppliedAt != nil {
			outcome = enums.WebhookOutcomeDuplicate
			return nil
		}
		items, err := repo.ListItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order items")
		}
		report = s.ledger.ApplyOrder(ctx, tx, order, items)
		if err := repo.MarkInventoryApplied(ctx, order.ID, s.now()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "mark inventory applied")
		}
		return s.emitInventoryFailures(ctx, tx, order, report)
	})
	if err != nil {
		return "", err
	}
	if n := len(report.Failures()); n > 0 {
		s.metrics.AddInventoryFailures(n)
	}
	return outcome, nil
}

func (s *Service) emitPaid(ctx context.Context, tx *gorm.DB, order *models.Order, report inventory.Report) error {
	gatewayOrderID := ""
	if order.RazorpayOrderID != nil {
		gatewayOrderID = *order.RazorpayOrderID
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderPaidEvent{
			OrderID:           order.ID,
			OrderNumber:       order.OrderNumber,
			RazorpayOrderID:   gatewayOrderID,
			RazorpayPaymentID: *order.RazorpayPaymentID,
			Total:             order.Total,
			Currency:          order.Currency,
			PaidAt:            *order.PaidAt,
			ItemsDecremented:  report.Decremented(),
			ItemsSkipped:      report.Skipped(),
			ItemsFailed:       len(report.Failures()),
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "emit order paid")
	}
	return s.emitInventoryFailures(ctx, tx, order, report)
}

func (s *Service) emitInventoryFailures(ctx context.Context, tx *gorm.DB, order *models.Order, report inventory.Report) error {
	failures := report.Failures()
	if len(failures) == 0 {
		return nil
	}
	event := payloads.InventoryDecrementFailedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Failures:    make([]payloads.InventoryFailure, 0, len(failures)),
	}
	for _, item := range failures {
		event.Failures = append(event.Failures, payloads.InventoryFailure{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Error:     item.Err.Error(),
		})
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInventoryDecrementFailed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data:          event,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "emit inventory alert")
	}
	return nil
}

// checkAmount logs when the captured amount differs from the order total.
func (s *Service) checkAmount(ctx context.Context, order *models.Order, amountMinor int64) {
	if amountMinor <= 0 {
		return
	}
	captured := razorpay.FromMinorUnits(amountMinor)
	if captured.Equal(order.Total) {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"order_total":     order.Total.String(),
		"captured_amount": captured.String(),
	}), "payment.amount_mismatch")
}
