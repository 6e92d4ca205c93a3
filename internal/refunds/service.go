package refunds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-payments/internal/orders"
	"github.com/angelmondragon/storefront-payments/internal/payments"
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

// Gateway note keys attached to every refund so webhooks can be correlated
// before the refund id is stored locally.
const (
	NoteRefundTransactionID = "refund_transaction_id"
	NoteReturnRequestID     = "return_request_id"
	NoteOrderID             = "order_id"
)

// InitiateInput requests a refund for an approved return. Amount defaults to
// the return's final refund amount and PaymentID to the order's payment.
type InitiateInput struct {
	ReturnRequestID uuid.UUID
	Amount          *decimal.Decimal
	PaymentID       string
	ActorID         *uuid.UUID
}

// InitiateResult is returned once the gateway accepted a refund.
// PersistencePending is set when the gateway accepted the refund but the
// local update failed; the refund must not be issued again.
type InitiateResult struct {
	Transaction        *models.RefundTransaction
	PersistencePending bool
}

// GatewayUpdate is a refund status reported by a webhook or a fetch.
type GatewayUpdate struct {
	RefundID      string
	PaymentID     string
	Status        enums.RefundStatus
	Notes         map[string]string
	FailureReason string
}

type ServiceParams struct {
	TransactionRunner db.TxRunner
	Repo              Repository
	OrdersRepo        orders.Repository
	Gateway           razorpay.Refunder
	Outbox            outbox.Emitter
	Metrics           *metrics.PaymentMetrics
	Logger            *logger.Logger
	Clock             func() time.Time
}

// Service orchestrates gateway refunds and reconciles their status.
type Service struct {
	txRunner db.TxRunner
	repo     Repository
	orders   orders.Repository
	gateway  razorpay.Refunder
	outbox   outbox.Emitter
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refunds repo required")
	}
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refund gateway required")
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
		repo:     params.Repo,
		orders:   params.OrdersRepo,
		gateway:  params.Gateway,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     logg,
		now:      clock,
	}, nil
}

// Initiate creates a pending refund transaction, asks the gateway to refund
// the payment, then records the gateway refund id.
func (s *Service) Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error) {
	if input.ReturnRequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return request id is required")
	}
	txn, err := s.createPending(ctx, input, nil)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, txn, input.ActorID)
}

// Retry issues a new refund for a failed transaction. The failed row is left
// untouched; the new row references it and reuses its payment id with the
// return's final refund amount.
func (s *Service) Retry(ctx context.Context, transactionID uuid.UUID, actorID *uuid.UUID) (*InitiateResult, error) {
	failed, err := s.repo.FindTransaction(ctx, transactionID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load refund transaction")
	}
	if failed.Status != enums.RefundStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only failed refunds can be retried")
	}

	txn, err := s.createPending(ctx, InitiateInput{
		ReturnRequestID: failed.ReturnRequestID,
		PaymentID:       failed.RazorpayPaymentID,
		ActorID:         actorID,
	}, &failed.ID)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, txn, actorID)
}

// List returns every refund attempt for a return, oldest first.
func (s *Service) List(ctx context.Context, returnID uuid.UUID) ([]models.RefundTransaction, error) {
	if _, err := s.repo.FindReturn(ctx, returnID, false); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load return request")
	}
	rows, err := s.repo.ListForReturn(ctx, returnID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list refund transactions")
	}
	return rows, nil
}

func (s *Service) createPending(ctx context.Context, input InitiateInput, retryOf *uuid.UUID) (*models.RefundTransaction, error) {
	var txn *models.RefundTransaction
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ret, err := repo.FindReturn(ctx, input.ReturnRequestID, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load return request")
		}
		if ret.Status != enums.ReturnStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("return request is %s; only approved returns can be refunded", ret.Status))
		}
		active, err := repo.HasActiveTransaction(ctx, ret.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "check active refunds")
		}
		if active {
			return pkgerrors.New(pkgerrors.CodeConflict, "a refund is already in progress for this return")
		}

		order, err := s.orders.WithTx(tx).FindByID(ctx, ret.OrderID, false)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order")
		}
		if !payments.CanTransition(order.PaymentStatus, enums.PaymentStatusRefundInitiated) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order payment is %s; only paid orders can be refunded", order.PaymentStatus))
		}

		paymentID, err := resolvePaymentID(order, input.PaymentID)
		if err != nil {
			return err
		}
		amount := ret.FinalRefundAmount
		if input.Amount != nil {
			amount = *input.Amount
		}
		if err := validateAmount(amount, order.Total); err != nil {
			return err
		}

		txn = &models.RefundTransaction{
			TransactionNumber:    transactionNumber(s.now()),
			ReturnRequestID:      ret.ID,
			OrderID:              order.ID,
			RazorpayPaymentID:    paymentID,
			Status:               enums.RefundStatusPending,
			OriginalAmount:       order.Total,
			RefundAmount:         amount,
			DeductedAmount:       order.Total.Sub(amount),
			RetryOfTransactionID: retryOf,
		}
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "create refund transaction")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) issue(ctx context.Context, txn *models.RefundTransaction, actorID *uuid.UUID) (*InitiateResult, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"refund_transaction_id": txn.ID.String(),
		"return_request_id":     txn.ReturnRequestID.String(),
		"razorpay_payment_id":   txn.RazorpayPaymentID,
	})

	refund, err := s.gateway.CreateRefund(ctx, razorpay.RefundRequest{
		PaymentID:   txn.RazorpayPaymentID,
		AmountMinor: razorpay.ToMinorUnits(txn.RefundAmount),
		Notes: map[string]string{
			NoteRefundTransactionID: txn.ID.String(),
			NoteReturnRequestID:     txn.ReturnRequestID.String(),
			NoteOrderID:             txn.OrderID.String(),
		},
	})
	if err != nil {
		if !gatewayRejected(err) {
			// The gateway may have accepted it. The row stays pending and
			// blocks new attempts until a webhook or an operator settles it.
			s.metrics.ObserveRefundRequest("unknown")
			s.logg.Error(ctx, "refund.gateway_outcome_unknown", err)
			return nil, err
		}
		s.metrics.ObserveRefundRequest("rejected")
		s.recordRejection(ctx, txn, err)
		return nil, err
	}
	s.metrics.ObserveRefundRequest("accepted")

	initiatedAt := s.now()
	txn.RazorpayRefundID = &refund.ID
	txn.Status = enums.RefundStatusInitiated
	txn.InitiatedAt = &initiatedAt
	ctx = s.logg.WithField(ctx, "razorpay_refund_id", refund.ID)

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		changed, err := repo.UpdateTransaction(ctx, txn.ID, enums.RefundStatusPending, map[string]any{
			"status":             enums.RefundStatusInitiated,
			"razorpay_refund_id": refund.ID,
			"initiated_at":       initiatedAt,
		})
		if err != nil {
			return err
		}
		if !changed {
			// A refund webhook already linked the row and cascaded.
			return nil
		}
		if err := s.cascade(ctx, tx, txn, enums.RefundStatusInitiated, actorID); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventRefundInitiated, txn)
	})
	if err != nil {
		s.metrics.IncRefundPersistenceFailure()
		s.logg.Error(ctx, "refund.persistence_failed_after_gateway_accept", err)
		return &InitiateResult{Transaction: txn, PersistencePending: true}, nil
	}

	s.logg.Info(s.logg.WithField(ctx, "amount", txn.RefundAmount.String()), "refund.initiated")
	return &InitiateResult{Transaction: txn}, nil
}

// gatewayRejected reports whether the gateway definitely refused the refund,
// as opposed to a transport failure or malformed reply.
func gatewayRejected(err error) bool {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeValidation, pkgerrors.CodeStateConflict:
		return true
	}
	return false
}

// recordRejection marks the pending row failed so an operator can retry.
func (s *Service) recordRejection(ctx context.Context, txn *models.RefundTransaction, cause error) {
	reason := cause.Error()
	if typed := pkgerrors.As(cause); typed != nil && typed.Message() != "" {
		reason = typed.Message()
	}
	failedAt := s.now()
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.repo.WithTx(tx).UpdateTransaction(ctx, txn.ID, enums.RefundStatusPending, map[string]any{
			"status":         enums.RefundStatusFailed,
			"failure_reason": reason,
			"failed_at":      failedAt,
		})
		return err
	})
	if err != nil {
		s.logg.Error(ctx, "refund.record_rejection_failed", err)
	}
	txn.Status = enums.RefundStatusFailed
	txn.FailureReason = &reason
	txn.FailedAt = &failedAt
	s.logg.Warn(s.logg.WithField(ctx, "reason", reason), "refund.rejected")
}

// ApplyGatewayUpdate moves the matching refund transaction forward to the
// reported status and cascades onto the order and return. Transitions that
// would move backwards are acknowledged as duplicates.
func (s *Service) ApplyGatewayUpdate(ctx context.Context, update GatewayUpdate) (enums.WebhookOutcome, error) {
	if update.RefundID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}
	if !update.Status.IsValid() || update.Status == enums.RefundStatusPending {
		return enums.WebhookOutcomeIgnored, nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"razorpay_refund_id": update.RefundID,
		"refund_status":      update.Status,
	})

	outcome := enums.WebhookOutcomeProcessed
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txn, err := s.locate(ctx, tx, update)
		if err != nil {
			return err
		}
		if txn == nil {
			outcome = enums.WebhookOutcomeNotFound
			return nil
		}
		if txn.Status == update.Status || !txn.Status.CanAdvanceTo(update.Status) {
			outcome = enums.WebhookOutcomeDuplicate
			return nil
		}

		now := s.now()
		updates := map[string]any{"status": update.Status}
		if txn.RazorpayRefundID == nil {
			updates["razorpay_refund_id"] = update.RefundID
			txn.RazorpayRefundID = &update.RefundID
		}
		switch update.Status {
		case enums.RefundStatusInitiated:
			updates["initiated_at"] = now
			txn.InitiatedAt = &now
		case enums.RefundStatusProcessed:
			updates["processed_at"] = now
			txn.ProcessedAt = &now
		case enums.RefundStatusFailed:
			reason := update.FailureReason
			if reason == "" {
				reason = "Refund failed at gateway"
			}
			updates["failed_at"] = now
			updates["failure_reason"] = reason
			txn.FailedAt = &now
			txn.FailureReason = &reason
		}

		changed, err := s.repo.WithTx(tx).UpdateTransaction(ctx, txn.ID, txn.Status, updates)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				outcome = enums.WebhookOutcomeDuplicate
				return errRefundIDTaken
			}
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "update refund transaction")
		}
		if !changed {
			outcome = enums.WebhookOutcomeDuplicate
			return nil
		}
		txn.Status = update.Status
		if err := s.cascade(ctx, tx, txn, update.Status, nil); err != nil {
			return err
		}
		return s.emit(ctx, tx, eventFor(update.Status), txn)
	})
	if errors.Is(err, errRefundIDTaken) {
		s.logg.Warn(ctx, "refund.refund_id_conflict")
		return enums.WebhookOutcomeDuplicate, nil
	}
	if err != nil {
		return "", err
	}
	switch outcome {
	case enums.WebhookOutcomeNotFound:
		s.logg.Warn(ctx, "refund.transaction_not_found")
	case enums.WebhookOutcomeProcessed:
		s.logg.Info(ctx, "refund.status_updated")
	}
	return outcome, nil
}

var errRefundIDTaken = errors.New("refund id already linked")

// locate finds the transaction by refund id, then by the correlation notes
// attached at creation. It returns nil when nothing matches.
func (s *Service) locate(ctx context.Context, tx *gorm.DB, update GatewayUpdate) (*models.RefundTransaction, error) {
	repo := s.repo.WithTx(tx)
	txn, err := repo.FindByRefundID(ctx, update.RefundID, true)
	if err == nil {
		return txn, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "lookup refund id")
	}

	if raw := strings.TrimSpace(update.Notes[NoteRefundTransactionID]); raw != "" {
		id, parseErr := uuid.Parse(raw)
		if parseErr == nil {
			txn, err = repo.FindTransaction(ctx, id, true)
			switch {
			case err == nil:
				if txn.RazorpayRefundID != nil && *txn.RazorpayRefundID != update.RefundID {
					return nil, nil
				}
				if update.PaymentID != "" && txn.RazorpayPaymentID != update.PaymentID {
					return nil, nil
				}
				return txn, nil
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "lookup refund transaction")
			}
		}
	}

	if raw := strings.TrimSpace(update.Notes[NoteReturnRequestID]); raw != "" {
		id, parseErr := uuid.Parse(raw)
		if parseErr == nil {
			txn, err = repo.FindUnlinkedPending(ctx, id)
			switch {
			case err == nil:
				if update.PaymentID != "" && txn.RazorpayPaymentID != update.PaymentID {
					return nil, nil
				}
				return txn, nil
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "lookup pending refund")
			}
		}
	}
	return nil, nil
}

// cascade moves the order payment status and return status to match the
// refund status, appending return history for every step taken.
func (s *Service) cascade(ctx context.Context, tx *gorm.DB, txn *models.RefundTransaction, status enums.RefundStatus, actorID *uuid.UUID) error {
	var (
		orderPath  []enums.PaymentStatus
		returnPath []enums.ReturnStatus
		note       string
	)
	switch status {
	case enums.RefundStatusInitiated:
		orderPath = []enums.PaymentStatus{enums.PaymentStatusPaid, enums.PaymentStatusRefundInitiated}
		returnPath = []enums.ReturnStatus{enums.ReturnStatusApproved, enums.ReturnStatusRefundInitiated}
		note = fmt.Sprintf("Refund %s initiated", txn.TransactionNumber)
	case enums.RefundStatusProcessed:
		orderPath = []enums.PaymentStatus{enums.PaymentStatusPaid, enums.PaymentStatusRefundInitiated, enums.PaymentStatusRefundCompleted}
		returnPath = []enums.ReturnStatus{enums.ReturnStatusApproved, enums.ReturnStatusRefundInitiated, enums.ReturnStatusRefundCompleted}
		note = fmt.Sprintf("Refund %s processed", txn.TransactionNumber)
	case enums.RefundStatusFailed:
		orderPath = []enums.PaymentStatus{enums.PaymentStatusRefundInitiated, enums.PaymentStatusPaid}
		returnPath = []enums.ReturnStatus{enums.ReturnStatusRefundInitiated, enums.ReturnStatusApproved}
		note = fmt.Sprintf("Refund %s failed; awaiting retry", txn.TransactionNumber)
	default:
		return nil
	}

	orderRepo := s.orders.WithTx(tx)
	order, err := orderRepo.FindByID(ctx, txn.OrderID, true)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load order for refund")
	}
	if err := walkOrder(ctx, orderRepo, order, orderPath); err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	ret, err := repo.FindReturn(ctx, txn.ReturnRequestID, true)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load return for refund")
	}
	current := ret.Status
	for i := indexOf(returnPath, current); i >= 0 && i < len(returnPath)-1; i++ {
		next := returnPath[i+1]
		changed, err := repo.UpdateReturnStatus(ctx, ret.ID, current, next)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "update return status")
		}
		if !changed {
			break
		}
		entry := &models.ReturnStatusHistory{
			ReturnRequestID: ret.ID,
			FromStatus:      current,
			ToStatus:        next,
			Note:            note,
			ChangedBy:       actorID,
		}
		if err := repo.AppendReturnHistory(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "append return history")
		}
		current = next
	}
	return nil
}

func walkOrder(ctx context.Context, repo orders.Repository, order *models.Order, path []enums.PaymentStatus) error {
	current := order.PaymentStatus
	for i := indexOf(path, current); i >= 0 && i < len(path)-1; i++ {
		next := path[i+1]
		if !payments.CanTransition(current, next) {
			return nil
		}
		changed, err := repo.TransitionPaymentStatus(ctx, order.ID, current, next)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "update order payment status")
		}
		if !changed {
			return nil
		}
		current = next
	}
	return nil
}

func indexOf[T comparable](path []T, value T) int {
	for i, v := range path {
		if v == value {
			return i
		}
	}
	return -1
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, txn *models.RefundTransaction) error {
	event := payloads.RefundEvent{
		RefundTransactionID: txn.ID,
		TransactionNumber:   txn.TransactionNumber,
		ReturnRequestID:     txn.ReturnRequestID,
		OrderID:             txn.OrderID,
		RazorpayPaymentID:   txn.RazorpayPaymentID,
		Status:              txn.Status,
		Amount:              txn.RefundAmount,
	}
	if txn.RazorpayRefundID != nil {
		event.RazorpayRefundID = *txn.RazorpayRefundID
	}
	if txn.FailureReason != nil {
		event.FailureReason = *txn.FailureReason
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateRefundTransaction,
		AggregateID:   txn.ID,
		Data:          event,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "emit refund event")
	}
	return nil
}

func eventFor(status enums.RefundStatus) enums.OutboxEventType {
	switch status {
	case enums.RefundStatusProcessed:
		return enums.EventRefundProcessed
	case enums.RefundStatusFailed:
		return enums.EventRefundFailed
	default:
		return enums.EventRefundInitiated
	}
}

func resolvePaymentID(order *models.Order, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	recorded := ""
	if order.RazorpayPaymentID != nil {
		recorded = *order.RazorpayPaymentID
	}
	switch {
	case requested == "" && recorded == "":
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order has no captured payment to refund")
	case requested == "":
		return recorded, nil
	case recorded != "" && requested != recorded:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment id does not match the order's payment")
	default:
		return requested, nil
	}
}

func validateAmount(amount, total decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be greater than zero")
	}
	if amount.GreaterThan(total) {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds the order total")
	}
	if !amount.Equal(amount.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund amount has more than two decimal places")
	}
	return nil
}

// StatusFromGateway maps a gateway refund status onto a local status.
func StatusFromGateway(status string) (enums.RefundStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "created", "pending":
		return enums.RefundStatusInitiated, true
	case "processed":
		return enums.RefundStatusProcessed, true
	case "failed":
		return enums.RefundStatusFailed, true
	default:
		return "", false
	}
}

func transactionNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("RFD-%s-%s", at.Format("20060102"), suffix)
}
