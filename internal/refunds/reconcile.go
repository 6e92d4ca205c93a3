package refunds

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-payments/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
)

// ReconcileSummary reports one reconciliation pass.
type ReconcileSummary struct {
	Checked      int
	Updated      int
	StuckPending int
}

// ReconcileStale fetches the gateway status of refunds that have sat in
// initiated since before staleBefore and applies any forward transition.
// Pending rows without a gateway refund id are only reported; they may be
// refunds the gateway accepted whose local update failed, so they are never
// issued again.
func (s *Service) ReconcileStale(ctx context.Context, staleBefore time.Time, limit int) (ReconcileSummary, error) {
	var summary ReconcileSummary

	initiated, err := s.repo.ListByStatusBefore(ctx, enums.RefundStatusInitiated, staleBefore, limit)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list initiated refunds")
	}

	var errs error
	for _, txn := range initiated {
		if txn.RazorpayRefundID == nil {
			continue
		}
		summary.Checked++
		refund, err := s.gateway.FetchRefund(ctx, *txn.RazorpayRefundID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		status, ok := StatusFromGateway(refund.Status)
		if !ok || status == enums.RefundStatusInitiated {
			continue
		}
		outcome, err := s.ApplyGatewayUpdate(ctx, GatewayUpdate{
			RefundID:  *txn.RazorpayRefundID,
			PaymentID: txn.RazorpayPaymentID,
			Status:    status,
			Notes:     refund.Notes,
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if outcome == enums.WebhookOutcomeProcessed {
			summary.Updated++
		}
	}

	pending, err := s.repo.ListByStatusBefore(ctx, enums.RefundStatusPending, staleBefore, limit)
	if err != nil {
		return summary, multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list pending refunds"))
	}
	for _, txn := range pending {
		if txn.RazorpayRefundID != nil {
			continue
		}
		summary.StuckPending++
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"refund_transaction_id": txn.ID.String(),
			"transaction_number":    txn.TransactionNumber,
			"razorpay_payment_id":   txn.RazorpayPaymentID,
		}), "refund.stuck_pending_requires_manual_reconciliation", nil)
	}
	return summary, errs
}
