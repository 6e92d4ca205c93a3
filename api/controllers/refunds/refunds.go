package refunds

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-payments/api/middleware"
	"github.com/angelmondragon/storefront-payments/api/responses"
	"github.com/angelmondragon/storefront-payments/api/validators"
	internalrefunds "github.com/angelmondragon/storefront-payments/internal/refunds"
	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
	"github.com/angelmondragon/storefront-payments/pkg/types"
)

const maxPaymentIDLength = 64

// Service is the refund workflow the admin endpoints drive.
type Service interface {
	Initiate(ctx context.Context, input internalrefunds.InitiateInput) (*internalrefunds.InitiateResult, error)
	Retry(ctx context.Context, transactionID uuid.UUID, actorID *uuid.UUID) (*internalrefunds.InitiateResult, error)
	List(ctx context.Context, returnID uuid.UUID) ([]models.RefundTransaction, error)
}

type initiateRequest struct {
	Amount    string `json:"amount" validate:"omitempty,numeric"`
	PaymentID string `json:"payment_id" validate:"omitempty,max=64"`
}

// Initiate refunds an approved return. The amount defaults to the return's
// final refund amount and the payment defaults to the order's captured one.
func Initiate(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}

		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req initiateRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalrefunds.InitiateInput{
			ReturnRequestID: returnID,
			PaymentID:       validators.SanitizeString(req.PaymentID, maxPaymentIDLength),
			ActorID:         actorFromRequest(r),
		}
		if raw := strings.TrimSpace(req.Amount); raw != "" {
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "amount must be a decimal").WithDetails(map[string]string{"amount": "is invalid"}))
				return
			}
			input.Amount = &amount
		}

		result, err := svc.Initiate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeInitiation(w, result)
	}
}

// Retry issues a new refund for a failed refund transaction.
func Retry(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}

		transactionID, err := validators.ParseUUIDParam(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Retry(r.Context(), transactionID, actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeInitiation(w, result)
	}
}

// List returns every refund attempt recorded for a return.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}

		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), returnID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]types.RefundTransaction, 0, len(rows))
		for i := range rows {
			out = append(out, toDTO(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func writeInitiation(w http.ResponseWriter, result *internalrefunds.InitiateResult) {
	status := http.StatusCreated
	if result.PersistencePending {
		status = http.StatusAccepted
	}
	responses.WriteSuccessStatus(w, status, types.RefundInitiation{
		Transaction:        toDTO(result.Transaction),
		PersistencePending: result.PersistencePending,
	})
}

func actorFromRequest(r *http.Request) *uuid.UUID {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func toDTO(txn *models.RefundTransaction) types.RefundTransaction {
	dto := types.RefundTransaction{
		ID:                txn.ID.String(),
		TransactionNumber: txn.TransactionNumber,
		ReturnRequestID:   txn.ReturnRequestID.String(),
		OrderID:           txn.OrderID.String(),
		RazorpayPaymentID: txn.RazorpayPaymentID,
		RazorpayRefundID:  txn.RazorpayRefundID,
		Status:            string(txn.Status),
		OriginalAmount:    txn.OriginalAmount.StringFixed(2),
		RefundAmount:      txn.RefundAmount.StringFixed(2),
		DeductedAmount:    txn.DeductedAmount.StringFixed(2),
		FailureReason:     txn.FailureReason,
		InitiatedAt:       txn.InitiatedAt,
		ProcessedAt:       txn.ProcessedAt,
		FailedAt:          txn.FailedAt,
		CreatedAt:         txn.CreatedAt,
	}
	if txn.RetryOfTransactionID != nil {
		retryOf := txn.RetryOfTransactionID.String()
		dto.RetryOfTransactionID = &retryOf
	}
	return dto
}
