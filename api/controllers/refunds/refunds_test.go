package refunds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-payments/api/middleware"
	internalrefunds "github.com/angelmondragon/storefront-payments/internal/refunds"
	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
	"github.com/angelmondragon/storefront-payments/pkg/razorpay"
)

type stubRefundService struct {
	initiate func(ctx context.Context, input internalrefunds.InitiateInput) (*internalrefunds.InitiateResult, error)
	retry    func(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*internalrefunds.InitiateResult, error)
	list     func(ctx context.Context, returnID uuid.UUID) ([]models.RefundTransaction, error)
}

func (s *stubRefundService) Initiate(ctx context.Context, input internalrefunds.InitiateInput) (*internalrefunds.InitiateResult, error) {
	return s.initiate(ctx, input)
}

func (s *stubRefundService) Retry(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*internalrefunds.InitiateResult, error) {
	return s.retry(ctx, id, actor)
}

func (s *stubRefundService) List(ctx context.Context, returnID uuid.UUID) ([]models.RefundTransaction, error) {
	return s.list(ctx, returnID)
}

func sampleTransaction(returnID uuid.UUID) *models.RefundTransaction {
	refundID := "rfnd_1"
	return &models.RefundTransaction{
		ID:                uuid.New(),
		TransactionNumber: "RFD-20261016-ABCDEF12",
		ReturnRequestID:   returnID,
		OrderID:           uuid.New(),
		RazorpayPaymentID: "pay_1",
		RazorpayRefundID:  &refundID,
		Status:            enums.RefundStatusInitiated,
		OriginalAmount:    decimal.RequireFromString("999"),
		RefundAmount:      decimal.RequireFromString("499.5"),
		DeductedAmount:    decimal.RequireFromString("499.5"),
	}
}

func routed(method, target string, body string, params map[string]string, userID string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	if userID != "" {
		ctx = middleware.WithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}

type initiationBody struct {
	Data struct {
		Transaction struct {
			ID           string `json:"id"`
			Status       string `json:"status"`
			RefundAmount string `json:"refund_amount"`
		} `json:"transaction"`
		PersistencePending bool `json:"persistence_pending"`
	} `json:"data"`
}

func TestInitiateCreated(t *testing.T) {
	returnID := uuid.New()
	actor := uuid.New()
	var captured internalrefunds.InitiateInput
	svc := &stubRefundService{initiate: func(_ context.Context, input internalrefunds.InitiateInput) (*internalrefunds.InitiateResult, error) {
		captured = input
		return &internalrefunds.InitiateResult{Transaction: sampleTransaction(returnID)}, nil
	}}

	req := routed(http.MethodPost, "/", `{"amount":"499.50","payment_id":" pay_1 "}`, map[string]string{"returnId": returnID.String()}, actor.String())
	rec := httptest.NewRecorder()
	Initiate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, returnID, captured.ReturnRequestID)
	require.NotNil(t, captured.Amount)
	assert.True(t, captured.Amount.Equal(decimal.RequireFromString("499.50")))
	assert.Equal(t, "pay_1", captured.PaymentID)
	require.NotNil(t, captured.ActorID)
	assert.Equal(t, actor, *captured.ActorID)

	var body initiationBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "initiated", body.Data.Transaction.Status)
	assert.Equal(t, "499.50", body.Data.Transaction.RefundAmount)
	assert.False(t, body.Data.PersistencePending)
}

func TestInitiateWithoutBodyUsesDefaults(t *testing.T) {
	returnID := uuid.New()
	var captured internalrefunds.InitiateInput
	svc := &stubRefundService{initiate: func(_ context.Context, input internalrefunds.InitiateInput) (*internalrefunds.InitiateResult, error) {
		captured = input
		return &internalrefunds.InitiateResult{Transaction: sampleTransaction(returnID)}, nil
	}}

	req := routed(http.MethodPost, "/", "", map[string]string{"returnId": returnID.String()}, "")
	rec := httptest.NewRecorder()
	Initiate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Nil(t, captured.Amount)
	assert.Empty(t, captured.PaymentID)
	assert.Nil(t, captured.ActorID)
}

func TestInitiateAcceptedWhenPersistencePending(t *testing.T) {
	returnID := uuid.New()
	svc := &stubRefundService{initiate: func(context.Context, internalrefunds.InitiateInput) (*internalrefunds.InitiateResult, error) {
		return &internalrefunds.InitiateResult{Transaction: sampleTransaction(returnID), PersistencePending: true}, nil
	}}

	req := routed(http.MethodPost, "/", `{}`, map[string]string{"returnId": returnID.String()}, "")
	rec := httptest.NewRecorder()
	Initiate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body initiationBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.PersistencePending)
}

func TestInitiateRejectsBadInput(t *testing.T) {
	svc := &stubRefundService{initiate: func(context.Context, internalrefunds.InitiateInput) (*internalrefunds.InitiateResult, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}

	cases := []struct {
		name   string
		param  string
		body   string
		status int
	}{
		{"bad return id", "not-a-uuid", `{}`, http.StatusBadRequest},
		{"non numeric amount", uuid.NewString(), `{"amount":"ten"}`, http.StatusBadRequest},
		{"unknown field", uuid.NewString(), `{"currency":"INR"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := routed(http.MethodPost, "/", tc.body, map[string]string{"returnId": tc.param}, "")
			rec := httptest.NewRecorder()
			Initiate(svc, nil).ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestInitiateSurfacesInsufficientBalance(t *testing.T) {
	svc := &stubRefundService{initiate: func(context.Context, internalrefunds.InitiateInput) (*internalrefunds.InitiateResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, razorpay.InsufficientBalanceMessage)
	}}

	req := routed(http.MethodPost, "/", `{}`, map[string]string{"returnId": uuid.NewString()}, "")
	rec := httptest.NewRecorder()
	Initiate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeStateConflict), payload.Error.Code)
	assert.Equal(t, razorpay.InsufficientBalanceMessage, payload.Error.Message)
}

func TestRetry(t *testing.T) {
	failedID := uuid.New()
	var gotID uuid.UUID
	svc := &stubRefundService{retry: func(_ context.Context, id uuid.UUID, _ *uuid.UUID) (*internalrefunds.InitiateResult, error) {
		gotID = id
		txn := sampleTransaction(uuid.New())
		txn.RetryOfTransactionID = &failedID
		return &internalrefunds.InitiateResult{Transaction: txn}, nil
	}}

	req := routed(http.MethodPost, "/", "", map[string]string{"transactionId": failedID.String()}, "")
	rec := httptest.NewRecorder()
	Retry(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, failedID, gotID)
	assert.Contains(t, rec.Body.String(), failedID.String())
}

func TestRetryNotFound(t *testing.T) {
	svc := &stubRefundService{retry: func(context.Context, uuid.UUID, *uuid.UUID) (*internalrefunds.InitiateResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund transaction not found")
	}}

	req := routed(http.MethodPost, "/", "", map[string]string{"transactionId": uuid.NewString()}, "")
	rec := httptest.NewRecorder()
	Retry(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestList(t *testing.T) {
	returnID := uuid.New()
	svc := &stubRefundService{list: func(_ context.Context, id uuid.UUID) ([]models.RefundTransaction, error) {
		require.Equal(t, returnID, id)
		return []models.RefundTransaction{*sampleTransaction(returnID), *sampleTransaction(returnID)}, nil
	}}

	req := routed(http.MethodGet, "/", "", map[string]string{"returnId": returnID.String()}, "")
	rec := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Data []struct {
			ReturnRequestID string `json:"return_request_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Data, 2)
	assert.Equal(t, returnID.String(), payload.Data[0].ReturnRequestID)
}

func TestNilServiceIsInternalError(t *testing.T) {
	req := routed(http.MethodGet, "/", "", map[string]string{"returnId": uuid.NewString()}, "")
	rec := httptest.NewRecorder()
	List(nil, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
