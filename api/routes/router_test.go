package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-payments/api/controllers"
	internalrefunds "github.com/angelmondragon/storefront-payments/internal/refunds"
	razorpaywebhook "github.com/angelmondragon/storefront-payments/internal/webhooks/razorpay"
	pkgAuth "github.com/angelmondragon/storefront-payments/pkg/auth"
	"github.com/angelmondragon/storefront-payments/pkg/config"
	"github.com/angelmondragon/storefront-payments/pkg/db/models"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
)

const webhookSecret = "whsec_router"

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubWebhookService struct{}

func (stubWebhookService) HandleEvent(_ context.Context, evt razorpaywebhook.Event) (enums.WebhookOutcome, error) {
	if evt.Kind == razorpaywebhook.KindUnhandled {
		return enums.WebhookOutcomeIgnored, nil
	}
	return enums.WebhookOutcomeProcessed, nil
}

type stubRefundService struct {
	mu    sync.Mutex
	calls int
}

func (s *stubRefundService) Initiate(_ context.Context, input internalrefunds.InitiateInput) (*internalrefunds.InitiateResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return &internalrefunds.InitiateResult{Transaction: &models.RefundTransaction{
		ID:              uuid.New(),
		ReturnRequestID: input.ReturnRequestID,
		Status:          enums.RefundStatusInitiated,
		RefundAmount:    decimal.RequireFromString("10"),
	}}, nil
}

func (s *stubRefundService) Retry(context.Context, uuid.UUID, *uuid.UUID) (*internalrefunds.InitiateResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubRefundService) List(context.Context, uuid.UUID) ([]models.RefundTransaction, error) {
	return []models.RefundTransaction{}, nil
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprintf("%v", value)
	return nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func testConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Env: "test"},
		JWT:      config.JWTConfig{Secret: "jwt-secret", Issuer: "storefront", ExpirationMinutes: 30},
		Razorpay: config.RazorpayConfig{WebhookSecret: webhookSecret},
		Webhook:  config.WebhookConfig{MaxBodyBytes: 1 << 16},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *stubRefundService) {
	t.Helper()
	store := &memoryStore{data: map[string]string{}}
	guard, err := razorpaywebhook.NewIdempotencyGuard(store, time.Hour, razorpaywebhook.Scope)
	require.NoError(t, err)
	refunds := &stubRefundService{}
	router := NewRouter(testConfig(), nil, Dependencies{
		ReadinessChecks: map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{}},
		ResponseStore:   store,
		WebhookService:  stubWebhookService{},
		WebhookGuard:    guard,
		RefundService:   refunds,
	})
	return router, refunds
}

func bearer(t *testing.T, role enums.StaffRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testConfig().JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t)
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestWebhookRoute(t *testing.T) {
	router, _ := newTestRouter(t)
	body := `{"event":"payment.authorized","payload":{}}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", strings.NewReader(body))
	req.Header.Set("X-Signature", razorpaywebhook.Sign(webhookSecret, []byte(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true,"outcome":"ignored","event":"payment.authorized"}`, rec.Body.String())
}

func TestWebhookRouteRejectsUnsignedBody(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookPreflightAllowsAnyOrigin(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/webhooks/razorpay", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminRefundRoutesRequireAdmin(t *testing.T) {
	router, refunds := newTestRouter(t)
	path := "/api/admin/v1/returns/" + uuid.NewString() + "/refund"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", bearer(t, enums.StaffRoleSupport))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, refunds.calls)
}

func TestAdminRefundInitiateIsIdempotent(t *testing.T) {
	router, refunds := newTestRouter(t)
	path := "/api/admin/v1/returns/" + uuid.NewString() + "/refund"
	token := bearer(t, enums.StaffRoleAdmin)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"amount":"10.00"}`))
		req.Header.Set("Authorization", token)
		req.Header.Set("Idempotency-Key", "refund-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	second := send()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, refunds.calls)
}

func TestAdminRefundListDoesNotNeedIdempotencyKey(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/returns/"+uuid.NewString()+"/refunds", nil)
	req.Header.Set("Authorization", bearer(t, enums.StaffRoleAdmin))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
