package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rzp "github.com/razorpay/razorpay-go"

	"github.com/angelmondragon/storefront-payments/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

const (
	testKeyPrefix = "rzp_test_"
	liveKeyPrefix = "rzp_live_"
)

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")
)

// InsufficientBalanceMessage replaces the gateway's raw text when the
// merchant account cannot cover a refund.
const InsufficientBalanceMessage = "Refund could not be processed: your Razorpay account balance is insufficient. " +
	"Add funds to the account or enable refunds from the settlement balance, then retry the refund."

// RefundRequest describes a refund to create against a captured payment.
type RefundRequest struct {
	PaymentID   string
	AmountMinor int64
	Notes       map[string]string
}

// Refund is the subset of the gateway refund entity the engine consumes.
type Refund struct {
	ID          string
	PaymentID   string
	AmountMinor int64
	Status      string
	Notes       map[string]string
}

// Refunder is the gateway surface used by the refund orchestrator.
type Refunder interface {
	CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error)
	FetchRefund(ctx context.Context, refundID string) (*Refund, error)
}

// paymentAPI and refundAPI mirror the SDK resources the client calls.
type paymentAPI interface {
	Refund(paymentID string, amount int, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type refundAPI interface {
	Fetch(refundID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Client wraps the Razorpay SDK and maps its responses onto engine types.
type Client struct {
	payments paymentAPI
	refunds  refundAPI
	mode     string
	logg     *logger.Logger
}

// NewClient builds a Razorpay client from configuration.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}
	if logg == nil {
		logg = logger.Nop()
	}

	sdk := rzp.NewClient(keyID, keySecret)
	mode := modeForKey(keyID)
	logg.Info(ctx, fmt.Sprintf("razorpay client initialized (%s)", mode))
	return &Client{
		payments: sdk.Payment,
		refunds:  sdk.Refund,
		mode:     mode,
		logg:     logg,
	}, nil
}

// Mode reports "test", "live" or "unknown" from the key id prefix.
func (c *Client) Mode() string {
	if c == nil {
		return ""
	}
	return c.mode
}

func (c *Client) CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	if strings.TrimSpace(req.PaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if req.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	data := map[string]interface{}{"speed": "normal"}
	if len(req.Notes) > 0 {
		notes := make(map[string]interface{}, len(req.Notes))
		for k, v := range req.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	body, err := c.payments.Refund(req.PaymentID, int(req.AmountMinor), data, nil)
	if err != nil {
		mapped := MapError(err)
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"razorpay_payment_id": req.PaymentID,
			"amount_minor":        req.AmountMinor,
			"error_code":          pkgerrors.CodeOf(mapped),
		}), "razorpay.refund_rejected")
		return nil, mapped
	}
	refund := refundFromMap(body)
	if refund.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay refund response missing id")
	}
	return refund, nil
}

func (c *Client) FetchRefund(ctx context.Context, refundID string) (*Refund, error) {
	if strings.TrimSpace(refundID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}
	body, err := c.refunds.Fetch(refundID, nil, nil)
	if err != nil {
		return nil, MapError(err)
	}
	return refundFromMap(body), nil
}

// MapError translates an SDK error into a typed error. Insufficient balance
// becomes an actionable state conflict; transport failures are retryable
// dependency errors; any other rejection keeps the gateway's message.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(err.Error())
	lower := strings.ToLower(msg)
	switch {
	case IsInsufficientBalance(msg):
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, InsufficientBalanceMessage)
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "eof"),
		strings.Contains(lower, "server error"):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "razorpay unavailable")
	default:
		if msg == "" {
			msg = "razorpay rejected the request"
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, msg)
	}
}

// IsInsufficientBalance reports whether a gateway message describes a
// merchant balance too low to cover the refund.
func IsInsufficientBalance(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "insufficient") &&
		(strings.Contains(lower, "balance") || strings.Contains(lower, "fund"))
}

func modeForKey(keyID string) string {
	switch {
	case strings.HasPrefix(keyID, testKeyPrefix):
		return "test"
	case strings.HasPrefix(keyID, liveKeyPrefix):
		return "live"
	default:
		return "unknown"
	}
}

func refundFromMap(body map[string]interface{}) *Refund {
	refund := &Refund{
		ID:        stringField(body, "id"),
		PaymentID: stringField(body, "payment_id"),
		Status:    stringField(body, "status"),
		Notes:     map[string]string{},
	}
	switch amount := body["amount"].(type) {
	case float64:
		refund.AmountMinor = int64(amount)
	case int:
		refund.AmountMinor = int64(amount)
	case int64:
		refund.AmountMinor = amount
	}
	if notes, ok := body["notes"].(map[string]interface{}); ok {
		for k, v := range notes {
			if s, ok := v.(string); ok {
				refund.Notes[k] = s
			}
		}
	}
	return refund
}

func stringField(body map[string]interface{}, key string) string {
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}
