package razorpaywebhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/storefront-payments/internal/payments"
	"github.com/angelmondragon/storefront-payments/internal/refunds"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
)

// Gateway event names this service acts on.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
	EventRefundCreated   = "refund.created"
	EventRefundProcessed = "refund.processed"
	EventRefundFailed    = "refund.failed"
)

// Kind groups gateway events by the handler that applies them.
type Kind string

const (
	KindCapture   Kind = "capture"
	KindFailure   Kind = "failure"
	KindRefund    Kind = "refund"
	KindUnhandled Kind = "unhandled"
)

// Event is a classified webhook. Exactly one of Capture, Failure or Refund
// is set, matching Kind; none is set for KindUnhandled.
type Event struct {
	Name    string
	Kind    Kind
	Capture *payments.CaptureInput
	Failure *payments.FailureInput
	Refund  *refunds.GatewayUpdate
}

// Notes is the gateway's free-form key/value map. The gateway sends an empty
// JSON array instead of an empty object, and values may be non-strings.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || trimmed[0] == '[' {
		*n = Notes{}
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	out := make(Notes, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	*n = out
	return nil
}

// envelope keeps the payload raw: entities are only decoded for the events
// that need them, so unhandled events with other shapes still classify.
type envelope struct {
	Event   string          `json:"event" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

type paymentEntity struct {
	ID               string `json:"id" validate:"required"`
	OrderID          string `json:"order_id" validate:"required"`
	Amount           int64  `json:"amount"`
	Status           string `json:"status"`
	ErrorDescription string `json:"error_description"`
	Notes            Notes  `json:"notes"`
}

type orderEntity struct {
	ID         string `json:"id"`
	AmountPaid int64  `json:"amount_paid"`
	Status     string `json:"status"`
}

type refundEntity struct {
	ID               string `json:"id" validate:"required"`
	PaymentID        string `json:"payment_id"`
	Amount           int64  `json:"amount"`
	Status           string `json:"status"`
	ErrorDescription string `json:"error_description"`
	Notes            Notes  `json:"notes"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Classify decodes a verified webhook body into an Event. Unknown event names
// classify as KindUnhandled; known events missing required fields are
// validation errors.
func Classify(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook body")
	}
	if err := validate.Struct(&env); err != nil {
		return Event{}, validationError("webhook", err)
	}

	evt := Event{Name: env.Event}
	switch env.Event {
	case EventPaymentCaptured, EventOrderPaid:
		payment, _, err := decodePayment(env)
		if err != nil {
			return Event{}, err
		}
		capture := &payments.CaptureInput{
			GatewayOrderID: payment.OrderID,
			PaymentID:      payment.ID,
			AmountMinor:    payment.Amount,
		}
		if env.Event == EventOrderPaid {
			var order orderEntity
			found, err := decodeEntity(env, "order", &order)
			if err != nil {
				return Event{}, err
			}
			if found {
				if order.ID != "" {
					capture.GatewayOrderID = order.ID
				}
				capture.AmountMinor = order.AmountPaid
			}
		}
		evt.Kind = KindCapture
		evt.Capture = capture
	case EventPaymentFailed:
		payment, raw, err := decodePayment(env)
		if err != nil {
			return Event{}, err
		}
		evt.Kind = KindFailure
		evt.Failure = &payments.FailureInput{
			GatewayOrderID: payment.OrderID,
			PaymentID:      payment.ID,
			Description:    payment.ErrorDescription,
			Payment:        raw,
		}
	case EventRefundCreated, EventRefundProcessed, EventRefundFailed:
		var refund refundEntity
		found, err := decodeEntity(env, "refund", &refund)
		if err != nil {
			return Event{}, err
		}
		if !found {
			return Event{}, pkgerrors.New(pkgerrors.CodeValidation, "refund entity missing").
				WithDetails(map[string]string{"payload.refund": "is required"})
		}
		if err := validate.Struct(&refund); err != nil {
			return Event{}, validationError("refund", err)
		}
		evt.Kind = KindRefund
		evt.Refund = &refunds.GatewayUpdate{
			RefundID:      refund.ID,
			PaymentID:     refund.PaymentID,
			Status:        refundStatusFor(env.Event),
			Notes:         refund.Notes,
			FailureReason: refund.ErrorDescription,
		}
	default:
		evt.Kind = KindUnhandled
	}
	return evt, nil
}

// entityRaw returns payload.<name>.entity, or nil when it is absent.
func entityRaw(env envelope, name string) (json.RawMessage, error) {
	if len(env.Payload) == 0 {
		return nil, nil
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload")
	}
	section, ok := payload[name]
	if !ok {
		return nil, nil
	}
	var wrapper struct {
		Entity json.RawMessage `json:"entity"`
	}
	if err := json.Unmarshal(section, &wrapper); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed "+name+" payload")
	}
	raw := wrapper.Entity
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	return raw, nil
}

func decodeEntity(env envelope, name string, out any) (bool, error) {
	raw, err := entityRaw(env, name)
	if err != nil || raw == nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed "+name+" entity")
	}
	return true, nil
}

func decodePayment(env envelope) (*paymentEntity, json.RawMessage, error) {
	raw, err := entityRaw(env, "payment")
	if err != nil {
		return nil, nil, err
	}
	if raw == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "payment entity missing").
			WithDetails(map[string]string{"payload.payment": "is required"})
	}
	var payment paymentEntity
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed payment entity")
	}
	if err := validate.Struct(&payment); err != nil {
		return nil, nil, validationError("payment", err)
	}
	return &payment, raw, nil
}

func refundStatusFor(event string) enums.RefundStatus {
	switch event {
	case EventRefundProcessed:
		return enums.RefundStatusProcessed
	case EventRefundFailed:
		return enums.RefundStatusFailed
	default:
		return enums.RefundStatusInitiated
	}
}

func validationError(entity string, err error) error {
	details := map[string]string{}
	if errs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range errs {
			details[entity+"."+fe.Field()] = "is required"
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "webhook missing required fields").WithDetails(details)
}
