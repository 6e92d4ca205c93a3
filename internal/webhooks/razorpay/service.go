package razorpaywebhook

import (
	"context"

	"github.com/angelmondragon/storefront-payments/internal/payments"
	"github.com/angelmondragon/storefront-payments/internal/refunds"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
	"github.com/angelmondragon/storefront-payments/pkg/metrics"
)

type paymentHandler interface {
	HandleCaptured(ctx context.Context, input payments.CaptureInput) (enums.WebhookOutcome, error)
	HandleFailed(ctx context.Context, input payments.FailureInput) (enums.WebhookOutcome, error)
}

type refundHandler interface {
	ApplyGatewayUpdate(ctx context.Context, update refunds.GatewayUpdate) (enums.WebhookOutcome, error)
}

type ServiceParams struct {
	Payments paymentHandler
	Refunds  refundHandler
	Metrics  *metrics.PaymentMetrics
	Logger   *logger.Logger
}

// Service routes classified gateway events to the payment and refund
// handlers. Payment failures never touch inventory; refund events never
// touch the payment state machine directly.
type Service struct {
	payments paymentHandler
	refunds  refundHandler
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments handler required")
	}
	if params.Refunds == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refunds handler required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		payments: params.Payments,
		refunds:  params.Refunds,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

// HandleEvent applies evt and reports its outcome. Only storage or
// configuration failures are returned as errors.
func (s *Service) HandleEvent(ctx context.Context, evt Event) (enums.WebhookOutcome, error) {
	ctx = s.logg.WithField(ctx, "webhook_event", evt.Name)

	var (
		outcome enums.WebhookOutcome
		err     error
	)
	switch evt.Kind {
	case KindCapture:
		if evt.Capture == nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "capture payload missing")
		}
		outcome, err = s.payments.HandleCaptured(ctx, *evt.Capture)
	case KindFailure:
		if evt.Failure == nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "failure payload missing")
		}
		outcome, err = s.payments.HandleFailed(ctx, *evt.Failure)
	case KindRefund:
		if evt.Refund == nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "refund payload missing")
		}
		outcome, err = s.refunds.ApplyGatewayUpdate(ctx, *evt.Refund)
	default:
		outcome = enums.WebhookOutcomeIgnored
		s.logg.Info(ctx, "webhook.event_unhandled")
	}
	if err != nil {
		s.metrics.ObserveWebhook(string(evt.Kind), "error")
		return "", err
	}
	s.metrics.ObserveWebhook(string(evt.Kind), outcome.String())
	return outcome, nil
}
