package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-payments/api/responses"
	razorpaywebhook "github.com/angelmondragon/storefront-payments/internal/webhooks/razorpay"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
	"github.com/angelmondragon/storefront-payments/pkg/types"
)

const (
	signatureHeader        = "X-Signature"
	gatewaySignatureHeader = "X-Razorpay-Signature"
	eventIDHeader          = "X-Razorpay-Event-Id"

	defaultMaxBodyBytes int64 = 1 << 20
)

type RazorpayWebhookService interface {
	HandleEvent(ctx context.Context, evt razorpaywebhook.Event) (enums.WebhookOutcome, error)
}

type RazorpayWebhookGuard interface {
	Claim(ctx context.Context, deliveryID string) (razorpaywebhook.DeliveryState, error)
	Complete(ctx context.Context, deliveryID string) error
	Release(ctx context.Context, deliveryID string) error
}

// RazorpayWebhookOptions carries the per-deployment webhook settings.
type RazorpayWebhookOptions struct {
	Secret       string
	MaxBodyBytes int64
}

// RazorpayWebhook verifies, classifies and applies payment gateway events.
// Every event that is processed, recognised as a redelivery, or not acted on
// is acknowledged with 200 so the gateway stops retrying it. A delivery that
// another worker is still applying gets 409 and is retried later.
func RazorpayWebhook(svc RazorpayWebhookService, guard RazorpayWebhookGuard, opts RazorpayWebhookOptions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		limit := opts.MaxBodyBytes
		if limit <= 0 {
			limit = defaultMaxBodyBytes
		}
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request body too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(signatureHeader))
		if signature == "" {
			signature = strings.TrimSpace(r.Header.Get(gatewaySignatureHeader))
		}
		if err := razorpaywebhook.Verify(opts.Secret, payload, signature); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		event, err := razorpaywebhook.Classify(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		deliveryID := razorpaywebhook.DeliveryID(strings.TrimSpace(r.Header.Get(eventIDHeader)), payload)
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"webhook_event": event.Name,
				"delivery_id":   deliveryID,
			})
		}

		state, err := guard.Claim(ctx, deliveryID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "check webhook idempotency"))
			return
		}
		switch state {
		case razorpaywebhook.DeliveryDone:
			if logg != nil {
				logg.Info(ctx, "webhook.redelivery_skipped")
			}
			writeAck(w, enums.WebhookOutcomeDuplicate, event.Name)
			return
		case razorpaywebhook.DeliveryInFlight:
			// Not acknowledged: the first attempt may still fail.
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "delivery is already being processed"))
			return
		}

		outcome, err := svc.HandleEvent(ctx, event)
		if err != nil {
			if relErr := guard.Release(context.WithoutCancel(ctx), deliveryID); relErr != nil && logg != nil {
				logg.Error(ctx, "webhook.idempotency_release_failed", relErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := guard.Complete(context.WithoutCancel(ctx), deliveryID); err != nil && logg != nil {
			logg.Error(ctx, "webhook.idempotency_complete_failed", err)
		}

		if logg != nil {
			ctx = logg.WithField(ctx, "outcome", outcome.String())
			logg.Info(ctx, "webhook.acknowledged")
		}
		writeAck(w, outcome, event.Name)
	}
}

func writeAck(w http.ResponseWriter, outcome enums.WebhookOutcome, event string) {
	responses.WriteAck(w, types.WebhookAck{
		Received: true,
		Outcome:  outcome.String(),
		Event:    event,
	})
}
