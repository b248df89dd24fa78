package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/driveaway-backend/api/responses"
	"github.com/angelmondragon/driveaway-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/driveaway-backend/pkg/stripe"
)

const maxWebhookBytes = 1 << 20

type paymentEventHandler interface {
	HandleEvent(ctx context.Context, event *pkgstripe.PaymentEvent) (orders.Outcome, error)
}

type signingSecretSource interface {
	SigningSecret() string
}

// StripeWebhook verifies the Stripe signature before reading anything from
// the payload, then reconciles the payment event. Processing failures answer
// 5xx so Stripe redelivers; duplicates and unknown references answer 200.
func StripeWebhook(svc paymentEventHandler, secrets signingSecretSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || secrets == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		event, err := pkgstripe.ParseEvent(payload, r.Header.Get("Stripe-Signature"), secrets.SigningSecret())
		if err != nil {
			var sigErr *pkgstripe.SignatureError
			if errors.As(err, &sigErr) {
				if logg != nil {
					logg.Error(ctx, "stripe.webhook.signature_rejected", err)
				}
				responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid stripe signature"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed stripe event"))
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"stripe_event_id":   event.EventID,
				"stripe_event_type": event.Type,
			})
		}

		outcome, err := svc.HandleEvent(ctx, event)
		if err != nil {
			if !isRetryable(err) {
				err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "process stripe event")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"received": true,
			"outcome":  outcome,
		})
	}
}

// isRetryable keeps 5xx codes as they are. Anything that would map to 4xx
// after a verified signature is a processing fault on our side and is
// promoted to 500 so Stripe keeps retrying.
func isRetryable(err error) bool {
	return pkgerrors.MetadataFor(pkgerrors.CodeOf(err)).Retryable
}
