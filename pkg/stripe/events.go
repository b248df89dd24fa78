package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// PaymentEventKind is the reconciliation action a webhook event maps to.
type PaymentEventKind string

const (
	PaymentSucceeded PaymentEventKind = "payment_succeeded"
	PaymentFailed    PaymentEventKind = "payment_failed"
	// PaymentIgnored marks events this service does not act on.
	PaymentIgnored PaymentEventKind = "ignored"
)

// PaymentEvent is the typed view of a verified webhook.
type PaymentEvent struct {
	EventID         string
	Type            string
	Kind            PaymentEventKind
	PaymentIntentID string
	ChargeID        string
	FailureReason   string
}

// SignatureError is returned when the payload does not verify.
type SignatureError struct {
	cause error
}

func (e *SignatureError) Error() string { return "stripe signature verification failed: " + e.cause.Error() }
func (e *SignatureError) Unwrap() error { return e.cause }

// ParseEvent verifies the signature header against secret and decodes the
// payment intent carried by the event. Nothing in the payload is trusted
// before the signature checks out.
func ParseEvent(payload []byte, signatureHeader, secret string) (*PaymentEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, secret)
	if err != nil {
		return nil, &SignatureError{cause: err}
	}
	return decodeEvent(event)
}

func decodeEvent(event stripe.Event) (*PaymentEvent, error) {
	out := &PaymentEvent{EventID: event.ID, Type: string(event.Type), Kind: PaymentIgnored}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		out.Kind = PaymentSucceeded
	case stripe.EventTypePaymentIntentPaymentFailed:
		out.Kind = PaymentFailed
	default:
		return out, nil
	}

	if event.Data == nil {
		return nil, fmt.Errorf("event %s has no data", event.ID)
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	if pi.ID == "" {
		return nil, fmt.Errorf("event %s carries no payment intent id", event.ID)
	}
	out.PaymentIntentID = pi.ID
	if pi.LatestCharge != nil {
		out.ChargeID = pi.LatestCharge.ID
	}
	if pi.LastPaymentError != nil {
		out.FailureReason = pi.LastPaymentError.Msg
	}
	return out, nil
}
