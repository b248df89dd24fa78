package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/driveaway-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/driveaway-backend/pkg/stripe"
)

const testSecret = "whsec_test"

type staticSecret string

func (s staticSecret) SigningSecret() string { return string(s) }

type recordingHandler struct {
	events  []*pkgstripe.PaymentEvent
	outcome orders.Outcome
	err     error
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *pkgstripe.PaymentEvent) (orders.Outcome, error) {
	h.events = append(h.events, event)
	return h.outcome, h.err
}

func signedEvent(t *testing.T, secret string, eventType stripe.EventType, object map[string]any) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": json.RawMessage(raw)},
	})
	require.NoError(t, err)

	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return payload, fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func deliver(handler http.Handler, payload []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

var succeededIntent = map[string]any{
	"id":            "pi_123",
	"object":        "payment_intent",
	"latest_charge": "ch_9",
}

func TestStripeWebhookDispatchesVerifiedEvent(t *testing.T) {
	svc := &recordingHandler{outcome: orders.OutcomeApplied}
	payload, header := signedEvent(t, testSecret, stripe.EventTypePaymentIntentSucceeded, succeededIntent)

	rec := deliver(StripeWebhook(svc, staticSecret(testSecret), logger.Nop()), payload, header)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, svc.events, 1)
	assert.Equal(t, pkgstripe.PaymentSucceeded, svc.events[0].Kind)
	assert.Equal(t, "pi_123", svc.events[0].PaymentIntentID)
	assert.Equal(t, "ch_9", svc.events[0].ChargeID)
	assert.Contains(t, rec.Body.String(), `"outcome":"applied"`)
}

func TestStripeWebhookRejectsBadSignatureBeforeProcessing(t *testing.T) {
	svc := &recordingHandler{}
	payload, header := signedEvent(t, "whsec_forged", stripe.EventTypePaymentIntentSucceeded, succeededIntent)
	handler := StripeWebhook(svc, staticSecret(testSecret), logger.Nop())

	rec := deliver(handler, payload, header)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = deliver(handler, payload, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Empty(t, svc.events)
}

func TestStripeWebhookProcessingFailureIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"dependency", pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "lock order")},
		{"plain", errors.New("boom")},
		{"conflict", pkgerrors.New(pkgerrors.CodeConflict, "concurrent update")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &recordingHandler{err: tc.err}
			payload, header := signedEvent(t, testSecret, stripe.EventTypePaymentIntentSucceeded, succeededIntent)

			rec := deliver(StripeWebhook(svc, staticSecret(testSecret), nil), payload, header)
			assert.GreaterOrEqual(t, rec.Code, http.StatusInternalServerError)
		})
	}
}

func TestStripeWebhookAcksIgnoredTypes(t *testing.T) {
	svc := &recordingHandler{outcome: orders.OutcomeIgnored}
	payload, header := signedEvent(t, testSecret, stripe.EventTypeCustomerCreated, map[string]any{"id": "cus_1", "object": "customer"})

	rec := deliver(StripeWebhook(svc, staticSecret(testSecret), nil), payload, header)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.events, 1)
	assert.Equal(t, pkgstripe.PaymentIgnored, svc.events[0].Kind)
}

func TestStripeWebhookMalformedIntentIsBadRequest(t *testing.T) {
	svc := &recordingHandler{}
	payload, header := signedEvent(t, testSecret, stripe.EventTypePaymentIntentSucceeded, map[string]any{"object": "payment_intent"})

	rec := deliver(StripeWebhook(svc, staticSecret(testSecret), nil), payload, header)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.events)
}
