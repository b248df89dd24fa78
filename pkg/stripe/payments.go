package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/refund"
)

// zeroDecimalCurrencies are charged in whole units.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true,
	"jpy": true, "kmf": true, "krw": true, "mga": true,
	"pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// threeDecimalCurrencies are charged in thousandths. Stripe requires the
// last digit of the minor amount to be zero for these.
var threeDecimalCurrencies = map[string]bool{
	"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true,
}

// IntentRequest describes a checkout for one payment attempt.
type IntentRequest struct {
	PaymentID   uuid.UUID
	OrderID     uuid.UUID
	OrderNumber string
	Amount      decimal.Decimal
	Currency    string
	Email       string
}

// Intent is the provider-side checkout created for a payment attempt.
type Intent struct {
	ID           string
	ClientSecret string
}

// PaymentIntents creates intents and refunds through the Stripe API.
type PaymentIntents struct {
	newIntent func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	newRefund func(*stripe.RefundParams) (*stripe.Refund, error)
}

// NewPaymentIntents requires an initialized Client so stripe.Key is set.
func NewPaymentIntents(client *Client) (*PaymentIntents, error) {
	if client == nil {
		return nil, errors.New("stripe client required")
	}
	return &PaymentIntents{newIntent: paymentintent.New, newRefund: refund.New}, nil
}

// CreateIntent opens a PaymentIntent. The payment id doubles as the
// idempotency key so a retried request never double-charges.
func (p *PaymentIntents) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(req.Amount, req.Currency)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String("Order " + req.OrderNumber),
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("payment_id", req.PaymentID.String())
	params.AddMetadata("order_number", req.OrderNumber)
	params.SetIdempotencyKey("payment-" + req.PaymentID.String())

	pi, err := p.newIntent(params)
	if err != nil {
		return nil, err
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// Refund returns the full captured amount of a PaymentIntent.
func (p *PaymentIntents) Refund(ctx context.Context, paymentIntentID string, orderID uuid.UUID) (string, error) {
	if paymentIntentID == "" {
		return "", errors.New("payment intent id required")
	}
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentIntentID)}
	params.Context = ctx
	params.AddMetadata("order_id", orderID.String())
	params.SetIdempotencyKey("refund-" + orderID.String())

	r, err := p.newRefund(params)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// MinorUnits converts an amount into the smallest currency unit Stripe expects.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	exp := Exponent(currency)
	minor := amount.Shift(exp).Round(0)
	if exp == 3 {
		// Stripe rejects three-decimal amounts not divisible by ten.
		minor = minor.Shift(-1).Round(0).Shift(1)
	}
	return minor.IntPart()
}

// Exponent is the number of minor-unit digits Stripe uses for currency.
func Exponent(currency string) int32 {
	c := strings.ToLower(currency)
	switch {
	case zeroDecimalCurrencies[c]:
		return 0
	case threeDecimalCurrencies[c]:
		return 3
	default:
		return 2
	}
}
