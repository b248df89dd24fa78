package stripewebhook

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/angelmondragon/driveaway-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
	"github.com/angelmondragon/driveaway-backend/pkg/metrics"
	pkgstripe "github.com/angelmondragon/driveaway-backend/pkg/stripe"
)

// Outcomes beyond the ones the order service reports.
const (
	OutcomeDuplicate  orders.Outcome = "duplicate"
	OutcomeUnknownRef orders.Outcome = "unknown_ref"
)

type orderService interface {
	OrderIDForPayment(ctx context.Context, paymentRef string) (uuid.UUID, error)
	ConfirmPayment(ctx context.Context, actor orders.Actor, orderID uuid.UUID, paymentRef, chargeID string) (orders.Outcome, error)
	RecordPaymentFailure(ctx context.Context, actor orders.Actor, orderID uuid.UUID, paymentRef, reason string) (orders.Outcome, error)
}

type eventGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Complete(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

type ServiceParams struct {
	Orders  orderService
	Guard   eventGuard
	Logger  *logger.Logger
	Metrics *metrics.OrderMetrics
}

// Service reconciles verified payment events against orders.
type Service struct {
	orders  orderService
	guard   eventGuard
	logg    *logger.Logger
	metrics *metrics.OrderMetrics
}

// NewService builds the reconciler. Guard and Metrics are optional.
func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		orders:  params.Orders,
		guard:   params.Guard,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// HandleEvent applies one verified event. Events for payments this system
// does not know are acknowledged and dropped; only failures the provider
// should retry are returned.
func (s *Service) HandleEvent(ctx context.Context, event *pkgstripe.PaymentEvent) (orders.Outcome, error) {
	if event == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment event required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":          event.EventID,
		"event_type":        event.Type,
		"payment_intent_id": event.PaymentIntentID,
	})

	if event.Kind == pkgstripe.PaymentIgnored {
		s.metrics.IncWebhook(event.Type, string(orders.OutcomeIgnored))
		return orders.OutcomeIgnored, nil
	}

	claimed := false
	if s.guard != nil && event.EventID != "" {
		ok, err := s.guard.Claim(ctx, event.EventID)
		switch {
		case err != nil:
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "webhook dedupe unavailable, relying on order state")
		case !ok:
			s.metrics.IncWebhook(event.Type, string(OutcomeDuplicate))
			return OutcomeDuplicate, nil
		default:
			claimed = true
		}
	}

	outcome, err := s.apply(ctx, event)
	if err != nil {
		if claimed {
			s.release(ctx, event.EventID)
		}
		s.metrics.IncWebhook(event.Type, "error")
		return "", err
	}
	if claimed {
		if err := s.guard.Complete(ctx, event.EventID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "webhook dedupe mark failed")
		}
	}
	s.metrics.IncWebhook(event.Type, string(outcome))
	return outcome, nil
}

func (s *Service) apply(ctx context.Context, event *pkgstripe.PaymentEvent) (orders.Outcome, error) {
	orderID, err := s.orders.OrderIDForPayment(ctx, event.PaymentIntentID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) || pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			s.logg.Warn(ctx, "webhook references unknown payment, discarding")
			return OutcomeUnknownRef, nil
		}
		return "", err
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	var outcome orders.Outcome
	switch event.Kind {
	case pkgstripe.PaymentSucceeded:
		outcome, err = s.orders.ConfirmPayment(ctx, orders.SystemActor(), orderID, event.PaymentIntentID, event.ChargeID)
	case pkgstripe.PaymentFailed:
		outcome, err = s.orders.RecordPaymentFailure(ctx, orders.SystemActor(), orderID, event.PaymentIntentID, event.FailureReason)
	default:
		return orders.OutcomeIgnored, nil
	}
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(ctx, "webhook payment no longer matches order, discarding")
			return OutcomeUnknownRef, nil
		}
		return "", err
	}

	s.logg.Info(s.logg.WithField(ctx, "outcome", string(outcome)), "payment event reconciled")
	return outcome, nil
}

func (s *Service) release(ctx context.Context, eventID string) {
	if err := s.guard.Release(ctx, eventID); err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "release webhook dedupe key")
	}
}
