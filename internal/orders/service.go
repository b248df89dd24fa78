package orders

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/driveaway-backend/internal/notifications"
	"github.com/angelmondragon/driveaway-backend/pkg/db"
	"github.com/angelmondragon/driveaway-backend/pkg/db/models"
	"github.com/angelmondragon/driveaway-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
	"github.com/angelmondragon/driveaway-backend/pkg/metrics"
	"github.com/angelmondragon/driveaway-backend/pkg/pagination"
	pkgstripe "github.com/angelmondragon/driveaway-backend/pkg/stripe"
)

const (
	orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	orderNumberSuffix   = 6

	reasonOrderCancelled = "order cancelled"
	reasonPaymentFailed  = "payment failed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentProvider opens checkouts and refunds captured payments.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, req pkgstripe.IntentRequest) (*pkgstripe.Intent, error)
	Refund(ctx context.Context, paymentIntentID string, orderID uuid.UUID) (string, error)
}

// Notifier records a notification inside the transition's transaction and
// delivers its email once the transaction has committed.
type Notifier interface {
	Record(ctx context.Context, tx *gorm.DB, req notifications.Request) (*notifications.Delivery, error)
	Deliver(ctx context.Context, deliveries ...*notifications.Delivery)
}

// Service is the order lifecycle. Every mutating call authorizes the actor
// first and runs as one transaction holding the order row lock.
type Service interface {
	CreateOrder(ctx context.Context, actor Actor, input CreateOrderInput) (*Checkout, error)
	RetryCheckout(ctx context.Context, actor Actor, orderID uuid.UUID) (*Checkout, error)
	ConfirmPayment(ctx context.Context, actor Actor, orderID uuid.UUID, paymentRef, chargeID string) (Outcome, error)
	RecordPaymentFailure(ctx context.Context, actor Actor, orderID uuid.UUID, paymentRef, reason string) (Outcome, error)
	CancelOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error)
	MarkOngoing(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error)
	MarkCompleted(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error)
	Refund(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error)
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error)
	ListForUser(ctx context.Context, actor Actor, params ListParams) (*ListResult, error)
	OrderIDForPayment(ctx context.Context, paymentRef string) (uuid.UUID, error)
	ListAwaitingPayment(ctx context.Context, staleBefore time.Time, unremindedOnly bool, limit int) ([]uuid.UUID, error)
	SendPaymentReminder(ctx context.Context, actor Actor, orderID uuid.UUID, staleBefore time.Time) (bool, error)
	ExpireOrder(ctx context.Context, actor Actor, orderID uuid.UUID, staleBefore time.Time) (bool, error)
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Payments PaymentProvider
	Notifier Notifier
	Logger   *logger.Logger
	Metrics  *metrics.OrderMetrics
	Currency string
}

type service struct {
	repo      Repository
	tx        txRunner
	payments  PaymentProvider
	notifier  Notifier
	policy    Policy
	logg      *logger.Logger
	metrics   *metrics.OrderMetrics
	currency  string
	now       func() time.Time
	newNumber func(time.Time) (string, error)
}

// NewService builds the order lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		return nil, fmt.Errorf("currency required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		payments:  params.Payments,
		notifier:  params.Notifier,
		logg:      params.Logger,
		metrics:   params.Metrics,
		currency:  currency,
		now:       func() time.Time { return time.Now().UTC() },
		newNumber: newOrderNumber,
	}, nil
}

// effects collects what must happen after commit.
type effects struct {
	deliveries  []*notifications.Delivery
	transitions [][2]enums.OrderStatus
}

func (s *service) flush(ctx context.Context, fx *effects) {
	s.notifier.Deliver(ctx, fx.deliveries...)
	for _, t := range fx.transitions {
		s.metrics.IncTransition(t[0].String(), t[1].String())
	}
}

func (s *service) CreateOrder(ctx context.Context, actor Actor, input CreateOrderInput) (*Checkout, error) {
	if err := s.policy.Authorize(actor, ActionCreate, nil); err != nil {
		return nil, err
	}
	if (input.VehicleID == nil) == (input.PackageID == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exactly one of vehicle_id or package_id is required")
	}
	start, end, days, err := s.rentalRange(input.StartDate, input.EndDate)
	if err != nil {
		return nil, err
	}

	var checkout *Checkout
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		user, err := repo.FindUser(ctx, actor.UserID)
		if err != nil {
			return notFoundOr(err, "user not found", "load user")
		}

		storeID, pricePerDay, err := s.resolveTarget(ctx, repo, input, start, end)
		if err != nil {
			return err
		}

		number, err := s.newNumber(s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}

		order := &models.Order{
			OrderNumber: number,
			UserID:      user.ID,
			StoreID:     storeID,
			VehicleID:   input.VehicleID,
			PackageID:   input.PackageID,
			StartDate:   start,
			EndDate:     end,
			TotalAmount: pricePerDay.Mul(decimal.NewFromInt(days)),
			Currency:    s.currency,
			Status:      enums.OrderStatusPending,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order number already taken, retry")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		checkout, err = s.openCheckout(ctx, repo, order, user.Email)
		return err
	})
	if err != nil {
		return nil, wrapTx(err, "create order")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     checkout.Order.ID.String(),
		"order_number": checkout.Order.OrderNumber,
	}), "order created")
	return checkout, nil
}

func (s *service) RetryCheckout(ctx context.Context, actor Actor, orderID uuid.UUID) (*Checkout, error) {
	var checkout *Checkout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, ActionRetryCheckout, order); err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return s.rejectTransition(ctx, order, enums.OrderStatusConfirmed)
		}
		pending, err := repo.HasPendingPayment(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payments")
		}
		if pending {
			return pkgerrors.New(pkgerrors.CodeConflict, "a payment for this order is already in progress")
		}
		user, err := repo.FindUser(ctx, order.UserID)
		if err != nil {
			return notFoundOr(err, "user not found", "load user")
		}

		checkout, err = s.openCheckout(ctx, repo, order, user.Email)
		return err
	})
	if err != nil {
		return nil, wrapTx(err, "retry checkout")
	}
	return checkout, nil
}

func (s *service) ConfirmPayment(ctx context.Context, actor Actor, orderID uuid.UUID, paymentRef, chargeID string) (Outcome, error) {
	if err := s.policy.Authorize(actor, ActionConfirmPayment, nil); err != nil {
		return "", err
	}

	var outcome Outcome
	fx := &effects{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, payment, err := lockOrderPayment(ctx, repo, orderID, paymentRef)
		if err != nil {
			return err
		}

		if payment.Status == enums.PaymentStatusSuccess {
			outcome = OutcomeReplay
			return nil
		}
		if order.Status != enums.OrderStatusPending || payment.Status == enums.PaymentStatusFailed {
			outcome = OutcomeNeedsReview
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{
				"order_id":       order.ID.String(),
				"order_status":   order.Status.String(),
				"payment_id":     payment.ID.String(),
				"payment_status": payment.Status.String(),
				"charge_id":      chargeID,
			}), "captured payment cannot confirm order, needs operator review",
				pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment captured for %s order", order.Status))
			return nil
		}

		now := s.now()
		updates := map[string]any{
			"status":     enums.PaymentStatusSuccess,
			"settled_at": now,
		}
		if chargeID != "" {
			updates["charge_id"] = chargeID
		}
		if err := repo.UpdatePayment(ctx, payment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment succeeded")
		}
		if err := s.moveTo(ctx, repo, fx, order, enums.OrderStatusConfirmed, map[string]any{
			"payment_intent_id": paymentRef,
		}); err != nil {
			return err
		}
		if err := s.record(ctx, tx, fx, order, enums.NotificationKindPaymentSucceeded, formatAmount(payment.Amount, payment.Currency)); err != nil {
			return err
		}
		outcome = OutcomeApplied
		return nil
	})
	if err != nil {
		return "", wrapTx(err, "confirm payment")
	}
	s.flush(ctx, fx)
	return outcome, nil
}

func (s *service) RecordPaymentFailure(ctx context.Context, actor Actor, orderID uuid.UUID, paymentRef, reason string) (Outcome, error) {
	if err := s.policy.Authorize(actor, ActionRecordPaymentFailure, nil); err != nil {
		return "", err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = reasonPaymentFailed
	}

	var outcome Outcome
	fx := &effects{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, payment, err := lockOrderPayment(ctx, repo, orderID, paymentRef)
		if err != nil {
			return err
		}
		if payment.Status != enums.PaymentStatusPending {
			outcome = OutcomeReplay
			return nil
		}

		if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"status":         enums.PaymentStatusFailed,
			"failure_reason": reason,
			"settled_at":     s.now(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
		}
		outcome = OutcomeApplied

		if order.Status != enums.OrderStatusPending {
			return nil
		}
		return s.record(ctx, tx, fx, order, enums.NotificationKindPaymentFailed, reason)
	})
	if err != nil {
		return "", wrapTx(err, "record payment failure")
	}
	s.flush(ctx, fx)
	return outcome, nil
}

func (s *service) CancelOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error) {
	return s.mutate(ctx, actor, orderID, ActionCancel, func(tx *gorm.DB, repo Repository, fx *effects, order *models.Order) error {
		return s.cancel(ctx, tx, repo, fx, actor, order)
	})
}

func (s *service) MarkOngoing(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error) {
	return s.mutate(ctx, actor, orderID, ActionStart, func(tx *gorm.DB, repo Repository, fx *effects, order *models.Order) error {
		if err := s.moveTo(ctx, repo, fx, order, enums.OrderStatusOngoing, nil); err != nil {
			return err
		}
		return s.record(ctx, tx, fx, order, enums.NotificationKindOrderOngoing, "")
	})
}

func (s *service) MarkCompleted(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error) {
	return s.mutate(ctx, actor, orderID, ActionComplete, func(tx *gorm.DB, repo Repository, fx *effects, order *models.Order) error {
		if err := s.moveTo(ctx, repo, fx, order, enums.OrderStatusCompleted, nil); err != nil {
			return err
		}
		return s.record(ctx, tx, fx, order, enums.NotificationKindOrderCompleted, "")
	})
}

// Refund returns the captured payment through the provider before the
// REFUNDED transition commits. A provider failure leaves the order as it was.
func (s *service) Refund(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error) {
	return s.mutate(ctx, actor, orderID, ActionRefund, func(tx *gorm.DB, repo Repository, fx *effects, order *models.Order) error {
		if !CanTransition(order.Status, enums.OrderStatusRefunded) {
			return s.rejectTransition(ctx, order, enums.OrderStatusRefunded)
		}
		payment, err := repo.FindSuccessfulPayment(ctx, order.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no captured payment to refund")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.PaymentIntentID == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "captured payment has no provider reference")
		}

		refundID, err := s.payments.Refund(ctx, *payment.PaymentIntentID, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund payment")
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id":  order.ID.String(),
			"refund_id": refundID,
		}), "payment refunded")

		if err := s.moveTo(ctx, repo, fx, order, enums.OrderStatusRefunded, nil); err != nil {
			return err
		}
		return s.record(ctx, tx, fx, order, enums.NotificationKindOrderRefunded, formatAmount(payment.Amount, payment.Currency))
	})
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, "order not found", "load order")
	}
	if err := s.policy.Authorize(actor, ActionView, order); err != nil {
		return nil, err
	}
	view := toView(order)
	return &view, nil
}

func (s *service) ListForUser(ctx context.Context, actor Actor, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		params.UserID = actor.UserID
	}
	if err := s.policy.Authorize(actor, ActionView, &models.Order{UserID: params.UserID}); err != nil {
		return nil, err
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}

	query := listOrdersParams{UserID: params.UserID, Status: params.Status, Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.ListOrders(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page, next := pagination.Page(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})

	items := make([]OrderView, 0, len(page))
	for i := range page {
		items = append(items, toView(&page[i]))
	}
	return &ListResult{Items: items, Cursor: next}, nil
}

func (s *service) OrderIDForPayment(ctx context.Context, paymentRef string) (uuid.UUID, error) {
	if strings.TrimSpace(paymentRef) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	payment, err := s.repo.FindPaymentByIntent(ctx, paymentRef)
	if err != nil {
		return uuid.Nil, notFoundOr(err, "payment not found", "load payment")
	}
	return payment.OrderID, nil
}

func (s *service) ListAwaitingPayment(ctx context.Context, staleBefore time.Time, unremindedOnly bool, limit int) ([]uuid.UUID, error) {
	ids, err := s.repo.ListAwaitingPayment(ctx, awaitingPaymentParams{
		Cutoff:         staleBefore,
		UnremindedOnly: unremindedOnly,
		Limit:          limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders awaiting payment")
	}
	return ids, nil
}

// SendPaymentReminder reminds the owner once per order. It re-checks the
// order under its row lock, so concurrent sweeps send at most one reminder.
func (s *service) SendPaymentReminder(ctx context.Context, actor Actor, orderID uuid.UUID, staleBefore time.Time) (bool, error) {
	if err := s.policy.Authorize(actor, ActionRemind, nil); err != nil {
		return false, err
	}

	sent := false
	fx := &effects{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending || order.ReminderSentAt != nil {
			return nil
		}
		stale, err := repo.IsAwaitingPaymentSince(ctx, order.ID, staleBefore)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment age")
		}
		if !stale {
			return nil
		}

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"reminder_sent_at": s.now()}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark reminder sent")
		}
		if err := s.record(ctx, tx, fx, order, enums.NotificationKindPaymentReminder, ""); err != nil {
			return err
		}
		sent = true
		return nil
	})
	if err != nil {
		return false, wrapTx(err, "send payment reminder")
	}
	s.flush(ctx, fx)
	return sent, nil
}

// ExpireOrder cancels an unpaid order on behalf of the system. Orders that
// were paid or had a fresh checkout since staleBefore are left alone.
func (s *service) ExpireOrder(ctx context.Context, actor Actor, orderID uuid.UUID, staleBefore time.Time) (bool, error) {
	if err := s.policy.Authorize(actor, ActionExpire, nil); err != nil {
		return false, err
	}

	expired := false
	fx := &effects{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return nil
		}
		stale, err := repo.IsAwaitingPaymentSince(ctx, order.ID, staleBefore)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment age")
		}
		if !stale {
			return nil
		}
		if err := s.cancel(ctx, tx, repo, fx, actor, order); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		return false, wrapTx(err, "expire order")
	}
	s.flush(ctx, fx)
	return expired, nil
}

type mutation func(tx *gorm.DB, repo Repository, fx *effects, order *models.Order) error

// mutate locks the order, authorizes the actor against it and applies fn in
// one transaction. Notifications go out only after commit.
func (s *service) mutate(ctx context.Context, actor Actor, orderID uuid.UUID, action Action, fn mutation) (*OrderView, error) {
	fx := &effects{}
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, action, order); err != nil {
			return err
		}
		return fn(tx, repo, fx, order)
	})
	if err != nil {
		return nil, wrapTx(err, string(action)+" order")
	}
	s.flush(ctx, fx)

	view := toView(order)
	return &view, nil
}

func (s *service) cancel(ctx context.Context, tx *gorm.DB, repo Repository, fx *effects, actor Actor, order *models.Order) error {
	if !CanTransition(order.Status, enums.OrderStatusCancelled) {
		return s.rejectTransition(ctx, order, enums.OrderStatusCancelled)
	}

	now := s.now()
	if _, err := repo.FailPendingPayments(ctx, order.ID, reasonOrderCancelled, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail pending payments")
	}
	label := actor.Label()
	if err := s.moveTo(ctx, repo, fx, order, enums.OrderStatusCancelled, map[string]any{
		"cancelled_at":       now,
		"cancellation_actor": label,
	}); err != nil {
		return err
	}
	order.CancelledAt = &now
	order.CancellationActor = &label

	return s.record(ctx, tx, fx, order, cancellationKind(actor, order), "")
}

// moveTo writes a legal transition and any extra columns with it.
func (s *service) moveTo(ctx context.Context, repo Repository, fx *effects, order *models.Order, to enums.OrderStatus, extra map[string]any) error {
	if !CanTransition(order.Status, to) {
		return s.rejectTransition(ctx, order, to)
	}
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	fx.transitions = append(fx.transitions, [2]enums.OrderStatus{order.Status, to})
	order.Status = to
	return nil
}

func (s *service) rejectTransition(ctx context.Context, order *models.Order, to enums.OrderStatus) error {
	err := CheckTransition(order.Status, to)
	if err == nil {
		err = pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is %s", order.Status)
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"from":     order.Status.String(),
		"to":       to.String(),
	}), "rejected order transition")
	return err
}

func (s *service) record(ctx context.Context, tx *gorm.DB, fx *effects, order *models.Order, kind enums.NotificationKind, detail string) error {
	orderID := order.ID
	delivery, err := s.notifier.Record(ctx, tx, notifications.Request{
		UserID:      order.UserID,
		OrderID:     &orderID,
		Kind:        kind,
		OrderNumber: order.OrderNumber,
		Detail:      detail,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record notification")
	}
	fx.deliveries = append(fx.deliveries, delivery)
	return nil
}

// openCheckout adds a PENDING payment and opens its provider checkout. The
// provider call happens inside the transaction; if it fails nothing is kept.
func (s *service) openCheckout(ctx context.Context, repo Repository, order *models.Order, email string) (*Checkout, error) {
	payment := &models.Payment{
		OrderID:  order.ID,
		Amount:   order.TotalAmount,
		Currency: order.Currency,
		Status:   enums.PaymentStatusPending,
	}
	if err := repo.CreatePayment(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}

	intent, err := s.payments.CreateIntent(ctx, pkgstripe.IntentRequest{
		PaymentID:   payment.ID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Email:       email,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open checkout")
	}

	if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{
		"payment_intent_id": intent.ID,
		"client_secret":     intent.ClientSecret,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment reference")
	}
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"payment_intent_id": intent.ID}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment reference")
	}

	payment.PaymentIntentID = &intent.ID
	order.PaymentIntentID = &intent.ID
	order.Payments = append(order.Payments, *payment)

	return &Checkout{
		Order:           toView(order),
		PaymentID:       payment.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
	}, nil
}

// rentalRange normalizes the dates to UTC and returns the billable days,
// counting any started day as a full day.
func (s *service) rentalRange(startDate, endDate time.Time) (time.Time, time.Time, int64, error) {
	if startDate.IsZero() || endDate.IsZero() {
		return time.Time{}, time.Time{}, 0, pkgerrors.New(pkgerrors.CodeValidation, "start and end dates are required")
	}
	start, end := startDate.UTC(), endDate.UTC()
	if !end.After(start) {
		return time.Time{}, time.Time{}, 0, pkgerrors.New(pkgerrors.CodeValidation, "end date must be after start date")
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	if start.Before(today) {
		return time.Time{}, time.Time{}, 0, pkgerrors.New(pkgerrors.CodeValidation, "start date is in the past")
	}
	days := int64(math.Ceil(end.Sub(start).Hours() / 24))
	return start, end, days, nil
}

func (s *service) resolveTarget(ctx context.Context, repo Repository, input CreateOrderInput, start, end time.Time) (uuid.UUID, decimal.Decimal, error) {
	if input.VehicleID != nil {
		vehicle, err := repo.LockVehicle(ctx, *input.VehicleID)
		if err != nil {
			return uuid.Nil, decimal.Zero, notFoundOr(err, "vehicle not found", "load vehicle")
		}
		if !vehicle.IsActive {
			return uuid.Nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeConflict, "vehicle is not available")
		}
		overlap, err := repo.HasOverlappingBooking(ctx, vehicle.ID, start, end)
		if err != nil {
			return uuid.Nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check availability")
		}
		if overlap {
			return uuid.Nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeConflict, "vehicle is already booked for the requested dates")
		}
		return vehicle.StoreID, vehicle.PricePerDay, nil
	}

	pkg, err := repo.FindPackage(ctx, *input.PackageID)
	if err != nil {
		return uuid.Nil, decimal.Zero, notFoundOr(err, "package not found", "load package")
	}
	if !pkg.IsActive {
		return uuid.Nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeConflict, "package is not available")
	}
	return pkg.StoreID, pkg.PricePerDay, nil
}

func lockOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.LockOrder(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, "order not found", "load order")
	}
	return order, nil
}

func lockOrderPayment(ctx context.Context, repo Repository, orderID uuid.UUID, paymentRef string) (*models.Order, *models.Payment, error) {
	order, err := lockOrder(ctx, repo, orderID)
	if err != nil {
		return nil, nil, err
	}
	payment, err := repo.FindPaymentByIntent(ctx, paymentRef)
	if err != nil {
		return nil, nil, notFoundOr(err, "payment not found", "load payment")
	}
	if payment.OrderID != order.ID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment does not belong to order")
	}
	return order, payment, nil
}

func cancellationKind(actor Actor, order *models.Order) enums.NotificationKind {
	switch {
	case actor.IsSystem():
		return enums.NotificationKindOrderCancelledSystem
	case actor.UserID == order.UserID:
		return enums.NotificationKindOrderCancelledByUser
	default:
		return enums.NotificationKindOrderCancelledStore
	}
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func wrapTx(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func formatAmount(amount decimal.Decimal, currency string) string {
	return strings.ToUpper(currency) + " " + amount.StringFixed(pkgstripe.Exponent(currency))
}

func newOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, orderNumberSuffix)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = orderNumberAlphabet[int(buf[i])%len(orderNumberAlphabet)]
	}
	return "DA-" + now.UTC().Format("20060102") + "-" + string(buf), nil
}
