package orders

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/driveaway-backend/internal/emailqueue"
	"github.com/angelmondragon/driveaway-backend/internal/notifications"
	"github.com/angelmondragon/driveaway-backend/pkg/db/dbtest"
	"github.com/angelmondragon/driveaway-backend/pkg/db/models"
	"github.com/angelmondragon/driveaway-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
	"github.com/angelmondragon/driveaway-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/driveaway-backend/pkg/stripe"
)

type fakeProvider struct {
	mu        sync.Mutex
	intents   int
	refunds   []string
	createErr error
	refundErr error
}

func (f *fakeProvider) CreateIntent(_ context.Context, req pkgstripe.IntentRequest) (*pkgstripe.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.intents++
	id := fmt.Sprintf("pi_test_%d", f.intents)
	return &pkgstripe.Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (f *fakeProvider) Refund(_ context.Context, paymentIntentID string, _ uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return "", f.refundErr
	}
	f.refunds = append(f.refunds, paymentIntentID)
	return "re_" + paymentIntentID, nil
}

type fakeSubmitter struct {
	mu   sync.Mutex
	jobs []emailqueue.Job
}

func (f *fakeSubmitter) Submit(_ context.Context, job emailqueue.Job) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return true, nil
}

type harness struct {
	svc      *service
	conn     *gorm.DB
	provider *fakeProvider
	emails   *fakeSubmitter
	now      time.Time
	store    models.Store
	vehicle  models.Vehicle
	pkg      models.Package
	customer models.User
	operator models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()

	emails := &fakeSubmitter{}
	dispatcher, err := notifications.NewDispatcher(notifications.NewRepository(conn), notifications.NewLocalizer("en"), emails, logger.Nop())
	require.NoError(t, err)

	provider := &fakeProvider{}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Tx:       client,
		Payments: provider,
		Notifier: dispatcher,
		Logger:   logger.Nop(),
		Currency: "JPY",
	})
	require.NoError(t, err)

	h := &harness{
		svc:      svc.(*service),
		conn:     conn,
		provider: provider,
		emails:   emails,
		now:      time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC),
	}
	h.svc.now = func() time.Time { return h.now }

	h.store = models.Store{Name: "Shinjuku"}
	require.NoError(t, conn.Create(&h.store).Error)
	h.vehicle = models.Vehicle{StoreID: h.store.ID, Name: "Prius", PricePerDay: decimal.NewFromInt(10000), IsActive: true}
	require.NoError(t, conn.Create(&h.vehicle).Error)
	h.pkg = models.Package{StoreID: h.store.ID, Name: "Fuji day trip", PricePerDay: decimal.NewFromInt(25000), IsActive: true}
	require.NoError(t, conn.Create(&h.pkg).Error)
	h.customer = models.User{Email: "rider@example.com", Name: "Rider", Language: "en", Role: enums.UserRoleCustomer}
	require.NoError(t, conn.Create(&h.customer).Error)
	h.operator = models.User{Email: "desk@example.com", Name: "Desk", Language: "en", Role: enums.UserRoleOperator}
	require.NoError(t, conn.Create(&h.operator).Error)
	return h
}

func (h *harness) customerActor() Actor {
	return UserActor(h.customer.ID, enums.UserRoleCustomer, nil)
}

func (h *harness) operatorActor() Actor {
	storeID := h.store.ID
	return UserActor(h.operator.ID, enums.UserRoleOperator, &storeID)
}

func (h *harness) book(t *testing.T, startInDays, days int) *Checkout {
	t.Helper()
	vehicleID := h.vehicle.ID
	start := h.now.Truncate(24 * time.Hour).Add(time.Duration(startInDays) * 24 * time.Hour)
	checkout, err := h.svc.CreateOrder(context.Background(), h.customerActor(), CreateOrderInput{
		VehicleID: &vehicleID,
		StartDate: start,
		EndDate:   start.Add(time.Duration(days) * 24 * time.Hour),
	})
	require.NoError(t, err)
	return checkout
}

func (h *harness) order(t *testing.T, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, h.conn.Preload("Payments").First(&order, "id = ?", id).Error)
	return order
}

func (h *harness) kinds(t *testing.T, orderID uuid.UUID) []enums.NotificationKind {
	t.Helper()
	var rows []models.Notification
	require.NoError(t, h.conn.Where("order_id = ?", orderID).Order("created_at ASC").Find(&rows).Error)
	kinds := make([]enums.NotificationKind, 0, len(rows))
	for _, n := range rows {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, pkgerrors.CodeOf(err), err.Error())
}

func TestCreateOrderOpensCheckout(t *testing.T) {
	h := newHarness(t)

	checkout := h.book(t, 1, 2)

	assert.Regexp(t, regexp.MustCompile(`^DA-20260510-[A-HJ-NP-Z2-9]{6}$`), checkout.Order.OrderNumber)
	assert.Equal(t, enums.OrderStatusPending, checkout.Order.Status)
	assert.True(t, decimal.NewFromInt(20000).Equal(checkout.Order.TotalAmount))
	assert.Equal(t, "jpy", checkout.Order.Currency)
	assert.Equal(t, "pi_test_1", checkout.PaymentIntentID)
	assert.Equal(t, "pi_test_1_secret", checkout.ClientSecret)

	order := h.order(t, checkout.Order.ID)
	require.Len(t, order.Payments, 1)
	assert.Equal(t, enums.PaymentStatusPending, order.Payments[0].Status)
	require.NotNil(t, order.PaymentIntentID)
	assert.Equal(t, "pi_test_1", *order.PaymentIntentID)
	assert.Empty(t, h.kinds(t, order.ID))
}

func TestCreateOrderChargesStartedDays(t *testing.T) {
	h := newHarness(t)
	pkgID := h.pkg.ID
	start := h.now.Add(24 * time.Hour)

	checkout, err := h.svc.CreateOrder(context.Background(), h.customerActor(), CreateOrderInput{
		PackageID: &pkgID,
		StartDate: start,
		EndDate:   start.Add(25 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50000).Equal(checkout.Order.TotalAmount))
	assert.Equal(t, h.store.ID, checkout.Order.StoreID)
}

func TestCreateOrderRejectsOverlappingBooking(t *testing.T) {
	h := newHarness(t)
	h.book(t, 1, 3)

	vehicleID := h.vehicle.ID
	start := h.now.Truncate(24 * time.Hour).Add(2 * 24 * time.Hour)
	_, err := h.svc.CreateOrder(context.Background(), h.customerActor(), CreateOrderInput{
		VehicleID: &vehicleID,
		StartDate: start,
		EndDate:   start.Add(24 * time.Hour),
	})
	requireCode(t, err, pkgerrors.CodeConflict)

	// back to back bookings do not overlap
	h.book(t, 4, 1)
}

func TestCreateOrderValidation(t *testing.T) {
	h := newHarness(t)
	vehicleID, pkgID := h.vehicle.ID, h.pkg.ID
	tomorrow := h.now.Add(24 * time.Hour)

	cases := map[string]CreateOrderInput{
		"no target":     {StartDate: tomorrow, EndDate: tomorrow.Add(24 * time.Hour)},
		"both targets":  {VehicleID: &vehicleID, PackageID: &pkgID, StartDate: tomorrow, EndDate: tomorrow.Add(24 * time.Hour)},
		"end not after": {VehicleID: &vehicleID, StartDate: tomorrow, EndDate: tomorrow},
		"past start":    {VehicleID: &vehicleID, StartDate: h.now.Add(-48 * time.Hour), EndDate: tomorrow},
		"missing dates": {VehicleID: &vehicleID},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.CreateOrder(context.Background(), h.customerActor(), input)
			requireCode(t, err, pkgerrors.CodeValidation)
		})
	}

	var count int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateOrderRejectsInactiveVehicle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.conn.Model(&h.vehicle).Update("is_active", false).Error)

	vehicleID := h.vehicle.ID
	_, err := h.svc.CreateOrder(context.Background(), h.customerActor(), CreateOrderInput{
		VehicleID: &vehicleID,
		StartDate: h.now.Add(24 * time.Hour),
		EndDate:   h.now.Add(48 * time.Hour),
	})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestCreateOrderProviderFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.provider.createErr = errors.New("stripe unavailable")

	vehicleID := h.vehicle.ID
	_, err := h.svc.CreateOrder(context.Background(), h.customerActor(), CreateOrderInput{
		VehicleID: &vehicleID,
		StartDate: h.now.Add(24 * time.Hour),
		EndDate:   h.now.Add(48 * time.Hour),
	})
	requireCode(t, err, pkgerrors.CodeDependency)

	var orders, payments int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, h.conn.Model(&models.Payment{}).Count(&payments).Error)
	assert.Zero(t, orders)
	assert.Zero(t, payments)
}

func TestCreateOrderRequiresCustomer(t *testing.T) {
	h := newHarness(t)
	vehicleID := h.vehicle.ID
	_, err := h.svc.CreateOrder(context.Background(), h.operatorActor(), CreateOrderInput{
		VehicleID: &vehicleID,
		StartDate: h.now.Add(24 * time.Hour),
		EndDate:   h.now.Add(48 * time.Hour),
	})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	checkout := h.book(t, 1, 2)

	outcome, err := h.svc.ConfirmPayment(ctx, SystemActor(), checkout.Order.ID, checkout.PaymentIntentID, "ch_1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	outcome, err = h.svc.ConfirmPayment(ctx, SystemActor(), checkout.Order.ID, checkout.PaymentIntentID, "ch_1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplay, outcome)

	order := h.order(t, checkout.Order.ID)
	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
	require.Len(t, order.Payments, 1)
	assert.Equal(t, enums.PaymentStatusSuccess, order.Payments[0].Status)
	require.NotNil(t, order.Payments[0].ChargeID)
	assert.Equal(t, "ch_1", *order.Payments[0].ChargeID)

	assert.Equal(t, []enums.NotificationKind{enums.NotificationKindPaymentSucceeded}, h.kinds(t, order.ID))
	require.Len(t, h.emails.jobs, 1)
	assert.Contains(t, h.emails.jobs[0].Body, "JPY 20000")
	assert.Equal(t, "rider@example.com", h.emails.jobs[0].To)
}

func TestConfirmPaymentRequiresSystemActor(t *testing.T) {
	h := newHarness(t)
	checkout := h.book(t, 1, 1)

	_, err := h.svc.ConfirmPayment(context.Background(), h.customerActor(), checkout.Order.ID, checkout.PaymentIntentID, "")
	requireCode(t, err, pkgerrors.CodeForbidden)
	assert.Equal(t, enums.OrderStatusPending, h.order(t, checkout.Order.ID).Status)
}

func TestConfirmPaymentRejectsForeignPayment(t *testing.T) {
	h := newHarness(t)
	first := h.book(t, 1, 1)
	second := h.book(t, 5, 1)

	_, err := h.svc.ConfirmPayment(context.Background(), SystemActor(), first.Order.ID, second.PaymentIntentID, "")
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestPaymentAfterCancellationNeedsReview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	checkout := h.book(t, 1, 1)

	_, err := h.svc.CancelOrder(ctx, h.customerActor(), checkout.Order.ID)
	require.NoError(t, err)

	outcome, err := h.svc.ConfirmPayment(ctx, SystemActor(), checkout.Order.ID, checkout.PaymentIntentID, "ch_late")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsReview, outcome)

	order := h.order(t, checkout.Order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	assert.Equal(t, enums.PaymentStatusFailed, order.Payments[0].Status)
}

func TestPaymentFailureThenRetryCheckout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	checkout := h.book(t, 1, 1)

	outcome, err := h.svc.RecordPaymentFailure(ctx, SystemActor(), checkout.Order.ID, checkout.PaymentIntentID, "card_declined")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	outcome, err = h.svc.RecordPaymentFailure(ctx, SystemActor(), checkout.Order.ID, checkout.PaymentIntentID, "card_declined")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplay, outcome)

	order := h.order(t, checkout.Order.ID)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.NotNil(t, order.Payments[0].FailureReason)
	assert.Equal(t, "card_declined", *order.Payments[0].FailureReason)
	assert.Equal(t, []enums.NotificationKind{enums.NotificationKindPaymentFailed}, h.kinds(t, order.ID))

	// a late success for the failed attempt does not confirm the order
	outcome, err = h.svc.ConfirmPayment(ctx, SystemActor(), checkout.Order.ID, checkout.PaymentIntentID, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsReview, outcome)

	retry, err := h.svc.RetryCheckout(ctx, h.customerActor(), checkout.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_test_2", retry.PaymentIntentID)

	_, err = h.svc.RetryCheckout(ctx, h.customerActor(), checkout.Order.ID)
	requireCode(t, err, pkgerrors.CodeConflict)

	outcome, err = h.svc.ConfirmPayment(ctx, SystemActor(), checkout.Order.ID, retry.PaymentIntentID, "ch_2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	order = h.order(t, checkout.Order.ID)
	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
	assert.Len(t, order.Payments, 2)
}

func TestRetryCheckoutRequiresOwnerAndPendingOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	checkout := h.book(t, 1, 1)

	_, err := h.svc.RetryCheckout(ctx, h.operatorActor(), checkout.Order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = h.svc.ConfirmPayment(ctx, SystemActor(), checkout.Order.ID, checkout.PaymentIntentID, "")
	require.NoError(t, err)
	_, err = h.svc.RetryCheckout(ctx, h.customerActor(), checkout.Order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCancelNotifiesByActor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	byUser := h.book(t, 1, 1)
	view, err := h.svc.CancelOrder(ctx, h.customerActor(), byUser.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, view.Status)
	assert.Equal(t, []enums.NotificationKind{enums.NotificationKindOrderCancelledByUser}, h.kinds(t, byUser.Order.ID))

	byStore := h.book(t, 3, 1)
	_, err = h.svc.CancelOrder(ctx, h.operatorActor(), byStore.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, []enums.NotificationKind{enums.NotificationKindOrderCancelledStore}, h.kinds(t, byStore.Order.ID))

	order := h.order(t, byStore.Order.ID)
	require.NotNil(t, order.CancellationActor)
	assert.Equal(t, "operator", *order.CancellationActor)
	assert.NotNil(t, order.CancelledAt)
	assert.Equal(t, enums.PaymentStatusFailed, order.Payments[0].Status)

	_, err = h.svc.CancelOrder(ctx, h.customerActor(), byUser.Order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCancelFreesTheVehicle(t *testing.T) {
	h := newHarness(t)
	checkout := h.book(t, 1, 2)

	_, err := h.svc.CancelOrder(context.Background(), h.customerActor(), checkout.Order.ID)
	require.NoError(t, err)

	h.book(t, 1, 2)
}

func TestFullRentalLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	checkout := h.book(t, 1, 2)
	id := checkout.Order.ID

	_, err := h.svc.MarkOngoing(ctx, h.operatorActor(), id)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = h.svc.ConfirmPayment(ctx, SystemActor(), id, checkout.PaymentIntentID, "ch_1")
	require.NoError(t, err)

	_, err = h.svc.MarkOngoing(ctx, h.customerActor(), id)
	requireCode(t, err, pkgerrors.CodeForbidden)

	view, err := h.svc.MarkOngoing(ctx, h.operatorActor(), id)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusOngoing, view.Status)

	_, err = h.svc.CancelOrder(ctx, h.customerActor(), id)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	view, err = h.svc.MarkCompleted(ctx, h.operatorActor(), id)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, view.Status)

	view, err = h.svc.Refund(ctx, h.operatorActor(), id)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusRefunded, view.Status)
	assert.Equal(t, []string{checkout.PaymentIntentID}, h.provider.refunds)

	assert.Equal(t, []enums.NotificationKind{
		enums.NotificationKindPaymentSucceeded,
		enums.NotificationKindOrderOngoing,
		enums.NotificationKindOrderCompleted,
		enums.NotificationKindOrderRefunded,
	}, h.kinds(t, id))
}

func TestRefundProviderFailureKeepsOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	checkout := h.book(t, 1, 1)
	_, err := h.svc.ConfirmPayment(ctx, SystemActor(), checkout.Order.ID, checkout.PaymentIntentID, "")
	require.NoError(t, err)

	h.provider.refundErr = errors.New("refund rejected")
	_, err = h.svc.Refund(ctx, h.operatorActor(), checkout.Order.ID)
	requireCode(t, err, pkgerrors.CodeDependency)

	assert.Equal(t, enums.OrderStatusConfirmed, h.order(t, checkout.Order.ID).Status)
	assert.Equal(t, []enums.NotificationKind{enums.NotificationKindPaymentSucceeded}, h.kinds(t, checkout.Order.ID))
}

func TestRefundOfPendingOrderIsStateConflict(t *testing.T) {
	h := newHarness(t)
	checkout := h.book(t, 1, 1)

	_, err := h.svc.Refund(context.Background(), h.operatorActor(), checkout.Order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Empty(t, h.provider.refunds)
}

func TestOperatorOfAnotherStoreIsForbidden(t *testing.T) {
	h := newHarness(t)
	checkout := h.book(t, 1, 1)

	otherStore := uuid.New()
	stranger := UserActor(h.operator.ID, enums.UserRoleOperator, &otherStore)
	_, err := h.svc.Get(context.Background(), stranger, checkout.Order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = h.svc.CancelOrder(context.Background(), stranger, checkout.Order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	view, err := h.svc.Get(context.Background(), h.operatorActor(), checkout.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, checkout.Order.ID, view.ID)
}

func TestListForUserPaginates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		h.book(t, 1+i*2, 1)
	}

	seen := map[uuid.UUID]bool{}
	cursor := ""
	for page := 0; page < 5; page++ {
		res, err := h.svc.ListForUser(ctx, h.customerActor(), ListParams{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, item := range res.Items {
			assert.False(t, seen[item.ID], "order listed twice")
			seen[item.ID] = true
		}
		cursor = res.Cursor
		if cursor == "" {
			break
		}
	}
	assert.Len(t, seen, 5)

	_, err := h.svc.ListForUser(ctx, h.customerActor(), ListParams{Cursor: "not-a-cursor"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.ListForUser(ctx, h.operatorActor(), ListParams{UserID: h.customer.ID})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestOrderIDForPayment(t *testing.T) {
	h := newHarness(t)
	checkout := h.book(t, 1, 1)

	id, err := h.svc.OrderIDForPayment(context.Background(), checkout.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, checkout.Order.ID, id)

	_, err = h.svc.OrderIDForPayment(context.Background(), "pi_unknown")
	requireCode(t, err, pkgerrors.CodeNotFound)
}

// backdate moves an order and its payments into the past so the staleness
// predicate sees them as old.
func (h *harness) backdate(t *testing.T, orderID uuid.UUID, at time.Time) {
	t.Helper()
	require.NoError(t, h.conn.Model(&models.Order{}).Where("id = ?", orderID).UpdateColumn("created_at", at).Error)
	require.NoError(t, h.conn.Model(&models.Payment{}).Where("order_id = ?", orderID).UpdateColumn("created_at", at).Error)
}

func TestReminderIsSentOnceThenOrderExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	checkout := h.book(t, 1, 1)
	id := checkout.Order.ID
	h.backdate(t, id, h.now.Add(-35*time.Minute))

	staleForReminder := h.now.Add(-15 * time.Minute)
	ids, err := h.svc.ListAwaitingPayment(ctx, staleForReminder, true, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, ids)

	sent, err := h.svc.SendPaymentReminder(ctx, SystemActor(), id, staleForReminder)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = h.svc.SendPaymentReminder(ctx, SystemActor(), id, staleForReminder)
	require.NoError(t, err)
	assert.False(t, sent)

	ids, err = h.svc.ListAwaitingPayment(ctx, staleForReminder, true, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	expired, err := h.svc.ExpireOrder(ctx, SystemActor(), id, h.now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.True(t, expired)

	order := h.order(t, id)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	require.NotNil(t, order.CancellationActor)
	assert.Equal(t, "system", *order.CancellationActor)
	assert.Equal(t, []enums.NotificationKind{
		enums.NotificationKindPaymentReminder,
		enums.NotificationKindOrderCancelledSystem,
	}, h.kinds(t, id))

	expired, err = h.svc.ExpireOrder(ctx, SystemActor(), id, h.now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestExpireSkipsFreshCheckout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	checkout := h.book(t, 1, 1)
	h.backdate(t, checkout.Order.ID, h.now.Add(-40*time.Minute))

	_, err := h.svc.RecordPaymentFailure(ctx, SystemActor(), checkout.Order.ID, checkout.PaymentIntentID, "")
	require.NoError(t, err)
	_, err = h.svc.RetryCheckout(ctx, h.customerActor(), checkout.Order.ID)
	require.NoError(t, err)

	// the retry payment is newer than the cutoff
	require.NoError(t, h.conn.Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", checkout.Order.ID, enums.PaymentStatusPending).
		UpdateColumn("created_at", h.now.Add(-time.Minute)).Error)

	expired, err := h.svc.ExpireOrder(ctx, SystemActor(), checkout.Order.ID, h.now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, enums.OrderStatusPending, h.order(t, checkout.Order.ID).Status)
}

func TestExpireSkipsPaidOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	checkout := h.book(t, 1, 1)
	h.backdate(t, checkout.Order.ID, h.now.Add(-40*time.Minute))

	_, err := h.svc.ConfirmPayment(ctx, SystemActor(), checkout.Order.ID, checkout.PaymentIntentID, "")
	require.NoError(t, err)

	expired, err := h.svc.ExpireOrder(ctx, SystemActor(), checkout.Order.ID, h.now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.False(t, expired)

	sent, err := h.svc.SendPaymentReminder(ctx, SystemActor(), checkout.Order.ID, h.now)
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestReaperActionsRequireSystemActor(t *testing.T) {
	h := newHarness(t)
	checkout := h.book(t, 1, 1)

	_, err := h.svc.ExpireOrder(context.Background(), h.customerActor(), checkout.Order.ID, h.now)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = h.svc.SendPaymentReminder(context.Background(), h.operatorActor(), checkout.Order.ID, h.now)
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "JPY 20000", formatAmount(decimal.NewFromInt(20000), "jpy"))
	assert.Equal(t, "USD 12.50", formatAmount(decimal.RequireFromString("12.5"), "usd"))
	assert.Equal(t, "XOF 20000", formatAmount(decimal.NewFromInt(20000), "xof"))
	assert.Equal(t, "KWD 3.250", formatAmount(decimal.RequireFromString("3.25"), "kwd"))
}

func TestNewOrderNumberShape(t *testing.T) {
	number, err := newOrderNumber(time.Date(2026, 1, 2, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Regexp(t, `^DA-20260102-[A-HJ-NP-Z2-9]{6}$`, number)
}
