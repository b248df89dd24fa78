package orders

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/driveaway-backend/pkg/db/models"
	"github.com/angelmondragon/driveaway-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
)

func TestTransitionTable(t *testing.T) {
	allowed := map[[2]enums.OrderStatus]bool{
		{enums.OrderStatusPending, enums.OrderStatusConfirmed}:   true,
		{enums.OrderStatusPending, enums.OrderStatusCancelled}:   true,
		{enums.OrderStatusConfirmed, enums.OrderStatusOngoing}:   true,
		{enums.OrderStatusConfirmed, enums.OrderStatusCancelled}: true,
		{enums.OrderStatusConfirmed, enums.OrderStatusRefunded}:  true,
		{enums.OrderStatusOngoing, enums.OrderStatusCompleted}:   true,
		{enums.OrderStatusCompleted, enums.OrderStatusRefunded}:  true,
	}
	statuses := []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusOngoing,
		enums.OrderStatusCompleted,
		enums.OrderStatusCancelled,
		enums.OrderStatusRefunded,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]enums.OrderStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCheckTransitionCarriesDetails(t *testing.T) {
	err := CheckTransition(enums.OrderStatusCancelled, enums.OrderStatusConfirmed)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Equal(t, map[string]string{"from": "CANCELLED", "to": "CONFIRMED"}, typed.Details())
}

func TestPolicyAuthorize(t *testing.T) {
	storeID := uuid.New()
	otherStore := uuid.New()
	owner := uuid.New()
	order := &models.Order{UserID: owner, StoreID: storeID}

	customer := UserActor(owner, enums.UserRoleCustomer, nil)
	otherCustomer := UserActor(uuid.New(), enums.UserRoleCustomer, nil)
	staff := UserActor(uuid.New(), enums.UserRoleOperator, &storeID)
	foreignStaff := UserActor(uuid.New(), enums.UserRoleOperator, &otherStore)
	admin := UserActor(uuid.New(), enums.UserRoleAdmin, nil)
	system := SystemActor()

	cases := []struct {
		name   string
		actor  Actor
		action Action
		order  *models.Order
		want   pkgerrors.Code
	}{
		{"customer creates", customer, ActionCreate, nil, ""},
		{"operator cannot create", staff, ActionCreate, nil, pkgerrors.CodeForbidden},
		{"owner views", customer, ActionView, order, ""},
		{"stranger cannot view", otherCustomer, ActionView, order, pkgerrors.CodeForbidden},
		{"staff views", staff, ActionView, order, ""},
		{"foreign staff cannot view", foreignStaff, ActionView, order, pkgerrors.CodeForbidden},
		{"owner cancels", customer, ActionCancel, order, ""},
		{"staff cancels", staff, ActionCancel, order, ""},
		{"owner retries checkout", customer, ActionRetryCheckout, order, ""},
		{"staff cannot retry checkout", staff, ActionRetryCheckout, order, pkgerrors.CodeForbidden},
		{"owner cannot start", customer, ActionStart, order, pkgerrors.CodeForbidden},
		{"staff starts", staff, ActionStart, order, ""},
		{"staff refunds", staff, ActionRefund, order, ""},
		{"admin refunds", admin, ActionRefund, order, ""},
		{"admin cannot confirm payment", admin, ActionConfirmPayment, order, pkgerrors.CodeForbidden},
		{"system confirms payment", system, ActionConfirmPayment, nil, ""},
		{"system expires", system, ActionExpire, nil, ""},
		{"system cancels", system, ActionCancel, order, ""},
		{"system cannot refund", system, ActionRefund, order, pkgerrors.CodeForbidden},
		{"anonymous", Actor{}, ActionView, order, pkgerrors.CodeUnauthorized},
	}

	var policy Policy
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Authorize(tc.actor, tc.action, tc.order)
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.want, pkgerrors.CodeOf(err))
		})
	}
}

func TestActorLabel(t *testing.T) {
	assert.Equal(t, "system", SystemActor().Label())
	assert.Equal(t, "customer", UserActor(uuid.New(), enums.UserRoleCustomer, nil).Label())
	assert.True(t, SystemActor().IsSystem())
}
