package orders

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/driveaway-backend/pkg/db/models"
	"github.com/angelmondragon/driveaway-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
)

// Action names an order capability.
type Action string

const (
	ActionCreate               Action = "create"
	ActionView                 Action = "view"
	ActionRetryCheckout        Action = "retry_checkout"
	ActionCancel               Action = "cancel"
	ActionStart                Action = "start"
	ActionComplete             Action = "complete"
	ActionRefund               Action = "refund"
	ActionConfirmPayment       Action = "confirm_payment"
	ActionRecordPaymentFailure Action = "record_payment_failure"
	ActionRemind               Action = "remind"
	ActionExpire               Action = "expire"
)

// Actor is whoever invokes an order operation: an authenticated user or the
// system itself (webhooks, the reaper).
type Actor struct {
	UserID  uuid.UUID
	Role    enums.UserRole
	StoreID *uuid.UUID
	system  bool
}

// SystemActor is used by background work and verified provider callbacks.
func SystemActor() Actor {
	return Actor{system: true}
}

// UserActor builds an actor from authenticated claims.
func UserActor(userID uuid.UUID, role enums.UserRole, storeID *uuid.UUID) Actor {
	return Actor{UserID: userID, Role: role, StoreID: storeID}
}

func (a Actor) IsSystem() bool {
	return a.system
}

// Label is the value stored as the cancellation actor and logged.
func (a Actor) Label() string {
	if a.system {
		return "system"
	}
	return a.Role.String()
}

var systemActions = map[Action]bool{
	ActionConfirmPayment:       true,
	ActionRecordPaymentFailure: true,
	ActionRemind:               true,
	ActionExpire:               true,
}

// Policy is the single capability check every order entry point runs first.
type Policy struct{}

// Authorize returns FORBIDDEN when actor may not perform action on order.
// order is nil for ActionCreate.
func (Policy) Authorize(actor Actor, action Action, order *models.Order) error {
	if actor.system {
		if systemActions[action] || action == ActionCancel || action == ActionView {
			return nil
		}
		return forbidden(action)
	}
	if systemActions[action] {
		return forbidden(action)
	}
	if actor.UserID == uuid.Nil || !actor.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if actor.Role == enums.UserRoleAdmin {
		return nil
	}

	switch action {
	case ActionCreate:
		if actor.Role == enums.UserRoleCustomer {
			return nil
		}
	case ActionRetryCheckout:
		if order != nil && owns(actor, order) {
			return nil
		}
	case ActionView, ActionCancel:
		if order != nil && (owns(actor, order) || staffOf(actor, order)) {
			return nil
		}
	case ActionStart, ActionComplete, ActionRefund:
		if order != nil && staffOf(actor, order) {
			return nil
		}
	}
	return forbidden(action)
}

func owns(actor Actor, order *models.Order) bool {
	return order.UserID == actor.UserID
}

func staffOf(actor Actor, order *models.Order) bool {
	return actor.Role == enums.UserRoleOperator && actor.StoreID != nil && *actor.StoreID == order.StoreID
}

func forbidden(action Action) error {
	return pkgerrors.Newf(pkgerrors.CodeForbidden, "not allowed to %s this order", strings.ReplaceAll(string(action), "_", " "))
}
