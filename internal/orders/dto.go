package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/driveaway-backend/pkg/db/models"
	"github.com/angelmondragon/driveaway-backend/pkg/enums"
)

// CreateOrderInput is a validated booking request. Exactly one of VehicleID
// and PackageID is set.
type CreateOrderInput struct {
	VehicleID *uuid.UUID
	PackageID *uuid.UUID
	StartDate time.Time
	EndDate   time.Time
}

// ListParams filters a user's order history.
type ListParams struct {
	UserID uuid.UUID
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

// Outcome reports what a payment callback did to its order.
type Outcome string

const (
	// OutcomeApplied means the callback changed state.
	OutcomeApplied Outcome = "applied"
	// OutcomeReplay means the callback was already applied.
	OutcomeReplay Outcome = "replay"
	// OutcomeIgnored means the order can no longer accept the callback.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeNeedsReview means money was captured for an order that can no
	// longer be confirmed. An operator has to refund or reinstate it.
	OutcomeNeedsReview Outcome = "needs_review"
)

// Checkout is returned when a payment attempt is opened.
type Checkout struct {
	Order           OrderView `json:"order"`
	PaymentID       uuid.UUID `json:"payment_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	ClientSecret    string    `json:"client_secret"`
}

// OrderView is the API representation of an order.
type OrderView struct {
	ID          uuid.UUID         `json:"id"`
	OrderNumber string            `json:"order_number"`
	UserID      uuid.UUID         `json:"user_id"`
	StoreID     uuid.UUID         `json:"store_id"`
	VehicleID   *uuid.UUID        `json:"vehicle_id,omitempty"`
	PackageID   *uuid.UUID        `json:"package_id,omitempty"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `json:"end_date"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Currency    string            `json:"currency"`
	Status      enums.OrderStatus `json:"status"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Payments    []PaymentView     `json:"payments,omitempty"`
}

// PaymentView is one payment attempt as shown to the owner.
type PaymentView struct {
	ID              uuid.UUID           `json:"id"`
	Amount          decimal.Decimal     `json:"amount"`
	Currency        string              `json:"currency"`
	Status          enums.PaymentStatus `json:"status"`
	PaymentIntentID *string             `json:"payment_intent_id,omitempty"`
	FailureReason   *string             `json:"failure_reason,omitempty"`
	SettledAt       *time.Time          `json:"settled_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// ListResult is one page of orders.
type ListResult struct {
	Items  []OrderView `json:"items"`
	Cursor string      `json:"cursor"`
}

func toView(order *models.Order) OrderView {
	view := OrderView{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		StoreID:     order.StoreID,
		VehicleID:   order.VehicleID,
		PackageID:   order.PackageID,
		StartDate:   order.StartDate,
		EndDate:     order.EndDate,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		Status:      order.Status,
		CancelledAt: order.CancelledAt,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	for _, p := range order.Payments {
		view.Payments = append(view.Payments, PaymentView{
			ID:              p.ID,
			Amount:          p.Amount,
			Currency:        p.Currency,
			Status:          p.Status,
			PaymentIntentID: p.PaymentIntentID,
			FailureReason:   p.FailureReason,
			SettledAt:       p.SettledAt,
			CreatedAt:       p.CreatedAt,
		})
	}
	return view
}
