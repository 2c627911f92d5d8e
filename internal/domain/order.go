package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the settlement state of an order
type OrderStatus string

// Order status constants
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition may leave s
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed || s == OrderStatusCancelled
}

// CanTransition reports whether an order in s may move to next.
// pending is the only state with outgoing transitions.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return s == OrderStatusPending && next.IsTerminal()
}

// OrderItem is the line snapshot an order was priced from
type OrderItem struct {
	PlanID   string          `json:"plan_id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	PriceUSD decimal.Decimal `json:"price_usd"`
	PriceLKR decimal.Decimal `json:"price_lkr"`
}

// Order represents a purchase attempt and its settlement status.
// The payhere_* json names are kept for wire compatibility with the storefront client.
type Order struct {
	ID               string          `json:"id"`
	UserEmail        string          `json:"user_email"`
	CustomerName     string          `json:"customer_name,omitempty"`
	CustomerPhone    string          `json:"customer_phone,omitempty"`
	PlanID           string          `json:"plan_id"`
	Items            []OrderItem     `json:"items,omitempty"`
	Status           OrderStatus     `json:"status"`
	AmountUSD        decimal.Decimal `json:"amount_usd"`
	AmountLKR        decimal.Decimal `json:"amount_lkr"`
	Currency         Currency        `json:"currency"`
	PromoCode        string          `json:"promo_code,omitempty"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	PromoRedeemed    bool            `json:"promo_redeemed"`
	GatewayOrderID   string          `json:"payhere_order_id"`
	GatewayPaymentID *string         `json:"payhere_payment_id"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Amount returns the amount charged in the settlement currency
func (o *Order) Amount() decimal.Decimal {
	if o.Currency == CurrencyLKR {
		return o.AmountLKR
	}
	return o.AmountUSD
}

// NeedsPromoRedemption reports whether a completed order still owes a usage increment
func (o *Order) NeedsPromoRedemption() bool {
	return o.Status == OrderStatusCompleted && o.PromoCode != "" && !o.PromoRedeemed
}

// Validate checks the fields every stored order must carry
func (o *Order) Validate() error {
	var problems []string
	if o.UserEmail == "" {
		problems = append(problems, "user_email is required")
	}
	if o.PlanID == "" {
		problems = append(problems, "plan_id is required")
	}
	if !o.Currency.Valid() {
		problems = append(problems, "currency must be USD or LKR")
	}
	if o.AmountUSD.IsNegative() || o.AmountLKR.IsNegative() {
		problems = append(problems, "amounts must not be negative")
	}
	if o.Status != "" && !o.Status.Valid() {
		problems = append(problems, "status is not a known order status")
	}
	return NewValidationError(problems...)
}

// StatusChange is a terminal transition request handed to the store
type StatusChange struct {
	Status        OrderStatus
	PaymentID     *string
	FailureReason string
}

// OrderFilter narrows order listings; zero values mean no restriction
type OrderFilter struct {
	Status        OrderStatus
	CreatedBefore time.Time
	Limit         int
	Offset        int
}

// OrderRepository defines operations for managing orders
type OrderRepository interface {
	FetchAll(ctx context.Context, filter OrderFilter) ([]*Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	Create(ctx context.Context, order *Order) error
	FindByGatewayReference(ctx context.Context, ref string) (*Order, error)
	// TransitionStatus applies change only while the stored order is pending.
	// It returns the stored order and whether this call performed the transition.
	TransitionStatus(ctx context.Context, id string, change StatusChange) (*Order, bool, error)
	MarkPromoRedeemed(ctx context.Context, id string) error
}
