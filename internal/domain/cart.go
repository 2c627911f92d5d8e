package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CartLine pairs a plan snapshot with the desired quantity.
// The snapshot is taken when the plan is added; later catalog edits do not reach it.
type CartLine struct {
	Plan     Plan `json:"plan"`
	Quantity int  `json:"quantity"`
}

// Cart is the customer's in-progress selection, at most one line per plan id
type Cart struct {
	Lines     []CartLine `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewCart returns an empty cart
func NewCart() *Cart {
	return &Cart{Lines: []CartLine{}}
}

func (c *Cart) indexOf(planID string) int {
	for i := range c.Lines {
		if c.Lines[i].Plan.ID == planID {
			return i
		}
	}
	return -1
}

// AddItem increments the line for plan or appends a new one with quantity 1
func (c *Cart) AddItem(plan Plan) {
	if i := c.indexOf(plan.ID); i >= 0 {
		c.Lines[i].Quantity++
		return
	}
	c.Lines = append(c.Lines, CartLine{Plan: plan, Quantity: 1})
}

// RemoveItem drops the line for planID; absent lines are ignored
func (c *Cart) RemoveItem(planID string) {
	i := c.indexOf(planID)
	if i < 0 {
		return
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
}

// UpdateQuantity replaces the quantity of an existing line.
// A quantity of zero or less removes the line.
func (c *Cart) UpdateQuantity(planID string, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(planID)
		return
	}
	if i := c.indexOf(planID); i >= 0 {
		c.Lines[i].Quantity = quantity
	}
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.Lines = []CartLine{}
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// TotalItems sums the quantities of all lines
func (c *Cart) TotalItems() int {
	total := 0
	for _, line := range c.Lines {
		total += line.Quantity
	}
	return total
}

// TotalPrice sums unit price times quantity in the given currency
func (c *Cart) TotalPrice(currency Currency) decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Plan.UnitPrice(currency).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// Clone returns a deep copy safe to hand outside a lock
func (c *Cart) Clone() *Cart {
	out := &Cart{Lines: make([]CartLine, len(c.Lines)), UpdatedAt: c.UpdatedAt}
	copy(out.Lines, c.Lines)
	return out
}

// Normalize enforces the line invariants on a cart restored from storage:
// non-positive quantities are dropped and duplicate plan ids are merged.
func (c *Cart) Normalize() {
	merged := make([]CartLine, 0, len(c.Lines))
	seen := make(map[string]int, len(c.Lines))
	for _, line := range c.Lines {
		if line.Quantity <= 0 || line.Plan.ID == "" {
			continue
		}
		if i, ok := seen[line.Plan.ID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		seen[line.Plan.ID] = len(merged)
		merged = append(merged, line)
	}
	c.Lines = merged
}

// CartRepository persists carts per cart session
type CartRepository interface {
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, sessionID string, cart *Cart, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}
