package domain

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects how a promo value is interpreted
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Valid reports whether t is a known discount type
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// Rejection reasons reported by PromoCode.Evaluate
const (
	PromoReasonNotFound         = "not_found"
	PromoReasonInactive         = "inactive"
	PromoReasonExpired          = "expired"
	PromoReasonExhausted        = "exhausted"
	PromoReasonCurrencyMismatch = "currency_mismatch"
)

// PromoCode is a named discount rule with usage and time constraints
type PromoCode struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Currency      Currency        `json:"currency,omitempty"` // empty means any currency
	UsageLimit    *int            `json:"usage_limit"`
	UsageCount    int             `json:"usage_count"`
	ExpiresAt     *time.Time      `json:"expires_at"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NormalizePromoCode produces the case-insensitive lookup key
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Discount is the outcome of evaluating a promo code against a subtotal
type Discount struct {
	Applied  bool            `json:"applied"`
	Code     string          `json:"code,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Amount   decimal.Decimal `json:"discount_amount"`
	Total    decimal.Decimal `json:"final_total"`
	Currency Currency        `json:"currency"`
}

// NoDiscount leaves the subtotal untouched and records why
func NoDiscount(subtotal decimal.Decimal, currency Currency, reason string) Discount {
	return Discount{
		Reason:   reason,
		Subtotal: subtotal,
		Amount:   decimal.Zero,
		Total:    subtotal,
		Currency: currency,
	}
}

// Applicable reports whether the code may be used right now, and why not otherwise
func (p *PromoCode) Applicable(currency Currency, now time.Time) (bool, string) {
	if !p.IsActive {
		return false, PromoReasonInactive
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return false, PromoReasonExpired
	}
	if p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit {
		return false, PromoReasonExhausted
	}
	if p.Currency != "" && p.Currency != currency {
		return false, PromoReasonCurrencyMismatch
	}
	return true, ""
}

// Evaluate computes the discount for subtotal. It has no side effects.
func (p *PromoCode) Evaluate(subtotal decimal.Decimal, currency Currency, now time.Time) Discount {
	if ok, reason := p.Applicable(currency, now); !ok {
		return NoDiscount(subtotal, currency, reason)
	}

	var amount decimal.Decimal
	switch p.DiscountType {
	case DiscountPercentage:
		amount = RoundMoney(subtotal.Mul(p.DiscountValue).Div(decimal.NewFromInt(100)))
	default:
		amount = p.DiscountValue
	}
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Discount{
		Applied:  true,
		Code:     p.Code,
		Subtotal: subtotal,
		Amount:   amount,
		Total:    decimal.Max(subtotal.Sub(amount), decimal.Zero),
		Currency: currency,
	}
}

// Validate checks the invariants of a complete promo record
func (p *PromoCode) Validate() error {
	var problems []string
	if NormalizePromoCode(p.Code) == "" {
		problems = append(problems, "code is required")
	}
	if !p.DiscountType.Valid() {
		problems = append(problems, "discount_type must be percentage or fixed")
	}
	if !p.DiscountValue.IsPositive() {
		problems = append(problems, "discount_value must be positive")
	}
	if p.DiscountType == DiscountPercentage && p.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		problems = append(problems, "percentage discount_value must not exceed 100")
	}
	if p.DiscountType == DiscountFixed && p.Currency == "" {
		problems = append(problems, "fixed discounts need a currency")
	}
	if p.Currency != "" && !p.Currency.Valid() {
		problems = append(problems, "currency must be USD or LKR")
	}
	if p.UsageLimit != nil && *p.UsageLimit < 0 {
		problems = append(problems, "usage_limit must not be negative")
	}
	if p.UsageCount < 0 {
		problems = append(problems, "usage_count must not be negative")
	}
	if p.UsageLimit != nil && p.UsageCount > *p.UsageLimit {
		problems = append(problems, "usage_count must not exceed usage_limit")
	}
	return NewValidationError(problems...)
}

// PromoCodePatch is a partial promo update. ClearUsageLimit and ClearExpiry
// reset the nullable fields back to unlimited / never.
type PromoCodePatch struct {
	Code            *string          `json:"code,omitempty"`
	DiscountType    *DiscountType    `json:"discount_type,omitempty"`
	DiscountValue   *decimal.Decimal `json:"discount_value,omitempty"`
	Currency        *Currency        `json:"currency,omitempty"`
	UsageLimit      *int             `json:"usage_limit,omitempty"`
	ClearUsageLimit bool             `json:"clear_usage_limit,omitempty"`
	ExpiresAt       *time.Time       `json:"expires_at,omitempty"`
	ClearExpiry     bool             `json:"clear_expiry,omitempty"`
	IsActive        *bool            `json:"is_active,omitempty"`
}

// Apply copies the set fields onto p
func (patch *PromoCodePatch) Apply(p *PromoCode) {
	if patch.Code != nil {
		p.Code = NormalizePromoCode(*patch.Code)
	}
	if patch.DiscountType != nil {
		p.DiscountType = *patch.DiscountType
	}
	if patch.DiscountValue != nil {
		p.DiscountValue = *patch.DiscountValue
	}
	if patch.Currency != nil {
		p.Currency = *patch.Currency
	}
	if patch.ClearUsageLimit {
		p.UsageLimit = nil
	} else if patch.UsageLimit != nil {
		limit := *patch.UsageLimit
		p.UsageLimit = &limit
	}
	if patch.ClearExpiry {
		p.ExpiresAt = nil
	} else if patch.ExpiresAt != nil {
		exp := patch.ExpiresAt.UTC()
		p.ExpiresAt = &exp
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
}

// PromoCodeRepository defines operations for managing promo codes
type PromoCodeRepository interface {
	FetchAll(ctx context.Context) ([]*PromoCode, error)
	GetByID(ctx context.Context, id string) (*PromoCode, error)
	GetByCode(ctx context.Context, code string) (*PromoCode, error)
	Create(ctx context.Context, promo *PromoCode) error
	Update(ctx context.Context, id string, patch PromoCodePatch) (*PromoCode, error)
	Delete(ctx context.Context, id string) error
	// IncrementUsage bumps usage_count only while it is below usage_limit.
	// It returns ErrPromoExhausted when the limit is already reached.
	IncrementUsage(ctx context.Context, id string) error
}
