package domain

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PlanCategory groups hosting tiers on the catalog page
type PlanCategory string

const (
	CategoryMinecraft PlanCategory = "minecraft"
	CategoryVPS       PlanCategory = "vps"
	CategoryVLSS      PlanCategory = "vlss"
	CategoryV2Ray     PlanCategory = "v2ray"
)

// Valid reports whether c is a known category
func (c PlanCategory) Valid() bool {
	switch c {
	case CategoryMinecraft, CategoryVPS, CategoryVLSS, CategoryV2Ray:
		return true
	}
	return false
}

// StorageType is the disk medium backing a plan
type StorageType string

const (
	StorageSSD  StorageType = "SSD"
	StorageNVMe StorageType = "NVMe"
)

// Valid reports whether s is a known storage medium
func (s StorageType) Valid() bool {
	return s == StorageSSD || s == StorageNVMe
}

// Plan represents a purchasable hosting tier
type Plan struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    PlanCategory    `json:"category"`
	PriceUSD    decimal.Decimal `json:"price_usd"`
	PriceLKR    decimal.Decimal `json:"price_lkr"`
	VCPU        int             `json:"vcpu"`
	RAM         int             `json:"ram"`     // GB
	Storage     int             `json:"storage"` // GB
	StorageType StorageType     `json:"storage_type"`
	IsPopular   bool            `json:"is_popular"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// UnitPrice returns the independently authored price for the currency.
// No conversion happens; an unknown currency prices at zero.
func (p *Plan) UnitPrice(currency Currency) decimal.Decimal {
	switch currency {
	case CurrencyUSD:
		return p.PriceUSD
	case CurrencyLKR:
		return p.PriceLKR
	}
	return decimal.Zero
}

// Validate checks the invariants of a complete plan record
func (p *Plan) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !p.Category.Valid() {
		problems = append(problems, "category must be one of minecraft, vps, vlss, v2ray")
	}
	if p.PriceUSD.IsNegative() {
		problems = append(problems, "price_usd must not be negative")
	}
	if p.PriceLKR.IsNegative() {
		problems = append(problems, "price_lkr must not be negative")
	}
	if !p.StorageType.Valid() {
		problems = append(problems, "storage_type must be SSD or NVMe")
	}
	if p.VCPU < 0 || p.RAM < 0 || p.Storage < 0 {
		problems = append(problems, "vcpu, ram and storage must not be negative")
	}
	return NewValidationError(problems...)
}

// PlanPatch is a partial plan update; nil fields are left untouched.
// The id is deliberately absent: plan ids are immutable.
type PlanPatch struct {
	Name        *string          `json:"name,omitempty"`
	Category    *PlanCategory    `json:"category,omitempty"`
	PriceUSD    *decimal.Decimal `json:"price_usd,omitempty"`
	PriceLKR    *decimal.Decimal `json:"price_lkr,omitempty"`
	VCPU        *int             `json:"vcpu,omitempty"`
	RAM         *int             `json:"ram,omitempty"`
	Storage     *int             `json:"storage,omitempty"`
	StorageType *StorageType     `json:"storage_type,omitempty"`
	IsPopular   *bool            `json:"is_popular,omitempty"`
}

// Apply copies the set fields onto p
func (patch *PlanPatch) Apply(p *Plan) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.PriceUSD != nil {
		p.PriceUSD = *patch.PriceUSD
	}
	if patch.PriceLKR != nil {
		p.PriceLKR = *patch.PriceLKR
	}
	if patch.VCPU != nil {
		p.VCPU = *patch.VCPU
	}
	if patch.RAM != nil {
		p.RAM = *patch.RAM
	}
	if patch.Storage != nil {
		p.Storage = *patch.Storage
	}
	if patch.StorageType != nil {
		p.StorageType = *patch.StorageType
	}
	if patch.IsPopular != nil {
		p.IsPopular = *patch.IsPopular
	}
}

// PlanFilter narrows catalog listings
type PlanFilter struct {
	Category PlanCategory
}

// PlanRepository defines operations for managing the plan catalog
type PlanRepository interface {
	FetchAll(ctx context.Context, filter PlanFilter) ([]*Plan, error)
	GetByID(ctx context.Context, id string) (*Plan, error)
	Create(ctx context.Context, plan *Plan) error
	Update(ctx context.Context, id string, patch PlanPatch) (*Plan, error)
	Delete(ctx context.Context, id string) error
}

// Validate checks only the fields the patch sets
func (patch *PlanPatch) Validate() error {
	var problems []string
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		problems = append(problems, "name must not be empty")
	}
	if patch.Category != nil && !patch.Category.Valid() {
		problems = append(problems, "category must be one of minecraft, vps, vlss, v2ray")
	}
	if patch.PriceUSD != nil && patch.PriceUSD.IsNegative() {
		problems = append(problems, "price_usd must not be negative")
	}
	if patch.PriceLKR != nil && patch.PriceLKR.IsNegative() {
		problems = append(problems, "price_lkr must not be negative")
	}
	if patch.StorageType != nil && !patch.StorageType.Valid() {
		problems = append(problems, "storage_type must be SSD or NVMe")
	}
	return NewValidationError(problems...)
}
