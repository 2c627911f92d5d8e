package domain

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// CustomerStatus is the account standing of a customer
type CustomerStatus string

const (
	CustomerActive    CustomerStatus = "active"
	CustomerSuspended CustomerStatus = "suspended"
	CustomerBanned    CustomerStatus = "banned"
)

// Valid reports whether s is a known status
func (s CustomerStatus) Valid() bool {
	return s == CustomerActive || s == CustomerSuspended || s == CustomerBanned
}

// Customer is a storefront buyer, keyed by email
type Customer struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Name      string         `json:"name"`
	Phone     string         `json:"phone,omitempty"`
	Status    CustomerStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[\+]?[1-9][\d]{3,14}$`)
)

// ValidEmail reports whether email looks like a deliverable address
func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// NormalizePhone strips whitespace from a phone number
func NormalizePhone(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}

// ValidPhone accepts an optional leading + and 4 to 15 digits, ignoring spaces
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(NormalizePhone(phone))
}

// NormalizeEmail produces the lookup key for customer emails
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks the invariants of a complete customer record
func (c *Customer) Validate() error {
	var problems []string
	if !strings.Contains(c.Email, "@") {
		problems = append(problems, "email must be a valid address")
	}
	if strings.TrimSpace(c.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !c.Status.Valid() {
		problems = append(problems, "status must be one of active, suspended, banned")
	}
	return NewValidationError(problems...)
}

// CustomerPatch is a partial customer update
type CustomerPatch struct {
	Name   *string         `json:"name,omitempty"`
	Phone  *string         `json:"phone,omitempty"`
	Status *CustomerStatus `json:"status,omitempty"`
}

// Apply copies the set fields onto c
func (patch *CustomerPatch) Apply(c *Customer) {
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Phone != nil {
		c.Phone = *patch.Phone
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
}

// CustomerRepository defines operations for managing customers
type CustomerRepository interface {
	FetchAll(ctx context.Context) ([]*Customer, error)
	GetByID(ctx context.Context, id string) (*Customer, error)
	GetByEmail(ctx context.Context, email string) (*Customer, error)
	Create(ctx context.Context, c *Customer) error
	// UpsertByEmail refreshes name and phone of an existing customer or creates an active one
	UpsertByEmail(ctx context.Context, c *Customer) error
	Update(ctx context.Context, id string, patch CustomerPatch) (*Customer, error)
	Delete(ctx context.Context, id string) error
}
