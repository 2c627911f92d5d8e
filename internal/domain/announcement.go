package domain

import (
	"context"
	"strings"
	"time"
)

// AnnouncementType drives the banner styling on the storefront
type AnnouncementType string

const (
	AnnouncementInfo    AnnouncementType = "info"
	AnnouncementWarning AnnouncementType = "warning"
	AnnouncementSuccess AnnouncementType = "success"
	AnnouncementError   AnnouncementType = "error"
)

// Valid reports whether t is a known announcement type
func (t AnnouncementType) Valid() bool {
	switch t {
	case AnnouncementInfo, AnnouncementWarning, AnnouncementSuccess, AnnouncementError:
		return true
	}
	return false
}

// Page names the storefront surfaces an announcement can target
type Page string

const (
	PageHomepage Page = "homepage"
	PagePlans    Page = "plans"
	PageCheckout Page = "checkout"
)

// Announcement is a site banner
type Announcement struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	Type           AnnouncementType `json:"type"`
	IsActive       bool             `json:"is_active"`
	ShowOnHomepage bool             `json:"show_on_homepage"`
	ShowOnPlans    bool             `json:"show_on_plans"`
	ShowOnCheckout bool             `json:"show_on_checkout"`
	ExpiresAt      *time.Time       `json:"expires_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// VisibleOn reports whether the banner should render on page at now.
// An empty page matches any active, unexpired banner.
func (a *Announcement) VisibleOn(page Page, now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return false
	}
	switch page {
	case PageHomepage:
		return a.ShowOnHomepage
	case PagePlans:
		return a.ShowOnPlans
	case PageCheckout:
		return a.ShowOnCheckout
	}
	return true
}

// Validate checks the invariants of a complete announcement
func (a *Announcement) Validate() error {
	var problems []string
	if strings.TrimSpace(a.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(a.Message) == "" {
		problems = append(problems, "message is required")
	}
	if !a.Type.Valid() {
		problems = append(problems, "type must be one of info, warning, success, error")
	}
	return NewValidationError(problems...)
}

// AnnouncementPatch is a partial announcement update
type AnnouncementPatch struct {
	Title          *string           `json:"title,omitempty"`
	Message        *string           `json:"message,omitempty"`
	Type           *AnnouncementType `json:"type,omitempty"`
	IsActive       *bool             `json:"is_active,omitempty"`
	ShowOnHomepage *bool             `json:"show_on_homepage,omitempty"`
	ShowOnPlans    *bool             `json:"show_on_plans,omitempty"`
	ShowOnCheckout *bool             `json:"show_on_checkout,omitempty"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"`
	ClearExpiry    bool              `json:"clear_expiry,omitempty"`
}

// Apply copies the set fields onto a
func (patch *AnnouncementPatch) Apply(a *Announcement) {
	if patch.Title != nil {
		a.Title = *patch.Title
	}
	if patch.Message != nil {
		a.Message = *patch.Message
	}
	if patch.Type != nil {
		a.Type = *patch.Type
	}
	if patch.IsActive != nil {
		a.IsActive = *patch.IsActive
	}
	if patch.ShowOnHomepage != nil {
		a.ShowOnHomepage = *patch.ShowOnHomepage
	}
	if patch.ShowOnPlans != nil {
		a.ShowOnPlans = *patch.ShowOnPlans
	}
	if patch.ShowOnCheckout != nil {
		a.ShowOnCheckout = *patch.ShowOnCheckout
	}
	if patch.ClearExpiry {
		a.ExpiresAt = nil
	} else if patch.ExpiresAt != nil {
		exp := patch.ExpiresAt.UTC()
		a.ExpiresAt = &exp
	}
}

// AnnouncementRepository defines operations for managing announcements
type AnnouncementRepository interface {
	FetchAll(ctx context.Context) ([]*Announcement, error)
	FetchActive(ctx context.Context, page Page, now time.Time) ([]*Announcement, error)
	GetByID(ctx context.Context, id string) (*Announcement, error)
	Create(ctx context.Context, a *Announcement) error
	Update(ctx context.Context, id string, patch AnnouncementPatch) (*Announcement, error)
	Delete(ctx context.Context, id string) error
}
