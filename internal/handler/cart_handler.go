package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sodcloud/storefront/internal/domain"
	"github.com/sodcloud/storefront/internal/middleware"
	"github.com/sodcloud/storefront/internal/service"
	"go.uber.org/zap"
)

// CartHandler exposes the session cart and promo evaluation
type CartHandler struct {
	carts  *service.CartService
	promos *service.PromoService
	logger *zap.Logger
}

func NewCartHandler(carts *service.CartService, promos *service.PromoService, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, promos: promos, logger: logger}
}

// CartView is the cart as rendered to the storefront
type CartView struct {
	SessionID  string                              `json:"session_id"`
	Items      []domain.CartLine                   `json:"items"`
	TotalItems int                                 `json:"total_items"`
	Totals     map[domain.Currency]decimal.Decimal `json:"totals"`
	UpdatedAt  time.Time                           `json:"updated_at"`
}

func newCartView(sessionID string, cart *domain.Cart) CartView {
	totals := make(map[domain.Currency]decimal.Decimal, len(domain.Currencies))
	for _, currency := range domain.Currencies {
		totals[currency] = cart.TotalPrice(currency)
	}
	return CartView{
		SessionID:  sessionID,
		Items:      cart.Lines,
		TotalItems: cart.TotalItems(),
		Totals:     totals,
		UpdatedAt:  cart.UpdatedAt,
	}
}

// respondCart renders a mutation result. A cart kept only in memory is still a 200.
func (h *CartHandler) respondCart(c *fiber.Ctx, cart *domain.Cart, err error) error {
	persisted := true
	if err != nil {
		if !errors.Is(err, domain.ErrCartNotPersisted) || cart == nil {
			if errors.Is(err, domain.ErrNotFound) {
				return notFound(c, "Plan")
			}
			return respondError(c, h.logger, err)
		}
		persisted = false
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"cart":      newCartView(middleware.CartSessionID(c), cart),
		"persisted": persisted,
	})
}

// GetCart handles GET /api/cart
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	cart := h.carts.Get(c.UserContext(), middleware.CartSessionID(c))
	return h.respondCart(c, cart, nil)
}

type addItemRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// AddItem handles POST /api/cart/items
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req addItemRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	cart, err := h.carts.AddItem(c.UserContext(), middleware.CartSessionID(c), req.PlanID)
	return h.respondCart(c, cart, err)
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// UpdateItem handles PUT /api/cart/items/:planId
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	var req updateQuantityRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	cart, err := h.carts.UpdateQuantity(c.UserContext(), middleware.CartSessionID(c), c.Params("planId"), *req.Quantity)
	return h.respondCart(c, cart, err)
}

// RemoveItem handles DELETE /api/cart/items/:planId
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	cart, err := h.carts.RemoveItem(c.UserContext(), middleware.CartSessionID(c), c.Params("planId"))
	return h.respondCart(c, cart, err)
}

// ClearCart handles DELETE /api/cart
func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	cart, err := h.carts.Clear(c.UserContext(), middleware.CartSessionID(c))
	return h.respondCart(c, cart, err)
}

// Totals handles GET /api/cart/totals?currency=&promo_code=
func (h *CartHandler) Totals(c *fiber.Ctx) error {
	currency, err := domain.ParseCurrency(c.Query("currency", string(domain.CurrencyUSD)))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	cart := h.carts.Get(c.UserContext(), middleware.CartSessionID(c))
	discount, err := h.promos.Evaluate(c.UserContext(), c.Query("promo_code"), cart.TotalPrice(currency), currency)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"total_items": cart.TotalItems(),
		"totals":      discount,
	})
}

type validatePromoRequest struct {
	Code     string          `json:"code" validate:"required"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Currency string          `json:"currency" validate:"required,currency"`
}

// ValidatePromo handles POST /api/promo/validate
func (h *CartHandler) ValidatePromo(c *fiber.Ctx) error {
	var req validatePromoRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	if req.Subtotal.IsNegative() {
		return respondError(c, h.logger, domain.NewValidationError("subtotal must not be negative"))
	}
	currency, _ := domain.ParseCurrency(req.Currency)

	discount, err := h.promos.Evaluate(c.UserContext(), req.Code, req.Subtotal, currency)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"valid":    discount.Applied,
		"discount": discount,
	})
}
