package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sodcloud/storefront/internal/config"
	"github.com/sodcloud/storefront/internal/domain"
	"github.com/sodcloud/storefront/internal/middleware"
	"github.com/sodcloud/storefront/internal/service"
	"go.uber.org/zap"
)

// OrderHandler creates and lists orders
type OrderHandler struct {
	orders     *service.OrderService
	carts      *service.CartService
	paymentCfg config.PaymentConfig
	logger     *zap.Logger
}

func NewOrderHandler(orders *service.OrderService, carts *service.CartService, paymentCfg config.PaymentConfig, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, carts: carts, paymentCfg: paymentCfg, logger: logger}
}

type createOrderRequest struct {
	UserEmail      string          `json:"user_email" validate:"required,email"`
	PlanID         string          `json:"plan_id" validate:"required"`
	AmountUSD      decimal.Decimal `json:"amount_usd"`
	AmountLKR      decimal.Decimal `json:"amount_lkr"`
	Currency       string          `json:"currency" validate:"required,currency"`
	GatewayOrderID string          `json:"payhere_order_id"`
}

// CreateOrder handles POST /api/orders
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	currency, _ := domain.ParseCurrency(req.Currency)

	order := &domain.Order{
		UserEmail:      req.UserEmail,
		PlanID:         req.PlanID,
		AmountUSD:      req.AmountUSD,
		AmountLKR:      req.AmountLKR,
		Currency:       currency,
		DiscountAmount: decimal.Zero,
		GatewayOrderID: req.GatewayOrderID,
	}
	if err := h.orders.RecordOrder(c.UserContext(), order); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "order": order})
}

// ListOrders handles GET /api/orders?status=&limit=&offset=
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	filter, err := orderFilterFromQuery(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	orders, err := h.orders.ListOrders(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"orders": orders})
}

func orderFilterFromQuery(c *fiber.Ctx) (domain.OrderFilter, error) {
	filter := domain.OrderFilter{Status: domain.OrderStatus(c.Query("status"))}
	var problems []string
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			problems = append(problems, "limit must be a number")
		}
		filter.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			problems = append(problems, "offset must be a number")
		}
		filter.Offset = n
	}
	return filter, domain.NewValidationError(problems...)
}

type checkoutCustomer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type checkoutRequest struct {
	Customer   checkoutCustomer `json:"customer"`
	Currency   string           `json:"currency" validate:"required,currency"`
	PromoCode  string           `json:"promo_code"`
	AgreeTerms bool             `json:"agree_terms"`
}

// Checkout handles POST /api/checkout. The pending order is priced from the
// session cart; the cart is kept until the payment completes.
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	if !req.AgreeTerms {
		return respondError(c, h.logger, domain.NewValidationError("Please agree to the terms and conditions"))
	}
	currency, _ := domain.ParseCurrency(req.Currency)

	cart := h.carts.Get(c.UserContext(), middleware.CartSessionID(c))
	order, discount, err := h.orders.CreateOrder(c.UserContext(), service.CreateOrderRequest{
		Customer: service.CustomerInfo{
			FirstName: req.Customer.FirstName,
			LastName:  req.Customer.LastName,
			Email:     req.Customer.Email,
			Phone:     req.Customer.Phone,
		},
		Lines:     cart.Lines,
		Currency:  currency,
		PromoCode: req.PromoCode,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"order":    order,
		"discount": discount,
		"payment": fiber.Map{
			"order_id":      order.GatewayOrderID,
			"amount":        order.Amount(),
			"currency":      order.Currency,
			"merchant_id":   h.paymentCfg.MerchantID,
			"checkout_type": service.CheckoutTypeGooglePay,
			"client_config": service.NewClientConfig(h.paymentCfg),
		},
	})
}
