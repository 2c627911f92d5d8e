package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sodcloud/storefront/internal/config"
	"github.com/sodcloud/storefront/internal/domain"
	"github.com/sodcloud/storefront/internal/middleware"
	"github.com/sodcloud/storefront/internal/service"
	"go.uber.org/zap"
)

const paymentMethodGooglePay = "google_pay"

// PaymentHandler handles payment-related API endpoints
type PaymentHandler struct {
	orders     *service.OrderService
	monitor    *service.GatewayMonitor
	carts      *service.CartService
	paymentCfg config.PaymentConfig
	logger     *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	orders *service.OrderService,
	monitor *service.GatewayMonitor,
	carts *service.CartService,
	paymentCfg config.PaymentConfig,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		orders:     orders,
		monitor:    monitor,
		carts:      carts,
		paymentCfg: paymentCfg,
		logger:     logger,
	}
}

type paymentCustomer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// CheckoutRequest prepares the payment widget for an order
type CheckoutRequest struct {
	OrderID  string             `json:"order_id"`
	Amount   decimal.Decimal    `json:"amount"`
	Currency string             `json:"currency"`
	Customer *paymentCustomer   `json:"customer"`
	Items    []domain.OrderItem `json:"items"`
}

// CheckoutData is the widget configuration returned to the client
type CheckoutData struct {
	OrderID      string               `json:"order_id"`
	Amount       decimal.Decimal      `json:"amount"`
	Currency     domain.Currency      `json:"currency"`
	MerchantID   string               `json:"merchant_id"`
	CheckoutType string               `json:"checkout_type"`
	ClientConfig service.ClientConfig `json:"client_config"`
}

// Checkout handles POST /api/payment/checkout
func (h *PaymentHandler) Checkout(c *fiber.Ctx) error {
	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}
	if req.OrderID == "" || req.Amount.IsZero() || req.Currency == "" || req.Customer == nil || req.Customer.Email == "" {
		return missingFields(c)
	}

	order, err := h.orders.GetByReference(c.UserContext(), req.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return notFound(c, "Order")
		}
		return respondError(c, h.logger, err)
	}
	if order.Status != domain.OrderStatusPending {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   "Order is already " + string(order.Status),
		})
	}
	if !h.monitor.Ready() {
		return h.unavailable(c)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Checkout session prepared successfully",
		"data": CheckoutData{
			OrderID:      order.GatewayOrderID,
			Amount:       order.Amount(),
			Currency:     order.Currency,
			MerchantID:   h.paymentCfg.MerchantID,
			CheckoutType: service.CheckoutTypeGooglePay,
			ClientConfig: service.NewClientConfig(h.paymentCfg),
		},
	})
}

// AuthorizeRequest carries the payment token produced by the widget
type AuthorizeRequest struct {
	OrderID       string          `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CustomerEmail string          `json:"customer_email"`
	PaymentToken  string          `json:"payment_token"`
}

// AuthorizeData describes a completed payment
type AuthorizeData struct {
	OrderID   string             `json:"order_id"`
	PaymentID string             `json:"payment_id"`
	Amount    decimal.Decimal    `json:"amount"`
	Currency  domain.Currency    `json:"currency"`
	Status    domain.OrderStatus `json:"status"`
	Method    string             `json:"method"`
	CreatedAt time.Time          `json:"created_at"`
}

// Authorize handles POST /api/payment/authorize
func (h *PaymentHandler) Authorize(c *fiber.Ctx) error {
	var req AuthorizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}
	if req.OrderID == "" || req.Amount.IsZero() || req.Currency == "" || req.CustomerEmail == "" {
		return missingFields(c)
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		return respondError(c, h.logger, domain.NewValidationError("currency must be USD or LKR"))
	}

	ctx := c.UserContext()
	order, outcome, err := h.orders.Authorize(ctx, service.AuthorizeRequest{
		Reference: req.OrderID,
		Amount:    req.Amount,
		Currency:  currency,
		Email:     req.CustomerEmail,
		Token:     req.PaymentToken,
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return notFound(c, "Order")
	case errors.Is(err, domain.ErrPaymentUnavailable):
		return h.unavailable(c)
	case errors.Is(err, domain.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   "Order is already " + string(order.Status),
		})
	case errors.Is(err, domain.ErrReconciliation):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success":    false,
			"error":      "Payment authorized but the order could not be updated",
			"order_id":   req.OrderID,
			"payment_id": outcome.PaymentID,
		})
	case err != nil:
		return respondError(c, h.logger, err)
	}

	if outcome.Kind != domain.OutcomeAuthorized {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"success": false,
			"error":   declineMessage(outcome.Kind),
			"reason":  outcome.Reason,
			"data":    fiber.Map{"order_id": order.GatewayOrderID, "status": order.Status},
		})
	}
	if order.Status != domain.OrderStatusCompleted {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   "Order was already " + string(order.Status),
			"data":    fiber.Map{"order_id": order.GatewayOrderID, "status": order.Status},
		})
	}

	if err := h.carts.EndSession(ctx, middleware.CartSessionID(c)); err != nil {
		h.logger.Warn("cart not cleared after payment",
			zap.String("order_id", order.GatewayOrderID),
			zap.Error(err),
		)
	}

	paymentID := outcome.PaymentID
	if order.GatewayPaymentID != nil {
		paymentID = *order.GatewayPaymentID
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment authorized successfully",
		"data": AuthorizeData{
			OrderID:   order.GatewayOrderID,
			PaymentID: paymentID,
			Amount:    order.Amount(),
			Currency:  order.Currency,
			Status:    order.Status,
			Method:    paymentMethodGooglePay,
			CreatedAt: order.UpdatedAt,
		},
	})
}

func declineMessage(kind domain.PaymentOutcomeKind) string {
	switch kind {
	case domain.OutcomeDeclined:
		return "Payment declined"
	case domain.OutcomeCancelled:
		return "Payment cancelled"
	}
	return "Payment processing failed"
}

type cancelRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

// Cancel handles POST /api/payment/cancel when the customer closes the widget
func (h *PaymentHandler) Cancel(c *fiber.Ctx) error {
	var req cancelRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	order, err := h.orders.Cancel(c.UserContext(), req.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return notFound(c, "Order")
		}
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"order_id": order.GatewayOrderID,
		"status":   order.Status,
	})
}

// Status handles GET /api/payment/status
func (h *PaymentHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "data": h.monitor.Status()})
}

// RetryStatus handles POST /api/payment/status/retry
func (h *PaymentHandler) RetryStatus(c *fiber.Ctx) error {
	status := h.monitor.Retry(c.UserContext())
	code := fiber.StatusOK
	if status.Status != service.GatewayReady {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"success": status.Status == service.GatewayReady,
		"data":    status,
	})
}

// EndpointStatus returns a liveness handler for GET requests on /api/payment/<path>
func (h *PaymentHandler) EndpointStatus(name, path string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":   "Google Pay " + name + " endpoint is active",
			"timestamp": time.Now().UTC(),
			"config": fiber.Map{
				"merchant_id": h.paymentCfg.MerchantID,
				"endpoint":    "/api/payment/" + path,
			},
		})
	}
}

// Hash handles POST /api/payment/hash. Google Pay needs no merchant-side
// hash, so the request is only acknowledged.
func (h *PaymentHandler) Hash(c *fiber.Ctx) error {
	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}
	h.logger.Debug("payment hash requested", zap.Int("fields", len(body)))

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Google Pay handles payment processing directly",
		"timestamp": time.Now().UTC(),
	})
}

func (h *PaymentHandler) unavailable(c *fiber.Ctx) error {
	status := h.monitor.Status()
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"success": false,
		"error":   "Payment system unavailable",
		"gateway": status,
	})
}

func missingFields(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   "Missing required fields",
	})
}
