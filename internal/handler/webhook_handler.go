package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sodcloud/storefront/internal/domain"
	"github.com/sodcloud/storefront/internal/infrastructure/googlepay"
	"github.com/sodcloud/storefront/internal/service"
	"go.uber.org/zap"
)

// HeaderSignature carries the hex HMAC of a gateway notification body
const HeaderSignature = "X-Signature"

var notifyRequiredFields = []string{"order_id", "amount", "currency", "status"}

// WebhookHandler handles asynchronous gateway notifications
type WebhookHandler struct {
	orders        *service.OrderService
	webhookSecret string
	logger        *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler. An empty secret disables
// signature verification.
func NewWebhookHandler(orders *service.OrderService, webhookSecret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{orders: orders, webhookSecret: webhookSecret, logger: logger}
}

// Notify handles POST /api/payment/notify
// This is a public endpoint - authenticity comes from the signature header
func (h *WebhookHandler) Notify(c *fiber.Ctx) error {
	body := c.Body()

	if h.webhookSecret != "" && !googlepay.VerifyWebhook(h.webhookSecret, body, c.Get(HeaderSignature)) {
		h.logger.Warn("notification signature verification failed", zap.String("ip", c.IP()))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "invalid signature",
		})
	}

	var payload map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil || payload == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body format",
		})
	}

	var missing []string
	for _, field := range notifyRequiredFields {
		if falsy(payload[field]) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Missing required fields: " + strings.Join(missing, ", "),
		})
	}

	amount, err := decimal.NewFromString(fmt.Sprint(payload["amount"]))
	if err != nil {
		return respondError(c, h.logger, domain.NewValidationError("amount must be a number"))
	}
	currency, _ := domain.ParseCurrency(fmt.Sprint(payload["currency"]))

	n := service.Notification{
		Reference: fmt.Sprint(payload["order_id"]),
		PaymentID: firstTruthy(payload, "payment_id", "transaction_id"),
		Amount:    amount,
		Currency:  currency,
		Status:    fmt.Sprint(payload["status"]),
	}
	h.logger.Info("payment notification received",
		zap.String("reference", n.Reference),
		zap.String("gateway_status", n.Status),
		zap.String("payment_id", n.PaymentID),
	)

	order, target, err := h.orders.ApplyNotification(c.UserContext(), n)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success":  false,
				"error":    "Order not found",
				"order_id": n.Reference,
			})
		}
		return respondError(c, h.logger, err)
	}

	message := "Order updated successfully"
	switch {
	case target == domain.OrderStatusPending:
		message = "status acknowledged"
	case order.Status != target:
		message = "already processed"
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"message":   message,
		"order_id":  n.Reference,
		"status":    order.Status,
		"timestamp": time.Now().UTC(),
	})
}

// falsy mirrors the loose truthiness the storefront client applies to payload fields
func falsy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	}
	return false
}

func firstTruthy(payload map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v := payload[key]; !falsy(v) {
			return fmt.Sprint(v)
		}
	}
	return ""
}
