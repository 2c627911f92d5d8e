package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sodcloud/storefront/internal/domain"
	"github.com/sodcloud/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultOrderListLimit = 50
	MaxOrderListLimit     = 200

	referencePrefix   = "SOD"
	referenceAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	referenceRandLen  = 9
)

// CustomerInfo is the contact block collected at checkout
type CustomerInfo struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Validate collects every contact problem
func (c CustomerInfo) Validate() []string {
	var problems []string
	if strings.TrimSpace(c.FirstName) == "" {
		problems = append(problems, "First name is required")
	}
	if strings.TrimSpace(c.LastName) == "" {
		problems = append(problems, "Last name is required")
	}
	if strings.TrimSpace(c.Email) == "" {
		problems = append(problems, "Email is required")
	} else if !domain.ValidEmail(c.Email) {
		problems = append(problems, "Please enter a valid email address")
	}
	if strings.TrimSpace(c.Phone) == "" {
		problems = append(problems, "Phone number is required")
	} else if !domain.ValidPhone(c.Phone) {
		problems = append(problems, "Please enter a valid phone number")
	}
	return problems
}

// CreateOrderRequest prices an order from cart lines
type CreateOrderRequest struct {
	Customer  CustomerInfo
	Lines     []domain.CartLine
	Currency  domain.Currency
	PromoCode string
}

// AuthorizeRequest redeems a payment token for the order behind Reference
type AuthorizeRequest struct {
	Reference string
	Amount    decimal.Decimal
	Currency  domain.Currency
	Email     string
	Token     string
}

// Notification is an asynchronous gateway status report
type Notification struct {
	Reference string
	PaymentID string
	Amount    decimal.Decimal
	Currency  domain.Currency
	Status    string
}

// NotificationStatus maps the gateway vocabulary onto order statuses.
// Unknown values map to cancelled.
func NotificationStatus(status string) domain.OrderStatus {
	switch status {
	case "COMPLETED":
		return domain.OrderStatusCompleted
	case "PENDING":
		return domain.OrderStatusPending
	case "FAILED":
		return domain.OrderStatusFailed
	default:
		return domain.OrderStatusCancelled
	}
}

// OrderService runs the order lifecycle from pending to a terminal status
type OrderService struct {
	orders    domain.OrderRepository
	customers domain.CustomerRepository
	promos    domain.PromoCodeRepository
	evaluator *PromoService
	gateway   *GatewayMonitor
	receipts  domain.ReceiptStore
	metrics   *telemetry.OrderMetrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewOrderService(
	orders domain.OrderRepository,
	customers domain.CustomerRepository,
	promos domain.PromoCodeRepository,
	gateway *GatewayMonitor,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		customers: customers,
		promos:    promos,
		evaluator: NewPromoService(promos),
		gateway:   gateway,
		logger:    logger,
		now:       time.Now,
	}
}

// WithReceipts archives a receipt for every completed order
func (s *OrderService) WithReceipts(store domain.ReceiptStore) *OrderService {
	s.receipts = store
	return s
}

// WithMetrics records lifecycle counters
func (s *OrderService) WithMetrics(m *telemetry.OrderMetrics) *OrderService {
	s.metrics = m
	return s
}

// NewReference generates a gateway order reference SOD-<unix-millis>-<random9>
func NewReference(now time.Time) string {
	var sb strings.Builder
	base := big.NewInt(int64(len(referenceAlphabet)))
	for i := 0; i < referenceRandLen; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		sb.WriteByte(referenceAlphabet[n.Int64()])
	}
	return fmt.Sprintf("%s-%d-%s", referencePrefix, now.UnixMilli(), sb.String())
}

// CreateOrder persists a pending order priced from the cart lines, before any gateway call
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, domain.Discount, error) {
	problems := req.Customer.Validate()
	if !req.Currency.Valid() {
		problems = append(problems, "currency must be USD or LKR")
	}
	if err := domain.NewValidationError(problems...); err != nil {
		return nil, domain.Discount{}, err
	}
	if len(req.Lines) == 0 {
		return nil, domain.Discount{}, domain.ErrEmptyCart
	}

	cart := &domain.Cart{Lines: req.Lines}
	subtotal := cart.TotalPrice(req.Currency)
	discount, err := s.evaluator.Evaluate(ctx, req.PromoCode, subtotal, req.Currency)
	if err != nil {
		return nil, domain.Discount{}, err
	}

	items := make([]domain.OrderItem, 0, len(req.Lines))
	for _, line := range req.Lines {
		items = append(items, domain.OrderItem{
			PlanID:   line.Plan.ID,
			Name:     line.Plan.Name,
			Quantity: line.Quantity,
			PriceUSD: line.Plan.PriceUSD,
			PriceLKR: line.Plan.PriceLKR,
		})
	}

	now := s.now().UTC()
	order := &domain.Order{
		UserEmail:      domain.NormalizeEmail(req.Customer.Email),
		CustomerName:   strings.TrimSpace(req.Customer.FirstName) + " " + strings.TrimSpace(req.Customer.LastName),
		CustomerPhone:  domain.NormalizePhone(req.Customer.Phone),
		PlanID:         req.Lines[0].Plan.ID,
		Items:          items,
		Status:         domain.OrderStatusPending,
		AmountUSD:      cart.TotalPrice(domain.CurrencyUSD),
		AmountLKR:      cart.TotalPrice(domain.CurrencyLKR),
		Currency:       req.Currency,
		DiscountAmount: decimal.Zero,
		GatewayOrderID: NewReference(now),
	}
	// The discount only reprices the settlement currency.
	if discount.Applied {
		order.PromoCode = discount.Code
		order.DiscountAmount = discount.Amount
		if req.Currency == domain.CurrencyLKR {
			order.AmountLKR = discount.Total
		} else {
			order.AmountUSD = discount.Total
		}
	}

	if err := s.persist(ctx, order); err != nil {
		return nil, domain.Discount{}, err
	}

	customer := &domain.Customer{
		Email:  order.UserEmail,
		Name:   order.CustomerName,
		Phone:  order.CustomerPhone,
		Status: domain.CustomerActive,
	}
	if err := s.customers.UpsertByEmail(ctx, customer); err != nil {
		s.logger.Warn("failed to upsert customer", zap.String("email", order.UserEmail), zap.Error(err))
	}

	return order, discount, nil
}

// RecordOrder persists a client-priced pending order. A missing gateway
// reference is generated.
func (s *OrderService) RecordOrder(ctx context.Context, order *domain.Order) error {
	order.Status = domain.OrderStatusPending
	order.GatewayPaymentID = nil
	order.PromoRedeemed = false
	order.UserEmail = domain.NormalizeEmail(order.UserEmail)
	if order.GatewayOrderID == "" {
		order.GatewayOrderID = NewReference(s.now().UTC())
	}
	if err := order.Validate(); err != nil {
		return err
	}
	return s.persist(ctx, order)
}

func (s *OrderService) persist(ctx context.Context, order *domain.Order) error {
	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("order reference %s: %w", order.GatewayOrderID, err)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	s.metrics.OrderCreated(ctx, string(order.Currency))
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("reference", order.GatewayOrderID),
		zap.String("amount", order.Amount().StringFixed(2)),
		zap.String("currency", string(order.Currency)),
	)
	return nil
}

// ListOrders applies the filter with a bounded page size
func (s *OrderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.NewValidationError("status is not a known order status")
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultOrderListLimit
	}
	if filter.Limit > MaxOrderListLimit {
		filter.Limit = MaxOrderListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.orders.FetchAll(ctx, filter)
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *OrderService) GetByReference(ctx context.Context, ref string) (*domain.Order, error) {
	return s.orders.FindByGatewayReference(ctx, ref)
}

// GatewayStatus reports payment readiness
func (s *OrderService) GatewayStatus() GatewayStatus {
	return s.gateway.Status()
}

// BeginPayment asks the gateway to authorize token for order. The order is
// left untouched when the gateway is not ready or the processor cannot be
// reached; the latter also marks the gateway unavailable until a retry.
func (s *OrderService) BeginPayment(ctx context.Context, order *domain.Order, email, token string) (domain.PaymentOutcome, error) {
	if !s.gateway.Ready() {
		return domain.PaymentOutcome{}, domain.ErrPaymentUnavailable
	}
	if order.Status != domain.OrderStatusPending {
		return domain.PaymentOutcome{}, fmt.Errorf("order %s is %s: %w", order.GatewayOrderID, order.Status, domain.ErrInvalidTransition)
	}
	if email == "" {
		email = order.UserEmail
	}

	outcome, err := s.gateway.Gateway().Authorize(ctx, PaymentRequest{
		OrderRef: order.GatewayOrderID,
		Amount:   order.Amount(),
		Currency: order.Currency,
		Email:    email,
		Token:    token,
	})
	if err != nil {
		if errors.Is(err, domain.ErrPaymentUnavailable) {
			s.gateway.MarkUnavailable(err)
		}
		return domain.PaymentOutcome{}, err
	}
	return outcome, nil
}

// Reconcile moves a pending order to the terminal status outcome maps to.
// A second terminal write is a no-op returning the stored order.
func (s *OrderService) Reconcile(ctx context.Context, orderID string, outcome domain.PaymentOutcome) (*domain.Order, error) {
	order, _, err := s.reconcile(ctx, orderID, outcome)
	return order, err
}

func (s *OrderService) reconcile(ctx context.Context, orderID string, outcome domain.PaymentOutcome) (*domain.Order, bool, error) {
	change := domain.StatusChange{Status: outcome.TargetStatus()}
	if outcome.PaymentID != "" {
		paymentID := outcome.PaymentID
		change.PaymentID = &paymentID
	}
	if change.Status != domain.OrderStatusCompleted {
		change.FailureReason = outcome.Reason
	}

	stored, applied, err := s.orders.TransitionStatus(ctx, orderID, change)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, err
		}
		if outcome.Kind == domain.OutcomeAuthorized {
			err = fmt.Errorf("%w: order %s payment %s: %v", domain.ErrReconciliation, orderID, outcome.PaymentID, err)
			s.logger.Error("payment authorized but order not updated",
				zap.String("order_id", orderID),
				zap.String("payment_id", outcome.PaymentID),
				zap.Error(err),
			)
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, "order reconciliation failed")
			return nil, false, err
		}
		return nil, false, fmt.Errorf("failed to update order status: %w", err)
	}

	if applied {
		s.metrics.OrderReconciled(ctx, string(stored.Status))
		s.logger.Info("order reconciled",
			zap.String("order_id", stored.ID),
			zap.String("reference", stored.GatewayOrderID),
			zap.String("status", string(stored.Status)),
			zap.String("outcome", string(outcome.Kind)),
		)
		if stored.Status == domain.OrderStatusCompleted {
			s.archiveReceipt(ctx, stored)
		}
	} else if stored.Status != change.Status {
		s.logger.Warn("terminal order ignored a conflicting outcome",
			zap.String("order_id", stored.ID),
			zap.String("status", string(stored.Status)),
			zap.String("outcome", string(outcome.Kind)),
		)
	}

	if stored.NeedsPromoRedemption() {
		s.redeemPromo(ctx, stored)
	}
	return stored, applied, nil
}

// redeemPromo records the promo usage owed by a completed order. It never
// fails the completion; a store error leaves the order unredeemed so the next
// reconcile retries.
func (s *OrderService) redeemPromo(ctx context.Context, order *domain.Order) {
	log := s.logger.With(zap.String("order_id", order.ID), zap.String("promo_code", order.PromoCode))

	promo, err := s.promos.GetByCode(ctx, order.PromoCode)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		log.Warn("promo code vanished before redemption")
	case err != nil:
		log.Error("failed to load promo code for redemption", zap.Error(err))
		return
	default:
		err = s.promos.IncrementUsage(ctx, promo.ID)
		switch {
		case errors.Is(err, domain.ErrPromoExhausted):
			log.Warn("promo usage limit reached at completion; payment stands")
		case err != nil:
			log.Error("failed to record promo usage", zap.Error(err))
			return
		default:
			s.metrics.PromoRedeemed(ctx, promo.Code)
		}
	}

	if err := s.orders.MarkPromoRedeemed(ctx, order.ID); err != nil {
		log.Error("failed to mark promo redeemed", zap.Error(err))
		return
	}
	order.PromoRedeemed = true
}

func (s *OrderService) archiveReceipt(ctx context.Context, order *domain.Order) {
	if s.receipts == nil {
		return
	}
	key, err := s.receipts.PutReceipt(ctx, order)
	if err != nil {
		s.logger.Error("failed to archive receipt", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	s.logger.Debug("receipt archived", zap.String("order_id", order.ID), zap.String("key", key))
}

// Authorize checks the submitted amount against the order, then runs the
// payment and reconciles the outcome.
func (s *OrderService) Authorize(ctx context.Context, req AuthorizeRequest) (*domain.Order, domain.PaymentOutcome, error) {
	order, err := s.orders.FindByGatewayReference(ctx, req.Reference)
	if err != nil {
		return nil, domain.PaymentOutcome{}, err
	}

	var problems []string
	if req.Currency != order.Currency {
		problems = append(problems, fmt.Sprintf("currency %s does not match order currency %s", req.Currency, order.Currency))
	}
	if !req.Amount.Equal(order.Amount()) {
		problems = append(problems, fmt.Sprintf("amount %s does not match order amount %s", req.Amount.StringFixed(2), order.Amount().StringFixed(2)))
	}
	if err := domain.NewValidationError(problems...); err != nil {
		return nil, domain.PaymentOutcome{}, err
	}

	outcome, err := s.BeginPayment(ctx, order, req.Email, req.Token)
	if err != nil {
		return order, domain.PaymentOutcome{}, err
	}

	stored, err := s.Reconcile(ctx, order.ID, outcome)
	if err != nil {
		return nil, outcome, err
	}
	return stored, outcome, nil
}

// Cancel records that the customer aborted the payment widget
func (s *OrderService) Cancel(ctx context.Context, ref string) (*domain.Order, error) {
	order, err := s.orders.FindByGatewayReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.Reconcile(ctx, order.ID, domain.PaymentOutcome{
		Kind:   domain.OutcomeCancelled,
		Reason: "cancelled by customer",
	})
}

// ApplyNotification reconciles a gateway status report. PENDING is
// acknowledged without a write.
func (s *OrderService) ApplyNotification(ctx context.Context, n Notification) (*domain.Order, domain.OrderStatus, error) {
	target := NotificationStatus(n.Status)

	order, err := s.orders.FindByGatewayReference(ctx, n.Reference)
	if err != nil {
		return nil, target, err
	}
	if !n.Amount.IsZero() && (!n.Amount.Equal(order.Amount()) || n.Currency != order.Currency) {
		s.logger.Warn("notification amount differs from order",
			zap.String("reference", n.Reference),
			zap.String("notified", n.Amount.StringFixed(2)+" "+string(n.Currency)),
			zap.String("order", order.Amount().StringFixed(2)+" "+string(order.Currency)),
		)
	}

	var outcome domain.PaymentOutcome
	switch target {
	case domain.OrderStatusPending:
		return order, target, nil
	case domain.OrderStatusCompleted:
		outcome = domain.PaymentOutcome{Kind: domain.OutcomeAuthorized, PaymentID: n.PaymentID}
	case domain.OrderStatusFailed:
		outcome = domain.PaymentOutcome{Kind: domain.OutcomeDeclined, PaymentID: n.PaymentID, Reason: "gateway reported " + n.Status}
	default:
		outcome = domain.PaymentOutcome{Kind: domain.OutcomeCancelled, PaymentID: n.PaymentID, Reason: "gateway reported " + n.Status}
	}

	stored, err := s.Reconcile(ctx, order.ID, outcome)
	if err != nil {
		return nil, target, err
	}
	return stored, target, nil
}

// SetStatus is the operator's manual reconcile. Only terminal targets are
// accepted and a terminal order cannot be moved again.
func (s *OrderService) SetStatus(ctx context.Context, id string, status domain.OrderStatus, paymentID string) (*domain.Order, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("cannot move an order to %q: %w", status, domain.ErrInvalidTransition)
	}

	var outcome domain.PaymentOutcome
	switch status {
	case domain.OrderStatusCompleted:
		outcome = domain.PaymentOutcome{Kind: domain.OutcomeAuthorized, PaymentID: paymentID}
	case domain.OrderStatusFailed:
		outcome = domain.PaymentOutcome{Kind: domain.OutcomeDeclined, PaymentID: paymentID, Reason: "marked failed by operator"}
	default:
		outcome = domain.PaymentOutcome{Kind: domain.OutcomeCancelled, Reason: "cancelled by operator"}
	}

	stored, applied, err := s.reconcile(ctx, id, outcome)
	if err != nil {
		return nil, err
	}
	if !applied && stored.Status != status {
		return stored, fmt.Errorf("order %s is already %s: %w", id, stored.Status, domain.ErrInvalidTransition)
	}
	return stored, nil
}

// ExpireStale cancels pending orders created more than olderThan ago and
// returns how many it moved.
func (s *OrderService) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-olderThan)
	stale, err := s.orders.FetchAll(ctx, domain.OrderFilter{
		Status:        domain.OrderStatusPending,
		CreatedBefore: cutoff,
		Limit:         MaxOrderListLimit,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list stale orders: %w", err)
	}

	expired := 0
	for _, order := range stale {
		_, applied, err := s.reconcile(ctx, order.ID, domain.PaymentOutcome{
			Kind:   domain.OutcomeCancelled,
			Reason: "payment window expired",
		})
		if err != nil {
			s.logger.Error("failed to expire order", zap.String("order_id", order.ID), zap.Error(err))
			continue
		}
		if applied {
			expired++
		}
	}
	if expired > 0 {
		s.logger.Info("expired stale pending orders", zap.Int("count", expired), zap.Time("cutoff", cutoff))
	}
	return expired, nil
}
