package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sodcloud/storefront/internal/config"
	"github.com/sodcloud/storefront/internal/domain"
	"github.com/sodcloud/storefront/internal/infrastructure/googlepay"
	"go.uber.org/zap"
)

// Mock tokens steering the mock gateway's verdict
const (
	MockTokenDeclined    = "tok_declined"
	MockTokenCancelled   = "tok_cancelled"
	MockTokenError       = "tok_error"
	MockTokenUnavailable = "tok_unavailable"
)

// CheckoutTypeGooglePay is the widget the storefront client renders
const CheckoutTypeGooglePay = "google_pay"

// PaymentRequest is a token redemption for one order
type PaymentRequest struct {
	OrderRef string
	Amount   decimal.Decimal
	Currency domain.Currency
	Email    string
	Token    string
}

// PaymentGateway defines the interface for payment gateway integrations
type PaymentGateway interface {
	// Name identifies the gateway in logs and status payloads
	Name() string
	// Init checks that the gateway can accept authorizations
	Init(ctx context.Context) error
	// Authorize redeems a payment token. An unreachable processor returns an
	// error wrapping domain.ErrPaymentUnavailable and no outcome.
	Authorize(ctx context.Context, req PaymentRequest) (domain.PaymentOutcome, error)
}

// MockGateway resolves tokens locally for development and tests
type MockGateway struct {
	now func() time.Time
}

// GooglePayAdapter adapts the googlepay.Client to PaymentGateway
type GooglePayAdapter struct {
	client *googlepay.Client
	logger *zap.Logger
}

// NewPaymentGateway returns the processor-backed gateway, or the mock when no API key is configured
func NewPaymentGateway(cfg config.PaymentConfig, logger *zap.Logger) PaymentGateway {
	if cfg.APIKey == "" || cfg.BaseURL == "" {
		logger.Info("using mock payment gateway (no processor credentials configured)")
		return NewMockGateway()
	}

	logger.Info("using google pay processor", zap.String("base_url", cfg.BaseURL))
	client := googlepay.NewClient(googlepay.Config{
		MerchantID: cfg.MerchantID,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
	}, logger)
	return &GooglePayAdapter{client: client, logger: logger}
}

// NewMockGateway creates a mock gateway on the wall clock
func NewMockGateway() *MockGateway {
	return &MockGateway{now: time.Now}
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) Init(ctx context.Context) error { return nil }

// Authorize approves every token except the reserved mock tokens
func (m *MockGateway) Authorize(ctx context.Context, req PaymentRequest) (domain.PaymentOutcome, error) {
	switch req.Token {
	case MockTokenDeclined:
		return domain.PaymentOutcome{Kind: domain.OutcomeDeclined, Reason: "card declined"}, nil
	case MockTokenCancelled:
		return domain.PaymentOutcome{Kind: domain.OutcomeCancelled, Reason: "cancelled by customer"}, nil
	case MockTokenError:
		return domain.PaymentOutcome{Kind: domain.OutcomeError, Reason: "processor error"}, nil
	case MockTokenUnavailable:
		return domain.PaymentOutcome{}, fmt.Errorf("%w: mock processor offline", domain.ErrPaymentUnavailable)
	}
	return domain.PaymentOutcome{
		Kind:      domain.OutcomeAuthorized,
		PaymentID: fmt.Sprintf("gp_%d", m.now().UnixMilli()),
	}, nil
}

func (a *GooglePayAdapter) Name() string { return "google_pay" }

func (a *GooglePayAdapter) Init(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Authorize forwards the token to the processor and maps its verdict.
// Processor-reported errors resolve to OutcomeError.
func (a *GooglePayAdapter) Authorize(ctx context.Context, req PaymentRequest) (domain.PaymentOutcome, error) {
	resp, err := a.client.Authorize(ctx, googlepay.AuthorizeRequest{
		OrderRef:     req.OrderRef,
		Amount:       req.Amount.StringFixed(2),
		Currency:     string(req.Currency),
		Email:        req.Email,
		PaymentToken: req.Token,
	})
	if err != nil {
		if errors.Is(err, googlepay.ErrUnavailable) {
			a.logger.Warn("processor unreachable", zap.String("order_ref", req.OrderRef), zap.Error(err))
			return domain.PaymentOutcome{}, fmt.Errorf("%w: %v", domain.ErrPaymentUnavailable, err)
		}
		a.logger.Warn("processor authorization failed", zap.String("order_ref", req.OrderRef), zap.Error(err))
		return domain.PaymentOutcome{Kind: domain.OutcomeError, Reason: err.Error()}, nil
	}

	switch strings.ToUpper(resp.Status) {
	case googlepay.StatusAuthorized:
		return domain.PaymentOutcome{Kind: domain.OutcomeAuthorized, PaymentID: resp.PaymentID}, nil
	case googlepay.StatusDeclined:
		return domain.PaymentOutcome{Kind: domain.OutcomeDeclined, PaymentID: resp.PaymentID, Reason: resp.Reason}, nil
	case googlepay.StatusCancelled:
		return domain.PaymentOutcome{Kind: domain.OutcomeCancelled, Reason: resp.Reason}, nil
	default:
		return domain.PaymentOutcome{Kind: domain.OutcomeError, Reason: "unexpected processor status " + resp.Status}, nil
	}
}

// GatewayState is the readiness of the payment gateway
type GatewayState string

const (
	GatewayLoading GatewayState = "loading"
	GatewayReady   GatewayState = "ready"
	GatewayError   GatewayState = "error"
)

// GatewayStatus is the queryable readiness snapshot
type GatewayStatus struct {
	Gateway   string       `json:"gateway"`
	Status    GatewayState `json:"status"`
	LastError string       `json:"last_error,omitempty"`
	CheckedAt *time.Time   `json:"checked_at,omitempty"`
}

// GatewayMonitor tracks whether the gateway finished initializing
type GatewayMonitor struct {
	gateway PaymentGateway
	logger  *zap.Logger

	mu     sync.RWMutex
	status GatewayStatus
}

// NewGatewayMonitor starts in the loading state
func NewGatewayMonitor(gateway PaymentGateway, logger *zap.Logger) *GatewayMonitor {
	return &GatewayMonitor{
		gateway: gateway,
		logger:  logger,
		status:  GatewayStatus{Gateway: gateway.Name(), Status: GatewayLoading},
	}
}

// Start initializes the gateway in the background
func (m *GatewayMonitor) Start(ctx context.Context) {
	go m.Retry(ctx)
}

// Retry runs gateway initialization now and returns the resulting status
func (m *GatewayMonitor) Retry(ctx context.Context) GatewayStatus {
	m.mu.Lock()
	m.status.Status = GatewayLoading
	m.mu.Unlock()

	err := m.gateway.Init(ctx)
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.CheckedAt = &now
	if err != nil {
		m.status.Status = GatewayError
		m.status.LastError = err.Error()
		m.logger.Error("payment gateway failed to initialize", zap.String("gateway", m.gateway.Name()), zap.Error(err))
	} else {
		m.status.Status = GatewayReady
		m.status.LastError = ""
		m.logger.Info("payment gateway ready", zap.String("gateway", m.gateway.Name()))
	}
	return m.status
}

// MarkUnavailable flips the monitor to error after a failed processor call.
// Retry brings it back.
func (m *GatewayMonitor) MarkUnavailable(err error) {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Status = GatewayError
	m.status.LastError = err.Error()
	m.status.CheckedAt = &now
	m.logger.Warn("payment gateway marked unavailable", zap.String("gateway", m.gateway.Name()), zap.Error(err))
}

// Status returns the current readiness snapshot
func (m *GatewayMonitor) Status() GatewayStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Ready reports whether payments may be started
func (m *GatewayMonitor) Ready() bool {
	return m.Status().Status == GatewayReady
}

// Gateway returns the monitored gateway
func (m *GatewayMonitor) Gateway() PaymentGateway {
	return m.gateway
}

// ClientConfig is the payment widget configuration the storefront client renders
type ClientConfig struct {
	Environment           string          `json:"environment"`
	MerchantInfo          MerchantInfo    `json:"merchantInfo"`
	AllowedPaymentMethods []PaymentMethod `json:"allowedPaymentMethods"`
}

type MerchantInfo struct {
	MerchantID   string `json:"merchantId"`
	MerchantName string `json:"merchantName"`
}

type PaymentMethod struct {
	Type       string               `json:"type"`
	Parameters CardMethodParameters `json:"parameters"`
}

type CardMethodParameters struct {
	AllowedAuthMethods  []string `json:"allowedAuthMethods"`
	AllowedCardNetworks []string `json:"allowedCardNetworks"`
}

// NewClientConfig builds the widget configuration for the merchant
func NewClientConfig(cfg config.PaymentConfig) ClientConfig {
	return ClientConfig{
		Environment: cfg.Environment,
		MerchantInfo: MerchantInfo{
			MerchantID:   cfg.MerchantID,
			MerchantName: cfg.MerchantName,
		},
		AllowedPaymentMethods: []PaymentMethod{{
			Type: "CARD",
			Parameters: CardMethodParameters{
				AllowedAuthMethods:  []string{"PAN_ONLY", "CRYPTOGRAM_3DS"},
				AllowedCardNetworks: []string{"MASTERCARD", "VISA"},
			},
		}},
	}
}
