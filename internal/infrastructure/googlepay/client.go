package googlepay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Authorization statuses returned by the processor
const (
	StatusAuthorized = "AUTHORIZED"
	StatusDeclined   = "DECLINED"
	StatusCancelled  = "CANCELLED"
)

// ErrUnavailable marks transport failures and 5xx answers
var ErrUnavailable = errors.New("payment processor unavailable")

// Config holds processor API configuration
type Config struct {
	MerchantID string
	APIKey     string
	BaseURL    string
}

// Client talks to the card processor that redeems Google Pay tokens
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// AuthorizeRequest is the body of POST /v1/authorizations
type AuthorizeRequest struct {
	MerchantID   string `json:"merchantId"`
	OrderRef     string `json:"orderReference"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Email        string `json:"email"`
	PaymentToken string `json:"paymentToken"`
}

// AuthorizeResponse is the processor's verdict on a token
type AuthorizeResponse struct {
	Status    string `json:"status"`
	PaymentID string `json:"paymentId"`
	Reason    string `json:"reason,omitempty"`
}

// NewClient creates a new processor client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Sign computes the request signature:
// lowercase(hmacSha256(apiKey, METHOD:merchantId:lowercase(sha256(body)):apiKey))
func Sign(method, merchantID, apiKey string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	stringToSign := fmt.Sprintf("%s:%s:%s:%s", method, merchantID, hex.EncodeToString(bodyHash[:]), apiKey)

	h := hmac.New(sha256.New, []byte(apiKey))
	h.Write([]byte(stringToSign))
	return strings.ToLower(hex.EncodeToString(h.Sum(nil)))
}

// SignWebhook computes the X-Signature header value for a notification body
func SignWebhook(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyWebhook compares signature against the expected value in constant time
func VerifyWebhook(secret string, body []byte, signature string) bool {
	expected := SignWebhook(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// Ping checks that the processor answers
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.sign(req, nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Authorize redeems a payment token for an order
func (c *Client) Authorize(ctx context.Context, reqBody AuthorizeRequest) (*AuthorizeResponse, error) {
	reqBody.MerchantID = c.config.MerchantID
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/authorizations", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, jsonBody)

	c.logger.Info("authorizing payment",
		zap.String("order_ref", reqBody.OrderRef),
		zap.String("amount", reqBody.Amount),
		zap.String("currency", reqBody.Currency),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("processor error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var apiResp AuthorizeResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.Info("processor answered",
		zap.String("order_ref", reqBody.OrderRef),
		zap.String("status", apiResp.Status),
		zap.String("payment_id", apiResp.PaymentID),
	)
	return &apiResp, nil
}

func (c *Client) sign(req *http.Request, body []byte) {
	req.Header.Set("X-Merchant-Id", c.config.MerchantID)
	req.Header.Set("X-Signature", Sign(req.Method, c.config.MerchantID, c.config.APIKey, body))
	req.Header.Set("X-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))
}
