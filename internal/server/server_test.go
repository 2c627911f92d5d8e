package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sodcloud/storefront/internal/config"
	"github.com/sodcloud/storefront/internal/infrastructure/googlepay"
	"github.com/sodcloud/storefront/internal/middleware"
	"github.com/sodcloud/storefront/internal/repository"
	"github.com/sodcloud/storefront/internal/seed"
	"github.com/sodcloud/storefront/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAdminUser     = "admin"
	testAdminPassword = "grand-line"
	testWebhookSecret = "notify-secret"
)

type testServer struct {
	app   *fiber.App
	repos *repository.Repositories
	svc   *Services
}

type testOptions struct {
	gatewayReady  bool
	webhookSecret string
}

func newTestServer(t *testing.T, opts testOptions) *testServer {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Server.Environment = "development"
	cfg.Server.CORSOrigins = "*"
	cfg.Session.CartTTL = time.Hour
	cfg.Session.IdempotencyTTL = time.Hour
	cfg.Admin.JWTSecret = "test-secret-key-123"
	cfg.Admin.JWTExpiry = time.Hour
	cfg.Admin.Username = testAdminUser
	cfg.Admin.PasswordHash = string(hash)
	cfg.Payment.MerchantID = "BCR2DN7TZD7MBT2N"
	cfg.Payment.MerchantName = "SOD Cloud"
	cfg.Payment.Environment = "TEST"
	cfg.Payment.WebhookSecret = opts.webhookSecret

	logger := zap.NewNop()
	repos := repository.NewKVRepositories(client, "test")
	_, err = seed.Run(ctx, repos, logger)
	require.NoError(t, err)

	monitor := service.NewGatewayMonitor(service.NewMockGateway(), logger)
	if opts.gatewayReady {
		monitor.Retry(ctx)
	}

	deps := AppDependencies{
		Config:      cfg,
		Repos:       repos,
		RedisClient: client,
		Gateway:     monitor,
		Logger:      logger,
	}
	svc := NewServices(deps)
	return &testServer{app: NewApp(deps, svc), repos: repos, svc: svc}
}

type reqOpts struct {
	session     string
	token       string
	idempotency string
	raw         []byte
	headers     map[string]string
}

func (s *testServer) request(t *testing.T, method, path string, body interface{}, opts reqOpts) (*http.Response, map[string]interface{}) {
	t.Helper()
	var bodyReader io.Reader
	switch {
	case opts.raw != nil:
		bodyReader = bytes.NewReader(opts.raw)
	case body != nil:
		jsonBytes, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if opts.session != "" {
		req.Header.Set(middleware.HeaderCartSession, opts.session)
	}
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}
	if opts.idempotency != "" {
		req.Header.Set(middleware.HeaderIdempotencyKey, opts.idempotency)
	}
	for k, v := range opts.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	var data map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &data), string(raw))
	}
	return resp, data
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	resp, data := s.request(t, http.MethodPost, "/api/admin/login", map[string]string{
		"username": testAdminUser,
		"password": testAdminPassword,
	}, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := data["data"].(map[string]interface{})["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (s *testServer) createOrder(t *testing.T, ref, amount string) map[string]interface{} {
	t.Helper()
	resp, data := s.request(t, http.MethodPost, "/api/orders", map[string]interface{}{
		"user_email":       "luffy@strawhat.com",
		"plan_id":          "minecraft-thousand-sunny",
		"amount_usd":       json.Number(amount),
		"amount_lkr":       json.Number("2500"),
		"currency":         "USD",
		"payhere_order_id": ref,
	}, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode, data)
	return data["order"].(map[string]interface{})
}

func decimalOf(t *testing.T, v interface{}) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(fmt.Sprint(v))
	require.NoError(t, err)
	return d
}

func TestHealthAndCatalog(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true})

	resp, data := s.request(t, http.MethodGet, "/health", nil, reqOpts{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", data["payment"])

	resp, data = s.request(t, http.MethodGet, "/api/plans?category=minecraft", nil, reqOpts{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, data["plans"], 7)

	resp, _ = s.request(t, http.MethodGet, "/api/plans?category=boats", nil, reqOpts{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = s.request(t, http.MethodGet, "/api/plans/minecraft-going-merry", nil, reqOpts{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Going Merry", data["plan"].(map[string]interface{})["name"])

	resp, _ = s.request(t, http.MethodGet, "/api/plans/does-not-exist", nil, reqOpts{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestContentEndpoints(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true})

	resp, data := s.request(t, http.MethodGet, "/api/announcements?page=homepage", nil, reqOpts{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, data["success"])

	resp, _ = s.request(t, http.MethodGet, "/api/announcements?page=basement", nil, reqOpts{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.request(t, http.MethodGet, "/api/blog/vps-security-best-practices", nil, reqOpts{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.request(t, http.MethodGet, "/api/blog/no-such-post", nil, reqOpts{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.request(t, http.MethodGet, "/api/blog/vps-security-best-practices/related?limit=0", nil, reqOpts{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCartCheckoutAuthorizeFlow(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true})
	ctx := context.Background()

	// ==========================================
	// STEP 1: Fill the cart
	// ==========================================
	resp, data := s.request(t, http.MethodPost, "/api/cart/items", map[string]string{"plan_id": "minecraft-going-merry"}, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode, data)
	session := resp.Header.Get(middleware.HeaderCartSession)
	require.NotEmpty(t, session)

	resp, data = s.request(t, http.MethodGet, "/api/cart/totals?currency=USD&promo_code=pirate10", nil, reqOpts{session: session})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	totals := data["totals"].(map[string]interface{})
	assert.True(t, decimalOf(t, totals["final_total"]).Equal(decimal.RequireFromString("3.15")))

	// ==========================================
	// STEP 2: Checkout places the order
	// ==========================================
	checkoutBody := map[string]interface{}{
		"customer": map[string]string{
			"first_name": "Monkey D.",
			"last_name":  "Luffy",
			"email":      "luffy@strawhat.com",
			"phone":      "+94771234567",
		},
		"currency":    "USD",
		"promo_code":  "PIRATE10",
		"agree_terms": false,
	}
	resp, data = s.request(t, http.MethodPost, "/api/checkout", checkoutBody, reqOpts{session: session})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Please agree to the terms and conditions", data["error"])

	checkoutBody["agree_terms"] = true
	resp, data = s.request(t, http.MethodPost, "/api/checkout", checkoutBody, reqOpts{session: session})
	require.Equal(t, http.StatusCreated, resp.StatusCode, data)
	payment := data["payment"].(map[string]interface{})
	ref := payment["order_id"].(string)
	assert.Regexp(t, `^SOD-\d+-[a-z0-9]{9}$`, ref)
	assert.True(t, decimalOf(t, payment["amount"]).Equal(decimal.RequireFromString("3.15")))
	assert.Equal(t, service.CheckoutTypeGooglePay, payment["checkout_type"])

	// ==========================================
	// STEP 3: Prepare and authorize the payment
	// ==========================================
	resp, data = s.request(t, http.MethodPost, "/api/payment/checkout", map[string]interface{}{
		"order_id": ref,
		"amount":   json.Number("3.15"),
		"currency": "USD",
		"customer": map[string]string{"email": "luffy@strawhat.com"},
	}, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode, data)
	assert.Equal(t, "Checkout session prepared successfully", data["message"])

	authorizeBody := map[string]interface{}{
		"order_id":       ref,
		"amount":         json.Number("3.15"),
		"currency":       "USD",
		"customer_email": "luffy@strawhat.com",
		"payment_token":  "tok_visa",
	}
	resp, data = s.request(t, http.MethodPost, "/api/payment/authorize", authorizeBody, reqOpts{session: session})
	require.Equal(t, http.StatusOK, resp.StatusCode, data)
	authorized := data["data"].(map[string]interface{})
	assert.Equal(t, "completed", authorized["status"])
	assert.Contains(t, authorized["payment_id"], "gp_")

	assert.Zero(t, s.svc.Carts.ActiveSessions())

	resp, data = s.request(t, http.MethodGet, "/api/cart", nil, reqOpts{session: session})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, data["cart"].(map[string]interface{})["total_items"])
	assert.Zero(t, s.svc.Carts.ActiveSessions())

	promo, err := s.repos.PromoCodes.GetByCode(ctx, "PIRATE10")
	require.NoError(t, err)
	assert.Equal(t, 26, promo.UsageCount)

	// A completed order cannot be paid twice
	resp, _ = s.request(t, http.MethodPost, "/api/payment/authorize", authorizeBody, reqOpts{session: session})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = s.request(t, http.MethodPost, "/api/payment/checkout", map[string]interface{}{
		"order_id": ref,
		"amount":   json.Number("3.15"),
		"currency": "USD",
		"customer": map[string]string{"email": "luffy@strawhat.com"},
	}, reqOpts{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCheckoutWithEmptyCart(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true})

	resp, _ := s.request(t, http.MethodPost, "/api/checkout", map[string]interface{}{
		"customer": map[string]string{
			"first_name": "Roronoa",
			"last_name":  "Zoro",
			"email":      "zoro@strawhat.com",
			"phone":      "+94771234568",
		},
		"currency":    "USD",
		"agree_terms": true,
	}, reqOpts{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthorizeDeclined(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true})
	s.createOrder(t, "SOD-1700000000000-declined1", "8.00")

	resp, data := s.request(t, http.MethodPost, "/api/payment/authorize", map[string]interface{}{
		"order_id":       "SOD-1700000000000-declined1",
		"amount":         json.Number("8.00"),
		"currency":       "USD",
		"customer_email": "luffy@strawhat.com",
		"payment_token":  service.MockTokenDeclined,
	}, reqOpts{})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode, data)

	resp, data = s.request(t, http.MethodGet, "/api/orders?status=failed", nil, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, data["orders"], 1)
}

func TestAuthorizeAmountMismatch(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true})
	s.createOrder(t, "SOD-1700000000000-mismatch1", "8.00")

	resp, _ := s.request(t, http.MethodPost, "/api/payment/authorize", map[string]interface{}{
		"order_id":       "SOD-1700000000000-mismatch1",
		"amount":         json.Number("1.00"),
		"currency":       "USD",
		"customer_email": "luffy@strawhat.com",
		"payment_token":  "tok_visa",
	}, reqOpts{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data := s.request(t, http.MethodGet, "/api/orders?status=pending", nil, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, data["orders"], 1)
}

func TestPaymentNotify(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true})
	ref := "SOD-1700000000000-notify001"
	s.createOrder(t, ref, "8.00")

	resp, data := s.request(t, http.MethodPost, "/api/payment/notify", map[string]interface{}{
		"order_id": ref,
		"amount":   json.Number("8.00"),
		"currency": "USD",
		"status":   "PENDING",
	}, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode, data)
	assert.Equal(t, "status acknowledged", data["message"])
	assert.Equal(t, "pending", data["status"])

	resp, data = s.request(t, http.MethodPost, "/api/payment/notify", map[string]interface{}{
		"order_id":   ref,
		"amount":     json.Number("8.00"),
		"currency":   "USD",
		"status":     "COMPLETED",
		"payment_id": "PAY-1",
	}, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode, data)
	assert.Equal(t, "Order updated successfully", data["message"])
	assert.Equal(t, "completed", data["status"])

	// Replay with a different terminal status leaves the order alone
	resp, data = s.request(t, http.MethodPost, "/api/payment/notify", map[string]interface{}{
		"order_id": ref,
		"amount":   json.Number("8.00"),
		"currency": "USD",
		"status":   "FAILED",
	}, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode, data)
	assert.Equal(t, "already processed", data["message"])
	assert.Equal(t, "completed", data["status"])

	resp, data = s.request(t, http.MethodPost, "/api/payment/notify", map[string]interface{}{
		"order_id": ref,
		"amount":   0,
	}, reqOpts{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Missing required fields: amount, currency, status", data["error"])

	resp, data = s.request(t, http.MethodPost, "/api/payment/notify", nil, reqOpts{raw: []byte("not json")})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid request body format", data["error"])

	resp, data = s.request(t, http.MethodPost, "/api/payment/notify", map[string]interface{}{
		"order_id": "SOD-1-unknown00",
		"amount":   json.Number("8.00"),
		"currency": "USD",
		"status":   "COMPLETED",
	}, reqOpts{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SOD-1-unknown00", data["order_id"])
}

func TestPaymentNotifySignature(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true, webhookSecret: testWebhookSecret})
	ref := "SOD-1700000000000-signed001"
	s.createOrder(t, ref, "8.00")

	body, err := json.Marshal(map[string]interface{}{
		"order_id":       ref,
		"amount":         json.Number("8.00"),
		"currency":       "USD",
		"status":         "COMPLETED",
		"transaction_id": "TXN-9",
	})
	require.NoError(t, err)

	resp, _ := s.request(t, http.MethodPost, "/api/payment/notify", nil, reqOpts{raw: body})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, data := s.request(t, http.MethodPost, "/api/payment/notify", nil, reqOpts{
		raw:     body,
		headers: map[string]string{"X-Signature": googlepay.SignWebhook(testWebhookSecret, body)},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, data)
	assert.Equal(t, "completed", data["status"])
}

func TestGatewayNotReady(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: false})
	ref := "SOD-1700000000000-loading01"
	s.createOrder(t, ref, "8.00")

	resp, _ := s.request(t, http.MethodPost, "/api/payment/checkout", map[string]interface{}{
		"order_id": ref,
		"amount":   json.Number("8.00"),
		"currency": "USD",
		"customer": map[string]string{"email": "luffy@strawhat.com"},
	}, reqOpts{})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, data := s.request(t, http.MethodGet, "/api/payment/status", nil, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "loading", data["data"].(map[string]interface{})["status"])

	resp, _ = s.request(t, http.MethodPost, "/api/payment/status/retry", nil, reqOpts{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.request(t, http.MethodPost, "/api/payment/checkout", map[string]interface{}{
		"order_id": ref,
		"amount":   json.Number("8.00"),
		"currency": "USD",
		"customer": map[string]string{"email": "luffy@strawhat.com"},
	}, reqOpts{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPaymentEndpointStatus(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true})

	resp, data := s.request(t, http.MethodGet, "/api/payment/authorize", nil, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Google Pay authorize endpoint is active", data["message"])
}

func TestIdempotentOrderCreate(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true})
	body := map[string]interface{}{
		"user_email": "nami@strawhat.com",
		"plan_id":    "vps-zoro-blade-core",
		"amount_usd": json.Number("5.00"),
		"amount_lkr": json.Number("1500"),
		"currency":   "USD",
	}

	first, firstData := s.request(t, http.MethodPost, "/api/orders", body, reqOpts{idempotency: "order-key-1"})
	require.Equal(t, http.StatusOK, first.StatusCode, firstData)
	assert.Empty(t, first.Header.Get(middleware.HeaderIdempotentReply))

	second, secondData := s.request(t, http.MethodPost, "/api/orders", body, reqOpts{idempotency: "order-key-1"})
	require.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get(middleware.HeaderIdempotentReply))
	assert.Equal(t,
		firstData["order"].(map[string]interface{})["id"],
		secondData["order"].(map[string]interface{})["id"],
	)

	_, data := s.request(t, http.MethodGet, "/api/orders", nil, reqOpts{})
	assert.Len(t, data["orders"], 1)
}

func TestAdminFlow(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true})

	resp, _ := s.request(t, http.MethodGet, "/api/admin/overview", nil, reqOpts{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.request(t, http.MethodPost, "/api/admin/login", map[string]string{
		"username": testAdminUser,
		"password": "wrong",
	}, reqOpts{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := s.login(t)
	order := s.createOrder(t, "SOD-1700000000000-manual001", "8.00")
	orderID := order["id"].(string)

	resp, data := s.request(t, http.MethodGet, "/api/admin/overview", nil, reqOpts{token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode, data)
	overview := data["data"].(map[string]interface{})
	assert.EqualValues(t, len(seed.Plans()), overview["plans"])
	assert.EqualValues(t, 1, overview["total_orders"])

	resp, _ = s.request(t, http.MethodPost, "/api/admin/orders/"+orderID+"/status", map[string]string{"status": "pending"}, reqOpts{token: token})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = s.request(t, http.MethodPost, "/api/admin/orders/"+orderID+"/status", map[string]string{
		"status":     "completed",
		"payment_id": "MANUAL-1",
	}, reqOpts{token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode, data)

	// Same target again is accepted, a different one is not
	resp, _ = s.request(t, http.MethodPost, "/api/admin/orders/"+orderID+"/status", map[string]string{"status": "completed"}, reqOpts{token: token})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.request(t, http.MethodPost, "/api/admin/orders/"+orderID+"/status", map[string]string{"status": "failed"}, reqOpts{token: token})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, data = s.request(t, http.MethodGet, "/api/admin/overview", nil, reqOpts{token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	revenue := data["data"].(map[string]interface{})["revenue"].(map[string]interface{})
	assert.True(t, decimalOf(t, revenue["USD"]).Equal(decimal.RequireFromString("8")))

	resp, _ = s.request(t, http.MethodDelete, "/api/admin/plans/minecraft-going-merry", nil, reqOpts{token: token})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.request(t, http.MethodGet, "/api/plans/minecraft-going-merry", nil, reqOpts{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthorizeProcessorOutage(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true})
	ref := "SOD-1700000000000-outage001"
	s.createOrder(t, ref, "8.00")

	authorizeBody := map[string]interface{}{
		"order_id":       ref,
		"amount":         json.Number("8.00"),
		"currency":       "USD",
		"customer_email": "luffy@strawhat.com",
		"payment_token":  service.MockTokenUnavailable,
	}
	resp, data := s.request(t, http.MethodPost, "/api/payment/authorize", authorizeBody, reqOpts{})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, data)

	resp, data = s.request(t, http.MethodGet, "/api/payment/status", nil, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "error", data["data"].(map[string]interface{})["status"])

	resp, data = s.request(t, http.MethodGet, "/api/orders?status=pending", nil, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, data["orders"], 1)

	resp, _ = s.request(t, http.MethodPost, "/api/payment/status/retry", nil, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	authorizeBody["payment_token"] = "tok_visa"
	resp, data = s.request(t, http.MethodPost, "/api/payment/authorize", authorizeBody, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode, data)
	assert.Equal(t, "completed", data["data"].(map[string]interface{})["status"])
}

func TestCreateOrderDuplicateReference(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true})
	ref := "SOD-1700000000000-dupref001"
	s.createOrder(t, ref, "8.00")

	resp, _ := s.request(t, http.MethodPost, "/api/orders", map[string]interface{}{
		"user_email":       "zoro@strawhat.com",
		"plan_id":          "vps-zoro-blade-core",
		"amount_usd":       json.Number("5.00"),
		"amount_lkr":       json.Number("1500"),
		"currency":         "USD",
		"payhere_order_id": ref,
	}, reqOpts{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	_, data := s.request(t, http.MethodGet, "/api/orders", nil, reqOpts{})
	assert.Len(t, data["orders"], 1)
}

func TestPaymentHash(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true})

	resp, data := s.request(t, http.MethodPost, "/api/payment/hash", map[string]interface{}{
		"order_id": "SOD-1700000000000-hash00001",
		"amount":   json.Number("8.00"),
	}, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, data["success"])
	assert.Equal(t, "Google Pay handles payment processing directly", data["message"])

	resp, data = s.request(t, http.MethodPost, "/api/payment/hash", nil, reqOpts{raw: []byte("not json")})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid request body", data["error"])

	resp, data = s.request(t, http.MethodGet, "/api/payment/hash", nil, reqOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Google Pay payment endpoint is active", data["message"])
	assert.Equal(t, "/api/payment/hash", data["config"].(map[string]interface{})["endpoint"])
}

func TestIdempotentCheckoutIsScopedToCartSession(t *testing.T) {
	s := newTestServer(t, testOptions{gatewayReady: true})

	checkout := func() (string, string) {
		resp, data := s.request(t, http.MethodPost, "/api/cart/items", map[string]string{"plan_id": "minecraft-going-merry"}, reqOpts{})
		require.Equal(t, http.StatusOK, resp.StatusCode, data)
		session := resp.Header.Get(middleware.HeaderCartSession)

		resp, data = s.request(t, http.MethodPost, "/api/checkout", map[string]interface{}{
			"customer": map[string]string{
				"first_name": "Nico",
				"last_name":  "Robin",
				"email":      "robin@strawhat.com",
				"phone":      "+94771234569",
			},
			"currency":    "USD",
			"agree_terms": true,
		}, reqOpts{session: session, idempotency: "checkout-key-1"})
		require.Equal(t, http.StatusCreated, resp.StatusCode, data)
		return data["payment"].(map[string]interface{})["order_id"].(string), resp.Header.Get(middleware.HeaderIdempotentReply)
	}

	firstRef, firstReplay := checkout()
	secondRef, secondReplay := checkout()
	assert.Empty(t, firstReplay)
	assert.Empty(t, secondReplay)
	assert.NotEqual(t, firstRef, secondRef)

	_, data := s.request(t, http.MethodGet, "/api/orders", nil, reqOpts{})
	assert.Len(t, data["orders"], 2)
}
