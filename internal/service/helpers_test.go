package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sodcloud/storefront/internal/domain"
	"github.com/sodcloud/storefront/internal/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	repos   *repository.Repositories
	carts   *repository.RedisCartRepository
	cartMR  *miniredis.Miniredis
	monitor *GatewayMonitor
	orders  *OrderService
	cart    *CartService
}

// newTestEnv wires the services over the key-value driver. Carts live on a
// separate miniredis so a cart outage can be simulated on its own.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	storeMR := miniredis.RunT(t)
	storeClient := redis.NewClient(&redis.Options{Addr: storeMR.Addr()})
	t.Cleanup(func() { _ = storeClient.Close() })

	cartMR := miniredis.RunT(t)
	cartClient := redis.NewClient(&redis.Options{Addr: cartMR.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = cartClient.Close() })

	repos := repository.NewKVRepositories(storeClient, "test")
	carts := repository.NewRedisCartRepository(repository.NewRedisCacheRepository(cartClient))

	monitor := NewGatewayMonitor(NewMockGateway(), zap.NewNop())
	monitor.Retry(ctx)

	for _, plan := range []*domain.Plan{goingMerry(), thousandSunny()} {
		require.NoError(t, repos.Plans.Create(ctx, plan))
	}

	return &testEnv{
		repos:   repos,
		carts:   carts,
		cartMR:  cartMR,
		monitor: monitor,
		orders:  NewOrderService(repos.Orders, repos.Customers, repos.PromoCodes, monitor, zap.NewNop()),
		cart:    NewCartService(repos.Plans, carts, time.Hour, zap.NewNop()),
	}
}

func goingMerry() *domain.Plan {
	return &domain.Plan{
		ID:          "minecraft-going-merry",
		Name:        "Going Merry",
		Category:    domain.CategoryMinecraft,
		PriceUSD:    decimal.RequireFromString("3.50"),
		PriceLKR:    decimal.RequireFromString("1100"),
		VCPU:        2,
		RAM:         4,
		Storage:     40,
		StorageType: domain.StorageNVMe,
	}
}

func thousandSunny() *domain.Plan {
	return &domain.Plan{
		ID:          "vps-thousand-sunny",
		Name:        "Thousand Sunny",
		Category:    domain.CategoryVPS,
		PriceUSD:    decimal.RequireFromString("12.00"),
		PriceLKR:    decimal.RequireFromString("3800"),
		VCPU:        4,
		RAM:         8,
		Storage:     160,
		StorageType: domain.StorageNVMe,
	}
}

func luffy() CustomerInfo {
	return CustomerInfo{
		FirstName: "Monkey D.",
		LastName:  "Luffy",
		Email:     "Luffy@StrawHat.com",
		Phone:     "+94 77 123 4567",
	}
}

func merryLines(quantity int) []domain.CartLine {
	return []domain.CartLine{{Plan: *goingMerry(), Quantity: quantity}}
}

func intPtr(v int) *int { return &v }

func createPromo(t *testing.T, env *testEnv, promo *domain.PromoCode) *domain.PromoCode {
	t.Helper()
	require.NoError(t, env.repos.PromoCodes.Create(context.Background(), promo))
	return promo
}

func pirate10() *domain.PromoCode {
	return &domain.PromoCode{
		Code:          "PIRATE10",
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		Currency:      domain.CurrencyUSD,
		IsActive:      true,
	}
}

// failingGateway never finishes initializing
type failingGateway struct {
	err error
}

func (g *failingGateway) Name() string { return "failing" }

func (g *failingGateway) Init(ctx context.Context) error { return g.err }

func (g *failingGateway) Authorize(ctx context.Context, req PaymentRequest) (domain.PaymentOutcome, error) {
	return domain.PaymentOutcome{Kind: domain.OutcomeError, Reason: "not initialized"}, nil
}

var errGatewayDown = errors.New("processor health check failed")
