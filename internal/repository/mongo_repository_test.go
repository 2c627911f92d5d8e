package repository

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sodcloud/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// setupTestDB spins up a fresh MongoDB container and returns the database connection
func setupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err, "failed to start container")

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(endpoint))
	require.NoError(t, err, "failed to connect to mongo")

	t.Cleanup(func() {
		if err := client.Disconnect(ctx); err != nil {
			log.Printf("failed to disconnect mongo: %v", err)
		}
		if err := container.Terminate(ctx); err != nil {
			log.Printf("failed to terminate container: %v", err)
		}
	})
	return client.Database("storefront_test")
}

func TestMongoRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repos := NewMongoRepositories(db, nil)

	t.Run("plan decimals round trip", func(t *testing.T) {
		plan := &domain.Plan{
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
		require.NoError(t, repos.Plans.Create(ctx, plan))
		assert.ErrorIs(t, repos.Plans.Create(ctx, plan), domain.ErrConflict)

		got, err := repos.Plans.GetByID(ctx, plan.ID)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("3.5").Equal(got.PriceUSD))
		assert.Equal(t, 4, got.RAM)
		assert.Equal(t, domain.StorageNVMe, got.StorageType)

		list, err := repos.Plans.FetchAll(ctx, domain.PlanFilter{Category: domain.CategoryMinecraft})
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("order transition has one winner", func(t *testing.T) {
		order := &domain.Order{
			UserEmail:      "zoro@strawhat.com",
			PlanID:         "minecraft-going-merry",
			AmountUSD:      decimal.RequireFromString("7.00"),
			AmountLKR:      decimal.RequireFromString("2200"),
			Currency:       domain.CurrencyUSD,
			GatewayOrderID: "SOD-1700000000000-abcdefghi",
			Items: []domain.OrderItem{
				{PlanID: "minecraft-going-merry", Name: "Going Merry", Quantity: 2, PriceUSD: decimal.RequireFromString("3.50"), PriceLKR: decimal.NewFromInt(1100)},
			},
		}
		require.NoError(t, repos.Orders.Create(ctx, order))

		found, err := repos.Orders.FindByGatewayReference(ctx, order.GatewayOrderID)
		require.NoError(t, err)
		assert.Equal(t, order.ID, found.ID)
		require.Len(t, found.Items, 1)
		assert.Equal(t, 2, found.Items[0].Quantity)
		assert.Nil(t, found.GatewayPaymentID)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for _, status := range []domain.OrderStatus{domain.OrderStatusCompleted, domain.OrderStatusFailed, domain.OrderStatusCancelled} {
			wg.Add(1)
			go func(status domain.OrderStatus) {
				defer wg.Done()
				_, applied, err := repos.Orders.TransitionStatus(ctx, order.ID, domain.StatusChange{Status: status})
				assert.NoError(t, err)
				if applied {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}(status)
		}
		wg.Wait()
		assert.Equal(t, 1, winners)

		stale, err := repos.Orders.FetchAll(ctx, domain.OrderFilter{Status: domain.OrderStatusPending, CreatedBefore: time.Now().Add(time.Minute)})
		require.NoError(t, err)
		assert.Empty(t, stale)
	})

	t.Run("order reference is unique", func(t *testing.T) {
		newOrder := func() *domain.Order {
			return &domain.Order{
				UserEmail:      "nami@strawhat.com",
				PlanID:         "minecraft-going-merry",
				AmountUSD:      decimal.RequireFromString("3.50"),
				AmountLKR:      decimal.RequireFromString("1100"),
				Currency:       domain.CurrencyUSD,
				GatewayOrderID: "SOD-1700000000000-duplicate",
			}
		}
		require.NoError(t, repos.Orders.Create(ctx, newOrder()))
		err := repos.Orders.Create(ctx, newOrder())
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("promo increment respects limit", func(t *testing.T) {
		limit := 1
		promo := &domain.PromoCode{
			Code:          "strawhat",
			DiscountType:  domain.DiscountFixed,
			DiscountValue: decimal.NewFromInt(5),
			Currency:      domain.CurrencyUSD,
			UsageLimit:    &limit,
			IsActive:      true,
		}
		require.NoError(t, repos.PromoCodes.Create(ctx, promo))

		require.NoError(t, repos.PromoCodes.IncrementUsage(ctx, promo.ID))
		assert.ErrorIs(t, repos.PromoCodes.IncrementUsage(ctx, promo.ID), domain.ErrPromoExhausted)
		assert.ErrorIs(t, repos.PromoCodes.IncrementUsage(ctx, "missing"), domain.ErrNotFound)

		got, err := repos.PromoCodes.GetByCode(ctx, "StrawHat")
		require.NoError(t, err)
		assert.Equal(t, 1, got.UsageCount)
		require.NotNil(t, got.UsageLimit)

		_, err = repos.PromoCodes.Update(ctx, promo.ID, domain.PromoCodePatch{ClearUsageLimit: true})
		require.NoError(t, err)
		require.NoError(t, repos.PromoCodes.IncrementUsage(ctx, promo.ID))
	})

	t.Run("customer upsert by email", func(t *testing.T) {
		c := &domain.Customer{Email: "Luffy@StrawHat.com", Name: "Luffy"}
		require.NoError(t, repos.Customers.UpsertByEmail(ctx, c))
		again := &domain.Customer{Email: "luffy@strawhat.com", Name: "Monkey D. Luffy"}
		require.NoError(t, repos.Customers.UpsertByEmail(ctx, again))

		assert.Equal(t, c.ID, again.ID)
		assert.Equal(t, "Monkey D. Luffy", again.Name)
		assert.Equal(t, domain.CustomerActive, again.Status)
	})
}
