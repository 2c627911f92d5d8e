package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sodcloud/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newPendingOrder(ref string) *domain.Order {
	return &domain.Order{
		UserEmail:      "luffy@strawhat.com",
		PlanID:         "minecraft-going-merry",
		AmountUSD:      decimal.RequireFromString("7.00"),
		AmountLKR:      decimal.RequireFromString("2200"),
		Currency:       domain.CurrencyUSD,
		GatewayOrderID: ref,
	}
}

func TestKVPlanRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewKVPlanRepository(setupRedis(t), "test")

	plan := &domain.Plan{
		ID:          "minecraft-going-merry",
		Name:        "Going Merry",
		Category:    domain.CategoryMinecraft,
		PriceUSD:    decimal.RequireFromString("3.50"),
		PriceLKR:    decimal.RequireFromString("1100"),
		StorageType: domain.StorageNVMe,
	}
	require.NoError(t, repo.Create(ctx, plan))
	assert.ErrorIs(t, repo.Create(ctx, plan), domain.ErrConflict)

	got, err := repo.GetByID(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Going Merry", got.Name)
	assert.True(t, decimal.RequireFromString("3.50").Equal(got.PriceUSD))

	popular := true
	updated, err := repo.Update(ctx, plan.ID, domain.PlanPatch{IsPopular: &popular})
	require.NoError(t, err)
	assert.True(t, updated.IsPopular)
	assert.Equal(t, "Going Merry", updated.Name)

	bad := domain.PlanCategory("gpu")
	_, err = repo.Update(ctx, plan.ID, domain.PlanPatch{Category: &bad})
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, repo.Delete(ctx, plan.ID))
	_, err = repo.GetByID(ctx, plan.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, plan.ID), domain.ErrNotFound)
}

func TestKVPlanRepository_FetchAllFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	repo := NewKVPlanRepository(setupRedis(t), "test")

	for _, p := range []*domain.Plan{
		{ID: "vps-usopp-snipe-node", Category: domain.CategoryVPS, PriceUSD: decimal.NewFromInt(10)},
		{ID: "vps-zoro-blade-core", Category: domain.CategoryVPS, PriceUSD: decimal.NewFromInt(5)},
		{ID: "minecraft-going-merry", Category: domain.CategoryMinecraft, PriceUSD: decimal.RequireFromString("3.5")},
	} {
		require.NoError(t, repo.Create(ctx, p))
	}

	vps, err := repo.FetchAll(ctx, domain.PlanFilter{Category: domain.CategoryVPS})
	require.NoError(t, err)
	require.Len(t, vps, 2)
	assert.Equal(t, "vps-zoro-blade-core", vps[0].ID)

	all, err := repo.FetchAll(ctx, domain.PlanFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "minecraft-going-merry", all[0].ID)
}

func TestKVOrderRepository_TransitionIsTerminal(t *testing.T) {
	ctx := context.Background()
	repo := NewKVOrderRepository(setupRedis(t), "test")

	order := newPendingOrder("SOD-1-abc")
	require.NoError(t, repo.Create(ctx, order))
	assert.Equal(t, domain.OrderStatusPending, order.Status)

	paymentID := "gp_123"
	stored, applied, err := repo.TransitionStatus(ctx, order.ID, domain.StatusChange{
		Status:    domain.OrderStatusCompleted,
		PaymentID: &paymentID,
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.OrderStatusCompleted, stored.Status)
	require.NotNil(t, stored.GatewayPaymentID)
	assert.Equal(t, "gp_123", *stored.GatewayPaymentID)

	stored, applied, err = repo.TransitionStatus(ctx, order.ID, domain.StatusChange{Status: domain.OrderStatusFailed})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, domain.OrderStatusCompleted, stored.Status)

	_, _, err = repo.TransitionStatus(ctx, order.ID, domain.StatusChange{Status: domain.OrderStatusPending})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, _, err = repo.TransitionStatus(ctx, "missing", domain.StatusChange{Status: domain.OrderStatusFailed})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKVOrderRepository_ConcurrentTransitionsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewKVOrderRepository(setupRedis(t), "test")

	order := newPendingOrder("SOD-2-abc")
	require.NoError(t, repo.Create(ctx, order))

	statuses := []domain.OrderStatus{
		domain.OrderStatusCompleted, domain.OrderStatusFailed, domain.OrderStatusCancelled,
		domain.OrderStatusCompleted, domain.OrderStatusFailed, domain.OrderStatusCancelled,
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []domain.OrderStatus
	)
	for _, status := range statuses {
		wg.Add(1)
		go func(status domain.OrderStatus) {
			defer wg.Done()
			_, applied, err := repo.TransitionStatus(ctx, order.ID, domain.StatusChange{Status: status})
			assert.NoError(t, err)
			if applied {
				mu.Lock()
				winners = append(winners, status)
				mu.Unlock()
			}
		}(status)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	stored, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], stored.Status)
}

func TestKVOrderRepository_RejectsTakenReference(t *testing.T) {
	ctx := context.Background()
	repo := NewKVOrderRepository(setupRedis(t), "test")

	require.NoError(t, repo.Create(ctx, newPendingOrder("SOD-1-dup")))
	err := repo.Create(ctx, newPendingOrder("SOD-1-dup"))
	assert.ErrorIs(t, err, domain.ErrConflict)

	all, err := repo.FetchAll(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestKVOrderRepository_FetchAllFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewKVOrderRepository(setupRedis(t), "test")

	for i := 0; i < 5; i++ {
		o := newPendingOrder(fmt.Sprintf("SOD-%d-ref", i))
		require.NoError(t, repo.Create(ctx, o))
		if i%2 == 0 {
			_, _, err := repo.TransitionStatus(ctx, o.ID, domain.StatusChange{Status: domain.OrderStatusCompleted})
			require.NoError(t, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	completed, err := repo.FetchAll(ctx, domain.OrderFilter{Status: domain.OrderStatusCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 3)

	page, err := repo.FetchAll(ctx, domain.OrderFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	all, err := repo.FetchAll(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.True(t, all[0].CreatedAt.After(all[4].CreatedAt))

	none, err := repo.FetchAll(ctx, domain.OrderFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestKVPromoCodeRepository_IncrementNeverExceedsLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewKVPromoCodeRepository(setupRedis(t), "test")

	limit := 3
	promo := &domain.PromoCode{
		Code:          "pirate10",
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		UsageLimit:    &limit,
		IsActive:      true,
	}
	require.NoError(t, repo.Create(ctx, promo))
	assert.Equal(t, "PIRATE10", promo.Code)

	dup := &domain.PromoCode{Code: "Pirate10", DiscountType: domain.DiscountFixed, DiscountValue: decimal.NewFromInt(1)}
	assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrConflict)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.IncrementUsage(ctx, promo.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, domain.ErrPromoExhausted):
				exhausted++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 5, exhausted)

	stored, err := repo.GetByCode(ctx, " PIRATE10 ")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.UsageCount)
}

func TestKVAnnouncementRepository_FetchActive(t *testing.T) {
	ctx := context.Background()
	repo := NewKVAnnouncementRepository(setupRedis(t), "test")
	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	require.NoError(t, repo.Create(ctx, &domain.Announcement{Title: "a", Message: "m", Type: domain.AnnouncementInfo, IsActive: true, ShowOnHomepage: true}))
	require.NoError(t, repo.Create(ctx, &domain.Announcement{Title: "b", Message: "m", Type: domain.AnnouncementInfo, IsActive: true, ShowOnCheckout: true}))
	require.NoError(t, repo.Create(ctx, &domain.Announcement{Title: "c", Message: "m", Type: domain.AnnouncementInfo, IsActive: true, ShowOnHomepage: true, ExpiresAt: &past}))
	require.NoError(t, repo.Create(ctx, &domain.Announcement{Title: "d", Message: "m", Type: domain.AnnouncementInfo, ShowOnHomepage: true}))

	home, err := repo.FetchActive(ctx, domain.PageHomepage, now)
	require.NoError(t, err)
	require.Len(t, home, 1)
	assert.Equal(t, "a", home[0].Title)

	anyPage, err := repo.FetchActive(ctx, "", now)
	require.NoError(t, err)
	assert.Len(t, anyPage, 2)
}

func TestKVBlogPostRepository_RelatedAndViews(t *testing.T) {
	ctx := context.Background()
	repo := NewKVBlogPostRepository(setupRedis(t), "test")
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	posts := []*domain.BlogPost{
		{Title: "One", Slug: "one", Content: "c", Category: domain.BlogTutorials, IsPublished: true, CreatedAt: base},
		{Title: "Two", Slug: "two", Content: "c", Category: domain.BlogTutorials, IsPublished: true, CreatedAt: base.Add(time.Hour)},
		{Title: "Three", Slug: "three", Content: "c", Category: domain.BlogTutorials, IsPublished: true, CreatedAt: base.Add(2 * time.Hour)},
		{Title: "Draft", Slug: "draft", Content: "c", Category: domain.BlogTutorials, CreatedAt: base.Add(3 * time.Hour)},
		{Title: "News", Slug: "news", Content: "c", Category: domain.BlogNews, IsPublished: true, CreatedAt: base},
	}
	for _, p := range posts {
		require.NoError(t, repo.Create(ctx, p))
	}
	assert.ErrorIs(t, repo.Create(ctx, &domain.BlogPost{Slug: "one"}), domain.ErrConflict)

	published, err := repo.FetchPublished(ctx)
	require.NoError(t, err)
	require.Len(t, published, 4)
	assert.Equal(t, "three", published[0].Slug)

	related, err := repo.FetchRelated(ctx, domain.BlogTutorials, posts[2].ID, 0)
	require.NoError(t, err)
	require.Len(t, related, 2)
	assert.Equal(t, "two", related[0].Slug)
	assert.Equal(t, "one", related[1].Slug)

	require.NoError(t, repo.IncrementViews(ctx, posts[0].ID))
	require.NoError(t, repo.IncrementViews(ctx, posts[0].ID))
	got, err := repo.GetBySlug(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Views)
}

func TestKVCustomerRepository_UpsertByEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewKVCustomerRepository(setupRedis(t), "test")

	first := &domain.Customer{Email: "Nami@StrawHat.com", Name: "Nami"}
	require.NoError(t, repo.UpsertByEmail(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "nami@strawhat.com", first.Email)
	assert.Equal(t, domain.CustomerActive, first.Status)

	second := &domain.Customer{Email: "nami@strawhat.com", Name: "Nami the Navigator", Phone: "+94771234567"}
	require.NoError(t, repo.UpsertByEmail(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	all, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Nami the Navigator", all[0].Name)
}
