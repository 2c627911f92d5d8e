package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sodcloud/storefront/internal/domain"
	"github.com/sodcloud/storefront/internal/repository"
	"go.uber.org/zap"
)

const day = 24 * time.Hour

func plan(id, name string, category domain.PlanCategory, usd, lkr string, vcpu, ram, storage int, storageType domain.StorageType, popular bool) *domain.Plan {
	return &domain.Plan{
		ID:          id,
		Name:        name,
		Category:    category,
		PriceUSD:    decimal.RequireFromString(usd),
		PriceLKR:    decimal.RequireFromString(lkr),
		VCPU:        vcpu,
		RAM:         ram,
		Storage:     storage,
		StorageType: storageType,
		IsPopular:   popular,
	}
}

// Plans is the default hosting catalog
func Plans() []*domain.Plan {
	return []*domain.Plan{
		plan("minecraft-going-merry", "Going Merry", domain.CategoryMinecraft, "3.50", "1100", 2, 4, 40, domain.StorageNVMe, false),
		plan("minecraft-thousand-sunny", "Thousand Sunny", domain.CategoryMinecraft, "8.00", "2500", 3, 8, 75, domain.StorageNVMe, true),
		plan("minecraft-ghost-princess", "Ghost Princess", domain.CategoryMinecraft, "12.00", "3800", 6, 12, 100, domain.StorageNVMe, false),
		plan("minecraft-enies-lobby-breaker", "Enies Lobby Breaker", domain.CategoryMinecraft, "18.00", "5700", 8, 24, 200, domain.StorageSSD, false),
		plan("minecraft-poneglyph-node", "Poneglyph Node", domain.CategoryMinecraft, "29.00", "9200", 12, 48, 250, domain.StorageSSD, false),
		plan("minecraft-buster-call", "Buster Call", domain.CategoryMinecraft, "50.00", "15800", 16, 64, 300, domain.StorageSSD, false),
		plan("minecraft-one-piece-throne", "One Piece Throne", domain.CategoryMinecraft, "65.00", "20600", 18, 96, 350, domain.StorageSSD, false),

		plan("vps-zoro-blade-core", "Zoro Blade Core", domain.CategoryVPS, "5.00", "1580", 2, 4, 50, domain.StorageSSD, false),
		plan("vps-usopp-snipe-node", "Usopp Snipe Node", domain.CategoryVPS, "10.00", "3160", 4, 8, 100, domain.StorageSSD, true),
		plan("vps-sanji-flame-drive", "Sanji Flame Drive", domain.CategoryVPS, "18.00", "5700", 6, 16, 200, domain.StorageSSD, false),
		plan("vps-franky-tank-build", "Franky Tank Build", domain.CategoryVPS, "35.00", "11100", 12, 32, 400, domain.StorageSSD, false),
		plan("vps-jinbei-water-flow", "Jinbei Water Flow", domain.CategoryVPS, "60.00", "19000", 16, 64, 600, domain.StorageSSD, false),

		plan("vlss-buggy-byte-server", "Buggy Byte Server", domain.CategoryVLSS, "3.00", "950", 1, 2, 20, domain.StorageSSD, false),
		plan("vlss-smoker-cloud-unit", "Smoker Cloud Unit", domain.CategoryVLSS, "5.00", "1580", 2, 4, 40, domain.StorageSSD, false),
		plan("vlss-robin-archive-core", "Robin Archive Core", domain.CategoryVLSS, "8.00", "2530", 3, 6, 80, domain.StorageNVMe, true),
		plan("vlss-brook-soul-server", "Brook Soul Server", domain.CategoryVLSS, "12.00", "3800", 6, 12, 120, domain.StorageNVMe, false),
		plan("vlss-cp9-secret-node", "CP9 Secret Node", domain.CategoryVLSS, "18.00", "5700", 8, 24, 250, domain.StorageNVMe, false),
		plan("vlss-sabo-flame-burst", "Sabo Flame Burst", domain.CategoryVLSS, "30.00", "9500", 12, 48, 500, domain.StorageNVMe, false),
		plan("vlss-imu-shadow-engine", "Imu Shadow Engine", domain.CategoryVLSS, "50.00", "15800", 16, 64, 750, domain.StorageNVMe, false),
		plan("vlss-gorosei-thronenet", "Gorosei ThroneNet", domain.CategoryVLSS, "70.00", "22200", 20, 96, 1000, domain.StorageNVMe, false),

		plan("v2ray-noro-noro-beam", "Noro Noro Beam", domain.CategoryV2Ray, "0.45", "142", 1, 1, 10, domain.StorageSSD, false),
		plan("v2ray-soru-skip", "Soru Skip", domain.CategoryV2Ray, "0.75", "237", 1, 1, 15, domain.StorageSSD, false),
		plan("v2ray-mero-hack", "Mero Hack", domain.CategoryV2Ray, "0.90", "284", 1, 2, 20, domain.StorageSSD, true),
		plan("v2ray-den-den-ping", "Den Den Ping", domain.CategoryV2Ray, "0.75", "237", 1, 1, 10, domain.StorageSSD, false),
		plan("v2ray-buster-stream", "Buster Stream", domain.CategoryV2Ray, "1.05", "332", 1, 2, 15, domain.StorageSSD, false),
		plan("v2ray-nika-pulse", "Nika Pulse", domain.CategoryV2Ray, "1.50", "474", 2, 4, 25, domain.StorageSSD, false),
	}
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// PromoCodes are the launch promotions, expiring relative to now
func PromoCodes(now time.Time) []*domain.PromoCode {
	return []*domain.PromoCode{
		{
			ID:            "promo-1",
			Code:          "PIRATE10",
			DiscountType:  domain.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(10),
			Currency:      domain.CurrencyUSD,
			UsageLimit:    intPtr(100),
			UsageCount:    25,
			ExpiresAt:     timePtr(now.Add(30 * day)),
			IsActive:      true,
		},
		{
			ID:            "promo-2",
			Code:          "GRANDLINE",
			DiscountType:  domain.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(15),
			Currency:      domain.CurrencyUSD,
			UsageLimit:    intPtr(50),
			UsageCount:    12,
			ExpiresAt:     timePtr(now.Add(60 * day)),
			IsActive:      true,
		},
		{
			ID:            "promo-3",
			Code:          "STRAWHAT",
			DiscountType:  domain.DiscountFixed,
			DiscountValue: decimal.NewFromInt(5),
			Currency:      domain.CurrencyUSD,
			UsageLimit:    intPtr(25),
			UsageCount:    8,
			ExpiresAt:     timePtr(now.Add(45 * day)),
			IsActive:      true,
		},
	}
}

// Announcements are the default site banners
func Announcements(now time.Time) []*domain.Announcement {
	return []*domain.Announcement{
		{
			ID:             "announcement-1",
			Title:          "Welcome to the Grand Line!",
			Message:        "Set sail with our new hosting plans and discover the digital treasure that awaits!",
			Type:           domain.AnnouncementSuccess,
			IsActive:       true,
			ShowOnHomepage: true,
		},
		{
			ID:             "announcement-2",
			Title:          "Limited Time Offer",
			Message:        "Use code PIRATE10 for 10% off all plans this month!",
			Type:           domain.AnnouncementInfo,
			IsActive:       true,
			ShowOnPlans:    true,
			ShowOnCheckout: true,
			ExpiresAt:      timePtr(now.Add(28 * day)),
		},
	}
}

// BlogPosts are the launch articles
func BlogPosts(now time.Time) []*domain.BlogPost {
	return []*domain.BlogPost{
		{
			ID:            "blog-1",
			Title:         "Getting Started with Minecraft Server Hosting",
			Slug:          "getting-started-minecraft-server-hosting",
			Excerpt:       "Learn how to set up your first Minecraft server and start your digital adventure on the Grand Line.",
			Content:       "<h2>Welcome to the World of Minecraft Hosting</h2><p>Choose your plan, configure your server from the control panel and invite your crew.</p><p>Ready to set sail? <a href=\"/plans\">Check out our Minecraft hosting plans</a>.</p>",
			Author:        "Captain Luffy",
			Category:      domain.BlogTutorials,
			Tags:          []string{"minecraft", "hosting", "tutorial", "beginner"},
			FeaturedImage: strPtr("https://images.pexels.com/photos/442576/pexels-photo-442576.jpeg"),
			IsPublished:   true,
			ReadTime:      intPtr(5),
			Views:         1250,
			CreatedAt:     now.Add(-3 * day),
		},
		{
			ID:            "blog-2",
			Title:         "VPS Security Best Practices",
			Slug:          "vps-security-best-practices",
			Excerpt:       "Protect your virtual private server like Zoro protects his swords with these essential security tips.",
			Content:       "<h2>Securing Your VPS: A Three-Sword Style Approach</h2><h3>First Sword: Strong Authentication</h3><p>Use SSH keys instead of passwords.</p><h3>Second Sword: Regular Updates</h3><p>Keep your OS updated.</p><h3>Third Sword: Monitoring and Backups</h3><p>Configure automated backups.</p>",
			Author:        "Roronoa Zoro",
			Category:      domain.BlogGuides,
			Tags:          []string{"vps", "security", "best-practices", "server"},
			FeaturedImage: strPtr("https://images.pexels.com/photos/60504/security-protection-anti-virus-software-60504.jpeg"),
			IsPublished:   true,
			ReadTime:      intPtr(8),
			Views:         890,
			CreatedAt:     now.Add(-7 * day),
		},
		{
			ID:            "blog-3",
			Title:         "New Features: Enhanced Control Panel",
			Slug:          "new-features-enhanced-control-panel",
			Excerpt:       "Discover the latest updates to our control panel that make managing your servers easier than ever.",
			Content:       "<h2>Setting Sail with Our New Control Panel</h2><ul><li>One-Click Backups</li><li>Real-time Monitoring</li><li>Mobile-Friendly Design</li><li>Advanced File Manager</li></ul>",
			Author:        "Nami",
			Category:      domain.BlogUpdates,
			Tags:          []string{"control-panel", "features", "updates", "announcement"},
			FeaturedImage: strPtr("https://images.pexels.com/photos/577585/pexels-photo-577585.jpeg"),
			IsPublished:   true,
			ReadTime:      intPtr(4),
			Views:         2100,
			CreatedAt:     now.Add(-1 * day),
		},
	}
}

// Customers are the demo accounts shown in the back office
func Customers() []*domain.Customer {
	return []*domain.Customer{
		{ID: "user-1", Email: "luffy@strawhat.com", Name: "Monkey D. Luffy", Phone: "+94 77 123 4567", Status: domain.CustomerActive},
		{ID: "user-2", Email: "zoro@strawhat.com", Name: "Roronoa Zoro", Phone: "+94 77 234 5678", Status: domain.CustomerActive},
		{ID: "user-3", Email: "nami@strawhat.com", Name: "Nami", Phone: "+94 77 345 6789", Status: domain.CustomerActive},
	}
}

// Result counts the records inserted by Run
type Result struct {
	Plans         int
	PromoCodes    int
	Announcements int
	BlogPosts     int
	Customers     int
}

// Run inserts every default record that is not stored yet. Records that
// already exist are left untouched, so Run can be repeated.
func Run(ctx context.Context, repos *repository.Repositories, logger *zap.Logger) (Result, error) {
	now := time.Now().UTC()
	var res Result
	var err error

	if res.Plans, err = insertAll(ctx, Plans(), repos.Plans.Create); err != nil {
		return res, fmt.Errorf("seed plans: %w", err)
	}
	if res.PromoCodes, err = insertAll(ctx, PromoCodes(now), repos.PromoCodes.Create); err != nil {
		return res, fmt.Errorf("seed promo codes: %w", err)
	}
	if res.Announcements, err = insertAll(ctx, Announcements(now), repos.Announcements.Create); err != nil {
		return res, fmt.Errorf("seed announcements: %w", err)
	}
	if res.BlogPosts, err = insertAll(ctx, BlogPosts(now), repos.BlogPosts.Create); err != nil {
		return res, fmt.Errorf("seed blog posts: %w", err)
	}
	if res.Customers, err = insertAll(ctx, Customers(), repos.Customers.Create); err != nil {
		return res, fmt.Errorf("seed customers: %w", err)
	}

	logger.Info("seed complete",
		zap.Int("plans", res.Plans),
		zap.Int("promo_codes", res.PromoCodes),
		zap.Int("announcements", res.Announcements),
		zap.Int("blog_posts", res.BlogPosts),
		zap.Int("customers", res.Customers),
	)
	return res, nil
}

func insertAll[T any](ctx context.Context, records []*T, create func(context.Context, *T) error) (int, error) {
	inserted := 0
	for _, rec := range records {
		err := create(ctx, rec)
		switch {
		case err == nil:
			inserted++
		case errors.Is(err, domain.ErrConflict):
		default:
			return inserted, err
		}
	}
	return inserted, nil
}
