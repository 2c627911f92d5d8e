package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sodcloud/storefront/internal/domain"
)

// PromoService evaluates promo codes against cart subtotals
type PromoService struct {
	repo domain.PromoCodeRepository
	now  func() time.Time
}

func NewPromoService(repo domain.PromoCodeRepository) *PromoService {
	return &PromoService{repo: repo, now: time.Now}
}

// Evaluate computes the discount code grants on subtotal. It never records usage.
// An empty code yields no discount without a lookup.
func (s *PromoService) Evaluate(ctx context.Context, code string, subtotal decimal.Decimal, currency domain.Currency) (domain.Discount, error) {
	normalized := domain.NormalizePromoCode(code)
	if normalized == "" {
		return domain.NoDiscount(subtotal, currency, ""), nil
	}

	promo, err := s.repo.GetByCode(ctx, normalized)
	if errors.Is(err, domain.ErrNotFound) {
		discount := domain.NoDiscount(subtotal, currency, domain.PromoReasonNotFound)
		discount.Code = normalized
		return discount, nil
	}
	if err != nil {
		return domain.Discount{}, fmt.Errorf("failed to load promo code: %w", err)
	}

	discount := promo.Evaluate(subtotal, currency, s.now().UTC())
	discount.Code = promo.Code
	return discount, nil
}
