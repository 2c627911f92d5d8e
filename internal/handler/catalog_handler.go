package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sodcloud/storefront/internal/domain"
	"go.uber.org/zap"
)

// CatalogHandler serves the public plan catalog
type CatalogHandler struct {
	plans  domain.PlanRepository
	logger *zap.Logger
}

func NewCatalogHandler(plans domain.PlanRepository, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{plans: plans, logger: logger}
}

// ListPlans handles GET /api/plans?category=
func (h *CatalogHandler) ListPlans(c *fiber.Ctx) error {
	filter := domain.PlanFilter{Category: domain.PlanCategory(c.Query("category"))}
	if filter.Category != "" && !filter.Category.Valid() {
		return respondError(c, h.logger, domain.NewValidationError("category must be one of minecraft, vps, vlss, v2ray"))
	}

	plans, err := h.plans.FetchAll(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "plans": plans})
}

// GetPlan handles GET /api/plans/:id
func (h *CatalogHandler) GetPlan(c *fiber.Ctx) error {
	plan, err := h.plans.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return notFound(c, "Plan")
		}
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "plan": plan})
}
