package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sodcloud/storefront/internal/domain"
	"github.com/sodcloud/storefront/internal/repository"
	"github.com/sodcloud/storefront/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AdminHandler serves the back office under /api/admin
type AdminHandler struct {
	repos  *repository.Repositories
	orders *service.OrderService
	tokens *service.TokenService
	logger *zap.Logger
}

func NewAdminHandler(
	repos *repository.Repositories,
	orders *service.OrderService,
	tokens *service.TokenService,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		repos:  repos,
		orders: orders,
		tokens: tokens,
		logger: logger,
	}
}

// fail maps a not-found into a named 404 and everything else through respondError
func (h *AdminHandler) fail(c *fiber.Ctx, what string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return notFound(c, what)
	}
	return respondError(c, h.logger, err)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /api/admin/login
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	token, err := h.tokens.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.logger.Warn("admin login rejected", zap.String("username", req.Username), zap.String("ip", c.IP()))
		}
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": token})
}

// Overview is the back-office dashboard summary
type Overview struct {
	Plans         int                                 `json:"plans"`
	Orders        map[domain.OrderStatus]int          `json:"orders"`
	TotalOrders   int                                 `json:"total_orders"`
	Revenue       map[domain.Currency]decimal.Decimal `json:"revenue"`
	PromoCodes    int                                 `json:"promo_codes"`
	Announcements int                                 `json:"announcements"`
	BlogPosts     int                                 `json:"blog_posts"`
	Users         int                                 `json:"users"`
}

// GetOverview handles GET /api/admin/overview. The stores are read concurrently.
func (h *AdminHandler) GetOverview(c *fiber.Ctx) error {
	g, ctx := errgroup.WithContext(c.UserContext())
	overview := Overview{
		Orders:  make(map[domain.OrderStatus]int),
		Revenue: make(map[domain.Currency]decimal.Decimal),
	}

	g.Go(func() error {
		plans, err := h.repos.Plans.FetchAll(ctx, domain.PlanFilter{})
		overview.Plans = len(plans)
		return err
	})
	g.Go(func() error {
		orders, err := h.repos.Orders.FetchAll(ctx, domain.OrderFilter{})
		if err != nil {
			return err
		}
		overview.TotalOrders = len(orders)
		for _, currency := range domain.Currencies {
			overview.Revenue[currency] = decimal.Zero
		}
		for _, o := range orders {
			overview.Orders[o.Status]++
			if o.Status == domain.OrderStatusCompleted {
				overview.Revenue[o.Currency] = overview.Revenue[o.Currency].Add(o.Amount())
			}
		}
		return nil
	})
	g.Go(func() error {
		promos, err := h.repos.PromoCodes.FetchAll(ctx)
		overview.PromoCodes = len(promos)
		return err
	})
	g.Go(func() error {
		announcements, err := h.repos.Announcements.FetchAll(ctx)
		overview.Announcements = len(announcements)
		return err
	})
	g.Go(func() error {
		posts, err := h.repos.BlogPosts.FetchAll(ctx)
		overview.BlogPosts = len(posts)
		return err
	})
	g.Go(func() error {
		users, err := h.repos.Customers.FetchAll(ctx)
		overview.Users = len(users)
		return err
	})

	if err := g.Wait(); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": overview})
}

// === Plans ===

func (h *AdminHandler) ListPlans(c *fiber.Ctx) error {
	plans, err := h.repos.Plans.FetchAll(c.UserContext(), domain.PlanFilter{})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "plans": plans})
}

func (h *AdminHandler) CreatePlan(c *fiber.Ctx) error {
	var plan domain.Plan
	if err := c.BodyParser(&plan); err != nil {
		return respondError(c, h.logger, domain.NewValidationError("Invalid request body"))
	}
	if err := plan.Validate(); err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.repos.Plans.Create(c.UserContext(), &plan); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "plan": plan})
}

func (h *AdminHandler) UpdatePlan(c *fiber.Ctx) error {
	var patch domain.PlanPatch
	if err := c.BodyParser(&patch); err != nil {
		return respondError(c, h.logger, domain.NewValidationError("Invalid request body"))
	}
	if err := patch.Validate(); err != nil {
		return respondError(c, h.logger, err)
	}
	plan, err := h.repos.Plans.Update(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return h.fail(c, "Plan", err)
	}
	return c.JSON(fiber.Map{"success": true, "plan": plan})
}

func (h *AdminHandler) DeletePlan(c *fiber.Ctx) error {
	if err := h.repos.Plans.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, "Plan", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// === Promo codes ===

func (h *AdminHandler) ListPromoCodes(c *fiber.Ctx) error {
	promos, err := h.repos.PromoCodes.FetchAll(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "promo_codes": promos})
}

func (h *AdminHandler) CreatePromoCode(c *fiber.Ctx) error {
	var promo domain.PromoCode
	if err := c.BodyParser(&promo); err != nil {
		return respondError(c, h.logger, domain.NewValidationError("Invalid request body"))
	}
	promo.Code = domain.NormalizePromoCode(promo.Code)
	promo.Currency = domain.Currency(strings.ToUpper(string(promo.Currency)))
	if err := promo.Validate(); err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.repos.PromoCodes.Create(c.UserContext(), &promo); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "promo_code": promo})
}

func (h *AdminHandler) UpdatePromoCode(c *fiber.Ctx) error {
	var patch domain.PromoCodePatch
	if err := c.BodyParser(&patch); err != nil {
		return respondError(c, h.logger, domain.NewValidationError("Invalid request body"))
	}
	promo, err := h.repos.PromoCodes.Update(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return h.fail(c, "Promo code", err)
	}
	return c.JSON(fiber.Map{"success": true, "promo_code": promo})
}

func (h *AdminHandler) DeletePromoCode(c *fiber.Ctx) error {
	if err := h.repos.PromoCodes.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, "Promo code", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// === Announcements ===

func (h *AdminHandler) ListAnnouncements(c *fiber.Ctx) error {
	announcements, err := h.repos.Announcements.FetchAll(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "announcements": announcements})
}

func (h *AdminHandler) CreateAnnouncement(c *fiber.Ctx) error {
	var a domain.Announcement
	if err := c.BodyParser(&a); err != nil {
		return respondError(c, h.logger, domain.NewValidationError("Invalid request body"))
	}
	if a.Type == "" {
		a.Type = domain.AnnouncementInfo
	}
	if err := a.Validate(); err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.repos.Announcements.Create(c.UserContext(), &a); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "announcement": a})
}

func (h *AdminHandler) UpdateAnnouncement(c *fiber.Ctx) error {
	var patch domain.AnnouncementPatch
	if err := c.BodyParser(&patch); err != nil {
		return respondError(c, h.logger, domain.NewValidationError("Invalid request body"))
	}
	a, err := h.repos.Announcements.Update(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return h.fail(c, "Announcement", err)
	}
	return c.JSON(fiber.Map{"success": true, "announcement": a})
}

func (h *AdminHandler) DeleteAnnouncement(c *fiber.Ctx) error {
	if err := h.repos.Announcements.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, "Announcement", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// === Blog posts ===

func (h *AdminHandler) ListBlogPosts(c *fiber.Ctx) error {
	posts, err := h.repos.BlogPosts.FetchAll(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "posts": posts})
}

func (h *AdminHandler) CreateBlogPost(c *fiber.Ctx) error {
	var post domain.BlogPost
	if err := c.BodyParser(&post); err != nil {
		return respondError(c, h.logger, domain.NewValidationError("Invalid request body"))
	}
	if post.Slug == "" {
		post.Slug = domain.Slugify(post.Title)
	}
	if err := post.Validate(); err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.repos.BlogPosts.Create(c.UserContext(), &post); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "post": post})
}

func (h *AdminHandler) UpdateBlogPost(c *fiber.Ctx) error {
	var patch domain.BlogPostPatch
	if err := c.BodyParser(&patch); err != nil {
		return respondError(c, h.logger, domain.NewValidationError("Invalid request body"))
	}
	post, err := h.repos.BlogPosts.Update(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return h.fail(c, "Post", err)
	}
	return c.JSON(fiber.Map{"success": true, "post": post})
}

func (h *AdminHandler) DeleteBlogPost(c *fiber.Ctx) error {
	if err := h.repos.BlogPosts.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, "Post", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// === Users ===

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.repos.Customers.FetchAll(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "users": users})
}

func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	var user domain.Customer
	if err := c.BodyParser(&user); err != nil {
		return respondError(c, h.logger, domain.NewValidationError("Invalid request body"))
	}
	if user.Status == "" {
		user.Status = domain.CustomerActive
	}
	if err := user.Validate(); err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.repos.Customers.Create(c.UserContext(), &user); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "user": user})
}

func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	var patch domain.CustomerPatch
	if err := c.BodyParser(&patch); err != nil {
		return respondError(c, h.logger, domain.NewValidationError("Invalid request body"))
	}
	user, err := h.repos.Customers.Update(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return h.fail(c, "User", err)
	}
	return c.JSON(fiber.Map{"success": true, "user": user})
}

func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	if err := h.repos.Customers.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, "User", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// === Orders ===

func (h *AdminHandler) ListOrders(c *fiber.Ctx) error {
	filter, err := orderFilterFromQuery(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	orders, err := h.orders.ListOrders(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "orders": orders})
}

func (h *AdminHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.orders.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, "Order", err)
	}
	return c.JSON(fiber.Map{"success": true, "order": order})
}

type setStatusRequest struct {
	Status    string `json:"status" validate:"required,oneof=completed failed cancelled"`
	PaymentID string `json:"payment_id"`
}

// SetOrderStatus handles POST /api/admin/orders/:id/status
func (h *AdminHandler) SetOrderStatus(c *fiber.Ctx) error {
	var req setStatusRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	order, err := h.orders.SetStatus(c.UserContext(), c.Params("id"), domain.OrderStatus(req.Status), req.PaymentID)
	if err != nil {
		return h.fail(c, "Order", err)
	}
	h.logger.Info("order status set by operator",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.Any("operator", c.Locals("username")),
	)
	return c.JSON(fiber.Map{"success": true, "order": order})
}
