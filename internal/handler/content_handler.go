package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sodcloud/storefront/internal/domain"
	"go.uber.org/zap"
)

// ContentHandler serves announcements and the blog
type ContentHandler struct {
	announcements domain.AnnouncementRepository
	posts         domain.BlogPostRepository
	logger        *zap.Logger
}

func NewContentHandler(announcements domain.AnnouncementRepository, posts domain.BlogPostRepository, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{announcements: announcements, posts: posts, logger: logger}
}

// ListAnnouncements handles GET /api/announcements?page=homepage|plans|checkout
func (h *ContentHandler) ListAnnouncements(c *fiber.Ctx) error {
	page := domain.Page(c.Query("page"))
	switch page {
	case "", domain.PageHomepage, domain.PagePlans, domain.PageCheckout:
	default:
		return respondError(c, h.logger, domain.NewValidationError("page must be one of homepage, plans, checkout"))
	}

	announcements, err := h.announcements.FetchActive(c.UserContext(), page, time.Now().UTC())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "announcements": announcements})
}

// ListPosts handles GET /api/blog
func (h *ContentHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.posts.FetchPublished(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "posts": posts})
}

// GetPost handles GET /api/blog/:slug. Reading a post counts a view.
func (h *ContentHandler) GetPost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	post, ok, err := h.publishedPost(c)
	if !ok {
		return err
	}

	if err := h.posts.IncrementViews(ctx, post.ID); err != nil {
		h.logger.Warn("failed to count blog view", zap.String("slug", post.Slug), zap.Error(err))
	} else {
		post.Views++
	}
	return c.JSON(fiber.Map{"success": true, "post": post})
}

// RelatedPosts handles GET /api/blog/:slug/related?limit=2
func (h *ContentHandler) RelatedPosts(c *fiber.Ctx) error {
	post, ok, err := h.publishedPost(c)
	if !ok {
		return err
	}

	limit := domain.DefaultRelatedPosts
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return respondError(c, h.logger, domain.NewValidationError("limit must be a positive number"))
		}
		limit = n
	}

	related, err := h.posts.FetchRelated(c.UserContext(), post.Category, post.ID, limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "posts": related})
}

// publishedPost resolves :slug. When ok is false the response has already
// been written and err is the write result.
func (h *ContentHandler) publishedPost(c *fiber.Ctx) (post *domain.BlogPost, ok bool, err error) {
	post, err = h.posts.GetBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, notFound(c, "Post")
		}
		return nil, false, respondError(c, h.logger, err)
	}
	if !post.IsPublished {
		return nil, false, notFound(c, "Post")
	}
	return post, true, nil
}
