package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sodcloud/storefront/internal/domain"
)

// KVAnnouncementRepository implements domain.AnnouncementRepository on the key-value layout
type KVAnnouncementRepository struct {
	coll *kvCollection[domain.Announcement]
}

func NewKVAnnouncementRepository(client *redis.Client, namespace string) *KVAnnouncementRepository {
	return &KVAnnouncementRepository{
		coll: newKVCollection(client, namespace, "announcements", func(a *domain.Announcement) string { return a.ID }),
	}
}

func newestAnnouncementsFirst(items []*domain.Announcement) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
}

func (r *KVAnnouncementRepository) FetchAll(ctx context.Context) ([]*domain.Announcement, error) {
	items, err := r.coll.all(ctx)
	if err != nil {
		return nil, err
	}
	newestAnnouncementsFirst(items)
	return items, nil
}

func (r *KVAnnouncementRepository) FetchActive(ctx context.Context, page domain.Page, now time.Time) ([]*domain.Announcement, error) {
	items, err := r.coll.all(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*domain.Announcement, 0, len(items))
	for _, a := range items {
		if a.VisibleOn(page, now) {
			active = append(active, a)
		}
	}
	newestAnnouncementsFirst(active)
	return active, nil
}

func (r *KVAnnouncementRepository) GetByID(ctx context.Context, id string) (*domain.Announcement, error) {
	return r.coll.byID(ctx, id)
}

func (r *KVAnnouncementRepository) Create(ctx context.Context, a *domain.Announcement) error {
	if a.ID == "" {
		a.ID = ulid.Make().String()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	stored := *a
	return r.coll.insert(ctx, &stored)
}

func (r *KVAnnouncementRepository) Update(ctx context.Context, id string, patch domain.AnnouncementPatch) (*domain.Announcement, error) {
	return r.coll.update(ctx, id, func(_ []*domain.Announcement, a *domain.Announcement) error {
		patch.Apply(a)
		if err := a.Validate(); err != nil {
			return err
		}
		a.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *KVAnnouncementRepository) Delete(ctx context.Context, id string) error {
	return r.coll.remove(ctx, id)
}

// KVBlogPostRepository implements domain.BlogPostRepository on the key-value layout
type KVBlogPostRepository struct {
	coll *kvCollection[domain.BlogPost]
}

func NewKVBlogPostRepository(client *redis.Client, namespace string) *KVBlogPostRepository {
	return &KVBlogPostRepository{
		coll: newKVCollection(client, namespace, "blog_posts", func(p *domain.BlogPost) string { return p.ID }),
	}
}

// published filters and orders posts newest first
func published(items []*domain.BlogPost, keep func(*domain.BlogPost) bool) []*domain.BlogPost {
	out := make([]*domain.BlogPost, 0, len(items))
	for _, p := range items {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *KVBlogPostRepository) FetchAll(ctx context.Context) ([]*domain.BlogPost, error) {
	items, err := r.coll.all(ctx)
	if err != nil {
		return nil, err
	}
	return published(items, func(*domain.BlogPost) bool { return true }), nil
}

func (r *KVBlogPostRepository) FetchPublished(ctx context.Context) ([]*domain.BlogPost, error) {
	items, err := r.coll.all(ctx)
	if err != nil {
		return nil, err
	}
	return published(items, func(p *domain.BlogPost) bool { return p.IsPublished }), nil
}

func (r *KVBlogPostRepository) FetchRelated(ctx context.Context, category domain.BlogCategory, excludeID string, limit int) ([]*domain.BlogPost, error) {
	if limit <= 0 {
		limit = domain.DefaultRelatedPosts
	}
	items, err := r.coll.all(ctx)
	if err != nil {
		return nil, err
	}
	related := published(items, func(p *domain.BlogPost) bool {
		return p.IsPublished && p.Category == category && p.ID != excludeID
	})
	if len(related) > limit {
		related = related[:limit]
	}
	return related, nil
}

func (r *KVBlogPostRepository) GetByID(ctx context.Context, id string) (*domain.BlogPost, error) {
	return r.coll.byID(ctx, id)
}

func (r *KVBlogPostRepository) GetBySlug(ctx context.Context, slug string) (*domain.BlogPost, error) {
	return r.coll.first(ctx, func(p *domain.BlogPost) bool { return p.Slug == slug })
}

func (r *KVBlogPostRepository) Create(ctx context.Context, post *domain.BlogPost) error {
	if post.ID == "" {
		post.ID = ulid.Make().String()
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	now := time.Now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now
	stored := *post

	return r.coll.mutate(ctx, func(posts []*domain.BlogPost) ([]*domain.BlogPost, error) {
		for _, p := range posts {
			if p.ID == stored.ID || p.Slug == stored.Slug {
				return nil, fmt.Errorf("blog post %s: %w", stored.Slug, domain.ErrConflict)
			}
		}
		return append(posts, &stored), nil
	})
}

func (r *KVBlogPostRepository) Update(ctx context.Context, id string, patch domain.BlogPostPatch) (*domain.BlogPost, error) {
	return r.coll.update(ctx, id, func(posts []*domain.BlogPost, post *domain.BlogPost) error {
		patch.Apply(post)
		if err := post.Validate(); err != nil {
			return err
		}
		for _, other := range posts {
			if other.ID != post.ID && other.Slug == post.Slug {
				return fmt.Errorf("blog post %s: %w", post.Slug, domain.ErrConflict)
			}
		}
		post.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *KVBlogPostRepository) IncrementViews(ctx context.Context, id string) error {
	_, err := r.coll.update(ctx, id, func(_ []*domain.BlogPost, post *domain.BlogPost) error {
		post.Views++
		return nil
	})
	return err
}

func (r *KVBlogPostRepository) Delete(ctx context.Context, id string) error {
	return r.coll.remove(ctx, id)
}
