package domain

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// BlogCategory groups posts on the blog index
type BlogCategory string

const (
	BlogTutorials BlogCategory = "tutorials"
	BlogNews      BlogCategory = "news"
	BlogGuides    BlogCategory = "guides"
	BlogUpdates   BlogCategory = "updates"
)

// Valid reports whether c is a known blog category
func (c BlogCategory) Valid() bool {
	switch c {
	case BlogTutorials, BlogNews, BlogGuides, BlogUpdates:
		return true
	}
	return false
}

// DefaultRelatedPosts is how many related posts are returned when no limit is given
const DefaultRelatedPosts = 2

// BlogPost is a published or draft article
type BlogPost struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Slug          string       `json:"slug"`
	Excerpt       string       `json:"excerpt"`
	Content       string       `json:"content"`
	Author        string       `json:"author"`
	Category      BlogCategory `json:"category"`
	Tags          []string     `json:"tags"`
	FeaturedImage *string      `json:"featured_image"`
	IsPublished   bool         `json:"is_published"`
	ReadTime      *int         `json:"read_time"` // minutes
	Views         int          `json:"views"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a title into a url slug
func Slugify(title string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

// Validate checks the invariants of a complete post
func (p *BlogPost) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Title) == "" {
		problems = append(problems, "title is required")
	}
	if p.Slug == "" || p.Slug != Slugify(p.Slug) {
		problems = append(problems, "slug must be lowercase words joined by hyphens")
	}
	if strings.TrimSpace(p.Content) == "" {
		problems = append(problems, "content is required")
	}
	if !p.Category.Valid() {
		problems = append(problems, "category must be one of tutorials, news, guides, updates")
	}
	if p.ReadTime != nil && *p.ReadTime < 0 {
		problems = append(problems, "read_time must not be negative")
	}
	return NewValidationError(problems...)
}

// BlogPostPatch is a partial post update
type BlogPostPatch struct {
	Title         *string       `json:"title,omitempty"`
	Slug          *string       `json:"slug,omitempty"`
	Excerpt       *string       `json:"excerpt,omitempty"`
	Content       *string       `json:"content,omitempty"`
	Author        *string       `json:"author,omitempty"`
	Category      *BlogCategory `json:"category,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
	FeaturedImage *string       `json:"featured_image,omitempty"`
	IsPublished   *bool         `json:"is_published,omitempty"`
	ReadTime      *int          `json:"read_time,omitempty"`
}

// Apply copies the set fields onto p
func (patch *BlogPostPatch) Apply(p *BlogPost) {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Slug != nil {
		p.Slug = *patch.Slug
	}
	if patch.Excerpt != nil {
		p.Excerpt = *patch.Excerpt
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	if patch.Author != nil {
		p.Author = *patch.Author
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Tags != nil {
		p.Tags = append([]string(nil), patch.Tags...)
	}
	if patch.FeaturedImage != nil {
		img := *patch.FeaturedImage
		p.FeaturedImage = &img
	}
	if patch.IsPublished != nil {
		p.IsPublished = *patch.IsPublished
	}
	if patch.ReadTime != nil {
		rt := *patch.ReadTime
		p.ReadTime = &rt
	}
}

// BlogPostRepository defines operations for managing blog posts
type BlogPostRepository interface {
	FetchAll(ctx context.Context) ([]*BlogPost, error)
	// FetchPublished returns published posts, newest first
	FetchPublished(ctx context.Context) ([]*BlogPost, error)
	GetByID(ctx context.Context, id string) (*BlogPost, error)
	GetBySlug(ctx context.Context, slug string) (*BlogPost, error)
	// FetchRelated returns published posts of category other than excludeID, newest first
	FetchRelated(ctx context.Context, category BlogCategory, excludeID string, limit int) ([]*BlogPost, error)
	Create(ctx context.Context, post *BlogPost) error
	Update(ctx context.Context, id string, patch BlogPostPatch) (*BlogPost, error)
	IncrementViews(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
