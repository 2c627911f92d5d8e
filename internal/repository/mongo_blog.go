package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sodcloud/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBlogPostRepository implements domain.BlogPostRepository
type MongoBlogPostRepository struct {
	collection *mongo.Collection
}

func NewMongoBlogPostRepository(db *mongo.Database) *MongoBlogPostRepository {
	coll := db.Collection("blog_posts")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "is_published", Value: 1}, {Key: "created_at", Value: -1}}},
	})

	return &MongoBlogPostRepository{
		collection: coll,
	}
}

func (r *MongoBlogPostRepository) Create(ctx context.Context, post *domain.BlogPost) error {
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

	doc := blogPostDocument(post)
	doc["_id"] = post.ID
	doc["views"] = post.Views
	doc["created_at"] = post.CreatedAt

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("blog post %s: %w", post.Slug, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create blog post: %w", err)
	}
	return nil
}

func (r *MongoBlogPostRepository) GetByID(ctx context.Context, id string) (*domain.BlogPost, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoBlogPostRepository) GetBySlug(ctx context.Context, slug string) (*domain.BlogPost, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *MongoBlogPostRepository) findOne(ctx context.Context, filter bson.M) (*domain.BlogPost, error) {
	var raw bson.M
	if err := r.collection.FindOne(ctx, filter).Decode(&raw); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get blog post: %w", err)
	}
	return mapBsonToBlogPost(raw), nil
}

func (r *MongoBlogPostRepository) FetchAll(ctx context.Context) ([]*domain.BlogPost, error) {
	return r.find(ctx, bson.M{}, 0)
}

func (r *MongoBlogPostRepository) FetchPublished(ctx context.Context) ([]*domain.BlogPost, error) {
	return r.find(ctx, bson.M{"is_published": true}, 0)
}

func (r *MongoBlogPostRepository) FetchRelated(ctx context.Context, category domain.BlogCategory, excludeID string, limit int) ([]*domain.BlogPost, error) {
	if limit <= 0 {
		limit = domain.DefaultRelatedPosts
	}
	query := bson.M{
		"is_published": true,
		"category":     string(category),
		"_id":          bson.M{"$ne": excludeID},
	}
	return r.find(ctx, query, limit)
}

func (r *MongoBlogPostRepository) find(ctx context.Context, query bson.M, limit int) ([]*domain.BlogPost, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list blog posts: %w", err)
	}
	return decodeAll(ctx, cursor, mapBsonToBlogPost)
}

func (r *MongoBlogPostRepository) Update(ctx context.Context, id string, patch domain.BlogPostPatch) (*domain.BlogPost, error) {
	post, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(post)
	if err := post.Validate(); err != nil {
		return nil, err
	}
	post.UpdatedAt = time.Now().UTC()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": blogPostDocument(post)})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("blog post %s: %w", post.Slug, domain.ErrConflict)
		}
		return nil, fmt.Errorf("failed to update blog post: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, domain.ErrNotFound
	}
	return post, nil
}

func (r *MongoBlogPostRepository) IncrementViews(ctx context.Context, id string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": 1}})
	if err != nil {
		return fmt.Errorf("failed to increment blog views: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoBlogPostRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete blog post: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func blogPostDocument(post *domain.BlogPost) bson.M {
	return bson.M{
		"title":          post.Title,
		"slug":           post.Slug,
		"excerpt":        post.Excerpt,
		"content":        post.Content,
		"author":         post.Author,
		"category":       string(post.Category),
		"tags":           post.Tags,
		"featured_image": nullableString(post.FeaturedImage),
		"is_published":   post.IsPublished,
		"read_time":      nullableInt(post.ReadTime),
		"updated_at":     post.UpdatedAt,
	}
}

func mapBsonToBlogPost(raw bson.M) *domain.BlogPost {
	return &domain.BlogPost{
		ID:            bsonString(raw, "_id"),
		Title:         bsonString(raw, "title"),
		Slug:          bsonString(raw, "slug"),
		Excerpt:       bsonString(raw, "excerpt"),
		Content:       bsonString(raw, "content"),
		Author:        bsonString(raw, "author"),
		Category:      domain.BlogCategory(bsonString(raw, "category")),
		Tags:          bsonStrings(raw, "tags"),
		FeaturedImage: bsonStringPtr(raw, "featured_image"),
		IsPublished:   bsonBool(raw, "is_published"),
		ReadTime:      bsonIntPtr(raw, "read_time"),
		Views:         bsonInt(raw, "views"),
		CreatedAt:     bsonTime(raw, "created_at"),
		UpdatedAt:     bsonTime(raw, "updated_at"),
	}
}
