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

// MongoAnnouncementRepository implements domain.AnnouncementRepository
type MongoAnnouncementRepository struct {
	collection *mongo.Collection
}

func NewMongoAnnouncementRepository(db *mongo.Database) *MongoAnnouncementRepository {
	return &MongoAnnouncementRepository{
		collection: db.Collection("announcements"),
	}
}

var pageFlagField = map[domain.Page]string{
	domain.PageHomepage: "show_on_homepage",
	domain.PagePlans:    "show_on_plans",
	domain.PageCheckout: "show_on_checkout",
}

func (r *MongoAnnouncementRepository) Create(ctx context.Context, a *domain.Announcement) error {
	if a.ID == "" {
		a.ID = ulid.Make().String()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	doc := announcementDocument(a)
	doc["_id"] = a.ID
	doc["created_at"] = a.CreatedAt

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("announcement %s: %w", a.ID, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create announcement: %w", err)
	}
	return nil
}

func (r *MongoAnnouncementRepository) GetByID(ctx context.Context, id string) (*domain.Announcement, error) {
	var raw bson.M
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&raw); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get announcement: %w", err)
	}
	return mapBsonToAnnouncement(raw), nil
}

func (r *MongoAnnouncementRepository) FetchAll(ctx context.Context) ([]*domain.Announcement, error) {
	return r.find(ctx, bson.M{})
}

// FetchActive returns active, unexpired banners for page, newest first
func (r *MongoAnnouncementRepository) FetchActive(ctx context.Context, page domain.Page, now time.Time) ([]*domain.Announcement, error) {
	query := bson.M{
		"is_active": true,
		"$or": bson.A{
			bson.M{"expires_at": nil},
			bson.M{"expires_at": bson.M{"$gt": now.UTC()}},
		},
	}
	if field, ok := pageFlagField[page]; ok {
		query[field] = true
	}
	return r.find(ctx, query)
}

func (r *MongoAnnouncementRepository) find(ctx context.Context, query bson.M) ([]*domain.Announcement, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	return decodeAll(ctx, cursor, mapBsonToAnnouncement)
}

func (r *MongoAnnouncementRepository) Update(ctx context.Context, id string, patch domain.AnnouncementPatch) (*domain.Announcement, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(a)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a.UpdatedAt = time.Now().UTC()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": announcementDocument(a)})
	if err != nil {
		return nil, fmt.Errorf("failed to update announcement: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (r *MongoAnnouncementRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func announcementDocument(a *domain.Announcement) bson.M {
	return bson.M{
		"title":            a.Title,
		"message":          a.Message,
		"type":             string(a.Type),
		"is_active":        a.IsActive,
		"show_on_homepage": a.ShowOnHomepage,
		"show_on_plans":    a.ShowOnPlans,
		"show_on_checkout": a.ShowOnCheckout,
		"expires_at":       nullableTime(a.ExpiresAt),
		"updated_at":       a.UpdatedAt,
	}
}

func mapBsonToAnnouncement(raw bson.M) *domain.Announcement {
	return &domain.Announcement{
		ID:             bsonString(raw, "_id"),
		Title:          bsonString(raw, "title"),
		Message:        bsonString(raw, "message"),
		Type:           domain.AnnouncementType(bsonString(raw, "type")),
		IsActive:       bsonBool(raw, "is_active"),
		ShowOnHomepage: bsonBool(raw, "show_on_homepage"),
		ShowOnPlans:    bsonBool(raw, "show_on_plans"),
		ShowOnCheckout: bsonBool(raw, "show_on_checkout"),
		ExpiresAt:      bsonTimePtr(raw, "expires_at"),
		CreatedAt:      bsonTime(raw, "created_at"),
		UpdatedAt:      bsonTime(raw, "updated_at"),
	}
}
