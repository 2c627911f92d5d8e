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

// MongoPromoCodeRepository implements domain.PromoCodeRepository
type MongoPromoCodeRepository struct {
	collection *mongo.Collection
}

func NewMongoPromoCodeRepository(db *mongo.Database) *MongoPromoCodeRepository {
	coll := db.Collection("promo_codes")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoPromoCodeRepository{
		collection: coll,
	}
}

func (r *MongoPromoCodeRepository) Create(ctx context.Context, promo *domain.PromoCode) error {
	if promo.ID == "" {
		promo.ID = ulid.Make().String()
	}
	promo.Code = domain.NormalizePromoCode(promo.Code)
	now := time.Now().UTC()
	promo.CreatedAt = now
	promo.UpdatedAt = now

	doc := promoDocument(promo)
	doc["_id"] = promo.ID
	doc["usage_count"] = promo.UsageCount
	doc["created_at"] = promo.CreatedAt

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("promo code %s: %w", promo.Code, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create promo code: %w", err)
	}
	return nil
}

func (r *MongoPromoCodeRepository) GetByID(ctx context.Context, id string) (*domain.PromoCode, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByCode looks a code up case-insensitively
func (r *MongoPromoCodeRepository) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	return r.findOne(ctx, bson.M{"code": domain.NormalizePromoCode(code)})
}

func (r *MongoPromoCodeRepository) findOne(ctx context.Context, filter bson.M) (*domain.PromoCode, error) {
	var raw bson.M
	if err := r.collection.FindOne(ctx, filter).Decode(&raw); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	return mapBsonToPromoCode(raw), nil
}

func (r *MongoPromoCodeRepository) FetchAll(ctx context.Context) ([]*domain.PromoCode, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}
	return decodeAll(ctx, cursor, mapBsonToPromoCode)
}

// Update never touches usage_count; redemptions own that field
func (r *MongoPromoCodeRepository) Update(ctx context.Context, id string, patch domain.PromoCodePatch) (*domain.PromoCode, error) {
	promo, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(promo)
	if err := promo.Validate(); err != nil {
		return nil, err
	}
	promo.UpdatedAt = time.Now().UTC()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": promoDocument(promo)})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("promo code %s: %w", promo.Code, domain.ErrConflict)
		}
		return nil, fmt.Errorf("failed to update promo code: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, domain.ErrNotFound
	}
	return promo, nil
}

func (r *MongoPromoCodeRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete promo code: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// IncrementUsage bumps usage_count only while it is below usage_limit
func (r *MongoPromoCodeRepository) IncrementUsage(ctx context.Context, id string) error {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"usage_limit": nil},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$usage_count", "$usage_limit"}}},
		},
	}
	update := bson.M{
		"$inc": bson.M{"usage_count": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to increment promo usage: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrPromoExhausted
}

func promoDocument(promo *domain.PromoCode) bson.M {
	return bson.M{
		"code":           promo.Code,
		"discount_type":  string(promo.DiscountType),
		"discount_value": toDecimal128(promo.DiscountValue),
		"currency":       string(promo.Currency),
		"usage_limit":    nullableInt(promo.UsageLimit),
		"expires_at":     nullableTime(promo.ExpiresAt),
		"is_active":      promo.IsActive,
		"updated_at":     promo.UpdatedAt,
	}
}

func mapBsonToPromoCode(raw bson.M) *domain.PromoCode {
	return &domain.PromoCode{
		ID:            bsonString(raw, "_id"),
		Code:          bsonString(raw, "code"),
		DiscountType:  domain.DiscountType(bsonString(raw, "discount_type")),
		DiscountValue: bsonDecimal(raw, "discount_value"),
		Currency:      domain.Currency(bsonString(raw, "currency")),
		UsageLimit:    bsonIntPtr(raw, "usage_limit"),
		UsageCount:    bsonInt(raw, "usage_count"),
		ExpiresAt:     bsonTimePtr(raw, "expires_at"),
		IsActive:      bsonBool(raw, "is_active"),
		CreatedAt:     bsonTime(raw, "created_at"),
		UpdatedAt:     bsonTime(raw, "updated_at"),
	}
}
