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

// MongoPlanRepository implements domain.PlanRepository
type MongoPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanRepository creates a new plan repository
func NewMongoPlanRepository(db *mongo.Database) *MongoPlanRepository {
	return &MongoPlanRepository{
		collection: db.Collection("plans"),
	}
}

func (r *MongoPlanRepository) Create(ctx context.Context, plan *domain.Plan) error {
	if plan.ID == "" {
		plan.ID = ulid.Make().String()
	}
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	doc := planDocument(plan)
	doc["_id"] = plan.ID // string ids, e.g. "minecraft-going-merry"
	doc["created_at"] = plan.CreatedAt

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("plan %s: %w", plan.ID, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

func (r *MongoPlanRepository) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	var raw bson.M
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&raw); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return mapBsonToPlan(raw), nil
}

func (r *MongoPlanRepository) FetchAll(ctx context.Context, filter domain.PlanFilter) ([]*domain.Plan, error) {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "price_usd", Value: 1}})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return decodeAll(ctx, cursor, mapBsonToPlan)
}

// Update applies patch over the stored plan; last write wins
func (r *MongoPlanRepository) Update(ctx context.Context, id string, patch domain.PlanPatch) (*domain.Plan, error) {
	plan, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(plan)
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	plan.UpdatedAt = time.Now().UTC()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": planDocument(plan)})
	if err != nil {
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, domain.ErrNotFound
	}
	return plan, nil
}

func (r *MongoPlanRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// planDocument holds the mutable fields; _id and created_at are set on insert only
func planDocument(plan *domain.Plan) bson.M {
	return bson.M{
		"name":         plan.Name,
		"category":     string(plan.Category),
		"price_usd":    toDecimal128(plan.PriceUSD),
		"price_lkr":    toDecimal128(plan.PriceLKR),
		"vcpu":         plan.VCPU,
		"ram":          plan.RAM,
		"storage":      plan.Storage,
		"storage_type": string(plan.StorageType),
		"is_popular":   plan.IsPopular,
		"updated_at":   plan.UpdatedAt,
	}
}

func mapBsonToPlan(raw bson.M) *domain.Plan {
	return &domain.Plan{
		ID:          bsonString(raw, "_id"),
		Name:        bsonString(raw, "name"),
		Category:    domain.PlanCategory(bsonString(raw, "category")),
		PriceUSD:    bsonDecimal(raw, "price_usd"),
		PriceLKR:    bsonDecimal(raw, "price_lkr"),
		VCPU:        bsonInt(raw, "vcpu"),
		RAM:         bsonInt(raw, "ram"),
		Storage:     bsonInt(raw, "storage"),
		StorageType: domain.StorageType(bsonString(raw, "storage_type")),
		IsPopular:   bsonBool(raw, "is_popular"),
		CreatedAt:   bsonTime(raw, "created_at"),
		UpdatedAt:   bsonTime(raw, "updated_at"),
	}
}
