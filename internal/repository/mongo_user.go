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

// MongoCustomerRepository implements domain.CustomerRepository over the users collection
type MongoCustomerRepository struct {
	collection *mongo.Collection
}

func NewMongoCustomerRepository(db *mongo.Database) *MongoCustomerRepository {
	coll := db.Collection("users")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoCustomerRepository{
		collection: coll,
	}
}

func (r *MongoCustomerRepository) Create(ctx context.Context, c *domain.Customer) error {
	if c.ID == "" {
		c.ID = ulid.Make().String()
	}
	c.Email = domain.NormalizeEmail(c.Email)
	if c.Status == "" {
		c.Status = domain.CustomerActive
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	doc := bson.M{
		"_id":        c.ID,
		"email":      c.Email,
		"name":       c.Name,
		"phone":      c.Phone,
		"status":     string(c.Status),
		"created_at": c.CreatedAt,
		"updated_at": c.UpdatedAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("customer %s: %w", c.Email, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (r *MongoCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoCustomerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *MongoCustomerRepository) findOne(ctx context.Context, filter bson.M) (*domain.Customer, error) {
	var raw bson.M
	if err := r.collection.FindOne(ctx, filter).Decode(&raw); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return mapBsonToCustomer(raw), nil
}

func (r *MongoCustomerRepository) FetchAll(ctx context.Context) ([]*domain.Customer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return decodeAll(ctx, cursor, mapBsonToCustomer)
}

func (r *MongoCustomerRepository) Update(ctx context.Context, id string, patch domain.CustomerPatch) (*domain.Customer, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()

	update := bson.M{"$set": bson.M{
		"name":       c.Name,
		"phone":      c.Phone,
		"status":     string(c.Status),
		"updated_at": c.UpdatedAt,
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (r *MongoCustomerRepository) UpsertByEmail(ctx context.Context, c *domain.Customer) error {
	c.Email = domain.NormalizeEmail(c.Email)
	newID := ulid.Make().String()
	now := time.Now().UTC()

	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        newID,
			"status":     string(domain.CustomerActive),
			"created_at": now,
		},
		"$set": bson.M{
			"name":       c.Name,
			"phone":      c.Phone,
			"updated_at": now,
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, bson.M{"email": c.Email}, update, opts); err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}

	stored, err := r.GetByEmail(ctx, c.Email)
	if err != nil {
		return err
	}
	*c = *stored
	return nil
}

func (r *MongoCustomerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func mapBsonToCustomer(raw bson.M) *domain.Customer {
	return &domain.Customer{
		ID:        bsonString(raw, "_id"),
		Email:     bsonString(raw, "email"),
		Name:      bsonString(raw, "name"),
		Phone:     bsonString(raw, "phone"),
		Status:    domain.CustomerStatus(bsonString(raw, "status")),
		CreatedAt: bsonTime(raw, "created_at"),
		UpdatedAt: bsonTime(raw, "updated_at"),
	}
}
