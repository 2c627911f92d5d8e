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

// MongoOrderRepository implements domain.OrderRepository
type MongoOrderRepository struct {
	collection *mongo.Collection
}

// NewMongoOrderRepository creates a new order repository
func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	coll := db.Collection("orders")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "payhere_order_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})

	return &MongoOrderRepository{
		collection: coll,
	}
}

func (r *MongoOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = ulid.Make().String()
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	items := bson.A{}
	for _, item := range order.Items {
		items = append(items, bson.M{
			"plan_id":   item.PlanID,
			"name":      item.Name,
			"quantity":  item.Quantity,
			"price_usd": toDecimal128(item.PriceUSD),
			"price_lkr": toDecimal128(item.PriceLKR),
		})
	}

	doc := bson.M{
		"_id":                order.ID,
		"user_email":         order.UserEmail,
		"customer_name":      order.CustomerName,
		"customer_phone":     order.CustomerPhone,
		"plan_id":            order.PlanID,
		"items":              items,
		"status":             string(order.Status),
		"amount_usd":         toDecimal128(order.AmountUSD),
		"amount_lkr":         toDecimal128(order.AmountLKR),
		"currency":           string(order.Currency),
		"promo_code":         order.PromoCode,
		"discount_amount":    toDecimal128(order.DiscountAmount),
		"promo_redeemed":     order.PromoRedeemed,
		"payhere_order_id":   order.GatewayOrderID,
		"payhere_payment_id": nullableString(order.GatewayPaymentID),
		"failure_reason":     order.FailureReason,
		"created_at":         order.CreatedAt,
		"updated_at":         order.UpdatedAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("order %s reference %s: %w", order.ID, order.GatewayOrderID, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *MongoOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByGatewayReference looks an order up by the reference handed to the payment widget
func (r *MongoOrderRepository) FindByGatewayReference(ctx context.Context, ref string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"payhere_order_id": ref})
}

func (r *MongoOrderRepository) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var raw bson.M
	if err := r.collection.FindOne(ctx, filter).Decode(&raw); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return mapBsonToOrder(raw), nil
}

// FetchAll lists orders newest first
func (r *MongoOrderRepository) FetchAll(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if !filter.CreatedBefore.IsZero() {
		query["created_at"] = bson.M{"$lt": filter.CreatedBefore.UTC()}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return decodeAll(ctx, cursor, mapBsonToOrder)
}

// TransitionStatus matches on status=pending so only one terminal write can land
func (r *MongoOrderRepository) TransitionStatus(ctx context.Context, id string, change domain.StatusChange) (*domain.Order, bool, error) {
	if !change.Status.IsTerminal() {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrInvalidTransition, change.Status)
	}

	set := bson.M{
		"status":     string(change.Status),
		"updated_at": time.Now().UTC(),
	}
	if change.PaymentID != nil {
		set["payhere_payment_id"] = *change.PaymentID
	}
	if change.FailureReason != "" {
		set["failure_reason"] = change.FailureReason
	}

	filter := bson.M{"_id": id, "status": string(domain.OrderStatusPending)}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var raw bson.M
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&raw)
	if err == nil {
		return mapBsonToOrder(raw), true, nil
	}
	if !isNoDocuments(err) {
		return nil, false, fmt.Errorf("failed to transition order: %w", err)
	}

	// Either missing or already terminal
	stored, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func (r *MongoOrderRepository) MarkPromoRedeemed(ctx context.Context, id string) error {
	update := bson.M{"$set": bson.M{"promo_redeemed": true, "updated_at": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to mark promo redeemed: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func mapBsonToOrder(raw bson.M) *domain.Order {
	order := &domain.Order{
		ID:               bsonString(raw, "_id"),
		UserEmail:        bsonString(raw, "user_email"),
		CustomerName:     bsonString(raw, "customer_name"),
		CustomerPhone:    bsonString(raw, "customer_phone"),
		PlanID:           bsonString(raw, "plan_id"),
		Status:           domain.OrderStatus(bsonString(raw, "status")),
		AmountUSD:        bsonDecimal(raw, "amount_usd"),
		AmountLKR:        bsonDecimal(raw, "amount_lkr"),
		Currency:         domain.Currency(bsonString(raw, "currency")),
		PromoCode:        bsonString(raw, "promo_code"),
		DiscountAmount:   bsonDecimal(raw, "discount_amount"),
		PromoRedeemed:    bsonBool(raw, "promo_redeemed"),
		GatewayOrderID:   bsonString(raw, "payhere_order_id"),
		GatewayPaymentID: bsonStringPtr(raw, "payhere_payment_id"),
		FailureReason:    bsonString(raw, "failure_reason"),
		CreatedAt:        bsonTime(raw, "created_at"),
		UpdatedAt:        bsonTime(raw, "updated_at"),
	}

	if items, ok := raw["items"].(bson.A); ok {
		for _, entry := range items {
			item, ok := asBsonM(entry)
			if !ok {
				continue
			}
			order.Items = append(order.Items, domain.OrderItem{
				PlanID:   bsonString(item, "plan_id"),
				Name:     bsonString(item, "name"),
				Quantity: bsonInt(item, "quantity"),
				PriceUSD: bsonDecimal(item, "price_usd"),
				PriceLKR: bsonDecimal(item, "price_lkr"),
			})
		}
	}

	return order
}
