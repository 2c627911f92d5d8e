package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// toDecimal128 stores money exactly; decimal strings always parse as Decimal128
func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func bsonDecimal(raw bson.M, key string) decimal.Decimal {
	switch v := raw[key].(type) {
	case primitive.Decimal128:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int32:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.Zero
}

func bsonString(raw bson.M, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func bsonStringPtr(raw bson.M, key string) *string {
	if v, ok := raw[key].(string); ok {
		return &v
	}
	return nil
}

func bsonBool(raw bson.M, key string) bool {
	if v, ok := raw[key].(bool); ok {
		return v
	}
	return false
}

func bsonInt(raw bson.M, key string) int {
	switch v := raw[key].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func bsonIntPtr(raw bson.M, key string) *int {
	switch raw[key].(type) {
	case int32, int64, float64:
		v := bsonInt(raw, key)
		return &v
	}
	return nil
}

func bsonTime(raw bson.M, key string) time.Time {
	if v, ok := raw[key].(primitive.DateTime); ok {
		return v.Time().UTC()
	}
	return time.Time{}
}

func bsonTimePtr(raw bson.M, key string) *time.Time {
	if v, ok := raw[key].(primitive.DateTime); ok {
		t := v.Time().UTC()
		return &t
	}
	return nil
}

func bsonStrings(raw bson.M, key string) []string {
	arr, ok := raw[key].(bson.A)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// asBsonM accepts embedded documents decoded as either M or D
func asBsonM(v interface{}) (bson.M, bool) {
	switch doc := v.(type) {
	case bson.M:
		return doc, true
	case bson.D:
		m := make(bson.M, len(doc))
		for _, e := range doc {
			m[e.Key] = e.Value
		}
		return m, true
	}
	return nil, false
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return v.UTC()
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// decodeAll drains cursor through mapFn and closes it
func decodeAll[T any](ctx context.Context, cursor *mongo.Cursor, mapFn func(bson.M) *T) ([]*T, error) {
	defer cursor.Close(ctx)

	out := []*T{}
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		out = append(out, mapFn(raw))
	}
	return out, cursor.Err()
}
