package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/sodcloud/storefront/internal/config"
	"github.com/sodcloud/storefront/internal/domain"
)

// S3ReceiptStore implements domain.ReceiptStore on any S3-compatible bucket
type S3ReceiptStore struct {
	client *s3.Client
	bucket string
}

// receipt is the archived document for a completed order
type receipt struct {
	OrderID     string             `json:"order_id"`
	Reference   string             `json:"reference"`
	PaymentID   string             `json:"payment_id"`
	Email       string             `json:"email"`
	Name        string             `json:"name,omitempty"`
	Currency    domain.Currency    `json:"currency"`
	Amount      string             `json:"amount"`
	Discount    string             `json:"discount"`
	PromoCode   string             `json:"promo_code,omitempty"`
	Items       []domain.OrderItem `json:"items"`
	IssuedAt    time.Time          `json:"issued_at"`
	OrderPlaced time.Time          `json:"order_placed"`
}

// NewS3ReceiptStore creates the client and makes sure the bucket exists
func NewS3ReceiptStore(ctx context.Context, cfg appConfig.S3Config) (*S3ReceiptStore, error) {
	accessKey, secretKey := cfg.AccessKey, cfg.SecretKey
	if accessKey == "" {
		// S3-compatible stores such as SeaweedFS or MinIO still want a signature
		accessKey, secretKey = "any", "any"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	store := &S3ReceiptStore{client: client, bucket: cfg.Bucket}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// PutReceipt writes receipts/<yyyy>/<mm>/<order id>.json and returns the key
func (s *S3ReceiptStore) PutReceipt(ctx context.Context, order *domain.Order) (string, error) {
	doc := receipt{
		OrderID:     order.ID,
		Reference:   order.GatewayOrderID,
		Email:       order.UserEmail,
		Name:        order.CustomerName,
		Currency:    order.Currency,
		Amount:      order.Amount().StringFixed(2),
		Discount:    order.DiscountAmount.StringFixed(2),
		PromoCode:   order.PromoCode,
		Items:       order.Items,
		IssuedAt:    time.Now().UTC(),
		OrderPlaced: order.CreatedAt,
	}
	if order.GatewayPaymentID != nil {
		doc.PaymentID = *order.GatewayPaymentID
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode receipt: %w", err)
	}

	key := fmt.Sprintf("receipts/%s/%s.json", order.CreatedAt.UTC().Format("2006/01"), order.ID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload receipt to S3: %w", err)
	}
	return key, nil
}

// ensureBucket checks if bucket exists, creating it if necessary
func (s *S3ReceiptStore) ensureBucket(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}
