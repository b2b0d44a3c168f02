package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"

	"github.com/EduardoDePatta/coupon-generator/internal/metrics"
	"github.com/EduardoDePatta/coupon-generator/internal/models"
)

// DynamoStore implements CouponStore and UserStore against DynamoDB. The
// coupons table is keyed by (userId, couponId); the users table by email.
type DynamoStore struct {
	client       *dynamodb.Client
	couponsTable string
	usersTable   string
	logger       *logrus.Logger
}

func NewDynamoStore(client *dynamodb.Client, couponsTable, usersTable string, logger *logrus.Logger) *DynamoStore {
	return &DynamoStore{
		client:       client,
		couponsTable: couponsTable,
		usersTable:   usersTable,
		logger:       logger,
	}
}

func (s *DynamoStore) GetCoupon(ctx context.Context, userID, couponID string) (*models.Coupon, error) {
	start := time.Now()

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.couponsTable),
		Key:       couponKey(userID, couponID),
	})
	if err != nil {
		metrics.RecordStoreCall("get_coupon", "error", time.Since(start))
		return nil, fmt.Errorf("get coupon failed: %w", err)
	}

	if result.Item == nil {
		metrics.RecordStoreCall("get_coupon", "not_found", time.Since(start))
		return nil, ErrNotFound
	}

	var coupon models.Coupon
	if err := attributevalue.UnmarshalMap(result.Item, &coupon); err != nil {
		metrics.RecordStoreCall("get_coupon", "error", time.Since(start))
		return nil, fmt.Errorf("unmarshal coupon failed: %w", err)
	}

	metrics.RecordStoreCall("get_coupon", "success", time.Since(start))
	return &coupon, nil
}

func (s *DynamoStore) PutCoupon(ctx context.Context, coupon *models.Coupon) error {
	start := time.Now()

	item, err := attributevalue.MarshalMap(coupon)
	if err != nil {
		return fmt.Errorf("marshal coupon failed: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.couponsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(couponId)"),
	})
	if err != nil {
		if isConditionFailure(err) {
			metrics.RecordStoreCall("put_coupon", "condition_failed", time.Since(start))
			return ErrConditionFailed
		}
		metrics.RecordStoreCall("put_coupon", "error", time.Since(start))
		return fmt.Errorf("put coupon failed: %w", err)
	}

	metrics.RecordStoreCall("put_coupon", "success", time.Since(start))
	return nil
}

// MarkUsed performs the single conditional write that enforces at-most-once
// redemption. The condition is evaluated atomically by DynamoDB; there is no
// read-modify-write pair in application code.
func (s *DynamoStore) MarkUsed(ctx context.Context, userID, couponID string) error {
	start := time.Now()

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.couponsTable),
		Key:                 couponKey(userID, couponID),
		UpdateExpression:    aws.String("SET used = :used"),
		ConditionExpression: aws.String("attribute_exists(couponId) AND used = :notUsed"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":used":    &types.AttributeValueMemberBOOL{Value: true},
			":notUsed": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			metrics.RecordStoreCall("mark_used", "condition_failed", time.Since(start))
			return ErrConditionFailed
		}
		metrics.RecordStoreCall("mark_used", "error", time.Since(start))
		return fmt.Errorf("mark used failed: %w", err)
	}

	metrics.RecordStoreCall("mark_used", "success", time.Since(start))
	return nil
}

func (s *DynamoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	start := time.Now()

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.usersTable),
		Key: map[string]types.AttributeValue{
			"email": &types.AttributeValueMemberS{Value: email},
		},
	})
	if err != nil {
		metrics.RecordStoreCall("get_user", "error", time.Since(start))
		return nil, fmt.Errorf("get user failed: %w", err)
	}

	if result.Item == nil {
		metrics.RecordStoreCall("get_user", "not_found", time.Since(start))
		return nil, ErrNotFound
	}

	var user models.User
	if err := attributevalue.UnmarshalMap(result.Item, &user); err != nil {
		metrics.RecordStoreCall("get_user", "error", time.Since(start))
		return nil, fmt.Errorf("unmarshal user failed: %w", err)
	}

	metrics.RecordStoreCall("get_user", "success", time.Since(start))
	return &user, nil
}

func (s *DynamoStore) PutUser(ctx context.Context, user *models.User) error {
	start := time.Now()

	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		return fmt.Errorf("marshal user failed: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.usersTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(email)"),
	})
	if err != nil {
		if isConditionFailure(err) {
			metrics.RecordStoreCall("put_user", "condition_failed", time.Since(start))
			return ErrConditionFailed
		}
		metrics.RecordStoreCall("put_user", "error", time.Since(start))
		return fmt.Errorf("put user failed: %w", err)
	}

	metrics.RecordStoreCall("put_user", "success", time.Since(start))
	return nil
}

func couponKey(userID, couponID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"userId":   &types.AttributeValueMemberS{Value: userID},
		"couponId": &types.AttributeValueMemberS{Value: couponID},
	}
}

func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
