package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-identity-api/internal/domain"
)

// TwoFactorRepo stores the per-user TOTP record. PK: user_id.
type TwoFactorRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewTwoFactorRepo(client *dynamodb.Client, tableName string) *TwoFactorRepo {
	return &TwoFactorRepo{client: client, tableName: tableName}
}

func (r *TwoFactorRepo) Get(ctx context.Context, userID string) (*domain.TwoFactor, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("two-factor record not found: %w", domain.ErrNotFound)
	}
	var tf domain.TwoFactor
	if err := attributevalue.UnmarshalMap(out.Item, &tf); err != nil {
		return nil, err
	}
	return &tf, nil
}

// Create writes a fresh record only if none exists yet, so a concurrent
// first enrollment cannot overwrite an already generated secret.
func (r *TwoFactorRepo) Create(ctx context.Context, tf *domain.TwoFactor) error {
	item, err := attributevalue.MarshalMap(tf)
	if err != nil {
		return fmt.Errorf("marshal two-factor record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("two-factor record exists: %w", domain.ErrConflict)
		}
	}
	return err
}

// MarkVerified stamps last_verified_at and flips enabled to true. Enabled is
// one-way: this is the only write path that touches it.
func (r *TwoFactorRepo) MarkVerified(ctx context.Context, userID string, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldEnabled:        true,
		fieldLastVerifiedAt: at,
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(user_id)"),
	})
	return err
}
