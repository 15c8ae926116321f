package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-identity-api/internal/domain"
)

// RecoveryContextRepo stores the short-lived continuation state between the
// three password-recovery steps. PK: context_id (opaque token); expires_at is
// the TTL attribute.
type RecoveryContextRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewRecoveryContextRepo(client *dynamodb.Client, tableName string) *RecoveryContextRepo {
	return &RecoveryContextRepo{client: client, tableName: tableName}
}

func (r *RecoveryContextRepo) Put(ctx context.Context, rc *domain.RecoveryContext) error {
	item, err := attributevalue.MarshalMap(rc)
	if err != nil {
		return fmt.Errorf("marshal recovery context: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *RecoveryContextRepo) Get(ctx context.Context, contextID string) (*domain.RecoveryContext, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("context_id", contextID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("recovery context not found: %w", domain.ErrNotFound)
	}
	var rc domain.RecoveryContext
	if err := attributevalue.UnmarshalMap(out.Item, &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *RecoveryContextRepo) MarkVerified(ctx context.Context, contextID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldOTPVerified: true})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("context_id", contextID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(context_id)"),
	})
	return err
}

// Delete removes the context so a completed flow cannot be replayed.
func (r *RecoveryContextRepo) Delete(ctx context.Context, contextID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("context_id", contextID),
	})
	return err
}
