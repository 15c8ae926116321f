package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-identity-api/internal/domain"
)

// ResetOTPRepo stores password-recovery codes.
// PK: user_id, SK: otp_id (ULID). History rows are kept; expires_at is the
// table's TTL attribute so DynamoDB sweeps old rows eventually.
type ResetOTPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewResetOTPRepo(client *dynamodb.Client, tableName string) *ResetOTPRepo {
	return &ResetOTPRepo{client: client, tableName: tableName}
}

func (r *ResetOTPRepo) Put(ctx context.Context, o *domain.PasswordResetOTP) error {
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal reset otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// LatestUnused returns the most recent is_used=false record for the user.
// ULID sort keys make descending key order equal descending creation order.
// The filter runs after the page limit, so pages of all-used rows are
// followed until an unused row or the end of the partition is reached.
func (r *ResetOTPRepo) LatestUnused(ctx context.Context, userID string) (*domain.PasswordResetOTP, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("is_used = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(25),
	}
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		if len(out.Items) > 0 {
			var o domain.PasswordResetOTP
			if err := attributevalue.UnmarshalMap(out.Items[0], &o); err != nil {
				return nil, err
			}
			return &o, nil
		}
		if out.LastEvaluatedKey == nil {
			return nil, fmt.Errorf("no active otp: %w", domain.ErrNotFound)
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// ChargeAttempt atomically increments attempts and returns the new count.
// Two concurrent guesses against the same record each observe a distinct
// count, so a 1-remaining-attempt record cannot be evaluated twice against
// the stale value.
func (r *ResetOTPRepo) ChargeAttempt(ctx context.Context, userID, otpID string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              compositeKey("user_id", userID, "otp_id", otpID),
		UpdateExpression: aws.String("SET attempts = attempts + :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ConditionExpression: aws.String("attribute_exists(otp_id)"),
		ReturnValues:        types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("charge otp attempt: %w", err)
	}
	n, ok := out.Attributes[fieldAttempts].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("charge otp attempt: missing attempts in response")
	}
	attempts, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("charge otp attempt: %w", err)
	}
	return attempts, nil
}

// MarkUsed flips is_used exactly once. The conditional write makes sure only
// one of two racing verifications wins; the loser gets domain.ErrConflict.
func (r *ResetOTPRepo) MarkUsed(ctx context.Context, userID, otpID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              compositeKey("user_id", userID, "otp_id", otpID),
		UpdateExpression: aws.String("SET is_used = :t"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
		ConditionExpression: aws.String("is_used = :f"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("otp already used: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}
