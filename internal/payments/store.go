package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-msp-checkout/internal/aws"
)

var (
	// ErrStatusMismatch is returned when a conditional status transition fails.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrDuplicateKey is returned when the idempotency key already exists.
	ErrDuplicateKey = errors.New("idempotency key already exists")
)

// Store encapsulates operations on the payments table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new payments Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// CreateWithIdempotencyTransaction atomically writes the idempotency record
// into idempotencyTable (guarded by attribute_not_exists(idempotency_key)) and
// the payment record. ErrDuplicateKey means the key was already taken.
func (s *Store) CreateWithIdempotencyTransaction(ctx context.Context, idempotencyTable string, idempotencyItem any, rec Record) (*Record, error) {
	idempMap, err := attributevalue.MarshalMap(idempotencyItem)
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency item: %w", err)
	}

	now := s.nowFunc().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = StatusPending
	}

	recMap, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal payment item: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &idempotencyTable,
					Item:                idempMap,
					ConditionExpression: awsString("attribute_not_exists(idempotency_key)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                recMap,
					ConditionExpression: awsString("attribute_not_exists(payment_id)"),
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		}
		return nil, fmt.Errorf("transact write: %w", err)
	}
	return &rec, nil
}

// Get fetches a payment by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, paymentID string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key(paymentID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal payment: %w", err)
	}
	return &rec, nil
}

// UpdateStatus moves a payment from expectedStatus to newStatus, recording
// note when non-empty. Returns ErrStatusMismatch if the payment is not in
// expectedStatus.
func (s *Store) UpdateStatus(ctx context.Context, paymentID, expectedStatus, newStatus, note string) error {
	expr := "SET #s = :new, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: newStatus},
		":expected": &types.AttributeValueMemberS{Value: expectedStatus},
		":ua":       &types.AttributeValueMemberS{Value: s.stamp()},
	}
	if note != "" {
		expr += ", note = :n"
		values[":n"] = &types.AttributeValueMemberS{Value: note}
	}
	return s.transition(ctx, paymentID, expr, "#s = :expected", values)
}

// MarkSubmitted moves a PROCESSING payment to SUBMITTED with its payment url.
func (s *Store) MarkSubmitted(ctx context.Context, paymentID, paymentURL string) error {
	return s.transition(ctx, paymentID, "SET #s = :new, payment_url = :url, updated_at = :ua", "#s = :expected", map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: StatusSubmitted},
		":expected": &types.AttributeValueMemberS{Value: StatusProcessing},
		":url":      &types.AttributeValueMemberS{Value: paymentURL},
		":ua":       &types.AttributeValueMemberS{Value: s.stamp()},
	})
}

// Reclaim takes over a PROCESSING payment whose last update is seen. It fails
// with ErrStatusMismatch when the payment moved on or another worker
// reclaimed it first.
func (s *Store) Reclaim(ctx context.Context, paymentID string, seen time.Time, note string) error {
	return s.transition(ctx, paymentID, "SET updated_at = :ua, note = :n", "#s = :expected AND updated_at = :seen", map[string]types.AttributeValue{
		":expected": &types.AttributeValueMemberS{Value: StatusProcessing},
		":seen":     &types.AttributeValueMemberS{Value: seen.UTC().Format(time.RFC3339Nano)},
		":ua":       &types.AttributeValueMemberS{Value: s.stamp()},
		":n":        &types.AttributeValueMemberS{Value: note},
	})
}

func (s *Store) transition(ctx context.Context, paymentID, expr, cond string, values map[string]types.AttributeValue) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       key(paymentID),
		UpdateExpression:          &expr,
		ConditionExpression:       &cond,
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// IncrementAttempts increases the attempts counter by 1 and returns the new value.
func (s *Store) IncrementAttempts(ctx context.Context, paymentID string) (int, error) {
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              key(paymentID),
		UpdateExpression: awsString("SET attempts = if_not_exists(attempts, :zero) + :inc, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":inc":  &types.AttributeValueMemberN{Value: "1"},
			":ua":   &types.AttributeValueMemberS{Value: s.stamp()},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	var got struct {
		Attempts int `dynamodbav:"attempts"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &got); err != nil {
		return 0, fmt.Errorf("unmarshal attempts: %w", err)
	}
	return got.Attempts, nil
}

func (s *Store) stamp() string {
	return s.nowFunc().UTC().Format(time.RFC3339Nano)
}

func key(paymentID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"payment_id": &types.AttributeValueMemberS{Value: paymentID},
	}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
