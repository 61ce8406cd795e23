package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-msp-checkout/internal/aws"
)

// Store reads and writes the settings record.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore returns a settings Store backed by tableName.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Load returns the saved settings, or Defaults when nothing has been saved yet.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"settings_id": &types.AttributeValueMemberS{Value: DefaultID},
		},
	})
	if err != nil {
		return Settings{}, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return Defaults(), nil
	}

	var st Settings
	if err := attributevalue.UnmarshalMap(out.Item, &st); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	if st.Gateways == nil {
		st.Gateways = map[string]GatewaySettings{}
	}
	return st, nil
}

// Save overwrites the settings record.
func (s *Store) Save(ctx context.Context, st Settings) (Settings, error) {
	st.ID = DefaultID
	st.UpdatedAt = s.nowFunc().UTC()

	item, err := attributevalue.MarshalMap(st)
	if err != nil {
		return Settings{}, fmt.Errorf("marshal settings: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return Settings{}, fmt.Errorf("put item: %w", err)
	}
	return st, nil
}
