package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo stores items per table keyed by order_id.
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue
	getErr error
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
}

func (m *mockDynamo) ensureTable(tbl string) {
	if _, ok := m.tables[tbl]; !ok {
		m.tables[tbl] = map[string]map[string]types.AttributeValue{}
	}
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	v, ok := params.Item["order_id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("no primary key in put item")
	}
	m.tables[table][v.Value] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	table := *params.TableName
	m.ensureTable(table)
	v, ok := params.Key["order_id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("no key attribute")
	}
	item, ok := m.tables[table][v.Value]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	return nil, errors.New("not used")
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	return nil, errors.New("not used")
}

func TestPutAndGet(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "orders")
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.nowFunc = func() time.Time { return fixed }

	in := Order{
		OrderID:     "order-1",
		CustomerID:  "cust-1",
		Currency:    "EUR",
		Total:       "248.05",
		IsVATExempt: true,
		Lines: []Line{
			{Type: LineTypeProduct, ItemID: 1, ProductID: 501, Name: "Coffee", Quantity: 2, Subtotal: "200", Total: "200", TaxStatus: "taxable"},
			{Type: LineTypeShipping, ItemID: 2, Name: "Flat rate", Total: "5", Taxes: []string{"1.05"}},
		},
	}

	saved, err := store.Put(context.Background(), in)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !saved.CreatedAt.Equal(fixed) || !saved.UpdatedAt.Equal(fixed) {
		t.Fatalf("timestamps not set: %+v", saved)
	}

	got, err := store.Get(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected order, got nil")
	}
	if got.Total != "248.05" || !got.IsVATExempt || len(got.Lines) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Lines[1].Taxes[0] != "1.05" {
		t.Fatalf("taxes lost: %+v", got.Lines[1])
	}
}

func TestGet_NotFound(t *testing.T) {
	store := NewStore(newMockDynamo(), "orders")

	got, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestGet_ClientError(t *testing.T) {
	mock := newMockDynamo()
	mock.getErr = errors.New("throttled")
	store := NewStore(mock, "orders")

	if _, err := store.Get(context.Background(), "order-1"); err == nil {
		t.Fatal("expected error")
	}
}
