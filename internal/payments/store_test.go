package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-msp-checkout/internal/aws/awstest"
	"github.com/imrishuroy/go-msp-checkout/internal/idempotency"
)

func newFixture(t *testing.T) (*Store, *idempotency.Store, *awstest.Dynamo) {
	t.Helper()
	fake := awstest.NewDynamo(map[string]string{
		"payments":    "payment_id",
		"idempotency": "idempotency_key",
	})
	store := NewStore(fake, "payments")
	store.nowFunc = func() time.Time { return time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC) }
	return store, idempotency.NewStore(fake, "idempotency", time.Hour), fake
}

func create(t *testing.T, s *Store, idem *idempotency.Store, paymentID, key string) error {
	t.Helper()
	rec := idem.NewRecord(key, "fp", paymentID, "order-1")
	_, err := s.CreateWithIdempotencyTransaction(context.Background(), idem.TableName(), rec, Record{
		PaymentID:      paymentID,
		OrderID:        "order-1",
		IdempotencyKey: key,
		Gateway:        "IDEAL",
		Amount:         24805,
		Currency:       "EUR",
		Request:        `{"order_id":"order-1"}`,
	})
	return err
}

func TestCreateWithIdempotencyTransaction(t *testing.T) {
	store, idem, fake := newFixture(t)
	ctx := context.Background()

	require.NoError(t, create(t, store, idem, "pay-1", "key-1"))
	assert.Equal(t, 1, fake.Len("payments"))
	assert.Equal(t, 1, fake.Len("idempotency"))

	got, err := store.Get(ctx, "pay-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, int64(24805), got.Amount)
	assert.Equal(t, "key-1", got.IdempotencyKey)

	err = create(t, store, idem, "pay-2", "key-1")
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, 1, fake.Len("payments"), "no payment written on duplicate key")
}

func TestStatusTransitions(t *testing.T) {
	store, idem, _ := newFixture(t)
	ctx := context.Background()
	require.NoError(t, create(t, store, idem, "pay-1", "key-1"))

	require.NoError(t, store.UpdateStatus(ctx, "pay-1", StatusPending, StatusProcessing, ""))

	err := store.UpdateStatus(ctx, "pay-1", StatusPending, StatusProcessing, "")
	assert.ErrorIs(t, err, ErrStatusMismatch)

	require.NoError(t, store.MarkSubmitted(ctx, "pay-1", "https://pay.example/x"))
	got, err := store.Get(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, got.Status)
	assert.Equal(t, "https://pay.example/x", got.PaymentURL)

	assert.ErrorIs(t, store.MarkSubmitted(ctx, "pay-1", "again"), ErrStatusMismatch)
}

func TestUpdateStatus_WithNote(t *testing.T) {
	store, idem, _ := newFixture(t)
	ctx := context.Background()
	require.NoError(t, create(t, store, idem, "pay-1", "key-1"))
	require.NoError(t, store.UpdateStatus(ctx, "pay-1", StatusPending, StatusProcessing, ""))

	require.NoError(t, store.UpdateStatus(ctx, "pay-1", StatusProcessing, StatusFailed, "gateway disabled"))
	got, _ := store.Get(ctx, "pay-1")
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "gateway disabled", got.Note)
}

func TestIncrementAttempts(t *testing.T) {
	store, idem, _ := newFixture(t)
	ctx := context.Background()
	require.NoError(t, create(t, store, idem, "pay-1", "key-1"))

	n, err := store.IncrementAttempts(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.IncrementAttempts(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGet_MissingAndError(t *testing.T) {
	store, _, fake := newFixture(t)

	got, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	fake.Err = errors.New("throttled")
	_, err = store.Get(context.Background(), "nope")
	assert.Error(t, err)
}

func TestReclaim(t *testing.T) {
	store, idem, _ := newFixture(t)
	ctx := context.Background()
	require.NoError(t, create(t, store, idem, "pay-1", "key-1"))
	require.NoError(t, store.UpdateStatus(ctx, "pay-1", StatusPending, StatusProcessing, ""))

	stuck, err := store.Get(ctx, "pay-1")
	require.NoError(t, err)

	store.nowFunc = func() time.Time { return time.Date(2026, 4, 2, 9, 10, 0, 0, time.UTC) }
	require.NoError(t, store.Reclaim(ctx, "pay-1", stuck.UpdatedAt, "reclaimed"))

	got, err := store.Get(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.Equal(t, "reclaimed", got.Note)
	assert.True(t, got.UpdatedAt.After(stuck.UpdatedAt))

	// a second worker holding the old timestamp loses
	assert.ErrorIs(t, store.Reclaim(ctx, "pay-1", stuck.UpdatedAt, "reclaimed"), ErrStatusMismatch)

	require.NoError(t, store.MarkSubmitted(ctx, "pay-1", "https://pay.example/1"))
	done, err := store.Get(ctx, "pay-1")
	require.NoError(t, err)
	assert.ErrorIs(t, store.Reclaim(ctx, "pay-1", done.UpdatedAt, "reclaimed"), ErrStatusMismatch)
}
