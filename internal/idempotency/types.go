package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

var (
	// ErrFingerprintMismatch is returned when a key is reused with a different request body.
	ErrFingerprintMismatch = errors.New("idempotency key reused with a different request")
	// ErrNotFound is returned when updating a key that was never reserved.
	ErrNotFound = errors.New("idempotency record not found")
)

// Record is the shape persisted in the idempotency DynamoDB table.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	Fingerprint    string    `dynamodbav:"fingerprint"`
	PaymentID      string    `dynamodbav:"payment_id,omitempty"`
	OrderID        string    `dynamodbav:"order_id,omitempty"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`
	ResponseStatus int       `dynamodbav:"response_status,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}

// Fingerprint returns the hex sha256 of a request body.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Matches fails with ErrFingerprintMismatch when the stored request differs from fingerprint.
func (r *Record) Matches(fingerprint string) error {
	if r.Fingerprint != "" && r.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	return nil
}
