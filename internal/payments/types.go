package payments

import "time"

// Payment statuses
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusSubmitted  = "SUBMITTED"
	StatusFailed     = "FAILED"
)

// Record is a payment request stored in the payments table.
type Record struct {
	PaymentID      string    `dynamodbav:"payment_id" json:"payment_id"` // PK
	OrderID        string    `dynamodbav:"order_id" json:"order_id"`
	IdempotencyKey string    `dynamodbav:"idempotency_key" json:"-"`
	Status         string    `dynamodbav:"status" json:"status"`
	Gateway        string    `dynamodbav:"gateway" json:"gateway"`
	Environment    string    `dynamodbav:"environment" json:"environment"`
	Amount         int64     `dynamodbav:"amount" json:"amount"` // minor units
	Currency       string    `dynamodbav:"currency" json:"currency"`
	Request        string    `dynamodbav:"request" json:"-"` // JSON order request sent to MultiSafepay
	PaymentURL     string    `dynamodbav:"payment_url,omitempty" json:"payment_url,omitempty"`
	Attempts       int       `dynamodbav:"attempts,omitempty" json:"attempts"`
	Note           string    `dynamodbav:"note,omitempty" json:"note,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at" json:"updated_at"`
}
