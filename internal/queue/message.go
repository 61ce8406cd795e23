package queue

import "context"

// Message asks the worker to submit a stored payment request to the provider.
type Message struct {
	PaymentID      string `json:"payment_id"`
	OrderID        string `json:"order_id"`
	IdempotencyKey string `json:"idempotency_key"`
	CorrelationID  string `json:"correlation_id,omitempty"`
}

// Attributes returns the routing attributes sent alongside the body.
func (m Message) Attributes() map[string]string {
	attrs := map[string]string{
		"payment_id":      m.PaymentID,
		"order_id":        m.OrderID,
		"idempotency_key": m.IdempotencyKey,
	}
	if m.CorrelationID != "" {
		attrs["correlation_id"] = m.CorrelationID
	}
	return attrs
}

// Publisher enqueues payment submission jobs.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}
