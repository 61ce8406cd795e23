package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-msp-checkout/internal/aws"
	"github.com/imrishuroy/go-msp-checkout/internal/idempotency"
	"github.com/imrishuroy/go-msp-checkout/internal/msp"
	"github.com/imrishuroy/go-msp-checkout/internal/payments"
	"github.com/imrishuroy/go-msp-checkout/internal/queue"
	"github.com/imrishuroy/go-msp-checkout/internal/settings"
)

const (
	defaultMaxAttempts = 5
	defaultStaleAfter  = 2 * time.Minute
)

var errInFlight = errors.New("payment is being processed by another worker")

type orderCreator interface {
	CreateOrder(ctx context.Context, req msp.OrderRequest) (*msp.OrderResponse, error)
}

// Processor submits stored payment requests to MultiSafepay.
type Processor struct {
	payments    *payments.Store
	idemStore   *idempotency.Store
	settings    *settings.Store
	metrics     *aws.Metrics
	maxAttempts int
	staleAfter  time.Duration
	now         func() time.Time

	// newClient builds a client for a base url and api key.
	newClient func(baseURL, apiKey string) orderCreator
	baseURL   string // overrides the environment default when set

	mu      sync.Mutex
	clients map[string]orderCreator
}

// ProcessorConfig groups the processor dependencies.
type ProcessorConfig struct {
	Payments    *payments.Store
	Idempotency *idempotency.Store
	Settings    *settings.Store
	Metrics     *aws.Metrics
	MaxAttempts int
	// StaleAfter is how long a payment may sit in PROCESSING before another
	// delivery takes it over.
	StaleAfter time.Duration
	MSPBaseURL string
	NewClient   func(baseURL, apiKey string) orderCreator
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Processor{
		payments:    cfg.Payments,
		idemStore:   cfg.Idempotency,
		settings:    cfg.Settings,
		metrics:     cfg.Metrics,
		maxAttempts: maxAttempts,
		staleAfter:  staleAfter,
		now:         time.Now,
		newClient:   cfg.NewClient,
		baseURL:     cfg.MSPBaseURL,
		clients:     map[string]orderCreator{},
	}
}

// Handle processes an SQS batch and reports the messages to redeliver.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		var msg queue.Message
		err := json.Unmarshal([]byte(rec.Body), &msg)
		if err != nil {
			err = fmt.Errorf("invalid message body: %w", err)
		} else {
			err = p.Process(ctx, msg)
		}
		if err != nil {
			log.Printf("[worker] message=%s error: %v", rec.MessageId, err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: rec.MessageId,
			})
		}
	}
	return resp, nil
}

// Process submits one payment. A returned error means the message should be
// delivered again.
func (p *Processor) Process(ctx context.Context, msg queue.Message) error {
	log.Printf("[worker] received payment=%s order=%s idempotency_key=%s corr=%s",
		msg.PaymentID, msg.OrderID, msg.IdempotencyKey, msg.CorrelationID)

	rec, err := p.payments.Get(ctx, msg.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to fetch payment: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("payment not found: %s", msg.PaymentID)
	}

	// PENDING -> PROCESSING guards against duplicate deliveries
	err = p.payments.UpdateStatus(ctx, rec.PaymentID, payments.StatusPending, payments.StatusProcessing, "")
	if errors.Is(err, payments.ErrStatusMismatch) {
		claimed, claimErr := p.claim(ctx, rec.PaymentID)
		if !claimed {
			return claimErr
		}
	} else if err != nil {
		return fmt.Errorf("failed to update status to PROCESSING: %w", err)
	}

	attempts, err := p.payments.IncrementAttempts(ctx, rec.PaymentID)
	if err != nil {
		return p.release(ctx, rec, err)
	}

	st, err := p.settings.Load(ctx)
	if err != nil {
		return p.release(ctx, rec, err)
	}
	if !st.HasAPIKey() {
		return p.fail(ctx, rec, http.StatusConflict, "needs_setup", "no API key for the "+st.Environment+" environment")
	}

	var orderReq msp.OrderRequest
	if err := json.Unmarshal([]byte(rec.Request), &orderReq); err != nil {
		return p.fail(ctx, rec, http.StatusInternalServerError, "invalid_stored_request", err.Error())
	}

	res, err := p.clientFor(st).CreateOrder(ctx, orderReq)
	if err != nil {
		if retryable(err) && attempts < p.maxAttempts {
			return p.release(ctx, rec, err)
		}
		if errors.Is(err, msp.ErrInvalidResponse) {
			// the order may exist at MultiSafepay; submitting again could duplicate it
			return p.fail(ctx, rec, http.StatusBadGateway, "provider_response_invalid", err.Error())
		}
		var apiErr *msp.APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return p.fail(ctx, rec, http.StatusUnprocessableEntity, "payment_rejected", apiErr.Info)
		}
		return p.fail(ctx, rec, http.StatusBadGateway, "payment_provider_unavailable", err.Error())
	}

	if err := p.payments.MarkSubmitted(ctx, rec.PaymentID, res.PaymentURL); err != nil {
		return fmt.Errorf("failed to update status to SUBMITTED: %w", err)
	}
	body, _ := json.Marshal(map[string]string{
		"payment_id":  rec.PaymentID,
		"order_id":    rec.OrderID,
		"status":      payments.StatusSubmitted,
		"payment_url": res.PaymentURL,
	})
	if err := p.idemStore.MarkDone(ctx, rec.IdempotencyKey, string(body), http.StatusCreated); err != nil {
		return fmt.Errorf("failed to update idempotency: %w", err)
	}

	p.metrics.Count(ctx, aws.MetricPaymentsSubmitted, 1, map[string]string{"Gateway": orderReq.Gateway})
	log.Printf("[worker] submitted payment=%s order=%s attempts=%d", rec.PaymentID, rec.OrderID, attempts)
	return nil
}

// claim decides what to do with a payment that was not PENDING. It reports
// true when this delivery took over a stale PROCESSING payment. Otherwise a
// nil error acks the message and a non-nil error asks for redelivery.
func (p *Processor) claim(ctx context.Context, paymentID string) (bool, error) {
	current, err := p.payments.Get(ctx, paymentID)
	if err != nil {
		return false, fmt.Errorf("failed to re-read payment: %w", err)
	}
	if current == nil {
		return false, fmt.Errorf("payment not found: %s", paymentID)
	}

	switch current.Status {
	case payments.StatusSubmitted, payments.StatusFailed:
		log.Printf("[worker] payment=%s already %s", paymentID, current.Status)
		return false, nil
	case payments.StatusProcessing:
		age := p.now().Sub(current.UpdatedAt)
		if age < p.staleAfter {
			return false, fmt.Errorf("payment=%s: %w", paymentID, errInFlight)
		}
		note := fmt.Sprintf("reclaimed after %s in PROCESSING", age.Round(time.Second))
		err := p.payments.Reclaim(ctx, paymentID, current.UpdatedAt, note)
		if errors.Is(err, payments.ErrStatusMismatch) {
			return false, fmt.Errorf("payment=%s: %w", paymentID, errInFlight)
		}
		if err != nil {
			return false, fmt.Errorf("failed to reclaim payment: %w", err)
		}
		log.Printf("[worker] payment=%s %s", paymentID, note)
		return true, nil
	default:
		// released back to PENDING between our write and read
		return false, fmt.Errorf("unexpected status for payment=%s: %s", paymentID, current.Status)
	}
}

// release puts the payment back to PENDING so a redelivery can pick it up.
func (p *Processor) release(ctx context.Context, rec *payments.Record, cause error) error {
	if err := p.payments.UpdateStatus(ctx, rec.PaymentID, payments.StatusProcessing, payments.StatusPending, cause.Error()); err != nil {
		log.Printf("[worker] payment=%s release failed: %v", rec.PaymentID, err)
	}
	return fmt.Errorf("payment=%s will be retried: %w", rec.PaymentID, cause)
}

// fail records a final failure and stores it as the idempotent response.
func (p *Processor) fail(ctx context.Context, rec *payments.Record, status int, code, detail string) error {
	if err := p.payments.UpdateStatus(ctx, rec.PaymentID, payments.StatusProcessing, payments.StatusFailed, code+": "+detail); err != nil {
		return fmt.Errorf("failed to update status to FAILED: %w", err)
	}
	body, _ := json.Marshal(map[string]string{
		"payment_id": rec.PaymentID,
		"order_id":   rec.OrderID,
		"status":     payments.StatusFailed,
		"error":      code,
		"detail":     detail,
	})
	if err := p.idemStore.MarkDone(ctx, rec.IdempotencyKey, string(body), status); err != nil {
		return fmt.Errorf("failed to update idempotency: %w", err)
	}
	p.metrics.Count(ctx, aws.MetricPaymentsFailed, 1, map[string]string{"Reason": code})
	log.Printf("[worker] failed payment=%s: %s: %s", rec.PaymentID, code, detail)
	return nil
}

func (p *Processor) clientFor(st settings.Settings) orderCreator {
	baseURL := p.baseURL
	if baseURL == "" {
		baseURL = msp.BaseURL(st.Environment)
	}
	key := baseURL + "|" + st.ActiveAPIKey()

	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clients[key]
	if !ok {
		c = p.newClient(baseURL, st.ActiveAPIKey())
		p.clients[key] = c
	}
	return c
}

// retryable reports whether a CreateOrder failure may succeed on redelivery.
func retryable(err error) bool {
	if errors.Is(err, msp.ErrUnavailable) {
		return true
	}
	if errors.Is(err, msp.ErrInvalidResponse) {
		return false
	}
	var apiErr *msp.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
