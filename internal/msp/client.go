package msp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/imrishuroy/go-msp-checkout/internal/cart"
)

// Default API endpoints.
const (
	LiveBaseURL = "https://api.multisafepay.com/v1/json"
	TestBaseURL = "https://testapi.multisafepay.com/v1/json"
)

// ErrUnavailable is returned while the circuit breaker refuses calls.
var ErrUnavailable = errors.New("multisafepay unavailable")

// ErrInvalidResponse is returned when the API accepted the call but its
// answer could not be read. The order may exist on the provider side.
var ErrInvalidResponse = errors.New("multisafepay: unreadable response")

// PaymentOptions carries the shopper return and webhook urls.
type PaymentOptions struct {
	NotificationURL string `json:"notification_url,omitempty"`
	RedirectURL     string `json:"redirect_url,omitempty"`
	CancelURL       string `json:"cancel_url,omitempty"`
}

// OrderRequest is the body of POST /orders.
type OrderRequest struct {
	Type           string         `json:"type"`
	OrderID        string         `json:"order_id"`
	Gateway        string         `json:"gateway"`
	Currency       string         `json:"currency"`
	Amount         int64          `json:"amount"` // minor units
	Description    string         `json:"description"`
	ShoppingCart   cart.Cart      `json:"shopping_cart"`
	PaymentOptions PaymentOptions `json:"payment_options"`
}

// OrderResponse is the data part of a successful create order call.
type OrderResponse struct {
	OrderID    string `json:"order_id"`
	PaymentURL string `json:"payment_url"`
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	ErrorCode int             `json:"error_code"`
	ErrorInfo string          `json:"error_info"`
}

// APIError is a rejected call.
type APIError struct {
	StatusCode int
	Code       int
	Info       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("multisafepay: status %d code %d: %s", e.StatusCode, e.Code, e.Info)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Options configure a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Breaker settings; zero values use gobreaker defaults except for
	// ConsecutiveFailures which defaults to 5.
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HTTPClient          *http.Client
}

// Client calls the MultiSafepay Order API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[*OrderResponse]
}

// BaseURL returns the endpoint for environment ("live" or "test").
func BaseURL(environment string) string {
	if environment == "live" {
		return LiveBaseURL
	}
	return TestBaseURL
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	failures := opts.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}

	cb := gobreaker.NewCircuitBreaker[*OrderResponse](gobreaker.Settings{
		Name:    "multisafepay",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// client errors say nothing about the health of the API
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.Temporary()
			}
			return err == nil || errors.Is(err, ErrInvalidResponse)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[msp] breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    httpClient,
		cb:      cb,
	}
}

// CreateOrder registers the order and returns the payment url.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	res, err := c.cb.Execute(func() (*OrderResponse, error) {
		return c.createOrder(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res, err
}

func (c *Client) createOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("api_key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post orders: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if resp.StatusCode < 300 {
			return nil, fmt.Errorf("%w: read: %v", ErrInvalidResponse, err)
		}
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return nil, &APIError{StatusCode: resp.StatusCode, Info: strings.TrimSpace(string(raw))}
		}
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidResponse, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: env.ErrorCode, Info: env.ErrorInfo}
	}

	var out OrderResponse
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("%w: decode order data: %v", ErrInvalidResponse, err)
	}
	return &out, nil
}
