package msp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-msp-checkout/internal/cart"
)

func sampleRequest() OrderRequest {
	return OrderRequest{
		Type:        "redirect",
		OrderID:     "order-1",
		Gateway:     "IDEAL",
		Currency:    "EUR",
		Amount:      24805,
		Description: "Order order-1",
		ShoppingCart: cart.Cart{Items: []cart.CartLine{{
			Kind:      cart.KindProduct,
			Name:      "Coffee",
			Quantity:  2,
			UnitPrice: cart.NewMoney(decimal.NewFromInt(100), "EUR"),
			TaxRate:   decimal.NewFromInt(21),
		}}},
		PaymentOptions: PaymentOptions{RedirectURL: "https://shop.example/ok"},
	}
}

func TestCreateOrder(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/json/orders", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api_key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"data":{"order_id":"order-1","payment_url":"https://pay.example/abc"}}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL + "/v1/json/", APIKey: "secret"})
	res, err := c.CreateOrder(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/abc", res.PaymentURL)

	assert.Equal(t, float64(24805), got["amount"])
	assert.Equal(t, "IDEAL", got["gateway"])
	items := got["shopping_cart"].(map[string]any)["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.Equal(t, float64(21), line["tax_rate"])
	assert.Equal(t, float64(10000), line["unit_price"].(map[string]any)["amount"])
}

func TestCreateOrder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error_code":1032,"error_info":"Invalid API key"}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "bad"})
	_, err := c.CreateOrder(context.Background(), sampleRequest())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 1032, apiErr.Code)
	assert.Equal(t, "Invalid API key", apiErr.Info)
	assert.False(t, apiErr.Temporary())
}

func TestCreateOrder_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, ConsecutiveFailures: 2})
	for i := 0; i < 2; i++ {
		_, err := c.CreateOrder(context.Background(), sampleRequest())
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnavailable))
	}

	_, err := c.CreateOrder(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCreateOrder_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error_code":1000,"error_info":"Disabled gateway"}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, ConsecutiveFailures: 1})
	for i := 0; i < 3; i++ {
		_, err := c.CreateOrder(context.Background(), sampleRequest())
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
	}
}

func TestBaseURLForEnvironment(t *testing.T) {
	assert.Equal(t, LiveBaseURL, BaseURL("live"))
	assert.Equal(t, TestBaseURL, BaseURL("test"))
}

func TestCreateOrder_UnreadableSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"success":true,"data":"not an object"}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, ConsecutiveFailures: 1})
	for i := 0; i < 2; i++ {
		_, err := c.CreateOrder(context.Background(), sampleRequest())
		require.ErrorIs(t, err, ErrInvalidResponse)
		var apiErr *APIError
		assert.False(t, errors.As(err, &apiErr))
	}
	// the API answered, so the breaker stays closed
	assert.Equal(t, int32(2), calls.Load())
}
