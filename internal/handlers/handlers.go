package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-msp-checkout/internal/aws"
	"github.com/imrishuroy/go-msp-checkout/internal/cart"
	"github.com/imrishuroy/go-msp-checkout/internal/idempotency"
	"github.com/imrishuroy/go-msp-checkout/internal/orders"
	"github.com/imrishuroy/go-msp-checkout/internal/payments"
	"github.com/imrishuroy/go-msp-checkout/internal/queue"
	"github.com/imrishuroy/go-msp-checkout/internal/settings"
	"github.com/imrishuroy/go-msp-checkout/internal/validation"
)

// HandlerConfig groups dependencies for the HTTP API.
type HandlerConfig struct {
	DynamoDBClient   aws.DynamoDBAPI
	Publisher        queue.Publisher
	Metrics          *aws.Metrics
	OrdersTable      string
	SettingsTable    string
	PaymentsTable    string
	IdempotencyTable string
	TTLWindow        time.Duration
	// ReconcileTolerance bounds the accepted difference between cart and order total.
	ReconcileTolerance decimal.Decimal
}

type api struct {
	v         *validatorv10.Validate
	orders    *orders.Store
	settings  *settings.Store
	payments  *payments.Store
	idem      *idempotency.Store
	publisher queue.Publisher
	metrics   *aws.Metrics
	tolerance decimal.Decimal
	newID     func() string
}

// RegisterRoutes registers every API route on r.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	a := &api{
		v:         validation.New(),
		orders:    orders.NewStore(cfg.DynamoDBClient, cfg.OrdersTable),
		settings:  settings.NewStore(cfg.DynamoDBClient, cfg.SettingsTable),
		payments:  payments.NewStore(cfg.DynamoDBClient, cfg.PaymentsTable),
		idem:      idempotency.NewStore(cfg.DynamoDBClient, cfg.IdempotencyTable, cfg.TTLWindow),
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		tolerance: cfg.ReconcileTolerance,
		newID:     uuid.NewString,
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.PUT("/orders/:id", a.putOrder)
	r.GET("/orders/:id/shopping-cart", a.getShoppingCart)

	r.POST("/payment-requests", a.createPaymentRequest)
	r.GET("/payment-requests/:id", a.getPaymentRequest)

	r.GET("/gateways", a.listGateways)
	r.POST("/gateways/:id/toggle", a.toggleGateway)

	r.GET("/settings/fields", a.settingsFields)
	r.GET("/settings", a.getSettings)
	r.PATCH("/settings", a.patchSettings)
}

var errOrderNotFound = errors.New("order not found")

// builtCart is a shopping cart together with the inputs it was built from.
type builtCart struct {
	order    *orders.Order
	input    cart.Order
	settings settings.Settings
	currency string
	cart     cart.Cart
	// mismatch is set when the cart does not add up to the order total.
	mismatch error
}

// buildCart loads the order snapshot and settings and runs the cart builder.
// An empty currency means the order currency.
func (a *api) buildCart(ctx context.Context, orderID, currency string) (*builtCart, error) {
	o, err := a.orders.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, errOrderNotFound
	}
	st, err := a.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	cfg, err := st.CartConfig(o.VATExemptLookup())
	if err != nil {
		return nil, err
	}
	in, err := o.ToCart()
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", orderID, err)
	}
	if currency == "" {
		currency = o.Currency
	}

	out, err := cart.NewBuilder(cfg).Build(in, currency)
	if err != nil {
		a.metrics.Count(ctx, aws.MetricCartBuildFailures, 1, map[string]string{"Currency": currency})
		return nil, err
	}
	a.metrics.Count(ctx, aws.MetricCartsBuilt, 1, map[string]string{"Currency": currency})
	a.metrics.Count(ctx, aws.MetricCartLines, float64(len(out.Items)), map[string]string{"Currency": currency})

	b := &builtCart{order: o, input: in, settings: st, currency: currency, cart: out}
	if err := out.Reconcile(in.Total, a.tolerance); err != nil {
		log.Printf("[api] order=%s %v", orderID, err)
		a.metrics.Count(ctx, aws.MetricCartMismatch, 1, map[string]string{"Currency": currency})
		b.mismatch = err
	}
	return b, nil
}

// writeCartError maps buildCart failures to responses.
func writeCartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
	case errors.Is(err, cart.ErrZeroQuantity):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "zero_quantity", "detail": err.Error()})
	default:
		log.Printf("[api] cart build failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cart_build_failed", "detail": err.Error()})
	}
}
