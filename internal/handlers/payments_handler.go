package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-msp-checkout/internal/cart"
	"github.com/imrishuroy/go-msp-checkout/internal/gateways"
	"github.com/imrishuroy/go-msp-checkout/internal/idempotency"
	"github.com/imrishuroy/go-msp-checkout/internal/msp"
	"github.com/imrishuroy/go-msp-checkout/internal/payments"
	"github.com/imrishuroy/go-msp-checkout/internal/queue"
	"github.com/imrishuroy/go-msp-checkout/internal/settings"
	"github.com/imrishuroy/go-msp-checkout/internal/validation"
)

// createPaymentRequest builds the shopping cart for an order, stores the
// MultiSafepay order request and enqueues it for the worker.
func (a *api) createPaymentRequest(c *gin.Context) {
	ctx := c.Request.Context()

	idempKey := c.GetHeader("Idempotency-Key")
	if idempKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_idempotency_key"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}
	fingerprint := idempotency.Fingerprint(body)

	// Seen before: answer from the stored record without rebuilding anything.
	rec, err := a.idem.Get(ctx, idempKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed", "detail": err.Error()})
		return
	}
	if rec != nil {
		replay(c, rec, fingerprint)
		return
	}

	var req validation.CreatePaymentRequest
	if err := validation.DecodeAndValidate(c, body, &req, a.v); err != nil {
		return
	}

	b, err := a.buildCart(ctx, req.OrderID, req.Currency)
	if err != nil {
		writeCartError(c, err)
		return
	}

	gw, _ := gateways.ByID(req.Gateway)
	if err := gateways.Usable(b.settings, gw.ID); err != nil {
		if errors.Is(err, settings.ErrNeedsSetup) {
			c.JSON(http.StatusConflict, gin.H{"error": "needs_setup"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "gateway_disabled", "detail": err.Error()})
		return
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Order #%s", req.OrderID)
	}
	orderReq := msp.OrderRequest{
		Type:         gw.Type,
		OrderID:      req.OrderID,
		Gateway:      gw.Code,
		Currency:     b.currency,
		Amount:       cart.NewMoney(b.input.Total, b.currency).MinorUnits(),
		Description:  description,
		ShoppingCart: b.cart,
		PaymentOptions: msp.PaymentOptions{
			NotificationURL: b.settings.NotificationURL,
			RedirectURL:     b.settings.RedirectURL,
			CancelURL:       b.settings.CancelURL,
		},
	}
	reqJSON, err := json.Marshal(orderReq)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode_failed", "detail": err.Error()})
		return
	}

	paymentID := a.newID()
	_, err = a.payments.CreateWithIdempotencyTransaction(ctx,
		a.idem.TableName(),
		a.idem.NewRecord(idempKey, fingerprint, paymentID, req.OrderID),
		payments.Record{
			PaymentID:      paymentID,
			OrderID:        req.OrderID,
			IdempotencyKey: idempKey,
			Gateway:        gw.Code,
			Environment:    b.settings.Environment,
			Amount:         orderReq.Amount,
			Currency:       b.currency,
			Request:        string(reqJSON),
		})
	if err != nil {
		if !errors.Is(err, payments.ErrDuplicateKey) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "payment_store_failed", "detail": err.Error()})
			return
		}
		// lost a race with a concurrent request using the same key
		rec, getErr := a.idem.Get(ctx, idempKey)
		if getErr != nil || rec == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "transaction_failed_no_idempotency_record", "detail": err.Error()})
			return
		}
		replay(c, rec, fingerprint)
		return
	}

	msg := queue.Message{
		PaymentID:      paymentID,
		OrderID:        req.OrderID,
		IdempotencyKey: idempKey,
		CorrelationID:  c.GetHeader("X-Request-Id"),
	}
	if err := a.publisher.Publish(ctx, msg); err != nil {
		note := fmt.Sprintf("enqueue_failed: %v", err)
		_ = a.idem.MarkFailed(ctx, idempKey, note)
		_ = a.payments.UpdateStatus(ctx, paymentID, payments.StatusPending, payments.StatusFailed, note)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue_failed", "detail": err.Error()})
		return
	}

	log.Printf("[api] payment=%s order=%s gateway=%s amount=%d %s queued",
		paymentID, req.OrderID, gw.Code, orderReq.Amount, b.currency)

	c.Header("Location", "/payment-requests/"+paymentID)
	c.JSON(http.StatusCreated, gin.H{
		"payment_id": paymentID,
		"order_id":   req.OrderID,
		"status":     payments.StatusPending,
		"amount":     orderReq.Amount,
		"currency":   b.currency,
	})
}

// replay answers a request whose idempotency key was already used.
func replay(c *gin.Context, rec *idempotency.Record, fingerprint string) {
	if err := rec.Matches(fingerprint); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency_key_reused", "detail": err.Error()})
		return
	}
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" && json.Valid([]byte(rec.ResponseBody)) {
			c.Data(rec.ResponseStatus, "application/json", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"payment_id": rec.PaymentID, "order_id": rec.OrderID})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "payment_id": rec.PaymentID})
	case idempotency.StatusFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "previous_attempt_failed", "payment_id": rec.PaymentID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
	}
}

func (a *api) getPaymentRequest(c *gin.Context) {
	rec, err := a.payments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment_lookup_failed", "detail": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment_not_found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
