package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-msp-checkout/internal/cart"
	"github.com/imrishuroy/go-msp-checkout/internal/validation"
)

// putOrder stores the snapshot of an order as sent by the order system.
func (a *api) putOrder(c *gin.Context) {
	var req validation.UpsertOrderRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}

	saved, err := a.orders.Put(c.Request.Context(), req.ToOrder(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order_store_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":   saved.OrderID,
		"lines":      len(saved.Lines),
		"updated_at": saved.UpdatedAt,
	})
}

func (a *api) getShoppingCart(c *gin.Context) {
	currency := c.Query("currency")
	if currency != "" {
		if err := a.v.Var(currency, "iso4217"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_currency"})
			return
		}
	}

	b, err := a.buildCart(c.Request.Context(), c.Param("id"), currency)
	if err != nil {
		writeCartError(c, err)
		return
	}

	resp := gin.H{
		"order_id":      b.order.OrderID,
		"shopping_cart": b.cart,
		"cart_total":    cart.NewMoney(b.cart.Total(), b.currency),
		"order_total":   cart.NewMoney(b.input.Total, b.currency),
		"reconciled":    b.mismatch == nil,
	}
	c.JSON(http.StatusOK, resp)
}
