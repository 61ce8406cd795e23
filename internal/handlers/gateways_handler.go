package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-msp-checkout/internal/gateways"
	"github.com/imrishuroy/go-msp-checkout/internal/settings"
)

func (a *api) listGateways(c *gin.Context) {
	st, err := a.settings.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings_load_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"gateways": gateways.List(st)})
}

// toggleGateway flips the enabled flag of a gateway. Without an API key for
// the active environment it answers 409 needs_setup.
func (a *api) toggleGateway(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := a.settings.Load(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings_load_failed", "detail": err.Error()})
		return
	}

	id := c.Param("id")
	enabled, err := gateways.Toggle(&st, id)
	switch {
	case errors.Is(err, gateways.ErrUnknownGateway):
		c.JSON(http.StatusNotFound, gin.H{"error": "gateway_not_found"})
		return
	case errors.Is(err, settings.ErrNeedsSetup):
		c.JSON(http.StatusConflict, gin.H{"error": "needs_setup"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "toggle_failed", "detail": err.Error()})
		return
	}

	if _, err := a.settings.Save(ctx, st); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings_save_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": enabled})
}
