package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-msp-checkout/internal/settings"
	"github.com/imrishuroy/go-msp-checkout/internal/validation"
)

func (a *api) settingsFields(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sections": settings.Sections()})
}

func (a *api) getSettings(c *gin.Context) {
	st, err := a.settings.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings_load_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settingsView(st))
}

func (a *api) patchSettings(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.SettingsPatchRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}

	st, err := a.settings.Load(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings_load_failed", "detail": err.Error()})
		return
	}
	updated, err := settings.Apply(st, req.Values, a.v)
	if err != nil {
		code := "invalid_setting"
		if errors.Is(err, settings.ErrUnknownField) {
			code = "unknown_field"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": code, "detail": err.Error()})
		return
	}

	saved, err := a.settings.Save(ctx, updated)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings_save_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settingsView(saved))
}

// settingsView never exposes the keys themselves.
func settingsView(st settings.Settings) gin.H {
	return gin.H{
		"settings":            st,
		"has_api_key":         st.HasAPIKey(),
		"has_live_api_key":    st.APIKey != "",
		"has_sandbox_api_key": st.SandboxAPIKey != "",
	}
}
