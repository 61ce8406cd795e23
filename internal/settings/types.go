package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-msp-checkout/internal/cart"
)

// Environments
const (
	EnvironmentLive = "live"
	EnvironmentTest = "test"
)

// DefaultID is the key of the single settings record.
const DefaultID = "default"

// ErrNeedsSetup is returned when a gateway is toggled before an API key is configured.
var ErrNeedsSetup = errors.New("needs_setup")

// TaxRate is a stored tax rate. Rate is a decimal string in percent.
type TaxRate struct {
	ID    int64  `dynamodbav:"id" json:"id"`
	Class string `dynamodbav:"class" json:"class"`
	Label string `dynamodbav:"label,omitempty" json:"label,omitempty"`
	Rate  string `dynamodbav:"rate" json:"rate" validate:"required,numeric"`
}

// GatewaySettings holds per payment method settings.
type GatewaySettings struct {
	Enabled bool   `dynamodbav:"enabled" json:"enabled"`
	Title   string `dynamodbav:"title,omitempty" json:"title,omitempty"`
}

// Settings is the store configuration persisted in the settings table.
type Settings struct {
	ID                        string                     `dynamodbav:"settings_id" json:"-"` // PK
	Environment               string                     `dynamodbav:"environment" json:"environment"`
	APIKey                    string                     `dynamodbav:"api_key,omitempty" json:"-"`
	SandboxAPIKey             string                     `dynamodbav:"sandbox_api_key,omitempty" json:"-"`
	DebugMode                 bool                       `dynamodbav:"debug_mode" json:"debug_mode"`
	TaxEnabled                bool                       `dynamodbav:"tax_enabled" json:"tax_enabled"`
	SmartCouponApplyBeforeTax bool                       `dynamodbav:"smart_coupon_apply_before_tax" json:"smart_coupon_apply_before_tax"`
	SeparateLineCouponTypes   []string                   `dynamodbav:"separate_line_coupon_types,omitempty" json:"separate_line_coupon_types"`
	TaxRates                  []TaxRate                  `dynamodbav:"tax_rates,omitempty" json:"tax_rates"`
	Gateways                  map[string]GatewaySettings `dynamodbav:"gateways,omitempty" json:"gateways"`
	NotificationURL           string                     `dynamodbav:"notification_url,omitempty" json:"notification_url,omitempty"`
	RedirectURL               string                     `dynamodbav:"redirect_url,omitempty" json:"redirect_url,omitempty"`
	CancelURL                 string                     `dynamodbav:"cancel_url,omitempty" json:"cancel_url,omitempty"`
	UpdatedAt                 time.Time                  `dynamodbav:"updated_at" json:"updated_at"`
}

// Defaults returns the settings used before anything has been saved.
func Defaults() Settings {
	return Settings{
		ID:                      DefaultID,
		Environment:             EnvironmentTest,
		TaxEnabled:              true,
		SeparateLineCouponTypes: append([]string(nil), cart.DefaultSeparateLineCouponTypes...),
		Gateways:                map[string]GatewaySettings{},
	}
}

// ActiveAPIKey returns the key of the selected environment.
func (s Settings) ActiveAPIKey() string {
	if s.Environment == EnvironmentTest {
		return s.SandboxAPIKey
	}
	return s.APIKey
}

// HasAPIKey reports whether the selected environment has a key.
func (s Settings) HasAPIKey() bool {
	return s.ActiveAPIKey() != ""
}

// GatewayEnabled reports whether gateway id is switched on.
func (s Settings) GatewayEnabled(id string) bool {
	return s.Gateways[id].Enabled
}

// ToggleGateway flips the enabled flag of gateway id. Toggling requires an API
// key for the active environment.
func (s *Settings) ToggleGateway(id string) (bool, error) {
	if !s.HasAPIKey() {
		return false, ErrNeedsSetup
	}
	if s.Gateways == nil {
		s.Gateways = map[string]GatewaySettings{}
	}
	g := s.Gateways[id]
	g.Enabled = !g.Enabled
	s.Gateways[id] = g
	return g.Enabled, nil
}

// CartConfig returns the cart builder configuration for these settings.
func (s Settings) CartConfig(vatExempt func(string) bool) (cart.Config, error) {
	rates := make(map[string][]cart.TaxRate, len(s.TaxRates))
	for _, r := range s.TaxRates {
		rate, err := decimal.NewFromString(r.Rate)
		if err != nil {
			return cart.Config{}, fmt.Errorf("tax rate %d: invalid rate %q: %w", r.ID, r.Rate, err)
		}
		rates[r.Class] = append(rates[r.Class], cart.TaxRate{
			ID:    r.ID,
			Class: r.Class,
			Label: r.Label,
			Rate:  rate,
		})
	}

	return cart.Config{
		TaxEnabled:              s.TaxEnabled,
		VATExempt:               vatExempt,
		SmartCouponPreTax:       s.SmartCouponApplyBeforeTax,
		SeparateLineCouponTypes: s.SeparateLineCouponTypes,
		TaxRates:                rates,
		Debug:                   s.DebugMode,
	}, nil
}
