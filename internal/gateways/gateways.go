package gateways

import (
	"errors"
	"fmt"

	"github.com/imrishuroy/go-msp-checkout/internal/settings"
)

// Payment method types
const (
	TypeRedirect = "redirect"
	TypeDirect   = "direct"
)

// ErrUnknownGateway is returned for an id that is not in the registry.
var ErrUnknownGateway = errors.New("unknown gateway")

// Gateway describes a MultiSafepay payment method offered at checkout.
type Gateway struct {
	ID                           string   `json:"id"`
	Code                         string   `json:"code"`
	Type                         string   `json:"type"`
	Title                        string   `json:"title"`
	Description                  string   `json:"description"`
	Icon                         string   `json:"icon"`
	HasFields                    bool     `json:"has_fields"`
	CheckoutFieldIDs             []string `json:"checkout_field_ids,omitempty"`
	ConfigurableTokenization     bool     `json:"configurable_tokenization"`
	ConfigurablePaymentComponent bool     `json:"configurable_payment_component"`
}

var registry = []Gateway{
	{
		ID:               "multisafepay_ideal",
		Code:             "IDEAL",
		Type:             TypeRedirect,
		Title:            "iDEAL",
		Description:      "The leading ecommerce payment method in the Netherlands connecting all major Dutch banks.",
		Icon:             "ideal.png",
		HasFields:        true,
		CheckoutFieldIDs: []string{"ideal_issuers"},
	},
	{
		ID:                           "multisafepay_amex",
		Code:                         "AMEX",
		Type:                         TypeRedirect,
		Title:                        "American Express",
		Description:                  "Enable a widely used credit card payment method by American Express.",
		Icon:                         "amex.png",
		ConfigurableTokenization:     true,
		ConfigurablePaymentComponent: true,
	},
	{
		ID:          "multisafepay_good4fun",
		Code:        "GOOD4FUN",
		Type:        TypeRedirect,
		Title:       "Good4fun Giftcard",
		Description: "Gift card accepted by participating Good4fun merchants.",
		Icon:        "good4fun.png",
	},
}

// All returns every registered gateway in display order.
func All() []Gateway {
	out := make([]Gateway, len(registry))
	copy(out, registry)
	return out
}

// IDs returns the ids of all registered gateways.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for _, g := range registry {
		ids = append(ids, g.ID)
	}
	return ids
}

// ByID looks up a gateway.
func ByID(id string) (Gateway, bool) {
	for _, g := range registry {
		if g.ID == id {
			return g, true
		}
	}
	return Gateway{}, false
}

func IsGateway(id string) bool {
	_, ok := ByID(id)
	return ok
}

// Listing is a gateway together with its stored settings.
type Listing struct {
	Gateway
	Enabled bool `json:"enabled"`
}

// List returns all gateways with the enabled flag and title override from s.
func List(s settings.Settings) []Listing {
	out := make([]Listing, 0, len(registry))
	for _, g := range All() {
		gs := s.Gateways[g.ID]
		if gs.Title != "" {
			g.Title = gs.Title
		}
		out = append(out, Listing{Gateway: g, Enabled: gs.Enabled})
	}
	return out
}

// Toggle flips gateway id in s. It fails with settings.ErrNeedsSetup when the
// active environment has no API key.
func Toggle(s *settings.Settings, id string) (bool, error) {
	if !IsGateway(id) {
		return false, fmt.Errorf("%w: %s", ErrUnknownGateway, id)
	}
	return s.ToggleGateway(id)
}

// Usable reports whether checkout may use gateway id with settings s.
func Usable(s settings.Settings, id string) error {
	if !IsGateway(id) {
		return fmt.Errorf("%w: %s", ErrUnknownGateway, id)
	}
	if !s.HasAPIKey() {
		return settings.ErrNeedsSetup
	}
	if !s.GatewayEnabled(id) {
		return fmt.Errorf("gateway %s is disabled", id)
	}
	return nil
}
