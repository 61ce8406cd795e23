package settings

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// Field types
const (
	FieldText     = "text"
	FieldPassword = "password"
	FieldSelect   = "select"
	FieldCheckbox = "checkbox"
	FieldCSV      = "csv"
	FieldURL      = "url"
)

// ErrUnknownField is returned by Apply for a field id that is not registered.
var ErrUnknownField = errors.New("unknown settings field")

// Field describes one editable setting.
type Field struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Tooltip   string   `json:"tooltip,omitempty"`
	Type      string   `json:"type"`
	Options   []string `json:"options,omitempty"`
	SortOrder int      `json:"sort_order"`

	apply func(s *Settings, v string)
}

// Section groups the fields shown on one settings tab.
type Section struct {
	Key    string  `json:"key"`
	Title  string  `json:"title"`
	Intro  string  `json:"intro,omitempty"`
	Fields []Field `json:"fields"`
}

func registry() []Section {
	return []Section{
		{
			Key:   "general",
			Title: "Account",
			Intro: "Connect the store with your MultiSafepay account.",
			Fields: []Field{
				{
					ID: "api_key", Label: "Live API key", Type: FieldPassword, SortOrder: 10,
					Tooltip: "Found in your MultiSafepay account under website settings.",
					apply:   func(s *Settings, v string) { s.APIKey = v },
				},
				{
					ID: "environment", Label: "Environment", Type: FieldSelect, SortOrder: 1,
					Options: []string{EnvironmentLive, EnvironmentTest},
					apply:   func(s *Settings, v string) { s.Environment = v },
				},
				{
					ID: "sandbox_api_key", Label: "Test API key", Type: FieldPassword, SortOrder: 20,
					apply: func(s *Settings, v string) { s.SandboxAPIKey = v },
				},
			},
		},
		{
			Key:   "options",
			Title: "Options",
			Fields: []Field{
				{
					ID: "debug_mode", Label: "Debug mode", Type: FieldCheckbox, SortOrder: 50,
					Tooltip: "Logs the order lines and the shopping cart of every payment request.",
					apply:   func(s *Settings, v string) { s.DebugMode = parseBool(v) },
				},
				{
					ID: "tax_enabled", Label: "Enable taxes", Type: FieldCheckbox, SortOrder: 10,
					apply: func(s *Settings, v string) { s.TaxEnabled = parseBool(v) },
				},
				{
					ID: "smart_coupon_apply_before_tax", Label: "Smart coupons apply before tax", Type: FieldCheckbox, SortOrder: 20,
					Tooltip: "When enabled, smart coupon discounts are already part of the product lines.",
					apply:   func(s *Settings, v string) { s.SmartCouponApplyBeforeTax = parseBool(v) },
				},
				{
					ID: "separate_line_coupon_types", Label: "Coupon types sent as a separate line", Type: FieldCSV, SortOrder: 30,
					apply: func(s *Settings, v string) { s.SeparateLineCouponTypes = splitCSV(v) },
				},
				{
					ID: "notification_url", Label: "Notification URL", Type: FieldURL, SortOrder: 60,
					apply: func(s *Settings, v string) { s.NotificationURL = v },
				},
				{
					ID: "redirect_url", Label: "Redirect URL", Type: FieldURL, SortOrder: 70,
					apply: func(s *Settings, v string) { s.RedirectURL = v },
				},
				{
					ID: "cancel_url", Label: "Cancel URL", Type: FieldURL, SortOrder: 80,
					apply: func(s *Settings, v string) { s.CancelURL = v },
				},
			},
		},
	}
}

// Sections returns the settings tabs with their fields ordered by SortOrder.
func Sections() []Section {
	sections := registry()
	for i := range sections {
		fields := sections[i].Fields
		sort.SliceStable(fields, func(a, b int) bool {
			return fields[a].SortOrder < fields[b].SortOrder
		})
	}
	return sections
}

func lookupField(id string) (Field, bool) {
	for _, sec := range registry() {
		for _, f := range sec.Fields {
			if f.ID == id {
				return f, true
			}
		}
	}
	return Field{}, false
}

// Apply validates values against the field registry and writes them into s.
// Nothing is written when any value is rejected.
func Apply(s Settings, values map[string]string, v *validatorv10.Validate) (Settings, error) {
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := s
	out.Gateways = cloneGateways(s.Gateways)
	for _, id := range ids {
		f, ok := lookupField(id)
		if !ok {
			return s, fmt.Errorf("%w: %s", ErrUnknownField, id)
		}
		value := strings.TrimSpace(values[id])
		if err := f.sanitize(value, v); err != nil {
			return s, fmt.Errorf("field %s: %w", id, err)
		}
		f.apply(&out, value)
	}
	return out, nil
}

func (f Field) sanitize(value string, v *validatorv10.Validate) error {
	switch f.Type {
	case FieldSelect:
		if !slices.Contains(f.Options, value) {
			return fmt.Errorf("must be one of %s", strings.Join(f.Options, ", "))
		}
	case FieldCheckbox:
		if _, err := strconv.ParseBool(normalizeBool(value)); err != nil {
			return fmt.Errorf("not a boolean: %q", value)
		}
	case FieldURL:
		if err := v.Var(value, "omitempty,url"); err != nil {
			return fmt.Errorf("not a valid url: %q", value)
		}
	}
	return nil
}

// normalizeBool maps the yes/no values used by the admin form onto ParseBool input.
func normalizeBool(v string) string {
	switch strings.ToLower(v) {
	case "yes", "on":
		return "true"
	case "no", "off", "":
		return "false"
	}
	return v
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(normalizeBool(v))
	return b
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cloneGateways(in map[string]GatewaySettings) map[string]GatewaySettings {
	out := make(map[string]GatewaySettings, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
