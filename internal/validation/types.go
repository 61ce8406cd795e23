package validation

import (
	"github.com/imrishuroy/go-msp-checkout/internal/orders"
)

// LineRequest is one order line in an order snapshot.
type LineRequest struct {
	Type         string   `json:"type" validate:"required,oneof=line_item shipping fee coupon"`
	ItemID       int64    `json:"item_id" validate:"required,gt=0"`
	ProductID    int64    `json:"product_id,omitempty" validate:"gte=0"`
	VariationID  int64    `json:"variation_id,omitempty" validate:"gte=0"`
	Name         string   `json:"name,omitempty"`
	Quantity     int      `json:"quantity,omitempty" validate:"gte=0"`
	Subtotal     string   `json:"subtotal,omitempty" validate:"omitempty,numeric"`
	Total        string   `json:"total,omitempty" validate:"omitempty,numeric"`
	TaxClass     string   `json:"tax_class,omitempty"`
	TaxStatus    string   `json:"tax_status,omitempty" validate:"omitempty,oneof=taxable shipping none"`
	PriceInclTax string   `json:"price_incl_tax,omitempty" validate:"omitempty,numeric"`
	PriceExclTax string   `json:"price_excl_tax,omitempty" validate:"omitempty,numeric"`
	Taxes        []string `json:"taxes,omitempty" validate:"omitempty,dive,numeric"`
	Code         string   `json:"code,omitempty"`
	Discount     string   `json:"discount,omitempty" validate:"omitempty,numeric"`
	DiscountType string   `json:"discount_type,omitempty"`
}

// UpsertOrderRequest is the payload for PUT /orders/:id.
type UpsertOrderRequest struct {
	CustomerID  string        `json:"customer_id,omitempty"`
	Currency    string        `json:"currency" validate:"required,iso4217"`
	Total       string        `json:"total" validate:"required,numeric"`
	IsVATExempt bool          `json:"is_vat_exempt"`
	Lines       []LineRequest `json:"lines" validate:"dive"`
}

// ToOrder maps the request onto the stored snapshot for orderID.
func (r UpsertOrderRequest) ToOrder(orderID string) orders.Order {
	o := orders.Order{
		OrderID:     orderID,
		CustomerID:  r.CustomerID,
		Currency:    r.Currency,
		Total:       r.Total,
		IsVATExempt: r.IsVATExempt,
		Lines:       make([]orders.Line, 0, len(r.Lines)),
	}
	for _, l := range r.Lines {
		o.Lines = append(o.Lines, orders.Line{
			Type:         l.Type,
			ItemID:       l.ItemID,
			ProductID:    l.ProductID,
			VariationID:  l.VariationID,
			Name:         l.Name,
			Quantity:     l.Quantity,
			Subtotal:     l.Subtotal,
			Total:        l.Total,
			TaxClass:     l.TaxClass,
			TaxStatus:    l.TaxStatus,
			PriceInclTax: l.PriceInclTax,
			PriceExclTax: l.PriceExclTax,
			Taxes:        l.Taxes,
			Code:         l.Code,
			Discount:     l.Discount,
			DiscountType: l.DiscountType,
		})
	}
	return o
}

// CreatePaymentRequest is the payload for POST /payment-requests.
type CreatePaymentRequest struct {
	OrderID     string `json:"order_id" validate:"required"`
	Gateway     string `json:"gateway" validate:"required,msp_gateway"`
	Currency    string `json:"currency,omitempty" validate:"omitempty,iso4217"`
	Description string `json:"description,omitempty" validate:"max=200"`
}

// SettingsPatchRequest is the payload for PATCH /settings.
type SettingsPatchRequest struct {
	Values map[string]string `json:"values" validate:"required,min=1"`
}
