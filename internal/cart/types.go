package cart

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// LineKind identifies which section of the order a cart line came from.
type LineKind string

const (
	KindProduct  LineKind = "product"
	KindShipping LineKind = "shipping"
	KindFee      LineKind = "fee"
	KindCoupon   LineKind = "coupon"
)

// Tax status values carried by product lines.
const (
	TaxStatusTaxable  = "taxable"
	TaxStatusShipping = "shipping"
	TaxStatusNone     = "none"
)

// DefaultSeparateLineCouponTypes are the coupon discount types whose amount is
// not already folded into the product lines.
var DefaultSeparateLineCouponTypes = []string{"smart_coupon"}

// ProductLine is a purchased product as read from the order.
type ProductLine struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	VariationID int64           `json:"variation_id,omitempty"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"` // before line discounts
	Total       decimal.Decimal `json:"total"`    // after line discounts
	TaxClass    string          `json:"tax_class,omitempty"`
	TaxStatus   string          `json:"tax_status"`

	// Catalog prices of the product, used to derive an effective rate when
	// the tax class resolves to more than one rate.
	PriceIncludingTax decimal.Decimal `json:"price_including_tax"`
	PriceExcludingTax decimal.Decimal `json:"price_excluding_tax"`
}

// ShippingLine is a shipping charge on the order.
type ShippingLine struct {
	ID    int64             `json:"id"`
	Name  string            `json:"name"`
	Total decimal.Decimal   `json:"total"`
	Taxes []decimal.Decimal `json:"taxes,omitempty"`
}

// FeeLine is an extra fee on the order.
type FeeLine struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Quantity int               `json:"quantity"`
	Total    decimal.Decimal   `json:"total"`
	Taxes    []decimal.Decimal `json:"taxes,omitempty"`
}

// CouponLine is a coupon redeemed on the order.
type CouponLine struct {
	ID           int64           `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	Discount     decimal.Decimal `json:"discount"`
	DiscountType string          `json:"discount_type"`
}

// Order is the read-only input of a cart build.
type Order struct {
	ID       string          `json:"id"`
	Products []ProductLine   `json:"products,omitempty"`
	Shipping []ShippingLine  `json:"shipping,omitempty"`
	Fees     []FeeLine       `json:"fees,omitempty"`
	Coupons  []CouponLine    `json:"coupons,omitempty"`
	Total    decimal.Decimal `json:"total"`
}

// LineCount returns the number of source lines across all kinds.
func (o Order) LineCount() int {
	return len(o.Products) + len(o.Shipping) + len(o.Fees) + len(o.Coupons)
}

// TaxRate is one configured rate for a tax class.
type TaxRate struct {
	ID    int64           `json:"id"`
	Class string          `json:"class"`
	Label string          `json:"label,omitempty"`
	Rate  decimal.Decimal `json:"rate"`
}

// CartLine is a single item of the shopping cart sent to the payment provider.
type CartLine struct {
	Kind           LineKind
	Name           string
	Quantity       int
	MerchantItemID string
	UnitPrice      Money
	TaxRate        decimal.Decimal
}

type cartLineJSON struct {
	Name           string  `json:"name"`
	Quantity       int     `json:"quantity"`
	MerchantItemID string  `json:"merchant_item_id,omitempty"`
	UnitPrice      Money   `json:"unit_price"`
	TaxRate        float64 `json:"tax_rate"`
}

// MarshalJSON renders the line in the Order API shape. The tax rate is sent
// with two decimals.
func (l CartLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(cartLineJSON{
		Name:           l.Name,
		Quantity:       l.Quantity,
		MerchantItemID: l.MerchantItemID,
		UnitPrice:      l.UnitPrice,
		TaxRate:        l.TaxRate.Round(2).InexactFloat64(),
	})
}

func (l *CartLine) UnmarshalJSON(data []byte) error {
	var w cartLineJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	l.Name = w.Name
	l.Quantity = w.Quantity
	l.MerchantItemID = w.MerchantItemID
	l.UnitPrice = w.UnitPrice
	l.TaxRate = decimal.NewFromFloat(w.TaxRate)
	return nil
}

// Cart is the ordered list of lines built for one payment request.
type Cart struct {
	Items []CartLine `json:"items"`
}

// Config holds the store settings a build depends on.
type Config struct {
	TaxEnabled bool
	// VATExempt reports whether the order carries the persisted VAT-exempt flag.
	VATExempt               func(orderID string) bool
	SmartCouponPreTax       bool
	SeparateLineCouponTypes []string
	// TaxRates maps a tax class ("" for standard) to its applicable rates.
	TaxRates map[string][]TaxRate
	Debug    bool
}

// MerchantItemIDResolver may replace the merchant item id derived for a product line.
type MerchantItemIDResolver func(line ProductLine, defaultID string) string
