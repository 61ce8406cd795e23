package orders

import "time"

// Line types as sent by the order system.
const (
	LineTypeProduct  = "line_item"
	LineTypeShipping = "shipping"
	LineTypeFee      = "fee"
	LineTypeCoupon   = "coupon"
)

// Line is one stored order line. Amounts are decimal strings so they round-trip
// through DynamoDB without float conversion.
type Line struct {
	Type         string   `dynamodbav:"type"`
	ItemID       int64    `dynamodbav:"item_id"`
	ProductID    int64    `dynamodbav:"product_id,omitempty"`
	VariationID  int64    `dynamodbav:"variation_id,omitempty"`
	Name         string   `dynamodbav:"name"`
	Quantity     int      `dynamodbav:"quantity"`
	Subtotal     string   `dynamodbav:"subtotal,omitempty"`
	Total        string   `dynamodbav:"total,omitempty"`
	TaxClass     string   `dynamodbav:"tax_class,omitempty"`
	TaxStatus    string   `dynamodbav:"tax_status,omitempty"`
	PriceInclTax string   `dynamodbav:"price_incl_tax,omitempty"`
	PriceExclTax string   `dynamodbav:"price_excl_tax,omitempty"`
	Taxes        []string `dynamodbav:"taxes,omitempty"`
	Code         string   `dynamodbav:"code,omitempty"`
	Discount     string   `dynamodbav:"discount,omitempty"`
	DiscountType string   `dynamodbav:"discount_type,omitempty"`
}

// Order is the snapshot stored in the Orders DynamoDB table.
type Order struct {
	OrderID     string    `dynamodbav:"order_id"` // PK
	CustomerID  string    `dynamodbav:"customer_id,omitempty"`
	Currency    string    `dynamodbav:"currency"`
	Total       string    `dynamodbav:"total"`
	IsVATExempt bool      `dynamodbav:"is_vat_exempt"`
	Lines       []Line    `dynamodbav:"lines,omitempty"`
	CreatedAt   time.Time `dynamodbav:"created_at"`
	UpdatedAt   time.Time `dynamodbav:"updated_at"`
}
