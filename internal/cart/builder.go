package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"
)

// ShippingName is the display name of every shipping line.
const ShippingName = "Shipping"

// ErrZeroQuantity is returned when a product line has no quantity to divide its price by.
var ErrZeroQuantity = errors.New("product line has zero quantity")

// Builder turns an order into the shopping cart of a payment request.
type Builder struct {
	cfg      Config
	resolver MerchantItemIDResolver
	logger   *log.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithMerchantItemIDResolver overrides the merchant item id of product lines.
func WithMerchantItemIDResolver(r MerchantItemIDResolver) Option {
	return func(b *Builder) { b.resolver = r }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder returns a Builder for cfg. A nil SeparateLineCouponTypes falls
// back to DefaultSeparateLineCouponTypes.
func NewBuilder(cfg Config, opts ...Option) *Builder {
	if cfg.SeparateLineCouponTypes == nil {
		cfg.SeparateLineCouponTypes = DefaultSeparateLineCouponTypes
	}
	b := &Builder{
		cfg:    cfg,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the cart for order priced in currency. Lines are emitted as
// products, shipping, fees, then coupons, each in order of appearance.
func (b *Builder) Build(order Order, currency string) (Cart, error) {
	if b.cfg.Debug {
		b.debug("order=%s lines: %s", order.ID, order)
	}

	items := make([]CartLine, 0, order.LineCount())

	for _, p := range order.Products {
		line, err := b.productLine(order.ID, p, currency)
		if err != nil {
			return Cart{}, err
		}
		items = append(items, line)
	}

	for _, s := range order.Shipping {
		items = append(items, b.shippingLine(order.ID, s, currency))
	}

	for _, f := range order.Fees {
		items = append(items, b.feeLine(order.ID, f, currency))
	}

	for _, c := range order.Coupons {
		// smart coupons applied before tax are already part of the line totals
		if !b.couponOnSeparateLine(c) {
			continue
		}
		items = append(items, couponLine(c, currency))
	}

	cart := Cart{Items: items}

	if b.cfg.Debug {
		b.debug("order=%s cart: %s", order.ID, cart)
	}
	return cart, nil
}

func (b *Builder) productLine(orderID string, p ProductLine, currency string) (CartLine, error) {
	if p.Quantity == 0 {
		return CartLine{}, fmt.Errorf("item %d (%s): %w", p.ID, p.Name, ErrZeroQuantity)
	}
	qty := decimal.NewFromInt(int64(p.Quantity))

	name := p.Name
	price := p.Subtotal.Div(qty)

	// a differing total means a discount was applied on this line
	if !p.Subtotal.Equal(p.Total) {
		discount := p.Subtotal.Sub(p.Total)
		name += fmt.Sprintf(" - Coupon applied: - %s %s", discount.StringFixed(2), currency)
		price = p.Total.Div(qty)
	}

	return CartLine{
		Kind:           KindProduct,
		Name:           name,
		Quantity:       p.Quantity,
		MerchantItemID: b.merchantItemID(p),
		UnitPrice:      NewMoney(price, currency),
		TaxRate:        b.productTaxRate(orderID, p),
	}, nil
}

func (b *Builder) merchantItemID(p ProductLine) string {
	id := p.ProductID
	if p.VariationID != 0 {
		id = p.VariationID
	}
	def := strconv.FormatInt(id, 10)
	if b.resolver == nil {
		return def
	}
	return b.resolver(p, def)
}

func (b *Builder) shippingLine(orderID string, s ShippingLine, currency string) CartLine {
	return CartLine{
		Kind:      KindShipping,
		Name:      ShippingName,
		Quantity:  1,
		UnitPrice: NewMoney(s.Total, currency),
		TaxRate:   b.chargeTaxRate(orderID, s.Total, s.Taxes),
	}
}

func (b *Builder) feeLine(orderID string, f FeeLine, currency string) CartLine {
	return CartLine{
		Kind:           KindFee,
		Name:           f.Name,
		Quantity:       f.Quantity,
		MerchantItemID: strconv.FormatInt(f.ID, 10),
		UnitPrice:      NewMoney(f.Total, currency),
		TaxRate:        b.chargeTaxRate(orderID, f.Total, f.Taxes),
	}
}

func (b *Builder) couponOnSeparateLine(c CouponLine) bool {
	return slices.Contains(b.cfg.SeparateLineCouponTypes, c.DiscountType) && !b.cfg.SmartCouponPreTax
}

func couponLine(c CouponLine, currency string) CartLine {
	return CartLine{
		Kind:           KindCoupon,
		Name:           c.Name,
		Quantity:       c.Quantity,
		MerchantItemID: strconv.FormatInt(c.ID, 10),
		UnitPrice:      NewMoney(c.Discount.Neg(), currency),
		TaxRate:        decimal.Zero,
	}
}

func (b *Builder) debug(format string, id string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		b.logger.Printf("[cart] debug dump failed for order=%s: %v", id, err)
		return
	}
	b.logger.Printf("[cart] "+format, id, raw)
}
