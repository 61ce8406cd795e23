package orders

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-msp-checkout/internal/cart"
)

// ToCart converts the stored snapshot into cart builder input.
func (o Order) ToCart() (cart.Order, error) {
	out := cart.Order{ID: o.OrderID}

	total, err := amount("total", o.Total)
	if err != nil {
		return cart.Order{}, err
	}
	out.Total = total

	for i, l := range o.Lines {
		if err := appendLine(&out, l); err != nil {
			return cart.Order{}, fmt.Errorf("line %d (item %d): %w", i, l.ItemID, err)
		}
	}
	return out, nil
}

// VATExemptLookup answers from this snapshot's persisted flag.
func (o Order) VATExemptLookup() func(string) bool {
	return func(orderID string) bool {
		return orderID == o.OrderID && o.IsVATExempt
	}
}

func appendLine(out *cart.Order, l Line) error {
	switch l.Type {
	case LineTypeProduct:
		total, err := amount("total", l.Total)
		if err != nil {
			return err
		}
		// no subtotal means no line discount
		subtotal := total
		if l.Subtotal != "" {
			if subtotal, err = amount("subtotal", l.Subtotal); err != nil {
				return err
			}
		}
		incl, err := amount("price_incl_tax", l.PriceInclTax)
		if err != nil {
			return err
		}
		excl, err := amount("price_excl_tax", l.PriceExclTax)
		if err != nil {
			return err
		}
		out.Products = append(out.Products, cart.ProductLine{
			ID:                l.ItemID,
			ProductID:         l.ProductID,
			VariationID:       l.VariationID,
			Name:              l.Name,
			Quantity:          l.Quantity,
			Subtotal:          subtotal,
			Total:             total,
			TaxClass:          l.TaxClass,
			TaxStatus:         l.TaxStatus,
			PriceIncludingTax: incl,
			PriceExcludingTax: excl,
		})

	case LineTypeShipping:
		total, err := amount("total", l.Total)
		if err != nil {
			return err
		}
		taxes, err := amounts(l.Taxes)
		if err != nil {
			return err
		}
		out.Shipping = append(out.Shipping, cart.ShippingLine{
			ID:    l.ItemID,
			Name:  l.Name,
			Total: total,
			Taxes: taxes,
		})

	case LineTypeFee:
		total, err := amount("total", l.Total)
		if err != nil {
			return err
		}
		taxes, err := amounts(l.Taxes)
		if err != nil {
			return err
		}
		out.Fees = append(out.Fees, cart.FeeLine{
			ID:       l.ItemID,
			Name:     l.Name,
			Quantity: chargeQuantity(l.Quantity),
			Total:    total,
			Taxes:    taxes,
		})

	case LineTypeCoupon:
		discount, err := amount("discount", l.Discount)
		if err != nil {
			return err
		}
		out.Coupons = append(out.Coupons, cart.CouponLine{
			ID:           l.ItemID,
			Code:         l.Code,
			Name:         l.Name,
			Quantity:     chargeQuantity(l.Quantity),
			Discount:     discount,
			DiscountType: l.DiscountType,
		})

	default:
		return fmt.Errorf("unknown line type %q", l.Type)
	}
	return nil
}

// chargeQuantity returns the quantity of a fee or coupon line. The order
// system always reports 1 for these; an omitted value means the same.
func chargeQuantity(q int) int {
	if q == 0 {
		return 1
	}
	return q
}

// amount parses a decimal string; empty means zero.
func amount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return v, nil
}

func amounts(in []string) ([]decimal.Decimal, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]decimal.Decimal, 0, len(in))
	for _, s := range in {
		v, err := amount("tax", s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
