package cart

import "github.com/shopspring/decimal"

func (b *Builder) vatExempt(orderID string) bool {
	return b.cfg.VATExempt != nil && b.cfg.VATExempt(orderID)
}

// productTaxRate returns the rate in percent applied to a product line.
func (b *Builder) productTaxRate(orderID string, p ProductLine) decimal.Decimal {
	if !b.cfg.TaxEnabled {
		return decimal.Zero
	}
	if p.TaxStatus != TaxStatusTaxable {
		return decimal.Zero
	}
	if b.vatExempt(orderID) {
		return decimal.Zero
	}

	rates := b.cfg.TaxRates[p.TaxClass]
	switch len(rates) {
	case 0:
		return decimal.Zero
	case 1:
		return rates[0].Rate
	default:
		// compound or stacked rates: derive the effective rate from catalog prices
		if p.PriceExcludingTax.IsZero() {
			return decimal.Zero
		}
		return p.PriceIncludingTax.Div(p.PriceExcludingTax).Sub(one).Mul(hundred)
	}
}

// chargeTaxRate returns the rate in percent for shipping and fee lines, derived
// from the tax amounts charged on the line.
func (b *Builder) chargeTaxRate(orderID string, total decimal.Decimal, taxes []decimal.Decimal) decimal.Decimal {
	if !b.cfg.TaxEnabled {
		return decimal.Zero
	}
	if b.vatExempt(orderID) {
		return decimal.Zero
	}
	if total.IsZero() {
		return decimal.Zero
	}
	if len(taxes) == 0 {
		return decimal.Zero
	}
	sum := decimal.Sum(decimal.Zero, taxes...)
	return sum.Mul(hundred).Div(total)
}
