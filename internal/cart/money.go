package cart

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// ErrCartMismatch is returned by Reconcile when the cart does not add up to the order total.
var ErrCartMismatch = errors.New("cart total does not match order total")

// Money is an amount in a currency. It is sent as integer minor units.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney returns a Money for amount in currency.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// MinorUnits returns the amount in cents, rounded half away from zero.
func (m Money) MinorUnits() int64 {
	return m.Amount.Mul(hundred).Round(0).IntPart()
}

type moneyJSON struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.MinorUnits(), Currency: m.Currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var w moneyJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Amount = decimal.New(w.Amount, -2)
	m.Currency = w.Currency
	return nil
}

// Total sums unit price × quantity plus tax over all lines, rounded to cents.
func (c Cart) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		net := it.UnitPrice.Amount.Mul(decimal.NewFromInt(int64(it.Quantity)))
		gross := net.Mul(one.Add(it.TaxRate.Div(hundred)))
		sum = sum.Add(gross)
	}
	return sum.Round(2)
}

// Reconcile checks that the cart total is within tolerance of orderTotal.
func (c Cart) Reconcile(orderTotal, tolerance decimal.Decimal) error {
	total := c.Total()
	if total.Sub(orderTotal).Abs().GreaterThan(tolerance) {
		return fmt.Errorf("%w: cart=%s order=%s", ErrCartMismatch, total.StringFixed(2), orderTotal.StringFixed(2))
	}
	return nil
}
