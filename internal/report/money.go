// Package report renders ledger and analytics results as markdown for the
// terminal.
package report

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money formats amounts in one currency.
type Money struct {
	currency string
}

func NewMoney(currency string) Money {
	return Money{currency: currency}
}

// Format renders amount with the currency's grapheme and separators, e.g.
// "Rp5.000.000,00". Unknown currencies fall back to "<amount> <code>".
func (m Money) Format(amount decimal.Decimal) string {
	cur := money.GetCurrency(m.currency)
	if cur == nil {
		return amount.StringFixed(2) + " " + m.currency
	}
	factor := decimal.New(1, int32(cur.Fraction))
	minor := amount.Mul(factor).Round(0)
	return money.New(minor.IntPart(), m.currency).Display()
}

// Signed is Format with an explicit "+" on positive amounts.
func (m Money) Signed(amount decimal.Decimal) string {
	if amount.IsPositive() {
		return "+" + m.Format(amount)
	}
	return m.Format(amount)
}
