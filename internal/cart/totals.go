package cart

import (
	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeTotals is deterministic and does not clamp: a discount larger than
// subtotal plus tax yields a negative total.
func ComputeTotals(tab domain.SaleTab, taxRate float64) domain.Totals {
	subtotal := decimal.Zero
	for _, l := range tab.Cart {
		subtotal = subtotal.Add(decimal.NewFromFloat(l.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	rate := decimal.NewFromFloat(taxRate)
	tax := subtotal.Mul(rate).Div(hundred)

	discount := decimal.NewFromFloat(tab.DiscountValue)
	if tab.DiscountType == domain.DiscountPercentage {
		discount = subtotal.Mul(discount).Div(hundred)
	}

	total := subtotal.Add(tax).Sub(discount)

	return domain.Totals{
		Subtotal:       subtotal.InexactFloat64(),
		Tax:            tax.InexactFloat64(),
		TaxRate:        taxRate,
		DiscountAmount: discount.InexactFloat64(),
		Total:          total.InexactFloat64(),
	}
}
