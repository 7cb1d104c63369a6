// Package pricing holds per-line order arithmetic. Order totals are summed in
// SQL by orders.Repository.Totals with the same rule: ProductInfo.price only,
// the recommended retail price never contributes.
package pricing

import (
	"github.com/shopspring/decimal"
)

// LineTotal is quantity × price.
func LineTotal(quantity int, price int64) int64 {
	return int64(quantity) * price
}

// FormatAmount renders a whole-unit amount for human-facing text such as mail bodies.
func FormatAmount(amount int64) string {
	return decimal.NewFromInt(amount).StringFixed(0)
}
