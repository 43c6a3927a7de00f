// Package money holds the precision rules every stored amount obeys.
package money

import (
	"hive_fund/internal/domain/apperr"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept for amounts at rest.
const Scale = 2

// IsCents reports whether amount survives storage without rounding.
func IsCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(Scale))
}

// RequireCents rejects an amount finer than one cent.
func RequireCents(field string, amount decimal.Decimal) error {
	if !IsCents(amount) {
		return apperr.BadRequestf("%s must have at most %d decimal places", field, Scale)
	}
	return nil
}
