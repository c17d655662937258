package core

import (
	"fmt"

	"github.com/shopspring/decimal"

	"piecework.app/piecework/timesheet/model"
)

// ValidateQuantity enforces the per-category rule: production quantities
// are whole numbers above zero, everything else any non-negative number.
func ValidateQuantity(category model.WorkCategory, quantity decimal.Decimal) error {
	if category == model.CategoryProduction {
		if !quantity.IsInteger() || !quantity.IsPositive() {
			return fmt.Errorf("%w: production quantity must be a whole number greater than 0, got %s", ErrInvalidQuantity, quantity)
		}
		return nil
	}
	if quantity.IsNegative() {
		return fmt.Errorf("%w: quantity must not be negative, got %s", ErrInvalidQuantity, quantity)
	}
	return nil
}

// Amount is quantity × unit price rounded to cents; an unpriced process
// yields zero.
func Amount(quantity decimal.Decimal, unitPrice decimal.NullDecimal) decimal.Decimal {
	if !unitPrice.Valid {
		return decimal.Zero
	}
	return quantity.Mul(unitPrice.Decimal).Round(2)
}
