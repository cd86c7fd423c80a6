// Package currency converts between GEL amounts stored as decimals and
// the tetri minor units the payment gateway charges in.
package currency

import (
	"fmt"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/enamelgeorgia/storefront/pkg/errors"
)

// Code is the single settlement currency.
const Code = "gel"

// Gateway charge bounds in tetri. Stripe rejects GEL charges outside
// this range, so amounts are validated before any gateway call.
const (
	MinChargeTetri int64 = 50
	MaxChargeTetri int64 = 100_000_000
)

var tetriPerGel = decimal.NewFromInt(100)

// GelToTetri converts a GEL amount to whole tetri. Fractional tetri are
// rejected rather than rounded so totals never drift from what the
// order recorded.
func GelToTetri(amount decimal.Decimal) (int64, error) {
	scaled := amount.Mul(tetriPerGel)
	if !scaled.IsInteger() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("amount %s has sub-tetri precision", amount.String()))
	}
	return scaled.IntPart(), nil
}

// TetriToGel converts whole tetri back to a GEL decimal.
func TetriToGel(tetri int64) decimal.Decimal {
	return decimal.NewFromInt(tetri).Div(tetriPerGel)
}

// FormatGel renders an amount with two decimal places and the currency
// suffix, e.g. "25.00 GEL".
func FormatGel(amount decimal.Decimal) string {
	return amount.StringFixed(2) + " GEL"
}

// ValidateChargeAmount checks a GEL amount against the gateway's charge
// bounds. min and max are in tetri; zero values fall back to the
// package defaults.
func ValidateChargeAmount(amount decimal.Decimal, min, max int64) (int64, error) {
	if min <= 0 {
		min = MinChargeTetri
	}
	if max <= 0 {
		max = MaxChargeTetri
	}

	tetri, err := GelToTetri(amount)
	if err != nil {
		return 0, err
	}

	if tetri < min {
		return 0, pkgerrors.New(
			pkgerrors.CodeBusinessRule,
			fmt.Sprintf("amount %s is below the minimum charge of %s", FormatGel(amount), FormatGel(TetriToGel(min))),
		)
	}
	if tetri > max {
		return 0, pkgerrors.New(
			pkgerrors.CodeBusinessRule,
			fmt.Sprintf("amount %s exceeds the maximum charge of %s", FormatGel(amount), FormatGel(TetriToGel(max))),
		)
	}

	return tetri, nil
}
