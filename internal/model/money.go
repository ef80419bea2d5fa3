package model

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// minorPerMajor is the number of minor units in one major unit for every
// supported currency.
const minorPerMajor = 100

// MinorToMajor converts an amount in minor units (as stored on payment
// intents and sent to the provider) to major units (as stored on payments
// and hammer prices).
func MinorToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// MajorToMinor converts a major-unit amount to minor units. Amounts with
// more precision than one minor unit, or outside the int64 range once
// scaled, are rejected rather than rounded or wrapped.
func MajorToMinor(major decimal.Decimal) (int64, error) {
	scaled := major.Mul(decimal.NewFromInt(minorPerMajor))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has sub-minor precision", major.String())
	}
	if scaled.GreaterThan(maxMinor) || scaled.LessThan(minMinor) {
		return 0, fmt.Errorf("amount %s is out of range", major.String())
	}
	return scaled.IntPart(), nil
}
