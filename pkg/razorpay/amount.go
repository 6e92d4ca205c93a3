package razorpay

import "github.com/shopspring/decimal"

// MinorUnitExponent is the number of minor-unit digits in INR amounts as the
// gateway reports them (paise).
const MinorUnitExponent = 2

// ToMinorUnits converts a major-unit amount to gateway minor units,
// rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(MinorUnitExponent).Round(0).IntPart()
}

// FromMinorUnits converts a gateway minor-unit amount back to major units.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent)
}
