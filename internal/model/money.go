package model

import "math"

// Monetary amounts are float64 rounded to cents at every derivation
// point, so equality checks must go through AmountsEqual.

// RoundCents rounds a monetary amount to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// AmountsEqual reports whether two monetary amounts are the same to the
// cent.
func AmountsEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

// LineSubtotal computes (unitPrice - discount) * quantity for a single
// line item, rounded to cents.
func LineSubtotal(unitPrice, discount float64, quantity int) float64 {
	return RoundCents((unitPrice - discount) * float64(quantity))
}

// FinalAmount computes max(0, total - discount), rounded to cents.
func FinalAmount(total, discount float64) float64 {
	final := RoundCents(total - discount)
	if final < 0 {
		return 0
	}
	return final
}
