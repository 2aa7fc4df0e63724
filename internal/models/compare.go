package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAmountEpsilon is the canonical amount-agreement tolerance.
// Two amounts agree when their absolute difference is strictly below it.
var DefaultAmountEpsilon = decimal.NewFromFloat(0.01)

// AmountsEqual reports whether |a-b| < epsilon. The comparison is strict at
// the boundary: a difference of exactly epsilon does not match.
func AmountsEqual(a, b, epsilon decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(epsilon)
}

// SameDate reports whether two timestamps fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DatesWithinTolerance reports whether the calendar dates of a and b are at
// most toleranceDays apart.
func DatesWithinTolerance(a, b time.Time, toleranceDays int) bool {
	da := DateOnly(a)
	db := DateOnly(b)
	diff := da.Sub(db)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(toleranceDays)*24*time.Hour
}

// AgeInDays returns the number of whole days between when and today
// (negative ages clamp to zero).
func AgeInDays(when, today time.Time) int {
	days := int(DateOnly(today).Sub(DateOnly(when)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// InferDirection derives the money-movement direction for a record.
// Tran_Type keywords win; otherwise the Dr/Cr indicator decides
// (credit-dominant flows are inward). Unclassifiable rows default to
// OUTWARD so they are tracked on the stricter side.
func InferDirection(tranType string, drCr DrCr) Direction {
	upper := strings.ToUpper(tranType)
	switch {
	case strings.Contains(upper, "INWARD"):
		return DirectionInward
	case strings.Contains(upper, "OUTWARD"):
		return DirectionOutward
	}
	if drCr == DrCrCredit {
		return DirectionInward
	}
	return DirectionOutward
}
