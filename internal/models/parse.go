package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var rrnPattern = regexp.MustCompile(`^\d{12}$`)

// ValidRRN reports whether s is a well-formed retrieval reference number:
// exactly 12 digits.
func ValidRRN(s string) bool {
	return rrnPattern.MatchString(s)
}

// NormalizeRRN cleans up RRN values as they arrive from source files:
// surrounding whitespace and quoting are removed, and the ".0" suffix a
// spreadsheet round-trip leaves on numeric cells is stripped.
func NormalizeRRN(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.Trim(value, `'"`)
	if idx := strings.Index(value, "."); idx > 0 {
		frac := value[idx+1:]
		if strings.Trim(frac, "0") == "" {
			value = value[:idx]
		}
	}
	return value
}

// amountCleaner strips currency symbols, separators and spaces before
// decimal parsing.
var amountCleaner = strings.NewReplacer(
	",", "",
	" ", "",
	"₹", "", // rupee sign
	"$", "",
	"Rs.", "",
	"Rs", "",
	"INR", "",
)

// ParseAmount parses a source amount value into a decimal. Currency
// symbols, thousands separators and surrounding whitespace are tolerated;
// an empty value is an error because every source row must carry an amount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	value = amountCleaner.Replace(value)

	// Accounting notation: (150.00) means -150.00.
	negative := false
	if strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")") {
		negative = true
		value = value[1 : len(value)-1]
	}

	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

var nonLetters = regexp.MustCompile(`[^A-Z]`)

// ParseDrCr normalizes a debit/credit indicator. Values are uppercased and
// stripped of non-letters before mapping; an empty value is UNSPECIFIED
// without error, an unrecognized value is UNSPECIFIED with an error so the
// caller can warn.
func ParseDrCr(raw string) (DrCr, error) {
	value := nonLetters.ReplaceAllString(strings.ToUpper(strings.TrimSpace(raw)), "")
	switch value {
	case "":
		return DrCrUnspecified, nil
	case "D", "DR", "DEBIT":
		return DrCrDebit, nil
	case "C", "CR", "CREDIT":
		return DrCrCredit, nil
	}
	return DrCrUnspecified, fmt.Errorf("unrecognized debit/credit indicator %q", raw)
}

// dateLayouts are tried in order. Layouts that carry a clock component
// report hasTime=true so callers can derive the transaction time when no
// separate time column exists.
var dateLayouts = []struct {
	layout  string
	hasTime bool
}{
	{time.RFC3339, true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02 15:04:05", true},
	{"02-01-2006 15:04:05", true},
	{"2006-01-02", false},
	{"02-01-2006", false},
	{"02/01/2006", false},
	{"2006/01/02", false},
}

// ParseFlexibleDate parses the date formats seen across CBS, Switch and
// NPCI files. The second return value reports whether the matched layout
// carried a time component.
func ParseFlexibleDate(raw string) (time.Time, bool, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false, fmt.Errorf("empty date")
	}

	for _, dl := range dateLayouts {
		if parsed, err := time.Parse(dl.layout, value); err == nil {
			return parsed, dl.hasTime, nil
		}
	}

	return time.Time{}, false, fmt.Errorf("unrecognized date format %q", raw)
}

// ParseClockTime parses a wall-clock time value: HH:MM:SS, HH:MM, or the
// compact HHMMSS form some switch exports use.
func ParseClockTime(raw string) (ClockTime, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ClockTime{}, nil
	}

	for _, layout := range []string{"15:04:05", "15:04", "150405"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return NewClockTime(parsed.Hour(), parsed.Minute(), parsed.Second()), nil
		}
	}

	return ClockTime{}, fmt.Errorf("unrecognized time format %q", raw)
}

// ClockTimeFrom extracts the wall-clock component of a timestamp.
func ClockTimeFrom(t time.Time) ClockTime {
	return NewClockTime(t.Hour(), t.Minute(), t.Second())
}

// DateOnly truncates a timestamp to its calendar date in its own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
