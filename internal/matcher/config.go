// Package matcher implements the multi-source matching engine for UPI
// reconciliation.
//
// The engine consumes normalized CBS, Switch and NPCI tables and classifies
// every row through an ordered pipeline of matching steps:
//  0. Adjustment pre-pass (force-match, amount correction, status override)
//  1. Cut-off and Switch-only detection
//  2. Self-match elimination within a single source
//  3. Settlement lump pairing for keyless CBS entries
//  4. Double debit/credit detection
//  5. Three-way strict matching over configurable key-sets
//  6. Deemed-success (RB) handling with TCC classification
//  7. NPCI decline handling
//  8. Failed auto-reversal detection
//
// Rows left unclassified after the pipeline fall through to the exception
// matrix, which decides the corrective action from the per-source leg
// statuses and the transaction direction.
//
// Example usage:
//
//	cfg := matcher.DefaultConfig()
//	engine, err := matcher.NewEngine(cfg)
//	if err != nil {
//		return err
//	}
//	engine.LoadCBS(cbsTxns)
//	engine.LoadSwitch(switchTxns)
//	engine.LoadNPCI(npciTxns)
//	engine.LoadCarryOver(priorState)
//
//	result, err := engine.Run(ctx)
package matcher

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"upi-reconciliation-service/internal/models"
)

// MatchField identifies one field a key-set compares across sources.
type MatchField string

const (
	// MatchRRN compares the retrieval reference number (exact).
	MatchRRN MatchField = "RRN"

	// MatchUPITranID compares the UPI transaction ID (exact).
	MatchUPITranID MatchField = "UPI_TRAN_ID"

	// MatchAmount compares amounts within the configured epsilon.
	MatchAmount MatchField = "AMOUNT"

	// MatchDate compares transaction dates per the key-set's date mode.
	MatchDate MatchField = "DATE"
)

// IsValid reports whether the field is a recognised match field.
func (f MatchField) IsValid() bool {
	switch f {
	case MatchRRN, MatchUPITranID, MatchAmount, MatchDate:
		return true
	}
	return false
}

// DateMode defines how a key-set compares transaction dates.
type DateMode int

const (
	// DateStrict requires the identical calendar date.
	DateStrict DateMode = iota

	// DateRelaxed allows dates within the configured tolerance window.
	DateRelaxed
)

// String returns the string representation of DateMode.
func (dm DateMode) String() string {
	switch dm {
	case DateStrict:
		return "strict"
	case DateRelaxed:
		return "relaxed"
	default:
		return "unknown"
	}
}

// ParseDateMode converts a configuration string into a DateMode.
func ParseDateMode(s string) (DateMode, error) {
	switch s {
	case "strict", "":
		return DateStrict, nil
	case "relaxed":
		return DateRelaxed, nil
	default:
		return DateStrict, fmt.Errorf("unknown date mode %q", s)
	}
}

// KeySet is one three-way matching configuration: the fields that must agree
// across CBS, Switch and NPCI for a triple to match. Key-sets are tried in
// list order, tightest first, and the first one that produces a candidate in
// both counterpart sources wins.
type KeySet struct {
	// Name identifies the key-set in logs and step traces.
	Name string `json:"name"`

	// Fields are the fields compared across sources.
	Fields []MatchField `json:"fields"`

	// DateMode controls date comparison when Fields contains MatchDate.
	DateMode DateMode `json:"date_mode"`
}

// Validate checks that the key-set can actually identify a transaction.
func (ks *KeySet) Validate() error {
	if ks.Name == "" {
		return fmt.Errorf("key-set name is required")
	}
	if len(ks.Fields) == 0 {
		return fmt.Errorf("key-set %s has no fields", ks.Name)
	}

	hasIdentifier := false
	hasAmount := false
	seen := make(map[MatchField]bool)
	for _, f := range ks.Fields {
		if !f.IsValid() {
			return fmt.Errorf("key-set %s has unknown field %q", ks.Name, f)
		}
		if seen[f] {
			return fmt.Errorf("key-set %s repeats field %q", ks.Name, f)
		}
		seen[f] = true
		if f == MatchRRN || f == MatchUPITranID {
			hasIdentifier = true
		}
		if f == MatchAmount {
			hasAmount = true
		}
	}
	if !hasIdentifier {
		return fmt.Errorf("key-set %s needs RRN or UPI_TRAN_ID", ks.Name)
	}
	if !hasAmount {
		return fmt.Errorf("key-set %s must compare amounts", ks.Name)
	}
	return nil
}

// has reports whether the key-set compares the given field.
func (ks *KeySet) has(f MatchField) bool {
	for _, field := range ks.Fields {
		if field == f {
			return true
		}
	}
	return false
}

// Config holds the matching engine's tunable parameters. The zero value is
// not usable; start from DefaultConfig and override as needed.
type Config struct {
	// AmountEpsilon is the absolute tolerance for amount equality.
	// Two amounts agree when |a-b| < AmountEpsilon.
	AmountEpsilon decimal.Decimal `json:"amount_epsilon"`

	// DateToleranceDays is the window for relaxed date comparison and for
	// the cut-off step's partial-match probe.
	DateToleranceDays int `json:"date_tolerance_days"`

	// CutOffHour and CutOffMinute define the settlement cut-off. NPCI rows
	// timed at or after the cut-off hang until the next cycle.
	CutOffHour   int `json:"cut_off_hour"`
	CutOffMinute int `json:"cut_off_minute"`

	// SettlementLumpMin is the minimum amount for a keyless CBS row to be
	// treated as a settlement lump candidate.
	SettlementLumpMin decimal.Decimal `json:"settlement_lump_min"`

	// KeySets are the three-way matching configurations, tried in order.
	KeySets []KeySet `json:"key_sets"`

	// MatrixOverrides remaps exception matrix cells. Keys use the form
	// "DIRECTION:C,S,N" (leg letters S/F for CBS, Switch, NPCI), values
	// name a MatrixAction.
	MatrixOverrides map[string]string `json:"matrix_overrides,omitempty"`

	// CycleDate is the business date of the cycle under reconciliation.
	// It anchors rows synthesised from carry-over escalation. When zero,
	// the engine uses the current date.
	CycleDate time.Time `json:"cycle_date,omitempty"`
}

// DefaultConfig returns the standard configuration: three key-sets from
// tightest to loosest, paise-level amount tolerance and the 22:30 cut-off.
func DefaultConfig() *Config {
	return &Config{
		AmountEpsilon:     models.DefaultAmountEpsilon,
		DateToleranceDays: 1,
		CutOffHour:        22,
		CutOffMinute:      30,
		SettlementLumpMin: decimal.NewFromInt(1000),
		KeySets: []KeySet{
			{
				Name:     "full",
				Fields:   []MatchField{MatchRRN, MatchAmount, MatchDate, MatchUPITranID},
				DateMode: DateStrict,
			},
			{
				Name:     "rrn",
				Fields:   []MatchField{MatchRRN, MatchAmount, MatchDate},
				DateMode: DateRelaxed,
			},
			{
				Name:     "upi-tran-id",
				Fields:   []MatchField{MatchUPITranID, MatchAmount, MatchDate},
				DateMode: DateRelaxed,
			},
		},
	}
}

// StrictConfig returns a configuration that only accepts the full key-set
// with identical calendar dates. Useful for re-runs where the loose passes
// would hide data quality problems.
func StrictConfig() *Config {
	return &Config{
		AmountEpsilon:     models.DefaultAmountEpsilon,
		DateToleranceDays: 0,
		CutOffHour:        22,
		CutOffMinute:      30,
		SettlementLumpMin: decimal.NewFromInt(1000),
		KeySets: []KeySet{
			{
				Name:     "full",
				Fields:   []MatchField{MatchRRN, MatchAmount, MatchDate, MatchUPITranID},
				DateMode: DateStrict,
			},
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.AmountEpsilon.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount epsilon must be positive: %s", c.AmountEpsilon)
	}
	if c.DateToleranceDays < 0 {
		return fmt.Errorf("date tolerance days cannot be negative: %d", c.DateToleranceDays)
	}
	if c.CutOffHour < 0 || c.CutOffHour > 23 {
		return fmt.Errorf("cut-off hour must be between 0 and 23: %d", c.CutOffHour)
	}
	if c.CutOffMinute < 0 || c.CutOffMinute > 59 {
		return fmt.Errorf("cut-off minute must be between 0 and 59: %d", c.CutOffMinute)
	}
	if c.SettlementLumpMin.IsNegative() {
		return fmt.Errorf("settlement lump minimum cannot be negative: %s", c.SettlementLumpMin)
	}
	if len(c.KeySets) == 0 {
		return fmt.Errorf("at least one key-set is required")
	}

	names := make(map[string]bool)
	for i := range c.KeySets {
		if err := c.KeySets[i].Validate(); err != nil {
			return fmt.Errorf("key-set %d: %w", i, err)
		}
		if names[c.KeySets[i].Name] {
			return fmt.Errorf("duplicate key-set name %q", c.KeySets[i].Name)
		}
		names[c.KeySets[i].Name] = true
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	clone := &Config{
		AmountEpsilon:     c.AmountEpsilon,
		DateToleranceDays: c.DateToleranceDays,
		CutOffHour:        c.CutOffHour,
		CutOffMinute:      c.CutOffMinute,
		SettlementLumpMin: c.SettlementLumpMin,
		CycleDate:         c.CycleDate,
	}
	clone.KeySets = make([]KeySet, len(c.KeySets))
	for i, ks := range c.KeySets {
		clone.KeySets[i] = KeySet{
			Name:     ks.Name,
			Fields:   append([]MatchField(nil), ks.Fields...),
			DateMode: ks.DateMode,
		}
	}
	if c.MatrixOverrides != nil {
		clone.MatrixOverrides = make(map[string]string, len(c.MatrixOverrides))
		for k, v := range c.MatrixOverrides {
			clone.MatrixOverrides[k] = v
		}
	}
	return clone
}

// AmountsAgree reports whether two amounts are equal within the epsilon.
func (c *Config) AmountsAgree(a, b decimal.Decimal) bool {
	return models.AmountsEqual(a, b, c.AmountEpsilon)
}

// DatesAgree reports whether two dates agree under the given mode.
func (c *Config) DatesAgree(mode DateMode, a, b time.Time) bool {
	if mode == DateStrict {
		return models.SameDate(a, b)
	}
	return models.DatesWithinTolerance(a, b, c.DateToleranceDays)
}

// AfterCutOff reports whether a transaction time falls at or after the
// configured cut-off.
func (c *Config) AfterCutOff(ct models.ClockTime) bool {
	return ct.AtOrAfter(c.CutOffHour, c.CutOffMinute)
}

// cycleDate returns the configured business date, defaulting to today.
func (c *Config) cycleDate() time.Time {
	if !c.CycleDate.IsZero() {
		return models.DateOnly(c.CycleDate)
	}
	return models.DateOnly(time.Now())
}

// String returns a human-readable description of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Epsilon: %s, DateTolerance: %dd, CutOff: %02d:%02d, KeySets: %d}",
		c.AmountEpsilon, c.DateToleranceDays, c.CutOffHour, c.CutOffMinute, len(c.KeySets))
}
