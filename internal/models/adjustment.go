package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Adjustment is one row of an operator-supplied adjustment file, applied by
// the matching engine before any classification step runs.
type Adjustment struct {
	RRN    string          `json:"rrn"`
	Type   AdjustmentType  `json:"adjtype"`
	Amount decimal.Decimal `json:"adjamount"`
	// Response carries the target status for STATUS_OVERRIDE adjustments.
	Response string `json:"response,omitempty"`
}

// Validate checks the adjustment row.
func (a *Adjustment) Validate() error {
	if a.RRN == "" {
		return fmt.Errorf("adjustment requires an RRN")
	}
	if !a.Type.IsValid() {
		return fmt.Errorf("unknown adjustment type %q", a.Type)
	}
	if a.Type == AdjAmountCorrection && a.Amount.IsNegative() {
		return fmt.Errorf("adjustment amount cannot be negative: %s", a.Amount.String())
	}
	if a.Type == AdjStatusOverride {
		if !ReconStatus(a.Response).IsValid() {
			return fmt.Errorf("status override requires a valid status, got %q", a.Response)
		}
	}
	return nil
}
