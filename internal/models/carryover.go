package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CarryOverEntry tracks a hanging transaction across settlement cycles.
// An entry is created when a cycle ends with the RRN in HANGING, dropped
// when NPCI finally reports the RRN, and escalated to an automatic TTUM
// once it has persisted for two cycles.
type CarryOverEntry struct {
	RRN             string          `json:"rrn"`
	Amount          decimal.Decimal `json:"amount"`
	DrCr            DrCr            `json:"dr_cr"`
	Reason          string          `json:"reason"`
	FirstSeenCycle  string          `json:"first_seen_cycle"`
	LastCycleID     string          `json:"last_cycle_id"`
	CyclesPersisted int             `json:"cycles_persisted"`
}

// AutoTTUMThreshold is the persistence age at which a carry-over entry
// triggers an automatic corrective TTUM.
const AutoTTUMThreshold = 2

// NeedsAutoTTUM reports whether the entry has aged past the threshold.
func (e *CarryOverEntry) NeedsAutoTTUM() bool {
	return e.CyclesPersisted >= AutoTTUMThreshold
}

// AutoTTUMType returns the corrective instruction for an escalated entry:
// debits are reversed back to the remitter, credits are recovered from the
// beneficiary side.
func (e *CarryOverEntry) AutoTTUMType() TTUMType {
	if e.DrCr == DrCrCredit {
		return TTUMBeneficiaryCredit
	}
	return TTUMReversal
}

// MarshalJSON pins the amount wire format to two decimal places.
func (e *CarryOverEntry) MarshalJSON() ([]byte, error) {
	type Alias CarryOverEntry
	return json.Marshal(&struct {
		*Alias
		Amount string `json:"amount"`
	}{
		Alias:  (*Alias)(e),
		Amount: e.Amount.StringFixed(2),
	})
}

// UnmarshalJSON parses the wire format written by MarshalJSON.
func (e *CarryOverEntry) UnmarshalJSON(data []byte) error {
	type Alias CarryOverEntry
	aux := &struct {
		*Alias
		Amount string `json:"amount"`
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if aux.Amount != "" {
		amount, err := ParseAmount(aux.Amount)
		if err != nil {
			return fmt.Errorf("failed to parse carry-over amount: %w", err)
		}
		e.Amount = amount
	}
	return nil
}

// CarryOverState is the persisted shape of the carry-over store.
type CarryOverState struct {
	Entries     []CarryOverEntry `json:"entries"`
	LastCycleID string           `json:"last_cycle_id"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
