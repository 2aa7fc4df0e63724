package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GLEntry is one general-ledger leg of a voucher. Exactly one of Debit and
// Credit is non-zero on a well-formed leg.
type GLEntry struct {
	Account     string          `json:"account"`
	AccountName string          `json:"account_name"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// MarshalJSON pins GL amounts to two decimal places.
func (g GLEntry) MarshalJSON() ([]byte, error) {
	type Alias GLEntry
	return json.Marshal(&struct {
		Alias
		Debit  string `json:"debit"`
		Credit string `json:"credit"`
	}{
		Alias:  Alias(g),
		Debit:  g.Debit.StringFixed(2),
		Credit: g.Credit.StringFixed(2),
	})
}

// UnmarshalJSON parses the wire format written by MarshalJSON.
func (g *GLEntry) UnmarshalJSON(data []byte) error {
	type Alias GLEntry
	aux := &struct {
		*Alias
		Debit  string `json:"debit"`
		Credit string `json:"credit"`
	}{
		Alias: (*Alias)(g),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	var err error
	if aux.Debit != "" {
		if g.Debit, err = ParseAmount(aux.Debit); err != nil {
			return fmt.Errorf("failed to parse GL debit: %w", err)
		}
	}
	if aux.Credit != "" {
		if g.Credit, err = ParseAmount(aux.Credit); err != nil {
			return fmt.Errorf("failed to parse GL credit: %w", err)
		}
	}
	return nil
}

// Voucher is a double-entry settlement voucher generated from a
// reconciliation record.
type Voucher struct {
	VoucherID       string        `json:"voucher_id"`
	Type            VoucherType   `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate time.Time     `json:"transaction_date"`
	GLEntries       []GLEntry     `json:"gl_entries"`
	Status          VoucherStatus `json:"status"`
	RRN             string        `json:"rrn"`

	// PriorState holds snapshots captured by accounting rollbacks: the
	// status and GL entries the voucher had before each rollback touched it.
	PriorState []VoucherSnapshot `json:"rollback_metadata,omitempty"`
}

// VoucherSnapshot preserves a voucher's state ahead of a rollback mutation.
type VoucherSnapshot struct {
	Status      VoucherStatus `json:"status"`
	GLEntries   []GLEntry     `json:"gl_entries"`
	Timestamp   time.Time     `json:"timestamp"`
	OperationID string        `json:"operation_id"`
}

// Validate checks the voucher's double-entry invariant: total debits and
// total credits must agree within 0.01.
func (v *Voucher) Validate() error {
	if v.VoucherID == "" {
		return fmt.Errorf("voucher ID is required")
	}
	if len(v.GLEntries) == 0 {
		return fmt.Errorf("voucher %s has no GL entries", v.VoucherID)
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, entry := range v.GLEntries {
		totalDebit = totalDebit.Add(entry.Debit)
		totalCredit = totalCredit.Add(entry.Credit)
	}

	if !AmountsEqual(totalDebit, totalCredit, DefaultAmountEpsilon) {
		return fmt.Errorf("voucher %s does not balance: debits %s, credits %s",
			v.VoucherID, totalDebit.StringFixed(2), totalCredit.StringFixed(2))
	}
	return nil
}

// Snapshot records the voucher's current state under a rollback operation.
func (v *Voucher) Snapshot(operationID string, at time.Time) {
	entries := make([]GLEntry, len(v.GLEntries))
	copy(entries, v.GLEntries)
	v.PriorState = append(v.PriorState, VoucherSnapshot{
		Status:      v.Status,
		GLEntries:   entries,
		Timestamp:   at,
		OperationID: operationID,
	})
}

// String returns a compact representation for logs.
func (v *Voucher) String() string {
	return fmt.Sprintf("Voucher{ID: %s, Type: %s, Amount: %s, Status: %s, RRN: %s}",
		v.VoucherID, v.Type, v.Amount.StringFixed(2), v.Status, v.RRN)
}

// MarshalJSON pins the voucher amount and date wire formats.
func (v *Voucher) MarshalJSON() ([]byte, error) {
	type Alias Voucher
	return json.Marshal(&struct {
		*Alias
		Amount          string `json:"amount"`
		TransactionDate string `json:"transaction_date"`
	}{
		Alias:           (*Alias)(v),
		Amount:          v.Amount.StringFixed(2),
		TransactionDate: v.TransactionDate.Format("2006-01-02"),
	})
}

// UnmarshalJSON parses the wire format written by MarshalJSON.
func (v *Voucher) UnmarshalJSON(data []byte) error {
	type Alias Voucher
	aux := &struct {
		*Alias
		Amount          string `json:"amount"`
		TransactionDate string `json:"transaction_date"`
	}{
		Alias: (*Alias)(v),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if aux.Amount != "" {
		amount, err := ParseAmount(aux.Amount)
		if err != nil {
			return fmt.Errorf("failed to parse voucher amount: %w", err)
		}
		v.Amount = amount
	}
	if aux.TransactionDate != "" {
		date, _, err := ParseFlexibleDate(aux.TransactionDate)
		if err != nil {
			return fmt.Errorf("failed to parse voucher date: %w", err)
		}
		v.TransactionDate = date
	}
	return nil
}
