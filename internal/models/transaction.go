package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one transaction as recorded by a single source system,
// after normalization. Amounts are non-negative; the Dr/Cr indicator
// carries the sign of the movement.
type Transaction struct {
	UPITranID   string          `json:"upi_tran_id,omitempty"`
	RRN         string          `json:"rrn,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	TranDate    time.Time       `json:"tran_date"`
	TranTime    ClockTime       `json:"tran_time,omitempty"`
	DrCr        DrCr            `json:"dr_cr"`
	RC          ResponseCode    `json:"rc"`
	TranType    string          `json:"tran_type,omitempty"`
	TranSubtype string          `json:"tran_subtype,omitempty"`
	PayerPSP    string          `json:"payer_psp,omitempty"`
	PayeePSP    string          `json:"payee_psp,omitempty"`
	MCC         string          `json:"mcc,omitempty"`
	Channel     string          `json:"channel,omitempty"`
	Source      Source          `json:"source"`
}

// NewTransaction creates a transaction with the fields every source must
// provide. Optional metadata is set directly on the returned value.
func NewTransaction(source Source, rrn, upiTranID string, amount decimal.Decimal, tranDate time.Time) *Transaction {
	return &Transaction{
		Source:    source,
		RRN:       rrn,
		UPITranID: upiTranID,
		Amount:    amount,
		TranDate:  tranDate,
		DrCr:      DrCrUnspecified,
		RC:        RCUnspecifiedCode,
	}
}

// Key returns the reconciliation key for the transaction: the RRN when
// present, otherwise the UPI transaction ID.
func (t *Transaction) Key() string {
	if t.RRN != "" {
		return t.RRN
	}
	return t.UPITranID
}

// Validate checks the transaction for internal consistency.
func (t *Transaction) Validate() error {
	if !t.Source.IsValid() {
		return fmt.Errorf("invalid source: %q", t.Source)
	}
	if t.RRN == "" && t.UPITranID == "" {
		return fmt.Errorf("transaction needs an RRN or a UPI transaction ID")
	}
	if t.RRN != "" && !ValidRRN(t.RRN) {
		return fmt.Errorf("RRN must be exactly 12 digits, got %q", t.RRN)
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("amount cannot be negative: %s", t.Amount.String())
	}
	if t.TranDate.IsZero() {
		return fmt.Errorf("transaction date is required")
	}
	return nil
}

// String returns a compact representation for logs.
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{Source: %s, RRN: %s, Amount: %s, Date: %s, DrCr: %s, RC: %s}",
		t.Source, t.RRN, t.Amount.StringFixed(2), t.TranDate.Format("2006-01-02"), t.DrCr, t.RC)
}

// Clone returns a deep copy of the transaction.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}

// MarshalJSON customizes JSON output so amounts and dates have stable,
// human-auditable wire formats.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	type Alias Transaction
	return json.Marshal(&struct {
		*Alias
		Amount   string `json:"amount"`
		TranDate string `json:"tran_date"`
	}{
		Alias:    (*Alias)(t),
		Amount:   t.Amount.StringFixed(2),
		TranDate: t.TranDate.Format("2006-01-02"),
	})
}

// UnmarshalJSON parses the custom wire formats emitted by MarshalJSON.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type Alias Transaction
	aux := &struct {
		*Alias
		Amount   string `json:"amount"`
		TranDate string `json:"tran_date"`
	}{
		Alias: (*Alias)(t),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if aux.Amount != "" {
		amount, err := ParseAmount(aux.Amount)
		if err != nil {
			return fmt.Errorf("failed to parse amount: %w", err)
		}
		t.Amount = amount
	}

	if aux.TranDate != "" {
		date, _, err := ParseFlexibleDate(aux.TranDate)
		if err != nil {
			return fmt.Errorf("failed to parse tran_date: %w", err)
		}
		t.TranDate = date
	}

	return nil
}
