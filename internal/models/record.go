package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReconRecord is the per-key reconciliation outcome: the source rows that
// were brought together under one RRN (or UPI transaction ID when the RRN
// is missing) plus the classification the matching engine assigned.
type ReconRecord struct {
	Key           string                  `json:"key"`
	RRN           string                  `json:"rrn,omitempty"`
	UPITranID     string                  `json:"upi_tran_id,omitempty"`
	Sources       map[Source]*Transaction `json:"sources"`
	Status        ReconStatus             `json:"status"`
	ExceptionType string                  `json:"exception_type,omitempty"`
	TTUMRequired  bool                    `json:"ttum_required"`
	TTUMType      TTUMType                `json:"ttum_type,omitempty"`
	TCCType       TCCType                 `json:"tcc_type,omitempty"`
	Direction     Direction               `json:"direction"`
	CycleID       string                  `json:"cycle_id"`
	Remarks       string                  `json:"remarks,omitempty"`

	// RollbackMetadata is the ordered trail of prior states captured each
	// time a rollback touches this record. Never truncated.
	RollbackMetadata []StatusSnapshot `json:"rollback_metadata,omitempty"`
}

// StatusSnapshot is one prior state of a record, captured before a rollback
// mutates it.
type StatusSnapshot struct {
	Status        ReconStatus `json:"status"`
	ExceptionType string      `json:"exception_type,omitempty"`
	TTUMType      TTUMType    `json:"ttum_type,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
	OperationID   string      `json:"operation_id"`
}

// NewReconRecord creates an empty record for the given key and cycle.
func NewReconRecord(key, cycleID string) *ReconRecord {
	return &ReconRecord{
		Key:     key,
		Sources: make(map[Source]*Transaction),
		Status:  StatusUnknown,
		CycleID: cycleID,
	}
}

// Attach adds a source's transaction to the record. Each source slot holds
// at most one transaction; a second attach for the same source is an error.
func (r *ReconRecord) Attach(txn *Transaction) error {
	if txn == nil {
		return fmt.Errorf("cannot attach nil transaction")
	}
	if _, exists := r.Sources[txn.Source]; exists {
		return fmt.Errorf("record %s already has a %s transaction", r.Key, txn.Source)
	}
	r.Sources[txn.Source] = txn

	if r.RRN == "" && txn.RRN != "" {
		r.RRN = txn.RRN
	}
	if r.UPITranID == "" && txn.UPITranID != "" {
		r.UPITranID = txn.UPITranID
	}
	return nil
}

// Has reports whether the record holds a transaction from the source.
func (r *ReconRecord) Has(source Source) bool {
	_, ok := r.Sources[source]
	return ok
}

// Get returns the source's transaction, or nil.
func (r *ReconRecord) Get(source Source) *Transaction {
	return r.Sources[source]
}

// PopulatedSources returns the populated recon sources in fixed order.
func (r *ReconRecord) PopulatedSources() []Source {
	var populated []Source
	for _, source := range ReconSources() {
		if r.Has(source) {
			populated = append(populated, source)
		}
	}
	return populated
}

// IsFullyPopulated reports whether CBS, Switch and NPCI slots are all set.
func (r *ReconRecord) IsFullyPopulated() bool {
	return r.Has(SourceCBS) && r.Has(SourceSwitch) && r.Has(SourceNPCI)
}

// Amount returns the record's representative amount: the CBS amount when
// present, else Switch, else NPCI, else zero.
func (r *ReconRecord) Amount() decimal.Decimal {
	for _, source := range ReconSources() {
		if txn := r.Sources[source]; txn != nil {
			return txn.Amount
		}
	}
	return decimal.Zero
}

// TranDate returns the record's representative date under the same source
// priority as Amount.
func (r *ReconRecord) TranDate() time.Time {
	for _, source := range ReconSources() {
		if txn := r.Sources[source]; txn != nil {
			return txn.TranDate
		}
	}
	return time.Time{}
}

// DrCr returns the record's representative debit/credit indicator, taken
// from the first populated source that specifies one.
func (r *ReconRecord) DrCr() DrCr {
	for _, source := range ReconSources() {
		if txn := r.Sources[source]; txn != nil && txn.DrCr != DrCrUnspecified {
			return txn.DrCr
		}
	}
	return DrCrUnspecified
}

// SnapshotFor records the current state into the rollback trail under the
// given rollback operation ID.
func (r *ReconRecord) SnapshotFor(operationID string, at time.Time) {
	r.RollbackMetadata = append(r.RollbackMetadata, StatusSnapshot{
		Status:        r.Status,
		ExceptionType: r.ExceptionType,
		TTUMType:      r.TTUMType,
		Timestamp:     at,
		OperationID:   operationID,
	})
}

// String returns a compact representation for logs.
func (r *ReconRecord) String() string {
	return fmt.Sprintf("ReconRecord{Key: %s, Status: %s, Sources: %d, Exception: %s, Cycle: %s}",
		r.Key, r.Status, len(r.Sources), r.ExceptionType, r.CycleID)
}
