// Package models defines the canonical data structures shared across the
// reconciliation service: transactions as seen by each source system,
// per-RRN reconciliation records, carry-over entries, and settlement
// vouchers.
//
// Source files arrive with wildly different column names and value formats;
// everything downstream of the normalizer speaks only these types.
package models

// Source identifies the system a transaction record came from.
type Source string

const (
	SourceCBS        Source = "CBS"
	SourceSwitch     Source = "SWITCH"
	SourceNPCI       Source = "NPCI"
	SourceNTSL       Source = "NTSL"
	SourceAdjustment Source = "ADJUSTMENT"
)

// IsValid checks whether the source is one of the known systems.
func (s Source) IsValid() bool {
	switch s {
	case SourceCBS, SourceSwitch, SourceNPCI, SourceNTSL, SourceAdjustment:
		return true
	}
	return false
}

// ReconSources returns the three sources that participate in matching,
// in the fixed order used for deterministic iteration.
func ReconSources() []Source {
	return []Source{SourceCBS, SourceSwitch, SourceNPCI}
}

// DrCr is the debit/credit indicator on a transaction leg.
type DrCr string

const (
	DrCrDebit       DrCr = "DEBIT"
	DrCrCredit      DrCr = "CREDIT"
	DrCrUnspecified DrCr = "UNSPECIFIED"
)

// Opposite returns the opposing indicator; UNSPECIFIED has no opposite.
func (d DrCr) Opposite() DrCr {
	switch d {
	case DrCrDebit:
		return DrCrCredit
	case DrCrCredit:
		return DrCrDebit
	}
	return DrCrUnspecified
}

// ReconStatus is the classification assigned to a reconciliation record.
type ReconStatus string

const (
	StatusMatched         ReconStatus = "MATCHED"
	StatusPartialMatch    ReconStatus = "PARTIAL_MATCH"
	StatusMismatch        ReconStatus = "MISMATCH"
	StatusPartialMismatch ReconStatus = "PARTIAL_MISMATCH"
	StatusHanging         ReconStatus = "HANGING"
	StatusOrphan          ReconStatus = "ORPHAN"
	StatusDuplicate       ReconStatus = "DUPLICATE"
	StatusException       ReconStatus = "EXCEPTION"
	StatusForceMatched    ReconStatus = "FORCE_MATCHED"
	StatusUnmatched       ReconStatus = "UNMATCHED"
	StatusUnknown         ReconStatus = "UNKNOWN"
)

// IsValid checks whether the status is a known classification.
func (s ReconStatus) IsValid() bool {
	switch s {
	case StatusMatched, StatusPartialMatch, StatusMismatch, StatusPartialMismatch,
		StatusHanging, StatusOrphan, StatusDuplicate, StatusException,
		StatusForceMatched, StatusUnmatched, StatusUnknown:
		return true
	}
	return false
}

// IsMatched reports whether the status represents a settled, agreeing state.
func (s ReconStatus) IsMatched() bool {
	return s == StatusMatched || s == StatusForceMatched
}

// Exception type tags. The exception type on a record is a free-form string;
// these constants cover every tag the engine itself assigns.
const (
	ExcSelfMatched         = "SELF_MATCHED"
	ExcCutOff              = "CUT_OFF"
	ExcSwitchOnly          = "SWITCH_ONLY"
	ExcDoubleDebitCredit   = "DOUBLE_DEBIT_CREDIT"
	ExcSettlementEntry     = "SETTLEMENT_ENTRY"
	ExcTCC102              = "TCC_102"
	ExcTCC103              = "TCC_103"
	ExcNPCIDeclined        = "NPCI_DECLINED"
	ExcNPCIFailed          = "NPCI_FAILED"
	ExcFailedAutoReversal  = "FAILED_AUTO_REVERSAL"
	ExcCarryOverTTUM       = "CARRY_OVER_TTUM"
	ExcAdjustForceMatch    = "ADJUSTMENT_FORCE_MATCH"
	ExcStatusOverride      = "STATUS_OVERRIDE"
	ExcBeneficiaryRecovery = "BENEFICIARY_RECOVERY"
	ExcRemitterRefund      = "REMITTER_REFUND"
	ExcRemitterRecovery    = "REMITTER_RECOVERY"
	ExcSwitchUpdate        = "SWITCH_UPDATE"
	ExcSwitchUpdateTCC     = "SWITCH_UPDATE_TCC"
	ExcDRCRaised           = "DRC_RAISED"
	ExcNPCIMissing         = "NPCI_MISSING"
	ExcAmountMismatch      = "AMOUNT_MISMATCH"
	ExcDateMismatch        = "DATE_MISMATCH"
)

// TTUMType identifies the corrective instruction a record requires.
type TTUMType string

const (
	TTUMNone              TTUMType = ""
	TTUMReversal          TTUMType = "REVERSAL"
	TTUMRecovery          TTUMType = "RECOVERY"
	TTUMBeneficiaryCredit TTUMType = "BENEFICIARY_CREDIT"
	TTUMInvestigation     TTUMType = "INVESTIGATION"
)

// TCCType identifies the technical credit confirmation variant.
type TCCType string

const (
	TCCNone TCCType = ""
	TCC102  TCCType = "TCC_102"
	TCC103  TCCType = "TCC_103"
)

// Direction is the money-movement orientation of a transaction for this
// bank: INWARD for credit-dominant flows, OUTWARD for debit-dominant.
type Direction string

const (
	DirectionInward  Direction = "INWARD"
	DirectionOutward Direction = "OUTWARD"
)

// LegStatus is a source leg's standing as seen by the exception matrix.
// A leg is SUCCESS only when its row is present with a success (or
// unspecified) response code; missing legs, declines and deemed responses
// all count as FAILED.
type LegStatus string

const (
	LegSuccess LegStatus = "SUCCESS"
	LegFailed  LegStatus = "FAILED"
)

// AdjustmentType is the operation an adjustment-file row applies.
type AdjustmentType string

const (
	AdjForceMatch       AdjustmentType = "FORCE_MATCH"
	AdjAmountCorrection AdjustmentType = "AMOUNT_CORRECTION"
	AdjStatusOverride   AdjustmentType = "STATUS_OVERRIDE"
)

// IsValid checks whether the adjustment type is recognized.
func (a AdjustmentType) IsValid() bool {
	switch a {
	case AdjForceMatch, AdjAmountCorrection, AdjStatusOverride:
		return true
	}
	return false
}

// VoucherType classifies a settlement voucher.
type VoucherType string

const (
	VoucherPayment    VoucherType = "PAYMENT"
	VoucherReversal   VoucherType = "REVERSAL"
	VoucherAdjustment VoucherType = "ADJUSTMENT"
	VoucherSettlement VoucherType = "SETTLEMENT"
)

// VoucherStatus is the posting state of a voucher.
type VoucherStatus string

const (
	VoucherGenerated VoucherStatus = "GENERATED"
	VoucherPosted    VoucherStatus = "POSTED"
	VoucherFailed    VoucherStatus = "FAILED"
	VoucherReversed  VoucherStatus = "REVERSED"
	// VoucherMatchedPending is the state an accounting rollback returns a
	// voucher to: the underlying record is still matched, posting is undone.
	VoucherMatchedPending VoucherStatus = "matched/pending"
)
