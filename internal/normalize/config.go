package normalize

import (
	"fmt"

	"upi-reconciliation-service/internal/models"
)

// Field names a canonical column. Only canonical names appear downstream
// of normalization; source files use whatever headers their exporters
// produce and the synonym tables below map them here.
type Field string

const (
	FieldRRN         Field = "RRN"
	FieldUPITranID   Field = "UPI_Tran_ID"
	FieldAmount      Field = "Amount"
	FieldDrCr        Field = "Dr_Cr"
	FieldRC          Field = "RC"
	FieldTranDate    Field = "Tran_Date"
	FieldTranTime    Field = "Tran_Time"
	FieldTranType    Field = "Tran_Type"
	FieldTranSubtype Field = "Tran_Subtype"
	FieldPayerPSP    Field = "Payer_PSP"
	FieldPayeePSP    Field = "Payee_PSP"
	FieldMCC         Field = "MCC"
	FieldChannel     Field = "Channel"

	// Adjustment-file fields.
	FieldAdjType   Field = "Adjtype"
	FieldAdjAmount Field = "Adjamount"
	FieldResponse  Field = "Response"
)

// CanonicalFields returns the transaction fields in discovery order. The
// order matters: when two fields could claim the same header, the earlier
// field wins, so identifiers resolve before free-text metadata.
func CanonicalFields() []Field {
	return []Field{
		FieldRRN,
		FieldUPITranID,
		FieldAmount,
		FieldDrCr,
		FieldRC,
		FieldTranDate,
		FieldTranTime,
		FieldTranType,
		FieldTranSubtype,
		FieldPayerPSP,
		FieldPayeePSP,
		FieldMCC,
		FieldChannel,
	}
}

// AdjustmentFields returns the adjustment-file fields in discovery order.
func AdjustmentFields() []Field {
	return []Field{
		FieldRRN,
		FieldAdjType,
		FieldAdjAmount,
		FieldResponse,
	}
}

// Config holds the synonym tables used for column discovery.
type Config struct {
	// Synonyms maps each canonical field to the header names that resolve
	// to it. Matching is case-insensitive; exact matches are tried for all
	// fields before substring matches for any.
	Synonyms map[Field][]string
}

// DefaultConfig returns the synonym tables covering the header variants
// seen across CBS extracts, switch logs, NPCI raw files and adjustment
// sheets.
func DefaultConfig() *Config {
	return &Config{
		Synonyms: map[Field][]string{
			FieldRRN: {
				"RRN", "Retrieval Reference Number", "Ret Ref No",
				"RRN No", "Customer Ref No", "Cust Ref No", "Reference Number",
			},
			FieldUPITranID: {
				"UPI Tran ID", "UPI_Tran_ID", "UPI Transaction ID",
				"Txn ID", "Transaction ID", "Tran ID", "Org Txn ID",
			},
			FieldAmount: {
				"Amount", "Transaction Amount", "Txn Amount", "Tran Amt",
				"Amount (Rs)", "Amt", "Settlement Amount",
			},
			FieldDrCr: {
				"Dr_Cr", "DR/CR", "DRCR", "Debit/Credit", "D/C",
				"DR CR Indicator", "Indicator",
			},
			FieldRC: {
				"RC", "Response Code", "Resp Code", "RespCode",
				"NPCI Response", "Result Code",
			},
			FieldTranDate: {
				"Tran_Date", "Tran Date", "Transaction Date", "Txn Date",
				"Date", "Value Date", "Settlement Date",
			},
			FieldTranTime: {
				"Tran_Time", "Tran Time", "Transaction Time", "Txn Time", "Time",
			},
			FieldTranType: {
				"Tran_Type", "Tran Type", "Transaction Type", "Txn Type", "Type",
			},
			FieldTranSubtype: {
				"Tran_Subtype", "Subtype", "Sub Type", "Pay Type",
			},
			FieldPayerPSP: {
				"Payer_PSP", "Payer PSP", "Remitter PSP", "Payer Handle",
			},
			FieldPayeePSP: {
				"Payee_PSP", "Payee PSP", "Beneficiary PSP", "Payee Handle",
			},
			FieldMCC: {
				"MCC", "Merchant Category Code",
			},
			FieldChannel: {
				"Channel", "Channel ID", "Origin Channel",
			},
			FieldAdjType: {
				"Adjtype", "Adj Type", "Adjustment Type",
			},
			FieldAdjAmount: {
				"Adjamount", "Adj Amount", "Adjustment Amount",
			},
			FieldResponse: {
				"Response", "Adj Response", "Override Value",
			},
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if len(c.Synonyms) == 0 {
		return fmt.Errorf("synonym table cannot be empty")
	}
	for _, field := range requiredDiscoveryFields() {
		if len(c.Synonyms[field]) == 0 {
			return fmt.Errorf("field %s has no synonyms", field)
		}
	}
	return nil
}

// requiredDiscoveryFields are the fields that must have at least one
// synonym for discovery to be able to find them.
func requiredDiscoveryFields() []Field {
	return []Field{FieldRRN, FieldUPITranID, FieldAmount, FieldTranDate}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := &Config{Synonyms: make(map[Field][]string, len(c.Synonyms))}
	for field, names := range c.Synonyms {
		copied := make([]string, len(names))
		copy(copied, names)
		clone.Synonyms[field] = copied
	}
	return clone
}

// AddSynonyms appends extra header names for a field, typically from site
// configuration, without disturbing the defaults.
func (c *Config) AddSynonyms(field Field, names ...string) {
	c.Synonyms[field] = append(c.Synonyms[field], names...)
}

// requiredColumns returns the canonical columns a source file must resolve
// for normalization to proceed. Every source needs an amount and a date;
// CBS rows additionally need the debit/credit indicator and NPCI rows the
// response code, because the matching steps that consume those sources are
// meaningless without them.
func requiredColumns(source models.Source) []Field {
	required := []Field{FieldAmount, FieldTranDate}
	switch source {
	case models.SourceCBS:
		required = append(required, FieldDrCr)
	case models.SourceNPCI:
		required = append(required, FieldRC)
	}
	return required
}
