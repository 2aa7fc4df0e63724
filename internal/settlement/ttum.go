package settlement

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"upi-reconciliation-service/internal/emit"
	"upi-reconciliation-service/internal/matcher"
	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/pkg/errors"
	"upi-reconciliation-service/pkg/logger"
)

// ttumHeader is the column set of every TTUM file.
var ttumHeader = []string{
	"Sl_No", "TTUM_Type", "RRN", "UPI_Tran_ID", "Tran_Date", "Cycle_ID",
	"Direction", "Debit_Account", "Debit_Account_Name",
	"Credit_Account", "Credit_Account_Name", "Amount", "Remarks",
}

// TTUMRow is one instruction line bound for a TTUM file.
type TTUMRow struct {
	Category    Category
	Instruction string
	RRN         string
	UPITranID   string
	TranDate    time.Time
	CycleID     string
	Direction   models.Direction
	Pair        AccountPair
	Amount      decimal.Decimal
	Remarks     string
}

// Categorize maps a record to the TTUM file it belongs in. A raised
// dispute dominates everything else; a technical credit confirmation
// dominates the corrective types. Records that carry a TTUM flag but no
// resolvable instruction (a double posting with mixed signs, say) stay
// out of the files and surface in the unmatched reports instead.
func Categorize(rec *models.ReconRecord) (Category, bool) {
	if !rec.TTUMRequired && rec.TCCType == models.TCCNone && rec.ExceptionType != models.ExcDRCRaised {
		return "", false
	}

	switch {
	case rec.ExceptionType == models.ExcDRCRaised:
		return CategoryDRC, true
	case rec.TCCType != models.TCCNone:
		return CategoryTCC, true
	case rec.ExceptionType == models.ExcRemitterRefund:
		return CategoryRefund, true
	case rec.ExceptionType == models.ExcBeneficiaryRecovery,
		rec.ExceptionType == models.ExcRemitterRecovery,
		rec.TTUMType == models.TTUMRecovery:
		return CategoryRecovery, true
	case rec.TTUMType == models.TTUMBeneficiaryCredit:
		return CategoryRRC, true
	case rec.TTUMType == models.TTUMReversal,
		rec.TTUMType == models.TTUMInvestigation:
		return CategoryRET, true
	}
	return "", false
}

// BuildTTUMRows selects and classifies the result's records into TTUM
// rows per category, applying issuer-action overrides by RRN.
func (g *Generator) BuildTTUMRows(result *matcher.Result) (map[Category][]TTUMRow, error) {
	if result == nil {
		return nil, errors.EngineError(errors.CodeDataInconsistent, "build ttum rows",
			fmt.Errorf("nil matching result"))
	}

	rows := make(map[Category][]TTUMRow)
	for _, rec := range result.OrderedRecords() {
		category, ok := Categorize(rec)
		if !ok {
			continue
		}

		remarks := rec.Remarks
		action, overridden := g.issuer[rec.RRN]
		if overridden && action.Category != "" {
			category = action.Category
		}

		pair, ok := g.accounts.PairFor(category, rec.Direction)
		if !ok {
			return nil, errors.ConfigurationError(errors.CodeMissingConfig, "gl_accounts",
				fmt.Sprintf("%s/%s", category, rec.Direction),
				fmt.Errorf("no posting pair for record %s", rec.Key))
		}
		if overridden {
			if action.Debit != nil {
				pair.Debit = *action.Debit
			}
			if action.Credit != nil {
				pair.Credit = *action.Credit
			}
			if action.Remarks != "" {
				if remarks != "" {
					remarks += "; "
				}
				remarks += action.Remarks
			}
		}

		rows[category] = append(rows[category], TTUMRow{
			Category:    category,
			Instruction: instructionFor(rec, category),
			RRN:         rec.RRN,
			UPITranID:   rec.UPITranID,
			TranDate:    rec.TranDate(),
			CycleID:     rec.CycleID,
			Direction:   rec.Direction,
			Pair:        pair,
			Amount:      rec.Amount(),
			Remarks:     remarks,
		})
	}
	return rows, nil
}

// instructionFor names the instruction carried in the TTUM_Type column:
// the TCC variant for confirmations, else the record's corrective type,
// else the category itself.
func instructionFor(rec *models.ReconRecord, category Category) string {
	if category == CategoryTCC && rec.TCCType != models.TCCNone {
		return string(rec.TCCType)
	}
	if rec.TTUMType != models.TTUMNone {
		return string(rec.TTUMType)
	}
	return string(category)
}

// WriteTTUMFiles emits one CSV+XLSX pair per non-empty category under
// dir and returns the per-category row counts. Categories with no rows,
// and categories outside the generator's WithCategories filter, produce
// no files.
func (g *Generator) WriteTTUMFiles(dir string, result *matcher.Result, stamp time.Time) (map[Category]int, error) {
	rows, err := g.BuildTTUMRows(result)
	if err != nil {
		return nil, err
	}

	counts := make(map[Category]int)
	total := 0
	for _, category := range Categories() {
		if g.categories != nil && !g.categories[category] {
			continue
		}
		categoryRows := rows[category]
		if len(categoryRows) == 0 {
			continue
		}

		table := &emit.Table{
			Name:   "TTUM_" + string(category),
			Header: ttumHeader,
			Stamp:  stamp,
		}
		for i, row := range categoryRows {
			table.AppendRow(
				strconv.Itoa(i+1),
				row.Instruction,
				row.RRN,
				row.UPITranID,
				formatDate(row.TranDate),
				row.CycleID,
				string(row.Direction),
				row.Pair.Debit.Code,
				row.Pair.Debit.Name,
				row.Pair.Credit.Code,
				row.Pair.Credit.Name,
				row.Amount.StringFixed(2),
				row.Remarks,
			)
		}

		if _, _, err := emit.WriteTwins(dir, "TTUM_"+string(category), table); err != nil {
			return nil, err
		}
		counts[category] = len(categoryRows)
		total += len(categoryRows)
	}

	g.log.WithFields(logger.Fields{
		"cycle_id": result.CycleID,
		"files":    len(counts),
		"rows":     total,
	}).Info("TTUM files written")
	return counts, nil
}

// formatDate renders a date cell, leaving unset dates empty.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
