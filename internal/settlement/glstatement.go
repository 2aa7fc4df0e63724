package settlement

import (
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"upi-reconciliation-service/internal/emit"
	"upi-reconciliation-service/internal/matcher"
	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/pkg/logger"
)

// GLStatementFile is the base name of the emitted GL statement.
const GLStatementFile = "GL_Statement.csv"

// glHeader is the column set of the GL statement.
var glHeader = []string{
	"Voucher_ID", "Voucher_Type", "Status", "RRN", "Tran_Date",
	"Account", "Account_Name", "Debit", "Credit",
}

// NTSLCheck is the outcome of comparing the NTSL net settlement amount
// against the matched total for the cycle.
type NTSLCheck struct {
	Net     decimal.Decimal
	Matched decimal.Decimal
	Date    time.Time
	epsilon decimal.Decimal
}

// Variance returns the absolute gap between the NTSL net and the
// matched total.
func (c *NTSLCheck) Variance() decimal.Decimal {
	return c.Net.Abs().Sub(c.Matched).Abs()
}

// WithinTolerance reports whether the gap stays under the epsilon.
func (c *NTSLCheck) WithinTolerance() bool {
	return c.Variance().LessThan(c.epsilon)
}

// VarianceNote renders the gap for the run summary, or "" when the
// amounts agree.
func (c *NTSLCheck) VarianceNote() string {
	if c.WithinTolerance() {
		return ""
	}
	return "NTSL net " + c.Net.Abs().StringFixed(2) +
		" vs matched total " + c.Matched.StringFixed(2) +
		": variance " + c.Variance().StringFixed(2)
}

// CrossCheckNTSL nets the NTSL rows (credits positive, debits negative)
// and compares the result against the cycle's matched total. Returns
// nil when no NTSL table was supplied. A variance beyond the epsilon is
// logged as a warning; fee rows are netted like any other.
func (g *Generator) CrossCheckNTSL(ntslRows []*models.Transaction, summary *matcher.Summary) *NTSLCheck {
	if len(ntslRows) == 0 || summary == nil {
		return nil
	}

	net := decimal.Zero
	var date time.Time
	for _, row := range ntslRows {
		if row == nil {
			continue
		}
		if row.DrCr == models.DrCrDebit {
			net = net.Sub(row.Amount)
		} else {
			net = net.Add(row.Amount)
		}
		if date.IsZero() && !row.TranDate.IsZero() {
			date = row.TranDate
		}
	}

	check := &NTSLCheck{
		Net:     net,
		Matched: summary.MatchedAmount,
		Date:    date,
		epsilon: g.epsilon,
	}
	if !check.WithinTolerance() {
		g.log.WithFields(logger.Fields{
			"cycle_id": summary.CycleID,
			"ntsl_net": check.Net.Abs().StringFixed(2),
			"matched":  check.Matched.StringFixed(2),
			"variance": check.Variance().StringFixed(2),
		}).Warn("NTSL net settlement disagrees with matched total")
	}
	return check
}

// WriteGLStatement emits the concatenated GL statement: one row per
// voucher leg in voucher order, plus the NTSL summary rows when a
// cross-check ran. Returns the written path.
func (g *Generator) WriteGLStatement(dir string, vouchers []*models.Voucher, check *NTSLCheck) (string, error) {
	table := &emit.Table{
		Name:   "GL_Statement",
		Header: glHeader,
	}

	for _, v := range vouchers {
		for _, entry := range v.GLEntries {
			table.AppendRow(
				v.VoucherID,
				string(v.Type),
				string(v.Status),
				v.RRN,
				formatDate(v.TransactionDate),
				entry.Account,
				entry.AccountName,
				entry.Debit.StringFixed(2),
				entry.Credit.StringFixed(2),
			)
		}
	}

	if check != nil {
		date := formatDate(check.Date)
		table.AppendRow("NTSL", "SUMMARY", "", "", date, "", "NTSL net settlement", "", check.Net.Abs().StringFixed(2))
		table.AppendRow("NTSL", "SUMMARY", "", "", date, "", "Matched total", "", check.Matched.StringFixed(2))
		table.AppendRow("NTSL", "SUMMARY", "", "", date, "", "Variance", "", check.Variance().StringFixed(2))
	}

	path := filepath.Join(dir, GLStatementFile)
	if err := emit.WriteCSV(path, table); err != nil {
		return "", err
	}

	g.log.WithFields(logger.Fields{
		"path": path,
		"rows": table.Len(),
	}).Info("GL statement written")
	return path, nil
}
