// Package reporter emits the per-cycle report set from a finalised
// matching result: pairwise source agreement reports, unmatched ageing,
// hanging transactions, and the Annexure IV adjustment sheets uploaded
// to the clearing network.
//
// Every report is written as a CSV+XLSX twin. The full set is emitted
// on every run, header-only when a bucket is empty, so downstream
// consumers always find the same twelve files. Row order follows the
// result's record order and CSV output is byte-identical for identical
// inputs.
package reporter

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"upi-reconciliation-service/internal/emit"
	"upi-reconciliation-service/internal/matcher"
	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/pkg/errors"
	"upi-reconciliation-service/pkg/logger"
)

// Config holds the report emitter's tunable parameters.
type Config struct {
	// AmountEpsilon is the tolerance for pairwise amount agreement.
	AmountEpsilon decimal.Decimal `json:"amount_epsilon"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() *Config {
	return &Config{
		AmountEpsilon: models.DefaultAmountEpsilon,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.AmountEpsilon.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount epsilon must be positive: %s", c.AmountEpsilon)
	}
	return nil
}

// Emitter writes the report set for one cycle.
type Emitter struct {
	config *Config
	log    logger.Logger
}

// NewEmitter creates an Emitter. A nil config uses the defaults.
func NewEmitter(config *Config) (*Emitter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report_config", nil, err)
	}
	return &Emitter{
		config: config,
		log:    logger.GetGlobalLogger().WithComponent("reporter"),
	}, nil
}

// Request names everything one emission needs: the result, the target
// directories, the ageing reference date, and the NPCI file name echoed
// into Annexure IV rows.
type Request struct {
	Result      *matcher.Result
	ReportsDir  string
	AnnexureDir string

	// Today anchors the unmatched ageing buckets and the annexure
	// fallback date. Zero means the current date.
	Today time.Time

	// NPCIFileName is the raw NPCI file the cycle reconciled, carried
	// into the annexure FileName column.
	NPCIFileName string
}

func (r *Request) reference() time.Time {
	if r.Today.IsZero() {
		return models.DateOnly(time.Now())
	}
	return models.DateOnly(r.Today)
}

// Manifest records what an emission produced.
type Manifest struct {
	Files []string
	Rows  map[string]int
}

// pairSpec names one pairwise report family.
type pairSpec struct {
	name       string
	left       models.Source
	right      models.Source
	leftLabel  string
	rightLabel string
}

var pairSpecs = []pairSpec{
	{"GL_vs_Switch", models.SourceCBS, models.SourceSwitch, "GL", "Switch"},
	{"Switch_vs_NPCI", models.SourceSwitch, models.SourceNPCI, "Switch", "NPCI"},
	{"GL_vs_NPCI", models.SourceCBS, models.SourceNPCI, "GL", "NPCI"},
}

// Write emits the full report set and returns the manifest.
func (e *Emitter) Write(req *Request) (*Manifest, error) {
	if req == nil || req.Result == nil {
		return nil, errors.EngineError(errors.CodeDataInconsistent, "emit reports",
			fmt.Errorf("nil emission request"))
	}
	if req.ReportsDir == "" || req.AnnexureDir == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "reports_dir", nil,
			fmt.Errorf("emission needs the reports and annexure directories"))
	}

	today := req.reference()

	var tables []*emit.Table
	tables = append(tables, e.pairwiseTables(req.Result, today)...)
	tables = append(tables, e.ageingTables(req.Result, today)...)
	tables = append(tables, e.hangingTables(req.Result, today)...)

	manifest := &Manifest{Rows: make(map[string]int)}
	for _, table := range tables {
		csvPath, xlsxPath, err := emit.WriteTwins(req.ReportsDir, table.Name, table)
		if err != nil {
			return nil, err
		}
		manifest.Files = append(manifest.Files, csvPath, xlsxPath)
		manifest.Rows[table.Name] = table.Len()
	}

	for _, table := range e.annexureTables(req, today) {
		csvPath, xlsxPath, err := emit.WriteTwins(req.AnnexureDir, table.Name, table)
		if err != nil {
			return nil, err
		}
		manifest.Files = append(manifest.Files, csvPath, xlsxPath)
		manifest.Rows[table.Name] = table.Len()
	}

	total := 0
	for _, n := range manifest.Rows {
		total += n
	}
	e.log.WithFields(logger.Fields{
		"cycle_id": req.Result.CycleID,
		"files":    len(manifest.Files),
		"rows":     total,
	}).Info("Reports emitted")
	return manifest, nil
}

// pairwiseTables builds the six source-agreement reports: one row per
// matched record where both named sources carry the transaction with
// an agreeing amount on the same calendar date.
func (e *Emitter) pairwiseTables(result *matcher.Result, stamp time.Time) []*emit.Table {
	tables := make([]*emit.Table, 0, len(pairSpecs)*2)
	byName := make(map[string]*emit.Table)
	for _, spec := range pairSpecs {
		for _, direction := range []models.Direction{models.DirectionInward, models.DirectionOutward} {
			t := &emit.Table{
				Name: spec.name + "_" + directionTitle(direction),
				Header: []string{
					"RRN", "UPI_Tran_ID", "Tran_Date",
					spec.leftLabel + "_Amount", spec.rightLabel + "_Amount",
					"Dr_Cr", "Cycle_ID",
				},
				Stamp: stamp,
			}
			tables = append(tables, t)
			byName[t.Name] = t
		}
	}

	for _, rec := range result.OrderedRecords() {
		if !rec.Status.IsMatched() {
			continue
		}
		suffix := directionTitle(rec.Direction)
		for _, spec := range pairSpecs {
			left := rec.Get(spec.left)
			right := rec.Get(spec.right)
			if left == nil || right == nil {
				continue
			}
			if !models.AmountsEqual(left.Amount, right.Amount, e.config.AmountEpsilon) {
				continue
			}
			if !models.SameDate(left.TranDate, right.TranDate) {
				continue
			}
			byName[spec.name+"_"+suffix].AppendRow(
				rec.RRN,
				rec.UPITranID,
				formatDate(left.TranDate),
				left.Amount.StringFixed(2),
				right.Amount.StringFixed(2),
				string(rec.DrCr()),
				rec.CycleID,
			)
		}
	}
	return tables
}

// ageingTables builds the unmatched ageing reports: every UNMATCHED
// record with its age against the reference date.
func (e *Emitter) ageingTables(result *matcher.Result, today time.Time) []*emit.Table {
	header := []string{
		"RRN", "UPI_Tran_ID", "Tran_Date", "Amount", "Dr_Cr",
		"Exception_Type", "TTUM_Type", "Age_Days", "Age_Bucket", "Cycle_ID",
	}
	inward := &emit.Table{Name: "Unmatched_Inward_Ageing", Header: header, Stamp: today}
	outward := &emit.Table{Name: "Unmatched_Outward_Ageing", Header: header, Stamp: today}

	for _, rec := range result.OrderedRecords() {
		if rec.Status != models.StatusUnmatched {
			continue
		}
		age := models.AgeInDays(rec.TranDate(), today)
		table := outward
		if rec.Direction == models.DirectionInward {
			table = inward
		}
		table.AppendRow(
			rec.RRN,
			rec.UPITranID,
			formatDate(rec.TranDate()),
			rec.Amount().StringFixed(2),
			string(rec.DrCr()),
			rec.ExceptionType,
			string(rec.TTUMType),
			fmt.Sprintf("%d", age),
			ageBucket(age),
			rec.CycleID,
		)
	}
	return []*emit.Table{inward, outward}
}

// hangingTables builds the hanging-transaction reports.
func (e *Emitter) hangingTables(result *matcher.Result, stamp time.Time) []*emit.Table {
	header := []string{
		"RRN", "UPI_Tran_ID", "Tran_Date", "Amount", "Dr_Cr",
		"Exception_Type", "Cycle_ID", "Remarks",
	}
	inward := &emit.Table{Name: "Hanging_Inward", Header: header, Stamp: stamp}
	outward := &emit.Table{Name: "Hanging_Outward", Header: header, Stamp: stamp}

	for _, rec := range result.OrderedRecords() {
		if rec.Status != models.StatusHanging {
			continue
		}
		table := outward
		if rec.Direction == models.DirectionInward {
			table = inward
		}
		table.AppendRow(
			rec.RRN,
			rec.UPITranID,
			formatDate(rec.TranDate()),
			rec.Amount().StringFixed(2),
			string(rec.DrCr()),
			rec.ExceptionType,
			rec.CycleID,
			rec.Remarks,
		)
	}
	return []*emit.Table{inward, outward}
}

// ageBucket names the ageing bucket for an age in whole days.
func ageBucket(days int) string {
	switch {
	case days <= 1:
		return "0-1 days"
	case days <= 3:
		return "2-3 days"
	default:
		return ">3 days"
	}
}

func directionTitle(d models.Direction) string {
	if d == models.DirectionInward {
		return "Inward"
	}
	return "Outward"
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
