// Package normalize maps raw source tables onto canonical transactions.
//
// Source systems disagree on everything: header names, amount formatting,
// date layouts, debit/credit vocabulary. Normalization resolves headers to
// canonical fields through layered column discovery, then coerces each row
// into a models.Transaction. Validation fails closed: rows that cannot key
// into reconciliation are dropped with a warning, and a single unparseable
// amount rejects the whole file.
package normalize

import (
	"context"
	"fmt"
	"strings"

	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/internal/parsers"
	"upi-reconciliation-service/pkg/errors"
	"upi-reconciliation-service/pkg/logger"
)

// ColumnUnspecified marks a canonical field with no discovered column.
const ColumnUnspecified = -1

// ColumnMap records which header index each canonical field resolved to.
type ColumnMap map[Field]int

// Has reports whether the field resolved to a column.
func (m ColumnMap) Has(field Field) bool {
	idx, ok := m[field]
	return ok && idx != ColumnUnspecified
}

// Resolved returns the fields that resolved to a column, in canonical order.
func (m ColumnMap) Resolved() []Field {
	var resolved []Field
	for _, field := range CanonicalFields() {
		if m.Has(field) {
			resolved = append(resolved, field)
		}
	}
	return resolved
}

// DiscoverColumns resolves headers to canonical fields in three layers:
// exact case-insensitive match against the synonym table, then substring
// match in either direction, then unresolved. Exact matches for every
// field are settled before any substring match so a loose synonym cannot
// steal a column another field names exactly. Each column is claimed by at
// most one field.
func DiscoverColumns(headers []string, fields []Field, cfg *Config) ColumnMap {
	lower := make([]string, len(headers))
	for i, h := range headers {
		lower[i] = strings.ToLower(strings.TrimSpace(h))
	}
	used := make([]bool, len(headers))

	m := make(ColumnMap, len(fields))
	for _, field := range fields {
		m[field] = ColumnUnspecified
	}

	// Layer 1: exact match.
	for _, field := range fields {
		for _, syn := range cfg.Synonyms[field] {
			ls := strings.ToLower(syn)
			if idx := claimExact(lower, used, ls); idx != ColumnUnspecified {
				m[field] = idx
				break
			}
		}
	}

	// Layer 2: substring match, either direction.
	for _, field := range fields {
		if m[field] != ColumnUnspecified {
			continue
		}
		for _, syn := range cfg.Synonyms[field] {
			ls := strings.ToLower(syn)
			if idx := claimSubstring(lower, used, ls); idx != ColumnUnspecified {
				m[field] = idx
				break
			}
		}
	}

	return m
}

func claimExact(lower []string, used []bool, syn string) int {
	for i, h := range lower {
		if used[i] || h == "" {
			continue
		}
		if h == syn {
			used[i] = true
			return i
		}
	}
	return ColumnUnspecified
}

func claimSubstring(lower []string, used []bool, syn string) int {
	for i, h := range lower {
		if used[i] || h == "" {
			continue
		}
		if strings.Contains(h, syn) || strings.Contains(syn, h) {
			used[i] = true
			return i
		}
	}
	return ColumnUnspecified
}

// Stats summarizes one table's normalization.
type Stats struct {
	Source      models.Source
	File        string
	RowsIn      int
	RowsOut     int
	RowsDropped int
	KeylessKept int
	Columns     ColumnMap
	Warnings    []string
}

// AddWarning records a row-level problem. Warnings are capped so a
// pathological file cannot balloon memory; the drop counters stay exact.
func (s *Stats) AddWarning(format string, args ...interface{}) {
	if len(s.Warnings) < maxWarnings {
		s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
	}
}

const maxWarnings = 200

// String returns a one-line summary for logs.
func (s *Stats) String() string {
	return fmt.Sprintf("%s: %d rows in, %d out, %d dropped, %d keyless kept, %d warnings",
		s.Source, s.RowsIn, s.RowsOut, s.RowsDropped, s.KeylessKept, len(s.Warnings))
}

// Normalizer converts raw tables into canonical transactions.
type Normalizer struct {
	config *Config
	logger logger.Logger
}

// NewNormalizer creates a Normalizer. A nil config uses the defaults.
func NewNormalizer(config *Config) (*Normalizer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "normalize.synonyms", "", err)
	}
	return &Normalizer{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("normalizer"),
	}, nil
}

// NormalizeTable converts a raw source table into canonical transactions.
//
// Keyless rows (no RRN and no UPI transaction ID) are dropped with a
// warning, except in CBS where they are kept: settlement lump entries
// legitimately carry no reference and the matching engine consumes them.
// A row whose amount cannot be parsed rejects the whole file.
func (n *Normalizer) NormalizeTable(ctx context.Context, table *parsers.RawTable, source models.Source) ([]*models.Transaction, *Stats, error) {
	if table == nil {
		return nil, nil, errors.ValidationError(errors.CodeMissingField, "table", "nil", nil)
	}
	if !source.IsValid() {
		return nil, nil, errors.ValidationError(errors.CodeInvalidData, "source", string(source), nil)
	}

	columns := DiscoverColumns(table.Headers, CanonicalFields(), n.config)
	stats := &Stats{
		Source:  source,
		File:    table.File,
		RowsIn:  len(table.Rows),
		Columns: columns,
	}

	if err := n.checkRequiredColumns(table, source, columns); err != nil {
		return nil, stats, err
	}

	n.logger.WithFields(logger.Fields{
		"source":           string(source),
		"file":             table.File,
		"rows":             len(table.Rows),
		"resolved_columns": fieldNames(columns.Resolved()),
	}).Info("Normalizing source table")

	tracker := logger.NewRowTracker(logger.RowTrackerConfig{
		File:   table.File,
		Source: string(source),
		Total:  int64(len(table.Rows)),
		Logger: n.logger,
	})

	transactions := make([]*models.Transaction, 0, len(table.Rows))

	for i, row := range table.Rows {
		if i%1024 == 0 {
			select {
			case <-ctx.Done():
				return nil, stats, errors.InternalError(errors.CodeUnexpectedError, "normalization", ctx.Err())
			default:
			}
			tracker.Update(int64(i))
		}

		txn, keep, err := n.normalizeRow(row, i, source, columns, stats)
		if err != nil {
			return nil, stats, err
		}
		if !keep {
			continue
		}
		transactions = append(transactions, txn)
	}

	stats.RowsOut = len(transactions)
	elapsed, rate := tracker.Done(int64(stats.RowsIn))

	logFields := logger.Fields{
		"source":       string(source),
		"rows_in":      stats.RowsIn,
		"rows_out":     stats.RowsOut,
		"rows_dropped": stats.RowsDropped,
		"elapsed":      elapsed.String(),
		"rows_per_sec": fmt.Sprintf("%.0f", rate),
	}
	if stats.KeylessKept > 0 {
		logFields["keyless_kept"] = stats.KeylessKept
	}
	if stats.RowsDropped > 0 {
		n.logger.WithFields(logFields).Warn("Normalization dropped rows")
	} else {
		n.logger.WithFields(logFields).Info("Normalization completed")
	}

	return transactions, stats, nil
}

// checkRequiredColumns enforces the column-mapping contract: every source
// must resolve an amount and a date plus at least one of RRN and UPI
// transaction ID; CBS must resolve Dr_Cr and NPCI the response code.
func (n *Normalizer) checkRequiredColumns(table *parsers.RawTable, source models.Source, columns ColumnMap) error {
	var missing []string
	for _, field := range requiredColumns(source) {
		if !columns.Has(field) {
			missing = append(missing, string(field))
		}
	}
	if !columns.Has(FieldRRN) && !columns.Has(FieldUPITranID) {
		missing = append(missing, fmt.Sprintf("%s or %s", FieldRRN, FieldUPITranID))
	}

	if len(missing) == 0 {
		return nil
	}

	n.logger.WithFields(logger.Fields{
		"source":            string(source),
		"file":              table.File,
		"missing_columns":   missing,
		"available_headers": table.Headers,
	}).Error("Source file is missing required columns")

	return errors.ValidationError(
		errors.CodeMissingColumn,
		"columns",
		strings.Join(missing, ", "),
		nil,
	).WithContext("file", table.File).
		WithContext("source", string(source)).
		WithSuggestion(fmt.Sprintf("Map one of the file's headers to each of: %s (available: %s)",
			strings.Join(missing, ", "), strings.Join(table.Headers, ", ")))
}

// normalizeRow coerces one raw row. keep=false drops the row; a returned
// error rejects the file.
func (n *Normalizer) normalizeRow(row []string, rowIndex int, source models.Source, columns ColumnMap, stats *Stats) (*models.Transaction, bool, error) {
	value := func(field Field) string {
		idx, ok := columns[field]
		if !ok || idx == ColumnUnspecified || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	rrn := models.NormalizeRRN(value(FieldRRN))
	upiTranID := value(FieldUPITranID)

	if rrn == "" && upiTranID == "" {
		if source == models.SourceCBS {
			stats.KeylessKept++
		} else {
			stats.RowsDropped++
			stats.AddWarning("row %d: no RRN and no UPI transaction ID, dropped", rowIndex+1)
			return nil, false, nil
		}
	}

	if rrn != "" && !models.ValidRRN(rrn) {
		stats.RowsDropped++
		stats.AddWarning("row %d: malformed RRN %q, dropped", rowIndex+1, rrn)
		return nil, false, nil
	}

	amount, err := models.ParseAmount(value(FieldAmount))
	if err != nil {
		return nil, false, errors.InvalidAmountError(stats.File, rowIndex+2, string(FieldAmount), value(FieldAmount))
	}

	drCr, drCrErr := models.ParseDrCr(value(FieldDrCr))
	if drCrErr != nil {
		stats.AddWarning("row %d: %v", rowIndex+1, drCrErr)
	}

	// Negative amounts carry their sign into the indicator: sources that
	// export signed amounts rarely fill the Dr/Cr column as well.
	if amount.IsNegative() {
		amount = amount.Abs()
		if drCr == models.DrCrUnspecified {
			drCr = models.DrCrDebit
		}
	}

	tranDate, hasTime, err := models.ParseFlexibleDate(value(FieldTranDate))
	if err != nil {
		stats.RowsDropped++
		stats.AddWarning("row %d: unparseable date %q, dropped", rowIndex+1, value(FieldTranDate))
		return nil, false, nil
	}

	txn := models.NewTransaction(source, rrn, upiTranID, amount, models.DateOnly(tranDate))
	txn.DrCr = drCr
	txn.RC = models.ParseRC(value(FieldRC))
	txn.TranType = value(FieldTranType)
	txn.TranSubtype = value(FieldTranSubtype)
	txn.PayerPSP = value(FieldPayerPSP)
	txn.PayeePSP = value(FieldPayeePSP)
	txn.MCC = value(FieldMCC)
	txn.Channel = value(FieldChannel)

	if raw := value(FieldTranTime); raw != "" {
		clock, err := models.ParseClockTime(raw)
		if err != nil {
			stats.AddWarning("row %d: %v", rowIndex+1, err)
		} else {
			txn.TranTime = clock
		}
	} else if hasTime {
		txn.TranTime = models.ClockTimeFrom(tranDate)
	}

	return txn, true, nil
}

// NormalizeAdjustments converts a raw adjustments table. Rows with an
// invalid RRN or an unknown adjustment type are dropped with a warning;
// AMOUNT_CORRECTION rows must carry a parseable adjustment amount.
func (n *Normalizer) NormalizeAdjustments(ctx context.Context, table *parsers.RawTable) ([]models.Adjustment, *Stats, error) {
	if table == nil {
		return nil, nil, errors.ValidationError(errors.CodeMissingField, "table", "nil", nil)
	}

	columns := DiscoverColumns(table.Headers, AdjustmentFields(), n.config)
	stats := &Stats{
		Source:  models.SourceAdjustment,
		File:    table.File,
		RowsIn:  len(table.Rows),
		Columns: columns,
	}

	var missing []string
	for _, field := range []Field{FieldRRN, FieldAdjType} {
		if !columns.Has(field) {
			missing = append(missing, string(field))
		}
	}
	if len(missing) > 0 {
		return nil, stats, errors.ValidationError(
			errors.CodeMissingColumn,
			"columns",
			strings.Join(missing, ", "),
			nil,
		).WithContext("file", table.File).
			WithSuggestion("Adjustment files need RRN and Adjtype columns")
	}

	value := func(row []string, field Field) string {
		idx, ok := columns[field]
		if !ok || idx == ColumnUnspecified || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	adjustments := make([]models.Adjustment, 0, len(table.Rows))

	for i, row := range table.Rows {
		select {
		case <-ctx.Done():
			return nil, stats, errors.InternalError(errors.CodeUnexpectedError, "normalization", ctx.Err())
		default:
		}

		rrn := models.NormalizeRRN(value(row, FieldRRN))
		if !models.ValidRRN(rrn) {
			stats.RowsDropped++
			stats.AddWarning("row %d: malformed RRN %q, dropped", i+1, rrn)
			continue
		}

		adjType := models.AdjustmentType(strings.ToUpper(strings.ReplaceAll(value(row, FieldAdjType), " ", "_")))
		if !adjType.IsValid() {
			stats.RowsDropped++
			stats.AddWarning("row %d: unknown adjustment type %q, dropped", i+1, value(row, FieldAdjType))
			continue
		}

		adj := models.Adjustment{
			RRN:      rrn,
			Type:     adjType,
			Response: value(row, FieldResponse),
		}

		if raw := value(row, FieldAdjAmount); raw != "" {
			amount, err := models.ParseAmount(raw)
			if err != nil {
				return nil, stats, errors.InvalidAmountError(stats.File, i+2, string(FieldAdjAmount), raw)
			}
			adj.Amount = amount
		} else if adjType == models.AdjAmountCorrection {
			stats.RowsDropped++
			stats.AddWarning("row %d: AMOUNT_CORRECTION without an amount, dropped", i+1)
			continue
		}

		if err := adj.Validate(); err != nil {
			stats.RowsDropped++
			stats.AddWarning("row %d: %v, dropped", i+1, err)
			continue
		}

		adjustments = append(adjustments, adj)
	}

	stats.RowsOut = len(adjustments)

	n.logger.WithFields(logger.Fields{
		"file":         table.File,
		"rows_in":      stats.RowsIn,
		"rows_out":     stats.RowsOut,
		"rows_dropped": stats.RowsDropped,
	}).Info("Normalized adjustments")

	return adjustments, stats, nil
}

func fieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return names
}
