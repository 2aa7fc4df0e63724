package parsers

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"upi-reconciliation-service/pkg/errors"
	"upi-reconciliation-service/pkg/logger"
)

// RawTable holds the contents of a source file exactly as read: the header
// row and every data row in file order. Row order is load-bearing further
// down the pipeline (tie-breaks during matching use insertion order), so
// nothing here sorts or reorders.
type RawTable struct {
	// File is the path the table was read from.
	File string

	// Headers is the cleaned header row.
	Headers []string

	// Rows holds the data rows. Rows may be ragged; short rows are padded
	// with empty strings during normalization, not here.
	Rows [][]string
}

// RowCount returns the number of data rows in the table.
func (t *RawTable) RowCount() int {
	return len(t.Rows)
}

// TableParser reads CSV and XLSX source files into RawTable values.
type TableParser struct {
	*BaseParser
	logger logger.Logger
}

// NewTableParser creates a TableParser with the given configuration.
// A nil config uses defaults.
func NewTableParser(config *ParseConfig) *TableParser {
	return &TableParser{
		BaseParser: NewBaseParser(config),
		logger:     logger.GetGlobalLogger().WithComponent("table_parser"),
	}
}

// ParseFile reads a source file into a RawTable, dispatching on the file
// extension. Supported extensions are .csv and .xlsx (case-insensitive).
func (tp *TableParser) ParseFile(ctx context.Context, filePath string) (*RawTable, *ParseStats, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv":
		return tp.ParseCSV(ctx, filePath)
	case ".xlsx":
		return tp.ParseXLSX(ctx, filePath)
	default:
		return nil, nil, errors.ValidationError(
			errors.CodeInvalidFileName,
			"file_extension",
			filepath.Ext(filePath),
			nil,
		).WithContext("file_path", filePath).
			WithSuggestion("Provide the file as .csv or .xlsx")
	}
}

// ParseCSV reads a CSV file into a RawTable.
func (tp *TableParser) ParseCSV(ctx context.Context, filePath string) (*RawTable, *ParseStats, error) {
	startTime := time.Now()

	tp.logger.WithField("file_path", filePath).Info("Starting CSV file parsing")

	file, reader, err := tp.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := NewParseStats()

	if err := tp.ReadHeaders(reader, parseCtx); err != nil {
		return nil, stats, errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeInvalidFormat, "failed to read headers").
			WithContext("file_path", filePath)
	}

	table := &RawTable{
		File:    filePath,
		Headers: parseCtx.Headers,
		Rows:    make([][]string, 0, 1024),
	}

	for {
		record, err := tp.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, stats, errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeInvalidFormat, "failed to read record").
				WithContext("file_path", filePath).
				WithContext("line_number", parseCtx.LineNumber)
		}

		stats.RecordsParsed++
		stats.RecordsValid++
		table.Rows = append(table.Rows, record)
	}

	stats.TotalLines = parseCtx.LineNumber
	stats.Errors = append(stats.Errors, parseCtx.Errors...)
	stats.ErrorCount = len(stats.Errors)

	tp.logger.WithFields(logger.Fields{
		"file_path":      filePath,
		"rows_read":      len(table.Rows),
		"column_count":   len(table.Headers),
		"parse_duration": time.Since(startTime).String(),
	}).Info("CSV file parsing completed")

	return table, stats, nil
}

// ParseXLSX reads the first sheet of an XLSX workbook into a RawTable.
// Rows are streamed rather than loaded wholesale so that large NPCI raw
// files do not force the whole sheet into memory twice.
func (tp *TableParser) ParseXLSX(ctx context.Context, filePath string) (*RawTable, *ParseStats, error) {
	startTime := time.Now()

	tp.logger.WithField("file_path", filePath).Info("Starting XLSX file parsing")

	workbook, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, nil, errors.FileError(errors.CodeFileCorrupted, filePath, err).
			WithSuggestion("Check that the file is a valid XLSX workbook")
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.ValidationError(
			errors.CodeMissingField,
			"sheets",
			"none",
			nil,
		).WithContext("file_path", filePath).
			WithSuggestion("Ensure the workbook contains at least one sheet")
	}
	sheetName := sheets[0]

	rows, err := workbook.Rows(sheetName)
	if err != nil {
		return nil, nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}
	defer rows.Close()

	parseCtx := NewParseContext(ctx)
	stats := NewParseStats()

	table := &RawTable{
		File: filePath,
		Rows: make([][]string, 0, 1024),
	}

	for rows.Next() {
		if parseCtx.IsCancelled() {
			return nil, stats, errors.InternalError(
				errors.CodeUnexpectedError,
				"file_parsing",
				fmt.Errorf("parsing cancelled"),
			)
		}

		record, err := rows.Columns()
		if err != nil {
			return nil, stats, errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeInvalidFormat, "failed to read sheet row").
				WithContext("file_path", filePath).
				WithContext("line_number", parseCtx.LineNumber+1)
		}

		parseCtx.LineNumber++

		if table.Headers == nil {
			table.Headers = tp.cleanHeaders(record)
			parseCtx.Headers = table.Headers
			continue
		}

		if tp.config.SkipEmptyRows && tp.isEmptyRecord(record) {
			continue
		}

		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}

		stats.RecordsParsed++
		stats.RecordsValid++
		table.Rows = append(table.Rows, record)
	}

	if err := rows.Error(); err != nil {
		return nil, stats, errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}

	if table.Headers == nil {
		return nil, stats, errors.ValidationError(
			errors.CodeMissingField,
			"file_content",
			"empty",
			nil,
		).WithContext("file_path", filePath).
			WithSuggestion("Ensure the sheet contains header and data rows")
	}

	stats.TotalLines = parseCtx.LineNumber

	tp.logger.WithFields(logger.Fields{
		"file_path":      filePath,
		"sheet":          sheetName,
		"rows_read":      len(table.Rows),
		"column_count":   len(table.Headers),
		"parse_duration": time.Since(startTime).String(),
	}).Info("XLSX file parsing completed")

	return table, stats, nil
}

// RowHandler processes one data row during streaming parsing. rowIndex is
// zero-based over data rows (headers excluded). Returning an error aborts
// the stream.
type RowHandler func(rowIndex int, record []string) error

// StreamCSV reads a CSV file row by row, invoking handler for each data
// row without materializing the table. The header row is returned so the
// caller can build its own column mapping.
func (tp *TableParser) StreamCSV(ctx context.Context, filePath string, handler RowHandler) ([]string, *ParseStats, error) {
	file, reader, err := tp.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := NewParseStats()

	if err := tp.ReadHeaders(reader, parseCtx); err != nil {
		return nil, stats, errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeInvalidFormat, "failed to read headers").
			WithContext("file_path", filePath)
	}

	rowIndex := 0
	for {
		record, err := tp.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}
			return parseCtx.Headers, stats, errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeInvalidFormat, "failed to read record").
				WithContext("file_path", filePath).
				WithContext("line_number", parseCtx.LineNumber)
		}

		stats.RecordsParsed++
		if err := handler(rowIndex, record); err != nil {
			return parseCtx.Headers, stats, err
		}
		stats.RecordsValid++
		rowIndex++
	}

	stats.TotalLines = parseCtx.LineNumber
	return parseCtx.Headers, stats, nil
}
