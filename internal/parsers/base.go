// Package parsers reads the tabular source files that feed a reconciliation
// run: CBS ledger extracts, Switch logs, NPCI raw files, NTSL settlement
// summaries, adjustment sheets and DRC dispute reports, in CSV or XLSX form.
//
// Parsing stops at the table level. Files are read into RawTable values
// (headers plus rows in file order); mapping heterogeneous column names onto
// canonical fields is the normalize package's job. What this package does
// enforce is file-level hygiene: UTF-8 encoding, consistent row widths,
// and the NPCI/DRC file naming conventions.
//
// Example usage:
//
//	parser := NewTableParser(nil)
//	table, stats, err := parser.ParseFile(ctx, "ISSRP2PAXIS040126_1C.csv")
//	if err != nil {
//	    return err
//	}
//	log.Printf("read %d rows: %s", len(table.Rows), stats)
package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"upi-reconciliation-service/pkg/errors"
	"upi-reconciliation-service/pkg/logger"
)

// ParseConfig controls how raw source files are read.
type ParseConfig struct {
	// Delimiter is the CSV field separator.
	Delimiter rune

	// TrimLeadingSpace strips whitespace after the delimiter.
	TrimLeadingSpace bool

	// SkipEmptyRows drops rows whose every field is blank. Bank extracts
	// routinely end in a run of empty lines.
	SkipEmptyRows bool

	// MaxFieldSize rejects fields larger than this many bytes. Zero
	// disables the check.
	MaxFieldSize int

	// ValidateEncoding samples the file for invalid UTF-8 before parsing.
	ValidateEncoding bool
}

// DefaultParseConfig returns the configuration used for all source files
// unless the caller overrides it.
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxFieldSize:     1000000,
		ValidateEncoding: true,
	}
}

// BaseParser carries the CSV plumbing shared by the table and stream
// readers: opening with encoding validation, header cleaning, and row
// reading with hygiene checks.
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a BaseParser. A nil config uses the defaults.
func NewBaseParser(config *ParseConfig) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}
	return &BaseParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("parser"),
	}
}

// OpenFile opens a CSV file, validates its encoding when configured, and
// returns the file along with a reader set up for it. The caller closes
// the file.
func (bp *BaseParser) OpenFile(filePath string) (*os.File, *csv.Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open source file")
		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		}
		return nil, nil, errors.FileError(errors.CodeDirectoryError, filePath, err)
	}

	if bp.config.ValidateEncoding {
		if err := bp.validateEncoding(file, filePath); err != nil {
			file.Close()
			return nil, nil, err
		}
		if _, err := file.Seek(0, 0); err != nil {
			file.Close()
			return nil, nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
		}
	}

	reader := csv.NewReader(file)
	reader.Comma = bp.config.Delimiter
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	// Source rows may be ragged; width problems surface during
	// normalization with row context, not here.
	reader.FieldsPerRecord = -1

	return file, reader, nil
}

// validateEncoding samples the first lines of the file for invalid UTF-8.
// Switch exports occasionally arrive in legacy codepages; catching that up
// front beats a garbled RRN surfacing mid-match.
func (bp *BaseParser) validateEncoding(file *os.File, filePath string) error {
	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan() && line <= 100; line++ {
		if !utf8.Valid(scanner.Bytes()) {
			return errors.EncodingError(filePath, line, fmt.Errorf("invalid UTF-8 byte sequence"))
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}
	return nil
}

// ReadHeaders reads the header row into the parse context.
func (bp *BaseParser) ReadHeaders(reader *csv.Reader, parseCtx *ParseContext) error {
	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return errors.ValidationError(
				errors.CodeMissingField,
				"file_content",
				"empty",
				nil,
			).WithSuggestion("Ensure the file contains header and data rows")
		}
		return errors.ParseError(
			errors.CodeInvalidFormat,
			"",
			1,
			"headers",
			"",
			err,
		).WithSuggestion("Check the file format and ensure it's a valid CSV")
	}

	parseCtx.LineNumber++
	parseCtx.Headers = bp.cleanHeaders(headers)
	return nil
}

// cleanHeaders trims whitespace and strips a leading BOM. Files exported
// from spreadsheets usually carry one on the first header.
func (bp *BaseParser) cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		cleaned[i] = strings.TrimSpace(strings.TrimPrefix(header, "\uFEFF"))
	}
	return cleaned
}

// ReadRecord returns the next data row, skipping blank rows when configured
// and enforcing the field size limit. io.EOF signals a clean end of file.
func (bp *BaseParser) ReadRecord(reader *csv.Reader, parseCtx *ParseContext) ([]string, error) {
	for {
		if parseCtx.IsCancelled() {
			return nil, errors.InternalError(
				errors.CodeUnexpectedError,
				"file_parsing",
				fmt.Errorf("parsing cancelled"),
			)
		}

		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, err
			}
			bp.logger.WithError(err).WithField("line_number", parseCtx.LineNumber+1).Warn("Failed to read CSV record")
			return nil, err
		}

		parseCtx.LineNumber++

		if bp.config.SkipEmptyRows && bp.isEmptyRecord(record) {
			continue
		}

		if bp.config.MaxFieldSize > 0 {
			for i, field := range record {
				if len(field) <= bp.config.MaxFieldSize {
					continue
				}
				preview := field[:50] + "..."
				parseCtx.AddError(i, fmt.Sprintf("field_%d", i), preview,
					fmt.Sprintf("field exceeds maximum size of %d bytes", bp.config.MaxFieldSize), nil)
				return nil, errors.ParseError(
					errors.CodeInvalidData,
					"",
					parseCtx.LineNumber,
					fmt.Sprintf("field_%d", i),
					preview,
					fmt.Errorf("field size limit exceeded"),
				).WithSuggestion(fmt.Sprintf("Reduce field size to under %d bytes", bp.config.MaxFieldSize))
			}
		}

		return record, nil
	}
}

func (bp *BaseParser) isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// ParseContext tracks position and row-level problems while one file is
// being read.
type ParseContext struct {
	LineNumber int
	Headers    []string
	Errors     []*ParseError
	ctx        context.Context
}

// NewParseContext creates a parse context bound to ctx.
func NewParseContext(ctx context.Context) *ParseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ParseContext{ctx: ctx}
}

// IsCancelled reports whether the bound context has been cancelled.
func (pc *ParseContext) IsCancelled() bool {
	select {
	case <-pc.ctx.Done():
		return true
	default:
		return false
	}
}

// AddError records a row-level problem without aborting the file.
func (pc *ParseContext) AddError(column int, field, value, message string, err error) {
	pc.Errors = append(pc.Errors, &ParseError{
		Line:    pc.LineNumber,
		Column:  column,
		Field:   field,
		Value:   value,
		Message: message,
		Err:     err,
	})
}

// ParseError describes a problem with one field of one row.
type ParseError struct {
	Line    int
	Column  int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error at line %d, column %d (%s='%s'): %s: %v",
			e.Line, e.Column, e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("parse error at line %d, column %d (%s='%s'): %s",
		e.Line, e.Column, e.Field, e.Value, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseStats summarizes one file read.
type ParseStats struct {
	TotalLines    int
	RecordsParsed int
	RecordsValid  int
	ErrorCount    int
	Errors        []*ParseError
}

// NewParseStats creates an empty ParseStats.
func NewParseStats() *ParseStats {
	return &ParseStats{}
}

// HasErrors reports whether any row-level errors were recorded.
func (ps *ParseStats) HasErrors() bool {
	return ps.ErrorCount > 0
}

// String returns a one-line summary for logs.
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d lines, %d records (%d valid), %d errors",
		ps.TotalLines, ps.RecordsParsed, ps.RecordsValid, ps.ErrorCount)
}

// GetSampleErrors returns up to maxSamples error strings for run warnings.
func (ps *ParseStats) GetSampleErrors(maxSamples int) []string {
	if len(ps.Errors) == 0 {
		return nil
	}
	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}
	samples := make([]string, 0, limit)
	for _, err := range ps.Errors[:limit] {
		samples = append(samples, err.Error())
	}
	return samples
}
