package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// The dataset validator sanity-checks generated source files before they
// are fed to the reconciler: header columns resolve, RRNs are 12 digits,
// amounts and dates parse, and duplicate RRNs are counted. It accepts the
// same header synonyms and date layouts the normalizer does.

// ValidationResult represents the result of validating a file
type ValidationResult struct {
	FilePath    string
	SourceType  string // cbs, switch, npci, or unknown
	IsValid     bool
	RecordCount int
	Errors      []ValidationError
	Warnings    []ValidationWarning
	Summary     ValidationSummary
}

// ValidationError represents a validation error
type ValidationError struct {
	Line    int
	Column  string
	Message string
	Value   string
}

// ValidationWarning represents a validation warning
type ValidationWarning struct {
	Line    int
	Column  string
	Message string
	Value   string
}

// ValidationSummary provides aggregate validation statistics
type ValidationSummary struct {
	TotalRecords  int
	ValidRecords  int
	ErrorRecords  int
	UniqueRRNs    int
	DuplicateRRNs int
	MinAmount     decimal.Decimal
	MaxAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	ResponseCodes map[string]int
}

var headerSynonyms = map[string][]string{
	"rrn":    {"RRN", "Retrieval Reference Number", "Cust Ref No", "Customer Ref No", "Ref No"},
	"upi":    {"UPI Tran ID", "UPI Transaction ID", "UPI Txn ID", "Txn ID", "Tran ID"},
	"amount": {"Amount", "Tran Amt", "Tran Amount", "Txn Amount", "Settlement Amount", "Transaction Amount"},
	"date":   {"Tran Date", "Txn Date", "Transaction Date", "Settlement Date", "Date", "Value Date"},
	"time":   {"Tran Time", "Txn Time", "Transaction Time", "Time"},
	"drcr":   {"DR/CR", "Dr/Cr", "Dr_Cr", "Indicator"},
	"rc":     {"Response Code", "NPCI Response", "RC", "Response"},
}

var dateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02-01-2006 15:04:05",
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
}

var timeLayouts = []string{"15:04:05", "15:04", "150405"}

var rrnPattern = regexp.MustCompile(`^\d{12}$`)
var npciNamePattern = regexp.MustCompile(`^(ISSR|ACQR)(P2P|P2M)`)

func main() {
	var (
		file       = flag.String("file", "", "Single file to validate")
		dir        = flag.String("dir", "", "Directory of files to validate (recursive)")
		sourceType = flag.String("type", "", "Source type override: cbs, switch, npci (default: inferred from file name)")
		verbose    = flag.Bool("verbose", false, "Print every error instead of the first ten")
	)
	flag.Parse()

	if *file == "" && *dir == "" {
		fmt.Println("UPI Dataset Validator")
		fmt.Println("=====================")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  go run dataset_validator.go -file=<path> [-type=cbs|switch|npci]")
		fmt.Println("  go run dataset_validator.go -dir=<path>")
		os.Exit(0)
	}

	var files []string
	if *file != "" {
		files = append(files, *file)
	}
	if *dir != "" {
		err := filepath.Walk(*dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") &&
				!strings.Contains(filepath.Base(path), "expected_status") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			log.Fatalf("Failed to walk %s: %v", *dir, err)
		}
	}

	if len(files) == 0 {
		log.Fatal("No CSV files to validate")
	}

	failed := 0
	for _, path := range files {
		st := *sourceType
		if st == "" {
			st = inferSourceType(path)
		}
		result := validateFile(path, st)
		printResult(result, *verbose)
		if !result.IsValid {
			failed++
		}
	}

	fmt.Printf("\nValidated %d file(s), %d failed\n", len(files), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// inferSourceType guesses the source from the file name: the NPCI network
// naming convention first, then cbs/switch/ntsl/drc name fragments.
func inferSourceType(path string) string {
	base := filepath.Base(path)
	upper := strings.ToUpper(base)
	switch {
	case npciNamePattern.MatchString(upper):
		return "npci"
	case strings.Contains(upper, "NPCI"):
		return "npci"
	case strings.HasPrefix(upper, "DRCREPORT"):
		return "drc"
	case strings.Contains(strings.ToLower(base), "cbs"):
		return "cbs"
	case strings.Contains(strings.ToLower(base), "switch"):
		return "switch"
	case strings.Contains(strings.ToLower(base), "ntsl"):
		return "ntsl"
	}
	return "unknown"
}

func validateFile(path, sourceType string) *ValidationResult {
	result := &ValidationResult{
		FilePath:   path,
		SourceType: sourceType,
		IsValid:    true,
		Summary: ValidationSummary{
			ResponseCodes: make(map[string]int),
		},
	}

	f, err := os.Open(path)
	if err != nil {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{Message: fmt.Sprintf("cannot open file: %v", err)})
		return result
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{Message: fmt.Sprintf("CSV parse failed: %v", err)})
		return result
	}
	if len(rows) == 0 {
		result.Errors = append(result.Errors, ValidationError{Message: "file is empty, header row missing"})
		result.IsValid = false
		return result
	}

	columns := resolveColumns(rows[0])
	checkRequiredColumns(result, columns, sourceType)

	rrnSeen := make(map[string]int)
	for i, row := range rows[1:] {
		line := i + 2
		result.Summary.TotalRecords++

		rowErrors := validateRow(result, columns, row, line, rrnSeen)
		if rowErrors == 0 {
			result.Summary.ValidRecords++
		} else {
			result.Summary.ErrorRecords++
		}
	}

	result.Summary.UniqueRRNs = len(rrnSeen)
	for _, count := range rrnSeen {
		if count > 1 {
			result.Summary.DuplicateRRNs++
		}
	}
	result.RecordCount = result.Summary.TotalRecords
	if len(result.Errors) > 0 {
		result.IsValid = false
	}
	return result
}

// resolveColumns maps canonical field names to column indexes via the
// header synonym table. Matching is case-insensitive on trimmed headers.
func resolveColumns(header []string) map[string]int {
	columns := make(map[string]int)
	for idx, raw := range header {
		name := strings.TrimSpace(raw)
		for field, synonyms := range headerSynonyms {
			if _, taken := columns[field]; taken {
				continue
			}
			for _, syn := range synonyms {
				if strings.EqualFold(name, syn) {
					columns[field] = idx
					break
				}
			}
		}
	}
	return columns
}

func checkRequiredColumns(result *ValidationResult, columns map[string]int, sourceType string) {
	required := []string{"amount", "date"}
	switch sourceType {
	case "cbs":
		required = append(required, "drcr")
	case "npci":
		required = append(required, "rc")
	}

	for _, field := range required {
		if _, ok := columns[field]; !ok {
			result.Errors = append(result.Errors, ValidationError{
				Line:    1,
				Column:  field,
				Message: fmt.Sprintf("no header column resolves to %q for a %s file", field, sourceType),
			})
		}
	}
}

func validateRow(result *ValidationResult, columns map[string]int, row []string, line int, rrnSeen map[string]int) int {
	errs := 0
	cell := func(field string) (string, bool) {
		idx, ok := columns[field]
		if !ok || idx >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[idx]), true
	}

	if rrn, ok := cell("rrn"); ok && rrn != "" {
		rrnSeen[rrn]++
		if !rrnPattern.MatchString(rrn) {
			result.Errors = append(result.Errors, ValidationError{
				Line: line, Column: "rrn", Value: rrn,
				Message: "RRN is not 12 digits",
			})
			errs++
		}
	}

	if amt, ok := cell("amount"); ok {
		value, err := decimal.NewFromString(amt)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, ValidationError{
				Line: line, Column: "amount", Value: amt,
				Message: "amount does not parse as a decimal",
			})
			errs++
		case value.Exponent() < -2:
			result.Warnings = append(result.Warnings, ValidationWarning{
				Line: line, Column: "amount", Value: amt,
				Message: "amount carries more than two decimal places",
			})
		default:
			updateAmountSummary(&result.Summary, value)
		}
	}

	if date, ok := cell("date"); ok {
		if _, err := parseAny(date, dateLayouts); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Line: line, Column: "date", Value: date,
				Message: "date does not parse in any accepted layout",
			})
			errs++
		}
	}

	if clock, ok := cell("time"); ok && clock != "" {
		if _, err := parseAny(clock, timeLayouts); err != nil {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Line: line, Column: "time", Value: clock,
				Message: "time does not parse in any accepted layout",
			})
		}
	}

	if drcr, ok := cell("drcr"); ok && drcr != "" {
		switch strings.ToUpper(drcr) {
		case "DR", "CR", "D", "C", "DEBIT", "CREDIT":
		default:
			result.Errors = append(result.Errors, ValidationError{
				Line: line, Column: "drcr", Value: drcr,
				Message: "indicator is not a recognised debit/credit marker",
			})
			errs++
		}
	}

	if rc, ok := cell("rc"); ok && rc != "" {
		result.Summary.ResponseCodes[strings.ToUpper(rc)]++
	}

	return errs
}

func updateAmountSummary(s *ValidationSummary, value decimal.Decimal) {
	if s.TotalAmount.IsZero() && s.MinAmount.IsZero() && s.MaxAmount.IsZero() {
		s.MinAmount = value
		s.MaxAmount = value
	}
	if value.LessThan(s.MinAmount) {
		s.MinAmount = value
	}
	if value.GreaterThan(s.MaxAmount) {
		s.MaxAmount = value
	}
	s.TotalAmount = s.TotalAmount.Add(value)
}

func parseAny(value string, layouts []string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matched %q", value)
}

func printResult(result *ValidationResult, verbose bool) {
	status := "OK"
	if !result.IsValid {
		status = "FAILED"
	}
	fmt.Printf("\n%s [%s] %s\n", status, result.SourceType, result.FilePath)
	fmt.Printf("  Records: %d total, %d valid, %d with errors\n",
		result.Summary.TotalRecords, result.Summary.ValidRecords, result.Summary.ErrorRecords)

	if result.Summary.UniqueRRNs > 0 {
		fmt.Printf("  RRNs: %d unique, %d duplicated\n",
			result.Summary.UniqueRRNs, result.Summary.DuplicateRRNs)
	}
	if !result.Summary.TotalAmount.IsZero() {
		fmt.Printf("  Amounts: min %s, max %s, total %s\n",
			result.Summary.MinAmount.StringFixed(2),
			result.Summary.MaxAmount.StringFixed(2),
			result.Summary.TotalAmount.StringFixed(2))
	}
	if len(result.Summary.ResponseCodes) > 0 {
		fmt.Printf("  Response codes:")
		for rc, count := range result.Summary.ResponseCodes {
			fmt.Printf(" %s=%d", rc, count)
		}
		fmt.Println()
	}

	shown := 0
	for _, e := range result.Errors {
		if !verbose && shown >= 10 {
			fmt.Printf("  ... %d more errors (use -verbose to see all)\n", len(result.Errors)-shown)
			break
		}
		if e.Line > 0 {
			fmt.Printf("  ERROR line %d [%s]: %s (%q)\n", e.Line, e.Column, e.Message, e.Value)
		} else {
			fmt.Printf("  ERROR: %s\n", e.Message)
		}
		shown++
	}
	if verbose {
		for _, w := range result.Warnings {
			fmt.Printf("  WARN line %d [%s]: %s (%q)\n", w.Line, w.Column, w.Message, w.Value)
		}
	} else if len(result.Warnings) > 0 {
		fmt.Printf("  Warnings: %d (use -verbose to see them)\n", len(result.Warnings))
	}
}
