package errors

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ParseContext pins a parse failure to an exact position in a source file.
type ParseContext struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   string `json:"column"`
	Value    string `json:"value"`
	Expected string `json:"expected,omitempty"`
}

// EnhancedParseError is a ReconcilerError that knows the file, line, column
// and offending value, so the CLI can show the operator exactly which cell
// to fix. Examples holds accepted sample values for the field.
type EnhancedParseError struct {
	*ReconcilerError
	Context  *ParseContext `json:"context"`
	Examples []string      `json:"examples,omitempty"`
}

// Error appends the location to the base message.
func (e *EnhancedParseError) Error() string {
	msg := e.ReconcilerError.Error()
	if e.Context == nil {
		return msg
	}

	location := "at " + filepath.Base(e.Context.File)
	if e.Context.Line > 0 {
		location += fmt.Sprintf(":%d", e.Context.Line)
	}
	if e.Context.Column != "" {
		location += fmt.Sprintf(" column '%s'", e.Context.Column)
	}
	return msg + " " + location
}

// Unwrap returns the embedded ReconcilerError so errors.As and the exit
// code mapping see through the wrapper.
func (e *EnhancedParseError) Unwrap() error {
	return e.ReconcilerError
}

// Detail renders the multi-line block the CLI prints for parse failures.
func (e *EnhancedParseError) Detail() string {
	lines := []string{"ERROR: " + e.Message}

	if e.Context != nil {
		lines = append(lines, "  > File: "+e.Context.File)
		if e.Context.Line > 0 {
			lines = append(lines, fmt.Sprintf("  > Line: %d", e.Context.Line))
		}
		if e.Context.Column != "" {
			lines = append(lines, "  > Column: "+e.Context.Column)
		}
		if e.Context.Value != "" {
			lines = append(lines, fmt.Sprintf("  > Value: '%s'", e.Context.Value))
		}
		if e.Context.Expected != "" {
			lines = append(lines, "  > Expected: "+e.Context.Expected)
		}
	}

	if e.Suggestion != "" {
		lines = append(lines, "  > Suggestion: "+e.Suggestion)
	}

	if len(e.Examples) > 0 {
		lines = append(lines, "  > Examples:")
		for _, example := range e.Examples {
			lines = append(lines, "    - "+example)
		}
	}

	return strings.Join(lines, "\n")
}

// WithExamples sets accepted sample values shown in the detail block.
func (e *EnhancedParseError) WithExamples(examples ...string) *EnhancedParseError {
	e.Examples = examples
	return e
}

// WithSuggestion sets the operator hint, keeping the enhanced type for
// chaining.
func (e *EnhancedParseError) WithSuggestion(suggestion string) *EnhancedParseError {
	e.ReconcilerError.WithSuggestion(suggestion)
	return e
}

func newParseError(code ErrorCode, pctx *ParseContext, message string, cause error) *EnhancedParseError {
	base := build(cause, CategoryParse, code, message, "")
	if pctx != nil {
		base.WithContext("file", pctx.File).
			WithContext("line", pctx.Line).
			WithContext("column", pctx.Column).
			WithContext("value", pctx.Value)
	}
	return &EnhancedParseError{ReconcilerError: base, Context: pctx}
}

// InvalidAmountError rejects an amount cell that does not parse. Amounts
// are load-bearing for matching, so the whole file is refused rather than
// the row dropped.
func InvalidAmountError(file string, line int, column string, value string) *EnhancedParseError {
	pctx := &ParseContext{
		File:     file,
		Line:     line,
		Column:   column,
		Value:    value,
		Expected: "decimal number with two places",
	}

	return newParseError(CodeInvalidAmount, pctx, "invalid amount format", nil).
		WithExamples("150.00", "1250.50", "500").
		WithSuggestion("Remove currency symbols and thousands separators; use decimal format")
}

// EncodingError rejects a file whose sampled lines are not valid UTF-8.
func EncodingError(file string, line int, cause error) *EnhancedParseError {
	pctx := &ParseContext{File: file, Line: line}

	return newParseError(CodeEncodingError, pctx, "file encoding error", cause).
		WithSuggestion("Save the file in UTF-8 encoding without a BOM")
}
