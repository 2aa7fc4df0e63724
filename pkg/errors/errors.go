// Package errors defines the error taxonomy shared by every layer of the
// reconciler: a category picks the process exit code, a code identifies the
// exact failure, and each error carries context fields plus an operator
// suggestion so the CLI can print something actionable.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCategory groups failures by which stage of a run produced them.
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryEngine        ErrorCategory = "engine"
	CategoryRollback      ErrorCategory = "rollback"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode identifies the exact failure within a category.
type ErrorCode string

const (
	// Filesystem and staging
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileCorrupted  ErrorCode = "file_corrupted"
	CodeDirectoryError ErrorCode = "directory_error"
	CodeWriteFailed    ErrorCode = "write_failed"
	CodeRenameFailed   ErrorCode = "rename_failed"

	// Source file parsing
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"
	CodeEncodingError ErrorCode = "encoding_error"

	// Field and upload validation
	CodeInvalidAmount      ErrorCode = "invalid_amount"
	CodeInvalidDate        ErrorCode = "invalid_date"
	CodeInvalidRRN         ErrorCode = "invalid_rrn"
	CodeMissingField       ErrorCode = "missing_field"
	CodeOutOfRange         ErrorCode = "out_of_range"
	CodeDuplicateReference ErrorCode = "duplicate_reference"
	CodeDuplicateCycle     ErrorCode = "duplicate_cycle"
	CodeInvalidFileName    ErrorCode = "invalid_file_name"

	// Configuration
	CodeInvalidConfig  ErrorCode = "invalid_config"
	CodeMissingConfig  ErrorCode = "missing_config"
	CodeConfigConflict ErrorCode = "config_conflict"

	// Matching engine
	CodeStepFailed        ErrorCode = "step_failed"
	CodeMatchingFailed    ErrorCode = "matching_failed"
	CodeDataInconsistent  ErrorCode = "data_inconsistent"
	CodeUnbalancedVoucher ErrorCode = "unbalanced_voucher"
	CodeCycleAborted      ErrorCode = "cycle_aborted"

	// Rollback
	CodeLockBusy           ErrorCode = "lock_busy"
	CodePreconditionFailed ErrorCode = "precondition_failed"
	CodeRollbackInProgress ErrorCode = "rollback_in_progress"
	CodeSnapshotFailed     ErrorCode = "snapshot_failed"
	CodeUnknownLevel       ErrorCode = "unknown_level"

	// Internal
	CodeUnexpectedError   ErrorCode = "unexpected_error"
	CodeResourceExhausted ErrorCode = "resource_exhausted"
)

// Context carries structured key/value detail alongside an error.
type Context map[string]interface{}

// ReconcilerError is the error type the whole application speaks. Category
// and Code classify the failure; Context and Suggestion feed the CLI's
// operator output.
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

func (e *ReconcilerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause to errors.Is and errors.As.
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode maps the category onto the process exit code documented for
// the CLI: 2 file, 3 parse/validation, 4 configuration, 5 engine/internal,
// 6 rollback.
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryEngine, CategoryInternal:
		return 5
	case CategoryRollback:
		return 6
	default:
		return 1
	}
}

// WithContext attaches one key/value pair and returns the error for
// chaining.
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion sets the operator hint printed under the error.
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// New creates a ReconcilerError capturing the call site's stack.
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap classifies an underlying error. Returns nil when err is nil so call
// sites can wrap unconditionally.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// build assembles a classified error with or without a cause. All the
// constructors below funnel through it.
func build(cause error, category ErrorCategory, code ErrorCode, message, suggestion string) *ReconcilerError {
	var err *ReconcilerError
	if cause != nil {
		err = Wrap(cause, category, code, message)
	} else {
		err = New(category, code, message)
	}
	return err.WithSuggestion(suggestion)
}

// FileError classifies a filesystem failure around path.
func FileError(code ErrorCode, path string, cause error) *ReconcilerError {
	var message, suggestion string
	switch code {
	case CodeFileNotFound:
		message = "file not found: " + path
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = "permission denied accessing file: " + path
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileCorrupted:
		message = "file appears to be corrupted: " + path
		suggestion = "verify the file integrity and try using a backup copy"
	case CodeDirectoryError:
		message = "directory error: " + path
		suggestion = "ensure the directory exists and is accessible"
	case CodeWriteFailed:
		message = "failed to write file: " + path
		suggestion = "check disk space and directory permissions"
	case CodeRenameFailed:
		message = "failed to finalize file: " + path
		suggestion = "a staged temp file may remain next to the target; remove it before retrying"
	default:
		message = "file error: " + path
		suggestion = "check the file and try again"
	}
	return build(cause, CategoryFile, code, message, suggestion).
		WithContext("file_path", path)
}

// ParseError classifies a failure reading a source file, located by line
// and column.
func ParseError(code ErrorCode, file string, line int, column string, value string, cause error) *ReconcilerError {
	var message, suggestion string
	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "check the data format and ensure it matches the expected structure"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in file %s", column, file)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "correct the data format or remove the invalid entry"
	case CodeEncodingError:
		message = fmt.Sprintf("encoding error in file %s at line %d", file, line)
		suggestion = "ensure the file is saved in UTF-8 encoding"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}
	return build(cause, CategoryParse, code, message, suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column).
		WithContext("value", value)
}

// ValidationError classifies a bad field value or a violated upload rule.
func ValidationError(code ErrorCode, field string, value interface{}, cause error) *ReconcilerError {
	var message, suggestion string
	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "ensure amounts are valid decimal numbers (e.g., '150.00')"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use date format YYYY-MM-DD, DD-MM-YYYY or ISO-8601"
	case CodeInvalidRRN:
		message = fmt.Sprintf("invalid RRN in field '%s': %v", field, value)
		suggestion = "RRN must be exactly 12 digits"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	case CodeDuplicateReference:
		message = fmt.Sprintf("duplicate reference in field '%s': %v", field, value)
		suggestion = "adjustment references must be unique within a file"
	case CodeDuplicateCycle:
		message = fmt.Sprintf("duplicate cycle upload for '%s': %v", field, value)
		suggestion = "each source accepts at most one file per settlement cycle per run"
	case CodeInvalidFileName:
		message = fmt.Sprintf("file name does not match the required convention: %v", value)
		suggestion = "NPCI files must be named {ISSR|ACQR}{P2P|P2M}{BANK4}{DDMMYY}_{1..10}C.csv or .xlsx"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}
	return build(cause, CategoryValidation, code, message, suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError classifies a bad or missing setting.
func ConfigurationError(code ErrorCode, setting string, value interface{}, cause error) *ReconcilerError {
	var message, suggestion string
	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = "missing required configuration: " + setting
		suggestion = "provide this configuration setting or use a config file"
	case CodeConfigConflict:
		message = fmt.Sprintf("configuration conflict with setting '%s': %v", setting, value)
		suggestion = "resolve the conflicting settings or use default values"
	default:
		message = "configuration error: " + setting
		suggestion = "check your configuration and try again"
	}
	return build(cause, CategoryConfiguration, code, message, suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// EngineError classifies a matching-engine failure during operation.
func EngineError(code ErrorCode, operation string, cause error) *ReconcilerError {
	var message, suggestion string
	switch code {
	case CodeStepFailed:
		message = "matching step failed: " + operation
		suggestion = "the cycle was aborted with no state written; inspect the cause and re-run"
	case CodeMatchingFailed:
		message = "matching failed during " + operation
		suggestion = "try adjusting matching tolerances or check data quality"
	case CodeDataInconsistent:
		message = "data inconsistency detected during " + operation
		suggestion = "verify source data integrity and resolve inconsistencies"
	case CodeUnbalancedVoucher:
		message = "voucher debits and credits do not balance: " + operation
		suggestion = "voucher totals must agree within 0.01"
	case CodeCycleAborted:
		message = "cycle aborted during " + operation
		suggestion = "no output was written for this cycle; fix the cause and re-run"
	default:
		message = "engine error during " + operation
		suggestion = "review the data and configuration"
	}
	return build(cause, CategoryEngine, code, message, suggestion).
		WithContext("operation", operation)
}

// RollbackError classifies a rollback failure during operation.
func RollbackError(code ErrorCode, operation string, cause error) *ReconcilerError {
	var message, suggestion string
	switch code {
	case CodeLockBusy:
		message = "another rollback holds the lock for " + operation
		suggestion = "wait for the in-flight rollback to finish; remove a stale .rollback.lock only if no rollback is running"
	case CodePreconditionFailed:
		message = "rollback precondition not met for " + operation
		suggestion = "check the rollback level's requirements (state files present, TTUM not downloaded)"
	case CodeRollbackInProgress:
		message = "a rollback is already in progress for " + operation
		suggestion = "cascading rollbacks are refused; wait for the current one to complete"
	case CodeSnapshotFailed:
		message = "failed to snapshot state before rollback of " + operation
		suggestion = "nothing was mutated; check disk space and permissions"
	case CodeUnknownLevel:
		message = "unknown rollback level: " + operation
		suggestion = "valid levels are whole_process, ingestion, mid_recon, cycle_wise, accounting"
	default:
		message = "rollback error during " + operation
		suggestion = "inspect rollback_history.json and any preserved backups"
	}
	return build(cause, CategoryRollback, code, message, suggestion).
		WithContext("operation", operation)
}

// InternalError classifies a failure that should not happen in normal
// operation.
func InternalError(code ErrorCode, operation string, cause error) *ReconcilerError {
	var message, suggestion string
	switch code {
	case CodeUnexpectedError:
		message = "unexpected error during " + operation
		suggestion = "this is likely a bug - please report it with the error details"
	case CodeResourceExhausted:
		message = "resource exhausted during " + operation
		suggestion = "try reducing batch size or increasing system resources"
	default:
		message = "internal error during " + operation
		suggestion = "try again or contact support if the problem persists"
	}
	return build(cause, CategoryInternal, code, message, suggestion).
		WithContext("operation", operation)
}

// AsReconcilerError extracts the first ReconcilerError in err's chain.
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// AsParseError extracts the first EnhancedParseError in err's chain.
func AsParseError(err error) (*EnhancedParseError, bool) {
	var parseErr *EnhancedParseError
	if errors.As(err, &parseErr) {
		return parseErr, true
	}
	return nil, false
}

// IsLockBusy reports whether err is a rollback lock-contention error.
func IsLockBusy(err error) bool {
	if re, ok := AsReconcilerError(err); ok {
		return re.Category == CategoryRollback && re.Code == CodeLockBusy
	}
	return false
}

// WrapIfNeeded returns err's ReconcilerError when it already carries one,
// otherwise wraps it under the given classification.
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}
