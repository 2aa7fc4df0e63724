package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"upi-reconciliation-service/pkg/errors"
	"upi-reconciliation-service/pkg/logger"
)

// CLIErrorHandler turns errors into operator-facing stderr output and a
// process exit code.
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a handler honouring the resolved verbose flag.
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints err for an operator and returns the exit code to use.
// Zero means err was nil.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if parseErr, ok := errors.AsParseError(err); ok {
		return h.printParseError(parseErr)
	}
	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return h.printReconcilerError(reconcilerErr)
	}
	return h.printSystemError(err)
}

// printParseError shows the cell-level detail block for failures that carry
// a file position, pointing the operator at the exact value to fix.
func (h *CLIErrorHandler) printParseError(err *errors.EnhancedParseError) int {
	fmt.Fprintf(os.Stderr, "%s\n", err.Detail())
	fmt.Fprintf(os.Stderr, "\n%s\n", categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) printReconcilerError(err *errors.ReconcilerError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		// Sorted keys keep the output stable across runs.
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// printSystemError covers errors that never passed through pkg/errors,
// mapping the common filesystem failures onto the same message shape.
func (h *CLIErrorHandler) printSystemError(err error) int {
	if message, suggestion, ok := classifySystemError(err); ok {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		fmt.Fprintf(os.Stderr, "Suggestion: %s\n", suggestion)
		return 2
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(os.Stderr, "\nRun with --verbose for more detailed error information\n")
	}
	return 1
}

func classifySystemError(err error) (message, suggestion string, ok bool) {
	errStr := strings.ToLower(err.Error())
	switch {
	case os.IsNotExist(err) || strings.Contains(errStr, "no such file or directory"):
		return "File not found",
			"Check if the file path is correct and the file exists", true
	case os.IsPermission(err) || strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "access denied"):
		return "Permission denied",
			"Check file permissions and ensure you have read access", true
	case err == syscall.ENOSPC || strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full"):
		return "Insufficient disk space",
			"Free up disk space and try again", true
	}
	return "", "", false
}

// categoryHelp returns the help block printed under errors of a category.
func categoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Bare file names resolve against upload_dir from the configuration
• Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
• Verify the source file format and structure
• Check that column headers match the expected raw or canonical names
• Ensure the file uses UTF-8 encoding
• Check RRN values are 12 digits and dates use a supported format`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that all required fields have values
• Verify dates use YYYY-MM-DD and times use HH:MM:SS
• Ensure amounts are decimal numbers without currency symbols
• Check that status and level names match the documented values`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Check matching_configs entries name valid fields (RRN, UPI_TRAN_ID, AMOUNT, DATE)
• Use 'reconciler run --help' to see all available options`

	case errors.CategoryEngine:
		return `Reconciliation error help:
• Check data quality in the CBS, switch and NPCI files
• Verify the files belong to the same settlement cycle
• Try adjusting amount_epsilon or date_tolerance_days in the configuration
• Use 'reconciler lookup --run-id <id> --summary' to inspect a completed run`

	case errors.CategoryRollback:
		return `Rollback error help:
• Check the run exists: 'reconciler lookup --run-id <id> --summary'
• WHOLE_PROCESS and ACCOUNTING require --confirm
• INGESTION requires --file, CYCLE_WISE requires --cycle
• If another rollback holds the lock, retry or raise rollback_lock_timeout_ms`

	default:
		return `For more help:
• Use 'reconciler --help' for general help
• Use 'reconciler <command> --help' for command-specific help
• Use 'reconciler audit --run-id <id>' to review what a run recorded`
	}
}
