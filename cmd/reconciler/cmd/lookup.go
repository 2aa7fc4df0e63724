package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"upi-reconciliation-service/internal/lookup"
	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/internal/runstore"
)

// Flags for the lookup command
var (
	lookupRunID   string
	lookupRRN     string
	lookupUPI     string
	lookupStatus  string
	lookupSummary bool
	lookupJSON    bool
)

// lookupCmd represents the lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Query a persisted reconciliation run",
	Long: `Lookup loads a run's reconciliation output and answers point queries
against it without re-running the engine.

Exactly one of --rrn, --upi-tran-id, --status or --summary selects the
query. Status values match the engine's classifications: MATCHED,
FORCE_MATCHED, HANGING, UNMATCHED, ORPHAN, MISMATCH, PARTIAL_MATCH,
PARTIAL_MISMATCH, DUPLICATE, EXCEPTION.

Examples:
  reconciler lookup --run-id RUN-20260104 --rrn 400000000001
  reconciler lookup --run-id RUN-20260104 --status HANGING
  reconciler lookup --run-id RUN-20260104 --summary --json`,

	PreRunE: validateLookupFlags,
	RunE:    runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().StringVar(&lookupRunID, "run-id", "", "run to query (required)")
	lookupCmd.Flags().StringVar(&lookupRRN, "rrn", "", "look records up by retrieval reference number")
	lookupCmd.Flags().StringVar(&lookupUPI, "upi-tran-id", "", "look records up by UPI transaction ID")
	lookupCmd.Flags().StringVar(&lookupStatus, "status", "", "list records with the given status")
	lookupCmd.Flags().BoolVar(&lookupSummary, "summary", false, "print the run's summary")
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "emit JSON instead of text")

	lookupCmd.MarkFlagRequired("run-id")
}

func validateLookupFlags(cmd *cobra.Command, args []string) error {
	if lookupRunID == "" {
		return fmt.Errorf("run-id is required")
	}

	selected := 0
	if lookupRRN != "" {
		selected++
	}
	if lookupUPI != "" {
		selected++
	}
	if lookupStatus != "" {
		selected++
	}
	if lookupSummary {
		selected++
	}
	if selected != 1 {
		return fmt.Errorf("exactly one of --rrn, --upi-tran-id, --status or --summary is required")
	}

	if lookupStatus != "" {
		status := models.ReconStatus(strings.ToUpper(strings.TrimSpace(lookupStatus)))
		if !status.IsValid() {
			return fmt.Errorf("unknown status %q", lookupStatus)
		}
		lookupStatus = string(status)
	}
	return nil
}

func runLookup(cmd *cobra.Command, args []string) error {
	store, err := runstore.NewStore(viper.GetString("output_dir"))
	if err != nil {
		return err
	}
	service, err := lookup.NewService(store)
	if err != nil {
		return err
	}
	if err := service.Load(lookupRunID); err != nil {
		return err
	}

	if lookupSummary {
		summary := service.Summary()
		if lookupJSON {
			return printJSON(summary)
		}
		fmt.Printf("Run %s, cycle %s\n", lookupRunID, summary.CycleID)
		fmt.Printf("  Records:   %d\n", summary.TotalRecords)
		for _, status := range []models.ReconStatus{
			models.StatusMatched, models.StatusForceMatched, models.StatusHanging,
			models.StatusUnmatched, models.StatusOrphan, models.StatusMismatch,
			models.StatusPartialMatch, models.StatusPartialMismatch,
			models.StatusDuplicate, models.StatusException,
		} {
			if n := summary.ByStatus[status]; n > 0 {
				fmt.Printf("  %-10s %d\n", status+":", n)
			}
		}
		fmt.Printf("  Matched amount:   %s\n", summary.MatchedAmount.StringFixed(2))
		fmt.Printf("  Unmatched amount: %s\n", summary.UnmatchedAmount.StringFixed(2))
		fmt.Printf("  TTUM required:    %d\n", summary.TTUMRequired)
		fmt.Printf("  Carry-over out:   %d\n", summary.CarryOverOut)
		return nil
	}

	var records []*models.ReconRecord
	switch {
	case lookupRRN != "":
		records = service.ByRRN(lookupRRN)
	case lookupUPI != "":
		records = service.ByUPITranID(lookupUPI)
	default:
		records = service.ByStatus(models.ReconStatus(lookupStatus))
	}

	if len(records) == 0 {
		fmt.Println("No records found.")
		return nil
	}
	if lookupJSON {
		return printJSON(records)
	}
	for _, rec := range records {
		printRecord(rec)
	}
	return nil
}

func printRecord(rec *models.ReconRecord) {
	fmt.Printf("%s  %s", rec.Key, rec.Status)
	if rec.ExceptionType != "" {
		fmt.Printf(" (%s)", rec.ExceptionType)
	}
	fmt.Println()
	fmt.Printf("  Cycle: %s  Direction: %s\n", rec.CycleID, rec.Direction)

	for _, source := range models.ReconSources() {
		txn := rec.Sources[source]
		if txn == nil {
			fmt.Printf("  %-6s -\n", source)
			continue
		}
		fmt.Printf("  %-6s %s %s on %s\n", source,
			txn.Amount.StringFixed(2), txn.DrCr, txn.TranDate.Format("2006-01-02"))
	}

	if rec.TTUMRequired {
		fmt.Printf("  TTUM: %s\n", rec.TTUMType)
	}
	if rec.Remarks != "" {
		fmt.Printf("  Remarks: %s\n", rec.Remarks)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
