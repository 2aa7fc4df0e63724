package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"upi-reconciliation-service/cmd/reconciler/config"
	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/internal/reconciler"
	"upi-reconciliation-service/internal/runstore"
	"upi-reconciliation-service/internal/settlement"
)

// Flags for the run command
var (
	runID          string
	cbsFile        string
	switchFile     string
	npciFile       string
	ntslFile       string
	adjustmentFile string
	drcFile        string
	carryOverFile  string
	businessDate   string
	runUser        string
	showProgress   bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile one settlement cycle",
	Long: `Run ingests the CBS, switch and NPCI files for one settlement cycle,
matches them three ways, and writes the cycle's reports, Annexure IV
sheets, vouchers, TTUM files and GL statement under the run directory.

The cycle identifier and business date come from the NPCI file name,
which must follow the raw file convention, for example
ISSRP2PAXIS040126_1C.csv. Hanging records carry into the next cycle of
the same run automatically.

Examples:
  # First cycle of a run
  reconciler run --run-id RUN-20260104 --cbs-file cbs_1c.csv \
    --switch-file switch_1c.csv --npci-file ISSRP2PAXIS040126_1C.csv

  # Later cycle with the optional NTSL cross-check and dispute report
  reconciler run --run-id RUN-20260104 --cbs-file cbs_2c.csv \
    --switch-file switch_2c.csv --npci-file ISSRP2PAXIS040126_2C.csv \
    --ntsl-file ntsl_2c.csv --drc-file DRCREPORTAXIS040126.csv

  # Continue another run's hanging pool
  reconciler run --run-id RUN-20260105 --carry-over-file \
    output/RUN-20260104/hanging_state.json ...`,

	PreRunE: validateRunFlags,
	RunE:    runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Required flags
	runCmd.Flags().StringVar(&runID, "run-id", "", "run identifier grouping this session's cycles (required)")
	runCmd.Flags().StringVar(&cbsFile, "cbs-file", "", "path to the CBS extract (required)")
	runCmd.Flags().StringVar(&switchFile, "switch-file", "", "path to the switch log (required)")
	runCmd.Flags().StringVar(&npciFile, "npci-file", "", "path to the NPCI raw file, named per convention (required)")

	// Optional source flags
	runCmd.Flags().StringVar(&ntslFile, "ntsl-file", "", "net settlement statement for the NTSL cross-check")
	runCmd.Flags().StringVar(&adjustmentFile, "adjustment-file", "", "manual adjustment sheet (force-match, corrections)")
	runCmd.Flags().StringVar(&drcFile, "drc-file", "", "dispute report; disputed RRNs are flagged before emission")
	runCmd.Flags().StringVar(&carryOverFile, "carry-over-file", "", "hanging state file seeding the carry-over pool")

	// Run metadata flags
	runCmd.Flags().StringVar(&businessDate, "business-date", "", "ageing anchor date (YYYY-MM-DD, default today)")
	runCmd.Flags().StringVar(&runUser, "user", "", "operator recorded in the audit trail")
	runCmd.Flags().BoolVar(&showProgress, "progress", false, "show phase progress on stderr")

	runCmd.MarkFlagRequired("run-id")
	runCmd.MarkFlagRequired("cbs-file")
	runCmd.MarkFlagRequired("switch-file")
	runCmd.MarkFlagRequired("npci-file")

	// Bind flags to viper
	viper.BindPFlag("run-id", runCmd.Flags().Lookup("run-id"))
	viper.BindPFlag("cbs-file", runCmd.Flags().Lookup("cbs-file"))
	viper.BindPFlag("switch-file", runCmd.Flags().Lookup("switch-file"))
	viper.BindPFlag("npci-file", runCmd.Flags().Lookup("npci-file"))
	viper.BindPFlag("ntsl-file", runCmd.Flags().Lookup("ntsl-file"))
	viper.BindPFlag("adjustment-file", runCmd.Flags().Lookup("adjustment-file"))
	viper.BindPFlag("drc-file", runCmd.Flags().Lookup("drc-file"))
	viper.BindPFlag("carry-over-file", runCmd.Flags().Lookup("carry-over-file"))
	viper.BindPFlag("business-date", runCmd.Flags().Lookup("business-date"))
	viper.BindPFlag("user", runCmd.Flags().Lookup("user"))
	viper.BindPFlag("progress", runCmd.Flags().Lookup("progress"))
}

func validateRunFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	runID = viper.GetString("run-id")
	cbsFile = resolveSourcePath(viper.GetString("cbs-file"))
	switchFile = resolveSourcePath(viper.GetString("switch-file"))
	npciFile = resolveSourcePath(viper.GetString("npci-file"))
	ntslFile = resolveSourcePath(viper.GetString("ntsl-file"))
	adjustmentFile = resolveSourcePath(viper.GetString("adjustment-file"))
	drcFile = resolveSourcePath(viper.GetString("drc-file"))
	carryOverFile = viper.GetString("carry-over-file")
	businessDate = viper.GetString("business-date")
	runUser = viper.GetString("user")
	showProgress = viper.GetBool("progress")

	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run-id is required")
	}

	required := []struct {
		path        string
		description string
	}{
		{cbsFile, "CBS file"},
		{switchFile, "switch file"},
		{npciFile, "NPCI file"},
	}
	for _, f := range required {
		if err := validateFileExists(f.path, f.description); err != nil {
			return err
		}
	}

	for _, f := range []struct {
		path        string
		description string
	}{
		{ntslFile, "NTSL file"},
		{adjustmentFile, "adjustment file"},
		{drcFile, "DRC file"},
		{carryOverFile, "carry-over file"},
	} {
		if f.path == "" {
			continue
		}
		if err := validateFileExists(f.path, f.description); err != nil {
			return err
		}
	}

	if businessDate != "" {
		if _, err := time.Parse("2006-01-02", businessDate); err != nil {
			return fmt.Errorf("invalid business date format. Use YYYY-MM-DD: %w", err)
		}
	}

	return nil
}

// resolveSourcePath resolves a bare file name against the configured
// upload directory. Paths carrying a separator are used as given.
func resolveSourcePath(path string) string {
	if path == "" || strings.ContainsRune(path, os.PathSeparator) {
		return path
	}
	uploadDir := viper.GetString("upload_dir")
	if uploadDir == "" {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(uploadDir, path)
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation run %s...\n", runID)
		fmt.Fprintf(os.Stderr, "CBS file: %s\n", cbsFile)
		fmt.Fprintf(os.Stderr, "Switch file: %s\n", switchFile)
		fmt.Fprintf(os.Stderr, "NPCI file: %s\n", npciFile)
	}

	store, err := runstore.NewStore(viper.GetString("output_dir"))
	if err != nil {
		return err
	}

	serviceConfig, err := config.CreateServiceConfig()
	if err != nil {
		return err
	}

	service, err := reconciler.NewService(store, serviceConfig)
	if err != nil {
		return err
	}

	if showProgress {
		service.AddProgressCallback(func(progress *reconciler.Progress) {
			fmt.Fprintf(os.Stderr, "\r[%d/%d] %s (%.1f%% complete)",
				progress.CompletedPhases, progress.TotalPhases,
				progress.CurrentPhase, progress.PercentComplete)
		})
	}

	request := &reconciler.Request{
		RunID:          runID,
		CBSFile:        cbsFile,
		SwitchFile:     switchFile,
		NPCIFile:       npciFile,
		NTSLFile:       ntslFile,
		AdjustmentFile: adjustmentFile,
		DRCFile:        drcFile,
		CarryOverFile:  carryOverFile,
		UserID:         runUser,
	}
	if businessDate != "" {
		// Already validated in PreRunE.
		request.Today, _ = time.Parse("2006-01-02", businessDate)
	}

	result, err := service.RunCycle(ctx, request)
	if showProgress {
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err != nil {
		if progress := service.GetProgress(); progress != nil {
			for _, w := range progress.Warnings {
				fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
			}
		}
		return err
	}

	printRunResult(result)

	if progress := service.GetProgress(); progress != nil {
		for _, w := range progress.Warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
		}
	}

	return nil
}

// printRunResult writes the cycle outcome to stdout.
func printRunResult(result *reconciler.RunResult) {
	s := result.Summary
	fmt.Printf("Cycle %s of run %s reconciled in %v\n", result.CycleID, result.RunID,
		result.Duration.Round(time.Millisecond))
	fmt.Printf("  Records:    %d total (%d matched, %d hanging, %d unmatched, %d orphan)\n",
		s.TotalRecords,
		s.ByStatus[models.StatusMatched]+s.ByStatus[models.StatusForceMatched],
		s.ByStatus[models.StatusHanging],
		s.ByStatus[models.StatusUnmatched],
		s.ByStatus[models.StatusOrphan])
	fmt.Printf("  Matched:    %s, unmatched %s\n",
		s.MatchedAmount.StringFixed(2), s.UnmatchedAmount.StringFixed(2))
	fmt.Printf("  Reports:    %d files\n", len(result.Manifest.Files))

	if len(result.TTUMRows) > 0 {
		var parts []string
		for _, category := range settlement.Categories() {
			if n := result.TTUMRows[category]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s %d", category, n))
			}
		}
		fmt.Printf("  TTUM:       %s\n", strings.Join(parts, ", "))
	}

	fmt.Printf("  Vouchers:   %d posted, %d failed\n", result.VouchersPosted, result.VouchersFailed)
	if result.NTSLVariance != "" {
		fmt.Printf("  NTSL:       variance %s\n", result.NTSLVariance)
	}
	if result.DRCMarked > 0 {
		fmt.Printf("  Disputes:   %d records flagged\n", result.DRCMarked)
	}
	if result.CarryOverOut > 0 {
		fmt.Printf("  Carry-over: %d records into the next cycle\n", result.CarryOverOut)
	}
}
