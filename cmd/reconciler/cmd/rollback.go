package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"upi-reconciliation-service/internal/rollback"
	"upi-reconciliation-service/internal/runstore"
	"upi-reconciliation-service/pkg/errors"
)

// Flags for the rollback command
var (
	rollbackRunID   string
	rollbackLevel   string
	rollbackReason  string
	rollbackConfirm bool
	rollbackFile    string
	rollbackTargets []string
	rollbackCycle   string
	rollbackUser    string
	rollbackHistory bool
)

// lockRetryInterval paces retries while waiting out a busy run lock.
const lockRetryInterval = 200 * time.Millisecond

// rollbackCmd represents the rollback command
var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll reconciliation state back at one of five levels",
	Long: `Rollback unwinds a run's state at the requested scope:

  WHOLE_PROCESS  back the run directory up, then delete it
                 (requires --reason and --confirm)
  INGESTION      remove one uploaded file and its metadata (--file)
  MID_RECON      flip matched records back to orphan (--targets to narrow)
  CYCLE_WISE     mid-recon scoped to one cycle plus its emitted
                 artefacts (--cycle 1C..10C)
  ACCOUNTING     return generated vouchers to matched/pending; refused
                 once the TTUM files were downloaded

Every operation appends to the shared history file; --history lists it.

Examples:
  reconciler rollback --run-id RUN-20260104 --level CYCLE_WISE --cycle 1C
  reconciler rollback --run-id RUN-20260104 --level INGESTION --file cbs_1c.csv
  reconciler rollback --run-id RUN-20260104 --level WHOLE_PROCESS \
    --reason "duplicate upload" --confirm
  reconciler rollback --history`,

	PreRunE: validateRollbackFlags,
	RunE:    runRollback,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)

	rollbackCmd.Flags().StringVar(&rollbackRunID, "run-id", "", "run to roll back (required unless --history)")
	rollbackCmd.Flags().StringVar(&rollbackLevel, "level", "", "rollback scope: WHOLE_PROCESS, INGESTION, MID_RECON, CYCLE_WISE or ACCOUNTING")
	rollbackCmd.Flags().StringVar(&rollbackReason, "reason", "", "why the rollback is needed (required for WHOLE_PROCESS)")
	rollbackCmd.Flags().BoolVar(&rollbackConfirm, "confirm", false, "confirm a WHOLE_PROCESS rollback")
	rollbackCmd.Flags().StringVar(&rollbackFile, "file", "", "uploaded file an INGESTION rollback removes")
	rollbackCmd.Flags().StringSliceVar(&rollbackTargets, "targets", nil, "RRNs narrowing a MID_RECON rollback")
	rollbackCmd.Flags().StringVar(&rollbackCycle, "cycle", "", "cycle a CYCLE_WISE rollback removes (1C..10C)")
	rollbackCmd.Flags().StringVar(&rollbackUser, "user", "", "operator recorded in history and audit trail")
	rollbackCmd.Flags().BoolVar(&rollbackHistory, "history", false, "list past rollback operations and exit")
}

func validateRollbackFlags(cmd *cobra.Command, args []string) error {
	if rollbackHistory {
		return nil
	}
	if rollbackRunID == "" {
		return fmt.Errorf("run-id is required")
	}
	if rollbackLevel == "" {
		return fmt.Errorf("level is required")
	}
	if _, err := rollback.ParseLevel(rollbackLevel); err != nil {
		return fmt.Errorf("invalid level %q. Valid levels: WHOLE_PROCESS, INGESTION, MID_RECON, CYCLE_WISE, ACCOUNTING", rollbackLevel)
	}
	return nil
}

func runRollback(cmd *cobra.Command, args []string) error {
	store, err := runstore.NewStore(viper.GetString("output_dir"))
	if err != nil {
		return err
	}
	manager, err := rollback.NewManager(store)
	if err != nil {
		return err
	}

	if rollbackHistory {
		return printRollbackHistory(manager)
	}

	level, err := rollback.ParseLevel(rollbackLevel)
	if err != nil {
		return err
	}

	request := rollback.Request{
		Level:    level,
		RunID:    rollbackRunID,
		UserID:   rollbackUser,
		Reason:   rollbackReason,
		Confirm:  rollbackConfirm,
		FileName: rollbackFile,
		Targets:  rollbackTargets,
		CycleID:  rollbackCycle,
	}

	outcome, err := executeWithLockTimeout(context.Background(), manager, request)
	if err != nil {
		return err
	}

	fmt.Printf("Rollback %s completed\n", outcome.OperationID)
	fmt.Printf("  Level:    %s\n", outcome.Level)
	fmt.Printf("  Run:      %s\n", outcome.RunID)
	fmt.Printf("  Affected: %d\n", outcome.Affected)
	if outcome.BackupPath != "" {
		fmt.Printf("  Backup:   %s\n", outcome.BackupPath)
	}
	return nil
}

// executeWithLockTimeout retries a lock-busy rollback until the configured
// rollback_lock_timeout_ms elapses. The manager itself never queues; with
// no timeout configured the busy error surfaces immediately.
func executeWithLockTimeout(ctx context.Context, manager *rollback.Manager, request rollback.Request) (*rollback.Outcome, error) {
	timeout := time.Duration(viper.GetInt("rollback_lock_timeout_ms")) * time.Millisecond
	deadline := time.Now().Add(timeout)

	for {
		outcome, err := manager.Execute(ctx, request)
		if err == nil || !errors.IsLockBusy(err) {
			return outcome, err
		}
		if timeout <= 0 || !time.Now().Add(lockRetryInterval).Before(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func printRollbackHistory(manager *rollback.Manager) error {
	entries, err := manager.History()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No rollback operations recorded.")
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%-22s %-13s %-12s %-11s affected=%d",
			e.OperationID, e.Level, e.RunID, e.Status, e.Affected)
		if e.CycleID != "" {
			fmt.Printf(" cycle=%s", e.CycleID)
		}
		if e.FileName != "" {
			fmt.Printf(" file=%s", e.FileName)
		}
		if e.Error != "" {
			fmt.Printf(" error=%q", e.Error)
		}
		fmt.Println()
	}
	return nil
}
