package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"upi-reconciliation-service/internal/audit"
	"upi-reconciliation-service/internal/runstore"
)

// Flags for the audit command
var (
	auditRunID   string
	auditCycle   string
	auditUser    string
	auditAction  string
	auditResolve string
	auditJSON    bool
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect a run's audit trail",
	Long: `Audit lists the entries recorded for a run: uploads, emissions,
voucher postings and rollbacks land in the run's append-only daily logs,
while each cycle's processing trail lives under its cycle directory
(--cycle selects it).

--resolve marks one entry resolved by its audit ID; nothing else about
an entry can be changed.

Examples:
  reconciler audit --run-id RUN-20260104
  reconciler audit --run-id RUN-20260104 --cycle 1C
  reconciler audit --run-id RUN-20260104 --action ROLLBACK_STARTED
  reconciler audit --run-id RUN-20260104 --resolve 6f1f2c3d-...`,

	PreRunE: validateAuditFlags,
	RunE:    runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&auditRunID, "run-id", "", "run whose trail to inspect (required)")
	auditCmd.Flags().StringVar(&auditCycle, "cycle", "", "inspect one cycle's processing trail instead of the run logs")
	auditCmd.Flags().StringVar(&auditUser, "user", "", "filter entries by operator")
	auditCmd.Flags().StringVar(&auditAction, "action", "", "filter entries by action")
	auditCmd.Flags().StringVar(&auditResolve, "resolve", "", "mark the entry with this audit ID resolved")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "emit JSON instead of text")

	auditCmd.MarkFlagRequired("run-id")
}

func validateAuditFlags(cmd *cobra.Command, args []string) error {
	if auditRunID == "" {
		return fmt.Errorf("run-id is required")
	}
	if auditUser != "" && auditAction != "" {
		return fmt.Errorf("--user and --action cannot be combined")
	}
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	store, err := runstore.NewStore(viper.GetString("output_dir"))
	if err != nil {
		return err
	}

	dir := store.AuditLogsDir(auditRunID)
	if auditCycle != "" {
		dir = store.AuditCycleDir(auditRunID, auditCycle)
	}
	trail, err := audit.NewTrail(dir)
	if err != nil {
		return err
	}

	if auditResolve != "" {
		if err := trail.Resolve(auditResolve); err != nil {
			return err
		}
		fmt.Printf("Entry %s resolved.\n", auditResolve)
		return nil
	}

	var entries []audit.Entry
	switch {
	case auditAction != "":
		entries, err = trail.ByAction(auditAction)
	case auditUser != "":
		entries, err = trail.ByUser(auditUser)
	default:
		entries, err = trail.All()
	}
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No audit entries found.")
		return nil
	}
	if auditJSON {
		return printJSON(entries)
	}
	for _, e := range entries {
		fmt.Printf("%s  %-5s %-20s %s", e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Level, e.Action, e.Details)
		if e.UserID != "" {
			fmt.Printf(" (by %s)", e.UserID)
		}
		if e.Resolved {
			fmt.Print(" [resolved]")
		}
		fmt.Println()
	}
	return nil
}
