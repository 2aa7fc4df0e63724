package reconciler

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"upi-reconciliation-service/internal/audit"
	"upi-reconciliation-service/internal/carryover"
	"upi-reconciliation-service/internal/matcher"
	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/internal/parsers"
	"upi-reconciliation-service/internal/reporter"
	"upi-reconciliation-service/internal/runstore"
	"upi-reconciliation-service/internal/settlement"
	"upi-reconciliation-service/pkg/atomicfile"
	"upi-reconciliation-service/pkg/errors"
	"upi-reconciliation-service/pkg/logger"
)

// runPhases counts the progress phases of one cycle run.
const runPhases = 8

// Request names the inputs for one settlement cycle.
type Request struct {
	// RunID groups every cycle processed in one reconciliation session.
	RunID string

	// CBSFile, SwitchFile and NPCIFile are the three mandatory sources.
	// The NPCI file name must follow the raw file naming convention; the
	// cycle identifier and business date are taken from it.
	CBSFile    string
	SwitchFile string
	NPCIFile   string

	// NTSLFile is the optional net settlement statement, cross-checked
	// against the cycle's matched totals.
	NTSLFile string

	// AdjustmentFile is the optional manual adjustment sheet consumed by
	// the force-match step.
	AdjustmentFile string

	// DRCFile is the optional dispute report. Disputed RRNs are flagged
	// before reports are emitted so they land on the DRC annexure.
	DRCFile string

	// CarryOverFile optionally seeds the hanging pool from another run's
	// state file. When empty the run's own hanging state is used, so
	// consecutive cycles of one run chain automatically.
	CarryOverFile string

	// Today anchors ageing buckets and report stamps. Zero means the
	// wall clock.
	Today time.Time

	// UserID is recorded on the run's audit entries.
	UserID string
}

// Validate checks that the request names the mandatory inputs and that
// file names follow their conventions.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("request is required")
	}
	if strings.TrimSpace(r.RunID) == "" {
		return fmt.Errorf("run ID is required")
	}
	if r.CBSFile == "" {
		return fmt.Errorf("CBS file path is required")
	}
	if r.SwitchFile == "" {
		return fmt.Errorf("switch file path is required")
	}
	if r.NPCIFile == "" {
		return fmt.Errorf("NPCI file path is required")
	}
	if _, err := parsers.ParseNPCIFileName(r.NPCIFile); err != nil {
		return err
	}
	if r.DRCFile != "" {
		if _, err := parsers.ParseDRCFileName(r.DRCFile); err != nil {
			return err
		}
	}
	return nil
}

// RunResult summarises one completed cycle.
type RunResult struct {
	RunID          string
	CycleID        string
	Summary        *matcher.Summary
	Manifest       *reporter.Manifest
	TTUMRows       map[settlement.Category]int
	VouchersPosted int
	VouchersFailed int
	NTSLVariance   string
	DRCMarked      int
	CarryOverOut   int
	Duration       time.Duration
	CompletedAt    time.Time
}

// RunCycle processes one settlement cycle end to end: ingest the source
// files, match, emit reports and Annexure IV sheets, generate vouchers and
// TTUM files, and persist the run state.
//
// The run writes nothing until matching has succeeded; a validation,
// ingestion or matching failure leaves the output directory untouched.
// Once emission begins the run holds the per-run lock, so a concurrent
// rollback of the same run is rejected rather than interleaved.
func (s *Service) RunCycle(ctx context.Context, req *Request) (*RunResult, error) {
	start := s.clock()
	s.initProgress(runPhases)

	s.updateProgress("Validating request", 0)
	if err := req.Validate(); err != nil {
		if _, ok := errors.AsReconcilerError(err); ok {
			return nil, err
		}
		return nil, errors.ValidationError(errors.CodeMissingField, "request", nil, err).
			WithSuggestion("Provide the run ID and the CBS, switch and NPCI file paths")
	}
	info, err := parsers.ParseNPCIFileName(req.NPCIFile)
	if err != nil {
		return nil, err
	}
	cycleID := info.CycleID
	if err := s.checkDuplicateCycle(req.RunID, cycleID); err != nil {
		return nil, err
	}

	log := s.log.WithFields(logger.Fields{"run_id": req.RunID, "cycle_id": cycleID})
	log.WithFields(logger.Fields{
		"npci_file": filepath.Base(req.NPCIFile),
		"file_date": info.FileDate.Format("2006-01-02"),
	}).Info("Cycle run started")

	s.updateProgress("Ingesting source files", 1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.ingest(ctx, req, info)
	if err != nil {
		return nil, err
	}

	s.updateProgress("Loading carry-over", 2)
	carryPath := req.CarryOverFile
	if carryPath == "" {
		carryPath = s.store.HangingStatePath(req.RunID)
	}
	carry := carryover.NewStore(carryPath).Load()

	s.updateProgress("Matching sources", 3)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := s.match(ctx, cycleID, info, data, carry)
	if err != nil {
		return nil, err
	}
	result.RunID = req.RunID
	s.setProgressCounts(data.rows, result.Summary.TotalRecords,
		result.Summary.ByStatus[models.StatusMatched]+result.Summary.ByStatus[models.StatusForceMatched])

	s.updateProgress("Applying DRC disputes", 4)
	drcMarked := 0
	if len(data.drc) > 0 {
		drcMarked = s.gen.ApplyDRC(result, data.drc)
		log.WithFields(logger.Fields{"marked": drcMarked}).Info("DRC disputes applied")
	}

	today := req.Today
	if today.IsZero() {
		today = s.clock()
	}
	today = models.DateOnly(today)

	// Everything from here on writes under the run directory. The lock
	// keeps a concurrent rollback of the same run from interleaving.
	s.updateProgress("Emitting reports", 5)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	release, err := s.acquireRunLock(req.RunID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.store.EnsureRunDir(req.RunID); err != nil {
		return nil, err
	}
	s.auditRecord(req, cycleID, audit.Entry{
		Action:  audit.ActionRunStarted,
		Details: fmt.Sprintf("cycle %s: %d rows ingested", cycleID, data.rows),
	})

	manifest, err := s.emitter.Write(&reporter.Request{
		Result:       result,
		ReportsDir:   s.store.ReportsDir(req.RunID, cycleID),
		AnnexureDir:  s.store.AnnexureDir(req.RunID, cycleID),
		Today:        today,
		NPCIFileName: filepath.Base(req.NPCIFile),
	})
	if err != nil {
		s.failRun(ctx, req, cycleID, "report emission", err)
		return nil, err
	}
	s.auditRecord(req, cycleID, audit.Entry{
		Action:  audit.ActionReportsEmitted,
		Details: fmt.Sprintf("cycle %s: %d report files", cycleID, len(manifest.Files)),
	})

	s.updateProgress("Generating accounting", 6)
	vouchers, err := s.gen.BuildVouchers(result)
	if err != nil {
		s.failRun(ctx, req, cycleID, "voucher generation", err)
		return nil, err
	}
	posted, failed := s.gen.PostVouchers(vouchers)

	ttumRows, err := s.gen.WriteTTUMFiles(s.store.TTUMDir(req.RunID, cycleID), result, today)
	if err != nil {
		s.failRun(ctx, req, cycleID, "TTUM generation", err)
		return nil, err
	}
	s.auditRecord(req, cycleID, audit.Entry{
		Action:  audit.ActionTTUMGenerated,
		Details: fmt.Sprintf("cycle %s: %d TTUM categories", cycleID, len(ttumRows)),
	})

	var check *settlement.NTSLCheck
	if len(data.ntsl) > 0 {
		check = s.gen.CrossCheckNTSL(data.ntsl, result.Summary)
		if note := check.VarianceNote(); note != "" {
			s.addWarning(note)
			log.WithFields(logger.Fields{
				"variance": check.Variance().StringFixed(2),
			}).Warn("NTSL variance outside tolerance")
		}
	}
	if _, err := s.gen.WriteGLStatement(s.store.GLDir(req.RunID), vouchers, check); err != nil {
		s.failRun(ctx, req, cycleID, "GL statement", err)
		return nil, err
	}
	s.auditRecord(req, cycleID, audit.Entry{
		Action:  audit.ActionVouchersPosted,
		Details: fmt.Sprintf("cycle %s: %d posted, %d failed", cycleID, posted, failed),
	})

	s.updateProgress("Persisting state", 7)
	if err := s.persist(req, cycleID, result, vouchers, check, data); err != nil {
		s.failRun(ctx, req, cycleID, "state persistence", err)
		return nil, err
	}

	completedAt := s.clock()
	runResult := &RunResult{
		RunID:          req.RunID,
		CycleID:        cycleID,
		Summary:        result.Summary,
		Manifest:       manifest,
		TTUMRows:       ttumRows,
		VouchersPosted: posted,
		VouchersFailed: failed,
		DRCMarked:      drcMarked,
		CarryOverOut:   len(result.CarryOver),
		Duration:       completedAt.Sub(start),
		CompletedAt:    completedAt,
	}
	if check != nil {
		runResult.NTSLVariance = check.Variance().StringFixed(2)
	}

	s.auditRecord(req, cycleID, audit.Entry{
		Action: audit.ActionRunCompleted,
		Details: fmt.Sprintf("cycle %s: %d records, %d matched, %d carried over",
			cycleID, result.Summary.TotalRecords,
			result.Summary.ByStatus[models.StatusMatched], len(result.CarryOver)),
	})
	s.updateProgress("Completed", runPhases)
	log.WithFields(logger.Fields{
		"records":    result.Summary.TotalRecords,
		"carry_over": len(result.CarryOver),
		"duration":   runResult.Duration.String(),
	}).Info("Cycle run completed")

	return runResult, nil
}

// match configures and runs the engine for one cycle.
func (s *Service) match(ctx context.Context, cycleID string, info *parsers.NPCIFileInfo, data *sourceData, carry *models.CarryOverState) (*matcher.Result, error) {
	cfg := s.config.Matching.Clone()
	cfg.CycleDate = info.FileDate

	engine, err := matcher.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	engine.SetCycle(cycleID)
	engine.LoadCBS(data.cbs)
	engine.LoadSwitch(data.sw)
	engine.LoadNPCI(data.npci)
	if len(data.adjustments) > 0 {
		engine.LoadAdjustments(data.adjustments)
	}
	if carry != nil && len(carry.Entries) > 0 {
		engine.LoadCarryOver(carry)
	}

	return engine.Run(ctx)
}

// persist saves the run's durable state: the reconciliation output, the
// hanging pool for the next cycle, the accounting output, and copies of
// the consumed source files.
func (s *Service) persist(req *Request, cycleID string, result *matcher.Result, vouchers []*models.Voucher, check *settlement.NTSLCheck, data *sourceData) error {
	if err := s.store.SaveReconOutput(req.RunID, result); err != nil {
		return err
	}

	carryStore := carryover.NewStore(s.store.HangingStatePath(req.RunID))
	if err := carryStore.Save(result.CarryOverState(s.clock())); err != nil {
		return err
	}

	acct := &runstore.AccountingOutput{
		RunID:       req.RunID,
		CycleID:     cycleID,
		GeneratedAt: s.clock(),
		Vouchers:    vouchers,
	}
	if check != nil {
		acct.NTSLVariance = check.Variance().StringFixed(2)
	}
	if err := s.store.SaveAccountingOutput(req.RunID, acct); err != nil {
		return err
	}

	// First cycle of a run seeds the download marker; later cycles must
	// not clobber a marker the operator already set.
	if _, err := os.Stat(s.store.DownloadMetaPath(req.RunID)); os.IsNotExist(err) {
		if err := s.store.SaveDownloadMeta(req.RunID, &runstore.DownloadMeta{}); err != nil {
			return err
		}
	}

	for _, f := range data.files {
		name := filepath.Base(f.path)
		dest := filepath.Join(s.store.UploadsDir(req.RunID), name)
		size, err := copyFile(f.path, dest)
		if err != nil {
			return err
		}
		if err := s.store.RecordUpload(req.RunID, runstore.UploadedFile{
			Name:       name,
			Source:     f.source,
			Path:       dest,
			SizeBytes:  size,
			UploadedAt: s.clock(),
		}); err != nil {
			return err
		}
		s.auditRecord(req, cycleID, audit.Entry{
			Action:       audit.ActionFileUploaded,
			Details:      fmt.Sprintf("%s (%s)", name, f.source),
			SourceSystem: string(f.source),
		})
	}

	return nil
}

// checkDuplicateCycle rejects reprocessing a settlement cycle whose NPCI
// file this run has already consumed. Rolling the cycle back removes the
// upload record, which re-opens the cycle.
func (s *Service) checkDuplicateCycle(runID, cycleID string) error {
	uploads, err := s.store.ListUploads(runID)
	if err != nil {
		return err
	}
	for _, u := range uploads {
		if u.Source != models.SourceNPCI {
			continue
		}
		prev, err := parsers.ParseNPCIFileName(u.Name)
		if err != nil {
			continue
		}
		if prev.CycleID == cycleID {
			return errors.ValidationError(errors.CodeDuplicateCycle, "cycle_id", cycleID, nil).
				WithContext("run_id", runID).
				WithContext("previous_file", u.Name).
				WithSuggestion("Each settlement cycle is processed once per run; roll back the cycle before re-uploading")
		}
	}
	return nil
}

// acquireRunLock takes the per-run lock that serialises emission against
// rollback. The returned release removes the lock; a lock already removed
// by an operator counts as released.
func (s *Service) acquireRunLock(runID string) (func(), error) {
	path := s.store.LockPath(runID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.FileError(errors.CodeDirectoryError, filepath.Dir(path), err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.RollbackError(errors.CodeLockBusy, runID,
				fmt.Errorf("lock file exists: %s", path)).
				WithSuggestion("Another operation holds this run; retry once it finishes")
		}
		return nil, errors.FileError(errors.CodeFilePermission, path, err)
	}
	fmt.Fprintf(f, "operation_id=%s\nacquired_at=%s\npid=%d\n",
		uuid.NewString(), s.clock().Format(time.RFC3339), os.Getpid())
	f.Close()

	return func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.WithFields(logger.Fields{
				"path":  path,
				"error": err.Error(),
			}).Warn("Run lock not released")
		}
	}, nil
}

// auditRecord appends an entry to the cycle's audit trail. Audit failures
// are logged but never fail the run.
func (s *Service) auditRecord(req *Request, cycleID string, entry audit.Entry) {
	trail, err := audit.NewTrail(
		s.store.AuditCycleDir(req.RunID, cycleID),
		audit.WithMaxEntries(s.config.MaxAuditEntries),
		audit.WithClock(s.clock),
	)
	if err != nil {
		s.log.WithError(err).Warn("Audit trail unavailable")
		return
	}
	entry.RunID = req.RunID
	entry.UserID = req.UserID
	if entry.SourceSystem == "" {
		entry.SourceSystem = "reconciler"
	}
	if _, err := trail.Record(entry); err != nil {
		s.log.WithFields(logger.Fields{
			"action": entry.Action,
			"error":  err.Error(),
		}).Warn("Audit entry not recorded")
	}
}

// failRun records a RUN_FAILED audit entry for failures after emission has
// begun. Cancellation records nothing: the caller tears the run down and
// the partial output is removed by rollback.
func (s *Service) failRun(ctx context.Context, req *Request, cycleID, phase string, err error) {
	if ctx.Err() != nil {
		return
	}
	s.auditRecord(req, cycleID, audit.Entry{
		Action:  audit.ActionRunFailed,
		Level:   audit.LevelError,
		Details: fmt.Sprintf("%s failed: %v", phase, err),
	})
}

// copyFile copies a source file into the uploads directory and reports the
// copied size.
func copyFile(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, errors.FileError(errors.CodeFileNotFound, src, err)
	}
	defer in.Close()

	var n int64
	err = atomicfile.WriteWith(dest, 0o644, func(w io.Writer) error {
		var copyErr error
		n, copyErr = io.Copy(w, in)
		return copyErr
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
