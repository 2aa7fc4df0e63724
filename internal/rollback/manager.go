// Package rollback unwinds reconciliation state at five scopes, from a
// single uploaded file up to the whole run directory.
//
// Every operation follows the same lifecycle: acquire the run's exclusive
// lock, validate the pre-state the level depends on, snapshot what will be
// mutated, mutate atomically, record the outcome in the shared history, and
// release the lock. Concurrent rollbacks against one run are refused with a
// busy error rather than queued.
package rollback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"upi-reconciliation-service/internal/audit"
	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/internal/parsers"
	"upi-reconciliation-service/internal/runstore"
	"upi-reconciliation-service/pkg/atomicfile"
	"upi-reconciliation-service/pkg/errors"
	"upi-reconciliation-service/pkg/logger"
)

// Request describes one rollback operation.
type Request struct {
	Level  Level
	RunID  string
	UserID string

	// Reason is mandatory for WHOLE_PROCESS and recorded in the history
	// for every level that supplies one.
	Reason string

	// Confirm must be true for WHOLE_PROCESS: deleting a run directory is
	// not something a mistyped command should reach.
	Confirm bool

	// FileName names the uploaded file an INGESTION rollback removes.
	FileName string

	// Targets optionally narrows a MID_RECON rollback to specific RRNs.
	// Empty means every matched record.
	Targets []string

	// CycleID scopes a CYCLE_WISE rollback; must be 1C through 10C.
	CycleID string
}

// Outcome reports what a completed rollback did.
type Outcome struct {
	OperationID string
	Level       Level
	RunID       string
	Affected    int
	BackupPath  string
}

// Manager executes rollback operations against one output tree.
type Manager struct {
	store   *runstore.Store
	history *history
	now     func() time.Time
	log     logger.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source; tests pin it for stable operation
// IDs and backup names.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a manager over the given run store.
func NewManager(store *runstore.Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "run_store", nil,
			fmt.Errorf("rollback manager requires a run store"))
	}
	m := &Manager{
		store:   store,
		history: &history{path: store.HistoryPath()},
		now:     time.Now,
		log:     logger.GetGlobalLogger().WithComponent("rollback"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// History returns every recorded rollback operation, oldest first.
func (m *Manager) History() ([]HistoryEntry, error) {
	return m.history.load()
}

// Execute runs one rollback operation end to end. On success the returned
// outcome names the operation and what it touched; on failure the history
// entry is marked FAILED and any backup taken is preserved.
func (m *Manager) Execute(ctx context.Context, req Request) (*Outcome, error) {
	if err := m.validate(req); err != nil {
		return nil, err
	}

	started := m.now()
	seq, err := m.history.nextSequence()
	if err != nil {
		return nil, err
	}
	opID := newOperationID(req.Level, seq, started)

	if err := m.history.append(HistoryEntry{
		OperationID: opID,
		Level:       req.Level,
		RunID:       req.RunID,
		UserID:      req.UserID,
		Status:      StatusPending,
		Reason:      req.Reason,
		Targets:     req.Targets,
		CycleID:     req.CycleID,
		FileName:    req.FileName,
		StartedAt:   started,
	}); err != nil {
		return nil, err
	}

	lock := &lockFile{path: m.store.LockPath(req.RunID), runID: req.RunID}
	if err := lock.acquire(opID, started); err != nil {
		m.markFailed(opID, err)
		return nil, err
	}

	if err := m.history.update(opID, func(e *HistoryEntry) {
		e.Status = StatusInProgress
	}); err != nil {
		lock.release()
		return nil, err
	}

	m.log.WithFields(logger.Fields{
		"operation_id": opID,
		"level":        req.Level,
		"run_id":       req.RunID,
	}).Info("Rollback started")
	m.auditRecord(req, audit.Entry{
		Action: audit.ActionRollbackStarted, RunID: req.RunID, UserID: req.UserID,
		Level:   audit.LevelWarn,
		Details: fmt.Sprintf("%s rollback %s: %s", req.Level, opID, req.Reason),
	})

	outcome, execErr := m.dispatch(ctx, req, opID, started)
	if execErr != nil {
		m.markFailed(opID, execErr)
		m.auditRecord(req, audit.Entry{
			Action: audit.ActionRollbackFailed, RunID: req.RunID, UserID: req.UserID,
			Level: audit.LevelError, Details: fmt.Sprintf("%s: %v", opID, execErr),
		})
		lock.release()
		m.log.WithFields(logger.Fields{
			"operation_id": opID,
			"error":        execErr.Error(),
		}).Error("Rollback failed")
		return nil, execErr
	}

	if err := m.history.update(opID, func(e *HistoryEntry) {
		e.Status = StatusCompleted
		e.Affected = outcome.Affected
		e.BackupPath = outcome.BackupPath
		e.FinishedAt = m.now()
	}); err != nil {
		lock.release()
		return nil, err
	}

	// A whole-process rollback deleted the run directory; recording a
	// completion entry there would resurrect it. The history entry is the
	// durable record for that level.
	if req.Level != LevelWholeProcess {
		m.auditRecord(req, audit.Entry{
			Action: audit.ActionRollbackCompleted, RunID: req.RunID, UserID: req.UserID,
			Level: audit.LevelInfo, Details: fmt.Sprintf("%s affected %d", opID, outcome.Affected),
		})
	}

	if err := lock.release(); err != nil {
		return nil, err
	}

	m.log.WithFields(logger.Fields{
		"operation_id": opID,
		"affected":     outcome.Affected,
	}).Info("Rollback completed")
	return outcome, nil
}

func (m *Manager) validate(req Request) error {
	if !req.Level.IsValid() {
		return errors.RollbackError(errors.CodeUnknownLevel, string(req.Level), nil)
	}
	if strings.TrimSpace(req.RunID) == "" {
		return errors.ValidationError(errors.CodeMissingField, "run_id", req.RunID,
			fmt.Errorf("rollback requests must name a run"))
	}

	switch req.Level {
	case LevelWholeProcess:
		if strings.TrimSpace(req.Reason) == "" {
			return errors.RollbackError(errors.CodePreconditionFailed, req.RunID,
				fmt.Errorf("whole-process rollback requires a reason"))
		}
		if !req.Confirm {
			return errors.RollbackError(errors.CodePreconditionFailed, req.RunID,
				fmt.Errorf("whole-process rollback requires explicit confirmation"))
		}
	case LevelIngestion:
		if strings.TrimSpace(req.FileName) == "" {
			return errors.ValidationError(errors.CodeMissingField, "file_name", req.FileName,
				fmt.Errorf("ingestion rollback must name the uploaded file"))
		}
	case LevelCycleWise:
		if !parsers.ValidCycleID(req.CycleID) {
			return errors.ValidationError(errors.CodeOutOfRange, "cycle_id", req.CycleID,
				fmt.Errorf("cycle must be 1C through 10C"))
		}
	}
	return nil
}

func (m *Manager) dispatch(ctx context.Context, req Request, opID string, started time.Time) (*Outcome, error) {
	// Abort at the boundary before any mutation; a rollback is never left
	// half-applied by cancellation.
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryRollback, errors.CodePreconditionFailed,
			"rollback cancelled before mutation")
	}

	switch req.Level {
	case LevelWholeProcess:
		return m.wholeProcess(req, opID, started)
	case LevelIngestion:
		return m.ingestion(req, opID)
	case LevelMidRecon:
		return m.midRecon(req, opID)
	case LevelCycleWise:
		return m.cycleWise(req, opID)
	case LevelAccounting:
		return m.accounting(req, opID)
	default:
		return nil, errors.RollbackError(errors.CodeUnknownLevel, string(req.Level), nil)
	}
}

// wholeProcess backs the run directory up under the output root, then
// deletes it. The backup is preserved on every failure path.
func (m *Manager) wholeProcess(req Request, opID string, started time.Time) (*Outcome, error) {
	runDir := m.store.RunDir(req.RunID)
	info, err := os.Stat(runDir)
	if err != nil || !info.IsDir() {
		return nil, errors.RollbackError(errors.CodePreconditionFailed, req.RunID,
			fmt.Errorf("run directory does not exist: %s", runDir))
	}

	backup := m.store.BackupPath(req.RunID, started)
	if err := atomicfile.CopyTree(runDir, backup); err != nil {
		return nil, errors.RollbackError(errors.CodeSnapshotFailed, req.RunID, err)
	}

	if err := os.RemoveAll(runDir); err != nil {
		return nil, errors.FileError(errors.CodeDirectoryError, runDir, err).
			WithContext("backup_path", backup).
			WithSuggestion("the backup is intact; remove the run directory by hand and retry")
	}

	return &Outcome{OperationID: opID, Level: req.Level, RunID: req.RunID,
		Affected: 1, BackupPath: backup}, nil
}

// ingestion removes one uploaded file and its metadata entry. An already
// missing file is fine: the point is that it is gone.
func (m *Manager) ingestion(req Request, opID string) (*Outcome, error) {
	uploads, err := m.store.ListUploads(req.RunID)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(m.store.UploadsDir(req.RunID), req.FileName)
	listed := false
	for _, u := range uploads {
		if u.Name == req.FileName {
			listed = true
			if u.Path != "" {
				path = u.Path
			}
			break
		}
	}

	removed := false
	if err := os.Remove(path); err == nil {
		removed = true
	} else if !os.IsNotExist(err) {
		return nil, errors.FileError(errors.CodeFilePermission, path, err)
	}

	if listed {
		if err := m.store.RemoveUpload(req.RunID, req.FileName); err != nil {
			return nil, err
		}
	}

	affected := 0
	if removed || listed {
		affected = 1
	}
	return &Outcome{OperationID: opID, Level: req.Level, RunID: req.RunID, Affected: affected}, nil
}

// midRecon flips matched records back to ORPHAN, preserving each record's
// prior state in its rollback trail.
func (m *Manager) midRecon(req Request, opID string) (*Outcome, error) {
	result, err := m.store.LoadReconOutput(req.RunID)
	if err != nil {
		return nil, errors.RollbackError(errors.CodePreconditionFailed, req.RunID,
			fmt.Errorf("no reconciliation output to roll back: %v", err))
	}

	targets := make(map[string]bool, len(req.Targets))
	for _, t := range req.Targets {
		targets[t] = true
	}

	flipped := 0
	at := m.now()
	for _, key := range result.Order {
		rec := result.Records[key]
		if rec == nil || rec.Status != models.StatusMatched {
			continue
		}
		if len(targets) > 0 && !targets[rec.Key] && !targets[rec.RRN] {
			continue
		}
		rec.SnapshotFor(opID, at)
		rec.Status = models.StatusOrphan
		flipped++
	}
	result.RecountStatus()

	if err := m.store.SaveReconOutput(req.RunID, result); err != nil {
		return nil, err
	}
	return &Outcome{OperationID: opID, Level: req.Level, RunID: req.RunID, Affected: flipped}, nil
}

// cycleWise is midRecon scoped to one settlement cycle, plus removal of the
// cycle's emitted artefacts.
func (m *Manager) cycleWise(req Request, opID string) (*Outcome, error) {
	result, err := m.store.LoadReconOutput(req.RunID)
	if err != nil {
		return nil, errors.RollbackError(errors.CodePreconditionFailed, req.RunID,
			fmt.Errorf("no reconciliation output to roll back: %v", err))
	}

	flipped := 0
	at := m.now()
	for _, key := range result.Order {
		rec := result.Records[key]
		if rec == nil || rec.Status != models.StatusMatched || rec.CycleID != req.CycleID {
			continue
		}
		rec.SnapshotFor(opID, at)
		rec.Status = models.StatusOrphan
		flipped++
	}
	result.RecountStatus()

	if err := m.store.SaveReconOutput(req.RunID, result); err != nil {
		return nil, err
	}

	for _, dir := range m.store.CycleDirs(req.RunID, req.CycleID) {
		if err := os.RemoveAll(dir); err != nil {
			return nil, errors.FileError(errors.CodeDirectoryError, dir, err).
				WithContext("operation_id", opID)
		}
	}

	return &Outcome{OperationID: opID, Level: req.Level, RunID: req.RunID, Affected: flipped}, nil
}

// accounting returns generated vouchers to matched/pending, moving their GL
// entries into the snapshot trail. Refused once TTUM files have been
// downloaded: externally visible postings cannot be silently unwound.
func (m *Manager) accounting(req Request, opID string) (*Outcome, error) {
	meta, err := m.store.LoadDownloadMeta(req.RunID)
	if err != nil {
		return nil, err
	}
	if meta.IsDownloaded {
		return nil, errors.RollbackError(errors.CodePreconditionFailed, req.RunID,
			fmt.Errorf("TTUM files were downloaded by %s at %s", meta.DownloadedBy,
				meta.DownloadedAt.Format(time.RFC3339)))
	}

	out, err := m.store.LoadAccountingOutput(req.RunID)
	if err != nil {
		return nil, errors.RollbackError(errors.CodePreconditionFailed, req.RunID,
			fmt.Errorf("no accounting output to roll back: %v", err))
	}

	flipped := 0
	at := m.now()
	for _, v := range out.Vouchers {
		if v.Status != models.VoucherGenerated {
			continue
		}
		v.Snapshot(opID, at)
		v.Status = models.VoucherMatchedPending
		v.GLEntries = nil
		flipped++
	}

	if err := m.store.SaveAccountingOutput(req.RunID, out); err != nil {
		return nil, err
	}
	return &Outcome{OperationID: opID, Level: req.Level, RunID: req.RunID, Affected: flipped}, nil
}

func (m *Manager) markFailed(opID string, cause error) {
	if err := m.history.update(opID, func(e *HistoryEntry) {
		e.Status = StatusFailed
		e.Error = cause.Error()
		e.FinishedAt = m.now()
	}); err != nil {
		m.log.WithFields(logger.Fields{
			"operation_id": opID,
			"error":        err.Error(),
		}).Error("Failed to record rollback failure in history")
	}
}

// auditRecord appends to the run's audit trail, best effort: a rollback
// must not abort because the audit write failed.
func (m *Manager) auditRecord(req Request, entry audit.Entry) {
	trail, err := audit.NewTrail(m.store.AuditLogsDir(req.RunID))
	if err != nil {
		return
	}
	if entry.SourceSystem == "" {
		entry.SourceSystem = "rollback"
	}
	if _, err := trail.Record(entry); err != nil {
		m.log.WithFields(logger.Fields{
			"run_id": req.RunID,
			"error":  err.Error(),
		}).Warn("Failed to write rollback audit entry")
	}
}
