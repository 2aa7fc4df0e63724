// Package runstore defines the on-disk layout of a reconciliation run and
// persists its JSON artefacts atomically.
//
// Every run owns one directory under the output root. The directory is the
// isolation unit: two runs never share files except the rollback history,
// which lives at the output root. All JSON writes stage to a temp file and
// rename, so a crash leaves either the previous artefact or the new one.
//
// Example usage:
//
//	store, err := runstore.NewStore("/var/recon/output")
//	if err != nil {
//		return err
//	}
//	if err := store.SaveReconOutput(runID, result); err != nil {
//		return err
//	}
//	state := store.HangingStatePath(runID)
package runstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"upi-reconciliation-service/internal/matcher"
	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/pkg/atomicfile"
	"upi-reconciliation-service/pkg/errors"
)

// File and directory names inside a run directory.
const (
	ReconOutputFile      = "recon_output.json"
	HangingStateFile     = "hanging_state.json"
	AccountingOutputFile = "accounting_output.json"
	UploadedFilesFile    = "uploaded_files.json"
	DownloadMetaFile     = "download_meta.json"
	HistoryFile          = "rollback_history.json"

	reportsDirName  = "reports"
	ttumDirName     = "ttum"
	annexureDirName = "annexure"
	auditDirName    = "audit"
	auditLogsName   = "audit_logs"
	glDirName       = "gl_statement"
	uploadsDirName  = "uploads"
	backupsDirName  = "backups"
)

// Store resolves paths inside the reconciliation output tree and persists
// run artefacts. The zero value is not usable; construct with NewStore.
type Store struct {
	outputDir string
}

// NewStore creates a store rooted at the given output directory.
func NewStore(outputDir string) (*Store, error) {
	if strings.TrimSpace(outputDir) == "" {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "output_dir", outputDir,
			fmt.Errorf("output directory is required"))
	}
	return &Store{outputDir: filepath.Clean(outputDir)}, nil
}

// OutputDir returns the output root shared by all runs.
func (s *Store) OutputDir() string {
	return s.outputDir
}

// RunDir returns the directory owning every artefact of one run.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.outputDir, runID)
}

// ReconOutputPath returns the path of the final reconciliation result.
func (s *Store) ReconOutputPath(runID string) string {
	return filepath.Join(s.RunDir(runID), ReconOutputFile)
}

// HangingStatePath returns the path of the carry-over state file.
func (s *Store) HangingStatePath(runID string) string {
	return filepath.Join(s.RunDir(runID), HangingStateFile)
}

// AccountingOutputPath returns the path of the voucher output file.
func (s *Store) AccountingOutputPath(runID string) string {
	return filepath.Join(s.RunDir(runID), AccountingOutputFile)
}

// UploadedFilesPath returns the path of the uploaded-files metadata.
func (s *Store) UploadedFilesPath(runID string) string {
	return filepath.Join(s.RunDir(runID), UploadedFilesFile)
}

// UploadsDir returns the directory holding ingested source files.
func (s *Store) UploadsDir(runID string) string {
	return filepath.Join(s.RunDir(runID), uploadsDirName)
}

// HistoryPath returns the rollback history file, shared across runs at the
// output root.
func (s *Store) HistoryPath() string {
	return filepath.Join(s.outputDir, HistoryFile)
}

// LockPath returns the run's rollback lock file. It lives at the output
// root, not inside the run directory, so a whole-process rollback that
// deletes the run directory keeps holding its lock until release.
func (s *Store) LockPath(runID string) string {
	return filepath.Join(s.outputDir, runID+".rollback.lock")
}

// ReportsDir returns the run's report directory for one cycle.
func (s *Store) ReportsDir(runID, cycleID string) string {
	return filepath.Join(s.RunDir(runID), reportsDirName, cycleDirName(cycleID))
}

// TTUMDir returns the run's TTUM directory for one cycle.
func (s *Store) TTUMDir(runID, cycleID string) string {
	return filepath.Join(s.RunDir(runID), ttumDirName, cycleDirName(cycleID))
}

// AnnexureDir returns the run's annexure directory for one cycle.
func (s *Store) AnnexureDir(runID, cycleID string) string {
	return filepath.Join(s.RunDir(runID), annexureDirName, cycleDirName(cycleID))
}

// AuditCycleDir returns the per-cycle audit artefact directory removed by a
// cycle-wise rollback. Daily audit logs live in AuditLogsDir instead and are
// never deleted.
func (s *Store) AuditCycleDir(runID, cycleID string) string {
	return filepath.Join(s.RunDir(runID), auditDirName, cycleDirName(cycleID))
}

// AuditLogsDir returns the run's append-only audit log directory.
func (s *Store) AuditLogsDir(runID string) string {
	return filepath.Join(s.RunDir(runID), auditLogsName)
}

// GLDir returns the run's GL statement directory.
func (s *Store) GLDir(runID string) string {
	return filepath.Join(s.RunDir(runID), glDirName)
}

// DownloadMetaPath returns the TTUM download metadata file.
func (s *Store) DownloadMetaPath(runID string) string {
	return filepath.Join(s.RunDir(runID), ttumDirName, DownloadMetaFile)
}

// BackupsDir returns the directory holding whole-process backups. It lives
// at the output root so it survives the deletion of the run it backs up.
func (s *Store) BackupsDir() string {
	return filepath.Join(s.outputDir, backupsDirName)
}

// BackupPath returns the destination for a whole-process backup taken at
// the given time.
func (s *Store) BackupPath(runID string, at time.Time) string {
	return filepath.Join(s.BackupsDir(), runID+"_"+at.Format("20060102150405"))
}

// CycleDirs returns every per-cycle directory a cycle-wise rollback removes.
func (s *Store) CycleDirs(runID, cycleID string) []string {
	return []string{
		s.ReportsDir(runID, cycleID),
		s.TTUMDir(runID, cycleID),
		s.AnnexureDir(runID, cycleID),
		s.AuditCycleDir(runID, cycleID),
	}
}

func cycleDirName(cycleID string) string {
	return "cycle_" + cycleID
}

// EnsureRunDir creates the run directory if it does not exist.
func (s *Store) EnsureRunDir(runID string) error {
	dir := s.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.FileError(errors.CodeDirectoryError, dir, err)
	}
	return nil
}

// RunExists reports whether the run directory is present.
func (s *Store) RunExists(runID string) bool {
	info, err := os.Stat(s.RunDir(runID))
	return err == nil && info.IsDir()
}

// ListRuns returns the IDs of every run directory under the output root,
// sorted lexically.
func (s *Store) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(s.outputDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.FileError(errors.CodeDirectoryError, s.outputDir, err)
	}

	var runs []string
	for _, entry := range entries {
		if entry.IsDir() && entry.Name() != backupsDirName {
			runs = append(runs, entry.Name())
		}
	}
	sort.Strings(runs)
	return runs, nil
}

// SaveReconOutput atomically persists the final reconciliation result.
func (s *Store) SaveReconOutput(runID string, result *matcher.Result) error {
	if result == nil {
		return errors.ValidationError(errors.CodeMissingField, "result", nil,
			fmt.Errorf("cannot persist a nil result"))
	}
	if err := s.EnsureRunDir(runID); err != nil {
		return err
	}
	path := s.ReconOutputPath(runID)
	if err := atomicfile.SaveJSON(path, result); err != nil {
		return errors.FileError(errors.CodeWriteFailed, path, err)
	}
	return nil
}

// LoadReconOutput reads the persisted reconciliation result.
func (s *Store) LoadReconOutput(runID string) (*matcher.Result, error) {
	path := s.ReconOutputPath(runID)
	var result matcher.Result
	if err := atomicfile.LoadJSON(path, &result); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	return &result, nil
}

// AccountingOutput is the persisted shape of a run's voucher set.
type AccountingOutput struct {
	RunID       string            `json:"run_id"`
	CycleID     string            `json:"cycle_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Vouchers    []*models.Voucher `json:"vouchers"`

	// NTSLVariance carries the net settlement cross-check outcome when an
	// NTSL file was supplied; empty otherwise.
	NTSLVariance string `json:"ntsl_variance,omitempty"`
}

// SaveAccountingOutput atomically persists the run's vouchers.
func (s *Store) SaveAccountingOutput(runID string, out *AccountingOutput) error {
	if out == nil {
		return errors.ValidationError(errors.CodeMissingField, "accounting_output", nil,
			fmt.Errorf("cannot persist nil accounting output"))
	}
	if err := s.EnsureRunDir(runID); err != nil {
		return err
	}
	path := s.AccountingOutputPath(runID)
	if err := atomicfile.SaveJSON(path, out); err != nil {
		return errors.FileError(errors.CodeWriteFailed, path, err)
	}
	return nil
}

// LoadAccountingOutput reads the persisted voucher set.
func (s *Store) LoadAccountingOutput(runID string) (*AccountingOutput, error) {
	path := s.AccountingOutputPath(runID)
	var out AccountingOutput
	if err := atomicfile.LoadJSON(path, &out); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	return &out, nil
}

// UploadedFile records one ingested source file for ingestion rollback.
type UploadedFile struct {
	Name       string        `json:"name"`
	Source     models.Source `json:"source"`
	Path       string        `json:"path"`
	SizeBytes  int64         `json:"size_bytes"`
	UploadedAt time.Time     `json:"uploaded_at"`
}

// RecordUpload appends a file to the run's uploaded-files metadata.
func (s *Store) RecordUpload(runID string, file UploadedFile) error {
	files, err := s.ListUploads(runID)
	if err != nil {
		return err
	}
	files = append(files, file)
	return s.saveUploads(runID, files)
}

// RemoveUpload drops a file from the uploaded-files metadata by name.
// Removing a name that is not listed is a no-op.
func (s *Store) RemoveUpload(runID, name string) error {
	files, err := s.ListUploads(runID)
	if err != nil {
		return err
	}
	kept := files[:0]
	for _, f := range files {
		if f.Name != name {
			kept = append(kept, f)
		}
	}
	return s.saveUploads(runID, kept)
}

// ListUploads returns the run's uploaded-files metadata. A missing file is
// an empty list.
func (s *Store) ListUploads(runID string) ([]UploadedFile, error) {
	path := s.UploadedFilesPath(runID)
	var files []UploadedFile
	if err := atomicfile.LoadJSON(path, &files); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	return files, nil
}

func (s *Store) saveUploads(runID string, files []UploadedFile) error {
	if err := s.EnsureRunDir(runID); err != nil {
		return err
	}
	path := s.UploadedFilesPath(runID)
	if files == nil {
		files = []UploadedFile{}
	}
	if err := atomicfile.SaveJSON(path, files); err != nil {
		return errors.FileError(errors.CodeWriteFailed, path, err)
	}
	return nil
}

// DownloadMeta tracks whether a run's TTUM files left the system. Once they
// have, accounting state is externally visible and must not be rolled back.
type DownloadMeta struct {
	IsDownloaded bool      `json:"is_downloaded"`
	DownloadedAt time.Time `json:"downloaded_at,omitempty"`
	DownloadedBy string    `json:"downloaded_by,omitempty"`
}

// SaveDownloadMeta atomically persists the TTUM download metadata.
func (s *Store) SaveDownloadMeta(runID string, meta *DownloadMeta) error {
	if meta == nil {
		return errors.ValidationError(errors.CodeMissingField, "download_meta", nil,
			fmt.Errorf("cannot persist nil download metadata"))
	}
	path := s.DownloadMetaPath(runID)
	if err := atomicfile.SaveJSON(path, meta); err != nil {
		return errors.FileError(errors.CodeWriteFailed, path, err)
	}
	return nil
}

// LoadDownloadMeta reads the TTUM download metadata. A missing file means
// nothing was downloaded yet.
func (s *Store) LoadDownloadMeta(runID string) (*DownloadMeta, error) {
	path := s.DownloadMetaPath(runID)
	var meta DownloadMeta
	if err := atomicfile.LoadJSON(path, &meta); err != nil {
		if os.IsNotExist(err) {
			return &DownloadMeta{}, nil
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	return &meta, nil
}
