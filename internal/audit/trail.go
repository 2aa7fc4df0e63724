// Package audit keeps the append-only operational event log of the
// reconciliation service.
//
// Entries land in daily JSON files named audit_trail_YYYYMMDD.json. A day
// file that reaches its entry cap is sealed under a timestamped name and a
// fresh file is started, so no single file grows unbounded. Entries are
// never edited or removed; the only permitted in-place mutation is marking
// an entry resolved.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"upi-reconciliation-service/pkg/atomicfile"
	"upi-reconciliation-service/pkg/errors"
	"upi-reconciliation-service/pkg/logger"
)

// DefaultMaxEntries caps a daily file before it is sealed.
const DefaultMaxEntries = 10000

// Entry levels.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Well-known audit actions recorded by the service. Callers may also record
// free-form actions; these constants exist so the common ones stay greppable.
const (
	ActionRunStarted        = "RUN_STARTED"
	ActionRunCompleted      = "RUN_COMPLETED"
	ActionRunFailed         = "RUN_FAILED"
	ActionFileUploaded      = "FILE_UPLOADED"
	ActionReportsEmitted    = "REPORTS_EMITTED"
	ActionTTUMGenerated     = "TTUM_GENERATED"
	ActionVouchersPosted    = "VOUCHERS_POSTED"
	ActionRollbackStarted   = "ROLLBACK_STARTED"
	ActionRollbackCompleted = "ROLLBACK_COMPLETED"
	ActionRollbackFailed    = "ROLLBACK_FAILED"
)

const (
	filePrefix = "audit_trail_"
	fileSuffix = ".json"
	dayFormat  = "20060102"
	sealFormat = "150405"
)

// Entry is one audit event.
type Entry struct {
	AuditID      string    `json:"audit_id"`
	Action       string    `json:"action"`
	RunID        string    `json:"run_id"`
	UserID       string    `json:"user_id"`
	Level        string    `json:"level"`
	Timestamp    time.Time `json:"timestamp"`
	Details      string    `json:"details"`
	SourceSystem string    `json:"source_system"`
	Resolved     bool      `json:"resolved"`
}

// Trail appends to and queries the daily audit files under one directory.
// All methods are safe for concurrent use.
type Trail struct {
	dir        string
	maxEntries int
	now        func() time.Time
	log        logger.Logger

	mu sync.RWMutex
}

// Option configures a Trail.
type Option func(*Trail)

// WithMaxEntries overrides the per-file entry cap.
func WithMaxEntries(n int) Option {
	return func(t *Trail) {
		if n > 0 {
			t.maxEntries = n
		}
	}
}

// WithClock overrides the time source; tests pin it for stable file names.
func WithClock(now func() time.Time) Option {
	return func(t *Trail) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTrail creates a trail writing under dir.
func NewTrail(dir string, opts ...Option) (*Trail, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "audit_dir", dir,
			fmt.Errorf("audit directory is required"))
	}
	t := &Trail{
		dir:        filepath.Clean(dir),
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		log:        logger.GetGlobalLogger().WithComponent("audit"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Record appends an entry to the current day file and returns it with its
// identifier and timestamp filled in.
func (t *Trail) Record(entry Entry) (*Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if entry.AuditID == "" {
		entry.AuditID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}
	if entry.Level == "" {
		entry.Level = LevelInfo
	}
	if entry.Action == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "action", entry.Action,
			fmt.Errorf("audit entries must name an action"))
	}

	path := t.dayPath(now)
	entries, err := t.readFile(path)
	if err != nil {
		return nil, err
	}

	if len(entries) >= t.maxEntries {
		sealed := t.sealedPath(now)
		if err := os.Rename(path, sealed); err != nil {
			return nil, errors.FileError(errors.CodeRenameFailed, path, err)
		}
		t.log.WithFields(logger.Fields{
			"sealed":  sealed,
			"entries": len(entries),
		}).Info("Sealed full audit file")
		entries = nil
	}

	entries = append(entries, entry)
	if err := atomicfile.SaveJSON(path, entries); err != nil {
		return nil, errors.FileError(errors.CodeWriteFailed, path, err)
	}
	return &entry, nil
}

// Resolve marks the entry with the given ID resolved. The entry keeps its
// file, position, and every other field.
func (t *Trail) Resolve(auditID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	files, err := t.listFiles()
	if err != nil {
		return err
	}

	for _, path := range files {
		entries, err := t.readFile(path)
		if err != nil {
			return err
		}
		for i := range entries {
			if entries[i].AuditID != auditID {
				continue
			}
			if entries[i].Resolved {
				return nil
			}
			entries[i].Resolved = true
			if err := atomicfile.SaveJSON(path, entries); err != nil {
				return errors.FileError(errors.CodeWriteFailed, path, err)
			}
			return nil
		}
	}

	return errors.ValidationError(errors.CodeMissingField, "audit_id", auditID,
		fmt.Errorf("no audit entry with this ID"))
}

// ByRun returns every entry recorded for the given run, oldest first.
func (t *Trail) ByRun(runID string) ([]Entry, error) {
	return t.filter(func(e *Entry) bool { return e.RunID == runID })
}

// ByUser returns every entry recorded by the given user, oldest first.
func (t *Trail) ByUser(userID string) ([]Entry, error) {
	return t.filter(func(e *Entry) bool { return e.UserID == userID })
}

// ByAction returns every entry with the given action, oldest first.
func (t *Trail) ByAction(action string) ([]Entry, error) {
	return t.filter(func(e *Entry) bool { return e.Action == action })
}

// ByDateRange returns every entry with from <= timestamp <= to, oldest
// first.
func (t *Trail) ByDateRange(from, to time.Time) ([]Entry, error) {
	return t.filter(func(e *Entry) bool {
		return !e.Timestamp.Before(from) && !e.Timestamp.After(to)
	})
}

// All returns every entry across every file, oldest first.
func (t *Trail) All() ([]Entry, error) {
	return t.filter(func(*Entry) bool { return true })
}

func (t *Trail) filter(keep func(*Entry) bool) ([]Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	files, err := t.listFiles()
	if err != nil {
		return nil, err
	}

	var matched []Entry
	for _, path := range files {
		entries, err := t.readFile(path)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			if keep(&entries[i]) {
				matched = append(matched, entries[i])
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	return matched, nil
}

// listFiles returns every audit file under the directory, sealed files
// included, sorted by name so days and seals stay chronological.
func (t *Trail) listFiles() ([]string, error) {
	dirEntries, err := os.ReadDir(t.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.FileError(errors.CodeDirectoryError, t.dir, err)
	}

	var files []string
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		files = append(files, filepath.Join(t.dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (t *Trail) readFile(path string) ([]Entry, error) {
	var entries []Entry
	if err := atomicfile.LoadJSON(path, &entries); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	return entries, nil
}

func (t *Trail) dayPath(now time.Time) string {
	return filepath.Join(t.dir, filePrefix+now.Format(dayFormat)+fileSuffix)
}

func (t *Trail) sealedPath(now time.Time) string {
	return filepath.Join(t.dir, filePrefix+now.Format(dayFormat)+"_"+now.Format(sealFormat)+fileSuffix)
}
