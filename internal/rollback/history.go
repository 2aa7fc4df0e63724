package rollback

import (
	"fmt"
	"os"
	"strings"
	"time"

	"upi-reconciliation-service/pkg/atomicfile"
	"upi-reconciliation-service/pkg/errors"
)

// Level identifies the scope of a rollback operation.
type Level string

// Rollback levels, narrowest effect last.
const (
	LevelWholeProcess Level = "WHOLE_PROCESS"
	LevelIngestion    Level = "INGESTION"
	LevelMidRecon     Level = "MID_RECON"
	LevelCycleWise    Level = "CYCLE_WISE"
	LevelAccounting   Level = "ACCOUNTING"
)

var levelShort = map[Level]string{
	LevelWholeProcess: "WP",
	LevelIngestion:    "ING",
	LevelMidRecon:     "MR",
	LevelCycleWise:    "CW",
	LevelAccounting:   "ACC",
}

// Short returns the level's abbreviation used in operation IDs.
func (l Level) Short() string {
	return levelShort[l]
}

// IsValid reports whether l is one of the five rollback levels.
func (l Level) IsValid() bool {
	_, ok := levelShort[l]
	return ok
}

// ParseLevel converts user input into a Level.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", errors.RollbackError(errors.CodeUnknownLevel, s, nil)
	}
	return l, nil
}

// Status is the lifecycle state of one rollback operation.
type Status string

// Operation statuses in lifecycle order.
const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// HistoryEntry is one rollback operation's record in the shared history
// file. Entries are appended once and their status updated in place as the
// operation advances.
type HistoryEntry struct {
	OperationID string    `json:"operation_id"`
	Level       Level     `json:"level"`
	RunID       string    `json:"run_id"`
	UserID      string    `json:"user_id,omitempty"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	Targets     []string  `json:"targets,omitempty"`
	CycleID     string    `json:"cycle_id,omitempty"`
	FileName    string    `json:"file_name,omitempty"`
	BackupPath  string    `json:"backup_path,omitempty"`
	Affected    int       `json:"affected_count"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// history persists rollback operations to the shared history file at the
// output root. Callers serialise access through the Manager's lock.
type history struct {
	path string
}

func (h *history) load() ([]HistoryEntry, error) {
	var entries []HistoryEntry
	if err := atomicfile.LoadJSON(h.path, &entries); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, h.path, err)
	}
	return entries, nil
}

func (h *history) save(entries []HistoryEntry) error {
	if err := atomicfile.SaveJSON(h.path, entries); err != nil {
		return errors.FileError(errors.CodeWriteFailed, h.path, err)
	}
	return nil
}

// append adds a new entry and returns the updated list.
func (h *history) append(entry HistoryEntry) error {
	entries, err := h.load()
	if err != nil {
		return err
	}
	return h.save(append(entries, entry))
}

// update mutates the entry with the given operation ID in place.
func (h *history) update(operationID string, mutate func(*HistoryEntry)) error {
	entries, err := h.load()
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].OperationID == operationID {
			mutate(&entries[i])
			return h.save(entries)
		}
	}
	return errors.RollbackError(errors.CodePreconditionFailed, "update history",
		fmt.Errorf("operation %s not found in history", operationID))
}

// nextSequence returns the sequence number for a new operation ID. The
// sequence is global across levels and runs.
func (h *history) nextSequence() (int, error) {
	entries, err := h.load()
	if err != nil {
		return 0, err
	}
	return len(entries) + 1, nil
}

// newOperationID builds the RB_<LEVEL_SHORT>_<SEQ>_<MMDD> identifier.
func newOperationID(level Level, seq int, at time.Time) string {
	return fmt.Sprintf("RB_%s_%d_%s", level.Short(), seq, at.Format("0102"))
}
