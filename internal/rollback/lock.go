package rollback

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"upi-reconciliation-service/pkg/errors"
)

// lockFile is the per-run exclusive rollback lock. Acquisition is
// non-blocking: if another operation holds the lock the caller gets a busy
// error immediately. The file records who took it and when, purely for the
// operator's benefit; the process never inspects the contents, and stale
// locks are removed by hand.
type lockFile struct {
	path  string
	runID string
}

// acquire creates the lock file with O_EXCL. An existing file means another
// rollback is in flight.
func (l *lockFile) acquire(operationID string, at time.Time) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.FileError(errors.CodeDirectoryError, filepath.Dir(l.path), err)
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return errors.RollbackError(errors.CodeLockBusy, l.runID,
				fmt.Errorf("lock file exists: %s", l.path))
		}
		return errors.FileError(errors.CodeFilePermission, l.path, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "operation_id=%s\nacquired_at=%s\npid=%d\n",
		operationID, at.Format(time.RFC3339), os.Getpid())
	return nil
}

// release removes the lock file. A file already removed by an operator
// counts as released.
func (l *lockFile) release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.FileError(errors.CodeFilePermission, l.path, err)
	}
	return nil
}
