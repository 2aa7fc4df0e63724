// Package carryover persists hanging transactions between settlement cycles.
//
// The store is deliberately forgiving on read: a missing or corrupt state
// file yields an empty state rather than an error, because losing track of
// hangers only delays their escalation by a cycle, whereas refusing to run
// blocks the whole settlement day. Writes are atomic so a crash mid-save
// never corrupts the previous state.
package carryover

import (
	"os"

	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/pkg/atomicfile"
	"upi-reconciliation-service/pkg/errors"
	"upi-reconciliation-service/pkg/logger"
)

// Store reads and writes the carry-over state file for one run.
type Store struct {
	path string
	log  logger.Logger
}

// NewStore creates a store backed by the given state file path.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		log:  logger.GetGlobalLogger().WithComponent("carryover"),
	}
}

// Path returns the backing state file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted carry-over state. A missing file is a normal
// first-cycle condition and returns an empty state; a corrupt file is
// logged at WARN and also returns an empty state.
func (s *Store) Load() *models.CarryOverState {
	var state models.CarryOverState
	err := atomicfile.LoadJSON(s.path, &state)
	if err == nil {
		s.log.WithFields(logger.Fields{
			"path":       s.path,
			"entries":    len(state.Entries),
			"last_cycle": state.LastCycleID,
		}).Debug("Loaded carry-over state")
		return &state
	}

	if os.IsNotExist(err) {
		s.log.WithFields(logger.Fields{"path": s.path}).Debug("No carry-over state yet, starting empty")
	} else {
		s.log.WithFields(logger.Fields{
			"path":  s.path,
			"error": err.Error(),
		}).Warn("Carry-over state unreadable, starting empty")
	}
	return &models.CarryOverState{Entries: []models.CarryOverEntry{}}
}

// Save atomically replaces the state file with the given state.
func (s *Store) Save(state *models.CarryOverState) error {
	if state == nil {
		state = &models.CarryOverState{Entries: []models.CarryOverEntry{}}
	}
	if state.Entries == nil {
		state.Entries = []models.CarryOverEntry{}
	}

	if err := atomicfile.SaveJSON(s.path, state); err != nil {
		return errors.FileError(errors.CodeWriteFailed, s.path, err)
	}

	s.log.WithFields(logger.Fields{
		"path":    s.path,
		"entries": len(state.Entries),
	}).Debug("Saved carry-over state")
	return nil
}
