// Package lookup answers point queries against a persisted reconciliation
// result without re-running the engine.
//
// A Service owns one loaded run at a time and indexes its records by RRN
// and UPI transaction ID. Loading is explicit; nothing is cached at package
// level, so two callers can hold services over different runs side by side.
package lookup

import (
	"fmt"
	"strings"
	"sync"

	"upi-reconciliation-service/internal/matcher"
	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/internal/runstore"
	"upi-reconciliation-service/pkg/errors"
	"upi-reconciliation-service/pkg/logger"
)

// Service loads one run's reconciliation output and serves queries on it.
// All methods are safe for concurrent use.
type Service struct {
	store *runstore.Store
	log   logger.Logger

	mu     sync.RWMutex
	runID  string
	result *matcher.Result
	byRRN  map[string][]*models.ReconRecord
	byUPI  map[string][]*models.ReconRecord
}

// NewService creates an empty lookup service over the given run store.
func NewService(store *runstore.Store) (*Service, error) {
	if store == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "run_store", nil,
			fmt.Errorf("lookup service requires a run store"))
	}
	return &Service{
		store: store,
		log:   logger.GetGlobalLogger().WithComponent("lookup"),
	}, nil
}

// Load reads the run's reconciliation output and rebuilds the indexes. A
// failed load leaves any previously loaded run untouched.
func (s *Service) Load(runID string) error {
	result, err := s.store.LoadReconOutput(runID)
	if err != nil {
		return err
	}

	byRRN := make(map[string][]*models.ReconRecord)
	byUPI := make(map[string][]*models.ReconRecord)
	for _, rec := range result.OrderedRecords() {
		if rec.RRN != "" {
			byRRN[rec.RRN] = append(byRRN[rec.RRN], rec)
		}
		if rec.UPITranID != "" {
			byUPI[rec.UPITranID] = append(byUPI[rec.UPITranID], rec)
		}
	}

	s.mu.Lock()
	s.runID = runID
	s.result = result
	s.byRRN = byRRN
	s.byUPI = byUPI
	s.mu.Unlock()

	s.log.WithFields(logger.Fields{
		"run_id":  runID,
		"records": len(result.Records),
	}).Debug("Loaded run for lookup")
	return nil
}

// Reload re-reads the currently loaded run, picking up mutations made since
// the last load (a rollback flipping statuses, for example).
func (s *Service) Reload() error {
	s.mu.RLock()
	runID := s.runID
	s.mu.RUnlock()

	if runID == "" {
		return errors.ValidationError(errors.CodeMissingField, "run_id", "",
			fmt.Errorf("no run loaded"))
	}
	return s.Load(runID)
}

// RunID returns the loaded run's ID, or empty if nothing is loaded.
func (s *Service) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// ByRRN returns the records carrying the given RRN, in insertion order.
func (s *Service) ByRRN(rrn string) []*models.ReconRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byRRN[strings.TrimSpace(rrn)]
}

// ByUPITranID returns the records carrying the given UPI transaction ID,
// in insertion order.
func (s *Service) ByUPITranID(id string) []*models.ReconRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byUPI[strings.TrimSpace(id)]
}

// ByStatus returns the records with the given status, in insertion order.
func (s *Service) ByStatus(status models.ReconStatus) []*models.ReconRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.result == nil {
		return nil
	}
	var out []*models.ReconRecord
	for _, rec := range s.result.OrderedRecords() {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out
}

// Summary returns the loaded run's summary, or nil if nothing is loaded.
func (s *Service) Summary() *matcher.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.result == nil {
		return nil
	}
	return s.result.Summary
}
