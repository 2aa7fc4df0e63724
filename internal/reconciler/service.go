// Package reconciler orchestrates a full settlement cycle: ingesting the
// CBS, switch and NPCI files, running the matching engine, emitting the
// reconciliation reports and Annexure IV sheets, generating vouchers and
// TTUM files, and persisting run state for later cycles and rollbacks.
//
// The entry point is Service.RunCycle. Nothing is written under the run
// directory until every in-memory phase has succeeded, so a failed or
// cancelled cycle leaves no partial output behind.
package reconciler

import (
	"sync"
	"time"

	"upi-reconciliation-service/internal/audit"
	"upi-reconciliation-service/internal/matcher"
	"upi-reconciliation-service/internal/normalize"
	"upi-reconciliation-service/internal/parsers"
	"upi-reconciliation-service/internal/reporter"
	"upi-reconciliation-service/internal/runstore"
	"upi-reconciliation-service/internal/settlement"
	"upi-reconciliation-service/pkg/errors"
	"upi-reconciliation-service/pkg/logger"
)

// Config carries the tunables for every stage of a reconciliation run.
// A nil field falls back to that component's defaults.
type Config struct {
	// Matching configures the engine: key sets, tolerances, cut-off and
	// exception matrix overrides.
	Matching *matcher.Config

	// Normalize configures header mapping and value coercion for the
	// parsed source tables.
	Normalize *normalize.Config

	// Parse configures the low-level CSV/XLSX table parser.
	Parse *parsers.ParseConfig

	// Reports configures the report emitter.
	Reports *reporter.Config

	// Accounts is the GL account map used for voucher legs.
	Accounts *settlement.Accounts

	// IssuerActions overrides the issuer-side TTUM action table.
	IssuerActions settlement.IssuerActions

	// TTUMTypes restricts which TTUM files are emitted. Empty means all
	// six categories.
	TTUMTypes []settlement.Category

	// MaxAuditEntries caps entries per audit trail file before rotation.
	MaxAuditEntries int
}

// DefaultConfig returns the configuration used when the caller supplies
// none: default matching rules, standard header maps and the stock GL
// account assignments.
func DefaultConfig() *Config {
	return &Config{
		Matching:        matcher.DefaultConfig(),
		Normalize:       normalize.DefaultConfig(),
		Parse:           parsers.DefaultParseConfig(),
		Reports:         reporter.DefaultConfig(),
		Accounts:        settlement.DefaultAccounts(),
		MaxAuditEntries: audit.DefaultMaxEntries,
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Matching != nil {
		if err := c.Matching.Validate(); err != nil {
			return err
		}
	}
	if c.Reports != nil {
		if err := c.Reports.Validate(); err != nil {
			return err
		}
	}
	for _, cat := range c.TTUMTypes {
		if !cat.IsValid() {
			return errors.ConfigurationError(errors.CodeInvalidConfig,
				"ttum_types", string(cat),
				nil).WithSuggestion("Valid types are DRC, RRC, TCC, RET, RECOVERY and REFUND")
		}
	}
	if c.MaxAuditEntries < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig,
			"max_audit_entries", c.MaxAuditEntries,
			nil).WithSuggestion("Use zero for the default cap or a positive entry count")
	}
	return nil
}

// Service runs reconciliation cycles against a run store. Construct it
// with NewService; the zero value is not usable.
type Service struct {
	store   *runstore.Store
	config  *Config
	parser  *parsers.TableParser
	norm    *normalize.Normalizer
	emitter *reporter.Emitter
	gen     *settlement.Generator
	log     logger.Logger
	clock   func() time.Time

	progressCallbacks []ProgressCallback
	progress          *Progress
	progressMu        sync.RWMutex
}

// Option adjusts Service construction.
type Option func(*Service)

// WithClock overrides the time source. Used by tests for deterministic
// run timestamps and audit entries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// NewService builds a Service on top of the given run store. A nil
// config selects DefaultConfig.
func NewService(store *runstore.Store, config *Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig,
			"run_store", nil,
			nil).WithSuggestion("Provide the run store that owns the output directory")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Matching == nil {
		config.Matching = matcher.DefaultConfig()
	}
	if config.Accounts == nil {
		config.Accounts = settlement.DefaultAccounts()
	}
	if config.MaxAuditEntries == 0 {
		config.MaxAuditEntries = audit.DefaultMaxEntries
	}
	if config.Reports == nil {
		config.Reports = &reporter.Config{AmountEpsilon: config.Matching.AmountEpsilon}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	norm, err := normalize.NewNormalizer(config.Normalize)
	if err != nil {
		return nil, err
	}

	emitter, err := reporter.NewEmitter(config.Reports)
	if err != nil {
		return nil, err
	}

	genOpts := []settlement.Option{
		settlement.WithEpsilon(config.Matching.AmountEpsilon),
	}
	if config.IssuerActions != nil {
		genOpts = append(genOpts, settlement.WithIssuerActions(config.IssuerActions))
	}
	if len(config.TTUMTypes) > 0 {
		genOpts = append(genOpts, settlement.WithCategories(config.TTUMTypes))
	}
	gen, err := settlement.NewGenerator(config.Accounts, genOpts...)
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:   store,
		config:  config,
		parser:  parsers.NewTableParser(config.Parse),
		norm:    norm,
		emitter: emitter,
		gen:     gen,
		log:     logger.GetGlobalLogger().WithComponent("reconciler"),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Progress is a snapshot of a running cycle, delivered to registered
// callbacks after each phase.
type Progress struct {
	TotalPhases     int           `json:"total_phases"`
	CompletedPhases int           `json:"completed_phases"`
	CurrentPhase    string        `json:"current_phase"`
	PercentComplete float64       `json:"percent_complete"`
	StartTime       time.Time     `json:"start_time"`
	ElapsedTime     time.Duration `json:"elapsed_time"`
	RowsIngested    int           `json:"rows_ingested"`
	RecordsTotal    int           `json:"records_total"`
	RecordsMatched  int           `json:"records_matched"`
	Warnings        []string      `json:"warnings,omitempty"`
}

// ProgressCallback receives progress snapshots during RunCycle.
type ProgressCallback func(*Progress)

// AddProgressCallback registers a callback invoked after every phase of
// subsequent runs.
func (s *Service) AddProgressCallback(cb ProgressCallback) {
	if cb == nil {
		return
	}
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	s.progressCallbacks = append(s.progressCallbacks, cb)
}

func (s *Service) initProgress(totalPhases int) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	s.progress = &Progress{
		TotalPhases: totalPhases,
		StartTime:   s.clock(),
	}
}

func (s *Service) updateProgress(phase string, completed int) {
	s.progressMu.Lock()
	if s.progress == nil {
		s.progressMu.Unlock()
		return
	}
	s.progress.CurrentPhase = phase
	s.progress.CompletedPhases = completed
	s.progress.ElapsedTime = s.clock().Sub(s.progress.StartTime)
	if s.progress.TotalPhases > 0 {
		s.progress.PercentComplete = float64(completed) / float64(s.progress.TotalPhases) * 100
	}
	snapshot := *s.progress
	callbacks := make([]ProgressCallback, len(s.progressCallbacks))
	copy(callbacks, s.progressCallbacks)
	s.progressMu.Unlock()

	for _, cb := range callbacks {
		cb(&snapshot)
	}
}

func (s *Service) setProgressCounts(rows, total, matched int) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	if s.progress == nil {
		return
	}
	s.progress.RowsIngested = rows
	s.progress.RecordsTotal = total
	s.progress.RecordsMatched = matched
}

func (s *Service) addWarning(msg string) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	if s.progress == nil {
		return
	}
	s.progress.Warnings = append(s.progress.Warnings, msg)
}

// GetProgress returns the latest progress snapshot, or nil when no run
// has started.
func (s *Service) GetProgress() *Progress {
	s.progressMu.RLock()
	defer s.progressMu.RUnlock()
	if s.progress == nil {
		return nil
	}
	snapshot := *s.progress
	return &snapshot
}
