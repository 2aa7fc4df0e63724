package matcher

import (
	"context"
	"fmt"

	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/pkg/errors"
	"upi-reconciliation-service/pkg/logger"
)

// Engine classifies every row of the three source tables through the ordered
// matching steps and the exception matrix. Rows consumed by a step are never
// revisited; ordering of the steps is load-bearing and must not change.
//
// The engine works on clones of the loaded transactions. A failed run leaves
// no partial state: the caller discards the engine and nothing has been
// written anywhere.
type Engine struct {
	config *Config
	matrix *Matrix
	log    logger.Logger

	cycleID string

	cbs  *SourceTable
	sw   *SourceTable
	npci *SourceTable

	adjustments []models.Adjustment
	carryIn     *models.CarryOverState

	// carryOut accumulates the entries that form the next cycle's store:
	// unresolved survivors plus rows newly hanging this cycle.
	carryOut []models.CarryOverEntry

	// escalated holds carry-over entries that aged past the TTUM threshold
	// with no row in the current cycle to mark; records are synthesised for
	// them at assembly.
	escalated []models.CarryOverEntry

	// switchUpdates lists keys the matrix flagged for an external switch
	// status update.
	switchUpdates []string

	trace []StepTrace
}

// NewEngine creates a matching engine for the given configuration. A nil
// configuration selects DefaultConfig.
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", config.String(), err)
	}

	matrix, err := NewMatrix(config.MatrixOverrides)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "exception_matrix", "", err)
	}

	return &Engine{
		config: config.Clone(),
		matrix: matrix,
		log:    logger.GetGlobalLogger().WithComponent("matcher"),
	}, nil
}

// SetCycle sets the settlement cycle the run belongs to.
func (e *Engine) SetCycle(cycleID string) {
	e.cycleID = cycleID
}

// LoadCBS loads the bank's core banking rows.
func (e *Engine) LoadCBS(txns []*models.Transaction) {
	e.cbs = NewSourceTable(models.SourceCBS, txns)
}

// LoadSwitch loads the UPI switch rows.
func (e *Engine) LoadSwitch(txns []*models.Transaction) {
	e.sw = NewSourceTable(models.SourceSwitch, txns)
}

// LoadNPCI loads the network settlement rows.
func (e *Engine) LoadNPCI(txns []*models.Transaction) {
	e.npci = NewSourceTable(models.SourceNPCI, txns)
}

// LoadAdjustments loads operator adjustments applied before any step runs.
func (e *Engine) LoadAdjustments(adjustments []models.Adjustment) {
	e.adjustments = adjustments
}

// LoadCarryOver loads the prior cycle's hanging state.
func (e *Engine) LoadCarryOver(state *models.CarryOverState) {
	e.carryIn = state
}

// Run executes the matching pipeline and assembles the reconciliation
// result. Cancellation is honoured between steps; a cancelled or failed run
// returns an error and no result.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.cbs == nil {
		e.cbs = NewSourceTable(models.SourceCBS, nil)
	}
	if e.sw == nil {
		e.sw = NewSourceTable(models.SourceSwitch, nil)
	}
	if e.npci == nil {
		e.npci = NewSourceTable(models.SourceNPCI, nil)
	}
	e.trace = nil
	e.carryOut = nil
	e.escalated = nil
	e.switchUpdates = nil

	e.log.WithFields(logger.Fields{
		"cycle_id":  e.cycleID,
		"cbs_rows":  e.cbs.Len(),
		"sw_rows":   e.sw.Len(),
		"npci_rows": e.npci.Len(),
	}).Info("Starting matching run")

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"adjustments", e.stepAdjustments},
		{"carry-over", e.stepCarryOver},
		{"cut-off", e.stepCutOff},
		{"self-match", e.stepSelfMatch},
		{"settlement-lumps", e.stepSettlementLumps},
		{"double-postings", e.stepDoublePostings},
		{"three-way", e.stepThreeWay},
		{"deemed", e.stepDeemed},
		{"declines", e.stepDeclines},
		{"failed-reversals", e.stepFailedReversals},
		{"exception-matrix", e.stepMatrix},
	}

	for seq, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, errors.EngineError(errors.CodeCycleAborted, step.name, err)
		}
		before := e.unprocessedTotal()
		if err := step.fn(ctx); err != nil {
			return nil, errors.WrapIfNeeded(err, errors.CategoryEngine, errors.CodeStepFailed,
				fmt.Sprintf("matching step %q failed", step.name))
		}
		consumed := before - e.unprocessedTotal()
		e.trace = append(e.trace, StepTrace{Seq: seq, Name: step.name, Consumed: consumed})
		e.log.WithFields(logger.Fields{"step": step.name, "consumed": consumed}).Debug("Step complete")
	}

	result := e.assemble()

	e.log.WithFields(logger.Fields{
		"cycle_id":   e.cycleID,
		"records":    len(result.Records),
		"matched":    result.Summary.ByStatus[models.StatusMatched],
		"unmatched":  result.Summary.ByStatus[models.StatusUnmatched],
		"hanging":    result.Summary.ByStatus[models.StatusHanging],
		"carry_over": len(result.CarryOver),
	}).Info("Matching run complete")

	return result, nil
}

func (e *Engine) tables() []*SourceTable {
	return []*SourceTable{e.cbs, e.sw, e.npci}
}

func (e *Engine) unprocessedTotal() int {
	return e.cbs.UnprocessedCount() + e.sw.UnprocessedCount() + e.npci.UnprocessedCount()
}

// stepAdjustments applies operator adjustments by RRN before any matching
// step runs. Force-matches and status overrides consume the rows; amount
// corrections only rewrite the working amounts.
func (e *Engine) stepAdjustments(ctx context.Context) error {
	for i := range e.adjustments {
		adj := &e.adjustments[i]
		touched := false

		switch adj.Type {
		case models.AdjAmountCorrection:
			for _, t := range e.tables() {
				for _, ri := range t.RRNRows(adj.RRN) {
					t.Row(ri).Amount = adj.Amount
					touched = true
				}
			}

		case models.AdjForceMatch:
			m := Mark{Status: models.StatusMatched, Exception: models.ExcAdjustForceMatch}
			for _, t := range e.tables() {
				for _, ri := range t.RRNRows(adj.RRN) {
					if t.Mark(ri, m) {
						touched = true
					}
				}
			}

		case models.AdjStatusOverride:
			status := models.ReconStatus(adj.Response)
			if !status.IsValid() {
				e.log.WithFields(logger.Fields{"rrn": adj.RRN, "status": adj.Response}).
					Warn("Status override names an unknown status; skipping")
				continue
			}
			m := Mark{Status: status, Exception: models.ExcStatusOverride}
			for _, t := range e.tables() {
				for _, ri := range t.RRNRows(adj.RRN) {
					if t.Mark(ri, m) {
						touched = true
					}
				}
			}
		}

		if !touched {
			e.log.WithFields(logger.Fields{"rrn": adj.RRN, "type": adj.Type}).
				Warn("Adjustment matched no rows")
		}
	}
	return nil
}

// stepCarryOver reconciles the prior cycle's hanging state against the
// current NPCI table. Resolved entries are dropped; entries aging past the
// threshold trigger an automatic TTUM; the rest survive into the next store.
func (e *Engine) stepCarryOver(ctx context.Context) error {
	if e.carryIn == nil {
		return nil
	}

	for _, entry := range e.carryIn.Entries {
		if e.npci.HasRRN(entry.RRN) {
			e.log.WithFields(logger.Fields{"rrn": entry.RRN, "cycles": entry.CyclesPersisted}).
				Debug("Carry-over entry resolved by current NPCI file")
			continue
		}

		entry.CyclesPersisted++
		entry.LastCycleID = e.cycleID

		if !entry.NeedsAutoTTUM() {
			e.carryOut = append(e.carryOut, entry)
			continue
		}

		// Escalation: mark this cycle's rows for the RRN; when the bank did
		// not re-submit them, synthesise a record at assembly.
		m := Mark{
			Status:       models.StatusUnmatched,
			Exception:    models.ExcCarryOverTTUM,
			TTUMRequired: true,
			TTUMType:     entry.AutoTTUMType(),
		}
		marked := false
		for _, t := range []*SourceTable{e.sw, e.cbs} {
			for _, ri := range t.RRNRows(entry.RRN) {
				if t.Mark(ri, m) {
					marked = true
				}
			}
		}
		if !marked && !e.sw.HasRRN(entry.RRN) && !e.cbs.HasRRN(entry.RRN) {
			e.escalated = append(e.escalated, entry)
		}

		e.log.WithFields(logger.Fields{
			"rrn":       entry.RRN,
			"ttum_type": entry.AutoTTUMType(),
			"cycles":    entry.CyclesPersisted,
		}).Info("Carry-over entry escalated to automatic TTUM")
	}
	return nil
}

// stepCutOff hangs NPCI rows that cannot settle this cycle: rows timed at or
// after the cut-off, and rows whose CBS or Switch counterpart disagrees on
// amount within the date window. Switch rows whose RRN never reached NPCI
// hang as switch-only.
func (e *Engine) stepCutOff(ctx context.Context) error {
	for i := 0; i < e.npci.Len(); i++ {
		if e.npci.IsProcessed(i) {
			continue
		}
		row := e.npci.Row(i)
		if e.config.AfterCutOff(row.TranTime) || e.amountDisagrees(row) {
			e.npci.Mark(i, Mark{Status: models.StatusHanging, Exception: models.ExcCutOff})
		}
	}

	for i := 0; i < e.sw.Len(); i++ {
		if e.sw.IsProcessed(i) {
			continue
		}
		rrn := e.sw.Row(i).RRN
		if rrn == "" {
			continue
		}
		if !e.npci.HasRRN(rrn) {
			e.sw.Mark(i, Mark{Status: models.StatusHanging, Exception: models.ExcSwitchOnly})
		}
	}
	return nil
}

// amountDisagrees reports whether a CBS or Switch row with the same RRN and
// a date inside the tolerance window carries a different amount.
func (e *Engine) amountDisagrees(row *models.Transaction) bool {
	if row.RRN == "" {
		return false
	}
	for _, t := range []*SourceTable{e.cbs, e.sw} {
		for _, ri := range t.RRNRows(row.RRN) {
			other := t.Row(ri)
			if models.DatesWithinTolerance(other.TranDate, row.TranDate, e.config.DateToleranceDays) &&
				!e.config.AmountsAgree(other.Amount, row.Amount) {
				return true
			}
		}
	}
	return false
}

// selfKey groups rows for self-match detection.
type selfKey struct {
	upi    string
	rrn    string
	date   string
	amount string
}

// stepSelfMatch absorbs bank-internal auto-reversals: within CBS or Switch,
// a pair of rows identical in every key field but opposite in Dr/Cr. NPCI
// reversal pairs are deliberately left alone; they carry settlement meaning
// and belong to the failed-reversal step.
func (e *Engine) stepSelfMatch(ctx context.Context) error {
	for _, t := range []*SourceTable{e.cbs, e.sw} {
		groups := make(map[selfKey][]int)
		var order []selfKey

		for i := 0; i < t.Len(); i++ {
			if t.IsProcessed(i) {
				continue
			}
			row := t.Row(i)
			if row.RRN == "" && row.UPITranID == "" {
				continue
			}
			k := selfKey{
				upi:    row.UPITranID,
				rrn:    row.RRN,
				date:   row.TranDate.Format("2006-01-02"),
				amount: row.Amount.StringFixed(2),
			}
			if _, seen := groups[k]; !seen {
				order = append(order, k)
			}
			groups[k] = append(groups[k], i)
		}

		for _, k := range order {
			pair := groups[k]
			if len(pair) != 2 {
				continue
			}
			a, b := t.Row(pair[0]), t.Row(pair[1])
			if a.DrCr == models.DrCrUnspecified || a.DrCr.Opposite() != b.DrCr {
				continue
			}
			m := Mark{Status: models.StatusMatched, Exception: models.ExcSelfMatched}
			t.Mark(pair[0], m)
			t.Mark(pair[1], m)
		}
	}
	return nil
}

// stepSettlementLumps pairs keyless CBS rows above the lump threshold with
// an opposite-sign row of equal amount. These are internal settlement
// postings, not customer transactions.
func (e *Engine) stepSettlementLumps(ctx context.Context) error {
	type lumpKey struct {
		drCr   models.DrCr
		amount string
	}
	pending := make(map[lumpKey][]int)

	for i := 0; i < e.cbs.Len(); i++ {
		if e.cbs.IsProcessed(i) {
			continue
		}
		row := e.cbs.Row(i)
		if row.RRN != "" || row.DrCr == models.DrCrUnspecified {
			continue
		}
		if !row.Amount.GreaterThan(e.config.SettlementLumpMin) {
			continue
		}

		amount := row.Amount.StringFixed(2)
		opposite := lumpKey{drCr: row.DrCr.Opposite(), amount: amount}
		if queue := pending[opposite]; len(queue) > 0 {
			j := queue[0]
			pending[opposite] = queue[1:]
			m := Mark{Status: models.StatusMatched, Exception: models.ExcSettlementEntry}
			e.cbs.Mark(j, m)
			e.cbs.Mark(i, m)
			continue
		}
		mine := lumpKey{drCr: row.DrCr, amount: amount}
		pending[mine] = append(pending[mine], i)
	}
	return nil
}

// stepDoublePostings detects repeated postings of one RRN within a single
// source. An opposite-sign pair is a self-reversal and absorbs; anything
// else is a double debit/credit needing investigation or reversal.
func (e *Engine) stepDoublePostings(ctx context.Context) error {
	for _, t := range []*SourceTable{e.cbs, e.sw} {
		seen := make(map[string]bool)
		for i := 0; i < t.Len(); i++ {
			if t.IsProcessed(i) {
				continue
			}
			rrn := t.Row(i).RRN
			if rrn == "" || seen[rrn] {
				continue
			}
			seen[rrn] = true

			group := t.UnprocessedRRNRows(rrn)
			if len(group) < 2 {
				continue
			}

			if len(group) == 2 {
				a, b := t.Row(group[0]), t.Row(group[1])
				if a.DrCr != models.DrCrUnspecified && a.DrCr.Opposite() == b.DrCr {
					m := Mark{Status: models.StatusMatched, Exception: models.ExcSelfMatched}
					t.Mark(group[0], m)
					t.Mark(group[1], m)
					continue
				}
			}

			ttum := models.TTUMInvestigation
			if bothSignsPresent(t, group) {
				ttum = models.TTUMReversal
			}
			m := Mark{
				Status:       models.StatusUnmatched,
				Exception:    models.ExcDoubleDebitCredit,
				TTUMRequired: true,
				TTUMType:     ttum,
			}
			for _, ri := range group {
				t.Mark(ri, m)
			}
		}
	}
	return nil
}

func bothSignsPresent(t *SourceTable, rows []int) bool {
	var hasDebit, hasCredit bool
	for _, ri := range rows {
		switch t.Row(ri).DrCr {
		case models.DrCrDebit:
			hasDebit = true
		case models.DrCrCredit:
			hasCredit = true
		}
	}
	return hasDebit && hasCredit
}

// stepThreeWay is the core pass: for each successful NPCI row, try each
// key-set from tightest to loosest until one finds an unprocessed candidate
// in both CBS and Switch. The first candidate by insertion order wins.
func (e *Engine) stepThreeWay(ctx context.Context) error {
	for i := 0; i < e.npci.Len(); i++ {
		if e.npci.IsProcessed(i) {
			continue
		}
		n := e.npci.Row(i)
		if !n.RC.IsSuccess() {
			continue
		}

		for k := range e.config.KeySets {
			ks := &e.config.KeySets[k]
			ci, ok := e.findCandidate(e.cbs, ks, n)
			if !ok {
				continue
			}
			si, ok := e.findCandidate(e.sw, ks, n)
			if !ok {
				continue
			}

			m := Mark{Status: models.StatusMatched}
			e.cbs.Mark(ci, m)
			e.sw.Mark(si, m)
			e.npci.Mark(i, m)
			break
		}
	}
	return nil
}

// findCandidate returns the first unprocessed row agreeing with n on every
// field the key-set compares.
func (e *Engine) findCandidate(t *SourceTable, ks *KeySet, n *models.Transaction) (int, bool) {
	var pool []int
	switch {
	case ks.has(MatchRRN):
		if n.RRN == "" {
			return 0, false
		}
		pool = t.RRNRows(n.RRN)
	case ks.has(MatchUPITranID):
		if n.UPITranID == "" {
			return 0, false
		}
		pool = t.UPIRows(n.UPITranID)
	}

	for _, ri := range pool {
		if t.IsProcessed(ri) {
			continue
		}
		if e.rowAgrees(ks, t.Row(ri), n) {
			return ri, true
		}
	}
	return 0, false
}

func (e *Engine) rowAgrees(ks *KeySet, row, n *models.Transaction) bool {
	for _, f := range ks.Fields {
		switch f {
		case MatchRRN:
			if row.RRN == "" || row.RRN != n.RRN {
				return false
			}
		case MatchUPITranID:
			if row.UPITranID == "" || row.UPITranID != n.UPITranID {
				return false
			}
		case MatchAmount:
			if !e.config.AmountsAgree(row.Amount, n.Amount) {
				return false
			}
		case MatchDate:
			if !e.config.DatesAgree(ks.DateMode, row.TranDate, n.TranDate) {
				return false
			}
		}
	}
	return true
}

// stepDeemed handles deemed-accepted (RB) NPCI rows. A CBS debit for the
// same RRN confirms the transaction went through: the triple matches under
// TCC_102. Without one the beneficiary must still be credited, raising a
// TCC_103 with a beneficiary-credit TTUM.
func (e *Engine) stepDeemed(ctx context.Context) error {
	for i := 0; i < e.npci.Len(); i++ {
		if e.npci.IsProcessed(i) {
			continue
		}
		n := e.npci.Row(i)
		if !n.RC.IsDeemed() {
			continue
		}

		debit := -1
		for _, ri := range e.cbs.UnprocessedRRNRows(n.RRN) {
			if e.cbs.Row(ri).DrCr == models.DrCrDebit {
				debit = ri
				break
			}
		}

		if debit >= 0 {
			m := Mark{Status: models.StatusMatched, Exception: models.ExcTCC102, TCCType: models.TCC102}
			e.cbs.Mark(debit, m)
			if sw := e.sw.UnprocessedRRNRows(n.RRN); len(sw) > 0 {
				e.sw.Mark(sw[0], m)
			}
			e.npci.Mark(i, m)
			continue
		}

		e.npci.Mark(i, Mark{
			Status:       models.StatusUnmatched,
			Exception:    models.ExcTCC103,
			TTUMRequired: true,
			TTUMType:     models.TTUMBeneficiaryCredit,
			TCCType:      models.TCC103,
		})
	}
	return nil
}

// stepDeclines handles explicit NPCI declines: CBS rows posted against a
// declined RRN must be reversed.
func (e *Engine) stepDeclines(ctx context.Context) error {
	for i := 0; i < e.npci.Len(); i++ {
		if e.npci.IsProcessed(i) {
			continue
		}
		n := e.npci.Row(i)
		if !n.RC.IsFail() {
			continue
		}

		for _, ri := range e.cbs.UnprocessedRRNRows(n.RRN) {
			e.cbs.Mark(ri, Mark{
				Status:       models.StatusUnmatched,
				Exception:    models.ExcNPCIFailed,
				TTUMRequired: true,
				TTUMType:     models.TTUMReversal,
			})
		}
		e.npci.Mark(i, Mark{Status: models.StatusUnmatched, Exception: models.ExcNPCIDeclined})
	}
	return nil
}

// stepFailedReversals detects auto-reversals NPCI processed but the bank did
// not: an NPCI debit/credit pair of equal amount plus exactly one CBS row.
func (e *Engine) stepFailedReversals(ctx context.Context) error {
	seen := make(map[string]bool)
	for i := 0; i < e.npci.Len(); i++ {
		if e.npci.IsProcessed(i) {
			continue
		}
		rrn := e.npci.Row(i).RRN
		if rrn == "" || seen[rrn] {
			continue
		}
		seen[rrn] = true

		group := e.npci.UnprocessedRRNRows(rrn)
		if len(group) != 2 {
			continue
		}
		a, b := e.npci.Row(group[0]), e.npci.Row(group[1])
		if !a.Amount.Equal(b.Amount) {
			continue
		}
		if a.DrCr == models.DrCrUnspecified || a.DrCr.Opposite() != b.DrCr {
			continue
		}
		cbsRows := e.cbs.UnprocessedRRNRows(rrn)
		if len(cbsRows) != 1 {
			continue
		}

		m := Mark{
			Status:       models.StatusUnmatched,
			Exception:    models.ExcFailedAutoReversal,
			TTUMRequired: true,
			TTUMType:     models.TTUMReversal,
		}
		e.npci.Mark(group[0], m)
		e.npci.Mark(group[1], m)
		e.cbs.Mark(cbsRows[0], m)
	}
	return nil
}

// stepMatrix pushes every still-unprocessed CBS row through the exception
// matrix. Keys that already received a decision from an earlier step are
// skipped, which also makes re-application a no-op.
func (e *Engine) stepMatrix(ctx context.Context) error {
	for i := 0; i < e.cbs.Len(); i++ {
		if e.cbs.IsProcessed(i) {
			continue
		}
		c := e.cbs.Row(i)
		if c.Key() == "" {
			continue
		}
		if e.keyDecided(c) {
			continue
		}

		swTxn := e.firstKeyRow(e.sw, c)
		npciTxn := e.firstKeyRow(e.npci, c)
		key := MatrixKey{
			Direction: models.InferDirection(c.TranType, c.DrCr),
			CBS:       models.LegStatusOf(c),
			Switch:    models.LegStatusOf(swTxn),
			NPCI:      models.LegStatusOf(npciTxn),
		}

		action, known := e.matrix.Decide(key)
		if !known {
			e.log.WithFields(logger.Fields{"key": c.Key(), "tuple": key.String()}).
				Warn("No exception matrix cell for tuple; defaulting to unmatched")
		}
		e.applyMatrixAction(c, swTxn, npciTxn, action)
	}
	return nil
}

// keyRows returns the row positions in t related to txn by reconciliation key.
func (e *Engine) keyRows(t *SourceTable, txn *models.Transaction) []int {
	if txn.RRN != "" {
		return t.RRNRows(txn.RRN)
	}
	return t.UPIRows(txn.UPITranID)
}

// firstKeyRow returns the first row in t sharing txn's key, or nil.
func (e *Engine) firstKeyRow(t *SourceTable, txn *models.Transaction) *models.Transaction {
	rows := e.keyRows(t, txn)
	if len(rows) == 0 {
		return nil
	}
	return t.Row(rows[0])
}

// keyDecided reports whether any row sharing txn's key was already consumed
// by an earlier step. Such records keep their step decision; leftover rows
// simply join the record at assembly.
func (e *Engine) keyDecided(txn *models.Transaction) bool {
	for _, t := range e.tables() {
		for _, ri := range e.keyRows(t, txn) {
			if t.IsProcessed(ri) {
				return true
			}
		}
	}
	return false
}

// markKey marks every unprocessed row sharing ref's key in table t. Returns
// true when at least one row was newly marked.
func (e *Engine) markKey(t *SourceTable, ref *models.Transaction, m Mark) bool {
	marked := false
	for _, ri := range e.keyRows(t, ref) {
		if t.Mark(ri, m) {
			marked = true
		}
	}
	return marked
}

// applyMatrixAction applies a matrix decision to the rows of one key.
func (e *Engine) applyMatrixAction(c, swTxn, npciTxn *models.Transaction, action MatrixAction) {
	markAll := func(m Mark) {
		e.markKey(e.cbs, c, m)
		e.markKey(e.sw, c, m)
		e.markKey(e.npci, c, m)
	}

	switch action {
	case ActionMatched:
		// Matched status still requires real agreement; a disagreeing
		// triple falls through to the final classification as a mismatch.
		if e.tripleAgrees(c, swTxn, npciTxn) {
			markAll(Mark{Status: models.StatusMatched})
		}

	case ActionConditionalTCC102:
		if npciTxn != nil && npciTxn.RC.IsDeemed() {
			markAll(Mark{Status: models.StatusMatched, Exception: models.ExcTCC102, TCCType: models.TCC102})
		} else {
			markAll(Mark{Status: models.StatusUnmatched})
		}

	case ActionRemitterRefundTTUM:
		markAll(Mark{
			Status:       models.StatusUnmatched,
			Exception:    models.ExcRemitterRefund,
			TTUMRequired: true,
			TTUMType:     models.TTUMReversal,
		})

	case ActionBeneficiaryRecoveryTTUM:
		m := Mark{
			Status:       models.StatusUnmatched,
			Exception:    models.ExcBeneficiaryRecovery,
			TTUMRequired: true,
			TTUMType:     models.TTUMBeneficiaryCredit,
		}
		if !e.markKey(e.npci, c, m) {
			e.markKey(e.cbs, c, m)
		}

	case ActionSwitchUpdate:
		m := Mark{Status: models.StatusUnmatched, Exception: models.ExcSwitchUpdate}
		if !e.markKey(e.sw, c, m) {
			e.markKey(e.cbs, c, m)
		}
		e.switchUpdates = append(e.switchUpdates, c.Key())

	case ActionConditionalTCC102SwitchUpdate:
		m := Mark{Status: models.StatusUnmatched, Exception: models.ExcSwitchUpdateTCC}
		if swTxn != nil && swTxn.RC.IsDeemed() {
			m.TCCType = models.TCC102
		}
		if !e.markKey(e.sw, c, m) {
			e.markKey(e.cbs, c, m)
		}
		e.switchUpdates = append(e.switchUpdates, c.Key())

	case ActionRemitterRecoveryTTUM:
		markAll(Mark{
			Status:       models.StatusUnmatched,
			Exception:    models.ExcRemitterRecovery,
			TTUMRequired: true,
			TTUMType:     models.TTUMRecovery,
		})

	case ActionBeneficiaryCreditTTUMTCC103:
		m := Mark{
			Status:       models.StatusUnmatched,
			Exception:    models.ExcTCC103,
			TTUMRequired: true,
			TTUMType:     models.TTUMBeneficiaryCredit,
			TCCType:      models.TCC103,
		}
		if !e.markKey(e.npci, c, m) {
			e.markKey(e.cbs, c, m)
		}

	default:
		markAll(Mark{Status: models.StatusUnmatched})
	}
}

// tripleAgrees checks pairwise amount and date agreement across the present
// rows of a triple.
func (e *Engine) tripleAgrees(txns ...*models.Transaction) bool {
	var present []*models.Transaction
	for _, t := range txns {
		if t != nil {
			present = append(present, t)
		}
	}
	for i := 0; i < len(present); i++ {
		for j := i + 1; j < len(present); j++ {
			if !e.config.AmountsAgree(present[i].Amount, present[j].Amount) {
				return false
			}
			if !models.DatesWithinTolerance(present[i].TranDate, present[j].TranDate, e.config.DateToleranceDays) {
				return false
			}
		}
	}
	return true
}

// syntheticCarryTxn builds the stand-in switch row for an escalated
// carry-over entry the bank did not re-submit this cycle.
func (e *Engine) syntheticCarryTxn(entry *models.CarryOverEntry) *models.Transaction {
	txn := models.NewTransaction(models.SourceSwitch, entry.RRN, "", entry.Amount, e.config.cycleDate())
	txn.DrCr = entry.DrCr
	return txn
}
