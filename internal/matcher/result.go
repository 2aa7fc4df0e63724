package matcher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"upi-reconciliation-service/internal/models"
)

// StepTrace records how many rows one pipeline step consumed.
type StepTrace struct {
	Seq      int    `json:"seq"`
	Name     string `json:"name"`
	Consumed int    `json:"consumed"`
}

// Summary aggregates a run's outcome for logs, reports and the run store.
type Summary struct {
	CycleID         string                     `json:"cycle_id"`
	TotalRecords    int                        `json:"total_records"`
	ByStatus        map[models.ReconStatus]int `json:"by_status"`
	ByException     map[string]int             `json:"by_exception,omitempty"`
	TTUMRequired    int                        `json:"ttum_required"`
	TCCRaised       int                        `json:"tcc_raised"`
	MatchedAmount   decimal.Decimal            `json:"-"`
	UnmatchedAmount decimal.Decimal            `json:"-"`
	SourceRows      map[models.Source]int      `json:"source_rows"`
	CarryOverIn     int                        `json:"carry_over_in"`
	CarryOverOut    int                        `json:"carry_over_out"`
	SwitchUpdates   int                        `json:"switch_updates"`
}

// MarshalJSON pins the amount wire format to two decimal places.
func (s *Summary) MarshalJSON() ([]byte, error) {
	type Alias Summary
	return json.Marshal(&struct {
		*Alias
		MatchedAmount   string `json:"matched_amount"`
		UnmatchedAmount string `json:"unmatched_amount"`
	}{
		Alias:           (*Alias)(s),
		MatchedAmount:   s.MatchedAmount.StringFixed(2),
		UnmatchedAmount: s.UnmatchedAmount.StringFixed(2),
	})
}

// UnmarshalJSON parses the wire format written by MarshalJSON.
func (s *Summary) UnmarshalJSON(data []byte) error {
	type Alias Summary
	aux := &struct {
		*Alias
		MatchedAmount   string `json:"matched_amount"`
		UnmatchedAmount string `json:"unmatched_amount"`
	}{
		Alias: (*Alias)(s),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if aux.MatchedAmount != "" {
		amount, err := models.ParseAmount(aux.MatchedAmount)
		if err != nil {
			return fmt.Errorf("failed to parse matched amount: %w", err)
		}
		s.MatchedAmount = amount
	}
	if aux.UnmatchedAmount != "" {
		amount, err := models.ParseAmount(aux.UnmatchedAmount)
		if err != nil {
			return fmt.Errorf("failed to parse unmatched amount: %w", err)
		}
		s.UnmatchedAmount = amount
	}
	return nil
}

// Result is the outcome of one matching run: every reconciliation record
// keyed by RRN (or UPI transaction ID), the next cycle's carry-over entries,
// and the per-step consumption trace.
type Result struct {
	RunID   string                         `json:"run_id,omitempty"`
	CycleID string                         `json:"cycle_id"`
	Records map[string]*models.ReconRecord `json:"records"`

	// Order lists record keys in first-seen insertion order (CBS rows,
	// then Switch, then NPCI). Iterating it keeps report output
	// deterministic for identical inputs.
	Order []string `json:"order"`

	Summary       *Summary                 `json:"summary"`
	StepTrace     []StepTrace              `json:"step_trace,omitempty"`
	CarryOver     []models.CarryOverEntry  `json:"carry_over,omitempty"`
	SwitchUpdates []string                 `json:"switch_updates,omitempty"`
}

// Record returns the record for a key, or nil.
func (r *Result) Record(key string) *models.ReconRecord {
	return r.Records[key]
}

// OrderedRecords returns all records in deterministic insertion order.
func (r *Result) OrderedRecords() []*models.ReconRecord {
	out := make([]*models.ReconRecord, 0, len(r.Order))
	for _, key := range r.Order {
		if rec, ok := r.Records[key]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// CarryOverState packages the next cycle's carry-over entries for the store.
func (r *Result) CarryOverState(at time.Time) *models.CarryOverState {
	return &models.CarryOverState{
		Entries:     r.CarryOver,
		LastCycleID: r.CycleID,
		UpdatedAt:   at,
	}
}

// assemble folds the classified working tables into reconciliation records,
// classifies the rows no step touched, and derives the next cycle's
// carry-over entries.
func (e *Engine) assemble() *Result {
	records := make(map[string]*models.ReconRecord)
	var order []string
	extras := make(map[string]bool)

	get := func(key string) *models.ReconRecord {
		rec, ok := records[key]
		if !ok {
			rec = models.NewReconRecord(key, e.cycleID)
			records[key] = rec
			order = append(order, key)
		}
		return rec
	}

	for _, t := range e.tables() {
		for i := 0; i < t.Len(); i++ {
			row := t.Row(i)
			key := row.Key()
			if key == "" {
				// Keyless rows (settlement lumps) each get their own record.
				key = fmt.Sprintf("%s-ROW-%04d", t.Source, i+1)
			}
			rec := get(key)
			if rec.Has(t.Source) {
				extras[key] = true
				rec.Remarks = appendRemark(rec.Remarks,
					fmt.Sprintf("additional %s row (%s %s)", t.Source, row.DrCr, row.Amount.StringFixed(2)))
			} else if err := rec.Attach(row); err != nil {
				rec.Remarks = appendRemark(rec.Remarks, err.Error())
			}
			if t.IsProcessed(i) {
				foldMark(rec, t.MarkOf(i))
			}
		}
	}

	for i := range e.escalated {
		entry := &e.escalated[i]
		if _, ok := records[entry.RRN]; ok {
			continue
		}
		rec := get(entry.RRN)
		if err := rec.Attach(e.syntheticCarryTxn(entry)); err != nil {
			rec.Remarks = appendRemark(rec.Remarks, err.Error())
		}
		rec.Status = models.StatusUnmatched
		rec.ExceptionType = models.ExcCarryOverTTUM
		rec.TTUMRequired = true
		rec.TTUMType = entry.AutoTTUMType()
		rec.Remarks = appendRemark(rec.Remarks, fmt.Sprintf("hanging since cycle %s", entry.FirstSeenCycle))
	}

	for _, key := range order {
		rec := records[key]
		if rec.Status == models.StatusUnknown {
			e.classifyLeftover(rec, extras[key])
		}
		e.setDirection(rec)
	}

	carried := make(map[string]bool, len(e.carryOut))
	for i := range e.carryOut {
		carried[e.carryOut[i].RRN] = true
	}
	carryOut := e.carryOut
	for _, key := range order {
		rec := records[key]
		if rec.Status != models.StatusHanging || rec.RRN == "" || carried[rec.RRN] {
			continue
		}
		carried[rec.RRN] = true
		carryOut = append(carryOut, models.CarryOverEntry{
			RRN:             rec.RRN,
			Amount:          rec.Amount(),
			DrCr:            rec.DrCr(),
			Reason:          rec.ExceptionType,
			FirstSeenCycle:  e.cycleID,
			LastCycleID:     e.cycleID,
			CyclesPersisted: 0,
		})
	}

	result := &Result{
		CycleID:       e.cycleID,
		Records:       records,
		Order:         order,
		StepTrace:     e.trace,
		CarryOver:     carryOut,
		SwitchUpdates: e.switchUpdates,
	}
	result.Summary = e.summarize(result)
	return result
}

// classifyLeftover assigns a terminal status to a record none of the steps
// decided, from slot population and pairwise agreement alone.
func (e *Engine) classifyLeftover(rec *models.ReconRecord, hasExtras bool) {
	if hasExtras {
		rec.Status = models.StatusDuplicate
		return
	}

	populated := rec.PopulatedSources()
	switch len(populated) {
	case 3:
		cbs := rec.Get(models.SourceCBS)
		sw := rec.Get(models.SourceSwitch)
		npci := rec.Get(models.SourceNPCI)
		if e.tripleAgrees(cbs, sw, npci) {
			rec.Status = models.StatusMatched
			return
		}
		rec.Status = models.StatusMismatch
		rec.ExceptionType = e.disagreementTag(cbs, sw, npci)

	case 2:
		if rec.Has(models.SourceCBS) && rec.Has(models.SourceSwitch) {
			// NPCI has not reported the transaction yet.
			rec.Status = models.StatusHanging
			rec.ExceptionType = models.ExcNPCIMissing
			return
		}
		a := rec.Get(populated[0])
		b := rec.Get(populated[1])
		if e.config.AmountsAgree(a.Amount, b.Amount) &&
			models.DatesWithinTolerance(a.TranDate, b.TranDate, e.config.DateToleranceDays) {
			rec.Status = models.StatusPartialMatch
			return
		}
		rec.Status = models.StatusPartialMismatch
		rec.ExceptionType = e.disagreementTag(a, b)

	default:
		rec.Status = models.StatusOrphan
	}
}

// disagreementTag names the first disagreement found among the present rows:
// amounts take precedence over dates.
func (e *Engine) disagreementTag(txns ...*models.Transaction) string {
	var present []*models.Transaction
	for _, t := range txns {
		if t != nil {
			present = append(present, t)
		}
	}
	for i := 0; i < len(present); i++ {
		for j := i + 1; j < len(present); j++ {
			if !e.config.AmountsAgree(present[i].Amount, present[j].Amount) {
				return models.ExcAmountMismatch
			}
		}
	}
	return models.ExcDateMismatch
}

// setDirection infers the record's direction from transaction type keywords
// across all populated sources, falling back to the Dr/Cr indicator.
func (e *Engine) setDirection(rec *models.ReconRecord) {
	var hints []string
	for _, source := range models.ReconSources() {
		if txn := rec.Get(source); txn != nil {
			if txn.TranType != "" {
				hints = append(hints, txn.TranType)
			}
			if txn.TranSubtype != "" {
				hints = append(hints, txn.TranSubtype)
			}
		}
	}
	rec.Direction = models.InferDirection(strings.Join(hints, " "), rec.DrCr())
}

// summarize builds the run summary from the assembled records.
func (e *Engine) summarize(result *Result) *Summary {
	s := &Summary{
		CycleID: e.cycleID,
		SourceRows: map[models.Source]int{
			models.SourceCBS:    e.cbs.Len(),
			models.SourceSwitch: e.sw.Len(),
			models.SourceNPCI:   e.npci.Len(),
		},
		CarryOverOut:  len(result.CarryOver),
		SwitchUpdates: len(e.switchUpdates),
	}
	if e.carryIn != nil {
		s.CarryOverIn = len(e.carryIn.Entries)
	}
	result.Summary = s
	result.RecountStatus()
	return s
}

// RecountStatus refreshes the summary's record-derived aggregates. Called
// after assembly, and again whenever records are mutated outside the engine
// (rollbacks flip statuses in place). Source-derived fields keep the values
// captured at assembly time.
func (r *Result) RecountStatus() {
	if r.Summary == nil {
		return
	}
	s := r.Summary
	s.TotalRecords = 0
	s.ByStatus = make(map[models.ReconStatus]int)
	s.ByException = make(map[string]int)
	s.TTUMRequired = 0
	s.TCCRaised = 0
	s.MatchedAmount = decimal.Zero
	s.UnmatchedAmount = decimal.Zero

	for _, key := range r.Order {
		rec, ok := r.Records[key]
		if !ok {
			continue
		}
		s.TotalRecords++
		s.ByStatus[rec.Status]++
		if rec.ExceptionType != "" {
			s.ByException[rec.ExceptionType]++
		}
		if rec.TTUMRequired {
			s.TTUMRequired++
		}
		if rec.TCCType != models.TCCNone {
			s.TCCRaised++
		}
		switch {
		case rec.Status.IsMatched():
			s.MatchedAmount = s.MatchedAmount.Add(rec.Amount())
		case rec.Status == models.StatusUnmatched:
			s.UnmatchedAmount = s.UnmatchedAmount.Add(rec.Amount())
		}
	}
}

// statusRank orders statuses for record-level folding: when rows of one
// record carry different marks, the highest rank wins. Corrective outcomes
// dominate settled ones.
func statusRank(s models.ReconStatus) int {
	switch s {
	case models.StatusUnmatched:
		return 90
	case models.StatusHanging:
		return 80
	case models.StatusException:
		return 70
	case models.StatusDuplicate:
		return 60
	case models.StatusMismatch:
		return 55
	case models.StatusPartialMismatch:
		return 50
	case models.StatusForceMatched:
		return 45
	case models.StatusMatched:
		return 40
	case models.StatusPartialMatch:
		return 30
	case models.StatusOrphan:
		return 20
	default:
		return 0
	}
}

// foldMark merges one row's classification into its record. Folding order is
// CBS, Switch, NPCI, rows in insertion order, so ties resolve to the bank's
// view first.
func foldMark(rec *models.ReconRecord, m Mark) {
	if m.TTUMRequired {
		rec.TTUMRequired = true
	}
	if rec.TTUMType == models.TTUMNone {
		rec.TTUMType = m.TTUMType
	}
	if rec.TCCType == models.TCCNone {
		rec.TCCType = m.TCCType
	}

	if statusRank(m.Status) > statusRank(rec.Status) {
		rec.Status = m.Status
		rec.ExceptionType = m.Exception
	} else if m.Status == rec.Status && rec.ExceptionType == "" {
		rec.ExceptionType = m.Exception
	}
}

func appendRemark(remarks, note string) string {
	if note == "" {
		return remarks
	}
	if remarks == "" {
		return note
	}
	return remarks + "; " + note
}
