package matcher

import (
	"upi-reconciliation-service/internal/models"
)

// Mark is the classification a matching step assigns to a row. Marking a row
// sets its sticky processed flag; later steps skip it.
type Mark struct {
	Status       models.ReconStatus
	Exception    string
	TTUMRequired bool
	TTUMType     models.TTUMType
	TCCType      models.TCCType
}

// SourceTable is one source's working table: an arena of rows in file order
// plus parallel classification vectors indexed by row position. Steps mutate
// the vectors, never the arena slice itself, so insertion order (and with it
// deterministic tie-breaking) survives the whole run.
type SourceTable struct {
	Source models.Source

	rows []*models.Transaction

	processed    []bool
	status       []models.ReconStatus
	exception    []string
	ttumRequired []bool
	ttumType     []models.TTUMType
	tccType      []models.TCCType

	// rrnIndex and upiIndex map identifiers to row positions, appended in
	// insertion order.
	rrnIndex map[string][]int
	upiIndex map[string][]int
}

// NewSourceTable builds a working table over a clone of the given
// transactions. Cloning keeps the engine side-effect-free on its inputs:
// adjustment pre-passes may overwrite amounts, and an aborted cycle must
// leave the caller's data untouched.
func NewSourceTable(source models.Source, txns []*models.Transaction) *SourceTable {
	t := &SourceTable{
		Source:       source,
		rows:         make([]*models.Transaction, 0, len(txns)),
		processed:    make([]bool, len(txns)),
		status:       make([]models.ReconStatus, len(txns)),
		exception:    make([]string, len(txns)),
		ttumRequired: make([]bool, len(txns)),
		ttumType:     make([]models.TTUMType, len(txns)),
		tccType:      make([]models.TCCType, len(txns)),
		rrnIndex:     make(map[string][]int),
		upiIndex:     make(map[string][]int),
	}

	for i, txn := range txns {
		clone := txn.Clone()
		clone.Source = source
		t.rows = append(t.rows, clone)
		t.status[i] = models.StatusUnknown

		if clone.RRN != "" {
			t.rrnIndex[clone.RRN] = append(t.rrnIndex[clone.RRN], i)
		}
		if clone.UPITranID != "" {
			t.upiIndex[clone.UPITranID] = append(t.upiIndex[clone.UPITranID], i)
		}
	}

	return t
}

// Len returns the number of rows in the table.
func (t *SourceTable) Len() int {
	return len(t.rows)
}

// Row returns the transaction at position i.
func (t *SourceTable) Row(i int) *models.Transaction {
	return t.rows[i]
}

// IsProcessed reports whether the row has been consumed by a step.
func (t *SourceTable) IsProcessed(i int) bool {
	return t.processed[i]
}

// Mark classifies a row and sets its processed flag. The flag is sticky:
// marking an already-processed row is a no-op and returns false.
func (t *SourceTable) Mark(i int, m Mark) bool {
	if t.processed[i] {
		return false
	}
	t.processed[i] = true
	t.status[i] = m.Status
	t.exception[i] = m.Exception
	t.ttumRequired[i] = m.TTUMRequired
	t.ttumType[i] = m.TTUMType
	t.tccType[i] = m.TCCType
	return true
}

// MarkOf returns the row's current classification.
func (t *SourceTable) MarkOf(i int) Mark {
	return Mark{
		Status:       t.status[i],
		Exception:    t.exception[i],
		TTUMRequired: t.ttumRequired[i],
		TTUMType:     t.ttumType[i],
		TCCType:      t.tccType[i],
	}
}

// RRNRows returns the positions of all rows carrying the RRN, in insertion
// order. The empty RRN has no index entry.
func (t *SourceTable) RRNRows(rrn string) []int {
	if rrn == "" {
		return nil
	}
	return t.rrnIndex[rrn]
}

// UPIRows returns the positions of all rows carrying the UPI transaction ID,
// in insertion order.
func (t *SourceTable) UPIRows(id string) []int {
	if id == "" {
		return nil
	}
	return t.upiIndex[id]
}

// UnprocessedRRNRows returns the positions of unprocessed rows carrying the
// RRN, in insertion order.
func (t *SourceTable) UnprocessedRRNRows(rrn string) []int {
	var out []int
	for _, i := range t.RRNRows(rrn) {
		if !t.processed[i] {
			out = append(out, i)
		}
	}
	return out
}

// HasRRN reports whether any row (processed or not) carries the RRN.
func (t *SourceTable) HasRRN(rrn string) bool {
	return len(t.RRNRows(rrn)) > 0
}

// FirstRRNRow returns the first row carrying the RRN, or nil.
func (t *SourceTable) FirstRRNRow(rrn string) *models.Transaction {
	rows := t.RRNRows(rrn)
	if len(rows) == 0 {
		return nil
	}
	return t.rows[rows[0]]
}

// UnprocessedCount returns the number of rows no step has consumed yet.
func (t *SourceTable) UnprocessedCount() int {
	count := 0
	for _, done := range t.processed {
		if !done {
			count++
		}
	}
	return count
}

// Key returns the reconciliation key of the row at position i.
func (t *SourceTable) Key(i int) string {
	return t.rows[i].Key()
}
