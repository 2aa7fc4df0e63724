package matcher

import (
	"fmt"
	"sort"
	"strings"

	"upi-reconciliation-service/internal/models"
)

// MatrixAction is the corrective action an exception matrix cell prescribes
// for a leg-status combination.
type MatrixAction string

const (
	// ActionMatched closes the triple as matched. Amount and date agreement
	// is still verified before the rows are consumed.
	ActionMatched MatrixAction = "MATCHED"

	// ActionConditionalTCC102 matches the triple with a TCC_102 technical
	// credit confirmation when the NPCI response is deemed (RB); without RB
	// the rows are left unmatched.
	ActionConditionalTCC102 MatrixAction = "CONDITIONAL_TCC_102"

	// ActionRemitterRefundTTUM refunds the remitter: all legs unmatched,
	// reversal TTUM raised.
	ActionRemitterRefundTTUM MatrixAction = "REMITTER_REFUND_TTUM"

	// ActionBeneficiaryRecoveryTTUM recovers funds credited without a bank
	// posting: NPCI leg unmatched, beneficiary-credit TTUM raised.
	ActionBeneficiaryRecoveryTTUM MatrixAction = "BENEFICIARY_RECOVERY_TTUM"

	// ActionSwitchUpdate flags the switch leg for an external status update.
	ActionSwitchUpdate MatrixAction = "SWITCH_UPDATE"

	// ActionConditionalTCC102SwitchUpdate flags the switch leg for update
	// and attaches TCC_102 when the NPCI response is deemed.
	ActionConditionalTCC102SwitchUpdate MatrixAction = "CONDITIONAL_TCC_102_SWITCH_UPDATE"

	// ActionRemitterRecoveryTTUM recovers an outward settlement the bank
	// never debited: all legs unmatched, recovery TTUM raised.
	ActionRemitterRecoveryTTUM MatrixAction = "REMITTER_RECOVERY_TTUM"

	// ActionBeneficiaryCreditTTUMTCC103 credits the beneficiary with a
	// TCC_103 confirmation when only NPCI settled the leg.
	ActionBeneficiaryCreditTTUMTCC103 MatrixAction = "BENEFICIARY_CREDIT_TTUM_TCC_103"

	// ActionUnmatched leaves the rows unmatched for manual review. This is
	// also the fallback for combinations the matrix does not know.
	ActionUnmatched MatrixAction = "UNMATCHED"
)

// IsValid reports whether the action is recognised.
func (a MatrixAction) IsValid() bool {
	switch a {
	case ActionMatched, ActionConditionalTCC102, ActionRemitterRefundTTUM,
		ActionBeneficiaryRecoveryTTUM, ActionSwitchUpdate,
		ActionConditionalTCC102SwitchUpdate, ActionRemitterRecoveryTTUM,
		ActionBeneficiaryCreditTTUMTCC103, ActionUnmatched:
		return true
	}
	return false
}

// MatrixKey addresses one cell of the exception matrix: the CBS, Switch and
// NPCI leg statuses plus the transaction direction.
type MatrixKey struct {
	Direction models.Direction
	CBS       models.LegStatus
	Switch    models.LegStatus
	NPCI      models.LegStatus
}

// String renders the key in the configuration form "DIRECTION:C,S,N" with
// leg letters S and F, e.g. "INWARD:S,S,F".
func (k MatrixKey) String() string {
	return fmt.Sprintf("%s:%s,%s,%s",
		k.Direction, legLetter(k.CBS), legLetter(k.Switch), legLetter(k.NPCI))
}

func legLetter(s models.LegStatus) string {
	if s == models.LegSuccess {
		return "S"
	}
	return "F"
}

// ParseMatrixKey parses the configuration form produced by MatrixKey.String.
func ParseMatrixKey(s string) (MatrixKey, error) {
	var key MatrixKey

	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return key, fmt.Errorf("matrix key %q: want DIRECTION:C,S,N", s)
	}

	switch strings.ToUpper(parts[0]) {
	case string(models.DirectionInward):
		key.Direction = models.DirectionInward
	case string(models.DirectionOutward):
		key.Direction = models.DirectionOutward
	default:
		return key, fmt.Errorf("matrix key %q: unknown direction %q", s, parts[0])
	}

	legs := strings.Split(parts[1], ",")
	if len(legs) != 3 {
		return key, fmt.Errorf("matrix key %q: want three leg letters", s)
	}
	statuses := make([]models.LegStatus, 3)
	for i, leg := range legs {
		switch strings.ToUpper(strings.TrimSpace(leg)) {
		case "S":
			statuses[i] = models.LegSuccess
		case "F":
			statuses[i] = models.LegFailed
		default:
			return key, fmt.Errorf("matrix key %q: leg letter %q is not S or F", s, leg)
		}
	}
	key.CBS, key.Switch, key.NPCI = statuses[0], statuses[1], statuses[2]
	return key, nil
}

// Matrix maps leg-status combinations to corrective actions. Combinations
// without a cell fall back to ActionUnmatched.
type Matrix struct {
	cells map[MatrixKey]MatrixAction
}

// DefaultMatrix returns the standard UPI exception matrix.
func DefaultMatrix() *Matrix {
	in, out := models.DirectionInward, models.DirectionOutward
	s, f := models.LegSuccess, models.LegFailed

	return &Matrix{cells: map[MatrixKey]MatrixAction{
		{in, s, s, s}:  ActionMatched,
		{out, s, s, s}: ActionMatched,

		{in, s, s, f}:  ActionConditionalTCC102,
		{out, s, s, f}: ActionRemitterRefundTTUM,

		{in, f, s, s}:  ActionBeneficiaryRecoveryTTUM,
		{out, f, s, s}: ActionRemitterRecoveryTTUM,

		{in, s, f, s}:  ActionConditionalTCC102SwitchUpdate,
		{out, s, f, s}: ActionSwitchUpdate,

		{in, f, f, s}: ActionBeneficiaryCreditTTUMTCC103,
	}}
}

// NewMatrix builds the default matrix and applies the given cell overrides.
// Override keys use the ParseMatrixKey form; values name a MatrixAction.
func NewMatrix(overrides map[string]string) (*Matrix, error) {
	m := DefaultMatrix()
	if len(overrides) == 0 {
		return m, nil
	}

	// Apply overrides in sorted key order so a bad entry is reported
	// deterministically.
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key, err := ParseMatrixKey(k)
		if err != nil {
			return nil, err
		}
		action := MatrixAction(strings.ToUpper(strings.TrimSpace(overrides[k])))
		if !action.IsValid() {
			return nil, fmt.Errorf("matrix override %q: unknown action %q", k, overrides[k])
		}
		m.cells[key] = action
	}
	return m, nil
}

// Decide returns the action for a leg-status combination. The boolean is
// false when the matrix has no cell for the combination; the caller gets
// ActionUnmatched and should log the gap.
func (m *Matrix) Decide(key MatrixKey) (MatrixAction, bool) {
	if action, ok := m.cells[key]; ok {
		return action, true
	}
	return ActionUnmatched, false
}

// Len returns the number of populated cells.
func (m *Matrix) Len() int {
	return len(m.cells)
}
