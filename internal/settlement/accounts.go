// Package settlement turns reconciliation outcomes into accounting
// artefacts: double-entry vouchers, the posted GL statement, and the
// TTUM instruction files uploaded back to the clearing network.
//
// Voucher legs and TTUM postings draw their GL accounts from a static
// account map. The voucher side is fixed (Bank against Settlement
// Receivable for matched payments, Suspense against Settlement Payable
// for partials and orphans); TTUM postings key on the instruction
// category and the record's direction, with per-RRN issuer actions able
// to override both the category and the accounts.
package settlement

import (
	"fmt"
	"os"

	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/pkg/atomicfile"
	"upi-reconciliation-service/pkg/errors"
)

// Category names a TTUM instruction file. Each category becomes one
// CSV+XLSX pair under ttum/cycle_<id>/.
type Category string

const (
	CategoryDRC      Category = "DRC"
	CategoryRRC      Category = "RRC"
	CategoryTCC      Category = "TCC"
	CategoryRET      Category = "RET"
	CategoryRecovery Category = "RECOVERY"
	CategoryRefund   Category = "REFUND"
)

// Categories returns the TTUM categories in fixed emission order.
func Categories() []Category {
	return []Category{
		CategoryDRC,
		CategoryRRC,
		CategoryTCC,
		CategoryRET,
		CategoryRecovery,
		CategoryRefund,
	}
}

// IsValid reports whether the category is one of the six TTUM files.
func (c Category) IsValid() bool {
	switch c {
	case CategoryDRC, CategoryRRC, CategoryTCC, CategoryRET, CategoryRecovery, CategoryRefund:
		return true
	}
	return false
}

// Account is one general-ledger account reference.
type Account struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// IsZero reports whether the account is unset.
func (a Account) IsZero() bool {
	return a.Code == "" && a.Name == ""
}

// AccountPair names the debit and credit accounts one posting uses.
type AccountPair struct {
	Debit  Account `json:"debit"`
	Credit Account `json:"credit"`
}

// TTUMAccounts binds one (category, direction) cell of the account map
// to its posting pair.
type TTUMAccounts struct {
	Category  Category         `json:"category"`
	Direction models.Direction `json:"direction"`
	Debit     Account          `json:"debit"`
	Credit    Account          `json:"credit"`
}

// Accounts is the static GL account map: the four voucher legs plus the
// TTUM posting pairs keyed by category and direction.
type Accounts struct {
	Bank                 Account        `json:"bank"`
	SettlementReceivable Account        `json:"settlement_receivable"`
	Suspense             Account        `json:"suspense"`
	SettlementPayable    Account        `json:"settlement_payable"`
	TTUM                 []TTUMAccounts `json:"ttum"`
}

// DefaultAccounts returns the standard chart: the four voucher accounts
// and a posting pair for every (category, direction) cell. All TTUM
// postings wash through the NPCI settlement account.
func DefaultAccounts() *Accounts {
	npci := Account{Code: "305001", Name: "NPCI Settlement"}
	suspense := Account{Code: "401001", Name: "Suspense"}
	beneficiary := Account{Code: "401002", Name: "Beneficiary Suspense"}
	remitter := Account{Code: "401003", Name: "Remitter Suspense"}
	recovery := Account{Code: "501001", Name: "Customer Recovery"}
	refund := Account{Code: "501002", Name: "Customer Refund"}
	dispute := Account{Code: "601001", Name: "Dispute Pool"}

	return &Accounts{
		Bank:                 Account{Code: "201001", Name: "Bank"},
		SettlementReceivable: Account{Code: "305002", Name: "Settlement Receivable"},
		Suspense:             suspense,
		SettlementPayable:    Account{Code: "305003", Name: "Settlement Payable"},
		TTUM: []TTUMAccounts{
			{CategoryDRC, models.DirectionInward, dispute, npci},
			{CategoryDRC, models.DirectionOutward, npci, dispute},
			{CategoryRRC, models.DirectionInward, npci, beneficiary},
			{CategoryRRC, models.DirectionOutward, suspense, npci},
			{CategoryTCC, models.DirectionInward, npci, beneficiary},
			{CategoryTCC, models.DirectionOutward, remitter, npci},
			{CategoryRET, models.DirectionInward, beneficiary, npci},
			{CategoryRET, models.DirectionOutward, npci, remitter},
			{CategoryRecovery, models.DirectionInward, recovery, npci},
			{CategoryRecovery, models.DirectionOutward, npci, recovery},
			{CategoryRefund, models.DirectionInward, npci, refund},
			{CategoryRefund, models.DirectionOutward, refund, npci},
		},
	}
}

// Validate checks that every voucher account is set, every TTUM cell is
// well-formed, and no (category, direction) cell repeats.
func (a *Accounts) Validate() error {
	for _, acc := range []struct {
		name    string
		account Account
	}{
		{"bank", a.Bank},
		{"settlement_receivable", a.SettlementReceivable},
		{"suspense", a.Suspense},
		{"settlement_payable", a.SettlementPayable},
	} {
		if acc.account.Code == "" {
			return fmt.Errorf("account %q has no code", acc.name)
		}
	}

	seen := make(map[string]bool)
	for i, cell := range a.TTUM {
		if !cell.Category.IsValid() {
			return fmt.Errorf("ttum cell %d has unknown category %q", i, cell.Category)
		}
		if cell.Direction != models.DirectionInward && cell.Direction != models.DirectionOutward {
			return fmt.Errorf("ttum cell %d has unknown direction %q", i, cell.Direction)
		}
		if cell.Debit.Code == "" || cell.Credit.Code == "" {
			return fmt.Errorf("ttum cell %s/%s is missing an account code", cell.Category, cell.Direction)
		}
		key := string(cell.Category) + ":" + string(cell.Direction)
		if seen[key] {
			return fmt.Errorf("duplicate ttum cell %s/%s", cell.Category, cell.Direction)
		}
		seen[key] = true
	}
	return nil
}

// PairFor returns the posting pair for a category and direction. Records
// with no inferred direction fall back to the inward cell.
func (a *Accounts) PairFor(category Category, direction models.Direction) (AccountPair, bool) {
	if direction != models.DirectionInward && direction != models.DirectionOutward {
		direction = models.DirectionInward
	}
	for _, cell := range a.TTUM {
		if cell.Category == category && cell.Direction == direction {
			return AccountPair{Debit: cell.Debit, Credit: cell.Credit}, true
		}
	}
	return AccountPair{}, false
}

// LoadAccounts reads a GL account map from a JSON file. An empty path
// returns the default chart.
func LoadAccounts(path string) (*Accounts, error) {
	if path == "" {
		return DefaultAccounts(), nil
	}

	accounts := &Accounts{}
	if err := atomicfile.LoadJSON(path, accounts); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	if err := accounts.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "gl_accounts", path, err)
	}
	return accounts, nil
}

// IssuerAction is a per-RRN override applied when building TTUM rows:
// it can redirect the record to a different category and replace either
// posting leg.
type IssuerAction struct {
	RRN      string   `json:"rrn"`
	Category Category `json:"category,omitempty"`
	Debit    *Account `json:"debit,omitempty"`
	Credit   *Account `json:"credit,omitempty"`
	Remarks  string   `json:"remarks,omitempty"`
}

// IssuerActions maps RRNs to their overrides.
type IssuerActions map[string]IssuerAction

// LoadIssuerActions reads the issuer-action list from a JSON file. An
// empty path yields an empty map; a repeated RRN is a configuration
// error rather than a silent last-wins.
func LoadIssuerActions(path string) (IssuerActions, error) {
	if path == "" {
		return IssuerActions{}, nil
	}

	var list []IssuerAction
	if err := atomicfile.LoadJSON(path, &list); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}

	actions := make(IssuerActions, len(list))
	for i, action := range list {
		if action.RRN == "" {
			return nil, errors.ValidationError(errors.CodeMissingField, "rrn", i,
				fmt.Errorf("issuer action %d has no RRN", i))
		}
		if action.Category != "" && !action.Category.IsValid() {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "issuer_actions", action.Category,
				fmt.Errorf("issuer action for %s names unknown category %q", action.RRN, action.Category))
		}
		if _, dup := actions[action.RRN]; dup {
			return nil, errors.ValidationError(errors.CodeDuplicateReference, "rrn", action.RRN,
				fmt.Errorf("issuer action for %s appears twice", action.RRN))
		}
		actions[action.RRN] = action
	}
	return actions, nil
}
