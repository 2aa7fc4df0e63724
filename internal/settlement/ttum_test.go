package settlement

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/pkg/errors"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.ReconRecord)
		want     Category
		selected bool
	}{
		{
			name: "drc raised beats tcc",
			mutate: func(r *models.ReconRecord) {
				r.ExceptionType = models.ExcDRCRaised
				r.TCCType = models.TCC102
				r.TTUMRequired = true
			},
			want:     CategoryDRC,
			selected: true,
		},
		{
			name: "tcc without ttum flag",
			mutate: func(r *models.ReconRecord) {
				r.TCCType = models.TCC102
				r.ExceptionType = models.ExcTCC102
			},
			want:     CategoryTCC,
			selected: true,
		},
		{
			name: "tcc 103 with beneficiary credit",
			mutate: func(r *models.ReconRecord) {
				r.TCCType = models.TCC103
				r.TTUMRequired = true
				r.TTUMType = models.TTUMBeneficiaryCredit
			},
			want:     CategoryTCC,
			selected: true,
		},
		{
			name: "remitter refund",
			mutate: func(r *models.ReconRecord) {
				r.ExceptionType = models.ExcRemitterRefund
				r.TTUMRequired = true
				r.TTUMType = models.TTUMReversal
			},
			want:     CategoryRefund,
			selected: true,
		},
		{
			name: "beneficiary recovery",
			mutate: func(r *models.ReconRecord) {
				r.ExceptionType = models.ExcBeneficiaryRecovery
				r.TTUMRequired = true
				r.TTUMType = models.TTUMBeneficiaryCredit
			},
			want:     CategoryRecovery,
			selected: true,
		},
		{
			name: "recovery by ttum type",
			mutate: func(r *models.ReconRecord) {
				r.TTUMRequired = true
				r.TTUMType = models.TTUMRecovery
			},
			want:     CategoryRecovery,
			selected: true,
		},
		{
			name: "beneficiary credit lands in rrc",
			mutate: func(r *models.ReconRecord) {
				r.TTUMRequired = true
				r.TTUMType = models.TTUMBeneficiaryCredit
			},
			want:     CategoryRRC,
			selected: true,
		},
		{
			name: "reversal lands in ret",
			mutate: func(r *models.ReconRecord) {
				r.TTUMRequired = true
				r.TTUMType = models.TTUMReversal
				r.ExceptionType = models.ExcCarryOverTTUM
			},
			want:     CategoryRET,
			selected: true,
		},
		{
			name: "investigation lands in ret",
			mutate: func(r *models.ReconRecord) {
				r.TTUMRequired = true
				r.TTUMType = models.TTUMInvestigation
			},
			want:     CategoryRET,
			selected: true,
		},
		{
			name:     "plain matched record stays out",
			mutate:   func(r *models.ReconRecord) {},
			selected: false,
		},
		{
			name: "ttum flag without instruction stays out",
			mutate: func(r *models.ReconRecord) {
				r.TTUMRequired = true
				r.ExceptionType = models.ExcDoubleDebitCredit
			},
			selected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecord("400000000001", "400000000001", models.StatusMatched, "100.00")
			tt.mutate(rec)
			got, ok := Categorize(rec)
			if ok != tt.selected {
				t.Fatalf("selected = %v, want %v", ok, tt.selected)
			}
			if ok && got != tt.want {
				t.Errorf("category = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGenerator_BuildTTUMRows(t *testing.T) {
	refund := newRecord("400000000001", "400000000001", models.StatusUnmatched, "150.00")
	refund.ExceptionType = models.ExcRemitterRefund
	refund.TTUMRequired = true
	refund.TTUMType = models.TTUMReversal
	refund.Direction = models.DirectionOutward

	tcc := newRecord("400000000002", "400000000002", models.StatusMatched, "90.00")
	tcc.ExceptionType = models.ExcTCC102
	tcc.TCCType = models.TCC102

	result := newResult(refund, tcc, newRecord("400000000003", "400000000003", models.StatusMatched, "10.00"))

	g := newTestGenerator(t)
	rows, err := g.BuildTTUMRows(result)
	if err != nil {
		t.Fatalf("BuildTTUMRows: %v", err)
	}

	if len(rows[CategoryRefund]) != 1 {
		t.Fatalf("refund rows = %d, want 1", len(rows[CategoryRefund]))
	}
	row := rows[CategoryRefund][0]
	if row.Instruction != "REVERSAL" {
		t.Errorf("instruction = %s", row.Instruction)
	}
	// REFUND/OUTWARD debits the refund account into NPCI settlement.
	if row.Pair.Debit.Code != "501002" || row.Pair.Credit.Code != "305001" {
		t.Errorf("pair = %s/%s", row.Pair.Debit.Code, row.Pair.Credit.Code)
	}

	if len(rows[CategoryTCC]) != 1 {
		t.Fatalf("tcc rows = %d, want 1", len(rows[CategoryTCC]))
	}
	if rows[CategoryTCC][0].Instruction != "TCC_102" {
		t.Errorf("tcc instruction = %s", rows[CategoryTCC][0].Instruction)
	}

	if len(rows[CategoryRET]) != 0 {
		t.Errorf("unexpected RET rows: %d", len(rows[CategoryRET]))
	}
}

func TestGenerator_BuildTTUMRows_IssuerOverrides(t *testing.T) {
	rec := newRecord("400000000001", "400000000001", models.StatusUnmatched, "150.00")
	rec.TTUMRequired = true
	rec.TTUMType = models.TTUMReversal

	actions := IssuerActions{
		"400000000001": {
			RRN:      "400000000001",
			Category: CategoryRecovery,
			Debit:    &Account{Code: "888001", Name: "Issuer Escrow"},
			Remarks:  "issuer directed",
		},
	}

	g := newTestGenerator(t, WithIssuerActions(actions))
	rows, err := g.BuildTTUMRows(newResult(rec))
	if err != nil {
		t.Fatalf("BuildTTUMRows: %v", err)
	}

	if len(rows[CategoryRET]) != 0 {
		t.Error("record stayed in RET despite issuer redirect")
	}
	recovery := rows[CategoryRecovery]
	if len(recovery) != 1 {
		t.Fatalf("recovery rows = %d, want 1", len(recovery))
	}
	row := recovery[0]
	if row.Pair.Debit.Code != "888001" {
		t.Errorf("debit override = %s", row.Pair.Debit.Code)
	}
	// The credit leg keeps the account-map value for RECOVERY/INWARD.
	if row.Pair.Credit.Code != "305001" {
		t.Errorf("credit leg = %s", row.Pair.Credit.Code)
	}
	if !strings.Contains(row.Remarks, "issuer directed") {
		t.Errorf("remarks = %q", row.Remarks)
	}
}

func TestGenerator_BuildTTUMRows_MissingPair(t *testing.T) {
	accounts := DefaultAccounts()
	accounts.TTUM = accounts.TTUM[:2] // DRC cells only

	g, err := NewGenerator(accounts)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	rec := newRecord("400000000001", "400000000001", models.StatusUnmatched, "10.00")
	rec.TTUMRequired = true
	rec.TTUMType = models.TTUMReversal

	_, err = g.BuildTTUMRows(newResult(rec))
	re, ok := errors.AsReconcilerError(err)
	if !ok || re.Code != errors.CodeMissingConfig {
		t.Fatalf("err = %v, want CodeMissingConfig", err)
	}
}

func TestGenerator_WriteTTUMFiles(t *testing.T) {
	refund := newRecord("400000000001", "400000000001", models.StatusUnmatched, "150.00")
	refund.ExceptionType = models.ExcRemitterRefund
	refund.TTUMRequired = true
	refund.TTUMType = models.TTUMReversal

	ret := newRecord("400000000002", "400000000002", models.StatusUnmatched, "60.00")
	ret.TTUMRequired = true
	ret.TTUMType = models.TTUMReversal

	dir := t.TempDir()
	g := newTestGenerator(t)
	counts, err := g.WriteTTUMFiles(dir, newResult(refund, ret), time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("WriteTTUMFiles: %v", err)
	}

	if counts[CategoryRefund] != 1 || counts[CategoryRET] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if len(counts) != 2 {
		t.Errorf("categories written = %d, want 2", len(counts))
	}

	for _, base := range []string{"TTUM_REFUND", "TTUM_RET"} {
		for _, ext := range []string{".csv", ".xlsx"} {
			if _, err := os.Stat(filepath.Join(dir, base+ext)); err != nil {
				t.Errorf("missing %s%s: %v", base, ext, err)
			}
		}
	}
	// Empty categories produce no files.
	if _, err := os.Stat(filepath.Join(dir, "TTUM_DRC.csv")); !os.IsNotExist(err) {
		t.Error("TTUM_DRC.csv written for empty category")
	}

	data, err := os.ReadFile(filepath.Join(dir, "TTUM_RET.csv"))
	if err != nil {
		t.Fatalf("read TTUM_RET.csv: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "Sl_No,TTUM_Type,RRN,") {
		t.Errorf("header = %q", strings.SplitN(content, "\n", 2)[0])
	}
	if !strings.Contains(content, "1,REVERSAL,400000000002") {
		t.Errorf("row missing from %q", content)
	}
	if !strings.Contains(content, "2026-01-04") {
		t.Errorf("date missing from %q", content)
	}
}

func TestGenerator_WriteTTUMFiles_CategoryFilter(t *testing.T) {
	refund := newRecord("400000000001", "400000000001", models.StatusUnmatched, "150.00")
	refund.ExceptionType = models.ExcRemitterRefund
	refund.TTUMRequired = true
	refund.TTUMType = models.TTUMReversal

	ret := newRecord("400000000002", "400000000002", models.StatusUnmatched, "60.00")
	ret.TTUMRequired = true
	ret.TTUMType = models.TTUMReversal

	dir := t.TempDir()
	g := newTestGenerator(t, WithCategories([]Category{CategoryRET}))
	counts, err := g.WriteTTUMFiles(dir, newResult(refund, ret), time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("WriteTTUMFiles: %v", err)
	}

	if len(counts) != 1 || counts[CategoryRET] != 1 {
		t.Errorf("counts = %v, want RET only", counts)
	}
	if _, err := os.Stat(filepath.Join(dir, "TTUM_RET.csv")); err != nil {
		t.Errorf("missing TTUM_RET.csv: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "TTUM_REFUND.csv")); !os.IsNotExist(err) {
		t.Error("TTUM_REFUND.csv written despite filter")
	}
}
