package reporter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"upi-reconciliation-service/internal/matcher"
	"upi-reconciliation-service/internal/models"
)

var reportDate = time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)

func txn(source models.Source, rrn, amount string, date time.Time) *models.Transaction {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		panic(err)
	}
	return &models.Transaction{
		Source:    source,
		RRN:       rrn,
		UPITranID: "UPI" + rrn,
		Amount:    amt,
		TranDate:  date,
		DrCr:      models.DrCrCredit,
	}
}

func record(key string, status models.ReconStatus, direction models.Direction, txns ...*models.Transaction) *models.ReconRecord {
	rec := models.NewReconRecord(key, "1C")
	rec.Status = status
	rec.Direction = direction
	for _, t := range txns {
		if err := rec.Attach(t); err != nil {
			panic(err)
		}
	}
	return rec
}

func buildResult(records ...*models.ReconRecord) *matcher.Result {
	result := &matcher.Result{
		CycleID: "1C",
		Records: make(map[string]*models.ReconRecord),
		Summary: &matcher.Summary{CycleID: "1C"},
	}
	for _, rec := range records {
		result.Records[rec.Key] = rec
		result.Order = append(result.Order, rec.Key)
	}
	result.RecountStatus()
	return result
}

func newTestEmitter(t *testing.T) *Emitter {
	t.Helper()
	e, err := NewEmitter(nil)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}
	return e
}

func TestEmitter_Write_FullFileSet(t *testing.T) {
	matched := record("400000000001", models.StatusMatched, models.DirectionInward,
		txn(models.SourceCBS, "400000000001", "100.00", reportDate),
		txn(models.SourceSwitch, "400000000001", "100.00", reportDate),
		txn(models.SourceNPCI, "400000000001", "100.00", reportDate),
	)
	result := buildResult(matched)

	reportsDir := t.TempDir()
	annexureDir := t.TempDir()
	e := newTestEmitter(t)

	manifest, err := e.Write(&Request{
		Result:       result,
		ReportsDir:   reportsDir,
		AnnexureDir:  annexureDir,
		Today:        reportDate,
		NPCIFileName: "ISSRP2PAXIS040126_1C.csv",
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Twelve tables, CSV+XLSX each, emitted even when empty.
	if len(manifest.Files) != 24 {
		t.Errorf("files = %d, want 24", len(manifest.Files))
	}
	if len(manifest.Rows) != 12 {
		t.Errorf("tables = %d, want 12", len(manifest.Rows))
	}

	wantReports := []string{
		"GL_vs_Switch_Inward", "GL_vs_Switch_Outward",
		"Switch_vs_NPCI_Inward", "Switch_vs_NPCI_Outward",
		"GL_vs_NPCI_Inward", "GL_vs_NPCI_Outward",
		"Unmatched_Inward_Ageing", "Unmatched_Outward_Ageing",
		"Hanging_Inward", "Hanging_Outward",
	}
	for _, base := range wantReports {
		for _, ext := range []string{".csv", ".xlsx"} {
			if _, err := os.Stat(filepath.Join(reportsDir, base+ext)); err != nil {
				t.Errorf("missing report %s%s", base, ext)
			}
		}
	}
	for _, base := range []string{"ANNEXURE_IV_TCC_RET", "ANNEXURE_IV_DRC_RRC"} {
		for _, ext := range []string{".csv", ".xlsx"} {
			if _, err := os.Stat(filepath.Join(annexureDir, base+ext)); err != nil {
				t.Errorf("missing annexure %s%s", base, ext)
			}
		}
	}

	if manifest.Rows["GL_vs_Switch_Inward"] != 1 {
		t.Errorf("GL_vs_Switch_Inward rows = %d, want 1", manifest.Rows["GL_vs_Switch_Inward"])
	}
	if manifest.Rows["Hanging_Inward"] != 0 {
		t.Errorf("Hanging_Inward rows = %d, want 0", manifest.Rows["Hanging_Inward"])
	}
}

func TestEmitter_Write_Validation(t *testing.T) {
	e := newTestEmitter(t)

	if _, err := e.Write(nil); err == nil {
		t.Error("nil request accepted")
	}
	if _, err := e.Write(&Request{Result: buildResult()}); err == nil {
		t.Error("missing directories accepted")
	}
}

func TestEmitter_PairwiseTables(t *testing.T) {
	full := record("400000000001", models.StatusMatched, models.DirectionInward,
		txn(models.SourceCBS, "400000000001", "100.00", reportDate),
		txn(models.SourceSwitch, "400000000001", "100.00", reportDate),
		txn(models.SourceNPCI, "400000000001", "100.00", reportDate),
	)
	// Force-matched with no NPCI leg: only the GL/Switch pair agrees.
	twoWay := record("400000000002", models.StatusForceMatched, models.DirectionOutward,
		txn(models.SourceCBS, "400000000002", "55.00", reportDate),
		txn(models.SourceSwitch, "400000000002", "55.00", reportDate),
	)
	// NPCI amount disagrees, so the NPCI pairs drop out.
	skewed := record("400000000003", models.StatusForceMatched, models.DirectionInward,
		txn(models.SourceCBS, "400000000003", "80.00", reportDate),
		txn(models.SourceSwitch, "400000000003", "80.00", reportDate),
		txn(models.SourceNPCI, "400000000003", "90.00", reportDate),
	)
	unmatched := record("400000000004", models.StatusUnmatched, models.DirectionInward,
		txn(models.SourceCBS, "400000000004", "10.00", reportDate),
	)

	e := newTestEmitter(t)
	tables := e.pairwiseTables(buildResult(full, twoWay, skewed, unmatched), reportDate)

	rows := make(map[string]int)
	for _, table := range tables {
		rows[table.Name] = table.Len()
	}

	want := map[string]int{
		"GL_vs_Switch_Inward":    2,
		"GL_vs_Switch_Outward":   1,
		"Switch_vs_NPCI_Inward":  1,
		"Switch_vs_NPCI_Outward": 0,
		"GL_vs_NPCI_Inward":      1,
		"GL_vs_NPCI_Outward":     0,
	}
	for name, count := range want {
		if rows[name] != count {
			t.Errorf("%s = %d rows, want %d", name, rows[name], count)
		}
	}

	for _, table := range tables {
		if table.Name != "GL_vs_Switch_Inward" {
			continue
		}
		row := table.Rows[0]
		wantRow := []string{"400000000001", "UPI400000000001", "2026-01-04", "100.00", "100.00", "CREDIT", "1C"}
		for i, cell := range wantRow {
			if row[i] != cell {
				t.Errorf("cell %d = %q, want %q", i, row[i], cell)
			}
		}
	}
}

func TestEmitter_PairwiseTables_DateDisagreement(t *testing.T) {
	// Relaxed matching can pair legs across midnight; the pairwise
	// agreement report only lists legs on the same calendar date.
	nextDay := reportDate.Add(24 * time.Hour)
	rec := record("400000000001", models.StatusMatched, models.DirectionInward,
		txn(models.SourceCBS, "400000000001", "100.00", reportDate),
		txn(models.SourceSwitch, "400000000001", "100.00", nextDay),
	)

	e := newTestEmitter(t)
	tables := e.pairwiseTables(buildResult(rec), reportDate)
	for _, table := range tables {
		if table.Len() != 0 {
			t.Errorf("%s has %d rows, want 0", table.Name, table.Len())
		}
	}
}

func TestEmitter_AgeingTables(t *testing.T) {
	fresh := record("400000000001", models.StatusUnmatched, models.DirectionInward,
		txn(models.SourceCBS, "400000000001", "10.00", reportDate),
	)
	fresh.ExceptionType = models.ExcNPCIDeclined
	twoDays := record("400000000002", models.StatusUnmatched, models.DirectionOutward,
		txn(models.SourceSwitch, "400000000002", "20.00", reportDate.Add(-48*time.Hour)),
	)
	twoDays.TTUMType = models.TTUMReversal
	old := record("400000000003", models.StatusUnmatched, models.DirectionOutward,
		txn(models.SourceCBS, "400000000003", "30.00", reportDate.Add(-5*24*time.Hour)),
	)
	hanging := record("400000000004", models.StatusHanging, models.DirectionInward,
		txn(models.SourceCBS, "400000000004", "40.00", reportDate),
	)

	e := newTestEmitter(t)
	tables := e.ageingTables(buildResult(fresh, twoDays, old, hanging), reportDate)

	inward, outward := tables[0], tables[1]
	if inward.Len() != 1 || outward.Len() != 2 {
		t.Fatalf("rows = %d/%d, want 1/2", inward.Len(), outward.Len())
	}

	row := inward.Rows[0]
	if row[7] != "0" || row[8] != "0-1 days" {
		t.Errorf("fresh age = %q bucket %q", row[7], row[8])
	}
	if row[5] != "NPCI_DECLINED" {
		t.Errorf("exception = %q", row[5])
	}

	if outward.Rows[0][7] != "2" || outward.Rows[0][8] != "2-3 days" {
		t.Errorf("two-day row = %v", outward.Rows[0])
	}
	if outward.Rows[0][6] != "REVERSAL" {
		t.Errorf("ttum type = %q", outward.Rows[0][6])
	}
	if outward.Rows[1][7] != "5" || outward.Rows[1][8] != ">3 days" {
		t.Errorf("old row = %v", outward.Rows[1])
	}
}

func TestEmitter_HangingTables(t *testing.T) {
	in := record("400000000001", models.StatusHanging, models.DirectionInward,
		txn(models.SourceCBS, "400000000001", "10.00", reportDate),
		txn(models.SourceSwitch, "400000000001", "10.00", reportDate),
	)
	in.ExceptionType = models.ExcNPCIMissing
	in.Remarks = "awaiting NPCI"
	out := record("400000000002", models.StatusHanging, models.DirectionOutward,
		txn(models.SourceSwitch, "400000000002", "20.00", reportDate),
	)
	out.ExceptionType = models.ExcSwitchOnly
	matched := record("400000000003", models.StatusMatched, models.DirectionInward,
		txn(models.SourceCBS, "400000000003", "30.00", reportDate),
	)

	e := newTestEmitter(t)
	tables := e.hangingTables(buildResult(in, out, matched), reportDate)

	inward, outward := tables[0], tables[1]
	if inward.Len() != 1 || outward.Len() != 1 {
		t.Fatalf("rows = %d/%d, want 1/1", inward.Len(), outward.Len())
	}
	row := inward.Rows[0]
	if row[5] != "NPCI_MISSING" || row[7] != "awaiting NPCI" {
		t.Errorf("hanging row = %v", row)
	}
	if outward.Rows[0][5] != "SWITCH_ONLY" {
		t.Errorf("outward exception = %q", outward.Rows[0][5])
	}
}

func TestAgeBucket(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{0, "0-1 days"},
		{1, "0-1 days"},
		{2, "2-3 days"},
		{3, "2-3 days"},
		{4, ">3 days"},
		{30, ">3 days"},
	}
	for _, tt := range tests {
		if got := ageBucket(tt.days); got != tt.want {
			t.Errorf("ageBucket(%d) = %q, want %q", tt.days, got, tt.want)
		}
	}
}

func TestEmitter_CSVDeterminism(t *testing.T) {
	build := func() *matcher.Result {
		return buildResult(
			record("400000000001", models.StatusMatched, models.DirectionInward,
				txn(models.SourceCBS, "400000000001", "100.00", reportDate),
				txn(models.SourceSwitch, "400000000001", "100.00", reportDate),
			),
		)
	}

	e := newTestEmitter(t)
	read := func(dir string) string {
		t.Helper()
		if _, err := e.Write(&Request{
			Result:      build(),
			ReportsDir:  dir,
			AnnexureDir: dir,
			Today:       reportDate,
		}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(dir, "GL_vs_Switch_Inward.csv"))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return string(data)
	}

	first := read(t.TempDir())
	second := read(t.TempDir())
	if first != second {
		t.Error("identical inputs produced different CSV bytes")
	}
	if !strings.Contains(first, "400000000001") {
		t.Errorf("row missing: %q", first)
	}
}
