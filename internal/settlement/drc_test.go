package settlement

import (
	"strings"
	"testing"

	"upi-reconciliation-service/internal/models"
)

func drcRow(rrn string) *models.Transaction {
	return &models.Transaction{
		Source:   models.SourceAdjustment,
		RRN:      rrn,
		TranDate: testDate,
	}
}

func TestGenerator_ApplyDRC(t *testing.T) {
	matched := newRecord("400000000001", "400000000001", models.StatusMatched, "100.00")
	matched.ExceptionType = models.ExcTCC102
	matched.TCCType = models.TCC102
	clean := newRecord("400000000002", "400000000002", models.StatusMatched, "55.00")
	untouched := newRecord("400000000003", "400000000003", models.StatusOrphan, "20.00")

	result := newResult(matched, clean, untouched)
	g := newTestGenerator(t)

	marked := g.ApplyDRC(result, []*models.Transaction{
		drcRow("400000000001"),
		drcRow("400000000002"),
		drcRow("999999999999"), // unknown RRN is ignored
	})
	if marked != 2 {
		t.Fatalf("marked = %d, want 2", marked)
	}

	if matched.ExceptionType != models.ExcDRCRaised {
		t.Errorf("exception = %s", matched.ExceptionType)
	}
	if !matched.TTUMRequired {
		t.Error("TTUM flag not set")
	}
	if !strings.Contains(matched.Remarks, "was TCC_102") {
		t.Errorf("remarks = %q", matched.Remarks)
	}
	if clean.ExceptionType != models.ExcDRCRaised {
		t.Errorf("clean record exception = %s", clean.ExceptionType)
	}
	if clean.Remarks != "" {
		t.Errorf("clean record remarks = %q", clean.Remarks)
	}
	if untouched.ExceptionType != "" {
		t.Errorf("untouched record exception = %s", untouched.ExceptionType)
	}

	if result.Summary.ByException[models.ExcDRCRaised] != 2 {
		t.Errorf("summary exception count = %d, want 2", result.Summary.ByException[models.ExcDRCRaised])
	}

	// Disputed records now classify into the DRC file, ahead of TCC.
	category, ok := Categorize(matched)
	if !ok || category != CategoryDRC {
		t.Errorf("category = %s, ok=%v", category, ok)
	}

	// Re-applying the same report marks nothing new.
	if again := g.ApplyDRC(result, []*models.Transaction{drcRow("400000000001")}); again != 0 {
		t.Errorf("second apply marked %d", again)
	}
}

func TestGenerator_ApplyDRC_EmptyInputs(t *testing.T) {
	g := newTestGenerator(t)
	if n := g.ApplyDRC(nil, []*models.Transaction{drcRow("400000000001")}); n != 0 {
		t.Errorf("nil result marked %d", n)
	}
	result := newResult(newRecord("400000000001", "400000000001", models.StatusMatched, "10.00"))
	if n := g.ApplyDRC(result, nil); n != 0 {
		t.Errorf("empty report marked %d", n)
	}
}
