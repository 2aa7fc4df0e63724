package reporter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"upi-reconciliation-service/internal/emit"
	"upi-reconciliation-service/internal/models"
)

// Annexure IV flag values.
const (
	FlagDRC   = "DRC"
	FlagRRC   = "RRC"
	FlagCrAdj = "Cr Adj"
	FlagTCC   = "TCC"
	FlagRET   = "RET"
)

// annexureHeader is the fixed 9-column NPCI adjustment schema. Column
// order and spelling are contractual; consumers parse by position.
var annexureHeader = []string{
	"Bankadjref", "Flag", "shtdat", "adjsmt", "Shser", "Shcrd",
	"FileName", "reason", "specifyother",
}

const (
	maxBankAdjRef   = 100
	maxReasonChars  = 5
	maxSpecifyOther = 400
)

const (
	annexureTCCRet = "ANNEXURE_IV_TCC_RET"
	annexureDRCRRC = "ANNEXURE_IV_DRC_RRC"
)

// bankAdjRefInvalid matches every character the Bankadjref column may
// not carry.
var bankAdjRefInvalid = regexp.MustCompile(`[^A-Za-z0-9\-_.\\/]`)

// flagReasons maps each flag to its short reason code.
var flagReasons = map[string]string{
	FlagTCC:   "TCC",
	FlagRET:   "RET",
	FlagRRC:   "RRC",
	FlagDRC:   "DRC",
	FlagCrAdj: "CRADJ",
}

// annexureTables builds the two Annexure IV sheets: confirmations and
// returns in one, disputes and credit adjustments in the other.
func (e *Emitter) annexureTables(req *Request, today time.Time) []*emit.Table {
	tccRet := &emit.Table{Name: annexureTCCRet, Header: annexureHeader, Stamp: today}
	drcRRC := &emit.Table{Name: annexureDRCRRC, Header: annexureHeader, Stamp: today}

	refs := newRefAllocator()
	for _, rec := range req.Result.OrderedRecords() {
		if !needsAdjustmentRow(rec) {
			continue
		}

		flag := annexureFlag(rec)
		table := drcRRC
		if flag == FlagTCC || flag == FlagRET {
			table = tccRet
		}

		date := rec.TranDate()
		if date.IsZero() {
			date = today
		}

		table.AppendRow(
			refs.next(table.Name, bankAdjRef(rec)),
			flag,
			date.Format("2006-01-02"),
			rec.Amount().StringFixed(2),
			strconv.Itoa(table.Len()+1),
			rec.UPITranID,
			req.NPCIFileName,
			truncate(flagReasons[flag], maxReasonChars),
			truncate(specifyOther(rec), maxSpecifyOther),
		)
	}
	return []*emit.Table{tccRet, drcRRC}
}

// needsAdjustmentRow reports whether a record belongs on an annexure
// sheet: every corrective outcome plus the confirmations matched via
// TCC. Hanging records carry over instead, and partial matches wait for
// the missing leg.
func needsAdjustmentRow(rec *models.ReconRecord) bool {
	switch rec.Status {
	case models.StatusUnmatched, models.StatusMismatch, models.StatusPartialMismatch, models.StatusOrphan:
		return true
	}
	return rec.TCCType != models.TCCNone ||
		rec.TTUMRequired ||
		rec.ExceptionType == models.ExcDRCRaised
}

// annexureFlag derives the adjustment flag. Rule order matters: a
// raised dispute is a DRC row whatever else the record carries, deemed
// response codes and TCC exceptions mark confirmations, return-shaped
// exceptions mark returns, disagreements mark RRC, absence marks DRC,
// and anything left falls back to the Dr/Cr indicator.
func annexureFlag(rec *models.ReconRecord) string {
	exc := strings.ToUpper(rec.ExceptionType)
	status := strings.ToUpper(string(rec.Status))

	switch {
	case rec.ExceptionType == models.ExcDRCRaised:
		return FlagDRC
	case hasDeemedRC(rec) || strings.Contains(exc, "TCC"):
		return FlagTCC
	case containsAny(exc, "RET", "RETURN", "TIMEOUT", "NPCI_FAILED"):
		return FlagRET
	case containsAny(exc, "MISMATCH", "PARTIAL") || containsAny(status, "MISMATCH", "PARTIAL"):
		return FlagRRC
	case containsAny(exc, "ORPHAN", "UNMATCHED") || containsAny(status, "ORPHAN", "UNMATCHED"):
		return FlagDRC
	case rec.DrCr() == models.DrCrCredit:
		return FlagCrAdj
	default:
		return FlagDRC
	}
}

// hasDeemedRC reports whether any source leg carries a deemed-approval
// response code.
func hasDeemedRC(rec *models.ReconRecord) bool {
	for _, source := range models.ReconSources() {
		if txn := rec.Get(source); txn != nil {
			if strings.HasPrefix(strings.ToUpper(txn.RC.String()), "RB") {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, tokens ...string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

// specifyOther assembles the free-text column from the exception tag
// and the record's remarks.
func specifyOther(rec *models.ReconRecord) string {
	parts := make([]string, 0, 2)
	if rec.ExceptionType != "" {
		parts = append(parts, rec.ExceptionType)
	}
	if rec.Remarks != "" {
		parts = append(parts, rec.Remarks)
	}
	return strings.Join(parts, "; ")
}

// bankAdjRef builds the base adjustment reference from the record key,
// reduced to the permitted character set.
func bankAdjRef(rec *models.ReconRecord) string {
	base := rec.Key
	if base == "" {
		base = rec.RRN
	}
	base = bankAdjRefInvalid.ReplaceAllString(base, "-")
	if base == "" {
		base = "REF"
	}
	if len(base) > maxBankAdjRef {
		base = base[:maxBankAdjRef]
	}
	return base
}

// refAllocator enforces Bankadjref uniqueness within each file,
// suffixing collisions with -2, -3, and so on.
type refAllocator struct {
	used map[string]map[string]int
}

func newRefAllocator() *refAllocator {
	return &refAllocator{used: make(map[string]map[string]int)}
}

func (a *refAllocator) next(file, base string) string {
	perFile := a.used[file]
	if perFile == nil {
		perFile = make(map[string]int)
		a.used[file] = perFile
	}

	perFile[base]++
	if perFile[base] == 1 {
		return base
	}

	suffix := fmt.Sprintf("-%d", perFile[base])
	trimmed := base
	if len(trimmed)+len(suffix) > maxBankAdjRef {
		trimmed = trimmed[:maxBankAdjRef-len(suffix)]
	}
	return trimmed + suffix
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
