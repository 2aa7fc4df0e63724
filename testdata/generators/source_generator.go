package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

// SourceGenerator generates one settlement cycle's worth of coherent UPI
// source files: a CBS ledger extract, a switch log and an NPCI raw file
// that reconcile against each other at a configurable clean-match ratio.
// The remainder cycles through the exception shapes the matching engine
// classifies: missing legs, single-source orphans, amount mismatches,
// switch duplicates, deemed NPCI responses and failed pairs.
type SourceGenerator struct {
	Count        int
	BusinessDate time.Time
	CycleNum     int
	BankCode     string
	Subtype      string // P2P or P2M
	Inward       bool
	MatchRatio   float64
	MinAmount    decimal.Decimal
	MaxAmount    decimal.Decimal
	Pattern      string
	Seed         int64

	rng *rand.Rand
}

// upiRow is one logical transaction before the per-source rows are cut
// from it. Scenario decides which source files the row lands in and how
// the legs disagree.
type upiRow struct {
	RRN       string
	UPITranID string
	Amount    decimal.Decimal
	TranTime  time.Time
	DrCr      string
	TranType  string
	PayerPSP  string
	PayeePSP  string
	SwitchRC  string
	NPCIRC    string
	Scenario  string
}

// exceptionKinds are applied round-robin to the rows left over after the
// clean-match share is taken.
var exceptionKinds = []string{
	"missing_cbs",
	"missing_switch",
	"missing_npci",
	"cbs_only",
	"switch_only",
	"npci_only",
	"amount_mismatch",
	"switch_duplicate",
	"deemed_pair",
	"failed_pair",
}

var pspHandles = []string{"axis", "ybl", "oksbi", "paytm", "ibl", "upi"}

func main() {
	var (
		outputDir  = flag.String("output-dir", ".", "Directory for the generated files")
		count      = flag.Int("count", 1000, "Number of logical transactions to generate")
		date       = flag.String("date", "2026-01-04", "Business date (YYYY-MM-DD)")
		cycle      = flag.Int("cycle", 1, "Settlement cycle number (1-10)")
		bankCode   = flag.String("bank", "AXIS", "4-character bank code used in NPCI file names")
		subtype    = flag.String("subtype", "P2P", "Transaction subtype: P2P or P2M")
		direction  = flag.String("direction", "inward", "Traffic direction: inward (ISSR) or outward (ACQR)")
		matchRatio = flag.Float64("match-ratio", 0.85, "Fraction of transactions that match cleanly across all three sources")
		minAmount  = flag.Float64("min-amount", 1.00, "Minimum transaction amount")
		maxAmount  = flag.Float64("max-amount", 100000.00, "Maximum transaction amount")
		pattern    = flag.String("pattern", "random", "Time pattern: random, business-hours, late-settlement")
		withNTSL   = flag.Bool("ntsl", false, "Also emit an NTSL net settlement file matching the clean total")
		drcCount   = flag.Int("drc", 0, "Emit a DRC dispute report naming this many clean RRNs")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
	)
	flag.Parse()

	businessDate, err := time.Parse("2006-01-02", *date)
	if err != nil {
		log.Fatalf("Invalid business date: %v", err)
	}
	if *cycle < 1 || *cycle > 10 {
		log.Fatalf("Cycle must be 1-10, got %d", *cycle)
	}
	if *matchRatio < 0 || *matchRatio > 1 {
		log.Fatalf("Match ratio must be within [0,1], got %.2f", *matchRatio)
	}
	if len(*bankCode) != 4 {
		log.Fatalf("Bank code must be 4 characters, got %q", *bankCode)
	}

	generator := &SourceGenerator{
		Count:        *count,
		BusinessDate: businessDate,
		CycleNum:     *cycle,
		BankCode:     *bankCode,
		Subtype:      *subtype,
		Inward:       *direction != "outward",
		MatchRatio:   *matchRatio,
		MinAmount:    decimal.NewFromFloat(*minAmount),
		MaxAmount:    decimal.NewFromFloat(*maxAmount),
		Pattern:      *pattern,
		Seed:         *seed,
	}

	rows := generator.Generate()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	cbsPath := filepath.Join(*outputDir, fmt.Sprintf("cbs_%s_%dC.csv", businessDate.Format("020106"), *cycle))
	switchPath := filepath.Join(*outputDir, fmt.Sprintf("switch_%s_%dC.csv", businessDate.Format("020106"), *cycle))
	npciPath := filepath.Join(*outputDir, generator.NPCIFileName())

	if err := generator.WriteCBS(cbsPath, rows); err != nil {
		log.Fatalf("Failed to write CBS file: %v", err)
	}
	if err := generator.WriteSwitch(switchPath, rows); err != nil {
		log.Fatalf("Failed to write switch file: %v", err)
	}
	if err := generator.WriteNPCI(npciPath, rows); err != nil {
		log.Fatalf("Failed to write NPCI file: %v", err)
	}

	if *withNTSL {
		ntslPath := filepath.Join(*outputDir, fmt.Sprintf("ntsl_%s_%dC.csv", businessDate.Format("020106"), *cycle))
		if err := generator.WriteNTSL(ntslPath, rows); err != nil {
			log.Fatalf("Failed to write NTSL file: %v", err)
		}
		fmt.Printf("NTSL file: %s (net equals the expected matched total)\n", ntslPath)
	}

	if *drcCount > 0 {
		drcPath := filepath.Join(*outputDir, fmt.Sprintf("DRCREPORT%s%s.csv", *bankCode, businessDate.Format("020106")))
		marked, err := generator.WriteDRC(drcPath, rows, *drcCount)
		if err != nil {
			log.Fatalf("Failed to write DRC report: %v", err)
		}
		fmt.Printf("DRC report: %s (%d disputed RRNs)\n", drcPath, marked)
	}

	counts := map[string]int{}
	for _, row := range rows {
		counts[row.Scenario]++
	}

	fmt.Printf("Generated %d transactions for %s cycle %dC\n", len(rows), businessDate.Format("2006-01-02"), *cycle)
	fmt.Printf("  CBS file:    %s\n", cbsPath)
	fmt.Printf("  Switch file: %s\n", switchPath)
	fmt.Printf("  NPCI file:   %s\n", npciPath)
	fmt.Printf("Scenario mix (clean + exceptions):\n")
	fmt.Printf("  clean: %d\n", counts["clean"])
	for _, kind := range exceptionKinds {
		if counts[kind] > 0 {
			fmt.Printf("  %s: %d\n", kind, counts[kind])
		}
	}
	fmt.Printf("Seed used: %d\n", *seed)
}

// NPCIFileName builds the raw file name the naming convention requires:
// {ISSR|ACQR}{P2P|P2M}{BANK}{DDMMYY}_{N}C.csv.
func (g *SourceGenerator) NPCIFileName() string {
	prefix := "ISSR"
	if !g.Inward {
		prefix = "ACQR"
	}
	return fmt.Sprintf("%s%s%s%s_%dC.csv",
		prefix, g.Subtype, g.BankCode, g.BusinessDate.Format("020106"), g.CycleNum)
}

// Generate builds the logical rows: the clean share first, then the
// exception kinds round-robin across the remainder.
func (g *SourceGenerator) Generate() []upiRow {
	g.rng = rand.New(rand.NewSource(g.Seed))

	rows := make([]upiRow, g.Count)
	cleanCount := int(float64(g.Count) * g.MatchRatio)

	for i := range rows {
		rows[i] = g.baseRow(i)
		if i < cleanCount {
			rows[i].Scenario = "clean"
		} else {
			rows[i].Scenario = exceptionKinds[(i-cleanCount)%len(exceptionKinds)]
			g.applyScenario(&rows[i])
		}
	}
	return rows
}

// baseRow creates a clean transaction: success on every leg, identical
// amounts, a time drawn from the configured pattern.
func (g *SourceGenerator) baseRow(i int) upiRow {
	amountRange := g.MaxAmount.Sub(g.MinAmount)
	amount := decimal.NewFromFloat(g.rng.Float64()).Mul(amountRange).Add(g.MinAmount).Round(2)

	drCr := "CR"
	tranType := "COLLECT"
	if !g.Inward {
		drCr = "DR"
		tranType = "PAY"
	}

	payer := pspHandles[g.rng.Intn(len(pspHandles))]
	payee := pspHandles[g.rng.Intn(len(pspHandles))]

	return upiRow{
		RRN:       fmt.Sprintf("4%02d%09d", g.CycleNum, i+1),
		UPITranID: fmt.Sprintf("UPI%s%09d", g.BusinessDate.Format("0201"), i+1),
		Amount:    amount,
		TranTime:  g.rowTime(),
		DrCr:      drCr,
		TranType:  tranType,
		PayerPSP:  payer,
		PayeePSP:  payee,
		SwitchRC:  "00",
		NPCIRC:    "00",
	}
}

// rowTime draws a transaction time on the business date according to the
// generation pattern.
func (g *SourceGenerator) rowTime() time.Time {
	var hour, minute, second int
	switch g.Pattern {
	case "business-hours":
		if g.rng.Float64() < 0.8 {
			hour = 9 + g.rng.Intn(8)
		} else {
			hour = g.rng.Intn(24)
		}
	case "late-settlement":
		// Concentrated around the 22:30 cut-off so both sides of the
		// boundary appear.
		hour = 21 + g.rng.Intn(3)
	default:
		hour = 6 + g.rng.Intn(16)
	}
	minute = g.rng.Intn(60)
	second = g.rng.Intn(60)

	d := g.BusinessDate
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, second, 0, d.Location())
}

// applyScenario mutates a clean row into its exception shape. Which source
// files the row lands in is decided by the writers from the scenario name.
func (g *SourceGenerator) applyScenario(row *upiRow) {
	switch row.Scenario {
	case "amount_mismatch":
		// Beyond any sane epsilon, small enough to look like a fat-finger.
		row.Amount = row.Amount.Add(decimal.NewFromFloat(0.50))
	case "deemed_pair":
		row.SwitchRC = "91"
		row.NPCIRC = "RB1"
	case "failed_pair":
		row.SwitchRC = "U30"
		row.NPCIRC = "U30"
	}
}

// inCBS reports whether a row's scenario puts it in the CBS extract.
// Failed and deemed transactions never reach the ledger.
func inCBS(row upiRow) bool {
	switch row.Scenario {
	case "missing_cbs", "switch_only", "npci_only", "deemed_pair", "failed_pair":
		return false
	}
	return true
}

func inSwitch(row upiRow) bool {
	switch row.Scenario {
	case "missing_switch", "cbs_only", "npci_only":
		return false
	}
	return true
}

func inNPCI(row upiRow) bool {
	switch row.Scenario {
	case "missing_npci", "cbs_only", "switch_only":
		return false
	}
	return true
}

// WriteCBS writes the ledger extract in the CBS header dialect. The
// mismatch scenario keeps the original amount here; the switch log carries
// the altered one.
func (g *SourceGenerator) WriteCBS(filename string, rows []upiRow) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Cust Ref No", "Txn ID", "Tran Amt", "DR/CR", "Txn Date", "Txn Time", "Type"}); err != nil {
		return err
	}

	for _, row := range rows {
		if !inCBS(row) {
			continue
		}
		amount := row.Amount
		if row.Scenario == "amount_mismatch" {
			amount = amount.Sub(decimal.NewFromFloat(0.50))
		}
		record := []string{
			row.RRN,
			row.UPITranID,
			amount.StringFixed(2),
			row.DrCr,
			row.TranTime.Format("02-01-2006"),
			row.TranTime.Format("15:04:05"),
			row.TranType,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// WriteSwitch writes the switch log: full transaction detail with response
// codes and the compact HHMMSS time form switch exports use. Duplicate
// scenarios write the row twice.
func (g *SourceGenerator) WriteSwitch(filename string, rows []upiRow) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"RRN", "UPI Tran ID", "Amount", "Response Code", "Tran Date", "Tran Time", "Tran Type", "Payer PSP", "Payee PSP"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		if !inSwitch(row) {
			continue
		}
		record := []string{
			row.RRN,
			row.UPITranID,
			row.Amount.StringFixed(2),
			row.SwitchRC,
			row.TranTime.Format("2006-01-02"),
			row.TranTime.Format("150405"),
			row.TranType,
			row.PayerPSP,
			row.PayeePSP,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
		if row.Scenario == "switch_duplicate" {
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteNPCI writes the raw file in the NPCI header dialect. Direction and
// subtype ride on the file name, so rows carry only the settlement view.
func (g *SourceGenerator) WriteNPCI(filename string, rows []upiRow) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Retrieval Reference Number", "UPI Transaction ID", "Settlement Amount", "NPCI Response", "Settlement Date", "Indicator"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		if !inNPCI(row) {
			continue
		}
		record := []string{
			row.RRN,
			row.UPITranID,
			row.Amount.StringFixed(2),
			row.NPCIRC,
			row.TranTime.Format("2006/01/02"),
			row.DrCr,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// WriteNTSL writes a single-row net settlement statement whose amount is
// the total the engine should report as cleanly matched, so a run over the
// generated triple cross-checks to zero variance.
func (g *SourceGenerator) WriteNTSL(filename string, rows []upiRow) error {
	total := decimal.Zero
	for _, row := range rows {
		if row.Scenario == "clean" || row.Scenario == "switch_duplicate" {
			total = total.Add(row.Amount)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"RRN", "Amount", "Tran Date", "DR/CR"}); err != nil {
		return err
	}
	record := []string{
		fmt.Sprintf("999%09d", g.CycleNum),
		total.StringFixed(2),
		g.BusinessDate.Format("2006-01-02"),
		"CR",
	}
	return writer.Write(record)
}

// WriteDRC writes a dispute report naming the first count clean RRNs. It
// returns how many rows were written, which is less than count when the
// dataset has fewer clean rows.
func (g *SourceGenerator) WriteDRC(filename string, rows []upiRow, count int) (int, error) {
	file, err := os.Create(filename)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"RRN", "Amount", "Tran Date"}); err != nil {
		return 0, err
	}

	written := 0
	for _, row := range rows {
		if written >= count {
			break
		}
		if row.Scenario != "clean" {
			continue
		}
		record := []string{
			row.RRN,
			row.Amount.StringFixed(2),
			row.TranTime.Format("2006-01-02"),
		}
		if err := writer.Write(record); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
