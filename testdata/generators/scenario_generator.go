package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"time"
)

// ScenarioGenerator creates hand-authored source file triples with known
// reconciliation outcomes. Every scenario writes a CBS extract, a switch
// log and an NPCI raw file plus an expected-status CSV naming what each
// RRN should classify as.
type ScenarioGenerator struct {
	OutputDir    string
	BusinessDate time.Time
}

func main() {
	var (
		outputDir = flag.String("output-dir", "generated_scenarios", "Output directory for scenario files")
		date      = flag.String("date", "2026-01-04", "Business date stamped into every row (YYYY-MM-DD)")
		scenario  = flag.String("scenario", "all", "Scenario to generate: all, clean, hanging, single-source, duplicates, deemed, amount-mismatch, cutoff, carryover")
	)
	flag.Parse()

	businessDate, err := time.Parse("2006-01-02", *date)
	if err != nil {
		log.Fatalf("Invalid business date: %v", err)
	}

	// Create output directory
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	generator := &ScenarioGenerator{
		OutputDir:    *outputDir,
		BusinessDate: businessDate,
	}

	switch *scenario {
	case "clean":
		generator.GenerateCleanScenario()
	case "hanging":
		generator.GenerateHangingScenario()
	case "single-source":
		generator.GenerateSingleSourceScenario()
	case "duplicates":
		generator.GenerateDuplicateScenario()
	case "deemed":
		generator.GenerateDeemedScenario()
	case "amount-mismatch":
		generator.GenerateAmountMismatchScenario()
	case "cutoff":
		generator.GenerateCutOffScenario()
	case "carryover":
		generator.GenerateCarryOverScenario()
	case "all":
		generator.GenerateAllScenarios()
	default:
		log.Fatalf("Unknown scenario: %s", *scenario)
	}

	fmt.Printf("Generated scenarios in %s\n", *outputDir)
}

// GenerateAllScenarios generates all predefined scenarios
func (sg *ScenarioGenerator) GenerateAllScenarios() {
	fmt.Println("Generating all scenarios...")
	sg.GenerateCleanScenario()
	sg.GenerateHangingScenario()
	sg.GenerateSingleSourceScenario()
	sg.GenerateDuplicateScenario()
	sg.GenerateDeemedScenario()
	sg.GenerateAmountMismatchScenario()
	sg.GenerateCutOffScenario()
	sg.GenerateCarryOverScenario()
}

// GenerateCleanScenario creates five transactions present and agreeing in
// all three sources.
func (sg *ScenarioGenerator) GenerateCleanScenario() {
	fmt.Println("Generating clean match scenario...")

	cbs := [][]string{
		{"Cust Ref No", "Txn ID", "Tran Amt", "DR/CR", "Txn Date", "Txn Time", "Type"},
		{"400100000001", "UPIC00000001", "150.00", "CR", sg.cbsDate(), "08:15:00", "COLLECT"},
		{"400100000002", "UPIC00000002", "2750.50", "CR", sg.cbsDate(), "09:40:12", "COLLECT"},
		{"400100000003", "UPIC00000003", "80.25", "CR", sg.cbsDate(), "11:05:33", "COLLECT"},
		{"400100000004", "UPIC00000004", "12000.00", "CR", sg.cbsDate(), "14:22:08", "COLLECT"},
		{"400100000005", "UPIC00000005", "499.99", "CR", sg.cbsDate(), "18:50:45", "COLLECT"},
	}

	switchLog := [][]string{
		{"RRN", "UPI Tran ID", "Amount", "Response Code", "Tran Date", "Tran Time", "Tran Type", "Payer PSP", "Payee PSP"},
		{"400100000001", "UPIC00000001", "150.00", "00", sg.switchDate(), "081500", "COLLECT", "ybl", "axis"},
		{"400100000002", "UPIC00000002", "2750.50", "00", sg.switchDate(), "094012", "COLLECT", "oksbi", "axis"},
		{"400100000003", "UPIC00000003", "80.25", "00", sg.switchDate(), "110533", "COLLECT", "paytm", "axis"},
		{"400100000004", "UPIC00000004", "12000.00", "00", sg.switchDate(), "142208", "COLLECT", "ybl", "axis"},
		{"400100000005", "UPIC00000005", "499.99", "00", sg.switchDate(), "185045", "COLLECT", "ibl", "axis"},
	}

	npci := [][]string{
		{"Retrieval Reference Number", "UPI Transaction ID", "Settlement Amount", "NPCI Response", "Settlement Date", "Indicator"},
		{"400100000001", "UPIC00000001", "150.00", "00", sg.npciDate(), "CR"},
		{"400100000002", "UPIC00000002", "2750.50", "00", sg.npciDate(), "CR"},
		{"400100000003", "UPIC00000003", "80.25", "00", sg.npciDate(), "CR"},
		{"400100000004", "UPIC00000004", "12000.00", "00", sg.npciDate(), "CR"},
		{"400100000005", "UPIC00000005", "499.99", "00", sg.npciDate(), "CR"},
	}

	expected := [][]string{
		{"rrn", "expected_status", "note"},
		{"400100000001", "MATCHED", "three-way agreement"},
		{"400100000002", "MATCHED", "three-way agreement"},
		{"400100000003", "MATCHED", "three-way agreement"},
		{"400100000004", "MATCHED", "three-way agreement"},
		{"400100000005", "MATCHED", "three-way agreement"},
	}

	sg.writeCSV("clean_cbs.csv", cbs)
	sg.writeCSV("clean_switch.csv", switchLog)
	sg.writeCSV("clean_npci.csv", npci)
	sg.writeCSV("clean_expected_status.csv", expected)
}

// GenerateHangingScenario creates rows the bank processed that NPCI has not
// settled yet. All three hang and enter the carry-over store.
func (sg *ScenarioGenerator) GenerateHangingScenario() {
	fmt.Println("Generating hanging transaction scenario...")

	cbs := [][]string{
		{"Cust Ref No", "Txn ID", "Tran Amt", "DR/CR", "Txn Date", "Txn Time", "Type"},
		{"400200000001", "UPIH00000001", "320.00", "CR", sg.cbsDate(), "10:02:00", "COLLECT"},
		{"400200000002", "UPIH00000002", "99.50", "CR", sg.cbsDate(), "12:18:41", "COLLECT"},
	}

	switchLog := [][]string{
		{"RRN", "UPI Tran ID", "Amount", "Response Code", "Tran Date", "Tran Time", "Tran Type", "Payer PSP", "Payee PSP"},
		{"400200000001", "UPIH00000001", "320.00", "00", sg.switchDate(), "100200", "COLLECT", "ybl", "axis"},
		{"400200000002", "UPIH00000002", "99.50", "00", sg.switchDate(), "121841", "COLLECT", "paytm", "axis"},
		// Switch approved this leg but neither CBS nor NPCI ever saw it.
		{"400200000003", "UPIH00000003", "5600.00", "00", sg.switchDate(), "164409", "COLLECT", "oksbi", "axis"},
	}

	npci := [][]string{
		{"Retrieval Reference Number", "UPI Transaction ID", "Settlement Amount", "NPCI Response", "Settlement Date", "Indicator"},
	}

	expected := [][]string{
		{"rrn", "expected_status", "note"},
		{"400200000001", "HANGING", "switch leg never reached NPCI; carried over"},
		{"400200000002", "HANGING", "switch leg never reached NPCI; carried over"},
		{"400200000003", "HANGING", "switch-only row; carried over"},
	}

	sg.writeCSV("hanging_cbs.csv", cbs)
	sg.writeCSV("hanging_switch.csv", switchLog)
	sg.writeCSV("hanging_npci.csv", npci)
	sg.writeCSV("hanging_expected_status.csv", expected)
}

// GenerateSingleSourceScenario creates rows present in exactly one source.
// Each source lands differently: CBS-only rows go to manual review, switch-only
// rows hang into the carry-over store, NPCI-only rows classify as orphans.
func (sg *ScenarioGenerator) GenerateSingleSourceScenario() {
	fmt.Println("Generating single-source scenario...")

	cbs := [][]string{
		{"Cust Ref No", "Txn ID", "Tran Amt", "DR/CR", "Txn Date", "Txn Time", "Type"},
		{"400300000001", "UPIO00000001", "45.00", "CR", sg.cbsDate(), "09:00:00", "COLLECT"},
		{"400300000002", "UPIO00000002", "67.80", "CR", sg.cbsDate(), "09:30:00", "COLLECT"},
	}

	switchLog := [][]string{
		{"RRN", "UPI Tran ID", "Amount", "Response Code", "Tran Date", "Tran Time", "Tran Type", "Payer PSP", "Payee PSP"},
		{"400300000003", "UPIO00000003", "130.00", "00", sg.switchDate(), "100000", "COLLECT", "ybl", "axis"},
		{"400300000004", "UPIO00000004", "220.40", "00", sg.switchDate(), "103000", "COLLECT", "ibl", "axis"},
	}

	npci := [][]string{
		{"Retrieval Reference Number", "UPI Transaction ID", "Settlement Amount", "NPCI Response", "Settlement Date", "Indicator"},
		{"400300000005", "UPIO00000005", "815.00", "00", sg.npciDate(), "CR"},
		{"400300000006", "UPIO00000006", "92.10", "00", sg.npciDate(), "CR"},
	}

	expected := [][]string{
		{"rrn", "expected_status", "note"},
		{"400300000001", "UNMATCHED", "CBS posting with no network trace; manual review"},
		{"400300000002", "UNMATCHED", "CBS posting with no network trace; manual review"},
		{"400300000003", "HANGING", "switch-only; carried over"},
		{"400300000004", "HANGING", "switch-only; carried over"},
		{"400300000005", "ORPHAN", "settled at NPCI with no bank-side rows"},
		{"400300000006", "ORPHAN", "settled at NPCI with no bank-side rows"},
	}

	sg.writeCSV("single_source_cbs.csv", cbs)
	sg.writeCSV("single_source_switch.csv", switchLog)
	sg.writeCSV("single_source_npci.csv", npci)
	sg.writeCSV("single_source_expected_status.csv", expected)
}

// GenerateDuplicateScenario creates duplicate detection test data: the
// switch log carries each transaction twice with the same sign, which is a
// double posting needing an investigation TTUM, not a self-reversal.
func (sg *ScenarioGenerator) GenerateDuplicateScenario() {
	fmt.Println("Generating duplicate detection scenario...")

	cbs := [][]string{
		{"Cust Ref No", "Txn ID", "Tran Amt", "DR/CR", "Txn Date", "Txn Time", "Type"},
		{"400400000001", "UPID00000001", "510.00", "CR", sg.cbsDate(), "13:05:00", "COLLECT"},
		{"400400000002", "UPID00000002", "74.25", "CR", sg.cbsDate(), "13:35:00", "COLLECT"},
		{"400400000003", "UPID00000003", "1999.99", "CR", sg.cbsDate(), "14:05:00", "COLLECT"},
	}

	switchLog := [][]string{
		{"RRN", "UPI Tran ID", "Amount", "Response Code", "Tran Date", "Tran Time", "Tran Type", "Payer PSP", "Payee PSP"},
		{"400400000001", "UPID00000001", "510.00", "00", sg.switchDate(), "130500", "COLLECT", "ybl", "axis"},
		{"400400000001", "UPID00000001", "510.00", "00", sg.switchDate(), "130500", "COLLECT", "ybl", "axis"},
		{"400400000002", "UPID00000002", "74.25", "00", sg.switchDate(), "133500", "COLLECT", "paytm", "axis"},
		{"400400000002", "UPID00000002", "74.25", "00", sg.switchDate(), "133500", "COLLECT", "paytm", "axis"},
		{"400400000003", "UPID00000003", "1999.99", "00", sg.switchDate(), "140500", "COLLECT", "oksbi", "axis"},
		{"400400000003", "UPID00000003", "1999.99", "00", sg.switchDate(), "140500", "COLLECT", "oksbi", "axis"},
	}

	npci := [][]string{
		{"Retrieval Reference Number", "UPI Transaction ID", "Settlement Amount", "NPCI Response", "Settlement Date", "Indicator"},
		{"400400000001", "UPID00000001", "510.00", "00", sg.npciDate(), "CR"},
		{"400400000002", "UPID00000002", "74.25", "00", sg.npciDate(), "CR"},
		{"400400000003", "UPID00000003", "1999.99", "00", sg.npciDate(), "CR"},
	}

	expected := [][]string{
		{"rrn", "expected_status", "note"},
		{"400400000001", "UNMATCHED", "double switch posting; investigation TTUM"},
		{"400400000002", "UNMATCHED", "double switch posting; investigation TTUM"},
		{"400400000003", "UNMATCHED", "double switch posting; investigation TTUM"},
	}

	sg.writeCSV("duplicates_cbs.csv", cbs)
	sg.writeCSV("duplicates_switch.csv", switchLog)
	sg.writeCSV("duplicates_npci.csv", npci)
	sg.writeCSV("duplicates_expected_status.csv", expected)
}

// GenerateDeemedScenario creates deemed-accepted settlements. One has the
// bank debit and closes under TCC_102; the other has no bank posting and
// raises a TCC_103 with a beneficiary-credit TTUM.
func (sg *ScenarioGenerator) GenerateDeemedScenario() {
	fmt.Println("Generating deemed acceptance scenario...")

	cbs := [][]string{
		{"Cust Ref No", "Txn ID", "Tran Amt", "DR/CR", "Txn Date", "Txn Time", "Type"},
		{"400500000001", "UPIR00000001", "1250.00", "DR", sg.cbsDate(), "19:12:00", "PAY"},
	}

	switchLog := [][]string{
		{"RRN", "UPI Tran ID", "Amount", "Response Code", "Tran Date", "Tran Time", "Tran Type", "Payer PSP", "Payee PSP"},
		{"400500000001", "UPIR00000001", "1250.00", "91", sg.switchDate(), "191200", "PAY", "axis", "ybl"},
		{"400500000002", "UPIR00000002", "333.33", "U30", sg.switchDate(), "200130", "COLLECT", "paytm", "axis"},
	}

	npci := [][]string{
		{"Retrieval Reference Number", "UPI Transaction ID", "Settlement Amount", "NPCI Response", "Settlement Date", "Indicator"},
		{"400500000001", "UPIR00000001", "1250.00", "RB1", sg.npciDate(), "DR"},
		{"400500000002", "UPIR00000002", "333.33", "RB", sg.npciDate(), "CR"},
	}

	expected := [][]string{
		{"rrn", "expected_status", "note"},
		{"400500000001", "MATCHED", "deemed with bank debit; TCC_102"},
		{"400500000002", "UNMATCHED", "deemed with no bank posting; TCC_103 + beneficiary-credit TTUM"},
	}

	sg.writeCSV("deemed_cbs.csv", cbs)
	sg.writeCSV("deemed_switch.csv", switchLog)
	sg.writeCSV("deemed_npci.csv", npci)
	sg.writeCSV("deemed_expected_status.csv", expected)
}

// GenerateAmountMismatchScenario creates triples where the ledger amount
// disagrees with the network amount beyond the epsilon. These cannot settle
// this cycle and hang into the carry-over store.
func (sg *ScenarioGenerator) GenerateAmountMismatchScenario() {
	fmt.Println("Generating amount mismatch scenario...")

	cbs := [][]string{
		{"Cust Ref No", "Txn ID", "Tran Amt", "DR/CR", "Txn Date", "Txn Time", "Type"},
		{"400600000001", "UPIM00000001", "100.50", "CR", sg.cbsDate(), "11:11:11", "COLLECT"},
		{"400600000002", "UPIM00000002", "857.00", "CR", sg.cbsDate(), "12:12:12", "COLLECT"},
	}

	switchLog := [][]string{
		{"RRN", "UPI Tran ID", "Amount", "Response Code", "Tran Date", "Tran Time", "Tran Type", "Payer PSP", "Payee PSP"},
		{"400600000001", "UPIM00000001", "100.00", "00", sg.switchDate(), "111111", "COLLECT", "ybl", "axis"},
		{"400600000002", "UPIM00000002", "875.00", "00", sg.switchDate(), "121212", "COLLECT", "ibl", "axis"},
	}

	npci := [][]string{
		{"Retrieval Reference Number", "UPI Transaction ID", "Settlement Amount", "NPCI Response", "Settlement Date", "Indicator"},
		{"400600000001", "UPIM00000001", "100.00", "00", sg.npciDate(), "CR"},
		{"400600000002", "UPIM00000002", "875.00", "00", sg.npciDate(), "CR"},
	}

	expected := [][]string{
		{"rrn", "expected_status", "note"},
		{"400600000001", "HANGING", "ledger posted 100.50 against 100.00 settled; carried over"},
		{"400600000002", "HANGING", "ledger posted 857.00 against 875.00 settled; carried over"},
	}

	sg.writeCSV("amount_mismatch_cbs.csv", cbs)
	sg.writeCSV("amount_mismatch_switch.csv", switchLog)
	sg.writeCSV("amount_mismatch_npci.csv", npci)
	sg.writeCSV("amount_mismatch_expected_status.csv", expected)
}

// GenerateCutOffScenario creates settled rows timed around the 22:30
// settlement cut-off. The NPCI file carries a Time column so the cut-off
// gate can see the clock; rows at or past it hang to the next cycle.
func (sg *ScenarioGenerator) GenerateCutOffScenario() {
	fmt.Println("Generating cut-off boundary scenario...")

	cbs := [][]string{
		{"Cust Ref No", "Txn ID", "Tran Amt", "DR/CR", "Txn Date", "Txn Time", "Type"},
		{"400700000001", "UPIT00000001", "50.00", "CR", sg.cbsDate(), "22:29:59", "COLLECT"},
		{"400700000002", "UPIT00000002", "60.00", "CR", sg.cbsDate(), "22:30:00", "COLLECT"},
		{"400700000003", "UPIT00000003", "70.00", "CR", sg.cbsDate(), "22:45:10", "COLLECT"},
		{"400700000004", "UPIT00000004", "80.00", "CR", sg.cbsDate(), "23:59:59", "COLLECT"},
	}

	switchLog := [][]string{
		{"RRN", "UPI Tran ID", "Amount", "Response Code", "Tran Date", "Tran Time", "Tran Type", "Payer PSP", "Payee PSP"},
		{"400700000001", "UPIT00000001", "50.00", "00", sg.switchDate(), "222959", "COLLECT", "ybl", "axis"},
		{"400700000002", "UPIT00000002", "60.00", "00", sg.switchDate(), "223000", "COLLECT", "paytm", "axis"},
		{"400700000003", "UPIT00000003", "70.00", "00", sg.switchDate(), "224510", "COLLECT", "oksbi", "axis"},
		{"400700000004", "UPIT00000004", "80.00", "00", sg.switchDate(), "235959", "COLLECT", "ibl", "axis"},
	}

	npci := [][]string{
		{"Retrieval Reference Number", "UPI Transaction ID", "Settlement Amount", "NPCI Response", "Settlement Date", "Time", "Indicator"},
		{"400700000001", "UPIT00000001", "50.00", "00", sg.npciDate(), "22:29:59", "CR"},
		{"400700000002", "UPIT00000002", "60.00", "00", sg.npciDate(), "22:30:00", "CR"},
		{"400700000003", "UPIT00000003", "70.00", "00", sg.npciDate(), "22:45:10", "CR"},
		{"400700000004", "UPIT00000004", "80.00", "00", sg.npciDate(), "23:59:59", "CR"},
	}

	expected := [][]string{
		{"rrn", "expected_status", "note"},
		{"400700000001", "MATCHED", "one second before cut-off"},
		{"400700000002", "HANGING", "exactly at cut-off; settles next cycle"},
		{"400700000003", "HANGING", "past cut-off; settles next cycle"},
		{"400700000004", "HANGING", "past cut-off; settles next cycle"},
	}

	sg.writeCSV("cutoff_cbs.csv", cbs)
	sg.writeCSV("cutoff_switch.csv", switchLog)
	sg.writeCSV("cutoff_npci.csv", npci)
	sg.writeCSV("cutoff_expected_status.csv", expected)
}

// GenerateCarryOverScenario creates a two-cycle set. Cycle 1 leaves two rows
// hanging; cycle 2's NPCI file finally settles those RRNs, resolving the
// carried entries. Run cycle 1 first, then cycle 2 under the same run store.
func (sg *ScenarioGenerator) GenerateCarryOverScenario() {
	fmt.Println("Generating carry-over resolution scenario...")

	cycle1CBS := [][]string{
		{"Cust Ref No", "Txn ID", "Tran Amt", "DR/CR", "Txn Date", "Txn Time", "Type"},
		{"400800000001", "UPIX00000001", "410.00", "CR", sg.cbsDate(), "09:20:00", "COLLECT"},
		{"400800000002", "UPIX00000002", "88.88", "CR", sg.cbsDate(), "09:50:00", "COLLECT"},
		{"400800000003", "UPIX00000003", "77.00", "CR", sg.cbsDate(), "10:20:00", "COLLECT"},
	}

	cycle1Switch := [][]string{
		{"RRN", "UPI Tran ID", "Amount", "Response Code", "Tran Date", "Tran Time", "Tran Type", "Payer PSP", "Payee PSP"},
		{"400800000001", "UPIX00000001", "410.00", "00", sg.switchDate(), "092000", "COLLECT", "ybl", "axis"},
		{"400800000002", "UPIX00000002", "88.88", "00", sg.switchDate(), "095000", "COLLECT", "paytm", "axis"},
		{"400800000003", "UPIX00000003", "77.00", "00", sg.switchDate(), "102000", "COLLECT", "oksbi", "axis"},
	}

	cycle1NPCI := [][]string{
		{"Retrieval Reference Number", "UPI Transaction ID", "Settlement Amount", "NPCI Response", "Settlement Date", "Indicator"},
		{"400800000003", "UPIX00000003", "77.00", "00", sg.npciDate(), "CR"},
	}

	cycle1Expected := [][]string{
		{"rrn", "expected_status", "note"},
		{"400800000001", "HANGING", "not in cycle 1 NPCI file; carried over"},
		{"400800000002", "HANGING", "not in cycle 1 NPCI file; carried over"},
		{"400800000003", "MATCHED", "three-way agreement"},
	}

	sg.writeCSV("carryover_cycle1_cbs.csv", cycle1CBS)
	sg.writeCSV("carryover_cycle1_switch.csv", cycle1Switch)
	sg.writeCSV("carryover_cycle1_npci.csv", cycle1NPCI)
	sg.writeCSV("carryover_cycle1_expected_status.csv", cycle1Expected)

	cycle2CBS := [][]string{
		{"Cust Ref No", "Txn ID", "Tran Amt", "DR/CR", "Txn Date", "Txn Time", "Type"},
		{"400800000010", "UPIX00000010", "25.00", "CR", sg.cbsDate(), "23:10:00", "COLLECT"},
	}

	cycle2Switch := [][]string{
		{"RRN", "UPI Tran ID", "Amount", "Response Code", "Tran Date", "Tran Time", "Tran Type", "Payer PSP", "Payee PSP"},
		{"400800000010", "UPIX00000010", "25.00", "00", sg.switchDate(), "231000", "COLLECT", "ybl", "axis"},
	}

	cycle2NPCI := [][]string{
		{"Retrieval Reference Number", "UPI Transaction ID", "Settlement Amount", "NPCI Response", "Settlement Date", "Indicator"},
		{"400800000001", "UPIX00000001", "410.00", "00", sg.npciDate(), "CR"},
		{"400800000002", "UPIX00000002", "88.88", "00", sg.npciDate(), "CR"},
		{"400800000010", "UPIX00000010", "25.00", "00", sg.npciDate(), "CR"},
	}

	cycle2Expected := [][]string{
		{"rrn", "expected_status", "note"},
		{"400800000001", "ORPHAN", "late settlement; resolves the carried entry, ledger posted in cycle 1"},
		{"400800000002", "ORPHAN", "late settlement; resolves the carried entry, ledger posted in cycle 1"},
		{"400800000010", "MATCHED", "three-way agreement"},
	}

	sg.writeCSV("carryover_cycle2_cbs.csv", cycle2CBS)
	sg.writeCSV("carryover_cycle2_switch.csv", cycle2Switch)
	sg.writeCSV("carryover_cycle2_npci.csv", cycle2NPCI)
	sg.writeCSV("carryover_cycle2_expected_status.csv", cycle2Expected)
}

func (sg *ScenarioGenerator) cbsDate() string {
	return sg.BusinessDate.Format("02-01-2006")
}

func (sg *ScenarioGenerator) switchDate() string {
	return sg.BusinessDate.Format("2006-01-02")
}

func (sg *ScenarioGenerator) npciDate() string {
	return sg.BusinessDate.Format("2006/01/02")
}

// writeCSV is a helper function to write CSV data
func (sg *ScenarioGenerator) writeCSV(filename string, data [][]string) {
	filepath := fmt.Sprintf("%s/%s", sg.OutputDir, filename)

	file, err := os.Create(filepath)
	if err != nil {
		log.Printf("Failed to create %s: %v", filepath, err)
		return
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	for _, record := range data {
		if err := writer.Write(record); err != nil {
			log.Printf("Failed to write record to %s: %v", filepath, err)
			return
		}
	}

	fmt.Printf("  Created %s with %d records\n", filename, len(data)-1) // -1 for header
}
