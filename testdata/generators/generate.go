// Command generate orchestrates the data generators in this directory.
// Each generator is its own main file; this wrapper shells out to them so
// producing a complete dataset stays a single command.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

type generator struct {
	name    string
	source  string
	purpose string
}

var generators = []generator{
	{"sources", "source_generator.go", "Generate a settlement cycle's CBS, switch and NPCI source files"},
	{"scenarios", "scenario_generator.go", "Generate hand-authored scenario datasets with known outcomes"},
}

func main() {
	var (
		name      = flag.String("generator", "", "Generator to run: sources, scenarios, or 'all'")
		list      = flag.Bool("list", false, "List available generators")
		outputDir = flag.String("output-dir", "../generated", "Output directory for generated files")
		help      = flag.Bool("help", false, "Show help for a specific generator")
	)
	flag.Parse()

	if *list {
		for _, gen := range generators {
			fmt.Printf("%-12s %s\n", gen.name, gen.purpose)
		}
		return
	}

	if *name == "" {
		usage()
		return
	}

	if *help {
		showHelp(*name)
		return
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	if *name == "all" {
		buildFullDataset(*outputDir)
		return
	}

	gen, ok := lookup(*name)
	if !ok {
		log.Fatalf("Unknown generator: %s", *name)
	}
	run(gen, *outputDir, flag.Args())
}

func lookup(name string) (generator, bool) {
	for _, gen := range generators {
		if gen.name == name {
			return gen, true
		}
	}
	return generator{}, false
}

func usage() {
	fmt.Println("Test data generator")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  go run generate.go -generator=<name> [options]")
	fmt.Println()
	fmt.Println("Generators:")
	for _, gen := range generators {
		fmt.Printf("  %-12s %s\n", gen.name, gen.purpose)
	}
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  go run generate.go -generator=sources -count=1000 -cycle=2 -ntsl")
	fmt.Println("  go run generate.go -generator=sources -direction=outward -match-ratio=0.9")
	fmt.Println("  go run generate.go -generator=scenarios -scenario=carryover")
	fmt.Println("  go run generate.go -generator=all")
}

func showHelp(name string) {
	gen, ok := lookup(name)
	if !ok {
		log.Fatalf("Unknown generator: %s", name)
	}

	out, err := exec.Command("go", "run", gen.source, "-help").CombinedOutput()
	if err != nil {
		log.Printf("Failed to get help for %s: %v", name, err)
		return
	}
	fmt.Println(string(out))
}

func run(gen generator, outputDir string, extra []string) {
	fmt.Printf("Running %s generator...\n", gen.name)

	args := append([]string{"run", gen.source, "-output-dir=" + outputDir}, extra...)
	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		log.Fatalf("Failed to run %s generator: %v", gen.name, err)
	}

	fmt.Printf("✓ %s generator completed\n", gen.name)
}

// buildFullDataset produces the whole tree: coherent settlement cycles,
// the scenario suites with expected statuses, stress-sized inputs and a
// README describing what landed where.
func buildFullDataset(outputDir string) {
	seed := time.Now().UnixNano()
	fmt.Printf("Generating full test dataset (seed %d)\n\n", seed)

	for _, dir := range []string{"cycles", "scenarios", "performance"} {
		if err := os.MkdirAll(filepath.Join(outputDir, dir), 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	fmt.Println("1. Settlement cycle datasets")
	buildCycleSets(outputDir, seed)

	fmt.Println("\n2. Scenario datasets")
	buildScenarioSets(outputDir)

	fmt.Println("\n3. Performance datasets")
	buildPerformanceSets(outputDir, seed)

	fmt.Println("\n4. Documentation")
	writeDatasetReadme(outputDir)

	fmt.Printf("\n✓ All generators completed. Files are in %s\n", outputDir)
}

func buildCycleSets(outputDir string, seed int64) {
	cycleDir := filepath.Join(outputDir, "cycles")

	sets := []struct {
		name      string
		cycle     int
		count     int
		direction string
		subtype   string
		pattern   string
		ntsl      bool
		drc       int
		desc      string
	}{
		{"cycle1", 1, 500, "inward", "P2P", "business-hours", true, 5, "Inward P2P morning cycle with NTSL and DRC report"},
		{"cycle2", 2, 750, "inward", "P2M", "random", true, 0, "Inward P2M midday cycle with NTSL"},
		{"cycle3", 3, 300, "inward", "P2P", "late-settlement", true, 0, "Late-settlement cycle straddling the cut-off"},
		{"cycle4_outward", 4, 400, "outward", "P2M", "random", false, 0, "Outward P2M cycle"},
	}

	for _, set := range sets {
		fmt.Printf("  %s: %s\n", set.name, set.desc)

		args := []string{"run", "source_generator.go",
			"-output-dir=" + filepath.Join(cycleDir, set.name),
			"-count=" + strconv.Itoa(set.count),
			"-cycle=" + strconv.Itoa(set.cycle),
			"-direction=" + set.direction,
			"-subtype=" + set.subtype,
			"-pattern=" + set.pattern,
			"-seed=" + strconv.FormatInt(seed, 10),
		}
		if set.ntsl {
			args = append(args, "-ntsl")
		}
		if set.drc > 0 {
			args = append(args, "-drc="+strconv.Itoa(set.drc))
		}

		if err := exec.Command("go", args...).Run(); err != nil {
			log.Printf("Failed to generate %s: %v", set.name, err)
		}
	}
}

func buildScenarioSets(outputDir string) {
	fmt.Println("  all scenario suites")

	cmd := exec.Command("go", "run", "scenario_generator.go",
		"-output-dir="+filepath.Join(outputDir, "scenarios"),
		"-scenario=all",
	)
	if err := cmd.Run(); err != nil {
		log.Printf("Failed to generate scenarios: %v", err)
	}
}

func buildPerformanceSets(outputDir string, seed int64) {
	perfDir := filepath.Join(outputDir, "performance")

	sets := []struct {
		name  string
		count int
		cycle int
	}{
		{"stress_10k", 10000, 1},
		{"stress_50k", 50000, 2},
		{"stress_100k", 100000, 3},
	}

	for _, set := range sets {
		fmt.Printf("  %s: %d rows\n", set.name, set.count)

		cmd := exec.Command("go", "run", "source_generator.go",
			"-output-dir="+filepath.Join(perfDir, set.name),
			"-count="+strconv.Itoa(set.count),
			"-cycle="+strconv.Itoa(set.cycle),
			"-pattern=random",
			"-seed="+strconv.FormatInt(seed, 10),
		)
		if err := cmd.Run(); err != nil {
			log.Printf("Failed to generate %s: %v", set.name, err)
		}
	}
}

func writeDatasetReadme(outputDir string) {
	docContent := `# Generated Test Data

This directory contains automatically generated test data for the UPI
reconciliation service.

## Directory Structure

- **cycles/**: Coherent settlement cycle datasets (CBS extract, switch log, NPCI raw file per cycle)
- **scenarios/**: Hand-authored scenarios with known expected statuses
- **performance/**: Large datasets for performance and stress testing

## File Descriptions

### Cycles
- cycle1/: 500 inward P2P rows, business-hours pattern, with NTSL net file and a DRC report
- cycle2/: 750 inward P2M rows, random pattern, with NTSL net file
- cycle3/: 300 inward P2P rows concentrated around the 22:30 cut-off
- cycle4_outward/: 400 outward P2M rows

Each cycle directory holds cbs_DDMMYY_NC.csv, switch_DDMMYY_NC.csv and an
NPCI file named per the network convention (e.g. ISSRP2PAXIS040126_1C.csv).

### Scenarios
- clean_*: every row matches across all three sources
- hanging_*: bank-side rows NPCI has not settled; enter the carry-over store
- single_source_*: rows present in exactly one source
- duplicates_*: double switch postings raising investigation TTUMs
- deemed_*: deemed-accepted settlements (TCC_102 / TCC_103 paths)
- amount_mismatch_*: ledger amount disagrees with the settled amount
- cutoff_*: rows timed around the 22:30 settlement cut-off
- carryover_cycle1_* / carryover_cycle2_*: two-cycle carry-over resolution

Every scenario ships a *_expected_status.csv naming the status each RRN
should classify as.

### Performance
- stress_10k/: 10,000 transactions
- stress_50k/: 50,000 transactions
- stress_100k/: 100,000 transactions

## Usage

Use these datasets to exercise different parts of the reconciliation engine:

1. **Functional Testing**: run a cycles/ directory through 'reconciler run'
2. **Performance Testing**: use the performance folder
3. **Edge Case Testing**: use scenario-specific datasets and compare against the expected-status files
4. **Carry-Over Testing**: run carryover_cycle1 then carryover_cycle2 under the same run ID

## Regeneration

To regenerate all test data:
` + "```bash\ngo run generate.go -generator=all\n```" + `

To generate specific datasets:
` + "```bash\ngo run generate.go -generator=sources -count=5000 -cycle=2 -ntsl\ngo run generate.go -generator=sources -direction=outward -subtype=P2M\ngo run generate.go -generator=scenarios -scenario=carryover\n```" + `

Generated on: ` + time.Now().Format("2006-01-02 15:04:05") + `
`

	docPath := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(docPath, []byte(docContent), 0644); err != nil {
		log.Printf("Failed to write documentation: %v", err)
		return
	}
	fmt.Println("  README.md written")
}
