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

// LedgerGenerator produces paired ledger CSV files (A and B sides) for
// exercising the reconciler. Rows follow the headerless
// [date, department, value, counterpart] layout of the standard profile.
type LedgerGenerator struct {
	Count     int
	StartDate time.Time
	EndDate   time.Time
	OutputDir string
	Seed      int64
	rng       *rand.Rand
}

type ledgerRow struct {
	Date        time.Time
	Department  string
	Value       decimal.Decimal
	Counterpart string
}

var departments = []string{"Tecnologia", "Jurídico", "Financeiro", "Marketing", "Operações"}

var counterparts = []string{
	"AWS", "Bitbucket", "LinkSquares", "Datadog", "GitHub",
	"Slack", "Notion", "Salesforce", "Figma", "Zoom",
}

func main() {
	var (
		outputDir = flag.String("output-dir", "generated", "Output directory for ledger pairs")
		count     = flag.Int("count", 1000, "Number of rows in ledger A")
		startDate = flag.String("start-date", "2020-12-01", "Start date (YYYY-MM-DD)")
		endDate   = flag.String("end-date", "2020-12-31", "End date (YYYY-MM-DD)")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
		scenario  = flag.String("scenario", "all", "Scenario: random, duplicates, near-miss, date-shift, all")
	)
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatalf("Invalid end date: %v", err)
	}
	if end.Before(start) {
		log.Fatalf("End date %s is before start date %s", *endDate, *startDate)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	generator := &LedgerGenerator{
		Count:     *count,
		StartDate: start,
		EndDate:   end,
		OutputDir: *outputDir,
		Seed:      *seed,
		rng:       rand.New(rand.NewSource(*seed)),
	}

	switch *scenario {
	case "random":
		generator.GenerateRandomPair()
	case "duplicates":
		generator.GenerateDuplicatePair()
	case "near-miss":
		generator.GenerateNearMissPair()
	case "date-shift":
		generator.GenerateDateShiftPair()
	case "all":
		generator.GenerateRandomPair()
		generator.GenerateDuplicatePair()
		generator.GenerateNearMissPair()
		generator.GenerateDateShiftPair()
	default:
		log.Fatalf("Unknown scenario: %s", *scenario)
	}

	fmt.Printf("Generated ledgers in %s (seed %d)\n", *outputDir, *seed)
}

// GenerateRandomPair writes a ledger A of Count rows and a ledger B that
// matches roughly 80% of it, with extra B-only rows mixed in.
func (lg *LedgerGenerator) GenerateRandomPair() {
	fmt.Println("Generating random pair...")

	rowsA := make([]ledgerRow, 0, lg.Count)
	for i := 0; i < lg.Count; i++ {
		rowsA = append(rowsA, lg.randomRow())
	}

	rowsB := make([]ledgerRow, 0, lg.Count)
	for _, row := range rowsA {
		if lg.rng.Float64() < 0.8 {
			rowsB = append(rowsB, row)
		}
	}
	for i := 0; i < lg.Count/10; i++ {
		rowsB = append(rowsB, lg.randomRow())
	}
	lg.shuffle(rowsB)

	lg.writeLedger("random_ledgerA.csv", rowsA)
	lg.writeLedger("random_ledgerB.csv", rowsB)
}

// GenerateDuplicatePair writes ledgers where A repeats identical rows
// more often than B, leaving the surplus copies unmatched.
func (lg *LedgerGenerator) GenerateDuplicatePair() {
	fmt.Println("Generating duplicate pair...")

	var rowsA, rowsB []ledgerRow
	for i := 0; i < lg.Count/4; i++ {
		row := lg.randomRow()

		copiesA := 1 + lg.rng.Intn(3)
		for c := 0; c < copiesA; c++ {
			rowsA = append(rowsA, row)
		}
		// B carries at most as many copies, sometimes fewer
		copiesB := lg.rng.Intn(copiesA + 1)
		for c := 0; c < copiesB; c++ {
			rowsB = append(rowsB, row)
		}
	}
	lg.shuffle(rowsB)

	lg.writeLedger("duplicates_ledgerA.csv", rowsA)
	lg.writeLedger("duplicates_ledgerB.csv", rowsB)
}

// GenerateNearMissPair writes pairs whose values differ by a few cents,
// so nothing matches but every row has a close counterpart.
func (lg *LedgerGenerator) GenerateNearMissPair() {
	fmt.Println("Generating near-miss pair...")

	var rowsA, rowsB []ledgerRow
	for i := 0; i < lg.Count/4; i++ {
		row := lg.randomRow()
		rowsA = append(rowsA, row)

		delta := decimal.New(int64(1+lg.rng.Intn(5)), -2)
		shifted := row
		shifted.Value = row.Value.Sub(delta)
		rowsB = append(rowsB, shifted)
	}

	lg.writeLedger("near_miss_ledgerA.csv", rowsA)
	lg.writeLedger("near_miss_ledgerB.csv", rowsB)
}

// GenerateDateShiftPair writes pairs recorded on neighboring days. Rows
// shifted by one day still reconcile under the date tolerance, rows
// shifted by two days do not.
func (lg *LedgerGenerator) GenerateDateShiftPair() {
	fmt.Println("Generating date-shift pair...")

	var rowsA, rowsB []ledgerRow
	for i := 0; i < lg.Count/4; i++ {
		row := lg.randomRow()
		rowsA = append(rowsA, row)

		shifted := row
		days := 1
		if lg.rng.Float64() < 0.25 {
			days = 2
		}
		if lg.rng.Float64() < 0.5 {
			days = -days
		}
		shifted.Date = row.Date.AddDate(0, 0, days)
		rowsB = append(rowsB, shifted)
	}

	lg.writeLedger("date_shift_ledgerA.csv", rowsA)
	lg.writeLedger("date_shift_ledgerB.csv", rowsB)
}

func (lg *LedgerGenerator) randomRow() ledgerRow {
	days := int(lg.EndDate.Sub(lg.StartDate).Hours() / 24)
	date := lg.StartDate
	if days > 0 {
		date = lg.StartDate.AddDate(0, 0, lg.rng.Intn(days+1))
	}

	// cents in [0.01, 5000.00]
	cents := int64(1 + lg.rng.Intn(500000))

	return ledgerRow{
		Date:        date,
		Department:  departments[lg.rng.Intn(len(departments))],
		Value:       decimal.New(cents, -2),
		Counterpart: counterparts[lg.rng.Intn(len(counterparts))],
	}
}

func (lg *LedgerGenerator) shuffle(rows []ledgerRow) {
	lg.rng.Shuffle(len(rows), func(i, j int) {
		rows[i], rows[j] = rows[j], rows[i]
	})
}

func (lg *LedgerGenerator) writeLedger(name string, rows []ledgerRow) {
	path := filepath.Join(lg.OutputDir, name)
	file, err := os.Create(path)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	for _, row := range rows {
		record := []string{
			row.Date.Format("2006-01-02"),
			row.Department,
			row.Value.StringFixed(2),
			row.Counterpart,
		}
		if err := writer.Write(record); err != nil {
			log.Fatalf("Failed to write row to %s: %v", path, err)
		}
	}

	fmt.Printf("  wrote %s (%d rows)\n", path, len(rows))
}
