package exporter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"campaigndid/internal/analysis"
	"campaigndid/internal/balance"
	"campaigndid/internal/regress"
	"campaigndid/internal/robustness"
	"campaigndid/internal/sample"
)

func testReport() *analysis.Report {
	fit := regress.FitResult{
		Spec:        regress.Specification{Name: "model_1"},
		N:           9125,
		DF:          9123,
		Coefficient: 0.042,
		StdErr:      0.007,
		TValue:      6.0,
		PValue:      0.0001,
		RSquared:    0.01,
	}
	stratumFit := fit
	stratumFit.N = 3000

	return &analysis.Report{
		RunID:       "test-run",
		GeneratedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Funnel: sample.Funnel{
			TotalCustomers: 14010,
			Contaminated:   2040,
			NoWave:         2112,
			PriorContact:   733,
			Kept:           9125,
			KeptWave1:      5000,
			KeptWave2:      4125,
		},
		Balance: balance.Table{
			Threshold: 0.25,
			Entries: []balance.Entry{
				{Covariate: "age", Wave1Mean: 40, Wave2Mean: 42, AbsDiff: 2, RelDiff: 0.05},
				{Covariate: "housing", Category: "yes", Wave1Mean: 0.5, Wave2Mean: 0.3, AbsDiff: 0.2, RelDiff: -0.4, Imbalanced: true},
			},
		},
		Models: []regress.FitResult{fit},
		Sensitivity: robustness.SensitivityResult{
			Restricted:   fit,
			Relaxed:      fit,
			RelativeDiff: 0,
		},
		Placebo: robustness.PlaceboResult{
			Fit:    regress.FitResult{Spec: regress.Specification{Name: "placebo"}, N: 5000, PValue: 0.8},
			Cutoff: time.Date(2008, 7, 1, 0, 0, 0, 0, time.UTC),
			Alpha:  0.05,
		},
		Strata: []robustness.StratumResult{
			{Stratum: "age<30", N: 3000, Fit: &stratumFit},
			{Stratum: "age 60+", N: 12, Skipped: true, Reason: "too small"},
		},
		Diagnostics: []analysis.Diagnostic{
			{Name: "identity_ambiguity", Severity: analysis.SeverityInfo, Message: "pseudo identity is heuristic"},
		},
	}
}

func TestCSVWriterWriteReport(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, nil)

	require.NoError(t, w.WriteReport(testReport()))

	for _, name := range []string{"models.csv", "funnel.csv", "balance.csv", "robustness.csv", "diagnostics.csv"} {
		t.Run(name, func(t *testing.T) {
			f, err := os.Open(filepath.Join(dir, name))
			require.NoError(t, err)
			defer f.Close()

			records, err := csv.NewReader(f).ReadAll()
			require.NoError(t, err)
			assert.Greater(t, len(records), 1, "header plus at least one record")
		})
	}
}

func TestCSVWriterFunnelContents(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewCSVWriter(dir, nil).WriteReport(testReport()))

	f, err := os.Open(filepath.Join(dir, "funnel.csv"))
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 8)
	assert.Equal(t, []string{"stage", "count"}, records[0])
	assert.Equal(t, []string{"total_customers", "14010"}, records[1])
	assert.Equal(t, []string{"kept", "9125"}, records[5])
}

func TestCSVWriterRobustnessIncludesSkippedStrata(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewCSVWriter(dir, nil).WriteReport(testReport()))

	f, err := os.Open(filepath.Join(dir, "robustness.csv"))
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	var found bool
	for _, r := range records {
		if r[0] == "age 60+ (skipped)" {
			found = true
			assert.Equal(t, "12", r[len(r)-1])
		}
	}
	assert.True(t, found, "skipped strata stay visible in the robustness table")
}

func TestWorkbookWriter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.xlsx")

	require.NoError(t, NewWorkbookWriter(nil).Write(testReport(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t,
		[]string{"Models", "Funnel", "Balance", "Robustness", "Diagnostics"},
		f.GetSheetList())

	cell, err := f.GetCellValue("Funnel", "A2")
	require.NoError(t, err)
	assert.Equal(t, "total_customers", cell)
}
