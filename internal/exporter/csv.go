// Package exporter writes the report's tables to files for external
// reporting and plotting consumers. Formatting only; the in-memory Report is
// the contract, and nothing here feeds back into the pipeline.
package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"campaigndid/internal/analysis"
	"campaigndid/internal/regress"
)

// CSVWriter writes report tables as CSV files under an output directory.
type CSVWriter struct {
	dir    string
	logger *slog.Logger
}

// NewCSVWriter creates a writer rooted at dir.
func NewCSVWriter(dir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{dir: dir, logger: logger}
}

// WriteReport writes every table of the report: models, funnel, balance,
// robustness and diagnostics.
func (w *CSVWriter) WriteReport(report *analysis.Report) error {
	files := map[string]func(*analysis.Report) ([]string, [][]string){
		"models.csv":      modelsTable,
		"funnel.csv":      funnelTable,
		"balance.csv":     balanceTable,
		"robustness.csv":  robustnessTable,
		"diagnostics.csv": diagnosticsTable,
	}
	for name, build := range files {
		headers, records := build(report)
		if err := w.write(name, headers, records); err != nil {
			return fmt.Errorf("export %s: %w", name, err)
		}
	}
	return nil
}

func (w *CSVWriter) write(name string, headers []string, records [][]string) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(w.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	for i, record := range records {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	w.logger.Info("wrote report table",
		slog.String("path", path),
		slog.Int("records", len(records)),
	)
	return nil
}

func modelsTable(r *analysis.Report) ([]string, [][]string) {
	headers := []string{"model", "coefficient", "std_err", "t_value", "p_value", "r_squared", "n"}
	records := make([][]string, 0, len(r.Models))
	for _, m := range r.Models {
		records = append(records, fitRecord(m.Spec.Name, m))
	}
	return headers, records
}

func funnelTable(r *analysis.Report) ([]string, [][]string) {
	f := r.Funnel
	headers := []string{"stage", "count"}
	return headers, [][]string{
		{"total_customers", strconv.Itoa(f.TotalCustomers)},
		{"contaminated", strconv.Itoa(f.Contaminated)},
		{"no_wave", strconv.Itoa(f.NoWave)},
		{"prior_contact", strconv.Itoa(f.PriorContact)},
		{"kept", strconv.Itoa(f.Kept)},
		{"kept_wave_1", strconv.Itoa(f.KeptWave1)},
		{"kept_wave_2", strconv.Itoa(f.KeptWave2)},
	}
}

func balanceTable(r *analysis.Report) ([]string, [][]string) {
	headers := []string{"covariate", "wave_1_mean", "wave_2_mean", "abs_diff", "rel_diff", "imbalanced"}
	records := make([][]string, 0, len(r.Balance.Entries))
	for _, e := range r.Balance.Entries {
		records = append(records, []string{
			e.Label(),
			formatFloat(e.Wave1Mean),
			formatFloat(e.Wave2Mean),
			formatFloat(e.AbsDiff),
			formatFloat(e.RelDiff),
			strconv.FormatBool(e.Imbalanced),
		})
	}
	return headers, records
}

func robustnessTable(r *analysis.Report) ([]string, [][]string) {
	headers := []string{"check", "coefficient", "std_err", "t_value", "p_value", "r_squared", "n"}
	records := [][]string{
		fitRecord("restricted_sample", r.Sensitivity.Restricted),
		fitRecord("relaxed_sample", r.Sensitivity.Relaxed),
	}
	if r.Placebo.Fit.N > 0 {
		records = append(records, fitRecord("placebo", r.Placebo.Fit))
	}
	for _, s := range r.Strata {
		if s.Skipped {
			records = append(records, []string{s.Stratum + " (skipped)", "", "", "", "", "", strconv.Itoa(s.N)})
			continue
		}
		records = append(records, fitRecord(s.Stratum, *s.Fit))
	}
	return headers, records
}

func diagnosticsTable(r *analysis.Report) ([]string, [][]string) {
	headers := []string{"name", "severity", "message"}
	records := make([][]string, 0, len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		records = append(records, []string{d.Name, string(d.Severity), d.Message})
	}
	return headers, records
}

func fitRecord(label string, m regress.FitResult) []string {
	return []string{
		label,
		formatFloat(m.Coefficient),
		formatFloat(m.StdErr),
		formatFloat(m.TValue),
		formatFloat(m.PValue),
		formatFloat(m.RSquared),
		strconv.Itoa(m.N),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
