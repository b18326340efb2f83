package exporter

import (
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"campaigndid/internal/analysis"
)

// WorkbookWriter writes the full report as a single Excel workbook, one
// sheet per table, for consumers who want everything in one file.
type WorkbookWriter struct {
	logger *slog.Logger
}

// NewWorkbookWriter creates a workbook writer.
func NewWorkbookWriter(logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{logger: logger}
}

// Write saves the report workbook to path.
func (w *WorkbookWriter) Write(report *analysis.Report, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := []struct {
		name  string
		build func(*analysis.Report) ([]string, [][]string)
	}{
		{"Models", modelsTable},
		{"Funnel", funnelTable},
		{"Balance", balanceTable},
		{"Robustness", robustnessTable},
		{"Diagnostics", diagnosticsTable},
	}

	for i, sheet := range sheets {
		if i == 0 {
			// Rename the default sheet rather than leaving an empty Sheet1.
			if err := f.SetSheetName(f.GetSheetName(0), sheet.name); err != nil {
				return fmt.Errorf("rename sheet %s: %w", sheet.name, err)
			}
		} else {
			if _, err := f.NewSheet(sheet.name); err != nil {
				return fmt.Errorf("create sheet %s: %w", sheet.name, err)
			}
		}

		headers, records := sheet.build(report)
		if err := writeSheet(f, sheet.name, headers, records); err != nil {
			return fmt.Errorf("fill sheet %s: %w", sheet.name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	w.logger.Info("wrote report workbook",
		slog.String("path", path),
		slog.String("run_id", report.RunID),
	)
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, records [][]string) error {
	rows := append([][]string{headers}, records...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}
