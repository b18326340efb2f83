// Command did-report runs the full campaign analysis: load the contact CSV,
// build the analysis sample, fit the model ladder, run the robustness
// checks, and write the report artifacts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"campaigndid/internal/analysis"
	"campaigndid/internal/config"
	"campaigndid/internal/contact"
	"campaigndid/internal/exporter"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional, env and defaults apply without it)")
	inputPath := flag.String("input", "", "path to the campaign CSV (overrides config)")
	outputDir := flag.String("out", "out", "output directory for report artifacts")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *inputPath != "" {
		cfg.Input.Path = *inputPath
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	loader := contact.NewLoader(cfg.Input.StartYear, logger)
	events, err := loader.LoadFile(cfg.Input.Path)
	if err != nil {
		logger.Error("failed to load contact events", "error", err, "path", cfg.Input.Path)
		os.Exit(1)
	}
	if len(events) == 0 {
		logger.Error("input file contains no contact events", "path", cfg.Input.Path)
		os.Exit(1)
	}

	pipeline := analysis.NewPipeline(cfg, logger)
	report, err := pipeline.Run(context.Background(), events)
	if err != nil {
		logger.Error("analysis run failed", "error", err)
		os.Exit(1)
	}

	if err := exporter.NewCSVWriter(*outputDir, logger).WriteReport(report); err != nil {
		logger.Error("failed to write CSV artifacts", "error", err)
		os.Exit(1)
	}
	workbookPath := filepath.Join(*outputDir, "did_report.xlsx")
	if err := exporter.NewWorkbookWriter(logger).Write(report, workbookPath); err != nil {
		logger.Error("failed to write report workbook", "error", err)
		os.Exit(1)
	}

	base := report.BaseModel()
	fmt.Printf("run %s\n", report.RunID)
	fmt.Printf("sample: %d customers -> %d kept (wave 1: %d, wave 2: %d)\n",
		report.Funnel.TotalCustomers, report.Funnel.Kept,
		report.Funnel.KeptWave1, report.Funnel.KeptWave2)
	fmt.Printf("effect (%s): %+.4f (robust SE %.4f, p=%.4f, n=%d)\n",
		base.Spec.Name, base.Coefficient, base.StdErr, base.PValue, base.N)
	for _, d := range report.Diagnostics {
		if d.Severity == analysis.SeverityWarning {
			fmt.Printf("warning: %s\n", d.Message)
		}
	}
	fmt.Printf("artifacts written to %s\n", *outputDir)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
