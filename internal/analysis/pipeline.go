// Package analysis wires the pipeline stages into one ordered run: resolve
// identities, assign waves, filter the sample, check balance, fit the model
// ladder, stress the estimate. Every stage hands an immutable value to the
// next; no stage depends on side effects of an earlier one beyond its
// declared input.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"campaigndid/internal/balance"
	"campaigndid/internal/config"
	"campaigndid/internal/contact"
	"campaigndid/internal/identity"
	"campaigndid/internal/regress"
	"campaigndid/internal/robustness"
	"campaigndid/internal/sample"
	"campaigndid/internal/wave"
)

// Severity grades a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a recorded, non-fatal condition attached to the report.
// Nothing the pipeline observes is swallowed without one.
type Diagnostic struct {
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Report is the immutable result of one pipeline run. Exporters and other
// external consumers read it; nothing mutates it afterwards.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Funnel      sample.Funnel                `json:"funnel"`
	Balance     balance.Table                `json:"balance"`
	Models      []regress.FitResult          `json:"models"`
	Sensitivity robustness.SensitivityResult `json:"sensitivity"`
	Placebo     robustness.PlaceboResult     `json:"placebo"`
	Strata      []robustness.StratumResult   `json:"strata"`
	Diagnostics []Diagnostic                 `json:"diagnostics"`
}

// BaseModel returns the fully adjusted specification's result, the headline
// estimate of the analysis.
func (r *Report) BaseModel() regress.FitResult {
	if len(r.Models) == 0 {
		return regress.FitResult{}
	}
	return r.Models[len(r.Models)-1]
}

// Pipeline runs the full analysis over loaded contact events.
type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewPipeline creates a pipeline from validated configuration.
func NewPipeline(cfg *config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

// Run executes the pipeline. Schema and model-ladder collinearity problems
// abort the run; every other condition lands in the report's diagnostics and
// the run continues.
func (p *Pipeline) Run(ctx context.Context, events []contact.Event) (*Report, error) {
	report := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
	}
	p.logger.InfoContext(ctx, "starting analysis run",
		slog.String("run_id", report.RunID),
		slog.Int("events", len(events)),
	)

	resolver, err := identity.NewResolver(p.cfg.Identity.Columns, p.logger)
	if err != nil {
		return nil, fmt.Errorf("identity resolver: %w", err)
	}
	customers := resolver.Resolve(events)
	report.Diagnostics = append(report.Diagnostics, Diagnostic{
		Name:     "identity_ambiguity",
		Severity: SeverityInfo,
		Message:  resolver.AmbiguityNote(),
	})

	assigner, err := wave.NewAssigner(p.cfg.Waves.Wave1(), p.cfg.Waves.Wave2())
	if err != nil {
		return nil, fmt.Errorf("wave assigner: %w", err)
	}

	restricted, funnel := sample.NewFilter(assigner, p.logger).Apply(customers)
	relaxed, _ := sample.NewFilter(assigner, p.logger, sample.KeepPriorContact()).Apply(customers)
	report.Funnel = funnel
	if funnel.Kept == 0 {
		return nil, fmt.Errorf("analysis sample is empty after filtering (%d customers in)", funnel.TotalCustomers)
	}
	report.Diagnostics = append(report.Diagnostics, Diagnostic{
		Name:     "contamination_exclusion",
		Severity: SeverityInfo,
		Message: fmt.Sprintf("%d of %d pseudo customers touched both waves and were excluded entirely",
			funnel.Contaminated, funnel.TotalCustomers),
	})

	checker := balance.NewChecker(p.cfg.Balance.Threshold, p.logger)
	table, err := checker.Check(restricted, p.cfg.Balance.Covariates)
	if err != nil {
		return nil, fmt.Errorf("covariate balance: %w", err)
	}
	report.Balance = table
	for _, entry := range table.Imbalanced() {
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Name:     "covariate_imbalance",
			Severity: SeverityWarning,
			Message: fmt.Sprintf("%s differs %.1f%% between waves (threshold %.0f%%)",
				entry.Label(), 100*entry.RelDiff, 100*table.Threshold),
		})
	}

	estimator := regress.NewEstimator(p.cfg.Models.CollinearityTol, p.logger)
	models, err := estimator.FitLadder(restricted, p.cfg.Models.Specifications)
	if err != nil {
		return nil, fmt.Errorf("model ladder: %w", err)
	}
	report.Models = models

	baseSpec := p.cfg.Models.Specifications[len(p.cfg.Models.Specifications)-1]
	runner := robustness.NewRunner(
		estimator,
		baseSpec,
		p.cfg.Robustness.PlaceboCutoffTime(),
		p.cfg.Robustness.MinStratumSize,
		p.cfg.Robustness.Alpha,
		p.logger,
	)

	if report.Sensitivity, err = runner.SampleSensitivity(restricted, relaxed); err != nil {
		return nil, fmt.Errorf("sample sensitivity: %w", err)
	}

	placebo, err := runner.Placebo(restricted)
	if err != nil {
		// A placebo that cannot run is reported, not fatal: the headline
		// estimate stands, but without this diagnostic backing it.
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Name:     "placebo_unavailable",
			Severity: SeverityWarning,
			Message:  err.Error(),
		})
	} else {
		report.Placebo = placebo
		if placebo.Significant {
			report.Diagnostics = append(report.Diagnostics, Diagnostic{
				Name:     "placebo_significant",
				Severity: SeverityWarning,
				Message: fmt.Sprintf("placebo treatment significant (coef %.4f, p=%.4f): pre-trend assumption is suspect",
					placebo.Fit.Coefficient, placebo.Fit.PValue),
			})
		}
	}

	strata, err := runner.Heterogeneity(restricted, p.stratifier())
	if err != nil {
		return nil, fmt.Errorf("heterogeneity: %w", err)
	}
	report.Strata = strata
	for _, s := range strata {
		if s.Skipped {
			report.Diagnostics = append(report.Diagnostics, Diagnostic{
				Name:     "stratum_skipped",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("stratum %q skipped: %s", s.Stratum, s.Reason),
			})
		}
	}

	p.logger.InfoContext(ctx, "analysis run complete",
		slog.String("run_id", report.RunID),
		slog.Int("models", len(report.Models)),
		slog.Float64("headline_coefficient", report.BaseModel().Coefficient),
		slog.Int("diagnostics", len(report.Diagnostics)),
	)
	return report, nil
}

// stratifier selects the heterogeneity partition from configuration. Only
// age bucketing ships today; unknown names fall back to it with a log line
// rather than failing a run over a report preference.
func (p *Pipeline) stratifier() robustness.Stratifier {
	switch p.cfg.Robustness.StratifyBy {
	case "", "age":
		return robustness.AgeBuckets
	default:
		p.logger.Warn("unknown stratifier, falling back to age buckets",
			slog.String("stratify_by", p.cfg.Robustness.StratifyBy))
		return robustness.AgeBuckets
	}
}
