package regress

import (
	"fmt"
	"log/slog"

	"campaigndid/internal/sample"
)

// Estimator fits linear probability models over the analysis sample. It is
// re-entrant: every fit builds its own design matrix and shares no state
// with other fits, so the same inputs always yield the same result.
type Estimator struct {
	tol    float64
	logger *slog.Logger
}

// NewEstimator creates an estimator. A non-positive tolerance falls back to
// DefaultCollinearityTol.
func NewEstimator(tol float64, logger *slog.Logger) *Estimator {
	if tol <= 0 {
		tol = DefaultCollinearityTol
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{tol: tol, logger: logger}
}

// WaveTreatment builds the canonical treatment vector from the rows' wave
// tags: Wave 2 is treated.
func WaveTreatment(rows []sample.Row) []float64 {
	t := make([]float64, len(rows))
	for i, r := range rows {
		t[i] = r.Wave.Treatment()
	}
	return t
}

// Fit estimates one specification with an explicit treatment vector. The
// placebo runner uses this entry point to substitute fabricated treatment
// indicators; regular difference-in-differences fits go through FitWave.
func (e *Estimator) Fit(rows []sample.Row, treatment []float64, spec Specification) (FitResult, error) {
	d, err := buildDesign(rows, treatment, spec.Controls)
	if err != nil {
		return FitResult{}, fmt.Errorf("specification %q: %w", spec.Name, err)
	}

	res, err := solveOLS(d, spec, e.tol)
	if err != nil {
		return FitResult{}, err
	}

	e.logger.Info("fitted specification",
		slog.String("spec", spec.Name),
		slog.Int("n", res.N),
		slog.Int("columns", len(d.names)),
		slog.Float64("coefficient", res.Coefficient),
		slog.Float64("std_err", res.StdErr),
		slog.Float64("p_value", res.PValue),
		slog.Float64("r_squared", res.RSquared),
	)
	return res, nil
}

// FitWave estimates one specification with the wave-based treatment
// indicator.
func (e *Estimator) FitWave(rows []sample.Row, spec Specification) (FitResult, error) {
	return e.Fit(rows, WaveTreatment(rows), spec)
}

// FitLadder estimates the progressive specification ladder. Each
// specification is fitted independently from scratch on the full sample;
// results come back in input order. The first error aborts the ladder.
func (e *Estimator) FitLadder(rows []sample.Row, specs []Specification) ([]FitResult, error) {
	treatment := WaveTreatment(rows)
	results := make([]FitResult, 0, len(specs))
	for _, spec := range specs {
		res, err := e.Fit(rows, treatment, spec)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
