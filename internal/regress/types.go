// Package regress fits linear probability models for the
// difference-in-differences design. Each specification is fitted
// independently from a fresh design matrix; standard errors are
// heteroskedasticity-robust (HC1), which the binary outcome and binary
// treatment make mandatory.
package regress

import "fmt"

// Specification is one regression configuration: a name and an ordered list
// of control variables layered on top of the fixed treatment indicator.
// Immutable; consumed once per fit.
type Specification struct {
	Name     string   `yaml:"name" json:"name"`
	Controls []string `yaml:"controls" json:"controls"`
}

func (s Specification) String() string {
	if len(s.Controls) == 0 {
		return fmt.Sprintf("%s (no controls)", s.Name)
	}
	return fmt.Sprintf("%s (%d controls)", s.Name, len(s.Controls))
}

// Term is one fitted coefficient with its inference statistics.
type Term struct {
	Name        string  `json:"name"`
	Coefficient float64 `json:"coefficient"`
	StdErr      float64 `json:"std_err"`
	TValue      float64 `json:"t_value"`
	PValue      float64 `json:"p_value"`
}

// FitResult is the outcome of fitting one specification. Immutable once
// produced; results are only ever compared across specifications.
type FitResult struct {
	Spec Specification `json:"spec"`
	N    int           `json:"n"`
	DF   int           `json:"df"` // residual degrees of freedom

	// Treatment coefficient and its robust inference
	Coefficient float64 `json:"coefficient"`
	StdErr      float64 `json:"std_err"`
	TValue      float64 `json:"t_value"`
	PValue      float64 `json:"p_value"`

	RSquared float64 `json:"r_squared"`
	Terms    []Term  `json:"terms"` // all coefficients, intercept first
}

// Significant reports whether the treatment effect is significant at the
// given level.
func (r FitResult) Significant(alpha float64) bool {
	return r.PValue < alpha
}
