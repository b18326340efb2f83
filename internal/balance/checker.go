// Package balance computes covariate balance between the two waves of the
// analysis sample. Good balance supports the parallel-trends reading of the
// difference-in-differences estimate; large relative differences flag
// covariates that must be controlled for.
package balance

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"campaigndid/internal/sample"
	"campaigndid/internal/wave"
)

// DefaultThreshold is the relative difference above which a covariate is
// flagged imbalanced.
const DefaultThreshold = 0.25

// Entry is one row of the balance table: a numeric covariate, or one
// category of a categorical covariate.
type Entry struct {
	Covariate  string  `json:"covariate"`
	Category   string  `json:"category,omitempty"` // empty for numeric covariates
	Wave1Mean  float64 `json:"wave_1_mean"`
	Wave2Mean  float64 `json:"wave_2_mean"`
	AbsDiff    float64 `json:"abs_diff"`
	RelDiff    float64 `json:"rel_diff"` // relative to the wave 1 mean
	Imbalanced bool    `json:"imbalanced"`
}

// Label names the entry for reports.
func (e Entry) Label() string {
	if e.Category == "" {
		return e.Covariate
	}
	return fmt.Sprintf("%s=%s", e.Covariate, e.Category)
}

// Table is the full balance check result. Read-only output; the checker
// mutates nothing.
type Table struct {
	Threshold float64 `json:"threshold"`
	Entries   []Entry `json:"entries"`
}

// Imbalanced returns the entries flagged over threshold.
func (t Table) Imbalanced() []Entry {
	var out []Entry
	for _, e := range t.Entries {
		if e.Imbalanced {
			out = append(out, e)
		}
	}
	return out
}

// Checker computes per-wave covariate summaries.
type Checker struct {
	threshold float64
	logger    *slog.Logger
}

// NewChecker creates a checker. A non-positive threshold falls back to
// DefaultThreshold.
func NewChecker(threshold float64, logger *slog.Logger) *Checker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{threshold: threshold, logger: logger}
}

// Check computes the balance table over the named covariates. Numeric
// covariates contribute one entry (per-wave mean); categorical covariates
// contribute one entry per observed category (per-wave proportion).
// Unknown covariate names are an error.
func (c *Checker) Check(rows []sample.Row, covariates []string) (Table, error) {
	table := Table{Threshold: c.threshold}
	for _, name := range covariates {
		if _, ok := (sample.Row{}).Numeric(name); ok {
			table.Entries = append(table.Entries, c.numericEntry(rows, name))
			continue
		}
		if _, ok := (sample.Row{}).Categorical(name); ok {
			table.Entries = append(table.Entries, c.categoricalEntries(rows, name)...)
			continue
		}
		return Table{}, fmt.Errorf("unknown balance covariate %q", name)
	}

	c.logger.Info("covariate balance computed",
		slog.Int("entries", len(table.Entries)),
		slog.Int("imbalanced", len(table.Imbalanced())),
		slog.Float64("threshold", c.threshold),
	)
	return table, nil
}

func (c *Checker) numericEntry(rows []sample.Row, name string) Entry {
	var sum1, sum2 float64
	var n1, n2 int
	for _, r := range rows {
		v, _ := r.Numeric(name)
		if r.Wave == wave.Wave1 {
			sum1 += v
			n1++
		} else {
			sum2 += v
			n2++
		}
	}
	return c.entry(name, "", mean(sum1, n1), mean(sum2, n2))
}

func (c *Checker) categoricalEntries(rows []sample.Row, name string) []Entry {
	counts1 := make(map[string]int)
	counts2 := make(map[string]int)
	var n1, n2 int
	for _, r := range rows {
		v, _ := r.Categorical(name)
		if r.Wave == wave.Wave1 {
			counts1[v]++
			n1++
		} else {
			counts2[v]++
			n2++
		}
	}

	categories := make(map[string]struct{})
	for v := range counts1 {
		categories[v] = struct{}{}
	}
	for v := range counts2 {
		categories[v] = struct{}{}
	}
	ordered := make([]string, 0, len(categories))
	for v := range categories {
		ordered = append(ordered, v)
	}
	sort.Strings(ordered)

	entries := make([]Entry, 0, len(ordered))
	for _, v := range ordered {
		p1 := mean(float64(counts1[v]), n1)
		p2 := mean(float64(counts2[v]), n2)
		entries = append(entries, c.entry(name, v, p1, p2))
	}
	return entries
}

func (c *Checker) entry(name, category string, m1, m2 float64) Entry {
	abs := math.Abs(m2 - m1)
	var rel float64
	switch {
	case m1 != 0:
		rel = (m2 - m1) / m1
	case m2 != 0:
		rel = math.Inf(1)
	}
	return Entry{
		Covariate:  name,
		Category:   category,
		Wave1Mean:  m1,
		Wave2Mean:  m2,
		AbsDiff:    abs,
		RelDiff:    rel,
		Imbalanced: math.Abs(rel) > c.threshold,
	}
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
