package regress

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"campaigndid/internal/sample"
)

// design is the materialized regression input for one specification:
// intercept, treatment indicator, then controls in specification order, with
// categorical controls dummy-encoded against their first (alphabetical)
// category as reference.
type design struct {
	x     *mat.Dense
	y     *mat.VecDense
	names []string // column names, parallel to the columns of x
}

// buildDesign assembles the design matrix from scratch for one
// specification. treatment must be parallel to rows; the outcome is the
// subscription indicator.
func buildDesign(rows []sample.Row, treatment []float64, controls []string) (*design, error) {
	if len(treatment) != len(rows) {
		return nil, fmt.Errorf("treatment vector length %d does not match %d rows", len(treatment), len(rows))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty sample")
	}

	names := []string{"intercept", "treated"}
	type column struct {
		numeric  string // numeric field name, or
		category string // categorical field name plus level
		level    string
	}
	var cols []column
	for _, name := range controls {
		if _, ok := rows[0].Numeric(name); ok {
			cols = append(cols, column{numeric: name})
			names = append(names, name)
			continue
		}
		if _, ok := rows[0].Categorical(name); ok {
			for _, level := range dummyLevels(rows, name) {
				cols = append(cols, column{category: name, level: level})
				names = append(names, fmt.Sprintf("%s=%s", name, level))
			}
			continue
		}
		return nil, fmt.Errorf("unknown control variable %q", name)
	}

	n, k := len(rows), len(names)
	if n <= k {
		return nil, fmt.Errorf("%d observations cannot identify %d coefficients", n, k)
	}

	x := mat.NewDense(n, k, nil)
	y := mat.NewVecDense(n, nil)
	for i, r := range rows {
		x.Set(i, 0, 1)
		x.Set(i, 1, treatment[i])
		for j, col := range cols {
			var v float64
			if col.numeric != "" {
				v, _ = r.Numeric(col.numeric)
			} else {
				cat, _ := r.Categorical(col.category)
				if cat == col.level {
					v = 1
				}
			}
			x.Set(i, 2+j, v)
		}
		y.SetVec(i, r.Outcome())
	}

	return &design{x: x, y: y, names: names}, nil
}

// dummyLevels returns the sorted category levels of a covariate minus the
// first, which serves as the reference category.
func dummyLevels(rows []sample.Row, name string) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		v, _ := r.Categorical(name)
		seen[v] = struct{}{}
	}
	levels := make([]string, 0, len(seen))
	for v := range seen {
		levels = append(levels, v)
	}
	sort.Strings(levels)
	if len(levels) <= 1 {
		return nil // constant covariate adds no information
	}
	return levels[1:]
}
