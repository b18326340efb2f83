package regress

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaigndid/internal/contact"
	"campaigndid/internal/sample"
	"campaigndid/internal/wave"
)

// makeSample builds a deterministic two-wave sample with exact subscription
// counts per wave, varying age and housing so that controls are estimable.
func makeSample(n1, subs1, n2, subs2 int) []sample.Row {
	var rows []sample.Row
	add := func(w wave.Wave, n, subs int) {
		for i := 0; i < n; i++ {
			housing := "no"
			if i%2 == 0 {
				housing = "yes"
			}
			rows = append(rows, sample.Row{
				Event: contact.Event{
					Age:        25 + i%40,
					Housing:    housing,
					PDays:      999,
					Subscribed: i < subs,
				},
				Wave:       w,
				CustomerID: fmt.Sprintf("%s_%d", w, i),
			})
		}
	}
	add(wave.Wave1, n1, subs1)
	add(wave.Wave2, n2, subs2)
	return rows
}

// TestFitRecoversPlantedEffect plants wave outcome rates of 10% and 16% and
// checks that the unadjusted linear probability model recovers the 6
// percentage point difference exactly, with the two-group robust standard
// error matching its closed form.
func TestFitRecoversPlantedEffect(t *testing.T) {
	const (
		n1, n2 = 500, 500
		p1, p2 = 0.10, 0.16
	)
	rows := makeSample(n1, int(p1*n1), n2, int(p2*n2))
	e := NewEstimator(0, nil)

	res, err := e.FitWave(rows, Specification{Name: "unadjusted"})
	require.NoError(t, err)

	assert.Equal(t, n1+n2, res.N)
	assert.InDelta(t, p2-p1, res.Coefficient, 1e-9,
		"unadjusted coefficient is exactly the difference in wave means")

	// Two-group HC1 standard error in closed form.
	wantVar := (p1*(1-p1)/n1 + p2*(1-p2)/n2) * float64(n1+n2) / float64(n1+n2-2)
	assert.InDelta(t, math.Sqrt(wantVar), res.StdErr, 1e-9)

	assert.Greater(t, res.PValue, 0.0)
	assert.Less(t, res.PValue, 0.05, "a 6pp effect on n=1000 is significant")
	assert.Greater(t, res.RSquared, 0.0)
	assert.True(t, res.Significant(0.05))

	require.Len(t, res.Terms, 2)
	assert.Equal(t, "intercept", res.Terms[0].Name)
	assert.Equal(t, "treated", res.Terms[1].Name)
	assert.InDelta(t, p1, res.Terms[0].Coefficient, 1e-9)
}

func TestFitIsIdempotent(t *testing.T) {
	rows := makeSample(200, 20, 200, 40)
	e := NewEstimator(0, nil)
	spec := Specification{Name: "adjusted", Controls: []string{"age", "housing"}}

	first, err := e.FitWave(rows, spec)
	require.NoError(t, err)
	second, err := e.FitWave(rows, spec)
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical inputs must produce bit-identical results")
}

func TestFitDummyEncodesCategoricalControls(t *testing.T) {
	rows := makeSample(200, 20, 200, 40)
	e := NewEstimator(0, nil)

	res, err := e.FitWave(rows, Specification{Name: "with_housing", Controls: []string{"housing"}})
	require.NoError(t, err)

	names := make([]string, len(res.Terms))
	for i, term := range res.Terms {
		names[i] = term.Name
	}
	assert.Equal(t, []string{"intercept", "treated", "housing=yes"}, names,
		"sorted categories drop the first level as reference")

	// Housing alternates identically within both waves, so adjusting for it
	// barely moves the treatment estimate.
	assert.InDelta(t, 0.10, res.Coefficient, 0.01)
}

func TestFitDetectsCollinearControl(t *testing.T) {
	t.Run("numeric control linear in treatment", func(t *testing.T) {
		rows := makeSample(100, 10, 100, 20)
		for i := range rows {
			// Economic conditions move one-for-one with the wave.
			if rows[i].Wave == wave.Wave1 {
				rows[i].EmpVarRate = 1.1
			} else {
				rows[i].EmpVarRate = -1.7
			}
		}

		e := NewEstimator(0, nil)
		_, err := e.FitWave(rows, Specification{Name: "bad", Controls: []string{"emp.var.rate"}})
		require.Error(t, err)

		var cerr *CollinearityError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "bad", cerr.Spec)
		assert.Contains(t, cerr.Columns, "emp.var.rate")
	})

	t.Run("categorical control identical to treatment", func(t *testing.T) {
		rows := makeSample(100, 10, 100, 20)
		for i := range rows {
			if rows[i].Wave == wave.Wave1 {
				rows[i].Housing = "yes"
			} else {
				rows[i].Housing = "no"
			}
		}

		e := NewEstimator(0, nil)
		_, err := e.FitWave(rows, Specification{Name: "bad_dummy", Controls: []string{"housing"}})
		require.Error(t, err)

		var cerr *CollinearityError
		require.ErrorAs(t, err, &cerr)
		assert.Contains(t, cerr.Columns, "housing=yes")
	})
}

func TestFitLadderIndependentFits(t *testing.T) {
	rows := makeSample(300, 30, 300, 60)
	e := NewEstimator(0, nil)
	specs := []Specification{
		{Name: "model_1"},
		{Name: "model_2", Controls: []string{"age"}},
		{Name: "model_3", Controls: []string{"age", "housing"}},
	}

	results, err := e.FitLadder(rows, specs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, res := range results {
		assert.Equal(t, specs[i].Name, res.Spec.Name, "results keep input order")
		assert.Equal(t, len(rows), res.N, "every fit uses the full sample")
	}

	// model_1 alone must match a standalone fit of the same specification:
	// ladder fits share no state.
	standalone, err := e.FitWave(rows, specs[0])
	require.NoError(t, err)
	assert.Equal(t, standalone, results[0])
}

func TestFitInputValidation(t *testing.T) {
	e := NewEstimator(0, nil)

	t.Run("unknown control", func(t *testing.T) {
		rows := makeSample(50, 5, 50, 10)
		_, err := e.FitWave(rows, Specification{Name: "bad", Controls: []string{"shoe_size"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "shoe_size")
	})

	t.Run("empty sample", func(t *testing.T) {
		_, err := e.FitWave(nil, Specification{Name: "empty"})
		require.Error(t, err)
	})

	t.Run("treatment length mismatch", func(t *testing.T) {
		rows := makeSample(50, 5, 50, 10)
		_, err := e.Fit(rows, []float64{1, 0}, Specification{Name: "mismatch"})
		require.Error(t, err)
	})

	t.Run("more columns than observations", func(t *testing.T) {
		rows := makeSample(2, 1, 1, 1)
		_, err := e.FitWave(rows, Specification{Name: "tiny", Controls: []string{"age", "housing"}})
		require.Error(t, err)
	})
}
