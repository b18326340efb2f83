package robustness

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaigndid/internal/contact"
	"campaigndid/internal/regress"
	"campaigndid/internal/sample"
	"campaigndid/internal/wave"
)

var (
	earlyWave1 = time.Date(2008, 6, 1, 0, 0, 0, 0, time.UTC)
	lateWave1  = time.Date(2008, 8, 1, 0, 0, 0, 0, time.UTC)
	midWave2   = time.Date(2009, 5, 1, 0, 0, 0, 0, time.UTC)
	cutoff     = time.Date(2008, 7, 1, 0, 0, 0, 0, time.UTC)
)

func testRunner(minStratum int) *Runner {
	return NewRunner(
		regress.NewEstimator(0, nil),
		regress.Specification{Name: "base"},
		cutoff,
		minStratum,
		DefaultAlpha,
		nil,
	)
}

// addRows appends n rows with the given wave, date and exact number of
// subscribers; age controls which heterogeneity bucket they land in.
func addRows(rows []sample.Row, prefix string, w wave.Wave, date time.Time, n, subs, age int) []sample.Row {
	for i := 0; i < n; i++ {
		rows = append(rows, sample.Row{
			Event: contact.Event{
				Date:       date,
				Age:        age,
				PDays:      999,
				Subscribed: i < subs,
			},
			Wave:       w,
			CustomerID: fmt.Sprintf("%s_%d", prefix, i),
		})
	}
	return rows
}

func TestSampleSensitivity(t *testing.T) {
	var restricted []sample.Row
	restricted = addRows(restricted, "r_w1", wave.Wave1, earlyWave1, 200, 20, 35)
	restricted = addRows(restricted, "r_w2", wave.Wave2, midWave2, 200, 40, 35)

	// The relaxed sample adds dormant wave 2 customers with a much higher
	// subscription rate, pulling the estimate up.
	relaxed := append([]sample.Row{}, restricted...)
	relaxed = addRows(relaxed, "dormant", wave.Wave2, midWave2, 100, 40, 35)

	res, err := testRunner(30).SampleSensitivity(restricted, relaxed)
	require.NoError(t, err)

	assert.InDelta(t, 0.10, res.Restricted.Coefficient, 1e-9)
	relaxedRate := (40.0 + 40.0) / 300.0
	assert.InDelta(t, relaxedRate-0.10, res.Relaxed.Coefficient, 1e-9)
	assert.InDelta(t,
		(res.Relaxed.Coefficient-res.Restricted.Coefficient)/res.Restricted.Coefficient,
		res.RelativeDiff, 1e-9)
}

func TestPlaceboFlatTrendIsNull(t *testing.T) {
	var rows []sample.Row
	rows = addRows(rows, "early", wave.Wave1, earlyWave1, 300, 30, 35)
	rows = addRows(rows, "late", wave.Wave1, lateWave1, 300, 30, 35)
	// Wave 2 rows must be ignored by the placebo entirely.
	rows = addRows(rows, "w2", wave.Wave2, midWave2, 100, 90, 35)

	res, err := testRunner(30).Placebo(rows)
	require.NoError(t, err)

	assert.Equal(t, 600, res.Fit.N, "placebo fits only wave 1 events")
	assert.InDelta(t, 0.0, res.Fit.Coefficient, 1e-9,
		"identical early/late rates leave no fake effect")
	assert.False(t, res.Significant)
	assert.Equal(t, cutoff, res.Cutoff)
}

func TestPlaceboPlantedTrendIsDetected(t *testing.T) {
	var rows []sample.Row
	rows = addRows(rows, "early", wave.Wave1, earlyWave1, 300, 15, 35)
	rows = addRows(rows, "late", wave.Wave1, lateWave1, 300, 90, 35)

	res, err := testRunner(30).Placebo(rows)
	require.NoError(t, err)

	assert.InDelta(t, 0.25, res.Fit.Coefficient, 1e-9)
	assert.True(t, res.Significant, "a planted within-wave trend must surface")
	assert.Less(t, res.Fit.PValue, DefaultAlpha)
}

func TestPlaceboInsufficientSample(t *testing.T) {
	var rows []sample.Row
	rows = addRows(rows, "early", wave.Wave1, earlyWave1, 10, 1, 35)

	_, err := testRunner(30).Placebo(rows)
	require.Error(t, err)

	var ierr *InsufficientSampleError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, 10, ierr.N)
	assert.Equal(t, 30, ierr.Min)
}

func TestHeterogeneityStrata(t *testing.T) {
	var rows []sample.Row
	// Young bucket: large, with a planted 20pp effect.
	rows = addRows(rows, "young_w1", wave.Wave1, earlyWave1, 100, 10, 25)
	rows = addRows(rows, "young_w2", wave.Wave2, midWave2, 100, 30, 25)
	// Middle bucket: flat effect.
	rows = addRows(rows, "mid_w1", wave.Wave1, earlyWave1, 80, 8, 40)
	rows = addRows(rows, "mid_w2", wave.Wave2, midWave2, 80, 8, 40)
	// Senior bucket: too small to fit.
	rows = addRows(rows, "old_w1", wave.Wave1, earlyWave1, 5, 1, 70)
	rows = addRows(rows, "old_w2", wave.Wave2, midWave2, 5, 1, 70)

	results, err := testRunner(30).Heterogeneity(rows, AgeBuckets)
	require.NoError(t, err)
	require.Len(t, results, 3)

	labels := make([]string, len(results))
	for i, r := range results {
		labels[i] = r.Stratum
	}
	assert.True(t, sort.StringsAreSorted(labels), "results come back in stable stratum order")

	byLabel := make(map[string]StratumResult)
	for _, r := range results {
		byLabel[r.Stratum] = r
	}

	young := byLabel["age<30"]
	require.NotNil(t, young.Fit)
	assert.Equal(t, 200, young.N)
	assert.InDelta(t, 0.20, young.Fit.Coefficient, 1e-9)

	mid := byLabel["age 30-44"]
	require.NotNil(t, mid.Fit)
	assert.InDelta(t, 0.0, mid.Fit.Coefficient, 1e-9)

	old := byLabel["age 60+"]
	assert.True(t, old.Skipped, "undersized strata are skipped, never silently fit")
	assert.Nil(t, old.Fit)
	assert.Contains(t, old.Reason, "below the minimum")
	assert.Equal(t, 10, old.N)
}

func TestHeterogeneityIsDeterministic(t *testing.T) {
	var rows []sample.Row
	rows = addRows(rows, "a_w1", wave.Wave1, earlyWave1, 60, 6, 25)
	rows = addRows(rows, "a_w2", wave.Wave2, midWave2, 60, 12, 25)
	rows = addRows(rows, "b_w1", wave.Wave1, earlyWave1, 60, 6, 50)
	rows = addRows(rows, "b_w2", wave.Wave2, midWave2, 60, 18, 50)

	runner := testRunner(30)
	first, err := runner.Heterogeneity(rows, AgeBuckets)
	require.NoError(t, err)
	second, err := runner.Heterogeneity(rows, AgeBuckets)
	require.NoError(t, err)
	assert.Equal(t, first, second, "parallel execution must not change results or order")
}

func TestAgeBuckets(t *testing.T) {
	tests := []struct {
		age  int
		want string
	}{
		{18, "age<30"},
		{29, "age<30"},
		{30, "age 30-44"},
		{44, "age 30-44"},
		{45, "age 45-59"},
		{59, "age 45-59"},
		{60, "age 60+"},
		{95, "age 60+"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("age %d", tt.age), func(t *testing.T) {
			got := AgeBuckets(sample.Row{Event: contact.Event{Age: tt.age}})
			assert.Equal(t, tt.want, got)
		})
	}
}
