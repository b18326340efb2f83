package contact

import (
	"strings"
	"time"
)

// monthIndex maps the dataset's three-letter month abbreviations to month
// numbers.
var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// dateReconstructor infers full contact dates from the month column.
//
// The dataset carries no year. Rows are ordered chronologically, so the year
// is recovered by watching for month wrap-around: when the month number
// decreases from one row to the next (nov -> mar), a year boundary was
// crossed and the running year increments. The day of month is not recorded;
// all reconstructed dates use the first of the month.
type dateReconstructor struct {
	year      int
	prevMonth time.Month
	started   bool
}

func newDateReconstructor(startYear int) *dateReconstructor {
	return &dateReconstructor{year: startYear}
}

// next consumes one month token and returns the reconstructed date.
// The second return is false for an unrecognized month token.
func (d *dateReconstructor) next(monthToken string) (time.Time, bool) {
	m, ok := monthIndex[strings.ToLower(strings.TrimSpace(monthToken))]
	if !ok {
		return time.Time{}, false
	}
	if d.started && m < d.prevMonth {
		d.year++
	}
	d.started = true
	d.prevMonth = m
	return time.Date(d.year, m, 1, 0, 0, 0, 0, time.UTC), true
}
