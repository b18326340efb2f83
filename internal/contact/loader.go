package contact

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// SchemaError reports a malformed input row or header. Loading fails fast on
// the first schema violation; values are never coerced to defaults.
type SchemaError struct {
	Row    int // 1-based data row number, 0 for header problems
	Column string
	Value  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("schema error: column %q: %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("schema error: row %d, column %q, value %q: %s", e.Row, e.Column, e.Value, e.Reason)
}

// requiredColumns lists the dataset columns the loader refuses to run
// without.
var requiredColumns = []string{
	"age", "job", "marital", "education", "housing", "loan", "contact",
	"month", "day_of_week", "campaign", "pdays", "previous",
	"emp.var.rate", "cons.price.idx", "cons.conf.idx", "euribor3m",
	"nr.employed", "y",
}

// Loader reads the semicolon-delimited campaign CSV into typed events and
// reconstructs contact dates while streaming rows in file order.
type Loader struct {
	startYear int
	logger    *slog.Logger
}

// NewLoader creates a loader. startYear anchors date reconstruction; the
// published dataset begins in May 2008.
func NewLoader(startYear int, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{startYear: startYear, logger: logger}
}

// LoadFile opens and parses a campaign CSV file.
func (l *Loader) LoadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()
	events, err := l.Load(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return events, nil
}

// Load parses campaign rows from r. The first record must be the header.
func (l *Loader) Load(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.Trim(strings.TrimSpace(strings.ToLower(name)), `"`)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, &SchemaError{Column: name, Reason: "required column missing from header"}
		}
	}

	dates := newDateReconstructor(l.startYear)
	var events []Event
	row := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+1, err)
		}
		row++
		ev, err := l.parseRow(record, cols, row, dates)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	l.logger.Info("loaded contact events",
		slog.Int("rows", len(events)),
		slog.Int("start_year", l.startYear),
	)
	return events, nil
}

func (l *Loader) parseRow(record []string, cols map[string]int, row int, dates *dateReconstructor) (Event, error) {
	get := func(name string) string {
		i := cols[name]
		if i >= len(record) {
			return ""
		}
		return strings.Trim(strings.TrimSpace(record[i]), `"`)
	}

	parseInt := func(name string) (int, *SchemaError) {
		raw := get(name)
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, &SchemaError{Row: row, Column: name, Value: raw, Reason: "not an integer"}
		}
		return v, nil
	}
	parseFloat := func(name string) (float64, *SchemaError) {
		raw := get(name)
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, &SchemaError{Row: row, Column: name, Value: raw, Reason: "not a number"}
		}
		return v, nil
	}

	var ev Event
	var serr *SchemaError

	if ev.Age, serr = parseInt("age"); serr != nil {
		return Event{}, serr
	}
	if ev.Campaign, serr = parseInt("campaign"); serr != nil {
		return Event{}, serr
	}
	if ev.PDays, serr = parseInt("pdays"); serr != nil {
		return Event{}, serr
	}
	if ev.Previous, serr = parseInt("previous"); serr != nil {
		return Event{}, serr
	}
	if ev.EmpVarRate, serr = parseFloat("emp.var.rate"); serr != nil {
		return Event{}, serr
	}
	if ev.ConsPriceIdx, serr = parseFloat("cons.price.idx"); serr != nil {
		return Event{}, serr
	}
	if ev.ConsConfIdx, serr = parseFloat("cons.conf.idx"); serr != nil {
		return Event{}, serr
	}
	if ev.Euribor3M, serr = parseFloat("euribor3m"); serr != nil {
		return Event{}, serr
	}
	if ev.NrEmployed, serr = parseFloat("nr.employed"); serr != nil {
		return Event{}, serr
	}

	ev.Job = get("job")
	ev.Marital = get("marital")
	ev.Education = get("education")
	ev.Housing = get("housing")
	ev.Loan = get("loan")
	ev.Contact = get("contact")
	ev.Month = get("month")
	ev.DayOfWeek = get("day_of_week")

	switch outcome := strings.ToLower(get("y")); outcome {
	case "yes":
		ev.Subscribed = true
	case "no":
		ev.Subscribed = false
	default:
		return Event{}, &SchemaError{Row: row, Column: "y", Value: outcome, Reason: "outcome must be yes or no"}
	}

	date, ok := dates.next(ev.Month)
	if !ok {
		return Event{}, &SchemaError{Row: row, Column: "month", Value: ev.Month, Reason: "unrecognized month abbreviation"}
	}
	ev.Date = date

	return ev, nil
}
