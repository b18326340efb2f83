package contact

import (
	"strconv"
	"strings"
	"time"
)

// Event represents a single contact-event row from the campaign dataset.
// Immutable once loaded; downstream stages never modify events in place.
type Event struct {
	Date time.Time `json:"date"` // reconstructed, first of month

	// Demographic fields
	Age       int    `json:"age"`
	Job       string `json:"job"`
	Marital   string `json:"marital"`
	Education string `json:"education"`
	Housing   string `json:"housing"`
	Loan      string `json:"loan"`
	Contact   string `json:"contact"` // contact method: cellular, telephone

	// Raw calendar fields
	Month     string `json:"month"`
	DayOfWeek string `json:"day_of_week"`

	// Campaign fields
	Campaign int `json:"campaign"` // contacts during this campaign
	PDays    int `json:"pdays"`    // days since previous contact, 999 = never
	Previous int `json:"previous"` // contacts before this campaign

	// Economic indicators at contact time
	EmpVarRate   float64 `json:"emp_var_rate"`
	ConsPriceIdx float64 `json:"cons_price_idx"`
	ConsConfIdx  float64 `json:"cons_conf_idx"`
	Euribor3M    float64 `json:"euribor3m"`
	NrEmployed   float64 `json:"nr_employed"`

	// Outcome
	Subscribed bool `json:"subscribed"`
}

// HasPriorContact reports whether the customer was contacted in a previous
// campaign. pdays is coded 999 when the customer was never contacted before.
func (e Event) HasPriorContact() bool {
	return e.Previous != 0 || e.PDays != 999
}

// Outcome returns the subscription outcome as 0/1 for regression use.
func (e Event) Outcome() float64 {
	if e.Subscribed {
		return 1
	}
	return 0
}

// Numeric returns the value of a numeric field by its dataset column name.
// The second return is false when the name is not a numeric field.
func (e Event) Numeric(name string) (float64, bool) {
	switch name {
	case "age":
		return float64(e.Age), true
	case "campaign":
		return float64(e.Campaign), true
	case "pdays":
		return float64(e.PDays), true
	case "previous":
		return float64(e.Previous), true
	case "emp.var.rate":
		return e.EmpVarRate, true
	case "cons.price.idx":
		return e.ConsPriceIdx, true
	case "cons.conf.idx":
		return e.ConsConfIdx, true
	case "euribor3m":
		return e.Euribor3M, true
	case "nr.employed":
		return e.NrEmployed, true
	}
	return 0, false
}

// Categorical returns the value of a categorical field by its dataset column
// name, normalized to lower case. The second return is false when the name is
// not a categorical field.
func (e Event) Categorical(name string) (string, bool) {
	switch name {
	case "job":
		return normalize(e.Job), true
	case "marital":
		return normalize(e.Marital), true
	case "education":
		return normalize(e.Education), true
	case "housing":
		return normalize(e.Housing), true
	case "loan":
		return normalize(e.Loan), true
	case "contact":
		return normalize(e.Contact), true
	case "month":
		return normalize(e.Month), true
	case "day_of_week":
		return normalize(e.DayOfWeek), true
	}
	return "", false
}

// Field returns the string form of any field usable for identity keys.
// Numeric fields are formatted without a fractional part where possible.
func (e Event) Field(name string) (string, bool) {
	if v, ok := e.Numeric(name); ok {
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	if v, ok := e.Categorical(name); ok {
		return v, true
	}
	return "", false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
