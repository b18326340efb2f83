// Package identity reconstructs pseudo customer identities from demographic
// fields. The dataset carries no customer id, so events are grouped on a
// composite key of stable attributes. The key is a heuristic: distinct
// customers with identical demographics and contact method collapse into one
// pseudo customer (over-merge), and one customer whose attributes changed
// between contacts splits into several (under-merge). This is a documented
// limitation of the source data, not something the resolver tries to repair.
package identity

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"campaigndid/internal/contact"
)

// DefaultColumns are the demographic fields used to build the pseudo id.
var DefaultColumns = []string{"age", "job", "marital", "education", "housing", "loan", "contact"}

// Customer is a pseudo customer: a composite identity key and its contact
// events ordered chronologically by reconstructed date.
type Customer struct {
	ID     string
	Events []contact.Event
}

// Resolver groups contact events by pseudo identity.
type Resolver struct {
	columns []string
	logger  *slog.Logger
}

// NewResolver creates a resolver keyed on the given columns. A nil or empty
// column list falls back to DefaultColumns.
func NewResolver(columns []string, logger *slog.Logger) (*Resolver, error) {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	if logger == nil {
		logger = slog.Default()
	}
	probe := contact.Event{}
	for _, col := range columns {
		if _, ok := probe.Field(col); !ok {
			return nil, fmt.Errorf("identity column %q is not a known event field", col)
		}
	}
	return &Resolver{columns: columns, logger: logger}, nil
}

// Key derives the pseudo id for one event: the underscore-join of the
// normalized identity fields. Identical field tuples always produce the same
// key; "unknown" is an ordinary category value and matches itself.
func (r *Resolver) Key(ev contact.Event) string {
	parts := make([]string, len(r.columns))
	for i, col := range r.columns {
		v, _ := ev.Field(col)
		parts[i] = v
	}
	return strings.Join(parts, "_")
}

// Resolve groups events into pseudo customers. The result is deterministic:
// customers are sorted by id and each customer's events are sorted by date,
// input order preserved within equal dates.
func (r *Resolver) Resolve(events []contact.Event) []Customer {
	groups := make(map[string][]contact.Event)
	for _, ev := range events {
		key := r.Key(ev)
		groups[key] = append(groups[key], ev)
	}

	customers := make([]Customer, 0, len(groups))
	for id, evs := range groups {
		sort.SliceStable(evs, func(i, j int) bool {
			return evs[i].Date.Before(evs[j].Date)
		})
		customers = append(customers, Customer{ID: id, Events: evs})
	}
	sort.Slice(customers, func(i, j int) bool {
		return customers[i].ID < customers[j].ID
	})

	r.logger.Info("resolved pseudo customers",
		slog.Int("events", len(events)),
		slog.Int("customers", len(customers)),
	)
	return customers
}

// AmbiguityNote is the standing caveat attached to every analysis run: the
// pseudo id is heuristic and can both over-merge and under-merge true
// customers. Non-fatal, reported but never blocking.
func (r *Resolver) AmbiguityNote() string {
	return fmt.Sprintf(
		"pseudo identity is heuristic: events sharing {%s} are treated as one customer; true identity may over- or under-merge",
		strings.Join(r.columns, ", "),
	)
}
