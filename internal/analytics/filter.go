// Package analytics computes per-slug click reports from the click store.
package analytics

import (
	"fmt"
	"strings"

	"github.com/linkping/linkping/internal/model"
)

// Filter is the WHERE clause shared by every query of one report. Values
// are always bound as positional parameters, never spliced into the SQL.
type Filter struct {
	clauses []string
	args    []any
}

// NewFilter builds the filter for slug and the optional date bounds in req.
// Dates compare against the UTC calendar date of each click.
func NewFilter(slug string, req model.AnalyticsRequest) *Filter {
	f := &Filter{}
	f.add("slug = %s", slug)
	if req.StartDate != nil {
		f.add(`("timestamp" AT TIME ZONE 'UTC')::date >= %s::date`, *req.StartDate)
	}
	if req.EndDate != nil {
		f.add(`("timestamp" AT TIME ZONE 'UTC')::date <= %s::date`, *req.EndDate)
	}
	return f
}

func (f *Filter) add(clause string, arg any) {
	f.args = append(f.args, arg)
	f.clauses = append(f.clauses, fmt.Sprintf(clause, placeholder(len(f.args))))
}

// Where returns the clause without the WHERE keyword.
func (f *Filter) Where() string {
	return strings.Join(f.clauses, " AND ")
}

// Args returns a copy of the bound values in placeholder order.
func (f *Filter) Args() []any {
	return append([]any(nil), f.args...)
}

// WithTrailing returns the placeholder for one extra value bound after the
// filter arguments, and the full argument list including it.
func (f *Filter) WithTrailing(v any) (string, []any) {
	args := append(f.Args(), v)
	return placeholder(len(args)), args
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
