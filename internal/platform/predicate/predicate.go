// Package predicate builds parameterized SQL WHERE clauses from typed clause
// values. Column names come from package-level constants of the calling
// repository; request input only ever reaches the bound arguments.
package predicate

import (
	"fmt"
	"strings"
)

// Column is a trusted SQL column expression.
type Column string

// Clause renders itself starting at placeholder index idx and returns the SQL
// fragment, its arguments and the next free placeholder index.
type Clause interface {
	Render(idx int) (string, []interface{}, int)
}

// Eq matches Column = Value.
type Eq struct {
	Column Column
	Value  interface{}
}

func (c Eq) Render(idx int) (string, []interface{}, int) {
	return fmt.Sprintf("%s = $%d", c.Column, idx), []interface{}{c.Value}, idx + 1
}

// Gte matches Column >= Value.
type Gte struct {
	Column Column
	Value  interface{}
}

func (c Gte) Render(idx int) (string, []interface{}, int) {
	return fmt.Sprintf("%s >= $%d", c.Column, idx), []interface{}{c.Value}, idx + 1
}

// Lte matches Column <= Value.
type Lte struct {
	Column Column
	Value  interface{}
}

func (c Lte) Render(idx int) (string, []interface{}, int) {
	return fmt.Sprintf("%s <= $%d", c.Column, idx), []interface{}{c.Value}, idx + 1
}

// Between matches Min <= Column <= Max.
type Between struct {
	Column   Column
	Min, Max interface{}
}

func (c Between) Render(idx int) (string, []interface{}, int) {
	return fmt.Sprintf("%s BETWEEN $%d AND $%d", c.Column, idx, idx+1),
		[]interface{}{c.Min, c.Max}, idx + 2
}

// MonthOf matches the calendar month (1-12) of a date column.
type MonthOf struct {
	Column Column
	Month  int
}

func (c MonthOf) Render(idx int) (string, []interface{}, int) {
	return fmt.Sprintf("EXTRACT(MONTH FROM %s) = $%d", c.Column, idx), []interface{}{c.Month}, idx + 1
}

// DayOf matches the day of month (1-31) of a date column.
type DayOf struct {
	Column Column
	Day    int
}

func (c DayOf) Render(idx int) (string, []interface{}, int) {
	return fmt.Sprintf("EXTRACT(DAY FROM %s) = $%d", c.Column, idx), []interface{}{c.Day}, idx + 1
}

// In matches Column against any of Values. An empty list matches nothing.
type In struct {
	Column Column
	Values []interface{}
}

func (c In) Render(idx int) (string, []interface{}, int) {
	if len(c.Values) == 0 {
		return "FALSE", nil, idx
	}
	ph := make([]string, len(c.Values))
	for i := range c.Values {
		ph[i] = fmt.Sprintf("$%d", idx+i)
	}
	return fmt.Sprintf("%s IN (%s)", c.Column, strings.Join(ph, ", ")), c.Values, idx + len(c.Values)
}

// Raw is a constant SQL fragment without arguments.
type Raw string

func (c Raw) Render(idx int) (string, []interface{}, int) {
	return string(c), nil, idx
}

// Set is an ordered conjunction of clauses.
type Set struct {
	clauses []Clause
}

// New returns a Set holding the given clauses.
func New(clauses ...Clause) Set {
	return Set{clauses: append([]Clause(nil), clauses...)}
}

// Add appends a clause.
func (s *Set) Add(c Clause) {
	s.clauses = append(s.clauses, c)
}

// With returns a copy of the set extended with extra clauses. The receiver is
// left untouched.
func (s Set) With(extra ...Clause) Set {
	out := make([]Clause, 0, len(s.clauses)+len(extra))
	out = append(out, s.clauses...)
	out = append(out, extra...)
	return Set{clauses: out}
}

// Len returns the number of clauses.
func (s Set) Len() int { return len(s.clauses) }

// Clauses returns a copy of the clause list.
func (s Set) Clauses() []Clause {
	return append([]Clause(nil), s.clauses...)
}

// Build renders the conjunction starting at placeholder $1. It returns an
// empty string when the set has no clauses.
func (s Set) Build() (string, []interface{}) {
	return s.BuildFrom(1)
}

// BuildFrom renders the conjunction starting at placeholder idx.
func (s Set) BuildFrom(idx int) (string, []interface{}) {
	if len(s.clauses) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(s.clauses))
	var args []interface{}
	for _, c := range s.clauses {
		sql, a, next := c.Render(idx)
		parts = append(parts, sql)
		args = append(args, a...)
		idx = next
	}
	return strings.Join(parts, " AND "), args
}

// Where returns "WHERE <conjunction>" or an empty string, plus the args.
func (s Set) Where() (string, []interface{}) {
	sql, args := s.Build()
	if sql == "" {
		return "", nil
	}
	return "WHERE " + sql, args
}

// And returns " AND <conjunction>" for appending to an existing WHERE, or an
// empty string.
func (s Set) And() (string, []interface{}) {
	sql, args := s.Build()
	if sql == "" {
		return "", nil
	}
	return " AND " + sql, args
}
