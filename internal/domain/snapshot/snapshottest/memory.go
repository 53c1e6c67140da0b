// Package snapshottest provides an in-memory snapshot repository for tests
// of the packages that read bed_snapshot.
package snapshottest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/platform/predicate"
)

// Repo implements snapshot.Repository over slices. Err, when set, is
// returned by every method.
type Repo struct {
	mu      sync.Mutex
	Rows    []snapshot.Row
	Imps    []snapshot.Import
	Err     error
	Queries []predicate.Set
}

var _ snapshot.Repository = (*Repo)(nil)

func New(rows ...snapshot.Row) *Repo {
	return &Repo{Rows: rows}
}

func value(col predicate.Column, r snapshot.Row) interface{} {
	switch col {
	case snapshot.ColReferenceDate:
		return r.ReferenceDate
	case snapshot.ColWardCode:
		return r.WardCode
	case snapshot.ColWardName:
		return r.WardName
	case snapshot.ColStatus:
		return string(r.Status)
	}
	panic(fmt.Sprintf("snapshottest: unsupported column %q", col))
}

func compare(a, b interface{}) int {
	switch av := a.(type) {
	case time.Time:
		bv := b.(time.Time)
		return av.Compare(bv)
	case int:
		bv := b.(int)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		var bv string
		switch x := b.(type) {
		case string:
			bv = x
		case snapshot.Status:
			bv = string(x)
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	}
	panic(fmt.Sprintf("snapshottest: unsupported value %T", a))
}

// Match evaluates preds against a row the way Postgres would.
func Match(preds predicate.Set, r snapshot.Row) bool {
	for _, c := range preds.Clauses() {
		switch cl := c.(type) {
		case predicate.Eq:
			if compare(value(cl.Column, r), cl.Value) != 0 {
				return false
			}
		case predicate.Gte:
			if compare(value(cl.Column, r), cl.Value) < 0 {
				return false
			}
		case predicate.Lte:
			if compare(value(cl.Column, r), cl.Value) > 0 {
				return false
			}
		case predicate.Between:
			v := value(cl.Column, r)
			if compare(v, cl.Min) < 0 || compare(v, cl.Max) > 0 {
				return false
			}
		case predicate.MonthOf:
			if int(value(cl.Column, r).(time.Time).Month()) != cl.Month {
				return false
			}
		case predicate.DayOf:
			if value(cl.Column, r).(time.Time).Day() != cl.Day {
				return false
			}
		case predicate.In:
			found := false
			for _, want := range cl.Values {
				if compare(value(cl.Column, r), want) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			panic(fmt.Sprintf("snapshottest: unsupported clause %T", c))
		}
	}
	return true
}

// Select returns the rows matching preds, ordered by reference date, ward
// code and bed.
func Select(rows []snapshot.Row, preds predicate.Set) []snapshot.Row {
	var out []snapshot.Row
	for _, r := range rows {
		if Match(preds, r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.ReferenceDate.Equal(b.ReferenceDate) {
			return a.ReferenceDate.Before(b.ReferenceDate)
		}
		if a.WardCode != b.WardCode {
			return a.WardCode < b.WardCode
		}
		return a.Bed < b.Bed
	})
	return out
}

// Tally counts rows per canonical status.
func Tally(rows []snapshot.Row) snapshot.Counts {
	var c snapshot.Counts
	for _, r := range rows {
		c.Total++
		switch r.Status {
		case snapshot.StatusOccupied:
			c.Occupied++
		case snapshot.StatusFree:
			c.Free++
		case snapshot.StatusCeded:
			c.Ceded++
		case snapshot.StatusBlocked:
			c.Blocked++
		case snapshot.StatusReserved:
			c.Reserved++
		}
	}
	return c
}

// Dates returns the distinct reference dates of rows, newest first.
func Dates(rows []snapshot.Row) []time.Time {
	seen := map[time.Time]bool{}
	var out []time.Time
	for _, r := range rows {
		if !seen[r.ReferenceDate] {
			seen[r.ReferenceDate] = true
			out = append(out, r.ReferenceDate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out
}

func (m *Repo) byDate(upTo *time.Time, limit int) []snapshot.DateCounts {
	var out []snapshot.DateCounts
	for _, d := range Dates(m.Rows) {
		if upTo != nil && d.After(*upTo) {
			continue
		}
		rows := Select(m.Rows, predicate.New(predicate.Eq{Column: snapshot.ColReferenceDate, Value: d}))
		out = append(out, snapshot.DateCounts{ReferenceDate: d, Counts: Tally(rows)})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (m *Repo) History(context.Context) ([]snapshot.DateCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.byDate(nil, 0), nil
}

func (m *Repo) Chart(_ context.Context, upTo time.Time, limit int) ([]snapshot.DateCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.byDate(&upTo, limit), nil
}

func (m *Repo) LatestDate(_ context.Context, preds predicate.Set) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, preds)
	if m.Err != nil {
		return nil, m.Err
	}
	dates := Dates(Select(m.Rows, preds))
	if len(dates) == 0 {
		return nil, nil
	}
	return &dates[0], nil
}

func (m *Repo) DateExists(_ context.Context, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	for _, r := range m.Rows {
		if r.ReferenceDate.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Repo) Counts(_ context.Context, preds predicate.Set) (snapshot.Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, preds)
	if m.Err != nil {
		return snapshot.Counts{}, m.Err
	}
	return Tally(Select(m.Rows, preds)), nil
}

func (m *Repo) Clinics(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	seen := map[string]bool{}
	var out []string
	for _, r := range m.Rows {
		if r.WardName != "" && !seen[r.WardName] {
			seen[r.WardName] = true
			out = append(out, r.WardName)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Repo) Imports(_ context.Context, date time.Time) ([]snapshot.Import, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []snapshot.Import
	for _, imp := range m.Imps {
		if imp.ReferenceDate.Equal(date) {
			out = append(out, imp)
		}
	}
	return out, nil
}

func (m *Repo) GetImport(_ context.Context, id uuid.UUID) (*snapshot.Import, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, imp := range m.Imps {
		if imp.ID == id {
			cp := imp
			return &cp, nil
		}
	}
	return nil, snapshot.ErrImportNotFound
}

func (m *Repo) removeDate(date time.Time) (int64, []snapshot.Import) {
	var n int64
	kept := m.Rows[:0:0]
	for _, r := range m.Rows {
		if r.ReferenceDate.Equal(date) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.Rows = kept

	var removed []snapshot.Import
	keptImps := m.Imps[:0:0]
	for _, imp := range m.Imps {
		if imp.ReferenceDate.Equal(date) {
			removed = append(removed, imp)
			continue
		}
		keptImps = append(keptImps, imp)
	}
	m.Imps = keptImps
	return n, removed
}

func (m *Repo) ReplaceDate(_ context.Context, date time.Time, rows []snapshot.Row, imp *snapshot.Import) ([]snapshot.Import, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	_, replaced := m.removeDate(date)
	for _, r := range rows {
		r.ReferenceDate = date
		r.ImportID = imp.ID
		m.Rows = append(m.Rows, r)
	}
	stored := *imp
	stored.ReferenceDate = date
	m.Imps = append(m.Imps, stored)
	return replaced, nil
}

func (m *Repo) DeleteDate(_ context.Context, date time.Time) (int64, []snapshot.Import, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, nil, m.Err
	}
	n, removed := m.removeDate(date)
	return n, removed, nil
}

func (m *Repo) MoveDate(_ context.Context, from, to time.Time) (int64, []snapshot.Import, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, nil, m.Err
	}
	var n int64
	for _, r := range m.Rows {
		if r.ReferenceDate.Equal(from) {
			n++
		}
	}
	if n == 0 {
		return 0, nil, snapshot.ErrNoData
	}
	_, replaced := m.removeDate(to)
	for i := range m.Rows {
		if m.Rows[i].ReferenceDate.Equal(from) {
			m.Rows[i].ReferenceDate = to
		}
	}
	for i := range m.Imps {
		if m.Imps[i].ReferenceDate.Equal(from) {
			m.Imps[i].ReferenceDate = to
		}
	}
	return n, replaced, nil
}
