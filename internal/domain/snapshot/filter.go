package snapshot

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joabeoliveira/ocupacao/internal/httperr"
	"github.com/joabeoliveira/ocupacao/internal/platform/predicate"
)

// Columns of bed_snapshot shared by every repository that filters snapshots.
const (
	ColReferenceDate predicate.Column = "reference_date"
	ColWardCode      predicate.Column = "ward_code"
	ColWardName      predicate.Column = "ward_name"
	ColStatus        predicate.Column = "status"
)

var ErrInvalidFilter = httperr.New(http.StatusBadRequest, "invalid filter")

// FilterError describes one rejected query parameter.
type FilterError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *FilterError) Unwrap() error { return ErrInvalidFilter }

// Presence modes for HasFilters.
const (
	PresenceKey   = "key"
	PresenceValue = "value"
)

// View selects which stays the length-of-stay listing returns.
type View string

const (
	ViewAuto     View = ""
	ViewAll      View = "all"
	ViewLongStay View = "long_stay"
)

// filterKeys are the parameters that narrow the scope. data, view and the
// pagination parameters are deliberately not among them.
var filterKeys = []string{"periodo_inicio", "periodo_fim", "mes", "dia", "clinica", "predio"}

// Filter is the common scope of dashboard queries.
type Filter struct {
	Date     *time.Time
	Start    *time.Time
	End      *time.Time
	Month    int
	Day      int
	Clinic   string
	Building *BuildingRange
	View     View

	present map[string]string
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006", "2/1/2006"}

// ParseDate parses ISO dates and day-first Brazilian dates. 05/01/2025 is
// 5 January.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func parseDateField(q url.Values, field string) (*time.Time, error) {
	v := strings.TrimSpace(q.Get(field))
	if v == "" {
		return nil, nil
	}
	t, err := ParseDate(v)
	if err != nil {
		return nil, &FilterError{Field: field, Value: v, Reason: "expected YYYY-MM-DD or DD/MM/YYYY"}
	}
	return &t, nil
}

func parseIntField(q url.Values, field string, min, max int) (int, error) {
	v := strings.TrimSpace(q.Get(field))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, &FilterError{Field: field, Value: v, Reason: fmt.Sprintf("expected an integer between %d and %d", min, max)}
	}
	return n, nil
}

// ParseFilter reads the dashboard query parameters. Empty values are
// ignored as constraints but still recorded for HasFilters.
func ParseFilter(q url.Values, buildings Buildings) (Filter, error) {
	f := Filter{present: map[string]string{}}
	for _, k := range filterKeys {
		if vs, ok := q[k]; ok {
			v := ""
			if len(vs) > 0 {
				v = strings.TrimSpace(vs[0])
			}
			f.present[k] = v
		}
	}

	var err error
	if f.Date, err = parseDateField(q, "data"); err != nil {
		return Filter{}, err
	}
	if f.Start, err = parseDateField(q, "periodo_inicio"); err != nil {
		return Filter{}, err
	}
	if f.End, err = parseDateField(q, "periodo_fim"); err != nil {
		return Filter{}, err
	}
	if f.Start != nil && f.End != nil && f.Start.After(*f.End) {
		return Filter{}, &FilterError{Field: "periodo_inicio", Value: q.Get("periodo_inicio"), Reason: "period start is after period end"}
	}
	if f.Month, err = parseIntField(q, "mes", 1, 12); err != nil {
		return Filter{}, err
	}
	if f.Day, err = parseIntField(q, "dia", 1, 31); err != nil {
		return Filter{}, err
	}
	f.Clinic = strings.TrimSpace(q.Get("clinica"))

	if v := strings.TrimSpace(q.Get("predio")); v != "" {
		code, convErr := strconv.Atoi(v)
		br, ok := buildings.Lookup(code)
		if convErr != nil || !ok {
			return Filter{}, &FilterError{Field: "predio", Value: v, Reason: "unknown building; configured: " + buildings.String()}
		}
		f.Building = &br
	}

	switch v := View(strings.TrimSpace(q.Get("view"))); v {
	case ViewAuto, ViewAll, ViewLongStay:
		f.View = v
	default:
		return Filter{}, &FilterError{Field: "view", Value: string(v), Reason: "expected all or long_stay"}
	}
	return f, nil
}

// HasFilters reports whether any scope-narrowing parameter was supplied.
// In PresenceKey mode a parameter counts even with an empty value; in
// PresenceValue mode it must be non-empty.
func (f Filter) HasFilters(mode string) bool {
	for _, k := range filterKeys {
		v, ok := f.present[k]
		if !ok {
			continue
		}
		if mode == PresenceValue && v == "" {
			continue
		}
		return true
	}
	return false
}

// HasDateInput reports whether the filter names a date or a period bound.
func (f Filter) HasDateInput() bool {
	return f.Date != nil || f.Start != nil || f.End != nil
}

// Unscoped reports whether the filter constrains nothing at all.
func (f Filter) Unscoped() bool {
	return f.Predicates().Len() == 0
}

// Predicates renders the filter as a predicate set over bed_snapshot.
func (f Filter) Predicates() predicate.Set {
	var s predicate.Set
	if f.Date != nil {
		s.Add(predicate.Eq{Column: ColReferenceDate, Value: *f.Date})
	}
	if f.Start != nil {
		s.Add(predicate.Gte{Column: ColReferenceDate, Value: *f.Start})
	}
	if f.End != nil {
		s.Add(predicate.Lte{Column: ColReferenceDate, Value: *f.End})
	}
	if f.Month > 0 {
		s.Add(predicate.MonthOf{Column: ColReferenceDate, Month: f.Month})
	}
	if f.Day > 0 {
		s.Add(predicate.DayOf{Column: ColReferenceDate, Day: f.Day})
	}
	if f.Clinic != "" {
		s.Add(predicate.Eq{Column: ColWardName, Value: f.Clinic})
	}
	if f.Building != nil {
		s.Add(predicate.Between{Column: ColWardCode, Min: f.Building.Min, Max: f.Building.Max})
	}
	return s
}

// WithDate returns a copy of f pinned to a single reference date, keeping
// the clinic and building constraints.
func (f Filter) WithDate(d time.Time) Filter {
	out := f
	out.Date = &d
	out.Start, out.End = nil, nil
	out.Month, out.Day = 0, 0
	return out
}

// Echo returns the effective constraints for response bodies.
func (f Filter) Echo() map[string]string {
	out := map[string]string{}
	if f.Date != nil {
		out["data"] = f.Date.Format(DateLayout)
	}
	if f.Start != nil {
		out["periodo_inicio"] = f.Start.Format(DateLayout)
	}
	if f.End != nil {
		out["periodo_fim"] = f.End.Format(DateLayout)
	}
	if f.Month > 0 {
		out["mes"] = strconv.Itoa(f.Month)
	}
	if f.Day > 0 {
		out["dia"] = strconv.Itoa(f.Day)
	}
	if f.Clinic != "" {
		out["clinica"] = f.Clinic
	}
	if f.Building != nil {
		out["predio"] = strconv.Itoa(f.Building.Code)
	}
	return out
}

// BuildingRange maps a building code to an inclusive ward-code range.
type BuildingRange struct {
	Code int `json:"code"`
	Min  int `json:"min"`
	Max  int `json:"max"`
}

// Buildings is the configured building table, ordered by code.
type Buildings []BuildingRange

// ParseBuildings parses "code:min-max,code:min-max". Ranges must not overlap.
func ParseBuildings(raw string) (Buildings, error) {
	var out Buildings
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		codeStr, rng, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("building %q: expected code:min-max", part)
		}
		minStr, maxStr, ok := strings.Cut(rng, "-")
		if !ok {
			return nil, fmt.Errorf("building %q: expected code:min-max", part)
		}
		code, err1 := strconv.Atoi(strings.TrimSpace(codeStr))
		lo, err2 := strconv.Atoi(strings.TrimSpace(minStr))
		hi, err3 := strconv.Atoi(strings.TrimSpace(maxStr))
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("building %q: non-numeric value", part)
		}
		if lo > hi {
			return nil, fmt.Errorf("building %q: min greater than max", part)
		}
		out = append(out, BuildingRange{Code: code, Min: lo, Max: hi})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no building ranges configured")
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Min < out[j].Min })
	seen := map[int]bool{}
	for i, b := range out {
		if seen[b.Code] {
			return nil, fmt.Errorf("building %d configured twice", b.Code)
		}
		seen[b.Code] = true
		if i > 0 && b.Min <= out[i-1].Max {
			return nil, fmt.Errorf("building %d overlaps building %d", b.Code, out[i-1].Code)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Lookup returns the range configured for code.
func (b Buildings) Lookup(code int) (BuildingRange, bool) {
	for _, r := range b {
		if r.Code == code {
			return r, true
		}
	}
	return BuildingRange{}, false
}

// Of returns the building code containing wardCode.
func (b Buildings) Of(wardCode int) (int, bool) {
	for _, r := range b {
		if wardCode >= r.Min && wardCode <= r.Max {
			return r.Code, true
		}
	}
	return 0, false
}

func (b Buildings) String() string {
	parts := make([]string, len(b))
	for i, r := range b {
		parts[i] = fmt.Sprintf("%d:%d-%d", r.Code, r.Min, r.Max)
	}
	return strings.Join(parts, ",")
}
