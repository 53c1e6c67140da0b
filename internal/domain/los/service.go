package los

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/platform/predicate"
	"github.com/joabeoliveira/ocupacao/pkg/pagination"
)

type Service struct {
	repo      Repository
	buildings snapshot.Buildings
	presence  string
	pageSize  int
	logger    zerolog.Logger
}

// NewService returns the length-of-stay service. presence selects how
// filter parameters are detected for the default view (snapshot.PresenceKey
// or snapshot.PresenceValue).
func NewService(repo Repository, buildings snapshot.Buildings, presence string, pageSize int, logger zerolog.Logger) *Service {
	if presence != snapshot.PresenceValue {
		presence = snapshot.PresenceKey
	}
	if pageSize <= 0 {
		pageSize = pagination.DefaultPerPage
	}
	return &Service{repo: repo, buildings: buildings, presence: presence, pageSize: pageSize, logger: logger}
}

func (s *Service) PageSize() int { return s.pageSize }

func (s *Service) Buildings() snapshot.Buildings { return s.buildings }

// Resolve picks the reference point day-counts are measured against and
// the predicates of the rows to aggregate. A single date is its own
// reference point. A period uses its end, or the latest date inside it when
// open-ended. Without any date input the latest date holding rows of the
// requested clinic and building is used.
func (s *Service) Resolve(ctx context.Context, f snapshot.Filter) (time.Time, predicate.Set, error) {
	switch {
	case f.Date != nil:
		return *f.Date, f.Predicates(), nil
	case f.End != nil:
		return *f.End, f.Predicates(), nil
	case f.Start != nil || f.Month > 0 || f.Day > 0:
		preds := f.Predicates()
		latest, err := s.repo.LatestDate(ctx, preds)
		if err != nil {
			return time.Time{}, predicate.Set{}, fmt.Errorf("latest date in period: %w", err)
		}
		if latest == nil {
			return time.Time{}, predicate.Set{}, snapshot.ErrNoData
		}
		return *latest, preds, nil
	}

	latest, err := s.repo.LatestDate(ctx, f.Predicates())
	if err != nil {
		return time.Time{}, predicate.Set{}, fmt.Errorf("latest date: %w", err)
	}
	if latest == nil {
		return time.Time{}, predicate.Set{}, snapshot.ErrNoData
	}
	return *latest, f.WithDate(*latest).Predicates(), nil
}

// Stays returns every stay in the filter's scope, longest first, together
// with the reference point.
func (s *Service) Stays(ctx context.Context, f snapshot.Filter) ([]Stay, time.Time, error) {
	ref, preds, err := s.Resolve(ctx, f)
	if err != nil {
		return nil, time.Time{}, err
	}
	rows, err := s.repo.OccupiedRows(ctx, preds)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("occupied rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, time.Time{}, fmt.Errorf("%s: %w", ref.Format(snapshot.DateLayout), snapshot.ErrNoData)
	}
	stays := GroupStays(rows, ref)
	SortByDays(stays)
	return stays, ref, nil
}

// SelectView resolves the listing view. An explicit view wins; otherwise
// any filter parameter switches the listing to long stays.
func (s *Service) SelectView(f snapshot.Filter) snapshot.View {
	switch f.View {
	case snapshot.ViewAll, snapshot.ViewLongStay:
		return f.View
	}
	if f.HasFilters(s.presence) {
		return snapshot.ViewLongStay
	}
	return snapshot.ViewAll
}

// Report computes the summary over every stay and one masked page of the
// selected view.
func (s *Service) Report(ctx context.Context, f snapshot.Filter, p pagination.Params) (*Report, error) {
	stays, ref, err := s.Stays(ctx, f)
	if err != nil {
		return nil, err
	}

	view := s.SelectView(f)
	selected := stays
	if view == snapshot.ViewLongStay {
		selected = LongStays(stays)
	}
	page := pagination.Slice(selected, p)

	return &Report{
		ReferenceDate: ref.Format(snapshot.DateLayout),
		Label:         ref.Format(snapshot.LabelLayout),
		Summary:       Summarize(stays),
		Listing: Listing{
			View:    string(view),
			Items:   lo.Map(page, func(st Stay, _ int) ListedStay { return listed(st) }),
			Total:   len(selected),
			Page:    p.Page,
			PerPage: p.PerPage,
			Pages:   p.Pages(len(selected)),
			HasMore: p.HasNext(len(selected)),
		},
		Filters: f.Echo(),
	}, nil
}

func listed(st Stay) ListedStay {
	out := ListedStay{
		Name:     MaskName(st.Name),
		Age:      st.Age,
		Sex:      st.Sex,
		Clinic:   st.Clinic,
		WardCode: st.WardCode,
		Bed:      st.Bed,
		Days:     st.Days,
	}
	if st.AdmissionDate != nil {
		out.AdmissionDate = st.AdmissionDate.Format(snapshot.LabelLayout)
	}
	return out
}

// Export renders the long-stay view, unmasked, as a spreadsheet.
func (s *Service) Export(ctx context.Context, f snapshot.Filter) (*ExportFile, error) {
	stays, ref, err := s.Stays(ctx, f)
	if err != nil {
		return nil, err
	}
	long := LongStays(stays)
	data, err := WriteXLSX(long)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	s.logger.Info().
		Str("reference_date", ref.Format(snapshot.DateLayout)).
		Int("rows", len(long)).
		Msg("long-stay export generated")
	return &ExportFile{
		FileName: ExportFileName(ref),
		Data:     data,
		Rows:     len(long),
	}, nil
}

// ExportFileName is the download name for a reference point.
func ExportFileName(ref time.Time) string {
	return "longa_permanencia_" + ref.Format(snapshot.DateLayout) + ".xlsx"
}
