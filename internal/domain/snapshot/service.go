package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/joabeoliveira/ocupacao/internal/platform/blobstore"
	"github.com/joabeoliveira/ocupacao/internal/platform/events"
	"github.com/joabeoliveira/ocupacao/internal/platform/predicate"
	"github.com/joabeoliveira/ocupacao/pkg/ratio"
)

type Service struct {
	repo     Repository
	blobs    blobstore.Store
	notifier *Notifier
	logger   zerolog.Logger
}

func NewService(repo Repository, blobs blobstore.Store, notifier *Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, blobs: blobs, notifier: notifier, logger: logger}
}

// History lists every reference date, newest first.
func (s *Service) History(ctx context.Context) ([]HistoryEntry, error) {
	days, err := s.repo.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return lo.Map(days, func(d DateCounts, _ int) HistoryEntry {
		return HistoryEntry{
			ReferenceDate: d.ReferenceDate.Format(DateLayout),
			Label:         d.ReferenceDate.Format(LabelLayout),
			Total:         d.Total,
			Occupied:      d.Occupied,
			OccupancyRate: ratio.Percent(d.Occupied, d.Total),
		}
	}), nil
}

// LatestDate returns the most recent reference date, or ErrNoData when the
// store is empty.
func (s *Service) LatestDate(ctx context.Context) (time.Time, error) {
	d, err := s.repo.LatestDate(ctx, predicate.Set{})
	if err != nil {
		return time.Time{}, fmt.Errorf("latest date: %w", err)
	}
	if d == nil {
		return time.Time{}, ErrNoData
	}
	return *d, nil
}

func (s *Service) resolveDate(ctx context.Context, date *time.Time) (time.Time, error) {
	if date != nil {
		return *date, nil
	}
	return s.LatestDate(ctx)
}

// DayStats returns the indicators of date, or of the latest date when date
// is nil.
func (s *Service) DayStats(ctx context.Context, date *time.Time) (*DayStats, error) {
	d, err := s.resolveDate(ctx, date)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.Counts(ctx, predicate.New(predicate.Eq{Column: ColReferenceDate, Value: d}))
	if err != nil {
		return nil, fmt.Errorf("day stats: %w", err)
	}
	if c.Total == 0 {
		return nil, fmt.Errorf("%s: %w", d.Format(DateLayout), ErrNoData)
	}
	return &DayStats{
		ReferenceDate: d.Format(DateLayout),
		Label:         d.Format(LabelLayout),
		Counts:        c,
		OccupancyRate: ratio.Percent(c.Occupied, c.Total),
	}, nil
}

// Chart returns up to ChartDays reference dates ending at date, oldest first.
func (s *Service) Chart(ctx context.Context, date *time.Time) ([]ChartPoint, error) {
	d, err := s.resolveDate(ctx, date)
	if err != nil {
		return nil, err
	}
	days, err := s.repo.Chart(ctx, d, ChartDays)
	if err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}
	days = lo.Reverse(days)
	return lo.Map(days, func(dc DateCounts, _ int) ChartPoint {
		return ChartPoint{
			ReferenceDate: dc.ReferenceDate.Format(DateLayout),
			Label:         dc.ReferenceDate.Format(ShortLabel),
			Total:         dc.Total,
			Occupied:      dc.Occupied,
			OccupancyRate: ratio.Percent(dc.Occupied, dc.Total),
		}
	}), nil
}

func (s *Service) Clinics(ctx context.Context) ([]string, error) {
	clinics, err := s.repo.Clinics(ctx)
	if err != nil {
		return nil, fmt.Errorf("clinics: %w", err)
	}
	if clinics == nil {
		clinics = []string{}
	}
	return clinics, nil
}

func (s *Service) Imports(ctx context.Context, date time.Time) ([]Import, error) {
	imps, err := s.repo.Imports(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("imports: %w", err)
	}
	if imps == nil {
		imps = []Import{}
	}
	return imps, nil
}

// DeleteDate removes every row of date.
func (s *Service) DeleteDate(ctx context.Context, date time.Time, actor string) (int64, error) {
	n, removed, err := s.repo.DeleteDate(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", date.Format(DateLayout), err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%s: %w", date.Format(DateLayout), ErrNoData)
	}
	s.DiscardBlobs(ctx, removed)

	s.logger.Info().Str("reference_date", date.Format(DateLayout)).Int64("rows", n).Str("actor", actor).
		Msg("snapshot deleted")
	evt := events.NewSnapshotEvent(events.RoutingDeleted, date, actor)
	evt.Rows = int(n)
	s.notifier.Notify(ctx, evt)
	return n, nil
}

// MoveDate corrects the reference date of a whole batch. Any batch already
// stored under to is replaced.
func (s *Service) MoveDate(ctx context.Context, from, to time.Time, actor string) (int64, error) {
	if from.Equal(to) {
		return 0, ErrSameDate
	}
	n, replaced, err := s.repo.MoveDate(ctx, from, to)
	if errors.Is(err, ErrNoData) {
		return 0, fmt.Errorf("%s: %w", from.Format(DateLayout), ErrNoData)
	}
	if err != nil {
		return 0, fmt.Errorf("move %s to %s: %w", from.Format(DateLayout), to.Format(DateLayout), err)
	}
	s.DiscardBlobs(ctx, replaced)

	s.logger.Info().
		Str("from", from.Format(DateLayout)).
		Str("to", to.Format(DateLayout)).
		Int64("rows", n).
		Int("replaced_imports", len(replaced)).
		Str("actor", actor).
		Msg("snapshot moved")
	evt := events.NewSnapshotEvent(events.RoutingMoved, to, actor)
	evt.PreviousDate = from.Format(DateLayout)
	evt.Rows = int(n)
	s.notifier.Notify(ctx, evt)
	return n, nil
}

// DiscardBlobs removes the archived uploads of imports that no longer back
// any rows.
func (s *Service) DiscardBlobs(ctx context.Context, imps []Import) {
	DiscardBlobs(ctx, s.blobs, imps, s.logger)
}

// DiscardBlobs deletes the archived upload of every import in imps.
// Failures only leave orphaned objects behind and are logged.
func DiscardBlobs(ctx context.Context, blobs blobstore.Store, imps []Import, logger zerolog.Logger) {
	if blobs == nil {
		return
	}
	for _, imp := range imps {
		if imp.BlobKey == "" {
			continue
		}
		if err := blobs.Delete(ctx, imp.BlobKey); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			logger.Warn().Err(err).Str("blob_key", imp.BlobKey).Msg("archived upload not removed")
		}
	}
}

// SourceFile returns the archived raw upload of an import.
func (s *Service) SourceFile(ctx context.Context, id uuid.UUID) (*Import, *blobstore.Object, error) {
	imp, err := s.repo.GetImport(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if imp.BlobKey == "" || s.blobs == nil {
		return nil, nil, fmt.Errorf("import %s has no archived file: %w", id, ErrImportNotFound)
	}
	obj, err := s.blobs.Get(ctx, imp.BlobKey)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil, fmt.Errorf("archived file %s: %w", imp.BlobKey, ErrImportNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("archived file %s: %w", imp.BlobKey, err)
	}
	return imp, obj, nil
}
