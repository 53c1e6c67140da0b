package occupancy

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/platform/predicate"
	"github.com/joabeoliveira/ocupacao/pkg/ratio"
)

type Service struct {
	repo      Repository
	buildings snapshot.Buildings
	logger    zerolog.Logger
}

func NewService(repo Repository, buildings snapshot.Buildings, logger zerolog.Logger) *Service {
	return &Service{repo: repo, buildings: buildings, logger: logger}
}

// scope returns the predicates of f. A filter that constrains nothing is
// pinned to the latest reference date.
func (s *Service) scope(ctx context.Context, f snapshot.Filter) (predicate.Set, *time.Time, error) {
	if !f.Unscoped() {
		return f.Predicates(), nil, nil
	}
	latest, err := s.repo.LatestDate(ctx, predicate.Set{})
	if err != nil {
		return predicate.Set{}, nil, fmt.Errorf("latest date: %w", err)
	}
	if latest == nil {
		return predicate.Set{}, nil, snapshot.ErrNoData
	}
	return f.WithDate(*latest).Predicates(), latest, nil
}

func (s *Service) Stats(ctx context.Context, f snapshot.Filter) (*Stats, error) {
	preds, latest, err := s.scope(ctx, f)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.Counts(ctx, preds)
	if err != nil {
		return nil, fmt.Errorf("occupancy stats: %w", err)
	}

	st := &Stats{
		Counts:          c,
		OccupancyRate:   ratio.Percent(c.Occupied, c.Total),
		OperationalRate: ratio.Percent(c.Occupied, c.Total-c.Blocked),
		Filters:         f.Echo(),
	}
	switch {
	case latest != nil:
		st.ReferenceDate = latest.Format(snapshot.DateLayout)
	case f.Date != nil:
		st.ReferenceDate = f.Date.Format(snapshot.DateLayout)
	}
	return st, nil
}

func breakdowns(groups []Group, label func(string) string) []Breakdown {
	out := lo.Map(groups, func(g Group, _ int) Breakdown {
		return Breakdown{
			Key:           g.Key,
			Label:         label(g.Key),
			Occupied:      g.Occupied,
			Blocked:       g.Blocked,
			Total:         g.Total,
			OccupancyRate: ratio.Percent(g.Occupied, g.Total),
		}
	})
	if out == nil {
		out = []Breakdown{}
	}
	return out
}

// Evolution is the occupancy per month, oldest first.
func (s *Service) Evolution(ctx context.Context, f snapshot.Filter) ([]Breakdown, error) {
	preds, _, err := s.scope(ctx, f)
	if err != nil {
		return nil, err
	}
	groups, err := s.repo.ByMonth(ctx, preds)
	if err != nil {
		return nil, fmt.Errorf("evolution: %w", err)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return breakdowns(groups, monthLabel), nil
}

func monthLabel(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return t.Format("01/2006")
}

func (s *Service) ByClinic(ctx context.Context, f snapshot.Filter) ([]Breakdown, error) {
	preds, _, err := s.scope(ctx, f)
	if err != nil {
		return nil, err
	}
	groups, err := s.repo.ByClinic(ctx, preds)
	if err != nil {
		return nil, fmt.Errorf("by clinic: %w", err)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return breakdowns(groups, func(k string) string { return k }), nil
}

func (s *Service) ByBuilding(ctx context.Context, f snapshot.Filter) ([]Breakdown, error) {
	preds, _, err := s.scope(ctx, f)
	if err != nil {
		return nil, err
	}
	groups, err := s.repo.ByBuilding(ctx, preds, s.buildings)
	if err != nil {
		return nil, fmt.Errorf("by building: %w", err)
	}
	code := func(g Group) int {
		n, _ := strconv.Atoi(g.Key)
		return n
	}
	sort.Slice(groups, func(i, j int) bool { return code(groups[i]) < code(groups[j]) })
	return breakdowns(groups, func(k string) string { return "Prédio " + k }), nil
}

// Buildings returns the configured building table.
func (s *Service) Buildings() snapshot.Buildings {
	return s.buildings
}
