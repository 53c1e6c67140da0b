package occupancy

import (
	"context"
	"time"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/platform/predicate"
)

type Repository interface {
	LatestDate(ctx context.Context, preds predicate.Set) (*time.Time, error)
	Counts(ctx context.Context, preds predicate.Set) (snapshot.Counts, error)
	// ByMonth groups by YYYY-MM, ascending.
	ByMonth(ctx context.Context, preds predicate.Set) ([]Group, error)
	// ByClinic groups by ward name, ascending.
	ByClinic(ctx context.Context, preds predicate.Set) ([]Group, error)
	// ByBuilding groups by building code. Wards outside every range are
	// left out.
	ByBuilding(ctx context.Context, preds predicate.Set, buildings snapshot.Buildings) ([]Group, error)
}
