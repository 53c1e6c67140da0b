package los

import (
	"context"
	"time"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/platform/predicate"
)

type Repository interface {
	LatestDate(ctx context.Context, preds predicate.Set) (*time.Time, error)
	// OccupiedRows returns the occupied beds matching preds ordered by
	// reference date, ward code and bed.
	OccupiedRows(ctx context.Context, preds predicate.Set) ([]snapshot.Row, error)
}
