package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joabeoliveira/ocupacao/internal/platform/predicate"
)

// Repository is the bed_snapshot / snapshot_import store. Every write
// replaces, moves or removes a whole reference date in one transaction.
type Repository interface {
	History(ctx context.Context) ([]DateCounts, error)
	LatestDate(ctx context.Context, preds predicate.Set) (*time.Time, error)
	DateExists(ctx context.Context, date time.Time) (bool, error)
	Counts(ctx context.Context, preds predicate.Set) (Counts, error)
	Chart(ctx context.Context, upTo time.Time, limit int) ([]DateCounts, error)
	Clinics(ctx context.Context) ([]string, error)

	Imports(ctx context.Context, date time.Time) ([]Import, error)
	GetImport(ctx context.Context, id uuid.UUID) (*Import, error)

	// ReplaceDate deletes every row of date, inserts rows and records imp.
	// It returns the import records that were replaced.
	ReplaceDate(ctx context.Context, date time.Time, rows []Row, imp *Import) ([]Import, error)
	// DeleteDate returns the number of bed rows removed and the removed
	// import records.
	DeleteDate(ctx context.Context, date time.Time) (int64, []Import, error)
	// MoveDate relabels every row of from as to, replacing whatever to
	// held. It returns the number of rows moved and the replaced imports.
	MoveDate(ctx context.Context, from, to time.Time) (int64, []Import, error)
}
