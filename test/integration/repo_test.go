//go:build integration

package integration

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joabeoliveira/ocupacao/internal/domain/los"
	"github.com/joabeoliveira/ocupacao/internal/domain/occupancy"
	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/platform/predicate"
	"github.com/joabeoliveira/ocupacao/pkg/pagination"
)

func importFor(date time.Time, rows int) *snapshot.Import {
	return &snapshot.Import{
		ID:            uuid.New(),
		ReferenceDate: date,
		FileName:      "leitos.csv",
		Format:        "csv",
		RowCount:      rows,
		ImportedBy:    "it",
		ImportedAt:    time.Now().UTC(),
	}
}

func seed(t *testing.T, repo snapshot.Repository, date time.Time, rows ...snapshot.Row) *snapshot.Import {
	t.Helper()
	imp := importFor(date, len(rows))
	_, err := repo.ReplaceDate(context.Background(), date, rows, imp)
	require.NoError(t, err)
	return imp
}

func buildings(t *testing.T) snapshot.Buildings {
	t.Helper()
	b, err := snapshot.ParseBuildings("1:1-299,2:300-999")
	require.NoError(t, err)
	return b
}

func TestSnapshotRepo_ReplaceDate(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := snapshot.NewRepo(globalPool)
	d := day(2025, 3, 10)

	first := seed(t, repo, d,
		bed(d, 10, "01", "CLINICA MEDICA", snapshot.StatusOccupied),
		bed(d, 10, "02", "CLINICA MEDICA", snapshot.StatusFree),
	)

	row := patient(bed(d, 10, "01", "CLINICA MEDICA", snapshot.StatusOccupied), "100", "JOAO", 70, day(2025, 1, 1))
	row.Attributes = map[string]string{"observacao": "isolamento"}
	replaced, err := repo.ReplaceDate(ctx, d, []snapshot.Row{row}, importFor(d, 1))
	require.NoError(t, err)
	require.Len(t, replaced, 1)
	assert.Equal(t, first.ID, replaced[0].ID)

	counts, err := repo.Counts(ctx, predicate.New(predicate.Eq{Column: snapshot.ColReferenceDate, Value: d}))
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Total)
	assert.Equal(t, 1, counts.Occupied)

	imps, err := repo.Imports(ctx, d)
	require.NoError(t, err)
	assert.Len(t, imps, 1)

	var attrs map[string]string
	require.NoError(t, globalPool.QueryRow(ctx, `SELECT attributes FROM bed_snapshot WHERE reference_date = $1`, d).Scan(&attrs))
	assert.Equal(t, "isolamento", attrs["observacao"])
}

func TestSnapshotRepo_DuplicateBedRollsBack(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := snapshot.NewRepo(globalPool)
	d := day(2025, 3, 10)
	seed(t, repo, d, bed(d, 10, "01", "UTI", snapshot.StatusFree))

	_, err := repo.ReplaceDate(ctx, d, []snapshot.Row{
		bed(d, 20, "01", "UTI", snapshot.StatusFree),
		bed(d, 20, "01", "UTI", snapshot.StatusFree),
	}, importFor(d, 2))
	require.Error(t, err)

	counts, err := repo.Counts(ctx, predicate.Set{})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Total, "the previous batch survives a failed replace")
}

func TestSnapshotRepo_MoveAndDelete(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := snapshot.NewRepo(globalPool)
	from, to := day(2025, 3, 10), day(2025, 3, 11)
	seed(t, repo, from, bed(from, 10, "01", "UTI", snapshot.StatusOccupied), bed(from, 10, "02", "UTI", snapshot.StatusFree))
	seed(t, repo, to, bed(to, 10, "01", "UTI", snapshot.StatusFree))

	n, displaced, err := repo.MoveDate(ctx, from, to)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Len(t, displaced, 1)

	exists, err := repo.DateExists(ctx, from)
	require.NoError(t, err)
	assert.False(t, exists)

	_, _, err = repo.MoveDate(ctx, from, to)
	assert.True(t, errors.Is(err, snapshot.ErrNoData))

	n, removed, err := repo.DeleteDate(ctx, to)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Len(t, removed, 1)

	latest, err := repo.LatestDate(ctx, predicate.Set{})
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestOccupancyRepo_Groupings(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	snaps := snapshot.NewRepo(globalPool)
	jan, feb := day(2025, 1, 31), day(2025, 2, 1)
	seed(t, snaps, jan, bed(jan, 10, "01", "CLINICA MEDICA", snapshot.StatusOccupied))
	seed(t, snaps, feb,
		bed(feb, 10, "01", "CLINICA MEDICA", snapshot.StatusOccupied),
		bed(feb, 310, "01", "UTI ADULTO", snapshot.StatusBlocked),
		bed(feb, 1200, "01", "", snapshot.StatusFree),
	)

	repo := occupancy.NewRepo(globalPool)

	months, err := repo.ByMonth(ctx, predicate.Set{})
	require.NoError(t, err)
	require.Len(t, months, 2)
	assert.Equal(t, "2025-01", months[0].Key)

	clinics, err := repo.ByClinic(ctx, predicate.New(predicate.Eq{Column: snapshot.ColReferenceDate, Value: feb}))
	require.NoError(t, err)
	assert.Len(t, clinics, 2, "rows without a ward name are left out")

	blds, err := repo.ByBuilding(ctx, predicate.New(predicate.Eq{Column: snapshot.ColReferenceDate, Value: feb}), buildings(t))
	require.NoError(t, err)
	require.Len(t, blds, 2, "ward 1200 is outside every building")
	for _, g := range blds {
		assert.Equal(t, 1, g.Total, g.Key)
	}
}

func TestLOS_AgainstPostgres(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	snaps := snapshot.NewRepo(globalPool)
	prev, ref := day(2025, 3, 9), day(2025, 3, 10)
	seed(t, snaps, prev,
		patient(bed(prev, 10, "01", "CLINICA MEDICA", snapshot.StatusOccupied), "100", "JOAO SILVA", 70, day(2024, 12, 31)),
	)
	seed(t, snaps, ref,
		patient(bed(ref, 10, "01", "CLINICA MEDICA", snapshot.StatusOccupied), "100", "JOAO SILVA", 70, day(2025, 1, 1)),
		patient(bed(ref, 400, "02", "PEDIATRIA", snapshot.StatusOccupied), "200", "MARIA", 10, day(2025, 3, 1)),
		bed(ref, 10, "02", "CLINICA MEDICA", snapshot.StatusFree),
	)

	svc := los.NewService(los.NewRepo(globalPool), buildings(t), snapshot.PresenceKey, 50, zerolog.Nop())

	f, err := snapshot.ParseFilter(url.Values{"periodo_inicio": {"2025-03-01"}, "view": {"all"}}, buildings(t))
	require.NoError(t, err)
	rep, err := svc.Report(ctx, f, pagination.Params{Page: 1, PerPage: 50})
	require.NoError(t, err)

	assert.Equal(t, "2025-03-10", rep.ReferenceDate)
	require.Len(t, rep.Listing.Items, 2)
	assert.Equal(t, "Joao S.", rep.Listing.Items[0].Name)
	assert.Equal(t, 69, rep.Listing.Items[0].Days)
	assert.Equal(t, 1, rep.Summary.LongStay)

	f, err = snapshot.ParseFilter(url.Values{"predio": {"2"}}, buildings(t))
	require.NoError(t, err)
	file, err := svc.Export(ctx, f)
	require.NoError(t, err)
	assert.Zero(t, file.Rows, "building 2 holds only a short pediatric stay")
}
