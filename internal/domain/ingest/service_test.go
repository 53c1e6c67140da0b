package ingest_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joabeoliveira/ocupacao/internal/domain/ingest"
	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot/snapshottest"
	"github.com/joabeoliveira/ocupacao/internal/platform/blobstore"
	"github.com/joabeoliveira/ocupacao/internal/platform/events"
)

const censusCSV = `NUM ENF;LEITO;NOME ENFERMARIA;STATUS;PRONTUÁRIO;NOME PACIENTE;IDADE;DATA INTERN
10;01;CLINICA MEDICA;OCUPADO;111.0;MARIA SILVA;70;01/12/2024
10;02;CLINICA MEDICA;LIVRE;;;;
310;01;UTI ADULTO;IMPEDIDO;;;;
TOTAL;;;;;;;
`

type invalidator struct{ calls int }

func (i *invalidator) Invalidate(context.Context) error {
	i.calls++
	return nil
}

type fixture struct {
	repo  *snapshottest.Repo
	blobs *blobstore.MemoryStore
	pub   *events.RecordingPublisher
	cache *invalidator
	svc   *ingest.Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:  snapshottest.New(),
		blobs: blobstore.NewMemoryStore(),
		pub:   &events.RecordingPublisher{},
		cache: &invalidator{},
	}
	notifier := snapshot.NewNotifier(f.pub, f.cache, zerolog.Nop())
	f.svc = ingest.NewService(f.repo, f.blobs, notifier, "snapshots", zerolog.Nop())
	return f
}

func TestImport_CSV(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Import(context.Background(), ingest.Request{
		FileName:      "censo.csv",
		Data:          []byte(censusCSV),
		ReferenceDate: "05/01/2025",
		Actor:         "ana",
	})
	require.NoError(t, err)

	assert.Equal(t, "2025-01-05", res.ReferenceDate, "day-first reference date")
	assert.Equal(t, "05/01/2025", res.Label)
	assert.Equal(t, ingest.FormatCSV, res.Format)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 1, res.Skipped)
	assert.False(t, res.ReplacedExisting)

	require.Len(t, f.repo.Rows, 3)
	for _, r := range f.repo.Rows {
		assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), r.ReferenceDate)
		assert.Equal(t, res.ImportID, r.ImportID)
	}
	require.Len(t, f.repo.Imps, 1)
	imp := f.repo.Imps[0]
	assert.Equal(t, "ana", imp.ImportedBy)
	assert.Equal(t, 1, imp.SkippedCount)

	obj, err := f.blobs.Get(context.Background(), imp.BlobKey)
	require.NoError(t, err)
	assert.Equal(t, censusCSV, string(obj.Data))
	assert.True(t, strings.HasPrefix(imp.BlobKey, "snapshots/2025-01-05/"+res.ImportID.String()+"/"))

	require.Len(t, f.pub.Events, 1)
	assert.Equal(t, events.RoutingImported, f.pub.Events[0].Type)
	assert.Equal(t, res.ImportID, *f.pub.Events[0].ImportID)
	assert.Equal(t, 1, f.cache.calls)
}

func TestImport_ReplacesDate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := ingest.Request{FileName: "censo.csv", Data: []byte(censusCSV), ReferenceDate: "2025-01-05"}

	first, err := f.svc.Import(ctx, req)
	require.NoError(t, err)
	firstKey := f.repo.Imps[0].BlobKey

	req.Data = []byte("NUM ENF;LEITO;STATUS\n20;01;OCUPADO\n")
	second, err := f.svc.Import(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.ReplacedExisting)
	assert.NotEqual(t, first.ImportID, second.ImportID)
	require.Len(t, f.repo.Rows, 1, "previous batch for the date removed")
	assert.Equal(t, 20, f.repo.Rows[0].WardCode)
	require.Len(t, f.repo.Imps, 1)

	_, err = f.blobs.Get(ctx, firstKey)
	assert.ErrorIs(t, err, blobstore.ErrNotFound, "replaced upload discarded")
}

func TestImport_KeepsOtherDates(t *testing.T) {
	other := time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)
	f := newFixture()
	f.repo.Rows = []snapshot.Row{{ReferenceDate: other, WardCode: 10, Bed: "01", Status: snapshot.StatusOccupied}}

	_, err := f.svc.Import(context.Background(), ingest.Request{
		FileName: "censo.csv", Data: []byte(censusCSV), ReferenceDate: "2025-01-05",
	})
	require.NoError(t, err)
	assert.Len(t, f.repo.Rows, 4)
}

func TestImport_Rejections(t *testing.T) {
	cases := []struct {
		name string
		req  ingest.Request
		want error
	}{
		{"missing date", ingest.Request{FileName: "a.csv", Data: []byte(censusCSV)}, ingest.ErrInvalidDate},
		{"bad date", ingest.Request{FileName: "a.csv", Data: []byte(censusCSV), ReferenceDate: "ontem"}, ingest.ErrInvalidDate},
		{"empty", ingest.Request{FileName: "a.csv", ReferenceDate: "2025-01-05"}, ingest.ErrEmptyFile},
		{"no valid rows", ingest.Request{FileName: "a.csv", Data: []byte("NUM ENF;LEITO\nTOTAL;\n"), ReferenceDate: "2025-01-05"}, ingest.ErrEmptyFile},
		{"no ward column", ingest.Request{FileName: "a.csv", Data: []byte("LEITO;STATUS\n01;LIVRE\n"), ReferenceDate: "2025-01-05"}, ingest.ErrInvalidFile},
		{"pdf", ingest.Request{FileName: "a.pdf", Data: []byte("%PDF-1.4"), ReferenceDate: "2025-01-05"}, ingest.ErrUnsupportedFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Import(context.Background(), tc.req)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.True(t, ingest.IsClientError(err))
			assert.Empty(t, f.repo.Rows)
			assert.Empty(t, f.pub.Events)
		})
	}
}

func TestImport_StoreFailureDropsArchive(t *testing.T) {
	f := newFixture()
	f.repo.Err = errors.New("deadlock detected")

	_, err := f.svc.Import(context.Background(), ingest.Request{
		FileName: "censo.csv", Data: []byte(censusCSV), ReferenceDate: "2025-01-05",
	})
	require.Error(t, err)
	assert.False(t, ingest.IsClientError(err))
	assert.Empty(t, f.blobs.Keys(""), "archived copy removed")
	assert.Empty(t, f.pub.Events)
}

type failingBlobs struct{ blobstore.Store }

func (failingBlobs) Put(context.Context, string, string, []byte) error {
	return errors.New("s3 unavailable")
}

func TestImport_ArchiveFailureIsNotFatal(t *testing.T) {
	repo := snapshottest.New()
	svc := ingest.NewService(repo, failingBlobs{blobstore.NewMemoryStore()}, snapshot.NewNotifier(nil, nil, zerolog.Nop()), "", zerolog.Nop())

	res, err := svc.Import(context.Background(), ingest.Request{
		FileName: "censo.csv", Data: []byte(censusCSV), ReferenceDate: "2025-01-05",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, res.ImportID)
	require.Len(t, repo.Imps, 1)
	assert.Empty(t, repo.Imps[0].BlobKey)
}
