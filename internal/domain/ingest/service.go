package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/platform/blobstore"
	"github.com/joabeoliveira/ocupacao/internal/platform/events"
)

// Store is the write side of the snapshot repository.
type Store interface {
	ReplaceDate(ctx context.Context, date time.Time, rows []snapshot.Row, imp *snapshot.Import) ([]snapshot.Import, error)
}

type Service struct {
	store      Store
	blobs      blobstore.Store
	notifier   *snapshot.Notifier
	blobPrefix string
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(store Store, blobs blobstore.Store, notifier *snapshot.Notifier, blobPrefix string, logger zerolog.Logger) *Service {
	return &Service{
		store:      store,
		blobs:      blobs,
		notifier:   notifier,
		blobPrefix: blobPrefix,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Import replaces the snapshot of the request's reference date with the
// rows of the uploaded file.
func (s *Service) Import(ctx context.Context, req Request) (*Result, error) {
	if req.ReferenceDate == "" {
		return nil, fmt.Errorf("data_referencia is required: %w", ErrInvalidDate)
	}
	date, err := snapshot.ParseDate(req.ReferenceDate)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", req.ReferenceDate, ErrInvalidDate)
	}

	table, format, err := Read(req.FileName, req.Data)
	if err != nil {
		return nil, err
	}
	rows, rep, err := Normalize(table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("all %d rows skipped: %w", rep.Skipped, ErrEmptyFile)
	}

	imp := &snapshot.Import{
		ID:            uuid.New(),
		ReferenceDate: date,
		FileName:      req.FileName,
		Format:        format,
		RowCount:      len(rows),
		SkippedCount:  rep.Skipped,
		ImportedBy:    req.Actor,
		ImportedAt:    s.now(),
	}
	s.archive(ctx, imp, req)

	replaced, err := s.store.ReplaceDate(ctx, date, rows, imp)
	if err != nil {
		if imp.BlobKey != "" {
			_ = s.blobs.Delete(ctx, imp.BlobKey)
		}
		return nil, fmt.Errorf("store snapshot %s: %w", date.Format(snapshot.DateLayout), err)
	}
	snapshot.DiscardBlobs(ctx, s.blobs, replaced, s.logger)

	s.logger.Info().
		Str("import_id", imp.ID.String()).
		Str("reference_date", date.Format(snapshot.DateLayout)).
		Str("file", req.FileName).
		Int("rows", len(rows)).
		Int("skipped", rep.Skipped).
		Int("replaced_imports", len(replaced)).
		Str("actor", req.Actor).
		Msg("snapshot imported")

	evt := events.NewSnapshotEvent(events.RoutingImported, date, req.Actor)
	evt.ImportID = &imp.ID
	evt.Rows = len(rows)
	s.notifier.Notify(ctx, evt)

	unmapped := rep.Unmapped
	if unmapped == nil {
		unmapped = []string{}
	}
	return &Result{
		ImportID:         imp.ID,
		ReferenceDate:    date.Format(snapshot.DateLayout),
		Label:            date.Format(snapshot.LabelLayout),
		Format:           format,
		Rows:             len(rows),
		Skipped:          rep.Skipped,
		UnmappedHeaders:  unmapped,
		ReplacedExisting: len(replaced) > 0,
		ImportedAt:       imp.ImportedAt,
	}, nil
}

// archive stores the raw upload. The import proceeds without an archive
// copy when the blob store fails.
func (s *Service) archive(ctx context.Context, imp *snapshot.Import, req Request) {
	if s.blobs == nil {
		return
	}
	key := blobstore.Key(s.blobPrefix, imp.ReferenceDate, imp.ID, req.FileName)
	contentType := req.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(req.Data)
	}
	if err := s.blobs.Put(ctx, key, contentType, req.Data); err != nil {
		s.logger.Warn().Err(err).Str("blob_key", key).Msg("raw upload not archived")
		return
	}
	imp.BlobKey = key
}

// IsClientError reports whether err was caused by the upload itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidFile) || errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrInvalidDate)
}
