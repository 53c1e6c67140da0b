package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joabeoliveira/ocupacao/internal/platform/db"
	"github.com/joabeoliveira/ocupacao/internal/platform/predicate"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

// CountsSelect is the status breakdown over bed_snapshot, in the column
// order ScanCounts expects.
const CountsSelect = `COUNT(*),
	COUNT(*) FILTER (WHERE status = 'OCUPADO'),
	COUNT(*) FILTER (WHERE status = 'LIVRE'),
	COUNT(*) FILTER (WHERE status = 'CEDIDO'),
	COUNT(*) FILTER (WHERE status = 'IMPEDIDO'),
	COUNT(*) FILTER (WHERE status = 'RESERVADO')`

// CountsDest returns scan destinations for the CountsSelect columns.
func CountsDest(c *Counts) []interface{} {
	return []interface{}{&c.Total, &c.Occupied, &c.Free, &c.Ceded, &c.Blocked, &c.Reserved}
}

func (r *repoPG) History(ctx context.Context) ([]DateCounts, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT reference_date, `+CountsSelect+`
		FROM bed_snapshot
		GROUP BY reference_date
		ORDER BY reference_date DESC`)
	if err != nil {
		return nil, err
	}
	return scanDateCounts(rows)
}

func (r *repoPG) Chart(ctx context.Context, upTo time.Time, limit int) ([]DateCounts, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT reference_date, `+CountsSelect+`
		FROM bed_snapshot
		WHERE reference_date <= $1
		GROUP BY reference_date
		ORDER BY reference_date DESC
		LIMIT $2`, upTo, limit)
	if err != nil {
		return nil, err
	}
	return scanDateCounts(rows)
}

func scanDateCounts(rows pgx.Rows) ([]DateCounts, error) {
	defer rows.Close()
	var out []DateCounts
	for rows.Next() {
		var dc DateCounts
		dest := append([]interface{}{&dc.ReferenceDate}, CountsDest(&dc.Counts)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

func (r *repoPG) LatestDate(ctx context.Context, preds predicate.Set) (*time.Time, error) {
	where, args := preds.Where()
	var d *time.Time
	err := r.conn(ctx).QueryRow(ctx, `SELECT MAX(reference_date) FROM bed_snapshot `+where, args...).Scan(&d)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *repoPG) DateExists(ctx context.Context, date time.Time) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bed_snapshot WHERE reference_date = $1)`, date).Scan(&ok)
	return ok, err
}

func (r *repoPG) Counts(ctx context.Context, preds predicate.Set) (Counts, error) {
	where, args := preds.Where()
	var c Counts
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+CountsSelect+` FROM bed_snapshot `+where, args...).
		Scan(CountsDest(&c)...)
	return c, err
}

func (r *repoPG) Clinics(ctx context.Context) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT ward_name FROM bed_snapshot
		WHERE ward_name IS NOT NULL AND ward_name <> ''
		ORDER BY ward_name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

const importCols = `id, reference_date, file_name, format, row_count, skipped_count,
	COALESCE(blob_key, ''), COALESCE(imported_by, ''), imported_at`

func scanImport(row pgx.Row) (*Import, error) {
	var imp Import
	err := row.Scan(&imp.ID, &imp.ReferenceDate, &imp.FileName, &imp.Format, &imp.RowCount,
		&imp.SkippedCount, &imp.BlobKey, &imp.ImportedBy, &imp.ImportedAt)
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

func collectImports(rows pgx.Rows, err error) ([]Import, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *imp)
	}
	return out, rows.Err()
}

func (r *repoPG) Imports(ctx context.Context, date time.Time) ([]Import, error) {
	return collectImports(r.conn(ctx).Query(ctx,
		`SELECT `+importCols+` FROM snapshot_import WHERE reference_date = $1 ORDER BY imported_at DESC`, date))
}

func (r *repoPG) GetImport(ctx context.Context, id uuid.UUID) (*Import, error) {
	imp, err := scanImport(r.conn(ctx).QueryRow(ctx,
		`SELECT `+importCols+` FROM snapshot_import WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrImportNotFound
	}
	return imp, err
}

var rowColumns = []string{
	"reference_date", "ward_code", "bed", "ward_name", "status", "status_raw",
	"aih", "cns", "patient_name", "sex", "birth_date", "age",
	"admission_date", "bed_admission_date", "medical_record", "cid10", "ser_code",
	"profile", "blocking_reason", "blocking_date",
	"reservation_requested_at", "reservation_expected_at",
	"follow_up", "notes", "attributes", "import_id",
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func copyValues(date time.Time, importID uuid.UUID, row Row) ([]interface{}, error) {
	attrs := row.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrJSON, err := json.Marshal(attrs)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		date, row.WardCode, row.Bed, nullable(row.WardName), string(row.Status), nullable(row.StatusRaw),
		nullable(row.AIH), nullable(row.CNS), nullable(row.PatientName), nullable(row.Sex), row.BirthDate, row.Age,
		row.AdmissionDate, row.BedAdmissionDate, nullable(row.MedicalRecord), nullable(row.CID10), nullable(row.SERCode),
		nullable(row.Profile), nullable(row.BlockingReason), row.BlockingDate,
		row.ReservationRequestedAt, row.ReservationExpectedAt,
		nullable(row.FollowUp), nullable(row.Notes), attrJSON, importID,
	}, nil
}

func (r *repoPG) deleteImports(ctx context.Context, tx pgx.Tx, date time.Time) ([]Import, error) {
	return collectImports(tx.Query(ctx,
		`DELETE FROM snapshot_import WHERE reference_date = $1 RETURNING `+importCols, date))
}

func (r *repoPG) ReplaceDate(ctx context.Context, date time.Time, rows []Row, imp *Import) ([]Import, error) {
	var replaced []Import
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		if _, err := tx.Exec(ctx, `DELETE FROM bed_snapshot WHERE reference_date = $1`, date); err != nil {
			return fmt.Errorf("delete previous rows: %w", err)
		}
		var err error
		if replaced, err = r.deleteImports(ctx, tx, date); err != nil {
			return fmt.Errorf("delete previous imports: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO snapshot_import (id, reference_date, file_name, format, row_count, skipped_count, blob_key, imported_by, imported_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			imp.ID, date, imp.FileName, imp.Format, imp.RowCount, imp.SkippedCount,
			nullable(imp.BlobKey), nullable(imp.ImportedBy), imp.ImportedAt,
		); err != nil {
			return fmt.Errorf("record import: %w", err)
		}

		var values [][]interface{}
		for _, row := range rows {
			v, err := copyValues(date, imp.ID, row)
			if err != nil {
				return fmt.Errorf("encode row %d/%s: %w", row.WardCode, row.Bed, err)
			}
			values = append(values, v)
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"bed_snapshot"}, rowColumns, pgx.CopyFromRows(values))
		if err != nil {
			return fmt.Errorf("copy rows: %w", err)
		}
		if int(n) != len(rows) {
			return fmt.Errorf("copy rows: wrote %d of %d", n, len(rows))
		}
		return nil
	})
	return replaced, err
}

func (r *repoPG) DeleteDate(ctx context.Context, date time.Time) (int64, []Import, error) {
	var (
		n       int64
		removed []Import
	)
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		tag, err := tx.Exec(ctx, `DELETE FROM bed_snapshot WHERE reference_date = $1`, date)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		removed, err = r.deleteImports(ctx, tx, date)
		return err
	})
	return n, removed, err
}

func (r *repoPG) MoveDate(ctx context.Context, from, to time.Time) (int64, []Import, error) {
	var (
		n        int64
		replaced []Import
	)
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		if _, err := tx.Exec(ctx, `DELETE FROM bed_snapshot WHERE reference_date = $1`, to); err != nil {
			return err
		}
		var err error
		if replaced, err = r.deleteImports(ctx, tx, to); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE bed_snapshot SET reference_date = $2 WHERE reference_date = $1`, from, to)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		if n == 0 {
			return ErrNoData
		}
		_, err = tx.Exec(ctx, `UPDATE snapshot_import SET reference_date = $2 WHERE reference_date = $1`, from, to)
		return err
	})
	return n, replaced, err
}
