package los

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
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

func (r *repoPG) LatestDate(ctx context.Context, preds predicate.Set) (*time.Time, error) {
	where, args := preds.Where()
	var d *time.Time
	if err := r.conn(ctx).QueryRow(ctx, `SELECT MAX(reference_date) FROM bed_snapshot `+where, args...).Scan(&d); err != nil {
		return nil, err
	}
	return d, nil
}

// OccupiedStatus restricts a query to occupied beds.
var OccupiedStatus = predicate.Eq{Column: snapshot.ColStatus, Value: string(snapshot.StatusOccupied)}

func (r *repoPG) OccupiedRows(ctx context.Context, preds predicate.Set) ([]snapshot.Row, error) {
	where, args := preds.With(OccupiedStatus).Where()
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT reference_date, ward_code, bed, COALESCE(ward_name, ''),
			COALESCE(patient_name, ''), COALESCE(medical_record, ''), COALESCE(cns, ''),
			COALESCE(sex, ''), age, admission_date
		FROM bed_snapshot `+where+`
		ORDER BY reference_date, ward_code, bed`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []snapshot.Row
	for rows.Next() {
		var row snapshot.Row
		if err := rows.Scan(&row.ReferenceDate, &row.WardCode, &row.Bed, &row.WardName,
			&row.PatientName, &row.MedicalRecord, &row.CNS,
			&row.Sex, &row.Age, &row.AdmissionDate); err != nil {
			return nil, err
		}
		row.Status = snapshot.StatusOccupied
		out = append(out, row)
	}
	return out, rows.Err()
}
