package occupancy

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/platform/db"
	"github.com/joabeoliveira/ocupacao/internal/platform/predicate"
)

type repoPG struct {
	snapshot.Repository
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{Repository: snapshot.NewRepo(pool), pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) grouped(ctx context.Context, keyExpr string, keyArgs []interface{}, preds predicate.Set) ([]Group, error) {
	where, args := preds.BuildFrom(len(keyArgs) + 1)
	if where != "" {
		where = "WHERE " + where
	}
	sql := fmt.Sprintf(`
		SELECT g.key, %s
		FROM (SELECT %s AS key, status FROM bed_snapshot %s) g
		WHERE g.key IS NOT NULL
		GROUP BY g.key
		ORDER BY g.key`, snapshot.CountsSelect, keyExpr, where)

	rows, err := r.conn(ctx).Query(ctx, sql, append(keyArgs, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Group
	for rows.Next() {
		var g Group
		dest := append([]interface{}{&g.Key}, snapshot.CountsDest(&g.Counts)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *repoPG) ByMonth(ctx context.Context, preds predicate.Set) ([]Group, error) {
	return r.grouped(ctx, `to_char(reference_date, 'YYYY-MM')`, nil, preds)
}

func (r *repoPG) ByClinic(ctx context.Context, preds predicate.Set) ([]Group, error) {
	return r.grouped(ctx, `NULLIF(ward_name, '')`, nil, preds)
}

// buildingCase renders a CASE mapping ward_code to its building code, with
// every bound passed as an argument.
func buildingCase(buildings snapshot.Buildings) (string, []interface{}) {
	var (
		b    strings.Builder
		args []interface{}
	)
	b.WriteString("CASE")
	for _, br := range buildings {
		n := len(args)
		fmt.Fprintf(&b, " WHEN ward_code BETWEEN $%d AND $%d THEN $%d::text", n+1, n+2, n+3)
		args = append(args, br.Min, br.Max, fmt.Sprint(br.Code))
	}
	b.WriteString(" END")
	return b.String(), args
}

func (r *repoPG) ByBuilding(ctx context.Context, preds predicate.Set, buildings snapshot.Buildings) ([]Group, error) {
	if len(buildings) == 0 {
		return nil, nil
	}
	expr, args := buildingCase(buildings)
	groups, err := r.grouped(ctx, expr, args, preds)
	if err != nil {
		return nil, fmt.Errorf("group by building: %w", err)
	}
	return groups, nil
}
