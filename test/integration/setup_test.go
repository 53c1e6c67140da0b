//go:build integration

// Package integration runs the repositories against a real Postgres. Set
// TEST_DATABASE_URL to reuse a server; otherwise a throwaway container is
// started with Docker.
package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/platform/db"
)

var globalPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	pool, cleanup, err := setupDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up database: %v\n", err)
		os.Exit(1)
	}

	globalPool = pool
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupDatabase(ctx context.Context) (*pgxpool.Pool, func(), error) {
	connStr := os.Getenv("TEST_DATABASE_URL")
	stop := func() {}
	if connStr == "" {
		var err error
		connStr, stop, err = startContainer(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	pool, err := db.NewPool(ctx, connStr, 4, 1)
	if err != nil {
		stop()
		return nil, nil, err
	}
	if _, err := db.NewMigrator(pool, findMigrationsDir()).Up(ctx); err != nil {
		pool.Close()
		stop()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return pool, func() {
		pool.Close()
		stop()
	}, nil
}

// findMigrationsDir locates the migrations directory relative to this file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// resetTables empties both tables before a test.
func resetTables(t *testing.T) {
	t.Helper()
	if _, err := globalPool.Exec(context.Background(), "TRUNCATE bed_snapshot, snapshot_import"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func bed(date time.Time, ward int, bedID, clinic string, st snapshot.Status) snapshot.Row {
	return snapshot.Row{ReferenceDate: date, WardCode: ward, Bed: bedID, WardName: clinic, Status: st, StatusRaw: string(st)}
}

func patient(r snapshot.Row, mr, name string, age int, admission time.Time) snapshot.Row {
	r.MedicalRecord = mr
	r.PatientName = name
	r.Age = ptr(age)
	r.AdmissionDate = ptr(admission)
	return r
}
