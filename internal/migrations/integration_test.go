//go:build integration

package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestRunnerAppliesAndRollsBackDatasetSchema(t *testing.T) {
	db := scratchDatabase(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	runner := NewRunner()
	applied, err := runner.Up(ctx, db, 0)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if applied != 2 {
		t.Fatalf("Up() applied = %d, want 2", applied)
	}
	if got := publicTables(t, db); got != "dataset,saved_chart" {
		t.Fatalf("tables after Up() = %q", got)
	}

	again, err := runner.Up(ctx, db, 0)
	if err != nil || again != 0 {
		t.Fatalf("second Up() = %d, %v; want 0, nil", again, err)
	}

	rolledBack, err := runner.Down(ctx, db, 1)
	if err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if rolledBack != 1 {
		t.Fatalf("Down() rolled back = %d, want 1", rolledBack)
	}
	if got := publicTables(t, db); got != "dataset" {
		t.Fatalf("tables after Down() = %q", got)
	}

	statuses, err := runner.Status(ctx, db)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(statuses) != 2 || !statuses[0].Applied || statuses[1].Applied {
		t.Fatalf("Status() = %+v", statuses)
	}
}

// scratchDatabase creates an empty database next to the one named in
// SHEETSENSE_TEST_CATALOG_DSN and drops it when the test ends.
func scratchDatabase(t *testing.T) *sql.DB {
	t.Helper()
	adminDSN := strings.TrimSpace(os.Getenv("SHEETSENSE_TEST_CATALOG_DSN"))
	if adminDSN == "" {
		t.Skip("SHEETSENSE_TEST_CATALOG_DSN is not set")
	}
	target, err := url.Parse(adminDSN)
	if err != nil {
		t.Fatalf("parse SHEETSENSE_TEST_CATALOG_DSN: %v", err)
	}
	if strings.TrimPrefix(target.Path, "/") == "" {
		t.Fatal("SHEETSENSE_TEST_CATALOG_DSN must name a database")
	}

	admin, err := sql.Open("pgx", adminDSN)
	if err != nil {
		t.Fatalf("open admin connection: %v", err)
	}
	name := fmt.Sprintf("sheetsense_migrate_%d", time.Now().UnixNano())
	if _, err := admin.Exec(`CREATE DATABASE ` + name); err != nil {
		_ = admin.Close()
		t.Fatalf("create %s: %v", name, err)
	}
	target.Path = "/" + name

	db, err := sql.Open("pgx", target.String())
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	t.Cleanup(func() {
		_ = db.Close()
		_, _ = admin.Exec(`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1`, name)
		if _, err := admin.Exec(`DROP DATABASE ` + name); err != nil {
			t.Errorf("drop %s: %v", name, err)
		}
		_ = admin.Close()
	})
	return db
}

func publicTables(t *testing.T, db *sql.DB) string {
	t.Helper()
	rows, err := db.Query(`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename <> $1 ORDER BY tablename`, migrationTable)
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan table name: %v", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("list tables: %v", err)
	}
	return strings.Join(names, ",")
}
