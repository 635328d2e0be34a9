package db

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

// setupMigrationTestDB opens a database without running any migrations.
func setupMigrationTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func embeddedFS(t *testing.T) fs.FS {
	t.Helper()
	migrationsFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS failed: %v", err)
	}
	return migrationsFS
}

func columnExists(t *testing.T, db *DB, table, column string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil {
		t.Fatalf("table_info(%s) failed: %v", table, err)
	}
	return n > 0
}

func TestLatestMigrationVersion(t *testing.T) {
	version, err := LatestMigrationVersion(embeddedFS(t))
	if err != nil {
		t.Fatalf("LatestMigrationVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("LatestMigrationVersion = %d, want 2", version)
	}

	if _, err := LatestMigrationVersion(fstest.MapFS{}); err == nil {
		t.Error("LatestMigrationVersion on an empty FS should fail")
	}
}

func TestMigrateUpDown(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := embeddedFS(t)

	version, dirty, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("fresh database at version %d dirty=%v, want 0 clean", version, dirty)
	}

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	// Already at latest.
	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("second MigrateUp failed: %v", err)
	}
	version, _, err = db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("version after up = %d, want 2", version)
	}
	if !columnExists(t, db, "reconstructions", "residual") {
		t.Error("reconstructions.residual missing after up")
	}

	if err := db.MigrateDown(migrationsFS); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	version, _, err = db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("version after down = %d, want 1", version)
	}
	if columnExists(t, db, "reconstructions", "residual") {
		t.Error("reconstructions.residual still present after down")
	}
	if !columnExists(t, db, "sessions", "session_id") {
		t.Error("sessions table missing after one step down")
	}
}

func TestGetMigrationsFS_DevMode(t *testing.T) {
	old := DevMode
	DevMode = true
	t.Cleanup(func() { DevMode = old })

	// Tests run from the package directory, where the repository-relative
	// path does not resolve.
	if _, err := os.Stat(MigrationsDir); err == nil {
		t.Skip("running from the repository root")
	}
	if _, err := getMigrationsFS(); err == nil {
		t.Error("getMigrationsFS in dev mode should fail without the migrations directory")
	}
}
