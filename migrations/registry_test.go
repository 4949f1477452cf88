package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	registrar "github.com/goliatone/go-webhook-registrar"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestWebhookRegistrationsMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := registrar.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/0001_webhook_registrations.up.sql",
		"data/sql/migrations/0001_webhook_registrations.down.sql",
		"data/sql/migrations/sqlite/0001_webhook_registrations.up.sql",
		"data/sql/migrations/sqlite/0001_webhook_registrations.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteWebhookRegistrationsMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-webhook-registrations?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := registrar.GetMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	if err := execSQLMigration(
		context.Background(),
		db,
		sqliteMigrations,
		"0001_webhook_registrations.up.sql",
	); err != nil {
		t.Fatalf("apply webhook registrations migration up: %v", err)
	}

	insertStatement := `
		INSERT INTO webhook_registrations (
			id,
			provider_code,
			remote_webhook_id,
			callback_url,
			status,
			last_error,
			metadata,
			created_at,
			updated_at,
			deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(
		context.Background(),
		insertStatement,
		"reg_live",
		"vipps",
		"wh_1",
		"https://app.example/payment/vipps/webhook",
		"registered",
		"",
		"{}",
		"2026-01-01T00:00:00Z",
		"2026-01-01T00:00:00Z",
		nil,
	); err != nil {
		t.Fatalf("insert live registration: %v", err)
	}

	if _, err := db.ExecContext(
		context.Background(),
		insertStatement,
		"reg_dup",
		"vipps",
		"wh_2",
		"https://app.example/payment/vipps/webhook",
		"registered",
		"",
		"{}",
		"2026-02-01T00:00:00Z",
		"2026-02-01T00:00:00Z",
		nil,
	); err == nil {
		t.Fatalf("expected live uniqueness violation for duplicate provider code")
	}

	if _, err := db.ExecContext(
		context.Background(),
		insertStatement,
		"reg_soft_deleted",
		"vipps",
		"wh_old",
		"https://app.example/payment/vipps/webhook",
		"unregistered",
		"",
		"{}",
		"2025-12-01T00:00:00Z",
		"2025-12-01T00:00:00Z",
		"2025-12-31T00:00:00Z",
	); err != nil {
		t.Fatalf("expected soft deleted row to bypass live uniqueness: %v", err)
	}

	if err := execSQLMigration(
		context.Background(),
		db,
		sqliteMigrations,
		"0001_webhook_registrations.down.sql",
	); err != nil {
		t.Fatalf("apply webhook registrations migration down: %v", err)
	}

	var tableCount int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		"webhook_registrations",
	).Scan(&tableCount); err != nil {
		t.Fatalf("query sqlite_master after down migration: %v", err)
	}
	if tableCount != 0 {
		t.Fatalf("expected webhook_registrations to be dropped after down migration")
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
