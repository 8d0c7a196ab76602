package database

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate brings the schema up to date. Each pending .up.sql file runs
// inside its own transaction and is recorded in schema_migrations, so
// calling Migrate on an already-current database does nothing.
func Migrate(database *sql.DB) error {
	if _, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("preparing schema_migrations: %w", err)
	}

	applied, err := appliedVersions(database)
	if err != nil {
		return err
	}
	names, err := upMigrationNames()
	if err != nil {
		return err
	}

	for _, name := range names {
		version := migrationVersion(name)
		if applied[version] {
			continue
		}
		if err := applyMigration(database, name, version); err != nil {
			return err
		}
		slog.Info("schema migrated", "version", version, "file", name)
	}
	return nil
}

func appliedVersions(database *sql.DB) (map[int]bool, error) {
	rows, err := database.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("listing applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scanning migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func upMigrationNames() ([]string, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func applyMigration(database *sql.DB, name string, version int) error {
	script, err := migrationFiles.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("loading migration %s: %w", name, err)
	}

	transaction, err := database.Begin()
	if err != nil {
		return fmt.Errorf("starting migration %s: %w", name, err)
	}
	if _, err := transaction.Exec(string(script)); err != nil {
		transaction.Rollback()
		return fmt.Errorf("applying migration %s: %w", name, err)
	}
	if _, err := transaction.Exec(
		"INSERT INTO schema_migrations (version) VALUES (?)", version,
	); err != nil {
		transaction.Rollback()
		return fmt.Errorf("recording migration %s: %w", name, err)
	}
	return transaction.Commit()
}

// migrationVersion reads the numeric prefix of a migration file name,
// e.g. 3 from "003_add_index.up.sql".
func migrationVersion(name string) int {
	var version int
	fmt.Sscanf(name, "%d_", &version)
	return version
}
