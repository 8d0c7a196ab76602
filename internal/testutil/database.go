package testutil

import (
	"database/sql"
	"testing"

	"github.com/magpie-software/pical/internal/database"
)

// NewTestDatabase returns an in-memory store with the full schema
// applied. It is closed automatically when the test finishes.
func NewTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	return db
}
