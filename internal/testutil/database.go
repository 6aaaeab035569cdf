package testutil

import (
	"testing"

	"feed-go/internal/database"
)

// NewTestSQLiteSubstrate creates an in-memory SQLite substrate with the schema
// migrated. It is closed automatically when the test completes.
func NewTestSQLiteSubstrate(t *testing.T) *database.SQLiteSubstrate {
	t.Helper()

	s, err := database.NewSQLiteSubstrate(":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite substrate: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}
