package helpers

import (
	"testing"

	"gorm.io/gorm"

	"github.com/simcore/simcore/internal/infrastructure/database"
)

// NewTestDB creates a new SQLite in-memory database for testing, migrated
// for every snapshot model.
func NewTestDB(t *testing.T) *gorm.DB {
	db, err := database.NewTestConnection()
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if t != nil {
		t.Cleanup(func() {
			database.Close(db)
		})
	}

	return db
}
