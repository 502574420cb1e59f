package session

import (
	"errors"
	"time"

	"github.com/alexedwards/scs/gormstore"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"gorm.io/gorm"
)

const cleanupInterval = 5 * time.Minute

func NewMemoryStore() scs.Store {
	return memstore.NewWithCleanupInterval(cleanupInterval)
}

// NewDatabaseStore keeps sessions in the "sessions" table, creating it if needed.
func NewDatabaseStore(db *gorm.DB) (*gormstore.GORMStore, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	return gormstore.NewWithCleanupInterval(db, cleanupInterval)
}
