package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// InitSQLite opens a file backed database for local development. A path of
// ":memory:" or one starting with "file:" is passed through untouched.
func InitSQLite(path string) (*gorm.DB, *sql.DB, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_foreign_keys=on"
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// sqlite serializes writers; one connection avoids "database is locked"
	sqlDB.SetMaxOpenConns(1)
	log.Info().Str("path", path).Msg("SQLite database opened")
	return db, sqlDB, nil
}
