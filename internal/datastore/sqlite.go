package datastore

import (
	"fmt"
	"path/filepath"

	"github.com/tphakala/fruitcount-go/internal/conf"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements the request store for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Output.SQLite.Path == "" {
		return validationError("sqlite database path is empty", "output.sqlite.path", "")
	}
	return nil
}

// Open sets up the SQLite database connection and runs auto-migration.
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}

	dir, fileName := filepath.Split(store.Settings.Output.SQLite.Path)
	basePath := conf.GetBasePath(dir)
	absoluteFilePath := filepath.Join(basePath, fileName)

	// Build DSN with recommended SQLite pragmas for concurrent writers
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", absoluteFilePath)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: store.createGormLogger()})
	if err != nil {
		return criticalError(err, "open", "sqlite_open_failed",
			"path", absoluteFilePath)
	}

	store.DB = db
	store.log.Info("SQLite database opened", "path", absoluteFilePath)
	return performAutoMigration(db, store.Settings.Debug, "SQLite", absoluteFilePath)
}

// Close closes the underlying SQLite connection.
func (store *SQLiteStore) Close() error {
	if store.DB == nil {
		return nil
	}

	sqlDB, err := store.DB.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}

	if store.Settings.Debug {
		store.log.Debug("SQLite database connection closed")
	}
	return nil
}
