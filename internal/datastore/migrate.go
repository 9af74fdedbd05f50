package datastore

import (
	"time"

	"gorm.io/gorm"
)

// performAutoMigration creates or updates the requests table schema.
// connectionInfo is the database path for SQLite or the database name for
// MySQL, used only for log context.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	migrationStart := time.Now()
	log := getLoggerSafe().With("db_type", dbType)

	if debug {
		log.Debug("Starting database migration", "database", connectionInfo)
	}

	tableExists := db.Migrator().HasTable(&Request{})

	if err := db.AutoMigrate(&Request{}); err != nil {
		enhancedErr := criticalError(err, "auto_migrate", "schema_migration_failed",
			"db_type", dbType,
			"table", "requests")
		log.Error("Table migration failed", "table", "requests", "error", enhancedErr)
		return enhancedErr
	}

	action := "updated"
	if !tableExists {
		action = "created"
	}

	// The model_name index is declared on the model; AutoMigrate creates it
	// with the table. Verify so a silently missing index shows up in logs.
	if !db.Migrator().HasIndex(&Request{}, "idx_requests_model_name") {
		log.Warn("Expected index missing after migration",
			"table", "requests",
			"index", "idx_requests_model_name")
	}

	log.Debug("Database migration completed",
		"table", "requests",
		"action", action,
		"duration", time.Since(migrationStart))

	return nil
}
