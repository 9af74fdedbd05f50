package datastore

import (
	"fmt"

	"github.com/tphakala/fruitcount-go/internal/conf"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQLStore implements the request store for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	cfg := &settings.Output.MySQL
	switch {
	case cfg.Host == "":
		return validationError("mysql host is empty", "output.mysql.host", "")
	case cfg.Port == "":
		return validationError("mysql port is empty", "output.mysql.port", "")
	case cfg.Database == "":
		return validationError("mysql database name is empty", "output.mysql.database", "")
	case cfg.Username == "":
		return validationError("mysql username is empty", "output.mysql.username", "")
	}
	return nil
}

// Open sets up the MySQL database connection and runs auto-migration.
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		store.Settings.Output.MySQL.Username, store.Settings.Output.MySQL.Password,
		store.Settings.Output.MySQL.Host, store.Settings.Output.MySQL.Port,
		store.Settings.Output.MySQL.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: store.createGormLogger()})
	if err != nil {
		return criticalError(err, "open", "mysql_open_failed",
			"host", store.Settings.Output.MySQL.Host,
			"port", store.Settings.Output.MySQL.Port,
			"database", store.Settings.Output.MySQL.Database)
	}

	store.DB = db
	store.log.Info("MySQL database opened",
		"host", store.Settings.Output.MySQL.Host,
		"database", store.Settings.Output.MySQL.Database)
	return performAutoMigration(db, store.Settings.Debug, "MySQL", store.Settings.Output.MySQL.Database)
}

// Close closes the underlying MySQL connections.
func (store *MySQLStore) Close() error {
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
		store.log.Debug("MySQL database connection closed")
	}
	return nil
}
