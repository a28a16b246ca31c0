package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"agri-price-tracker/internal/models"
)

// Driver names returned by DriverFor.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DriverFor picks the backend from the DSN shape.
func DriverFor(databaseURL string) string {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(databaseURL, "sqlite://"),
		strings.HasPrefix(databaseURL, "file:"),
		strings.HasSuffix(databaseURL, ".db"),
		databaseURL == ":memory:":
		return DriverSQLite
	}
	return DriverMySQL
}

func dialectorFor(databaseURL string) (gorm.Dialector, string, error) {
	driver := DriverFor(databaseURL)
	switch driver {
	case DriverPostgres:
		return postgres.Open(databaseURL), driver, nil
	case DriverSQLite:
		dsn := strings.TrimPrefix(databaseURL, "sqlite://")
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if dir := filepath.Dir(dsn); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, driver, fmt.Errorf("failed to create database directory: %w", err)
				}
			}
		}
		return sqlite.Open(dsn), driver, nil
	}
	return mysql.Open(databaseURL), driver, nil
}

// Initialize opens the database named by databaseURL and migrates the schema.
func Initialize(databaseURL string, log *logrus.Logger) (*gorm.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	dialector, driver, err := dialectorFor(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if driver == DriverSQLite {
		// one writer; an in-memory database lives as long as its last connection
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.WithField("driver", driver).Info("database initialized")
	return db, nil
}

// Migrate creates or updates the four tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.PriceRow{},
		&models.MonthlyTrendPoint{},
		&models.YearlyTrendPoint{},
		&models.CollectionRun{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
