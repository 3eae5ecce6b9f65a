package database

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/civictrack/civictrack/internal/shared/biztime"
	"github.com/civictrack/civictrack/internal/shared/config"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	slowQueryThreshold = 200 * time.Millisecond
)

var (
	db    *gorm.DB
	dbLog logger.Interface = logger.NewNopLogger()
	dbMu  sync.RWMutex
)

// Init opens the shared connection returned by Get.
func Init(cfg *config.DatabaseConfig, log logger.Interface) error {
	database, err := Open(cfg, log)
	if err != nil {
		return err
	}

	dbMu.Lock()
	db = database
	dbLog = log
	dbMu.Unlock()

	if driverOf(cfg) == DriverSQLite {
		log.Infow("database connection established", "driver", DriverSQLite, "path", cfg.Path)
	} else {
		log.Infow("database connection established", "driver", DriverMySQL, "host", cfg.Host, "database", cfg.Database)
	}
	return nil
}

// Open connects with the configured driver. Timestamps are written in UTC
// through biztime; SLA deadlines and daily report numbering depend on it.
func Open(cfg *config.DatabaseConfig, log logger.Interface) (*gorm.DB, error) {
	driver := driverOf(cfg)

	var dialector gorm.Dialector
	switch driver {
	case DriverMySQL:
		dialector = mysql.New(mysql.Config{
			DSN:                       cfg.GetDSN(),
			SkipInitializeWithVersion: true,
		})
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite driver needs database.path")
		}
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	database, err := gorm.Open(dialector, &gorm.Config{
		Logger:      NewGormLogger(log.Named("gorm"), slowQueryThreshold),
		PrepareStmt: driver == DriverMySQL,
		NowFunc:     biztime.NowUTC,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if driver == DriverSQLite {
		// one writer; an in-memory database also lives on a single connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return database, nil
}

func driverOf(cfg *config.DatabaseConfig) string {
	if cfg.Driver == "" {
		return DriverMySQL
	}
	return strings.ToLower(cfg.Driver)
}

func Get() *gorm.DB {
	dbMu.RLock()
	defer dbMu.RUnlock()
	return db
}

func Close() error {
	dbMu.Lock()
	currentDB, log := db, dbLog
	db = nil
	dbMu.Unlock()

	if currentDB == nil {
		return nil
	}

	sqlDB, err := currentDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	log.Infow("database connection closed")
	return nil
}
