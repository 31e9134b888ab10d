package persistence

import (
	"fmt"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/config"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/logger"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the relational backend selected in cfg.Store
func NewDatabase(cfg *config.Config, log *zap.Logger) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		dialector = postgres.Open(cfg.Database.DSN())
	case config.BackendSQLite:
		dialector = sqlite.Open(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("store backend %q is not relational", cfg.Store.Backend)
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.GormMode),
		logger.WithSlowThreshold(cfg.Telemetry.SlowQueryThreshold))
	db, err := Open(dialector, gormLog)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.Store.Backend == config.BackendSQLite {
		// SQLite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.Database.ConnMaxIdleTime) * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Open wraps an already configured dialector
func Open(dialector gorm.Dialector, log gormlogger.Interface) (*Database, error) {
	if log == nil {
		log = gormlogger.Default.LogMode(gormlogger.Silent)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 log,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Database{DB: db}, nil
}

// AutoMigrate creates the documents table. Postgres deployments use the
// versioned migrations instead; this is for SQLite files and tests.
func (d *Database) AutoMigrate() error {
	return d.DB.AutoMigrate(&models.DocumentModel{})
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Stats returns database connection pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}

// LedgerStore exposes the ledger collections on this database
func (d *Database) LedgerStore() *ledger.Store {
	return NewGormLedgerStore(d.DB)
}
