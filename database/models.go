// Package database provides database connection management for the trading
// experiment platform.
//
// This package includes:
//   - Connection management: a pooled database/sql connection (lib/pq) wrapped
//     by GORM for model-level access
//   - Schema initialization, including the constraints that cannot be expressed
//     through AutoMigrate (the "one incomplete session per participant" partial
//     unique index)
//   - Researcher/admin overview queries
//
// Data models (User, Stock, PriceRow, ExperimentStock, ExperimentSession,
// ExperimentDecision) are defined in the models_pkg package to avoid circular
// import dependencies. Per-aggregate stores live in the sessions, catalog, and
// users subpackages.
package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	models "tradelab/database/models_pkg"
)

// Database holds the GORM database connection and provides access to the
// underlying DB instance. It is the central connection point for all stores.
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance for direct access when needed.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Connect opens the pooled connection and layers GORM on top of it
func Connect(cfg Config) (*Database, error) {
	sqlDB, err := openSQL(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Silent logging for production
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ============================================================================
// Type Aliases
// ============================================================================

// Aliases so that callers holding a *database.Database do not also have to
// import models_pkg for the common record types.

type User = models.User
type Stock = models.Stock
type PriceRow = models.PriceRow
type ExperimentStock = models.ExperimentStock
type ExperimentSession = models.ExperimentSession
type ExperimentDecision = models.ExperimentDecision
