// Package store manages the OpenFleet database layer.
// It initializes GORM with SQLite and exposes typed queries for the
// fleet engine and the HTTP API.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/vesaa/openfleet/internal/config"
	"github.com/vesaa/openfleet/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Sentinel errors surfaced to callers; the HTTP layer maps these to
// response codes.
var (
	ErrNotFound       = errors.New("record not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrDuplicateGrant = errors.New("access grant already exists")
	ErrLastAdmin      = errors.New("cannot remove the last admin user")
)

// Store wraps the GORM handle with domain queries.
type Store struct {
	db *gorm.DB
}

// Open opens the database and runs AutoMigrate for all models.
func Open(cfg *config.Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported db_driver %q (use 'sqlite')", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory database; used by tests and demos.
func OpenMemory() (*Store, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	err := s.db.AutoMigrate(
		&models.User{},
		&models.Server{},
		&models.ServerAccess{},
		&models.HealthMetric{},
		&models.SpeedTest{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Ping verifies the database connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
