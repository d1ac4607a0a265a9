package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/arbsim/ledgerd/internal/config"
	"github.com/arbsim/ledgerd/internal/logging"
	_ "github.com/mattn/go-sqlite3"
)

// Database abstracts the PostgreSQL and SQLite connections. All ledger
// operations go through this interface so the engine stays driver-agnostic.
type Database interface {
	DBPool
	Close() error
	IsReady() bool
	HealthCheck(ctx context.Context) error
}

// NewConnection creates a database connection based on the configured driver.
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig) (Database, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite", "sqlite3":
		path := cfg.SQLitePath
		if path == "" {
			path = "ledgerd.db"
		}
		logging.Infof("Connecting to SQLite database: %s", path)
		return NewSQLiteConnection(path)

	case "postgres", "postgresql":
		logging.Infof("Connecting to PostgreSQL database: %s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.DBName)
		return NewPostgresConnection(ctx, cfg)

	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres)", driver)
	}
}
