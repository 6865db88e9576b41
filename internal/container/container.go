package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gorla/adapters/excel"
	"gorla/adapters/postgres"
	"gorla/app"
	"gorla/internal"
	"gorla/internal/config"
	"gorla/internal/errors"
	"gorla/ports"
)

// Container holds the verifier dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Adapters
	Tables ports.TableSource
	Ledger *postgres.AuditRepository

	// Services
	AuditService *app.AuditService
}

// New creates a container with the table source in place. The ledger is
// optional and attached by InitWithDatabase.
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))

	excelConfig := excel.DefaultExcelConfig()
	if cfg.Input.Sheet != "" {
		excelConfig.Sheet = cfg.Input.Sheet
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
		Tables: excel.NewSource(excelConfig, logger),
	}
	c.initServices()
	return c, nil
}

// InitWithDatabase connects the configured ledger, migrates its schema and
// rebuilds the services so every round is recorded. It does nothing when no
// ledger URL is configured.
func (c *Container) InitWithDatabase(ctx context.Context) error {
	if c.Config.Ledger.URL == "" {
		return nil
	}

	db, err := postgres.Open(ctx, c.Config.Ledger.Driver, c.Config.Ledger.URL)
	if err != nil {
		return errors.DatabaseError("failed to open audit ledger", err)
	}
	if err := postgres.NewMigrator(db).Up(ctx); err != nil {
		db.Close()
		return errors.DatabaseError("failed to migrate audit ledger", err)
	}

	c.DB = db
	c.Ledger = postgres.NewAuditRepository(db)
	c.initServices()

	c.Logger.Debug("audit ledger attached", "driver", postgres.DetectDriver(c.Config.Ledger.Driver, c.Config.Ledger.URL))
	return nil
}

func (c *Container) initServices() {
	// a nil *AuditRepository must not become a non-nil interface
	var ledger ports.LedgerWriterPort
	if c.Ledger != nil {
		ledger = c.Ledger
	}
	c.AuditService = app.NewAuditService(c.Tables, ledger, c.Logger)
}

// Shutdown releases the database connection
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
