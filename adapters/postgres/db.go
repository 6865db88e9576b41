package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported ledger drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// sqlx only knows the cgo driver name
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DetectDriver picks a driver from the DSN when none is configured
func DetectDriver(driver, dsn string) string {
	if driver != "" {
		return driver
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Open connects to the ledger database and verifies the connection
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	driver = DetectDriver(driver, dsn)
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported ledger driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s ledger: %w", driver, err)
	}
	if driver == DriverSQLite {
		// a second connection to ":memory:" would see an empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s ledger: %w", driver, err)
	}
	return db, nil
}
