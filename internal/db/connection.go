package db

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/fefal-etl/internal/config"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Connection holds the database connection
type Connection struct {
	DB     *sqlx.DB
	Driver string
}

// DriverFor picks the driver for a DSN: postgres URLs and key=value strings
// use lib/pq, everything else is treated as a SQLite path
func DriverFor(dsn string) (driver, source string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"),
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname="):
		return "postgres", dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite://")
	case strings.HasPrefix(dsn, "sqlite:"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite:")
	default:
		return "sqlite", dsn
	}
}

// Open connects to dsn and verifies the connection
func Open(dsn string) (*Connection, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("empty database dsn")
	}
	driver, source := DriverFor(dsn)

	db, err := sqlx.Connect(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// one writer; in-memory databases are per connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
	}

	return &Connection{DB: db, Driver: driver}, nil
}

// NewConnection opens the database named by DATABASE_URL, or builds a
// postgres DSN from the PG* variables
func NewConnection() (*Connection, error) {
	if dsn := config.GetEnv("DATABASE_URL", ""); dsn != "" {
		return Open(dsn)
	}
	return Open(PostgresDSNFromEnv())
}

// PostgresDSNFromEnv builds a key=value DSN from PGHOST, PGPORT and friends
func PostgresDSNFromEnv() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.GetEnv("PGHOST", "localhost"),
		config.GetEnv("PGPORT", "5432"),
		config.GetEnv("PGUSER", "postgres"),
		config.GetEnv("PGPASSWORD", ""),
		config.GetEnv("PGDATABASE", "sii"),
		config.GetEnv("PGSSLMODE", "disable"))
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.DB.Close()
}
