package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/metorm/groupBin/pkg/store/models"
)

// DatabaseType selects the metadata database backend.
type DatabaseType string

const (
	// DatabaseTypeSQLite is the single-node default.
	DatabaseTypeSQLite DatabaseType = "sqlite"

	// DatabaseTypePostgres runs against PostgreSQL.
	DatabaseTypePostgres DatabaseType = "postgres"
)

// SQLiteConfig locates the SQLite database file.
type SQLiteConfig struct {
	Path string
}

// PostgresConfig carries the PostgreSQL connection settings.
type PostgresConfig struct {
	Host         string
	Port         int
	Database     string
	User         string
	Password     string
	SSLMode      string // disable, require, verify-ca, verify-full
	MaxOpenConns int
	MaxIdleConns int
}

// DSN renders the settings as a libpq-style connection string.
func (c *PostgresConfig) DSN() string {
	parts := []string{
		"host=" + c.Host,
		fmt.Sprintf("port=%d", c.Port),
		"user=" + c.User,
		"password=" + c.Password,
		"dbname=" + c.Database,
	}
	if c.SSLMode != "" {
		parts = append(parts, "sslmode="+c.SSLMode)
	}
	return strings.Join(parts, " ")
}

// Config selects and configures the database backend.
type Config struct {
	Type     DatabaseType
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

// ApplyDefaults fills unset fields. The SQLite path has no default
// here; pkg/config derives it from the state directory.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}

	if c.Type == DatabaseTypePostgres {
		if c.Postgres.Port == 0 {
			c.Postgres.Port = 5432
		}
		if c.Postgres.SSLMode == "" {
			c.Postgres.SSLMode = "disable"
		}
		if c.Postgres.MaxOpenConns == 0 {
			c.Postgres.MaxOpenConns = 25
		}
		if c.Postgres.MaxIdleConns == 0 {
			c.Postgres.MaxIdleConns = 5
		}
	}
}

// Validate rejects configurations that cannot possibly connect.
func (c *Config) Validate() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case DatabaseTypePostgres:
		if c.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Postgres.Database == "" {
			return fmt.Errorf("postgres database is required")
		}
		if c.Postgres.User == "" {
			return fmt.Errorf("postgres user is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	return nil
}

// dialector builds the GORM driver for the configured backend. For
// SQLite it also creates the parent directory, since the driver will
// not.
func (c *Config) dialector() (gorm.Dialector, error) {
	switch c.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(c.SQLite.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL lets the reclamation worker read while a request writes;
		// busy_timeout retries a locked database for up to 5s.
		dsn := c.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		return sqlite.Open(dsn), nil

	case DatabaseTypePostgres:
		return postgres.Open(c.Postgres.DSN()), nil
	}
	return nil, fmt.Errorf("unsupported database type: %s", c.Type)
}

// GORMStore is the Store implementation over GORM, serving SQLite and
// PostgreSQL through the same queries.
type GORMStore struct {
	db *gorm.DB
}

// New opens the metadata database and migrates the schema.
func New(config *Config) (*GORMStore, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	dialector, err := config.dialector()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Cascades run explicitly inside the delete transactions; rows
		// orphaned by an interrupted delete are swept by reclamation.
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if config.Type == DatabaseTypePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	}

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	return &GORMStore{db: db}, nil
}

// DB exposes the underlying GORM handle for tests and ad hoc queries.
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// isUniqueConstraintError matches the unique violation wording of both
// backends; neither driver exposes a typed error for it.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// convertNotFoundError maps gorm.ErrRecordNotFound to the caller's
// domain error and passes everything else through.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}
