package store

import (
	"context"
	"fmt"
)

// Healthcheck pings the database. The /health/ready endpoint calls this
// on every probe.
func (s *GORMStore) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database connection pool.
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

var _ Store = (*GORMStore)(nil)
