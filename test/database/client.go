// Package database provides test database helpers backed by testcontainers.
package database

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memora-app/memora/pkg/database"
	"github.com/memora-app/memora/test/util"
)

// NewTestClient creates a test database client.
// In CI (when CI_DATABASE_URL is set): connects to external PostgreSQL service container.
// In local dev: spins up a pgvector testcontainer.
// The schema and connections are cleaned up automatically when the test ends.
func NewTestClient(t *testing.T) *database.Client {
	t.Helper()
	return database.NewClientFromPool(NewTestPool(t))
}

// NewTestPool returns a migrated, schema-isolated pool for tests that work
// with pgx directly.
func NewTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	return util.SetupTestPool(t)
}
