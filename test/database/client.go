// Package database provides test helpers that stand up an isolated
// PostgreSQL schema per test, migrated with the same embedded SQL
// migrations pkg/database applies in production, and wrap it in a
// pkg/store.Store.
package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/ensemble-maestro/swarm/pkg/database"
	"github.com/ensemble-maestro/swarm/pkg/store"
	"github.com/ensemble-maestro/swarm/test/util"
)

// NewTestStore creates an isolated schema on the shared test database,
// migrates it, and returns a *store.Store over a fresh connection pool.
// The schema and pool are torn down via t.Cleanup.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	connStrWithSchema, schemaName := util.SetupTestSchema(t)

	require.NoError(t, database.MigrateDSN(connStrWithSchema, schemaName))

	pool, err := pgxpool.New(ctx, connStrWithSchema)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return store.New(pool)
}
