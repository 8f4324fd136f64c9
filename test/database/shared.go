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

// SharedTestDB is a single migrated schema shared by multiple independent
// store.Store replicas — useful for tests exercising concurrent claimers
// against pipeline_executions (ClaimPending's FOR UPDATE SKIP LOCKED path).
type SharedTestDB struct {
	connStrWithSchema string
}

// NewSharedTestDB creates a shared test schema and migrates it once.
// Call NewStore to create independent stores for each replica.
func NewSharedTestDB(t *testing.T) *SharedTestDB {
	t.Helper()

	connStrWithSchema, schemaName := util.SetupTestSchema(t)
	require.NoError(t, database.MigrateDSN(connStrWithSchema, schemaName))

	return &SharedTestDB{connStrWithSchema: connStrWithSchema}
}

// NewStore creates an independent *store.Store backed by a fresh
// connection pool to the shared schema. The pool is closed via t.Cleanup.
func (s *SharedTestDB) NewStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, s.connStrWithSchema)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return store.New(pool)
}
