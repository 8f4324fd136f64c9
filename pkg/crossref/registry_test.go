package crossref_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ensemble-maestro/swarm/pkg/crossref"
	"github.com/ensemble-maestro/swarm/pkg/models"
	testdb "github.com/ensemble-maestro/swarm/test/database"
)

// failingGraphStore fails Create unconditionally, to exercise Registry's
// compensating-delete path when the graph write fails.
type failingGraphStore struct{}

func (failingGraphStore) Create(context.Context, string, string) (string, error) {
	return "", errors.New("graph store unavailable")
}
func (failingGraphStore) Delete(context.Context, string) error         { return nil }
func (failingGraphStore) Exists(context.Context, string) (bool, error) { return false, nil }

// failingSearchIndex fails Create unconditionally, to exercise Registry's
// compensating-delete path when the search write fails after the graph
// write already succeeded.
type failingSearchIndex struct{}

func (failingSearchIndex) Create(context.Context, string, string) (string, error) {
	return "", errors.New("search index unavailable")
}
func (failingSearchIndex) Delete(context.Context, string) error         { return nil }
func (failingSearchIndex) Exists(context.Context, string) (bool, error) { return false, nil }

func TestRegistry_Create_RoundTrip(t *testing.T) {
	st := testdb.NewTestStore(t)
	reg := crossref.New(st.CrossReferences, crossref.NewMemoryGraphStore(), crossref.NewMemorySearchIndex())

	cr, err := reg.Create(context.Background(), models.EntityTypeCodeUnit, "sql-row-1")
	require.NoError(t, err)
	assert.NotEmpty(t, cr.PrimaryID)
	assert.NotEmpty(t, cr.GraphID)
	assert.NotEmpty(t, cr.SearchID)
	assert.Equal(t, models.CrossReferenceStatusActive, cr.Status)

	got, err := reg.Get(context.Background(), cr.PrimaryID)
	require.NoError(t, err)
	assert.Equal(t, cr.GraphID, got.GraphID)
	assert.Equal(t, cr.IntegrityHash, got.IntegrityHash)
}

func TestRegistry_Create_GraphFailureRollsBackRow(t *testing.T) {
	st := testdb.NewTestStore(t)
	reg := crossref.New(st.CrossReferences, failingGraphStore{}, crossref.NewMemorySearchIndex())

	cr, err := reg.Create(context.Background(), models.EntityTypeFunctionSpec, "sql-row-2")
	require.Error(t, err)
	assert.ErrorIs(t, err, crossref.ErrGraphCreateFailed)
	require.Nil(t, cr)

	orphans, err := reg.FindOrphans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orphans, "the compensating rollback must delete the row, leaving nothing orphaned")
}

func TestRegistry_Create_SearchFailureRollsBackGraphAndRow(t *testing.T) {
	st := testdb.NewTestStore(t)
	graph := crossref.NewMemoryGraphStore()
	reg := crossref.New(st.CrossReferences, graph, failingSearchIndex{})

	_, err := reg.Create(context.Background(), models.EntityTypeDesignerOutput, "sql-row-3")
	require.Error(t, err)
	assert.ErrorIs(t, err, crossref.ErrSearchCreateFailed)
}

func TestRegistry_Validate_DetectsOrphan(t *testing.T) {
	st := testdb.NewTestStore(t)
	graph := crossref.NewMemoryGraphStore()
	search := crossref.NewMemorySearchIndex()
	reg := crossref.New(st.CrossReferences, graph, search)

	cr, err := reg.Create(context.Background(), models.EntityTypeProject, "sql-row-4")
	require.NoError(t, err)

	require.NoError(t, graph.Delete(context.Background(), cr.GraphID))

	result, err := reg.Validate(context.Background(), cr.PrimaryID)
	require.NoError(t, err)
	assert.True(t, result.HasOrphanedReferences)
	assert.False(t, result.GraphResolved)
	assert.True(t, result.SearchResolved)
}

func TestRegistry_CleanupOrphans_MarksPartiallyOrphaned(t *testing.T) {
	st := testdb.NewTestStore(t)
	graph := crossref.NewMemoryGraphStore()
	search := crossref.NewMemorySearchIndex()
	reg := crossref.New(st.CrossReferences, graph, search)

	cr, err := reg.Create(context.Background(), models.EntityTypeCodeUnit, "sql-row-5")
	require.NoError(t, err)
	require.NoError(t, graph.Delete(context.Background(), cr.GraphID))

	require.NoError(t, reg.CleanupOrphans(context.Background(), []*models.CrossReference{cr}))

	got, err := reg.Get(context.Background(), cr.PrimaryID)
	require.NoError(t, err)
	assert.Equal(t, models.CrossReferenceStatusPartiallyOrphan, got.Status)
}

func TestRegistry_Delete_RemovesRow(t *testing.T) {
	st := testdb.NewTestStore(t)
	reg := crossref.New(st.CrossReferences, crossref.NewMemoryGraphStore(), crossref.NewMemorySearchIndex())

	cr, err := reg.Create(context.Background(), models.EntityTypeProject, "sql-row-6")
	require.NoError(t, err)

	require.NoError(t, reg.Delete(context.Background(), cr.PrimaryID))

	_, err = reg.Get(context.Background(), cr.PrimaryID)
	assert.ErrorIs(t, err, crossref.ErrNotFound)
}
