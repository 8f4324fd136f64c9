// Package crossref implements the write-across-three-stores protocol used
// for every durable entity the pipeline produces: one row linking that
// entity's relational, graph, and search identities, kept in sync well
// enough that a crash mid-write leaves a row the orphan sweep can find and
// repair rather than a silently half-written entity.
package crossref

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ensemble-maestro/swarm/pkg/models"
	"github.com/ensemble-maestro/swarm/pkg/store"
)

// Registry is the Cross-Reference Registry (C2): it owns the sequencing of
// the relational insert, the graph-store write, and the search-index
// write, and the compensating deletes when one of the latter two fails.
type Registry struct {
	repo   *store.CrossReferenceRepo
	graph  GraphStore
	search SearchIndex
	log    *slog.Logger
}

// New builds a Registry over a persistence repo and the graph/search
// backends. Pass NewMemoryGraphStore()/NewMemorySearchIndex() for a
// single-process deployment without external graph/search clusters.
func New(repo *store.CrossReferenceRepo, graph GraphStore, search SearchIndex) *Registry {
	return &Registry{
		repo:   repo,
		graph:  graph,
		search: search,
		log:    slog.With("component", "crossref"),
	}
}

// Create allocates a primary id for one durable entity, persists its row in
// Active status, then writes the graph and search halves in turn. If either external
// write fails, Create deletes whatever ids were allocated (graph first,
// since it ran first) and the row itself, and returns the original error —
// matching spec.md's non-transactional three-store write protocol.
func (r *Registry) Create(ctx context.Context, entityType models.EntityType, sqlID string) (*models.CrossReference, error) {
	cr := &models.CrossReference{
		PrimaryID:  uuid.NewString(),
		EntityType: entityType,
		SQLID:      sqlID,
		Status:     models.CrossReferenceStatusActive,
	}
	cr.IntegrityHash = integrityHash(cr)
	if err := r.repo.Create(ctx, cr); err != nil {
		return nil, fmt.Errorf("create cross reference row: %w", err)
	}

	graphID, err := r.graph.Create(ctx, string(entityType), cr.PrimaryID)
	if err != nil {
		r.log.Warn("graph create failed, rolling back", "primary_id", cr.PrimaryID, "error", err)
		if delErr := r.repo.Delete(ctx, cr.PrimaryID); delErr != nil {
			r.log.Error("failed to delete row after graph create failure", "primary_id", cr.PrimaryID, "error", delErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrGraphCreateFailed, err)
	}
	cr.GraphID = graphID

	searchID, err := r.search.Create(ctx, string(entityType), cr.PrimaryID)
	if err != nil {
		r.log.Warn("search create failed, rolling back", "primary_id", cr.PrimaryID, "error", err)
		if delErr := r.graph.Delete(ctx, graphID); delErr != nil {
			r.log.Error("failed to delete graph node after search create failure", "primary_id", cr.PrimaryID, "error", delErr)
		}
		if delErr := r.repo.Delete(ctx, cr.PrimaryID); delErr != nil {
			r.log.Error("failed to delete row after search create failure", "primary_id", cr.PrimaryID, "error", delErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrSearchCreateFailed, err)
	}
	cr.SearchID = searchID

	cr.IntegrityHash = integrityHash(cr)
	if err := r.repo.Update(ctx, cr); err != nil {
		return nil, fmt.Errorf("update cross reference with final ids: %w", err)
	}
	return cr, nil
}

// Get retrieves a cross-reference by primary id.
func (r *Registry) Get(ctx context.Context, primaryID string) (*models.CrossReference, error) {
	cr, err := r.repo.Get(ctx, primaryID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, primaryID)
		}
		return nil, err
	}
	return cr, nil
}

// Update persists caller-supplied changes to a cross-reference's ids or
// metadata, recomputing the integrity hash per spec.md's P4 invariant.
func (r *Registry) Update(ctx context.Context, cr *models.CrossReference) error {
	cr.IntegrityHash = integrityHash(cr)
	if err := r.repo.Update(ctx, cr); err != nil {
		if err == store.ErrNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, cr.PrimaryID)
		}
		return err
	}
	return nil
}

// Delete removes a cross-reference from all three stores, externals first
// (best-effort — failures are logged, not fatal) and the source row last,
// so a crash mid-delete still leaves a row the orphan sweep can find.
func (r *Registry) Delete(ctx context.Context, primaryID string) error {
	cr, err := r.repo.Get(ctx, primaryID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil
		}
		return fmt.Errorf("get cross reference for delete: %w", err)
	}

	if cr.GraphID != "" {
		if err := r.graph.Delete(ctx, cr.GraphID); err != nil {
			r.log.Warn("graph delete failed during cross reference delete", "primary_id", primaryID, "error", err)
		}
	}
	if cr.SearchID != "" {
		if err := r.search.Delete(ctx, cr.SearchID); err != nil {
			r.log.Warn("search delete failed during cross reference delete", "primary_id", primaryID, "error", err)
		}
	}
	return r.repo.Delete(ctx, primaryID)
}

// ValidationResult reports whether each non-empty store id on a
// cross-reference still resolves.
type ValidationResult struct {
	PrimaryID             string
	SQLResolved           bool
	GraphResolved         bool
	SearchResolved        bool
	HasOrphanedReferences bool
}

// Validate checks each non-null external id on a cross-reference still
// resolves in its backing store, marking HasOrphanedReferences when any
// does not. SQL counts as resolved whenever an sqlId is recorded: pkg/crossref
// has no generic way to probe an arbitrary entity table, so the table itself
// is not checked.
func (r *Registry) Validate(ctx context.Context, primaryID string) (ValidationResult, error) {
	cr, err := r.Get(ctx, primaryID)
	if err != nil {
		return ValidationResult{}, err
	}

	result := ValidationResult{PrimaryID: primaryID, SQLResolved: cr.SQLID != ""}

	if cr.GraphID != "" {
		ok, err := r.graph.Exists(ctx, cr.GraphID)
		if err != nil {
			return ValidationResult{}, fmt.Errorf("check graph existence: %w", err)
		}
		result.GraphResolved = ok
	}
	if cr.SearchID != "" {
		ok, err := r.search.Exists(ctx, cr.SearchID)
		if err != nil {
			return ValidationResult{}, fmt.Errorf("check search existence: %w", err)
		}
		result.SearchResolved = ok
	}

	result.HasOrphanedReferences = !result.SQLResolved ||
		(cr.GraphID != "" && !result.GraphResolved) ||
		(cr.SearchID != "" && !result.SearchResolved)

	return result, nil
}

// FindOrphans returns every cross-reference not in Active status, across
// all entity types.
func (r *Registry) FindOrphans(ctx context.Context) ([]*models.CrossReference, error) {
	return r.repo.ListOrphans(ctx)
}

// CleanupOrphans validates each cross-reference in list and transitions its
// status: PartiallyOrphaned when only some stores resolve, Orphaned when
// none do, and back to Active when validation now finds everything intact
// (a sweep can race a slow background write). It never deletes a row
// outright — reclaiming an Orphaned row is the janitor pass spec.md leaves
// unspecified, so CleanupOrphans only marks, it does not reclaim.
func (r *Registry) CleanupOrphans(ctx context.Context, list []*models.CrossReference) error {
	for _, cr := range list {
		result, err := r.Validate(ctx, cr.PrimaryID)
		if err != nil {
			r.log.Warn("validate failed during orphan cleanup", "primary_id", cr.PrimaryID, "error", err)
			continue
		}

		var status models.CrossReferenceStatus
		switch {
		case !result.HasOrphanedReferences:
			status = models.CrossReferenceStatusActive
		case result.SQLResolved && (result.GraphResolved || cr.GraphID == "") && (result.SearchResolved || cr.SearchID == ""):
			status = models.CrossReferenceStatusActive
		case result.SQLResolved:
			status = models.CrossReferenceStatusPartiallyOrphan
		default:
			status = models.CrossReferenceStatusOrphaned
		}

		if status == cr.Status {
			continue
		}
		if err := r.repo.SetStatus(ctx, cr.PrimaryID, status); err != nil {
			r.log.Warn("set status failed during orphan cleanup", "primary_id", cr.PrimaryID, "error", err)
		}
	}
	return nil
}

// integrityHash computes sha256(primaryId|entityType|sqlId|graphId|searchId),
// spec.md's P4 invariant, recomputed on every id update.
func integrityHash(cr *models.CrossReference) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s|%s", cr.PrimaryID, cr.EntityType, cr.SQLID, cr.GraphID, cr.SearchID)))
	return hex.EncodeToString(sum[:])
}
