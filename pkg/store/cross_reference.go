package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ensemble-maestro/swarm/pkg/models"
)

// CrossReferenceRepo persists models.CrossReference rows — the generic
// registry pkg/crossref maintains for every durable entity the pipeline
// produces, one row per (entityType, primaryId) pair, linking that entity's
// SQL, graph, and search identities. No foreign key ties entity_type to any
// single table: a cross-reference for a Project and one for a CodeUnit live
// in the same table side by side.
type CrossReferenceRepo struct {
	pool *pgxpool.Pool
}

// Create inserts a cross-reference row in Active status; crossref.Registry
// calls it before the graph/search writes happen.
func (r *CrossReferenceRepo) Create(ctx context.Context, cr *models.CrossReference) error {
	if cr.PrimaryID == "" {
		cr.PrimaryID = uuid.NewString()
	}
	now := time.Now()
	cr.CreatedAt, cr.UpdatedAt = now, now
	if cr.Status == "" {
		cr.Status = models.CrossReferenceStatusActive
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO cross_references (primary_id, entity_type, sql_id, graph_id, search_id, status, integrity_hash, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		cr.PrimaryID, cr.EntityType, cr.SQLID, cr.GraphID, cr.SearchID, cr.Status, cr.IntegrityHash, cr.Metadata, cr.CreatedAt, cr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert cross reference: %w", err)
	}
	return nil
}

// Get retrieves a cross-reference by its primary id.
func (r *CrossReferenceRepo) Get(ctx context.Context, primaryID string) (*models.CrossReference, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT primary_id, entity_type, sql_id, graph_id, search_id, status, integrity_hash, metadata, created_at, updated_at
		FROM cross_references WHERE primary_id = $1`, primaryID)
	return scanCrossReference(row)
}

// Update rewrites a cross-reference's store ids, status, and integrity hash
// once a write or repair completes.
func (r *CrossReferenceRepo) Update(ctx context.Context, cr *models.CrossReference) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE cross_references
		SET sql_id = $2, graph_id = $3, search_id = $4, status = $5, integrity_hash = $6, metadata = $7, updated_at = now()
		WHERE primary_id = $1`,
		cr.PrimaryID, cr.SQLID, cr.GraphID, cr.SearchID, cr.Status, cr.IntegrityHash, cr.Metadata)
	if err != nil {
		return fmt.Errorf("update cross reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, cr.PrimaryID)
	}
	return nil
}

// SetStatus transitions a cross-reference's lifecycle status alone.
func (r *CrossReferenceRepo) SetStatus(ctx context.Context, primaryID string, status models.CrossReferenceStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE cross_references SET status = $2, updated_at = now() WHERE primary_id = $1`, primaryID, status)
	if err != nil {
		return fmt.Errorf("set cross reference status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, primaryID)
	}
	return nil
}

// Delete removes a cross-reference row, the relational half of a
// compensating delete.
func (r *CrossReferenceRepo) Delete(ctx context.Context, primaryID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cross_references WHERE primary_id = $1`, primaryID)
	if err != nil {
		return fmt.Errorf("delete cross reference: %w", err)
	}
	return nil
}

// ListOrphans returns every cross-reference not in active status, across
// all entity types, for the periodic cleanup sweep.
func (r *CrossReferenceRepo) ListOrphans(ctx context.Context) ([]*models.CrossReference, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT primary_id, entity_type, sql_id, graph_id, search_id, status, integrity_hash, metadata, created_at, updated_at
		FROM cross_references WHERE status != $1`, models.CrossReferenceStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list orphan cross references: %w", err)
	}
	defer rows.Close()

	var out []*models.CrossReference
	for rows.Next() {
		cr, err := scanCrossReference(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

// ListByEntityType returns every cross-reference for one entity type,
// regardless of status, for validation sweeps scoped to a single kind.
func (r *CrossReferenceRepo) ListByEntityType(ctx context.Context, entityType models.EntityType) ([]*models.CrossReference, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT primary_id, entity_type, sql_id, graph_id, search_id, status, integrity_hash, metadata, created_at, updated_at
		FROM cross_references WHERE entity_type = $1`, entityType)
	if err != nil {
		return nil, fmt.Errorf("list cross references by entity type: %w", err)
	}
	defer rows.Close()

	var out []*models.CrossReference
	for rows.Next() {
		cr, err := scanCrossReference(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func scanCrossReference(row scannable) (*models.CrossReference, error) {
	var cr models.CrossReference
	var sqlID, graphID, searchID, metadata *string
	err := row.Scan(&cr.PrimaryID, &cr.EntityType, &sqlID, &graphID, &searchID, &cr.Status, &cr.IntegrityHash, &metadata, &cr.CreatedAt, &cr.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w", ErrNotFound)
		}
		return nil, fmt.Errorf("scan cross reference: %w", err)
	}
	if sqlID != nil {
		cr.SQLID = *sqlID
	}
	if graphID != nil {
		cr.GraphID = *graphID
	}
	if searchID != nil {
		cr.SearchID = *searchID
	}
	if metadata != nil {
		cr.Metadata = *metadata
	}
	return &cr, nil
}
