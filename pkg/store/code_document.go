package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ensemble-maestro/swarm/pkg/models"
)

// CodeDocumentRepo persists models.CodeDocument rows — one per generated
// function, collected by the Building stage into source files.
type CodeDocumentRepo struct {
	pool *pgxpool.Pool
}

// Create inserts one generated function's source artifact.
func (r *CodeDocumentRepo) Create(ctx context.Context, cd *models.CodeDocument) error {
	if cd.ID == "" {
		cd.ID = uuid.NewString()
	}
	cd.CreatedAt = time.Now()
	cd.SizeBytes = len(cd.Content)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO code_documents (id, project_id, code_unit_name, function_name, content, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		cd.ID, cd.ProjectID, cd.CodeUnitName, cd.FunctionName, cd.Content, cd.SizeBytes, cd.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert code document: %w", err)
	}
	return nil
}

// ListByCodeUnit returns every generated function document belonging to one
// code unit, in function-name order.
func (r *CodeDocumentRepo) ListByCodeUnit(ctx context.Context, projectID, codeUnitName string) ([]*models.CodeDocument, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, code_unit_name, function_name, content, size_bytes, created_at
		FROM code_documents WHERE project_id = $1 AND code_unit_name = $2 ORDER BY function_name ASC`,
		projectID, codeUnitName)
	if err != nil {
		return nil, fmt.Errorf("list code documents: %w", err)
	}
	defer rows.Close()

	var out []*models.CodeDocument
	for rows.Next() {
		var cd models.CodeDocument
		if err := rows.Scan(&cd.ID, &cd.ProjectID, &cd.CodeUnitName, &cd.FunctionName, &cd.Content, &cd.SizeBytes, &cd.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan code document: %w", err)
		}
		out = append(out, &cd)
	}
	return out, rows.Err()
}

// ListByProject returns every generated function document for a project,
// used by the Building stage to gather the full output tree.
func (r *CodeDocumentRepo) ListByProject(ctx context.Context, projectID string) ([]*models.CodeDocument, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, code_unit_name, function_name, content, size_bytes, created_at
		FROM code_documents WHERE project_id = $1 ORDER BY code_unit_name ASC, function_name ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list code documents: %w", err)
	}
	defer rows.Close()

	var out []*models.CodeDocument
	for rows.Next() {
		var cd models.CodeDocument
		if err := rows.Scan(&cd.ID, &cd.ProjectID, &cd.CodeUnitName, &cd.FunctionName, &cd.Content, &cd.SizeBytes, &cd.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan code document: %w", err)
		}
		out = append(out, &cd)
	}
	return out, rows.Err()
}
