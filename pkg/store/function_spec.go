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

// FunctionSpecRepo persists models.FunctionSpecification rows.
type FunctionSpecRepo struct {
	pool *pgxpool.Pool
}

// CreateBatch inserts every function specification the Designer-Output
// Parser extracted from one DesignerOutput, assigning ids as needed.
func (r *FunctionSpecRepo) CreateBatch(ctx context.Context, specs []*models.FunctionSpecification) error {
	if len(specs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := time.Now()
	for _, s := range specs {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.CreatedAt = now
		if s.Status == "" {
			s.Status = models.FunctionSpecStatusPending
		}
		batch.Queue(`
			INSERT INTO function_specifications
				(id, cross_ref_id, project_id, pipeline_id, code_unit, function_name, signature, description,
				 business_logic, validation_rules, error_handling, complexity_rating, estimated_minutes,
				 priority, language, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			s.ID, nullable(s.CrossRefID), s.ProjectID, s.PipelineID, s.CodeUnit, s.FunctionName, s.Signature, s.Description,
			s.BusinessLogic, s.ValidationRules, s.ErrorHandling, s.ComplexityRating, s.EstimatedMinutes,
			s.Priority, s.Language, s.Status, s.CreatedAt)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range specs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert function specification batch: %w", err)
		}
	}
	return nil
}

// SetStatus transitions a function specification's implementation status,
// driven by the Code-Unit Controller's method workers.
func (r *FunctionSpecRepo) SetStatus(ctx context.Context, id string, status models.FunctionSpecStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE function_specifications SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set function specification status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ListByCodeUnit returns every function specification grouped under one
// code unit name within a pipeline, highest priority first.
func (r *FunctionSpecRepo) ListByCodeUnit(ctx context.Context, pipelineID, codeUnit string) ([]*models.FunctionSpecification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, cross_ref_id, project_id, pipeline_id, code_unit, function_name, signature, description,
		       business_logic, validation_rules, error_handling, complexity_rating, estimated_minutes,
		       priority, language, status, created_at
		FROM function_specifications WHERE pipeline_id = $1 AND code_unit = $2
		ORDER BY CASE priority WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC, created_at ASC`,
		pipelineID, codeUnit)
	if err != nil {
		return nil, fmt.Errorf("list function specifications: %w", err)
	}
	defer rows.Close()
	return scanFunctionSpecs(rows)
}

// ListByPipeline returns every function specification extracted for a
// pipeline, grouped implicitly by code_unit ordering.
func (r *FunctionSpecRepo) ListByPipeline(ctx context.Context, pipelineID string) ([]*models.FunctionSpecification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, cross_ref_id, project_id, pipeline_id, code_unit, function_name, signature, description,
		       business_logic, validation_rules, error_handling, complexity_rating, estimated_minutes,
		       priority, language, status, created_at
		FROM function_specifications WHERE pipeline_id = $1 ORDER BY code_unit ASC, priority DESC, created_at ASC`,
		pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list function specifications: %w", err)
	}
	defer rows.Close()
	return scanFunctionSpecs(rows)
}

func scanFunctionSpecs(rows pgx.Rows) ([]*models.FunctionSpecification, error) {
	var out []*models.FunctionSpecification
	for rows.Next() {
		var s models.FunctionSpecification
		var crossRefID *string
		if err := rows.Scan(&s.ID, &crossRefID, &s.ProjectID, &s.PipelineID, &s.CodeUnit, &s.FunctionName, &s.Signature, &s.Description,
			&s.BusinessLogic, &s.ValidationRules, &s.ErrorHandling, &s.ComplexityRating, &s.EstimatedMinutes,
			&s.Priority, &s.Language, &s.Status, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan function specification: %w", err)
		}
		if crossRefID != nil {
			s.CrossRefID = *crossRefID
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
