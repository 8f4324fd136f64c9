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

// CodeUnitRepo persists models.CodeUnit rows.
type CodeUnitRepo struct {
	pool *pgxpool.Pool
}

// Upsert inserts a code unit, or merges into the existing row for the same
// (pipeline_id, name) key — the Designer-Output Parser derives one CodeUnit
// per distinct name across possibly many function specifications.
func (r *CodeUnitRepo) Upsert(ctx context.Context, cu *models.CodeUnit) error {
	if cu.ID == "" {
		cu.ID = uuid.NewString()
	}
	now := time.Now()
	cu.CreatedAt, cu.UpdatedAt = now, now
	if cu.Status == "" {
		cu.Status = models.CodeUnitStatusPlanned
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO code_units
			(id, cross_ref_id, project_id, pipeline_id, designer_output_id, name, unit_type, namespace, language,
			 file_path, function_count, simple_function_count, complex_function_count, complexity, priority,
			 estimated_minutes, status, completion_pct, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (pipeline_id, name) DO UPDATE
			SET function_count         = code_units.function_count + EXCLUDED.function_count,
			    simple_function_count  = code_units.simple_function_count + EXCLUDED.simple_function_count,
			    complex_function_count = code_units.complex_function_count + EXCLUDED.complex_function_count,
			    complexity             = GREATEST(code_units.complexity, EXCLUDED.complexity),
			    priority               = CASE WHEN EXCLUDED.priority = 'critical' OR code_units.priority = 'critical' THEN 'critical'
			                                   WHEN EXCLUDED.priority = 'high' OR code_units.priority = 'high' THEN 'high'
			                                   WHEN EXCLUDED.priority = 'medium' OR code_units.priority = 'medium' THEN 'medium'
			                                   ELSE 'low' END,
			    estimated_minutes      = code_units.estimated_minutes + EXCLUDED.estimated_minutes,
			    updated_at             = now()
		RETURNING id, function_count, simple_function_count, complex_function_count, complexity, priority,
		          estimated_minutes, status, completion_pct, created_at, updated_at`,
		cu.ID, nullable(cu.CrossRefID), cu.ProjectID, cu.PipelineID, nullable(cu.DesignerOutputID), cu.Name, cu.UnitType, cu.Namespace, cu.Language,
		cu.FilePath, cu.FunctionCount, cu.SimpleFunctionCount, cu.ComplexFunctionCount, cu.Complexity, cu.Priority,
		cu.EstimatedMinutes, cu.Status, cu.CompletionPct, cu.CreatedAt, cu.UpdatedAt)

	if err := row.Scan(&cu.ID, &cu.FunctionCount, &cu.SimpleFunctionCount, &cu.ComplexFunctionCount, &cu.Complexity, &cu.Priority,
		&cu.EstimatedMinutes, &cu.Status, &cu.CompletionPct, &cu.CreatedAt, &cu.UpdatedAt); err != nil {
		return fmt.Errorf("upsert code unit: %w", err)
	}
	return nil
}

// Get retrieves a code unit by id.
func (r *CodeUnitRepo) Get(ctx context.Context, id string) (*models.CodeUnit, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, cross_ref_id, project_id, pipeline_id, designer_output_id, name, unit_type, namespace, language,
		       file_path, function_count, simple_function_count, complex_function_count, complexity, priority,
		       estimated_minutes, status, completion_pct, created_at, updated_at
		FROM code_units WHERE id = $1`, id)
	return scanCodeUnit(row)
}

// SetStatus transitions a code unit's dispatch status.
func (r *CodeUnitRepo) SetStatus(ctx context.Context, id string, status models.CodeUnitStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE code_units SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set code unit status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// UpdateCompletion records progress toward a code unit's function count as
// its method workers finish, per spec.md P1 (completed+failed == total).
func (r *CodeUnitRepo) UpdateCompletion(ctx context.Context, id string, completionPct float64) error {
	_, err := r.pool.Exec(ctx, `UPDATE code_units SET completion_pct = $2, updated_at = now() WHERE id = $1`, id, completionPct)
	if err != nil {
		return fmt.Errorf("update code unit completion: %w", err)
	}
	return nil
}

// ListByPipeline returns every code unit for a pipeline execution, highest
// priority first.
func (r *CodeUnitRepo) ListByPipeline(ctx context.Context, pipelineID string) ([]*models.CodeUnit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, cross_ref_id, project_id, pipeline_id, designer_output_id, name, unit_type, namespace, language,
		       file_path, function_count, simple_function_count, complex_function_count, complexity, priority,
		       estimated_minutes, status, completion_pct, created_at, updated_at
		FROM code_units WHERE pipeline_id = $1
		ORDER BY CASE priority WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC, created_at ASC`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list code units: %w", err)
	}
	defer rows.Close()

	var out []*models.CodeUnit
	for rows.Next() {
		cu, err := scanCodeUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cu)
	}
	return out, rows.Err()
}

func scanCodeUnit(row scannable) (*models.CodeUnit, error) {
	var cu models.CodeUnit
	var crossRefID, designerOutputID *string
	err := row.Scan(&cu.ID, &crossRefID, &cu.ProjectID, &cu.PipelineID, &designerOutputID, &cu.Name, &cu.UnitType, &cu.Namespace, &cu.Language,
		&cu.FilePath, &cu.FunctionCount, &cu.SimpleFunctionCount, &cu.ComplexFunctionCount, &cu.Complexity, &cu.Priority,
		&cu.EstimatedMinutes, &cu.Status, &cu.CompletionPct, &cu.CreatedAt, &cu.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w", ErrNotFound)
		}
		return nil, fmt.Errorf("scan code unit: %w", err)
	}
	if crossRefID != nil {
		cu.CrossRefID = *crossRefID
	}
	if designerOutputID != nil {
		cu.DesignerOutputID = *designerOutputID
	}
	return &cu, nil
}
