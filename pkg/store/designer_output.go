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

// DesignerOutputRepo persists models.DesignerOutput rows.
type DesignerOutputRepo struct {
	pool *pgxpool.Pool
}

// Create inserts the raw markdown artifact produced by a Designing stage
// agent call.
func (r *DesignerOutputRepo) Create(ctx context.Context, do *models.DesignerOutput) error {
	if do.ID == "" {
		do.ID = uuid.NewString()
	}
	do.CreatedAt = time.Now()
	if do.Status == "" {
		do.Status = models.DesignerOutputStatusPending
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO designer_outputs (id, cross_ref_id, project_id, pipeline_id, agent_type, markdown, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		do.ID, nullable(do.CrossRefID), do.ProjectID, do.PipelineID, do.AgentType, do.Markdown, do.Status, do.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert designer output: %w", err)
	}
	return nil
}

// SetParsed records the Designer-Output Parser's derived summary, extracted
// function count, and aggregate complexity/quality once parsing finishes.
func (r *DesignerOutputRepo) SetParsed(ctx context.Context, id string, summary string, functionSpecCount, complexity int, quality float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE designer_outputs
		SET structured_summary = $2, function_spec_count = $3, complexity = $4, quality = $5, status = $6
		WHERE id = $1`,
		id, summary, functionSpecCount, complexity, quality, models.DesignerOutputStatusParsed)
	if err != nil {
		return fmt.Errorf("set designer output parsed: %w", err)
	}
	return nil
}

// Fail marks a designer output's parse as failed.
func (r *DesignerOutputRepo) Fail(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE designer_outputs SET status = $2 WHERE id = $1`, id, models.DesignerOutputStatusFailed)
	if err != nil {
		return fmt.Errorf("fail designer output: %w", err)
	}
	return nil
}

// SetCrossRefID attaches the generic cross-reference row pkg/crossref
// allocated for this designer output.
func (r *DesignerOutputRepo) SetCrossRefID(ctx context.Context, id, crossRefID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE designer_outputs SET cross_ref_id = $2 WHERE id = $1`, id, crossRefID)
	if err != nil {
		return fmt.Errorf("set designer output cross ref: %w", err)
	}
	return nil
}

// Get retrieves a designer output by id.
func (r *DesignerOutputRepo) Get(ctx context.Context, id string) (*models.DesignerOutput, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, cross_ref_id, project_id, pipeline_id, agent_type, markdown, structured_summary,
		       function_spec_count, complexity, quality, status, created_at
		FROM designer_outputs WHERE id = $1`, id)
	return scanDesignerOutput(row)
}

// ListByPipeline returns every designer output produced during a pipeline's
// Designing stage.
func (r *DesignerOutputRepo) ListByPipeline(ctx context.Context, pipelineID string) ([]*models.DesignerOutput, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, cross_ref_id, project_id, pipeline_id, agent_type, markdown, structured_summary,
		       function_spec_count, complexity, quality, status, created_at
		FROM designer_outputs WHERE pipeline_id = $1 ORDER BY created_at ASC`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list designer outputs: %w", err)
	}
	defer rows.Close()

	var out []*models.DesignerOutput
	for rows.Next() {
		do, err := scanDesignerOutput(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, do)
	}
	return out, rows.Err()
}

func scanDesignerOutput(row scannable) (*models.DesignerOutput, error) {
	var do models.DesignerOutput
	var crossRefID, summary *string
	err := row.Scan(&do.ID, &crossRefID, &do.ProjectID, &do.PipelineID, &do.AgentType, &do.Markdown, &summary,
		&do.FunctionSpecCount, &do.Complexity, &do.Quality, &do.Status, &do.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w", ErrNotFound)
		}
		return nil, fmt.Errorf("scan designer output: %w", err)
	}
	if crossRefID != nil {
		do.CrossRefID = *crossRefID
	}
	if summary != nil {
		do.StructuredSummary = *summary
	}
	return &do, nil
}

// nullable converts an empty string to a nil driver value so optional
// foreign keys (cross_ref_id before pkg/crossref assigns one) insert NULL
// rather than an empty-string UUID.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
