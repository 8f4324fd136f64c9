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

// StageExecutionRepo persists models.StageExecution rows.
type StageExecutionRepo struct {
	pool *pgxpool.Pool
}

// Create inserts a new stage execution in pending status, at its fixed
// position in models.StageOrder.
func (r *StageExecutionRepo) Create(ctx context.Context, se *models.StageExecution) error {
	if se.ID == "" {
		se.ID = uuid.NewString()
	}
	se.CreatedAt = time.Now()
	if se.Status == "" {
		se.Status = models.ExecutionStatusPending
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO stage_executions (id, pipeline_execution_id, stage_name, "order", status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		se.ID, se.PipelineExecutionID, se.StageName, se.Order, se.Status, se.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert stage execution: %w", err)
	}
	return nil
}

// Start marks a stage execution running.
func (r *StageExecutionRepo) Start(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE stage_executions SET status = $2, started_at = now() WHERE id = $1`,
		id, models.ExecutionStatusRunning)
	if err != nil {
		return fmt.Errorf("start stage execution: %w", err)
	}
	return nil
}

// Finish marks a stage execution terminal, recording its completed/failed
// item counts.
func (r *StageExecutionRepo) Finish(ctx context.Context, id string, status models.ExecutionStatus, itemsCompleted, itemsFailed int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE stage_executions
		SET status = $2, items_completed = $3, items_failed = $4, completed_at = now()
		WHERE id = $1`,
		id, status, itemsCompleted, itemsFailed)
	if err != nil {
		return fmt.Errorf("finish stage execution: %w", err)
	}
	return nil
}

// ListByPipelineExecution returns every stage execution for a pipeline
// execution, in fixed stage order.
func (r *StageExecutionRepo) ListByPipelineExecution(ctx context.Context, pipelineExecutionID string) ([]*models.StageExecution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, pipeline_execution_id, stage_name, "order", status, started_at, completed_at, items_completed, items_failed, created_at
		FROM stage_executions WHERE pipeline_execution_id = $1 ORDER BY "order" ASC`, pipelineExecutionID)
	if err != nil {
		return nil, fmt.Errorf("list stage executions: %w", err)
	}
	defer rows.Close()

	var out []*models.StageExecution
	for rows.Next() {
		se, err := scanStageExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	return out, rows.Err()
}

func scanStageExecution(row pgx.Row) (*models.StageExecution, error) {
	var se models.StageExecution
	var completedAt *time.Time
	err := row.Scan(&se.ID, &se.PipelineExecutionID, &se.StageName, &se.Order, &se.Status,
		&se.StartedAt, &completedAt, &se.ItemsCompleted, &se.ItemsFailed, &se.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan stage execution: %w", err)
	}
	se.CompletedAt = completedAt
	return &se, nil
}
