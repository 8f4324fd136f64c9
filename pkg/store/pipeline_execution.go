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

// PipelineExecutionRepo persists models.PipelineExecution rows.
type PipelineExecutionRepo struct {
	pool *pgxpool.Pool
}

// Create inserts a new pipeline execution in pending status at the
// Planning stage.
func (r *PipelineExecutionRepo) Create(ctx context.Context, pe *models.PipelineExecution) error {
	if pe.ID == "" {
		pe.ID = uuid.NewString()
	}
	now := time.Now()
	pe.CreatedAt, pe.UpdatedAt = now, now
	if pe.Status == "" {
		pe.Status = models.ExecutionStatusPending
	}
	if pe.Stage == "" {
		pe.Stage = models.StagePlanning
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO pipeline_executions (id, project_id, stage, status, config_snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pe.ID, pe.ProjectID, pe.Stage, pe.Status, pe.ConfigSnapshot, pe.CreatedAt, pe.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert pipeline execution: %w", err)
	}
	return nil
}

// Get retrieves a pipeline execution by id.
func (r *PipelineExecutionRepo) Get(ctx context.Context, id string) (*models.PipelineExecution, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, project_id, stage, status, started_at, stage_started_at, completed_at,
		       progress_pct, total_functions, completed_functions, failed_functions,
		       error_message, config_snapshot, created_at, updated_at
		FROM pipeline_executions WHERE id = $1`, id)
	return scanPipelineExecution(row)
}

// ListByProject returns a project's pipeline executions, most recently
// created first.
func (r *PipelineExecutionRepo) ListByProject(ctx context.Context, projectID string) ([]*models.PipelineExecution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, stage, status, started_at, stage_started_at, completed_at,
		       progress_pct, total_functions, completed_functions, failed_functions,
		       error_message, config_snapshot, created_at, updated_at
		FROM pipeline_executions WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list pipeline executions for project: %w", err)
	}
	defer rows.Close()

	var out []*models.PipelineExecution
	for rows.Next() {
		pe, err := scanPipelineExecutionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pe)
	}
	return out, rows.Err()
}

// AdvanceStage updates the execution's current stage and status atomically,
// resetting stage_started_at to now.
func (r *PipelineExecutionRepo) AdvanceStage(ctx context.Context, id string, stage models.Stage, status models.ExecutionStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pipeline_executions SET stage = $2, status = $3, stage_started_at = now(), updated_at = now()
		WHERE id = $1`, id, stage, status)
	if err != nil {
		return fmt.Errorf("advance pipeline execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// UpdateProgress records function-completion counters and overall percent
// complete. No pipeline stage calls it.
func (r *PipelineExecutionRepo) UpdateProgress(ctx context.Context, id string, totalFunctions, completedFuncs, failedFuncs int, progressPct float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE pipeline_executions
		SET total_functions = $2, completed_functions = $3, failed_functions = $4, progress_pct = $5, updated_at = now()
		WHERE id = $1`, id, totalFunctions, completedFuncs, failedFuncs, progressPct)
	if err != nil {
		return fmt.Errorf("update pipeline execution progress: %w", err)
	}
	return nil
}

// RequestCancel flips a non-terminal pipeline execution to Cancelled
// out of band, without touching completed_at — the Executor's isCancelled
// check observes this between stages and performs the actual teardown
// (including setting completed_at) via Finish.
func (r *PipelineExecutionRepo) RequestCancel(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pipeline_executions SET status = $2, updated_at = now()
		WHERE id = $1 AND status IN ($3, $4)`,
		id, models.ExecutionStatusCancelled, models.ExecutionStatusPending, models.ExecutionStatusRunning)
	if err != nil {
		return fmt.Errorf("request cancel pipeline execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Finish marks a pipeline execution terminal (succeeded/failed/cancelled).
func (r *PipelineExecutionRepo) Finish(ctx context.Context, id string, status models.ExecutionStatus, errMessage string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pipeline_executions SET status = $2, error_message = $3, completed_at = now(), updated_at = now()
		WHERE id = $1`, id, status, errMessage)
	if err != nil {
		return fmt.Errorf("finish pipeline execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ClaimPending atomically claims up to limit pending pipeline executions
// using SELECT ... FOR UPDATE SKIP LOCKED, the same row-claiming pattern
// the teacher's worker.claimNextSession uses against AlertSession.
func (r *PipelineExecutionRepo) ClaimPending(ctx context.Context, limit int) ([]*models.PipelineExecution, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, project_id, stage, status, started_at, stage_started_at, completed_at,
		       progress_pct, total_functions, completed_functions, failed_functions,
		       error_message, config_snapshot, created_at, updated_at
		FROM pipeline_executions
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, models.ExecutionStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query claimable pipeline executions: %w", err)
	}

	var claimed []*models.PipelineExecution
	for rows.Next() {
		pe, err := scanPipelineExecutionRow(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		claimed = append(claimed, pe)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for _, pe := range claimed {
		if _, err := tx.Exec(ctx, `
			UPDATE pipeline_executions SET status = $2, started_at = now(), stage_started_at = now(), updated_at = now()
			WHERE id = $1`, pe.ID, models.ExecutionStatusRunning); err != nil {
			return nil, fmt.Errorf("claim pipeline execution %s: %w", pe.ID, err)
		}
		pe.Status = models.ExecutionStatusRunning
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return claimed, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPipelineExecution(row pgx.Row) (*models.PipelineExecution, error) {
	return scanPipelineExecutionRow(row)
}

func scanPipelineExecutionRow(row scannable) (*models.PipelineExecution, error) {
	var pe models.PipelineExecution
	var stageStartedAt *time.Time
	var completedAt *time.Time
	var errMessage, configSnapshot *string
	err := row.Scan(&pe.ID, &pe.ProjectID, &pe.Stage, &pe.Status, &pe.StartedAt, &stageStartedAt, &completedAt,
		&pe.ProgressPct, &pe.TotalFunctions, &pe.CompletedFuncs, &pe.FailedFuncs,
		&errMessage, &configSnapshot, &pe.CreatedAt, &pe.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w", ErrNotFound)
		}
		return nil, fmt.Errorf("scan pipeline execution: %w", err)
	}
	if stageStartedAt != nil {
		pe.StageStartedAt = *stageStartedAt
	}
	pe.CompletedAt = completedAt
	if errMessage != nil {
		pe.ErrorMessage = *errMessage
	}
	if configSnapshot != nil {
		pe.ConfigSnapshot = *configSnapshot
	}
	return &pe, nil
}
