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

// AgentExecutionRepo persists models.AgentExecution rows.
type AgentExecutionRepo struct {
	pool *pgxpool.Pool
}

// Create inserts a new agent execution in pending status.
func (r *AgentExecutionRepo) Create(ctx context.Context, ae *models.AgentExecution) error {
	if ae.ID == "" {
		ae.ID = uuid.NewString()
	}
	ae.CreatedAt = time.Now()
	if ae.Status == "" {
		ae.Status = models.ExecutionStatusPending
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO agent_executions (id, project_id, pipeline_id, stage_id, agent_type, status, input_prompt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ae.ID, ae.ProjectID, ae.PipelineID, ae.StageID, ae.AgentType, ae.Status, ae.InputPrompt, ae.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert agent execution: %w", err)
	}
	return nil
}

// Complete records a successful Generate call's output and usage.
func (r *AgentExecutionRepo) Complete(ctx context.Context, id string, output string, tokensIn, tokensOut int, cost float64, qualityScore, confidenceScore *float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE agent_executions
		SET status = $2, output_response = $3, tokens_in = $4, tokens_out = $5, cost = $6,
		    quality_score = $7, confidence_score = $8, completed_at = now()
		WHERE id = $1`,
		id, models.ExecutionStatusSucceeded, output, tokensIn, tokensOut, cost, qualityScore, confidenceScore)
	if err != nil {
		return fmt.Errorf("complete agent execution: %w", err)
	}
	return nil
}

// Fail records a failed agent execution.
func (r *AgentExecutionRepo) Fail(ctx context.Context, id string, errMessage string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE agent_executions SET status = $2, error_message = $3, completed_at = now() WHERE id = $1`,
		id, models.ExecutionStatusFailed, errMessage)
	if err != nil {
		return fmt.Errorf("fail agent execution: %w", err)
	}
	return nil
}

// ListByStage returns every agent execution for a stage execution.
func (r *AgentExecutionRepo) ListByStage(ctx context.Context, stageID string) ([]*models.AgentExecution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, pipeline_id, stage_id, agent_type, status, input_prompt, output_response,
		       tokens_in, tokens_out, cost, quality_score, confidence_score, started_at, completed_at, error_message, created_at
		FROM agent_executions WHERE stage_id = $1 ORDER BY created_at ASC`, stageID)
	if err != nil {
		return nil, fmt.Errorf("list agent executions: %w", err)
	}
	defer rows.Close()

	var out []*models.AgentExecution
	for rows.Next() {
		ae, err := scanAgentExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ae)
	}
	return out, rows.Err()
}

func scanAgentExecution(row pgx.Row) (*models.AgentExecution, error) {
	var ae models.AgentExecution
	var inputPrompt, outputResponse, errMessage *string
	var startedAt, completedAt *time.Time
	err := row.Scan(&ae.ID, &ae.ProjectID, &ae.PipelineID, &ae.StageID, &ae.AgentType, &ae.Status, &inputPrompt, &outputResponse,
		&ae.TokensIn, &ae.TokensOut, &ae.Cost, &ae.QualityScore, &ae.ConfidenceScore, &startedAt, &completedAt, &errMessage, &ae.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan agent execution: %w", err)
	}
	if inputPrompt != nil {
		ae.InputPrompt = *inputPrompt
	}
	if outputResponse != nil {
		ae.OutputResponse = *outputResponse
	}
	if errMessage != nil {
		ae.ErrorMessage = *errMessage
	}
	if startedAt != nil {
		ae.StartedAt = *startedAt
	}
	ae.CompletedAt = completedAt
	return &ae, nil
}
