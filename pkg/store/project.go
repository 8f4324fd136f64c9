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

// ProjectRepo persists models.Project rows.
type ProjectRepo struct {
	pool *pgxpool.Pool
}

// Create inserts a new project, generating its id if unset.
func (r *ProjectRepo) Create(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Status == "" {
		p.Status = models.ProjectStatusPending
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO projects (id, name, requirements, target_language, deployment_target, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, p.Requirements, p.TargetLanguage, p.DeploymentTarget, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// Get retrieves a project by id.
func (r *ProjectRepo) Get(ctx context.Context, id string) (*models.Project, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, requirements, target_language, deployment_target, status, created_at, updated_at
		FROM projects WHERE id = $1`, id)

	var p models.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Requirements, &p.TargetLanguage, &p.DeploymentTarget, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// List returns every project, most recently created first.
func (r *ProjectRepo) List(ctx context.Context) ([]*models.Project, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, requirements, target_language, deployment_target, status, created_at, updated_at
		FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Requirements, &p.TargetLanguage, &p.DeploymentTarget, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// UpdateStatus transitions a project's status.
func (r *ProjectRepo) UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE projects SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
