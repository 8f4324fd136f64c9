// Package store provides hand-written pgx/v5 repositories over the schema
// embedded in pkg/database/migrations. The teacher generates this layer
// with entgo.io/ent; ent requires a go generate codegen step this module
// cannot run, so each entity gets a small repository instead, wired to the
// same pgx/v5 pool and golang-migrate migrations the teacher uses.
package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles every entity repository behind a single shared pool, the
// way the teacher's pkg/database.Client bundles an ent.Client.
type Store struct {
	pool *pgxpool.Pool

	Projects            *ProjectRepo
	PipelineExecutions  *PipelineExecutionRepo
	StageExecutions     *StageExecutionRepo
	AgentExecutions     *AgentExecutionRepo
	DesignerOutputs     *DesignerOutputRepo
	FunctionSpecs       *FunctionSpecRepo
	CodeUnits           *CodeUnitRepo
	CodeDocuments       *CodeDocumentRepo
	CrossReferences     *CrossReferenceRepo
}

// New builds a Store over an already-migrated pgxpool.Pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:               pool,
		Projects:           &ProjectRepo{pool: pool},
		PipelineExecutions: &PipelineExecutionRepo{pool: pool},
		StageExecutions:    &StageExecutionRepo{pool: pool},
		AgentExecutions:    &AgentExecutionRepo{pool: pool},
		DesignerOutputs:    &DesignerOutputRepo{pool: pool},
		FunctionSpecs:      &FunctionSpecRepo{pool: pool},
		CodeUnits:          &CodeUnitRepo{pool: pool},
		CodeDocuments:      &CodeDocumentRepo{pool: pool},
		CrossReferences:    &CrossReferenceRepo{pool: pool},
	}
}

// Pool exposes the underlying pool for callers that need it directly (the
// API server's health check pings it).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
