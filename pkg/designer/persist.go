package designer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ensemble-maestro/swarm/pkg/bus"
	"github.com/ensemble-maestro/swarm/pkg/models"
	"github.com/ensemble-maestro/swarm/pkg/swarmtypes"
)

// persistRawOutput records the raw markdown via C2 and pkg/store, logging
// rather than failing Ingest on persistence error — spec.md's "parser
// failures do not fail the pipeline" extends to the persistence step, not
// only the extraction call.
func (p *Parser) persistRawOutput(ctx context.Context, markdown string, ictx Context, specCount, complexity int, quality float64) string {
	do := &models.DesignerOutput{
		ProjectID:  ictx.ProjectID,
		PipelineID: ictx.PipelineID,
		AgentType:  ictx.AgentType,
		Markdown:   markdown,
	}
	if err := p.store.DesignerOutputs.Create(ctx, do); err != nil {
		p.log.Error("failed to persist designer output", "error", err)
		return ""
	}

	cr, err := p.crossref.Create(ctx, models.EntityTypeDesignerOutput, do.ID)
	if err != nil {
		p.log.Error("failed to create cross reference for designer output", "error", err)
	} else if err := p.store.DesignerOutputs.SetCrossRefID(ctx, do.ID, cr.PrimaryID); err != nil {
		p.log.Error("failed to attach cross reference to designer output", "error", err)
	}

	if specCount > 0 {
		if err := p.store.DesignerOutputs.SetParsed(ctx, do.ID, "", specCount, complexity, quality); err != nil {
			p.log.Error("failed to mark designer output parsed", "error", err)
		}
	} else {
		if err := p.store.DesignerOutputs.Fail(ctx, do.ID); err != nil {
			p.log.Error("failed to mark designer output failed", "error", err)
		}
	}

	return do.ID
}

func (p *Parser) persistSpecs(ctx context.Context, specs []*models.FunctionSpecification) {
	if len(specs) == 0 {
		return
	}
	if err := p.store.FunctionSpecs.CreateBatch(ctx, specs); err != nil {
		p.log.Error("failed to persist function specifications", "error", err)
		return
	}
	for _, s := range specs {
		cr, err := p.crossref.Create(ctx, models.EntityTypeFunctionSpec, s.ID)
		if err != nil {
			p.log.Error("failed to create cross reference for function spec", "function_name", s.FunctionName, "error", err)
			continue
		}
		s.CrossRefID = cr.PrimaryID
	}
}

func (p *Parser) persistUnits(ctx context.Context, units []*models.CodeUnit, designerOutputID string) {
	for _, u := range units {
		u.DesignerOutputID = designerOutputID
		if err := p.store.CodeUnits.Upsert(ctx, u); err != nil {
			p.log.Error("failed to persist code unit", "name", u.Name, "error", err)
			continue
		}
		cr, err := p.crossref.Create(ctx, models.EntityTypeCodeUnit, u.ID)
		if err != nil {
			p.log.Error("failed to create cross reference for code unit", "name", u.Name, "error", err)
			continue
		}
		u.CrossRefID = cr.PrimaryID
	}
}

// emitAssignments publishes one CodeUnitAssignment per code unit onto
// swarm.codeunit.assignments, per spec.md §4.4 step 5.
func (p *Parser) emitAssignments(ctx context.Context, units []*models.CodeUnit, specs []*models.FunctionSpecification, ictx Context) {
	byUnit := make(map[string][]*models.FunctionSpecification)
	for _, s := range specs {
		byUnit[s.CodeUnit] = append(byUnit[s.CodeUnit], s)
	}

	now := time.Now()
	for _, u := range units {
		members := byUnit[u.Name]
		functions := make([]swarmtypes.FunctionAssignment, 0, len(members))
		for _, m := range members {
			functions = append(functions, swarmtypes.FunctionAssignment{
				AssignmentID:            uuid.NewString(),
				FunctionSpecificationID: m.ID,
				FunctionName:            m.FunctionName,
				CodeUnit:                m.CodeUnit,
				Signature:               m.Signature,
				Description:             m.Description,
				BusinessLogic:           m.BusinessLogic,
				ValidationRules:         m.ValidationRules,
				ErrorHandling:           m.ErrorHandling,
				ComplexityRating:        m.ComplexityRating,
				EstimatedMinutes:        m.EstimatedMinutes,
				Priority:                m.Priority,
				TargetLanguage:          ictx.TargetLanguage,
				AssignedAt:              now,
				DueAt:                   now.Add(time.Duration(m.EstimatedMinutes) * time.Minute),
			})
		}

		assignment := swarmtypes.CodeUnitAssignment{
			AssignmentID:         uuid.NewString(),
			CodeUnitID:           u.ID,
			Name:                 u.Name,
			UnitType:             u.UnitType,
			Namespace:            u.Namespace,
			Functions:            functions,
			SimpleFunctionCount:  u.SimpleFunctionCount,
			ComplexFunctionCount: u.ComplexFunctionCount,
			ComplexityRating:     u.Complexity,
			EstimatedMinutes:     u.EstimatedMinutes,
			Priority:             u.Priority,
			TargetLanguage:       ictx.TargetLanguage,
			AssignedAt:           now,
			DueAt:                now.Add(time.Duration(u.EstimatedMinutes) * time.Minute),
		}

		payload, err := json.Marshal(assignment)
		if err != nil {
			p.log.Error("failed to marshal code unit assignment", "name", u.Name, "error", err)
			continue
		}

		priority := priorityScoreFor(u.Priority)
		dedupeKey := ictx.PipelineID + ":" + u.Name
		if _, err := p.bus.SendPriorityDeduped(ctx, swarmtypes.QueueCodeUnitAssignments, payload, priority, dedupeKey); err != nil {
			if !errors.Is(err, bus.ErrDuplicateAssignment) {
				p.log.Error("failed to send code unit assignment", "name", u.Name, "error", err)
			}
		}
	}
}
