package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ensemble-maestro/swarm/pkg/builder"
	"github.com/ensemble-maestro/swarm/pkg/bus"
	"github.com/ensemble-maestro/swarm/pkg/codeunit"
	"github.com/ensemble-maestro/swarm/pkg/config"
	"github.com/ensemble-maestro/swarm/pkg/crossref"
	"github.com/ensemble-maestro/swarm/pkg/designer"
	"github.com/ensemble-maestro/swarm/pkg/models"
	"github.com/ensemble-maestro/swarm/pkg/store"
	"github.com/ensemble-maestro/swarm/pkg/swarmtypes"
)

// stageOrder mirrors models.StageOrder; kept local so callers advancing
// past Validating can name the terminal "Completed" state without adding
// it to the persisted Stage enum.
var stageOrder = models.StageOrder

// Executor runs one project's pipeline through every stage, in order,
// checking for cancellation between stages and inside the Swarming
// dispatch loop, per spec.md §4.7/§5.
type Executor struct {
	store       *store.Store
	bus         *bus.Bus
	crossref    *crossref.Registry
	designer    *designer.Parser
	builder     *builder.Builder
	agents      *config.AgentRegistry
	providers   *config.LLMProviderRegistry
	artifactDir string
	log         *slog.Logger
}

// New builds an Executor over its collaborators.
func New(st *store.Store, b *bus.Bus, cr *crossref.Registry, ds *designer.Parser, bd *builder.Builder, agents *config.AgentRegistry, providers *config.LLMProviderRegistry, artifactDir string) *Executor {
	return &Executor{
		store:       st,
		bus:         b,
		crossref:    cr,
		designer:    ds,
		builder:     bd,
		agents:      agents,
		providers:   providers,
		artifactDir: artifactDir,
		log:         slog.With("component", "pipeline"),
	}
}

// Run drives project's pipeline from Planning through Validating and
// blocks until it reaches a terminal state. Stage functions may return an
// error; Run catches it once, marks the pipeline Failed, and stops —
// matching spec.md §7's "pipeline stage functions MAY throw; the Executor
// catches once at the top" propagation policy.
func (e *Executor) Run(ctx context.Context, projectID string) error {
	project, pipeline, err := e.start(ctx, projectID)
	if err != nil {
		return err
	}
	return e.runPipeline(ctx, project, pipeline)
}

// StartAsync performs the synchronous setup Run does (load project, create
// the PipelineExecution row, mark the project Running) and returns the new
// execution's id immediately, running the stage loop in a background
// goroutine. This is what pkg/api's testbench handler uses: callers need
// the execution id to poll before the pipeline necessarily finishes.
func (e *Executor) StartAsync(ctx context.Context, projectID string) (string, error) {
	project, pipeline, err := e.start(ctx, projectID)
	if err != nil {
		return "", err
	}

	go func() {
		// Detached from the request's context: a cancelled HTTP request
		// must not abort an in-flight pipeline run.
		if err := e.runPipeline(context.Background(), project, pipeline); err != nil {
			e.log.Error("background pipeline run failed", "pipeline_id", pipeline.ID, "error", err)
		}
	}()

	return pipeline.ID, nil
}

// start loads the project, creates its PipelineExecution row, and marks
// the project Running. Shared by Run and StartAsync.
func (e *Executor) start(ctx context.Context, projectID string) (*models.Project, *models.PipelineExecution, error) {
	project, err := e.store.Projects.Get(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("load project: %w", err)
	}

	pipeline := &models.PipelineExecution{ProjectID: project.ID}
	if err := e.store.PipelineExecutions.Create(ctx, pipeline); err != nil {
		return nil, nil, fmt.Errorf("create pipeline execution: %w", err)
	}
	if err := e.store.Projects.UpdateStatus(ctx, project.ID, models.ProjectStatusRunning); err != nil {
		e.log.Warn("failed to mark project running", "project_id", project.ID, "error", err)
	}

	return project, pipeline, nil
}

// runPipeline drives an already-created pipeline execution through every
// stage in order.
func (e *Executor) runPipeline(ctx context.Context, project *models.Project, pipeline *models.PipelineExecution) error {
	log := e.log.With("pipeline_id", pipeline.ID, "project_id", project.ID)

	for i, stage := range stageOrder {
		if err := ctx.Err(); err != nil {
			return e.cancel(ctx, pipeline, "cancelled before stage "+string(stage))
		}
		if cancelled, err := e.isCancelled(ctx, pipeline.ID); err != nil {
			log.Warn("failed to check cancellation", "error", err)
		} else if cancelled {
			return e.cancel(ctx, pipeline, "cancelled before stage "+string(stage))
		}

		if err := e.store.PipelineExecutions.AdvanceStage(ctx, pipeline.ID, stage, models.ExecutionStatusRunning); err != nil {
			return fmt.Errorf("advance to stage %s: %w", stage, err)
		}

		stageExec := &models.StageExecution{PipelineExecutionID: pipeline.ID, StageName: stage, Order: i}
		if err := e.store.StageExecutions.Create(ctx, stageExec); err != nil {
			log.Warn("failed to persist stage execution record", "stage", stage, "error", err)
		}

		completed, failed, runErr := e.runStage(ctx, project, pipeline, stage)
		if runErr != nil {
			log.Error("stage failed", "stage", stage, "error", runErr)
			_ = e.store.StageExecutions.Finish(ctx, stageExec.ID, models.ExecutionStatusFailed, completed, failed)
			_ = e.store.PipelineExecutions.Finish(ctx, pipeline.ID, models.ExecutionStatusFailed, runErr.Error())
			_ = e.store.Projects.UpdateStatus(ctx, project.ID, models.ProjectStatusFailed)
			return runErr
		}
		_ = e.store.StageExecutions.Finish(ctx, stageExec.ID, models.ExecutionStatusSucceeded, completed, failed)
	}

	if err := e.store.PipelineExecutions.Finish(ctx, pipeline.ID, models.ExecutionStatusSucceeded, ""); err != nil {
		log.Warn("failed to mark pipeline succeeded", "error", err)
	}
	if err := e.store.Projects.UpdateStatus(ctx, project.ID, models.ProjectStatusDone); err != nil {
		log.Warn("failed to mark project done", "error", err)
	}
	return nil
}

func (e *Executor) cancel(ctx context.Context, pipeline *models.PipelineExecution, reason string) error {
	if err := e.store.PipelineExecutions.Finish(ctx, pipeline.ID, models.ExecutionStatusCancelled, reason); err != nil {
		e.log.Warn("failed to mark pipeline cancelled", "pipeline_id", pipeline.ID, "error", err)
	}
	return fmt.Errorf("pipeline %s: %s", pipeline.ID, reason)
}

// isCancelled re-reads the pipeline execution's status — a project
// cancellation flips status=Cancelled out of band (via the API), and the
// Executor must observe it between stages.
func (e *Executor) isCancelled(ctx context.Context, pipelineID string) (bool, error) {
	pe, err := e.store.PipelineExecutions.Get(ctx, pipelineID)
	if err != nil {
		return false, err
	}
	return pe.Status == models.ExecutionStatusCancelled, nil
}

func (e *Executor) runStage(ctx context.Context, project *models.Project, pipeline *models.PipelineExecution, stage models.Stage) (completed, failed int, err error) {
	switch stage {
	case models.StagePlanning:
		return e.runGenericStage(ctx, project, pipeline, stage, config.AgentTypePlanner, planningInstruction, project.Requirements)
	case models.StageDesigning:
		return e.runDesigningStage(ctx, project, pipeline)
	case models.StageSwarming:
		return e.runSwarmingStage(ctx, project, pipeline)
	case models.StageBuilding:
		return e.runBuildingStage(ctx, project, pipeline)
	case models.StageValidating:
		return e.runGenericStage(ctx, project, pipeline, stage, config.AgentTypeValidator, validatingInstruction, "")
	default:
		return 0, 0, fmt.Errorf("unknown stage: %s", stage)
	}
}

const planningInstruction = `Turn the following project requirements into a structured feature specification, ` +
	`covering scope, entities, and the module breakdown a designer agent should decompose next.`

const validatingInstruction = `Review the build output below and report any remaining defects, ` +
	`missing functionality, or quality concerns. Respond with a pass/fail verdict and findings.`

// runGenericStage implements spec.md §4.7's Planning/Validating rule: for
// every agent registered under agentType, call the gateway once and
// persist an AgentExecution row.
func (e *Executor) runGenericStage(ctx context.Context, project *models.Project, pipeline *models.PipelineExecution, stage models.Stage, agentType config.AgentType, instruction, input string) (int, int, error) {
	var completed, failed int
	for name, agentCfg := range e.agents.GetAll() {
		if agentCfg.Type != agentType {
			continue
		}
		if err := ctx.Err(); err != nil {
			return completed, failed, err
		}

		agent, err := buildAgent(agentCfg, e.providers, e.artifactDir)
		if err != nil {
			return completed, failed, fmt.Errorf("build agent %s: %w", name, err)
		}

		ae := &models.AgentExecution{ProjectID: project.ID, PipelineID: pipeline.ID, AgentType: string(agentType), InputPrompt: input}
		if err := e.store.AgentExecutions.Create(ctx, ae); err != nil {
			e.log.Warn("failed to persist agent execution", "agent", name, "error", err)
		}

		result := agent.Run(ctx, AgentRequest{System: instruction, User: input})
		if result.Success {
			completed++
			if err := e.store.AgentExecutions.Complete(ctx, ae.ID, result.Output, result.TokensIn, result.TokensOut, result.Cost, nil, nil); err != nil {
				e.log.Warn("failed to record agent execution completion", "agent", name, "error", err)
			}
		} else {
			failed++
			if err := e.store.AgentExecutions.Fail(ctx, ae.ID, result.Error); err != nil {
				e.log.Warn("failed to record agent execution failure", "agent", name, "error", err)
			}
		}
	}
	return completed, failed, nil
}

// runDesigningStage runs each designer agent one at a time (not batched),
// piping its markdown through the Designer-Output Parser immediately so
// CodeUnitAssignments are emitted before the stage ends, per spec.md
// §4.7's explicit "NOT batched" rule.
func (e *Executor) runDesigningStage(ctx context.Context, project *models.Project, pipeline *models.PipelineExecution) (int, int, error) {
	var completed, failed int
	for name, agentCfg := range e.agents.GetAll() {
		if agentCfg.Type != config.AgentTypeDesigner {
			continue
		}
		if err := ctx.Err(); err != nil {
			return completed, failed, err
		}

		agent, err := buildAgent(agentCfg, e.providers, e.artifactDir)
		if err != nil {
			return completed, failed, fmt.Errorf("build agent %s: %w", name, err)
		}

		ae := &models.AgentExecution{ProjectID: project.ID, PipelineID: pipeline.ID, AgentType: string(config.AgentTypeDesigner)}
		if err := e.store.AgentExecutions.Create(ctx, ae); err != nil {
			e.log.Warn("failed to persist agent execution", "agent", name, "error", err)
		}

		result := agent.Run(ctx, AgentRequest{System: designingInstruction, User: project.Requirements})
		if !result.Success {
			failed++
			_ = e.store.AgentExecutions.Fail(ctx, ae.ID, result.Error)
			continue
		}
		completed++
		_ = e.store.AgentExecutions.Complete(ctx, ae.ID, result.Output, result.TokensIn, result.TokensOut, result.Cost, nil, nil)

		e.designer.Ingest(ctx, result.Output, designer.Context{
			ProjectID:      project.ID,
			PipelineID:     pipeline.ID,
			AgentType:      string(config.AgentTypeDesigner),
			TargetLanguage: project.TargetLanguage,
		})
	}
	return completed, failed, nil
}

const designingInstruction = `Decompose the given feature specification into code units and functions, ` +
	`following the structure a Designer-Output Parser expects.`

// runSwarmingStage implements spec.md §4.7's Swarming rule exactly: no
// LLM calls, just query-group-republish. Re-emitting from the database
// (rather than relying solely on the Designing stage's own emission)
// makes dispatch resilient to a restart between Designing and Swarming;
// codeunit.Controller's idempotency guard absorbs the resulting
// double-dispatch, per spec.md §9's Open Question resolution.
func (e *Executor) runSwarmingStage(ctx context.Context, project *models.Project, pipeline *models.PipelineExecution) (int, int, error) {
	specs, err := e.store.FunctionSpecs.ListByPipeline(ctx, pipeline.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("list function specifications: %w", err)
	}
	if len(specs) == 0 {
		e.log.Info("no function specifications found, advancing", "pipeline_id", pipeline.ID)
		return 0, 0, nil
	}

	units, err := e.store.CodeUnits.ListByPipeline(ctx, pipeline.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("list code units: %w", err)
	}

	byUnit := make(map[string][]*models.FunctionSpecification)
	for _, s := range specs {
		byUnit[s.CodeUnit] = append(byUnit[s.CodeUnit], s)
	}

	var completed, failed int
	now := time.Now()
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return completed, failed, err
		}

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
				TargetLanguage:          project.TargetLanguage,
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
			Priority:             models.PriorityHigh,
			TargetLanguage:       project.TargetLanguage,
			AssignedAt:           now,
			DueAt:                now.Add(time.Duration(u.EstimatedMinutes) * time.Minute),
		}

		payload, err := json.Marshal(assignment)
		if err != nil {
			e.log.Error("failed to marshal code unit assignment", "name", u.Name, "error", err)
			failed++
			continue
		}
		dedupeKey := pipeline.ID + ":" + u.Name
		if _, err := e.bus.SendPriorityDeduped(ctx, swarmtypes.QueueCodeUnitAssignments, payload, 8, dedupeKey); err != nil {
			if errors.Is(err, bus.ErrDuplicateAssignment) {
				completed++
				continue
			}
			e.log.Error("failed to re-emit code unit assignment", "name", u.Name, "error", err)
			failed++
			continue
		}
		completed++
	}
	return completed, failed, nil
}

// runBuildingStage implements the "enhanced builder" contract: aggregate
// every CodeDocument for the project, write them to a staging directory,
// invoke the language toolchain, and turn its output into BuilderErrors
// for high-severity failures. The actual file layout and toolchain
// invocation live in pkg/builder, kept here as a thin stage adapter.
func (e *Executor) runBuildingStage(ctx context.Context, project *models.Project, pipeline *models.PipelineExecution) (int, int, error) {
	docs, err := e.store.CodeDocuments.ListByProject(ctx, project.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("list code documents: %w", err)
	}
	if len(docs) == 0 {
		e.log.Info("no code documents found, advancing", "pipeline_id", pipeline.ID)
		return 0, 0, nil
	}

	result, err := e.buildProject(ctx, project, docs)
	if err != nil {
		return 0, len(docs), fmt.Errorf("build project: %w", err)
	}

	for _, be := range result.Errors {
		if be.Severity < 8 {
			continue
		}
		payload, err := json.Marshal(be)
		if err != nil {
			e.log.Error("failed to marshal build error", "error", err)
			continue
		}
		if _, err := e.bus.SendPriority(ctx, swarmtypes.QueueBuilderErrors, payload, 8); err != nil {
			e.log.Error("failed to publish build error", "error", err)
		}
	}

	completed := len(docs) - len(result.Errors)
	if completed < 0 {
		completed = 0
	}
	return completed, len(result.Errors), nil
}

// buildProject delegates to pkg/builder.Builder, the collaborator that
// owns staging, toolchain invocation, and regex error parsing — this
// method exists purely so runBuildingStage reads as a thin stage adapter
// over that package, per spec.md §4.7's Building-stage description.
func (e *Executor) buildProject(ctx context.Context, project *models.Project, docs []*models.CodeDocument) (builder.Result, error) {
	return e.builder.Build(ctx, project, docs)
}

// codeUnitDispatcher is the narrow interface pkg/supervisor consumes;
// defined here so Executor and codeunit.Controller can share the same
// method signature without the Supervisor importing Executor directly.
type codeUnitDispatcher interface {
	Dispatch(ctx context.Context, projectID string, assignment swarmtypes.CodeUnitAssignment) error
}

var _ codeUnitDispatcher = (*codeunit.Controller)(nil)
