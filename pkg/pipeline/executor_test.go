package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ensemble-maestro/swarm/pkg/builder"
	"github.com/ensemble-maestro/swarm/pkg/bus"
	"github.com/ensemble-maestro/swarm/pkg/config"
	"github.com/ensemble-maestro/swarm/pkg/crossref"
	"github.com/ensemble-maestro/swarm/pkg/designer"
	"github.com/ensemble-maestro/swarm/pkg/llmgateway"
	"github.com/ensemble-maestro/swarm/pkg/models"
	"github.com/ensemble-maestro/swarm/pkg/store"
	"github.com/ensemble-maestro/swarm/pkg/swarmtypes"
	testdb "github.com/ensemble-maestro/swarm/test/database"
)

func fakeLLMProviderCfg() *config.LLMProviderConfig {
	return &config.LLMProviderConfig{Type: config.LLMProviderTypeFake, Model: "fake-deterministic", MaxOutputTokens: 1024, TimeoutSeconds: 5}
}

func newTestExecutor(t *testing.T, designerOutput string) (*Executor, *store.Store, *bus.Bus) {
	t.Helper()
	st := testdb.NewTestStore(t)
	b := bus.New(bus.NewMemoryStore(), config.DefaultBusConfig())
	cr := crossref.New(st.CrossReferences, crossref.NewMemoryGraphStore(), crossref.NewMemorySearchIndex())

	designerGW := llmgateway.New(&llmgateway.FakeProvider{Content: designerOutput}, "fake", fakeLLMProviderCfg(), "")
	ds := designer.New(designerGW, cr, st, b)

	bd := builder.New(builder.FakeToolchain{Output: "Build succeeded.\n0 Error(s)\n"}, t.TempDir())

	agents := config.NewAgentRegistry(map[string]*config.AgentConfig{
		"planner":       {Type: config.AgentTypePlanner, LLMProvider: "fake"},
		"designer":      {Type: config.AgentTypeDesigner, LLMProvider: "fake"},
		"method_worker": {Type: config.AgentTypeMethodWorker, LLMProvider: "fake"},
		"builder":       {Type: config.AgentTypeBuilder, LLMProvider: "fake"},
		"validator":     {Type: config.AgentTypeValidator, LLMProvider: "fake"},
	})
	providers := config.NewLLMProviderRegistry(map[string]*config.LLMProviderConfig{"fake": fakeLLMProviderCfg()})

	return New(st, b, cr, ds, bd, agents, providers, t.TempDir()), st, b
}

func seedProject(t *testing.T, st *store.Store) *models.Project {
	t.Helper()
	project := &models.Project{Name: "Demo", Requirements: "build a thing", TargetLanguage: "C#"}
	require.NoError(t, st.Projects.Create(context.Background(), project))
	return project
}

func TestRun_NoFunctionSpecs_CompletesAllStages(t *testing.T) {
	exec, st, _ := newTestExecutor(t, "no structured output here")
	project := seedProject(t, st)

	err := exec.Run(context.Background(), project.ID)
	require.NoError(t, err)

	got, err := st.Projects.Get(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusDone, got.Status)
}

func TestRunSwarmingStage_EmitsOneAssignmentPerCodeUnit(t *testing.T) {
	exec, st, b := newTestExecutor(t, "")
	project := seedProject(t, st)
	ctx := context.Background()

	pe := &models.PipelineExecution{ProjectID: project.ID, Stage: models.StageSwarming, Status: models.ExecutionStatusRunning}
	require.NoError(t, st.PipelineExecutions.Create(ctx, pe))

	unit := &models.CodeUnit{ProjectID: project.ID, PipelineID: pe.ID, Name: "UserController", UnitType: models.UnitTypeController, Language: "C#"}
	require.NoError(t, st.CodeUnits.Upsert(ctx, unit))

	spec1 := &models.FunctionSpecification{ProjectID: project.ID, PipelineID: pe.ID, CodeUnit: "UserController", FunctionName: "Create", ComplexityRating: 3, EstimatedMinutes: 5, Priority: models.PriorityMedium, Language: "C#"}
	spec2 := &models.FunctionSpecification{ProjectID: project.ID, PipelineID: pe.ID, CodeUnit: "UserController", FunctionName: "Delete", ComplexityRating: 6, EstimatedMinutes: 10, Priority: models.PriorityHigh, Language: "C#"}
	require.NoError(t, st.FunctionSpecs.CreateBatch(ctx, []*models.FunctionSpecification{spec1, spec2}))

	completed, failed, err := exec.runSwarmingStage(ctx, project, pe)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, failed)

	msg, err := b.Receive(ctx, swarmtypes.QueueCodeUnitAssignments)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, 8, msg.Priority, "Swarming re-emits at priority High (8) per spec.md §4.7")

	_, err = b.Receive(ctx, swarmtypes.QueueCodeUnitAssignments)
	assert.ErrorIs(t, err, bus.ErrNoMessage, "exactly one assignment per code unit")
}

func TestRunSwarmingStage_NoSpecsAdvancesWithoutError(t *testing.T) {
	exec, st, _ := newTestExecutor(t, "")
	project := seedProject(t, st)
	ctx := context.Background()

	pe := &models.PipelineExecution{ProjectID: project.ID, Stage: models.StageSwarming, Status: models.ExecutionStatusRunning}
	require.NoError(t, st.PipelineExecutions.Create(ctx, pe))

	completed, failed, err := exec.runSwarmingStage(ctx, project, pe)
	require.NoError(t, err)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 0, failed)
}

func TestRunBuildingStage_NoDocumentsAdvancesWithoutError(t *testing.T) {
	exec, st, _ := newTestExecutor(t, "")
	project := seedProject(t, st)
	ctx := context.Background()

	pe := &models.PipelineExecution{ProjectID: project.ID, Stage: models.StageBuilding, Status: models.ExecutionStatusRunning}
	require.NoError(t, st.PipelineExecutions.Create(ctx, pe))

	completed, failed, err := exec.runBuildingStage(ctx, project, pe)
	require.NoError(t, err)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 0, failed)
}

func TestRunBuildingStage_PersistsCodeDocumentsThroughToolchain(t *testing.T) {
	exec, st, _ := newTestExecutor(t, "")
	project := seedProject(t, st)
	ctx := context.Background()

	pe := &models.PipelineExecution{ProjectID: project.ID, Stage: models.StageBuilding, Status: models.ExecutionStatusRunning}
	require.NoError(t, st.PipelineExecutions.Create(ctx, pe))

	require.NoError(t, st.CodeDocuments.Create(ctx, &models.CodeDocument{
		ProjectID: project.ID, CodeUnitName: "UserController", FunctionName: "Create", Content: "public void Create() {}",
	}))

	completed, failed, err := exec.runBuildingStage(ctx, project, pe)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, failed)
}

func TestRun_CancelledBeforeStage_StopsAndMarksCancelled(t *testing.T) {
	exec, st, _ := newTestExecutor(t, "")
	project := seedProject(t, st)
	ctx := context.Background()

	project, pe, err := exec.start(ctx, project.ID)
	require.NoError(t, err)
	require.NoError(t, st.PipelineExecutions.Finish(ctx, pe.ID, models.ExecutionStatusCancelled, "user requested cancellation"))

	runErr := exec.runPipeline(ctx, project, pe)
	require.Error(t, runErr)

	got, err := st.PipelineExecutions.Get(ctx, pe.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, got.Status)
}
