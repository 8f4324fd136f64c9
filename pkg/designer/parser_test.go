package designer

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ensemble-maestro/swarm/pkg/bus"
	"github.com/ensemble-maestro/swarm/pkg/config"
	"github.com/ensemble-maestro/swarm/pkg/crossref"
	"github.com/ensemble-maestro/swarm/pkg/llmgateway"
	"github.com/ensemble-maestro/swarm/pkg/models"
	"github.com/ensemble-maestro/swarm/pkg/swarmtypes"
	testdb "github.com/ensemble-maestro/swarm/test/database"
)

const sampleExtraction = "Here is the extraction:\n```json\n[\n" +
	`{"functionName":"GetUser","codeUnit":"UserService","signature":"Task<User> GetUser(int id)","description":"fetch a user","complexityRating":3,"estimatedMinutes":10,"priority":"high"},` +
	`{"functionName":"CreateUser","codeUnit":"UserService","signature":"Task<User> CreateUser(User u)","description":"create a user","complexityRating":6,"estimatedMinutes":20,"priority":"critical"},` +
	`{"functionName":"","codeUnit":"UserService","signature":"ignored","complexityRating":1,"estimatedMinutes":1,"priority":"low"}` +
	"]\n```\nend of output"

func newTestParser(t *testing.T) (*Parser, *bus.Bus) {
	t.Helper()
	st := testdb.NewTestStore(t)

	cr := crossref.New(st.CrossReferences, crossref.NewMemoryGraphStore(), crossref.NewMemorySearchIndex())

	b := bus.New(bus.NewMemoryStore(), config.DefaultBusConfig())

	gw := llmgateway.New(&llmgateway.FakeProvider{Content: sampleExtraction}, "fake", &config.LLMProviderConfig{
		Type: config.LLMProviderTypeFake, Model: "fake-deterministic", MaxOutputTokens: 8192, TimeoutSeconds: 5,
	}, "")

	return New(gw, cr, st, b), b
}

func seedProjectAndPipeline(t *testing.T, parser *Parser) (string, string) {
	t.Helper()
	ctx := context.Background()

	project := &models.Project{Name: "test", Requirements: "x", TargetLanguage: "C#"}
	require.NoError(t, parser.store.Projects.Create(ctx, project))

	pipeline := &models.PipelineExecution{ProjectID: project.ID, Stage: models.StagePlanning, Status: models.ExecutionStatusRunning}
	require.NoError(t, parser.store.PipelineExecutions.Create(ctx, pipeline))

	return project.ID, pipeline.ID
}

func TestIngest_ExtractsSpecsAndDerivesUnit(t *testing.T) {
	parser, _ := newTestParser(t)
	projectID, pipelineID := seedProjectAndPipeline(t, parser)

	specs, units := parser.Ingest(context.Background(), "some markdown", Context{
		ProjectID: projectID, PipelineID: pipelineID, AgentType: "designer", TargetLanguage: "C#",
	})

	require.Len(t, specs, 2, "the empty-functionName entry must be skipped")
	require.Len(t, units, 1)

	unit := units[0]
	assert.Equal(t, "UserService", unit.Name)
	assert.Equal(t, models.UnitTypeService, unit.UnitType)
	assert.Equal(t, "Ensemble.Maestro.Generated", unit.Namespace)
	assert.Equal(t, "/Services/UserService.cs", unit.FilePath)
	assert.Equal(t, 2, unit.FunctionCount)
	assert.Equal(t, 1, unit.SimpleFunctionCount)
	assert.Equal(t, 1, unit.ComplexFunctionCount)
	assert.Equal(t, models.PriorityCritical, unit.Priority, "priority is the max across members")
	assert.Equal(t, 30, unit.EstimatedMinutes)
	assert.Equal(t, 5, unit.Complexity, "ceil(avg(3,6)) == 5")
}

func TestIngest_EmitsOneAssignmentPerUnit(t *testing.T) {
	parser, b := newTestParser(t)
	projectID, pipelineID := seedProjectAndPipeline(t, parser)

	_, units := parser.Ingest(context.Background(), "markdown", Context{
		ProjectID: projectID, PipelineID: pipelineID, AgentType: "designer", TargetLanguage: "C#",
	})
	require.Len(t, units, 1)

	msg, err := b.Receive(context.Background(), swarmtypes.QueueCodeUnitAssignments)
	require.NoError(t, err)
	require.NotNil(t, msg)
}

func TestIngest_NoJSONArrayReturnsEmpty(t *testing.T) {
	parser := New(
		llmgateway.New(&llmgateway.FakeProvider{Content: "no structured data here"}, "fake",
			&config.LLMProviderConfig{Type: config.LLMProviderTypeFake, Model: "fake", MaxOutputTokens: 1024, TimeoutSeconds: 5}, ""),
		crossref.New(testdb.NewTestStore(t).CrossReferences, crossref.NewMemoryGraphStore(), crossref.NewMemorySearchIndex()),
		testdb.NewTestStore(t),
		bus.New(bus.NewMemoryStore(), config.DefaultBusConfig()),
	)

	specs, units := parser.Ingest(context.Background(), "x", Context{
		ProjectID: uuid.NewString(), PipelineID: uuid.NewString(), AgentType: "designer", TargetLanguage: "C#",
	})

	assert.Empty(t, specs)
	assert.Empty(t, units)
}

func TestIngest_GatewayFailureReturnsEmpty(t *testing.T) {
	parser := New(
		llmgateway.New(&llmgateway.FakeProvider{Fn: func(llmgateway.ProviderRequest) (string, error) {
			return "", assert.AnError
		}}, "fake", &config.LLMProviderConfig{Type: config.LLMProviderTypeFake, Model: "fake", MaxOutputTokens: 1024, TimeoutSeconds: 5}, ""),
		crossref.New(testdb.NewTestStore(t).CrossReferences, crossref.NewMemoryGraphStore(), crossref.NewMemorySearchIndex()),
		testdb.NewTestStore(t),
		bus.New(bus.NewMemoryStore(), config.DefaultBusConfig()),
	)

	specs, units := parser.Ingest(context.Background(), "x", Context{
		ProjectID: uuid.NewString(), PipelineID: uuid.NewString(), AgentType: "designer", TargetLanguage: "C#",
	})

	assert.Empty(t, specs)
	assert.Empty(t, units)
}

func TestInferUnitType(t *testing.T) {
	cases := map[string]models.UnitType{
		"UserService":      models.UnitTypeService,
		"UserController":   models.UnitTypeController,
		"UserRepository":   models.UnitTypeRepository,
		"IUserStore":       models.UnitTypeInterface,
		"UserModel":        models.UnitTypeEntity,
		"NotFoundException": models.UnitTypeException,
		"StringHelper":     models.UnitTypeUtility,
		"Widget":           models.UnitTypeClass,
	}
	for name, want := range cases {
		assert.Equal(t, want, inferUnitType(name), "name=%s", name)
	}
}

func TestFilePathFor(t *testing.T) {
	assert.Equal(t, "/Services/UserService.cs", filePathFor("UserService", models.UnitTypeService, "C#"))
	assert.Equal(t, "/Controllers/UserController.ts", filePathFor("UserController", models.UnitTypeController, "TypeScript"))
}
