package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ensemble-maestro/swarm/pkg/builder"
	"github.com/ensemble-maestro/swarm/pkg/bus"
	"github.com/ensemble-maestro/swarm/pkg/config"
	"github.com/ensemble-maestro/swarm/pkg/crossref"
	"github.com/ensemble-maestro/swarm/pkg/designer"
	"github.com/ensemble-maestro/swarm/pkg/llmgateway"
	"github.com/ensemble-maestro/swarm/pkg/models"
	"github.com/ensemble-maestro/swarm/pkg/pipeline"
	"github.com/ensemble-maestro/swarm/pkg/store"
	testdb "github.com/ensemble-maestro/swarm/test/database"
)

func fakeProviderCfg() *config.LLMProviderConfig {
	return &config.LLMProviderConfig{Type: config.LLMProviderTypeFake, Model: "fake-deterministic", MaxOutputTokens: 1024, TimeoutSeconds: 5}
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := testdb.NewTestStore(t)
	b := bus.New(bus.NewMemoryStore(), config.DefaultBusConfig())
	cr := crossref.New(st.CrossReferences, crossref.NewMemoryGraphStore(), crossref.NewMemorySearchIndex())

	designerGW := llmgateway.New(&llmgateway.FakeProvider{Content: "{}"}, "fake", fakeProviderCfg(), "")
	ds := designer.New(designerGW, cr, st, b)

	bd := builder.New(builder.FakeToolchain{Output: ""}, t.TempDir())

	agents := config.NewAgentRegistry(map[string]*config.AgentConfig{
		"planner":       {Type: config.AgentTypePlanner, LLMProvider: "fake"},
		"designer":      {Type: config.AgentTypeDesigner, LLMProvider: "fake"},
		"method_worker": {Type: config.AgentTypeMethodWorker, LLMProvider: "fake"},
		"builder":       {Type: config.AgentTypeBuilder, LLMProvider: "fake"},
		"validator":     {Type: config.AgentTypeValidator, LLMProvider: "fake"},
	})
	providers := config.NewLLMProviderRegistry(map[string]*config.LLMProviderConfig{"fake": fakeProviderCfg()})

	executor := pipeline.New(st, b, cr, ds, bd, agents, providers, t.TempDir())

	cfg := &config.Config{AgentRegistry: agents, LLMProviderRegistry: providers}
	return NewServer(cfg, st, executor), st
}

func TestCreateAndGetProject(t *testing.T) {
	s, _ := newTestServer(t)

	body, _ := json.Marshal(createProjectRequest{Name: "Demo", Requirements: "build a thing", TargetLanguage: "csharp"})
	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Demo", created.Name)
	assert.NotEmpty(t, created.ID)

	getReq := httptest.NewRequest(http.MethodGet, "/projects/"+created.ID, nil)
	getRec := httptest.NewRecorder()
	s.engine.ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)
}

func TestGetProject_NotFound(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/projects/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProjects(t *testing.T) {
	s, st := newTestServer(t)
	require.NoError(t, st.Projects.Create(req(t).Context(), &models.Project{Name: "A", Requirements: "x", TargetLanguage: "csharp"}))
	require.NoError(t, st.Projects.Create(req(t).Context(), &models.Project{Name: "B", Requirements: "x", TargetLanguage: "csharp"}))

	listReq := httptest.NewRequest(http.MethodGet, "/projects", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, listReq)
	require.Equal(t, http.StatusOK, rec.Code)

	var projects []*models.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &projects))
	assert.Len(t, projects, 2)
}

func TestStartTestbench_UnknownProjectReturns404(t *testing.T) {
	s, _ := newTestServer(t)

	body, _ := json.Marshal(startTestbenchRequest{ProjectID: "nope"})
	startReq := httptest.NewRequest(http.MethodPost, "/testbench/start", bytes.NewReader(body))
	startReq.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, startReq)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportExecution_UnsupportedFormatReturns501(t *testing.T) {
	s, st := newTestServer(t)
	project := &models.Project{Name: "Demo", Requirements: "x", TargetLanguage: "csharp"}
	require.NoError(t, st.Projects.Create(req(t).Context(), project))
	pe := &models.PipelineExecution{ProjectID: project.ID}
	require.NoError(t, st.PipelineExecutions.Create(req(t).Context(), pe))

	exportReq := httptest.NewRequest(http.MethodGet, "/exports/execution/"+pe.ID+"?format=csv", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, exportReq)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t)

	healthReq := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, healthReq)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// req returns a throwaway request solely for its background context.
func req(t *testing.T) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodGet, "/", nil)
}
