// Package pipeline implements the Pipeline Executor (C7): the
// Planning→Designing→Swarming→Building→Validating→Completed stage
// machine that drives a project's agents end to end.
//
// Grounded on
// _examples/codeready-toolchain-tarsy/pkg/agent/orchestrator/runner.go's
// stage-sequencing and cancellation-checking style, and
// pkg/config/chain.go's "registry of stage roles resolved at compile
// time, never by reflection" pattern (spec.md §9's redesign note on
// dynamic dispatch by agent type).
package pipeline

import (
	"context"
	"fmt"

	"github.com/ensemble-maestro/swarm/pkg/config"
	"github.com/ensemble-maestro/swarm/pkg/llmgateway"
)

// AgentRequest is what a stage hands a generic Agent to run one LLM call.
type AgentRequest struct {
	System string
	User   string
}

// AgentResult is one Agent invocation's output plus usage/cost accounting,
// ready to persist as an AgentExecution row.
type AgentResult struct {
	Output     string
	TokensIn   int
	TokensOut  int
	Cost       float64
	Model      string
	DurationMs int64
	Success    bool
	Error      string
}

// Agent is the stage-role surface every pipeline stage calls through —
// one Generate call per invocation. Planning/Validating/Designing all use
// the same concrete implementation; only their instructions differ.
type Agent interface {
	Run(ctx context.Context, req AgentRequest) AgentResult
}

// AgentFactory builds an Agent for one registered config.AgentConfig.
// Compile-time map dispatch only — spec.md §9 explicitly redesigns away
// the source's reflection-based agent-class resolution.
type AgentFactory func(agentCfg *config.AgentConfig, providers *config.LLMProviderRegistry, artifactDir string) (Agent, error)

// AgentFactories is the fixed registry of stage-role constructors. Every
// AgentType spec.md names must appear here; an unregistered type is a
// configuration bug, not a runtime guess.
var AgentFactories = map[config.AgentType]AgentFactory{
	config.AgentTypePlanner:      newGatewayAgent,
	config.AgentTypeDesigner:     newGatewayAgent,
	config.AgentTypeMethodWorker: newGatewayAgent,
	config.AgentTypeBuilder:      newGatewayAgent,
	config.AgentTypeValidator:    newGatewayAgent,
}

// gatewayAgent adapts an llmgateway.Gateway to the Agent interface.
type gatewayAgent struct {
	gateway   *llmgateway.Gateway
	agentType string
	stage     string
}

func newGatewayAgent(agentCfg *config.AgentConfig, providers *config.LLMProviderRegistry, artifactDir string) (Agent, error) {
	gw, err := llmgateway.NewFromConfig(providers, agentCfg.LLMProvider, artifactDir)
	if err != nil {
		return nil, fmt.Errorf("build agent for type %s: %w", agentCfg.Type, err)
	}
	return &gatewayAgent{gateway: gw, agentType: string(agentCfg.Type), stage: stageForAgentType(agentCfg.Type)}, nil
}

func (a *gatewayAgent) Run(ctx context.Context, req AgentRequest) AgentResult {
	resp := a.gateway.Generate(ctx, llmgateway.Request{
		System:    req.System,
		User:      req.User,
		AgentType: a.agentType,
		Stage:     a.stage,
	})
	return AgentResult{
		Output:     resp.Content,
		TokensIn:   resp.TokensIn,
		TokensOut:  resp.TokensOut,
		Cost:       resp.Cost,
		Model:      resp.Model,
		DurationMs: resp.DurationMs,
		Success:    resp.Success,
		Error:      resp.Error,
	}
}

// stageForAgentType names the artifact stage folder an agent's generated
// output should be filed under.
func stageForAgentType(t config.AgentType) string {
	switch t {
	case config.AgentTypePlanner:
		return string(config.StagePlanning)
	case config.AgentTypeDesigner:
		return string(config.StageDesigning)
	case config.AgentTypeMethodWorker:
		return string(config.StageSwarming)
	case config.AgentTypeBuilder:
		return string(config.StageBuilding)
	case config.AgentTypeValidator:
		return string(config.StageValidating)
	default:
		return "unknown"
	}
}

// buildAgent resolves and constructs the Agent for one registered
// AgentConfig, returning config.ErrAgentNotFound wrapped if its type has
// no registered factory.
func buildAgent(agentCfg *config.AgentConfig, providers *config.LLMProviderRegistry, artifactDir string) (Agent, error) {
	factory, ok := AgentFactories[agentCfg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", config.ErrAgentNotFound, agentCfg.Type)
	}
	return factory(agentCfg, providers, artifactDir)
}
