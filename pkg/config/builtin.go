package config

import "time"

// BuiltinConfig holds the compiled-in agent and provider defaults merged
// underneath whatever the operator supplies in maestro.yaml.
type BuiltinConfig struct {
	Agents             map[string]AgentConfig
	LLMProviders       map[string]LLMProviderConfig
	DefaultLLMProvider string
}

// GetBuiltinConfig returns the built-in agent and provider definitions:
// one agent per pipeline stage role, wired to the "claude-default" provider.
func GetBuiltinConfig() *BuiltinConfig {
	defaultMaxIterations := 4

	return &BuiltinConfig{
		DefaultLLMProvider: "claude-default",
		LLMProviders: map[string]LLMProviderConfig{
			"claude-default": {
				Type:                LLMProviderTypeAnthropic,
				Model:               "claude-sonnet-4-5-20250929",
				APIKeyEnv:           "ANTHROPIC_API_KEY",
				MaxOutputTokens:     8192,
				TimeoutSeconds:      120,
				InputCostPerMToken:  3.0,
				OutputCostPerMToken: 15.0,
			},
			"fake": {
				Type:            LLMProviderTypeFake,
				Model:           "fake-deterministic",
				MaxOutputTokens: 8192,
				TimeoutSeconds:  5,
			},
		},
		Agents: map[string]AgentConfig{
			"planner": {
				Type:        AgentTypePlanner,
				Description: "Turns a natural-language brief into a structured FeatureSpec",
				LLMProvider: "claude-default",
				Timeout:     90 * time.Second,
			},
			"designer": {
				Type:        AgentTypeDesigner,
				Description: "Decomposes a FeatureSpec into FunctionSpecifications and CodeUnits",
				LLMProvider: "claude-default",
				Timeout:     120 * time.Second,
			},
			"method_worker": {
				Type:          AgentTypeMethodWorker,
				Description:   "Implements a single method body against its FunctionSpecification",
				LLMProvider:   "claude-default",
				MaxIterations: &defaultMaxIterations,
				Timeout:       60 * time.Second,
			},
			"builder": {
				Type:        AgentTypeBuilder,
				Description: "Assembles CodeDocuments and drives the language toolchain",
				LLMProvider: "claude-default",
				Timeout:     60 * time.Second,
			},
			"validator": {
				Type:        AgentTypeValidator,
				Description: "Reviews build output and emits pass/fail findings",
				LLMProvider: "claude-default",
				Timeout:     60 * time.Second,
			},
		},
	}
}
