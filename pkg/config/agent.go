// Package config provides configuration management for the orchestrator:
// agent, LLM provider, bus, and swarm policy configuration.
package config

import (
	"fmt"
	"sync"
	"time"
)

// AgentConfig defines the configuration for one stage-role agent (metadata
// only — see pipeline.AgentFactories for instantiation).
type AgentConfig struct {
	// Type determines which pipeline stage this agent configuration serves.
	Type AgentType `yaml:"type" validate:"required"`

	// Human-readable description.
	Description string `yaml:"description,omitempty"`

	// LLMProvider names an entry in the LLMProviderRegistry this agent calls.
	LLMProvider string `yaml:"llm_provider" validate:"required"`

	// CustomInstructions overrides the built-in system prompt for this role.
	CustomInstructions string `yaml:"custom_instructions,omitempty"`

	// MaxIterations bounds self-correction loops for method workers.
	MaxIterations *int `yaml:"max_iterations,omitempty" validate:"omitempty,min=1"`

	// Timeout bounds a single LLM round trip for this agent.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// AgentRegistry stores agent configurations in memory with thread-safe access.
type AgentRegistry struct {
	agents map[string]*AgentConfig
	mu     sync.RWMutex
}

// NewAgentRegistry creates a new agent registry from a defensively-copied map.
func NewAgentRegistry(agents map[string]*AgentConfig) *AgentRegistry {
	copied := make(map[string]*AgentConfig, len(agents))
	for k, v := range agents {
		copied[k] = v
	}
	return &AgentRegistry{agents: copied}
}

// Get retrieves an agent configuration by name.
func (r *AgentRegistry) Get(name string) (*AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, exists := r.agents[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return agent, nil
}

// GetAll returns a defensive copy of every registered agent configuration.
func (r *AgentRegistry) GetAll() map[string]*AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*AgentConfig, len(r.agents))
	for k, v := range r.agents {
		result[k] = v
	}
	return result
}

// Has reports whether an agent configuration is registered under name.
func (r *AgentRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.agents[name]
	return exists
}

// Len returns the number of registered agent configurations.
func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
