package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator validates configuration comprehensively with clear error messages.
// Struct-tag validation (via go-playground/validator) catches required
// fields and ranges; hand-written cross-field checks below catch anything
// a single struct can't express (provider references, swarm throttling and
// priority consistency).
type Validator struct {
	cfg      *Config
	validate *validator.Validate
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg, validate: validator.New()}
}

// ValidateAll performs comprehensive validation, fail-fast at the first error.
// Order matters: LLM providers must be valid before agents can be checked
// against them.
func (v *Validator) ValidateAll() error {
	if err := v.validateBus(); err != nil {
		return fmt.Errorf("bus validation failed: %w", err)
	}
	if err := v.validateLLMProviders(); err != nil {
		return fmt.Errorf("LLM provider validation failed: %w", err)
	}
	if err := v.validateAgents(); err != nil {
		return fmt.Errorf("agent validation failed: %w", err)
	}
	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}
	if err := v.validateSwarm(); err != nil {
		return fmt.Errorf("swarm validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateSwarm() error {
	s := v.cfg.Swarm
	if s == nil {
		return fmt.Errorf("swarm configuration is nil")
	}
	if s.MaxAgentsPerProject > s.MaxConcurrentAgents {
		return fmt.Errorf("max_agents_per_project (%d) cannot exceed max_concurrent_agents (%d)",
			s.MaxAgentsPerProject, s.MaxConcurrentAgents)
	}
	if s.Priority.DefaultPriority > s.Priority.MaxPriority {
		return fmt.Errorf("priority.default_priority (%d) cannot exceed priority.max_priority (%d)",
			s.Priority.DefaultPriority, s.Priority.MaxPriority)
	}
	if s.Throttling.Enabled && s.Throttling.MaxAgentsPerMinute > s.Throttling.MaxAgentsPerSecond*60*2 {
		// Generous slack factor: a 60s window denser than ~2x the 1s*60
		// rate signals the two windows were configured inconsistently.
		return fmt.Errorf("throttling.max_agents_per_second (%d) is inconsistent with max_agents_per_minute (%d)",
			s.Throttling.MaxAgentsPerSecond, s.Throttling.MaxAgentsPerMinute)
	}
	if s.AutoScaling.Enabled && s.AutoScaling.ScaleDownThreshold >= s.AutoScaling.ScaleUpThreshold {
		return fmt.Errorf("auto_scaling.scale_down_threshold (%d) must be less than scale_up_threshold (%d)",
			s.AutoScaling.ScaleDownThreshold, s.AutoScaling.ScaleUpThreshold)
	}
	return nil
}

func (v *Validator) validateBus() error {
	b := v.cfg.Bus
	if b == nil {
		return fmt.Errorf("bus configuration is nil")
	}
	if err := v.validate.Struct(b); err != nil {
		return err
	}
	if !b.Backend.IsValid() {
		return fmt.Errorf("unknown bus backend %q", b.Backend)
	}
	if b.Backend == BusBackendRedis && b.RedisAddr == "" {
		return fmt.Errorf("redis_addr is required when backend is redis")
	}
	if b.MaxDeliveryAttempts < 1 {
		return fmt.Errorf("max_delivery_attempts must be at least 1, got %d", b.MaxDeliveryAttempts)
	}
	for name, override := range b.Overrides {
		if override.MaxDeliveryAttempts != nil && *override.MaxDeliveryAttempts < 1 {
			return fmt.Errorf("queue override %q: max_delivery_attempts must be at least 1", name)
		}
	}
	return nil
}

func (v *Validator) validateLLMProviders() error {
	providers := v.cfg.LLMProviderRegistry.GetAll()
	if len(providers) == 0 {
		return fmt.Errorf("at least one LLM provider must be configured")
	}
	for name, p := range providers {
		if err := v.validate.Struct(p); err != nil {
			return fmt.Errorf("provider %q: %w", name, err)
		}
		if !p.Type.IsValid() {
			return fmt.Errorf("provider %q: unknown type %q", name, p.Type)
		}
		if p.Type == LLMProviderTypeAnthropic && p.APIKeyEnv == "" {
			return fmt.Errorf("provider %q: api_key_env is required for anthropic providers", name)
		}
	}
	return nil
}

func (v *Validator) validateAgents() error {
	agents := v.cfg.AgentRegistry.GetAll()
	if len(agents) == 0 {
		return fmt.Errorf("at least one agent must be configured")
	}
	for name, a := range agents {
		if err := v.validate.Struct(a); err != nil {
			return fmt.Errorf("agent %q: %w", name, err)
		}
		if !a.Type.IsValid() {
			return fmt.Errorf("agent %q: unknown type %q", name, a.Type)
		}
		if !v.cfg.LLMProviderRegistry.Has(a.LLMProvider) {
			return fmt.Errorf("agent %q: references unknown llm_provider %q", name, a.LLMProvider)
		}
	}
	return nil
}

func (v *Validator) validateDefaults() error {
	d := v.cfg.Defaults
	if d == nil {
		return fmt.Errorf("defaults configuration is nil")
	}
	if d.LLMProvider != "" && !v.cfg.LLMProviderRegistry.Has(d.LLMProvider) {
		return fmt.Errorf("defaults.llm_provider references unknown provider %q", d.LLMProvider)
	}
	if d.SwarmPolicy == nil {
		return fmt.Errorf("defaults.swarm_policy is required")
	}
	if err := v.validate.Struct(d.SwarmPolicy); err != nil {
		return fmt.Errorf("swarm_policy: %w", err)
	}
	if d.SwarmPolicy.ThrottleWindow1sLimit > d.SwarmPolicy.ThrottleWindow60sLimit {
		return fmt.Errorf("throttle_window_1s_limit (%d) cannot exceed throttle_window_60s_limit (%d)",
			d.SwarmPolicy.ThrottleWindow1sLimit, d.SwarmPolicy.ThrottleWindow60sLimit)
	}
	return nil
}
