package config

import "time"

// SwarmConfig is the full Swarm Policy configuration (spec.md §4.5): the
// concurrency caps, priority scoring inputs, retry policy, throttling
// windows, autoscale thresholds, and per-agent-type resource limits that
// pkg/swarmpolicy.Policy enforces. It supplements the thin
// SwarmPolicyDefaults already folded into Defaults (kept there for
// validator.go's cross-field check against the throttle windows) with the
// rest of spec.md's enumerated fields.
type SwarmConfig struct {
	MaxConcurrentAgents         int `yaml:"max_concurrent_agents" validate:"required,min=1"`
	MaxAgentsPerProject         int `yaml:"max_agents_per_project" validate:"required,min=1"`
	MaxCostPerProject           float64 `yaml:"max_cost_per_project" validate:"min=0"`
	MaxControllers              int `yaml:"max_controllers" validate:"required,min=1"`
	MaxMethodAgentsPerController int `yaml:"max_method_agents_per_controller" validate:"required,min=1"`

	Priority PriorityConfig `yaml:"priority"`
	Retry    RetryConfig    `yaml:"retry"`

	Throttling   ThrottlingConfig   `yaml:"throttling"`
	AutoScaling  AutoScalingConfig  `yaml:"auto_scaling"`
	Health       HealthConfig       `yaml:"health"`

	// ResourceLimits is keyed by AgentType (string form, e.g. "method_worker").
	ResourceLimits map[string]ResourceLimit `yaml:"resource_limits"`
}

// PriorityConfig configures CalculatePriority's base score and boosts.
type PriorityConfig struct {
	DefaultPriority         int      `yaml:"default_priority" validate:"min=1"`
	MaxPriority             int      `yaml:"max_priority" validate:"min=1"`
	ComplexityPriorityBoost int      `yaml:"complexity_priority_boost"`
	ComplexityThreshold     int      `yaml:"complexity_threshold"`
	UrgentPriorityBoostCritical int  `yaml:"urgent_priority_boost_critical"`
	UrgentPriorityBoostHigh     int  `yaml:"urgent_priority_boost_high"`
	UrgentPriorityBoostLow      int  `yaml:"urgent_priority_boost_low"`
	HighPriorityAgentTypes  []string `yaml:"high_priority_agent_types,omitempty"`
}

// RetryConfig configures the backoff callers apply to LLM Gateway failures,
// per spec.md's "Swarm.Retry" settings referenced in §7.
type RetryConfig struct {
	MaxRetryAttempts int           `yaml:"max_retry_attempts" validate:"min=0"`
	InitialDelay     time.Duration `yaml:"initial_delay"`
	BackoffFactor    float64       `yaml:"backoff_factor" validate:"min=1"`
}

// ThrottlingConfig bounds spawn rate over rolling 1s/60s windows plus a
// minimum inter-spawn interval.
type ThrottlingConfig struct {
	Enabled           bool `yaml:"enabled"`
	MaxAgentsPerSecond int `yaml:"max_agents_per_second" validate:"min=1"`
	MaxAgentsPerMinute int `yaml:"max_agents_per_minute" validate:"min=1"`
	MinSpawnIntervalMs int `yaml:"min_spawn_interval_ms" validate:"min=0"`
}

// AutoScalingConfig drives RecommendAutoScale's thresholds.
type AutoScalingConfig struct {
	Enabled           bool `yaml:"enabled"`
	ScaleUpThreshold   int `yaml:"scale_up_threshold"`
	ScaleDownThreshold int `yaml:"scale_down_threshold"`
	ScaleUpIncrement   int `yaml:"scale_up_increment"`
	ScaleDownIncrement int `yaml:"scale_down_increment"`
	MinAgents          int `yaml:"min_agents" validate:"min=0"`
}

// HealthConfig bounds the success-rate floor used by RecommendAutoScale's
// health signal.
type HealthConfig struct {
	MinSuccessRatePercent     float64       `yaml:"min_success_rate_percent" validate:"min=0,max=100"`
	HealthCheckInterval       time.Duration `yaml:"health_check_interval"`
}

// ResourceLimit bounds one agent type's token/cost/concurrency budget.
type ResourceLimit struct {
	MaxTokens          int     `yaml:"max_tokens" validate:"min=0"`
	MaxCostPerExecution float64 `yaml:"max_cost_per_execution" validate:"min=0"`
	MaxConcurrent      int     `yaml:"max_concurrent" validate:"min=0"`
}

// DefaultSwarmConfig returns conservative built-in values for every
// spec.md §4.5 field, consistent with DefaultSwarmPolicyDefaults's
// concurrency/throttle/retry numbers.
func DefaultSwarmConfig() *SwarmConfig {
	return &SwarmConfig{
		MaxConcurrentAgents:          20,
		MaxAgentsPerProject:          10,
		MaxCostPerProject:            25.0,
		MaxControllers:               4,
		MaxMethodAgentsPerController: 4,
		Priority: PriorityConfig{
			DefaultPriority:             5,
			MaxPriority:                 10,
			ComplexityPriorityBoost:     2,
			ComplexityThreshold:         7,
			UrgentPriorityBoostCritical: 2,
			UrgentPriorityBoostHigh:     1,
			UrgentPriorityBoostLow:      -2,
			HighPriorityAgentTypes:      []string{"method_worker"},
		},
		Retry: RetryConfig{
			MaxRetryAttempts: 2,
			InitialDelay:     5 * time.Second,
			BackoffFactor:    2.0,
		},
		Throttling: ThrottlingConfig{
			Enabled:            true,
			MaxAgentsPerSecond: 5,
			MaxAgentsPerMinute: 120,
			MinSpawnIntervalMs: 50,
		},
		AutoScaling: AutoScalingConfig{
			Enabled:            true,
			ScaleUpThreshold:   20,
			ScaleDownThreshold: 2,
			ScaleUpIncrement:   2,
			ScaleDownIncrement: 1,
			MinAgents:          1,
		},
		Health: HealthConfig{
			MinSuccessRatePercent: 80,
			HealthCheckInterval:   30 * time.Second,
		},
		ResourceLimits: map[string]ResourceLimit{
			"method_worker": {MaxTokens: 8192, MaxCostPerExecution: 0.50, MaxConcurrent: 4},
			"designer":      {MaxTokens: 8192, MaxCostPerExecution: 1.00, MaxConcurrent: 2},
			"planner":       {MaxTokens: 8192, MaxCostPerExecution: 1.00, MaxConcurrent: 1},
			"builder":       {MaxTokens: 8192, MaxCostPerExecution: 1.00, MaxConcurrent: 1},
			"validator":     {MaxTokens: 8192, MaxCostPerExecution: 1.00, MaxConcurrent: 1},
		},
	}
}
