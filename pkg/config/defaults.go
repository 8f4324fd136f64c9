package config

// Defaults contains system-wide default configuration, used when a
// component doesn't specify its own override.
type Defaults struct {
	// LLMProvider names the system-wide default provider; validation checks
	// that it exists. It is not applied to agents: each agent names its own
	// llm_provider.
	LLMProvider string `yaml:"llm_provider,omitempty"`

	// MaxIterations bounds self-correction loops when an agent config
	// doesn't override it.
	MaxIterations *int `yaml:"max_iterations,omitempty" validate:"omitempty,min=1"`

	// SwarmPolicy holds system-wide concurrency, throttle, and retry
	// defaults for the Swarm Policy component.
	SwarmPolicy *SwarmPolicyDefaults `yaml:"swarm_policy,omitempty"`
}

// SwarmPolicyDefaults mirrors swarmpolicy.Config's YAML shape so it can be
// loaded without pkg/config importing pkg/swarmpolicy.
type SwarmPolicyDefaults struct {
	// MaxConcurrentCodeUnits caps how many code units may be dispatched at once.
	MaxConcurrentCodeUnits int `yaml:"max_concurrent_code_units" validate:"required,min=1"`

	// MaxConcurrentMethodsPerUnit caps concurrent method workers within one code unit.
	MaxConcurrentMethodsPerUnit int `yaml:"max_concurrent_methods_per_unit" validate:"required,min=1"`

	// ThrottleWindow1sLimit and ThrottleWindow60sLimit bound dispatch rate
	// over rolling one-second and one-minute windows respectively.
	ThrottleWindow1sLimit  int `yaml:"throttle_window_1s_limit" validate:"required,min=1"`
	ThrottleWindow60sLimit int `yaml:"throttle_window_60s_limit" validate:"required,min=1"`

	// MaxRetries and RetryBackoffSeconds bound per-job retry behavior.
	MaxRetries          int `yaml:"max_retries" validate:"min=0"`
	RetryBackoffSeconds int `yaml:"retry_backoff_seconds" validate:"min=0"`
}

// DefaultSwarmPolicyDefaults returns conservative built-in swarm policy values.
func DefaultSwarmPolicyDefaults() *SwarmPolicyDefaults {
	return &SwarmPolicyDefaults{
		MaxConcurrentCodeUnits:      10,
		MaxConcurrentMethodsPerUnit: 4,
		ThrottleWindow1sLimit:       5,
		ThrottleWindow60sLimit:      120,
		MaxRetries:                  2,
		RetryBackoffSeconds:         5,
	}
}
