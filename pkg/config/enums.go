package config

// AgentType determines which pipeline stage role an agent configuration
// applies to — drives factory selection in pkg/pipeline.AgentFactories.
type AgentType string

const (
	AgentTypePlanner      AgentType = "planner"      // Planning stage: brief to FeatureSpec
	AgentTypeDesigner     AgentType = "designer"      // Designing stage: FeatureSpec to FunctionSpecifications
	AgentTypeMethodWorker AgentType = "method_worker" // Swarming/Building: implements a single method
	AgentTypeBuilder      AgentType = "builder"       // Building stage: assembles CodeDocuments
	AgentTypeValidator    AgentType = "validator"     // Validating stage: reviews build output
)

// IsValid reports whether the agent type is one of the known pipeline roles.
func (t AgentType) IsValid() bool {
	switch t {
	case AgentTypePlanner, AgentTypeDesigner, AgentTypeMethodWorker, AgentTypeBuilder, AgentTypeValidator:
		return true
	default:
		return false
	}
}

// LLMProviderType identifies which SDK backs an LLMProviderConfig entry.
type LLMProviderType string

const (
	// LLMProviderTypeAnthropic is the Claude Messages API via anthropic-sdk-go.
	LLMProviderTypeAnthropic LLMProviderType = "anthropic"
	// LLMProviderTypeFake is the deterministic in-process provider used in tests.
	LLMProviderTypeFake LLMProviderType = "fake"
)

// IsValid reports whether the provider type is supported.
func (t LLMProviderType) IsValid() bool {
	return t == LLMProviderTypeAnthropic || t == LLMProviderTypeFake
}

// BusBackend selects the Message Bus's backing store implementation.
type BusBackend string

const (
	// BusBackendRedis uses a real (or miniredis-fake) Redis instance.
	BusBackendRedis BusBackend = "redis"
	// BusBackendMemory uses the in-process map-backed store.
	BusBackendMemory BusBackend = "memory"
)

// IsValid reports whether the bus backend is supported.
func (b BusBackend) IsValid() bool {
	return b == BusBackendRedis || b == BusBackendMemory
}

// StageName identifies one of the five pipeline stages, in execution order.
type StageName string

const (
	StagePlanning   StageName = "planning"
	StageDesigning  StageName = "designing"
	StageSwarming   StageName = "swarming"
	StageBuilding   StageName = "building"
	StageValidating StageName = "validating"
)

// StageOrder lists every stage in the order the Pipeline Executor runs them.
var StageOrder = []StageName{StagePlanning, StageDesigning, StageSwarming, StageBuilding, StageValidating}

// IsValid reports whether the stage name is one of the five known stages.
func (s StageName) IsValid() bool {
	switch s {
	case StagePlanning, StageDesigning, StageSwarming, StageBuilding, StageValidating:
		return true
	default:
		return false
	}
}
