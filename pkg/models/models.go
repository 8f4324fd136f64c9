// Package models defines the plain Go structs persisted by pkg/store.
// These mirror the embedded SQL schema in pkg/database/migrations
// directly — there is no code-generation step between the two.
package models

import "time"

// ProjectStatus enumerates a Project's lifecycle.
type ProjectStatus string

const (
	ProjectStatusPending ProjectStatus = "pending"
	ProjectStatusRunning ProjectStatus = "running"
	ProjectStatusDone    ProjectStatus = "done"
	ProjectStatusFailed  ProjectStatus = "failed"
)

// Project is the top-level unit of work: a natural-language brief that a
// PipelineExecution turns into compiled code.
type Project struct {
	ID               string
	Name             string
	Requirements     string
	TargetLanguage   string
	DeploymentTarget string
	Status           ProjectStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ExecutionStatus enumerates the lifecycle shared by pipeline, stage, and
// agent executions.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSucceeded ExecutionStatus = "succeeded"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Stage enumerates the fixed pipeline stage order.
type Stage string

const (
	StagePlanning   Stage = "planning"
	StageDesigning  Stage = "designing"
	StageSwarming   Stage = "swarming"
	StageBuilding   Stage = "building"
	StageValidating Stage = "validating"
)

// StageOrder is the fixed, monotonic stage sequence spec.md §2/§4.7 defines.
var StageOrder = []Stage{StagePlanning, StageDesigning, StageSwarming, StageBuilding, StageValidating}

// PipelineExecution is one run of the Planning→Designing→Swarming→Building→
// Validating stage machine for a single Project. Single-instance-per-project,
// but many projects run concurrently.
type PipelineExecution struct {
	ID                string
	ProjectID         string
	Stage             Stage
	Status            ExecutionStatus
	StartedAt         time.Time
	StageStartedAt    time.Time
	CompletedAt       *time.Time
	ProgressPct       float64
	TotalFunctions    int
	CompletedFuncs    int
	FailedFuncs       int
	ErrorMessage      string
	ConfigSnapshot    string // JSON-encoded swarmpolicy.Config at pipeline start
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// StageExecution is one stage (Planning, Designing, ...) within a
// PipelineExecution, in its fixed order position.
type StageExecution struct {
	ID                  string
	PipelineExecutionID string
	StageName           Stage
	Order               int
	Status              ExecutionStatus
	StartedAt           time.Time
	CompletedAt         *time.Time
	ItemsCompleted      int
	ItemsFailed         int
	CreatedAt           time.Time
}

// AgentExecution is one LLM Gateway call made on behalf of a stage.
type AgentExecution struct {
	ID                string
	ProjectID         string
	PipelineID        string
	StageID           string
	AgentType         string
	Status            ExecutionStatus
	StartedAt         time.Time
	CompletedAt       *time.Time
	InputPrompt       string
	OutputResponse    string
	TokensIn          int
	TokensOut         int
	Cost              float64
	QualityScore      *float64
	ConfidenceScore   *float64
	ErrorMessage      string
	CreatedAt         time.Time
}

// DesignerOutputStatus enumerates a DesignerOutput's ingestion lifecycle.
type DesignerOutputStatus string

const (
	DesignerOutputStatusPending DesignerOutputStatus = "pending"
	DesignerOutputStatusParsed  DesignerOutputStatus = "parsed"
	DesignerOutputStatusFailed  DesignerOutputStatus = "failed"
)

// DesignerOutput is the raw markdown artifact produced by the Designing
// stage's agent call, before the Designer-Output Parser extracts structure
// from it.
type DesignerOutput struct {
	ID                string
	CrossRefID        string
	ProjectID         string
	PipelineID        string
	AgentType         string
	Markdown          string
	StructuredSummary string
	FunctionSpecCount int
	Complexity        int
	Quality           float64
	Status            DesignerOutputStatus
	CreatedAt         time.Time
}

// Priority enumerates the four-level urgency scale used by function specs,
// code units, and swarm policy prioritization.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// PriorityRank returns Priority's ordinal weight (higher = more urgent),
// used wherever spec.md takes "the max priority" of a set.
func PriorityRank(p Priority) int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// MaxPriority returns the highest-ranked of a and b.
func MaxPriority(a, b Priority) Priority {
	if PriorityRank(b) > PriorityRank(a) {
		return b
	}
	return a
}

// FunctionSpecStatus enumerates a FunctionSpecification's implementation
// lifecycle, driven by the Code-Unit Controller's method workers.
type FunctionSpecStatus string

const (
	FunctionSpecStatusPending FunctionSpecStatus = "pending"
	FunctionSpecStatusDone    FunctionSpecStatus = "done"
	FunctionSpecStatusFailed  FunctionSpecStatus = "failed"
)

// FunctionSpecification is one function the Designer-Output Parser
// extracted from a DesignerOutput's JSON array. CodeUnit names the group
// (by convention, one CodeUnit row shares this value in its Name field) —
// it is a name, not a foreign key, so the parser can derive CodeUnits from
// specs in a single pass before any CodeUnit row exists.
type FunctionSpecification struct {
	ID                 string
	CrossRefID         string
	ProjectID          string
	PipelineID         string
	CodeUnit           string
	FunctionName       string
	Signature          string
	Description        string
	BusinessLogic      string
	ValidationRules    string
	ErrorHandling      string
	ComplexityRating   int // 1..10
	EstimatedMinutes   int
	Priority           Priority
	Language           string
	Status             FunctionSpecStatus
	CreatedAt          time.Time
}

// UnitType enumerates the code-unit shapes the parser infers from a name.
type UnitType string

const (
	UnitTypeService    UnitType = "service"
	UnitTypeController UnitType = "controller"
	UnitTypeRepository UnitType = "repository"
	UnitTypeInterface  UnitType = "interface"
	UnitTypeEntity     UnitType = "entity"
	UnitTypeException  UnitType = "exception"
	UnitTypeUtility    UnitType = "utility"
	UnitTypeClass      UnitType = "class"
)

// CodeUnitStatus enumerates a CodeUnit's dispatch lifecycle.
type CodeUnitStatus string

const (
	CodeUnitStatusPlanned    CodeUnitStatus = "planned"
	CodeUnitStatusAssigned   CodeUnitStatus = "assigned"
	CodeUnitStatusInProgress CodeUnitStatus = "in_progress"
	CodeUnitStatusComplete   CodeUnitStatus = "complete"
	CodeUnitStatusFailed     CodeUnitStatus = "failed"
)

// CodeUnit is a group of FunctionSpecifications sharing a name (a
// class/service/controller/etc.), aggregated by the Designer-Output Parser
// and tracked by the Code-Unit Controller until every method-level job
// completes.
type CodeUnit struct {
	ID                  string
	CrossRefID          string
	ProjectID           string
	PipelineID          string
	DesignerOutputID    string
	Name                string
	UnitType            UnitType
	Namespace           string
	Language            string
	FilePath            string
	FunctionCount       int
	SimpleFunctionCount  int // rating < 4
	ComplexFunctionCount int // rating >= 4
	Complexity           int
	Priority             Priority
	EstimatedMinutes     int
	Status               CodeUnitStatus
	CompletionPct        float64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CodeDocument is the generated source of one function belonging to a
// CodeUnit, written by method workers and collected by the Building stage.
type CodeDocument struct {
	ID           string
	ProjectID    string
	CodeUnitName string
	FunctionName string
	Content      string
	SizeBytes    int
	CreatedAt    time.Time
}

// CrossReferenceStatus enumerates the three-store write protocol's progress,
// per spec.md §3/§4.2.
type CrossReferenceStatus string

const (
	CrossReferenceStatusActive           CrossReferenceStatus = "active"
	CrossReferenceStatusPartiallyOrphan  CrossReferenceStatus = "partially_orphaned"
	CrossReferenceStatusOrphaned         CrossReferenceStatus = "orphaned"
	CrossReferenceStatusPendingDeletion  CrossReferenceStatus = "pending_deletion"
)

// EntityType names the kind of durable entity a CrossReference tracks.
type EntityType string

const (
	EntityTypeProject          EntityType = "project"
	EntityTypeDesignerOutput   EntityType = "designer_output"
	EntityTypeFunctionSpec     EntityType = "function_specification"
	EntityTypeCodeUnit         EntityType = "code_unit"
)

// CrossReference is the tuple of ids linking one logical entity across
// SQL, graph, and search stores — spec.md's three-store write protocol,
// used for every durable entity the pipeline produces (not just one join).
type CrossReference struct {
	PrimaryID     string
	EntityType    EntityType
	SQLID         string
	GraphID       string
	SearchID      string
	Status        CrossReferenceStatus
	IntegrityHash string
	Metadata      string // JSON-encoded free-form metadata
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
