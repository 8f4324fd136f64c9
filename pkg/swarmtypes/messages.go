// Package swarmtypes defines the wire-format messages that flow across the
// Message Bus between the Designer-Output Parser, the Pipeline Executor's
// Swarming stage, the Orchestrator Supervisor, and the Code-Unit Controller.
// Keeping these in their own package (rather than under pkg/bus or
// pkg/codeunit) lets producers and consumers share one definition without
// an import cycle: pkg/designer and pkg/pipeline produce these, pkg/codeunit
// consumes them, and pkg/bus never needs to know their shape.
package swarmtypes

import (
	"time"

	"github.com/ensemble-maestro/swarm/pkg/models"
)

// FunctionAssignment is one function's work item within a CodeUnitAssignment,
// per spec.md §6.
type FunctionAssignment struct {
	AssignmentID             string          `json:"assignmentId"`
	FunctionSpecificationID  string          `json:"functionSpecificationId"`
	FunctionName             string          `json:"functionName"`
	CodeUnit                 string          `json:"codeUnit"`
	Signature                string          `json:"signature"`
	Description              string          `json:"description"`
	BusinessLogic            string          `json:"businessLogic,omitempty"`
	ValidationRules          string          `json:"validationRules,omitempty"`
	ErrorHandling            string          `json:"errorHandling,omitempty"`
	SecurityConsiderations   string          `json:"securityConsiderations,omitempty"`
	TestCases                string          `json:"testCases,omitempty"`
	ComplexityRating         int             `json:"complexityRating"`
	EstimatedMinutes         int             `json:"estimatedMinutes"`
	Priority                 models.Priority `json:"priority"`
	TargetLanguage           string          `json:"targetLanguage"`
	AssignedAt               time.Time       `json:"assignedAt"`
	DueAt                    time.Time       `json:"dueAt"`
}

// CodeUnitAssignment is the message the Designer-Output Parser (and, on
// re-emission, the Swarming stage) publishes to swarm.codeunit.assignments
// for one code unit's worth of function work, per spec.md §6.
type CodeUnitAssignment struct {
	AssignmentID         string                `json:"assignmentId"`
	CodeUnitID           string                `json:"codeUnitId"`
	Name                 string                `json:"name"`
	UnitType             models.UnitType       `json:"unitType"`
	Namespace            string                `json:"namespace,omitempty"`
	Description          string                `json:"description,omitempty"`
	Functions            []FunctionAssignment  `json:"functions"`
	SimpleFunctionCount  int                   `json:"simpleFunctionCount"`
	ComplexFunctionCount int                   `json:"complexFunctionCount"`
	Dependencies         []string              `json:"dependencies,omitempty"`
	Patterns             []string              `json:"patterns,omitempty"`
	TestingStrategy      string                `json:"testingStrategy,omitempty"`
	ComplexityRating     int                   `json:"complexityRating"`
	EstimatedMinutes     int                   `json:"estimatedMinutes"`
	Priority             models.Priority       `json:"priority"`
	TargetLanguage       string                `json:"targetLanguage"`
	AssignedAt           time.Time             `json:"assignedAt"`
	DueAt                time.Time             `json:"dueAt"`
}

// BuilderNotificationStatus enumerates the terminal states a code unit can
// report to the Building stage.
type BuilderNotificationStatus string

const (
	BuilderNotificationComplete BuilderNotificationStatus = "Complete"
	BuilderNotificationFailed   BuilderNotificationStatus = "Failed"
)

// BuilderNotification is published onto builder.notifications exactly once
// per code unit, when its in-flight method job count reaches zero
// (spec.md §4.6 step 4, invariant P2).
type BuilderNotification struct {
	NotificationID string                    `json:"notificationId"`
	ProjectID      string                    `json:"projectId"`
	CodeUnitName   string                    `json:"codeUnitName"`
	Status         BuilderNotificationStatus `json:"status"`
	CompletedAt    time.Time                 `json:"completedAt"`
	Priority       int                       `json:"priority"`
}

// BuilderError is published onto builder.errors whenever a method worker or
// the dispatch step itself fails, per spec.md §4.6/§6. It never fails the
// pipeline by itself — per-function errors still count as "done" for
// drain purposes (spec.md §7 ProcessingError taxonomy).
type BuilderError struct {
	ErrorID            string   `json:"errorId"`
	ProjectID          string   `json:"projectId"`
	CodeUnitName       string   `json:"codeUnitName"`
	FunctionName       string   `json:"functionName,omitempty"`
	FunctionSignature  string   `json:"functionSignature,omitempty"`
	ErrorType          string   `json:"errorType"`
	ErrorMessage       string   `json:"errorMessage"`
	Details            string   `json:"details,omitempty"`
	StackTrace         string   `json:"stackTrace,omitempty"`
	FileName           string   `json:"fileName,omitempty"`
	LineNumber         int      `json:"lineNumber,omitempty"`
	Severity           int      `json:"severity"`
	SuggestedFix       string   `json:"suggestedFix,omitempty"`
	RelatedFunctions   []string `json:"relatedFunctions,omitempty"`
}

// Reserved queue and channel names, per spec.md §4.1.
const (
	QueueSpawnRequests         = "swarm.spawn.requests"
	QueueCompletions           = "swarm.completions"
	QueueFunctionAssignments   = "swarm.function.assignments"
	QueueCodeUnitAssignments   = "swarm.codeunit.assignments"
	QueueWorkloadDistribution  = "swarm.workload.distribution"
	QueueBuilderNotifications  = "builder.notifications"
	QueueBuilderErrors         = "builder.errors"

	ChannelStatusUpdates = "swarm.status.updates"
	ChannelHeartbeats    = "swarm.heartbeats"
	ChannelShutdown      = "swarm.shutdown"
)
