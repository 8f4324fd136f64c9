package codeunit

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ensemble-maestro/swarm/pkg/models"
	"github.com/ensemble-maestro/swarm/pkg/swarmpolicy"
	"github.com/ensemble-maestro/swarm/pkg/swarmtypes"
)

// FunctionSpec is the trimmed-down view of a FunctionAssignment a
// MethodJobPacket carries, enriched with the return-type/access-modifier
// parse spec.md §4.6 step 3a asks for.
type FunctionSpec struct {
	FunctionName     string
	CodeUnit         string
	Signature        string
	Description      string
	BusinessLogic    string
	ValidationRules  string
	ErrorHandling    string
	ComplexityRating int
	ReturnType       string
	AccessModifier   string
	IsStatic         bool
	IsAsync          bool
}

// MethodJobPacket is the unit of work handed to a MethodWorker.
type MethodJobPacket struct {
	JobID        string
	ProjectID    string
	CodeUnitName string
	Spec         FunctionSpec
	Priority     int
	Context      map[string]string
}

var (
	taskGenericPattern = regexp.MustCompile(`(?i)\btask<`)
	taskPlainPattern   = regexp.MustCompile(`(?i)\btask\b`)
)

// buildPacket implements spec.md §4.6 step 3a/priority-calculation: parse
// the raw signature by simple keyword matching, then score the packet's
// queue priority.
func buildPacket(projectID string, assignment swarmtypes.CodeUnitAssignment, fn swarmtypes.FunctionAssignment, _ *swarmpolicy.Policy) MethodJobPacket {
	spec := FunctionSpec{
		FunctionName:     fn.FunctionName,
		CodeUnit:         fn.CodeUnit,
		Signature:        fn.Signature,
		Description:      fn.Description,
		BusinessLogic:    fn.BusinessLogic,
		ValidationRules:  fn.ValidationRules,
		ErrorHandling:    fn.ErrorHandling,
		ComplexityRating: fn.ComplexityRating,
		ReturnType:       parseReturnType(fn.Signature),
		AccessModifier:   parseAccessModifier(fn.Signature),
		IsStatic:         containsWord(fn.Signature, "static"),
		IsAsync:          containsWord(fn.Signature, "async") || taskPlainPattern.MatchString(fn.Signature),
	}

	priority := packetPriority(spec, fn.Priority)

	return MethodJobPacket{
		JobID:        uuid.NewString(),
		ProjectID:    projectID,
		CodeUnitName: assignment.Name,
		Spec:         spec,
		Priority:     priority,
		Context: map[string]string{
			"namespace":      assignment.Namespace,
			"targetLanguage": fn.TargetLanguage,
		},
	}
}

// parseReturnType applies spec.md §4.6 step 3a's keyword ladder:
// Task<...>/Task/string/int/bool, else object.
func parseReturnType(signature string) string {
	switch {
	case taskGenericPattern.MatchString(signature):
		return "Task<object>"
	case taskPlainPattern.MatchString(signature):
		return "Task"
	case containsWord(signature, "string"):
		return "string"
	case containsWord(signature, "int"):
		return "int"
	case containsWord(signature, "bool"):
		return "bool"
	default:
		return "object"
	}
}

// parseAccessModifier applies spec.md §4.6 step 3a's keyword ladder:
// private/protected/internal, else public.
func parseAccessModifier(signature string) string {
	switch {
	case containsWord(signature, "private"):
		return "private"
	case containsWord(signature, "protected"):
		return "protected"
	case containsWord(signature, "internal"):
		return "internal"
	default:
		return "public"
	}
}

func containsWord(signature, word string) bool {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	return re.MatchString(signature)
}

// packetPriority implements spec.md §4.6's packet priority formula: base 5,
// +2 public, +1 async/Task, +1 complexity>5, +3 name contains "main",
// +2 Critical, +1 High, clamp to <=10.
func packetPriority(spec FunctionSpec, priority models.Priority) int {
	score := 5
	if spec.AccessModifier == "public" {
		score += 2
	}
	if spec.IsAsync {
		score++
	}
	if spec.ComplexityRating > 5 {
		score++
	}
	if strings.Contains(strings.ToLower(spec.FunctionName), "main") {
		score += 3
	}
	switch priority {
	case models.PriorityCritical:
		score += 2
	case models.PriorityHigh:
		score++
	}
	return clamp(score, 1, 10)
}
