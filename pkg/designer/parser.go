// Package designer implements the Designer-Output Parser (C4): it turns
// the markdown a Designer agent produces into structured
// FunctionSpecifications and derived CodeUnits, persists both through the
// Cross-Reference Registry, and emits one CodeUnitAssignment per code unit
// onto the Message Bus for the Swarming stage / Code-Unit Controller to
// pick up.
//
// Grounded on the teacher's pkg/agent/prompt (fixed extraction
// instructions handed to an LLM call) and pkg/config/chain.go's per-stage
// sequencing style, adapted from "run the next agent in a chain" to
// "turn one agent's markdown into the next stage's work items".
package designer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ensemble-maestro/swarm/pkg/bus"
	"github.com/ensemble-maestro/swarm/pkg/crossref"
	"github.com/ensemble-maestro/swarm/pkg/llmgateway"
	"github.com/ensemble-maestro/swarm/pkg/models"
	"github.com/ensemble-maestro/swarm/pkg/store"
)

// extractionInstruction is spec.md §4.4's fixed instruction handed to the
// LLM Gateway; never templated per-call so extraction stays deterministic
// across designer agents.
const extractionInstruction = `Extract function specifications; return a JSON array with keys ` +
	`{functionName, codeUnit, namespace, signature, description, inputParameters, returnType, ` +
	`dependencies, businessLogic, validationRules, errorHandling, performanceRequirements, ` +
	`securityConsiderations, testCases, complexityRating (1..10), estimatedMinutes, priority}.`

// jsonArrayPattern greedily matches the first top-level JSON array span,
// across newlines, per spec.md §4.4 step 2.
var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// Parser is the C4 surface: Ingest(markdown) persists and emits.
type Parser struct {
	gateway  *llmgateway.Gateway
	crossref *crossref.Registry
	store    *store.Store
	bus      *bus.Bus
	log      *slog.Logger
}

// New builds a Parser over its collaborators.
func New(gateway *llmgateway.Gateway, cr *crossref.Registry, st *store.Store, b *bus.Bus) *Parser {
	return &Parser{gateway: gateway, crossref: cr, store: st, bus: b, log: slog.With("component", "designer")}
}

// Context carries the pipeline/project identity a designer-output ingest
// needs for persistence and queue payload fields.
type Context struct {
	ProjectID      string
	PipelineID     string
	AgentType      string
	TargetLanguage string
}

// Ingest runs C4's full algorithm: call the gateway with the fixed
// extraction instruction and the designer's markdown as context, extract
// the JSON array, derive code units, persist everything, and emit one
// CodeUnitAssignment per unit. Parser failures never propagate — spec.md
// §4.4 treats empty/malformed LLM output as an expected failure mode, so
// Ingest logs and returns zero specs rather than an error.
func (p *Parser) Ingest(ctx context.Context, markdown string, ictx Context) ([]*models.FunctionSpecification, []*models.CodeUnit) {
	resp := p.gateway.Generate(ctx, llmgateway.Request{
		System:    extractionInstruction,
		User:      markdown,
		AgentType: ictx.AgentType,
		Stage:     "designing",
	})
	if !resp.Success {
		p.log.Warn("extraction call failed", "error", resp.Error, "pipeline_id", ictx.PipelineID)
		return nil, nil
	}

	rawSpecs := extractJSONArray(resp.Content)
	if rawSpecs == nil {
		p.log.Warn("no JSON array found in designer output", "pipeline_id", ictx.PipelineID)
		p.persistRawOutput(ctx, markdown, ictx, 0, 0, 0)
		return nil, nil
	}

	specs := make([]*models.FunctionSpecification, 0, len(rawSpecs))
	for _, raw := range rawSpecs {
		name, _ := raw["functionName"].(string)
		if strings.TrimSpace(name) == "" {
			continue
		}
		specs = append(specs, specFromRaw(raw, ictx))
	}

	units := deriveCodeUnits(specs, ictx.TargetLanguage)

	doID := p.persistRawOutput(ctx, markdown, ictx, len(specs), aggregateComplexity(specs), 0)
	p.persistSpecs(ctx, specs)
	p.persistUnits(ctx, units, doID)
	p.emitAssignments(ctx, units, specs, ictx)

	return specs, units
}

// extractJSONArray locates the first top-level `[...]` span and decodes it
// into a slice of generic maps, matching spec.md §4.4 steps 2-3.
func extractJSONArray(content string) []map[string]any {
	match := jsonArrayPattern.FindString(content)
	if match == "" {
		return nil
	}
	var raw []map[string]any
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil
	}
	return raw
}

func specFromRaw(raw map[string]any, ictx Context) *models.FunctionSpecification {
	return &models.FunctionSpecification{
		ID:               uuid.NewString(),
		ProjectID:        ictx.ProjectID,
		PipelineID:       ictx.PipelineID,
		CodeUnit:         str(raw, "codeUnit"),
		FunctionName:     str(raw, "functionName"),
		Signature:        str(raw, "signature"),
		Description:      str(raw, "description"),
		BusinessLogic:    str(raw, "businessLogic"),
		ValidationRules:  str(raw, "validationRules"),
		ErrorHandling:    str(raw, "errorHandling"),
		ComplexityRating: clampInt(intOf(raw, "complexityRating"), 1, 10),
		EstimatedMinutes: intOf(raw, "estimatedMinutes"),
		Priority:         priorityOf(raw, "priority"),
		Language:         ictx.TargetLanguage,
		Status:           models.FunctionSpecStatusPending,
	}
}

// deriveCodeUnits groups specs by CodeUnit name and applies spec.md §4.4
// step 4's unitType/namespace/filePath inference and aggregation rules.
func deriveCodeUnits(specs []*models.FunctionSpecification, language string) []*models.CodeUnit {
	order := make([]string, 0)
	groups := make(map[string][]*models.FunctionSpecification)
	for _, s := range specs {
		name := s.CodeUnit
		if name == "" {
			continue
		}
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], s)
	}

	units := make([]*models.CodeUnit, 0, len(order))
	for _, name := range order {
		members := groups[name]

		var complexitySum, minutesSum, simple, complexCount int
		priority := models.PriorityLow
		for _, m := range members {
			complexitySum += m.ComplexityRating
			minutesSum += m.EstimatedMinutes
			if m.ComplexityRating < 4 {
				simple++
			} else {
				complexCount++
			}
			priority = models.MaxPriority(priority, m.Priority)
		}

		unitType := inferUnitType(name)
		units = append(units, &models.CodeUnit{
			ID:                   uuid.NewString(),
			ProjectID:            members[0].ProjectID,
			PipelineID:           members[0].PipelineID,
			Name:                 name,
			UnitType:             unitType,
			Namespace:            namespaceFor(language),
			Language:             language,
			FilePath:             filePathFor(name, unitType, language),
			FunctionCount:        len(members),
			SimpleFunctionCount:  simple,
			ComplexFunctionCount: complexCount,
			Complexity:           int(math.Ceil(float64(complexitySum) / float64(len(members)))),
			Priority:             priority,
			EstimatedMinutes:     minutesSum,
			Status:               models.CodeUnitStatusPlanned,
		})
	}
	return units
}

// inferUnitType applies spec.md §4.4's lowercased-name classification.
func inferUnitType(name string) models.UnitType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "service"):
		return models.UnitTypeService
	case strings.Contains(lower, "controller"):
		return models.UnitTypeController
	case strings.Contains(lower, "repository"):
		return models.UnitTypeRepository
	case len(name) >= 2 && name[0] == 'I' && name[1] >= 'A' && name[1] <= 'Z':
		return models.UnitTypeInterface
	case strings.Contains(lower, "model"), strings.Contains(lower, "entity"):
		return models.UnitTypeEntity
	case strings.Contains(lower, "exception"):
		return models.UnitTypeException
	case strings.Contains(lower, "helper"), strings.Contains(lower, "utility"):
		return models.UnitTypeUtility
	default:
		return models.UnitTypeClass
	}
}

func namespaceFor(language string) string {
	switch language {
	case "C#":
		return "Ensemble.Maestro.Generated"
	case "TypeScript":
		return "generated"
	case "Python":
		return "generated"
	case "Java":
		return "com.ensemble.maestro.generated"
	default:
		return "Generated"
	}
}

func folderFor(unitType models.UnitType) string {
	switch unitType {
	case models.UnitTypeController:
		return "Controllers"
	case models.UnitTypeService:
		return "Services"
	case models.UnitTypeRepository:
		return "Repositories"
	case models.UnitTypeInterface:
		return "Interfaces"
	case models.UnitTypeEntity:
		return "Models"
	case models.UnitTypeException:
		return "Exceptions"
	case models.UnitTypeUtility:
		return "Utilities"
	default:
		return "Generated"
	}
}

func extFor(language string) string {
	switch language {
	case "C#":
		return ".cs"
	case "TypeScript":
		return ".ts"
	case "Python":
		return ".py"
	case "Java":
		return ".java"
	case "JavaScript":
		return ".js"
	default:
		return ".cs"
	}
}

func filePathFor(name string, unitType models.UnitType, language string) string {
	return fmt.Sprintf("/%s/%s%s", folderFor(unitType), name, extFor(language))
}

func aggregateComplexity(specs []*models.FunctionSpecification) int {
	if len(specs) == 0 {
		return 0
	}
	sum := 0
	for _, s := range specs {
		sum += s.ComplexityRating
	}
	return int(math.Ceil(float64(sum) / float64(len(specs))))
}

func str(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func intOf(raw map[string]any, key string) int {
	switch v := raw[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		var n int
		fmt.Sscanf(v, "%d", &n)
		return n
	default:
		return 0
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func priorityOf(raw map[string]any, key string) models.Priority {
	switch strings.ToLower(str(raw, key)) {
	case "critical":
		return models.PriorityCritical
	case "high":
		return models.PriorityHigh
	case "low":
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

// priorityScoreFor maps a code unit's aggregate priority to the queue
// priority spec.md §4.4 step 5 assigns its CodeUnitAssignment.
func priorityScoreFor(p models.Priority) int {
	switch p {
	case models.PriorityCritical:
		return 10
	case models.PriorityHigh:
		return 8
	case models.PriorityLow:
		return 2
	default:
		return 5
	}
}
