// Package swarmpolicy implements the Swarm Policy (C5): concurrency caps,
// throttling, priority scoring, retry settings, and auto-scale advice for
// the Code-Unit Controller and Pipeline Executor to consult before
// dispatching work.
//
// Grounded on the teacher's pkg/agent/orchestrator.OrchestratorGuardrails
// (concurrency-cap style) and pkg/config's validator/defaults merge
// pattern, generalized from "max concurrent sub-agents" to the full set
// of caps, windows, and scoring inputs spec.md §4.5 enumerates.
package swarmpolicy

import (
	"fmt"
	"sync"
	"time"

	"github.com/ensemble-maestro/swarm/pkg/config"
	"github.com/ensemble-maestro/swarm/pkg/models"
)

// Policy enforces spec.md §4.5's concurrency, throttle, priority, and
// autoscale rules over a live SwarmConfig. State (in-flight counts,
// per-project spend, throttle windows) is held here; Policy is safe for
// concurrent use by the Code-Unit Controller and Pipeline Executor alike.
type Policy struct {
	mu  sync.Mutex
	cfg *config.SwarmConfig

	globalActive  int
	projectActive map[string]int
	projectSpend  map[string]float64
	typeActive    map[string]int

	throttle *Throttle
}

// New builds a Policy over cfg. Pass config.DefaultSwarmConfig() for
// built-in defaults.
func New(cfg *config.SwarmConfig) *Policy {
	return &Policy{
		cfg:           cfg,
		projectActive: make(map[string]int),
		projectSpend:  make(map[string]float64),
		typeActive:    make(map[string]int),
		throttle:      NewThrottle(cfg.Throttling),
	}
}

// SpawnCapacity reports whether a new agent of agentType may be spawned for
// projectID, per spec.md's CheckSpawnCapacity operation.
type SpawnCapacity struct {
	CanSpawn           bool
	Reason             string
	AvailableSlots     int
	CurrentUtilization float64 // 0..1, of the binding constraint
	RemainingBudget    float64
	Warnings           []string
}

// CheckSpawnCapacity denies a spawn when the global, per-project, or
// per-type concurrency cap is already at its limit, and warns at ≥80%
// utilization of whichever cap is tightest.
func (p *Policy) CheckSpawnCapacity(agentType, projectID string) SpawnCapacity {
	p.mu.Lock()
	defer p.mu.Unlock()

	globalSlots := p.cfg.MaxConcurrentAgents - p.globalActive
	projectSlots := p.cfg.MaxAgentsPerProject - p.projectActive[projectID]

	typeLimit := p.cfg.MaxConcurrentAgents
	if rl, ok := p.cfg.ResourceLimits[agentType]; ok && rl.MaxConcurrent > 0 {
		typeLimit = rl.MaxConcurrent
	}
	typeSlots := typeLimit - p.typeActive[agentType]

	available := min3(globalSlots, projectSlots, typeSlots)

	result := SpawnCapacity{AvailableSlots: available}
	switch {
	case globalSlots <= 0:
		result.Reason = "global max_concurrent_agents reached"
	case projectSlots <= 0:
		result.Reason = "project max_agents_per_project reached"
	case typeSlots <= 0:
		result.Reason = fmt.Sprintf("agent type %q at max_concurrent", agentType)
	}
	result.CanSpawn = result.Reason == ""

	if p.cfg.MaxCostPerProject > 0 {
		spent := p.projectSpend[projectID]
		result.RemainingBudget = p.cfg.MaxCostPerProject - spent
		if result.RemainingBudget <= 0 {
			result.CanSpawn = false
			if result.Reason == "" {
				result.Reason = "project max_cost_per_project reached"
			}
		}
	}

	if p.cfg.MaxConcurrentAgents > 0 {
		result.CurrentUtilization = float64(p.globalActive) / float64(p.cfg.MaxConcurrentAgents)
		if result.CurrentUtilization >= 0.8 {
			result.Warnings = append(result.Warnings, "global agent utilization at or above 80%")
		}
	}
	if p.cfg.MaxAgentsPerProject > 0 {
		util := float64(p.projectActive[projectID]) / float64(p.cfg.MaxAgentsPerProject)
		if util >= 0.8 {
			result.Warnings = append(result.Warnings, "project agent utilization at or above 80%")
		}
	}

	return result
}

// RecordSpawn marks one agent of agentType as active for projectID; call
// after CheckSpawnCapacity approves a dispatch.
func (p *Policy) RecordSpawn(agentType, projectID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.globalActive++
	p.projectActive[projectID]++
	p.typeActive[agentType]++
	p.throttle.RecordSpawn(time.Now())
}

// RecordCompletion releases the slots RecordSpawn reserved and accrues cost
// against the project's budget.
func (p *Policy) RecordCompletion(agentType, projectID string, cost float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.globalActive > 0 {
		p.globalActive--
	}
	if p.projectActive[projectID] > 0 {
		p.projectActive[projectID]--
	}
	if p.typeActive[agentType] > 0 {
		p.typeActive[agentType]--
	}
	p.projectSpend[projectID] += cost
}

// CheckThrottle reports whether a spawn right now would exceed the
// configured 1s/60s rate windows or the minimum inter-spawn interval.
func (p *Policy) CheckThrottle() (bool, string) {
	return p.throttle.Allow(time.Now())
}

// PriorityContext carries the caller-supplied boosts spec.md's
// CalculatePriority takes beyond complexity/urgency.
type PriorityContext struct {
	IsBlocking   bool
	HasDependents bool
}

// CalculatePriority computes clamp(1, base+boosts, maxPriority) per
// spec.md §4.5: a complexity boost above the configured threshold, an
// urgency boost keyed by models.Priority, and context boosts for blocking
// or depended-upon work.
func (p *Policy) CalculatePriority(agentType string, complexity int, urgency models.Priority, ctx PriorityContext) int {
	pc := p.cfg.Priority
	score := pc.DefaultPriority

	if complexity >= pc.ComplexityThreshold {
		score += pc.ComplexityPriorityBoost
	}

	switch urgency {
	case models.PriorityCritical:
		score += pc.UrgentPriorityBoostCritical
		score += urgentBoostFor(pc, agentType)
	case models.PriorityHigh:
		score += urgentBoostFor(pc, agentType)
	case models.PriorityLow:
		score += pc.UrgentPriorityBoostLow
	}

	if ctx.IsBlocking {
		score += 3
	}
	if ctx.HasDependents {
		score += 1
	}

	if score < 1 {
		score = 1
	}
	if score > pc.MaxPriority {
		score = pc.MaxPriority
	}
	return score
}

// urgentBoostFor returns spec.md's "+U" urgency boost: UrgentPriorityBoostHigh
// applies only when agentType is registered in HighPriorityAgentTypes, 0
// otherwise.
func urgentBoostFor(pc config.PriorityConfig, agentType string) int {
	for _, t := range pc.HighPriorityAgentTypes {
		if t == agentType {
			return pc.UrgentPriorityBoostHigh
		}
	}
	return 0
}

// ScaleAction enumerates RecommendAutoScale's possible recommendations.
type ScaleAction string

const (
	ScaleNone      ScaleAction = "None"
	ScaleUp        ScaleAction = "Up"
	ScaleDown      ScaleAction = "Down"
	ScaleEmergency ScaleAction = "Emergency"
)

// ScaleRecommendation is RecommendAutoScale's result.
type ScaleRecommendation struct {
	Action     ScaleAction
	Delta      int
	Reason     string
	Confidence float64
}

// RecommendAutoScale inspects queue depth, current active agent count, and
// recent success rate to recommend scaling the agent pool up, down, or not
// at all, per spec.md §4.5.
func (p *Policy) RecommendAutoScale(queueDepth int, activeAgents int, successRatePercent float64) ScaleRecommendation {
	ac := p.cfg.AutoScaling
	if !ac.Enabled {
		return ScaleRecommendation{Action: ScaleNone, Reason: "auto_scaling disabled", Confidence: 1}
	}

	rec := ScaleRecommendation{Action: ScaleNone, Confidence: 0.6}

	switch {
	case queueDepth > ac.ScaleUpThreshold*3:
		rec.Action = ScaleEmergency
		rec.Delta = ac.ScaleUpIncrement * 3
		rec.Reason = fmt.Sprintf("queue depth %d is more than 3x scale_up_threshold %d", queueDepth, ac.ScaleUpThreshold)
		rec.Confidence = 0.95
	case queueDepth > ac.ScaleUpThreshold:
		rec.Action = ScaleUp
		rec.Delta = ac.ScaleUpIncrement
		rec.Reason = fmt.Sprintf("queue depth %d exceeds scale_up_threshold %d", queueDepth, ac.ScaleUpThreshold)
		rec.Confidence = 0.85
	case queueDepth < ac.ScaleDownThreshold && activeAgents > ac.MinAgents:
		rec.Action = ScaleDown
		rec.Delta = -ac.ScaleDownIncrement
		rec.Reason = fmt.Sprintf("queue depth %d below scale_down_threshold %d", queueDepth, ac.ScaleDownThreshold)
		rec.Confidence = 0.7
	}

	if successRatePercent < p.cfg.Health.MinSuccessRatePercent {
		if rec.Action == ScaleNone {
			rec.Action = ScaleUp
			rec.Delta = 1
			rec.Reason = fmt.Sprintf("success rate %.1f%% below health floor %.1f%%", successRatePercent, p.cfg.Health.MinSuccessRatePercent)
			rec.Confidence = 0.5
		}
	}

	return rec
}

// ValidationResult reports Validate's findings without failing hard.
type ValidationResult struct {
	Errors          []string
	Warnings        []string
	Recommendations []string
}

// Valid reports whether Validate found any hard errors.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Validate checks cfg for internally-inconsistent settings beyond what
// config.Validator's struct tags catch, mirroring spec.md's
// "caller rejects applying invalid config" operation.
func Validate(cfg *config.SwarmConfig) ValidationResult {
	var result ValidationResult

	if cfg.MaxAgentsPerProject > cfg.MaxConcurrentAgents {
		result.Errors = append(result.Errors, "max_agents_per_project exceeds max_concurrent_agents")
	}
	if cfg.Priority.DefaultPriority > cfg.Priority.MaxPriority {
		result.Errors = append(result.Errors, "priority.default_priority exceeds priority.max_priority")
	}
	if cfg.Throttling.Enabled && cfg.Throttling.MaxAgentsPerSecond == 0 {
		result.Errors = append(result.Errors, "throttling enabled but max_agents_per_second is zero")
	}
	if cfg.MaxControllers*cfg.MaxMethodAgentsPerController < cfg.MaxConcurrentAgents {
		result.Warnings = append(result.Warnings,
			"max_controllers * max_method_agents_per_controller is less than max_concurrent_agents; some capacity is unreachable")
	}
	if cfg.AutoScaling.Enabled && cfg.AutoScaling.MinAgents == 0 {
		result.Recommendations = append(result.Recommendations, "consider setting auto_scaling.min_agents above zero to avoid scaling to nothing")
	}
	return result
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
