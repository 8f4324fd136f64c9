package swarmpolicy

import (
	"testing"
	"time"

	"github.com/ensemble-maestro/swarm/pkg/config"
	"github.com/ensemble-maestro/swarm/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.SwarmConfig {
	c := config.DefaultSwarmConfig()
	c.MaxConcurrentAgents = 2
	c.MaxAgentsPerProject = 1
	c.MaxCostPerProject = 10
	return c
}

func TestCheckSpawnCapacity_Allows(t *testing.T) {
	p := New(testConfig())
	cap := p.CheckSpawnCapacity("designer", "proj-1")
	assert.True(t, cap.CanSpawn)
	assert.Empty(t, cap.Reason)
	assert.Equal(t, 1, cap.AvailableSlots)
}

func TestCheckSpawnCapacity_DeniesAtProjectCap(t *testing.T) {
	p := New(testConfig())
	p.RecordSpawn("designer", "proj-1")

	cap := p.CheckSpawnCapacity("designer", "proj-1")
	require.False(t, cap.CanSpawn)
	assert.Contains(t, cap.Reason, "max_agents_per_project")
}

func TestCheckSpawnCapacity_DeniesAtGlobalCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAgentsPerProject = 5
	p := New(cfg)
	p.RecordSpawn("designer", "proj-1")
	p.RecordSpawn("builder", "proj-2")

	cap := p.CheckSpawnCapacity("validator", "proj-3")
	require.False(t, cap.CanSpawn)
	assert.Contains(t, cap.Reason, "max_concurrent_agents")
}

func TestCheckSpawnCapacity_DeniesOverBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAgentsPerProject = 5
	cfg.MaxCostPerProject = 1
	p := New(cfg)
	p.RecordSpawn("designer", "proj-1")
	p.RecordCompletion("designer", "proj-1", 2.0)

	cap := p.CheckSpawnCapacity("designer", "proj-1")
	require.False(t, cap.CanSpawn)
	assert.Contains(t, cap.Reason, "max_cost_per_project")
}

func TestRecordCompletion_ReleasesSlot(t *testing.T) {
	p := New(testConfig())
	p.RecordSpawn("designer", "proj-1")
	p.RecordCompletion("designer", "proj-1", 0.1)

	cap := p.CheckSpawnCapacity("designer", "proj-1")
	assert.True(t, cap.CanSpawn)
}

func TestCheckThrottle_DeniesOverPerSecondLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Throttling = config.ThrottlingConfig{
		Enabled:            true,
		MaxAgentsPerSecond: 1,
		MaxAgentsPerMinute: 120,
		MinSpawnIntervalMs: 0,
	}
	p := New(cfg)
	p.RecordSpawn("designer", "proj-1")

	allowed, reason := p.CheckThrottle()
	assert.False(t, allowed)
	assert.Contains(t, reason, "max_agents_per_second")
}

func TestCheckThrottle_RespectsMinSpawnInterval(t *testing.T) {
	cfg := testConfig()
	cfg.Throttling = config.ThrottlingConfig{
		Enabled:            true,
		MaxAgentsPerSecond: 100,
		MaxAgentsPerMinute: 1000,
		MinSpawnIntervalMs: 1000,
	}
	p := New(cfg)
	p.RecordSpawn("designer", "proj-1")

	allowed, reason := p.CheckThrottle()
	assert.False(t, allowed)
	assert.Contains(t, reason, "min_spawn_interval_ms")
}

func TestThrottle_WindowExpires(t *testing.T) {
	th := NewThrottle(config.ThrottlingConfig{
		Enabled:            true,
		MaxAgentsPerSecond: 1,
		MaxAgentsPerMinute: 120,
	})
	base := time.Unix(1000, 0)
	th.RecordSpawn(base)

	allowed, _ := th.Allow(base.Add(500 * time.Millisecond))
	assert.False(t, allowed)

	allowed, _ = th.Allow(base.Add(2 * time.Second))
	assert.True(t, allowed)
}

func TestCalculatePriority_ClampsToMax(t *testing.T) {
	p := New(testConfig())
	score := p.CalculatePriority("method_worker", 10, models.PriorityCritical, PriorityContext{IsBlocking: true, HasDependents: true})
	assert.Equal(t, p.cfg.Priority.MaxPriority, score)
}

func TestCalculatePriority_BaseForLowComplexityNormalUrgency(t *testing.T) {
	p := New(testConfig())
	score := p.CalculatePriority("builder", 1, models.PriorityMedium, PriorityContext{})
	assert.Equal(t, p.cfg.Priority.DefaultPriority, score)
}

func TestCalculatePriority_LowUrgencyReducesScore(t *testing.T) {
	p := New(testConfig())
	score := p.CalculatePriority("builder", 1, models.PriorityLow, PriorityContext{})
	assert.Less(t, score, p.cfg.Priority.DefaultPriority)
}

func TestCalculatePriority_NeverBelowOne(t *testing.T) {
	cfg := testConfig()
	cfg.Priority.DefaultPriority = 1
	cfg.Priority.UrgentPriorityBoostLow = -10
	p := New(cfg)
	score := p.CalculatePriority("builder", 1, models.PriorityLow, PriorityContext{})
	assert.Equal(t, 1, score)
}

func TestRecommendAutoScale_ScalesUpOnDeepQueue(t *testing.T) {
	p := New(testConfig())
	rec := p.RecommendAutoScale(50, 2, 95)
	assert.Equal(t, ScaleUp, rec.Action)
	assert.Positive(t, rec.Delta)
}

func TestRecommendAutoScale_ScalesDownOnShallowQueue(t *testing.T) {
	p := New(testConfig())
	rec := p.RecommendAutoScale(0, 3, 95)
	assert.Equal(t, ScaleDown, rec.Action)
	assert.Negative(t, rec.Delta)
}

func TestRecommendAutoScale_NoneWhenSteady(t *testing.T) {
	cfg := testConfig()
	p := New(cfg)
	rec := p.RecommendAutoScale(5, cfg.AutoScaling.MinAgents+1, 95)
	assert.Equal(t, ScaleNone, rec.Action)
}

func TestRecommendAutoScale_DisabledReturnsNone(t *testing.T) {
	cfg := testConfig()
	cfg.AutoScaling.Enabled = false
	p := New(cfg)
	rec := p.RecommendAutoScale(999, 0, 0)
	assert.Equal(t, ScaleNone, rec.Action)
}

func TestRecommendAutoScale_UnhealthyTriggersScaleUp(t *testing.T) {
	cfg := testConfig()
	p := New(cfg)
	rec := p.RecommendAutoScale(5, cfg.AutoScaling.MinAgents+1, 10)
	assert.Equal(t, ScaleUp, rec.Action)
}

func TestRecommendAutoScale_EmergencyOnExtremeQueueDepth(t *testing.T) {
	cfg := testConfig()
	p := New(cfg)
	rec := p.RecommendAutoScale(cfg.AutoScaling.ScaleUpThreshold*3+1, 2, 95)
	assert.Equal(t, ScaleEmergency, rec.Action)
	assert.Positive(t, rec.Delta)
}

func TestValidate_CatchesInconsistentCaps(t *testing.T) {
	cfg := config.DefaultSwarmConfig()
	cfg.MaxAgentsPerProject = cfg.MaxConcurrentAgents + 1

	result := Validate(cfg)
	assert.False(t, result.Valid())
	assert.NotEmpty(t, result.Errors)
}

func TestValidate_DefaultConfigIsValid(t *testing.T) {
	result := Validate(config.DefaultSwarmConfig())
	assert.True(t, result.Valid())
}
