// Package codeunit implements the Code-Unit Controller (C6) — spec.md
// §4.6's "hardest subsystem": fan out each CodeUnitAssignment's functions
// to concurrent method-worker jobs, track completion with an idempotent,
// mutex-guarded remaining-count map, and publish exactly one
// BuilderNotification when a unit drains.
//
// Grounded directly on
// _examples/codeready-toolchain-tarsy/pkg/agent/orchestrator/runner.go's
// SubAgentRunner: a single mutex over a map of in-flight work plus a
// per-job goroutine is the same shape, specialized here to a
// decrement-to-zero counter instead of an arbitrary execution registry.
package codeunit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ensemble-maestro/swarm/pkg/bus"
	"github.com/ensemble-maestro/swarm/pkg/config"
	"github.com/ensemble-maestro/swarm/pkg/models"
	"github.com/ensemble-maestro/swarm/pkg/store"
	"github.com/ensemble-maestro/swarm/pkg/swarmpolicy"
	"github.com/ensemble-maestro/swarm/pkg/swarmtypes"
)

// unitKey identifies one in-flight CodeUnitAssignment's drain bookkeeping.
type unitKey struct {
	codeUnitID string
	unitName   string
}

// Controller is the C6 surface: Dispatch(assignment) runs its protocol to
// completion (publishing BuilderNotification/BuilderError as it goes) and
// returns once every function in the assignment has been attempted.
type Controller struct {
	mu     sync.Mutex
	active map[unitKey]int

	worker MethodWorker
	bus    *bus.Bus
	store  *store.Store
	policy *swarmpolicy.Policy
	cfg    *config.SwarmConfig
	log    *slog.Logger
}

// New builds a Controller over its collaborators.
func New(worker MethodWorker, b *bus.Bus, st *store.Store, policy *swarmpolicy.Policy, cfg *config.SwarmConfig) *Controller {
	return &Controller{
		active: make(map[unitKey]int),
		worker: worker,
		bus:    b,
		store:  st,
		policy: policy,
		cfg:    cfg,
		log:    slog.With("component", "codeunit"),
	}
}

// errDuplicateAssignment is what register reports for a CodeUnitAssignment
// whose (codeUnitId, name) pair is already in flight; Dispatch logs such a
// redelivery, drops it and returns nil.
var errDuplicateAssignment = fmt.Errorf("codeunit: assignment already in flight")

// Dispatch runs spec.md §4.6's per-assignment protocol: register the
// remaining-job count, fan out N method-worker jobs, and publish exactly
// one BuilderNotification when the count reaches zero. Concurrency is
// bounded only by the method_worker MaxConcurrent resource limit; the swarm
// policy's throttle is not consulted.
func (c *Controller) Dispatch(ctx context.Context, projectID string, assignment swarmtypes.CodeUnitAssignment) error {
	key := unitKey{codeUnitID: assignment.CodeUnitID, unitName: assignment.Name}

	if len(assignment.Functions) == 0 {
		c.publishNotification(ctx, projectID, assignment.Name, assignment.Priority)
		return nil
	}

	if err := c.register(key, len(assignment.Functions)); err != nil {
		c.log.Warn("rejecting redelivered assignment", "code_unit", assignment.Name, "error", err)
		return nil
	}

	maxConcurrent := 4
	if rl, ok := c.cfg.ResourceLimits["method_worker"]; ok && rl.MaxConcurrent > 0 {
		maxConcurrent = rl.MaxConcurrent
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for _, fn := range assignment.Functions {
		wg.Add(1)
		sem <- struct{}{}
		go func(fn swarmtypes.FunctionAssignment) {
			defer wg.Done()
			defer func() { <-sem }()
			defer c.decrementAndMaybeNotify(ctx, key, projectID, assignment.Name, assignment.Priority)

			c.runOne(ctx, projectID, assignment, fn)
		}(fn)
	}

	wg.Wait()
	return nil
}

// register inserts the remaining job count for key, or reports
// errDuplicateAssignment if it is already tracked.
func (c *Controller) register(key unitKey, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.active[key]; exists {
		return errDuplicateAssignment
	}
	c.active[key] = n
	return nil
}

// decrementAndMaybeNotify decrements key's remaining count; when it
// reaches zero it removes the entry and publishes exactly one
// BuilderNotification, per spec.md §4.6 step 4.
func (c *Controller) decrementAndMaybeNotify(ctx context.Context, key unitKey, projectID, unitName string, priority models.Priority) {
	c.mu.Lock()
	c.active[key]--
	drained := c.active[key] <= 0
	if drained {
		delete(c.active, key)
	}
	c.mu.Unlock()

	if drained {
		c.publishNotification(ctx, projectID, unitName, priority)
	}
}

// runOne executes one method-worker job and stores its output or emits a
// BuilderError, per spec.md §4.6 step 3. It never panics the caller's
// goroutine into the pool: the worker's error path is fully handled here.
func (c *Controller) runOne(ctx context.Context, projectID string, assignment swarmtypes.CodeUnitAssignment, fn swarmtypes.FunctionAssignment) {
	packet := buildPacket(projectID, assignment, fn, c.policy)

	doc, err := c.worker.Execute(ctx, packet)
	if err != nil {
		c.publishError(ctx, swarmtypes.BuilderError{
			ErrorID:           uuid.NewString(),
			ProjectID:         projectID,
			CodeUnitName:      assignment.Name,
			FunctionName:      fn.FunctionName,
			FunctionSignature: fn.Signature,
			ErrorType:         "FunctionProcessingError",
			ErrorMessage:      err.Error(),
			Severity:          6,
		})
		return
	}

	if err := c.store.CodeDocuments.Create(ctx, &models.CodeDocument{
		ProjectID:    projectID,
		CodeUnitName: assignment.Name,
		FunctionName: fn.FunctionName,
		Content:      doc.Content,
	}); err != nil {
		c.log.Error("failed to persist code document", "function_name", fn.FunctionName, "error", err)
	}
}

// publishNotification emits a BuilderNotification{status:Complete} for
// unitName, computing its queue priority from the code unit's own
// priority rating.
func (c *Controller) publishNotification(ctx context.Context, projectID, unitName string, priority models.Priority) {
	notification := swarmtypes.BuilderNotification{
		NotificationID: uuid.NewString(),
		ProjectID:      projectID,
		CodeUnitName:   unitName,
		Status:         swarmtypes.BuilderNotificationComplete,
		CompletedAt:    time.Now(),
		Priority:       priorityScoreFor(priority),
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		c.log.Error("failed to marshal builder notification", "code_unit", unitName, "error", err)
		return
	}
	if _, err := c.bus.SendPriority(ctx, swarmtypes.QueueBuilderNotifications, payload, notification.Priority); err != nil {
		c.log.Error("failed to send builder notification", "code_unit", unitName, "error", err)
	}
}

func (c *Controller) publishError(ctx context.Context, be swarmtypes.BuilderError) {
	payload, err := json.Marshal(be)
	if err != nil {
		c.log.Error("failed to marshal builder error", "error", err)
		return
	}
	if _, err := c.bus.SendPriority(ctx, swarmtypes.QueueBuilderErrors, payload, 8); err != nil {
		c.log.Error("failed to send builder error", "error", err)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// priorityScoreFor maps a model priority to the bus's 1..10 queue
// priority scale, mirroring pkg/designer's own mapping for the same
// enum since both sit on the same queues.
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
