// Package supervisor implements the Orchestrator Supervisor (spec.md §4.6/
// SPEC_FULL.md §3.8): a long-running background loop that subscribes to
// swarm.codeunit.assignments and dispatches each assignment to the
// Code-Unit Controller. It is grounded on the teacher's
// pkg/queue.Worker/WorkerPool lifecycle — a stopCh+sync.Once+sync.WaitGroup
// pair wrapping a poll loop — generalized from DB-row polling to bus
// message receipt.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ensemble-maestro/swarm/pkg/bus"
	"github.com/ensemble-maestro/swarm/pkg/store"
	"github.com/ensemble-maestro/swarm/pkg/swarmtypes"
)

// resubscribeBackoff is the pause between receive attempts after an error,
// and the idle pause when the queue is empty, per spec.md §4.6.
const resubscribeBackoff = 100 * time.Millisecond

// Dispatcher is the narrow surface the Supervisor drives; codeunit.Controller
// satisfies it (see pkg/pipeline's codeUnitDispatcher, the same shape).
type Dispatcher interface {
	Dispatch(ctx context.Context, projectID string, assignment swarmtypes.CodeUnitAssignment) error
}

// Supervisor polls swarm.codeunit.assignments and fans each message out to
// a Dispatcher, one goroutine per configured worker slot.
type Supervisor struct {
	bus        *bus.Bus
	store      *store.Store
	dispatcher Dispatcher
	workers    int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	log *slog.Logger
}

// New builds a Supervisor with the given concurrency (number of poll
// goroutines draining swarm.codeunit.assignments concurrently).
func New(b *bus.Bus, st *store.Store, d Dispatcher, workers int) *Supervisor {
	if workers < 1 {
		workers = 1
	}
	return &Supervisor{
		bus:        b,
		store:      st,
		dispatcher: d,
		workers:    workers,
		stopCh:     make(chan struct{}),
		log:        slog.With("component", "supervisor"),
	}
}

// Start spawns the poll loop goroutines. It has no guard against repeat
// calls: each call starts another full set of loops.
func (s *Supervisor) Start(ctx context.Context) {
	s.log.Info("starting orchestrator supervisor", "workers", s.workers)
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.run(ctx, i)
	}
}

// Stop signals every poll loop to exit and waits for them to drain.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.log.Info("orchestrator supervisor stopped")
}

func (s *Supervisor) run(ctx context.Context, id int) {
	defer s.wg.Done()
	log := s.log.With("loop_id", id)
	log.Info("supervisor loop started")

	for {
		select {
		case <-s.stopCh:
			log.Info("supervisor loop stopping")
			return
		case <-ctx.Done():
			log.Info("supervisor loop context cancelled")
			return
		default:
		}

		if err := s.pollOnce(ctx); err != nil {
			if !errors.Is(err, bus.ErrNoMessage) {
				log.Error("error dispatching code unit assignment", "error", err)
			}
			s.sleep(resubscribeBackoff)
		}
	}
}

// pollOnce receives a single assignment message, resolves its project, and
// dispatches it. The message is Ack'd on success and Nack'd (for
// redelivery) on any dispatch failure.
func (s *Supervisor) pollOnce(ctx context.Context) error {
	msg, err := s.bus.Receive(ctx, swarmtypes.QueueCodeUnitAssignments)
	if err != nil {
		return err
	}

	var assignment swarmtypes.CodeUnitAssignment
	if err := json.Unmarshal(msg.Payload, &assignment); err != nil {
		s.log.Error("failed to unmarshal code unit assignment, dropping", "message_id", msg.ID, "error", err)
		return s.bus.Ack(ctx, msg)
	}

	unit, err := s.store.CodeUnits.Get(ctx, assignment.CodeUnitID)
	if err != nil {
		if nackErr := s.bus.Nack(ctx, msg); nackErr != nil {
			s.log.Error("failed to nack code unit assignment after lookup failure", "message_id", msg.ID, "error", nackErr)
		}
		return fmt.Errorf("resolve project for code unit %s: %w", assignment.CodeUnitID, err)
	}

	if err := s.dispatcher.Dispatch(ctx, unit.ProjectID, assignment); err != nil {
		if nackErr := s.bus.Nack(ctx, msg); nackErr != nil {
			s.log.Error("failed to nack code unit assignment after dispatch failure", "message_id", msg.ID, "error", nackErr)
		}
		return fmt.Errorf("dispatch code unit assignment %s: %w", assignment.AssignmentID, err)
	}

	return s.bus.Ack(ctx, msg)
}

func (s *Supervisor) sleep(d time.Duration) {
	select {
	case <-s.stopCh:
	case <-time.After(d):
	}
}
