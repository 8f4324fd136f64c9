package codeunit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ensemble-maestro/swarm/pkg/bus"
	"github.com/ensemble-maestro/swarm/pkg/config"
	"github.com/ensemble-maestro/swarm/pkg/models"
	"github.com/ensemble-maestro/swarm/pkg/swarmpolicy"
	"github.com/ensemble-maestro/swarm/pkg/swarmtypes"
	testdb "github.com/ensemble-maestro/swarm/test/database"
)

// fakeWorker counts invocations and lets tests force a per-call error by
// function name.
type fakeWorker struct {
	calls    int32
	failFunc string
}

func (w *fakeWorker) Execute(_ context.Context, packet MethodJobPacket) (GeneratedFunction, error) {
	atomic.AddInt32(&w.calls, 1)
	if packet.Spec.FunctionName == w.failFunc {
		return GeneratedFunction{}, assert.AnError
	}
	return GeneratedFunction{Content: "// generated " + packet.Spec.FunctionName}, nil
}

func newTestController(t *testing.T, worker MethodWorker) (*Controller, *bus.Bus) {
	t.Helper()
	st := testdb.NewTestStore(t)
	b := bus.New(bus.NewMemoryStore(), config.DefaultBusConfig())
	policy := swarmpolicy.New(config.DefaultSwarmConfig())
	return New(worker, b, st, policy, config.DefaultSwarmConfig()), b
}

func seedProject(t *testing.T, c *Controller) string {
	t.Helper()
	project := &models.Project{Name: "test", Requirements: "x", TargetLanguage: "C#"}
	require.NoError(t, c.store.Projects.Create(context.Background(), project))
	return project.ID
}

func sampleAssignment(n int) swarmtypes.CodeUnitAssignment {
	functions := make([]swarmtypes.FunctionAssignment, 0, n)
	for i := 0; i < n; i++ {
		functions = append(functions, swarmtypes.FunctionAssignment{
			AssignmentID: uuid.NewString(),
			FunctionName: "Method" + string(rune('A'+i)),
			CodeUnit:     "UserService",
			Signature:    "public Task<string> MethodX()",
			Priority:     models.PriorityMedium,
		})
	}
	return swarmtypes.CodeUnitAssignment{
		AssignmentID: uuid.NewString(),
		CodeUnitID:   uuid.NewString(),
		Name:         "UserService",
		UnitType:     models.UnitTypeService,
		Functions:    functions,
		Priority:     models.PriorityHigh,
	}
}

func TestDispatch_ZeroFunctionsPublishesImmediateNotification(t *testing.T) {
	c, b := newTestController(t, &fakeWorker{})
	projectID := seedProject(t, c)

	assignment := sampleAssignment(0)
	require.NoError(t, c.Dispatch(context.Background(), projectID, assignment))

	msg, err := b.Receive(context.Background(), swarmtypes.QueueBuilderNotifications)
	require.NoError(t, err)
	require.NotNil(t, msg)

	var n swarmtypes.BuilderNotification
	require.NoError(t, json.Unmarshal(msg.Payload, &n))
	assert.Equal(t, swarmtypes.BuilderNotificationComplete, n.Status)
	assert.Equal(t, "UserService", n.CodeUnitName)
}

func TestDispatch_DrainsAndPublishesExactlyOneNotification(t *testing.T) {
	worker := &fakeWorker{}
	c, b := newTestController(t, worker)
	projectID := seedProject(t, c)

	assignment := sampleAssignment(5)
	require.NoError(t, c.Dispatch(context.Background(), projectID, assignment))

	assert.EqualValues(t, 5, worker.calls)

	count := 0
	for {
		_, err := b.Receive(context.Background(), swarmtypes.QueueBuilderNotifications)
		if errors.Is(err, bus.ErrNoMessage) {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 1, count, "exactly one BuilderNotification regardless of function count")

	docs, err := c.store.CodeDocuments.ListByCodeUnit(context.Background(), projectID, "UserService")
	require.NoError(t, err)
	assert.Len(t, docs, 5)
}

func TestDispatch_PerFunctionFailureStillDrains(t *testing.T) {
	worker := &fakeWorker{failFunc: "MethodB"}
	c, b := newTestController(t, worker)
	projectID := seedProject(t, c)

	assignment := sampleAssignment(3)
	require.NoError(t, c.Dispatch(context.Background(), projectID, assignment))

	errMsg, err := b.Receive(context.Background(), swarmtypes.QueueBuilderErrors)
	require.NoError(t, err)
	require.NotNil(t, errMsg)

	var be swarmtypes.BuilderError
	require.NoError(t, json.Unmarshal(errMsg.Payload, &be))
	assert.Equal(t, "FunctionProcessingError", be.ErrorType)
	assert.Equal(t, 6, be.Severity)

	noteMsg, err := b.Receive(context.Background(), swarmtypes.QueueBuilderNotifications)
	require.NoError(t, err)
	require.NotNil(t, noteMsg, "the unit must still drain despite one failed function")

	docs, err := c.store.CodeDocuments.ListByCodeUnit(context.Background(), projectID, "UserService")
	require.NoError(t, err)
	assert.Len(t, docs, 2, "only the two successful functions persist documents")
}

func TestDispatch_RejectsRedeliveredAssignment(t *testing.T) {
	worker := &fakeWorker{}
	c, _ := newTestController(t, worker)
	projectID := seedProject(t, c)

	key := unitKey{codeUnitID: "fixed-id", unitName: "UserService"}
	assignment := sampleAssignment(3)
	assignment.CodeUnitID = "fixed-id"

	// Simulate the first assignment still being in flight when a
	// redelivery of the same key arrives.
	c.mu.Lock()
	c.active[key] = 3
	c.mu.Unlock()

	require.NoError(t, c.Dispatch(context.Background(), projectID, assignment))
	assert.EqualValues(t, 0, worker.calls, "a redelivered assignment must not spawn new jobs")
}

func TestDispatch_ConcurrentFunctionsRunInParallel(t *testing.T) {
	var wg sync.WaitGroup
	worker := &blockingWorker{wg: &wg}
	c, _ := newTestController(t, worker)
	projectID := seedProject(t, c)

	wg.Add(5)
	assignment := sampleAssignment(5)

	done := make(chan struct{})
	go func() {
		_ = c.Dispatch(context.Background(), projectID, assignment)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not complete; jobs may not be running concurrently")
	}
}

// blockingWorker requires all N jobs to arrive before any of them returns,
// proving the controller actually launches them concurrently rather than
// serially.
type blockingWorker struct {
	wg *sync.WaitGroup
}

func (w *blockingWorker) Execute(_ context.Context, packet MethodJobPacket) (GeneratedFunction, error) {
	w.wg.Done()
	w.wg.Wait()
	return GeneratedFunction{Content: "ok"}, nil
}

func TestPacketPriority(t *testing.T) {
	spec := FunctionSpec{FunctionName: "DoWork", AccessModifier: "public", IsAsync: true, ComplexityRating: 8}
	assert.Equal(t, 9, packetPriority(spec, models.PriorityMedium), "5+2+1+1")

	mainSpec := FunctionSpec{FunctionName: "Main", AccessModifier: "private", ComplexityRating: 1}
	assert.Equal(t, 9, packetPriority(mainSpec, models.PriorityHigh), "5+3(main)+1(high)")

	overflow := FunctionSpec{FunctionName: "Main", AccessModifier: "public", IsAsync: true, ComplexityRating: 9}
	assert.Equal(t, 10, packetPriority(overflow, models.PriorityCritical), "clamp to 10")
}

func TestParseReturnTypeAndAccessModifier(t *testing.T) {
	assert.Equal(t, "Task<object>", parseReturnType("public Task<User> GetUser(int id)"))
	assert.Equal(t, "Task", parseReturnType("public Task Run()"))
	assert.Equal(t, "string", parseReturnType("public string Name()"))
	assert.Equal(t, "object", parseReturnType("public Widget Build()"))

	assert.Equal(t, "private", parseAccessModifier("private void Helper()"))
	assert.Equal(t, "public", parseAccessModifier("void DoThing()"))
}
