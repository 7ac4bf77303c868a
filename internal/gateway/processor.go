package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
	"github.com/agentsdashboard/runtime-gateway/internal/events"
	"github.com/agentsdashboard/runtime-gateway/internal/executor"
	"github.com/agentsdashboard/runtime-gateway/internal/queue"
	"github.com/agentsdashboard/runtime-gateway/internal/runtimeevent"
)

// Runner executes one admitted job to completion. *executor.Executor
// satisfies this.
type Runner interface {
	Run(ctx context.Context, req dispatch.DispatchRequest, onChunk executor.ChunkCallback) dispatch.ResultEnvelope
}

// KnownHarnesses lists the harness names the gateway accepts at admission
// time: requests naming an unrecognised harness are rejected at admission.
var KnownHarnesses = map[string]bool{
	"claude": true, "claude-code": true, "codex": true, "generic": true, "command": true,
}

// Processor owns the admission queue,
// runs one goroutine per admitted job, and publishes job lifecycle events.
// Shaped after a classic job-manager start/cleanup loop, generalized
// from a single SQLite-backed orchestrator run to many concurrent harness
// runs.
type Processor struct {
	queue  *queue.Queue
	runner Runner
	bus    EventBus

	mu       sync.Mutex
	inFlight map[string]context.CancelFunc
	runCtx   map[string]context.Context
	wg       sync.WaitGroup

	// OnResult, if set, is invoked with the normalized envelope when a run
	// completes, in addition to the lifecycle events published to bus.
	OnResult func(dispatch.ResultEnvelope)
}

// NewProcessor builds a Processor. q and runner must be non-nil; bus may be
// nil, in which case lifecycle events are simply dropped.
func NewProcessor(q *queue.Queue, runner Runner, bus EventBus) *Processor {
	return &Processor{
		queue:    q,
		runner:   runner,
		bus:      bus,
		inFlight: make(map[string]context.CancelFunc),
		runCtx:   make(map[string]context.Context),
	}
}

// Dispatch implements Dispatcher. It validates req, derives a cancellable
// context, and enqueues it; admission failures (capacity, duplicate run
// id, validation) are returned synchronously.
func (p *Processor) Dispatch(ctx context.Context, req dispatch.DispatchRequest) (string, error) {
	if err := req.Validate(KnownHarnesses); err != nil {
		p.publish(events.NewEvent(events.RunRejected, req.RunID).WithError(err))
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	// p.mu is held across Enqueue so spawn, which takes p.mu before reading
	// runCtx, cannot see the job before its context is registered.
	p.mu.Lock()
	if err := p.queue.Enqueue(queue.QueuedJob{Request: req, Cancel: cancel}); err != nil {
		p.mu.Unlock()
		cancel()
		p.publish(events.NewEvent(events.RunRejected, req.RunID).WithError(err))
		return "", err
	}

	p.inFlight[req.RunID] = cancel
	p.runCtx[req.RunID] = runCtx
	p.mu.Unlock()

	p.publish(events.NewEvent(events.RunQueued, req.RunID))
	return req.RunID, nil
}

// Cancel implements Dispatcher.
func (p *Processor) Cancel(runID string) bool {
	return p.queue.Cancel(runID)
}

// Run consumes admitted jobs from the queue until ctx is cancelled or the
// queue's channel is closed, spawning one goroutine per job. Run blocks;
// callers typically run it in its own goroutine.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case job, ok := <-p.queue.ReadAll():
			if !ok {
				return
			}
			p.spawn(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Processor) spawn(_ context.Context, job queue.QueuedJob) {
	p.mu.Lock()
	runCtx := p.runCtx[job.Request.RunID]
	p.mu.Unlock()
	if runCtx == nil {
		runCtx = context.Background()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.cleanup(job.Request.RunID)

		p.publish(events.NewEvent(events.RunAdmitted, job.Request.RunID))
		p.publish(events.NewEvent(events.RunStarted, job.Request.RunID))

		envelope := p.runner.Run(runCtx, job.Request, p.onChunk(job.Request.RunID))

		p.finish(job.Request.RunID, envelope)
	}()
}

// onChunk builds the ChunkCallback passed into the runner for runID. Each
// wire-envelope chunk emitted by the harness is parsed and projected into
// a structured category/payload per runtimeevent.Project; chunks that
// don't parse as a wire envelope are published as opaque log_chunk events
// carrying the raw content instead.
func (p *Processor) onChunk(runID string) executor.ChunkCallback {
	return func(_ context.Context, chunk []byte) {
		env, ok := runtimeevent.ParseWireEnvelope(chunk)
		if !ok {
			p.publish(events.NewEvent(events.LogChunk, runID).WithPayload(string(chunk)))
			return
		}

		proj := runtimeevent.Project(env)
		p.publish(events.NewEvent(events.LogChunk, runID).WithProjection(env.Sequence, proj.Category, proj.PayloadJSON, proj.SchemaVersion))
	}
}

func (p *Processor) finish(runID string, envelope dispatch.ResultEnvelope) {
	switch envelope.Status {
	case dispatch.StatusSucceeded:
		p.publish(events.NewEvent(events.RunCompleted, runID).WithPayload(envelope))
	case dispatch.StatusCancelled:
		p.publish(events.NewEvent(events.RunCancelled, runID).WithPayload(envelope))
	default:
		e := events.NewEvent(events.RunFailed, runID).WithPayload(envelope)
		if envelope.Error != "" {
			e = e.WithError(fmt.Errorf("%s", envelope.Error))
		}
		p.publish(e)
	}
	if p.OnResult != nil {
		p.OnResult(envelope)
	}
}

func (p *Processor) cleanup(runID string) {
	p.mu.Lock()
	delete(p.inFlight, runID)
	delete(p.runCtx, runID)
	p.mu.Unlock()
	p.queue.MarkCompleted(runID)
}

func (p *Processor) publish(e events.Event) {
	if p.bus != nil {
		p.bus.Publish(e)
	}
}

// ActiveCount returns the number of jobs currently running.
func (p *Processor) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight)
}

// Shutdown cancels every in-flight job and waits up to timeout for their
// goroutines to exit, using a stop-all-then-poll-with-
// timeout shutdown sequence.
func (p *Processor) Shutdown(ctx context.Context, timeout time.Duration) {
	p.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(p.inFlight))
	for _, cancel := range p.inFlight {
		cancels = append(cancels, cancel)
	}
	p.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	case <-ctx.Done():
	}
}
