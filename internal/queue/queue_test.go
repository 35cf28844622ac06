package queue_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Snagnar/facto.github.io/internal/domain"
	"github.com/Snagnar/facto.github.io/internal/queue"
)

// fakeRunner emits a status, optionally blocks on a gate, then emits a
// blueprint. It records start order and flags any concurrent execution.
type fakeRunner struct {
	mu             sync.Mutex
	order          []string
	running        atomic.Int32
	concurrentSeen atomic.Bool
	gate           chan struct{} // nil = complete immediately
}

func (f *fakeRunner) Run(ctx context.Context, req *domain.CompileRequest, emit func(domain.CompileEvent)) domain.JobStatus {
	if f.running.Add(1) > 1 {
		f.concurrentSeen.Store(true)
	}
	defer f.running.Add(-1)

	f.mu.Lock()
	f.order = append(f.order, req.Source)
	f.mu.Unlock()

	emit(domain.StatusEvent("Starting compilation..."))

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				emit(domain.ErrorEvent("Compilation timed out"))
				return domain.StatusTimedOut
			}
			emit(domain.ErrorEvent("Compilation cancelled"))
			return domain.StatusCancelled
		}
	}

	emit(domain.BlueprintEvent("bp:" + req.Source))
	return domain.StatusCompleted
}

func (f *fakeRunner) startOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func req(source string) *domain.CompileRequest {
	return &domain.CompileRequest{Source: source}
}

// drain collects the full event sequence, failing the test if the channel
// does not close in time.
func drain(t *testing.T, job *queue.Job) []domain.CompileEvent {
	t.Helper()
	var events []domain.CompileEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-job.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("event stream did not terminate, got %d events so far", len(events))
		}
	}
}

// next reads one event with a timeout.
func next(t *testing.T, job *queue.Job) domain.CompileEvent {
	t.Helper()
	select {
	case ev, ok := <-job.Events():
		if !ok {
			t.Fatal("event stream closed unexpectedly")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.CompileEvent{}
}

func kinds(events []domain.CompileEvent) []domain.EventKind {
	out := make([]domain.EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestSubmit_RunsImmediatelyWhenIdle(t *testing.T) {
	runner := &fakeRunner{}
	q := queue.New(runner, time.Second, 8, zap.NewNop())

	job, err := q.Submit(req("prog"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := drain(t, job)
	want := []domain.EventKind{domain.EventStatus, domain.EventBlueprint, domain.EventEnd}
	got := kinds(events)
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}

	info, err := q.Status(job.ID)
	if err != nil {
		t.Fatalf("status lookup failed: %v", err)
	}
	if info.Status != domain.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", info.Status)
	}
}

func TestFIFOOrder_SingleRunning(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate}
	q := queue.New(runner, 5*time.Second, 8, zap.NewNop())

	jobA, _ := q.Submit(req("a"))
	jobB, _ := q.Submit(req("b"))
	jobC, _ := q.Submit(req("c"))

	for i := 0; i < 3; i++ {
		gate <- struct{}{}
	}

	for _, j := range []*queue.Job{jobA, jobB, jobC} {
		events := drain(t, j)
		if events[len(events)-1].Kind != domain.EventEnd {
			t.Errorf("last event must be end, got %s", events[len(events)-1].Kind)
		}
	}

	order := runner.startOrder()
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("expected start order [a b c], got %v", order)
	}
	if runner.concurrentSeen.Load() {
		t.Error("more than one job was running at a time")
	}
}

func TestQueuePositions(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate}
	q := queue.New(runner, 5*time.Second, 8, zap.NewNop())

	jobA, _ := q.Submit(req("a"))
	jobB, _ := q.Submit(req("b"))
	jobC, _ := q.Submit(req("c"))

	// B is behind the running job A.
	ev := next(t, jobB)
	if ev.Kind != domain.EventQueue || ev.Position == nil || *ev.Position != 1 {
		t.Fatalf("expected queue position 1 for B, got %+v", ev)
	}
	ev = next(t, jobC)
	if ev.Kind != domain.EventQueue || ev.Position == nil || *ev.Position != 2 {
		t.Fatalf("expected queue position 2 for C, got %+v", ev)
	}

	if pos, ok := q.Position(jobB.ID); !ok || pos != 1 {
		t.Errorf("Position(B) = %d, %v; want 1, true", pos, ok)
	}
	if _, ok := q.Position(jobA.ID); ok {
		t.Error("Position(A) should report false while running")
	}

	// Finish A: B starts (its next event is its own status, not queue 0),
	// C moves up to position 1.
	gate <- struct{}{}
	drain(t, jobA)

	ev = next(t, jobB)
	if ev.Kind != domain.EventStatus {
		t.Errorf("expected B's first running event to be status, got %s", ev.Kind)
	}
	ev = next(t, jobC)
	if ev.Kind != domain.EventQueue || ev.Position == nil || *ev.Position != 1 {
		t.Fatalf("expected queue position 1 for C, got %+v", ev)
	}

	gate <- struct{}{}
	gate <- struct{}{}
	drain(t, jobB)
	drain(t, jobC)
}

func TestCancelQueuedJob(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate}
	q := queue.New(runner, 5*time.Second, 8, zap.NewNop())

	jobA, _ := q.Submit(req("a"))
	jobB, _ := q.Submit(req("b"))

	if !q.Cancel(jobB.ID) {
		t.Fatal("expected cancel of queued job to succeed")
	}
	if q.Cancel(jobB.ID) {
		t.Error("second cancel should report false")
	}

	// A queued job never ran: only queue events then end, no error and no
	// blueprint.
	events := drain(t, jobB)
	for _, ev := range events[:len(events)-1] {
		if ev.Kind != domain.EventQueue {
			t.Errorf("unexpected %s event for cancelled queued job", ev.Kind)
		}
	}
	if events[len(events)-1].Kind != domain.EventEnd {
		t.Error("cancelled queued job must still end with the terminal event")
	}

	info, err := q.Status(jobB.ID)
	if err != nil {
		t.Fatalf("status lookup failed: %v", err)
	}
	if info.Status != domain.StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", info.Status)
	}

	gate <- struct{}{}
	drain(t, jobA)
}

func TestCancelRunningJob(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{})}
	q := queue.New(runner, 5*time.Second, 8, zap.NewNop())

	job, _ := q.Submit(req("a"))

	// First event arrives once the runner started.
	if ev := next(t, job); ev.Kind != domain.EventStatus {
		t.Fatalf("expected status event, got %s", ev.Kind)
	}
	if !q.Cancel(job.ID) {
		t.Fatal("expected cancel of running job to succeed")
	}

	events := drain(t, job)
	got := kinds(events)
	if len(got) != 2 || got[0] != domain.EventError || got[1] != domain.EventEnd {
		t.Fatalf("expected [error end], got %v", got)
	}

	info, _ := q.Status(job.ID)
	if info.Status != domain.StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", info.Status)
	}
}

func TestJobTimeout(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{})}
	q := queue.New(runner, 50*time.Millisecond, 8, zap.NewNop())

	job, _ := q.Submit(req("slow"))
	events := drain(t, job)

	var sawError bool
	for _, ev := range events {
		if ev.Kind == domain.EventError {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected a timeout error event")
	}

	info, _ := q.Status(job.ID)
	if info.Status != domain.StatusTimedOut {
		t.Errorf("expected TIMED_OUT, got %s", info.Status)
	}
}

// chattyRunner emits far more output than the event buffer holds.
type chattyRunner struct {
	lines int
}

func (r *chattyRunner) Run(ctx context.Context, req *domain.CompileRequest, emit func(domain.CompileEvent)) domain.JobStatus {
	emit(domain.StatusEvent("Starting compilation..."))
	for i := 0; i < r.lines; i++ {
		emit(domain.LogEvent("output line"))
	}
	emit(domain.BlueprintEvent("bp:" + req.Source))
	return domain.StatusCompleted
}

func TestStalledConsumerDoesNotWedgeQueue(t *testing.T) {
	q := queue.New(&chattyRunner{lines: 2048}, time.Second, 8, zap.NewNop())

	// Nobody ever reads A's events, so its buffer fills mid-run.
	jobA, err := q.Submit(req("a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A must still reach a terminal status and free the slot.
	deadline := time.Now().Add(5 * time.Second)
	for {
		info, err := q.Status(jobA.ID)
		if err == nil && info.Status.IsTerminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job with a stalled consumer never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Unrelated traffic keeps flowing.
	jobB, err := q.Submit(req("b"))
	if err != nil {
		t.Fatalf("submit after stalled job failed: %v", err)
	}
	eventsB := drain(t, jobB)
	if eventsB[len(eventsB)-1].Kind != domain.EventEnd {
		t.Error("unrelated job must run to its terminal event")
	}
	if q.Depth() != 0 {
		t.Errorf("expected empty waiting list, depth is %d", q.Depth())
	}

	// When the stalled stream is finally read it still terminates with the
	// end event; earlier output may have been dropped.
	eventsA := drain(t, jobA)
	if len(eventsA) == 0 || eventsA[len(eventsA)-1].Kind != domain.EventEnd {
		t.Error("stalled stream must still close with the terminal event")
	}
}

func TestQueueFull(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate}
	q := queue.New(runner, 5*time.Second, 1, zap.NewNop())

	jobA, _ := q.Submit(req("a")) // occupies the slot
	if _, err := q.Submit(req("b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := q.Submit(req("c")); err != domain.ErrQueueFull {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	gate <- struct{}{}
	gate <- struct{}{}
	drain(t, jobA)
}

func TestShutdown(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate}
	q := queue.New(runner, 5*time.Second, 8, zap.NewNop())

	jobA, _ := q.Submit(req("a"))
	jobB, _ := q.Submit(req("b"))

	// Wait until A is actually running before shutting down.
	if ev := next(t, jobA); ev.Kind != domain.EventStatus {
		t.Fatalf("expected status event, got %s", ev.Kind)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown did not drain: %v", err)
	}

	if _, err := q.Submit(req("c")); err != domain.ErrShuttingDown {
		t.Errorf("expected ErrShuttingDown, got %v", err)
	}

	eventsB := drain(t, jobB)
	if eventsB[len(eventsB)-1].Kind != domain.EventEnd {
		t.Error("queued job must end on shutdown")
	}
	drain(t, jobA)
}
