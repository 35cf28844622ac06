// Package queue serializes compile jobs through a single compilation slot.
//
// The Facto compiler is not safe to run concurrently against shared game
// semantics, so at most one job is ever running. Everything else waits in
// a FIFO list and gets its position pushed as it changes. All queue state
// is guarded by one mutex with O(1) hold times.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Snagnar/facto.github.io/internal/domain"
	"github.com/Snagnar/facto.github.io/internal/metrics"
)

// eventBuffer bounds a job's event channel. Consumers should drain until
// the channel closes; once the buffer is full the oldest buffered event
// is dropped so a stalled consumer can never back-pressure the queue.
const eventBuffer = 256

// Runner executes one compilation to a terminal status, forwarding every
// event the instant it is produced. The context carries both the per-job
// deadline and cancellation.
type Runner interface {
	Run(ctx context.Context, req *domain.CompileRequest, emit func(domain.CompileEvent)) domain.JobStatus
}

// Job is one compile request's lifecycle record. The queue owns it while
// queued; a Runner owns execution once it transitions to running. The
// record stays queryable throughout.
type Job struct {
	ID      uuid.UUID
	Request *domain.CompileRequest

	// Guarded by the queue mutex.
	status     domain.JobStatus
	enqueuedAt time.Time
	startedAt  time.Time
	finishedAt time.Time
	lastPos    int
	cancel     context.CancelFunc

	events chan domain.CompileEvent
}

// Events returns the job's ordered event stream. The channel is closed
// after the terminal end event.
func (j *Job) Events() <-chan domain.CompileEvent {
	return j.events
}

// emit delivers ev without ever blocking. A consumer that stopped reading
// (a dropped SSE or WebSocket client) fills the buffer; from then on the
// oldest buffered event is discarded to make room, so the queue's own
// sends, some of which happen under the mutex, always complete and the
// terminal end event always lands in the channel.
func (j *Job) emit(ev domain.CompileEvent) {
	for {
		select {
		case j.events <- ev:
			return
		default:
		}
		select {
		case <-j.events:
		default:
		}
	}
}

// maxFinished bounds the retained terminal job records.
const maxFinished = 128

// Queue is the single-slot FIFO job queue.
type Queue struct {
	mu            sync.Mutex
	waiting       []*Job
	running       *Job
	finished      map[uuid.UUID]*Job
	finishedOrder []uuid.UUID
	closed        bool
	idle          chan struct{} // signalled when the running slot frees with nothing waiting

	runner     Runner
	timeout    time.Duration
	maxWaiting int
	logger     *zap.Logger
}

// New creates a queue. timeout bounds each job's wall-clock runtime;
// maxWaiting caps the waiting list (not counting the running job).
func New(runner Runner, timeout time.Duration, maxWaiting int, logger *zap.Logger) *Queue {
	return &Queue{
		runner:     runner,
		timeout:    timeout,
		maxWaiting: maxWaiting,
		logger:     logger,
		finished:   make(map[uuid.UUID]*Job),
		idle:       make(chan struct{}, 1),
	}
}

// Submit validates nothing; callers validate at the boundary. It appends
// the job and immediately advances if the slot is free. The first queue
// event is emitted only when the job does not start right away.
func (q *Queue) Submit(req *domain.CompileRequest) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, domain.ErrShuttingDown
	}
	if len(q.waiting) >= q.maxWaiting {
		return nil, domain.ErrQueueFull
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	job := &Job{
		ID:         id,
		Request:    req,
		status:     domain.StatusQueued,
		enqueuedAt: time.Now().UTC(),
		lastPos:    -1,
		events:     make(chan domain.CompileEvent, eventBuffer),
	}
	q.waiting = append(q.waiting, job)
	metrics.QueueDepth.Set(float64(len(q.waiting)))

	if pos := q.positionLocked(job); pos > 0 {
		job.lastPos = pos
		job.emit(domain.QueueEvent(pos))
	}

	q.logger.Debug("job enqueued",
		zap.String("job_id", job.ID.String()),
		zap.Int("waiting", len(q.waiting)),
	)

	q.advanceLocked()
	return job, nil
}

// Position reports how many jobs precede the given one, counting the
// running job. Returns false once the job is running or terminal.
func (q *Queue) Position(id uuid.UUID) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.waiting {
		if j.ID == id {
			return q.positionLocked(j), true
		}
	}
	return 0, false
}

// Depth reports how many jobs are waiting behind the running slot.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Status returns the job's lifecycle snapshot.
func (q *Queue) Status(id uuid.UUID) (*domain.JobInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j := q.findLocked(id); j != nil {
		return &domain.JobInfo{
			ID:         j.ID,
			Status:     j.status,
			EnqueuedAt: j.enqueuedAt,
			StartedAt:  j.startedAt,
			FinishedAt: j.finishedAt,
		}, nil
	}
	return nil, domain.ErrJobNotFound
}

// Cancel removes a still-queued job outright (it never ran, so its stream
// ends with only the terminal event) or signals the running session to
// kill its subprocess. Returns false if the job is unknown or already
// terminal.
func (q *Queue) Cancel(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running != nil && q.running.ID == id {
		q.running.cancel()
		return true
	}

	for i, j := range q.waiting {
		if j.ID != id {
			continue
		}
		q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
		metrics.QueueDepth.Set(float64(len(q.waiting)))
		j.status = domain.StatusCancelled
		j.finishedAt = time.Now().UTC()
		j.emit(domain.EndEvent())
		close(j.events)
		q.retireLocked(j)
		q.repositionLocked()
		q.logger.Info("queued job cancelled", zap.String("job_id", j.ID.String()))
		return true
	}
	return false
}

// Shutdown stops accepting jobs, cancels everything queued, signals the
// running session, and waits for the slot to drain or ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	for _, j := range q.waiting {
		j.status = domain.StatusCancelled
		j.finishedAt = time.Now().UTC()
		j.emit(domain.EndEvent())
		close(j.events)
		q.retireLocked(j)
	}
	q.waiting = nil
	metrics.QueueDepth.Set(0)
	running := q.running
	if running != nil {
		// Clear any stale idle token from before this job started so the
		// wait below only completes when this job's slot frees.
		select {
		case <-q.idle:
		default:
		}
		running.cancel()
	}
	q.mu.Unlock()

	if running == nil {
		return nil
	}
	select {
	case <-q.idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) findLocked(id uuid.UUID) *Job {
	if q.running != nil && q.running.ID == id {
		return q.running
	}
	for _, j := range q.waiting {
		if j.ID == id {
			return j
		}
	}
	return q.finished[id]
}

// retireLocked records a terminal job so its status stays queryable,
// evicting the oldest record past the cap.
func (q *Queue) retireLocked(job *Job) {
	q.finished[job.ID] = job
	q.finishedOrder = append(q.finishedOrder, job.ID)
	if len(q.finishedOrder) > maxFinished {
		delete(q.finished, q.finishedOrder[0])
		q.finishedOrder = q.finishedOrder[1:]
	}
}

// positionLocked: index among still-queued jobs, plus one if the slot is
// occupied. Position 0 means "about to start", which never survives to a
// queue event because advancement pops the head immediately.
func (q *Queue) positionLocked(job *Job) int {
	offset := 0
	if q.running != nil {
		offset = 1
	}
	for i, j := range q.waiting {
		if j.ID == job.ID {
			return i + offset
		}
	}
	return 0
}

// repositionLocked pushes a queue event to every waiting job whose
// position changed. Positions only ever decrease.
func (q *Queue) repositionLocked() {
	for _, j := range q.waiting {
		if pos := q.positionLocked(j); pos != j.lastPos {
			j.lastPos = pos
			j.emit(domain.QueueEvent(pos))
		}
	}
}

// advanceLocked pops the head of the waiting list into the free running
// slot. Jobs transition to running strictly in enqueue order.
func (q *Queue) advanceLocked() {
	if q.running != nil || len(q.waiting) == 0 {
		if q.running == nil {
			select {
			case q.idle <- struct{}{}:
			default:
			}
		}
		return
	}

	job := q.waiting[0]
	q.waiting = q.waiting[1:]
	metrics.QueueDepth.Set(float64(len(q.waiting)))

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	job.cancel = cancel
	job.status = domain.StatusRunning
	job.startedAt = time.Now().UTC()
	q.running = job
	metrics.JobsRunning.Set(1)

	q.logger.Info("job started", zap.String("job_id", job.ID.String()))
	go q.run(ctx, job)
}

// run executes the job outside the lock, then finalizes it: record the
// terminal status, emit the single end event, close the stream, free the
// slot, and advance. Every failure path of the runner converges here so
// the slot is always released.
func (q *Queue) run(ctx context.Context, job *Job) {
	defer job.cancel()

	status := q.runner.Run(ctx, job.Request, job.emit)
	if !status.IsTerminal() {
		// A runner must resolve to a terminal state; treat anything else
		// as a failure rather than wedging the slot.
		q.logger.Error("runner returned non-terminal status",
			zap.String("job_id", job.ID.String()),
			zap.String("status", string(status)),
		)
		status = domain.StatusFailed
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	job.status = status
	job.finishedAt = time.Now().UTC()
	job.emit(domain.EndEvent())
	close(job.events)
	q.running = nil
	metrics.JobsRunning.Set(0)
	q.retireLocked(job)

	q.logger.Info("job finished",
		zap.String("job_id", job.ID.String()),
		zap.String("status", string(status)),
		zap.Duration("elapsed", job.finishedAt.Sub(job.startedAt)),
	)

	// Advance before repositioning: the next job leaves the waiting list
	// first, so it never sees a "queue 0" event. Its transition out of
	// queued state is signaled by its own first session event.
	q.advanceLocked()
	q.repositionLocked()
}
