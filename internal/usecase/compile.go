// Package usecase binds the request boundary to the job queue: validation
// happens exactly once here, and the two delivery modes (streaming,
// synchronous) are two ways of draining the same event sequence.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Snagnar/facto.github.io/internal/domain"
	"github.com/Snagnar/facto.github.io/internal/metrics"
	"github.com/Snagnar/facto.github.io/internal/queue"
	"github.com/Snagnar/facto.github.io/internal/stats"
)

// CompileUsecase validates requests and submits them to the queue.
type CompileUsecase struct {
	queue                  *queue.Queue
	maxSourceBytes         int
	syncCancelOnDisconnect bool
	logger                 *zap.Logger
}

// NewCompileUsecase creates a CompileUsecase.
func NewCompileUsecase(q *queue.Queue, maxSourceBytes int, syncCancelOnDisconnect bool, logger *zap.Logger) *CompileUsecase {
	return &CompileUsecase{
		queue:                  q,
		maxSourceBytes:         maxSourceBytes,
		syncCancelOnDisconnect: syncCancelOnDisconnect,
		logger:                 logger,
	}
}

// Submit validates the request and enqueues it. Validation failures are
// returned synchronously; no job is created and no events are emitted.
func (uc *CompileUsecase) Submit(req *domain.CompileRequest) (*queue.Job, error) {
	if err := req.Validate(uc.maxSourceBytes); err != nil {
		return nil, err
	}
	job, err := uc.queue.Submit(req)
	if err != nil {
		return nil, err
	}
	uc.logger.Debug("compile job submitted", zap.String("job_id", job.ID.String()))
	return job, nil
}

// Cancel cancels a queued or running job.
func (uc *CompileUsecase) Cancel(id uuid.UUID) bool {
	return uc.queue.Cancel(id)
}

// Status returns a job's lifecycle snapshot.
func (uc *CompileUsecase) Status(id uuid.UUID) (*domain.JobInfo, error) {
	return uc.queue.Status(id)
}

// QueueDepth reports how many jobs are waiting behind the running slot.
func (uc *CompileUsecase) QueueDepth() int {
	return uc.queue.Depth()
}

// RunSync submits the request and blocks until the terminal end event,
// aggregating the full ordered log into one result. If the caller's
// context expires mid-run the job is cancelled (when configured) but the
// stream is still drained so the compile slot always frees.
func (uc *CompileUsecase) RunSync(ctx context.Context, req *domain.CompileRequest) (*domain.SyncResult, error) {
	job, err := uc.Submit(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res := &domain.SyncResult{Log: []string{}}
	done := ctx.Done()

	events := job.Events()
	for {
		select {
		case <-done:
			done = nil
			if uc.syncCancelOnDisconnect {
				uc.queue.Cancel(job.ID)
			}
		case ev, ok := <-events:
			if !ok {
				info, err := uc.queue.Status(job.ID)
				if err == nil {
					res.Status = info.Status
				}
				res.Success = res.Status == domain.StatusCompleted
				res.DurationMs = time.Since(start).Milliseconds()
				return res, nil
			}
			switch ev.Kind {
			case domain.EventLog, domain.EventStatus:
				res.Log = append(res.Log, ev.Message)
			case domain.EventBlueprint:
				res.Blueprint = ev.Message
			case domain.EventError:
				res.Error = ev.Message
			}
		}
	}
}

// InstrumentedRunner wraps a queue.Runner with stats and Prometheus
// accounting for every job that actually runs. Jobs cancelled while still
// queued never reach it and are deliberately not counted.
type InstrumentedRunner struct {
	inner    queue.Runner
	recorder *stats.Recorder
}

var _ queue.Runner = (*InstrumentedRunner)(nil)

// NewInstrumentedRunner wraps inner with recording.
func NewInstrumentedRunner(inner queue.Runner, recorder *stats.Recorder) *InstrumentedRunner {
	return &InstrumentedRunner{inner: inner, recorder: recorder}
}

// Run records start, delegates, then records the terminal outcome.
func (r *InstrumentedRunner) Run(ctx context.Context, req *domain.CompileRequest, emit func(domain.CompileEvent)) domain.JobStatus {
	r.recorder.RecordStart()
	start := time.Now()

	status := r.inner.Run(ctx, req, emit)
	elapsed := time.Since(start)

	metrics.CompilationsTotal.WithLabelValues(string(status)).Inc()
	metrics.CompileDuration.Observe(elapsed.Seconds())
	if status == domain.StatusCompleted {
		r.recorder.RecordSuccess(elapsed)
	} else {
		r.recorder.RecordFailure(elapsed)
	}
	return status
}
