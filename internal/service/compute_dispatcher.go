package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ibsadiq/scms-backend-sub000/internal/models"
	"github.com/ibsadiq/scms-backend-sub000/pkg/jobs"
	"github.com/ibsadiq/scms-backend-sub000/pkg/middleware/requestid"
)

type resultComputer interface {
	ComputeResultsForClassroom(ctx context.Context, termID, classroomID string) (*models.ComputationSummary, error)
	ComputeResultForStudent(ctx context.Context, termID, studentID string) (*models.TermResult, error)
	RecomputeResults(ctx context.Context, termID, classroomID string) (*models.ComputationSummary, error)
}

type dispatchOutcome struct {
	value interface{}
	err   error
}

type dispatchTask struct {
	run  func(context.Context) (interface{}, error)
	done chan dispatchOutcome
}

// ComputeDispatcher runs computations one at a time on a single worker so that in-process callers
// never interleave writes for the same classroom. Callers block until their computation finishes.
// A caller that gives up waiting does not cancel the computation.
type ComputeDispatcher struct {
	computer resultComputer
	queue    *jobs.Queue
	metrics  *MetricsService
	logger   *zap.Logger
	seq      uint64
}

// NewComputeDispatcher builds a dispatcher around computer. Call Start before use.
func NewComputeDispatcher(computer resultComputer, buffer int, metrics *MetricsService, logger *zap.Logger) *ComputeDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &ComputeDispatcher{computer: computer, metrics: metrics, logger: logger}
	d.queue = jobs.NewQueue("results-compute", d.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: buffer,
		Logger:     logger,
	})
	return d
}

// Start launches the worker.
func (d *ComputeDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop waits for the worker to exit. Queued computations that have not started are dropped.
func (d *ComputeDispatcher) Stop() {
	d.queue.Stop()
}

// ComputeResultsForClassroom queues a classroom computation and waits for its summary.
func (d *ComputeDispatcher) ComputeResultsForClassroom(ctx context.Context, termID, classroomID string) (*models.ComputationSummary, error) {
	value, err := d.dispatch(ctx, "compute", termID+":"+classroomID, func(ctx context.Context) (interface{}, error) {
		return d.computer.ComputeResultsForClassroom(ctx, termID, classroomID)
	})
	if err != nil {
		return nil, err
	}
	return value.(*models.ComputationSummary), nil
}

// RecomputeResults queues a recompute and waits for its summary.
func (d *ComputeDispatcher) RecomputeResults(ctx context.Context, termID, classroomID string) (*models.ComputationSummary, error) {
	value, err := d.dispatch(ctx, "recompute", termID+":"+classroomID, func(ctx context.Context) (interface{}, error) {
		return d.computer.RecomputeResults(ctx, termID, classroomID)
	})
	if err != nil {
		return nil, err
	}
	return value.(*models.ComputationSummary), nil
}

// ComputeResultForStudent queues a single-student computation and waits for the result.
func (d *ComputeDispatcher) ComputeResultForStudent(ctx context.Context, termID, studentID string) (*models.TermResult, error) {
	value, err := d.dispatch(ctx, "compute_student", termID+":"+studentID, func(ctx context.Context) (interface{}, error) {
		return d.computer.ComputeResultForStudent(ctx, termID, studentID)
	})
	if err != nil {
		return nil, err
	}
	return value.(*models.TermResult), nil
}

func (d *ComputeDispatcher) dispatch(ctx context.Context, kind, key string, run func(context.Context) (interface{}, error)) (interface{}, error) {
	reqID := requestid.FromContext(ctx)
	task := &dispatchTask{
		run: func(queueCtx context.Context) (interface{}, error) {
			return run(requestid.NewContext(queueCtx, reqID))
		},
		done: make(chan dispatchOutcome, 1),
	}
	job := jobs.Job{
		ID:      fmt.Sprintf("%s-%d", kind, atomic.AddUint64(&d.seq, 1)),
		Type:    kind,
		Key:     key,
		Payload: task,
		NoRetry: true,
	}
	if err := d.queue.Enqueue(job); err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", kind, err)
	}
	d.metrics.SetDispatchPending(d.queue.Pending())

	select {
	case outcome := <-task.done:
		return outcome.value, outcome.err
	case <-ctx.Done():
		d.logger.Warn("caller stopped waiting for computation",
			zap.String("job_id", job.ID), zap.String("key", key), zap.String("request_id", reqID))
		return nil, ctx.Err()
	}
}

func (d *ComputeDispatcher) handle(ctx context.Context, job jobs.Job) error {
	task, ok := job.Payload.(*dispatchTask)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	value, err := task.run(ctx)
	task.done <- dispatchOutcome{value: value, err: err}
	d.metrics.SetDispatchPending(d.queue.Pending())
	return nil
}
