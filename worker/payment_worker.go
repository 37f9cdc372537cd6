package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"multigateway-api/metrics"
	"multigateway-api/queue"
)

// JobSource is the subset of *queue.Queue the worker drives.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	CompleteJob(ctx context.Context, job *queue.Job) error
	FailJob(ctx context.Context, job *queue.Job, err error) (bool, error)
	ProcessDelayedJobs(ctx context.Context) (int, error)
}

// Processor runs one job. *billing.Service implements it.
type Processor interface {
	ProcessJob(ctx context.Context, job *queue.Job) error
}

type Options struct {
	DequeueTimeout  time.Duration
	JobTimeout      time.Duration
	PromoteInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.DequeueTimeout <= 0 {
		o.DequeueTimeout = 5 * time.Second
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 2 * time.Minute
	}
	if o.PromoteInterval <= 0 {
		o.PromoteInterval = 5 * time.Second
	}
	return o
}

// Worker handles background gateway calls
type Worker struct {
	queue     JobSource
	processor Processor
	logger    *zap.Logger
	opts      Options

	mu        sync.Mutex
	shutdown  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
}

func NewWorker(q JobSource, p Processor, logger *zap.Logger, opts Options) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     q,
		processor: p,
		logger:    logger.With(zap.String("component", "worker")),
		opts:      opts.withDefaults(),
	}
}

// Start launches concurrency job loops plus the delayed-job promoter.
func (w *Worker) Start(concurrency int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return
	}
	if concurrency < 1 {
		concurrency = 1
	}
	w.shutdown = make(chan struct{})
	w.isRunning = true

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(i)
	}
	w.wg.Add(1)
	go w.promoteDelayed()

	w.logger.Info("worker started", zap.Int("concurrency", concurrency))
}

// Stop signals the loops and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	close(w.shutdown)
	w.isRunning = false
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) processJobs(workerID int) {
	defer w.wg.Done()
	logger := w.logger.With(zap.Int("worker_id", workerID))

	for {
		select {
		case <-w.shutdown:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), w.opts.DequeueTimeout+5*time.Second)
		job, err := w.queue.Dequeue(ctx, w.opts.DequeueTimeout)
		cancel()

		if err != nil {
			logger.Error("error dequeuing job", zap.Error(err))
			w.pause(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.handle(logger, job)
	}
}

func (w *Worker) handle(logger *zap.Logger, job *queue.Job) {
	logger = logger.With(zap.String("job_id", job.ID), zap.String("type", job.Type))

	ctx, cancel := context.WithTimeout(context.Background(), w.opts.JobTimeout)
	jobErr := w.processor.ProcessJob(ctx, job)
	cancel()

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if jobErr != nil {
		if queue.IsPermanent(jobErr) {
			logger.Warn("job failed permanently", zap.Error(jobErr))
		} else {
			logger.Warn("job failed", zap.Int("retry_count", job.RetryCount), zap.Error(jobErr))
		}
		retry, err := w.queue.FailJob(ctx, job, jobErr)
		if err != nil {
			logger.Error("error marking job as failed", zap.Error(err))
		}
		result := "failed"
		if retry {
			result = "retried"
		}
		metrics.JobsProcessed.WithLabelValues(job.Type, result).Inc()
		return
	}

	if err := w.queue.CompleteJob(ctx, job); err != nil {
		logger.Error("error marking job as complete", zap.Error(err))
	}
	metrics.JobsProcessed.WithLabelValues(job.Type, "completed").Inc()
}

func (w *Worker) promoteDelayed() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.opts.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.shutdown:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			moved, err := w.queue.ProcessDelayedJobs(ctx)
			cancel()
			if err != nil {
				w.logger.Error("error promoting delayed jobs", zap.Error(err))
				continue
			}
			if moved > 0 {
				w.logger.Info("promoted delayed jobs", zap.Int("count", moved))
			}
		}
	}
}

func (w *Worker) pause(d time.Duration) {
	select {
	case <-w.shutdown:
	case <-time.After(d):
	}
}
