package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multigateway-api/queue"
)

type fakeSource struct {
	mu        sync.Mutex
	pending   []*queue.Job
	completed []string
	failed    []string
	retried   []string
	promoted  int
}

func (s *fakeSource) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	s.mu.Lock()
	if len(s.pending) > 0 {
		job := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		return job, nil
	}
	s.mu.Unlock()
	time.Sleep(time.Millisecond)
	return nil, nil
}

func (s *fakeSource) CompleteJob(_ context.Context, job *queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, job.ID)
	return nil
}

func (s *fakeSource) FailJob(_ context.Context, job *queue.Job, err error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, job.ID)
	if queue.IsPermanent(err) {
		return false, nil
	}
	s.retried = append(s.retried, job.ID)
	return true, nil
}

func (s *fakeSource) ProcessDelayedJobs(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promoted++
	return 0, nil
}

func (s *fakeSource) snapshot() (completed, failed []string, promoted int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.completed...), append([]string(nil), s.failed...), s.promoted
}

type processorFunc func(ctx context.Context, job *queue.Job) error

func (f processorFunc) ProcessJob(ctx context.Context, job *queue.Job) error { return f(ctx, job) }

func TestWorkerCompletesAndFailsJobs(t *testing.T) {
	src := &fakeSource{pending: []*queue.Job{
		{ID: "ok", Type: "void"},
		{ID: "bad", Type: "refund"},
	}}
	proc := processorFunc(func(_ context.Context, job *queue.Job) error {
		if job.ID == "bad" {
			return errors.New("gateway down")
		}
		return nil
	})

	w := NewWorker(src, proc, nil, Options{DequeueTimeout: time.Millisecond, PromoteInterval: 5 * time.Millisecond})
	w.Start(2)

	require.Eventually(t, func() bool {
		completed, failed, promoted := src.snapshot()
		return len(completed) == 1 && len(failed) == 1 && promoted > 0
	}, 2*time.Second, 5*time.Millisecond)
	w.Stop()

	completed, failed, _ := src.snapshot()
	assert.Equal(t, []string{"ok"}, completed)
	assert.Equal(t, []string{"bad"}, failed)
}

func TestPermanentFailuresAreNotRetried(t *testing.T) {
	src := &fakeSource{pending: []*queue.Job{
		{ID: "transient", Type: "refund"},
		{ID: "invalid", Type: "capture"},
	}}
	proc := processorFunc(func(_ context.Context, job *queue.Job) error {
		if job.ID == "invalid" {
			return queue.Permanent(errors.New("capture requires an authorization"))
		}
		return errors.New("gateway down")
	})

	w := NewWorker(src, proc, nil, Options{DequeueTimeout: time.Millisecond})
	w.Start(1)
	require.Eventually(t, func() bool {
		_, failed, _ := src.snapshot()
		return len(failed) == 2
	}, 2*time.Second, 5*time.Millisecond)
	w.Stop()

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, []string{"transient"}, src.retried)
}

func TestStopIsIdempotent(t *testing.T) {
	w := NewWorker(&fakeSource{}, processorFunc(func(context.Context, *queue.Job) error { return nil }), nil, Options{DequeueTimeout: time.Millisecond})
	w.Start(1)
	w.Stop()
	w.Stop()
}
