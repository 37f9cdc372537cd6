package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxRetries = 5
	BaseDelay  = 15 * time.Second
)

type Job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	RetryCount int             `json:"retry_count"`
	LastError  string          `json:"last_error,omitempty"`
	FailedAt   *time.Time      `json:"failed_at,omitempty"`

	// raw is the exact list member the job was read from.
	raw string
}

// RetryDelay is the backoff before retry n (1-based): 15s, 30s, 60s, ...
func RetryDelay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return BaseDelay * time.Duration(1<<(n-1))
}

type Queue struct {
	client     *redis.Client
	queueName  string
	processing string
	delayed    string
	failed     string
	logger     *zap.Logger
	now        func() time.Time
}

// Connect opens a redis client from a redis:// URL and pings it.
func Connect(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewQueue(client *redis.Client, queueName string, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		client:     client,
		queueName:  queueName,
		processing: queueName + ":processing",
		delayed:    queueName + ":delayed",
		failed:     queueName + ":failed",
		logger:     logger.With(zap.String("component", "queue"), zap.String("queue", queueName)),
		now:        time.Now,
	}
}

func (q *Queue) Enqueue(ctx context.Context, jobType string, data interface{}) (*Job, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job data: %w", err)
	}
	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Data:      payload,
		CreatedAt: q.now().UTC(),
	}

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.RPush(ctx, q.queueName, jobJSON).Err(); err != nil {
		return nil, fmt.Errorf("failed to push job to queue: %w", err)
	}

	q.logger.Info("enqueued job", zap.String("job_id", job.ID), zap.String("type", job.Type))
	return job, nil
}

// Dequeue blocks up to timeout for a job and moves it to the processing
// list. It returns (nil, nil) when the timeout elapses.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job from queue: %w", err)
	}

	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected BLPOP result format")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	job.raw = result[1]

	if err := q.client.RPush(ctx, q.processing, result[1]).Err(); err != nil {
		q.logger.Warn("failed to move job to processing list", zap.String("job_id", job.ID), zap.Error(err))
	}

	return &job, nil
}

func (q *Queue) CompleteJob(ctx context.Context, job *Job) error {
	if err := q.client.LRem(ctx, q.processing, 1, job.raw).Err(); err != nil {
		return fmt.Errorf("failed to remove job from processing queue: %w", err)
	}

	q.logger.Info("completed job", zap.String("job_id", job.ID), zap.String("type", job.Type))
	return nil
}

// FailJob schedules a retry with exponential backoff, or moves the job to
// the failed list once MaxRetries is exhausted. It reports whether the job
// will be retried.
func (q *Queue) FailJob(ctx context.Context, job *Job, jobErr error) (bool, error) {
	if err := q.client.LRem(ctx, q.processing, 1, job.raw).Err(); err != nil {
		q.logger.Warn("failed to remove job from processing list", zap.String("job_id", job.ID), zap.Error(err))
	}

	now := q.now().UTC()
	job.RetryCount++
	job.LastError = jobErr.Error()
	job.FailedAt = &now

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("failed to marshal job: %w", err)
	}

	if job.RetryCount <= MaxRetries && !IsPermanent(jobErr) {
		delay := RetryDelay(job.RetryCount)
		retryAt := now.Add(delay)
		if err := q.client.ZAdd(ctx, q.delayed, &redis.Z{
			Score:  float64(retryAt.Unix()),
			Member: jobJSON,
		}).Err(); err != nil {
			q.logger.Warn("failed to schedule retry, moving job to failed list", zap.String("job_id", job.ID), zap.Error(err))
			if err := q.client.RPush(ctx, q.failed, jobJSON).Err(); err != nil {
				return false, fmt.Errorf("failed to push job to failed queue: %w", err)
			}
			return false, nil
		}

		q.logger.Info("job scheduled for retry",
			zap.String("job_id", job.ID),
			zap.Int("retry", job.RetryCount),
			zap.Duration("delay", delay),
		)
		return true, nil
	}

	if err := q.client.RPush(ctx, q.failed, jobJSON).Err(); err != nil {
		return false, fmt.Errorf("failed to push job to failed queue: %w", err)
	}

	q.logger.Warn("job moved to failed list", zap.String("job_id", job.ID), zap.Int("retries", job.RetryCount))
	return false, nil
}

// ProcessDelayedJobs moves due delayed jobs back onto the main queue.
func (q *Queue) ProcessDelayedJobs(ctx context.Context) (int, error) {
	now := q.now().Unix()

	jobs, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get delayed jobs: %w", err)
	}

	moved := 0
	for _, jobJSON := range jobs {
		// ZRem first so two promoters never both requeue the same job.
		removed, err := q.client.ZRem(ctx, q.delayed, jobJSON).Result()
		if err != nil {
			q.logger.Warn("failed to remove job from delayed set", zap.Error(err))
			continue
		}
		if removed == 0 {
			continue
		}
		if err := q.client.RPush(ctx, q.queueName, jobJSON).Err(); err != nil {
			q.logger.Error("failed to requeue delayed job", zap.Error(err))
			continue
		}
		moved++
	}
	return moved, nil
}

// FailedJobs lists the jobs that exhausted their retries.
func (q *Queue) FailedJobs(ctx context.Context) ([]Job, error) {
	members, err := q.client.LRange(ctx, q.failed, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list failed jobs: %w", err)
	}
	out := make([]Job, 0, len(members))
	for _, m := range members {
		var job Job
		if err := json.Unmarshal([]byte(m), &job); err != nil {
			q.logger.Warn("skipping unreadable failed job", zap.Error(err))
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

// RetryJob moves a job from the failed list back onto the main queue with
// its retry count reset.
func (q *Queue) RetryJob(ctx context.Context, jobID string) error {
	members, err := q.client.LRange(ctx, q.failed, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list failed jobs: %w", err)
	}

	for _, jobJSON := range members {
		var job Job
		if err := json.Unmarshal([]byte(jobJSON), &job); err != nil {
			continue
		}
		if job.ID != jobID {
			continue
		}

		if err := q.client.LRem(ctx, q.failed, 1, jobJSON).Err(); err != nil {
			return fmt.Errorf("failed to remove job from failed queue: %w", err)
		}

		job.RetryCount = 0
		job.LastError = ""
		job.FailedAt = nil
		updated, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		if err := q.client.RPush(ctx, q.queueName, updated).Err(); err != nil {
			return fmt.Errorf("failed to push job to main queue: %w", err)
		}

		q.logger.Info("manually requeued job", zap.String("job_id", job.ID))
		return nil
	}

	return fmt.Errorf("job %s: %w", jobID, ErrJobNotFound)
}

func (q *Queue) Client() *redis.Client {
	return q.client
}

func (q *Queue) Close() error {
	return q.client.Close()
}
