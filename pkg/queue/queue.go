package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueEmbeddings is the Redis list key for photo embedding jobs.
	QueueEmbeddings = "worker:embeddings"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypePhotoEmbedding JobType = "photo_embedding"
)

// PhotoEmbeddingPayload asks the worker to embed one stored case photo.
type PhotoEmbeddingPayload struct {
	CaseID   uuid.UUID `json:"case_id"`
	PhotoURL string    `json:"photo_url"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

func newJob(t JobType, payload interface{}, now time.Time) ([]byte, *Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}
	job := &Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		CreatedAt: now,
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal job: %w", err)
	}
	return raw, job, nil
}

// EnqueuePhotoEmbedding enqueues an embedding job for a newly stored case photo.
func (q *Queue) EnqueuePhotoEmbedding(ctx context.Context, payload PhotoEmbeddingPayload) error {
	raw, job, err := newJob(JobTypePhotoEmbedding, payload, time.Now())
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, QueueEmbeddings, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued photo embedding job", zap.String("job_id", job.ID), zap.String("case_id", payload.CaseID.String()))
	return nil
}

// Dequeue blocks until a job is available or ctx is done. Returns job and key (queue name).
// A nil job with nil error means the popped entry was unreadable and was dropped.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueEmbeddings).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	job, err := DecodeJob([]byte(result[1]))
	if err != nil {
		q.logger.Warn("invalid job payload", zap.Error(err))
		if pushErr := q.client.RPush(ctx, QueueDLQ, result[1]).Err(); pushErr != nil {
			q.logger.Error("dlq push failed", zap.Error(pushErr))
		}
		return nil, "", nil
	}
	return job, result[0], nil
}

// DecodeJob parses a raw job envelope.
func DecodeJob(raw []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if job.ID == "" || job.Type == "" {
		return nil, fmt.Errorf("decode job: missing id or type")
	}
	return &job, nil
}

// DecodePhotoEmbedding extracts the payload of a photo embedding job.
func (j *Job) DecodePhotoEmbedding() (PhotoEmbeddingPayload, error) {
	var p PhotoEmbeddingPayload
	if j.Type != JobTypePhotoEmbedding {
		return p, fmt.Errorf("job %s has type %s", j.ID, j.Type)
	}
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	if p.CaseID == uuid.Nil || p.PhotoURL == "" {
		return p, fmt.Errorf("job %s: payload missing case_id or photo_url", j.ID)
	}
	return p, nil
}

// Exhausted reports whether the next failure of job should send it to the DLQ.
func Exhausted(job *Job) bool {
	return job.Attempt+1 >= MaxRetries
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	exhausted := Exhausted(job)
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if exhausted {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, QueueEmbeddings, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Depth returns the number of pending and dead-lettered jobs.
func (q *Queue) Depth(ctx context.Context) (pending, dead int64, err error) {
	pending, err = q.client.LLen(ctx, QueueEmbeddings).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("llen %s: %w", QueueEmbeddings, err)
	}
	dead, err = q.client.LLen(ctx, QueueDLQ).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("llen %s: %w", QueueDLQ, err)
	}
	return pending, dead, nil
}
