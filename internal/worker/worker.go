package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/internal/photomatch"
	"github.com/findthem/backend/pkg/queue"
	"github.com/findthem/backend/pkg/storage"
)

// JobQueue is the queue side the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// PhotoSource reads stored case photos.
type PhotoSource interface {
	PhotosBucket() string
	GetPhoto(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// EmbeddingSink persists computed vectors.
type EmbeddingSink interface {
	Upsert(ctx context.Context, e *models.PhotoEmbedding) error
}

// EmbeddingProcessor processes photo embedding jobs: download from S3, embed, store the vector.
type EmbeddingProcessor struct {
	queue    JobQueue
	photos   PhotoSource
	embedder photomatch.Embedder
	sink     EmbeddingSink
	backoff  time.Duration
	logger   *zap.Logger
}

// NewEmbeddingProcessor creates a photo embedding processor.
func NewEmbeddingProcessor(q JobQueue, photos PhotoSource, embedder photomatch.Embedder, sink EmbeddingSink, logger *zap.Logger) *EmbeddingProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingProcessor{queue: q, photos: photos, embedder: embedder, sink: sink, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one photo embedding job. Photos that cannot be decoded are dropped without retry.
func (p *EmbeddingProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.DecodePhotoEmbedding()
	if err != nil {
		return err
	}
	key, err := storage.KeyFromURL(p.photos.PhotosBucket(), payload.PhotoURL)
	if err != nil {
		return fmt.Errorf("photo key: %w", err)
	}

	body, contentType, err := p.photos.GetPhoto(ctx, key)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer body.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(body, storage.MaxPhotoSize+1)); err != nil {
		return fmt.Errorf("read photo: %w", err)
	}

	vec, err := p.embedder.Embed(ctx, buf.Bytes(), contentType)
	if errors.Is(err, photomatch.ErrUndecodable) {
		p.logger.Warn("photo not embeddable, skipping", zap.String("case_id", payload.CaseID.String()),
			zap.String("s3_key", key), zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	e := &models.PhotoEmbedding{CaseID: payload.CaseID, PhotoURL: payload.PhotoURL, Embedding: vec}
	if err := p.sink.Upsert(ctx, e); err != nil {
		p.logger.Error("store embedding failed", zap.Error(err), zap.String("case_id", payload.CaseID.String()))
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("photo embedding stored", zap.String("case_id", payload.CaseID.String()), zap.String("s3_key", key),
		zap.Int("dims", len(vec)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmbeddingProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("embedding worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmbeddingProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
