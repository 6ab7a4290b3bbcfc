package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findthem/backend/internal/models"
	"github.com/findthem/backend/internal/photomatch"
	"github.com/findthem/backend/pkg/queue"
	"github.com/findthem/backend/pkg/storage"
)

const bucket = "findthem-case-photos"

type memPhotos struct {
	objects map[string]string
	err     error
}

func (m *memPhotos) PhotosBucket() string { return bucket }

func (m *memPhotos) GetPhoto(_ context.Context, key string) (io.ReadCloser, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	body, ok := m.objects[key]
	if !ok {
		return nil, "", errors.New("NoSuchKey")
	}
	return io.NopCloser(strings.NewReader(body)), "image/png", nil
}

type lenEmbedder struct{}

// Embed returns a one-element vector of the image length; "garbage" is undecodable.
func (lenEmbedder) Embed(_ context.Context, data []byte, _ string) ([]float32, error) {
	if string(data) == "garbage" {
		return nil, photomatch.ErrUndecodable
	}
	return []float32{float32(len(data))}, nil
}

type memSink struct {
	mu    sync.Mutex
	saved []*models.PhotoEmbedding
	err   error
}

func (m *memSink) Upsert(_ context.Context, e *models.PhotoEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, e)
	return nil
}

func (m *memSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

type chanQueue struct {
	jobs    chan *queue.Job
	mu      sync.Mutex
	retried []*queue.Job
}

func (q *chanQueue) Dequeue(ctx context.Context) (*queue.Job, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case j := <-q.jobs:
		return j, queue.QueueEmbeddings, nil
	}
}

func (q *chanQueue) Retry(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	q.retried = append(q.retried, job)
	return nil
}

func (q *chanQueue) retries() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.retried)
}

func embeddingJob(t *testing.T, caseID uuid.UUID, key string) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(queue.PhotoEmbeddingPayload{
		CaseID:   caseID,
		PhotoURL: storage.ObjectURL(bucket, "eu-west-1", key),
	})
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypePhotoEmbedding, Payload: payload}
}

func TestProcessStoresEmbedding(t *testing.T) {
	caseID := uuid.New()
	key := "cases/" + caseID.String() + "/p1.png"
	sink := &memSink{}
	p := NewEmbeddingProcessor(nil, &memPhotos{objects: map[string]string{key: "12345"}}, lenEmbedder{}, sink, nil)

	require.NoError(t, p.Process(context.Background(), embeddingJob(t, caseID, key)))
	require.Len(t, sink.saved, 1)
	assert.Equal(t, caseID, sink.saved[0].CaseID)
	assert.Equal(t, []float32{5}, sink.saved[0].Embedding)
	assert.Contains(t, sink.saved[0].PhotoURL, key)
}

func TestProcessSkipsUndecodablePhoto(t *testing.T) {
	caseID := uuid.New()
	key := "cases/" + caseID.String() + "/p1.png"
	sink := &memSink{}
	p := NewEmbeddingProcessor(nil, &memPhotos{objects: map[string]string{key: "garbage"}}, lenEmbedder{}, sink, nil)

	require.NoError(t, p.Process(context.Background(), embeddingJob(t, caseID, key)))
	assert.Zero(t, sink.count())
}

func TestProcessFailures(t *testing.T) {
	caseID := uuid.New()
	key := "cases/" + caseID.String() + "/p1.png"

	p := NewEmbeddingProcessor(nil, &memPhotos{err: errors.New("timeout")}, lenEmbedder{}, &memSink{}, nil)
	assert.Error(t, p.Process(context.Background(), embeddingJob(t, caseID, key)))

	p = NewEmbeddingProcessor(nil, &memPhotos{objects: map[string]string{key: "x"}}, lenEmbedder{}, &memSink{err: errors.New("db down")}, nil)
	assert.Error(t, p.Process(context.Background(), embeddingJob(t, caseID, key)))

	foreign := embeddingJob(t, caseID, key)
	foreign.Payload, _ = json.Marshal(queue.PhotoEmbeddingPayload{CaseID: caseID, PhotoURL: "https://elsewhere.example.com/a.png"})
	assert.Error(t, p.Process(context.Background(), foreign))

	wrongType := &queue.Job{ID: "j1", Type: "email", Payload: json.RawMessage(`{}`)}
	assert.Error(t, p.Process(context.Background(), wrongType))
}

func TestRunRetriesFailedJobs(t *testing.T) {
	okCase, badCase := uuid.New(), uuid.New()
	okKey := "cases/" + okCase.String() + "/p.png"
	q := &chanQueue{jobs: make(chan *queue.Job, 2)}
	sink := &memSink{}
	p := NewEmbeddingProcessor(q, &memPhotos{objects: map[string]string{okKey: "abc"}}, lenEmbedder{}, sink, nil)
	p.backoff = time.Millisecond

	q.jobs <- embeddingJob(t, badCase, "cases/"+badCase.String()+"/missing.png")
	q.jobs <- embeddingJob(t, okCase, okKey)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sink.count() == 1 && q.retries() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 1, q.retried[0].Attempt)
}
