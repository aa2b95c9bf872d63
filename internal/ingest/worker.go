// Package ingest indexes uploaded documents into the vector index in the
// background.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kalambet/lectern/internal/extract"
	"github.com/kalambet/lectern/internal/retrieval"
	"github.com/kalambet/lectern/internal/storage"
)

// JobDocumentIndex is the job type consumed by Worker.
const JobDocumentIndex = "document_index"

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
	GetDocument(ctx context.Context, id string) (storage.Document, error)
}

// JobQueue is the producer side used by the upload handler.
type JobQueue interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
}

// BatchEmbedder generates embeddings for several texts at once.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// TextReader returns the full text of a stored document.
type TextReader func(ctx context.Context, doc storage.Document) (string, error)

type indexPayload struct {
	DocumentID string `json:"document_id"`
}

// EnqueueDocument schedules a document for indexing.
func EnqueueDocument(ctx context.Context, q JobQueue, documentID string) error {
	payload, err := json.Marshal(indexPayload{DocumentID: documentID})
	if err != nil {
		return err
	}
	return q.EnqueueJob(ctx, storage.Job{
		ID:          uuid.NewString(),
		Type:        JobDocumentIndex,
		PayloadJSON: string(payload),
	})
}

// Worker processes document_index jobs from the SQLite job queue.
type Worker struct {
	store     JobStore
	embedder  BatchEmbedder
	index     retrieval.VectorIndex
	readText  TextReader
	chunkSize int
	overlap   int
	poll      time.Duration
	logger    *zap.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, embedder BatchEmbedder, index retrieval.VectorIndex, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:     store,
		embedder:  embedder,
		index:     index,
		readText:  ReadPDF,
		chunkSize: retrieval.DefaultChunkSize,
		overlap:   retrieval.DefaultChunkOverlap,
		poll:      pollInterval,
		logger:    zap.L().Named("ingest"),
	}
}

// ReadPDF extracts the text of an uploaded PDF from disk.
func ReadPDF(_ context.Context, doc storage.Document) (string, error) {
	pages, err := extract.PagesFromFile(doc.FilePath)
	if err != nil {
		return "", err
	}
	return extract.JoinPages(pages), nil
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("index worker started", zap.Duration("poll", w.poll))
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", zap.Error(err))
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single document_index job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobDocumentIndex})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempts+1), zap.Error(err))
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload indexPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	doc, err := w.store.GetDocument(ctx, payload.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", payload.DocumentID, err)
	}

	text, err := w.readText(ctx, doc)
	if err != nil {
		return fmt.Errorf("reading document text: %w", err)
	}
	pieces := retrieval.Split(text, w.chunkSize, w.overlap)
	if len(pieces) == 0 {
		w.logger.Info("document has no text to index", zap.String("document_id", doc.ID))
		return nil
	}

	vecs, err := w.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}

	chunks := make([]retrieval.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = retrieval.Chunk{Text: p, Embedding: vecs[i]}
	}

	source := doc.Title
	if strings.TrimSpace(source) == "" {
		source = doc.Filename
	}
	if err := w.index.Upsert(ctx, chunks, retrieval.ChunkMeta{DocumentID: doc.ID, Source: source}); err != nil {
		return fmt.Errorf("upserting chunks: %w", err)
	}

	w.logger.Info("document indexed", zap.String("document_id", doc.ID), zap.Int("chunks", len(chunks)))
	return nil
}
