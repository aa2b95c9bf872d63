package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EmbeddingClient turns texts into vectors, one per input in input order.
// proxy.HostedClient satisfies it.
type EmbeddingClient interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

const defaultBatchSize = 16

// Embedder wraps an EmbeddingClient with a fixed model.
type Embedder struct {
	client    EmbeddingClient
	model     string
	batchSize int
}

func NewEmbedder(c EmbeddingClient, model string) *Embedder {
	return &Embedder{client: c, model: model, batchSize: defaultBatchSize}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.client.Embed(ctx, e.model, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding text: got %d vectors, want 1", len(vecs))
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in batches, running batches concurrently.
// Returns nil (not error) for empty/nil input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.client.Embed(gCtx, e.model, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding texts %d-%d: %w", start, end-1, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding texts %d-%d: got %d vectors", start, end-1, len(vecs))
			}
			copy(results[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
