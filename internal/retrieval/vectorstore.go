package retrieval

import (
	"context"
	"time"
)

// VectorIndex stores embedded document chunks and answers nearest-neighbour
// queries over them.
type VectorIndex interface {
	// Upsert replaces every chunk of meta.DocumentID with chunks.
	Upsert(ctx context.Context, chunks []Chunk, meta ChunkMeta) error

	// Query returns up to topK chunks ordered by cosine similarity.
	Query(ctx context.Context, vector []float32, topK int) ([]ScoredChunk, error)

	// DeleteDocument removes all chunks of a document.
	DeleteDocument(ctx context.Context, documentID string) error

	Count(ctx context.Context) (int, error)
}

// Chunk is one embedded slice of a document's text.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// ChunkMeta is shared by every chunk of one upsert.
type ChunkMeta struct {
	DocumentID string
	// Source is the document title or URL shown alongside recalled text.
	Source string
}

type ScoredChunk struct {
	Chunk
	Score float32
}
