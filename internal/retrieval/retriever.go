package retrieval

import (
	"context"
	"fmt"
	"strings"
)

// Retriever combines embedding and vector search to recall document text.
type Retriever struct {
	embedder *Embedder
	index    VectorIndex
}

func NewRetriever(embedder *Embedder, index VectorIndex) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve embeds the query and returns the top-K most similar chunks.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]ScoredChunk, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.index.Query(ctx, vec, topK)
}

// RenderChunks formats recalled chunks as numbered excerpts.
func RenderChunks(chunks []ScoredChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&sb, "[Excerpt %d] %s (score %.3f)\n%s\n\n", i+1, c.Source, c.Score, c.Text)
	}
	return sb.String()
}
