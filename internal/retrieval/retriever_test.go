package retrieval

import (
	"context"
	"strings"
	"testing"
)

func TestRetrieve(t *testing.T) {
	index := NewSQLiteIndex(openTestDB(t))
	ctx := context.Background()

	// Embeds "graphs" text on axis 0 and everything else on axis 1.
	mock := &mockClient{embedFn: func(_ context.Context, _ string, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, t := range texts {
			if strings.Contains(t, "graph") {
				out[i] = []float32{1, 0}
			} else {
				out[i] = []float32{0, 1}
			}
		}
		return out, nil
	}}
	embedder := NewEmbedder(mock, "m")

	texts := []string{"cooking pasta", "graph traversal", "poetry"}
	vecs, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	chunks := make([]Chunk, len(texts))
	for i := range texts {
		chunks[i] = Chunk{Text: texts[i], Embedding: vecs[i]}
	}
	if err := index.Upsert(ctx, chunks, ChunkMeta{DocumentID: "d1", Source: "Syllabus"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	r := NewRetriever(embedder, index)
	got, err := r.Retrieve(ctx, "what is a graph?", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 || got[0].Text != "graph traversal" {
		t.Fatalf("Retrieve = %+v", got)
	}

	rendered := RenderChunks(got)
	if !strings.HasPrefix(rendered, "[Excerpt 1] Syllabus (score 1.000)\ngraph traversal") {
		t.Errorf("RenderChunks = %q", rendered)
	}
	if RenderChunks(nil) != "" {
		t.Error("RenderChunks(nil) should be empty")
	}
}

func TestSplit(t *testing.T) {
	text := strings.Repeat("a", 1200)
	chunks := Split(text, 500, 50)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len([]rune(chunks[0])) != 500 || len([]rune(chunks[1])) != 500 {
		t.Errorf("chunk sizes = %d, %d", len(chunks[0]), len(chunks[1]))
	}
	// Starts at 0, 450, 900.
	if len(chunks[2]) != 300 {
		t.Errorf("last chunk = %d runes, want 300", len(chunks[2]))
	}

	if got := Split("short", 500, 50); len(got) != 1 || got[0] != "short" {
		t.Errorf("Split(short) = %v", got)
	}
	if got := Split("   \n\n  ", 500, 50); len(got) != 0 {
		t.Errorf("whitespace produced chunks: %v", got)
	}

	multi := strings.Repeat("é", 20)
	for _, c := range Split(multi, 8, 2) {
		if len([]rune(c)) > 8 {
			t.Errorf("chunk %q longer than 8 runes", c)
		}
	}
}
