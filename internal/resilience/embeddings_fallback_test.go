package resilience

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	vec   []float32
	dims  int
	model string
	err   error
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return s.dims }

func (s *stubEmbedder) ModelID() string { return s.model }

func TestEmbeddingsFallback_PrimarySuccess(t *testing.T) {
	primary := &stubEmbedder{vec: []float32{1, 2}, dims: 2, model: "primary-model"}
	secondary := &stubEmbedder{vec: []float32{3, 4}, dims: 2, model: "secondary-model"}

	f := NewEmbeddingsFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	vec, err := f.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec[0] != 1 {
		t.Fatalf("vec = %v, want primary's vector", vec)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary was called %d times", secondary.calls)
	}
}

func TestEmbeddingsFallback_FailsOver(t *testing.T) {
	primary := &stubEmbedder{err: errTest}
	secondary := &stubEmbedder{vec: []float32{3, 4}, dims: 2}

	f := NewEmbeddingsFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	vecs, err := f.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 3 {
		t.Fatalf("vecs = %v, want secondary's vectors", vecs)
	}
}

func TestEmbeddingsFallback_AllFail(t *testing.T) {
	f := NewEmbeddingsFallback(&stubEmbedder{err: errTest}, "primary", FallbackConfig{})

	_, err := f.Embed(context.Background(), "text")
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestEmbeddingsFallback_StaticMetadataFromPrimary(t *testing.T) {
	primary := &stubEmbedder{dims: 1536, model: "text-embedding-3-small"}

	f := NewEmbeddingsFallback(primary, "primary", FallbackConfig{})
	if f.Dimensions() != 1536 {
		t.Errorf("Dimensions() = %d, want 1536", f.Dimensions())
	}
	if f.ModelID() != "text-embedding-3-small" {
		t.Errorf("ModelID() = %q", f.ModelID())
	}
}
