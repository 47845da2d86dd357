package openai

import "testing"

func TestModelDimensions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"some-future-model", 1536},
	}
	for _, tt := range tests {
		if got := modelDimensions(tt.model); got != tt.want {
			t.Errorf("modelDimensions(%q) = %d, want %d", tt.model, got, tt.want)
		}
	}
}

func TestDimensions_MatchesModel(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "text-embedding-3-large"}
	if got := p.Dimensions(); got != 3072 {
		t.Errorf("Dimensions() = %d, want 3072", got)
	}
}

func TestModelID(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "my-custom-embeddings-model"}
	if got := p.ModelID(); got != "my-custom-embeddings-model" {
		t.Errorf("ModelID() = %q", got)
	}
}

func TestNew_DefaultModel(t *testing.T) {
	t.Parallel()

	p, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.ModelID() != DefaultModel {
		t.Errorf("default model = %q, want %q", p.ModelID(), DefaultModel)
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New("", "text-embedding-3-small"); err == nil {
		t.Fatal("New with empty API key succeeded, want error")
	}
}

func TestNew_Options(t *testing.T) {
	t.Parallel()

	_, err := New("sk-test", "text-embedding-3-small",
		WithBaseURL("https://proxy.example.com"),
	)
	if err != nil {
		t.Fatalf("New() with options error = %v", err)
	}
}

func TestFloat64ToFloat32(t *testing.T) {
	t.Parallel()

	in := []float64{1.0, 2.5, -0.5}
	out := float64ToFloat32(in)
	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i, v := range out {
		if v != float32(in[i]) {
			t.Errorf("index %d: got %v, want %v", i, v, float32(in[i]))
		}
	}
}
