package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opora-ua/opora/pkg/provider/embeddings/ollama"
)

// embedServer starts a test HTTP server answering /api/embed with canned
// vectors, one per input text.
func embedServer(t *testing.T, wantModel string, vectors [][]float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if req.Model != wantModel {
			t.Errorf("model = %q, want %q", req.Model, wantModel)
		}

		result := vectors
		if len(result) > len(req.Input) {
			result = result[:len(req.Input)]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":      wantModel,
			"embeddings": result,
		})
	}))
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := ollama.New("http://x", ""); err == nil {
		t.Error("New with empty model succeeded, want error")
	}
}

func TestEmbed(t *testing.T) {
	t.Parallel()

	srv := embedServer(t, "nomic-embed-text", [][]float32{{0.1, 0.2, 0.3}})
	defer srv.Close()

	p, err := ollama.New(srv.URL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	vec, err := p.Embed(context.Background(), "free legal aid")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("Embed() = %v", vec)
	}
}

func TestEmbedBatch(t *testing.T) {
	t.Parallel()

	srv := embedServer(t, "nomic-embed-text", [][]float32{{1}, {2}, {3}})
	defer srv.Close()

	p, err := ollama.New(srv.URL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vecs) != 3 || vecs[2][0] != 3 {
		t.Errorf("EmbedBatch() = %v", vecs)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	t.Parallel()

	p, err := ollama.New("http://localhost:1", "nomic-embed-text")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	vecs, err := p.EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("EmbedBatch(nil) = %v, %v; want nil, nil", vecs, err)
	}
}

func TestEmbed_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := ollama.New(srv.URL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := p.Embed(context.Background(), "x"); err == nil {
		t.Error("Embed() succeeded against failing server, want error")
	}
}

func TestDimensions_KnownModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model string
		want  int
	}{
		{"nomic-embed-text", 768},
		{"nomic-embed-text:latest", 768},
		{"mxbai-embed-large", 1024},
		{"all-minilm", 384},
	}
	for _, tt := range tests {
		p, err := ollama.New("http://localhost:1", tt.model)
		if err != nil {
			t.Fatalf("New(%q) error = %v", tt.model, err)
		}
		if got := p.Dimensions(); got != tt.want {
			t.Errorf("Dimensions(%q) = %d, want %d", tt.model, got, tt.want)
		}
	}
}

func TestDimensions_Explicit(t *testing.T) {
	t.Parallel()

	p, err := ollama.New("http://localhost:1", "custom-model", ollama.WithDimensions(512))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := p.Dimensions(); got != 512 {
		t.Errorf("Dimensions() = %d, want 512", got)
	}
}

func TestDimensions_ProbeUnknownModel(t *testing.T) {
	t.Parallel()

	srv := embedServer(t, "custom-model", [][]float32{{1, 2, 3, 4, 5}})
	defer srv.Close()

	p, err := ollama.New(srv.URL, "custom-model")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := p.Dimensions(); got != 5 {
		t.Errorf("Dimensions() = %d, want probed 5", got)
	}
}

func TestModelID(t *testing.T) {
	t.Parallel()

	p, err := ollama.New("", "nomic-embed-text")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := p.ModelID(); got != "nomic-embed-text" {
		t.Errorf("ModelID() = %q", got)
	}
}
