package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opora-ua/opora/internal/directory"
	"github.com/opora-ua/opora/pkg/provider/chat"
)

type fakeResponder struct {
	reply string
	err   error
	got   []chat.Message
}

func (f *fakeResponder) Respond(ctx context.Context, history []chat.Message) (string, error) {
	f.got = history
	return f.reply, f.err
}

func seedStore(t *testing.T) *directory.MemStore {
	t.Helper()
	store := directory.NewMemStore()
	orgs := []directory.Organization{
		{ID: "org-1", Name: "Dim Dobra", Category: directory.CategoryHumanitarian, Services: "Food packages", Status: directory.StatusActive, Region: "Lvivska"},
		{ID: "org-2", Name: "Pravova Dopomoha", Category: directory.CategoryLegal, Services: "Free legal aid", Status: directory.StatusActive, Region: "Kyivska", Budget: true},
		{ID: "org-3", Name: "Medychnyi Tsentr", Category: directory.CategoryMedical, Services: "Rehabilitation", Status: directory.StatusInactive, Region: "Kyivska"},
	}
	if _, err := store.BulkImport(context.Background(), orgs); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

func testHandler(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()
	cfg := Config{Store: seedStore(t)}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresStore(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Error("New(Config{}) succeeded, want error")
	}
}

func TestListOrganizations(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	rec := doJSON(t, h, "GET", "/api/organizations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var orgs []directory.Organization
	if err := json.NewDecoder(rec.Body).Decode(&orgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(orgs) != 3 {
		t.Errorf("got %d organizations, want 3", len(orgs))
	}
}

func TestListOrganizations_Filtered(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"by region", "?region=Kyivska", 2},
		{"by category", "?category=legal", 1},
		{"by status", "?status=active", 2},
		{"budget only", "?budget=true", 1},
		{"text search", "?q=legal+aid", 1},
		{"no match", "?region=Odeska", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := doJSON(t, h, "GET", "/api/organizations"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var orgs []directory.Organization
			if err := json.NewDecoder(rec.Body).Decode(&orgs); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(orgs) != tt.want {
				t.Errorf("got %d organizations, want %d", len(orgs), tt.want)
			}
		})
	}
}

func TestGetOrganization(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	rec := doJSON(t, h, "GET", "/api/organizations/org-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var org directory.Organization
	if err := json.NewDecoder(rec.Body).Decode(&org); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if org.Name != "Dim Dobra" {
		t.Errorf("name = %q", org.Name)
	}
}

func TestGetOrganization_NotFound(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	rec := doJSON(t, h, "GET", "/api/organizations/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestAddOrganization(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	body := `{"name":"Novyi Tsentr","category":"social","status":"active","region":"Odeska"}`
	rec := doJSON(t, h, "POST", "/api/organizations", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var org directory.Organization
	if err := json.NewDecoder(rec.Body).Decode(&org); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if org.ID == "" {
		t.Error("created organization has no ID")
	}
}

func TestAddOrganization_Invalid(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", "{nope", http.StatusBadRequest},
		{"missing name", `{"category":"social","status":"active","region":"Odeska"}`, http.StatusBadRequest},
		{"unknown category", `{"name":"X","category":"cooking","status":"active","region":"Odeska"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := doJSON(t, h, "POST", "/api/organizations", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAddOrganization_Duplicate(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	body := `{"id":"org-1","name":"Dup","category":"social","status":"active","region":"Lvivska"}`
	rec := doJSON(t, h, "POST", "/api/organizations", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestUpdateOrganization(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	body := `{"name":"Dim Dobra","category":"humanitarian","status":"limited","region":"Lvivska"}`
	rec := doJSON(t, h, "PUT", "/api/organizations/org-1", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	check := doJSON(t, h, "GET", "/api/organizations/org-1", "")
	var org directory.Organization
	if err := json.NewDecoder(check.Body).Decode(&org); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if org.Status != directory.StatusLimited {
		t.Errorf("status after update = %q, want limited", org.Status)
	}
}

func TestUpdateOrganization_NotFound(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	body := `{"name":"X","category":"social","status":"active","region":"Lvivska"}`
	rec := doJSON(t, h, "PUT", "/api/organizations/missing", body)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRemoveOrganization(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	rec := doJSON(t, h, "DELETE", "/api/organizations/org-3", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if again := doJSON(t, h, "DELETE", "/api/organizations/org-3", ""); again.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", again.Code)
	}
}

func TestRegions(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	rec := doJSON(t, h, "GET", "/api/regions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var regions []string
	if err := json.NewDecoder(rec.Body).Decode(&regions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"Kyivska", "Lvivska"}
	if len(regions) != len(want) || regions[0] != want[0] || regions[1] != want[1] {
		t.Errorf("regions = %v, want %v", regions, want)
	}
}

func TestChat(t *testing.T) {
	t.Parallel()

	responder := &fakeResponder{reply: "Try Dim Dobra."}
	h := testHandler(t, func(cfg *Config) { cfg.Assistant = responder })

	rec := doJSON(t, h, "POST", "/api/chat", `{"messages":[{"role":"user","content":"food aid?"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply != "Try Dim Dobra." {
		t.Errorf("reply = %q", resp.Reply)
	}
	if len(responder.got) != 1 || responder.got[0].Content != "food aid?" {
		t.Errorf("assistant received %+v", responder.got)
	}
}

func TestChat_NotConfigured(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	rec := doJSON(t, h, "POST", "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestChat_BadRequests(t *testing.T) {
	t.Parallel()
	h := testHandler(t, func(cfg *Config) { cfg.Assistant = &fakeResponder{} })

	for name, body := range map[string]string{
		"bad json":       "{nope",
		"empty messages": `{"messages":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(t, h, "POST", "/api/chat", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestChat_AssistantFailure(t *testing.T) {
	t.Parallel()
	h := testHandler(t, func(cfg *Config) {
		cfg.Assistant = &fakeResponder{err: errors.New("backend down")}
	})

	rec := doJSON(t, h, "POST", "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "backend down") {
		t.Error("internal error details leaked to the client")
	}
}

func TestSearch_NotConfigured(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	rec := doJSON(t, h, "POST", "/api/search", `{"query":"legal"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, h, "GET", path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	h := testHandler(t, nil)

	rec := doJSON(t, h, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics status = %d, want 200", rec.Code)
	}
}
