package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TrumanStellar/Story-Creation/internal/chain"
	"github.com/TrumanStellar/Story-Creation/internal/chain/stellar"
	"github.com/TrumanStellar/Story-Creation/internal/config"
	"github.com/TrumanStellar/Story-Creation/internal/database"
)

// mockChain implements chain.Integration for handler tests.
type mockChain struct {
	validSig bool
}

func (m *mockChain) ChainID() string        { return "stellar" }
func (m *mockChain) Name() string           { return "Stellar" }
func (m *mockChain) Enabled() bool          { return true }
func (m *mockChain) FactoryAddress() string { return "CFACTORY" }

func (m *mockChain) IsValidSignature(account, message, signature string) (bool, error) {
	return m.validSig, nil
}

func (m *mockChain) Snapshot(ctx context.Context) (*chain.Snapshot, error) {
	return chain.EmptySnapshot(), nil
}

func (m *mockChain) GetStory(ctx context.Context, storyID uint64) (*chain.StoryRecord, error) {
	return nil, nil
}

func (m *mockChain) GetTask(ctx context.Context, storyID, taskID uint64) (*chain.TaskRecord, error) {
	return nil, nil
}

func (m *mockChain) GetSubmit(ctx context.Context, storyID, taskID, submitID uint64) (*chain.SubmitRecord, error) {
	return nil, nil
}

func (m *mockChain) PayReward(ctx context.Context, storyID uint64, destination string, amountBase int64) (string, error) {
	return "payhash", nil
}

func (m *mockChain) TransactionSucceeded(ctx context.Context, hash string) (bool, error) {
	return false, nil
}

func (m *mockChain) AssetContractID(code, issuer string) (string, error) {
	return "CCONTRACT", nil
}

func setupTestServer(t *testing.T, mc *mockChain, st *stellar.Service) (*Server, *database.DB) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := NewServer(&config.Config{Port: 8080}, db, chain.NewRegistry(mc), st)
	return s, db
}

func TestHealth(t *testing.T) {
	s, _ := setupTestServer(t, &mockChain{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %s; want ok", resp.Status)
	}
	if len(resp.Chains) != 1 || resp.Chains[0].ID != "stellar" {
		t.Errorf("Chains = %+v; want one stellar entry", resp.Chains)
	}
}

func TestListStories(t *testing.T) {
	s, db := setupTestServer(t, &mockChain{}, nil)

	for id := uint64(1); id <= 3; id++ {
		if err := db.CreateStory(&database.Story{
			Chain: "stellar", ChainStoryID: id, Author: "GAUTHOR", ContentHash: "QmStory",
		}); err != nil {
			t.Fatal(err)
		}
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/stories", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	var resp ListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 3 {
		t.Errorf("Count = %d; want 3", resp.Count)
	}

	// story_id filter
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/stories?story_id=2", nil))
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("filtered Count = %d; want 1", resp.Count)
	}
}

func TestListStories_Limit(t *testing.T) {
	s, db := setupTestServer(t, &mockChain{}, nil)

	for id := uint64(1); id <= 5; id++ {
		if err := db.CreateStory(&database.Story{
			Chain: "stellar", ChainStoryID: id, Author: "GAUTHOR", ContentHash: "QmStory",
		}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		query string
		want  int
	}{
		{"limit=2", 2},
		{"limit=0", 5},    // out of range, default applies
		{"limit=abc", 5},  // malformed, default applies
		{"limit=1001", 5}, // over the cap, default applies
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/stories?"+tt.query, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d; want 200", tt.query, rec.Code)
		}
		var resp ListResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("%s: decoding response: %v", tt.query, err)
		}
		if resp.Count != tt.want {
			t.Errorf("%s: Count = %d; want %d", tt.query, resp.Count, tt.want)
		}
	}
}

func TestListTasks_LimitAfterFilter(t *testing.T) {
	s, db := setupTestServer(t, &mockChain{}, nil)

	for id := uint64(1); id <= 3; id++ {
		if err := db.CreateTask(&database.Task{
			Chain: "stellar", ChainStoryID: 1, ChainTaskID: id,
			Creator: "GCREATOR", Status: database.TaskStatusTodo,
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.CreateTask(&database.Task{
		Chain: "stellar", ChainStoryID: 2, ChainTaskID: 1,
		Creator: "GCREATOR", Status: database.TaskStatusTodo,
	}); err != nil {
		t.Fatal(err)
	}

	// The limit trims the filtered set, not the raw table.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/tasks?story_id=1&limit=2", nil))
	var resp ListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("Count = %d; want 2", resp.Count)
	}
}

func TestListAssets_SingleLookup(t *testing.T) {
	s, db := setupTestServer(t, &mockChain{}, nil)

	if err := db.SaveAsset(&database.Asset{
		Chain: "stellar", ChainStoryID: 1, Code: "STORY1", Issuer: "GISSUER", IsPublished: true,
	}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/assets?story_id=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	var asset database.Asset
	if err := json.NewDecoder(rec.Body).Decode(&asset); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if asset.Code != "STORY1" {
		t.Errorf("Code = %s; want STORY1", asset.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/assets?story_id=9", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d; want 404 for unknown story", rec.Code)
	}
}

func TestPublishAsset_MethodNotAllowed(t *testing.T) {
	s, _ := setupTestServer(t, &mockChain{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/assets/publish", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d; want 405", rec.Code)
	}
}

func TestPublishAsset_StellarDisabled(t *testing.T) {
	s, _ := setupTestServer(t, &mockChain{validSig: true}, nil)

	body := `{"public_key":"GPUB","message":"m","signature":"[1]","story_id":1}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/assets/publish", strings.NewReader(body)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d; want 503 when integration is disabled", rec.Code)
	}
}

func TestPublishAsset_BadSignature(t *testing.T) {
	s, _ := setupTestServer(t, &mockChain{validSig: false}, &stellar.Service{})

	body := `{"public_key":"GPUB","message":"m","signature":"[1]","story_id":1}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/assets/publish", strings.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; want 401 for invalid signature", rec.Code)
	}
}

func TestPublishAsset_MissingAuthFields(t *testing.T) {
	s, _ := setupTestServer(t, &mockChain{validSig: true}, &stellar.Service{})

	body := `{"story_id":1}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/assets/publish", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want 400 for missing auth fields", rec.Code)
	}
}

func TestBuyAsset_UnknownChain(t *testing.T) {
	s, _ := setupTestServer(t, &mockChain{validSig: true}, &stellar.Service{})

	body := `{"chain":"solana","public_key":"GPUB","message":"m","signature":"[1]","story_id":1,"amount":"1"}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/assets/buy", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want 400 for unknown chain", rec.Code)
	}
}

func TestBuyAsset_StoryNotFound(t *testing.T) {
	s, _ := setupTestServer(t, &mockChain{validSig: true}, &stellar.Service{})

	body := `{"public_key":"GPUB","message":"m","signature":"[1]","story_id":42,"amount":"1"}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/assets/buy", strings.NewReader(body)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d; want 404 for unknown story", rec.Code)
	}
}

func TestCORSPreflights(t *testing.T) {
	s, _ := setupTestServer(t, &mockChain{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/v1/stories", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d; want 200 for preflight", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q; want *", got)
	}
}
