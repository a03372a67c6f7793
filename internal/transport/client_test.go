package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/models"
)

func testChange(t *testing.T, op models.Operation, data map[string]interface{}) *models.PendingChange {
	t.Helper()
	change := &models.PendingChange{
		EntityType: models.EntityCampaign,
		EntityID:   "c-1",
		Operation:  op,
		Timestamp:  time.Now().Unix(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal data: %v", err)
		}
		change.Data = raw
	}
	return change
}

func TestExecuteCreate(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "srv-42", "name": "spring push"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	change := testChange(t, models.OperationCreate, map[string]interface{}{"name": "spring push"})
	change.EntityID = "temp-abc"

	result, err := client.Execute(context.Background(), change)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/campaigns" {
		t.Errorf("expected POST /api/campaigns, got %s %s", gotMethod, gotPath)
	}
	if gotBody["client_timestamp"] == nil {
		t.Error("expected client_timestamp in request body")
	}
	if result.ServerID != "srv-42" {
		t.Errorf("expected server id srv-42, got %q", result.ServerID)
	}
}

func TestExecuteUpdateSendsTimestampHeader(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Client-Timestamp")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	change := testChange(t, models.OperationUpdate, map[string]interface{}{"status": "paused"})

	if _, err := client.Execute(context.Background(), change); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotHeader == "" {
		t.Error("expected X-Client-Timestamp header")
	}
}

func TestExecuteDelete(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	change := testChange(t, models.OperationDelete, nil)

	if _, err := client.Execute(context.Background(), change); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/campaigns/c-1" {
		t.Errorf("expected DELETE /api/campaigns/c-1, got %s %s", gotMethod, gotPath)
	}
}

func TestExecuteConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"server": map[string]interface{}{"status": "live", "budget": 500},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	change := testChange(t, models.OperationUpdate, map[string]interface{}{"status": "paused"})

	_, err := client.Execute(context.Background(), change)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.ServerEntity["status"] != "live" {
		t.Errorf("expected server entity in conflict, got %v", conflict.ServerEntity)
	}
}

func TestExecuteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	change := testChange(t, models.OperationUpdate, map[string]interface{}{"status": "paused"})

	_, err := client.Execute(context.Background(), change)
	if err == nil {
		t.Fatal("expected error on 500 response")
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		t.Error("500 must not be treated as a conflict")
	}
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	entity, err := client.Fetch(context.Background(), models.EntityCampaign, "missing")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if entity != nil {
		t.Errorf("expected nil entity for 404, got %v", entity)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/filters/f-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "f-1", "name": "engineers"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	entity, err := client.Fetch(context.Background(), models.EntityFilter, "f-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if entity["name"] != "engineers" {
		t.Errorf("expected entity payload, got %v", entity)
	}
}
