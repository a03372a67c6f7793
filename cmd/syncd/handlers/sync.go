// Package handlers provides the local REST API for sync operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/connectivity"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/models"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/store"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/syncer"
)

// SyncHandler handles sync status and queue operations.
type SyncHandler struct {
	manager *syncer.Manager
	store   *store.Store
	monitor *connectivity.Monitor
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(manager *syncer.Manager, st *store.Store, monitor *connectivity.Monitor) *SyncHandler {
	return &SyncHandler{manager: manager, store: st, monitor: monitor}
}

// Status handles GET /api/sync/status.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pending, err := h.manager.PendingCount(r.Context())
	if err != nil {
		http.Error(w, "Failed to read queue", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":   string(h.manager.State()),
		"online":  h.monitor.Online(),
		"pending": pending,
	})
}

// TriggerSync handles POST /api/sync/now.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := h.manager.SyncNow(r.Context())
	status := http.StatusOK
	if report.Status == syncer.StateFailed {
		status = http.StatusConflict
	}
	writeJSON(w, status, report)
}

// Pending handles GET /api/sync/pending.
func (h *SyncHandler) Pending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	changes, err := h.manager.ListPending(r.Context())
	if err != nil {
		http.Error(w, "Failed to read queue", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(changes),
		"changes": changes,
	})
}

// History handles GET /api/sync/history?limit=N.
func (h *SyncHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	history, err := h.manager.History(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to read history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

// RetryFailed handles POST /api/sync/retry.
func (h *SyncHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	count, err := h.manager.RetryFailed(r.Context())
	if err != nil {
		http.Error(w, "Failed to re-enable changes", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reenabled": count})
}

// AddChange handles POST /api/changes.
func (h *SyncHandler) AddChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var change models.PendingChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	change.ID = 0
	change.Status = ""
	change.RetryCount = 0

	if err := h.manager.AddOfflineChange(r.Context(), &change); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, change)
}

// Entities handles GET /api/entities?type=campaign.
func (h *SyncHandler) Entities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entityType := models.EntityType(r.URL.Query().Get("type"))
	if !entityType.IsValid() {
		http.Error(w, "Invalid entity type", http.StatusBadRequest)
		return
	}

	entities, err := h.store.Cache.ListByType(r.Context(), entityType)
	if err != nil {
		http.Error(w, "Failed to read cache", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(entities),
		"entities": entities,
	})
}

// Health handles GET /api/health.
func (h *SyncHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "campaign-syncd",
		"online":  h.monitor.Online(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
