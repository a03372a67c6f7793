package handlers

import (
	"context"
	"net/http"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/background"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/store"
)

// RequestHandler exposes the captured-request replay log.
type RequestHandler struct {
	store     *store.Store
	scheduler *background.Scheduler
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(st *store.Store, scheduler *background.Scheduler) *RequestHandler {
	return &RequestHandler{store: st, scheduler: scheduler}
}

// List handles GET /api/requests.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	queued, err := h.store.Requests.ListFIFO(r.Context())
	if err != nil {
		http.Error(w, "Failed to read request log", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(queued),
		"requests": queued,
	})
}

// Replay handles POST /api/requests/replay by waking the replay task.
func (h *RequestHandler) Replay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// The drain runs detached from the request context.
	started := h.scheduler.Wake(context.Background(), background.ReplayTag)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"started": started})
}
