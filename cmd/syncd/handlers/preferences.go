package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/store"
)

// PreferenceHandler handles user preference storage.
type PreferenceHandler struct {
	store *store.Store
}

// NewPreferenceHandler creates a new PreferenceHandler.
func NewPreferenceHandler(st *store.Store) *PreferenceHandler {
	return &PreferenceHandler{store: st}
}

// List handles GET /api/preferences.
func (h *PreferenceHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	prefs, err := h.store.Prefs.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to read preferences", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}

// Handle handles GET and PUT on /api/preferences/{key}.
func (h *PreferenceHandler) Handle(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/preferences/")
	if key == "" {
		http.Error(w, "Preference key required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		value, err := h.store.Prefs.Get(r.Context(), key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "Preference not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to read preference", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"key": key, "value": value})

	case http.MethodPut:
		var request struct {
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := h.store.Prefs.Set(r.Context(), key, request.Value); err != nil {
			http.Error(w, "Failed to save preference", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"key": key, "value": request.Value})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
