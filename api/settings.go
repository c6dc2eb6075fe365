package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/medveille/medveille/internal/store"
)

type SettingsHandler struct {
	store *store.Store
}

func NewSettingsHandler(s *store.Store) *SettingsHandler {
	return &SettingsHandler{store: s}
}

type settingsResponse struct {
	DoctorName string `json:"doctor_name"`
	PINSet     bool   `json:"pin_set"`
}

type settingsRequest struct {
	DoctorName string `json:"doctor_name"`
}

// Get returns the settings record; the PIN itself never leaves the store.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Settings(r.Context())
	if err != nil {
		http.Error(w, "Error loading settings", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(settingsResponse{DoctorName: st.DoctorName, PINSet: st.PIN != ""})
}

func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := h.store.SetDoctorName(r.Context(), req.DoctorName); err != nil {
		http.Error(w, "Error saving settings", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"message":"saved"}`)
}

type maintenanceResponse struct {
	ExamsRemoved    int `json:"exams_removed"`
	AnalysesRemoved int `json:"analyses_removed"`
}

// CleanupOrphans drops exams and analyses whose parent record was deleted.
func (h *SettingsHandler) CleanupOrphans(w http.ResponseWriter, r *http.Request) {
	exams, analyses, err := h.store.CleanupOrphans(r.Context())
	if err != nil {
		http.Error(w, "Error cleaning up", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(maintenanceResponse{ExamsRemoved: exams, AnalysesRemoved: analyses})
}
