package api

import (
	"encoding/json"
	"net/http"

	"github.com/medveille/medveille/internal/models"
	"github.com/medveille/medveille/internal/store"
)

type WaterHandler struct {
	store *store.Store
}

func NewWaterHandler(s *store.Store) *WaterHandler {
	return &WaterHandler{store: s}
}

func (h *WaterHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.WaterAnalyses(r.Context())
	if err != nil {
		http.Error(w, "Error loading water analyses", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(items)
}

// SaveAnalysis persists an analysis record. A non-potable result never
// mutates in place: the UI is expected to create a fresh retest record and
// leave the flagged one as permanent history.
func (h *WaterHandler) SaveAnalysis(w http.ResponseWriter, r *http.Request) {
	var a models.WaterAnalysis
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if a.DepartmentID == 0 && a.StructureID == 0 {
		http.Error(w, "Missing water department", http.StatusBadRequest)
		return
	}
	saved, err := h.store.SaveWaterAnalysis(r.Context(), a)
	if err != nil {
		http.Error(w, "Error saving water analysis", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(saved)
}

func (h *WaterHandler) DeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteWaterAnalysis(r.Context(), id); err != nil {
		http.Error(w, "Error deleting water analysis", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Overview derives every water department's status for the current month.
func (h *WaterHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	depts, err := h.store.WaterDepartments(ctx)
	if err != nil {
		http.Error(w, "Error loading water departments", http.StatusInternalServerError)
		return
	}
	analyses, err := h.store.WaterAnalyses(ctx)
	if err != nil {
		http.Error(w, "Error loading water analyses", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(h.store.Engine().WaterOverview(depts, analyses))
}
