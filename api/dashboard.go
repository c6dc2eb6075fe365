package api

import (
	"encoding/json"
	"net/http"

	"github.com/medveille/medveille/internal/store"
)

type DashboardHandler struct {
	store *store.Store
}

func NewDashboardHandler(s *store.Store) *DashboardHandler {
	return &DashboardHandler{store: s}
}

// Stats aggregates overdue and due-soon workers plus positive-lab follow-ups
// for the landing screen.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workers, err := h.store.Workers(ctx)
	if err != nil {
		http.Error(w, "Error loading workers", http.StatusInternalServerError)
		return
	}
	exams, err := h.store.Exams(ctx)
	if err != nil {
		http.Error(w, "Error loading exams", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(h.store.Engine().DashboardStats(workers, exams))
}
