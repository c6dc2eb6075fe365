package api

import (
	"encoding/json"
	"net/http"

	"github.com/medveille/medveille/internal/models"
	"github.com/medveille/medveille/internal/store"
)

// RefDataHandler serves the three pure reference lists: departments,
// workplaces and water departments.
type RefDataHandler struct {
	store *store.Store
}

func NewRefDataHandler(s *store.Store) *RefDataHandler {
	return &RefDataHandler{store: s}
}

func (h *RefDataHandler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.Departments(r.Context())
	if err != nil {
		http.Error(w, "Error loading departments", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(items)
}

func (h *RefDataHandler) SaveDepartment(w http.ResponseWriter, r *http.Request) {
	var d models.Department
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil || d.Name == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	saved, err := h.store.SaveDepartment(r.Context(), d)
	if err != nil {
		http.Error(w, "Error saving department", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(saved)
}

func (h *RefDataHandler) DeleteDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteDepartment(r.Context(), id); err != nil {
		http.Error(w, "Error deleting department", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *RefDataHandler) ListWorkplaces(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.Workplaces(r.Context())
	if err != nil {
		http.Error(w, "Error loading workplaces", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(items)
}

func (h *RefDataHandler) SaveWorkplace(w http.ResponseWriter, r *http.Request) {
	var wp models.Workplace
	if err := json.NewDecoder(r.Body).Decode(&wp); err != nil || wp.Name == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	saved, err := h.store.SaveWorkplace(r.Context(), wp)
	if err != nil {
		http.Error(w, "Error saving workplace", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(saved)
}

func (h *RefDataHandler) DeleteWorkplace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteWorkplace(r.Context(), id); err != nil {
		http.Error(w, "Error deleting workplace", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *RefDataHandler) ListWaterDepartments(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.WaterDepartments(r.Context())
	if err != nil {
		http.Error(w, "Error loading water departments", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(items)
}

func (h *RefDataHandler) SaveWaterDepartment(w http.ResponseWriter, r *http.Request) {
	var d models.WaterDepartment
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil || d.Name == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	saved, err := h.store.SaveWaterDepartment(r.Context(), d)
	if err != nil {
		http.Error(w, "Error saving water department", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(saved)
}

func (h *RefDataHandler) DeleteWaterDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteWaterDepartment(r.Context(), id); err != nil {
		http.Error(w, "Error deleting water department", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
