package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/medveille/medveille/internal/models"
	"github.com/medveille/medveille/internal/store"
)

type WorkersHandler struct {
	store *store.Store
}

func NewWorkersHandler(s *store.Store) *WorkersHandler {
	return &WorkersHandler{store: s}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id != 0
}

func (h *WorkersHandler) List(w http.ResponseWriter, r *http.Request) {
	workers, err := h.store.Workers(r.Context())
	if err != nil {
		http.Error(w, "Error loading workers", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(workers)
}

// Save creates or updates a worker. Validation failures block the save with
// a user-facing message; they are fully recoverable by correcting the form.
func (h *WorkersHandler) Save(w http.ResponseWriter, r *http.Request) {
	var worker models.Worker
	if err := json.NewDecoder(r.Body).Decode(&worker); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if worker.FullName == "" {
		http.Error(w, "Missing full name", http.StatusBadRequest)
		return
	}

	saved, err := h.store.SaveWorker(r.Context(), worker)
	switch {
	case errors.Is(err, store.ErrWorkplaceRequired):
		http.Error(w, "A workplace must be selected", http.StatusBadRequest)
		return
	case errors.Is(err, store.ErrDuplicateWorker):
		http.Error(w, "A worker with the same name and national id already exists", http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "Error saving worker", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(saved)
}

func (h *WorkersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteWorker(r.Context(), id); err != nil {
		http.Error(w, "Error deleting worker", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Recalculate re-derives one worker's compliance fields on demand.
func (h *WorkersHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}
	worker, err := h.store.RecalculateWorker(r.Context(), id)
	if err != nil {
		http.Error(w, "Error recalculating worker", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(worker)
}
