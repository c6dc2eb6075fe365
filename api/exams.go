package api

import (
	"encoding/json"
	"net/http"

	"github.com/medveille/medveille/internal/models"
	"github.com/medveille/medveille/internal/store"
)

type ExamsHandler struct {
	store *store.Store
}

func NewExamsHandler(s *store.Store) *ExamsHandler {
	return &ExamsHandler{store: s}
}

type examResponse struct {
	Exam   models.Exam   `json:"exam"`
	Worker models.Worker `json:"worker"`
}

func (h *ExamsHandler) List(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.Exams(r.Context())
	if err != nil {
		http.Error(w, "Error loading exams", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(exams)
}

// Save persists an exam and then recomputes the worker's derived compliance
// fields; the two always travel together so the dashboard never shows a
// stale due date.
func (h *ExamsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var exam models.Exam
	if err := json.NewDecoder(r.Body).Decode(&exam); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if exam.WorkerID == 0 || exam.ExamDate == "" {
		http.Error(w, "Missing worker or exam date", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	saved, err := h.store.SaveExam(ctx, exam)
	if err != nil {
		http.Error(w, "Error saving exam", http.StatusInternalServerError)
		return
	}
	worker, err := h.store.RecalculateWorker(ctx, saved.WorkerID)
	if err != nil {
		http.Error(w, "Error recalculating worker", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(examResponse{Exam: saved, Worker: worker})
}

// Delete removes an exam and forces the owner's status recompute.
func (h *ExamsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	// resolve the owner before the exam disappears
	exams, err := h.store.Exams(ctx)
	if err != nil {
		http.Error(w, "Error loading exams", http.StatusInternalServerError)
		return
	}
	var workerID int64
	for _, e := range exams {
		if e.ID == id {
			workerID = e.WorkerID
			break
		}
	}

	if err := h.store.DeleteExam(ctx, id); err != nil {
		http.Error(w, "Error deleting exam", http.StatusInternalServerError)
		return
	}
	if workerID != 0 {
		// the worker may itself be gone (orphaned exam); that is fine
		if _, err := h.store.RecalculateWorker(ctx, workerID); err != nil {
			logger.Warn("recalculate after exam delete", "worker_id", workerID, "err", err)
		}
	}
	w.WriteHeader(http.StatusOK)
}
