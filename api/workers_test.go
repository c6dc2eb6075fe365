package api_test

import (
	"net/http"
	"testing"

	"github.com/medveille/medveille/internal/models"
)

func createWorkplace(t *testing.T, env *testEnv, name string) models.Workplace {
	t.Helper()
	w := env.do(t, http.MethodPost, "/v1/workplaces", models.Workplace{Name: name})
	if w.Code != http.StatusOK {
		t.Fatalf("create workplace: status %d: %s", w.Code, w.Body.String())
	}
	return decode[models.Workplace](t, w)
}

func createWorker(t *testing.T, env *testEnv, worker models.Worker) models.Worker {
	t.Helper()
	w := env.do(t, http.MethodPost, "/v1/workers", worker)
	if w.Code != http.StatusOK {
		t.Fatalf("create worker: status %d: %s", w.Code, w.Body.String())
	}
	return decode[models.Worker](t, w)
}

func TestWorkerSaveValidation(t *testing.T) {
	env := newTestEnv(t)
	wp := createWorkplace(t, env, "Kitchen")

	tests := []struct {
		name       string
		worker     models.Worker
		wantStatus int
	}{
		{"missing name", models.Worker{WorkplaceID: wp.ID}, http.StatusBadRequest},
		{"missing workplace", models.Worker{FullName: "Ada Diallo"}, http.StatusBadRequest},
		{"valid", models.Worker{FullName: "Ada Diallo", WorkplaceID: wp.ID}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/v1/workers", tt.worker)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestWorkerDuplicateRejected(t *testing.T) {
	env := newTestEnv(t)
	wp := createWorkplace(t, env, "Laundry")
	createWorker(t, env, models.Worker{FullName: "Moussa Kone", NationalID: "N-42", WorkplaceID: wp.ID})

	w := env.do(t, http.MethodPost, "/v1/workers", models.Worker{
		FullName: " moussa kone ", NationalID: "N-42", WorkplaceID: wp.ID,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate worker: status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestNewWorkerDueImmediately(t *testing.T) {
	env := newTestEnv(t)
	wp := createWorkplace(t, env, "Bakery")

	saved := createWorker(t, env, models.Worker{FullName: "Fatou Sow", WorkplaceID: wp.ID})
	if saved.ID == 0 {
		t.Fatal("expected assigned id")
	}
	// no exam history: the next exam is due today
	if saved.NextExamDue != "2025-03-01" {
		t.Fatalf("next_exam_due = %q, want 2025-03-01", saved.NextExamDue)
	}
	if saved.LastExamDate != nil || saved.LatestStatus != nil {
		t.Fatalf("expected empty derived fields, got %v / %v", saved.LastExamDate, saved.LatestStatus)
	}
}

func TestExamSaveRecomputesWorker(t *testing.T) {
	env := newTestEnv(t)
	wp := createWorkplace(t, env, "Canteen")
	worker := createWorker(t, env, models.Worker{FullName: "Awa Traore", WorkplaceID: wp.ID})

	w := env.do(t, http.MethodPost, "/v1/exams", models.Exam{
		WorkerID: worker.ID,
		ExamDate: "2025-01-10",
		Decision: &models.Decision{Status: models.StatusApte, Date: "2025-01-10"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save exam: status %d: %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Exam   models.Exam   `json:"exam"`
		Worker models.Worker `json:"worker"`
	}](t, w)

	if resp.Exam.ID == 0 {
		t.Fatal("expected assigned exam id")
	}
	if resp.Exam.Status != models.ExamOpen {
		t.Fatalf("exam status = %q, want %q", resp.Exam.Status, models.ExamOpen)
	}
	if resp.Worker.NextExamDue != "2025-07-10" {
		t.Fatalf("next_exam_due = %q, want 2025-07-10", resp.Worker.NextExamDue)
	}
	if resp.Worker.LastExamDate == nil || *resp.Worker.LastExamDate != "2025-01-10" {
		t.Fatalf("last_exam_date = %v, want 2025-01-10", resp.Worker.LastExamDate)
	}
	if resp.Worker.LatestStatus == nil || *resp.Worker.LatestStatus != models.StatusApte {
		t.Fatalf("latest_status = %v, want apte", resp.Worker.LatestStatus)
	}
}

func TestExamDeleteRecomputesWorker(t *testing.T) {
	env := newTestEnv(t)
	wp := createWorkplace(t, env, "Garage")
	worker := createWorker(t, env, models.Worker{FullName: "Omar Ba", WorkplaceID: wp.ID})

	w := env.do(t, http.MethodPost, "/v1/exams", models.Exam{
		WorkerID: worker.ID,
		ExamDate: "2025-01-10",
		Decision: &models.Decision{Status: models.StatusApte, Date: "2025-01-10"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save exam: status %d", w.Code)
	}
	resp := decode[struct {
		Exam models.Exam `json:"exam"`
	}](t, w)

	if w := env.do(t, http.MethodDelete, "/v1/exams/"+itoa(resp.Exam.ID), nil); w.Code != http.StatusOK {
		t.Fatalf("delete exam: status %d", w.Code)
	}

	workers := decode[[]models.Worker](t, env.do(t, http.MethodGet, "/v1/workers", nil))
	if len(workers) != 1 {
		t.Fatalf("workers = %d, want 1", len(workers))
	}
	// history is gone, so the due date collapses back to today
	if workers[0].NextExamDue != "2025-03-01" {
		t.Fatalf("next_exam_due = %q, want 2025-03-01", workers[0].NextExamDue)
	}
	if workers[0].LastExamDate != nil {
		t.Fatalf("last_exam_date = %v, want nil", workers[0].LastExamDate)
	}
}

func TestWorkerDelete(t *testing.T) {
	env := newTestEnv(t)
	wp := createWorkplace(t, env, "Pool")
	worker := createWorker(t, env, models.Worker{FullName: "Ines Diop", WorkplaceID: wp.ID})

	if w := env.do(t, http.MethodDelete, "/v1/workers/"+itoa(worker.ID), nil); w.Code != http.StatusOK {
		t.Fatalf("delete worker: status %d", w.Code)
	}
	workers := decode[[]models.Worker](t, env.do(t, http.MethodGet, "/v1/workers", nil))
	if len(workers) != 0 {
		t.Fatalf("workers = %d, want 0", len(workers))
	}
}
