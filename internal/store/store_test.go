package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"log/slog"

	migrations "github.com/medveille/medveille/db"
	"github.com/medveille/medveille/internal/compliance"
	"github.com/medveille/medveille/internal/db"
	"github.com/medveille/medveille/internal/kvstore"
	"github.com/medveille/medveille/internal/models"
	"github.com/medveille/medveille/internal/store"
)

var dbSeq atomic.Int64

// fixed clock: 2025-03-01
func fixedEngine() *compliance.Engine {
	return &compliance.Engine{Now: func() time.Time {
		return time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)
	}}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	logger := slog.Default()
	// distinct shared in-memory DB per test so state never leaks across tests
	dsn := fmt.Sprintf("file:storetest%d?mode=memory&cache=shared", dbSeq.Add(1))
	d, err := db.New(ctx, dsn, logger)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := db.Migrate(ctx, d, migrations.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(kvstore.New(d, logger), fixedEngine(), logger)
}

func mustSaveWorkplace(t *testing.T, s *store.Store, name string) models.Workplace {
	t.Helper()
	w, err := s.SaveWorkplace(context.Background(), models.Workplace{Name: name})
	if err != nil {
		t.Fatalf("save workplace: %v", err)
	}
	return w
}

func TestSaveWorkerAssignsID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	wp := mustSaveWorkplace(t, s, "Site A")

	w, err := s.SaveWorker(ctx, models.Worker{FullName: "Aline Moreau", NationalID: "N-1", WorkplaceID: wp.ID})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if w.ID == 0 {
		t.Fatalf("id not assigned")
	}
	if w.NextExamDue != "2025-03-01" {
		t.Fatalf("next due = %s, want today for a fresh worker", w.NextExamDue)
	}

	all, err := s.Workers(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("workers = %v, err %v", all, err)
	}
}

func TestSaveWorkerReplaceByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	wp := mustSaveWorkplace(t, s, "Site A")

	w, err := s.SaveWorker(ctx, models.Worker{FullName: "Aline Moreau", WorkplaceID: wp.ID})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	w.Phone = "0600000000"
	if _, err := s.SaveWorker(ctx, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	all, _ := s.Workers(ctx)
	if len(all) != 1 || all[0].Phone != "0600000000" {
		t.Fatalf("workers = %+v", all)
	}
}

func TestSaveWorkerValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	wp := mustSaveWorkplace(t, s, "Site A")

	if _, err := s.SaveWorker(ctx, models.Worker{FullName: "No Workplace"}); !errors.Is(err, store.ErrWorkplaceRequired) {
		t.Fatalf("err = %v, want ErrWorkplaceRequired", err)
	}

	if _, err := s.SaveWorker(ctx, models.Worker{FullName: "Aline Moreau", NationalID: "N-1", WorkplaceID: wp.ID}); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, err := s.SaveWorker(ctx, models.Worker{FullName: " aline moreau ", NationalID: "N-1", WorkplaceID: wp.ID})
	if !errors.Is(err, store.ErrDuplicateWorker) {
		t.Fatalf("err = %v, want ErrDuplicateWorker", err)
	}
}

func TestExamSaveRecalculate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	wp := mustSaveWorkplace(t, s, "Site A")
	w, err := s.SaveWorker(ctx, models.Worker{FullName: "Aline Moreau", WorkplaceID: wp.ID})
	if err != nil {
		t.Fatalf("save worker: %v", err)
	}

	_, err = s.SaveExam(ctx, models.Exam{
		WorkerID: w.ID, ExamDate: "2025-01-10", Status: models.ExamClosed,
		Decision: &models.Decision{Status: models.StatusApte, Date: "2025-01-10"},
	})
	if err != nil {
		t.Fatalf("save exam: %v", err)
	}
	updated, err := s.RecalculateWorker(ctx, w.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if updated.NextExamDue != "2025-07-10" {
		t.Fatalf("next due = %s", updated.NextExamDue)
	}
	if updated.LatestStatus == nil || *updated.LatestStatus != models.StatusApte {
		t.Fatalf("latest status = %v", updated.LatestStatus)
	}
}

func TestDeleteExamForcesRecompute(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	wp := mustSaveWorkplace(t, s, "Site A")
	w, _ := s.SaveWorker(ctx, models.Worker{FullName: "Aline Moreau", WorkplaceID: wp.ID})
	ex, _ := s.SaveExam(ctx, models.Exam{
		WorkerID: w.ID, ExamDate: "2025-01-10", Status: models.ExamClosed,
		Decision: &models.Decision{Status: models.StatusApte},
	})
	if _, err := s.RecalculateWorker(ctx, w.ID); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	if err := s.DeleteExam(ctx, ex.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	updated, err := s.RecalculateWorker(ctx, w.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if updated.NextExamDue != "2025-03-01" {
		t.Fatalf("next due = %s, want today after history emptied", updated.NextExamDue)
	}
	if updated.LastExamDate != nil || updated.LatestStatus != nil {
		t.Fatalf("derived fields not cleared: %+v", updated)
	}
}

func TestChangeNotifierFires(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	var calls atomic.Int64
	s.SetChangeNotifier(func(context.Context) { calls.Add(1) })

	wp := mustSaveWorkplace(t, s, "Site A")
	if _, err := s.SaveWorker(ctx, models.Worker{FullName: "A", WorkplaceID: wp.ID}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.DeleteWorkplace(ctx, wp.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("notifier calls = %d, want 3", got)
	}
}

func TestWaterAnalysisLegacyAlias(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.SaveWaterAnalysis(ctx, models.WaterAnalysis{StructureID: 42, RequestDate: "2025-03-01"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if a.DepartmentID != 42 {
		t.Fatalf("department id = %d, want legacy structure id resolved", a.DepartmentID)
	}
	if a.CreatedAt == 0 {
		t.Fatalf("created_at not set")
	}
}

func TestCleanupOrphans(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	wp := mustSaveWorkplace(t, s, "Site A")
	w, _ := s.SaveWorker(ctx, models.Worker{FullName: "Kept", WorkplaceID: wp.ID})
	dept, _ := s.SaveWaterDepartment(ctx, models.WaterDepartment{Name: "Kitchen"})

	if _, err := s.SaveExam(ctx, models.Exam{WorkerID: w.ID, ExamDate: "2025-01-10"}); err != nil {
		t.Fatalf("save exam: %v", err)
	}
	if _, err := s.SaveExam(ctx, models.Exam{WorkerID: 999999, ExamDate: "2025-01-11"}); err != nil {
		t.Fatalf("save orphan exam: %v", err)
	}
	if _, err := s.SaveWaterAnalysis(ctx, models.WaterAnalysis{DepartmentID: dept.ID, RequestDate: "2025-03-01"}); err != nil {
		t.Fatalf("save analysis: %v", err)
	}
	if _, err := s.SaveWaterAnalysis(ctx, models.WaterAnalysis{DepartmentID: 888888, RequestDate: "2025-03-01"}); err != nil {
		t.Fatalf("save orphan analysis: %v", err)
	}

	exams, analyses, err := s.CleanupOrphans(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if exams != 1 || analyses != 1 {
		t.Fatalf("removed %d exams, %d analyses; want 1 and 1", exams, analyses)
	}

	left, _ := s.Exams(ctx)
	if len(left) != 1 || left[0].WorkerID != w.ID {
		t.Fatalf("exams after cleanup = %+v", left)
	}
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.SetDoctorName(ctx, "Dr Leroy"); err != nil {
		t.Fatalf("set doctor: %v", err)
	}
	if err := s.SetPIN(ctx, "1234"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	st, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if st.DoctorName != "Dr Leroy" || st.PIN != "1234" {
		t.Fatalf("settings = %+v", st)
	}
}
