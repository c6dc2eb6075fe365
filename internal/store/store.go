package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/medveille/medveille/internal/compliance"
	"github.com/medveille/medveille/internal/kvstore"
	"github.com/medveille/medveille/internal/models"
)

// Collection names as persisted in the key-value store and in backup
// documents.
const (
	ColWorkers          = "workers"
	ColExams            = "exams"
	ColDepartments      = "departments"
	ColWorkplaces       = "workplaces"
	ColWaterAnalyses    = "water_analyses"
	ColWaterDepartments = "water_departments"
)

var collectionNames = []string{
	ColDepartments, ColWorkplaces, ColWorkers, ColExams, ColWaterAnalyses, ColWaterDepartments,
}

// Validation sentinels surfaced to the API as user-facing messages.
var (
	ErrWorkplaceRequired = errors.New("store: worker requires a workplace")
	ErrDuplicateWorker   = errors.New("store: a worker with the same name and national id already exists")
)

// Store is the CRUD façade over the key-value store. Every write is a full
// read-modify-write of one collection, serialized per collection and retried
// once on a version conflict. Imports are exclusive with all other
// operations. Derived worker fields are not auto-applied here: callers
// recompute explicitly via RecalculateWorker after exam mutations.
type Store struct {
	kv     *kvstore.Store
	engine *compliance.Engine
	logger *slog.Logger

	// mu guards import exclusivity: ordinary operations hold the read side,
	// ImportAll holds the write side.
	mu    sync.RWMutex
	colMu map[string]*sync.Mutex

	onChange func(context.Context)
	nowMilli func() int64
}

func New(kv *kvstore.Store, engine *compliance.Engine, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	colMu := make(map[string]*sync.Mutex, len(collectionNames))
	for _, name := range collectionNames {
		colMu[name] = &sync.Mutex{}
	}
	return &Store{
		kv:       kv,
		engine:   engine,
		logger:   logger,
		colMu:    colMu,
		nowMilli: func() int64 { return time.Now().UnixMilli() },
	}
}

// Engine exposes the compliance engine the store recomputes with.
func (s *Store) Engine() *compliance.Engine {
	return s.engine
}

// SetChangeNotifier installs the backup service's change hook. It is invoked
// after every successful mutation, outside all store locks.
func (s *Store) SetChangeNotifier(fn func(context.Context)) {
	s.onChange = fn
}

func (s *Store) changed(ctx context.Context) {
	if s.onChange != nil {
		s.onChange(ctx)
	}
}

// GetSetting and PutSetting pass through to the key-value store; the backup
// service and session guard persist their state here.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	return s.kv.GetSetting(ctx, key)
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	return s.kv.PutSetting(ctx, key, value)
}

// mutate runs one read-modify-write cycle over a collection under the
// per-collection lock, retrying once when a concurrent writer bumped the
// version stamp in between.
func (s *Store) mutate(ctx context.Context, name string, fn func(raw []byte) ([]byte, error)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mu, ok := s.colMu[name]
	if !ok {
		return fmt.Errorf("store: unknown collection %s", name)
	}
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; ; attempt++ {
		raw, version, err := s.kv.GetCollection(ctx, name)
		if err != nil {
			return err
		}
		out, err := fn(raw)
		if err != nil {
			return err
		}
		err = s.kv.PutCollection(ctx, name, out, version)
		if errors.Is(err, kvstore.ErrVersionConflict) && attempt == 0 {
			continue
		}
		return err
	}
}

func getAll[T any](ctx context.Context, s *Store, name string) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, _, err := s.kv.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", name, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// saveOne appends the record when its id is zero (assigning a fresh
// timestamp id) or replaces the matching record otherwise, then persists the
// whole collection. id must return a pointer to the record's id field.
func saveOne[T any](ctx context.Context, s *Store, name string, rec T, id func(*T) *int64) (T, error) {
	var saved T
	err := s.mutate(ctx, name, func(raw []byte) ([]byte, error) {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", name, err)
		}
		recID := id(&rec)
		if *recID == 0 {
			*recID = freshID(s.nowMilli(), items, id)
			items = append(items, rec)
		} else {
			replaced := false
			for i := range items {
				if *id(&items[i]) == *recID {
					items[i] = rec
					replaced = true
					break
				}
			}
			if !replaced {
				items = append(items, rec)
			}
		}
		saved = rec
		return json.Marshal(items)
	})
	if err != nil {
		return saved, err
	}
	s.changed(ctx)
	return saved, nil
}

// deleteOne filters the record out and persists the remainder. Deleting an
// absent id is a no-op that still counts as a change.
func deleteOne[T any](ctx context.Context, s *Store, name string, recID int64, id func(*T) *int64) error {
	err := s.mutate(ctx, name, func(raw []byte) ([]byte, error) {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", name, err)
		}
		kept := items[:0]
		for i := range items {
			if *id(&items[i]) != recID {
				kept = append(kept, items[i])
			}
		}
		return json.Marshal(kept)
	})
	if err != nil {
		return err
	}
	s.changed(ctx)
	return nil
}

// freshID assigns a unix-milli timestamp id, nudged past any collision so
// ids stay unique within the collection.
func freshID[T any](candidate int64, items []T, id func(*T) *int64) int64 {
	for {
		taken := false
		for i := range items {
			if *id(&items[i]) == candidate {
				taken = true
				break
			}
		}
		if !taken {
			return candidate
		}
		candidate++
	}
}

func workerID(w *models.Worker) *int64 { return &w.ID }

func examID(e *models.Exam) *int64 { return &e.ID }

func departmentID(d *models.Department) *int64 { return &d.ID }

func workplaceID(w *models.Workplace) *int64 { return &w.ID }

func waterDepartmentID(d *models.WaterDepartment) *int64 { return &d.ID }

func waterAnalysisID(a *models.WaterAnalysis) *int64 { return &a.ID }

func (s *Store) Workers(ctx context.Context) ([]models.Worker, error) {
	return getAll[models.Worker](ctx, s, ColWorkers)
}

// SaveWorker validates and persists a worker. A worker must belong to a
// workplace, and a same-name same-national-id pair is treated as an
// accidental re-entry of an existing worker.
func (s *Store) SaveWorker(ctx context.Context, w models.Worker) (models.Worker, error) {
	if w.WorkplaceID == 0 {
		return w, ErrWorkplaceRequired
	}
	existing, err := s.Workers(ctx)
	if err != nil {
		return w, err
	}
	for i := range existing {
		if existing[i].ID == w.ID {
			continue
		}
		if sameIdentity(&existing[i], &w) {
			return w, ErrDuplicateWorker
		}
	}
	if w.NextExamDue == "" {
		w.NextExamDue = s.engine.Today()
	}
	return saveOne(ctx, s, ColWorkers, w, workerID)
}

func sameIdentity(a, b *models.Worker) bool {
	if !strings.EqualFold(strings.TrimSpace(a.FullName), strings.TrimSpace(b.FullName)) {
		return false
	}
	return a.NationalID != "" && a.NationalID == b.NationalID
}

// DeleteWorker removes the worker only. Exams referencing it become orphans,
// tolerated until CleanupOrphans runs.
func (s *Store) DeleteWorker(ctx context.Context, id int64) error {
	return deleteOne[models.Worker](ctx, s, ColWorkers, id, workerID)
}

func (s *Store) Exams(ctx context.Context) ([]models.Exam, error) {
	return getAll[models.Exam](ctx, s, ColExams)
}

func (s *Store) ExamsForWorker(ctx context.Context, workerID int64) ([]models.Exam, error) {
	all, err := s.Exams(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Exam
	for _, e := range all {
		if e.WorkerID == workerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) SaveExam(ctx context.Context, e models.Exam) (models.Exam, error) {
	if e.Status == "" {
		e.Status = models.ExamOpen
	}
	return saveOne(ctx, s, ColExams, e, examID)
}

func (s *Store) DeleteExam(ctx context.Context, id int64) error {
	return deleteOne[models.Exam](ctx, s, ColExams, id, examID)
}

func (s *Store) Departments(ctx context.Context) ([]models.Department, error) {
	return getAll[models.Department](ctx, s, ColDepartments)
}

func (s *Store) SaveDepartment(ctx context.Context, d models.Department) (models.Department, error) {
	return saveOne(ctx, s, ColDepartments, d, departmentID)
}

func (s *Store) DeleteDepartment(ctx context.Context, id int64) error {
	return deleteOne[models.Department](ctx, s, ColDepartments, id, departmentID)
}

func (s *Store) Workplaces(ctx context.Context) ([]models.Workplace, error) {
	return getAll[models.Workplace](ctx, s, ColWorkplaces)
}

func (s *Store) SaveWorkplace(ctx context.Context, w models.Workplace) (models.Workplace, error) {
	return saveOne(ctx, s, ColWorkplaces, w, workplaceID)
}

func (s *Store) DeleteWorkplace(ctx context.Context, id int64) error {
	return deleteOne[models.Workplace](ctx, s, ColWorkplaces, id, workplaceID)
}

func (s *Store) WaterDepartments(ctx context.Context) ([]models.WaterDepartment, error) {
	return getAll[models.WaterDepartment](ctx, s, ColWaterDepartments)
}

func (s *Store) SaveWaterDepartment(ctx context.Context, d models.WaterDepartment) (models.WaterDepartment, error) {
	return saveOne(ctx, s, ColWaterDepartments, d, waterDepartmentID)
}

func (s *Store) DeleteWaterDepartment(ctx context.Context, id int64) error {
	return deleteOne[models.WaterDepartment](ctx, s, ColWaterDepartments, id, waterDepartmentID)
}

func (s *Store) WaterAnalyses(ctx context.Context) ([]models.WaterAnalysis, error) {
	return getAll[models.WaterAnalysis](ctx, s, ColWaterAnalyses)
}

func (s *Store) SaveWaterAnalysis(ctx context.Context, a models.WaterAnalysis) (models.WaterAnalysis, error) {
	normalizeWaterAnalysis(&a)
	if a.CreatedAt == 0 {
		a.CreatedAt = s.nowMilli()
	}
	return saveOne(ctx, s, ColWaterAnalyses, a, waterAnalysisID)
}

func (s *Store) DeleteWaterAnalysis(ctx context.Context, id int64) error {
	return deleteOne[models.WaterAnalysis](ctx, s, ColWaterAnalyses, id, waterAnalysisID)
}

// normalizeWaterAnalysis resolves the legacy structure_id alias onto
// department_id.
func normalizeWaterAnalysis(a *models.WaterAnalysis) {
	if a.DepartmentID == 0 && a.StructureID != 0 {
		a.DepartmentID = a.StructureID
	}
}

// Settings keys.
const (
	settingPIN        = "pin"
	settingDoctorName = "doctor_name"
)

func (s *Store) Settings(ctx context.Context) (models.Settings, error) {
	var out models.Settings
	pin, _, err := s.kv.GetSetting(ctx, settingPIN)
	if err != nil {
		return out, err
	}
	doctor, _, err := s.kv.GetSetting(ctx, settingDoctorName)
	if err != nil {
		return out, err
	}
	out.PIN = pin
	out.DoctorName = doctor
	return out, nil
}

func (s *Store) SetDoctorName(ctx context.Context, name string) error {
	return s.kv.PutSetting(ctx, settingDoctorName, name)
}

func (s *Store) PIN(ctx context.Context) (string, error) {
	pin, _, err := s.kv.GetSetting(ctx, settingPIN)
	return pin, err
}

func (s *Store) SetPIN(ctx context.Context, pin string) error {
	return s.kv.PutSetting(ctx, settingPIN, pin)
}
