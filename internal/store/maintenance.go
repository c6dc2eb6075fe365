package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medveille/medveille/internal/models"
)

// RecalculateWorker re-derives one worker's compliance fields from their exam
// history and persists the worker. Called explicitly after every exam save or
// delete; the save path never recomputes on its own.
func (s *Store) RecalculateWorker(ctx context.Context, workerID int64) (models.Worker, error) {
	exams, err := s.ExamsForWorker(ctx, workerID)
	if err != nil {
		return models.Worker{}, err
	}
	derived := s.engine.Recalculate(exams)

	var updated models.Worker
	found := false
	err = s.mutate(ctx, ColWorkers, func(raw []byte) ([]byte, error) {
		var workers []models.Worker
		if err := json.Unmarshal(raw, &workers); err != nil {
			return nil, fmt.Errorf("store: decode workers: %w", err)
		}
		for i := range workers {
			if workers[i].ID == workerID {
				workers[i].LastExamDate = derived.LastExamDate
				workers[i].NextExamDue = derived.NextExamDue
				workers[i].LatestStatus = derived.LatestStatus
				updated = workers[i]
				found = true
				break
			}
		}
		return json.Marshal(workers)
	})
	if err != nil {
		return models.Worker{}, err
	}
	if !found {
		return models.Worker{}, fmt.Errorf("store: worker %d not found", workerID)
	}
	s.changed(ctx)
	return updated, nil
}

// CleanupOrphans removes exams whose worker no longer exists and water
// analyses whose department no longer exists, reporting how many of each
// were dropped. Orphans are not errors; they linger until this runs.
func (s *Store) CleanupOrphans(ctx context.Context) (examsRemoved, analysesRemoved int, err error) {
	workers, err := s.Workers(ctx)
	if err != nil {
		return 0, 0, err
	}
	workerIDs := make(map[int64]bool, len(workers))
	for _, w := range workers {
		workerIDs[w.ID] = true
	}

	err = s.mutate(ctx, ColExams, func(raw []byte) ([]byte, error) {
		var exams []models.Exam
		if err := json.Unmarshal(raw, &exams); err != nil {
			return nil, fmt.Errorf("store: decode exams: %w", err)
		}
		examsRemoved = 0
		kept := exams[:0]
		for i := range exams {
			if workerIDs[exams[i].WorkerID] {
				kept = append(kept, exams[i])
			} else {
				examsRemoved++
			}
		}
		return json.Marshal(kept)
	})
	if err != nil {
		return examsRemoved, 0, err
	}

	depts, err := s.WaterDepartments(ctx)
	if err != nil {
		return examsRemoved, 0, err
	}
	deptIDs := make(map[int64]bool, len(depts))
	for _, d := range depts {
		deptIDs[d.ID] = true
	}

	err = s.mutate(ctx, ColWaterAnalyses, func(raw []byte) ([]byte, error) {
		var analyses []models.WaterAnalysis
		if err := json.Unmarshal(raw, &analyses); err != nil {
			return nil, fmt.Errorf("store: decode water analyses: %w", err)
		}
		analysesRemoved = 0
		kept := analyses[:0]
		for i := range analyses {
			a := analyses[i]
			normalizeWaterAnalysis(&a)
			if deptIDs[a.DepartmentID] {
				kept = append(kept, analyses[i])
			} else {
				analysesRemoved++
			}
		}
		return json.Marshal(kept)
	})
	if err != nil {
		return examsRemoved, analysesRemoved, err
	}

	if examsRemoved > 0 || analysesRemoved > 0 {
		s.changed(ctx)
	}
	return examsRemoved, analysesRemoved, nil
}
