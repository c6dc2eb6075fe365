package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medveille/medveille/internal/models"
	"github.com/medveille/medveille/internal/vault"
	"github.com/qri-io/jsonschema"
)

// importSchemaJSON checks the shape of a candidate backup document before any
// collection is touched: each known key, when present, must be an array of
// objects. Unknown keys are ignored, absent keys leave collections as-is.
const importSchemaJSON = `{
	"type": "object",
	"properties": {
		"departments":       {"type": "array", "items": {"type": "object"}},
		"workplaces":        {"type": "array", "items": {"type": "object"}},
		"workers":           {"type": "array", "items": {"type": "object"}},
		"exams":             {"type": "array", "items": {"type": "object"}},
		"water_analyses":    {"type": "array", "items": {"type": "object"}},
		"water_departments": {"type": "array", "items": {"type": "object"}}
	}
}`

var importSchema = mustSchema(importSchemaJSON)

func mustSchema(src string) *jsonschema.Schema {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(src), rs); err != nil {
		panic(fmt.Sprintf("store: compile import schema: %v", err))
	}
	return rs
}

// ExportAll serializes every collection into one backup document. Empty
// collections export as empty arrays, never null.
func (s *Store) ExportAll(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := models.Document{
		Departments:      []models.Department{},
		Workplaces:       []models.Workplace{},
		Workers:          []models.Worker{},
		Exams:            []models.Exam{},
		WaterAnalyses:    []models.WaterAnalysis{},
		WaterDepartments: []models.WaterDepartment{},
	}
	reads := []struct {
		name string
		dst  any
	}{
		{ColDepartments, &doc.Departments},
		{ColWorkplaces, &doc.Workplaces},
		{ColWorkers, &doc.Workers},
		{ColExams, &doc.Exams},
		{ColWaterAnalyses, &doc.WaterAnalyses},
		{ColWaterDepartments, &doc.WaterDepartments},
	}
	for _, r := range reads {
		raw, _, err := s.kv.GetCollection(ctx, r.name)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, r.dst); err != nil {
			return nil, fmt.Errorf("store: export %s: %w", r.name, err)
		}
	}
	return json.Marshal(doc)
}

// ImportAll overwrites each collection named in the document, wholesale.
// Partial documents are allowed: absent keys leave existing collections
// untouched. Any parse or validation failure returns false with no state
// changed; import is exclusive with all other store operations.
func (s *Store) ImportAll(ctx context.Context, data []byte) bool {
	keyErrs, err := importSchema.ValidateBytes(ctx, data)
	if err != nil {
		s.logger.Warn("import rejected", "err", err)
		return false
	}
	if len(keyErrs) > 0 {
		s.logger.Warn("import rejected", "schema_errors", len(keyErrs))
		return false
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("import rejected", "err", err)
		return false
	}

	// decode everything up front so a broken document never partially applies
	pending := make(map[string][]byte)
	decode := func(name string, dst any) bool {
		blob, ok := raw[name]
		if !ok {
			return true
		}
		if err := json.Unmarshal(blob, dst); err != nil {
			s.logger.Warn("import rejected", "collection", name, "err", err)
			return false
		}
		return true
	}

	var (
		departments []models.Department
		workplaces  []models.Workplace
		workers     []models.Worker
		exams       []models.Exam
		analyses    []models.WaterAnalysis
		waterDepts  []models.WaterDepartment
	)
	if !decode(ColDepartments, &departments) ||
		!decode(ColWorkplaces, &workplaces) ||
		!decode(ColWorkers, &workers) ||
		!decode(ColExams, &exams) ||
		!decode(ColWaterAnalyses, &analyses) ||
		!decode(ColWaterDepartments, &waterDepts) {
		return false
	}

	encode := func(name string, v any) bool {
		if _, ok := raw[name]; !ok {
			return true
		}
		b, err := json.Marshal(v)
		if err != nil {
			s.logger.Warn("import encode failed", "collection", name, "err", err)
			return false
		}
		pending[name] = b
		return true
	}
	for i := range analyses {
		normalizeWaterAnalysis(&analyses[i])
	}
	if !encode(ColDepartments, departments) ||
		!encode(ColWorkplaces, workplaces) ||
		!encode(ColWorkers, workers) ||
		!encode(ColExams, exams) ||
		!encode(ColWaterAnalyses, analyses) ||
		!encode(ColWaterDepartments, waterDepts) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range collectionNames {
		blob, ok := pending[name]
		if !ok {
			continue
		}
		if err := s.kv.ForcePutCollection(ctx, name, blob); err != nil {
			s.logger.Error("import write failed", "collection", name, "err", err)
			return false
		}
	}
	return true
}

// ExportEncrypted seals the full export under a passphrase.
func (s *Store) ExportEncrypted(ctx context.Context, passphrase string) (string, error) {
	data, err := s.ExportAll(ctx)
	if err != nil {
		return "", err
	}
	return vault.Seal(passphrase, data)
}

// ImportEncrypted opens the blob and imports it. A wrong passphrase or
// malformed ciphertext reads as false, same as a broken plain document.
func (s *Store) ImportEncrypted(ctx context.Context, passphrase, blob string) bool {
	data, err := vault.Open(passphrase, blob)
	if err != nil {
		s.logger.Warn("encrypted import rejected", "err", err)
		return false
	}
	return s.ImportAll(ctx, data)
}
