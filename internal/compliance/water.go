package compliance

import (
	"sort"

	"github.com/medveille/medveille/internal/models"
)

// Water statuses derived per department per calendar month.
const (
	WaterTodo      = "todo"      // no record this month
	WaterRequested = "requested" // analysis requested, sample not yet taken
	WaterInLab     = "pending"   // sampled, result not in
	WaterOK        = "ok"        // potable
	WaterAlert     = "alert"     // non potable
)

// DepartmentWater is the derived monthly state for one water department.
type DepartmentWater struct {
	DepartmentID int64                 `json:"department_id"`
	Status       string                `json:"status"`
	LastDate     string                `json:"last_date,omitempty"`
	Active       *models.WaterAnalysis `json:"active,omitempty"`
}

// analysisDept resolves the owning department, honoring the legacy
// structure_id alias on records imported from older backups.
func analysisDept(a *models.WaterAnalysis) int64 {
	if a.DepartmentID != 0 {
		return a.DepartmentID
	}
	return a.StructureID
}

// sortKey orders analyses newest-first: request date, falling back to the
// sample date for records that skipped the request step.
func sortKey(a *models.WaterAnalysis) string {
	if a.RequestDate != "" {
		return a.RequestDate
	}
	return a.SampleDate
}

// monthKey is the date the monthly window is matched against: the sample
// date, falling back to the request date.
func monthKey(a *models.WaterAnalysis) string {
	if a.SampleDate != "" {
		return a.SampleDate
	}
	return a.RequestDate
}

// WaterStatus derives the department's status for the current calendar month.
// LastDate reflects the newest record across all time, so months with no new
// record still show the last activity.
func (e *Engine) WaterStatus(departmentID int64, analyses []models.WaterAnalysis) DepartmentWater {
	var own []models.WaterAnalysis
	for _, a := range analyses {
		if analysisDept(&a) == departmentID {
			own = append(own, a)
		}
	}
	out := DepartmentWater{DepartmentID: departmentID, Status: WaterTodo}
	if len(own) == 0 {
		return out
	}

	sort.SliceStable(own, func(i, j int) bool {
		ki, kj := sortKey(&own[i]), sortKey(&own[j])
		if ki != kj {
			return ki > kj
		}
		return own[i].ID > own[j].ID
	})
	out.LastDate = monthKey(&own[0])

	y, m, _ := e.Now().Date()
	for i := range own {
		t, ok := ParseDate(monthKey(&own[i]))
		if !ok {
			continue
		}
		if t.Year() == y && t.Month() == m {
			active := own[i]
			out.Active = &active
			out.Status = activeStatus(&active)
			break
		}
	}
	return out
}

func activeStatus(a *models.WaterAnalysis) string {
	switch a.Result {
	case models.WaterPotable:
		return WaterOK
	case models.WaterNonPotable:
		return WaterAlert
	}
	if a.SampleDate != "" {
		return WaterInLab
	}
	if a.RequestDate != "" {
		return WaterRequested
	}
	return WaterTodo
}

// DepartmentWaterView couples a department with its derived state for
// overview listings.
type DepartmentWaterView struct {
	Department models.WaterDepartment `json:"department"`
	DepartmentWater
}

// Overview holds per-department derived states and a count per status.
type Overview struct {
	Departments []DepartmentWaterView `json:"departments"`
	Counts      map[string]int        `json:"counts"`
}

// WaterOverview derives every department's monthly status and tallies them.
func (e *Engine) WaterOverview(departments []models.WaterDepartment, analyses []models.WaterAnalysis) Overview {
	ov := Overview{Counts: make(map[string]int)}
	for _, d := range departments {
		dw := e.WaterStatus(d.ID, analyses)
		ov.Departments = append(ov.Departments, DepartmentWaterView{Department: d, DepartmentWater: dw})
		ov.Counts[dw.Status]++
	}
	return ov
}
