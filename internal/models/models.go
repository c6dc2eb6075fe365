package models

// Dates are carried as "YYYY-MM-DD" strings so records round-trip the backup
// document unchanged; the compliance package owns parsing.

// Worker fitness statuses recorded by the physician.
const (
	StatusApte          = "apte"
	StatusInapte        = "inapte"
	StatusAptePartielle = "apte_partielle"
)

// Exam lifecycle states.
const (
	ExamOpen   = "open"
	ExamClosed = "closed"
)

// Water analysis results.
const (
	WaterPending    = "pending"
	WaterPotable    = "potable"
	WaterNonPotable = "non_potable"
)

type Worker struct {
	ID           int64  `json:"id"`
	FullName     string `json:"full_name"`
	NationalID   string `json:"national_id,omitempty"`
	Phone        string `json:"phone,omitempty"`
	DepartmentID int64  `json:"department_id,omitempty"`
	WorkplaceID  int64  `json:"workplace_id,omitempty"`
	JobRole      string `json:"job_role,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	Notes        string `json:"notes,omitempty"`
	Archived     bool   `json:"archived"`

	// Derived fields, recomputed by callers after every exam mutation.
	LastExamDate *string `json:"last_exam_date"`
	NextExamDue  string  `json:"next_exam_due"`
	LatestStatus *string `json:"latest_status"`
}

type LabResult struct {
	Result   string `json:"result"` // positive | negative
	Date     string `json:"date,omitempty"`
	Parasite string `json:"parasite,omitempty"`
}

type Treatment struct {
	Drug       string `json:"drug,omitempty"`
	StartDate  string `json:"start_date,omitempty"`
	RetestDate string `json:"retest_date,omitempty"`
}

type Decision struct {
	Status string `json:"status"` // apte | inapte | apte_partielle
	Date   string `json:"date,omitempty"`
}

type Exam struct {
	ID            int64      `json:"id"`
	WorkerID      int64      `json:"worker_id"`
	ExamDate      string     `json:"exam_date"`
	PhysicianName string     `json:"physician_name,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Status        string     `json:"status"` // open | closed
	LabResult     *LabResult `json:"lab_result,omitempty"`
	Treatment     *Treatment `json:"treatment,omitempty"`
	Decision      *Decision  `json:"decision,omitempty"`
}

// Decided reports whether the exam carries a finalized fitness decision.
// A decided exam is terminal for compliance purposes regardless of Status.
func (e *Exam) Decided() bool {
	if e.Decision == nil {
		return false
	}
	switch e.Decision.Status {
	case StatusApte, StatusInapte, StatusAptePartielle:
		return true
	}
	return false
}

type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Workplace struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// WaterDepartment is a parallel, independently managed list scoping water
// analyses; it is not foreign to Department.
type WaterDepartment struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type WaterAnalysis struct {
	ID           int64  `json:"id"`
	DepartmentID int64  `json:"department_id"`
	StructureID  int64  `json:"structure_id,omitempty"` // legacy alias of department_id
	RequestDate  string `json:"request_date,omitempty"`
	SampleDate   string `json:"sample_date,omitempty"`
	ResultDate   string `json:"result_date,omitempty"`
	Result       string `json:"result,omitempty"` // pending | potable | non_potable | ""
	Notes        string `json:"notes,omitempty"`
	CreatedAt    int64  `json:"created_at,omitempty"`
}

// Settings is the singleton configuration record surfaced to the UI.
type Settings struct {
	PIN        string `json:"pin"` // 4-char legacy plaintext or 64-char SHA-256 hex
	DoctorName string `json:"doctor_name"`
}

// BackupMeta mirrors the persisted backup service state.
type BackupMeta struct {
	Threshold    int    `json:"threshold"`
	Counter      int    `json:"counter"`
	AutoImport   bool   `json:"autoImport"`
	LastImported int64  `json:"lastImported"` // epoch ms
	Directory    string `json:"directory,omitempty"`
}

// Document is the full-export shape exchanged with backup files.
type Document struct {
	Departments      []Department      `json:"departments"`
	Workplaces       []Workplace       `json:"workplaces"`
	Workers          []Worker          `json:"workers"`
	Exams            []Exam            `json:"exams"`
	WaterAnalyses    []WaterAnalysis   `json:"water_analyses"`
	WaterDepartments []WaterDepartment `json:"water_departments"`
}
