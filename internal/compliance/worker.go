package compliance

import (
	"sort"

	"github.com/medveille/medveille/internal/models"
)

// dueSoonWindowDays is the inclusive look-ahead for "due soon".
const dueSoonWindowDays = 15

// defaultRetestDays is the follow-up delay applied when an unfit decision
// carries no explicit treatment retest date.
const defaultRetestDays = 7

// NextDue returns the next mandatory visit date given the last exam date.
// With no prior exam the worker is immediately due.
func (e *Engine) NextDue(lastExamDate string) string {
	t, ok := ParseDate(lastExamDate)
	if !ok {
		return e.Today()
	}
	return FormatDate(t.AddDate(0, 6, 0))
}

// IsDueSoon reports whether due falls within the next 15 days, today included.
func (e *Engine) IsDueSoon(due string) bool {
	t, ok := ParseDate(due)
	if !ok {
		return false
	}
	d := e.daysUntil(t)
	return d >= 0 && d <= dueSoonWindowDays
}

// IsOverdue reports whether due is strictly in the past. A due date of today
// is not overdue.
func (e *Engine) IsOverdue(due string) bool {
	t, ok := ParseDate(due)
	if !ok {
		return false
	}
	return e.daysUntil(t) < 0
}

// RetestDate returns start shifted by the given number of days.
func RetestDate(start string, days int) string {
	t, ok := ParseDate(start)
	if !ok {
		return start
	}
	return FormatDate(t.AddDate(0, 0, days))
}

// LatestExams scans one worker's exams once, descending by exam date, and
// returns the newest exam (drafts included) and the newest decided exam.
// Every derived worker field flows from this single lookup so the
// derivations cannot drift apart. Exams sharing a date are tie-broken by id,
// higher id first (ids are creation-ordered).
func LatestExams(exams []models.Exam) (last, decided *models.Exam) {
	if len(exams) == 0 {
		return nil, nil
	}
	sorted := make([]models.Exam, len(exams))
	copy(sorted, exams)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ExamDate != sorted[j].ExamDate {
			return sorted[i].ExamDate > sorted[j].ExamDate
		}
		return sorted[i].ID > sorted[j].ID
	})
	last = &sorted[0]
	for i := range sorted {
		if sorted[i].Decided() {
			decided = &sorted[i]
			break
		}
	}
	return last, decided
}

// Derived holds the recomputed worker compliance fields.
type Derived struct {
	LastExamDate *string
	NextExamDue  string
	LatestStatus *string
}

// Recalculate derives a worker's compliance fields from their exam history.
//
// No exams at all leaves the worker immediately due. Otherwise the newest
// decided exam drives the due date: a fit decision pushes it six months out,
// an unfit or partially-fit one schedules a retest (explicit treatment date,
// or decision date plus seven days). Undecided histories stay due today.
func (e *Engine) Recalculate(exams []models.Exam) Derived {
	last, decided := LatestExams(exams)
	if last == nil {
		return Derived{NextExamDue: e.Today()}
	}

	out := Derived{}
	lastDate := last.ExamDate
	out.LastExamDate = &lastDate

	if decided == nil {
		out.NextExamDue = e.Today()
		return out
	}

	status := decided.Decision.Status
	out.LatestStatus = &status

	if status == models.StatusApte {
		out.NextExamDue = e.NextDue(decided.ExamDate)
		return out
	}

	// inapte / apte_partielle: follow the treatment schedule
	if decided.Treatment != nil && decided.Treatment.RetestDate != "" {
		out.NextExamDue = decided.Treatment.RetestDate
		return out
	}
	base := decided.ExamDate
	if decided.Decision.Date != "" {
		base = decided.Decision.Date
	}
	out.NextExamDue = RetestDate(base, defaultRetestDays)
	return out
}

// ExamRef pairs a worker with one of their exams for dashboard lists.
type ExamRef struct {
	Worker models.Worker `json:"worker"`
	Exam   models.Exam   `json:"exam"`
	Date   string        `json:"date,omitempty"`
}

// Stats is the dashboard aggregation over active workers.
type Stats struct {
	Overdue        []models.Worker `json:"overdue"`
	DueSoon        []models.Worker `json:"due_soon"`
	ActivePositive []ExamRef       `json:"active_positive"`
	Retests        []ExamRef       `json:"retests"`
}

// DashboardStats partitions active workers into overdue and due-soon (the two
// are mutually exclusive) and flags workers whose most recent exam has a
// positive lab result, with a retest entry when that exam also carries a
// treatment retest date. All lists come back sorted ascending by their
// relevant date.
func (e *Engine) DashboardStats(workers []models.Worker, exams []models.Exam) Stats {
	byWorker := make(map[int64][]models.Exam)
	for _, ex := range exams {
		byWorker[ex.WorkerID] = append(byWorker[ex.WorkerID], ex)
	}

	var st Stats
	for _, w := range workers {
		if w.Archived {
			continue
		}
		if e.IsOverdue(w.NextExamDue) {
			st.Overdue = append(st.Overdue, w)
		} else if e.IsDueSoon(w.NextExamDue) {
			st.DueSoon = append(st.DueSoon, w)
		}

		last, _ := LatestExams(byWorker[w.ID])
		if last == nil || last.LabResult == nil || last.LabResult.Result != "positive" {
			continue
		}
		st.ActivePositive = append(st.ActivePositive, ExamRef{Worker: w, Exam: *last, Date: last.ExamDate})
		if last.Treatment != nil && last.Treatment.RetestDate != "" {
			st.Retests = append(st.Retests, ExamRef{Worker: w, Exam: *last, Date: last.Treatment.RetestDate})
		}
	}

	sort.SliceStable(st.Overdue, func(i, j int) bool { return st.Overdue[i].NextExamDue < st.Overdue[j].NextExamDue })
	sort.SliceStable(st.DueSoon, func(i, j int) bool { return st.DueSoon[i].NextExamDue < st.DueSoon[j].NextExamDue })
	sort.SliceStable(st.ActivePositive, func(i, j int) bool { return st.ActivePositive[i].Date < st.ActivePositive[j].Date })
	sort.SliceStable(st.Retests, func(i, j int) bool { return st.Retests[i].Date < st.Retests[j].Date })
	return st
}
