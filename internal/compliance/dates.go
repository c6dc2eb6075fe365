package compliance

import "time"

// DateLayout is the wire format for all domain dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders a time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Engine computes derived compliance state. Now is injectable so tests can
// pin the clock; the zero value is not usable, construct with NewEngine.
type Engine struct {
	Now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{Now: time.Now}
}

// today returns the current local date as a UTC midnight time, so that
// differences with parsed dates come out in whole days.
func (e *Engine) today() time.Time {
	y, m, d := e.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current date in wire format.
func (e *Engine) Today() string {
	return FormatDate(e.today())
}

// daysUntil returns the whole-day distance from today to the given date,
// negative when the date is in the past.
func (e *Engine) daysUntil(t time.Time) int {
	return int(t.Sub(e.today()) / (24 * time.Hour))
}
