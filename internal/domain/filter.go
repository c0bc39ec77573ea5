package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Range selects tasks by how their due date relates to the current
// calendar day (local to the store's clock).
type Range string

const (
	RangeToday     Range = "today"
	RangeUpcoming  Range = "upcoming"
	RangeOverdue   Range = "overdue"
	RangeCompleted Range = "completed"
	RangeAll       Range = "all"
)

func ParseRange(s string) (Range, error) {
	v := Range(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case RangeToday, RangeUpcoming, RangeOverdue, RangeCompleted, RangeAll:
		return v, nil
	case "":
		return RangeAll, nil
	default:
		return "", &ValidationError{Field: "range", Reason: fmt.Sprintf("must be one of today, upcoming, overdue, completed, all (got %q)", s)}
	}
}

// TaskFilter narrows a listing. Zero values mean "no constraint".
type TaskFilter struct {
	Status   Status
	Priority Priority
	Search   string
	Range    Range
}

type TaskStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
}

// FilterTasks applies filter semantics shared by every store backend:
// status/priority equality, case-insensitive substring search over title and
// description, and the date range rules. Results are sorted with dated tasks
// first (ascending by due date) and undated tasks after, by priority
// descending. A task with no due date matches only RangeAll.
func FilterTasks(tasks []*Task, f TaskFilter, now time.Time) []*Task {
	rng := f.Range
	if rng == "" {
		rng = RangeAll
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))

	var out []*Task
	for _, t := range tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		if !matchesRange(t, rng, now) {
			continue
		}
		out = append(out, t)
	}

	sortTasks(out)
	return out
}

// ComputeStats derives aggregate counts from the full task list.
func ComputeStats(tasks []*Task, now time.Time) TaskStats {
	stats := TaskStats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case StatusCompleted:
			stats.Completed++
		default:
			stats.Pending++
			if t.DueDate != nil && beforeDay(*t.DueDate, now) {
				stats.Overdue++
			}
		}
	}
	return stats
}

func matchesRange(t *Task, rng Range, now time.Time) bool {
	switch rng {
	case RangeAll:
		return true
	case RangeCompleted:
		return t.Status == StatusCompleted
	}

	// today/upcoming/overdue apply to pending, dated tasks only.
	if t.Status != StatusPending || t.DueDate == nil {
		return false
	}
	switch rng {
	case RangeToday:
		return sameDay(*t.DueDate, now)
	case RangeUpcoming:
		return afterDay(*t.DueDate, now)
	case RangeOverdue:
		return beforeDay(*t.DueDate, now)
	}
	return false
}

func sortTasks(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch {
		case a.DueDate != nil && b.DueDate != nil:
			if !a.DueDate.Equal(*b.DueDate) {
				return a.DueDate.Before(*b.DueDate)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		case a.DueDate != nil:
			return true
		case b.DueDate != nil:
			return false
		default:
			if a.Priority.rank() != b.Priority.rank() {
				return a.Priority.rank() > b.Priority.rank()
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Local().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func sameDay(t, ref time.Time) bool   { return dayOf(t).Equal(dayOf(ref)) }
func afterDay(t, ref time.Time) bool  { return dayOf(t).After(dayOf(ref)) }
func beforeDay(t, ref time.Time) bool { return dayOf(t).Before(dayOf(ref)) }
