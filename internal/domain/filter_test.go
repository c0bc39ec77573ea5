package domain

import (
	"testing"
	"time"
)

func mkTask(t *testing.T, id, title string, priority string, due *time.Time, completed bool) *Task {
	t.Helper()
	task, err := NewTask(TaskID(id), "user-1", TaskDraft{Title: title, Priority: priority, DueDate: due}, testNow)
	if err != nil {
		t.Fatalf("building task %s: %v", id, err)
	}
	task.CreatedAt = testNow.Add(time.Duration(len(id)) * time.Second) // stable distinct order
	task.UpdatedAt = task.CreatedAt
	if completed {
		task = CompleteTask(task, testNow)
	}
	return task
}

func datePtr(t time.Time) *time.Time { return &t }

func TestFilterTasksRanges(t *testing.T) {
	now := testNow
	today := datePtr(now.Add(2 * time.Hour))
	tomorrow := datePtr(now.Add(24 * time.Hour))
	yesterday := datePtr(now.Add(-24 * time.Hour))

	tasks := []*Task{
		mkTask(t, "a", "due today", "medium", today, false),
		mkTask(t, "bb", "due tomorrow", "medium", tomorrow, false),
		mkTask(t, "ccc", "was due yesterday", "medium", yesterday, false),
		mkTask(t, "dddd", "no deadline", "medium", nil, false),
		mkTask(t, "eeeee", "finished late", "medium", yesterday, true),
	}

	tests := []struct {
		rng  Range
		want []TaskID
	}{
		{RangeToday, []TaskID{"a"}},
		{RangeUpcoming, []TaskID{"bb"}},
		{RangeOverdue, []TaskID{"ccc"}},
		{RangeCompleted, []TaskID{"eeeee"}},
		{RangeAll, []TaskID{"ccc", "eeeee", "a", "bb", "dddd"}},
	}

	for _, tc := range tests {
		t.Run(string(tc.rng), func(t *testing.T) {
			got := FilterTasks(tasks, TaskFilter{Range: tc.rng}, now)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d tasks, got %d", len(tc.want), len(got))
			}
			for i, id := range tc.want {
				if got[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestCompletingMovesTaskBetweenRanges(t *testing.T) {
	today := datePtr(testNow.Add(2 * time.Hour))
	task := mkTask(t, "a", "due today", "medium", today, false)

	if got := FilterTasks([]*Task{task}, TaskFilter{Range: RangeToday}, testNow); len(got) != 1 {
		t.Fatal("pending task due today must match range today")
	}

	done := CompleteTask(task, testNow)
	if got := FilterTasks([]*Task{done}, TaskFilter{Range: RangeToday}, testNow); len(got) != 0 {
		t.Error("completed task must leave range today")
	}
	if got := FilterTasks([]*Task{done}, TaskFilter{Range: RangeCompleted}, testNow); len(got) != 1 {
		t.Error("completed task must enter range completed")
	}
}

func TestFilterTasksOverdueUsesCalendarDays(t *testing.T) {
	// Due earlier today is not overdue; the boundary is the calendar day.
	earlierToday := datePtr(testNow.Add(-3 * time.Hour))
	tasks := []*Task{mkTask(t, "a", "earlier today", "medium", earlierToday, false)}

	if got := FilterTasks(tasks, TaskFilter{Range: RangeOverdue}, testNow); len(got) != 0 {
		t.Errorf("a task due earlier today must not be overdue, got %d tasks", len(got))
	}
	if got := FilterTasks(tasks, TaskFilter{Range: RangeToday}, testNow); len(got) != 1 {
		t.Errorf("a task due earlier today belongs to today, got %d tasks", len(got))
	}
}

func TestFilterTasksUndatedExcludedFromDateRanges(t *testing.T) {
	tasks := []*Task{mkTask(t, "a", "no deadline", "high", nil, false)}

	for _, rng := range []Range{RangeToday, RangeUpcoming, RangeOverdue} {
		if got := FilterTasks(tasks, TaskFilter{Range: rng}, testNow); len(got) != 0 {
			t.Errorf("undated task matched range %s", rng)
		}
	}
	if got := FilterTasks(tasks, TaskFilter{Range: RangeAll}, testNow); len(got) != 1 {
		t.Error("undated task must match range all")
	}
}

func TestFilterTasksSearchAndEquality(t *testing.T) {
	tasks := []*Task{
		mkTask(t, "a", "Buy groceries", "high", nil, false),
		mkTask(t, "bb", "Write report", "low", nil, false),
	}
	tasks[0].Description = "milk and EGGS"

	got := FilterTasks(tasks, TaskFilter{Search: "eggs"}, testNow)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("search over description failed: %v", got)
	}

	got = FilterTasks(tasks, TaskFilter{Priority: PriorityLow}, testNow)
	if len(got) != 1 || got[0].ID != "bb" {
		t.Fatalf("priority filter failed: %v", got)
	}

	got = FilterTasks(tasks, TaskFilter{Status: StatusCompleted}, testNow)
	if len(got) != 0 {
		t.Fatalf("status filter failed: %v", got)
	}
}

func TestSortDatedBeforeUndatedByPriority(t *testing.T) {
	soon := datePtr(testNow.Add(1 * time.Hour))
	later := datePtr(testNow.Add(48 * time.Hour))

	tasks := []*Task{
		mkTask(t, "a", "undated low", "low", nil, false),
		mkTask(t, "bb", "undated high", "high", nil, false),
		mkTask(t, "ccc", "dated later", "low", later, false),
		mkTask(t, "dddd", "dated soon", "high", soon, false),
	}

	got := FilterTasks(tasks, TaskFilter{}, testNow)
	want := []TaskID{"dddd", "ccc", "bb", "a"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestComputeStats(t *testing.T) {
	yesterday := datePtr(testNow.Add(-24 * time.Hour))
	tomorrow := datePtr(testNow.Add(24 * time.Hour))

	tasks := []*Task{
		mkTask(t, "a", "overdue", "medium", yesterday, false),
		mkTask(t, "bb", "upcoming", "medium", tomorrow, false),
		mkTask(t, "ccc", "done", "medium", nil, true),
	}

	stats := ComputeStats(tasks, testNow)
	want := TaskStats{Total: 3, Pending: 2, Completed: 1, Overdue: 1}
	if stats != want {
		t.Errorf("expected %+v, got %+v", want, stats)
	}
}

func TestParseRange(t *testing.T) {
	if r, err := ParseRange(""); err != nil || r != RangeAll {
		t.Errorf("empty range must default to all, got %v, %v", r, err)
	}
	if r, err := ParseRange(" Today "); err != nil || r != RangeToday {
		t.Errorf("ParseRange(\" Today \") = %v, %v", r, err)
	}
	if _, err := ParseRange("someday"); err == nil {
		t.Error("expected error for unknown range")
	}
}
