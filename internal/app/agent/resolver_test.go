package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/taskchat/taskchat/internal/app/memory"
	"github.com/taskchat/taskchat/internal/domain"
)

var resolverNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

func memWithRefs(titles ...string) *memory.Session {
	mem := memory.NewSession("user-1", "s1", memory.Config{}, resolverNow)
	for i, title := range titles {
		mem.RecordTaskReference(&domain.Task{
			ID:       domain.TaskID(strings.ToLower(strings.ReplaceAll(title, " ", "-"))),
			OwnerID:  "user-1",
			Title:    title,
			Priority: domain.PriorityMedium,
			Status:   domain.StatusPending,
		}, "", resolverNow.Add(time.Duration(i)*time.Second))
	}
	return mem
}

func TestResolveReference(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		titles []string
		want   resolutionKind
	}{
		{"no target verb", "add a new entry for groceries", []string{"Buy groceries"}, resolveNone},
		{"plain chatter", "how are you today", []string{"Buy groceries"}, resolveNone},
		{"described, one match", "update the groceries task", []string{"Buy groceries", "Write report"}, resolveFound},
		{"described, no match", "delete the vacation task", []string{"Buy groceries"}, resolveUnknown},
		{"bare, one candidate", "complete the task", []string{"Buy groceries"}, resolveFound},
		{"bare, several candidates", "delete that task", []string{"Buy groceries", "Write report"}, resolveAmbiguous},
		{"bare, empty memory", "complete the task", nil, resolveUnknown},
		{"pronoun with memory", "mark it done", []string{"Buy groceries"}, resolveFound},
		{"pronoun, empty memory", "finish that one", nil, resolveUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := resolveReference(tc.text, memWithRefs(tc.titles...))
			if got.kind != tc.want {
				t.Errorf("resolveReference(%q) kind = %d, want %d", tc.text, got.kind, tc.want)
			}
		})
	}
}

func TestResolvePronounPicksMostRecent(t *testing.T) {
	mem := memWithRefs("Old task", "New task")

	got := resolveReference("complete it", mem)
	if got.kind != resolveFound {
		t.Fatalf("expected resolveFound, got %d", got.kind)
	}
	if got.ref.Task.Title != "New task" {
		t.Errorf("expected most recent reference, got %q", got.ref.Task.Title)
	}
}

func TestClarificationQuestionListsCandidates(t *testing.T) {
	mem := memWithRefs("Buy groceries", "Write report")

	got := resolveReference("delete the task", mem)
	if got.kind != resolveAmbiguous {
		t.Fatalf("expected resolveAmbiguous, got %d", got.kind)
	}

	q := clarificationQuestion(got.candidates)
	if !strings.Contains(q, `"Buy groceries"`) || !strings.Contains(q, `"Write report"`) {
		t.Errorf("question must name every candidate: %q", q)
	}
	if strings.Count(q, "?") != 1 {
		t.Errorf("expected exactly one question: %q", q)
	}
}
