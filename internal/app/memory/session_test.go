package memory

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/taskchat/taskchat/internal/domain"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

func newTestSession(cfg Config) *Session {
	return NewSession("user-1", "s1", cfg, fixedNow)
}

func taskFixture(id, title string) *domain.Task {
	return &domain.Task{
		ID:        domain.TaskID(id),
		OwnerID:   "user-1",
		Title:     title,
		Priority:  domain.PriorityMedium,
		Status:    domain.StatusPending,
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}
}

func TestMessageCapEvictsOldest(t *testing.T) {
	s := newTestSession(Config{})

	for i := 0; i < 60; i++ {
		s.AddMessage(domain.RoleUser, fmt.Sprintf("message %d", i), fixedNow.Add(time.Duration(i)*time.Second))
	}

	msgs := s.Messages()
	if len(msgs) != DefaultMaxMessages {
		t.Fatalf("expected %d retained messages, got %d", DefaultMaxMessages, len(msgs))
	}
	if msgs[0].Content != "message 10" {
		t.Errorf("expected oldest retained to be message 10, got %q", msgs[0].Content)
	}
	if msgs[len(msgs)-1].Content != "message 59" {
		t.Errorf("expected newest retained to be message 59, got %q", msgs[len(msgs)-1].Content)
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := newTestSession(Config{})
	s.AddMessage(domain.RoleUser, "hello", fixedNow)

	msgs := s.Messages()
	msgs[0].Content = "tampered"

	if s.Messages()[0].Content != "hello" {
		t.Error("mutating the returned slice leaked into the session")
	}
}

func TestReferenceTTLPrune(t *testing.T) {
	s := newTestSession(Config{ReferenceTTL: 30 * time.Minute})

	s.RecordTaskReference(taskFixture("old", "Old one"), "made the old one", fixedNow)
	s.RecordTaskReference(taskFixture("fresh", "Fresh one"), "made the fresh one", fixedNow.Add(20*time.Minute))

	s.Prune(fixedNow.Add(45 * time.Minute))

	refs := s.References()
	if len(refs) != 1 || refs[0].TaskID != "fresh" {
		t.Fatalf("expected only the fresh reference to survive, got %v", refs)
	}
}

func TestRecordTaskReferenceRefreshesMention(t *testing.T) {
	s := newTestSession(Config{ReferenceTTL: 30 * time.Minute})

	s.RecordTaskReference(taskFixture("t1", "Report"), "created", fixedNow)
	// Mentioned again later: the TTL window restarts.
	s.RecordTaskReference(taskFixture("t1", "Report"), "updated", fixedNow.Add(25*time.Minute))

	s.Prune(fixedNow.Add(40 * time.Minute))
	if len(s.References()) != 1 {
		t.Error("re-mentioned reference must survive the original TTL window")
	}
}

func TestLastMentionedTask(t *testing.T) {
	s := newTestSession(Config{})

	if s.LastMentionedTask() != nil {
		t.Fatal("expected nil with no references")
	}

	s.RecordTaskReference(taskFixture("t1", "First"), "", fixedNow)
	s.RecordTaskReference(taskFixture("t2", "Second"), "", fixedNow.Add(time.Minute))

	last := s.LastMentionedTask()
	if last == nil || last.TaskID != "t2" {
		t.Errorf("expected t2 as last mentioned, got %v", last)
	}
}

func TestFindByDescription(t *testing.T) {
	s := newTestSession(Config{})

	groceries := taskFixture("t1", "Buy groceries")
	groceries.Description = "milk, eggs"
	s.RecordTaskReference(groceries, "user asked about shopping", fixedNow)
	s.RecordTaskReference(taskFixture("t2", "Write report"), "quarterly report discussion", fixedNow.Add(time.Minute))

	if got := s.FindByDescription("groceries"); len(got) != 1 || got[0].TaskID != "t1" {
		t.Errorf("title match failed: %v", got)
	}
	if got := s.FindByDescription("EGGS"); len(got) != 1 || got[0].TaskID != "t1" {
		t.Errorf("case-insensitive description match failed: %v", got)
	}
	if got := s.FindByDescription("quarterly"); len(got) != 1 || got[0].TaskID != "t2" {
		t.Errorf("context match failed: %v", got)
	}
	if got := s.FindByDescription("vacation"); len(got) != 0 {
		t.Errorf("expected no match, got %v", got)
	}
}

func TestReferenceSnapshotIsDetached(t *testing.T) {
	s := newTestSession(Config{})

	task := taskFixture("t1", "Original")
	s.RecordTaskReference(task, "", fixedNow)
	task.Title = "mutated"

	if s.References()[0].Task.Title != "Original" {
		t.Error("reference must hold a detached snapshot")
	}
}

func TestContextForPrompt(t *testing.T) {
	s := newTestSession(Config{})

	for i := 0; i < 15; i++ {
		s.AddMessage(domain.RoleUser, fmt.Sprintf("message %d", i), fixedNow.Add(time.Duration(i)*time.Second))
	}
	due := fixedNow.Add(48 * time.Hour)
	dated := taskFixture("t1", "Report")
	dated.DueDate = &due
	s.RecordTaskReference(dated, "", fixedNow)

	block := s.ContextForPrompt()

	if strings.Contains(block, "message 4") {
		t.Error("prompt block must only carry the last 10 messages")
	}
	if !strings.Contains(block, "message 5") || !strings.Contains(block, "message 14") {
		t.Error("prompt block missing expected message window")
	}
	if !strings.Contains(block, `t1: "Report"`) {
		t.Errorf("prompt block missing task reference:\n%s", block)
	}
	if !strings.Contains(block, "due "+due.Format("2006-01-02")) {
		t.Errorf("prompt block missing due date:\n%s", block)
	}
}

func TestContextForPromptCapsReferences(t *testing.T) {
	s := newTestSession(Config{})

	for i := 0; i < 8; i++ {
		s.RecordTaskReference(taskFixture(fmt.Sprintf("t%d", i), fmt.Sprintf("Task %d", i)),
			"", fixedNow.Add(time.Duration(i)*time.Second))
	}

	block := s.ContextForPrompt()
	if got := strings.Count(block, "- t"); got != 5 {
		t.Errorf("expected 5 rendered references, got %d:\n%s", got, block)
	}
	if !strings.Contains(block, `"Task 7"`) || strings.Contains(block, `"Task 2"`) {
		t.Error("rendered references must be the most recent ones")
	}
}

func TestEmptySessionPromptIsEmpty(t *testing.T) {
	s := newTestSession(Config{})
	if block := s.ContextForPrompt(); block != "" {
		t.Errorf("expected empty prompt block, got %q", block)
	}
}
