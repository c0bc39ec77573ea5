package sessions

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/taskchat/taskchat/internal/app/memory"
	"github.com/taskchat/taskchat/internal/domain"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

func TestCreateGeneratesDistinctSessions(t *testing.T) {
	m := NewManager(0, memory.Config{})

	a := m.Create("user-1")
	b := m.Create("user-1")

	if a.ID == "" || b.ID == "" {
		t.Fatal("expected generated session ids")
	}
	if a.ID == b.ID {
		t.Error("expected distinct session ids")
	}
	if m.Len() != 2 {
		t.Errorf("expected 2 live sessions, got %d", m.Len())
	}
}

func TestAcquireCreatesOnFirstUse(t *testing.T) {
	m := NewManager(0, memory.Config{})

	mem, release := m.Acquire("user-1", "fresh")
	release()

	if mem == nil {
		t.Fatal("expected session memory")
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 live session, got %d", m.Len())
	}

	again, release := m.Acquire("user-1", "fresh")
	release()
	if again != mem {
		t.Error("expected the same memory on reacquire")
	}
}

func TestAcquireSerializesTurns(t *testing.T) {
	m := NewManager(0, memory.Config{})

	mem, release := m.Acquire("user-1", "s1")

	var wg sync.WaitGroup
	entered := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(entered)
		_, r := m.Acquire("user-1", "s1")
		mem.AddMessage(domain.RoleUser, "second turn", fixedNow.Add(time.Second))
		r()
	}()

	<-entered
	mem.AddMessage(domain.RoleUser, "first turn", fixedNow)
	release()
	wg.Wait()

	msgs := mem.Messages()
	if len(msgs) != 2 || msgs[0].Content != "first turn" {
		t.Errorf("turns not serialized: %v", msgs)
	}
}

func TestEnd(t *testing.T) {
	m := NewManager(0, memory.Config{})
	s := m.Create("user-1")

	if err := m.End("user-1", s.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("expected 0 live sessions, got %d", m.Len())
	}
	if err := m.End("user-1", s.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := m.End("user-2", "never-existed"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestListByUser(t *testing.T) {
	tick := 0
	m := NewManager(0, memory.Config{})
	m.SetClock(func() time.Time {
		tick++
		return fixedNow.Add(time.Duration(tick) * time.Second)
	})

	first := m.Create("user-1")
	second := m.Create("user-1")
	m.Create("user-2")

	got := m.ListByUser("user-1")
	if len(got) != 2 {
		t.Fatalf("expected 2 sessions for user-1, got %d", len(got))
	}
	if got[0].ID != second.ID || got[1].ID != first.ID {
		t.Error("expected most recently active first")
	}
}

func TestHistory(t *testing.T) {
	m := NewManager(0, memory.Config{})
	s := m.Create("user-1")

	mem, release := m.Acquire("user-1", s.ID)
	mem.AddMessage(domain.RoleUser, "hello", fixedNow)
	mem.AddMessage(domain.RoleAssistant, "hi there", fixedNow.Add(time.Second))
	release()

	msgs, err := m.History("user-1", s.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Content != "hi there" {
		t.Errorf("unexpected history: %v", msgs)
	}

	if _, err := m.History("user-2", s.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("history must be scoped to the owning user, got %v", err)
	}
}

func TestListDuringActiveTurn(t *testing.T) {
	m := NewManager(0, memory.Config{})
	s := m.Create("user-1")

	mem, release := m.Acquire("user-1", s.ID)

	// A turn keeps writing session memory while management reads and new
	// registrations run against the registry. Run with -race.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			mem.AddMessage(domain.RoleUser, "still typing", fixedNow.Add(time.Duration(i)*time.Millisecond))
		}
	}()

	for i := 0; i < 50; i++ {
		m.ListByUser("user-1")
		m.Create(domain.UserID(fmt.Sprintf("user-%d", i)))
	}

	<-done
	release()

	listed := m.ListByUser("user-1")
	if len(listed) != 1 || listed[0].ID != s.ID {
		t.Errorf("active session lost during concurrent listing: %v", listed)
	}
}

func TestCapEvictsLeastRecentlyActive(t *testing.T) {
	tick := 0
	m := NewManager(3, memory.Config{})
	m.SetClock(func() time.Time {
		tick++
		return fixedNow.Add(time.Duration(tick) * time.Minute)
	})

	var ids []domain.SessionID
	for i := 0; i < 4; i++ {
		ids = append(ids, m.Create(domain.UserID(fmt.Sprintf("user-%d", i))).ID)
	}

	if m.Len() != 3 {
		t.Fatalf("expected cap of 3, got %d", m.Len())
	}
	// The first created session was the least recently active.
	if err := m.End("user-0", ids[0]); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Error("expected the oldest session evicted")
	}
	if err := m.End("user-3", ids[3]); err != nil {
		t.Errorf("newest session must survive, got %v", err)
	}
}
