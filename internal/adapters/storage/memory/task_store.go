package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskchat/taskchat/internal/domain"
)

// TaskStore is an in-memory implementation of domain.TaskStore, suitable
// for local mode and tests. Reads run concurrently; writes replace the
// whole validated record under the lock, so a racing write can never leave
// a partially merged task behind.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[domain.TaskID]*domain.Task
	now   func() time.Time
}

func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[domain.TaskID]*domain.Task),
		now:   time.Now,
	}
}

// SetClock overrides the store clock; used by tests for date-range cases.
func (s *TaskStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *TaskStore) Create(ctx context.Context, owner domain.UserID, draft domain.TaskDraft) (*domain.Task, error) {
	task, err := domain.NewTask(domain.TaskID(uuid.NewString()), owner, draft, s.now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	return task.Clone(), nil
}

func (s *TaskStore) Get(ctx context.Context, owner domain.UserID, id domain.TaskID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(owner, id)
}

func (s *TaskStore) Update(ctx context.Context, owner domain.UserID, id domain.TaskID, patch domain.TaskPatch) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.lookup(owner, id)
	if err != nil {
		return nil, err
	}
	merged, err := domain.PatchTask(current, patch, s.now())
	if err != nil {
		return nil, err
	}
	s.tasks[id] = merged
	return merged.Clone(), nil
}

func (s *TaskStore) Complete(ctx context.Context, owner domain.UserID, id domain.TaskID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.lookup(owner, id)
	if err != nil {
		return nil, err
	}
	done := domain.CompleteTask(current, s.now())
	s.tasks[id] = done
	return done.Clone(), nil
}

func (s *TaskStore) Reopen(ctx context.Context, owner domain.UserID, id domain.TaskID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.lookup(owner, id)
	if err != nil {
		return nil, err
	}
	reopened := domain.ReopenTask(current, s.now())
	s.tasks[id] = reopened
	return reopened.Clone(), nil
}

func (s *TaskStore) Delete(ctx context.Context, owner domain.UserID, id domain.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(owner, id); err != nil {
		return err
	}
	delete(s.tasks, id)
	return nil
}

func (s *TaskStore) List(ctx context.Context, owner domain.UserID, filter domain.TaskFilter) ([]*domain.Task, error) {
	s.mu.RLock()
	owned := s.ownedLocked(owner)
	s.mu.RUnlock()

	return domain.FilterTasks(owned, filter, s.now()), nil
}

func (s *TaskStore) Stats(ctx context.Context, owner domain.UserID) (domain.TaskStats, error) {
	all, err := s.List(ctx, owner, domain.TaskFilter{Range: domain.RangeAll})
	if err != nil {
		return domain.TaskStats{}, err
	}
	return domain.ComputeStats(all, s.now()), nil
}

// lookup must be called with the lock held. Returns a clone so callers
// never alias the stored record.
func (s *TaskStore) lookup(owner domain.UserID, id domain.TaskID) (*domain.Task, error) {
	t, ok := s.tasks[id]
	if !ok || t.OwnerID != owner {
		return nil, domain.ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (s *TaskStore) ownedLocked(owner domain.UserID) []*domain.Task {
	var out []*domain.Task
	for _, t := range s.tasks {
		if t.OwnerID == owner {
			out = append(out, t.Clone())
		}
	}
	return out
}
