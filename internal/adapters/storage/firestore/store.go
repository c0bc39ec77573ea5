package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/taskchat/taskchat/internal/domain"
)

// Store implements domain.TaskStore on Cloud Firestore. Filter and sort
// semantics are applied in Go through the shared domain helpers so they
// match the other backends exactly.
type Store struct {
	client *firestore.Client
	now    func() time.Time
}

// NewStore creates a Firestore task store.
// Uses the project passed (TASKCHAT_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) tasksCol() *firestore.CollectionRef {
	return s.client.Collection("tasks")
}

func (s *Store) taskDoc(id domain.TaskID) *firestore.DocumentRef {
	return s.tasksCol().Doc(string(id))
}

type taskDoc struct {
	OwnerID     string     `firestore:"owner_id"`
	Title       string     `firestore:"title"`
	Description string     `firestore:"description"`
	DueDate     *time.Time `firestore:"due_date"`
	Priority    string     `firestore:"priority"`
	Status      string     `firestore:"status"`
	Tags        []string   `firestore:"tags"`
	CreatedAt   time.Time  `firestore:"created_at"`
	UpdatedAt   time.Time  `firestore:"updated_at"`
	CompletedAt *time.Time `firestore:"completed_at"`
}

func toDoc(t *domain.Task) taskDoc {
	return taskDoc{
		OwnerID:     string(t.OwnerID),
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		Tags:        t.Tags,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CompletedAt: t.CompletedAt,
	}
}

func fromDoc(id domain.TaskID, doc taskDoc) *domain.Task {
	return &domain.Task{
		ID:          id,
		OwnerID:     domain.UserID(doc.OwnerID),
		Title:       doc.Title,
		Description: doc.Description,
		DueDate:     doc.DueDate,
		Priority:    domain.Priority(doc.Priority),
		Status:      domain.Status(doc.Status),
		Tags:        doc.Tags,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		CompletedAt: doc.CompletedAt,
	}
}

func (s *Store) Create(ctx context.Context, owner domain.UserID, draft domain.TaskDraft) (*domain.Task, error) {
	task, err := domain.NewTask(domain.TaskID(uuid.NewString()), owner, draft, s.now())
	if err != nil {
		return nil, err
	}

	if _, err := s.taskDoc(task.ID).Create(ctx, toDoc(task)); err != nil {
		return nil, fmt.Errorf("firestore Create: %w", err)
	}
	return task, nil
}

func (s *Store) Get(ctx context.Context, owner domain.UserID, id domain.TaskID) (*domain.Task, error) {
	snap, err := s.taskDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("firestore Get: %w", err)
	}

	var doc taskDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore Get decode: %w", err)
	}
	if doc.OwnerID != string(owner) {
		return nil, domain.ErrTaskNotFound
	}
	return fromDoc(id, doc), nil
}

func (s *Store) Update(ctx context.Context, owner domain.UserID, id domain.TaskID, patch domain.TaskPatch) (*domain.Task, error) {
	return s.replace(ctx, owner, id, func(current *domain.Task) (*domain.Task, error) {
		return domain.PatchTask(current, patch, s.now())
	})
}

func (s *Store) Complete(ctx context.Context, owner domain.UserID, id domain.TaskID) (*domain.Task, error) {
	return s.replace(ctx, owner, id, func(current *domain.Task) (*domain.Task, error) {
		return domain.CompleteTask(current, s.now()), nil
	})
}

func (s *Store) Reopen(ctx context.Context, owner domain.UserID, id domain.TaskID) (*domain.Task, error) {
	return s.replace(ctx, owner, id, func(current *domain.Task) (*domain.Task, error) {
		return domain.ReopenTask(current, s.now()), nil
	})
}

func (s *Store) Delete(ctx context.Context, owner domain.UserID, id domain.TaskID) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}
	if _, err := s.taskDoc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore Delete: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, owner domain.UserID, filter domain.TaskFilter) ([]*domain.Task, error) {
	tasks, err := s.listOwned(ctx, owner)
	if err != nil {
		return nil, err
	}
	return domain.FilterTasks(tasks, filter, s.now()), nil
}

func (s *Store) Stats(ctx context.Context, owner domain.UserID) (domain.TaskStats, error) {
	tasks, err := s.listOwned(ctx, owner)
	if err != nil {
		return domain.TaskStats{}, err
	}
	return domain.ComputeStats(tasks, s.now()), nil
}

// replace writes the merged, re-validated record as a full document
// replacement (Set without merge options), never a per-field patch.
func (s *Store) replace(
	ctx context.Context,
	owner domain.UserID,
	id domain.TaskID,
	mutate func(*domain.Task) (*domain.Task, error),
) (*domain.Task, error) {

	current, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	next, err := mutate(current)
	if err != nil {
		return nil, err
	}

	if _, err := s.taskDoc(id).Set(ctx, toDoc(next)); err != nil {
		return nil, fmt.Errorf("firestore replace: %w", err)
	}
	return next, nil
}

func (s *Store) listOwned(ctx context.Context, owner domain.UserID) ([]*domain.Task, error) {
	iter := s.tasksCol().Where("owner_id", "==", string(owner)).Documents(ctx)
	defer iter.Stop()

	var out []*domain.Task
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore listOwned: %w", err)
		}

		var doc taskDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode taskDoc: %w", err)
		}
		out = append(out, fromDoc(domain.TaskID(snap.Ref.ID), doc))
	}
	return out, nil
}
