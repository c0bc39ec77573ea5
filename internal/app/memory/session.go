// Package memory holds per-session conversational state: a bounded message
// log and a short-lived cache of recently referenced tasks, used to resolve
// pronouns like "that one".
package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/taskchat/taskchat/internal/domain"
)

const (
	DefaultMaxMessages  = 50
	DefaultReferenceTTL = 30 * time.Minute

	promptMessageWindow  = 10
	promptReferenceLimit = 5
)

// Config bounds one session's memory.
type Config struct {
	MaxMessages  int
	ReferenceTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxMessages <= 0 {
		c.MaxMessages = DefaultMaxMessages
	}
	if c.ReferenceTTL <= 0 {
		c.ReferenceTTL = DefaultReferenceTTL
	}
	return c
}

// Session is the memory of one (user, session) pair. It is not safe for
// concurrent use: the session manager serializes turns per session.
type Session struct {
	userID    domain.UserID
	sessionID domain.SessionID
	cfg       Config

	messages []domain.ConversationMessage
	refs     map[domain.TaskID]*domain.TaskReference

	createdAt time.Time
}

func NewSession(userID domain.UserID, sessionID domain.SessionID, cfg Config, now time.Time) *Session {
	return &Session{
		userID:    userID,
		sessionID: sessionID,
		cfg:       cfg.withDefaults(),
		refs:      make(map[domain.TaskID]*domain.TaskReference),
		createdAt: now,
	}
}

func (s *Session) UserID() domain.UserID       { return s.userID }
func (s *Session) SessionID() domain.SessionID { return s.sessionID }
func (s *Session) CreatedAt() time.Time        { return s.createdAt }

// AddMessage appends a turn, evicting the oldest messages past the cap.
func (s *Session) AddMessage(role domain.Role, content string, now time.Time) {
	s.messages = append(s.messages, domain.ConversationMessage{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	if n := len(s.messages) - s.cfg.MaxMessages; n > 0 {
		s.messages = append([]domain.ConversationMessage(nil), s.messages[n:]...)
	}
}

// Messages returns a copy of the retained log, oldest first.
func (s *Session) Messages() []domain.ConversationMessage {
	return append([]domain.ConversationMessage(nil), s.messages...)
}

// RecordTaskReference upserts a reference, refreshing mentioned_at and the
// snapshot.
func (s *Session) RecordTaskReference(task *domain.Task, contextText string, now time.Time) {
	if task == nil {
		return
	}
	s.refs[task.ID] = &domain.TaskReference{
		TaskID:      task.ID,
		Task:        task.Clone(),
		Context:     contextText,
		MentionedAt: now,
	}
}

// Prune drops references older than the TTL. Called lazily at the start of
// every turn; there is no background timer.
func (s *Session) Prune(now time.Time) {
	for id, ref := range s.refs {
		if now.Sub(ref.MentionedAt) > s.cfg.ReferenceTTL {
			delete(s.refs, id)
		}
	}
}

// LastMentionedTask returns the most recently mentioned reference, or nil.
func (s *Session) LastMentionedTask() *domain.TaskReference {
	var latest *domain.TaskReference
	for _, ref := range s.refs {
		if latest == nil || ref.MentionedAt.After(latest.MentionedAt) {
			latest = ref
		}
	}
	return latest
}

// FindByDescription matches text case-insensitively against each
// reference's context, title and description, most recent first.
func (s *Session) FindByDescription(text string) []*domain.TaskReference {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return s.recentReferences(0)
	}

	var out []*domain.TaskReference
	for _, ref := range s.refs {
		if strings.Contains(strings.ToLower(ref.Context), needle) ||
			strings.Contains(strings.ToLower(ref.Task.Title), needle) ||
			strings.Contains(strings.ToLower(ref.Task.Description), needle) {
			out = append(out, ref)
		}
	}
	sortByMentionedAt(out)
	return out
}

// References returns all live references, most recent first.
func (s *Session) References() []*domain.TaskReference {
	return s.recentReferences(0)
}

// ContextForPrompt renders the last 10 messages and up to 5 most recent
// task references into the compact block the orchestrator feeds the model.
// This is the only channel through which memory state reaches the model.
func (s *Session) ContextForPrompt() string {
	var b strings.Builder

	msgs := s.messages
	if len(msgs) > promptMessageWindow {
		msgs = msgs[len(msgs)-promptMessageWindow:]
	}
	if len(msgs) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, m := range msgs {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}

	refs := s.recentReferences(promptReferenceLimit)
	if len(refs) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Recently discussed tasks:\n")
		for _, ref := range refs {
			fmt.Fprintf(&b, "- %s: %q (%s, %s priority%s)\n",
				ref.TaskID, ref.Task.Title, ref.Task.Status, ref.Task.Priority, dueSuffix(ref.Task))
		}
	}

	return b.String()
}

func (s *Session) recentReferences(limit int) []*domain.TaskReference {
	out := make([]*domain.TaskReference, 0, len(s.refs))
	for _, ref := range s.refs {
		out = append(out, ref)
	}
	sortByMentionedAt(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortByMentionedAt(refs []*domain.TaskReference) {
	sort.Slice(refs, func(i, j int) bool {
		if !refs[i].MentionedAt.Equal(refs[j].MentionedAt) {
			return refs[i].MentionedAt.After(refs[j].MentionedAt)
		}
		return refs[i].TaskID < refs[j].TaskID
	})
}

func dueSuffix(t *domain.Task) string {
	if t.DueDate == nil {
		return ""
	}
	return ", due " + t.DueDate.Format("2006-01-02")
}
