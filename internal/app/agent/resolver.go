package agent

import (
	"regexp"
	"strings"

	"github.com/taskchat/taskchat/internal/app/memory"
	"github.com/taskchat/taskchat/internal/domain"
)

// Reference resolution runs deterministically before the model call. The
// policy: exactly one candidate is used without confirmation; more than one
// triggers exactly one clarifying question (never a guess); a referential
// message with no candidate asks the user to identify the task.

type resolutionKind int

const (
	resolveNone resolutionKind = iota // message does not target a known task
	resolveFound
	resolveAmbiguous
	resolveUnknown // referential, but nothing in memory matches
)

type resolution struct {
	kind       resolutionKind
	ref        *domain.TaskReference
	candidates []*domain.TaskReference
}

var (
	// Verbs that operate on an existing task. Creation verbs are absent:
	// "add a task" never needs resolving.
	targetVerbRe = regexp.MustCompile(`\b(update|change|edit|rename|reschedule|move|complete|finish|mark|close|done|delete|remove|drop|cancel|reopen|show|get|open)\b`)

	// "the report task", "my groceries task"
	describedTaskRe = regexp.MustCompile(`\b(?:the|my)\s+([\w][\w '-]*?)\s+task\b`)

	// "the task", "that task", "this one", bare "that"/"it"
	bareTaskRe = regexp.MustCompile(`\b(?:the|this|that)\s+task\b`)
	pronounRe  = regexp.MustCompile(`\b(that one|this one|that|it)\b`)
)

func resolveReference(text string, mem *memory.Session) resolution {
	lower := strings.ToLower(text)

	if !targetVerbRe.MatchString(lower) {
		return resolution{kind: resolveNone}
	}

	if m := describedTaskRe.FindStringSubmatch(lower); m != nil {
		return fromCandidates(mem.FindByDescription(m[1]))
	}

	if bareTaskRe.MatchString(lower) {
		return fromCandidates(mem.References())
	}

	if pronounRe.MatchString(lower) {
		if ref := mem.LastMentionedTask(); ref != nil {
			return resolution{kind: resolveFound, ref: ref}
		}
		return resolution{kind: resolveUnknown}
	}

	return resolution{kind: resolveNone}
}

func fromCandidates(refs []*domain.TaskReference) resolution {
	switch len(refs) {
	case 0:
		return resolution{kind: resolveUnknown}
	case 1:
		return resolution{kind: resolveFound, ref: refs[0]}
	default:
		return resolution{kind: resolveAmbiguous, candidates: refs}
	}
}

// clarificationQuestion asks exactly one question listing the candidates.
func clarificationQuestion(candidates []*domain.TaskReference) string {
	titles := make([]string, 0, len(candidates))
	for _, ref := range candidates {
		titles = append(titles, `"`+ref.Task.Title+`"`)
	}
	return "I want to make sure I pick the right one. Did you mean " +
		strings.Join(titles[:len(titles)-1], ", ") + " or " + titles[len(titles)-1] + "?"
}

const unknownReferenceReply = "I'm not sure which task you mean. Could you give me its name, or ask me to list your tasks?"
