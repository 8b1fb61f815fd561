package turn

import (
	"github.com/goliatone/go-formchat/pkg/schema"
	"github.com/goliatone/go-formchat/pkg/validation"
)

// Stage enumerates the turn states.
type Stage int

const (
	StageAnalyzing Stage = iota
	StageEnriching
	StageMutating
	StageValidating
	StageAsking
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageAnalyzing:
		return "analyzing"
	case StageEnriching:
		return "enriching_with_history"
	case StageMutating:
		return "mutating_document"
	case StageValidating:
		return "validating"
	case StageAsking:
		return "asking_question"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one conversation entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Extraction is the structured reading of one utterance.
type Extraction struct {
	Fields     map[string]any `json:"fields"`
	Confidence float64        `json:"confidence"`
	Ambiguous  []string       `json:"ambiguous"`
}

// State is the working state of one turn. Stages never modify a State in
// place; they return an updated copy.
type State struct {
	Stage      Stage
	Form       *schema.Form
	SessionID  string
	Messages   []Message
	Document   map[string]any
	Extracted  map[string]any
	Touched    []string
	Confidence float64
	Ambiguous  []string
	Errors     []validation.FieldError
	Asked      bool

	// turnStart is the index of the first message added by this turn.
	turnStart int
}

func (s State) withMessage(msg Message) State {
	s.Messages = appendCopy(s.Messages, msg)
	return s
}

func appendCopy[T any](in []T, items ...T) []T {
	out := make([]T, 0, len(in)+len(items))
	out = append(out, in...)
	return append(out, items...)
}

// ShouldAskQuestion reports whether a turn needs a clarification: any
// ambiguity, any validation failure, or confidence below threshold.
func ShouldAskQuestion(ambiguous []string, errs []validation.FieldError, confidence, threshold float64) bool {
	return len(ambiguous) > 0 || len(errs) > 0 || confidence < threshold
}

// Decide is the branch taken after validation.
func Decide(s State, threshold float64) Stage {
	if ShouldAskQuestion(s.Ambiguous, s.Errors, s.Confidence, threshold) {
		return StageAsking
	}
	return StageDone
}

// next is the transition function of the turn machine.
func next(s State, threshold float64) Stage {
	switch s.Stage {
	case StageAnalyzing:
		return StageEnriching
	case StageEnriching:
		return StageMutating
	case StageMutating:
		return StageValidating
	case StageValidating:
		return Decide(s, threshold)
	default:
		return StageDone
	}
}
