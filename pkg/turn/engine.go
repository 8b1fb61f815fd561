package turn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/goliatone/go-formchat/pkg/clarify"
	"github.com/goliatone/go-formchat/pkg/schema"
	"github.com/goliatone/go-formchat/pkg/validation"
)

// Defaults for the turn tunables.
const (
	DefaultConfidenceThreshold = 0.7
	DefaultDampening           = 0.7
	DefaultHistoryLimit        = 3
	DefaultLanguage            = "th"
)

// ErrNoForm is returned when the engine has no form schema to work with.
var ErrNoForm = errors.New("turn: engine has no form schema")

// ExtractRequest is the input handed to an Extractor.
type ExtractRequest struct {
	Utterance string
	Form      *schema.Form
	// Messages is the conversation so far, ending with the utterance.
	Messages []Message
	// PrimaryFields are the fields a complete extraction is expected to fill.
	PrimaryFields []string
}

// Extractor turns an utterance into candidate field values.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (Extraction, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, req ExtractRequest) (Extraction, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(ctx context.Context, req ExtractRequest) (Extraction, error) {
	return f(ctx, req)
}

// HistoryLookup returns prior submissions for a session, most recent first.
type HistoryLookup interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]map[string]any, error)
}

// HistoryFunc adapts a function to HistoryLookup.
type HistoryFunc func(ctx context.Context, sessionID string, limit int) ([]map[string]any, error)

// Recent implements HistoryLookup.
func (f HistoryFunc) Recent(ctx context.Context, sessionID string, limit int) ([]map[string]any, error) {
	return f(ctx, sessionID, limit)
}

// Input is one turn invocation.
type Input struct {
	Message   string
	SessionID string
	// Document is the current snapshot; nil starts from an empty document.
	Document map[string]any
	// Messages carries the conversation of earlier turns, including history
	// context added by them.
	Messages []Message
}

// Result summarises a finished turn.
type Result struct {
	Response   string                  `json:"response"`
	Document   map[string]any          `json:"form_data"`
	Touched    []string                `json:"highlighted_fields"`
	Confidence float64                 `json:"confidence"`
	Asked      bool                    `json:"needs_clarification"`
	Ambiguous  []string                `json:"ambiguous_fields,omitempty"`
	Errors     []validation.FieldError `json:"validation_errors,omitempty"`
	Messages   []Message               `json:"-"`
}

// Engine runs turns for one form.
type Engine struct {
	form      *schema.Form
	extractor Extractor
	history   HistoryLookup
	composer  *clarify.Composer
	logger    *zap.Logger
	tracer    trace.Tracer

	language     string
	threshold    float64
	dampening    float64
	historyLimit int
	primary      []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithHistory installs the history lookup collaborator.
func WithHistory(history HistoryLookup) Option {
	return func(e *Engine) { e.history = history }
}

// WithComposer overrides the clarification composer.
func WithComposer(composer *clarify.Composer) Option {
	return func(e *Engine) {
		if composer != nil {
			e.composer = composer
		}
	}
}

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer sets the tracer used for stage spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithLanguage selects the language of generated questions.
func WithLanguage(language string) Option {
	return func(e *Engine) {
		if language != "" {
			e.language = language
		}
	}
}

// WithConfidenceThreshold sets the confidence below which a question is
// asked.
func WithConfidenceThreshold(threshold float64) Option {
	return func(e *Engine) { e.threshold = threshold }
}

// WithDampening sets the factor applied to confidence when validation fails.
func WithDampening(factor float64) Option {
	return func(e *Engine) { e.dampening = factor }
}

// WithHistoryLimit bounds the number of prior submissions fetched.
func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.historyLimit = limit
		}
	}
}

// WithPrimaryFields overrides the fields a complete extraction should fill.
// By default they are the form's required fields.
func WithPrimaryFields(fields ...string) Option {
	return func(e *Engine) {
		if len(fields) > 0 {
			e.primary = append([]string(nil), fields...)
		}
	}
}

// New builds an Engine for form. The extractor may be nil, in which case
// every turn degrades to a clarification request.
func New(form *schema.Form, extractor Extractor, opts ...Option) *Engine {
	e := &Engine{
		form:         form,
		extractor:    extractor,
		logger:       zap.NewNop(),
		tracer:       otel.Tracer("github.com/goliatone/go-formchat/pkg/turn"),
		language:     DefaultLanguage,
		threshold:    DefaultConfidenceThreshold,
		dampening:    DefaultDampening,
		historyLimit: DefaultHistoryLimit,
	}
	if form != nil {
		e.primary = append([]string(nil), form.Schema.Required...)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.composer == nil {
		e.composer = clarify.NewComposer(nil)
	}
	return e
}

// Form returns the form the engine fills.
func (e *Engine) Form() *schema.Form {
	return e.form
}

// PrimaryFields returns the fields a complete extraction should fill.
func (e *Engine) PrimaryFields() []string {
	return append([]string(nil), e.primary...)
}

// ProcessTurn runs a turn without prior conversation.
func (e *Engine) ProcessTurn(ctx context.Context, message, sessionID string, doc map[string]any) (Result, error) {
	return e.Process(ctx, Input{Message: message, SessionID: sessionID, Document: doc})
}

// Process runs every stage of a turn and returns its result. The only error
// is a misconfigured engine; collaborator and mutation failures degrade the
// turn instead.
func (e *Engine) Process(ctx context.Context, in Input) (Result, error) {
	if e == nil || e.form == nil {
		return Result{}, ErrNoForm
	}

	ctx, span := e.tracer.Start(ctx, "turn.process")
	defer span.End()

	doc := in.Document
	if doc == nil {
		doc = map[string]any{}
	}
	state := State{
		Stage:     StageAnalyzing,
		Form:      e.form,
		SessionID: in.SessionID,
		Messages:  appendCopy(in.Messages, Message{Role: RoleUser, Content: in.Message}),
		Document:  doc,
		turnStart: len(in.Messages),
	}

	for state.Stage != StageDone {
		state = e.step(ctx, state)
		state.Stage = next(state, e.threshold)
	}

	return e.result(state), nil
}

func (e *Engine) step(ctx context.Context, s State) State {
	ctx, span := e.tracer.Start(ctx, "turn."+s.Stage.String())
	defer span.End()

	switch s.Stage {
	case StageAnalyzing:
		return e.analyze(ctx, s)
	case StageEnriching:
		return e.enrich(ctx, s)
	case StageMutating:
		return e.mutate(ctx, s)
	case StageValidating:
		return e.validate(ctx, s)
	case StageAsking:
		return e.ask(ctx, s)
	default:
		return s
	}
}

func (e *Engine) result(s State) Result {
	response := ""
	for i := len(s.Messages) - 1; i >= s.turnStart && i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			response = s.Messages[i].Content
			break
		}
	}
	if response == "" {
		response = e.composer.Fallback(e.language)
	}

	touched := s.Touched
	if touched == nil {
		touched = []string{}
	}
	return Result{
		Response:   response,
		Document:   s.Document,
		Touched:    touched,
		Confidence: s.Confidence,
		Asked:      s.Asked,
		Ambiguous:  s.Ambiguous,
		Errors:     s.Errors,
		Messages:   s.Messages,
	}
}

// sessionField logs a stable digest instead of the raw session identifier.
func sessionField(id string) zap.Field {
	sum := sha256.Sum256([]byte(id))
	return zap.String("session", hex.EncodeToString(sum[:6]))
}
