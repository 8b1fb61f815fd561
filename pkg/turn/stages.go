package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/goliatone/go-formchat/pkg/clarify"
	"github.com/goliatone/go-formchat/pkg/document"
	"github.com/goliatone/go-formchat/pkg/validation"
)

const historyContextPrefix = "User's previous submissions: "

func (e *Engine) analyze(ctx context.Context, s State) State {
	extraction, err := e.extract(ctx, s)
	if err != nil {
		e.logger.Warn("extraction failed, degrading turn",
			sessionField(s.SessionID),
			zap.Error(err),
		)
		extraction = Extraction{
			Fields:     map[string]any{},
			Confidence: 0,
			Ambiguous:  append([]string(nil), e.primary...),
		}
	}

	s.Extracted = extraction.Fields
	if s.Extracted == nil {
		s.Extracted = map[string]any{}
	}
	s.Confidence = clamp(extraction.Confidence)
	s.Ambiguous = append([]string(nil), extraction.Ambiguous...)

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("turn.extracted_fields", len(s.Extracted)),
		attribute.Float64("turn.confidence", s.Confidence),
	)
	return s
}

func (e *Engine) extract(ctx context.Context, s State) (out Extraction, err error) {
	if e.extractor == nil {
		return Extraction{}, fmt.Errorf("turn: no extractor configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("turn: extractor panic: %v", r)
		}
	}()
	return e.extractor.Extract(ctx, ExtractRequest{
		Utterance:     s.Messages[len(s.Messages)-1].Content,
		Form:          s.Form,
		Messages:      append([]Message(nil), s.Messages...),
		PrimaryFields: append([]string(nil), e.primary...),
	})
}

// enrich appends prior submissions as background context. It feeds the next
// turn's extraction, not this one.
func (e *Engine) enrich(ctx context.Context, s State) State {
	if e.history == nil || s.SessionID == "" {
		return s
	}
	records, err := e.recent(ctx, s.SessionID)
	if err != nil {
		e.logger.Warn("history lookup failed", sessionField(s.SessionID), zap.Error(err))
		return s
	}
	if len(records) == 0 {
		return s
	}
	payload, err := json.Marshal(records)
	if err != nil {
		e.logger.Warn("history encode failed", sessionField(s.SessionID), zap.Error(err))
		return s
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("turn.history_records", len(records)))
	return s.withMessage(Message{Role: RoleSystem, Content: historyContextPrefix + string(payload)})
}

func (e *Engine) recent(ctx context.Context, sessionID string) (records []map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("turn: history panic: %v", r)
		}
	}()
	return e.history.Recent(ctx, sessionID, e.historyLimit)
}

// mutate writes every extracted field, in sorted order, without validation.
// A field that cannot be written is logged and left out of Touched.
func (e *Engine) mutate(_ context.Context, s State) State {
	paths := make([]string, 0, len(s.Extracted))
	for path := range s.Extracted {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	doc := s.Document
	var touched []string
	for _, path := range paths {
		updated, err := document.Apply(doc, path, s.Extracted[path], s.Form.Schema, false)
		if err != nil {
			e.logger.Warn("field mutation failed",
				sessionField(s.SessionID),
				zap.String("field", path),
				zap.Error(err),
			)
			continue
		}
		doc = updated
		touched = append(touched, path)
	}

	s.Document = doc
	s.Touched = touched
	return s
}

// validate re-checks the top-level field owning each touched path, once per
// field, against the mutated document.
func (e *Engine) validate(_ context.Context, s State) State {
	seen := make(map[string]struct{}, len(s.Touched))
	var errs []validation.FieldError
	for _, path := range s.Touched {
		field := document.RootField(path)
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		value, ok := s.Document[field]
		if !ok {
			continue
		}
		if out := validation.ValidateField(field, value, s.Form.Schema); !out.OK {
			e.logger.Debug("field failed validation",
				sessionField(s.SessionID),
				zap.String("field", field),
				zap.String("reason", out.Reason),
			)
			errs = append(errs, validation.FieldError{Field: field, Reason: out.Reason})
		}
	}
	if len(errs) > 0 {
		s.Confidence *= e.dampening
	}
	s.Errors = errs
	return s
}

// ask emits the clarification. Validation failures win over ambiguity.
func (e *Engine) ask(_ context.Context, s State) State {
	var question string
	switch {
	case len(s.Errors) > 0:
		question = e.composer.Apology(s.Errors[0].Field, s.Errors[0].Reason, e.language)
	case len(s.Ambiguous) > 0:
		question = e.composer.Compose(s.Ambiguous, s.Form.Schema, clarify.Context{
			Extracted:   s.Extracted,
			Confidence:  s.Confidence,
			UserMessage: lastUserMessage(s.Messages),
		}, e.language)
	default:
		question = e.composer.LowConfidence(e.language)
	}
	s = s.withMessage(Message{Role: RoleAssistant, Content: question})
	s.Asked = true
	return s
}

func lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func clamp(value float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
