// Package formchat fills structured forms from a conversation. The root
// package bundles the common entry points; the pkg/ subpackages expose each
// stage on its own.
package formchat

import (
	"context"

	"github.com/goliatone/go-formchat/pkg/extract"
	"github.com/goliatone/go-formchat/pkg/schema"
	"github.com/goliatone/go-formchat/pkg/turn"
)

// Form aliases schema.Form for callers that only import the root package.
type Form = schema.Form

// Result is the outcome of one conversational turn.
type Result = turn.Result

// Engine runs turns against a single form.
type Engine = turn.Engine

// NewEngine builds a turn engine for form using extractor.
func NewEngine(form *Form, extractor turn.Extractor, options ...turn.Option) *Engine {
	return turn.New(form, extractor, options...)
}

// NewRuleEngine builds a turn engine backed by the offline rule extractor.
func NewRuleEngine(form *Form, options ...turn.Option) *Engine {
	return turn.New(form, extract.NewRuleExtractor(), options...)
}

// ProcessTurn runs a single turn with the rule extractor. It is the simplest
// entry point for callers that keep conversation state themselves.
func ProcessTurn(ctx context.Context, form *Form, message, sessionID string, doc map[string]any) (Result, error) {
	return NewRuleEngine(form).ProcessTurn(ctx, message, sessionID, doc)
}
