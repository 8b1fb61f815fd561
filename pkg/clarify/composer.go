// Package clarify turns ambiguous fields and validation failures into the
// assistant's next question.
package clarify

import (
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-formchat/pkg/schema"
)

// Context describes the turn the question is asked in.
type Context struct {
	// Extracted holds the field values the turn already extracted. A non-empty
	// map prefixes the question with an acknowledgement.
	Extracted   map[string]any
	Confidence  float64
	UserMessage string
}

// Composer renders clarification phrases from a Catalog. It performs no I/O
// and is safe for concurrent use.
type Composer struct {
	catalog *Catalog
}

// NewComposer returns a Composer over catalog; nil uses the embedded one.
func NewComposer(catalog *Catalog) *Composer {
	if catalog == nil {
		catalog = MustDefaultCatalog()
	}
	return &Composer{catalog: catalog}
}

// Compose asks about the first ambiguous field only. A canned per-field
// phrase wins; otherwise fields with allowed values get an options question
// and everything else a generic one. An empty list yields "".
func (c *Composer) Compose(ambiguous []string, form schema.Schema, ctx Context, language string) string {
	if len(ambiguous) == 0 {
		return ""
	}
	p := c.catalog.phrasesFor(language)
	field := ambiguous[0]
	def, _ := form.Property(field)
	label := form.Label(field)

	vars := pongo2.Context{"field": field, "label": label}
	var question string
	switch tpl, canned := p.fields[field]; {
	case canned:
		question = render(tpl, vars, label)
	case len(allowedLabels(def)) > 0:
		vars["options"] = strings.Join(allowedLabels(def), ", ")
		question = render(p.enum, vars, label)
	default:
		question = render(p.generic, vars, label)
	}

	if len(ctx.Extracted) > 0 {
		question = render(p.acknowledgement, vars, "") + question
	}
	return question
}

// Apology reports a rejected value. reason is the validator message, which
// already names the field.
func (c *Composer) Apology(field, reason, language string) string {
	p := c.catalog.phrasesFor(language)
	return render(p.apology, pongo2.Context{"field": field, "reason": reason}, reason)
}

// LowConfidence is the prompt used when nothing specific is unclear but the
// turn could not be trusted.
func (c *Composer) LowConfidence(language string) string {
	return render(c.catalog.phrasesFor(language).lowConfidence, nil, "")
}

// Fallback is the reply for a turn that finished without a question.
func (c *Composer) Fallback(language string) string {
	return render(c.catalog.phrasesFor(language).fallback, nil, "")
}

func allowedLabels(def schema.Schema) []string {
	if len(def.Enum) > 0 {
		out := make([]string, 0, len(def.Enum))
		for _, value := range def.Enum {
			out = append(out, fmt.Sprint(value))
		}
		return out
	}
	options := def.ConstOptions()
	out := make([]string, 0, len(options))
	for _, option := range options {
		out = append(out, option.Label)
	}
	return out
}

func render(tpl *pongo2.Template, vars pongo2.Context, fallback string) string {
	if tpl == nil {
		return fallback
	}
	if vars == nil {
		vars = pongo2.Context{}
	}
	out, err := tpl.Execute(vars)
	if err != nil {
		return fallback
	}
	return out
}
