// Package extract implements the Extractors the turn engine uses to read
// field values out of an utterance.
package extract

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/flosch/pongo2/v6"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/goliatone/go-formchat/pkg/schema"
	"github.com/goliatone/go-formchat/pkg/turn"
)

// OpenRouter defaults.
const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "anthropic/claude-3-sonnet"
)

var (
	// ErrNoModel is returned when an LLMExtractor has no model to call.
	ErrNoModel = errors.New("extract: no language model configured")
	// ErrEmptyResponse is returned when the model answers without choices.
	ErrEmptyResponse = errors.New("extract: empty model response")
	// ErrMalformedResponse is returned when the reply holds no JSON object.
	ErrMalformedResponse = errors.New("extract: model reply is not a JSON object")
)

//go:embed prompt.tmpl
var promptSource string

var (
	promptOnce sync.Once
	promptTpl  *pongo2.Template
	promptErr  error
)

func systemPrompt() (*pongo2.Template, error) {
	promptOnce.Do(func() {
		promptTpl, promptErr = pongo2.FromString(promptSource)
	})
	return promptTpl, promptErr
}

// NewOpenRouterModel builds a chat model speaking the OpenAI protocol against
// OpenRouter. Blank model and baseURL select the defaults.
func NewOpenRouterModel(apiKey, model, baseURL string) (llms.Model, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("extract: api key: %w", ErrNoModel)
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
		openai.WithBaseURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("extract: create model: %w", err)
	}
	return llm, nil
}

// LLMExtractor asks a language model to fill the form fields.
type LLMExtractor struct {
	model       llms.Model
	clock       clock.Clock
	logger      *zap.Logger
	callOptions []llms.CallOption
}

// LLMOption customises an LLMExtractor.
type LLMOption func(*LLMExtractor)

// WithClock sets the clock used to resolve relative dates.
func WithClock(c clock.Clock) LLMOption {
	return func(x *LLMExtractor) {
		if c != nil {
			x.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LLMOption {
	return func(x *LLMExtractor) {
		if logger != nil {
			x.logger = logger
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) LLMOption {
	return func(x *LLMExtractor) {
		x.callOptions = append(x.callOptions, llms.WithTemperature(t))
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) LLMOption {
	return func(x *LLMExtractor) {
		if n > 0 {
			x.callOptions = append(x.callOptions, llms.WithMaxTokens(n))
		}
	}
}

// NewLLMExtractor wraps model. A nil model yields an extractor whose calls
// fail with ErrNoModel.
func NewLLMExtractor(model llms.Model, opts ...LLMOption) *LLMExtractor {
	x := &LLMExtractor{
		model:  model,
		clock:  clock.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(x)
		}
	}
	return x
}

var _ turn.Extractor = (*LLMExtractor)(nil)

// Extract implements turn.Extractor. Only values for declared form properties
// survive; nulls, empty strings and empty collections are dropped. Confidence
// is the share of primary fields filled.
func (x *LLMExtractor) Extract(ctx context.Context, req turn.ExtractRequest) (turn.Extraction, error) {
	if x == nil || x.model == nil {
		return turn.Extraction{}, ErrNoModel
	}
	if req.Form == nil {
		return turn.Extraction{}, turn.ErrNoForm
	}

	prompt, err := x.renderPrompt(req.Form)
	if err != nil {
		return turn.Extraction{}, err
	}
	messages := x.conversation(prompt, req)

	opts := append([]llms.CallOption{llms.WithJSONMode()}, x.callOptions...)
	resp, err := x.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return turn.Extraction{}, fmt.Errorf("extract: generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return turn.Extraction{}, ErrEmptyResponse
	}

	reply := resp.Choices[0].Content
	x.logger.Debug("model reply", zap.Int("bytes", len(reply)))

	raw, err := ParseObject(reply)
	if err != nil {
		return turn.Extraction{}, err
	}

	fields := Filter(raw, req.Form.Schema)
	confidence, ambiguous := Completeness(fields, req.PrimaryFields)
	return turn.Extraction{Fields: fields, Confidence: confidence, Ambiguous: ambiguous}, nil
}

type promptField struct {
	Name        string
	Type        string
	Format      string
	Label       string
	Description string
	Options     string
}

func (x *LLMExtractor) renderPrompt(form *schema.Form) (string, error) {
	tpl, err := systemPrompt()
	if err != nil {
		return "", fmt.Errorf("extract: prompt template: %w", err)
	}

	names := form.Schema.PropertyNames()
	fields := make([]promptField, 0, len(names))
	for _, name := range names {
		def := form.Schema.Properties[name]
		fields = append(fields, promptField{
			Name:        name,
			Type:        fieldType(def),
			Format:      def.Format,
			Label:       form.Schema.Label(name),
			Description: strings.TrimSpace(def.Description),
			Options:     strings.Join(optionLabels(def), ", "),
		})
	}

	title := strings.TrimSpace(form.Title)
	if title == "" {
		title = form.Name
	}
	out, err := tpl.Execute(pongo2.Context{
		"title":  title,
		"today":  x.clock.Now().Format("2006-01-02"),
		"fields": fields,
	})
	if err != nil {
		return "", fmt.Errorf("extract: render prompt: %w", err)
	}
	return out, nil
}

func (x *LLMExtractor) conversation(prompt string, req turn.ExtractRequest) []llms.MessageContent {
	messages := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, prompt)}
	for _, msg := range req.Messages {
		content := msg.Content
		var role llms.ChatMessageType
		switch msg.Role {
		case turn.RoleAssistant:
			role = llms.ChatMessageTypeAI
		case turn.RoleSystem:
			role = llms.ChatMessageTypeSystem
		default:
			role = llms.ChatMessageTypeHuman
			content = Sanitize(content)
		}
		if content == "" {
			continue
		}
		messages = append(messages, llms.TextParts(role, content))
	}
	if len(req.Messages) == 0 {
		if utterance := Sanitize(req.Utterance); utterance != "" {
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, utterance))
		}
	}
	return messages
}

// ParseObject decodes the first JSON object in a model reply, tolerating code
// fences and surrounding prose.
func ParseObject(reply string) (map[string]any, error) {
	text := strings.TrimSpace(reply)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, ErrMalformedResponse
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return out, nil
}

// Filter keeps the values of declared properties that carry content. Zero
// numbers and false are content.
func Filter(raw map[string]any, form schema.Schema) map[string]any {
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		if _, ok := form.Property(key); !ok {
			continue
		}
		if isEmpty(value) {
			continue
		}
		out[key] = value
	}
	return out
}

// Completeness reports the share of primary fields present in fields, rounded
// to two decimals, and the primary fields still missing.
func Completeness(fields map[string]any, primary []string) (float64, []string) {
	if len(primary) == 0 {
		return 1, []string{}
	}
	missing := make([]string, 0, len(primary))
	for _, name := range primary {
		if value, ok := fields[name]; !ok || isEmpty(value) {
			missing = append(missing, name)
		}
	}
	filled := len(primary) - len(missing)
	return round2(float64(filled) / float64(len(primary))), missing
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func fieldType(def schema.Schema) string {
	if def.Type == schema.TypeArray && def.Items != nil && def.Items.Type != "" {
		return "array of " + def.Items.Type
	}
	if def.Type == "" {
		return schema.TypeString
	}
	return def.Type
}

func optionLabels(def schema.Schema) []string {
	var out []string
	for _, value := range def.Enum {
		out = append(out, fmt.Sprint(value))
	}
	if len(out) == 0 {
		for _, option := range def.ConstOptions() {
			out = append(out, fmt.Sprintf("%v (%s)", option.Value, option.Label))
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
