package extract_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/tmc/langchaingo/llms"

	"github.com/goliatone/go-formchat/pkg/extract"
	"github.com/goliatone/go-formchat/pkg/testsupport"
	"github.com/goliatone/go-formchat/pkg/turn"
)

type fakeModel struct {
	reply    string
	err      error
	empty    bool
	messages []llms.MessageContent
	options  llms.CallOptions
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.options)
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.empty {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

var primary = []string{"equipments", "requestDate", "requestTime", "deliveryLocation"}

func mockClock() *clock.Mock {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, time.October, 14, 8, 30, 0, 0, time.UTC))
	return mock
}

func textOf(t *testing.T, msg llms.MessageContent) string {
	t.Helper()
	if len(msg.Parts) != 1 {
		t.Fatalf("expected one part, got %d", len(msg.Parts))
	}
	part, ok := msg.Parts[0].(llms.TextContent)
	if !ok {
		t.Fatalf("expected text part, got %T", msg.Parts[0])
	}
	return part.Text
}

func TestLLMExtractor_FiltersAndScores(t *testing.T) {
	model := &fakeModel{reply: "```json\n" + `{
		"equipments": [{"type": "Notebook", "quantity": 2, "detail": ""}],
		"requestDate": "2026-10-15",
		"requestTime": null,
		"deliveryLocation": "",
		"nickname": "bob"
	}` + "\n```"}

	x := extract.NewLLMExtractor(model, extract.WithClock(mockClock()), extract.WithTemperature(0.1))
	got, err := x.Extract(context.Background(), turn.ExtractRequest{
		Utterance:     "ขอ notebook 2 เครื่อง พรุ่งนี้",
		Form:          testsupport.EquipmentForm(t),
		PrimaryFields: primary,
		Messages: []turn.Message{
			{Role: turn.RoleAssistant, Content: "สวัสดีครับ"},
			{Role: turn.RoleUser, Content: "<b>ขอ notebook 2 เครื่อง</b> พรุ่งนี้"},
		},
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := turn.Extraction{
		Fields: map[string]any{
			"equipments":  []any{map[string]any{"type": "Notebook", "quantity": float64(2), "detail": ""}},
			"requestDate": "2026-10-15",
		},
		Confidence: 0.5,
		Ambiguous:  []string{"requestTime", "deliveryLocation"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("extraction mismatch (-want +got):\n%s", diff)
	}

	if !model.options.JSONMode {
		t.Fatalf("expected JSON mode")
	}
	if model.options.Temperature != 0.1 {
		t.Fatalf("expected temperature 0.1, got %v", model.options.Temperature)
	}
	if len(model.messages) != 3 {
		t.Fatalf("expected system + 2 history messages, got %d", len(model.messages))
	}
	if model.messages[0].Role != llms.ChatMessageTypeSystem {
		t.Fatalf("expected system prompt first, got %s", model.messages[0].Role)
	}
	prompt := textOf(t, model.messages[0])
	for _, fragment := range []string{
		"Today's date is: 2026-10-14",
		"- requestDate (string, date): Request date",
		"Allowed: low, normal, urgent.",
		"CS (Computer Science)",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, prompt)
		}
	}
	if model.messages[1].Role != llms.ChatMessageTypeAI {
		t.Fatalf("expected assistant history mapped to AI, got %s", model.messages[1].Role)
	}
	if got := textOf(t, model.messages[2]); got != "ขอ notebook 2 เครื่อง พรุ่งนี้" {
		t.Fatalf("expected sanitized utterance, got %q", got)
	}
}

func TestLLMExtractor_UtteranceWithoutHistory(t *testing.T) {
	model := &fakeModel{reply: `{}`}
	x := extract.NewLLMExtractor(model)
	got, err := x.Extract(context.Background(), turn.ExtractRequest{
		Utterance:     "hello",
		Form:          testsupport.EquipmentForm(t),
		PrimaryFields: primary,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Confidence != 0 || len(got.Ambiguous) != len(primary) {
		t.Fatalf("unexpected extraction %+v", got)
	}
	if len(model.messages) != 2 || textOf(t, model.messages[1]) != "hello" {
		t.Fatalf("expected utterance as the human message, got %+v", model.messages)
	}
}

func TestLLMExtractor_Errors(t *testing.T) {
	form := testsupport.EquipmentForm(t)
	boom := errors.New("boom")

	cases := []struct {
		name string
		x    *extract.LLMExtractor
		form bool
		want error
	}{
		{name: "no model", x: extract.NewLLMExtractor(nil), form: true, want: extract.ErrNoModel},
		{name: "no form", x: extract.NewLLMExtractor(&fakeModel{reply: "{}"}), want: turn.ErrNoForm},
		{name: "model failure", x: extract.NewLLMExtractor(&fakeModel{err: boom}), form: true, want: boom},
		{name: "no choices", x: extract.NewLLMExtractor(&fakeModel{empty: true}), form: true, want: extract.ErrEmptyResponse},
		{name: "prose only", x: extract.NewLLMExtractor(&fakeModel{reply: "I cannot help"}), form: true, want: extract.ErrMalformedResponse},
		{name: "broken json", x: extract.NewLLMExtractor(&fakeModel{reply: `{"a": }`}), form: true, want: extract.ErrMalformedResponse},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := turn.ExtractRequest{Utterance: "hi", PrimaryFields: primary}
			if tc.form {
				req.Form = form
			}
			_, err := tc.x.Extract(context.Background(), req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseObject(t *testing.T) {
	got, err := extract.ParseObject(`Sure! {"requestTime": "09:00"} let me know`)
	if err != nil {
		t.Fatalf("ParseObject: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"requestTime": "09:00"}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_KeepsZeroAndFalse(t *testing.T) {
	form := testsupport.ObjectSchema(t, `{
		"type": "object",
		"properties": {
			"count": {"type": "integer"},
			"urgent": {"type": "boolean"},
			"tags": {"type": "array"},
			"meta": {"type": "object"},
			"note": {"type": "string"}
		}
	}`)
	got := extract.Filter(map[string]any{
		"count":  float64(0),
		"urgent": false,
		"tags":   []any{},
		"meta":   map[string]any{},
		"note":   "  ",
		"extra":  "x",
	}, form)
	want := map[string]any{"count": float64(0), "urgent": false}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestCompleteness(t *testing.T) {
	confidence, missing := extract.Completeness(map[string]any{"a": "x"}, []string{"a", "b", "c"})
	if confidence != 0.33 {
		t.Fatalf("expected 0.33, got %v", confidence)
	}
	if diff := cmp.Diff([]string{"b", "c"}, missing); diff != "" {
		t.Fatalf("missing mismatch (-want +got):\n%s", diff)
	}

	confidence, missing = extract.Completeness(nil, nil)
	if confidence != 1 || len(missing) != 0 {
		t.Fatalf("expected full confidence without primary fields, got %v %v", confidence, missing)
	}
}

func TestNewOpenRouterModel_RequiresKey(t *testing.T) {
	if _, err := extract.NewOpenRouterModel("  ", "", ""); !errors.Is(err, extract.ErrNoModel) {
		t.Fatalf("expected ErrNoModel, got %v", err)
	}
}

func TestSanitize(t *testing.T) {
	got := extract.Sanitize("  <b>2 notebook</b> & 'fast' ")
	if got != "2 notebook & 'fast'" {
		t.Fatalf("unexpected sanitized text %q", got)
	}
}
