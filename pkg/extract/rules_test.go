package extract_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formchat/pkg/extract"
	"github.com/goliatone/go-formchat/pkg/testsupport"
	"github.com/goliatone/go-formchat/pkg/turn"
)

func TestRuleExtractor(t *testing.T) {
	form := testsupport.EquipmentForm(t)
	x := extract.NewRuleExtractor(extract.WithRuleClock(mockClock()))

	cases := []struct {
		name      string
		utterance string
		want      turn.Extraction
	}{
		{
			name:      "thai request",
			utterance: "ขอ notebook 2 เครื่อง พรุ่งนี้เช้า ส่งที่ตึก A",
			want: turn.Extraction{
				Fields: map[string]any{
					"equipments":       []any{map[string]any{"type": "Notebook", "quantity": 2, "detail": ""}},
					"requestDate":      "2026-10-15",
					"requestTime":      "09:00",
					"deliveryLocation": "ตึก A",
				},
				Confidence: 0.85,
				Ambiguous:  []string{},
			},
		},
		{
			name:      "explicit date and time",
			utterance: "I need 3 laptops and 2 monitors on 25/12/2026 at 9:30",
			want: turn.Extraction{
				Fields: map[string]any{
					"equipments": []any{
						map[string]any{"type": "Notebook", "quantity": 3, "detail": ""},
						map[string]any{"type": "Monitor", "quantity": 2, "detail": ""},
					},
					"requestDate": "2026-12-25",
					"requestTime": "09:30",
				},
				Confidence: 0.8,
				Ambiguous:  []string{"deliveryLocation"},
			},
		},
		{
			name:      "location snapped to allowed value",
			utterance: "ส่งที่ตึกศรีจันทร์ 2026-11-01 13:00",
			want: turn.Extraction{
				Fields: map[string]any{
					"requestDate":      "2026-11-01",
					"requestTime":      "13:00",
					"deliveryLocation": "ตึกศรีจันทร์",
				},
				Confidence: 0.76,
				Ambiguous:  []string{"equipments"},
			},
		},
		{
			name:      "nothing recognised",
			utterance: "hello there",
			want: turn.Extraction{
				Fields:     map[string]any{},
				Confidence: 0.25,
				Ambiguous:  []string{"equipments", "requestDate", "requestTime", "deliveryLocation"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := x.Extract(context.Background(), turn.ExtractRequest{Utterance: tc.utterance, Form: form})
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("extraction mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRuleExtractor_DropsUndeclaredFields(t *testing.T) {
	form := testsupport.InlineForm(t, "dates", `{
		"type": "object",
		"properties": {"requestDate": {"type": "string", "format": "date"}}
	}`)
	x := extract.NewRuleExtractor(extract.WithRuleClock(mockClock()))

	got, err := x.Extract(context.Background(), turn.ExtractRequest{Utterance: "2 desktop today morning", Form: form})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"requestDate": "2026-10-14"}, got.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestRuleExtractor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := extract.NewRuleExtractor().Extract(ctx, turn.ExtractRequest{Utterance: "today"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
