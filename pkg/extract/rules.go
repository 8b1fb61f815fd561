package extract

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/goliatone/go-formchat/pkg/lookup"
	"github.com/goliatone/go-formchat/pkg/schema"
	"github.com/goliatone/go-formchat/pkg/turn"
)

// Fields the rule extractor knows how to read.
const (
	FieldEquipments       = "equipments"
	FieldRequestDate      = "requestDate"
	FieldRequestTime      = "requestTime"
	FieldDeliveryLocation = "deliveryLocation"
)

var (
	quantityPattern = regexp.MustCompile(`(\d+)\s*(laptop|notebook|desktop|monitor|เครื่อง|คอมพิวเตอร์)`)
	datePattern     = regexp.MustCompile(`(\d{4}-\d{2}-\d{2}|\d{2}/\d{2}/\d{4})`)
	clockPattern    = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	buildingPattern = regexp.MustCompile(`(?i)(building|ตึก|อาคาร)\s*([A-Z]|[\p{L}\p{M}\p{N}_]+)`)
)

var equipmentTypes = map[string]string{
	"laptop":      "Notebook",
	"notebook":    "Notebook",
	"desktop":     "Desktop",
	"monitor":     "Monitor",
	"เครื่อง":     "Notebook",
	"คอมพิวเตอร์": "Desktop",
}

type keyword[T any] struct {
	text  string
	value T
}

var dateKeywords = []keyword[int]{
	{"tomorrow", 1},
	{"พรุ่งนี้", 1},
	{"next week", 7},
	{"สัปดาห์หน้า", 7},
	{"สัปดาห์หนา", 7},
	{"today", 0},
	{"วันนี้", 0},
}

var timeKeywords = []keyword[string]{
	{"morning", "09:00"},
	{"เช้า", "09:00"},
	{"afternoon", "13:00"},
	{"บ่าย", "13:00"},
	{"evening", "17:00"},
	{"เย็น", "17:00"},
}

// Per-signal confidences.
const (
	confidenceQuantity     = 0.9
	confidenceRelative     = 0.85
	confidenceExplicitDate = 0.95
	confidencePartOfDay    = 0.8
	confidenceExplicitTime = 0.95
	confidenceBuilding     = 0.85
	confidenceMissing      = 0.2
	confidenceMissingSoft  = 0.3
)

// RuleExtractor reads the equipment request fields with keyword and pattern
// rules. It needs no model and is the fallback when none is configured.
type RuleExtractor struct {
	clock     clock.Clock
	threshold float64
}

// RuleOption customises a RuleExtractor.
type RuleOption func(*RuleExtractor)

// WithRuleClock sets the clock used for relative dates.
func WithRuleClock(c clock.Clock) RuleOption {
	return func(r *RuleExtractor) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithSnapThreshold sets the similarity required to snap a matched location
// onto one of the field's allowed values.
func WithSnapThreshold(threshold float64) RuleOption {
	return func(r *RuleExtractor) {
		r.threshold = threshold
	}
}

// NewRuleExtractor builds a RuleExtractor.
func NewRuleExtractor(opts ...RuleOption) *RuleExtractor {
	r := &RuleExtractor{clock: clock.New(), threshold: lookup.DefaultThreshold}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

var _ turn.Extractor = (*RuleExtractor)(nil)

// Extract implements turn.Extractor. Each signal contributes a confidence and
// the overall confidence is their mean. Fields the form does not declare are
// dropped from the result.
func (r *RuleExtractor) Extract(ctx context.Context, req turn.ExtractRequest) (turn.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return turn.Extraction{}, err
	}

	text := Sanitize(req.Utterance)
	lower := strings.ToLower(text)

	fields := map[string]any{}
	ambiguous := []string{}
	var scores []float64

	record := func(field string, value any, score float64) {
		fields[field] = value
		scores = append(scores, score)
	}
	miss := func(field string, score float64) {
		ambiguous = append(ambiguous, field)
		scores = append(scores, score)
	}

	if items := r.equipments(lower); len(items) > 0 {
		fields[FieldEquipments] = items
		for range items {
			scores = append(scores, confidenceQuantity)
		}
	} else {
		miss(FieldEquipments, confidenceMissingSoft)
	}

	if value, score, ok := r.date(text, lower); ok {
		record(FieldRequestDate, value, score)
	} else {
		miss(FieldRequestDate, confidenceMissing)
	}

	if value, score, ok := r.timeOfDay(text, lower); ok {
		record(FieldRequestTime, value, score)
	} else {
		miss(FieldRequestTime, confidenceMissing)
	}

	if loc := buildingPattern.FindStringIndex(text); loc != nil {
		record(FieldDeliveryLocation, r.snapLocation(text[loc[0]:loc[1]], req.Form), confidenceBuilding)
	} else {
		miss(FieldDeliveryLocation, confidenceMissingSoft)
	}

	if req.Form != nil && len(req.Form.Schema.Properties) > 0 {
		fields = Filter(fields, req.Form.Schema)
	}

	var total float64
	for _, score := range scores {
		total += score
	}
	confidence := 0.0
	if len(scores) > 0 {
		confidence = round2(total / float64(len(scores)))
	}
	return turn.Extraction{Fields: fields, Confidence: confidence, Ambiguous: ambiguous}, nil
}

func (r *RuleExtractor) equipments(lower string) []any {
	matches := quantityPattern.FindAllStringSubmatch(lower, -1)
	items := make([]any, 0, len(matches))
	for _, m := range matches {
		qty, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		kind, ok := equipmentTypes[m[2]]
		if !ok {
			kind = "Notebook"
		}
		items = append(items, map[string]any{"type": kind, "quantity": qty, "detail": ""})
	}
	return items
}

func (r *RuleExtractor) date(text, lower string) (string, float64, bool) {
	for _, kw := range dateKeywords {
		if strings.Contains(lower, kw.text) {
			return r.clock.Now().AddDate(0, 0, kw.value).Format("2006-01-02"), confidenceRelative, true
		}
	}
	m := datePattern.FindString(text)
	if m == "" {
		return "", 0, false
	}
	if parts := strings.Split(m, "/"); len(parts) == 3 {
		m = parts[2] + "-" + parts[1] + "-" + parts[0]
	}
	return m, confidenceExplicitDate, true
}

func (r *RuleExtractor) timeOfDay(text, lower string) (string, float64, bool) {
	for _, kw := range timeKeywords {
		if strings.Contains(lower, kw.text) {
			return kw.value, confidencePartOfDay, true
		}
	}
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return "", 0, false
	}
	hour, _ := strconv.Atoi(m[1])
	return fmt.Sprintf("%02d:%s", hour, m[2]), confidenceExplicitTime, true
}

func (r *RuleExtractor) snapLocation(matched string, form *schema.Form) string {
	if form == nil {
		return matched
	}
	candidates := lookup.Resolve(matched, form.Schema, FieldDeliveryLocation, r.threshold)
	if len(candidates) == 0 {
		return matched
	}
	if value, ok := candidates[0].Value.(string); ok {
		return value
	}
	return matched
}
