package jsonschema_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formchat/pkg/jsonschema"
	"github.com/goliatone/go-formchat/pkg/schema"
	"github.com/goliatone/go-formchat/pkg/testsupport"
)

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }

func TestDecode_EquipmentForm(t *testing.T) {
	form := testsupport.EquipmentForm(t)

	if form.Name != "equipment_form" {
		t.Fatalf("name: got %q", form.Name)
	}
	if form.Version != "1.2.0" {
		t.Fatalf("version: got %q", form.Version)
	}
	if got := form.ID(); got != "equipment_form@1.2.0" {
		t.Fatalf("id: got %q", got)
	}

	equipments, ok := form.Schema.Property("equipments")
	if !ok {
		t.Fatalf("equipments property missing")
	}
	if equipments.Items == nil {
		t.Fatalf("equipments items not resolved")
	}
	want := schema.Schema{
		Type:    schema.TypeInteger,
		Title:   "Quantity",
		Minimum: ptrFloat(1),
		Maximum: ptrFloat(50),
	}
	if diff := cmp.Diff(want, equipments.Items.Properties["quantity"]); diff != "" {
		t.Fatalf("quantity mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"type", "quantity"}, equipments.Items.Required); diff != "" {
		t.Fatalf("item required mismatch (-want +got):\n%s", diff)
	}

	options := form.Schema.Properties["department"].ConstOptions()
	wantOptions := []schema.Option{
		{Value: "CS", Label: "Computer Science"},
		{Value: "EE", Label: "Electrical Engineering"},
		{Value: "HR", Label: "Human Resources"},
	}
	if diff := cmp.Diff(wantOptions, options); diff != "" {
		t.Fatalf("department options mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_YAMLAndDefaults(t *testing.T) {
	raw := `
type: object
required: [quantity]
properties:
  quantity:
    type: [integer, "null"]
    minimum: 1
    exclusiveMaximum: 10
  note:
    type: string
    maxLength: 20
    x-hint: short
`
	doc := jsonschema.MustNewDocument(schema.SourceFromFile("forms/loan_request.yaml"), []byte(raw))
	form, err := jsonschema.Decode(doc, jsonschema.DecodeOptions{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if form.Name != "loan_request" {
		t.Fatalf("expected name from file base, got %q", form.Name)
	}
	if form.Version != schema.DefaultVersion {
		t.Fatalf("expected default version, got %q", form.Version)
	}

	want := schema.Schema{
		Type: schema.TypeObject,
		Properties: map[string]schema.Schema{
			"quantity": {
				Type:             schema.TypeInteger,
				Minimum:          ptrFloat(1),
				ExclusiveMaximum: ptrFloat(10),
			},
			"note": {
				Type:       schema.TypeString,
				MaxLength:  ptrInt(20),
				Extensions: map[string]any{"x-hint": "short"},
			},
		},
		Required: []string{"quantity"},
	}
	if diff := cmp.Diff(want, form.Schema); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_BooleanExclusiveBound(t *testing.T) {
	doc := jsonschema.MustNewDocument(schema.SourceInline("inline"), []byte(`{
		"name": "bounds",
		"properties": {"score": {"type": "number", "maximum": 5, "exclusiveMaximum": true}}
	}`))
	form, err := jsonschema.Decode(doc, jsonschema.DecodeOptions{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	score := form.Schema.Properties["score"]
	if score.ExclusiveMaximum == nil || *score.ExclusiveMaximum != 5 {
		t.Fatalf("expected exclusive maximum 5, got %v", score.ExclusiveMaximum)
	}
}

func TestDecode_Errors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		opts jsonschema.DecodeOptions
		want string
	}{
		{
			name: "array root",
			raw:  `{"name": "x", "type": "array"}`,
			want: "form root must be an object",
		},
		{
			name: "remote ref",
			raw:  `{"name": "x", "properties": {"a": {"$ref": "https://example.com/a.json"}}}`,
			want: "remote $ref",
		},
		{
			name: "ref cycle",
			raw:  `{"name": "x", "properties": {"a": {"$ref": "#/$defs/node"}}, "$defs": {"node": {"type": "object", "properties": {"child": {"$ref": "#/$defs/node"}}}}}`,
			want: "ref cycle",
		},
		{
			name: "unsupported type",
			raw:  `{"name": "x", "properties": {"a": {"type": "date"}}}`,
			want: `unsupported type "date"`,
		},
		{
			name: "negative length",
			raw:  `{"name": "x", "properties": {"a": {"type": "string", "minLength": -1}}}`,
			want: "minLength must be a non-negative integer",
		},
		{
			name: "strict unknown keyword",
			raw:  `{"name": "x", "properties": {"a": {"type": "string", "dependentRequired": {}}}}`,
			opts: jsonschema.DecodeOptions{Strict: true},
			want: `unsupported keyword "dependentRequired" at #/properties/a`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := jsonschema.MustNewDocument(schema.SourceInline("inline.json"), []byte(tc.raw))
			_, err := jsonschema.Decode(doc, tc.opts)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestDecode_RefSiblingTitle(t *testing.T) {
	doc := jsonschema.MustNewDocument(schema.SourceInline("inline.json"), []byte(`{
		"name": "refs",
		"properties": {"home": {"$ref": "#/definitions/address", "title": "Home address"}},
		"definitions": {"address": {"type": "string", "title": "Address", "minLength": 5}}
	}`))
	form, err := jsonschema.Decode(doc, jsonschema.DecodeOptions{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := form.Schema.Label("home"); got != "Home address" {
		t.Fatalf("expected sibling title to win, got %q", got)
	}
	if _, ok := form.Definition["definitions"]; !ok {
		t.Fatalf("expected definition payload to keep the source definitions")
	}
}
