package validation

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formchat/pkg/schema"
	"github.com/goliatone/go-formchat/pkg/testsupport"
)

func TestLintJSONSchema_Valid(t *testing.T) {
	raw := testsupport.Raw(t, testsupport.EquipmentFormPath)
	result := LintJSONSchema(schema.SourceFromFS(testsupport.EquipmentFormPath), raw, LintOptions{Strict: true})
	if !result.Valid {
		t.Fatalf("expected equipment form to lint clean: %#v", result.Issues)
	}
}

func TestLintJSONSchema_DecodeErrorFieldPath(t *testing.T) {
	raw := []byte(`{
  "type": "object",
  "properties": {
    "title": { "type": "string", "minLength": "oops" }
  }
}`)
	result := LintJSONSchema(nil, raw, LintOptions{})
	if result.Valid {
		t.Fatalf("expected schema to be invalid")
	}
	if len(result.Issues) != 1 {
		t.Fatalf("expected one issue, got %#v", result.Issues)
	}
	want := SchemaIssue{
		Path:    "#/properties/title",
		Field:   "title",
		Message: "minLength must be a non-negative integer",
	}
	if diff := cmp.Diff(want, result.Issues[0]); diff != "" {
		t.Fatalf("issue mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateForm_StructuralIssues(t *testing.T) {
	form := testsupport.ObjectSchema(t, `{
  "type": "object",
  "required": ["quantity", "ghost"],
  "properties": {
    "quantity": {"type": "integer", "minimum": 10, "maximum": 1},
    "code": {"type": "string", "pattern": "(?<=x)y"},
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {"kind": {"type": "integer", "enum": [1, "two"]}}
      }
    },
    "phone": {"type": "string", "format": "phone"}
  }
}`)

	result := ValidateForm(form)
	if result.Valid {
		t.Fatalf("expected issues")
	}
	byField := map[string]string{}
	for _, issue := range result.Issues {
		byField[issue.Field] = issue.Message
	}
	checks := map[string]string{
		"":                 `required field "ghost" is not declared`,
		"quantity":         "minimum 10 exceeds maximum 1",
		"code":             `pattern "(?<=x)y" does not compile`,
		"items.items.kind": "enum[1] two is not of type integer",
		"phone":            `format "phone" is not enforced`,
	}
	for field, fragment := range checks {
		msg, ok := byField[field]
		if !ok {
			t.Fatalf("expected issue for field %q, got %#v", field, result.Issues)
		}
		if !strings.Contains(msg, fragment) {
			t.Fatalf("issue for %q = %q, want fragment %q", field, msg, fragment)
		}
	}
}
