package validation

import (
	"sort"

	"github.com/goliatone/go-formchat/pkg/schema"
)

// FieldError pairs a field with the reason it failed validation.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidateFields validates the named fields of doc, in order, and returns the
// failures. Fields absent from doc are validated as null.
func ValidateFields(doc map[string]any, fields []string, form schema.Schema) []FieldError {
	var errs []FieldError
	for _, field := range fields {
		if out := ValidateField(field, doc[field], form); !out.OK {
			errs = append(errs, FieldError{Field: field, Reason: out.Reason})
		}
	}
	return errs
}

// ValidateDocument validates every property declared by form plus every key
// present in doc that the form does not declare. The result is ordered by
// field name.
func ValidateDocument(doc map[string]any, form schema.Schema) []FieldError {
	fields := form.PropertyNames()
	for _, key := range sortedDocKeys(doc) {
		if _, ok := form.Property(key); !ok {
			fields = append(fields, key)
		}
	}
	return ValidateFields(doc, fields, form)
}

func sortedDocKeys(doc map[string]any) []string {
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
