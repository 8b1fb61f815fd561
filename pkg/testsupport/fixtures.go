package testsupport

import (
	"embed"
	"encoding/json"
	"io/fs"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formchat/pkg/jsonschema"
	"github.com/goliatone/go-formchat/pkg/schema"
)

//go:embed testdata/*
var fixtures embed.FS

// EquipmentFormPath is the fixture name of the reference equipment form.
const EquipmentFormPath = "equipment_form.json"

// EquipmentOpenAPIPath is the OpenAPI flavour of the equipment form.
const EquipmentOpenAPIPath = "equipment_openapi.yaml"

// FS exposes the fixture directory rooted at testdata.
func FS() fs.FS {
	sub, err := fs.Sub(fixtures, "testdata")
	if err != nil {
		panic(err)
	}
	return sub
}

// Raw returns the bytes of a fixture file.
func Raw(t testing.TB, name string) []byte {
	t.Helper()

	data, err := fs.ReadFile(FS(), name)
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return data
}

// EquipmentForm decodes the reference equipment form. Each call returns a
// fresh value.
func EquipmentForm(t testing.TB) *schema.Form {
	t.Helper()

	doc, err := schema.NewDocument(schema.SourceFromFS(EquipmentFormPath), Raw(t, EquipmentFormPath))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	form, err := jsonschema.Decode(doc, jsonschema.DecodeOptions{})
	if err != nil {
		t.Fatalf("decode equipment form: %v", err)
	}
	return form
}

// ObjectSchema builds a schema from inline JSON, failing the test on
// malformed input.
func ObjectSchema(t testing.TB, raw string) schema.Schema {
	t.Helper()

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}
	out, err := jsonschema.DecodeSchema(payload)
	if err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	return out
}

// InlineForm wraps an inline object schema into a Form named name.
func InlineForm(t testing.TB, name, raw string) *schema.Form {
	t.Helper()

	return &schema.Form{
		Name:    name,
		Version: schema.DefaultVersion,
		Schema:  ObjectSchema(t, raw),
		Source:  schema.SourceInline(name),
	}
}

// JSONDocument unmarshals a JSON object literal into a form document.
func JSONDocument(t testing.TB, raw string) map[string]any {
	t.Helper()

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	return doc
}

// AssertDocument compares two documents and reports a readable diff.
func AssertDocument(t testing.TB, want, got map[string]any) {
	t.Helper()

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}
