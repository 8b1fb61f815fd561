package openapi_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formchat/pkg/openapi"
	"github.com/goliatone/go-formchat/pkg/schema"
	"github.com/goliatone/go-formchat/pkg/testsupport"
)

func TestDecode_ComponentSchemas(t *testing.T) {
	raw := testsupport.Raw(t, testsupport.EquipmentOpenAPIPath)
	doc := openapi.MustNewDocument(schema.SourceFromFS(testsupport.EquipmentOpenAPIPath), raw)

	forms, err := openapi.Decode(context.Background(), doc, openapi.WithComponents("equipment_form"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(forms) != 1 {
		t.Fatalf("expected one form, got %d", len(forms))
	}
	form := forms[0]
	if got := form.ID(); got != "equipment_form@2.0.0" {
		t.Fatalf("id: got %q", got)
	}
	if form.Definition["type"] != "object" {
		t.Fatalf("definition: expected object payload, got %v", form.Definition)
	}
	if diff := cmp.Diff([]string{"fullName", "equipments"}, form.Schema.Required); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}

	items := form.Schema.Properties["equipments"].Items
	if items == nil {
		t.Fatalf("expected equipments items")
	}
	quantity := items.Properties["quantity"]
	if quantity.Minimum == nil || *quantity.Minimum != 1 || quantity.Maximum == nil || *quantity.Maximum != 50 {
		t.Fatalf("unexpected quantity bounds: %+v", quantity)
	}
	if diff := cmp.Diff([]any{"Notebook", "Desktop", "Monitor"}, items.Properties["type"].Enum); diff != "" {
		t.Fatalf("enum mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_AllObjectSchemas(t *testing.T) {
	raw := testsupport.Raw(t, testsupport.EquipmentOpenAPIPath)
	doc := openapi.MustNewDocument(schema.SourceFromFS(testsupport.EquipmentOpenAPIPath), raw)

	forms, err := openapi.Decode(context.Background(), doc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var names []string
	for _, form := range forms {
		names = append(names, form.Name)
	}
	if diff := cmp.Diff([]string{"Equipment", "equipment_form"}, names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_MissingComponent(t *testing.T) {
	raw := testsupport.Raw(t, testsupport.EquipmentOpenAPIPath)
	doc := openapi.MustNewDocument(schema.SourceFromFS(testsupport.EquipmentOpenAPIPath), raw)

	_, err := openapi.Decode(context.Background(), doc, openapi.WithComponents("nope"))
	if err == nil || !strings.Contains(err.Error(), `component schema "nope" not found`) {
		t.Fatalf("expected missing component error, got %v", err)
	}
}

func TestDecode_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := openapi.MustNewDocument(schema.SourceInline("inline.yaml"), []byte("openapi: 3.0.3"))
	if _, err := openapi.Decode(ctx, doc); err == nil {
		t.Fatalf("expected context error")
	}
}
