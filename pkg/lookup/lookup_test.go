package lookup

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formchat/pkg/testsupport"
)

func TestRatio(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{a: "Notebook", b: "notebook", want: 1},
		{a: "  desk ", b: "Desk", want: 1},
		{a: "abc", b: "xyz", want: 0},
		{a: "", b: "", want: 1},
		{a: "note", b: "Notebook", want: 8.0 / 12.0},
		{a: "ตึกศรี", b: "ตึกศรีจันทร์", want: 12.0 / 18.0},
	}
	for _, tc := range cases {
		if got := Ratio(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("Ratio(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
		if got, back := Ratio(tc.a, tc.b), Ratio(tc.b, tc.a); math.Abs(got-back) > 1e-9 {
			t.Fatalf("Ratio is not symmetric for %q/%q: %v vs %v", tc.a, tc.b, got, back)
		}
	}
}

func TestResolve_ThaiBuilding(t *testing.T) {
	form := testsupport.ObjectSchema(t, `{
		"type": "object",
		"properties": {"deliveryLocation": {"type": "string", "enum": ["ตึกศรีจันทร์", "ตึก A"]}}
	}`)

	got := Resolve("ตึกศรี", form, "deliveryLocation", 0.5)
	if len(got) == 0 || got[0].Value != "ตึกศรีจันทร์" {
		t.Fatalf("expected ตึกศรีจันทร์ first, got %+v", got)
	}
	if got[0].Score != 0.67 {
		t.Fatalf("expected rounded score 0.67, got %v", got[0].Score)
	}
}

func TestResolve_ArrayItemsAndOneOf(t *testing.T) {
	form := testsupport.EquipmentForm(t).Schema

	items := Resolve("note", form, "equipments", DefaultThreshold)
	want := []Candidate{{Value: "Notebook", Score: 0.67, Label: "Notebook"}}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Fatalf("equipment candidates mismatch (-want +got):\n%s", diff)
	}

	departments := Resolve("comp sci", form, "department", 0.3)
	if len(departments) == 0 || departments[0].Value != "CS" || departments[0].Label != "Computer Science" {
		t.Fatalf("expected CS first, got %+v", departments)
	}
}

func TestResolve_ThresholdMonotonic(t *testing.T) {
	form := testsupport.EquipmentForm(t).Schema

	all := Resolve("desk", form, "equipments", 0)
	if len(all) != 5 {
		t.Fatalf("threshold 0 should return every enumerated candidate, got %d", len(all))
	}

	var previous []Candidate = all
	for _, threshold := range []float64{0.2, 0.4, 0.6, 0.8} {
		current := Resolve("desk", form, "equipments", threshold)
		if len(current) > len(previous) {
			t.Fatalf("raising threshold to %v added candidates", threshold)
		}
		// Survivors keep their relative order.
		idx := 0
		for _, candidate := range previous {
			if idx < len(current) && candidate.Value == current[idx].Value {
				idx++
			}
		}
		if idx != len(current) {
			t.Fatalf("raising threshold to %v reordered survivors: %+v vs %+v", threshold, previous, current)
		}
		previous = current
	}
}

func TestResolve_NoMatch(t *testing.T) {
	form := testsupport.EquipmentForm(t).Schema

	if got := Resolve("zzzz", form, "priority", DefaultThreshold); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
	if got := Resolve("x", form, "unknown", DefaultThreshold); len(got) != 0 {
		t.Fatalf("expected empty result for unknown field, got %#v", got)
	}
	if got := Resolve("x", form, "fullName", 0); len(got) != 0 {
		t.Fatalf("expected empty result for free-text field, got %#v", got)
	}
}

func TestResolve_ItemPropertyTiesFollowPropertyNames(t *testing.T) {
	form := testsupport.ObjectSchema(t, `{
		"type": "object",
		"properties": {
			"parts": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"kind": {"type": "string", "enum": ["xy"]},
						"brand": {"type": "string", "enum": ["yx"]}
					}
				}
			}
		}
	}`)

	got := Resolve("x", form, "parts", 0)
	labels := make([]string, 0, len(got))
	for _, c := range got {
		labels = append(labels, c.Label)
	}
	if diff := cmp.Diff([]string{"yx", "xy"}, labels); diff != "" {
		t.Fatalf("tie order mismatch (-want +got):\n%s", diff)
	}
	if got[0].Score != got[1].Score {
		t.Fatalf("expected tied scores, got %+v", got)
	}
}
