// Package lookup resolves partial or misspelled user text against the values
// a field schema allows.
package lookup

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/text/unicode/norm"

	"github.com/goliatone/go-formchat/pkg/schema"
)

// DefaultThreshold is the minimum similarity used when callers do not pick
// one.
const DefaultThreshold = 0.6

// Candidate is an allowed value ranked against a query.
type Candidate struct {
	Value any     `json:"value"`
	Score float64 `json:"confidence"`
	Label string  `json:"label"`
}

// Resolve ranks the allowed values of field against query and keeps those
// whose similarity reaches threshold. The candidate universe is the field's
// enum; else, for arrays, the enums of the item properties; else the const
// branches of a oneOf, matched on their titles. Survivors are sorted by score
// descending with ties in declaration order. No match yields an empty slice.
func Resolve(query string, form schema.Schema, field string, threshold float64) []Candidate {
	def, ok := form.Property(field)
	if !ok {
		return []Candidate{}
	}

	var options []schema.Option
	switch {
	case len(def.Enum) > 0:
		options = enumOptions(def.Enum)
	case def.Type == schema.TypeArray && def.Items != nil:
		for _, name := range def.Items.PropertyNames() {
			options = append(options, enumOptions(def.Items.Properties[name].Enum)...)
		}
	case len(def.OneOf) > 0:
		options = def.ConstOptions()
	}

	results := make([]Candidate, 0, len(options))
	for _, option := range options {
		score := Ratio(query, option.Label)
		if score < threshold {
			continue
		}
		results = append(results, Candidate{
			Value: option.Value,
			Score: math.Round(score*100) / 100,
			Label: option.Label,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// Ratio returns 2*M/T where M is the number of runes in the longest common
// subsequence of the normalized inputs and T their combined rune count. Two
// empty strings are identical.
func Ratio(a, b string) float64 {
	left := normalize(a)
	right := normalize(b)
	total := utf8.RuneCountInString(left) + utf8.RuneCountInString(right)
	if total == 0 {
		return 1
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	matched := 0
	for _, diff := range dmp.DiffMain(left, right, false) {
		if diff.Type == diffmatchpatch.DiffEqual {
			matched += utf8.RuneCountInString(diff.Text)
		}
	}
	return 2 * float64(matched) / float64(total)
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(value)))
}

func enumOptions(values []any) []schema.Option {
	out := make([]schema.Option, 0, len(values))
	for _, value := range values {
		out = append(out, schema.Option{Value: value, Label: fmt.Sprint(value)})
	}
	return out
}
