package validation

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-formchat/pkg/schema"
)

// Outcome is the result of validating one field.
type Outcome struct {
	OK     bool
	Reason string
}

func pass() Outcome { return Outcome{OK: true} }

func fail(format string, args ...any) Outcome {
	return Outcome{Reason: fmt.Sprintf(format, args...)}
}

// ValidateField checks value against the definition of name inside form, an
// object schema whose properties are the form fields. Checks run in a fixed
// order and stop at the first failure.
func ValidateField(name string, value any, form schema.Schema) Outcome {
	def, ok := form.Property(name)
	if !ok {
		return fail("Field '%s' not found in form schema", name)
	}

	if isEmpty(value) {
		if form.IsRequired(name) {
			return fail("Field '%s' is required", name)
		}
		return pass()
	}

	if def.Type != "" && !matchesType(def.Type, value) {
		return fail("Field '%s' must be of type %s, got %s", name, def.Type, typeName(value))
	}

	if def.Type == schema.TypeString {
		if str, ok := value.(string); ok {
			if out := checkString(name, str, def); !out.OK {
				return out
			}
		}
	}

	if def.Type == schema.TypeInteger || def.Type == schema.TypeNumber {
		if num, ok := toFloat(value); ok {
			if out := checkNumber(name, num, def); !out.OK {
				return out
			}
		}
	}

	if len(def.Enum) > 0 && !containsValue(def.Enum, value) {
		return fail("Field '%s' must be one of: %s", name, joinValues(def.Enum))
	}
	if options := def.ConstOptions(); len(options) > 0 {
		values := make([]any, 0, len(options))
		for _, option := range options {
			values = append(values, option.Value)
		}
		if !containsValue(values, value) {
			return fail("Field '%s' must be one of: %s", name, joinValues(values))
		}
	}

	if def.Type == schema.TypeArray {
		if items, ok := toSlice(value); ok {
			if out := checkArray(name, items, def); !out.OK {
				return out
			}
		}
	}

	return pass()
}

func checkString(name, value string, def schema.Schema) Outcome {
	if def.Pattern != "" {
		re, err := compilePattern(def.Pattern)
		if err != nil {
			return fail("Field '%s' declares an invalid pattern: %s", name, def.Pattern)
		}
		if !re.MatchString(value) {
			return fail("Field '%s' does not match required pattern: %s", name, def.Pattern)
		}
	}

	length := utf8.RuneCountInString(value)
	if def.MinLength != nil && length < *def.MinLength {
		return fail("Field '%s' must be at least %d characters", name, *def.MinLength)
	}
	if def.MaxLength != nil && length > *def.MaxLength {
		return fail("Field '%s' must be at most %d characters", name, *def.MaxLength)
	}

	switch def.Format {
	case schema.FormatDate:
		if !isDate(value) {
			return fail("Field '%s' must be a valid date (YYYY-MM-DD)", name)
		}
	case schema.FormatTime:
		if !isTime(value) {
			return fail("Field '%s' must be a valid time (HH:MM)", name)
		}
	case schema.FormatDateTime:
		if !isDateTime(value) {
			return fail("Field '%s' must be a valid ISO 8601 datetime", name)
		}
	case schema.FormatEmail:
		if !isEmail(value) {
			return fail("Field '%s' must be a valid email address", name)
		}
	}
	return pass()
}

func checkNumber(name string, value float64, def schema.Schema) Outcome {
	if def.Minimum != nil && value < *def.Minimum {
		return fail("Field '%s' must be at least %s", name, formatNumber(*def.Minimum))
	}
	if def.Maximum != nil && value > *def.Maximum {
		return fail("Field '%s' must be at most %s", name, formatNumber(*def.Maximum))
	}
	if def.ExclusiveMinimum != nil && value <= *def.ExclusiveMinimum {
		return fail("Field '%s' must be greater than %s", name, formatNumber(*def.ExclusiveMinimum))
	}
	if def.ExclusiveMaximum != nil && value >= *def.ExclusiveMaximum {
		return fail("Field '%s' must be less than %s", name, formatNumber(*def.ExclusiveMaximum))
	}
	return pass()
}

func checkArray(name string, items []any, def schema.Schema) Outcome {
	if def.MinItems != nil && len(items) < *def.MinItems {
		return fail("Field '%s' must have at least %d items", name, *def.MinItems)
	}
	if def.MaxItems != nil && len(items) > *def.MaxItems {
		return fail("Field '%s' must have at most %d items", name, *def.MaxItems)
	}

	if def.Items == nil || def.Items.Type != schema.TypeObject {
		return pass()
	}
	for idx, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		keys := make([]string, 0, len(obj))
		for key := range obj {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, declared := def.Items.Property(key); !declared {
				continue
			}
			if out := ValidateField(key, obj[key], def.Items.Single(key)); !out.OK {
				return fail("Array item %d: %s", idx, out.Reason)
			}
		}
	}
	return pass()
}

func isEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	default:
		rv := reflect.ValueOf(value)
		return rv.Kind() == reflect.Slice && rv.Len() == 0
	}
}

func matchesType(typ string, value any) bool {
	switch typ {
	case schema.TypeString:
		_, ok := value.(string)
		return ok
	case schema.TypeInteger:
		num, ok := toFloat(value)
		return ok && num == math.Trunc(num) && !math.IsInf(num, 0)
	case schema.TypeNumber:
		_, ok := toFloat(value)
		return ok
	case schema.TypeBoolean:
		_, ok := value.(bool)
		return ok
	case schema.TypeArray:
		_, ok := toSlice(value)
		return ok
	case schema.TypeObject:
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	}
	if num, ok := toFloat(value); ok {
		if num == math.Trunc(num) {
			return "integer"
		}
		return "number"
	}
	if _, ok := toSlice(value); ok {
		return "array"
	}
	return fmt.Sprintf("%T", value)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case interface{ Float64() (float64, error) }:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// containsValue compares numbers numerically so 1 and 1.0 match, and
// everything else structurally.
func containsValue(allowed []any, value any) bool {
	num, isNum := toFloat(value)
	for _, candidate := range allowed {
		if isNum {
			if other, ok := toFloat(candidate); ok && other == num {
				return true
			}
			continue
		}
		if reflect.DeepEqual(candidate, value) {
			return true
		}
	}
	return false
}

func joinValues(values []any) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		if num, ok := toFloat(value); ok {
			parts = append(parts, formatNumber(num))
			continue
		}
		parts = append(parts, fmt.Sprint(value))
	}
	return strings.Join(parts, ", ")
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
