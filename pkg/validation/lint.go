package validation

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formchat/pkg/jsonschema"
	"github.com/goliatone/go-formchat/pkg/schema"
)

// SchemaIssue represents a lint finding with optional location metadata.
type SchemaIssue struct {
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// SchemaValidationResult captures lint outcomes.
type SchemaValidationResult struct {
	Valid  bool          `json:"valid"`
	Issues []SchemaIssue `json:"issues,omitempty"`
}

// LintOptions configures LintJSONSchema.
type LintOptions struct {
	// Strict rejects keywords the engine does not understand.
	Strict bool
}

// LintJSONSchema decodes a raw JSON or YAML form schema and lints the result.
// Decode failures are reported as a single issue.
func LintJSONSchema(src schema.Source, raw []byte, opts LintOptions) SchemaValidationResult {
	if src == nil {
		src = schema.SourceInline("schema.json")
	}

	doc, err := schema.NewDocument(src, raw)
	if err != nil {
		return SchemaValidationResult{Issues: []SchemaIssue{issueFromError(err)}}
	}
	form, err := jsonschema.Decode(doc, jsonschema.DecodeOptions{Strict: opts.Strict})
	if err != nil {
		return SchemaValidationResult{Issues: []SchemaIssue{issueFromError(err)}}
	}
	return ValidateForm(form.Schema)
}

// ValidateForm lints a decoded form schema: patterns must compile, bounds
// must be ordered, required names must be declared and enum values must fit
// the declared type.
func ValidateForm(form schema.Schema) SchemaValidationResult {
	var issues []SchemaIssue
	lintNode(form, "#", &issues)
	return SchemaValidationResult{Valid: len(issues) == 0, Issues: issues}
}

func lintNode(node schema.Schema, path string, issues *[]SchemaIssue) {
	report := func(format string, args ...any) {
		*issues = append(*issues, SchemaIssue{
			Path:    path,
			Field:   fieldPathFromPointer(path),
			Message: fmt.Sprintf(format, args...),
		})
	}

	if node.Pattern != "" {
		if _, err := compilePattern(node.Pattern); err != nil {
			report("pattern %q does not compile: %v", node.Pattern, err)
		}
	}
	if node.Minimum != nil && node.Maximum != nil && *node.Minimum > *node.Maximum {
		report("minimum %s exceeds maximum %s", formatNumber(*node.Minimum), formatNumber(*node.Maximum))
	}
	if node.ExclusiveMinimum != nil && node.ExclusiveMaximum != nil && *node.ExclusiveMinimum >= *node.ExclusiveMaximum {
		report("exclusiveMinimum %s must be below exclusiveMaximum %s", formatNumber(*node.ExclusiveMinimum), formatNumber(*node.ExclusiveMaximum))
	}
	if node.MinLength != nil && node.MaxLength != nil && *node.MinLength > *node.MaxLength {
		report("minLength %d exceeds maxLength %d", *node.MinLength, *node.MaxLength)
	}
	if node.MinItems != nil && node.MaxItems != nil && *node.MinItems > *node.MaxItems {
		report("minItems %d exceeds maxItems %d", *node.MinItems, *node.MaxItems)
	}
	for _, name := range node.Required {
		if _, ok := node.Property(name); !ok {
			report("required field %q is not declared in properties", name)
		}
	}
	if node.Type != "" {
		for idx, value := range node.Enum {
			if !matchesType(node.Type, value) {
				report("enum[%d] %v is not of type %s", idx, value, node.Type)
			}
		}
	}
	switch node.Format {
	case "", schema.FormatDate, schema.FormatTime, schema.FormatDateTime, schema.FormatEmail:
	default:
		report("format %q is not enforced by the validator", node.Format)
	}

	for _, name := range node.PropertyNames() {
		lintNode(node.Properties[name], path+"/properties/"+escapePointer(name), issues)
	}
	if node.Items != nil {
		lintNode(*node.Items, path+"/items", issues)
	}
	for idx, branch := range node.OneOf {
		lintNode(branch, fmt.Sprintf("%s/oneOf/%d", path, idx), issues)
	}
}

func issueFromError(err error) SchemaIssue {
	if err == nil {
		return SchemaIssue{Message: "unknown error"}
	}

	msg := strings.TrimSpace(err.Error())
	path := extractJSONPointer(msg)
	if path != "" {
		msg = strings.Replace(msg, " at "+path, "", 1)
	}
	msg = strings.TrimPrefix(msg, "jsonschema: ")
	msg = strings.TrimPrefix(msg, "schema: ")
	msg = strings.TrimSpace(msg)

	return SchemaIssue{
		Path:    path,
		Field:   fieldPathFromPointer(path),
		Message: msg,
	}
}

func extractJSONPointer(message string) string {
	if message == "" {
		return ""
	}
	if idx := strings.LastIndex(message, " at #"); idx >= 0 {
		return trimPointer(strings.TrimSpace(message[idx+4:]))
	}
	if idx := strings.LastIndex(message, "#/"); idx >= 0 {
		return trimPointer(strings.TrimSpace(message[idx:]))
	}
	return ""
}

func trimPointer(pointer string) string {
	if pointer == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(pointer, ".)];,\""))
}

func escapePointer(value string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(value)
}

// fieldPathFromPointer turns "#/properties/equipments/items/properties/type"
// into the dotted field path "equipments.items.type".
func fieldPathFromPointer(pointer string) string {
	trimmed := strings.TrimSpace(pointer)
	trimmed = strings.TrimPrefix(trimmed, "#")
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return ""
	}

	parts := strings.Split(trimmed, "/")
	out := make([]string, 0, len(parts))
	for idx := 0; idx < len(parts); idx++ {
		segment := strings.ReplaceAll(parts[idx], "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		switch segment {
		case "properties":
			if idx+1 < len(parts) {
				next := strings.ReplaceAll(parts[idx+1], "~1", "/")
				out = append(out, strings.ReplaceAll(next, "~0", "~"))
				idx++
			}
		case "items":
			out = append(out, "items")
		case "oneOf":
			if idx+1 < len(parts) && isNumeric(parts[idx+1]) {
				idx++
			}
		default:
			if segment != "" {
				out = append(out, segment)
			}
		}
	}
	return strings.Join(out, ".")
}

func isNumeric(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
