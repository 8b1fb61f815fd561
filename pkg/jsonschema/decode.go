package jsonschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formchat/pkg/schema"
)

var supportedSchemaKeys = map[string]struct{}{
	"$schema":          {},
	"$id":              {},
	"$defs":            {},
	"definitions":      {},
	"$ref":             {},
	"$comment":         {},
	"type":             {},
	"properties":       {},
	"required":         {},
	"items":            {},
	"oneOf":            {},
	"enum":             {},
	"const":            {},
	"title":            {},
	"description":      {},
	"default":          {},
	"examples":         {},
	"minimum":          {},
	"maximum":          {},
	"exclusiveMinimum": {},
	"exclusiveMaximum": {},
	"minLength":        {},
	"maxLength":        {},
	"minItems":         {},
	"maxItems":         {},
	"pattern":          {},
	"format":           {},
	"name":             {},
	"version":          {},
}

// DecodeOptions tunes Decode.
type DecodeOptions struct {
	// Name overrides the form name. When empty the payload "name" (or
	// "x-form-name") is used, then the document file name without extension.
	Name string
	// Strict rejects keywords the engine does not understand instead of
	// ignoring them.
	Strict bool
}

// Decode parses a JSON or YAML JSON-Schema document into a Form. Local refs
// (#/$defs/..., #/definitions/...) are inlined before conversion.
func Decode(doc schema.Document, opts DecodeOptions) (*schema.Form, error) {
	payload, err := parsePayload(doc)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveLocalRefs(payload)
	if err != nil {
		return nil, err
	}

	root, err := schemaFromJSONSchema(resolved, "#", opts.Strict)
	if err != nil {
		return nil, err
	}
	if root.Type == "" {
		root.Type = schema.TypeObject
	}
	if root.Type != schema.TypeObject {
		return nil, fmt.Errorf("jsonschema: form root must be an object, got %q", root.Type)
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = strings.TrimSpace(readString(payload, "name"))
	}
	if name == "" {
		name = strings.TrimSpace(readString(payload, "x-form-name"))
	}
	if name == "" {
		base := filepath.Base(doc.Location())
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if name == "" || name == "." {
		return nil, errors.New("jsonschema: form name could not be derived")
	}

	version := strings.TrimSpace(readString(payload, "version"))
	if version == "" {
		version = strings.TrimSpace(readString(payload, "x-version"))
	}
	if version == "" {
		version = schema.DefaultVersion
	}

	return &schema.Form{
		Name:        name,
		Version:     version,
		Title:       root.Title,
		Description: root.Description,
		Schema:      root,
		Definition:  payload,
		Source:      doc.Source(),
	}, nil
}

// DecodeSchema converts an already parsed payload into a Schema. Useful for
// inline field definitions.
func DecodeSchema(payload map[string]any) (schema.Schema, error) {
	resolved, err := resolveLocalRefs(payload)
	if err != nil {
		return schema.Schema{}, err
	}
	return schemaFromJSONSchema(resolved, "#", false)
}

func parsePayload(doc schema.Document) (map[string]any, error) {
	raw := bytes.TrimSpace(doc.Raw())
	if len(raw) == 0 {
		return nil, errors.New("jsonschema: raw schema is empty")
	}

	var payload map[string]any
	switch doc.Encoding() {
	case schema.EncodingYAML:
		if err := yaml.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("jsonschema: parse %s: %w", doc.Location(), err)
		}
	default:
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("jsonschema: parse %s: %w", doc.Location(), err)
		}
	}
	if payload == nil {
		return nil, errors.New("jsonschema: schema is nil")
	}
	return payload, nil
}

func schemaFromJSONSchema(node any, path string, strict bool) (schema.Schema, error) {
	if node == nil {
		return schema.Schema{}, fmt.Errorf("jsonschema: schema is nil at %s", path)
	}
	payload, ok := node.(map[string]any)
	if !ok {
		return schema.Schema{}, fmt.Errorf("jsonschema: schema must be an object at %s", path)
	}

	if ref := strings.TrimSpace(readString(payload, "$ref")); ref != "" {
		return schema.Schema{}, fmt.Errorf("jsonschema: unresolved $ref %q at %s", ref, path)
	}
	if strict {
		if err := validateKeywords(payload, path); err != nil {
			return schema.Schema{}, err
		}
	}

	out := schema.Schema{
		Title:       strings.TrimSpace(readString(payload, "title")),
		Description: strings.TrimSpace(readString(payload, "description")),
		Default:     payload["default"],
		Const:       payload["const"],
		Format:      strings.TrimSpace(readString(payload, "format")),
		Extensions:  extractExtensions(payload),
	}

	typ, err := readType(payload["type"], path)
	if err != nil {
		return schema.Schema{}, err
	}
	out.Type = typ

	if enumRaw, ok := payload["enum"]; ok {
		enumList, ok := enumRaw.([]any)
		if !ok {
			return schema.Schema{}, fmt.Errorf("jsonschema: enum must be an array at %s", path)
		}
		out.Enum = append([]any(nil), enumList...)
	}

	if requiredRaw, ok := payload["required"]; ok {
		list, ok := requiredRaw.([]any)
		if !ok {
			return schema.Schema{}, fmt.Errorf("jsonschema: required must be an array at %s", path)
		}
		required := make([]string, 0, len(list))
		for idx, item := range list {
			str, ok := item.(string)
			if !ok || strings.TrimSpace(str) == "" {
				return schema.Schema{}, fmt.Errorf("jsonschema: required[%d] must be a string at %s", idx, path)
			}
			required = append(required, str)
		}
		out.Required = required
	}

	if out.Minimum, err = readFloat(payload, "minimum", path); err != nil {
		return schema.Schema{}, err
	}
	if out.Maximum, err = readFloat(payload, "maximum", path); err != nil {
		return schema.Schema{}, err
	}
	if out.ExclusiveMinimum, err = readExclusive(payload, "exclusiveMinimum", "minimum", path); err != nil {
		return schema.Schema{}, err
	}
	if out.ExclusiveMaximum, err = readExclusive(payload, "exclusiveMaximum", "maximum", path); err != nil {
		return schema.Schema{}, err
	}
	if out.MinLength, err = readInt(payload, "minLength", path); err != nil {
		return schema.Schema{}, err
	}
	if out.MaxLength, err = readInt(payload, "maxLength", path); err != nil {
		return schema.Schema{}, err
	}
	if out.MinItems, err = readInt(payload, "minItems", path); err != nil {
		return schema.Schema{}, err
	}
	if out.MaxItems, err = readInt(payload, "maxItems", path); err != nil {
		return schema.Schema{}, err
	}

	if patternRaw, ok := payload["pattern"]; ok {
		pattern, ok := patternRaw.(string)
		if !ok {
			return schema.Schema{}, fmt.Errorf("jsonschema: pattern must be a string at %s", path)
		}
		out.Pattern = pattern
	}

	if propertiesRaw, ok := payload["properties"]; ok {
		props, ok := propertiesRaw.(map[string]any)
		if !ok {
			return schema.Schema{}, fmt.Errorf("jsonschema: properties must be an object at %s", path)
		}
		out.Properties = make(map[string]schema.Schema, len(props))
		for _, key := range sortedKeys(props) {
			converted, err := schemaFromJSONSchema(props[key], joinPath(path, "properties", key), strict)
			if err != nil {
				return schema.Schema{}, err
			}
			out.Properties[key] = converted
		}
	}

	if itemsRaw, ok := payload["items"]; ok {
		switch typed := itemsRaw.(type) {
		case map[string]any:
			converted, err := schemaFromJSONSchema(typed, joinPath(path, "items"), strict)
			if err != nil {
				return schema.Schema{}, err
			}
			out.Items = &converted
		case []any:
			return schema.Schema{}, fmt.Errorf("jsonschema: tuple items are not supported at %s", path)
		default:
			return schema.Schema{}, fmt.Errorf("jsonschema: items must be an object at %s", path)
		}
	}

	if oneOfRaw, ok := payload["oneOf"]; ok {
		list, ok := oneOfRaw.([]any)
		if !ok {
			return schema.Schema{}, fmt.Errorf("jsonschema: oneOf must be an array at %s", path)
		}
		out.OneOf = make([]schema.Schema, 0, len(list))
		for idx, entry := range list {
			converted, err := schemaFromJSONSchema(entry, joinPath(path, "oneOf", fmt.Sprintf("%d", idx)), strict)
			if err != nil {
				return schema.Schema{}, err
			}
			out.OneOf = append(out.OneOf, converted)
		}
	}

	return out, nil
}

func readType(raw any, path string) (string, error) {
	switch value := raw.(type) {
	case nil:
		return "", nil
	case string:
		typ := strings.TrimSpace(value)
		if typ != "" && !isAllowedType(typ) {
			return "", fmt.Errorf("jsonschema: unsupported type %q at %s", typ, path)
		}
		return typ, nil
	case []any:
		// ["string", "null"] style nullable declarations keep the first
		// concrete type.
		for _, item := range value {
			str, _ := item.(string)
			if str == "" || str == "null" {
				continue
			}
			if !isAllowedType(str) {
				return "", fmt.Errorf("jsonschema: unsupported type %q at %s", str, path)
			}
			return str, nil
		}
		return "", nil
	default:
		return "", fmt.Errorf("jsonschema: type must be a string at %s", path)
	}
}

func readFloat(payload map[string]any, key, path string) (*float64, error) {
	raw, ok := payload[key]
	if !ok {
		return nil, nil
	}
	value, ok := toFloat(raw)
	if !ok {
		return nil, fmt.Errorf("jsonschema: %s must be a number at %s", key, path)
	}
	return &value, nil
}

// readExclusive accepts both the draft-04 boolean form (which turns the
// sibling bound exclusive) and the numeric form.
func readExclusive(payload map[string]any, key, sibling, path string) (*float64, error) {
	raw, ok := payload[key]
	if !ok {
		return nil, nil
	}
	if flag, ok := raw.(bool); ok {
		if !flag {
			return nil, nil
		}
		bound, ok := toFloat(payload[sibling])
		if !ok {
			return nil, fmt.Errorf("jsonschema: boolean %s requires %s at %s", key, sibling, path)
		}
		return &bound, nil
	}
	value, ok := toFloat(raw)
	if !ok {
		return nil, fmt.Errorf("jsonschema: %s must be a number at %s", key, path)
	}
	return &value, nil
}

func readInt(payload map[string]any, key, path string) (*int, error) {
	raw, ok := payload[key]
	if !ok {
		return nil, nil
	}
	value, ok := toInt(raw)
	if !ok || value < 0 {
		return nil, fmt.Errorf("jsonschema: %s must be a non-negative integer at %s", key, path)
	}
	return &value, nil
}

func validateKeywords(payload map[string]any, path string) error {
	for _, key := range sortedKeys(payload) {
		if isVendorExtension(key) {
			continue
		}
		if _, ok := supportedSchemaKeys[key]; ok {
			continue
		}
		return fmt.Errorf("jsonschema: unsupported keyword %q at %s", key, path)
	}
	return nil
}

func isVendorExtension(key string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(key)), "x-")
}

func extractExtensions(payload map[string]any) map[string]any {
	var extensions map[string]any
	for _, key := range sortedKeys(payload) {
		if !isVendorExtension(key) {
			continue
		}
		if extensions == nil {
			extensions = make(map[string]any)
		}
		extensions[key] = payload[key]
	}
	return extensions
}

func readString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	str, _ := payload[key].(string)
	return str
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
		return 0, false
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	default:
		return 0, false
	}
}

func isAllowedType(value string) bool {
	switch value {
	case schema.TypeObject, schema.TypeArray, schema.TypeString, schema.TypeInteger, schema.TypeNumber, schema.TypeBoolean:
		return true
	default:
		return false
	}
}

func joinPath(path string, segments ...string) string {
	if path == "" {
		path = "#"
	}
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		path = path + "/" + escapeJSONPointer(segment)
	}
	return path
}

func escapeJSONPointer(value string) string {
	replacer := strings.NewReplacer("~", "~0", "/", "~1")
	return replacer.Replace(value)
}

func sortedKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
