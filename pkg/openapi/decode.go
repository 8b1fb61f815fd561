package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formchat/pkg/schema"
)

// DecodeOptions tunes Decode.
type DecodeOptions struct {
	// Components limits the exported forms to the named component schemas.
	// Empty exports every object schema.
	Components []string
	// Validate runs the kin-openapi document validator before conversion.
	Validate bool
}

// DecodeOption mutates DecodeOptions.
type DecodeOption func(*DecodeOptions)

// WithComponents restricts Decode to the named component schemas.
func WithComponents(names ...string) DecodeOption {
	return func(opts *DecodeOptions) {
		opts.Components = append(opts.Components, names...)
	}
}

// WithValidation toggles document validation.
func WithValidation(enabled bool) DecodeOption {
	return func(opts *DecodeOptions) {
		opts.Validate = enabled
	}
}

// Decode loads an OpenAPI document and converts each selected object schema
// under components.schemas into a Form. Forms are returned sorted by name and
// share the document info.version.
func Decode(ctx context.Context, doc Document, options ...DecodeOption) ([]*schema.Form, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := DecodeOptions{}
	for _, opt := range options {
		opt(&cfg)
	}

	raw := doc.Raw()
	if len(raw) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}

	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if cfg.Validate {
		if err := spec.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi: validate: %w", err)
		}
	}
	if spec.Components == nil || len(spec.Components.Schemas) == 0 {
		return nil, errors.New("openapi: document does not declare components.schemas")
	}

	version := schema.DefaultVersion
	if spec.Info != nil && strings.TrimSpace(spec.Info.Version) != "" {
		version = strings.TrimSpace(spec.Info.Version)
	}

	names := cfg.Components
	if len(names) == 0 {
		for name := range spec.Components.Schemas {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	forms := make([]*schema.Form, 0, len(names))
	for _, name := range names {
		ref, ok := spec.Components.Schemas[name]
		if !ok {
			return nil, fmt.Errorf("openapi: component schema %q not found", name)
		}
		conv := converter{visiting: make(map[*openapi3.Schema]struct{})}
		root, err := conv.convert(ref, "#/components/schemas/"+name)
		if err != nil {
			return nil, err
		}
		if root.Type != schema.TypeObject {
			if len(cfg.Components) > 0 {
				return nil, fmt.Errorf("openapi: component schema %q is not an object", name)
			}
			continue
		}
		forms = append(forms, &schema.Form{
			Name:        name,
			Version:     version,
			Title:       root.Title,
			Description: root.Description,
			Schema:      root,
			Definition:  definitionOf(ref),
			Source:      doc.Source(),
		})
	}
	if len(forms) == 0 {
		return nil, errors.New("openapi: no object schemas extracted")
	}
	return forms, nil
}

type converter struct {
	visiting map[*openapi3.Schema]struct{}
}

func (c converter) convert(ref *openapi3.SchemaRef, path string) (schema.Schema, error) {
	if ref == nil || ref.Value == nil {
		return schema.Schema{}, fmt.Errorf("openapi: unresolved schema at %s", path)
	}
	src := ref.Value
	if _, cyclic := c.visiting[src]; cyclic {
		return schema.Schema{}, fmt.Errorf("openapi: recursive schema at %s", path)
	}
	c.visiting[src] = struct{}{}
	defer delete(c.visiting, src)

	out := schema.Schema{
		Type:        firstSchemaType(src.Type),
		Format:      src.Format,
		Title:       src.Title,
		Description: src.Description,
		Default:     src.Default,
		Pattern:     src.Pattern,
		Extensions:  extractExtensions(src.Extensions),
	}
	if out.Type == "" && len(src.Properties) > 0 {
		out.Type = schema.TypeObject
	}
	if len(src.Required) > 0 {
		out.Required = append([]string(nil), src.Required...)
	}
	if len(src.Enum) > 0 {
		out.Enum = append([]any(nil), src.Enum...)
	}

	if src.Min != nil {
		value := *src.Min
		if src.ExclusiveMin {
			out.ExclusiveMinimum = &value
		} else {
			out.Minimum = &value
		}
	}
	if src.Max != nil {
		value := *src.Max
		if src.ExclusiveMax {
			out.ExclusiveMaximum = &value
		} else {
			out.Maximum = &value
		}
	}
	if src.MinLength != 0 {
		value := int(src.MinLength)
		out.MinLength = &value
	}
	if src.MaxLength != nil {
		value := int(*src.MaxLength)
		out.MaxLength = &value
	}
	if src.MinItems != 0 {
		value := int(src.MinItems)
		out.MinItems = &value
	}
	if src.MaxItems != nil {
		value := int(*src.MaxItems)
		out.MaxItems = &value
	}

	if len(src.Properties) > 0 {
		out.Properties = make(map[string]schema.Schema, len(src.Properties))
		for name, property := range src.Properties {
			converted, err := c.convert(property, path+"/properties/"+name)
			if err != nil {
				return schema.Schema{}, err
			}
			out.Properties[name] = converted
		}
	}
	if src.Items != nil {
		items, err := c.convert(src.Items, path+"/items")
		if err != nil {
			return schema.Schema{}, err
		}
		out.Items = &items
	}
	if len(src.OneOf) > 0 {
		out.OneOf = make([]schema.Schema, 0, len(src.OneOf))
		for idx, branch := range src.OneOf {
			converted, err := c.convert(branch, fmt.Sprintf("%s/oneOf/%d", path, idx))
			if err != nil {
				return schema.Schema{}, err
			}
			// OpenAPI 3.0 has no const; a single-valued enum plays that role.
			if converted.Const == nil && len(converted.Enum) == 1 {
				converted.Const = converted.Enum[0]
			}
			out.OneOf = append(out.OneOf, converted)
		}
	}
	return out, nil
}

func firstSchemaType(types *openapi3.Types) string {
	if types == nil {
		return ""
	}
	for _, value := range types.Slice() {
		if value != "" && value != "null" {
			return value
		}
	}
	return ""
}

func extractExtensions(raw map[string]any) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	result := make(map[string]any, len(raw))
	for key, value := range raw {
		if strings.HasPrefix(key, "x-") {
			result[key] = value
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// definitionOf renders a component schema as a generic JSON object. Nested
// refs stay as $ref pointers.
func definitionOf(ref *openapi3.SchemaRef) map[string]any {
	if ref == nil || ref.Value == nil {
		return nil
	}
	raw, err := json.Marshal(ref.Value)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
