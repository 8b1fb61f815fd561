package forms

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formchat/pkg/jsonschema"
	"github.com/goliatone/go-formchat/pkg/openapi"
	"github.com/goliatone/go-formchat/pkg/schema"
)

// LoadOptions tunes how documents are decoded into forms.
type LoadOptions struct {
	// Strict rejects unknown JSON Schema keywords.
	Strict bool
	// Components restricts OpenAPI documents to the named schemas.
	Components []string
	// ValidateOpenAPI runs the OpenAPI document validator before decoding.
	ValidateOpenAPI bool
}

// IsOpenAPI reports whether raw looks like an OpenAPI 3 document.
func IsOpenAPI(raw []byte) bool {
	var head struct {
		OpenAPI string `yaml:"openapi" json:"openapi"`
	}
	if err := yaml.Unmarshal(raw, &head); err != nil {
		if jsonErr := json.Unmarshal(raw, &head); jsonErr != nil {
			return false
		}
	}
	return strings.HasPrefix(strings.TrimSpace(head.OpenAPI), "3.")
}

// Decode turns one document into forms. OpenAPI documents may yield several
// forms; JSON Schema documents yield one.
func Decode(ctx context.Context, doc schema.Document, opts LoadOptions) ([]*schema.Form, error) {
	if IsOpenAPI(doc.Raw()) {
		decodeOpts := []openapi.DecodeOption{openapi.WithValidation(opts.ValidateOpenAPI)}
		if len(opts.Components) > 0 {
			decodeOpts = append(decodeOpts, openapi.WithComponents(opts.Components...))
		}
		return openapi.Decode(ctx, doc, decodeOpts...)
	}
	form, err := jsonschema.Decode(doc, jsonschema.DecodeOptions{Strict: opts.Strict})
	if err != nil {
		return nil, err
	}
	return []*schema.Form{form}, nil
}

// Load fetches each source, decodes it and registers the resulting forms. It
// stops at the first failure and returns the forms registered so far.
func (r *Registry) Load(ctx context.Context, loader jsonschema.Loader, opts LoadOptions, sources ...schema.Source) ([]*schema.Form, error) {
	var loaded []*schema.Form
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		doc, err := loader.Load(ctx, src)
		if err != nil {
			return loaded, err
		}
		decoded, err := Decode(ctx, doc, opts)
		if err != nil {
			return loaded, fmt.Errorf("forms: %s: %w", src.Location(), err)
		}
		for _, form := range decoded {
			if err := r.Register(form); err != nil {
				return loaded, err
			}
			loaded = append(loaded, form)
		}
	}
	return loaded, nil
}

// SourcesInFS lists the schema documents (.json, .yaml, .yml) directly under
// dir as fs sources, sorted by name.
func SourcesInFS(fsys fs.FS, dir string) ([]schema.Source, error) {
	if dir == "" {
		dir = "."
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("forms: read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(path.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	sources := make([]schema.Source, 0, len(names))
	for _, name := range names {
		sources = append(sources, schema.SourceFromFS(path.Join(dir, name)))
	}
	return sources, nil
}
