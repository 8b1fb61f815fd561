package formchat

import (
	"context"
	"embed"
	"io/fs"

	internalLoader "github.com/goliatone/go-formchat/internal/loader"
	"github.com/goliatone/go-formchat/pkg/forms"
	"github.com/goliatone/go-formchat/pkg/jsonschema"
)

//go:embed forms/*.json
var embeddedForms embed.FS

// FormsFS exposes the bundled form schemas so binaries work without a forms
// directory on disk.
func FormsFS() fs.FS {
	sub, err := fs.Sub(embeddedForms, "forms")
	if err != nil {
		return embeddedForms
	}
	return sub
}

// NewLoader constructs a loader using the internal implementation while keeping
// the concrete type hidden from consumers.
func NewLoader(options jsonschema.LoaderOptions) jsonschema.Loader {
	return internalLoader.New(options)
}

// LoadForms registers every schema document directly under dir of fsys into a
// new registry.
func LoadForms(ctx context.Context, fsys fs.FS, dir string, opts forms.LoadOptions, registryOptions ...forms.Option) (*forms.Registry, error) {
	sources, err := forms.SourcesInFS(fsys, dir)
	if err != nil {
		return nil, err
	}
	registry := forms.NewRegistry(registryOptions...)
	loader := NewLoader(jsonschema.LoaderOptions{FileSystem: fsys})
	if _, err := registry.Load(ctx, loader, opts, sources...); err != nil {
		return nil, err
	}
	return registry, nil
}
