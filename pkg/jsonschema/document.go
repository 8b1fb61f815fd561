package jsonschema

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/goliatone/go-formchat/pkg/schema"
)

// Document wraps the raw JSON Schema payload and its origin.
type Document = schema.Document

// Source identifies where a schema document originated.
type Source = schema.Source

// NewDocument constructs a Document wrapper while validating the inputs.
func NewDocument(src Source, raw []byte) (Document, error) {
	return schema.NewDocument(src, raw)
}

// MustNewDocument panics if the document cannot be created. Useful for tests.
func MustNewDocument(src Source, raw []byte) Document {
	return schema.MustNewDocument(src, raw)
}

// Loader fetches schema documents. The implementation lives in
// internal/loader.
type Loader interface {
	Load(ctx context.Context, src Source) (Document, error)
}

// LoaderOptions configures how a Loader resolves sources.
type LoaderOptions struct {
	// FileSystem serves SourceKindFS locations.
	FileSystem fs.FS
	// HTTPClient enables URL sources. Nil disables them unless
	// AllowHTTPFallback is set.
	HTTPClient *http.Client
	// AllowHTTPFallback enables URL sources with a default client.
	AllowHTTPFallback bool
	// RequestTimeout caps remote fetch durations.
	RequestTimeout time.Duration
	// Cache keeps fetched payloads so each source is read once per loader.
	Cache bool
	// MaxBytes bounds remote payloads. Zero uses the loader default.
	MaxBytes int64
}
