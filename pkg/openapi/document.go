package openapi

import "github.com/goliatone/go-formchat/pkg/schema"

// Document wraps the raw OpenAPI payload and its origin.
type Document = schema.Document

// Source identifies where an OpenAPI document originated.
type Source = schema.Source

// NewDocument constructs a Document wrapper while validating the inputs.
func NewDocument(src Source, raw []byte) (Document, error) {
	return schema.NewDocument(src, raw)
}

// MustNewDocument panics if the document cannot be created. Useful for tests.
func MustNewDocument(src Source, raw []byte) Document {
	return schema.MustNewDocument(src, raw)
}
