package schema

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
)

// Encoding is the serialisation of a form schema payload.
type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingYAML Encoding = "yaml"
)

// Document is the raw bytes of one form schema together with its Source.
// Decoders read it; nothing mutates it after construction.
type Document struct {
	source Source
	raw    []byte
}

// NewDocument copies raw and pairs it with src. Both are required.
func NewDocument(src Source, raw []byte) (Document, error) {
	switch {
	case src == nil:
		return Document{}, errors.New("schema: source is required")
	case len(bytes.TrimSpace(raw)) == 0:
		return Document{}, errors.New("schema: raw document is empty")
	}
	return Document{source: src, raw: bytes.Clone(raw)}, nil
}

// MustNewDocument is NewDocument for fixtures; it panics on error.
func MustNewDocument(src Source, raw []byte) Document {
	doc, err := NewDocument(src, raw)
	if err != nil {
		panic(err)
	}
	return doc
}

func (d Document) Source() Source { return d.source }

// Raw returns a copy of the payload.
func (d Document) Raw() []byte { return bytes.Clone(d.raw) }

// Location is the source location, or "" for a zero Document.
func (d Document) Location() string {
	if d.source == nil {
		return ""
	}
	return d.source.Location()
}

// Encoding trusts a .json/.yaml/.yml extension and otherwise treats payloads
// opening with '{' or '[' as JSON.
func (d Document) Encoding() Encoding {
	switch strings.ToLower(filepath.Ext(d.Location())) {
	case ".yaml", ".yml":
		return EncodingYAML
	case ".json":
		return EncodingJSON
	}
	if trimmed := bytes.TrimSpace(d.raw); len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return EncodingJSON
	}
	return EncodingYAML
}
