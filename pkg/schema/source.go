package schema

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Source names where a form schema came from: a path on disk, an entry in
// the forms fs.FS, a remote URL, or a payload handed over directly. The
// loader dispatches on Kind; Location appears in error messages and seeds
// the form name when the schema declares none.
type Source interface {
	Kind() SourceKind
	Location() string
}

// SourceKind selects the loader strategy for a Source.
type SourceKind string

const (
	SourceKindFile   SourceKind = "file"
	SourceKindFS     SourceKind = "fs"
	SourceKindURL    SourceKind = "url"
	SourceKindInline SourceKind = "inline"
)

type source struct {
	kind     SourceKind
	location string
}

func (s source) Kind() SourceKind { return s.kind }
func (s source) Location() string { return s.location }
func (s source) String() string   { return string(s.kind) + ":" + s.location }

// SourceFromFile points at a schema file on disk.
func SourceFromFile(path string) Source {
	return source{kind: SourceKindFile, location: filepath.Clean(path)}
}

// SourceFromFS points at a schema inside the fs.FS given to the loader.
func SourceFromFS(name string) Source {
	return source{kind: SourceKindFS, location: name}
}

// SourceFromURL points at a remote schema. An empty or malformed URL panics;
// use ParseSource for user input.
func SourceFromURL(raw string) Source {
	src, err := urlSource(raw)
	if err != nil {
		panic(err)
	}
	return src
}

// SourceInline labels a payload supplied in memory, such as a test fixture
// or an uploaded schema.
func SourceInline(name string) Source {
	return source{kind: SourceKindInline, location: name}
}

// ParseSource maps a command-line or config value to a Source: http(s)
// URLs become URL sources, anything else a file path.
func ParseSource(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("schema: empty source")
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return urlSource(raw)
	}
	return SourceFromFile(raw), nil
}

func urlSource(raw string) (Source, error) {
	if raw == "" {
		return nil, fmt.Errorf("schema: empty URL source")
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		return nil, fmt.Errorf("schema: invalid URL %q: %w", raw, err)
	}
	return source{kind: SourceKindURL, location: raw}, nil
}
