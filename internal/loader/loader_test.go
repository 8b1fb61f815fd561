package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-formchat/pkg/jsonschema"
	"github.com/goliatone/go-formchat/pkg/schema"
)

const minimalSchema = `{"name": "minimal", "type": "object", "properties": {}}`

func TestLoader_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minimal.json")
	if err := os.WriteFile(path, []byte(minimalSchema), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	doc, err := New(jsonschema.LoaderOptions{}).Load(context.Background(), schema.SourceFromFile(path))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(doc.Raw()) != minimalSchema {
		t.Fatalf("unexpected payload %q", doc.Raw())
	}
}

func TestLoader_FS(t *testing.T) {
	files := fstest.MapFS{"forms/minimal.json": {Data: []byte(minimalSchema)}}
	l := New(jsonschema.LoaderOptions{FileSystem: files})

	doc, err := l.Load(context.Background(), schema.SourceFromFS("forms/minimal.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Location() != "forms/minimal.json" {
		t.Fatalf("unexpected location %q", doc.Location())
	}

	_, err = l.Load(context.Background(), schema.SourceFromFS("forms/missing.json"))
	if err == nil || !strings.Contains(err.Error(), "forms/missing.json") {
		t.Fatalf("expected missing file error mentioning location, got %v", err)
	}
}

func TestLoader_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(minimalSchema))
	}))
	defer server.Close()

	disabled := New(jsonschema.LoaderOptions{})
	if _, err := disabled.Load(context.Background(), schema.SourceFromURL(server.URL+"/minimal.json")); err == nil {
		t.Fatalf("expected http disabled error")
	}

	enabled := New(jsonschema.LoaderOptions{HTTPClient: server.Client()})
	doc, err := enabled.Load(context.Background(), schema.SourceFromURL(server.URL+"/minimal.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(doc.Raw()) != minimalSchema {
		t.Fatalf("unexpected payload %q", doc.Raw())
	}

	if _, err := enabled.Load(context.Background(), schema.SourceFromURL(server.URL+"/missing.json")); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestLoader_InlineUnsupported(t *testing.T) {
	_, err := New(jsonschema.LoaderOptions{}).Load(context.Background(), schema.SourceInline("inline"))
	if err == nil || !strings.Contains(err.Error(), "unsupported source kind") {
		t.Fatalf("expected unsupported kind error, got %v", err)
	}
}

func TestLoader_CacheAndForget(t *testing.T) {
	files := fstest.MapFS{"minimal.json": {Data: []byte(minimalSchema)}}
	l := New(jsonschema.LoaderOptions{FileSystem: files, Cache: true})
	src := schema.SourceFromFS("minimal.json")

	if _, err := l.Load(context.Background(), src); err != nil {
		t.Fatalf("load: %v", err)
	}
	files["minimal.json"] = &fstest.MapFile{Data: []byte(`{"name": "changed", "type": "object"}`)}

	doc, err := l.Load(context.Background(), src)
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if string(doc.Raw()) != minimalSchema {
		t.Fatalf("expected cached payload, got %q", doc.Raw())
	}

	l.Forget(src)
	doc, err = l.Load(context.Background(), src)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !strings.Contains(string(doc.Raw()), "changed") {
		t.Fatalf("expected fresh payload after Forget, got %q", doc.Raw())
	}
}

func TestLoader_RejectsUnknownExtension(t *testing.T) {
	files := fstest.MapFS{"notes.txt": {Data: []byte("hello")}}
	_, err := New(jsonschema.LoaderOptions{FileSystem: files}).Load(context.Background(), schema.SourceFromFS("notes.txt"))
	if err == nil || !strings.Contains(err.Error(), "unsupported schema file extension") {
		t.Fatalf("expected extension error, got %v", err)
	}
}

func TestLoader_RemoteSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(minimalSchema))
	}))
	defer server.Close()

	l := New(jsonschema.LoaderOptions{HTTPClient: server.Client(), MaxBytes: 8})
	_, err := l.Load(context.Background(), schema.SourceFromURL(server.URL+"/minimal.json"))
	if err == nil || !strings.Contains(err.Error(), "size limit") {
		t.Fatalf("expected size limit error, got %v", err)
	}
}
