package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/goliatone/go-formchat/internal/config"
	"github.com/goliatone/go-formchat/pkg/extract"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLint_ReportsIssues(t *testing.T) {
	path := writeFile(t, "bad.json", `{
		"type": "object",
		"required": ["age", "ghost"],
		"properties": {"age": {"type": "integer", "minimum": 5, "maximum": 1}}
	}`)

	out, err := execute(t, "lint", path)
	if err == nil {
		t.Fatalf("expected lint failure, got output:\n%s", out)
	}
	for _, want := range []string{
		"#/properties/age -> minimum 5 exceeds maximum 1",
		`required field "ghost" is not declared in properties`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLint_FetchesURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type": "object", "properties": {"age": {"type": "integer", "minimum": 5, "maximum": 1}}}`))
	}))
	defer srv.Close()

	out, err := execute(t, "lint", srv.URL+"/forms/remote.json")
	if err == nil {
		t.Fatalf("expected lint failure, got output:\n%s", out)
	}
	if !strings.Contains(out, "#/properties/age -> minimum 5 exceeds maximum 1") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestLint_CleanSchema(t *testing.T) {
	path := writeFile(t, "contact.json", `{
		"type": "object",
		"required": ["name"],
		"properties": {"name": {"type": "string", "minLength": 2}}
	}`)

	out, err := execute(t, "lint", path)
	if err != nil {
		t.Fatalf("lint: %v\n%s", err, out)
	}
	if strings.TrimSpace(out) != "ok" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestLookup_BundledForm(t *testing.T) {
	out, err := execute(t, "lookup", "--field", "deliveryLocation", "ตึกศรี")
	if err != nil {
		t.Fatalf("lookup: %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 || !strings.HasPrefix(lines[1], "ตึกศรีจันทร์") {
		t.Fatalf("expected best candidate first:\n%s", out)
	}
}

func TestLookup_UnknownField(t *testing.T) {
	if _, err := execute(t, "lookup", "--field", "nickname", "x"); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestNewExtractor_FallsBackToRules(t *testing.T) {
	x, err := newExtractor(config.LLMConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("newExtractor: %v", err)
	}
	if _, ok := x.(*extract.RuleExtractor); !ok {
		t.Fatalf("expected rule extractor, got %T", x)
	}
}

func TestLoadRegistry_FallsBackToBundledForms(t *testing.T) {
	registry, err := loadRegistry(t.Context(), config.FormsConfig{Dir: filepath.Join(t.TempDir(), "missing")}, zap.NewNop())
	if err != nil {
		t.Fatalf("loadRegistry: %v", err)
	}
	if _, err := registry.Latest("equipment_form"); err != nil {
		t.Fatalf("expected bundled equipment form: %v", err)
	}
}
