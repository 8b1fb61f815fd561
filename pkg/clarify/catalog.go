package clarify

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flosch/pongo2/v6"
	"gopkg.in/yaml.v3"
)

//go:embed catalog/*.yaml
var embeddedCatalog embed.FS

// EmbeddedFS returns the bundled phrase catalog.
func EmbeddedFS() fs.FS {
	sub, err := fs.Sub(embeddedCatalog, "catalog")
	if err != nil {
		panic(err)
	}
	return sub
}

// Catalog holds compiled phrase templates per language.
type Catalog struct {
	fallback  string
	languages map[string]*phrases
}

type phrases struct {
	enum            *pongo2.Template
	generic         *pongo2.Template
	acknowledgement *pongo2.Template
	apology         *pongo2.Template
	lowConfidence   *pongo2.Template
	fallback        *pongo2.Template
	fields          map[string]*pongo2.Template
}

type catalogFile struct {
	Default   string                  `yaml:"default"`
	Languages map[string]languageFile `yaml:"languages"`
}

type languageFile struct {
	Enum            string            `yaml:"enum"`
	Generic         string            `yaml:"generic"`
	Acknowledgement string            `yaml:"acknowledgement"`
	Apology         string            `yaml:"apology"`
	LowConfidence   string            `yaml:"lowConfidence"`
	Fallback        string            `yaml:"fallback"`
	Fields          map[string]string `yaml:"fields"`
}

// DefaultCatalog compiles the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(EmbeddedFS())
}

// MustDefaultCatalog panics when the embedded catalog does not compile.
func MustDefaultCatalog() *Catalog {
	catalog, err := DefaultCatalog()
	if err != nil {
		panic(err)
	}
	return catalog
}

// LoadCatalog reads every YAML file in fsys in lexical order. Later files
// override individual phrases of earlier ones, so an override file only
// needs the keys it changes.
func LoadCatalog(fsys fs.FS, extra ...fs.FS) (*Catalog, error) {
	merged := catalogFile{Languages: map[string]languageFile{}}
	for _, files := range append([]fs.FS{fsys}, extra...) {
		if files == nil {
			continue
		}
		if err := mergeFS(&merged, files); err != nil {
			return nil, err
		}
	}
	if len(merged.Languages) == 0 {
		return nil, fmt.Errorf("clarify: catalog defines no languages")
	}

	catalog := &Catalog{
		fallback:  strings.TrimSpace(merged.Default),
		languages: make(map[string]*phrases, len(merged.Languages)),
	}
	for lang, raw := range merged.Languages {
		compiled, err := compileLanguage(lang, raw)
		if err != nil {
			return nil, err
		}
		catalog.languages[lang] = compiled
	}
	if catalog.fallback == "" {
		catalog.fallback = catalog.Languages()[0]
	}
	if _, ok := catalog.languages[catalog.fallback]; !ok {
		return nil, fmt.Errorf("clarify: default language %q is not defined", catalog.fallback)
	}
	return catalog, nil
}

func mergeFS(into *catalogFile, fsys fs.FS) error {
	matches, err := fs.Glob(fsys, "*.y*ml")
	if err != nil {
		return err
	}
	sort.Strings(matches)
	for _, name := range matches {
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("clarify: read %s: %w", name, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("clarify: parse %s: %w", name, err)
		}
		if file.Default != "" {
			into.Default = file.Default
		}
		for lang, entry := range file.Languages {
			into.Languages[lang] = mergeLanguage(into.Languages[lang], entry)
		}
	}
	return nil
}

func mergeLanguage(base, override languageFile) languageFile {
	pick := func(current, next string) string {
		if next != "" {
			return next
		}
		return current
	}
	out := languageFile{
		Enum:            pick(base.Enum, override.Enum),
		Generic:         pick(base.Generic, override.Generic),
		Acknowledgement: pick(base.Acknowledgement, override.Acknowledgement),
		Apology:         pick(base.Apology, override.Apology),
		LowConfidence:   pick(base.LowConfidence, override.LowConfidence),
		Fallback:        pick(base.Fallback, override.Fallback),
		Fields:          make(map[string]string, len(base.Fields)+len(override.Fields)),
	}
	for key, value := range base.Fields {
		out.Fields[key] = value
	}
	for key, value := range override.Fields {
		out.Fields[key] = value
	}
	return out
}

func compileLanguage(lang string, raw languageFile) (*phrases, error) {
	compile := func(key, src string) (*pongo2.Template, error) {
		if src == "" {
			return nil, fmt.Errorf("clarify: language %q is missing %q", lang, key)
		}
		// Phrases are plain text; HTML escaping would mangle labels.
		tpl, err := pongo2.FromString("{% autoescape off %}" + src + "{% endautoescape %}")
		if err != nil {
			return nil, fmt.Errorf("clarify: compile %s.%s: %w", lang, key, err)
		}
		return tpl, nil
	}

	out := &phrases{fields: make(map[string]*pongo2.Template, len(raw.Fields))}
	var err error
	if out.enum, err = compile("enum", raw.Enum); err != nil {
		return nil, err
	}
	if out.generic, err = compile("generic", raw.Generic); err != nil {
		return nil, err
	}
	if out.acknowledgement, err = compile("acknowledgement", raw.Acknowledgement); err != nil {
		return nil, err
	}
	if out.apology, err = compile("apology", raw.Apology); err != nil {
		return nil, err
	}
	if out.lowConfidence, err = compile("lowConfidence", raw.LowConfidence); err != nil {
		return nil, err
	}
	if out.fallback, err = compile("fallback", raw.Fallback); err != nil {
		return nil, err
	}
	for field, src := range raw.Fields {
		tpl, err := compile("fields."+field, src)
		if err != nil {
			return nil, err
		}
		out.fields[field] = tpl
	}
	return out, nil
}

// Languages lists the catalog languages in sorted order.
func (c *Catalog) Languages() []string {
	langs := make([]string, 0, len(c.languages))
	for lang := range c.languages {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// phrasesFor returns the phrases of lang, or of the default language.
func (c *Catalog) phrasesFor(lang string) *phrases {
	if p, ok := c.languages[strings.ToLower(strings.TrimSpace(lang))]; ok {
		return p
	}
	return c.languages[c.fallback]
}
