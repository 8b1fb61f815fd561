package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Field type tags understood by the validator and resolver.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Format tags with dedicated parse rules.
const (
	FormatDate     = "date"
	FormatTime     = "time"
	FormatDateTime = "date-time"
	FormatEmail    = "email"
)

// DefaultVersion is assigned to forms that do not declare a version.
const DefaultVersion = "1.0.0"

// Schema is the declarative description of a single field or of a whole form
// (an object schema whose Properties are the form fields). Bounds are pointers
// so an absent constraint is distinguishable from a zero one.
type Schema struct {
	Type             string
	Format           string
	Title            string
	Description      string
	Default          any
	Enum             []any
	Const            any
	Required         []string
	Properties       map[string]Schema
	Items            *Schema
	OneOf            []Schema
	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum *float64
	ExclusiveMaximum *float64
	MinLength        *int
	MaxLength        *int
	MinItems         *int
	MaxItems         *int
	Pattern          string
	Extensions       map[string]any `json:"Extensions,omitempty"`
}

// Property returns the definition of the named property.
func (s Schema) Property(name string) (Schema, bool) {
	if s.Properties == nil {
		return Schema{}, false
	}
	prop, ok := s.Properties[name]
	return prop, ok
}

// IsRequired reports whether name is listed in the required set.
func (s Schema) IsRequired(name string) bool {
	for _, item := range s.Required {
		if item == name {
			return true
		}
	}
	return false
}

// Label returns the display title of the named property, falling back to the
// raw name.
func (s Schema) Label(name string) string {
	if prop, ok := s.Property(name); ok {
		if title := strings.TrimSpace(prop.Title); title != "" {
			return title
		}
	}
	return name
}

// PropertyNames returns the property names in sorted order.
func (s Schema) PropertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Single builds a one-property object schema carrying name's definition and
// its required-list membership. The validator uses it to check array item
// properties one at a time.
func (s Schema) Single(name string) Schema {
	prop, ok := s.Property(name)
	if !ok {
		return Schema{Type: TypeObject}
	}
	out := Schema{
		Type:       TypeObject,
		Properties: map[string]Schema{name: prop},
	}
	if s.IsRequired(name) {
		out.Required = []string{name}
	}
	return out
}

// Option is one branch of a tagged union: a constant value and its title.
type Option struct {
	Value any
	Label string
}

// ConstOptions returns the oneOf branches that declare a const value, in
// declaration order. Branches without a title use the value as label.
func (s Schema) ConstOptions() []Option {
	if len(s.OneOf) == 0 {
		return nil
	}
	out := make([]Option, 0, len(s.OneOf))
	for _, branch := range s.OneOf {
		if branch.Const == nil {
			continue
		}
		label := strings.TrimSpace(branch.Title)
		if label == "" {
			label = fmt.Sprint(branch.Const)
		}
		out = append(out, Option{Value: branch.Const, Label: label})
	}
	return out
}

// Form is a named, versioned Form Schema. It is immutable once registered;
// callers share it by pointer across sessions.
type Form struct {
	Name        string
	Version     string
	Title       string
	Description string
	Schema      Schema
	// Definition keeps the decoded source payload for transports that echo the
	// schema back to clients.
	Definition map[string]any
	Source     Source
}

// ID returns the "name@version" identifier used for submissions.
func (f *Form) ID() string {
	if f == nil {
		return ""
	}
	version := strings.TrimSpace(f.Version)
	if version == "" {
		version = DefaultVersion
	}
	return f.Name + "@" + version
}

// FormRef provides minimal metadata about an available form.
type FormRef struct {
	Name    string
	Version string
	Title   string
}
