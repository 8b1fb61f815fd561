// Package forms keeps the named, versioned form schemas a server offers.
package forms

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-formchat/pkg/schema"
	"github.com/goliatone/go-formchat/pkg/validation"
)

var (
	// ErrFormNotFound is returned when no registered form matches a lookup.
	ErrFormNotFound = errors.New("forms: form not found")
	// ErrInvalidForm is returned when a form fails linting on registration.
	ErrInvalidForm = errors.New("forms: invalid form")
)

// Latest names the newest registered version in lookups.
const Latest = "latest"

type entry struct {
	version *semver.Version
	form    *schema.Form
}

// Registry stores forms by name, each with one or more semantic versions.
type Registry struct {
	mu     sync.RWMutex
	forms  map[string][]entry
	lint   bool
	logger *zap.Logger
}

// Option customises a Registry.
type Option func(*Registry)

// WithLint rejects forms whose schema lint reports issues.
func WithLint(enabled bool) Option {
	return func(r *Registry) {
		r.lint = enabled
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry. Linting is on by default.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		forms:  make(map[string][]entry),
		lint:   true,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register adds a form. A name and version pair may only be registered once.
func (r *Registry) Register(form *schema.Form) error {
	if form == nil {
		return errors.New("forms: form is required")
	}
	name := normalizeName(form.Name)
	if name == "" {
		return errors.New("forms: form name is required")
	}
	raw := strings.TrimSpace(form.Version)
	if raw == "" {
		raw = schema.DefaultVersion
	}
	version, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("forms: %s: version %q: %w", name, raw, err)
	}

	if r.lint {
		if result := validation.ValidateForm(form.Schema); !result.Valid {
			first := result.Issues[0]
			return fmt.Errorf("%w: %s: %s: %s (%d issue(s))", ErrInvalidForm, form.ID(), first.Path, first.Message, len(result.Issues))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.forms[name]
	for _, existing := range list {
		if existing.version.Equal(version) {
			return fmt.Errorf("forms: %s@%s already registered", name, version)
		}
	}
	list = append(list, entry{version: version, form: form})
	sort.Slice(list, func(i, j int) bool { return list[i].version.LessThan(list[j].version) })
	r.forms[name] = list

	r.logger.Debug("form registered", zap.String("form", form.ID()), zap.Int("properties", len(form.Schema.Properties)))
	return nil
}

// MustRegister panics on registration failure.
func (r *Registry) MustRegister(form *schema.Form) {
	if err := r.Register(form); err != nil {
		panic(err)
	}
}

// Get returns the form registered under name. version may be an exact
// version, a constraint such as "^1.2", or empty/"latest" for the newest.
// Constraints pick the highest matching version.
func (r *Registry) Get(name, version string) (*schema.Form, error) {
	key := normalizeName(name)
	if key == "" {
		return nil, errors.New("forms: form name is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.forms[key]
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrFormNotFound, key)
	}

	version = strings.TrimSpace(version)
	if version == "" || strings.EqualFold(version, Latest) {
		return list[len(list)-1].form, nil
	}

	if exact, err := semver.StrictNewVersion(strings.TrimPrefix(version, "v")); err == nil {
		for _, e := range list {
			if e.version.Equal(exact) {
				return e.form, nil
			}
		}
		return nil, fmt.Errorf("%w: %s@%s", ErrFormNotFound, key, version)
	}

	constraint, err := semver.NewConstraint(version)
	if err != nil {
		return nil, fmt.Errorf("forms: %s: version %q: %w", key, version, err)
	}
	for i := len(list) - 1; i >= 0; i-- {
		if constraint.Check(list[i].version) {
			return list[i].form, nil
		}
	}
	return nil, fmt.Errorf("%w: %s@%s", ErrFormNotFound, key, version)
}

// Latest returns the newest version of name.
func (r *Registry) Latest(name string) (*schema.Form, error) {
	return r.Get(name, Latest)
}

// Versions lists the registered versions of name in ascending order.
func (r *Registry) Versions(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.forms[normalizeName(name)]
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.version.Original())
	}
	return out
}

// List returns one reference per registered version, sorted by name then
// version.
func (r *Registry) List() []schema.FormRef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.forms))
	for name := range r.forms {
		names = append(names, name)
	}
	sort.Strings(names)

	var refs []schema.FormRef
	for _, name := range names {
		for _, e := range r.forms[name] {
			refs = append(refs, schema.FormRef{Name: e.form.Name, Version: e.version.Original(), Title: e.form.Title})
		}
	}
	return refs
}

// Len reports the number of registered form versions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, list := range r.forms {
		n += len(list)
	}
	return n
}

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}
