// Package validation checks form values against field definitions and lints
// form schemas before they are registered.
//
// ValidateField is the per-field validator used by the document mutator and
// the turn engine. Its reasons always name the field and the violated
// constraint so they can be shown to the end user as-is.
package validation
