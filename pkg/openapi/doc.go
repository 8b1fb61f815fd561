// Package openapi turns the components.schemas section of an OpenAPI 3
// document into Form Schemas. kin-openapi stays an implementation detail:
// callers only see schema.Form values.
package openapi
