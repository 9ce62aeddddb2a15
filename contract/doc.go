// Package contract declares the typed contracts for pipeline steps: a
// name, a structural input schema, and a structural output schema.
//
// Contracts are registered once at process initialization, before any
// pipeline executes, and the registry is frozen read-only afterwards.
// Registration after freeze, duplicate names, and lookups of unknown
// names are all programming errors surfaced as conduit sentinel errors —
// they are never retried.
package contract
