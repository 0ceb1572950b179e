// Package ridb implements the core of an embeddable, schema-driven
// document database: collections of JSON-shaped documents validated
// against per-collection schemas, versioned through migrations,
// optionally encrypted at rest, and persisted through a pluggable
// storage backend.
//
// The package is organized around five subsystems: Schema (parsing and
// validating documents), Query (a MongoDB-style filter AST and
// evaluator), Operation (the tagged value the pipeline routes),
// Plugin (the hook contract, with built-in migration and encryption
// plugins), and Storage (the pipeline that composes plugins with a
// backend). Database and Collection are thin façades over Storage.
package ridb
