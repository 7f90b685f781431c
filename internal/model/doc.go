// Package model defines the data shapes exchanged between the persistence
// engine and its callers: persisted row types (Document, Alias), document
// identity and its derived referential ids, reference targets, and the
// per-operation request values.
//
// Identity model:
//   - Document uuid: the caller-visible stable identifier, assigned at insert.
//   - Referential id: a content-derived UUID computed from the document's
//     natural key (project, resource, identity field/value pairs). It is the
//     join key between a Reference edge and the Alias row of its target.
//
// Referential ids are deterministic UUIDv5 values, so independent writers in
// any language derive the same id from the same identity without
// coordination.
package model
