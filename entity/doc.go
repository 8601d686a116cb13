// Package entity turns untyped records into typed entity structs.
//
// Each entity type has a schema: the declared fields of its struct, the name
// of its primary-key field, per-field cast rules and optional getter/setter
// accessors. Schemas are declared with Define and resolved lazily, once per
// type, by a Registry. A Marshaller builds and fills entities, running a
// field's setter accessor before its cast rule so that casts apply to the
// accessor's output.
package entity
