// Package repository decorates a raw record Store with typed entities.
//
// Reads convert store records into entities of the repository's type unless
// the context is in raw mode (see WithRawMode). Create, update and delete run
// through an action pipeline that validates the store's outcome, and create
// reads the stored record back so defaults and computed columns are present.
// Operation names are dispatched with suffix extensions: "findOrFail" runs
// "find" and fails with NoRecordsFound on an empty result. Names the
// repository does not know are forwarded to stores implementing Caller.
package repository
