// Package database connects to MySQL, PostgreSQL or SQLite through Bun and
// exposes SQL tables as repository stores.
//
// TableStore implements repository.Store over a single table using column
// maps, so repositories can decorate tables that have no bun model. InitDB
// manages a global connection, Table builds stores over it, and
// RegisterModel together with EnsureTables creates tables on startup.
package database
