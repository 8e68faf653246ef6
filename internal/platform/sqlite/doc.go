// Package sqlite provides SQLite-specific implementations for the data
// storage interfaces defined in the internal/store package, backed by the
// pure-Go glebarez/go-sqlite driver. It is the default backend and keeps the
// whole system runnable as a single process with one database file.
package sqlite
