// Package sqlite implements the conversation checkpoint store on SQLite via
// database/sql and mattn/go-sqlite3.
package sqlite
