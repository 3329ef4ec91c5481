// Package postgres implements the conversation checkpoint store on
// PostgreSQL using pgx. One row per checkpoint; the
// (conversation_id, version DESC) index serves the latest-checkpoint lookup
// each turn starts with.
package postgres
