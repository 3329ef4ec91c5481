// Package redis implements the conversation checkpoint store on Redis.
// Suitable when checkpoints are treated as a bounded-retention session cache
// (set a TTL) rather than a permanent audit log.
package redis
