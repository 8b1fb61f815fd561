// Package store persists submissions and per-session conversation snapshots.
// Submissions live in a gorm database and back the turn engine's history
// lookup; snapshots live in memory or redis.
package store
